package main

import (
	"context"
	"database/sql"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/viper"

	"github.com/Oussamaghaouti/irrig/internal/handlers"
	"github.com/Oussamaghaouti/irrig/internal/logger"
	"github.com/Oussamaghaouti/irrig/internal/metrics"
	"github.com/Oussamaghaouti/irrig/internal/repository"
	"github.com/Oussamaghaouti/irrig/internal/server"
	"github.com/Oussamaghaouti/irrig/internal/service"
	"github.com/Oussamaghaouti/irrig/internal/thingspeak"
)

const defaultPollInterval = 30 * time.Second

func main() {
	// load config.yml first so the log level is configurable
	if err := loadConfig(); err != nil {
		logger.Get(logger.InfoLevel).Fatalw("error reading config", "err", err)
	}
	log := logger.Get(viper.GetString("log_level"))

	// open DB
	db, err := openDB(log)
	if err != nil {
		log.Fatalw("failed to init sqlite", "err", err)
	}
	defer func() {
		if cerr := db.Close(); cerr != nil {
			log.Errorw("failed to close sqlite", "err", cerr)
		}
	}()

	// wire dependencies
	reg := prometheus.NewRegistry()
	channel := thingspeak.NewClient(thingspeak.Config{
		ChannelID: viper.GetInt("thingspeak.channel_id"),
		ReadKey:   viper.GetString("thingspeak.read_key"),
		WriteKey:  viper.GetString("thingspeak.write_key"),
	})
	repos := repository.NewRepository(db)
	services := service.NewService(repos, channel, metrics.New(reg), log, syncParams())
	apiHandler := handlers.NewHandler(services, log, reg)

	// context for background goroutines
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// start the channel poller (via composed service)
	go services.Poller.Run(ctx, pollInterval())

	// start HTTP server
	srv := &server.Server{}
	runHTTPServer(srv, viper.GetString("port"), apiHandler, log)

	// graceful shutdown
	waitForShutdown(cancel, srv, log)
}

func loadConfig() error {
	viper.AddConfigPath("configs") // configs/config.yml
	viper.SetConfigName("config")
	// allow the two channel keys to come from the environment
	viper.SetEnvPrefix("irrig")
	_ = viper.BindEnv("thingspeak.read_key", "IRRIG_THINGSPEAK_READ_KEY")
	_ = viper.BindEnv("thingspeak.write_key", "IRRIG_THINGSPEAK_WRITE_KEY")
	return viper.ReadInConfig()
}

// syncParams maps config onto the executor tuning, falling back to defaults.
func syncParams() service.SyncParams {
	p := service.DefaultSyncParams()
	if v := viper.GetInt("sync.retries"); v > 0 {
		p.Retries = v
	}
	if v := viper.GetInt("sync.mode_retries"); v > 0 {
		p.ModeRetries = v
	}
	if v := viper.GetDuration("sync.delay"); v > 0 {
		p.Delay = v
	}
	if v := viper.GetInt("sync.verify_attempts"); v > 0 {
		p.VerifyAttempts = v
	}
	if v := viper.GetDuration("sync.verify_delay"); v > 0 {
		p.VerifyDelay = v
	}
	return p
}

func pollInterval() time.Duration {
	if v := viper.GetDuration("sync.poll_interval"); v > 0 {
		return v
	}
	return defaultPollInterval
}

// openDB initializes the SQLite database using configuration.
func openDB(log *logger.Logger) (*sql.DB, error) {
	dbPath := viper.GetString("db.path")
	if dbPath == "" {
		log.Infow("db.path not set in config; using default file", "default", "irrig.db")
		dbPath = "irrig.db"
	}
	return repository.InitDB(dbPath)
}

// runHTTPServer runs the HTTP server in a separate goroutine.
func runHTTPServer(srv *server.Server, port string, handler *handlers.Handler, log *logger.Logger) {
	go func() {
		if port == "" {
			port = "8080"
		}
		if err := srv.Run(port, handler.InitRoutes()); err != nil {
			log.Fatalw("error starting server", "err", err)
		}
	}()
}

// waitForShutdown listens for termination signals and performs graceful shutdown.
func waitForShutdown(cancel context.CancelFunc, srv *server.Server, log *logger.Logger) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Infow("shutting down...")

	// stop the poller and any write cycle in flight
	cancel()

	// allow in-flight requests to complete
	ctx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalw("server forced to shutdown", "err", err)
	}
}
