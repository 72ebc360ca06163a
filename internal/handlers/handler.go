package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/Oussamaghaouti/irrig/internal/logger"
	"github.com/Oussamaghaouti/irrig/internal/service"
)

// Handler wires the HTTP layer to services, logging and metrics.
type Handler struct {
	services *service.Service
	log      *logger.Logger
	registry *prometheus.Registry
	httpM    *httpMetrics
}

// NewHandler constructs a new HTTP handler with dependencies. A nil registry
// gets a private one, which keeps tests isolated.
func NewHandler(services *service.Service, log *logger.Logger, reg *prometheus.Registry) *Handler {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	return &Handler{
		services: services,
		log:      log,
		registry: reg,
		httpM:    newHTTPMetrics(reg),
	}
}

// InitRoutes builds and returns the Gin router with all routes registered.
func (h *Handler) InitRoutes() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), h.collectMetrics())

	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// Health and metrics endpoints
	router.GET("/health", h.health)
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(h.registry, promhttp.HandlerOpts{})))

	// Versioned API endpoints
	h.registerAPIRoutes(router)

	// Minimal WebSocket connection (HTTP upgrade) — same port
	router.GET("/ws", h.wsConnect)

	return router
}

func (h *Handler) registerAPIRoutes(r *gin.Engine) {
	api := r.Group("/api/v1")
	{
		h.registerPumpRoutes(api)
		h.registerLogRoutes(api)
	}
}

func (h *Handler) registerPumpRoutes(api *gin.RouterGroup) {
	pump := api.Group("/pump")
	{
		pump.GET("/state", h.pumpState)
		// Body example: {"mode":"manual"}
		pump.POST("/mode", h.setMode)
		pump.POST("/toggle", h.togglePump)
		pump.POST("/refresh", h.refreshNow)
	}
}

func (h *Handler) registerLogRoutes(api *gin.RouterGroup) {
	logs := api.Group("/logs")
	{
		logs.GET("/", h.getLogs)
	}
}
