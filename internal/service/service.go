package service

import (
	"context"
	"net/url"
	"time"

	"github.com/Oussamaghaouti/irrig/internal/logger"
	"github.com/Oussamaghaouti/irrig/internal/metrics"
	"github.com/Oussamaghaouti/irrig/internal/models"
	"github.com/Oussamaghaouti/irrig/internal/repository"
	"github.com/Oussamaghaouti/irrig/internal/thingspeak"
)

// Channel is the slice of the ThingSpeak client the controller needs.
type Channel interface {
	ReadLast(ctx context.Context) (thingspeak.Feed, error)
	Update(ctx context.Context, params url.Values) (int64, error)
}

// PumpSync exposes the controller to the HTTP layer. SetMode and TogglePump
// only reserve the write cycle and return immediately; progress is observable
// through Status.
type PumpSync interface {
	Status() models.ControllerStatus
	Refresh(ctx context.Context) error
	SetMode(mode string) error
	TogglePump() error
}

// Poller runs the periodic snapshot refresh loop.
// Stop via context cancellation in main() for graceful shutdown.
type Poller interface {
	Run(ctx context.Context, tick time.Duration)
}

// EventLog exposes the append-only audit log with filtering access.
type EventLog interface {
	List(ctx context.Context, f LogFilter) ([]models.PumpEvent, error)
}

// LogFilter supports history filtering by time range and type.
type LogFilter struct {
	From time.Time // inclusive; zero means no lower bound
	To   time.Time // inclusive; zero means no upper bound
	Type string    // "", "MODE_CHANGE", "PUMP_TOGGLE", "SYNC_FAILED"
}

// Service aggregates all sub-services.
type Service struct {
	PumpSync
	Poller
	EventLog
}

func NewService(repos *repository.Repository, channel Channel, m *metrics.Metrics, log *logger.Logger, params SyncParams) *Service {
	ctrl := NewPumpSyncController(channel, repos.Events, m, log, params)
	return &Service{
		PumpSync: ctrl,
		Poller:   ctrl,
		EventLog: NewEventLogService(repos.Events),
	}
}
