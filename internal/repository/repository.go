package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/Oussamaghaouti/irrig/internal/models"
)

// EventRepo is the append-only audit log of controller actions.
type EventRepo interface {
	Append(ctx context.Context, e models.PumpEvent) error
	List(ctx context.Context, from, to time.Time, typ string) ([]models.PumpEvent, error)
}

type Repository struct {
	Events EventRepo
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{
		Events: NewEventSQLite(db),
	}
}
