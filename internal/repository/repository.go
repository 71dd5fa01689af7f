package repository

import (
	"context"
	"database/sql"
	"time"

	"monotub_dashboard/internal/models"
)

// Authorization stores dashboard operator accounts.
type Authorization interface {
	Create(ctx context.Context, username, hash string) (int, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)
}

// StateRepo persists the last successfully polled device status.
type StateRepo interface {
	Save(ctx context.Context, s models.StatusSnapshot) error
	Load(ctx context.Context) (models.StatusSnapshot, error)
}

// EventRepo is the append-only dashboard journal.
type EventRepo interface {
	Append(ctx context.Context, e models.DashboardEvent) error
	List(ctx context.Context, from, to time.Time, typ string) ([]models.DashboardEvent, error)
}

type Repository struct {
	StateRepo StateRepo
	EventRepo EventRepo
	Auth      Authorization
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{
		StateRepo: NewStateSQLite(db),
		EventRepo: NewEventSQLite(db),
		Auth:      NewUserRepository(db),
	}
}
