package repository

import (
	"context"
	"database/sql"
	"time"

	"cooling_control/internal/models"
)

// Authorization stores operator accounts. Usernames are case-insensitive.
type Authorization interface {
	Create(ctx context.Context, username, hash string) (int, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)
}

type SettingsRepo interface {
	Save(ctx context.Context, s models.Settings) error
	// Load returns nil when no settings were saved yet.
	Load(ctx context.Context) (*models.Settings, error)
}

// EventFilter narrows a journal listing. Zero fields do not filter.
type EventFilter struct {
	From  time.Time
	To    time.Time
	Type  string
	Limit int
}

type EventRepo interface {
	Append(ctx context.Context, e models.ControlEvent) error
	List(ctx context.Context, f EventFilter) ([]models.ControlEvent, error)
	// Prune deletes events that occurred before the cutoff.
	Prune(ctx context.Context, before time.Time) (int64, error)
}

type Repository struct {
	SettingsRepo SettingsRepo
	EventRepo    EventRepo
	Auth         Authorization
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{
		SettingsRepo: NewSettingsSQLite(db),
		EventRepo:    NewEventSQLite(db),
		Auth:         NewUserRepository(db),
	}
}
