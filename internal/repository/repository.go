package repository

import (
	"context"
	"database/sql"
	"time"

	"domo/internal/models"
)

// Cache is the durable client-side key/value storage.
type Cache interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
	SaveJSON(ctx context.Context, key string, v any) error
	LoadJSON(ctx context.Context, key string, v any) (bool, error)
}

// EventRepo is the append-only connection journal.
type EventRepo interface {
	Append(ctx context.Context, e models.ConnectionEvent) error
	List(ctx context.Context, from, to time.Time, state string) ([]models.ConnectionEvent, error)
}

type Repository struct {
	Cache     Cache
	EventRepo EventRepo
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{
		Cache:     NewCacheSQLite(db),
		EventRepo: NewEventSQLite(db),
	}
}
