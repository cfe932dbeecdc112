package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Keys of the client cache.
const (
	KeySensors    = "sensors"
	KeyActuators  = "actuators"
	KeyCredential = "credential"
	KeyTab        = "tab"
)

// CacheSQLite is a string key/value store backed by the client_cache table.
type CacheSQLite struct {
	db  *sql.DB
	now func() time.Time
}

func NewCacheSQLite(db *sql.DB) *CacheSQLite {
	return &CacheSQLite{db: db, now: time.Now}
}

const (
	upsertCacheSQL = `
		INSERT INTO client_cache (key, value, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			value=excluded.value,
			updated_at=excluded.updated_at
	`
	selectCacheSQL = `SELECT value FROM client_cache WHERE key=?`
	deleteCacheSQL = `DELETE FROM client_cache WHERE key=?`
)

// Get returns the value stored under key. ok is false when absent.
func (r *CacheSQLite) Get(ctx context.Context, key string) (value string, ok bool, err error) {
	err = r.db.QueryRowContext(ctx, selectCacheSQL, key).Scan(&value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("select cache %q: %w", key, err)
	}
	return value, true, nil
}

// Set inserts or replaces the value under key.
func (r *CacheSQLite) Set(ctx context.Context, key, value string) error {
	if _, err := r.db.ExecContext(ctx, upsertCacheSQL, key, value, r.now().UTC()); err != nil {
		return fmt.Errorf("upsert cache %q: %w", key, err)
	}
	return nil
}

// Delete removes key. Deleting an absent key is not an error.
func (r *CacheSQLite) Delete(ctx context.Context, key string) error {
	if _, err := r.db.ExecContext(ctx, deleteCacheSQL, key); err != nil {
		return fmt.Errorf("delete cache %q: %w", key, err)
	}
	return nil
}

// SaveJSON serializes v under key.
func (r *CacheSQLite) SaveJSON(ctx context.Context, key string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal cache %q: %w", key, err)
	}
	return r.Set(ctx, key, string(b))
}

// LoadJSON decodes the value under key into v. It reports false, with v
// untouched, when the key is absent.
func (r *CacheSQLite) LoadJSON(ctx context.Context, key string, v any) (bool, error) {
	s, ok, err := r.Get(ctx, key)
	if err != nil || !ok {
		return false, err
	}
	if err := json.Unmarshal([]byte(s), v); err != nil {
		return false, fmt.Errorf("decode cache %q: %w", key, err)
	}
	return true, nil
}
