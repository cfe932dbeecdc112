package repository

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"domo/internal/models"

	"github.com/google/uuid"
)

// EventSQLite is the connection journal: one row per status transition.
type EventSQLite struct {
	db *sql.DB
}

func NewEventSQLite(db *sql.DB) *EventSQLite { return &EventSQLite{db: db} }

const sqliteTimestampLayout = "2006-01-02 15:04:05"

// Append inserts a journal entry. EventID and OccurredAt are filled in when empty.
func (r *EventSQLite) Append(ctx context.Context, e models.ConnectionEvent) error {
	if e.EventID == "" {
		e.EventID = uuid.NewString()
	}
	if e.OccurredAt.IsZero() {
		e.OccurredAt = time.Now().UTC()
	} else {
		e.OccurredAt = e.OccurredAt.UTC()
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO connection_events (id, occurred_at, state, message, attempt)
		VALUES (?, ?, ?, ?, ?)
	`,
		e.EventID,
		e.OccurredAt.Format(sqliteTimestampLayout),
		strings.ToUpper(strings.TrimSpace(e.State)),
		e.Message,
		e.Attempt,
	)
	return err
}

// List returns entries within [from, to] (zero bounds are open) and with
// the given state (empty matches all), oldest first.
func (r *EventSQLite) List(ctx context.Context, from, to time.Time, state string) ([]models.ConnectionEvent, error) {
	var (
		conds []string
		args  []any
	)

	if !from.IsZero() {
		conds = append(conds, "occurred_at >= ?")
		args = append(args, from.UTC().Format(sqliteTimestampLayout))
	}
	if !to.IsZero() {
		conds = append(conds, "occurred_at <= ?")
		args = append(args, to.UTC().Format(sqliteTimestampLayout))
	}
	if state = strings.ToUpper(strings.TrimSpace(state)); state != "" {
		conds = append(conds, "state = ?")
		args = append(args, state)
	}

	q := `SELECT id, occurred_at, state, message, attempt FROM connection_events`
	if len(conds) > 0 {
		q += " WHERE " + strings.Join(conds, " AND ")
	}
	q += " ORDER BY occurred_at ASC"

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]models.ConnectionEvent, 0, 64)
	for rows.Next() {
		var ev models.ConnectionEvent
		if err := rows.Scan(&ev.EventID, &ev.OccurredAt, &ev.State, &ev.Message, &ev.Attempt); err != nil {
			return nil, err
		}
		ev.OccurredAt = ev.OccurredAt.UTC()
		out = append(out, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
