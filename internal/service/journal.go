package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"domo/internal/models"
	"domo/internal/repository"
)

// JournalFilter narrows the connection journal by time range and state.
type JournalFilter struct {
	From  time.Time // inclusive; zero means no lower bound
	To    time.Time // inclusive; zero means no upper bound
	State string    // "", "CONNECTING", "CONNECTED", "ERRORED", "DISCONNECTED"
}

var errInvalidTimeRange = errors.New("invalid time range: from must be <= to")

var journalStates = map[string]bool{
	models.Disconnected.String(): true,
	models.Connecting.String():   true,
	models.Connected.String():    true,
	models.Errored.String():      true,
}

var errInvalidState = errors.New("invalid state: must be CONNECTING, CONNECTED, ERRORED or DISCONNECTED")

// Journal is the read side of the connection journal.
type Journal struct {
	repo repository.EventRepo
}

func NewJournal(repo repository.EventRepo) *Journal {
	return &Journal{repo: repo}
}

func normalizeToUTC(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	return t.UTC()
}

func normalizeState(s string) string {
	return strings.TrimSpace(strings.ToUpper(s))
}

func normalizeAndValidateFilter(f JournalFilter) (JournalFilter, error) {
	out := JournalFilter{
		From:  normalizeToUTC(f.From),
		To:    normalizeToUTC(f.To),
		State: normalizeState(f.State),
	}
	if !out.From.IsZero() && !out.To.IsZero() && out.From.After(out.To) {
		return JournalFilter{}, errInvalidTimeRange
	}
	if out.State != "" && !journalStates[out.State] {
		return JournalFilter{}, errInvalidState
	}
	return out, nil
}

// IsFilterError reports whether err came from filter validation.
func IsFilterError(err error) bool {
	return errors.Is(err, errInvalidTimeRange) || errors.Is(err, errInvalidState)
}

func (j *Journal) List(ctx context.Context, f JournalFilter) ([]models.ConnectionEvent, error) {
	f, err := normalizeAndValidateFilter(f)
	if err != nil {
		return nil, err
	}
	return j.repo.List(ctx, f.From, f.To, f.State)
}
