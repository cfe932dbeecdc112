package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"domo/internal/models"
)

// fakeEventRepo records List inputs and every appended event.
type fakeEventRepo struct {
	mu sync.Mutex

	gotFrom  time.Time
	gotTo    time.Time
	gotState string

	events    []models.ConnectionEvent
	err       error
	appendErr error

	calls int
}

func (f *fakeEventRepo) List(ctx context.Context, from, to time.Time, state string) ([]models.ConnectionEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.gotFrom, f.gotTo, f.gotState = from, to, state
	return f.events, f.err
}

func (f *fakeEventRepo) Append(ctx context.Context, e models.ConnectionEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, e)
	return f.appendErr
}

func (f *fakeEventRepo) states() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.events))
	for i, e := range f.events {
		out[i] = e.State
	}
	return out
}

func Test_normalizeAndValidateFilter(t *testing.T) {
	t.Parallel()

	plus2 := time.FixedZone("UTC+2", 2*3600)
	tests := []struct {
		name    string
		in      JournalFilter
		want    JournalFilter
		wantErr error
	}{
		{name: "all zero ok", in: JournalFilter{}, want: JournalFilter{}},
		{
			name: "local bounds converted to UTC",
			in: JournalFilter{
				From:  time.Date(2025, time.September, 10, 10, 0, 0, 0, plus2),
				To:    time.Date(2025, time.September, 10, 12, 0, 0, 0, time.UTC),
				State: " errored ",
			},
			want: JournalFilter{
				From:  time.Date(2025, time.September, 10, 8, 0, 0, 0, time.UTC),
				To:    time.Date(2025, time.September, 10, 12, 0, 0, 0, time.UTC),
				State: "ERRORED",
			},
		},
		{
			name:    "inverted range",
			in:      JournalFilter{From: time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC), To: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)},
			wantErr: errInvalidTimeRange,
		},
		{name: "unknown state", in: JournalFilter{State: "heat"}, wantErr: errInvalidState},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got, err := normalizeAndValidateFilter(tc.in)
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("err = %v; want %v", err, tc.wantErr)
			}
			if err != nil {
				if !IsFilterError(err) {
					t.Fatalf("IsFilterError(%v) = false", err)
				}
				return
			}
			if !got.From.Equal(tc.want.From) || !got.To.Equal(tc.want.To) || got.State != tc.want.State {
				t.Fatalf("got %+v; want %+v", got, tc.want)
			}
		})
	}
}

func TestJournal_List_PassesNormalizedFilter(t *testing.T) {
	t.Parallel()

	repo := &fakeEventRepo{events: []models.ConnectionEvent{{EventID: "1", State: "CONNECTED"}}}
	j := NewJournal(repo)

	out, err := j.List(context.Background(), JournalFilter{
		From:  time.Date(2025, time.October, 1, 10, 0, 0, 0, time.FixedZone("UTC+5", 5*3600)),
		State: "connected",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != 1 || out[0].EventID != "1" {
		t.Fatalf("unexpected events: %+v", out)
	}
	if want := time.Date(2025, time.October, 1, 5, 0, 0, 0, time.UTC); !repo.gotFrom.Equal(want) {
		t.Fatalf("from = %v; want %v", repo.gotFrom, want)
	}
	if !repo.gotTo.IsZero() || repo.gotState != "CONNECTED" {
		t.Fatalf("to = %v, state = %q", repo.gotTo, repo.gotState)
	}
}

func TestJournal_List_ValidationSkipsRepo(t *testing.T) {
	t.Parallel()

	repo := &fakeEventRepo{}
	_, err := NewJournal(repo).List(context.Background(), JournalFilter{State: "BOGUS"})
	if !errors.Is(err, errInvalidState) {
		t.Fatalf("expected errInvalidState; got %v", err)
	}
	if repo.calls != 0 {
		t.Fatalf("repo should not be called, calls=%d", repo.calls)
	}
}

func TestJournal_List_RepoErrorPropagation(t *testing.T) {
	t.Parallel()

	repo := &fakeEventRepo{err: errors.New("db down")}
	_, err := NewJournal(repo).List(context.Background(), JournalFilter{})
	if !errors.Is(err, repo.err) {
		t.Fatalf("expected repo error to propagate; got %v", err)
	}
}
