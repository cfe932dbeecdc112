package repository

import (
	"database/sql"
	"database/sql/driver"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
)

type sqlmockArgumentFunc func(v driver.Value) bool

func (f sqlmockArgumentFunc) Match(v driver.Value) bool { return f(v) }

func newCacheMock(t *testing.T) (*CacheSQLite, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New(): %v", err)
	}
	t.Cleanup(func() {
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("unmet sqlmock expectations: %v", err)
		}
		_ = db.Close()
	})
	repo := NewCacheSQLite(db)
	fixed := time.Date(2024, 3, 1, 10, 0, 0, 0, time.FixedZone("CET", 3600))
	repo.now = func() time.Time { return fixed }
	return repo, mock
}

func TestCacheSQLite_Set_UpsertsWithUTCTimestamp(t *testing.T) {
	repo, mock := newCacheMock(t)

	isUTC := sqlmockArgumentFunc(func(v driver.Value) bool {
		tm, ok := v.(time.Time)
		return ok && tm.Location() == time.UTC && tm.Hour() == 9
	})
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO client_cache")).
		WithArgs(KeyTab, "graphs", isUTC).
		WillReturnResult(sqlmock.NewResult(1, 1))

	if err := repo.Set(ctx(t), KeyTab, "graphs"); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
}

func TestCacheSQLite_Get(t *testing.T) {
	t.Run("present", func(t *testing.T) {
		repo, mock := newCacheMock(t)
		mock.ExpectQuery(regexp.QuoteMeta(selectCacheSQL)).
			WithArgs(KeyCredential).
			WillReturnRows(sqlmock.NewRows([]string{"value"}).AddRow("hunter2"))

		v, ok, err := repo.Get(ctx(t), KeyCredential)
		if err != nil || !ok || v != "hunter2" {
			t.Fatalf("Get() = %q, %v, %v", v, ok, err)
		}
	})

	t.Run("absent is not an error", func(t *testing.T) {
		repo, mock := newCacheMock(t)
		mock.ExpectQuery(regexp.QuoteMeta(selectCacheSQL)).
			WithArgs(KeySensors).
			WillReturnError(sql.ErrNoRows)

		v, ok, err := repo.Get(ctx(t), KeySensors)
		if err != nil || ok || v != "" {
			t.Fatalf("Get() = %q, %v, %v", v, ok, err)
		}
	})

	t.Run("db error is wrapped", func(t *testing.T) {
		repo, mock := newCacheMock(t)
		boom := errors.New("disk I/O error")
		mock.ExpectQuery(regexp.QuoteMeta(selectCacheSQL)).
			WithArgs(KeySensors).
			WillReturnError(boom)

		_, _, err := repo.Get(ctx(t), KeySensors)
		if !errors.Is(err, boom) {
			t.Fatalf("want wrapped %v, got %v", boom, err)
		}
	})
}

func TestCacheSQLite_JSONRoundTrip(t *testing.T) {
	repo, mock := newCacheMock(t)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO client_cache")).
		WithArgs(KeyActuators, `{"lamp":{"on":true}}`, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	if err := repo.SaveJSON(ctx(t), KeyActuators, map[string]map[string]bool{"lamp": {"on": true}}); err != nil {
		t.Fatalf("SaveJSON: %v", err)
	}

	mock.ExpectQuery(regexp.QuoteMeta(selectCacheSQL)).
		WithArgs(KeyActuators).
		WillReturnRows(sqlmock.NewRows([]string{"value"}).AddRow(`{"lamp":{"on":true}}`))
	var got map[string]map[string]bool
	ok, err := repo.LoadJSON(ctx(t), KeyActuators, &got)
	if err != nil || !ok {
		t.Fatalf("LoadJSON: ok=%v err=%v", ok, err)
	}
	if !got["lamp"]["on"] {
		t.Fatalf("decoded %+v", got)
	}
}

func TestCacheSQLite_LoadJSON_Corrupt(t *testing.T) {
	repo, mock := newCacheMock(t)
	mock.ExpectQuery(regexp.QuoteMeta(selectCacheSQL)).
		WithArgs(KeySensors).
		WillReturnRows(sqlmock.NewRows([]string{"value"}).AddRow(`{not json`))

	var got map[string]any
	ok, err := repo.LoadJSON(ctx(t), KeySensors, &got)
	if err == nil || ok {
		t.Fatalf("want decode error, got ok=%v err=%v", ok, err)
	}
}

func TestCacheSQLite_Delete(t *testing.T) {
	repo, mock := newCacheMock(t)
	mock.ExpectExec(regexp.QuoteMeta(deleteCacheSQL)).
		WithArgs(KeyTab).
		WillReturnResult(sqlmock.NewResult(0, 0))
	if err := repo.Delete(ctx(t), KeyTab); err != nil {
		t.Fatalf("Delete: %v", err)
	}
}
