package repository

import (
	"context"
	"encoding/json"
	"errors"
	"regexp"
	"strings"
	"testing"
	"time"

	"cooling_control/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
)

var eventColumns = []string{"id", "occurred_at", "type", "message", "meta"}

func ctx(t *testing.T) context.Context {
	t.Helper()
	c, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	t.Cleanup(cancel)
	return c
}

func newMockEventRepo(t *testing.T) (*EventSQLite, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock new: %v", err)
	}
	repo := NewEventSQLite(db)
	repo.now = func() time.Time { return time.Date(2025, 1, 1, 10, 0, 0, 5e6, time.UTC) }
	t.Cleanup(func() {
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("unmet sqlmock expectations: %v", err)
		}
		_ = db.Close()
	})
	return repo, mock
}

func TestAppend_FillsIDAndTimestamp(t *testing.T) {
	t.Parallel()
	repo, mock := newMockEventRepo(t)

	mock.ExpectExec(regexp.QuoteMeta(insertEventSQL)).
		WithArgs(sqlmock.AnyArg(), "2025-01-01 10:00:00.005", "ALARM", "hello", `{"a":1}`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Append(ctx(t), models.ControlEvent{
		Type:        "  alarm ",
		Description: "hello",
		Metadata:    map[string]any{"a": 1},
	})
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
}

func TestAppend_KeepsGivenIDAndConvertsToUTC(t *testing.T) {
	t.Parallel()
	repo, mock := newMockEventRepo(t)

	at := time.Date(2025, 6, 1, 15, 0, 0, 0, time.FixedZone("UTC+3", 3*3600))
	mock.ExpectExec(regexp.QuoteMeta(insertEventSQL)).
		WithArgs("ev-1", "2025-06-01 12:00:00.000", models.EventStop, "stop", nil).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Append(ctx(t), models.ControlEvent{
		EventID:     "ev-1",
		OccurredAt:  at,
		Type:        models.EventStop,
		Description: "stop",
	})
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
}

func TestAppend_Errors(t *testing.T) {
	t.Parallel()

	t.Run("db", func(t *testing.T) {
		repo, mock := newMockEventRepo(t)
		mock.ExpectExec("INSERT INTO control_events").WillReturnError(errors.New("down"))

		err := repo.Append(ctx(t), models.ControlEvent{Type: models.EventStart, Description: "x"})
		if err == nil || !strings.Contains(err.Error(), "down") {
			t.Fatalf("expected db error, got %v", err)
		}
	})

	t.Run("unencodable metadata", func(t *testing.T) {
		repo, _ := newMockEventRepo(t)

		err := repo.Append(ctx(t), models.ControlEvent{
			EventID:  "bad",
			Type:     models.EventAlarm,
			Metadata: map[string]any{"ch": make(chan int)},
		})
		if err == nil || !strings.Contains(err.Error(), "encode metadata of bad") {
			t.Fatalf("expected encode error, got %v", err)
		}
	})
}

func TestList_NoFilters_And_MetadataParsing(t *testing.T) {
	t.Parallel()
	repo, mock := newMockEventRepo(t)

	now := time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)
	js, _ := json.Marshal(map[string]any{"a": "b"})

	rows := sqlmock.NewRows(eventColumns).
		AddRow("1", now, "START", "m1", string(js)).
		AddRow("2", now.Add(time.Hour), "ALARM", "m2", nil).
		AddRow("3", now.Add(2*time.Hour), "NORMAL", "m3", "{not json")

	mock.ExpectQuery(regexp.QuoteMeta(selectEventsSQL + ` ORDER BY occurred_at ASC`)).
		WillReturnRows(rows)

	got, err := repo.List(ctx(t), EventFilter{})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(got) != 3 || got[0].EventID != "1" || got[1].EventID != "2" {
		t.Fatalf("unexpected events: %+v", got)
	}
	if b, _ := json.Marshal(got[0].Metadata); string(b) != string(js) {
		t.Fatalf("metadata mismatch: %s vs %s", b, js)
	}
	if got[1].Metadata != nil {
		t.Fatalf("expected nil meta, got %#v", got[1].Metadata)
	}
	if got[2].Metadata != "{not json" {
		t.Fatalf("malformed meta should stay raw, got %#v", got[2].Metadata)
	}
}

func TestList_WithFilters_OrderAndArgs(t *testing.T) {
	t.Parallel()
	repo, mock := newMockEventRepo(t)

	from := time.Date(2025, 1, 1, 11, 0, 0, 0, time.UTC)
	to := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

	rows := sqlmock.NewRows(eventColumns).
		AddRow("2", from, "SENSOR_FAULT", "b", nil).
		AddRow("3", to, "SENSOR_FAULT", "c", nil)

	mock.ExpectQuery(regexp.QuoteMeta(selectEventsSQL + ` WHERE occurred_at >= ? AND occurred_at <= ? AND type = ? ORDER BY occurred_at ASC`)).
		WithArgs("2025-01-01 11:00:00.000", "2025-01-01 12:00:00.000", "SENSOR_FAULT").
		WillReturnRows(rows)

	got, err := repo.List(ctx(t), EventFilter{From: from, To: to, Type: " sensor_fault "})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(got) != 2 || got[0].EventID != "2" || got[1].EventID != "3" {
		t.Fatalf("unexpected results: %+v", got)
	}
}

func TestList_ScanError(t *testing.T) {
	t.Parallel()
	repo, mock := newMockEventRepo(t)

	// occurred_at of the wrong type
	rows := sqlmock.NewRows(eventColumns).AddRow("x", 123, "START", "msg", nil)
	mock.ExpectQuery(regexp.QuoteMeta(selectEventsSQL)).WillReturnRows(rows)

	if _, err := repo.List(ctx(t), EventFilter{}); err == nil {
		t.Fatal("expected scan error, got nil")
	}
}

func TestList_LimitKeepsMostRecent(t *testing.T) {
	t.Parallel()
	repo, mock := newMockEventRepo(t)

	query := `SELECT * FROM (` + selectEventsSQL + ` WHERE type = ? ORDER BY occurred_at DESC LIMIT ?) ORDER BY occurred_at ASC`
	now := time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows(eventColumns).AddRow("9", now, "ALARM", "alarm", `{"temperature":61.5}`)

	mock.ExpectQuery(regexp.QuoteMeta(query)).
		WithArgs("ALARM", 1).
		WillReturnRows(rows)

	got, err := repo.List(ctx(t), EventFilter{Type: "alarm", Limit: 1})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(got) != 1 || got[0].EventID != "9" {
		t.Fatalf("unexpected results: %+v", got)
	}
	meta, ok := got[0].Metadata.(map[string]any)
	if !ok || meta["temperature"] != 61.5 {
		t.Fatalf("metadata = %#v", got[0].Metadata)
	}
}

func TestPrune(t *testing.T) {
	t.Parallel()
	repo, mock := newMockEventRepo(t)

	cutoff := time.Date(2024, 12, 2, 10, 0, 0, 0, time.FixedZone("UTC+1", 3600))
	mock.ExpectExec(regexp.QuoteMeta(pruneEventsSQL)).
		WithArgs("2024-12-02 09:00:00.000").
		WillReturnResult(sqlmock.NewResult(0, 42))

	n, err := repo.Prune(ctx(t), cutoff)
	if err != nil {
		t.Fatalf("Prune: %v", err)
	}
	if n != 42 {
		t.Fatalf("pruned %d, want 42", n)
	}
}

func TestPrune_DBError(t *testing.T) {
	t.Parallel()
	repo, mock := newMockEventRepo(t)

	mock.ExpectExec(regexp.QuoteMeta(pruneEventsSQL)).WillReturnError(errors.New("locked"))

	if _, err := repo.Prune(ctx(t), time.Now()); err == nil {
		t.Fatal("expected error")
	}
}
