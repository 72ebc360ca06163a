package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/Oussamaghaouti/irrig/internal/models"
)

func newMockRepo(t *testing.T) (*EventSQLite, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	return NewEventSQLite(db), mock, func() { _ = db.Close() }
}

func TestEventSQLite_Append_FillsDefaultsAndNormalizes(t *testing.T) {
	repo, mock, closeFn := newMockRepo(t)
	defer closeFn()

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO pump_events")).
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), "MODE_CHANGE", "Mode changed to manual", nil).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err := repo.Append(context.Background(), models.PumpEvent{
		Type:        " mode_change ",
		Description: "Mode changed to manual",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestEventSQLite_Append_MarshalsMetadata(t *testing.T) {
	repo, mock, closeFn := newMockRepo(t)
	defer closeFn()

	occurred := time.Date(2026, 8, 29, 9, 30, 0, 0, time.UTC)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO pump_events")).
		WithArgs("e1", occurred.Format(sqliteTimeLayout), "PUMP_TOGGLE", "Pump switched on", `{"pump":"1"}`).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err := repo.Append(context.Background(), models.PumpEvent{
		EventID:     "e1",
		OccurredAt:  occurred,
		Type:        "PUMP_TOGGLE",
		Description: "Pump switched on",
		Metadata:    map[string]string{"pump": "1"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestEventSQLite_List_NoFilters(t *testing.T) {
	repo, mock, closeFn := newMockRepo(t)
	defer closeFn()

	now := time.Date(2026, 8, 29, 10, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{"id", "occurred_at", "type", "message", "meta"}).
		AddRow("e1", now, "MODE_CHANGE", "Mode changed to auto", nil).
		AddRow("e2", now.Add(time.Minute), "SYNC_FAILED", "Mode change did not land", `{"mode":"1"}`)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, occurred_at, type, message, meta FROM pump_events ORDER BY occurred_at ASC")).
		WillReturnRows(rows)

	out, err := repo.List(context.Background(), time.Time{}, time.Time{}, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("expected 2 events, got %d", len(out))
	}
	if out[0].EventID != "e1" || out[1].Type != "SYNC_FAILED" {
		t.Fatalf("unexpected events: %+v", out)
	}
	meta, ok := out[1].Metadata.(map[string]any)
	if !ok || meta["mode"] != "1" {
		t.Fatalf("metadata not unmarshalled: %#v", out[1].Metadata)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestEventSQLite_List_RangeAndTypeFilters(t *testing.T) {
	repo, mock, closeFn := newMockRepo(t)
	defer closeFn()

	from := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 8, 31, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, occurred_at, type, message, meta FROM pump_events WHERE occurred_at >= ? AND occurred_at <= ? AND type = ? ORDER BY occurred_at ASC")).
		WithArgs(from, to, "PUMP_TOGGLE").
		WillReturnRows(sqlmock.NewRows([]string{"id", "occurred_at", "type", "message", "meta"}))

	out, err := repo.List(context.Background(), from, to, "pump_toggle")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != 0 {
		t.Fatalf("expected no events, got %d", len(out))
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
