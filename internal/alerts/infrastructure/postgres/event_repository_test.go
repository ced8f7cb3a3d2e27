package postgres

import (
	"context"
	"database/sql"
	"strings"
	"testing"
	"time"

	alerts "sitewatch-cloud/internal/alerts/domain"
)

type capturingExecer struct {
	query string
	args  []any
}

func (e *capturingExecer) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	e.query = query
	e.args = args
	return nil, nil
}

func testEvent() *alerts.AlertEvent {
	return &alerts.AlertEvent{
		ID:        "event-1",
		AlertID:   "alert-1",
		TenantID:  "tenant-a",
		Type:      alerts.EventOpen,
		CreatedAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestInsertEventUsesConfiguredTable(t *testing.T) {
	exec := &capturingExecer{}
	if err := insertEvent(context.Background(), exec, "custom_alert_events", testEvent()); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if !strings.Contains(exec.query, "INSERT INTO custom_alert_events") {
		t.Fatalf("configured table not used:\n%s", exec.query)
	}
	if len(exec.args) != 8 {
		t.Fatalf("expected 8 args, got %d", len(exec.args))
	}
}

func TestInsertEventDefaultsTable(t *testing.T) {
	exec := &capturingExecer{}
	if err := insertEvent(context.Background(), exec, "", testEvent()); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if !strings.Contains(exec.query, "INSERT INTO "+defaultAlertEventsTable) {
		t.Fatalf("default table not used:\n%s", exec.query)
	}
}

func TestAlertRepositoryEventsTableOption(t *testing.T) {
	repo := NewAlertRepository(nil, WithAlertEventsTable("custom_alert_events"))
	if repo.eventsTable != "custom_alert_events" {
		t.Fatalf("option not applied: %q", repo.eventsTable)
	}
	repo = NewAlertRepository(nil)
	if repo.eventsTable != defaultAlertEventsTable {
		t.Fatalf("unexpected default: %q", repo.eventsTable)
	}
}
