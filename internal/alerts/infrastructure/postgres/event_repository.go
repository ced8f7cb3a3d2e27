package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	alerts "sitewatch-cloud/internal/alerts/domain"
)

const defaultAlertEventsTable = "alert_events"

// AlertEventRepository reads the append-only alert audit trail. Event rows
// are inserted inside the alert mutation transaction (see AlertRepository);
// nothing ever updates or deletes them.
type AlertEventRepository struct {
	db    *sql.DB
	table string
}

// NewAlertEventRepository constructs a repository.
func NewAlertEventRepository(db *sql.DB, opts ...EventOption) *AlertEventRepository {
	repo := &AlertEventRepository{db: db, table: defaultAlertEventsTable}
	for _, opt := range opts {
		opt(repo)
	}
	return repo
}

// EventOption configures the repository.
type EventOption func(*AlertEventRepository)

// WithEventTable overrides the default table name.
func WithEventTable(table string) EventOption {
	return func(repo *AlertEventRepository) {
		if table != "" {
			repo.table = table
		}
	}
}

// ListByAlert returns the chronological audit trail for one alert.
func (r *AlertEventRepository) ListByAlert(ctx context.Context, alertID string) ([]alerts.AlertEvent, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("alert event repo: nil db")
	}
	if alertID == "" {
		return nil, errors.New("alert event repo: empty alert id")
	}

	query := fmt.Sprintf(`
SELECT id, alert_id, tenant_id, type, actor, note, metadata, created_at
FROM %s
WHERE alert_id = $1
ORDER BY created_at ASC, id ASC`, r.table)

	rows, err := r.db.QueryContext(ctx, query, alertID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []alerts.AlertEvent
	for rows.Next() {
		var event alerts.AlertEvent
		var actor, note sql.NullString
		var metadata []byte
		if err := rows.Scan(
			&event.ID,
			&event.AlertID,
			&event.TenantID,
			&event.Type,
			&actor,
			&note,
			&metadata,
			&event.CreatedAt,
		); err != nil {
			return nil, err
		}
		event.Actor = actor.String
		event.Note = note.String
		event.Metadata = metadata
		event.CreatedAt = event.CreatedAt.UTC()
		result = append(result, event)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// execer is the subset of *sql.Tx that insertEvent needs.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// insertEvent appends one audit event within the caller's transaction.
func insertEvent(ctx context.Context, tx execer, table string, event *alerts.AlertEvent) error {
	if event == nil {
		return errors.New("alert event repo: nil event")
	}
	if table == "" {
		table = defaultAlertEventsTable
	}
	if event.ID == "" {
		event.ID = alerts.NewEventID()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}
	if err := event.Validate(); err != nil {
		return err
	}
	query := fmt.Sprintf(`
INSERT INTO %s (
	id, alert_id, tenant_id, type, actor, note, metadata, created_at
) VALUES (
	$1, $2, $3, $4, $5, $6, $7, $8
)`, table)
	_, err := tx.ExecContext(ctx, query,
		event.ID,
		event.AlertID,
		event.TenantID,
		event.Type,
		nullableString(event.Actor),
		nullableString(event.Note),
		nullableJSON(event.Metadata),
		event.CreatedAt,
	)
	return err
}
