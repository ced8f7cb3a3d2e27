package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	alerts "sitewatch-cloud/internal/alerts/domain"
)

const defaultAlertsTable = "alerts"

// AlertRepository is a Postgres repository for alerts. Mutating methods take
// the audit event for the transition and commit both rows in one transaction.
// The alerts table carries a partial unique index on
// (tenant_id, type, sensor_id) WHERE status <> 'resolved', which backs the
// dedup invariant across processes.
type AlertRepository struct {
	db          *sql.DB
	table       string
	eventsTable string
}

// NewAlertRepository constructs a repository.
func NewAlertRepository(db *sql.DB, opts ...AlertOption) *AlertRepository {
	repo := &AlertRepository{db: db, table: defaultAlertsTable, eventsTable: defaultAlertEventsTable}
	for _, opt := range opts {
		opt(repo)
	}
	return repo
}

// AlertOption configures the repository.
type AlertOption func(*AlertRepository)

// WithAlertTable overrides the default table name.
func WithAlertTable(table string) AlertOption {
	return func(repo *AlertRepository) {
		if table != "" {
			repo.table = table
		}
	}
}

// WithAlertEventsTable overrides the table receiving the transactional audit
// event inserts. Pair it with WithEventTable on the event repository so reads
// and writes target the same table.
func WithAlertEventsTable(table string) AlertOption {
	return func(repo *AlertRepository) {
		if table != "" {
			repo.eventsTable = table
		}
	}
}

// FindActiveByKey returns the most recently updated non-resolved alert for a
// (tenant, type, sensor) key. Tenant-level alerts use an empty sensor id.
func (r *AlertRepository) FindActiveByKey(ctx context.Context, tenantID, alertType, sensorID string) (*alerts.Alert, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("alert repo: nil db")
	}
	if tenantID == "" || alertType == "" {
		return nil, errors.New("alert repo: invalid query")
	}
	query := fmt.Sprintf(`
SELECT %s
FROM %s
WHERE tenant_id = $1 AND type = $2 AND COALESCE(sensor_id, '') = $3
	AND status IN ('open', 'acknowledged')
ORDER BY updated_at DESC
LIMIT 1`, alertColumns, r.table)
	row := r.db.QueryRowContext(ctx, query, tenantID, alertType, sensorID)
	return scanAlert(row)
}

// GetByID fetches an alert by id.
func (r *AlertRepository) GetByID(ctx context.Context, id string) (*alerts.Alert, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("alert repo: nil db")
	}
	query := fmt.Sprintf(`
SELECT %s
FROM %s
WHERE id = $1`, alertColumns, r.table)
	return scanAlert(r.db.QueryRowContext(ctx, query, id))
}

// Create inserts a new alert together with its OPEN audit event.
func (r *AlertRepository) Create(ctx context.Context, alert *alerts.Alert, event *alerts.AlertEvent) error {
	if r == nil || r.db == nil {
		return errors.New("alert repo: nil db")
	}
	if alert == nil {
		return alerts.ErrNilAlert
	}
	if err := alert.Validate(); err != nil {
		return err
	}
	return r.inTx(ctx, func(tx *sql.Tx) error {
		query := fmt.Sprintf(`
INSERT INTO %s (
	id, tenant_id, site_id, zone_id, sensor_id, gateway_id, type, severity, status,
	title, message, metadata, assignee,
	opened_at, first_detected_at, last_detected_at, acked_at, resolved_at, sla_due_at,
	created_at, updated_at
) VALUES (
	$1, $2, $3, $4, $5, $6, $7, $8, $9,
	$10, $11, $12, $13,
	$14, $15, $16, $17, $18, $19,
	$20, $21
)`, r.table)
		if _, err := tx.ExecContext(ctx, query,
			alert.ID,
			alert.TenantID,
			nullableString(alert.SiteID),
			nullableString(alert.ZoneID),
			nullableString(alert.SensorID),
			nullableString(alert.GatewayID),
			alert.Type,
			alert.Severity,
			alert.Status,
			alert.Title,
			alert.Message,
			nullableJSON(alert.Metadata),
			nullableString(alert.Assignee),
			alert.OpenedAt,
			alert.FirstDetectedAt,
			alert.LastDetectedAt,
			nullableTime(alert.AckedAt),
			nullableTime(alert.ResolvedAt),
			nullableTime(alert.SLADueAt),
			alert.CreatedAt,
			alert.UpdatedAt,
		); err != nil {
			return err
		}
		return insertEvent(ctx, tx, r.eventsTable, event)
	})
}

// Refresh updates the mutable detection fields in place and appends the
// UPDATE audit event. Status and opened_at are deliberately untouched so an
// acknowledged alert stays acknowledged across re-detections.
func (r *AlertRepository) Refresh(ctx context.Context, alert *alerts.Alert, event *alerts.AlertEvent) error {
	if r == nil || r.db == nil {
		return errors.New("alert repo: nil db")
	}
	if alert == nil {
		return alerts.ErrNilAlert
	}
	return r.inTx(ctx, func(tx *sql.Tx) error {
		query := fmt.Sprintf(`
UPDATE %s
SET severity = $1, title = $2, message = $3, metadata = $4,
	last_detected_at = $5, updated_at = $6
WHERE id = $7`, r.table)
		if _, err := tx.ExecContext(ctx, query,
			alert.Severity,
			alert.Title,
			alert.Message,
			nullableJSON(alert.Metadata),
			alert.LastDetectedAt,
			alert.UpdatedAt,
			alert.ID,
		); err != nil {
			return err
		}
		return insertEvent(ctx, tx, r.eventsTable, event)
	})
}

// MarkAcknowledged transitions an alert to acknowledged.
func (r *AlertRepository) MarkAcknowledged(ctx context.Context, id string, ackedAt time.Time, event *alerts.AlertEvent) error {
	if r == nil || r.db == nil {
		return errors.New("alert repo: nil db")
	}
	return r.inTx(ctx, func(tx *sql.Tx) error {
		query := fmt.Sprintf(`
UPDATE %s
SET status = $1, acked_at = $2, updated_at = $3
WHERE id = $4`, r.table)
		if _, err := tx.ExecContext(ctx, query, alerts.StatusAcknowledged, ackedAt, ackedAt, id); err != nil {
			return err
		}
		return insertEvent(ctx, tx, r.eventsTable, event)
	})
}

// MarkAssigned sets the assignee.
func (r *AlertRepository) MarkAssigned(ctx context.Context, id, assignee string, updatedAt time.Time, event *alerts.AlertEvent) error {
	if r == nil || r.db == nil {
		return errors.New("alert repo: nil db")
	}
	return r.inTx(ctx, func(tx *sql.Tx) error {
		query := fmt.Sprintf(`
UPDATE %s
SET assignee = $1, updated_at = $2
WHERE id = $3`, r.table)
		if _, err := tx.ExecContext(ctx, query, assignee, updatedAt, id); err != nil {
			return err
		}
		return insertEvent(ctx, tx, r.eventsTable, event)
	})
}

// MarkResolved transitions an alert to resolved.
func (r *AlertRepository) MarkResolved(ctx context.Context, id string, resolvedAt time.Time, event *alerts.AlertEvent) error {
	if r == nil || r.db == nil {
		return errors.New("alert repo: nil db")
	}
	return r.inTx(ctx, func(tx *sql.Tx) error {
		query := fmt.Sprintf(`
UPDATE %s
SET status = $1, resolved_at = $2, updated_at = $3
WHERE id = $4`, r.table)
		if _, err := tx.ExecContext(ctx, query, alerts.StatusResolved, resolvedAt, resolvedAt, id); err != nil {
			return err
		}
		return insertEvent(ctx, tx, r.eventsTable, event)
	})
}

// ListByTenant lists alerts for a tenant matching the filter, newest first.
func (r *AlertRepository) ListByTenant(ctx context.Context, tenantID string, filter alerts.ListFilter) ([]alerts.Alert, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("alert repo: nil db")
	}
	if tenantID == "" {
		return nil, alerts.ErrEmptyTenantID
	}

	query := fmt.Sprintf(`
SELECT %s
FROM %s
WHERE tenant_id = $1`, alertColumns, r.table)
	args := []any{tenantID}
	if filter.Status != "" {
		args = append(args, filter.Status)
		query += fmt.Sprintf(" AND status = $%d", len(args))
	}
	if filter.Type != "" {
		args = append(args, filter.Type)
		query += fmt.Sprintf(" AND type = $%d", len(args))
	}
	if filter.SensorID != "" {
		args = append(args, filter.SensorID)
		query += fmt.Sprintf(" AND sensor_id = $%d", len(args))
	}
	if filter.ZoneID != "" {
		args = append(args, filter.ZoneID)
		query += fmt.Sprintf(" AND zone_id = $%d", len(args))
	}
	query += " ORDER BY updated_at DESC"
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []alerts.Alert
	for rows.Next() {
		alert, err := scanAlert(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *alert)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *AlertRepository) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

const alertColumns = `id, tenant_id, site_id, zone_id, sensor_id, gateway_id, type, severity, status,
	title, message, metadata, assignee,
	opened_at, first_detected_at, last_detected_at, acked_at, resolved_at, sla_due_at,
	created_at, updated_at`

type alertScanner interface {
	Scan(dest ...any) error
}

func scanAlert(row alertScanner) (*alerts.Alert, error) {
	var alert alerts.Alert
	var siteID, zoneID, sensorID, gatewayID, assignee sql.NullString
	var metadata []byte
	var ackedAt, resolvedAt, slaDueAt sql.NullTime
	if err := row.Scan(
		&alert.ID,
		&alert.TenantID,
		&siteID,
		&zoneID,
		&sensorID,
		&gatewayID,
		&alert.Type,
		&alert.Severity,
		&alert.Status,
		&alert.Title,
		&alert.Message,
		&metadata,
		&assignee,
		&alert.OpenedAt,
		&alert.FirstDetectedAt,
		&alert.LastDetectedAt,
		&ackedAt,
		&resolvedAt,
		&slaDueAt,
		&alert.CreatedAt,
		&alert.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	alert.SiteID = siteID.String
	alert.ZoneID = zoneID.String
	alert.SensorID = sensorID.String
	alert.GatewayID = gatewayID.String
	alert.Assignee = assignee.String
	alert.Metadata = metadata
	alert.OpenedAt = alert.OpenedAt.UTC()
	alert.FirstDetectedAt = alert.FirstDetectedAt.UTC()
	alert.LastDetectedAt = alert.LastDetectedAt.UTC()
	alert.CreatedAt = alert.CreatedAt.UTC()
	alert.UpdatedAt = alert.UpdatedAt.UTC()
	if ackedAt.Valid {
		alert.AckedAt = ackedAt.Time.UTC()
	}
	if resolvedAt.Valid {
		alert.ResolvedAt = resolvedAt.Time.UTC()
	}
	if slaDueAt.Valid {
		alert.SLADueAt = slaDueAt.Time.UTC()
	}
	return &alert, nil
}

func nullableString(value string) sql.NullString {
	if value == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: value, Valid: true}
}

func nullableTime(value time.Time) sql.NullTime {
	if value.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: value, Valid: true}
}

func nullableJSON(value []byte) any {
	if len(value) == 0 {
		return nil
	}
	return value
}
