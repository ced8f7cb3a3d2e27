package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	masterdata "sitewatch-cloud/internal/masterdata/domain"
)

const defaultSensorsTable = "sensors"

// DBTX abstracts *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// SensorRepository is a Postgres implementation for the sensor directory.
type SensorRepository struct {
	db    DBTX
	table string
}

// NewSensorRepository constructs a repository.
func NewSensorRepository(db DBTX, opts ...SensorOption) *SensorRepository {
	repo := &SensorRepository{db: db, table: defaultSensorsTable}
	for _, opt := range opts {
		opt(repo)
	}
	return repo
}

// SensorOption configures the repository.
type SensorOption func(*SensorRepository)

// WithSensorTable overrides the default table name.
func WithSensorTable(table string) SensorOption {
	return func(repo *SensorRepository) {
		if table != "" {
			repo.table = table
		}
	}
}

// ListBound returns bay-bound sensors for a tenant, optionally scoped to a zone.
func (r *SensorRepository) ListBound(ctx context.Context, tenantID, zoneID string) ([]masterdata.Sensor, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("sensor repo: nil db")
	}
	if tenantID == "" {
		return nil, errors.New("sensor repo: empty tenant id")
	}

	query := fmt.Sprintf(`
SELECT id, tenant_id, site_id, zone_id, bay_id, gateway_id, name, model,
	installed_at, last_seen_at, last_battery_percent, created_at, updated_at
FROM %s
WHERE tenant_id = $1 AND bay_id IS NOT NULL AND bay_id <> ''`, r.table)
	args := []any{tenantID}
	if zoneID != "" {
		query += " AND zone_id = $2"
		args = append(args, zoneID)
	}
	query += " ORDER BY id ASC"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []masterdata.Sensor
	for rows.Next() {
		sensor, err := scanSensor(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *sensor)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// Get loads one sensor by id.
func (r *SensorRepository) Get(ctx context.Context, id string) (*masterdata.Sensor, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("sensor repo: nil db")
	}
	if id == "" {
		return nil, errors.New("sensor repo: empty id")
	}
	query := fmt.Sprintf(`
SELECT id, tenant_id, site_id, zone_id, bay_id, gateway_id, name, model,
	installed_at, last_seen_at, last_battery_percent, created_at, updated_at
FROM %s
WHERE id = $1
LIMIT 1`, r.table)
	return scanSensor(r.db.QueryRowContext(ctx, query, id))
}

type sensorScanner interface {
	Scan(dest ...any) error
}

func scanSensor(row sensorScanner) (*masterdata.Sensor, error) {
	var sensor masterdata.Sensor
	var siteID, zoneID, bayID, gatewayID, name, model sql.NullString
	var installedAt, lastSeenAt sql.NullTime
	var battery sql.NullFloat64
	if err := row.Scan(
		&sensor.ID,
		&sensor.TenantID,
		&siteID,
		&zoneID,
		&bayID,
		&gatewayID,
		&name,
		&model,
		&installedAt,
		&lastSeenAt,
		&battery,
		&sensor.CreatedAt,
		&sensor.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	sensor.SiteID = siteID.String
	sensor.ZoneID = zoneID.String
	sensor.BayID = bayID.String
	sensor.GatewayID = gatewayID.String
	sensor.Name = name.String
	sensor.Model = model.String
	if installedAt.Valid {
		sensor.InstalledAt = installedAt.Time.UTC()
	}
	if lastSeenAt.Valid {
		seen := lastSeenAt.Time.UTC()
		sensor.LastSeenAt = &seen
	}
	if battery.Valid {
		value := battery.Float64
		sensor.LastBatteryPercent = &value
	}
	sensor.CreatedAt = sensor.CreatedAt.UTC()
	sensor.UpdatedAt = sensor.UpdatedAt.UTC()
	return &sensor, nil
}
