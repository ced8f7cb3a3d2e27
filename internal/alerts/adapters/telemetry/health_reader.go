package telemetry

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	alerts "sitewatch-cloud/internal/alerts/domain"
	masterdata "sitewatch-cloud/internal/masterdata/domain"
)

const defaultTelemetryTable = "telemetry_events"

const batteryLookbackDays = 7

// HealthReader computes per-sensor health snapshots from the raw telemetry
// store. Each metric is one batched query across all sensors in the scan;
// the per-sensor reduction happens in Go. A sensor with no telemetry yields
// a snapshot with null derived fields rather than an error.
type HealthReader struct {
	db    *sql.DB
	table string
}

// NewHealthReader constructs a reader.
func NewHealthReader(db *sql.DB, opts ...ReaderOption) *HealthReader {
	reader := &HealthReader{db: db, table: defaultTelemetryTable}
	for _, opt := range opts {
		opt(reader)
	}
	return reader
}

// ReaderOption configures the reader.
type ReaderOption func(*HealthReader)

// WithTelemetryTable overrides the default table name.
func WithTelemetryTable(table string) ReaderOption {
	return func(reader *HealthReader) {
		if table != "" {
			reader.table = table
		}
	}
}

// Collect returns one snapshot per given sensor.
func (r *HealthReader) Collect(ctx context.Context, tenantID string, sensors []masterdata.Sensor, t alerts.Thresholds, now time.Time) ([]alerts.HealthSnapshot, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("health reader: nil db")
	}
	if tenantID == "" {
		return nil, errors.New("health reader: empty tenant id")
	}
	if len(sensors) == 0 {
		return nil, nil
	}

	ids := make([]string, 0, len(sensors))
	for _, sensor := range sensors {
		ids = append(ids, sensor.ID)
	}

	lastSeen, err := r.queryLastSeen(ctx, tenantID, ids)
	if err != nil {
		return nil, err
	}
	signals, err := r.querySignal(ctx, tenantID, ids, now.Add(-time.Duration(t.SignalLookbackHours*float64(time.Hour))))
	if err != nil {
		return nil, err
	}
	batteries, err := r.queryBatterySamples(ctx, tenantID, ids, now.AddDate(0, 0, -batteryLookbackDays))
	if err != nil {
		return nil, err
	}
	occupancies, err := r.queryOccupancySamples(ctx, tenantID, ids, now.Add(-time.Duration(t.FlappingWindowMinutes*float64(time.Minute))))
	if err != nil {
		return nil, err
	}

	snapshots := make([]alerts.HealthSnapshot, 0, len(sensors))
	for _, sensor := range sensors {
		snapshot := alerts.HealthSnapshot{
			SensorID:       sensor.ID,
			DaysInService:  sensor.DaysInServiceAt(now),
			BatteryPercent: sensor.LastBatteryPercent,
			FlapCount:      alerts.CountFlaps(occupancies[sensor.ID]),
		}
		if seen, ok := lastSeen[sensor.ID]; ok {
			at := seen.at
			snapshot.LastSeenAt = &at
			snapshot.LastRSSI = seen.rssi
			snapshot.LastSNR = seen.snr
		}
		snapshot.AgeMinutes = alerts.AgeMinutesAt(snapshot.LastSeenAt, now)
		if signal, ok := signals[sensor.ID]; ok {
			snapshot.AvgRSSI = signal.avgRSSI
			snapshot.AvgSNR = signal.avgSNR
			snapshot.SignalSamples = signal.samples
		}
		if rate, ok := alerts.DrainRatePerDay(batteries[sensor.ID]); ok {
			snapshot.BatteryDrainPerDay = &rate
		}
		snapshots = append(snapshots, snapshot)
	}
	return snapshots, nil
}

type lastReading struct {
	at   time.Time
	rssi *float64
	snr  *float64
}

func (r *HealthReader) queryLastSeen(ctx context.Context, tenantID string, ids []string) (map[string]lastReading, error) {
	query := fmt.Sprintf(`
SELECT DISTINCT ON (sensor_id) sensor_id, ts, rssi, snr
FROM %s
WHERE tenant_id = $1 AND sensor_id = ANY($2)
ORDER BY sensor_id, ts DESC`, r.table)

	rows, err := r.db.QueryContext(ctx, query, tenantID, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make(map[string]lastReading)
	for rows.Next() {
		var sensorID string
		var ts time.Time
		var rssi, snr sql.NullFloat64
		if err := rows.Scan(&sensorID, &ts, &rssi, &snr); err != nil {
			return nil, err
		}
		result[sensorID] = lastReading{
			at:   ts.UTC(),
			rssi: floatPtr(rssi),
			snr:  floatPtr(snr),
		}
	}
	return result, rows.Err()
}

type signalAggregate struct {
	avgRSSI *float64
	avgSNR  *float64
	samples int
}

func (r *HealthReader) querySignal(ctx context.Context, tenantID string, ids []string, since time.Time) (map[string]signalAggregate, error) {
	query := fmt.Sprintf(`
SELECT sensor_id, AVG(rssi), AVG(snr),
	COUNT(*) FILTER (WHERE rssi IS NOT NULL OR snr IS NOT NULL)
FROM %s
WHERE tenant_id = $1 AND sensor_id = ANY($2) AND ts >= $3
GROUP BY sensor_id`, r.table)

	rows, err := r.db.QueryContext(ctx, query, tenantID, ids, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make(map[string]signalAggregate)
	for rows.Next() {
		var sensorID string
		var avgRSSI, avgSNR sql.NullFloat64
		var samples int
		if err := rows.Scan(&sensorID, &avgRSSI, &avgSNR, &samples); err != nil {
			return nil, err
		}
		result[sensorID] = signalAggregate{
			avgRSSI: floatPtr(avgRSSI),
			avgSNR:  floatPtr(avgSNR),
			samples: samples,
		}
	}
	return result, rows.Err()
}

func (r *HealthReader) queryBatterySamples(ctx context.Context, tenantID string, ids []string, since time.Time) (map[string][]alerts.BatterySample, error) {
	query := fmt.Sprintf(`
SELECT sensor_id, ts, battery_percent
FROM %s
WHERE tenant_id = $1 AND sensor_id = ANY($2) AND ts >= $3 AND battery_percent IS NOT NULL
ORDER BY sensor_id, ts ASC`, r.table)

	rows, err := r.db.QueryContext(ctx, query, tenantID, ids, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make(map[string][]alerts.BatterySample)
	for rows.Next() {
		var sensorID string
		var ts time.Time
		var percent float64
		if err := rows.Scan(&sensorID, &ts, &percent); err != nil {
			return nil, err
		}
		result[sensorID] = append(result[sensorID], alerts.BatterySample{At: ts.UTC(), Percent: percent})
	}
	return result, rows.Err()
}

func (r *HealthReader) queryOccupancySamples(ctx context.Context, tenantID string, ids []string, since time.Time) (map[string][]alerts.OccupancySample, error) {
	query := fmt.Sprintf(`
SELECT sensor_id, ts, occupied
FROM %s
WHERE tenant_id = $1 AND sensor_id = ANY($2) AND ts >= $3
ORDER BY sensor_id, ts ASC`, r.table)

	rows, err := r.db.QueryContext(ctx, query, tenantID, ids, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make(map[string][]alerts.OccupancySample)
	for rows.Next() {
		var sensorID string
		var ts time.Time
		var occupied sql.NullBool
		if err := rows.Scan(&sensorID, &ts, &occupied); err != nil {
			return nil, err
		}
		sample := alerts.OccupancySample{At: ts.UTC()}
		if occupied.Valid {
			value := occupied.Bool
			sample.Occupied = &value
		}
		result[sensorID] = append(result[sensorID], sample)
	}
	return result, rows.Err()
}

func floatPtr(value sql.NullFloat64) *float64 {
	if !value.Valid {
		return nil
	}
	v := value.Float64
	return &v
}
