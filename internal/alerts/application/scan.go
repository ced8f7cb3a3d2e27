package application

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	alerts "sitewatch-cloud/internal/alerts/domain"
	masterdata "sitewatch-cloud/internal/masterdata/domain"
	"sitewatch-cloud/internal/observability/metrics"
)

// ScanResult is the scan's contract with its caller. Counts reflect only work
// that was actually persisted.
type ScanResult struct {
	TenantID       string            `json:"tenant_id"`
	ZoneID         string            `json:"zone_id,omitempty"`
	Created        int               `json:"created"`
	Updated        int               `json:"updated"`
	Resolved       int               `json:"resolved"`
	CheckedSensors int               `json:"checked_sensors"`
	FailedSensors  int               `json:"failed_sensors"`
	Thresholds     alerts.Thresholds `json:"thresholds"`
	StartedAt      time.Time         `json:"started_at"`
	FinishedAt     time.Time         `json:"finished_at"`
}

// RunScan reconciles alert state for one tenant, optionally scoped to a zone.
// Conditions per sensor are evaluated in a fixed order (offline, battery,
// signal, flapping) for deterministic audit readability. A persistence
// failure skips the rest of that sensor's conditions but not the batch;
// directory or telemetry read failures abort the scan.
func (s *Service) RunScan(ctx context.Context, tenantID, zoneID, actingUserID string) (*ScanResult, error) {
	if s == nil {
		return nil, errors.New("alerts: nil service")
	}
	if tenantID == "" {
		return nil, alerts.ErrEmptyTenantID
	}
	_ = actingUserID // attribution for manually triggered scans is recorded by the HTTP layer

	start := s.clock.Now().UTC()
	result := &ScanResult{TenantID: tenantID, ZoneID: zoneID, StartedAt: start}

	overrides, err := s.settings.ThresholdOverrides(ctx, tenantID)
	if err != nil {
		metrics.ObserveScan(metrics.ResultError, s.clock.Now().UTC().Sub(start))
		return nil, fmt.Errorf("alerts: read threshold overrides: %w", err)
	}
	thresholds := alerts.ResolveThresholds(overrides)
	result.Thresholds = thresholds

	sensors, err := s.sensors.ListBound(ctx, tenantID, zoneID)
	if err != nil {
		metrics.ObserveScan(metrics.ResultError, s.clock.Now().UTC().Sub(start))
		return nil, fmt.Errorf("alerts: list sensors: %w", err)
	}

	snapshots, err := s.health.Collect(ctx, tenantID, sensors, thresholds, start)
	if err != nil {
		metrics.ObserveScan(metrics.ResultError, s.clock.Now().UTC().Sub(start))
		return nil, fmt.Errorf("alerts: collect health metrics: %w", err)
	}
	byID := make(map[string]alerts.HealthSnapshot, len(snapshots))
	for _, snapshot := range snapshots {
		byID[snapshot.SensorID] = snapshot
	}

	for _, sensor := range sensors {
		if ctx.Err() != nil {
			result.FinishedAt = s.clock.Now().UTC()
			metrics.ObserveScan(metrics.ResultError, result.FinishedAt.Sub(start))
			return result, ctx.Err()
		}
		snapshot := byID[sensor.ID]
		snapshot.SensorID = sensor.ID
		metrics.ObserveHealthScore(alerts.HealthScore(snapshot, thresholds))
		if err := s.scanSensor(ctx, sensor, snapshot, thresholds, result); err != nil {
			result.FailedSensors++
			continue
		}
		result.CheckedSensors++
	}

	if err := s.scanDeadLetters(ctx, tenantID, thresholds, result); err != nil {
		result.FinishedAt = s.clock.Now().UTC()
		metrics.ObserveScan(metrics.ResultError, result.FinishedAt.Sub(start))
		return result, err
	}

	result.FinishedAt = s.clock.Now().UTC()
	metrics.ObserveScan(metrics.ResultSuccess, result.FinishedAt.Sub(start))
	metrics.AddScanOutcome(result.Created, result.Updated, result.Resolved, result.FailedSensors)
	return result, nil
}

func (s *Service) scanSensor(ctx context.Context, sensor masterdata.Sensor, snapshot alerts.HealthSnapshot, t alerts.Thresholds, result *ScanResult) error {
	if err := s.checkOffline(ctx, sensor, snapshot, t, result); err != nil {
		return err
	}
	if err := s.checkBattery(ctx, sensor, snapshot, t, result); err != nil {
		return err
	}
	if err := s.checkSignal(ctx, sensor, snapshot, t, result); err != nil {
		return err
	}
	return s.checkFlapping(ctx, sensor, snapshot, t, result)
}

func (s *Service) checkOffline(ctx context.Context, sensor masterdata.Sensor, snapshot alerts.HealthSnapshot, t alerts.Thresholds, result *ScanResult) error {
	offline := snapshot.AgeMinutes == nil || *snapshot.AgeMinutes > t.OfflineTimeoutMinutes
	if !offline {
		return s.resolveCondition(ctx, sensor.TenantID, alerts.TypeSensorOffline, sensor.ID, "telemetry received within the offline timeout", result)
	}
	message := "Sensor has never reported telemetry"
	if snapshot.AgeMinutes != nil {
		message = fmt.Sprintf("No telemetry for %.0f minutes (timeout %.0f minutes)", *snapshot.AgeMinutes, t.OfflineTimeoutMinutes)
	}
	return s.detectCondition(ctx, sensor, detection{
		alertType: alerts.TypeSensorOffline,
		severity:  alerts.SeverityCritical,
		title:     "Sensor offline",
		message:   message,
		metadata: mustJSON(map[string]any{
			"age_minutes":             jsonFloat(snapshot.AgeMinutes),
			"offline_timeout_minutes": t.OfflineTimeoutMinutes,
		}),
		sla: t.SLAFor(alerts.SeverityCritical),
	}, result)
}

func (s *Service) checkBattery(ctx context.Context, sensor masterdata.Sensor, snapshot alerts.HealthSnapshot, t alerts.Thresholds, result *ScanResult) error {
	low := snapshot.BatteryPercent != nil && *snapshot.BatteryPercent <= t.LowBatteryPercent
	if !low {
		return s.resolveCondition(ctx, sensor.TenantID, alerts.TypeLowBattery, sensor.ID, "battery above the configured floor", result)
	}
	severity := alerts.BatterySeverity(*snapshot.BatteryPercent, t.LowBatteryPercent)
	return s.detectCondition(ctx, sensor, detection{
		alertType: alerts.TypeLowBattery,
		severity:  severity,
		title:     "Low battery",
		message:   fmt.Sprintf("Battery at %.0f%% (floor %.0f%%)", *snapshot.BatteryPercent, t.LowBatteryPercent),
		metadata: mustJSON(map[string]any{
			"battery_percent":     *snapshot.BatteryPercent,
			"low_battery_percent": t.LowBatteryPercent,
			"drain_per_day":       jsonFloat(snapshot.BatteryDrainPerDay),
		}),
		sla: t.SLAFor(severity),
	}, result)
}

func (s *Service) checkSignal(ctx context.Context, sensor masterdata.Sensor, snapshot alerts.HealthSnapshot, t alerts.Thresholds, result *ScanResult) error {
	// Too few samples is insufficient evidence, not a poor-signal condition.
	enough := snapshot.SignalSamples >= t.SignalMinSamples
	poorRSSI := snapshot.AvgRSSI != nil && *snapshot.AvgRSSI <= t.RSSIFloorDBm
	poorSNR := snapshot.AvgSNR != nil && *snapshot.AvgSNR <= t.SNRFloorDB
	if !enough || (!poorRSSI && !poorSNR) {
		return s.resolveCondition(ctx, sensor.TenantID, alerts.TypePoorSignal, sensor.ID, "signal quality back above the configured floors", result)
	}
	return s.detectCondition(ctx, sensor, detection{
		alertType: alerts.TypePoorSignal,
		severity:  alerts.SeverityWarning,
		title:     "Poor signal",
		message: fmt.Sprintf("Average RSSI %s dBm / SNR %s dB over %d samples in the last %.0f hours",
			formatFloat(snapshot.AvgRSSI), formatFloat(snapshot.AvgSNR), snapshot.SignalSamples, t.SignalLookbackHours),
		metadata: mustJSON(map[string]any{
			"avg_rssi":       jsonFloat(snapshot.AvgRSSI),
			"avg_snr":        jsonFloat(snapshot.AvgSNR),
			"signal_samples": snapshot.SignalSamples,
			"rssi_floor_dbm": t.RSSIFloorDBm,
			"snr_floor_db":   t.SNRFloorDB,
		}),
		sla: t.SLAFor(alerts.SeverityWarning),
	}, result)
}

func (s *Service) checkFlapping(ctx context.Context, sensor masterdata.Sensor, snapshot alerts.HealthSnapshot, t alerts.Thresholds, result *ScanResult) error {
	flapping := t.FlappingMaxChanges > 0 && snapshot.FlapCount >= t.FlappingMaxChanges
	if !flapping {
		return s.resolveCondition(ctx, sensor.TenantID, alerts.TypeFlapping, sensor.ID, "occupancy state stable within the flapping window", result)
	}
	return s.detectCondition(ctx, sensor, detection{
		alertType: alerts.TypeFlapping,
		severity:  alerts.SeverityWarning,
		title:     "Occupancy flapping",
		message:   fmt.Sprintf("%d occupancy changes in %.0f minutes (max %d)", snapshot.FlapCount, t.FlappingWindowMinutes, t.FlappingMaxChanges),
		metadata: mustJSON(map[string]any{
			"flap_count":              snapshot.FlapCount,
			"flapping_window_minutes": t.FlappingWindowMinutes,
			"flapping_max_changes":    t.FlappingMaxChanges,
		}),
		sla: t.SLAFor(alerts.SeverityWarning),
	}, result)
}

// scanDeadLetters runs the single tenant-scoped ingestion check. The alert
// key uses an empty sensor id.
func (s *Service) scanDeadLetters(ctx context.Context, tenantID string, t alerts.Thresholds, result *ScanResult) error {
	since := s.clock.Now().UTC().Add(-time.Duration(t.DeadLetterWindowMinutes * float64(time.Minute)))
	count, err := s.deadLetters.CountSince(ctx, tenantID, since)
	if err != nil {
		return fmt.Errorf("alerts: count dead letters: %w", err)
	}
	severity := alerts.DeadLetterSeverity(count, t.DeadLettersWarning, t.DeadLettersCritical)
	if severity == "" {
		return s.resolveCondition(ctx, tenantID, alerts.TypeDecodeErrors, "", "dead-letter volume below the warning band", result)
	}
	created, err := s.openOrUpdate(ctx, detection{
		tenantID:  tenantID,
		alertType: alerts.TypeDecodeErrors,
		severity:  severity,
		title:     "Ingestion decode errors",
		message:   fmt.Sprintf("%d dead-lettered messages in the last %.0f minutes", count, t.DeadLetterWindowMinutes),
		metadata: mustJSON(map[string]any{
			"dead_letter_count":          count,
			"dead_letter_window_minutes": t.DeadLetterWindowMinutes,
			"dead_letters_warning":       t.DeadLettersWarning,
			"dead_letters_critical":      t.DeadLettersCritical,
		}),
		sla: t.SLAFor(severity),
	})
	if err != nil {
		return err
	}
	if created {
		result.Created++
	} else {
		result.Updated++
	}
	return nil
}

func (s *Service) detectCondition(ctx context.Context, sensor masterdata.Sensor, d detection, result *ScanResult) error {
	d.tenantID = sensor.TenantID
	d.sensorID = sensor.ID
	d.siteID = sensor.SiteID
	d.zoneID = sensor.ZoneID
	d.gatewayID = sensor.GatewayID
	created, err := s.openOrUpdate(ctx, d)
	if err != nil {
		return err
	}
	if created {
		result.Created++
	} else {
		result.Updated++
	}
	return nil
}

func (s *Service) resolveCondition(ctx context.Context, tenantID, alertType, sensorID, note string, result *ScanResult) error {
	resolved, err := s.autoResolve(ctx, tenantID, alertType, sensorID, note)
	if err != nil {
		return err
	}
	if resolved {
		result.Resolved++
	}
	return nil
}

func mustJSON(value map[string]any) json.RawMessage {
	data, err := json.Marshal(value)
	if err != nil {
		return nil
	}
	return data
}

func jsonFloat(value *float64) any {
	if value == nil {
		return nil
	}
	return *value
}

func formatFloat(value *float64) string {
	if value == nil {
		return "n/a"
	}
	return fmt.Sprintf("%.1f", *value)
}
