package application

import (
	"context"
	"errors"
	"fmt"

	alerts "sitewatch-cloud/internal/alerts/domain"
)

// SensorHealth pairs a sensor's derived snapshot with its informational score
// and enough directory context to render it.
type SensorHealth struct {
	SensorID string                `json:"sensor_id"`
	SiteID   string                `json:"site_id,omitempty"`
	ZoneID   string                `json:"zone_id,omitempty"`
	BayID    string                `json:"bay_id,omitempty"`
	Name     string                `json:"name,omitempty"`
	Snapshot alerts.HealthSnapshot `json:"snapshot"`
	Score    int                   `json:"score"`
}

// ListSensorHealth computes a snapshot and score for every bay-bound sensor
// of the tenant, optionally scoped to a zone. It reuses the scan's read path
// but persists nothing.
func (s *Service) ListSensorHealth(ctx context.Context, tenantID, zoneID string) ([]SensorHealth, error) {
	if s == nil {
		return nil, errors.New("alerts: nil service")
	}
	if tenantID == "" {
		return nil, alerts.ErrEmptyTenantID
	}

	overrides, err := s.settings.ThresholdOverrides(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("alerts: read threshold overrides: %w", err)
	}
	thresholds := alerts.ResolveThresholds(overrides)

	sensors, err := s.sensors.ListBound(ctx, tenantID, zoneID)
	if err != nil {
		return nil, fmt.Errorf("alerts: list sensors: %w", err)
	}

	now := s.clock.Now().UTC()
	snapshots, err := s.health.Collect(ctx, tenantID, sensors, thresholds, now)
	if err != nil {
		return nil, fmt.Errorf("alerts: collect health metrics: %w", err)
	}
	byID := make(map[string]alerts.HealthSnapshot, len(snapshots))
	for _, snapshot := range snapshots {
		byID[snapshot.SensorID] = snapshot
	}

	result := make([]SensorHealth, 0, len(sensors))
	for _, sensor := range sensors {
		snapshot := byID[sensor.ID]
		snapshot.SensorID = sensor.ID
		result = append(result, SensorHealth{
			SensorID: sensor.ID,
			SiteID:   sensor.SiteID,
			ZoneID:   sensor.ZoneID,
			BayID:    sensor.BayID,
			Name:     sensor.Name,
			Snapshot: snapshot,
			Score:    alerts.HealthScore(snapshot, thresholds),
		})
	}
	return result, nil
}
