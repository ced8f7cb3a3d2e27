package masterdata

import (
	"context"
	"errors"
	"time"
)

// Sensor represents a monitored device in the directory. The directory is
// maintained by the ingestion pipeline and is read-only to the alert engine.
type Sensor struct {
	ID                 string
	TenantID           string
	SiteID             string
	ZoneID             string
	BayID              string
	GatewayID          string
	Name               string
	Model              string
	InstalledAt        time.Time
	LastSeenAt         *time.Time
	LastBatteryPercent *float64
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// Bound reports whether the sensor is attached to a physical bay/slot.
// Unbound sensors are excluded from health scans.
func (s Sensor) Bound() bool {
	return s.BayID != ""
}

// DaysInServiceAt returns the whole days since installation, zero when the
// install date is unknown.
func (s Sensor) DaysInServiceAt(now time.Time) float64 {
	if s.InstalledAt.IsZero() {
		return 0
	}
	days := now.Sub(s.InstalledAt).Hours() / 24
	if days < 0 {
		return 0
	}
	return days
}

// Validate checks sensor invariants.
func (s Sensor) Validate() error {
	if s.ID == "" {
		return errors.New("sensor: empty id")
	}
	if s.TenantID == "" {
		return errors.New("sensor: empty tenant id")
	}
	return nil
}

// SensorRepository reads the sensor directory.
type SensorRepository interface {
	ListBound(ctx context.Context, tenantID, zoneID string) ([]Sensor, error)
	Get(ctx context.Context, id string) (*Sensor, error)
}
