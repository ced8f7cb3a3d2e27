package alerts

import (
	"encoding/json"
	"errors"
	"time"
)

const (
	StatusOpen         = "open"
	StatusAcknowledged = "acknowledged"
	StatusResolved     = "resolved"
)

const (
	TypeSensorOffline = "SENSOR_OFFLINE"
	TypeLowBattery    = "LOW_BATTERY"
	TypePoorSignal    = "POOR_SIGNAL"
	TypeFlapping      = "FLAPPING"
	TypeDecodeErrors  = "DECODE_ERRORS"
)

const (
	SeverityInfo     = "INFO"
	SeverityWarning  = "WARNING"
	SeverityCritical = "CRITICAL"
)

// Alert is a deduplicated, stateful record of one health condition.
// At most one non-resolved alert exists per (tenant, type, sensor) key;
// SensorID is empty for tenant-level conditions such as DECODE_ERRORS.
type Alert struct {
	ID              string          `json:"id"`
	TenantID        string          `json:"tenant_id"`
	SiteID          string          `json:"site_id,omitempty"`
	ZoneID          string          `json:"zone_id,omitempty"`
	SensorID        string          `json:"sensor_id,omitempty"`
	GatewayID       string          `json:"gateway_id,omitempty"`
	Type            string          `json:"type"`
	Severity        string          `json:"severity"`
	Status          string          `json:"status"`
	Title           string          `json:"title"`
	Message         string          `json:"message"`
	Metadata        json.RawMessage `json:"metadata,omitempty"`
	Assignee        string          `json:"assignee,omitempty"`
	OpenedAt        time.Time       `json:"opened_at"`
	FirstDetectedAt time.Time       `json:"first_detected_at"`
	LastDetectedAt  time.Time       `json:"last_detected_at"`
	AckedAt         time.Time       `json:"acked_at,omitempty"`
	ResolvedAt      time.Time       `json:"resolved_at,omitempty"`
	SLADueAt        time.Time       `json:"sla_due_at,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// Active reports whether the alert still counts against the dedup key.
func (a Alert) Active() bool {
	return a.Status == StatusOpen || a.Status == StatusAcknowledged
}

// Validate checks alert invariants before persistence.
func (a Alert) Validate() error {
	if a.ID == "" {
		return errors.New("alert: empty id")
	}
	if a.TenantID == "" {
		return errors.New("alert: empty tenant id")
	}
	if !ValidType(a.Type) {
		return errors.New("alert: invalid type")
	}
	if !ValidSeverity(a.Severity) {
		return errors.New("alert: invalid severity")
	}
	if !ValidStatus(a.Status) {
		return errors.New("alert: invalid status")
	}
	return nil
}

// ValidType returns true for a supported alert type.
func ValidType(value string) bool {
	switch value {
	case TypeSensorOffline, TypeLowBattery, TypePoorSignal, TypeFlapping, TypeDecodeErrors:
		return true
	default:
		return false
	}
}

// ValidSeverity returns true for a supported severity tier.
func ValidSeverity(value string) bool {
	switch value {
	case SeverityInfo, SeverityWarning, SeverityCritical:
		return true
	default:
		return false
	}
}

// ValidStatus returns true for a supported lifecycle status.
func ValidStatus(value string) bool {
	switch value {
	case StatusOpen, StatusAcknowledged, StatusResolved:
		return true
	default:
		return false
	}
}

// ListFilter narrows alert queries. Zero values mean "no constraint".
type ListFilter struct {
	Status   string
	Type     string
	SensorID string
	ZoneID   string
	Limit    int
}

// BatterySeverity maps a battery reading to a severity tier. Readings at or
// below half the configured floor are critical, the rest of the band warns.
func BatterySeverity(batteryPercent, floorPercent float64) string {
	if batteryPercent <= floorPercent/2 {
		return SeverityCritical
	}
	return SeverityWarning
}

// DeadLetterSeverity maps a dead-letter count to a severity tier, or ""
// when the count is below the warning band.
func DeadLetterSeverity(count, warning, critical int) string {
	if critical > 0 && count >= critical {
		return SeverityCritical
	}
	if warning > 0 && count >= warning {
		return SeverityWarning
	}
	return ""
}
