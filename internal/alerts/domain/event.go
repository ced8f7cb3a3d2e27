package alerts

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"time"
)

const (
	EventOpen        = "OPEN"
	EventUpdate      = "UPDATE"
	EventAcknowledge = "ACKNOWLEDGE"
	EventAssign      = "ASSIGN"
	EventResolve     = "RESOLVE"
	EventAutoResolve = "AUTO_RESOLVE"
)

// AlertEvent is one immutable audit row per lifecycle transition.
// Rows are never updated or deleted.
type AlertEvent struct {
	ID        string          `json:"id"`
	AlertID   string          `json:"alert_id"`
	TenantID  string          `json:"tenant_id"`
	Type      string          `json:"type"`
	Actor     string          `json:"actor,omitempty"`
	Note      string          `json:"note,omitempty"`
	Metadata  json.RawMessage `json:"metadata,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

// Validate checks event invariants before persistence.
func (e AlertEvent) Validate() error {
	if e.AlertID == "" {
		return errors.New("alert event: empty alert id")
	}
	if e.TenantID == "" {
		return errors.New("alert event: empty tenant id")
	}
	if !ValidEventType(e.Type) {
		return errors.New("alert event: invalid type")
	}
	return nil
}

// ValidEventType returns true for a supported transition type.
func ValidEventType(value string) bool {
	switch value {
	case EventOpen, EventUpdate, EventAcknowledge, EventAssign, EventResolve, EventAutoResolve:
		return true
	default:
		return false
	}
}

// NewAlertID generates a random alert id.
func NewAlertID() string {
	return "alert-" + randomHex(8)
}

// NewEventID generates a random alert event id.
func NewEventID() string {
	return "alevt-" + randomHex(8)
}

func randomHex(n int) string {
	buf := make([]byte, n)
	_, _ = rand.Read(buf)
	return hex.EncodeToString(buf)
}
