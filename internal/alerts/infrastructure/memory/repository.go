package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	alerts "sitewatch-cloud/internal/alerts/domain"
)

// Store is an in-memory alert store for demo/testing. It implements the
// application's AlertRepository and AlertEventRepository interfaces with the
// same pairing guarantee as the Postgres store: an alert mutation and its
// audit event land together or not at all.
type Store struct {
	mu     sync.RWMutex
	byID   map[string]*alerts.Alert
	events map[string][]alerts.AlertEvent
}

// NewStore constructs a store.
func NewStore() *Store {
	return &Store{
		byID:   make(map[string]*alerts.Alert),
		events: make(map[string][]alerts.AlertEvent),
	}
}

// FindActiveByKey returns the most recently updated non-resolved alert for a key.
func (s *Store) FindActiveByKey(ctx context.Context, tenantID, alertType, sensorID string) (*alerts.Alert, error) {
	_ = ctx
	s.mu.RLock()
	defer s.mu.RUnlock()
	var found *alerts.Alert
	for _, alert := range s.byID {
		if alert.TenantID != tenantID || alert.Type != alertType || alert.SensorID != sensorID {
			continue
		}
		if !alert.Active() {
			continue
		}
		if found == nil || alert.UpdatedAt.After(found.UpdatedAt) {
			found = alert
		}
	}
	if found == nil {
		return nil, nil
	}
	copied := *found
	return &copied, nil
}

// GetByID fetches an alert by id.
func (s *Store) GetByID(ctx context.Context, id string) (*alerts.Alert, error) {
	_ = ctx
	s.mu.RLock()
	defer s.mu.RUnlock()
	alert := s.byID[id]
	if alert == nil {
		return nil, nil
	}
	copied := *alert
	return &copied, nil
}

// Create stores a new alert with its OPEN event.
func (s *Store) Create(ctx context.Context, alert *alerts.Alert, event *alerts.AlertEvent) error {
	_ = ctx
	if alert == nil {
		return alerts.ErrNilAlert
	}
	if err := alert.Validate(); err != nil {
		return err
	}
	if event != nil {
		if err := event.Validate(); err != nil {
			return err
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *alert
	s.byID[alert.ID] = &copied
	s.appendEventLocked(event)
	return nil
}

// Refresh updates detection fields in place; status and opened_at are untouched.
func (s *Store) Refresh(ctx context.Context, alert *alerts.Alert, event *alerts.AlertEvent) error {
	_ = ctx
	if alert == nil {
		return alerts.ErrNilAlert
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	existing := s.byID[alert.ID]
	if existing == nil {
		return alerts.ErrNotFound
	}
	existing.Severity = alert.Severity
	existing.Title = alert.Title
	existing.Message = alert.Message
	existing.Metadata = alert.Metadata
	existing.LastDetectedAt = alert.LastDetectedAt
	existing.UpdatedAt = alert.UpdatedAt
	s.appendEventLocked(event)
	return nil
}

// MarkAcknowledged transitions an alert to acknowledged.
func (s *Store) MarkAcknowledged(ctx context.Context, id string, ackedAt time.Time, event *alerts.AlertEvent) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	existing := s.byID[id]
	if existing == nil {
		return alerts.ErrNotFound
	}
	existing.Status = alerts.StatusAcknowledged
	existing.AckedAt = ackedAt
	existing.UpdatedAt = ackedAt
	s.appendEventLocked(event)
	return nil
}

// MarkAssigned sets the assignee.
func (s *Store) MarkAssigned(ctx context.Context, id, assignee string, updatedAt time.Time, event *alerts.AlertEvent) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	existing := s.byID[id]
	if existing == nil {
		return alerts.ErrNotFound
	}
	existing.Assignee = assignee
	existing.UpdatedAt = updatedAt
	s.appendEventLocked(event)
	return nil
}

// MarkResolved transitions an alert to resolved.
func (s *Store) MarkResolved(ctx context.Context, id string, resolvedAt time.Time, event *alerts.AlertEvent) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	existing := s.byID[id]
	if existing == nil {
		return alerts.ErrNotFound
	}
	existing.Status = alerts.StatusResolved
	existing.ResolvedAt = resolvedAt
	existing.UpdatedAt = resolvedAt
	s.appendEventLocked(event)
	return nil
}

// ListByTenant lists alerts for a tenant matching the filter, newest first.
func (s *Store) ListByTenant(ctx context.Context, tenantID string, filter alerts.ListFilter) ([]alerts.Alert, error) {
	_ = ctx
	if tenantID == "" {
		return nil, alerts.ErrEmptyTenantID
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]alerts.Alert, 0)
	for _, alert := range s.byID {
		if alert.TenantID != tenantID {
			continue
		}
		if filter.Status != "" && alert.Status != filter.Status {
			continue
		}
		if filter.Type != "" && alert.Type != filter.Type {
			continue
		}
		if filter.SensorID != "" && alert.SensorID != filter.SensorID {
			continue
		}
		if filter.ZoneID != "" && alert.ZoneID != filter.ZoneID {
			continue
		}
		result = append(result, *alert)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].UpdatedAt.After(result[j].UpdatedAt) })
	if filter.Limit > 0 && len(result) > filter.Limit {
		result = result[:filter.Limit]
	}
	return result, nil
}

// ListByAlert returns the chronological audit trail for one alert.
func (s *Store) ListByAlert(ctx context.Context, alertID string) ([]alerts.AlertEvent, error) {
	_ = ctx
	s.mu.RLock()
	defer s.mu.RUnlock()
	trail := s.events[alertID]
	result := make([]alerts.AlertEvent, len(trail))
	copy(result, trail)
	return result, nil
}

func (s *Store) appendEventLocked(event *alerts.AlertEvent) {
	if event == nil {
		return
	}
	copied := *event
	if copied.ID == "" {
		copied.ID = alerts.NewEventID()
	}
	s.events[copied.AlertID] = append(s.events[copied.AlertID], copied)
}
