package application

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	alerts "sitewatch-cloud/internal/alerts/domain"
	"sitewatch-cloud/internal/auth"
	masterdata "sitewatch-cloud/internal/masterdata/domain"
	"sitewatch-cloud/internal/observability/metrics"
)

// AlertRepository persists alert rows. Every mutating call takes the audit
// event for the transition and must commit the pair atomically, so a crash
// never leaves an alert row without its trail entry.
type AlertRepository interface {
	FindActiveByKey(ctx context.Context, tenantID, alertType, sensorID string) (*alerts.Alert, error)
	GetByID(ctx context.Context, id string) (*alerts.Alert, error)
	Create(ctx context.Context, alert *alerts.Alert, event *alerts.AlertEvent) error
	Refresh(ctx context.Context, alert *alerts.Alert, event *alerts.AlertEvent) error
	MarkAcknowledged(ctx context.Context, id string, ackedAt time.Time, event *alerts.AlertEvent) error
	MarkAssigned(ctx context.Context, id, assignee string, updatedAt time.Time, event *alerts.AlertEvent) error
	MarkResolved(ctx context.Context, id string, resolvedAt time.Time, event *alerts.AlertEvent) error
	ListByTenant(ctx context.Context, tenantID string, filter alerts.ListFilter) ([]alerts.Alert, error)
}

// AlertEventRepository reads the append-only audit trail.
type AlertEventRepository interface {
	ListByAlert(ctx context.Context, alertID string) ([]alerts.AlertEvent, error)
}

// SettingsReader returns the raw tenant threshold override map.
type SettingsReader interface {
	ThresholdOverrides(ctx context.Context, tenantID string) (map[string]any, error)
}

// SensorDirectory lists sensors bound to a physical bay.
type SensorDirectory interface {
	ListBound(ctx context.Context, tenantID, zoneID string) ([]masterdata.Sensor, error)
}

// HealthSource computes one health snapshot per sensor from telemetry.
type HealthSource interface {
	Collect(ctx context.Context, tenantID string, sensors []masterdata.Sensor, t alerts.Thresholds, now time.Time) ([]alerts.HealthSnapshot, error)
}

// DeadLetterCounter counts failed-to-decode ingestion messages.
type DeadLetterCounter interface {
	CountSince(ctx context.Context, tenantID string, since time.Time) (int, error)
}

// AlertNotifier observes alert lifecycle transitions.
type AlertNotifier interface {
	Notify(ctx context.Context, event LifecycleEvent)
}

// LifecycleEvent describes one alert transition.
type LifecycleEvent struct {
	Type  string       `json:"type"`
	Alert alerts.Alert `json:"alert"`
}

// Clock provides time.
type Clock interface {
	Now() time.Time
}

// Service is the alert lifecycle manager and scan orchestrator.
type Service struct {
	alerts      AlertRepository
	events      AlertEventRepository
	settings    SettingsReader
	sensors     SensorDirectory
	health      HealthSource
	deadLetters DeadLetterCounter
	notifier    AlertNotifier
	clock       Clock
	keys        keyedMutex
}

// ServiceOption customizes the service.
type ServiceOption func(*Service)

// WithNotifier assigns a notifier.
func WithNotifier(notifier AlertNotifier) ServiceOption {
	return func(s *Service) {
		s.notifier = notifier
	}
}

// WithClock assigns a clock.
func WithClock(clock Clock) ServiceOption {
	return func(s *Service) {
		s.clock = clock
	}
}

// NewService constructs an alert service.
func NewService(alertsRepo AlertRepository, eventsRepo AlertEventRepository, settings SettingsReader, sensors SensorDirectory, health HealthSource, deadLetters DeadLetterCounter, opts ...ServiceOption) (*Service, error) {
	if alertsRepo == nil || eventsRepo == nil {
		return nil, errors.New("alerts: nil repository")
	}
	if settings == nil {
		return nil, errors.New("alerts: nil settings reader")
	}
	if sensors == nil {
		return nil, errors.New("alerts: nil sensor directory")
	}
	if health == nil {
		return nil, errors.New("alerts: nil health source")
	}
	if deadLetters == nil {
		return nil, errors.New("alerts: nil dead letter counter")
	}
	service := &Service{
		alerts:      alertsRepo,
		events:      eventsRepo,
		settings:    settings,
		sensors:     sensors,
		health:      health,
		deadLetters: deadLetters,
		clock:       systemClock{},
	}
	for _, opt := range opts {
		opt(service)
	}
	return service, nil
}

// detection carries everything needed to open or refresh one alert.
type detection struct {
	tenantID  string
	sensorID  string
	siteID    string
	zoneID    string
	gatewayID string
	alertType string
	severity  string
	title     string
	message   string
	metadata  json.RawMessage
	sla       time.Duration
}

// openOrUpdate enforces the dedup contract: re-detecting an active condition
// refreshes the existing row instead of inserting a second one. The
// read-then-write pair is serialized per (tenant, type, sensor) key; the
// notifier runs after the key is released so a slow channel cannot stall the
// next transition on the same key.
func (s *Service) openOrUpdate(ctx context.Context, d detection) (bool, error) {
	created, alert, err := s.openOrUpdateLocked(ctx, d)
	if err != nil {
		return false, err
	}
	if created {
		s.notify(ctx, "open", alert)
	} else {
		s.notify(ctx, "update", alert)
	}
	return created, nil
}

func (s *Service) openOrUpdateLocked(ctx context.Context, d detection) (bool, alerts.Alert, error) {
	unlock := s.keys.lock(lockKey(d.tenantID, d.alertType, d.sensorID))
	defer unlock()

	existing, err := s.alerts.FindActiveByKey(ctx, d.tenantID, d.alertType, d.sensorID)
	if err != nil {
		return false, alerts.Alert{}, err
	}
	now := s.clock.Now().UTC()

	if existing != nil {
		existing.Severity = d.severity
		existing.Title = d.title
		existing.Message = d.message
		existing.Metadata = d.metadata
		existing.LastDetectedAt = now
		existing.UpdatedAt = now
		event := &alerts.AlertEvent{
			ID:        alerts.NewEventID(),
			AlertID:   existing.ID,
			TenantID:  d.tenantID,
			Type:      alerts.EventUpdate,
			Metadata:  d.metadata,
			CreatedAt: now,
		}
		if err := s.alerts.Refresh(ctx, existing, event); err != nil {
			return false, alerts.Alert{}, err
		}
		return false, *existing, nil
	}

	alert := &alerts.Alert{
		ID:              alerts.NewAlertID(),
		TenantID:        d.tenantID,
		SiteID:          d.siteID,
		ZoneID:          d.zoneID,
		SensorID:        d.sensorID,
		GatewayID:       d.gatewayID,
		Type:            d.alertType,
		Severity:        d.severity,
		Status:          alerts.StatusOpen,
		Title:           d.title,
		Message:         d.message,
		Metadata:        d.metadata,
		OpenedAt:        now,
		FirstDetectedAt: now,
		LastDetectedAt:  now,
		SLADueAt:        now.Add(d.sla),
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := alert.Validate(); err != nil {
		return false, alerts.Alert{}, err
	}
	event := &alerts.AlertEvent{
		ID:        alerts.NewEventID(),
		AlertID:   alert.ID,
		TenantID:  d.tenantID,
		Type:      alerts.EventOpen,
		Metadata:  d.metadata,
		CreatedAt: now,
	}
	if err := s.alerts.Create(ctx, alert, event); err != nil {
		return false, alerts.Alert{}, err
	}
	return true, *alert, nil
}

// autoResolve closes the active alert for a key whose condition no longer
// holds. A missing active alert is a no-op, not an error.
func (s *Service) autoResolve(ctx context.Context, tenantID, alertType, sensorID, note string) (bool, error) {
	resolved, alert, err := s.autoResolveLocked(ctx, tenantID, alertType, sensorID, note)
	if err != nil || !resolved {
		return false, err
	}
	s.notify(ctx, "auto_resolve", alert)
	return true, nil
}

func (s *Service) autoResolveLocked(ctx context.Context, tenantID, alertType, sensorID, note string) (bool, alerts.Alert, error) {
	unlock := s.keys.lock(lockKey(tenantID, alertType, sensorID))
	defer unlock()

	existing, err := s.alerts.FindActiveByKey(ctx, tenantID, alertType, sensorID)
	if err != nil {
		return false, alerts.Alert{}, err
	}
	if existing == nil {
		return false, alerts.Alert{}, nil
	}
	now := s.clock.Now().UTC()
	event := &alerts.AlertEvent{
		ID:        alerts.NewEventID(),
		AlertID:   existing.ID,
		TenantID:  tenantID,
		Type:      alerts.EventAutoResolve,
		Note:      note,
		CreatedAt: now,
	}
	if err := s.alerts.MarkResolved(ctx, existing.ID, now, event); err != nil {
		return false, alerts.Alert{}, err
	}
	existing.Status = alerts.StatusResolved
	existing.ResolvedAt = now
	existing.UpdatedAt = now
	return true, *existing, nil
}

// Acknowledge transitions an open alert to acknowledged, recording the actor.
func (s *Service) Acknowledge(ctx context.Context, id, actor string) (*alerts.Alert, error) {
	alert, err := s.getScoped(ctx, id)
	if err != nil {
		return nil, err
	}
	if alert.Status == alerts.StatusResolved {
		return nil, alerts.ErrAlreadyResolved
	}
	if alert.Status == alerts.StatusAcknowledged {
		return alert, nil
	}
	now := s.clock.Now().UTC()
	event := &alerts.AlertEvent{
		ID:        alerts.NewEventID(),
		AlertID:   alert.ID,
		TenantID:  alert.TenantID,
		Type:      alerts.EventAcknowledge,
		Actor:     actor,
		CreatedAt: now,
	}
	if err := s.alerts.MarkAcknowledged(ctx, alert.ID, now, event); err != nil {
		return nil, err
	}
	alert.Status = alerts.StatusAcknowledged
	alert.AckedAt = now
	alert.UpdatedAt = now
	s.notify(ctx, "acknowledge", *alert)
	return alert, nil
}

// Assign sets the assignee on any non-resolved alert.
func (s *Service) Assign(ctx context.Context, id, assignee, actor string) (*alerts.Alert, error) {
	if assignee == "" {
		return nil, errors.New("alerts: assignee required")
	}
	alert, err := s.getScoped(ctx, id)
	if err != nil {
		return nil, err
	}
	if alert.Status == alerts.StatusResolved {
		return nil, alerts.ErrAlreadyResolved
	}
	now := s.clock.Now().UTC()
	event := &alerts.AlertEvent{
		ID:        alerts.NewEventID(),
		AlertID:   alert.ID,
		TenantID:  alert.TenantID,
		Type:      alerts.EventAssign,
		Actor:     actor,
		Note:      "assigned to " + assignee,
		CreatedAt: now,
	}
	if err := s.alerts.MarkAssigned(ctx, alert.ID, assignee, now, event); err != nil {
		return nil, err
	}
	alert.Assignee = assignee
	alert.UpdatedAt = now
	s.notify(ctx, "assign", *alert)
	return alert, nil
}

// Resolve closes any non-resolved alert manually, recording the actor.
func (s *Service) Resolve(ctx context.Context, id, actor, note string) (*alerts.Alert, error) {
	alert, err := s.getScoped(ctx, id)
	if err != nil {
		return nil, err
	}
	if alert.Status == alerts.StatusResolved {
		return alert, nil
	}
	now := s.clock.Now().UTC()
	event := &alerts.AlertEvent{
		ID:        alerts.NewEventID(),
		AlertID:   alert.ID,
		TenantID:  alert.TenantID,
		Type:      alerts.EventResolve,
		Actor:     actor,
		Note:      note,
		CreatedAt: now,
	}
	if err := s.alerts.MarkResolved(ctx, alert.ID, now, event); err != nil {
		return nil, err
	}
	alert.Status = alerts.StatusResolved
	alert.ResolvedAt = now
	alert.UpdatedAt = now
	s.notify(ctx, "resolve", *alert)
	return alert, nil
}

// List returns alerts for the tenant matching the filter.
func (s *Service) List(ctx context.Context, tenantID string, filter alerts.ListFilter) ([]alerts.Alert, error) {
	if s == nil {
		return nil, errors.New("alerts: nil service")
	}
	if tenantID == "" {
		return nil, alerts.ErrEmptyTenantID
	}
	return s.alerts.ListByTenant(ctx, tenantID, filter)
}

// Get fetches one alert, enforcing the caller's tenant scope.
func (s *Service) Get(ctx context.Context, id string) (*alerts.Alert, error) {
	return s.getScoped(ctx, id)
}

// Events returns the audit trail for one alert.
func (s *Service) Events(ctx context.Context, id string) ([]alerts.AlertEvent, error) {
	if _, err := s.getScoped(ctx, id); err != nil {
		return nil, err
	}
	return s.events.ListByAlert(ctx, id)
}

func (s *Service) getScoped(ctx context.Context, id string) (*alerts.Alert, error) {
	if s == nil {
		return nil, errors.New("alerts: nil service")
	}
	if id == "" {
		return nil, errors.New("alerts: alert id required")
	}
	alert, err := s.alerts.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if alert == nil {
		return nil, alerts.ErrNotFound
	}
	tenantID := auth.TenantIDFromContext(ctx)
	if tenantID != "" && alert.TenantID != tenantID {
		return nil, auth.ErrTenantMismatch
	}
	return alert, nil
}

func (s *Service) notify(ctx context.Context, eventType string, alert alerts.Alert) {
	if s == nil {
		return
	}
	metrics.IncAlertEvent(eventType)
	if s.notifier == nil {
		return
	}
	s.notifier.Notify(ctx, LifecycleEvent{Type: eventType, Alert: alert})
}

func lockKey(tenantID, alertType, sensorID string) string {
	return tenantID + "|" + alertType + "|" + sensorID
}

// keyedMutex serializes open-or-update and auto-resolve per alert key so two
// overlapping scans cannot both observe "no active alert" and insert
// duplicates. This covers a single process; the store's partial unique index
// backs the same invariant across processes.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*entry
}

type entry struct {
	mu   sync.Mutex
	refs int
}

func (k *keyedMutex) lock(key string) func() {
	k.mu.Lock()
	if k.locks == nil {
		k.locks = make(map[string]*entry)
	}
	e := k.locks[key]
	if e == nil {
		e = &entry{}
		k.locks[key] = e
	}
	e.refs++
	k.mu.Unlock()

	e.mu.Lock()
	return func() {
		e.mu.Unlock()
		k.mu.Lock()
		e.refs--
		if e.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }
