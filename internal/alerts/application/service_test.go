package application

import (
	"context"
	"errors"
	"testing"
	"time"

	alerts "sitewatch-cloud/internal/alerts/domain"
	"sitewatch-cloud/internal/auth"
	masterdata "sitewatch-cloud/internal/masterdata/domain"
)

func openTestAlert(t *testing.T, f *scanFixture) alerts.Alert {
	t.Helper()
	f.sensors.list = []masterdata.Sensor{boundSensor("sensor-1", "zone-1")}
	if _, err := f.service.RunScan(context.Background(), "tenant-a", "", ""); err != nil {
		t.Fatalf("seed scan: %v", err)
	}
	list, err := f.store.ListByTenant(context.Background(), "tenant-a", alerts.ListFilter{})
	if err != nil || len(list) != 1 {
		t.Fatalf("seed alert: err=%v n=%d", err, len(list))
	}
	return list[0]
}

func TestAcknowledge(t *testing.T) {
	f := newScanFixture(t)
	seeded := openTestAlert(t, f)

	f.clock.advance(time.Minute)
	alert, err := f.service.Acknowledge(context.Background(), seeded.ID, "user-1")
	if err != nil {
		t.Fatalf("ack: %v", err)
	}
	if alert.Status != alerts.StatusAcknowledged {
		t.Fatalf("expected acknowledged, got %s", alert.Status)
	}
	if !alert.AckedAt.Equal(f.clock.now) {
		t.Fatalf("acked_at not set: %v", alert.AckedAt)
	}

	// second ack is a no-op
	again, err := f.service.Acknowledge(context.Background(), seeded.ID, "user-2")
	if err != nil {
		t.Fatalf("second ack: %v", err)
	}
	if !again.AckedAt.Equal(alert.AckedAt) {
		t.Fatal("repeat ack must not move acked_at")
	}

	events, _ := f.store.ListByAlert(context.Background(), seeded.ID)
	var acks int
	for _, event := range events {
		if event.Type == alerts.EventAcknowledge {
			acks++
			if event.Actor != "user-1" {
				t.Fatalf("expected actor user-1, got %q", event.Actor)
			}
		}
	}
	if acks != 1 {
		t.Fatalf("expected exactly one ACKNOWLEDGE event, got %d", acks)
	}
}

func TestAcknowledge_ResolvedAlert(t *testing.T) {
	f := newScanFixture(t)
	seeded := openTestAlert(t, f)
	if _, err := f.service.Resolve(context.Background(), seeded.ID, "user-1", ""); err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if _, err := f.service.Acknowledge(context.Background(), seeded.ID, "user-1"); !errors.Is(err, alerts.ErrAlreadyResolved) {
		t.Fatalf("expected ErrAlreadyResolved, got %v", err)
	}
}

func TestAssign(t *testing.T) {
	f := newScanFixture(t)
	seeded := openTestAlert(t, f)

	alert, err := f.service.Assign(context.Background(), seeded.ID, "tech-7", "user-1")
	if err != nil {
		t.Fatalf("assign: %v", err)
	}
	if alert.Assignee != "tech-7" {
		t.Fatalf("assignee not set: %q", alert.Assignee)
	}
	if alert.Status != alerts.StatusOpen {
		t.Fatalf("assign must not change status, got %s", alert.Status)
	}

	if _, err := f.service.Assign(context.Background(), seeded.ID, "", "user-1"); err == nil {
		t.Fatal("empty assignee accepted")
	}
}

func TestResolve_Idempotent(t *testing.T) {
	f := newScanFixture(t)
	seeded := openTestAlert(t, f)

	first, err := f.service.Resolve(context.Background(), seeded.ID, "user-1", "fixed antenna")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	f.clock.advance(time.Hour)
	second, err := f.service.Resolve(context.Background(), seeded.ID, "user-2", "")
	if err != nil {
		t.Fatalf("second resolve: %v", err)
	}
	if !second.ResolvedAt.Equal(first.ResolvedAt) {
		t.Fatal("repeat resolve must not move resolved_at")
	}

	events, _ := f.store.ListByAlert(context.Background(), seeded.ID)
	var resolves int
	for _, event := range events {
		if event.Type == alerts.EventResolve {
			resolves++
			if event.Note != "fixed antenna" {
				t.Fatalf("expected note, got %q", event.Note)
			}
		}
	}
	if resolves != 1 {
		t.Fatalf("expected exactly one RESOLVE event, got %d", resolves)
	}
}

func TestTenantScope(t *testing.T) {
	f := newScanFixture(t)
	seeded := openTestAlert(t, f)

	ctx := auth.WithIdentity(context.Background(), "tenant-b", auth.RoleOperator, "user-9")
	if _, err := f.service.Get(ctx, seeded.ID); !errors.Is(err, auth.ErrTenantMismatch) {
		t.Fatalf("expected tenant mismatch, got %v", err)
	}
	if _, err := f.service.Acknowledge(ctx, seeded.ID, "user-9"); !errors.Is(err, auth.ErrTenantMismatch) {
		t.Fatalf("expected tenant mismatch on ack, got %v", err)
	}

	owner := auth.WithIdentity(context.Background(), "tenant-a", auth.RoleOperator, "user-1")
	if _, err := f.service.Get(owner, seeded.ID); err != nil {
		t.Fatalf("owner access rejected: %v", err)
	}
}

func TestGet_NotFound(t *testing.T) {
	f := newScanFixture(t)
	if _, err := f.service.Get(context.Background(), "alert-missing"); !errors.Is(err, alerts.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

type recordingNotifier struct {
	events []LifecycleEvent
}

func (n *recordingNotifier) Notify(ctx context.Context, event LifecycleEvent) {
	n.events = append(n.events, event)
}

func TestNotifierObservesLifecycle(t *testing.T) {
	f := newScanFixture(t)
	notifier := &recordingNotifier{}
	service, err := NewService(f.store, f.store, f.settings, f.sensors, f.health, f.deadLetters, WithClock(f.clock), WithNotifier(notifier))
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	f.service = service
	seeded := openTestAlert(t, f)

	if _, err := f.service.Resolve(context.Background(), seeded.ID, "user-1", ""); err != nil {
		t.Fatalf("resolve: %v", err)
	}

	if len(notifier.events) != 2 {
		t.Fatalf("expected open + resolve notifications, got %d", len(notifier.events))
	}
	if notifier.events[0].Type != "open" || notifier.events[1].Type != "resolve" {
		t.Fatalf("unexpected notification order: %+v", notifier.events)
	}
}

type stallingNotifier struct {
	entered chan struct{}
	release chan struct{}
}

func (n *stallingNotifier) Notify(ctx context.Context, event LifecycleEvent) {
	if event.Type != "open" {
		return
	}
	n.entered <- struct{}{}
	<-n.release
}

func TestSlowNotifierDoesNotBlockKey(t *testing.T) {
	f := newScanFixture(t)
	notifier := &stallingNotifier{
		entered: make(chan struct{}, 1),
		release: make(chan struct{}),
	}
	service, err := NewService(f.store, f.store, f.settings, f.sensors, f.health, f.deadLetters, WithClock(f.clock), WithNotifier(notifier))
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	d := detection{
		tenantID:  "tenant-a",
		sensorID:  "sensor-1",
		alertType: alerts.TypeSensorOffline,
		severity:  alerts.SeverityCritical,
		title:     "Sensor offline",
		message:   "Sensor has never reported telemetry",
	}
	opened := make(chan error, 1)
	go func() {
		_, err := service.openOrUpdate(context.Background(), d)
		opened <- err
	}()
	<-notifier.entered

	// the key must be free while the open notification is still in flight
	resolved := make(chan error, 1)
	go func() {
		_, err := service.autoResolve(context.Background(), d.tenantID, d.alertType, d.sensorID, "recovered")
		resolved <- err
	}()
	select {
	case err := <-resolved:
		if err != nil {
			t.Fatalf("auto resolve: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("auto resolve blocked behind the notifier")
	}

	close(notifier.release)
	if err := <-opened; err != nil {
		t.Fatalf("open: %v", err)
	}
}

func TestNewService_Validation(t *testing.T) {
	f := newScanFixture(t)
	if _, err := NewService(nil, f.store, f.settings, f.sensors, f.health, f.deadLetters); err == nil {
		t.Fatal("nil alert repo accepted")
	}
	if _, err := NewService(f.store, f.store, nil, f.sensors, f.health, f.deadLetters); err == nil {
		t.Fatal("nil settings reader accepted")
	}
	if _, err := NewService(f.store, f.store, f.settings, f.sensors, f.health, nil); err == nil {
		t.Fatal("nil dead letter counter accepted")
	}
}
