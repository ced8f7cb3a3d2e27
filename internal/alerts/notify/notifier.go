package notify

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	alertapp "sitewatch-cloud/internal/alerts/application"
	alerts "sitewatch-cloud/internal/alerts/domain"
)

const defaultCooldown = 15 * time.Minute

// Notifier pushes alert lifecycle transitions to an external channel.
// Repeated updates for the same alert are suppressed within the cooldown;
// open and resolve transitions always go out.
type Notifier struct {
	channel  Channel
	cooldown time.Duration
	timeout  time.Duration
	logger   *log.Logger

	mu       sync.Mutex
	lastSent map[string]time.Time
}

// Option configures the notifier.
type Option func(*Notifier)

// WithCooldown overrides the update suppression window.
func WithCooldown(cooldown time.Duration) Option {
	return func(n *Notifier) {
		if cooldown > 0 {
			n.cooldown = cooldown
		}
	}
}

// WithRequestTimeout bounds each delivery attempt.
func WithRequestTimeout(timeout time.Duration) Option {
	return func(n *Notifier) {
		if timeout > 0 {
			n.timeout = timeout
		}
	}
}

// NewNotifier constructs a notifier.
func NewNotifier(channel Channel, logger *log.Logger, opts ...Option) (*Notifier, error) {
	if channel == nil {
		return nil, errors.New("alert notifier: nil channel")
	}
	notifier := &Notifier{
		channel:  channel,
		cooldown: defaultCooldown,
		timeout:  5 * time.Second,
		logger:   logger,
		lastSent: make(map[string]time.Time),
	}
	for _, opt := range opts {
		opt(notifier)
	}
	return notifier, nil
}

// Notify delivers one lifecycle event. Delivery failures are logged, never
// propagated; notification is best effort and must not affect the scan.
func (n *Notifier) Notify(ctx context.Context, event alertapp.LifecycleEvent) {
	if n == nil || n.channel == nil {
		return
	}
	if event.Type == "update" && n.suppressed(event.Alert.ID) {
		return
	}

	sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), n.timeout)
	defer cancel()
	if err := n.channel.Send(sendCtx, renderEvent(event)); err != nil {
		if n.logger != nil {
			n.logger.Printf("alert notify error: alert=%s err=%v", event.Alert.ID, err)
		}
		return
	}
	n.markSent(event.Alert.ID)
}

func (n *Notifier) suppressed(alertID string) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	last, ok := n.lastSent[alertID]
	return ok && time.Since(last) < n.cooldown
}

func (n *Notifier) markSent(alertID string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.lastSent[alertID] = time.Now()
}

func renderEvent(event alertapp.LifecycleEvent) string {
	alert := event.Alert
	subject := alert.SensorID
	if subject == "" {
		subject = "tenant"
	}
	switch event.Type {
	case "open":
		return fmt.Sprintf("[%s] %s: %s (%s) - %s", severityTag(alert.Severity), alert.Title, subject, alert.Type, alert.Message)
	case "auto_resolve", "resolve":
		return fmt.Sprintf("[RESOLVED] %s: %s (%s)", alert.Title, subject, alert.Type)
	default:
		return fmt.Sprintf("[%s] %s: %s (%s) still active - %s", severityTag(alert.Severity), alert.Title, subject, alert.Type, alert.Message)
	}
}

func severityTag(severity string) string {
	switch severity {
	case alerts.SeverityCritical:
		return "CRITICAL"
	case alerts.SeverityWarning:
		return "WARNING"
	default:
		return "INFO"
	}
}
