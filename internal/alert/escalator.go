// Package alert escalates safety-critical messages to operators. Escalation
// runs outside the location pipeline so an emergency is never queued behind
// bulk telemetry.
package alert

import (
	"context"
	"sync"
	"time"

	"github.com/Asadp3406/bus-tracking/internal/dispatch"
	"github.com/Asadp3406/bus-tracking/internal/metrics"
	"github.com/Asadp3406/bus-tracking/internal/notify"
	"github.com/Asadp3406/bus-tracking/internal/telemetry"
	"github.com/Asadp3406/bus-tracking/pkg/log"
)

// PriorityHigh marks emergency escalations.
const PriorityHigh = "HIGH"

// Recorder persists escalated alerts for later review. Implementations must
// not block; the escalator fires and forgets.
type Recorder interface {
	RecordAlert(event telemetry.AlertEvent)
}

// Escalator routes alerts and emergencies to admin subscribers, external
// channels and the history recorder. Emergencies always go through;
// system alerts from one source are rate limited by a cooldown so a
// misbehaving device cannot flood operators. Safe for concurrent use.
type Escalator struct {
	dispatcher *dispatch.Dispatcher
	notifier   notify.Notifier
	recorder   Recorder
	cooldown   time.Duration
	now        func() time.Time

	mu           sync.Mutex
	lastBySource map[string]time.Time
}

// NewEscalator creates an Escalator. notifier and recorder may be nil.
func NewEscalator(dispatcher *dispatch.Dispatcher, notifier notify.Notifier, recorder Recorder, cooldown time.Duration) *Escalator {
	return &Escalator{
		dispatcher:   dispatcher,
		notifier:     notifier,
		recorder:     recorder,
		cooldown:     cooldown,
		now:          time.Now,
		lastBySource: make(map[string]time.Time),
	}
}

// Escalate processes one alert event. It returns true when the event was
// forwarded and false when the cooldown suppressed it.
func (e *Escalator) Escalate(ctx context.Context, event telemetry.AlertEvent) bool {
	if event.Kind == telemetry.KindSystemAlert && e.suppressed(event.SourceID) {
		metrics.AlertsSuppressed.Inc()
		log.Debug("system alert suppressed by cooldown", "source", event.SourceID)
		return false
	}

	eventType := dispatch.TypeSystemAlert
	priority := event.Priority
	if event.Kind == telemetry.KindEmergency {
		eventType = dispatch.TypeEmergencyAlert
		priority = PriorityHigh
	}

	delivered := e.dispatcher.DispatchAlert(eventType, event.SourceID, priority, event.Payload, event.ReceivedAt)
	metrics.AlertsEscalated.WithLabelValues(string(event.Kind)).Inc()
	log.Info("alert escalated",
		"kind", event.Kind, "source", event.SourceID, "adminSubscribers", delivered)

	if e.recorder != nil {
		e.recorder.RecordAlert(event)
	}
	if e.notifier != nil {
		go e.pushExternal(ctx, event, priority)
	}
	return true
}

func (e *Escalator) suppressed(sourceID string) bool {
	now := e.now()

	e.mu.Lock()
	defer e.mu.Unlock()

	if last, ok := e.lastBySource[sourceID]; ok && now.Sub(last) < e.cooldown {
		return true
	}
	e.lastBySource[sourceID] = now
	return false
}

func (e *Escalator) pushExternal(ctx context.Context, event telemetry.AlertEvent, priority string) {
	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	err := e.notifier.Notify(ctx, notify.Message{
		Kind:       string(event.Kind),
		SourceID:   event.SourceID,
		Priority:   priority,
		Detail:     event.Payload,
		ReceivedAt: event.ReceivedAt,
	})
	if err != nil {
		log.Error(err, "external alert notification failed",
			"kind", event.Kind, "source", event.SourceID)
	}
}
