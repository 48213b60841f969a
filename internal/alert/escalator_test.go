package alert

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/Asadp3406/bus-tracking/internal/dispatch"
	"github.com/Asadp3406/bus-tracking/internal/eta"
	"github.com/Asadp3406/bus-tracking/internal/notify"
	"github.com/Asadp3406/bus-tracking/internal/subscription"
	"github.com/Asadp3406/bus-tracking/internal/telemetry"
)

type adminSub struct {
	mu     sync.Mutex
	events []*dispatch.Event
}

func (a *adminSub) ID() string { return "admin" }

func (a *adminSub) Send(event any) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.events = append(a.events, event.(*dispatch.Event))
	return nil
}

func (a *adminSub) received() []*dispatch.Event {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]*dispatch.Event, len(a.events))
	copy(out, a.events)
	return out
}

type memRecorder struct {
	mu     sync.Mutex
	events []telemetry.AlertEvent
}

func (m *memRecorder) RecordAlert(event telemetry.AlertEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, event)
}

func newTestEscalator(recorder Recorder, notifier notify.Notifier, cooldown time.Duration) (*Escalator, *adminSub) {
	reg := subscription.NewRegistry()
	admin := &adminSub{}
	reg.Subscribe(admin, subscription.KindAdmin, "ops")
	d := dispatch.NewDispatcher(reg, eta.NewEngine(eta.Config{
		MinSpeedMetersPerSecond:       1.5,
		ReferenceSpeedMetersPerMinute: 250,
		ProximityThresholdMeters:      500,
	}))
	return NewEscalator(d, notifier, recorder, cooldown), admin
}

func TestEmergencyEscalation(t *testing.T) {
	rec := &memRecorder{}
	e, admin := newTestEscalator(rec, nil, 30*time.Second)

	event := telemetry.AlertEvent{
		SourceID:   "driver42",
		Kind:       telemetry.KindEmergency,
		Payload:    json.RawMessage(`{"note":"sos"}`),
		ReceivedAt: time.Now(),
	}
	if !e.Escalate(context.Background(), event) {
		t.Fatal("emergency was suppressed")
	}

	got := admin.received()
	if len(got) != 1 || got[0].Type != dispatch.TypeEmergencyAlert {
		t.Fatalf("admin received %+v", got)
	}
	payload := got[0].Data.(dispatch.AlertPayload)
	if payload.Priority != PriorityHigh || payload.SourceID != "driver42" {
		t.Errorf("payload = %+v", payload)
	}
	if len(rec.events) != 1 {
		t.Errorf("recorder saw %d events, want 1", len(rec.events))
	}
}

func TestEmergencyIgnoresCooldown(t *testing.T) {
	e, admin := newTestEscalator(nil, nil, time.Hour)

	event := telemetry.AlertEvent{SourceID: "driver42", Kind: telemetry.KindEmergency}
	for i := 0; i < 3; i++ {
		if !e.Escalate(context.Background(), event) {
			t.Fatalf("emergency %d was suppressed", i)
		}
	}
	if got := admin.received(); len(got) != 3 {
		t.Errorf("admin received %d emergencies, want 3", len(got))
	}
}

func TestSystemAlertCooldown(t *testing.T) {
	e, admin := newTestEscalator(nil, nil, 30*time.Second)
	base := time.Unix(1700000000, 0)
	e.now = func() time.Time { return base }

	eventA := telemetry.AlertEvent{SourceID: "device-1", Kind: telemetry.KindSystemAlert}
	eventB := telemetry.AlertEvent{SourceID: "device-2", Kind: telemetry.KindSystemAlert}

	if !e.Escalate(context.Background(), eventA) {
		t.Fatal("first alert suppressed")
	}
	if e.Escalate(context.Background(), eventA) {
		t.Error("repeat within cooldown not suppressed")
	}
	// A different source is not affected by device-1's cooldown.
	if !e.Escalate(context.Background(), eventB) {
		t.Error("other source suppressed")
	}

	e.now = func() time.Time { return base.Add(31 * time.Second) }
	if !e.Escalate(context.Background(), eventA) {
		t.Error("alert after cooldown expiry suppressed")
	}

	if got := admin.received(); len(got) != 3 {
		t.Errorf("admin received %d alerts, want 3", len(got))
	}
}

type blockingNotifier struct {
	release chan struct{}
	calls   chan string
}

func (b *blockingNotifier) Notify(_ context.Context, msg notify.Message) error {
	b.calls <- msg.SourceID
	<-b.release
	return nil
}

func TestExternalNotifyDoesNotBlockEscalate(t *testing.T) {
	n := &blockingNotifier{release: make(chan struct{}), calls: make(chan string, 1)}
	e, admin := newTestEscalator(nil, n, 30*time.Second)

	done := make(chan struct{})
	go func() {
		e.Escalate(context.Background(), telemetry.AlertEvent{
			SourceID: "driver42", Kind: telemetry.KindEmergency,
		})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Escalate blocked on the external notifier")
	}
	if len(admin.received()) != 1 {
		t.Error("admin fanout did not happen before external push finished")
	}

	select {
	case src := <-n.calls:
		if src != "driver42" {
			t.Errorf("notifier source = %q", src)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("external notifier never called")
	}
	close(n.release)
}
