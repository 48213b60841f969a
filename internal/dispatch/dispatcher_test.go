package dispatch

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Asadp3406/bus-tracking/internal/eta"
	"github.com/Asadp3406/bus-tracking/internal/state"
	"github.com/Asadp3406/bus-tracking/internal/subscription"
	"github.com/Asadp3406/bus-tracking/internal/telemetry"
)

type capture struct {
	id   string
	fail bool

	mu     sync.Mutex
	events []*Event
}

func (c *capture) ID() string { return c.id }

func (c *capture) Send(event any) error {
	if c.fail {
		return errors.New("buffer full")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, event.(*Event))
	return nil
}

func (c *capture) received() []*Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*Event, len(c.events))
	copy(out, c.events)
	return out
}

func testEngine() *eta.Engine {
	return eta.NewEngine(eta.Config{
		MinSpeedMetersPerSecond:       1.5,
		ReferenceSpeedMetersPerMinute: 250,
		ProximityThresholdMeters:      500,
	})
}

func TestDispatchLocationTopics(t *testing.T) {
	reg := subscription.NewRegistry()
	d := NewDispatcher(reg, testEngine())

	vehicleSub := &capture{id: "veh"}
	routeSub := &capture{id: "rt"}
	otherRouteSub := &capture{id: "rt-other"}
	reg.Subscribe(vehicleSub, subscription.KindVehicle, "bus-1")
	reg.Subscribe(routeSub, subscription.KindRoute, "route-12")
	reg.Subscribe(otherRouteSub, subscription.KindRoute, "route-7")

	st := state.VehicleState{
		VehicleID: "bus-1",
		RouteID:   "route-12",
		Latitude:  18.5074,
		Longitude: 73.8077,
		Speed:     8,
		Timestamp: telemetry.Timestamp(1000),
	}
	d.DispatchLocation(st, nil)

	veh := vehicleSub.received()
	if len(veh) != 1 || veh[0].Type != TypeVehicleLocation {
		t.Fatalf("vehicle subscriber got %+v", veh)
	}
	loc := veh[0].Data.(LocationUpdate)
	if loc.VehicleID != "bus-1" || loc.Latitude != 18.5074 {
		t.Errorf("location payload = %+v", loc)
	}

	rt := routeSub.received()
	if len(rt) != 1 || rt[0].Type != TypeRouteBus {
		t.Fatalf("route subscriber got %+v", rt)
	}
	if rt[0].Data.(RouteBusUpdate).RouteID != "route-12" {
		t.Errorf("route payload = %+v", rt[0].Data)
	}

	if got := otherRouteSub.received(); len(got) != 0 {
		t.Errorf("route-7 subscriber received %d events for route-12 traffic", len(got))
	}
}

func TestArrivalNotificationOnlyInsideThreshold(t *testing.T) {
	reg := subscription.NewRegistry()
	d := NewDispatcher(reg, testEngine())

	waiter := &capture{id: "waiter"}
	otherWaiter := &capture{id: "other"}
	reg.Subscribe(waiter, subscription.KindStop, "stop-a")
	reg.Subscribe(otherWaiter, subscription.KindStop, "stop-b")

	st := state.VehicleState{VehicleID: "bus-1", Timestamp: telemetry.Timestamp(1000)}
	etas := []eta.Result{
		{VehicleID: "bus-1", StopID: "stop-a", StopName: "Station", DistanceMeters: 400, ETAMinutes: 2},
		{VehicleID: "bus-1", StopID: "stop-b", StopName: "Airport", DistanceMeters: 1800, ETAMinutes: 8},
	}
	d.DispatchLocation(st, etas)

	got := waiter.received()
	if len(got) != 1 || got[0].Type != TypeArrival {
		t.Fatalf("stop-a waiter got %+v, want one arrival", got)
	}
	arr := got[0].Data.(ArrivalNotification)
	if arr.StopID != "stop-a" || arr.DistanceMeters != 400 || arr.ETAMinutes != 2 {
		t.Errorf("arrival payload = %+v", arr)
	}
	if arr.StopName != "Station" {
		t.Errorf("arrival stop name = %q, want Station", arr.StopName)
	}
	if arr.Message != "Bus is arriving at Station in approximately 2 minutes" {
		t.Errorf("arrival message = %q", arr.Message)
	}

	if got := otherWaiter.received(); len(got) != 0 {
		t.Errorf("stop-b waiter received %d events while the bus is 1800 m away", len(got))
	}
}

func TestSlowSubscriberIsolation(t *testing.T) {
	reg := subscription.NewRegistry()
	d := NewDispatcher(reg, testEngine())

	slow := &capture{id: "slow", fail: true}
	healthy := &capture{id: "healthy"}
	reg.Subscribe(slow, subscription.KindVehicle, "bus-1")
	reg.Subscribe(healthy, subscription.KindVehicle, "bus-1")

	event := &Event{Type: TypeVehicleLocation, Data: LocationUpdate{VehicleID: "bus-1"}}
	if delivered := d.Dispatch(subscription.KindVehicle, "bus-1", event); delivered != 1 {
		t.Errorf("delivered = %d, want 1", delivered)
	}
	if len(healthy.received()) != 1 {
		t.Error("healthy subscriber was starved by the failing one")
	}
}

func TestFailingSubscriberIsDropped(t *testing.T) {
	reg := subscription.NewRegistry()
	d := NewDispatcher(reg, testEngine())

	slow := &capture{id: "slow", fail: true}
	reg.Subscribe(slow, subscription.KindVehicle, "bus-1")

	event := &Event{Type: TypeVehicleLocation, Data: LocationUpdate{VehicleID: "bus-1"}}
	for i := 0; i < maxSendFailures; i++ {
		d.Dispatch(subscription.KindVehicle, "bus-1", event)
	}

	if got := reg.Subscribers(subscription.KindVehicle, "bus-1"); got != nil {
		t.Errorf("failing subscriber still registered: %+v", got)
	}
}

func TestDispatchStatus(t *testing.T) {
	reg := subscription.NewRegistry()
	d := NewDispatcher(reg, testEngine())

	sub := &capture{id: "veh"}
	reg.Subscribe(sub, subscription.KindVehicle, "bus-1")

	d.DispatchStatus(state.VehicleState{
		VehicleID:     "bus-1",
		Status:        telemetry.StatusDelayed,
		StatusMessage: "traffic",
	})

	got := sub.received()
	if len(got) != 1 || got[0].Type != TypeBusStatus {
		t.Fatalf("got %+v", got)
	}
	upd := got[0].Data.(BusStatusUpdate)
	if upd.Status != telemetry.StatusDelayed || upd.Message != "traffic" {
		t.Errorf("status payload = %+v", upd)
	}
}

func TestDispatchAlert(t *testing.T) {
	reg := subscription.NewRegistry()
	d := NewDispatcher(reg, testEngine())

	admin := &capture{id: "admin"}
	reg.Subscribe(admin, subscription.KindAdmin, "ops")

	now := time.Now()
	delivered := d.DispatchAlert(TypeEmergencyAlert, "driver42", "HIGH", []byte(`{"note":"sos"}`), now)
	if delivered != 1 {
		t.Fatalf("delivered = %d, want 1", delivered)
	}

	got := admin.received()
	if got[0].Type != TypeEmergencyAlert {
		t.Errorf("type = %s", got[0].Type)
	}
	payload := got[0].Data.(AlertPayload)
	if payload.SourceID != "driver42" || payload.Priority != "HIGH" || !payload.ReceivedAt.Equal(now) {
		t.Errorf("alert payload = %+v", payload)
	}
}
