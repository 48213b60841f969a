package dispatch

import (
	"fmt"
	"sync"
	"time"

	"github.com/Asadp3406/bus-tracking/internal/eta"
	"github.com/Asadp3406/bus-tracking/internal/metrics"
	"github.com/Asadp3406/bus-tracking/internal/state"
	"github.com/Asadp3406/bus-tracking/internal/subscription"
	"github.com/Asadp3406/bus-tracking/pkg/log"
)

// maxSendFailures is how many consecutive refused sends a subscriber gets
// before it is dropped from the registry.
const maxSendFailures = 3

// Dispatcher delivers events to registered subscribers. Safe for concurrent
// use; per-vehicle event order is preserved because the gateway drives one
// accepted sample at a time per vehicle through Dispatch.
type Dispatcher struct {
	registry *subscription.Registry
	engine   *eta.Engine

	mu       sync.Mutex
	failures map[string]int
}

// NewDispatcher creates a Dispatcher fanning out through registry.
func NewDispatcher(registry *subscription.Registry, engine *eta.Engine) *Dispatcher {
	return &Dispatcher{
		registry: registry,
		engine:   engine,
		failures: make(map[string]int),
	}
}

// Dispatch delivers event to every subscriber of one topic and returns how
// many accepted it. A refused send only affects that subscriber.
func (d *Dispatcher) Dispatch(kind subscription.Kind, key string, event *Event) int {
	subs := d.registry.Subscribers(kind, key)
	if len(subs) == 0 {
		return 0
	}

	delivered := 0
	for _, sub := range subs {
		if err := sub.Send(event); err != nil {
			metrics.DeliveryFailures.Inc()
			d.recordFailure(sub.ID())
			continue
		}
		d.clearFailures(sub.ID())
		delivered++
	}
	metrics.EventsDelivered.WithLabelValues(event.Type).Add(float64(delivered))
	return delivered
}

func (d *Dispatcher) recordFailure(subscriberID string) {
	d.mu.Lock()
	d.failures[subscriberID]++
	n := d.failures[subscriberID]
	d.mu.Unlock()

	if n >= maxSendFailures {
		log.Warn("dropping subscriber that cannot keep up",
			"subscriber", subscriberID, "consecutiveFailures", n)
		d.registry.DropSubscriber(subscriberID)
		d.clearFailures(subscriberID)
	}
}

func (d *Dispatcher) clearFailures(subscriberID string) {
	d.mu.Lock()
	delete(d.failures, subscriberID)
	d.mu.Unlock()
}

// DispatchLocation fans one accepted location update out to the vehicle's
// own topic, its route's topic, and the waiter topic of every stop the
// vehicle is arriving at.
func (d *Dispatcher) DispatchLocation(st state.VehicleState, etas []eta.Result) {
	loc := LocationUpdate{
		VehicleID: st.VehicleID,
		Latitude:  st.Latitude,
		Longitude: st.Longitude,
		Speed:     st.Speed,
		Bearing:   st.Bearing,
		ETAs:      etas,
		Timestamp: st.Timestamp,
	}

	d.Dispatch(subscription.KindVehicle, st.VehicleID, &Event{
		Type: TypeVehicleLocation,
		Data: loc,
	})

	if st.RouteID != "" {
		d.Dispatch(subscription.KindRoute, st.RouteID, &Event{
			Type: TypeRouteBus,
			Data: RouteBusUpdate{
				RouteID:  st.RouteID,
				Vehicle:  st.VehicleID,
				Location: loc,
				ETAs:     etas,
			},
		})
	}

	for _, r := range etas {
		if !d.engine.Arriving(r.DistanceMeters) {
			continue
		}
		minutes := d.engine.ArrivalMinutes(r.DistanceMeters)
		d.Dispatch(subscription.KindStop, r.StopID, &Event{
			Type: TypeArrival,
			Data: ArrivalNotification{
				VehicleID:      st.VehicleID,
				StopID:         r.StopID,
				StopName:       r.StopName,
				DistanceMeters: r.DistanceMeters,
				ETAMinutes:     minutes,
				Message:        fmt.Sprintf("Bus is arriving at %s in approximately %d minutes", r.StopName, minutes),
			},
		})
	}
}

// DispatchStatus fans a status change out to the vehicle and route topics.
func (d *Dispatcher) DispatchStatus(st state.VehicleState) {
	event := &Event{
		Type: TypeBusStatus,
		Data: BusStatusUpdate{
			VehicleID: st.VehicleID,
			Status:    st.Status,
			Message:   st.StatusMessage,
		},
	}
	d.Dispatch(subscription.KindVehicle, st.VehicleID, event)
	if st.RouteID != "" {
		d.Dispatch(subscription.KindRoute, st.RouteID, event)
	}
}

// adminTopicKey is the single admin fanout channel.
const adminTopicKey = "ops"

// DispatchAlert delivers an alert or emergency to admin subscribers.
func (d *Dispatcher) DispatchAlert(eventType, sourceID, priority string, detail []byte, receivedAt time.Time) int {
	return d.Dispatch(subscription.KindAdmin, adminTopicKey, &Event{
		Type: eventType,
		Data: AlertPayload{
			SourceID:   sourceID,
			Detail:     detail,
			Priority:   priority,
			ReceivedAt: receivedAt,
		},
	})
}
