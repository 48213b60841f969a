// Package dispatch fans accepted updates out to subscribers. Delivery is
// per-subscriber independent: one slow consumer drops its own events and
// never delays the rest.
package dispatch

import (
	"encoding/json"
	"time"

	"github.com/Asadp3406/bus-tracking/internal/eta"
	"github.com/Asadp3406/bus-tracking/internal/telemetry"
)

// Event types delivered to subscribers.
const (
	TypeVehicleLocation = "vehicle_location_update"
	TypeRouteBus        = "route_bus_update"
	TypeArrival         = "bus_arrival_notification"
	TypeBusStatus       = "bus_status_update"
	TypeSystemAlert     = "system_alert"
	TypeEmergencyAlert  = "emergency_alert"
)

// Event is the envelope every subscriber receives.
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// LocationUpdate is the payload of a vehicle_location_update event.
type LocationUpdate struct {
	VehicleID string              `json:"vehicleId"`
	Latitude  float64             `json:"latitude"`
	Longitude float64             `json:"longitude"`
	Speed     float64             `json:"speed"`
	Bearing   float64             `json:"bearing"`
	ETAs      []eta.Result        `json:"etas,omitempty"`
	Timestamp telemetry.Timestamp `json:"timestamp"`
}

// RouteBusUpdate is the payload of a route_bus_update event.
type RouteBusUpdate struct {
	RouteID  string         `json:"routeId"`
	Vehicle  string         `json:"vehicleId"`
	Location LocationUpdate `json:"location"`
	ETAs     []eta.Result   `json:"etas,omitempty"`
}

// ArrivalNotification is the payload of a bus_arrival_notification event.
type ArrivalNotification struct {
	VehicleID      string  `json:"vehicleId"`
	StopID         string  `json:"stopId"`
	StopName       string  `json:"stopName,omitempty"`
	DistanceMeters float64 `json:"distanceMeters"`
	ETAMinutes     int     `json:"etaMinutes"`
	Message        string  `json:"message"`
}

// BusStatusUpdate is the payload of a bus_status_update event.
type BusStatusUpdate struct {
	VehicleID string           `json:"vehicleId"`
	Status    telemetry.Status `json:"status"`
	Message   string           `json:"message,omitempty"`
}

// AlertPayload is the payload of system_alert and emergency_alert events.
type AlertPayload struct {
	SourceID   string          `json:"sourceId"`
	Detail     json.RawMessage `json:"detail,omitempty"`
	Priority   string          `json:"priority,omitempty"`
	ReceivedAt time.Time       `json:"receivedAt"`
}
