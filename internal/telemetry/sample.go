// Package telemetry defines the wire-level telemetry records and their
// validation. Everything here is pure: parsing and range checking with no
// side effects, so the gateway can drop bad input before it touches shared
// state.
package telemetry

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// Timestamp is a producer-supplied, monotonic-comparable instant in epoch
// milliseconds. Producers that send RFC 3339 strings are normalized to epoch
// milliseconds on parse; numeric values pass through untouched so replayed
// payloads compare identically.
type Timestamp int64

// UnmarshalJSON accepts either a JSON number or an RFC 3339 string.
func (t *Timestamp) UnmarshalJSON(data []byte) error {
	if len(data) == 0 {
		return fmt.Errorf("empty timestamp")
	}

	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		parsed, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return fmt.Errorf("unparseable timestamp %q: %w", s, err)
		}
		*t = Timestamp(parsed.UnixMilli())
		return nil
	}

	n, err := strconv.ParseInt(string(data), 10, 64)
	if err != nil {
		return fmt.Errorf("unparseable timestamp %s: %w", data, err)
	}
	*t = Timestamp(n)
	return nil
}

// LocationSample is one validated positional report from a vehicle or its
// tracking device.
type LocationSample struct {
	VehicleID string    `json:"vehicleId" validate:"required"`
	Latitude  float64   `json:"latitude" validate:"gte=-90,lte=90"`
	Longitude float64   `json:"longitude" validate:"gte=-180,lte=180"`
	Speed     float64   `json:"speed" validate:"gte=0"`
	Bearing   float64   `json:"bearing" validate:"gte=0,lt=360"`
	Accuracy  float64   `json:"accuracy" validate:"gte=0"`
	Timestamp Timestamp `json:"timestamp"`
}

// Status is the operational status of a vehicle.
type Status string

const (
	StatusActive      Status = "active"
	StatusInactive    Status = "inactive"
	StatusMaintenance Status = "maintenance"
	StatusDelayed     Status = "delayed"
	StatusBreakdown   Status = "breakdown"
)

// Valid reports whether s is one of the known operational statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusActive, StatusInactive, StatusMaintenance, StatusDelayed, StatusBreakdown:
		return true
	}
	return false
}

// StatusUpdate is a vehicle status change report.
type StatusUpdate struct {
	VehicleID string    `json:"vehicleId"`
	Status    Status    `json:"status" validate:"required"`
	Message   string    `json:"message"`
	Timestamp Timestamp `json:"timestamp"`
}

// AlertKind classifies escalation-path messages.
type AlertKind string

const (
	KindSystemAlert AlertKind = "system-alert"
	KindEmergency   AlertKind = "emergency"
)

// AlertEvent is a transient alert or emergency message on the escalation path.
type AlertEvent struct {
	SourceID   string
	Kind       AlertKind
	Payload    json.RawMessage
	ReceivedAt time.Time
	Priority   string
}

// DriverUpdate is the driver-app envelope: an optional embedded location for
// the driver's vehicle, an optional status change and an optional emergency.
type DriverUpdate struct {
	VehicleID string           `json:"vehicleId"`
	Location  *json.RawMessage `json:"location"`
	Status    Status           `json:"status"`
	Message   string           `json:"message"`
	Emergency *json.RawMessage `json:"emergency"`
}
