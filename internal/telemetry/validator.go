package telemetry

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

// RejectionReason explains why a sample was refused. It is the only error
// type the validator returns for malformed input, so callers can distinguish
// bad data (drop and count) from programming errors.
type RejectionReason struct {
	Field  string
	Detail string
}

func (e *RejectionReason) Error() string {
	if e.Field == "" {
		return e.Detail
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Detail)
}

// AsRejection returns the RejectionReason inside err, if any.
func AsRejection(err error) (*RejectionReason, bool) {
	var r *RejectionReason
	ok := errors.As(err, &r)
	return r, ok
}

// Validator checks shape and range of incoming telemetry. It is stateless
// and safe for concurrent use.
type Validator struct {
	validate *validator.Validate
}

// NewValidator creates a Validator.
func NewValidator() *Validator {
	return &Validator{validate: validator.New(validator.WithRequiredStructEnabled())}
}

// locationWire mirrors LocationSample with pointer fields so missing required
// values are detectable (JSON zero vs absent).
type locationWire struct {
	Latitude  *float64   `json:"latitude"`
	Longitude *float64   `json:"longitude"`
	Speed     *float64   `json:"speed"`
	Bearing   *float64   `json:"bearing"`
	Accuracy  *float64   `json:"accuracy"`
	Timestamp *Timestamp `json:"timestamp"`
}

// ParseLocation decodes and validates a location payload for the given
// vehicle. Producers may omit speed, bearing and accuracy (they default to
// zero, zero and 10 m) and timestamp (defaults to receipt time), matching the
// deployed device firmware. Latitude and longitude are required.
func (v *Validator) ParseLocation(vehicleID string, payload []byte) (LocationSample, error) {
	var wire locationWire
	if err := json.Unmarshal(payload, &wire); err != nil {
		return LocationSample{}, &RejectionReason{Detail: fmt.Sprintf("malformed payload: %v", err)}
	}
	return v.buildSample(vehicleID, wire)
}

// deviceWire is the short-key payload used by dedicated GPS hardware.
type deviceWire struct {
	Lat       *float64   `json:"lat"`
	Lng       *float64   `json:"lng"`
	Speed     *float64   `json:"speed"`
	Bearing   *float64   `json:"bearing"`
	Accuracy  *float64   `json:"accuracy"`
	Timestamp *Timestamp `json:"timestamp"`
}

// ParseDeviceGPS decodes a device-format fix for the vehicle the device is
// assigned to.
func (v *Validator) ParseDeviceGPS(vehicleID string, payload []byte) (LocationSample, error) {
	var wire deviceWire
	if err := json.Unmarshal(payload, &wire); err != nil {
		return LocationSample{}, &RejectionReason{Detail: fmt.Sprintf("malformed payload: %v", err)}
	}
	return v.buildSample(vehicleID, locationWire{
		Latitude:  wire.Lat,
		Longitude: wire.Lng,
		Speed:     wire.Speed,
		Bearing:   wire.Bearing,
		Accuracy:  wire.Accuracy,
		Timestamp: wire.Timestamp,
	})
}

func (v *Validator) buildSample(vehicleID string, wire locationWire) (LocationSample, error) {
	if vehicleID == "" {
		return LocationSample{}, &RejectionReason{Field: "vehicleId", Detail: "missing"}
	}
	if wire.Latitude == nil {
		return LocationSample{}, &RejectionReason{Field: "latitude", Detail: "missing"}
	}
	if wire.Longitude == nil {
		return LocationSample{}, &RejectionReason{Field: "longitude", Detail: "missing"}
	}

	sample := LocationSample{
		VehicleID: vehicleID,
		Latitude:  *wire.Latitude,
		Longitude: *wire.Longitude,
		Accuracy:  10,
	}
	if wire.Speed != nil {
		sample.Speed = *wire.Speed
	}
	if wire.Bearing != nil {
		sample.Bearing = *wire.Bearing
	}
	if wire.Accuracy != nil {
		sample.Accuracy = *wire.Accuracy
	}
	if wire.Timestamp != nil {
		sample.Timestamp = *wire.Timestamp
	} else {
		sample.Timestamp = Timestamp(time.Now().UnixMilli())
	}

	if err := v.validate.Struct(sample); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			f := verrs[0]
			return LocationSample{}, &RejectionReason{
				Field:  f.Field(),
				Detail: fmt.Sprintf("failed %q check (value %v)", f.Tag(), f.Value()),
			}
		}
		return LocationSample{}, &RejectionReason{Detail: err.Error()}
	}

	return sample, nil
}

// ParseStatus decodes and validates a status payload.
func (v *Validator) ParseStatus(vehicleID string, payload []byte) (StatusUpdate, error) {
	var upd StatusUpdate
	if err := json.Unmarshal(payload, &upd); err != nil {
		return StatusUpdate{}, &RejectionReason{Detail: fmt.Sprintf("malformed payload: %v", err)}
	}
	upd.VehicleID = vehicleID
	if upd.Status == "" {
		return StatusUpdate{}, &RejectionReason{Field: "status", Detail: "missing"}
	}
	if !upd.Status.Valid() {
		return StatusUpdate{}, &RejectionReason{Field: "status", Detail: fmt.Sprintf("unknown status %q", upd.Status)}
	}
	if upd.Timestamp == 0 {
		upd.Timestamp = Timestamp(time.Now().UnixMilli())
	}
	return upd, nil
}

// ParseDriverUpdate decodes the driver-app envelope. Field-level validation
// of the embedded location happens when the caller feeds it back through
// ParseLocation.
func (v *Validator) ParseDriverUpdate(payload []byte) (DriverUpdate, error) {
	var upd DriverUpdate
	if err := json.Unmarshal(payload, &upd); err != nil {
		return DriverUpdate{}, &RejectionReason{Detail: fmt.Sprintf("malformed payload: %v", err)}
	}
	if upd.Status != "" && !upd.Status.Valid() {
		return DriverUpdate{}, &RejectionReason{Field: "status", Detail: fmt.Sprintf("unknown status %q", upd.Status)}
	}
	return upd, nil
}
