// Package topic defines the MQTT topic topology shared by telemetry producers
// and the ingestion gateway. The layout is the protocol contract with the
// on-vehicle devices and driver apps; changing these segments breaks deployed
// producers.
package topic

import (
	"fmt"
	"strings"
)

// Domain is the first topic segment and selects the processing path.
type Domain string

const (
	// DomainVehicle carries vehicle-originated updates.
	// Pattern: vehicle/{vehicleID}/{location|status}
	DomainVehicle Domain = "vehicle"

	// DomainDriver carries driver-app updates that embed a vehicle reference.
	// Pattern: driver/{driverID}/update
	DomainDriver Domain = "driver"

	// DomainDevice carries raw GPS fixes from dedicated tracking hardware.
	// Pattern: device/{deviceID}/gps
	DomainDevice Domain = "device"

	// DomainAlert carries operational system alerts.
	// Pattern: alert/{kind}
	DomainAlert Domain = "alert"

	// DomainEmergency carries safety-critical messages.
	// Pattern: emergency/{source}
	DomainEmergency Domain = "emergency"
)

// Update kinds for the three-segment domains.
const (
	KindLocation = "location"
	KindStatus   = "status"
	KindUpdate   = "update"
	KindGPS      = "gps"
)

// Ref is a parsed topic reference.
type Ref struct {
	Domain   Domain
	EntityID string
	Kind     string
}

// ParseError reports an unrecognized topic shape.
type ParseError struct {
	Topic  string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("unrecognized topic %q: %s", e.Topic, e.Reason)
}

// Parse splits an incoming topic into a Ref. Alert and emergency topics have
// two segments (the second is the kind/source); all other domains have three.
func Parse(topic string) (Ref, error) {
	parts := strings.Split(topic, "/")
	if len(parts) < 2 {
		return Ref{}, &ParseError{Topic: topic, Reason: "too few segments"}
	}

	domain := Domain(parts[0])
	switch domain {
	case DomainAlert, DomainEmergency:
		if len(parts) != 2 || parts[1] == "" {
			return Ref{}, &ParseError{Topic: topic, Reason: "expected {domain}/{id}"}
		}
		return Ref{Domain: domain, EntityID: parts[1]}, nil
	case DomainVehicle, DomainDriver, DomainDevice:
		if len(parts) != 3 || parts[1] == "" || parts[2] == "" {
			return Ref{}, &ParseError{Topic: topic, Reason: "expected {domain}/{id}/{kind}"}
		}
		return Ref{Domain: domain, EntityID: parts[1], Kind: parts[2]}, nil
	default:
		return Ref{}, &ParseError{Topic: topic, Reason: "unknown domain"}
	}
}

// Builder constructs topic strings and subscription filters.
type Builder struct {
	// root is an optional namespace prefix (e.g. "smartbus/prod"). Empty
	// means topics start at the domain segment, which is what the deployed
	// producers use.
	root string
}

// NewBuilder creates a Builder with the given root namespace. root may be
// empty.
func NewBuilder(root string) *Builder {
	return &Builder{root: strings.Trim(root, "/")}
}

// Strip removes the builder's root prefix from an incoming topic before
// parsing. Topics outside the namespace are returned unchanged.
func (b *Builder) Strip(topic string) string {
	if b.root == "" {
		return topic
	}
	return strings.TrimPrefix(topic, b.root+"/")
}

// VehicleLocation returns the topic a vehicle publishes positions on.
func (b *Builder) VehicleLocation(vehicleID string) string {
	return b.join(string(DomainVehicle), vehicleID, KindLocation)
}

// VehicleStatus returns the topic a vehicle publishes status changes on.
func (b *Builder) VehicleStatus(vehicleID string) string {
	return b.join(string(DomainVehicle), vehicleID, KindStatus)
}

// SubscriptionFilters returns every filter the ingestion gateway subscribes
// to, in a stable order.
func (b *Builder) SubscriptionFilters() []string {
	return []string{
		b.join(string(DomainVehicle), "+", KindLocation),
		b.join(string(DomainVehicle), "+", KindStatus),
		b.join(string(DomainDriver), "+", KindUpdate),
		b.join(string(DomainDevice), "+", KindGPS),
		b.join(string(DomainAlert), "+"),
		b.join(string(DomainEmergency), "+"),
	}
}

func (b *Builder) join(parts ...string) string {
	if b.root != "" {
		parts = append([]string{b.root}, parts...)
	}
	return strings.Join(parts, "/")
}
