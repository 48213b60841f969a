package eta

import (
	"math"
	"time"

	"github.com/Asadp3406/bus-tracking/internal/routes"
)

// Result is one arrival estimate for one stop. Results are derived on every
// accepted location update and never stored.
type Result struct {
	VehicleID      string    `json:"vehicleId"`
	StopID         string    `json:"stopId"`
	StopName       string    `json:"stopName,omitempty"`
	DistanceMeters float64   `json:"distanceMeters"`
	ETAMinutes     int       `json:"etaMinutes"`
	ComputedAt     time.Time `json:"computedAt"`
}

// Config tunes the estimate derivation.
type Config struct {
	// MinSpeedMetersPerSecond floors the reported speed so estimates stay
	// finite when a vehicle idles at a signal.
	MinSpeedMetersPerSecond float64
	// ReferenceSpeedMetersPerMinute is the assumed pace when neither the
	// vehicle nor its route has a usable speed. Also the divisor for
	// arrival-notification estimates.
	ReferenceSpeedMetersPerMinute float64
	// ProximityThresholdMeters bounds the "arriving" zone around a stop.
	ProximityThresholdMeters float64
}

// Engine computes arrival estimates. It is pure given its inputs and safe
// for concurrent use.
type Engine struct {
	cfg Config
}

// NewEngine creates an Engine with the given tuning.
func NewEngine(cfg Config) *Engine {
	return &Engine{cfg: cfg}
}

// effectiveSpeed picks the speed in meters per second used for estimates:
// the reported speed when it clears the floor, else the route average, else
// the configured reference pace.
func (e *Engine) effectiveSpeed(reported, routeAvg float64) float64 {
	if reported >= e.cfg.MinSpeedMetersPerSecond {
		return reported
	}
	if routeAvg >= e.cfg.MinSpeedMetersPerSecond {
		return routeAvg
	}
	return e.cfg.ReferenceSpeedMetersPerMinute / 60
}

// Compute returns one estimate per remaining stop ahead of the vehicle,
// ordered along the route. The nearest stop is taken as the vehicle's
// progress marker; stops behind it are done.
func (e *Engine) Compute(vehicleID string, lat, lng, speed, routeAvg float64, route routes.Route, now time.Time) []Result {
	if len(route.Stops) == 0 {
		return nil
	}

	nearest := 0
	nearestDist := math.Inf(1)
	dists := make([]float64, len(route.Stops))
	for i, stop := range route.Stops {
		d := DistanceMeters(lat, lng, stop.Latitude, stop.Longitude)
		dists[i] = d
		if d < nearestDist {
			nearestDist = d
			nearest = i
		}
	}

	speedPerMin := e.effectiveSpeed(speed, routeAvg) * 60
	out := make([]Result, 0, len(route.Stops)-nearest)
	for i := nearest; i < len(route.Stops); i++ {
		stop := route.Stops[i]
		out = append(out, Result{
			VehicleID:      vehicleID,
			StopID:         stop.ID,
			StopName:       stop.Name,
			DistanceMeters: dists[i],
			ETAMinutes:     int(math.Ceil(dists[i] / speedPerMin)),
			ComputedAt:     now,
		})
	}
	return out
}

// Arriving reports whether a vehicle this far from a stop is inside the
// arrival-notification zone.
func (e *Engine) Arriving(distanceMeters float64) bool {
	return distanceMeters <= e.cfg.ProximityThresholdMeters
}

// ArrivalMinutes is the estimate attached to arrival notifications. It uses
// the reference pace rather than the live speed so waiters at a stop see a
// stable countdown.
func (e *Engine) ArrivalMinutes(distanceMeters float64) int {
	return int(math.Ceil(distanceMeters / e.cfg.ReferenceSpeedMetersPerMinute))
}
