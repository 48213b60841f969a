package options

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"
)

var _ IOptions = (*TrackerOptions)(nil)

// TrackerOptions carries the tuning knobs of the tracking pipeline itself:
// freshness, proximity and ETA parameters plus ingestion queue bounds.
type TrackerOptions struct {
	// RoutesFile points at the route topology document maintained by the
	// administration surface. Watched for changes at runtime.
	RoutesFile string `json:"routes-file" mapstructure:"routes-file"`

	// FreshnessTTL is the age after which a vehicle drops out of "active"
	// listings.
	FreshnessTTL time.Duration `json:"freshness-ttl" mapstructure:"freshness-ttl"`

	// ProximityThresholdMeters is the distance at which stop waiters are
	// notified of an approaching vehicle.
	ProximityThresholdMeters float64 `json:"proximity-threshold-meters" mapstructure:"proximity-threshold-meters"`

	// ReferenceSpeed is used for arrival-notification ETA when no better
	// estimate exists, in meters per minute.
	ReferenceSpeedMetersPerMinute float64 `json:"reference-speed" mapstructure:"reference-speed"`

	// MinSpeedMetersPerSecond floors the reported speed in ETA division.
	MinSpeedMetersPerSecond float64 `json:"min-speed" mapstructure:"min-speed"`

	// VehicleQueueSize bounds the per-vehicle ingestion queue.
	VehicleQueueSize int `json:"vehicle-queue-size" mapstructure:"vehicle-queue-size"`

	// WorkerIdleTimeout retires a per-vehicle worker after inactivity.
	WorkerIdleTimeout time.Duration `json:"worker-idle-timeout" mapstructure:"worker-idle-timeout"`

	// AlertCooldown rate-limits system alerts per source. Emergencies are
	// never limited.
	AlertCooldown time.Duration `json:"alert-cooldown" mapstructure:"alert-cooldown"`

	// AlertWebhookURL, when set, receives escalated alerts as JSON POSTs in
	// addition to admin subscriber fanout.
	AlertWebhookURL string `json:"alert-webhook-url" mapstructure:"alert-webhook-url"`

	// MaxConnectFailures is the reconnect policy bound: after this many
	// consecutive broker connection failures the gateway reports itself
	// offline (it keeps retrying, but operators see the degraded state).
	MaxConnectFailures int `json:"max-connect-failures" mapstructure:"max-connect-failures"`
}

// NewTrackerOptions creates a TrackerOptions object with default parameters.
func NewTrackerOptions() *TrackerOptions {
	return &TrackerOptions{
		RoutesFile:                    "routes.yaml",
		FreshnessTTL:                  300 * time.Second,
		ProximityThresholdMeters:      500,
		ReferenceSpeedMetersPerMinute: 250,
		MinSpeedMetersPerSecond:       1.5,
		VehicleQueueSize:              8,
		WorkerIdleTimeout:             2 * time.Minute,
		AlertCooldown:                 30 * time.Second,
		MaxConnectFailures:            10,
	}
}

// Validate is used to parse and validate the parameters entered by the user at
// the command line when the program starts.
func (o *TrackerOptions) Validate() []error {
	if o == nil {
		return nil
	}

	errs := []error{}

	if o.FreshnessTTL <= 0 {
		errs = append(errs, fmt.Errorf("tracker.freshness-ttl must be positive, got %v", o.FreshnessTTL))
	}
	if o.ProximityThresholdMeters <= 0 {
		errs = append(errs, fmt.Errorf("tracker.proximity-threshold-meters must be positive, got %v", o.ProximityThresholdMeters))
	}
	if o.ReferenceSpeedMetersPerMinute <= 0 {
		errs = append(errs, fmt.Errorf("tracker.reference-speed must be positive, got %v", o.ReferenceSpeedMetersPerMinute))
	}
	if o.VehicleQueueSize < 1 {
		errs = append(errs, fmt.Errorf("tracker.vehicle-queue-size must be at least 1, got %d", o.VehicleQueueSize))
	}

	return errs
}

// AddFlags adds flags related to the tracking pipeline to the specified FlagSet.
func (o *TrackerOptions) AddFlags(fs *pflag.FlagSet) {
	fs.StringVar(&o.RoutesFile, "tracker.routes-file", o.RoutesFile, "Path to the route topology document.")
	fs.DurationVar(&o.FreshnessTTL, "tracker.freshness-ttl", o.FreshnessTTL, "Age after which a vehicle is excluded from active listings.")
	fs.Float64Var(&o.ProximityThresholdMeters, "tracker.proximity-threshold-meters", o.ProximityThresholdMeters, "Distance at which stop waiters are notified.")
	fs.Float64Var(&o.ReferenceSpeedMetersPerMinute, "tracker.reference-speed", o.ReferenceSpeedMetersPerMinute, "Reference speed for arrival ETA, meters per minute.")
	fs.Float64Var(&o.MinSpeedMetersPerSecond, "tracker.min-speed", o.MinSpeedMetersPerSecond, "Floor applied to reported speed in ETA computation, meters per second.")
	fs.IntVar(&o.VehicleQueueSize, "tracker.vehicle-queue-size", o.VehicleQueueSize, "Bound of the per-vehicle ingestion queue.")
	fs.DurationVar(&o.WorkerIdleTimeout, "tracker.worker-idle-timeout", o.WorkerIdleTimeout, "Idle time after which a per-vehicle worker is retired.")
	fs.DurationVar(&o.AlertCooldown, "tracker.alert-cooldown", o.AlertCooldown, "Minimum interval between system alerts from one source.")
	fs.StringVar(&o.AlertWebhookURL, "tracker.alert-webhook-url", o.AlertWebhookURL, "Webhook receiving escalated alerts as JSON (empty disables).")
	fs.IntVar(&o.MaxConnectFailures, "tracker.max-connect-failures", o.MaxConnectFailures, "Consecutive broker connect failures before reporting ingestion offline.")
}
