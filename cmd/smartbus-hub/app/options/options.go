package options

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/pflag"

	"github.com/Asadp3406/bus-tracking/internal/hub"
	"github.com/Asadp3406/bus-tracking/pkg/app"
	"github.com/Asadp3406/bus-tracking/pkg/log"
	"github.com/Asadp3406/bus-tracking/pkg/options"
)

// HubOptions aggregates every option block of the hub process.
type HubOptions struct {
	Mqtt     *options.MqttOptions     `json:"mqtt" mapstructure:"mqtt"`
	Http     *options.HttpOptions     `json:"http" mapstructure:"http"`
	Ws       *options.WsOptions       `json:"ws" mapstructure:"ws"`
	Redis    *options.RedisOptions    `json:"redis" mapstructure:"redis"`
	Postgres *options.PostgresOptions `json:"postgres" mapstructure:"postgres"`
	Tracker  *options.TrackerOptions  `json:"tracker" mapstructure:"tracker"`
	Log      *log.Options             `json:"log" mapstructure:"log"`
}

var _ app.Options = (*HubOptions)(nil)

// NewHubOptions creates a HubOptions with default parameters.
func NewHubOptions() *HubOptions {
	return &HubOptions{
		Mqtt:     options.NewMqttOptions(),
		Http:     options.NewHttpOptions(),
		Ws:       options.NewWsOptions(),
		Redis:    options.NewRedisOptions(),
		Postgres: options.NewPostgresOptions(),
		Tracker:  options.NewTrackerOptions(),
		Log:      log.NewOptions(),
	}
}

// AddFlags registers every option block's flags.
func (o *HubOptions) AddFlags(fs *pflag.FlagSet) {
	o.Mqtt.AddFlags(fs)
	o.Http.AddFlags(fs)
	o.Ws.AddFlags(fs)
	o.Redis.AddFlags(fs)
	o.Postgres.AddFlags(fs)
	o.Tracker.AddFlags(fs)
}

// Complete fills in derived defaults after flag parsing.
func (o *HubOptions) Complete() error {
	if o.Mqtt.ClientID == "" {
		hostname, err := os.Hostname()
		if err != nil {
			return fmt.Errorf("failed to resolve hostname for client ID: %w", err)
		}
		o.Mqtt.ClientID = fmt.Sprintf("smartbus-hub-%s", hostname)
	}
	return nil
}

// Validate checks the final option values.
func (o *HubOptions) Validate() error {
	errs := []error{}
	errs = append(errs, o.Mqtt.Validate()...)
	errs = append(errs, o.Http.Validate()...)
	errs = append(errs, o.Ws.Validate()...)
	errs = append(errs, o.Redis.Validate()...)
	errs = append(errs, o.Postgres.Validate()...)
	errs = append(errs, o.Tracker.Validate()...)
	errs = append(errs, o.Log.Validate()...)
	return errors.Join(errs...)
}

// Config assembles the hub configuration.
func (o *HubOptions) Config() (*hub.Config, error) {
	return &hub.Config{
		Mqtt:     o.Mqtt,
		Http:     o.Http,
		Ws:       o.Ws,
		Redis:    o.Redis,
		Postgres: o.Postgres,
		Tracker:  o.Tracker,
	}, nil
}
