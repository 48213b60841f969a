package options

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"
)

var _ IOptions = (*WsOptions)(nil)

// WsOptions contains configuration items related to the live-update
// websocket server.
type WsOptions struct {
	// Addr with server address.
	Addr string `json:"addr" mapstructure:"addr"`

	// SendBuffer is the per-client outbound event buffer. A client that
	// falls this far behind starts losing events.
	SendBuffer int `json:"send-buffer" mapstructure:"send-buffer"`

	// PingInterval keeps idle connections alive through proxies.
	PingInterval time.Duration `json:"ping-interval" mapstructure:"ping-interval"`
}

// NewWsOptions creates a WsOptions object with default parameters.
func NewWsOptions() *WsOptions {
	return &WsOptions{
		Addr:         "0.0.0.0:8081",
		SendBuffer:   64,
		PingInterval: 30 * time.Second,
	}
}

// Validate is used to parse and validate the parameters entered by the user at
// the command line when the program starts.
func (o *WsOptions) Validate() []error {
	if o == nil {
		return nil
	}

	errs := []error{}

	if err := ValidateAddress(o.Addr); err != nil {
		errs = append(errs, err)
	}
	if o.SendBuffer < 1 {
		errs = append(errs, fmt.Errorf("ws.send-buffer must be at least 1, got %d", o.SendBuffer))
	}

	return errs
}

// AddFlags adds flags related to the websocket server to the specified FlagSet.
func (o *WsOptions) AddFlags(fs *pflag.FlagSet) {
	fs.StringVar(&o.Addr, "ws.addr", o.Addr, "Specify the websocket server bind address and port.")
	fs.IntVar(&o.SendBuffer, "ws.send-buffer", o.SendBuffer, "Outbound event buffer per websocket client.")
	fs.DurationVar(&o.PingInterval, "ws.ping-interval", o.PingInterval, "Interval between websocket keepalive pings.")
}
