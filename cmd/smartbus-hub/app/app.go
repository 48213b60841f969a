package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/Asadp3406/bus-tracking/cmd/smartbus-hub/app/options"
	"github.com/Asadp3406/bus-tracking/internal/hub"
	"github.com/Asadp3406/bus-tracking/pkg/app"
)

const (
	commandName = "smartbus-hub"
	commandDesc = `The SmartBus hub ingests vehicle telemetry from the MQTT broker,
maintains the live fleet state, derives arrival estimates and fans events out to
HTTP and WebSocket consumers. Alerts and emergencies are escalated to operators
and, optionally, an external webhook.`
)

// NewApp builds the smartbus-hub command.
func NewApp() *app.App {
	opts := options.NewHubOptions()
	return app.NewApp(
		commandName,
		"Launch the SmartBus fleet tracking hub",
		app.WithDescription(commandDesc),
		app.WithOptions(opts),
		app.WithLogOptions(opts.Log),
		app.WithRunFunc(run(opts)),
	)
}

func run(opts *options.HubOptions) app.RunFunc {
	return func() error {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		cfg, err := opts.Config()
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}

		return hub.New(cfg).Run(ctx)
	}
}
