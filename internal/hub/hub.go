// Package hub assembles the tracking pipeline and its serving surfaces into
// one process: MQTT ingestion, the read API, the websocket fanout, the route
// topology watcher and the optional storage backends.
package hub

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/Asadp3406/bus-tracking/internal/alert"
	"github.com/Asadp3406/bus-tracking/internal/dispatch"
	"github.com/Asadp3406/bus-tracking/internal/eta"
	"github.com/Asadp3406/bus-tracking/internal/gateway"
	"github.com/Asadp3406/bus-tracking/internal/notify"
	"github.com/Asadp3406/bus-tracking/internal/routes"
	"github.com/Asadp3406/bus-tracking/internal/server/httpapi"
	"github.com/Asadp3406/bus-tracking/internal/server/ws"
	"github.com/Asadp3406/bus-tracking/internal/state"
	"github.com/Asadp3406/bus-tracking/internal/storage/postgres"
	"github.com/Asadp3406/bus-tracking/internal/storage/rediscache"
	"github.com/Asadp3406/bus-tracking/internal/subscription"
	"github.com/Asadp3406/bus-tracking/internal/telemetry"
	"github.com/Asadp3406/bus-tracking/pkg/log"
	"github.com/Asadp3406/bus-tracking/pkg/mqtt/topic"
	"github.com/Asadp3406/bus-tracking/pkg/options"
)

// Config carries every option block the hub needs.
type Config struct {
	Mqtt     *options.MqttOptions
	Http     *options.HttpOptions
	Ws       *options.WsOptions
	Redis    *options.RedisOptions
	Postgres *options.PostgresOptions
	Tracker  *options.TrackerOptions
}

// Hub is the assembled tracking service.
type Hub struct {
	cfg *Config
}

// New creates a Hub from cfg.
func New(cfg *Config) *Hub {
	return &Hub{cfg: cfg}
}

// Run builds the pipeline and serves until ctx is done or a component fails.
func (h *Hub) Run(ctx context.Context) error {
	cfg := h.cfg

	provider, err := routes.NewProvider(cfg.Tracker.RoutesFile)
	if err != nil {
		return fmt.Errorf("load route topology: %w", err)
	}

	store := state.NewStore()
	engine := eta.NewEngine(eta.Config{
		MinSpeedMetersPerSecond:       cfg.Tracker.MinSpeedMetersPerSecond,
		ReferenceSpeedMetersPerMinute: cfg.Tracker.ReferenceSpeedMetersPerMinute,
		ProximityThresholdMeters:      cfg.Tracker.ProximityThresholdMeters,
	})
	averages := eta.NewAverageTracker()
	registry := subscription.NewRegistry()
	dispatcher := dispatch.NewDispatcher(registry, engine)

	// Route edits re-pin vehicles and seed speed averages without a restart.
	applyTopology := func(topo *routes.Topology) {
		for vehicleID, routeID := range topo.Assignments() {
			store.SetRoute(vehicleID, routeID)
		}
		for _, route := range topo.Routes() {
			averages.Seed(route.ID, route.AverageSpeed)
		}
	}
	applyTopology(provider.Snapshot())
	provider.OnReload(applyTopology)

	var mirror gateway.LocationMirror
	if cfg.Redis.Addr != "" {
		cache, err := rediscache.New(cfg.Redis)
		if err != nil {
			return fmt.Errorf("connect freshness cache: %w", err)
		}
		defer cache.Close()
		mirror = cache
		log.Info("location freshness cache enabled", "addr", cfg.Redis.Addr)
	}

	var sink *postgres.Sink
	var history gateway.HistoryRecorder
	var recorder alert.Recorder
	if cfg.Postgres.DSN != "" {
		sink, err = postgres.New(ctx, cfg.Postgres)
		if err != nil {
			return fmt.Errorf("connect history sink: %w", err)
		}
		history = sink
		recorder = sink
		log.Info("telemetry history sink enabled")
	}

	var notifier notify.Notifier
	if cfg.Tracker.AlertWebhookURL != "" {
		notifier = notify.NewWebhookNotifier(cfg.Tracker.AlertWebhookURL)
		log.Info("alert webhook enabled", "url", cfg.Tracker.AlertWebhookURL)
	}

	escalator := alert.NewEscalator(dispatcher, notifier, recorder, cfg.Tracker.AlertCooldown)
	pipeline := gateway.NewPipeline(telemetry.NewValidator(), store, engine, averages,
		provider, dispatcher, escalator, mirror, history)

	gw, err := gateway.New(cfg.Mqtt.ToClientConfig(), topic.NewBuilder(cfg.Mqtt.TopicRoot),
		pipeline, cfg.Tracker)
	if err != nil {
		return fmt.Errorf("create ingestion gateway: %w", err)
	}

	apiServer := httpapi.NewServer(cfg.Http, store, provider, engine, averages,
		cfg.Tracker.FreshnessTTL, gw)
	wsServer := ws.NewServer(cfg.Ws, registry)

	eg, ctx := errgroup.WithContext(ctx)
	eg.Go(func() error { return gw.Run(ctx) })
	eg.Go(func() error { return apiServer.Start(ctx) })
	eg.Go(func() error { return wsServer.Start(ctx) })
	eg.Go(func() error { return provider.Watch(ctx) })
	if sink != nil {
		eg.Go(func() error { return sink.Run(ctx) })
	}

	log.Info("smartbus hub started",
		"broker", cfg.Mqtt.Broker, "http", cfg.Http.Addr, "ws", cfg.Ws.Addr)
	return eg.Wait()
}
