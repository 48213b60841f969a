// Package gateway is the broker-facing edge of the hub: it subscribes to the
// telemetry topic tree, demultiplexes messages by domain and drives them
// through validation, state update, derivation and fanout. One bad message
// is logged and dropped; it never takes the gateway down.
package gateway

import (
	"context"
	"time"

	"github.com/Asadp3406/bus-tracking/internal/metrics"
	"github.com/Asadp3406/bus-tracking/internal/telemetry"
	"github.com/Asadp3406/bus-tracking/pkg/log"
	"github.com/Asadp3406/bus-tracking/pkg/mqtt"
	"github.com/Asadp3406/bus-tracking/pkg/mqtt/topic"
	"github.com/Asadp3406/bus-tracking/pkg/options"
)

// subscribeQoS is the QoS for all gateway subscriptions. At-least-once
// delivery is safe because the state store discards replayed samples.
const subscribeQoS = 1

// Gateway owns the MQTT ingestion side of the hub.
type Gateway struct {
	client   mqtt.Client
	builder  *topic.Builder
	pipeline *Pipeline
	pool     *workerPool
	link     *brokerLink
}

// New creates a Gateway. The returned gateway installs itself as the
// client's status listener through cfg before the client connects.
func New(cfg *mqtt.ClientConfig, builder *topic.Builder, pipeline *Pipeline, trackerOpts *options.TrackerOptions) (*Gateway, error) {
	g := &Gateway{
		builder:  builder,
		pipeline: pipeline,
		link:     newBrokerLink(trackerOpts.MaxConnectFailures),
	}
	g.pool = newWorkerPool(trackerOpts.VehicleQueueSize, trackerOpts.WorkerIdleTimeout, g.processJob)

	cfg.StatusListener = g.link.Observe
	client, err := mqtt.NewClient(cfg)
	if err != nil {
		return nil, err
	}
	g.client = client
	return g, nil
}

// Run connects, subscribes to the telemetry tree and blocks until ctx is
// done. The underlying client reconnects and resubscribes on its own; Run
// only returns on shutdown or when the initial setup fails outright.
func (g *Gateway) Run(ctx context.Context) error {
	if err := g.client.Start(ctx); err != nil {
		return err
	}
	if err := g.client.AwaitConnection(ctx); err != nil {
		return err
	}

	for _, filter := range g.builder.SubscriptionFilters() {
		if err := g.client.Subscribe(ctx, filter, subscribeQoS, g.handleMessage); err != nil {
			return err
		}
	}
	log.Info("ingestion gateway subscribed", "filters", len(g.builder.SubscriptionFilters()))

	<-ctx.Done()

	disconnectCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	g.client.Disconnect(disconnectCtx)
	g.pool.Close()
	return nil
}

// LinkState exposes the broker link state for health endpoints.
func (g *Gateway) LinkState() string { return g.link.State() }

// Ready reports whether the broker link is up.
func (g *Gateway) Ready() bool { return g.link.Ready() }

// handleMessage is the entry point for every broker message. Alerts and
// emergencies are escalated synchronously here, off the per-vehicle queues,
// so they are never stuck behind bulk location traffic.
func (g *Gateway) handleMessage(ctx context.Context, rawTopic string, payload []byte) {
	ref, err := topic.Parse(g.builder.Strip(rawTopic))
	if err != nil {
		metrics.MessagesRejected.WithLabelValues("malformed_topic").Inc()
		log.Warn("unrecognized topic dropped", "topic", rawTopic)
		return
	}
	metrics.MessagesReceived.WithLabelValues(string(ref.Domain)).Inc()

	switch ref.Domain {
	case topic.DomainAlert:
		g.pipeline.Escalate(ctx, telemetry.AlertEvent{
			SourceID:   ref.EntityID,
			Kind:       telemetry.KindSystemAlert,
			Payload:    append([]byte(nil), payload...),
			ReceivedAt: time.Now(),
		})

	case topic.DomainEmergency:
		g.pipeline.Escalate(ctx, telemetry.AlertEvent{
			SourceID:   ref.EntityID,
			Kind:       telemetry.KindEmergency,
			Payload:    append([]byte(nil), payload...),
			ReceivedAt: time.Now(),
		})

	case topic.DomainVehicle:
		g.pool.Enqueue(ref.EntityID, Job{Ref: ref, Payload: append([]byte(nil), payload...)})

	case topic.DomainDevice:
		vehicleID, ok := g.pipeline.provider.Snapshot().VehicleForDevice(ref.EntityID)
		if !ok {
			metrics.MessagesRejected.WithLabelValues("unknown_device").Inc()
			log.Warn("fix from unassigned device dropped", "device", ref.EntityID)
			return
		}
		g.pool.Enqueue(vehicleID, Job{Ref: ref, Payload: append([]byte(nil), payload...)})

	case topic.DomainDriver:
		g.handleDriver(ctx, ref, payload)
	}
}

// handleDriver splits the driver envelope: the emergency half escalates
// immediately, the location/status halves queue behind the vehicle's other
// telemetry to keep per-vehicle ordering.
func (g *Gateway) handleDriver(ctx context.Context, ref topic.Ref, payload []byte) {
	upd, err := g.pipeline.validator.ParseDriverUpdate(payload)
	if err != nil {
		metrics.MessagesRejected.WithLabelValues("malformed_payload").Inc()
		log.Warn("driver update rejected", "driver", ref.EntityID, "reason", err.Error())
		return
	}

	if upd.Emergency != nil {
		g.pipeline.Escalate(ctx, telemetry.AlertEvent{
			SourceID:   ref.EntityID,
			Kind:       telemetry.KindEmergency,
			Payload:    append([]byte(nil), *upd.Emergency...),
			ReceivedAt: time.Now(),
		})
	}

	if upd.Location == nil && upd.Status == "" {
		return
	}
	if upd.VehicleID == "" {
		metrics.MessagesRejected.WithLabelValues("malformed_payload").Inc()
		log.Warn("driver update without vehicle reference dropped", "driver", ref.EntityID)
		return
	}

	g.pool.Enqueue(upd.VehicleID, Job{Ref: ref, Payload: append([]byte(nil), payload...)})
}

// processJob runs on a per-vehicle worker goroutine.
func (g *Gateway) processJob(vehicleID string, j Job) {
	switch {
	case j.Ref.Domain == topic.DomainVehicle && j.Ref.Kind == topic.KindLocation:
		g.pipeline.HandleLocation(vehicleID, j.Payload)
	case j.Ref.Domain == topic.DomainVehicle && j.Ref.Kind == topic.KindStatus:
		g.pipeline.HandleStatus(vehicleID, j.Payload)
	case j.Ref.Domain == topic.DomainDevice && j.Ref.Kind == topic.KindGPS:
		g.pipeline.HandleDeviceGPS(vehicleID, j.Payload)
	case j.Ref.Domain == topic.DomainDriver:
		upd, err := g.pipeline.validator.ParseDriverUpdate(j.Payload)
		if err != nil {
			return
		}
		g.pipeline.HandleDriverParts(upd)
	default:
		metrics.MessagesRejected.WithLabelValues("malformed_topic").Inc()
	}
}
