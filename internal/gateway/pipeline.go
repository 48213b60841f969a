package gateway

import (
	"context"
	"time"

	"github.com/Asadp3406/bus-tracking/internal/alert"
	"github.com/Asadp3406/bus-tracking/internal/dispatch"
	"github.com/Asadp3406/bus-tracking/internal/eta"
	"github.com/Asadp3406/bus-tracking/internal/metrics"
	"github.com/Asadp3406/bus-tracking/internal/routes"
	"github.com/Asadp3406/bus-tracking/internal/state"
	"github.com/Asadp3406/bus-tracking/internal/telemetry"
	"github.com/Asadp3406/bus-tracking/pkg/log"
)

// LocationMirror is an optional external cache receiving accepted locations.
type LocationMirror interface {
	StoreLocation(ctx context.Context, st state.VehicleState) error
}

// HistoryRecorder is an optional durable sink for accepted locations and
// status changes. Implementations must not block.
type HistoryRecorder interface {
	RecordLocation(st state.VehicleState)
	RecordStatus(upd telemetry.StatusUpdate)
}

// Pipeline drives validated telemetry through state update, derivation and
// fanout. Per-vehicle serialization is the caller's concern (the worker
// pool); the pipeline itself is stateless apart from its collaborators.
type Pipeline struct {
	validator  *telemetry.Validator
	store      *state.Store
	engine     *eta.Engine
	averages   *eta.AverageTracker
	provider   *routes.Provider
	dispatcher *dispatch.Dispatcher
	escalator  *alert.Escalator

	mirror  LocationMirror
	history HistoryRecorder
}

// NewPipeline wires a Pipeline. mirror and history may be nil.
func NewPipeline(
	validator *telemetry.Validator,
	store *state.Store,
	engine *eta.Engine,
	averages *eta.AverageTracker,
	provider *routes.Provider,
	dispatcher *dispatch.Dispatcher,
	escalator *alert.Escalator,
	mirror LocationMirror,
	history HistoryRecorder,
) *Pipeline {
	return &Pipeline{
		validator:  validator,
		store:      store,
		engine:     engine,
		averages:   averages,
		provider:   provider,
		dispatcher: dispatcher,
		escalator:  escalator,
		mirror:     mirror,
		history:    history,
	}
}

// HandleLocation processes one vehicle location payload end to end.
func (p *Pipeline) HandleLocation(vehicleID string, payload []byte) {
	sample, err := p.validator.ParseLocation(vehicleID, payload)
	if err != nil {
		p.reject(vehicleID, err)
		return
	}
	p.applyLocation(sample)
}

// HandleDeviceGPS processes a short-key fix from tracking hardware already
// resolved to its vehicle.
func (p *Pipeline) HandleDeviceGPS(vehicleID string, payload []byte) {
	sample, err := p.validator.ParseDeviceGPS(vehicleID, payload)
	if err != nil {
		p.reject(vehicleID, err)
		return
	}
	p.applyLocation(sample)
}

func (p *Pipeline) applyLocation(sample telemetry.LocationSample) {
	routeID, _ := p.provider.Snapshot().VehicleRoute(sample.VehicleID)
	if routeID != "" {
		p.store.SetRoute(sample.VehicleID, routeID)
	}

	res := p.store.ApplyLocation(sample)
	if !res.Applied {
		metrics.SamplesStale.Inc()
		log.Debug("stale sample discarded",
			"vehicle", sample.VehicleID, "timestamp", int64(sample.Timestamp))
		return
	}
	metrics.SamplesApplied.Inc()
	metrics.TrackedVehicles.Set(float64(p.store.Len()))

	st, _ := p.store.Get(sample.VehicleID)

	var etas []eta.Result
	if routeID != "" {
		p.averages.Observe(routeID, sample.Speed)
		if route, ok := p.provider.Snapshot().Route(routeID); ok {
			etas = p.engine.Compute(sample.VehicleID, sample.Latitude, sample.Longitude,
				sample.Speed, p.averages.Get(routeID), route, time.Now())
		}
	}

	p.dispatcher.DispatchLocation(st, etas)

	if p.history != nil {
		p.history.RecordLocation(st)
	}
	if p.mirror != nil {
		go p.mirrorLocation(st)
	}
}

func (p *Pipeline) mirrorLocation(st state.VehicleState) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := p.mirror.StoreLocation(ctx, st); err != nil {
		log.Error(err, "location mirror write failed", "vehicle", st.VehicleID)
	}
}

// HandleStatus processes one vehicle status payload.
func (p *Pipeline) HandleStatus(vehicleID string, payload []byte) {
	upd, err := p.validator.ParseStatus(vehicleID, payload)
	if err != nil {
		p.reject(vehicleID, err)
		return
	}
	st := p.store.ApplyStatus(upd)
	p.dispatcher.DispatchStatus(st)
	if p.history != nil {
		p.history.RecordStatus(upd)
	}
}

// HandleDriverParts processes the location and status halves of a driver
// update for its vehicle. The emergency half never reaches here; the gateway
// escalates it before queueing.
func (p *Pipeline) HandleDriverParts(upd telemetry.DriverUpdate) {
	if upd.Location != nil {
		p.HandleLocation(upd.VehicleID, *upd.Location)
	}
	if upd.Status != "" {
		status := telemetry.StatusUpdate{
			VehicleID: upd.VehicleID,
			Status:    upd.Status,
			Message:   upd.Message,
			Timestamp: telemetry.Timestamp(time.Now().UnixMilli()),
		}
		st := p.store.ApplyStatus(status)
		p.dispatcher.DispatchStatus(st)
		if p.history != nil {
			p.history.RecordStatus(status)
		}
	}
}

// Escalate forwards an alert event on the escalation path.
func (p *Pipeline) Escalate(ctx context.Context, event telemetry.AlertEvent) {
	p.escalator.Escalate(ctx, event)
}

func (p *Pipeline) reject(vehicleID string, err error) {
	reason := "malformed_payload"
	if rej, ok := telemetry.AsRejection(err); ok && rej.Field != "" {
		reason = "out_of_range"
	}
	metrics.MessagesRejected.WithLabelValues(reason).Inc()
	log.Warn("telemetry rejected", "vehicle", vehicleID, "reason", err.Error())
}
