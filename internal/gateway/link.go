package gateway

import (
	"context"
	"sync"

	"github.com/looplab/fsm"

	"github.com/Asadp3406/bus-tracking/internal/metrics"
	"github.com/Asadp3406/bus-tracking/pkg/log"
	"github.com/Asadp3406/bus-tracking/pkg/mqtt"
)

// Broker link states.
const (
	LinkConnecting = "connecting"
	LinkOnline     = "online"
	LinkDegraded   = "degraded"
	LinkOffline    = "offline"
)

var linkStates = []string{LinkConnecting, LinkOnline, LinkDegraded, LinkOffline}

// brokerLink models the broker connection lifecycle. The client keeps
// reconnecting forever; the link's job is to expose an honest health signal.
// After maxFailures consecutive failed attempts the link reports offline so
// readiness probes pull the hub out of rotation, while reconnects continue.
type brokerLink struct {
	maxFailures int

	mu       sync.Mutex
	machine  *fsm.FSM
	failures int
}

func newBrokerLink(maxFailures int) *brokerLink {
	l := &brokerLink{maxFailures: maxFailures}
	l.machine = fsm.NewFSM(
		LinkConnecting,
		fsm.Events{
			{Name: "up", Src: []string{LinkConnecting, LinkDegraded, LinkOffline}, Dst: LinkOnline},
			{Name: "drop", Src: []string{LinkOnline}, Dst: LinkDegraded},
			{Name: "fail", Src: []string{LinkConnecting, LinkOnline, LinkDegraded}, Dst: LinkDegraded},
			{Name: "exhaust", Src: []string{LinkDegraded}, Dst: LinkOffline},
		},
		fsm.Callbacks{
			"enter_state": func(_ context.Context, e *fsm.Event) {
				metrics.SetBrokerState(e.Dst, linkStates)
			},
		},
	)
	metrics.SetBrokerState(LinkConnecting, linkStates)
	return l
}

// Observe feeds one connection notification into the state machine. It is
// the mqtt.StatusListener for the gateway's client.
func (l *brokerLink) Observe(state mqtt.ConnState, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	ctx := context.Background()
	switch state {
	case mqtt.ConnStateUp:
		l.failures = 0
		l.event(ctx, "up")
		log.Info("broker connection up")
	case mqtt.ConnStateServerDisconnect:
		l.event(ctx, "drop")
		log.Warn("broker dropped the connection")
	case mqtt.ConnStateConnectError:
		l.failures++
		l.event(ctx, "fail")
		log.Warn("broker connection attempt failed",
			"consecutiveFailures", l.failures, "error", err)
		if l.failures >= l.maxFailures {
			l.event(ctx, "exhaust")
			log.Error(nil, "ingestion offline: broker unreachable",
				"consecutiveFailures", l.failures)
		}
	}
}

func (l *brokerLink) event(ctx context.Context, name string) {
	if err := l.machine.Event(ctx, name); err != nil {
		// NoTransitionError and invalid-event errors mean the signal is
		// redundant in the current state.
		log.Debug("broker link event ignored", "event", name, "state", l.machine.Current(), "reason", err.Error())
	}
}

// State returns the current link state.
func (l *brokerLink) State() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.machine.Current()
}

// Ready reports whether ingestion is currently serviceable.
func (l *brokerLink) Ready() bool {
	return l.State() == LinkOnline
}
