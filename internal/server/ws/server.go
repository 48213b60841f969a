// Package ws serves live fleet events over websocket. Consumers connect to
// /ws and manage their subscriptions with small JSON control messages; the
// dispatcher pushes matching events through each client's own buffer.
package ws

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Asadp3406/bus-tracking/internal/metrics"
	"github.com/Asadp3406/bus-tracking/internal/subscription"
	"github.com/Asadp3406/bus-tracking/pkg/log"
	"github.com/Asadp3406/bus-tracking/pkg/options"
)

// controlMessage is what clients send to manage subscriptions.
type controlMessage struct {
	Action string `json:"action"`
	Kind   string `json:"kind"`
	Key    string `json:"key"`
}

// ack confirms a control message back to the client.
type ack struct {
	Type   string `json:"type"`
	Action string `json:"action,omitempty"`
	Kind   string `json:"kind,omitempty"`
	Key    string `json:"key,omitempty"`
	Error  string `json:"error,omitempty"`
}

// Server accepts websocket consumers and registers them for fanout.
type Server struct {
	server   *http.Server
	registry *subscription.Registry
	opts     *options.WsOptions
	upgrader websocket.Upgrader
	nextID   atomic.Uint64
}

// NewServer builds the websocket server on opts.Addr.
func NewServer(opts *options.WsOptions, registry *subscription.Registry) *Server {
	s := &Server{
		registry: registry,
		opts:     opts,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Consumers are browser dashboards and mobile apps on other
			// origins; auth happens upstream.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWS)
	s.server = &http.Server{Addr: opts.Addr, Handler: mux}
	return s
}

// Start serves until ctx is done, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	log.Info("starting websocket server", "addr", s.server.Addr)

	errCh := make(chan error, 1)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.server.Shutdown(shutdownCtx)
	}
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn("websocket upgrade failed", "remote", r.RemoteAddr, "reason", err.Error())
		return
	}

	id := fmt.Sprintf("ws-%d-%s", s.nextID.Add(1), r.RemoteAddr)
	c := newClient(id, conn, s.opts.SendBuffer)
	metrics.Subscribers.Inc()
	log.Info("websocket client connected", "client", id)

	go c.writeLoop(s.opts.PingInterval)
	go s.readLoop(c)
}

// readLoop handles control messages until the client goes away, then tears
// down every subscription the client held.
func (s *Server) readLoop(c *client) {
	defer func() {
		s.registry.DropSubscriber(c.id)
		c.close()
		c.conn.Close()
		metrics.Subscribers.Dec()
		log.Info("websocket client disconnected", "client", c.id)
	}()

	for {
		var msg controlMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			return
		}
		s.handleControl(c, msg)
	}
}

func (s *Server) handleControl(c *client, msg controlMessage) {
	kind := subscription.Kind(msg.Kind)
	switch msg.Action {
	case "subscribe":
		if !kind.Valid() || msg.Key == "" {
			c.Send(&ack{Type: "error", Action: msg.Action, Kind: msg.Kind, Key: msg.Key,
				Error: "subscribe needs a valid kind and a key"})
			return
		}
		s.registry.Subscribe(c, kind, msg.Key)
		c.Send(&ack{Type: "subscribed", Kind: msg.Kind, Key: msg.Key})
	case "unsubscribe":
		if !kind.Valid() || msg.Key == "" {
			c.Send(&ack{Type: "error", Action: msg.Action, Kind: msg.Kind, Key: msg.Key,
				Error: "unsubscribe needs a valid kind and a key"})
			return
		}
		s.registry.Unsubscribe(c.id, kind, msg.Key)
		c.Send(&ack{Type: "unsubscribed", Kind: msg.Kind, Key: msg.Key})
	default:
		c.Send(&ack{Type: "error", Action: msg.Action, Error: "unknown action"})
	}
}
