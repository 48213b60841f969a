// Package httpapi serves the read-only fleet API plus the health and
// metrics endpoints. Everything here reads from in-memory state; the write
// path is MQTT only.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sort"
	"time"

	"github.com/gorilla/mux"

	"github.com/Asadp3406/bus-tracking/internal/eta"
	"github.com/Asadp3406/bus-tracking/internal/metrics"
	"github.com/Asadp3406/bus-tracking/internal/routes"
	"github.com/Asadp3406/bus-tracking/internal/state"
	"github.com/Asadp3406/bus-tracking/pkg/log"
	"github.com/Asadp3406/bus-tracking/pkg/options"
)

// ReadyChecker reports whether ingestion is serviceable.
type ReadyChecker interface {
	Ready() bool
	LinkState() string
}

// Server is the read API server.
type Server struct {
	server *http.Server

	store        *state.Store
	provider     *routes.Provider
	engine       *eta.Engine
	averages     *eta.AverageTracker
	freshnessTTL time.Duration
	ready        ReadyChecker
}

// NewServer builds the read API on opts.Addr. ready may be nil, in which
// case readyz always succeeds.
func NewServer(
	opts *options.HttpOptions,
	store *state.Store,
	provider *routes.Provider,
	engine *eta.Engine,
	averages *eta.AverageTracker,
	freshnessTTL time.Duration,
	ready ReadyChecker,
) *Server {
	s := &Server{
		store:        store,
		provider:     provider,
		engine:       engine,
		averages:     averages,
		freshnessTTL: freshnessTTL,
		ready:        ready,
	}

	r := mux.NewRouter()
	r.HandleFunc("/healthz", s.handleHealthz).Methods(http.MethodGet)
	r.HandleFunc("/readyz", s.handleReadyz).Methods(http.MethodGet)
	r.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/buses", s.handleBuses).Methods(http.MethodGet)
	api.HandleFunc("/buses/{id}", s.handleBus).Methods(http.MethodGet)
	api.HandleFunc("/buses/{id}/location", s.handleBusLocation).Methods(http.MethodGet)
	api.HandleFunc("/routes", s.handleRoutes).Methods(http.MethodGet)
	api.HandleFunc("/routes/{id}", s.handleRoute).Methods(http.MethodGet)
	api.HandleFunc("/routes/{id}/buses", s.handleRouteBuses).Methods(http.MethodGet)
	api.HandleFunc("/stops/{id}/eta", s.handleStopETA).Methods(http.MethodGet)

	s.server = &http.Server{
		Addr:         opts.Addr,
		Handler:      r,
		ReadTimeout:  opts.Timeout,
		WriteTimeout: opts.Timeout,
	}
	return s
}

// Start serves until ctx is done, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	log.Info("starting HTTP API server", "addr", s.server.Addr)

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

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler { return s.server.Handler }

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

func (s *Server) handleReadyz(w http.ResponseWriter, _ *http.Request) {
	if s.ready != nil && !s.ready.Ready() {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "unavailable",
			"broker": s.ready.LinkState(),
		})
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

func (s *Server) handleBuses(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	routeID := q.Get("routeId")
	if routeID == "" {
		routeID = q.Get("route")
	}
	opts := state.ListOptions{RouteID: routeID}
	if q.Get("active") == "true" {
		opts.FreshWithin = s.freshnessTTL
	}

	buses := s.store.List(opts)
	if status := q.Get("status"); status != "" {
		filtered := buses[:0]
		for _, b := range buses {
			if string(b.Status) == status {
				filtered = append(filtered, b)
			}
		}
		buses = filtered
	}
	if buses == nil {
		buses = []state.VehicleState{}
	}
	sort.Slice(buses, func(i, j int) bool { return buses[i].VehicleID < buses[j].VehicleID })
	writeJSON(w, http.StatusOK, buses)
}

func (s *Server) handleBus(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	st, ok := s.store.Get(id)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown vehicle "+id)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleBusLocation(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	st, ok := s.store.Get(id)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown vehicle "+id)
		return
	}
	if !st.HasLocation() {
		writeError(w, http.StatusNotFound, "no location reported for vehicle "+id)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"vehicleId": st.VehicleID,
		"latitude":  st.Latitude,
		"longitude": st.Longitude,
		"speed":     st.Speed,
		"bearing":   st.Bearing,
		"accuracy":  st.Accuracy,
		"timestamp": st.Timestamp,
		"updatedAt": st.UpdatedAt,
	})
}

func (s *Server) handleRoutes(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.provider.Snapshot().Routes())
}

func (s *Server) handleRoute(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	route, ok := s.provider.Snapshot().Route(id)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown route "+id)
		return
	}
	writeJSON(w, http.StatusOK, route)
}

func (s *Server) handleRouteBuses(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if _, ok := s.provider.Snapshot().Route(id); !ok {
		writeError(w, http.StatusNotFound, "unknown route "+id)
		return
	}
	buses := s.store.List(state.ListOptions{RouteID: id, FreshWithin: s.freshnessTTL})
	if buses == nil {
		buses = []state.VehicleState{}
	}
	sort.Slice(buses, func(i, j int) bool { return buses[i].VehicleID < buses[j].VehicleID })
	writeJSON(w, http.StatusOK, buses)
}

// stopETAEntry is one approaching vehicle in a stop ETA response.
type stopETAEntry struct {
	VehicleID      string  `json:"vehicleId"`
	RouteID        string  `json:"routeId"`
	DistanceMeters float64 `json:"distanceMeters"`
	ETAMinutes     int     `json:"etaMinutes"`
}

func (s *Server) handleStopETA(w http.ResponseWriter, r *http.Request) {
	stopID := mux.Vars(r)["id"]
	topo := s.provider.Snapshot()
	if _, ok := topo.Stop(stopID); !ok {
		writeError(w, http.StatusNotFound, "unknown stop "+stopID)
		return
	}

	now := time.Now()
	entries := []stopETAEntry{}
	for _, routeID := range topo.RoutesServing(stopID) {
		route, ok := topo.Route(routeID)
		if !ok {
			continue
		}
		for _, bus := range s.store.List(state.ListOptions{RouteID: routeID, FreshWithin: s.freshnessTTL}) {
			results := s.engine.Compute(bus.VehicleID, bus.Latitude, bus.Longitude,
				bus.Speed, s.averages.Get(routeID), route, now)
			for _, res := range results {
				if res.StopID != stopID {
					continue
				}
				entries = append(entries, stopETAEntry{
					VehicleID:      bus.VehicleID,
					RouteID:        routeID,
					DistanceMeters: res.DistanceMeters,
					ETAMinutes:     res.ETAMinutes,
				})
			}
		}
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].ETAMinutes < entries[j].ETAMinutes })
	writeJSON(w, http.StatusOK, map[string]any{"stopId": stopID, "arrivals": entries})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error(err, "response encoding failed")
	}
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}
