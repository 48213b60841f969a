// Package state holds the authoritative in-memory snapshot of every vehicle.
// The store is sharded so location bursts for different vehicles never
// contend on one lock, and writes are ordered per vehicle by producer
// timestamp rather than arrival order.
package state

import (
	"hash/fnv"
	"sync"
	"time"

	"github.com/Asadp3406/bus-tracking/internal/telemetry"
)

const shardCount = 32

// VehicleState is the latest known snapshot for one vehicle.
type VehicleState struct {
	VehicleID     string              `json:"vehicleId"`
	RouteID       string              `json:"routeId,omitempty"`
	Latitude      float64             `json:"latitude"`
	Longitude     float64             `json:"longitude"`
	Speed         float64             `json:"speed"`
	Bearing       float64             `json:"bearing"`
	Accuracy      float64             `json:"accuracy"`
	Status        telemetry.Status    `json:"status"`
	StatusMessage string              `json:"statusMessage,omitempty"`
	Timestamp     telemetry.Timestamp `json:"timestamp"`
	UpdatedAt     time.Time           `json:"updatedAt"`
	hasLocation   bool
}

// HasLocation reports whether the vehicle has ever reported a position.
func (s VehicleState) HasLocation() bool { return s.hasLocation }

// ApplyResult tells the caller what a write did, so the pipeline can decide
// whether to fan the sample out.
type ApplyResult struct {
	Applied  bool
	Previous VehicleState
	HadPrev  bool
}

type shard struct {
	mu       sync.RWMutex
	vehicles map[string]VehicleState
}

// Store is a sharded, timestamp-ordered vehicle state map. Safe for
// concurrent use.
type Store struct {
	shards [shardCount]*shard
	now    func() time.Time
}

// NewStore creates an empty Store.
func NewStore() *Store {
	s := &Store{now: time.Now}
	for i := range s.shards {
		s.shards[i] = &shard{vehicles: make(map[string]VehicleState)}
	}
	return s
}

func (s *Store) shardFor(vehicleID string) *shard {
	h := fnv.New32a()
	h.Write([]byte(vehicleID))
	return s.shards[h.Sum32()%shardCount]
}

// ApplyLocation merges a validated sample into the vehicle's state. Samples
// whose timestamp is not newer than the stored one are discarded, which makes
// replays and out-of-order delivery harmless.
func (s *Store) ApplyLocation(sample telemetry.LocationSample) ApplyResult {
	sh := s.shardFor(sample.VehicleID)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	prev, had := sh.vehicles[sample.VehicleID]
	if had && prev.hasLocation && sample.Timestamp <= prev.Timestamp {
		return ApplyResult{Applied: false, Previous: prev, HadPrev: true}
	}

	next := prev
	next.VehicleID = sample.VehicleID
	next.Latitude = sample.Latitude
	next.Longitude = sample.Longitude
	next.Speed = sample.Speed
	next.Bearing = sample.Bearing
	next.Accuracy = sample.Accuracy
	next.Timestamp = sample.Timestamp
	next.UpdatedAt = s.now()
	next.hasLocation = true
	if next.Status == "" {
		next.Status = telemetry.StatusActive
	}
	sh.vehicles[sample.VehicleID] = next

	return ApplyResult{Applied: true, Previous: prev, HadPrev: had}
}

// ApplyStatus records a status change. Status writes are last-writer-wins;
// they do not participate in the location timestamp ordering.
func (s *Store) ApplyStatus(upd telemetry.StatusUpdate) VehicleState {
	sh := s.shardFor(upd.VehicleID)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	next := sh.vehicles[upd.VehicleID]
	next.VehicleID = upd.VehicleID
	next.Status = upd.Status
	next.StatusMessage = upd.Message
	next.UpdatedAt = s.now()
	sh.vehicles[upd.VehicleID] = next
	return next
}

// SetRoute pins a vehicle to a route so route-scoped queries and fanout can
// find it.
func (s *Store) SetRoute(vehicleID, routeID string) {
	sh := s.shardFor(vehicleID)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	next := sh.vehicles[vehicleID]
	next.VehicleID = vehicleID
	next.RouteID = routeID
	if next.UpdatedAt.IsZero() {
		next.UpdatedAt = s.now()
	}
	sh.vehicles[vehicleID] = next
}

// Get returns the state for one vehicle.
func (s *Store) Get(vehicleID string) (VehicleState, bool) {
	sh := s.shardFor(vehicleID)
	sh.mu.RLock()
	defer sh.mu.RUnlock()
	st, ok := sh.vehicles[vehicleID]
	return st, ok
}

// ListOptions narrows a List call.
type ListOptions struct {
	// RouteID restricts results to one route when non-empty.
	RouteID string
	// FreshWithin excludes vehicles whose last location is older than this
	// when positive. Vehicles with no location yet are excluded too.
	FreshWithin time.Duration
}

// List returns a copy of the matching vehicle states. Order is unspecified.
func (s *Store) List(opts ListOptions) []VehicleState {
	cutoff := time.Time{}
	if opts.FreshWithin > 0 {
		cutoff = s.now().Add(-opts.FreshWithin)
	}

	var out []VehicleState
	for _, sh := range s.shards {
		sh.mu.RLock()
		for _, st := range sh.vehicles {
			if opts.RouteID != "" && st.RouteID != opts.RouteID {
				continue
			}
			if !cutoff.IsZero() {
				if !st.hasLocation || st.UpdatedAt.Before(cutoff) {
					continue
				}
			}
			out = append(out, st)
		}
		sh.mu.RUnlock()
	}
	return out
}

// Len returns the number of tracked vehicles.
func (s *Store) Len() int {
	n := 0
	for _, sh := range s.shards {
		sh.mu.RLock()
		n += len(sh.vehicles)
		sh.mu.RUnlock()
	}
	return n
}
