package eta

import "sync"

// ewmaWeight is the contribution of each new observation to the running
// route average.
const ewmaWeight = 0.1

// AverageTracker keeps an exponentially weighted moving average of observed
// vehicle speeds per route, used as the estimate fallback when a vehicle's
// own speed is unusable. Safe for concurrent use.
type AverageTracker struct {
	mu       sync.RWMutex
	averages map[string]float64
}

// NewAverageTracker creates an empty tracker.
func NewAverageTracker() *AverageTracker {
	return &AverageTracker{averages: make(map[string]float64)}
}

// Observe folds one reported speed (meters per second) into the route's
// average. Zero and negative speeds are ignored so idling vehicles do not
// drag the average toward zero.
func (t *AverageTracker) Observe(routeID string, speed float64) {
	if routeID == "" || speed <= 0 {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if prev, ok := t.averages[routeID]; ok {
		t.averages[routeID] = prev*(1-ewmaWeight) + speed*ewmaWeight
	} else {
		t.averages[routeID] = speed
	}
}

// Seed primes a route's average from configuration. A value learned from
// observations is never overwritten.
func (t *AverageTracker) Seed(routeID string, speed float64) {
	if routeID == "" || speed <= 0 {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.averages[routeID]; !ok {
		t.averages[routeID] = speed
	}
}

// Get returns the route's average speed in meters per second, or zero when
// nothing has been observed yet.
func (t *AverageTracker) Get(routeID string) float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.averages[routeID]
}
