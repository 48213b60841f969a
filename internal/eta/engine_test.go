package eta

import (
	"math"
	"testing"
	"time"

	"github.com/Asadp3406/bus-tracking/internal/routes"
)

func testConfig() Config {
	return Config{
		MinSpeedMetersPerSecond:       1.5,
		ReferenceSpeedMetersPerMinute: 250,
		ProximityThresholdMeters:      500,
	}
}

func TestDistanceMeters(t *testing.T) {
	cases := []struct {
		name                   string
		lat1, lon1, lat2, lon2 float64
		want                   float64
		tolerance              float64
	}{
		{"same point", 18.5074, 73.8077, 18.5074, 73.8077, 0, 0.001},
		{"pune station to airport", 18.5289, 73.8744, 18.5793, 73.9089, 6680, 100},
		{"one degree of latitude", 0, 0, 1, 0, 111195, 10},
		{"antipodal-ish", 0, 0, 0, 180, math.Pi * 6371000, 1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := DistanceMeters(tc.lat1, tc.lon1, tc.lat2, tc.lon2)
			if math.Abs(got-tc.want) > tc.tolerance {
				t.Errorf("distance = %.1f, want %.1f (±%.1f)", got, tc.want, tc.tolerance)
			}
		})
	}
}

func TestDistanceMetersSymmetric(t *testing.T) {
	d1 := DistanceMeters(18.5074, 73.8077, 18.5793, 73.9089)
	d2 := DistanceMeters(18.5793, 73.9089, 18.5074, 73.8077)
	if d1 != d2 {
		t.Errorf("distance not symmetric: %v vs %v", d1, d2)
	}
}

func lineRoute() routes.Route {
	// Three stops running north along a meridian, roughly 1.1 km apart.
	return routes.Route{
		ID: "route-12",
		Stops: []routes.Stop{
			{ID: "stop-a", Name: "A", Latitude: 18.50, Longitude: 73.80},
			{ID: "stop-b", Name: "B", Latitude: 18.51, Longitude: 73.80},
			{ID: "stop-c", Name: "C", Latitude: 18.52, Longitude: 73.80},
		},
	}
}

func TestComputeRemainingStops(t *testing.T) {
	e := NewEngine(testConfig())
	now := time.Now()

	// Vehicle just south of stop B: A is behind, B and C remain.
	got := e.Compute("bus-1", 18.509, 73.80, 8, 0, lineRoute(), now)
	if len(got) != 2 {
		t.Fatalf("got %d results, want 2: %+v", len(got), got)
	}
	if got[0].StopID != "stop-b" || got[1].StopID != "stop-c" {
		t.Errorf("stop order = %s,%s, want stop-b,stop-c", got[0].StopID, got[1].StopID)
	}
	if got[0].DistanceMeters >= got[1].DistanceMeters {
		t.Error("nearer stop has larger distance")
	}
	for _, r := range got {
		if r.VehicleID != "bus-1" || r.ETAMinutes < 1 || !r.ComputedAt.Equal(now) {
			t.Errorf("bad result %+v", r)
		}
	}
}

func TestComputeSpeedSelection(t *testing.T) {
	e := NewEngine(testConfig())
	now := time.Now()
	route := lineRoute()

	// ~1112 m from stop B at 10 m/s is under 2 minutes.
	fast := e.Compute("bus-1", 18.50, 73.80, 10, 0, route, now)
	if fast[1].StopID != "stop-b" || fast[1].ETAMinutes != 2 {
		t.Errorf("fast ETA to stop-b = %d, want 2", fast[1].ETAMinutes)
	}

	// Stopped vehicle with a known route average uses the average.
	avg := e.Compute("bus-1", 18.50, 73.80, 0, 5, route, now)
	if avg[1].ETAMinutes != 4 {
		t.Errorf("route-average ETA to stop-b = %d, want 4", avg[1].ETAMinutes)
	}

	// Stopped vehicle with no route history falls back to the reference
	// pace of 250 m/min.
	ref := e.Compute("bus-1", 18.50, 73.80, 0, 0, route, now)
	if ref[1].ETAMinutes != 5 {
		t.Errorf("reference ETA to stop-b = %d, want 5", ref[1].ETAMinutes)
	}
}

func TestComputeEmptyRoute(t *testing.T) {
	e := NewEngine(testConfig())
	if got := e.Compute("bus-1", 18.5, 73.8, 5, 0, routes.Route{ID: "r"}, time.Now()); got != nil {
		t.Errorf("empty route = %+v, want nil", got)
	}
}

func TestArrivalZone(t *testing.T) {
	e := NewEngine(testConfig())

	if !e.Arriving(400) {
		t.Error("400 m should be inside the arrival zone")
	}
	if !e.Arriving(500) {
		t.Error("500 m boundary should be inside the arrival zone")
	}
	if e.Arriving(500.1) {
		t.Error("500.1 m should be outside the arrival zone")
	}

	if got := e.ArrivalMinutes(400); got != 2 {
		t.Errorf("ArrivalMinutes(400) = %d, want 2", got)
	}
	if got := e.ArrivalMinutes(250); got != 1 {
		t.Errorf("ArrivalMinutes(250) = %d, want 1", got)
	}
}

func TestAverageTracker(t *testing.T) {
	tr := NewAverageTracker()

	if got := tr.Get("route-12"); got != 0 {
		t.Errorf("empty tracker = %v, want 0", got)
	}

	tr.Observe("route-12", 10)
	if got := tr.Get("route-12"); got != 10 {
		t.Errorf("first observation = %v, want 10", got)
	}

	tr.Observe("route-12", 20)
	if got := tr.Get("route-12"); got != 11 {
		t.Errorf("after second observation = %v, want 11", got)
	}

	tr.Observe("route-12", 0)
	tr.Observe("route-12", -3)
	tr.Observe("", 9)
	if got := tr.Get("route-12"); got != 11 {
		t.Errorf("ignored observations changed average to %v", got)
	}
}

func TestAverageTrackerSeed(t *testing.T) {
	tr := NewAverageTracker()

	tr.Seed("route-7", 7)
	if got := tr.Get("route-7"); got != 7 {
		t.Errorf("seeded average = %v, want 7", got)
	}

	// A learned value wins over a later seed.
	tr.Observe("route-7", 9)
	before := tr.Get("route-7")
	tr.Seed("route-7", 3)
	if got := tr.Get("route-7"); got != before {
		t.Errorf("seed overwrote learned average: %v -> %v", before, got)
	}

	tr.Seed("", 5)
	tr.Seed("route-x", -1)
	if got := tr.Get("route-x"); got != 0 {
		t.Errorf("invalid seed stored %v", got)
	}
}
