package state

import (
	"sync"
	"testing"
	"time"

	"github.com/Asadp3406/bus-tracking/internal/telemetry"
)

func sample(id string, lat, lng float64, ts int64) telemetry.LocationSample {
	return telemetry.LocationSample{
		VehicleID: id,
		Latitude:  lat,
		Longitude: lng,
		Timestamp: telemetry.Timestamp(ts),
	}
}

func TestApplyLocationOrdering(t *testing.T) {
	st := NewStore()

	res := st.ApplyLocation(sample("bus-1", 18.5074, 73.8077, 1000))
	if !res.Applied {
		t.Fatal("first sample not applied")
	}

	res = st.ApplyLocation(sample("bus-1", 18.5100, 73.8100, 2000))
	if !res.Applied {
		t.Fatal("newer sample not applied")
	}
	if !res.HadPrev || res.Previous.Latitude != 18.5074 {
		t.Errorf("previous snapshot = %+v, want latitude 18.5074", res.Previous)
	}

	// A delayed redelivery of the first sample must not roll state back.
	res = st.ApplyLocation(sample("bus-1", 18.5074, 73.8077, 1000))
	if res.Applied {
		t.Error("stale sample was applied")
	}

	got, ok := st.Get("bus-1")
	if !ok {
		t.Fatal("vehicle missing")
	}
	if got.Latitude != 18.5100 || int64(got.Timestamp) != 2000 {
		t.Errorf("state = lat %v ts %d, want 18.5100/2000", got.Latitude, got.Timestamp)
	}
}

func TestApplyLocationEqualTimestampDiscarded(t *testing.T) {
	st := NewStore()
	st.ApplyLocation(sample("bus-1", 18.5, 73.8, 1000))
	if res := st.ApplyLocation(sample("bus-1", 19.0, 74.0, 1000)); res.Applied {
		t.Error("equal-timestamp sample was applied")
	}
}

func TestApplyStatusPreservesLocation(t *testing.T) {
	st := NewStore()
	st.ApplyLocation(sample("bus-1", 18.5, 73.8, 1000))

	got := st.ApplyStatus(telemetry.StatusUpdate{
		VehicleID: "bus-1",
		Status:    telemetry.StatusDelayed,
		Message:   "traffic at junction",
	})
	if got.Status != telemetry.StatusDelayed || got.StatusMessage != "traffic at junction" {
		t.Errorf("status = %+v", got)
	}
	if got.Latitude != 18.5 || int64(got.Timestamp) != 1000 {
		t.Error("status write clobbered location fields")
	}
}

func TestStatusBeforeFirstLocation(t *testing.T) {
	st := NewStore()
	st.ApplyStatus(telemetry.StatusUpdate{VehicleID: "bus-9", Status: telemetry.StatusMaintenance})

	got, ok := st.Get("bus-9")
	if !ok || got.Status != telemetry.StatusMaintenance {
		t.Fatalf("state = %+v, ok = %v", got, ok)
	}
	if got.HasLocation() {
		t.Error("vehicle without a fix reports HasLocation")
	}

	// A later location must still be accepted as the first fix.
	if res := st.ApplyLocation(sample("bus-9", 18.5, 73.8, 500)); !res.Applied {
		t.Error("first location after status-only state was discarded")
	}
}

func TestListFreshnessAndRouteFilter(t *testing.T) {
	st := NewStore()
	now := time.Now()
	st.now = func() time.Time { return now }

	st.ApplyLocation(sample("bus-1", 18.5, 73.8, 1000))
	st.SetRoute("bus-1", "route-12")

	st.now = func() time.Time { return now.Add(-10 * time.Minute) }
	st.ApplyLocation(sample("bus-2", 18.6, 73.9, 1000))
	st.SetRoute("bus-2", "route-12")
	st.now = func() time.Time { return now }

	// No location at all.
	st.ApplyStatus(telemetry.StatusUpdate{VehicleID: "bus-3", Status: telemetry.StatusActive})
	st.SetRoute("bus-3", "route-12")

	all := st.List(ListOptions{RouteID: "route-12"})
	if len(all) != 3 {
		t.Fatalf("unfiltered list = %d vehicles, want 3", len(all))
	}

	fresh := st.List(ListOptions{RouteID: "route-12", FreshWithin: 5 * time.Minute})
	if len(fresh) != 1 || fresh[0].VehicleID != "bus-1" {
		t.Fatalf("fresh list = %+v, want only bus-1", fresh)
	}

	other := st.List(ListOptions{RouteID: "route-99", FreshWithin: 5 * time.Minute})
	if len(other) != 0 {
		t.Errorf("route-99 list = %+v, want empty", other)
	}
}

func TestConcurrentWrites(t *testing.T) {
	st := NewStore()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			for ts := 1; ts <= 100; ts++ {
				st.ApplyLocation(sample("bus-1", 18.5, 73.8, int64(ts)))
				st.ApplyLocation(sample("bus-2", 18.6, 73.9, int64(ts)))
			}
		}(i)
	}
	wg.Wait()

	for _, id := range []string{"bus-1", "bus-2"} {
		got, ok := st.Get(id)
		if !ok || int64(got.Timestamp) != 100 {
			t.Errorf("%s timestamp = %d, want 100", id, got.Timestamp)
		}
	}
	if st.Len() != 2 {
		t.Errorf("Len = %d, want 2", st.Len())
	}
}
