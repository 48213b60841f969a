package routes

import (
	"os"
	"path/filepath"
	"testing"
)

const sampleTopology = `
routes:
  - id: route-12
    name: Station - Airport
    stops:
      - id: stop-a
        name: Station
        latitude: 18.5289
        longitude: 73.8744
      - id: stop-b
        name: University
        latitude: 18.5522
        longitude: 73.8250
      - id: stop-c
        name: Airport
        latitude: 18.5793
        longitude: 73.9089
    vehicles: [bus-1, bus-2]
  - id: route-7
    name: Loop
    stops:
      - id: stop-b
        name: University
        latitude: 18.5522
        longitude: 73.8250
devices:
  - deviceId: dev-1
    vehicleId: bus-1
`

func TestParseTopology(t *testing.T) {
	topo, err := Parse([]byte(sampleTopology))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	r, ok := topo.Route("route-12")
	if !ok || len(r.Stops) != 3 {
		t.Fatalf("route-12 = %+v, ok = %v", r, ok)
	}
	if got := topo.Routes(); len(got) != 2 || got[0].ID != "route-12" {
		t.Errorf("Routes() = %+v, want route-12 then route-7", got)
	}

	if route, ok := topo.VehicleRoute("bus-2"); !ok || route != "route-12" {
		t.Errorf("VehicleRoute(bus-2) = %q, %v", route, ok)
	}
	if _, ok := topo.VehicleRoute("bus-99"); ok {
		t.Error("unknown vehicle resolved to a route")
	}

	if veh, ok := topo.VehicleForDevice("dev-1"); !ok || veh != "bus-1" {
		t.Errorf("VehicleForDevice(dev-1) = %q, %v", veh, ok)
	}

	serving := topo.RoutesServing("stop-b")
	if len(serving) != 2 {
		t.Errorf("RoutesServing(stop-b) = %v, want both routes", serving)
	}
	if _, ok := topo.Stop("stop-c"); !ok {
		t.Error("stop-c not indexed")
	}
}

func TestParseTopologyRejectsBadInput(t *testing.T) {
	cases := []struct {
		name string
		yaml string
	}{
		{"duplicate route id", "routes:\n  - id: r1\n  - id: r1\n"},
		{"empty route id", "routes:\n  - name: unnamed\n"},
		{"empty stop id", "routes:\n  - id: r1\n    stops:\n      - name: nameless\n"},
		{"empty device id", "devices:\n  - vehicleId: bus-1\n"},
		{"not yaml", "{{nope"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := Parse([]byte(tc.yaml)); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestProviderReload(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "routes.yaml")
	if err := os.WriteFile(path, []byte(sampleTopology), 0o644); err != nil {
		t.Fatal(err)
	}

	p, err := NewProvider(path)
	if err != nil {
		t.Fatalf("new provider: %v", err)
	}

	var reloaded *Topology
	p.OnReload(func(topo *Topology) { reloaded = topo })

	old := p.Snapshot()

	// A broken edit keeps the previous topology.
	if err := os.WriteFile(path, []byte("{{broken"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := p.Reload(); err == nil {
		t.Fatal("expected reload error for broken file")
	}
	if p.Snapshot() != old {
		t.Error("broken reload replaced the topology")
	}
	if p.Generation() != 0 {
		t.Errorf("generation = %d after failed reload, want 0", p.Generation())
	}

	updated := sampleTopology + "\n  - deviceId: dev-2\n    vehicleId: bus-2\n"
	if err := os.WriteFile(path, []byte(updated), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := p.Reload(); err != nil {
		t.Fatalf("reload: %v", err)
	}
	if p.Generation() != 1 {
		t.Errorf("generation = %d, want 1", p.Generation())
	}
	if reloaded == nil {
		t.Fatal("OnReload callback not invoked")
	}
	if veh, ok := reloaded.VehicleForDevice("dev-2"); !ok || veh != "bus-2" {
		t.Errorf("new assignment missing: %q, %v", veh, ok)
	}
	if p.Snapshot() == old {
		t.Error("snapshot not swapped after reload")
	}
}
