// Package routes loads and serves the fleet's route topology: routes, their
// ordered stops, and which vehicles and tracking devices belong to which
// route. The topology comes from a YAML file that operators edit in place,
// so the provider watches it and swaps in new versions without a restart.
package routes

import (
	"fmt"
	"sort"
)

// Stop is a named point on a route.
type Stop struct {
	ID        string  `yaml:"id" json:"id"`
	Name      string  `yaml:"name" json:"name"`
	Latitude  float64 `yaml:"latitude" json:"latitude"`
	Longitude float64 `yaml:"longitude" json:"longitude"`
}

// Route is an ordered sequence of stops with the vehicles assigned to it.
type Route struct {
	ID       string   `yaml:"id" json:"id"`
	Name     string   `yaml:"name" json:"name"`
	Stops    []Stop   `yaml:"stops" json:"stops"`
	Vehicles []string `yaml:"vehicles" json:"vehicles,omitempty"`

	// AverageSpeed in meters per second, used as the initial estimate
	// fallback before any vehicle on the route reports speed. Optional.
	AverageSpeed float64 `yaml:"averageSpeed" json:"averageSpeed,omitempty"`
}

// DeviceAssignment maps a dedicated GPS device onto the vehicle it rides in.
type DeviceAssignment struct {
	DeviceID  string `yaml:"deviceId" json:"deviceId"`
	VehicleID string `yaml:"vehicleId" json:"vehicleId"`
}

// topologyFile is the on-disk YAML shape.
type topologyFile struct {
	Routes  []Route            `yaml:"routes"`
	Devices []DeviceAssignment `yaml:"devices"`
}

// Topology is one immutable view of the route network. Lookups never mutate
// it; reloads build a fresh one and swap it in.
type Topology struct {
	routes       map[string]Route
	routeOrder   []string
	vehicleRoute map[string]string
	deviceVeh    map[string]string
	stopRoutes   map[string][]string
	stops        map[string]Stop
}

func newTopology(file topologyFile) (*Topology, error) {
	t := &Topology{
		routes:       make(map[string]Route, len(file.Routes)),
		vehicleRoute: make(map[string]string),
		deviceVeh:    make(map[string]string, len(file.Devices)),
		stopRoutes:   make(map[string][]string),
		stops:        make(map[string]Stop),
	}

	for _, r := range file.Routes {
		if r.ID == "" {
			return nil, fmt.Errorf("route with empty id")
		}
		if _, dup := t.routes[r.ID]; dup {
			return nil, fmt.Errorf("duplicate route id %q", r.ID)
		}
		for _, st := range r.Stops {
			if st.ID == "" {
				return nil, fmt.Errorf("route %q: stop with empty id", r.ID)
			}
			t.stops[st.ID] = st
			t.stopRoutes[st.ID] = append(t.stopRoutes[st.ID], r.ID)
		}
		for _, v := range r.Vehicles {
			t.vehicleRoute[v] = r.ID
		}
		t.routes[r.ID] = r
		t.routeOrder = append(t.routeOrder, r.ID)
	}

	for _, d := range file.Devices {
		if d.DeviceID == "" || d.VehicleID == "" {
			return nil, fmt.Errorf("device assignment with empty id: %+v", d)
		}
		t.deviceVeh[d.DeviceID] = d.VehicleID
	}

	sort.Strings(t.routeOrder)
	return t, nil
}

// Route returns one route by id.
func (t *Topology) Route(id string) (Route, bool) {
	r, ok := t.routes[id]
	return r, ok
}

// Routes returns all routes in stable id order.
func (t *Topology) Routes() []Route {
	out := make([]Route, 0, len(t.routeOrder))
	for _, id := range t.routeOrder {
		out = append(out, t.routes[id])
	}
	return out
}

// Stop returns one stop by id, from whichever route defines it.
func (t *Topology) Stop(id string) (Stop, bool) {
	st, ok := t.stops[id]
	return st, ok
}

// RoutesServing returns the ids of every route that includes the stop.
func (t *Topology) RoutesServing(stopID string) []string {
	return t.stopRoutes[stopID]
}

// VehicleRoute returns the route a vehicle is assigned to.
func (t *Topology) VehicleRoute(vehicleID string) (string, bool) {
	r, ok := t.vehicleRoute[vehicleID]
	return r, ok
}

// VehicleForDevice resolves a GPS device id to its vehicle.
func (t *Topology) VehicleForDevice(deviceID string) (string, bool) {
	v, ok := t.deviceVeh[deviceID]
	return v, ok
}

// Assignments returns every vehicle-to-route binding.
func (t *Topology) Assignments() map[string]string {
	out := make(map[string]string, len(t.vehicleRoute))
	for v, r := range t.vehicleRoute {
		out[v] = r
	}
	return out
}
