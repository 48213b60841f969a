// Package app implements the fleetctl command, a small operator CLI for
// inspecting live fleet state through the hub's read API.
package app

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/gosuri/uitable"
	"github.com/spf13/cobra"

	"github.com/Asadp3406/bus-tracking/internal/routes"
	"github.com/Asadp3406/bus-tracking/internal/state"
)

const commandDesc = `fleetctl inspects the live state of the SmartBus fleet through the
hub's HTTP API: tracked vehicles, configured routes and per-stop arrival
estimates.`

type fleetctlFlags struct {
	server  string
	timeout time.Duration
}

// NewFleetctlCommand builds the fleetctl root command.
func NewFleetctlCommand() *cobra.Command {
	flags := &fleetctlFlags{}

	cmd := &cobra.Command{
		Use:           "fleetctl",
		Short:         "Inspect the SmartBus fleet",
		Long:          commandDesc,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if _, err := url.Parse(flags.server); err != nil {
				return fmt.Errorf("invalid --server value %q: %w", flags.server, err)
			}
			return nil
		},
	}

	pf := cmd.PersistentFlags()
	pf.StringVarP(&flags.server, "server", "s", "http://localhost:8080", "Base URL of the hub's HTTP API.")
	pf.DurationVar(&flags.timeout, "timeout", 10*time.Second, "Request timeout.")

	cmd.AddCommand(
		newVehiclesCommand(flags),
		newRoutesCommand(flags),
		newStopETACommand(flags),
	)
	return cmd
}

func (f *fleetctlFlags) client() *apiClient {
	return newAPIClient(f.server, f.timeout)
}

func newVehiclesCommand(flags *fleetctlFlags) *cobra.Command {
	var (
		routeID string
		status  string
		active  bool
	)

	cmd := &cobra.Command{
		Use:   "vehicles",
		Short: "List tracked vehicles",
		RunE: func(cmd *cobra.Command, args []string) error {
			q := url.Values{}
			if routeID != "" {
				q.Set("routeId", routeID)
			}
			if status != "" {
				q.Set("status", status)
			}
			if active {
				q.Set("active", "true")
			}
			path := "/api/buses"
			if len(q) > 0 {
				path += "?" + q.Encode()
			}

			var vehicles []state.VehicleState
			if err := flags.client().getJSON(path, &vehicles); err != nil {
				return err
			}

			table := uitable.New()
			table.AddRow("VEHICLE", "ROUTE", "STATUS", "LATITUDE", "LONGITUDE", "SPEED", "UPDATED")
			for _, v := range vehicles {
				table.AddRow(
					v.VehicleID,
					orDash(v.RouteID),
					string(v.Status),
					fmt.Sprintf("%.5f", v.Latitude),
					fmt.Sprintf("%.5f", v.Longitude),
					fmt.Sprintf("%.1f", v.Speed),
					humanAge(v.UpdatedAt),
				)
			}
			fmt.Fprintln(os.Stdout, table)
			return nil
		},
	}

	cmd.Flags().StringVar(&routeID, "route", "", "Only show vehicles assigned to this route.")
	cmd.Flags().StringVar(&status, "status", "", "Only show vehicles with this status.")
	cmd.Flags().BoolVar(&active, "active", false, "Only show vehicles with a fresh location.")
	return cmd
}

func newRoutesCommand(flags *fleetctlFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "routes",
		Short: "List configured routes",
		RunE: func(cmd *cobra.Command, args []string) error {
			var routeList []routes.Route
			if err := flags.client().getJSON("/api/routes", &routeList); err != nil {
				return err
			}

			table := uitable.New()
			table.MaxColWidth = 60
			table.AddRow("ROUTE", "NAME", "STOPS", "VEHICLES")
			for _, r := range routeList {
				table.AddRow(r.ID, r.Name, len(r.Stops), strings.Join(r.Vehicles, ","))
			}
			fmt.Fprintln(os.Stdout, table)
			return nil
		},
	}
}

func newStopETACommand(flags *fleetctlFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "stop-eta STOP_ID",
		Short: "Show arrival estimates for a stop",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var resp struct {
				StopID   string `json:"stopId"`
				Arrivals []struct {
					VehicleID      string  `json:"vehicleId"`
					RouteID        string  `json:"routeId"`
					DistanceMeters float64 `json:"distanceMeters"`
					ETAMinutes     int     `json:"etaMinutes"`
				} `json:"arrivals"`
			}
			if err := flags.client().getJSON("/api/stops/"+url.PathEscape(args[0])+"/eta", &resp); err != nil {
				return err
			}

			if len(resp.Arrivals) == 0 {
				fmt.Fprintf(os.Stdout, "no vehicles approaching stop %s\n", resp.StopID)
				return nil
			}

			table := uitable.New()
			table.AddRow("VEHICLE", "ROUTE", "DISTANCE", "ETA")
			for _, a := range resp.Arrivals {
				table.AddRow(
					a.VehicleID,
					a.RouteID,
					fmt.Sprintf("%.0fm", a.DistanceMeters),
					fmt.Sprintf("%dmin", a.ETAMinutes),
				)
			}
			fmt.Fprintln(os.Stdout, table)
			return nil
		},
	}
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// humanAge renders how long ago a vehicle was last heard from.
func humanAge(t time.Time) string {
	if t.IsZero() {
		return "never"
	}
	age := time.Since(t).Round(time.Second)
	if age < 0 {
		age = 0
	}
	return age.String() + " ago"
}
