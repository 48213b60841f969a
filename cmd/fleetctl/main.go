package main

import (
	"fmt"
	"os"

	"github.com/Asadp3406/bus-tracking/cmd/fleetctl/app"
)

func main() {
	if err := app.NewFleetctlCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "fleetctl: %v\n", err)
		os.Exit(1)
	}
}
