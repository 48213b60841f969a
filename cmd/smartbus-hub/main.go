package main

import (
	_ "go.uber.org/automaxprocs"

	"github.com/Asadp3406/bus-tracking/cmd/smartbus-hub/app"
)

func main() {
	app.NewApp().Run()
}
