package main

import (
	"litmuslab"

	"go.viam.com/rdk/components/sensor"
	"go.viam.com/rdk/module"
	"go.viam.com/rdk/resource"
	generic "go.viam.com/rdk/services/generic"
)

func main() {
	module.ModularMain(
		resource.APIModel{API: generic.API, Model: litmuslab.Controller},
		resource.APIModel{API: sensor.API, Model: litmuslab.StatusSensor},
	)
}
