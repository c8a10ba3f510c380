package litmuslab

import (
	"context"
	"fmt"

	"go.viam.com/rdk/components/sensor"
	"go.viam.com/rdk/logging"
	"go.viam.com/rdk/resource"

	"litmuslab/internal/chem"
)

var StatusSensor = resource.NewModel("viamdemo", "litmus-lab", "status-sensor")

func init() {
	resource.RegisterComponent(sensor.API, StatusSensor,
		resource.Registration[sensor.Sensor, *StatusSensorConfig]{
			Constructor: newStatusSensor,
		},
	)
}

type StatusSensorConfig struct {
	Controller string `json:"controller"`
}

func (cfg *StatusSensorConfig) Validate(path string) ([]string, []string, error) {
	if cfg.Controller == "" {
		return nil, nil, fmt.Errorf("%s: controller is required", path)
	}
	// Full resource name, so the controller resolves as a generic service.
	dep := resource.NewName(resource.APINamespaceRDK.WithServiceType("generic"), cfg.Controller)
	return []string{dep.String()}, nil, nil
}

type stateProvider interface {
	GetState() map[string]interface{}
}

// statusSensor exposes the controller's session state and telemetry as
// readings, so data capture can record every lab session.
type statusSensor struct {
	resource.AlwaysRebuild

	name       resource.Name
	logger     logging.Logger
	controller stateProvider
}

func newStatusSensor(ctx context.Context, deps resource.Dependencies, rawConf resource.Config, logger logging.Logger) (sensor.Sensor, error) {
	conf, err := resource.NativeConfig[*StatusSensorConfig](rawConf)
	if err != nil {
		return nil, err
	}

	controllerName := resource.NewName(resource.APINamespaceRDK.WithServiceType("generic"), conf.Controller)
	ctrl, ok := deps[controllerName]
	if !ok {
		return nil, fmt.Errorf("controller %q not found in dependencies", conf.Controller)
	}

	provider, ok := ctrl.(stateProvider)
	if !ok {
		return nil, fmt.Errorf("controller %q does not implement GetState", conf.Controller)
	}

	return &statusSensor{
		name:       rawConf.ResourceName(),
		logger:     logger,
		controller: provider,
	}, nil
}

func (s *statusSensor) Name() resource.Name {
	return s.name
}

// Readings is the controller state plus the selected chemical's display name.
// should_sync gates data capture to frames taken while a session is running.
func (s *statusSensor) Readings(ctx context.Context, extra map[string]interface{}) (map[string]interface{}, error) {
	state := s.controller.GetState()
	active, _ := state["active"].(bool)
	state["should_sync"] = active

	if id, _ := state["chemical_id"].(string); id != "" {
		if c, err := chem.LookupChemical(id); err == nil {
			state["chemical_label"] = c.Label
			state["chemical_formula"] = c.Formula
		}
	}
	return state, nil
}

func (s *statusSensor) DoCommand(ctx context.Context, cmd map[string]interface{}) (map[string]interface{}, error) {
	return nil, fmt.Errorf("DoCommand not supported on status-sensor")
}

func (s *statusSensor) Close(context.Context) error {
	return nil
}
