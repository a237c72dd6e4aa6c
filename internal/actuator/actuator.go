// Package actuator drives the cooling output: a DS3502 digital potentiometer
// or a hardware PWM fan, behind one interface.
package actuator

import (
	"cooling_control/internal/models"
)

// Actuator is what the control loop commands.
type Actuator interface {
	// SetOutput commands a logical percentage. It never fails; faults are
	// reported through Status.
	SetOutput(percent float64)
	// Stop forces 0 % immediately, bypassing the slew limit.
	Stop()
	Status() Status
	// SetMinOverride replaces the configured minimum of the physical range;
	// nil restores the configured value.
	SetMinOverride(min *int)
	// Orient converts a regulator output into a command for this hardware's
	// wiring direction.
	Orient(regulatorOutput float64) float64
}

// Writer puts a physical value on the device.
type Writer interface {
	Write(value int) error
}

// Status is the driver's observable state.
type Status struct {
	Percent     float64              `json:"percent"`
	Physical    int                  `json:"physical"`
	Fault       models.ActuatorFault `json:"fault,omitempty"`
	Available   bool                 `json:"available"`
	MinOverride *int                 `json:"min_override,omitempty"`
}
