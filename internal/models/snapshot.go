package models

import (
	"errors"
	"strings"
	"time"
)

// Mode selects who decides the actuator output.
type Mode string

const (
	ModeAuto   Mode = "auto"
	ModeManual Mode = "manual"
)

var errUnknownMode = errors.New("invalid mode: must be auto or manual")

// ParseMode accepts "auto"/"manual" in any case.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case ModeAuto:
		return ModeAuto, nil
	case ModeManual:
		return ModeManual, nil
	default:
		return "", errUnknownMode
	}
}

// ChannelStatus is the outcome of the last read attempt on a sensor channel.
type ChannelStatus string

const (
	StatusOK            ChannelStatus = "ok"
	StatusStale         ChannelStatus = "stale"
	StatusNotFound      ChannelStatus = "not_found"
	StatusError         ChannelStatus = "error"
	StatusOpenCircuit   ChannelStatus = "open_circuit"
	StatusShortToGround ChannelStatus = "short_to_ground"
	StatusShortToSupply ChannelStatus = "short_to_supply"
)

// Usable reports whether the reading carries a temperature the loop may act on.
// Stale readings are suspect but still usable.
func (s ChannelStatus) Usable() bool {
	return s == StatusOK || s == StatusStale
}

// AlarmState is the state of the alarm/postrun machine.
type AlarmState string

const (
	AlarmNormal  AlarmState = "normal"
	AlarmActive  AlarmState = "alarm"
	AlarmPostrun AlarmState = "postrun"
)

// ActuatorFault describes the last write outcome of the actuator.
type ActuatorFault string

const (
	ActuatorOK              ActuatorFault = ""
	ActuatorBusWriteFailure ActuatorFault = "bus_write_failure"
	ActuatorBusUnavailable  ActuatorFault = "bus_unavailable"
)

// Snapshot is the published view of the control loop after one tick.
// A published Snapshot is never modified; the loop swaps in a new one.
//
// Channel 1 is the regulated channel, channel 2 the protected one. With
// SwapSensors the physical sensors behind these roles are exchanged; the
// labels tell which is which.
type Snapshot struct {
	Temperature1 float64       `json:"temperature1"`
	Temperature2 float64       `json:"temperature2"`
	Ambient1     float64       `json:"ambient1"`
	Ambient2     float64       `json:"ambient2"`
	Delta1       float64       `json:"delta1"`
	Delta2       float64       `json:"delta2"`
	Status1      ChannelStatus `json:"status1"`
	Status2      ChannelStatus `json:"status2"`
	Label1       string        `json:"label1"`
	Label2       string        `json:"label2"`

	OutputPct      float64    `json:"output_pct"`
	Setpoint       float64    `json:"setpoint"`
	Mode           Mode       `json:"mode"`
	AlarmThreshold float64    `json:"alarm_threshold"`
	ManualPercent  float64    `json:"manual_percent"`
	AlarmPercent   float64    `json:"alarm_percent"`
	PostrunSeconds float64    `json:"postrun_seconds"`
	PostrunExpiry  *time.Time `json:"postrun_until,omitempty"`
	AlarmActive    bool       `json:"alarm_active"`
	AlarmState     AlarmState `json:"alarm_state"`

	Kp               float64 `json:"kp"`
	Ki               float64 `json:"ki"`
	Kd               float64 `json:"kd"`
	SwapSensors      bool    `json:"swap_sensors"`
	SmoothingEnabled bool    `json:"smoothing_enabled"`
	SmoothingAlpha   float64 `json:"smoothing_alpha"`
	ThermocoupleType string  `json:"thermocouple_type,omitempty"`

	ActuatorMinOverride *int          `json:"actuator_min_override,omitempty"`
	ActuatorFault       ActuatorFault `json:"actuator_fault,omitempty"`
	ActuatorAvailable   bool          `json:"actuator_available"`

	Running   bool      `json:"running"`
	Tick      uint64    `json:"tick"`
	UpdatedAt time.Time `json:"updated_at"`

	// TickDuration is how long the producing tick took; zero outside a tick.
	TickDuration time.Duration `json:"-"`
}

// PostrunRemaining returns the seconds left until postrun expires, 0 if none is pending.
func (s Snapshot) PostrunRemaining(now time.Time) float64 {
	if s.PostrunExpiry == nil {
		return 0
	}
	left := s.PostrunExpiry.Sub(now).Seconds()
	if left < 0 {
		return 0
	}
	return left
}
