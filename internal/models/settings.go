package models

import "time"

// Settings holds the operator-tunable values that survive a restart.
type Settings struct {
	ID                  int       `json:"id"`
	Setpoint            float64   `json:"setpoint"`
	Mode                Mode      `json:"mode"`
	AlarmThreshold      float64   `json:"alarm_threshold"`
	ManualPercent       float64   `json:"manual_percent"`
	AlarmPercent        float64   `json:"alarm_percent"`
	Kp                  float64   `json:"kp"`
	Ki                  float64   `json:"ki"`
	Kd                  float64   `json:"kd"`
	PostrunSeconds      float64   `json:"postrun_seconds"`
	SwapSensors         bool      `json:"swap_sensors"`
	SmoothingEnabled    bool      `json:"smoothing_enabled"`
	SmoothingAlpha      float64   `json:"smoothing_alpha"`
	ActuatorMinOverride *int      `json:"actuator_min_override,omitempty"`
	ThermocoupleType    string    `json:"thermocouple_type,omitempty"`
	UpdatedAt           time.Time `json:"updated_at"`
}
