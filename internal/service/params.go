package service

import "time"

type AlarmParams struct {
	Threshold *float64 // °C on the protected channel; nil keeps the current value
	Percent   *float64 // forced output while alarm or postrun; nil keeps the current value
}

type GainsParams struct {
	Kp float64
	Ki float64
	Kd float64
}

type SmoothingParams struct {
	Enabled bool
	Alpha   float64 // (0,1]; 0 keeps the current alpha
}

// LogFilter supports journal filtering by time range and type.
type LogFilter struct {
	From  time.Time // inclusive; zero means no lower bound
	To    time.Time // inclusive; zero means no upper bound
	Type  string    // "", "START", "STOP", "MODE_CHANGE", "SETTING_CHANGE", "ALARM", ...
	Limit int       // most recent N; 0 means all
}
