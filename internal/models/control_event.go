package models

import "time"

// Event types written to the control journal.
const (
	EventStart         = "START"
	EventStop          = "STOP"
	EventModeChange    = "MODE_CHANGE"
	EventSettingChange = "SETTING_CHANGE"
	EventAlarm         = "ALARM"
	EventPostrun       = "POSTRUN"
	EventNormal        = "NORMAL"
	EventSensorFault   = "SENSOR_FAULT"
	EventActuatorFault = "ACTUATOR_FAULT"
)

// IsEventType reports whether t is one of the journal event types.
func IsEventType(t string) bool {
	switch t {
	case EventStart, EventStop, EventModeChange, EventSettingChange, EventAlarm,
		EventPostrun, EventNormal, EventSensorFault, EventActuatorFault:
		return true
	}
	return false
}

// ControlEvent is a single journal entry.
type ControlEvent struct {
	EventID     string    `json:"event_id"`
	OccurredAt  time.Time `json:"occurred_at"`
	Type        string    `json:"type"`        // START | STOP | MODE_CHANGE | SETTING_CHANGE | ALARM | POSTRUN | NORMAL | SENSOR_FAULT | ACTUATOR_FAULT
	Description string    `json:"description"` // human-readable
	Metadata    any       `json:"metadata,omitempty"`
}
