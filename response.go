package cooling_control

import (
	"time"

	"cooling_control/internal/models"
)

// StateResponse is the snapshot served to observers, with the derived postrun countdown.
type StateResponse struct {
	models.Snapshot
	PostrunRemainingSeconds float64 `json:"postrun_remaining_seconds"`
}

// NewStateResponse derives the countdown from the snapshot at the given time.
func NewStateResponse(s models.Snapshot, now time.Time) StateResponse {
	return StateResponse{
		Snapshot:                s,
		PostrunRemainingSeconds: s.PostrunRemaining(now),
	}
}

// ScanResponse lists devices found on the sensor buses.
type ScanResponse struct {
	I2C     []string `json:"i2c"`
	OneWire []string `json:"one_wire,omitempty"`
}

// RawReading is one channel of a raw read that bypasses alarm and regulation.
type RawReading struct {
	Address     string               `json:"address"`
	Label       string               `json:"label"`
	Temperature *float64             `json:"temperature"`
	Ambient     *float64             `json:"ambient"`
	Delta       *float64             `json:"delta"`
	Status      models.ChannelStatus `json:"status"`
	StaleCount  int                  `json:"stale_count"`
}

// RawReadResponse is the result of a one-shot read of all channels.
type RawReadResponse struct {
	Channels   []RawReading `json:"channels"`
	DurationMs int64        `json:"duration_ms"`
}
