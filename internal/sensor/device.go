// Package sensor reads thermocouple amplifiers and turns bus trouble into
// channel status values.
package sensor

import (
	"errors"
	"fmt"
	"strings"

	"cooling_control/internal/models"
)

// Device performs one physical read and returns the hot junction
// (thermocouple) and cold junction (ambient) temperatures in °C.
type Device interface {
	Read() (hot, cold float64, err error)
}

// Configurable is implemented by devices whose thermocouple type can be
// changed at runtime.
type Configurable interface {
	SetThermocoupleType(tc ThermocoupleType) error
}

// ErrNoDevice means nothing usable answered at the configured address.
var ErrNoDevice = errors.New("sensor: no device")

var errMalformed = errors.New("sensor: malformed reading")

// FaultError is reported by the amplifier itself (open thermocouple, short).
type FaultError struct {
	Status models.ChannelStatus
}

func (e *FaultError) Error() string {
	return fmt.Sprintf("thermocouple fault: %s", e.Status)
}

// ThermocoupleType is the MCP9600 encoding of the thermocouple type (bits 6:4
// of the sensor configuration register).
type ThermocoupleType byte

const (
	TypeK ThermocoupleType = iota
	TypeJ
	TypeT
	TypeN
	TypeS
	TypeE
	TypeB
	TypeR
)

var thermocoupleNames = [...]string{"K", "J", "T", "N", "S", "E", "B", "R"}

func (t ThermocoupleType) String() string {
	if int(t) < len(thermocoupleNames) {
		return thermocoupleNames[t]
	}
	return fmt.Sprintf("ThermocoupleType(%d)", byte(t))
}

// ParseThermocoupleType accepts a single letter, case-insensitive.
func ParseThermocoupleType(s string) (ThermocoupleType, error) {
	name := strings.ToUpper(strings.TrimSpace(s))
	for i, n := range thermocoupleNames {
		if n == name {
			return ThermocoupleType(i), nil
		}
	}
	return 0, fmt.Errorf("unknown thermocouple type %q", s)
}
