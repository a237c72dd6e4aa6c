package control

import (
	"time"

	"cooling_control"
	"cooling_control/internal/hardware"
	"cooling_control/internal/sensor"
)

// BusScanner lists responding I2C addresses.
type BusScanner interface {
	Scan() ([]byte, error)
}

// OneWireScanner lists 1-Wire device ids with a prefix.
type OneWireScanner interface {
	Scan(prefix string) ([]string, error)
}

// Sampler is a channel that can be read without touching control state.
type Sampler interface {
	Sample() sensor.Reading
	Label() string
	Address() string
}

// Diagnostics serves bus scans and raw reads outside the control path. Bus
// access goes through the same shared locks as the loop.
type Diagnostics struct {
	bus      BusScanner
	oneWire  OneWireScanner
	channels []Sampler
	now      func() time.Time
}

// NewDiagnostics accepts nil scanners for buses that are not in use.
func NewDiagnostics(bus BusScanner, oneWire OneWireScanner, channels []Sampler) *Diagnostics {
	return &Diagnostics{bus: bus, oneWire: oneWire, channels: channels, now: time.Now}
}

// Scan probes the I2C bus and lists 1-Wire thermocouple converters.
func (d *Diagnostics) Scan() (cooling_control.ScanResponse, error) {
	resp := cooling_control.ScanResponse{I2C: []string{}}
	if d.bus != nil {
		found, err := d.bus.Scan()
		if err != nil {
			return resp, err
		}
		resp.I2C = hardware.FormatAddrs(found)
	}
	if d.oneWire != nil {
		ids, err := d.oneWire.Scan("3b-")
		if err != nil {
			return resp, err
		}
		resp.OneWire = ids
	}
	return resp, nil
}

// RawRead samples every configured channel once, bypassing smoothing,
// alarm logic and regulation.
func (d *Diagnostics) RawRead() cooling_control.RawReadResponse {
	start := d.now()
	out := cooling_control.RawReadResponse{Channels: make([]cooling_control.RawReading, 0, len(d.channels))}
	for _, ch := range d.channels {
		r := ch.Sample()
		out.Channels = append(out.Channels, cooling_control.RawReading{
			Address:     ch.Address(),
			Label:       ch.Label(),
			Temperature: r.Temperature,
			Ambient:     r.Ambient,
			Delta:       r.Delta,
			Status:      r.Status,
			StaleCount:  r.StaleCount,
		})
	}
	out.DurationMs = d.now().Sub(start).Milliseconds()
	return out
}
