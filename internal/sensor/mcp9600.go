package sensor

import (
	"fmt"
	"sync"

	"cooling_control/internal/hardware"
	"cooling_control/internal/models"
)

// MCP9600 registers.
const (
	regHotJunction  byte = 0x00
	regColdJunction byte = 0x02
	regStatus       byte = 0x04
	regSensorConfig byte = 0x05
	regDeviceConfig byte = 0x06
	regDeviceID     byte = 0x20

	statusOpenCircuit   byte = 0x10
	statusShortToGround byte = 0x20

	deviceIDMCP9600 byte = 0x40
	deviceIDMCP9601 byte = 0x41

	// normal mode, 18-bit ADC, continuous conversion
	deviceConfigContinuous byte = 0x00
)

// MCP9600 is a thermocouple EMF-to-temperature converter on I2C.
type MCP9600 struct {
	bus    *hardware.SharedBus
	addr   byte
	filter byte

	mu          sync.Mutex
	tc          ThermocoupleType
	initialized bool
}

// NewMCP9600 does no I/O; the device is probed on the first read so a
// missing sensor shows up as a channel status rather than a startup error.
func NewMCP9600(bus *hardware.SharedBus, addr byte, tc ThermocoupleType, filter int) *MCP9600 {
	return &MCP9600{
		bus:    bus,
		addr:   addr,
		tc:     tc,
		filter: byte(filter) & 0x07,
	}
}


// SetThermocoupleType takes effect on the next read, which reconfigures the device.
func (d *MCP9600) SetThermocoupleType(tc ThermocoupleType) error {
	if int(tc) >= len(thermocoupleNames) {
		return fmt.Errorf("unknown thermocouple type %d", tc)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.tc = tc
	d.initialized = false
	return nil
}

func (d *MCP9600) Read() (hot, cold float64, err error) {
	err = d.bus.Do(func(b hardware.Bus) error {
		d.mu.Lock()
		defer d.mu.Unlock()

		if !d.initialized {
			if err := d.configure(b); err != nil {
				return err
			}
			d.initialized = true
		}

		status := make([]byte, 1)
		if err := b.ReadFromReg(d.addr, regStatus, status); err != nil {
			d.initialized = false
			return fmt.Errorf("read status 0x%02x: %w", d.addr, err)
		}
		switch {
		case status[0]&statusOpenCircuit != 0:
			return &FaultError{Status: models.StatusOpenCircuit}
		case status[0]&statusShortToGround != 0:
			return &FaultError{Status: models.StatusShortToGround}
		}

		buf := make([]byte, 2)
		if err := b.ReadFromReg(d.addr, regHotJunction, buf); err != nil {
			d.initialized = false
			return fmt.Errorf("read hot junction 0x%02x: %w", d.addr, err)
		}
		hot = decodeJunction(buf)
		if err := b.ReadFromReg(d.addr, regColdJunction, buf); err != nil {
			d.initialized = false
			return fmt.Errorf("read cold junction 0x%02x: %w", d.addr, err)
		}
		cold = decodeJunction(buf)
		return nil
	})
	return hot, cold, err
}

// configure probes the device id and writes sensor and device configuration.
func (d *MCP9600) configure(b hardware.Bus) error {
	id := make([]byte, 2)
	if err := b.ReadFromReg(d.addr, regDeviceID, id); err != nil {
		return fmt.Errorf("probe 0x%02x: %w", d.addr, err)
	}
	if id[0] != deviceIDMCP9600 && id[0] != deviceIDMCP9601 {
		return fmt.Errorf("device id 0x%02x at 0x%02x: %w", id[0], d.addr, ErrNoDevice)
	}
	cfg := byte(d.tc)<<4 | d.filter
	if err := b.WriteToReg(d.addr, regSensorConfig, []byte{cfg}); err != nil {
		return fmt.Errorf("write sensor config 0x%02x: %w", d.addr, err)
	}
	if err := b.WriteToReg(d.addr, regDeviceConfig, []byte{deviceConfigContinuous}); err != nil {
		return fmt.Errorf("write device config 0x%02x: %w", d.addr, err)
	}
	return nil
}

// decodeJunction converts a big-endian two's complement value in 1/16 °C.
func decodeJunction(b []byte) float64 {
	raw := int16(uint16(b[0])<<8 | uint16(b[1]))
	return float64(raw) / 16.0
}
