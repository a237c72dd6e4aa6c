package sensor

import (
	"fmt"
	"strconv"
	"strings"

	"cooling_control/internal/hardware"
	"cooling_control/internal/models"
)

// MAX31850 is a 1-Wire thermocouple converter read through the w1 sysfs driver.
type MAX31850 struct {
	w1  *hardware.OneWire
	rom string
}

func NewMAX31850(w1 *hardware.OneWire, rom string) *MAX31850 {
	return &MAX31850{w1: w1, rom: rom}
}


func (d *MAX31850) Read() (hot, cold float64, err error) {
	lines, err := d.w1.ReadSlave(d.rom)
	if err != nil {
		return 0, 0, err
	}
	return parseScratchpad(lines)
}

// parseScratchpad decodes the w1_slave text:
//
//	c4 01 60 17 f0 ff ff ff 8c : crc=8c YES
//	c4 01 60 17 f0 ff ff ff 8c t=28250
func parseScratchpad(lines []string) (hot, cold float64, err error) {
	if len(lines) == 0 {
		return 0, 0, fmt.Errorf("empty w1_slave: %w", errMalformed)
	}
	first := strings.TrimSpace(lines[0])
	if !strings.HasSuffix(first, "YES") {
		return 0, 0, fmt.Errorf("scratchpad crc mismatch: %w", hardware.ErrTransient)
	}
	hexPart, _, ok := strings.Cut(first, ":")
	if !ok {
		return 0, 0, fmt.Errorf("no scratchpad bytes in %q: %w", first, errMalformed)
	}
	fields := strings.Fields(hexPart)
	if len(fields) < 4 {
		return 0, 0, fmt.Errorf("short scratchpad %q: %w", hexPart, errMalformed)
	}
	var sp [4]byte
	for i := range sp {
		v, err := strconv.ParseUint(fields[i], 16, 8)
		if err != nil {
			return 0, 0, fmt.Errorf("scratchpad byte %d: %w", i, errMalformed)
		}
		sp[i] = byte(v)
	}

	if sp[0]&0x01 != 0 {
		switch {
		case sp[2]&0x01 != 0:
			return 0, 0, &FaultError{Status: models.StatusOpenCircuit}
		case sp[2]&0x02 != 0:
			return 0, 0, &FaultError{Status: models.StatusShortToGround}
		case sp[2]&0x04 != 0:
			return 0, 0, &FaultError{Status: models.StatusShortToSupply}
		default:
			return 0, 0, &FaultError{Status: models.StatusError}
		}
	}

	// 14-bit hot junction in 0.25 °C, 12-bit cold junction in 0.0625 °C
	rawHot := int16(uint16(sp[1])<<8|uint16(sp[0])) >> 2
	rawCold := int16(uint16(sp[3])<<8|uint16(sp[2])) >> 4
	return float64(rawHot) * 0.25, float64(rawCold) * 0.0625, nil
}
