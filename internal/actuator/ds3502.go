package actuator

import (
	"fmt"

	"cooling_control/internal/hardware"
	"cooling_control/internal/logger"
)

// DS3502 registers.
const (
	DS3502DefaultAddr byte = 0x28
	DS3502WiperMax         = 127

	regWiper   byte = 0x00
	regControl byte = 0x02
	// write-only-to-WR mode: wiper writes do not touch the EEPROM
	controlWROnly byte = 0x80
)

type ds3502Writer struct {
	bus  *hardware.SharedBus
	addr byte
}

func (w *ds3502Writer) probe() error {
	return w.bus.Do(func(b hardware.Bus) error {
		buf := make([]byte, 1)
		if err := b.ReadFromReg(w.addr, regWiper, buf); err != nil {
			return fmt.Errorf("probe ds3502 0x%02x: %w", w.addr, err)
		}
		if err := b.WriteToReg(w.addr, regControl, []byte{controlWROnly}); err != nil {
			return fmt.Errorf("set ds3502 control 0x%02x: %w", w.addr, err)
		}
		return nil
	})
}

func (w *ds3502Writer) Write(value int) error {
	if value < 0 || value > DS3502WiperMax {
		return fmt.Errorf("wiper %d outside 0..%d", value, DS3502WiperMax)
	}
	return w.bus.Do(func(b hardware.Bus) error {
		return b.WriteToReg(w.addr, regWiper, []byte{byte(value)})
	})
}

// Digipot is a DS3502 wiper driving the fan controller's speed input.
type Digipot struct {
	*Driver
}

// NewDigipot probes the device. When the probe fails the returned Digipot
// runs in unavailable mode instead of failing.
func NewDigipot(bus *hardware.SharedBus, addr byte, cfg Config, log *logger.Logger) *Digipot {
	if log == nil {
		log = logger.NewNop()
	}
	if cfg.Max > DS3502WiperMax {
		cfg.Max = DS3502WiperMax
	}
	if cfg.Name == "" {
		cfg.Name = "ds3502@" + hardware.FormatAddr(addr)
	}
	w := &ds3502Writer{bus: bus}
	if err := w.probe(); err != nil {
		log.Errorw("actuator_probe_failed", "name", cfg.Name, "err", err)
		return &Digipot{Driver: NewDriver(nil, cfg, log)}
	}
	log.Infow("actuator_ready", "name", cfg.Name, "min", cfg.Min, "max", cfg.Max)
	return &Digipot{Driver: NewDriver(w, cfg, log)}
}

