package actuator

import (
	"cooling_control/internal/hardware"
	"cooling_control/internal/logger"
)

type pwmWriter struct {
	pin *hardware.PWMPin
}

func (w *pwmWriter) Write(value int) error {
	if value < 0 {
		value = 0
	}
	return w.pin.SetDuty(uint32(value))
}

// PWMFan drives a 4-wire fan's PWM input. The physical range is a duty
// cycle in steps of the pin's cycle length.
type PWMFan struct {
	*Driver
	pin *hardware.PWMPin
}

// NewPWMFan takes an opened pin; nil (open failed) yields unavailable mode.
func NewPWMFan(pin *hardware.PWMPin, cfg Config, log *logger.Logger) *PWMFan {
	if cfg.Name == "" {
		cfg.Name = "pwm"
	}
	if pin == nil {
		return &PWMFan{Driver: NewDriver(nil, cfg, log)}
	}
	if limit := int(pin.CycleLen()); cfg.Max > limit {
		cfg.Max = limit
	}
	return &PWMFan{Driver: NewDriver(&pwmWriter{pin: pin}, cfg, log), pin: pin}
}

// Close stops the fan and releases GPIO memory.
func (f *PWMFan) Close() error {
	f.Stop()
	if f.pin == nil {
		return nil
	}
	return f.pin.Close()
}
