package hardware

import (
	"fmt"
	"sync"

	rpio "github.com/stianeikeland/go-rpio/v4"
)

// PWMPin drives a hardware PWM channel through /dev/gpiomem.
type PWMPin struct {
	mu       sync.Mutex
	pin      rpio.Pin
	cycleLen uint32
}

// OpenPWM maps GPIO memory and configures pin for PWM at freqHz with
// cycleLen steps per period.
func OpenPWM(pin int, freqHz int, cycleLen uint32) (*PWMPin, error) {
	if cycleLen == 0 {
		return nil, fmt.Errorf("pwm cycle length must be positive")
	}
	if err := rpio.Open(); err != nil {
		return nil, fmt.Errorf("open gpio memory: %w", err)
	}
	p := rpio.Pin(pin)
	p.Mode(rpio.Pwm)
	p.Freq(freqHz * int(cycleLen))
	p.DutyCycle(0, cycleLen)
	return &PWMPin{pin: p, cycleLen: cycleLen}, nil
}

// CycleLen is the number of steps per PWM period.
func (p *PWMPin) CycleLen() uint32 { return p.cycleLen }

// SetDuty sets the on-time in steps, capped at the cycle length.
func (p *PWMPin) SetDuty(duty uint32) error {
	if duty > p.cycleLen {
		duty = p.cycleLen
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pin.DutyCycle(duty, p.cycleLen)
	return nil
}

// Close turns the output off and unmaps GPIO memory.
func (p *PWMPin) Close() error {
	p.mu.Lock()
	p.pin.DutyCycle(0, p.cycleLen)
	p.mu.Unlock()
	return rpio.Close()
}
