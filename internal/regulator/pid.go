// Package regulator implements the PID feedback function used in Auto mode.
package regulator

import (
	"math"
	"time"
)

// Output range of the regulator.
const (
	OutputMin = 0.0
	OutputMax = 100.0
)

type Config struct {
	Kp, Ki, Kd float64
	Setpoint   float64
	// SampleTime suppresses recomputation when Compute is called faster; 0 disables.
	SampleTime time.Duration
	// Now replaces time.Now in tests.
	Now func() time.Time
}

// PID computes error = setpoint - measurement. The integral term is clamped
// to the output range and the derivative acts on the measurement, so a
// setpoint step does not kick the output.
// It is not safe for concurrent use; the control loop owns it.
type PID struct {
	kp, ki, kd float64
	setpoint   float64
	sampleTime time.Duration
	now        func() time.Time

	integral   float64
	lastInput  float64
	lastTime   time.Time
	lastOutput float64
	primed     bool
}

func New(cfg Config) *PID {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &PID{
		kp:         cfg.Kp,
		ki:         cfg.Ki,
		kd:         cfg.Kd,
		setpoint:   cfg.Setpoint,
		sampleTime: cfg.SampleTime,
		now:        cfg.Now,
	}
}

// Compute returns the output for the measured value, clamped to
// [OutputMin, OutputMax].
func (p *PID) Compute(measured float64) float64 {
	now := p.now()

	var dt float64
	if p.primed {
		elapsed := now.Sub(p.lastTime)
		if p.sampleTime > 0 && elapsed < p.sampleTime {
			return p.lastOutput
		}
		dt = elapsed.Seconds()
	}

	e := p.setpoint - measured
	p.integral = clamp(p.integral+p.ki*e*dt, OutputMin, OutputMax)

	var derivative float64
	if p.primed && dt > 0 {
		derivative = -p.kd * (measured - p.lastInput) / dt
	}

	out := clamp(p.kp*e+p.integral+derivative, OutputMin, OutputMax)

	p.lastInput = measured
	p.lastTime = now
	p.lastOutput = out
	p.primed = true
	return out
}

// UpdateSetpoint keeps the accumulated state; callers that change the
// setpoint abruptly follow it with Reset.
func (p *PID) UpdateSetpoint(v float64) { p.setpoint = v }

func (p *PID) Setpoint() float64 { return p.setpoint }

func (p *PID) SetGains(kp, ki, kd float64) {
	p.kp, p.ki, p.kd = kp, ki, kd
}

func (p *PID) Gains() (kp, ki, kd float64) { return p.kp, p.ki, p.kd }

// Reset clears integral and derivative memory.
func (p *PID) Reset() {
	p.integral = 0
	p.lastInput = 0
	p.lastOutput = 0
	p.lastTime = time.Time{}
	p.primed = false
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
