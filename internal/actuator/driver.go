package actuator

import (
	"math"
	"sync"
	"time"

	"cooling_control/internal/hardware"
	"cooling_control/internal/logger"
	"cooling_control/internal/models"
)

const failSafeDelay = 10 * time.Millisecond

type Config struct {
	Name string
	// Invert mirrors the physical mapping (0 % -> Max).
	Invert bool
	// ReverseActing turns a regulator output r into 100-r. Mutually
	// exclusive with Invert; config validation rejects both.
	ReverseActing bool
	Min, Max      int
	// SlewRate in %/s, 0 disables.
	SlewRate        float64
	StartupPercent  float64
	FailSafeOnFault bool
	FailSafePercent float64
	Retries         int
	Backoff         time.Duration

	Now   func() time.Time
	Sleep func(time.Duration)
}

// Orient applies the wiring direction to a regulator output.
func (c Config) Orient(raw float64) float64 {
	if c.ReverseActing {
		raw = 100 - raw
	}
	return clampPercent(raw)
}

// Driver implements clamping, slew limiting, linear mapping, retry and the
// fail-safe write on top of a Writer. A nil Writer puts it in unavailable
// mode: commands are tracked but never written.
// Worst case blocking per call: (Retries+1) writes, Backoff*(2^Retries-1)
// of sleeping, then 10ms and one fail-safe write.
type Driver struct {
	cfg Config
	w   Writer
	log *logger.Logger

	mu          sync.Mutex
	percent     float64
	physical    int
	lastAt      time.Time
	commanded   bool
	fault       models.ActuatorFault
	faultLogged bool
	minOverride *int
}

// NewDriver commands the startup percentage before returning.
func NewDriver(w Writer, cfg Config, log *logger.Logger) *Driver {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Sleep == nil {
		cfg.Sleep = time.Sleep
	}
	if log == nil {
		log = logger.NewNop()
	}
	d := &Driver{cfg: cfg, w: w, log: log, physical: -1}
	if w == nil {
		d.fault = models.ActuatorBusUnavailable
	}
	d.SetOutput(cfg.StartupPercent)
	return d
}

func (d *Driver) SetOutput(percent float64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.apply(percent, true)
}

func (d *Driver) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.apply(0, false)
}

func (d *Driver) Orient(raw float64) float64 { return d.cfg.Orient(raw) }

func (d *Driver) Status() Status {
	d.mu.Lock()
	defer d.mu.Unlock()
	st := Status{
		Percent:   d.percent,
		Physical:  d.physical,
		Fault:     d.fault,
		Available: d.w != nil,
	}
	if d.minOverride != nil {
		v := *d.minOverride
		st.MinOverride = &v
	}
	return st
}

func (d *Driver) SetMinOverride(min *int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if min == nil {
		d.minOverride = nil
		return
	}
	v := *min
	if v < 0 {
		v = 0
	}
	if v >= d.cfg.Max {
		v = d.cfg.Max - 1
	}
	d.minOverride = &v
	d.log.Infow("actuator_min_override", "name", d.cfg.Name, "min", v)
}

func (d *Driver) apply(percent float64, slew bool) {
	p := clampPercent(percent)
	now := d.cfg.Now()
	if slew && d.commanded && d.cfg.SlewRate > 0 {
		p = slewLimit(d.percent, p, d.cfg.SlewRate, now.Sub(d.lastAt))
	}
	d.percent = p
	d.lastAt = now
	d.commanded = true

	if d.w == nil {
		if !d.faultLogged {
			d.log.Errorw("actuator_unavailable", "name", d.cfg.Name, "percent", p)
			d.faultLogged = true
		}
		return
	}

	// A faulted driver writes every command, so one success clears the fault.
	value := d.mapPercent(p)
	if value == d.physical && d.fault == models.ActuatorOK {
		return
	}
	if err := d.writeWithRetry(value); err != nil {
		d.fault = models.ActuatorBusWriteFailure
		d.log.Errorw("actuator_write_failed", "name", d.cfg.Name, "value", value,
			"percent", p, "attempts", d.cfg.Retries+1, "err", err)
		if d.cfg.FailSafeOnFault {
			d.failSafe()
		}
		return
	}
	if d.fault != models.ActuatorOK {
		d.log.Infow("actuator_recovered", "name", d.cfg.Name, "value", value)
		d.fault = models.ActuatorOK
	}
	d.log.Debugw("actuator_write", "name", d.cfg.Name, "percent", p, "value", value)
	d.physical = value
}

func (d *Driver) writeWithRetry(value int) error {
	var err error
	for attempt := 1; attempt <= d.cfg.Retries+1; attempt++ {
		if err = d.w.Write(value); err == nil {
			return nil
		}
		if !hardware.IsTransient(err) || attempt > d.cfg.Retries {
			break
		}
		delay := d.cfg.Backoff << (attempt - 1)
		d.log.Warnw("actuator_retry", "name", d.cfg.Name, "attempt", attempt,
			"delay_ms", delay.Milliseconds(), "err", err)
		d.cfg.Sleep(delay)
	}
	return err
}

// failSafe makes one best-effort write of the configured safe percentage.
func (d *Driver) failSafe() {
	d.cfg.Sleep(failSafeDelay)
	value := d.mapPercent(clampPercent(d.cfg.FailSafePercent))
	if err := d.w.Write(value); err != nil {
		d.log.Errorw("actuator_fail_safe_failed", "name", d.cfg.Name, "value", value, "err", err)
		d.physical = -1
		return
	}
	d.log.Warnw("actuator_fail_safe", "name", d.cfg.Name, "value", value)
	d.physical = value
}

// mapPercent maps 0..100 onto [min, max], mirrored when Invert is set.
func (d *Driver) mapPercent(p float64) int {
	lo, hi := d.cfg.Min, d.cfg.Max
	if d.minOverride != nil {
		lo = *d.minOverride
	}
	frac := p / 100
	if d.cfg.Invert {
		frac = 1 - frac
	}
	return lo + int(math.Round(frac*float64(hi-lo)))
}

func slewLimit(prev, next, rate float64, elapsed time.Duration) float64 {
	if elapsed < 0 {
		elapsed = 0
	}
	step := rate * elapsed.Seconds()
	switch {
	case next > prev+step:
		return prev + step
	case next < prev-step:
		return prev - step
	default:
		return next
	}
}

func clampPercent(p float64) float64 {
	if math.IsNaN(p) {
		return 0
	}
	return math.Max(0, math.Min(100, p))
}
