// Package simulator provides a thermal model that stands in for the two
// thermocouples and the cooling actuator on machines without the hardware.
package simulator

import (
	"context"
	"math"
	"math/rand"
	"sync"
	"time"

	"cooling_control/internal/sensor"
)

// ----------- Simulation constants -----------
const (
	AmbientC         = 25.0 // ambient temperature °C
	CoolCPerSec      = 2.0  // °C per second at full cooling
	DriftFracPerSec  = 0.02 // fraction of the excess over ambient lost per second
	NoiseC           = 0.05 // peak read noise °C
	resolutionC      = 1.0 / 16
	defaultHeatLoad1 = 0.6 // °C per second, regulated component
	defaultHeatLoad2 = 0.9 // °C per second, protected component
)

type Config struct {
	// Physical actuator range the writes are interpreted against.
	Min, Max int
	// HeatLoad per sensor in °C/s; zero uses the defaults.
	HeatLoad [2]float64
	Seed     int64
}

// Plant integrates heat load, cooling and drift for two thermal masses.
type Plant struct {
	mu       sync.Mutex
	cfg      Config
	temps    [2]float64
	cooling  float64
	faults   [2]error
	rng      *rand.Rand
	lastStep time.Time
}

func New(cfg Config) *Plant {
	if cfg.HeatLoad[0] == 0 {
		cfg.HeatLoad[0] = defaultHeatLoad1
	}
	if cfg.HeatLoad[1] == 0 {
		cfg.HeatLoad[1] = defaultHeatLoad2
	}
	if cfg.Max <= cfg.Min {
		cfg.Min, cfg.Max = 0, 100
	}
	if cfg.Seed == 0 {
		cfg.Seed = time.Now().UnixNano()
	}
	return &Plant{
		cfg:   cfg,
		temps: [2]float64{AmbientC, AmbientC},
		rng:   rand.New(rand.NewSource(cfg.Seed)),
	}
}

// Run advances the model every tick until ctx is canceled.
func (p *Plant) Run(ctx context.Context, tick time.Duration) {
	t := time.NewTicker(tick)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			p.mu.Lock()
			if p.lastStep.IsZero() {
				p.lastStep = now
				p.mu.Unlock()
				continue
			}
			elapsed := now.Sub(p.lastStep).Seconds()
			p.lastStep = now
			p.mu.Unlock()
			p.Step(elapsed)
		}
	}
}

// Step advances the model by elapsed seconds.
func (p *Plant) Step(elapsed float64) {
	if elapsed <= 0 {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	for i := range p.temps {
		excess := p.temps[i] - AmbientC
		d := p.cfg.HeatLoad[i] - CoolCPerSec*p.cooling - DriftFracPerSec*excess
		p.temps[i] = maxFloat(p.temps[i]+d*elapsed, AmbientC)
	}
}

// Write implements actuator.Writer: the physical value sets the cooling fraction.
func (p *Plant) Write(value int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	frac := float64(value-p.cfg.Min) / float64(p.cfg.Max-p.cfg.Min)
	p.cooling = math.Max(0, math.Min(1, frac))
	return nil
}

// Cooling returns the current cooling fraction 0..1.
func (p *Plant) Cooling() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cooling
}

// Temperature returns the true (noise free) temperature of sensor i.
func (p *Plant) Temperature(i int) float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.temps[i]
}

// SetTemperature forces sensor i to t, e.g. to provoke an alarm.
func (p *Plant) SetTemperature(i int, t float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.temps[i] = t
}

// SetFault makes reads of sensor i fail with err until cleared with nil.
func (p *Plant) SetFault(i int, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.faults[i] = err
}

// Sensor returns a sensor.Device reading thermal mass i.
func (p *Plant) Sensor(i int) sensor.Device {
	return &plantSensor{p: p, idx: i}
}

type plantSensor struct {
	p   *Plant
	idx int
}

// Read quantizes to the MCP9600's 1/16 °C resolution.
func (s *plantSensor) Read() (hot, cold float64, err error) {
	s.p.mu.Lock()
	defer s.p.mu.Unlock()
	if err := s.p.faults[s.idx]; err != nil {
		return 0, 0, err
	}
	noise := (s.p.rng.Float64()*2 - 1) * NoiseC
	return quantize(s.p.temps[s.idx] + noise), quantize(AmbientC), nil
}

func quantize(v float64) float64 {
	return math.Round(v/resolutionC) * resolutionC
}

// helpers
func maxFloat(a, b float64) float64 {
	if a >= b {
		return a
	}
	return b
}
