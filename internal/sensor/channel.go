package sensor

import (
	"errors"
	"io/fs"
	"sync"
	"syscall"
	"time"

	"cooling_control/internal/hardware"
	"cooling_control/internal/logger"
	"cooling_control/internal/models"
)

// Reading is the record returned by a channel read. Temperature, Ambient and
// Delta are nil whenever the status is a fault.
type Reading struct {
	Temperature *float64             `json:"temperature"`
	Ambient     *float64             `json:"ambient"`
	Delta       *float64             `json:"delta"`
	Status      models.ChannelStatus `json:"status"`
	StaleCount  int                  `json:"stale_count"`
}

// Usable reports whether the reading may drive control decisions.
func (r Reading) Usable() bool {
	return r.Temperature != nil && r.Status.Usable()
}

type ChannelConfig struct {
	Address        string
	Label          string
	Retries        int
	Backoff        time.Duration
	StaleThreshold int
	// Sleep replaces time.Sleep in tests.
	Sleep func(time.Duration)
}

// Channel wraps one Device with retry, fault classification and stale detection.
type Channel struct {
	dev Device
	cfg ChannelConfig
	log *logger.Logger

	mu         sync.Mutex
	temp       *float64
	ambient    *float64
	delta      *float64
	status     models.ChannelStatus
	staleCount int
}

func NewChannel(dev Device, cfg ChannelConfig, log *logger.Logger) *Channel {
	if cfg.Sleep == nil {
		cfg.Sleep = time.Sleep
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &Channel{
		dev:    dev,
		cfg:    cfg,
		log:    log,
		status: models.StatusNotFound,
	}
}

func (c *Channel) Address() string { return c.cfg.Address }
func (c *Channel) Label() string   { return c.cfg.Label }

// Read performs one acquisition. On transient bus errors it makes up to
// Retries+1 reads and sleeps Backoff*(2^Retries-1) in total.
func (c *Channel) Read() Reading {
	hot, cold, err := c.readWithRetry()

	c.mu.Lock()
	defer c.mu.Unlock()

	prev := c.status
	if err != nil {
		c.status = classify(err)
		c.temp, c.ambient, c.delta = nil, nil, nil
		c.staleCount = 0
		if prev != c.status {
			c.log.Warnw("sensor_fault", "address", c.cfg.Address, "label", c.cfg.Label,
				"status", c.status, "err", err)
		}
		return c.readingLocked()
	}

	if c.temp != nil && *c.temp == hot {
		c.staleCount++
	} else {
		c.staleCount = 1
	}
	delta := hot - cold
	c.temp, c.ambient, c.delta = &hot, &cold, &delta

	c.status = models.StatusOK
	if c.cfg.StaleThreshold > 0 && c.staleCount >= c.cfg.StaleThreshold {
		c.status = models.StatusStale
	}
	if prev != c.status {
		c.log.Infow("sensor_status_changed", "address", c.cfg.Address, "label", c.cfg.Label,
			"from", prev, "to", c.status, "temperature", hot)
	} else {
		c.log.Debugw("sensor_read", "address", c.cfg.Address, "temperature", hot,
			"ambient", cold, "stale_count", c.staleCount)
	}
	return c.readingLocked()
}

// Sample is a one-shot read for diagnostics. It uses the same retry and
// classification but leaves the cached state and stale counter untouched.
func (c *Channel) Sample() Reading {
	hot, cold, err := c.readWithRetry()
	if err != nil {
		return Reading{Status: classify(err)}
	}
	delta := hot - cold
	return Reading{Temperature: &hot, Ambient: &cold, Delta: &delta, Status: models.StatusOK}
}

// Health returns the last known state without touching the bus.
func (c *Channel) Health() Reading {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.readingLocked()
}

// SetThermocoupleType forwards to devices that support it.
func (c *Channel) SetThermocoupleType(tc ThermocoupleType) error {
	d, ok := c.dev.(Configurable)
	if !ok {
		return nil
	}
	return d.SetThermocoupleType(tc)
}

func (c *Channel) readWithRetry() (hot, cold float64, err error) {
	for attempt := 1; ; attempt++ {
		hot, cold, err = c.dev.Read()
		if err == nil {
			return hot, cold, nil
		}
		if !hardware.IsTransient(err) || attempt > c.cfg.Retries {
			return 0, 0, err
		}
		delay := c.cfg.Backoff << (attempt - 1)
		c.log.Debugw("sensor_retry", "address", c.cfg.Address, "attempt", attempt,
			"delay_ms", delay.Milliseconds(), "err", err)
		c.cfg.Sleep(delay)
	}
}

func (c *Channel) readingLocked() Reading {
	return Reading{
		Temperature: copyFloat(c.temp),
		Ambient:     copyFloat(c.ambient),
		Delta:       copyFloat(c.delta),
		Status:      c.status,
		StaleCount:  c.staleCount,
	}
}

// classify maps a failed read to a channel status. Transient errors only
// reach here once retries are exhausted.
func classify(err error) models.ChannelStatus {
	var fault *FaultError
	if errors.As(err, &fault) {
		return fault.Status
	}
	var errno syscall.Errno
	switch {
	case hardware.IsTransient(err),
		errors.Is(err, ErrNoDevice),
		errors.Is(err, hardware.ErrBusUnavailable),
		errors.Is(err, fs.ErrNotExist),
		errors.As(err, &errno):
		return models.StatusNotFound
	default:
		return models.StatusError
	}
}

func copyFloat(p *float64) *float64 {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
