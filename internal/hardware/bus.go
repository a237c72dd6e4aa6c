// Package hardware owns the physical buses: I2C through a mutex-guarded
// shared handle, 1-Wire through sysfs, and the GPIO PWM pin.
package hardware

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
)

// Bus is the register-level I2C contract. reef-pi's i2c.Bus satisfies it.
type Bus interface {
	ReadBytes(addr byte, num int) ([]byte, error)
	WriteBytes(addr byte, value []byte) error
	ReadFromReg(addr, reg byte, value []byte) error
	WriteToReg(addr, reg byte, value []byte) error
	Close() error
}

// ErrBusUnavailable is returned for every transaction on a bus that could not be opened.
var ErrBusUnavailable = errors.New("hardware: bus unavailable")

// Probe range used by Scan, same as i2cdetect's default.
const (
	scanFirst byte = 0x08
	scanLast  byte = 0x77
)

// SharedBus serializes transactions from the control loop and from
// on-demand diagnostics. A nil underlying bus means unavailable.
type SharedBus struct {
	mu  sync.Mutex
	bus Bus
}

// NewSharedBus wraps b. Passing nil yields an unavailable bus.
func NewSharedBus(b Bus) *SharedBus {
	return &SharedBus{bus: b}
}

// Available reports whether the underlying bus was opened.
func (s *SharedBus) Available() bool {
	return s != nil && s.bus != nil
}

// Do runs fn as one critical section, so multi-register reads are not
// interleaved with other callers.
func (s *SharedBus) Do(fn func(Bus) error) error {
	if !s.Available() {
		return ErrBusUnavailable
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(s.bus)
}

// Scan probes every 7-bit address with a one byte read. The lock is taken
// per probe so a running control tick is delayed by one probe at most.
func (s *SharedBus) Scan() ([]byte, error) {
	if !s.Available() {
		return nil, ErrBusUnavailable
	}
	var found []byte
	for addr := scanFirst; addr <= scanLast; addr++ {
		a := addr
		err := s.Do(func(b Bus) error {
			_, err := b.ReadBytes(a, 1)
			return err
		})
		if err == nil {
			found = append(found, a)
		}
	}
	return found, nil
}

// Close releases the underlying bus.
func (s *SharedBus) Close() error {
	if !s.Available() {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bus.Close()
}

// FormatAddr renders an address the way configuration files spell it.
func FormatAddr(a byte) string {
	return fmt.Sprintf("0x%02x", a)
}

// FormatAddrs renders a list of addresses.
func FormatAddrs(addrs []byte) []string {
	out := make([]string, 0, len(addrs))
	for _, a := range addrs {
		out = append(out, FormatAddr(a))
	}
	return out
}

// ParseAddr accepts "0x66", "66" (hex) or "0X66".
func ParseAddr(s string) (byte, error) {
	v := strings.ToLower(strings.TrimSpace(s))
	v = strings.TrimPrefix(v, "0x")
	if v == "" {
		return 0, fmt.Errorf("empty i2c address %q", s)
	}
	n, err := strconv.ParseUint(v, 16, 8)
	if err != nil {
		return 0, fmt.Errorf("parse i2c address %q: %w", s, err)
	}
	if n > 0x7f {
		return 0, fmt.Errorf("i2c address %q out of 7-bit range", s)
	}
	return byte(n), nil
}
