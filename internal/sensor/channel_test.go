package sensor

import (
	"errors"
	"fmt"
	"os"
	"syscall"
	"testing"
	"time"

	"cooling_control/internal/hardware"
	"cooling_control/internal/models"
)

type result struct {
	hot, cold float64
	err       error
}

// scriptDevice returns scripted results in order, repeating the last one.
type scriptDevice struct {
	script []result
	calls  int
}

func (d *scriptDevice) Read() (float64, float64, error) {
	i := d.calls
	if i >= len(d.script) {
		i = len(d.script) - 1
	}
	d.calls++
	r := d.script[i]
	return r.hot, r.cold, r.err
}

type sleepRecorder struct{ delays []time.Duration }

func (s *sleepRecorder) sleep(d time.Duration) { s.delays = append(s.delays, d) }

func newTestChannel(dev Device, retries, stale int, rec *sleepRecorder) *Channel {
	return NewChannel(dev, ChannelConfig{
		Address:        "0x66",
		Label:          "test",
		Retries:        retries,
		Backoff:        50 * time.Millisecond,
		StaleThreshold: stale,
		Sleep:          rec.sleep,
	}, nil)
}

var eio = syscall.Errno(5)

func TestChannel_ReadOK(t *testing.T) {
	dev := &scriptDevice{script: []result{{hot: 41.5, cold: 22.25}}}
	ch := newTestChannel(dev, 2, 5, &sleepRecorder{})

	r := ch.Read()
	if r.Status != models.StatusOK || !r.Usable() {
		t.Fatalf("status=%s", r.Status)
	}
	if *r.Temperature != 41.5 || *r.Ambient != 22.25 || *r.Delta != 19.25 {
		t.Fatalf("unexpected reading: %v %v %v", *r.Temperature, *r.Ambient, *r.Delta)
	}
	if r.StaleCount != 1 {
		t.Errorf("stale count=%d, want 1", r.StaleCount)
	}
}

func TestChannel_RetriesTransientWithBackoff(t *testing.T) {
	dev := &scriptDevice{script: []result{{err: eio}, {err: eio}, {hot: 30, cold: 20}}}
	rec := &sleepRecorder{}
	ch := newTestChannel(dev, 2, 5, rec)

	r := ch.Read()
	if r.Status != models.StatusOK {
		t.Fatalf("status=%s", r.Status)
	}
	if dev.calls != 3 {
		t.Errorf("calls=%d, want 3", dev.calls)
	}
	want := []time.Duration{50 * time.Millisecond, 100 * time.Millisecond}
	if fmt.Sprint(rec.delays) != fmt.Sprint(want) {
		t.Errorf("delays=%v, want %v", rec.delays, want)
	}
}

func TestChannel_RetriesExhaustedClearsCache(t *testing.T) {
	dev := &scriptDevice{script: []result{{hot: 30, cold: 20}, {err: eio}}}
	rec := &sleepRecorder{}
	ch := newTestChannel(dev, 2, 5, rec)

	ch.Read()
	r := ch.Read()
	if r.Status != models.StatusNotFound {
		t.Fatalf("status=%s, want not_found", r.Status)
	}
	if r.Temperature != nil || r.Ambient != nil || r.Delta != nil {
		t.Fatal("fault must not return cached values")
	}
	if dev.calls != 1+3 {
		t.Errorf("calls=%d, want 4", dev.calls)
	}
	if h := ch.Health(); h.Temperature != nil || h.Status != models.StatusNotFound {
		t.Errorf("health=%+v", h)
	}
}

func TestChannel_Classification(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want models.ChannelStatus
	}{
		{"no device", fmt.Errorf("probe: %w", ErrNoDevice), models.StatusNotFound},
		{"bus unavailable", hardware.ErrBusUnavailable, models.StatusNotFound},
		{"missing sysfs", fmt.Errorf("read: %w", os.ErrNotExist), models.StatusNotFound},
		{"enxio", syscall.Errno(6), models.StatusNotFound},
		{"open circuit", &FaultError{Status: models.StatusOpenCircuit}, models.StatusOpenCircuit},
		{"short to ground", &FaultError{Status: models.StatusShortToGround}, models.StatusShortToGround},
		{"short to supply", fmt.Errorf("x: %w", &FaultError{Status: models.StatusShortToSupply}), models.StatusShortToSupply},
		{"unexpected", errors.New("boom"), models.StatusError},
		{"malformed", errMalformed, models.StatusError},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			dev := &scriptDevice{script: []result{{err: tc.err}}}
			rec := &sleepRecorder{}
			r := newTestChannel(dev, 2, 5, rec).Read()
			if r.Status != tc.want {
				t.Fatalf("status=%s, want %s", r.Status, tc.want)
			}
			if dev.calls != 1 || len(rec.delays) != 0 {
				t.Errorf("non-transient error retried: calls=%d sleeps=%d", dev.calls, len(rec.delays))
			}
		})
	}
}

func TestChannel_StaleDetection(t *testing.T) {
	const threshold = 3
	dev := &scriptDevice{script: []result{
		{hot: 25}, {hot: 25}, {hot: 25}, {hot: 25}, {hot: 26}, {hot: 26},
	}}
	ch := newTestChannel(dev, 0, threshold, &sleepRecorder{})

	wantStatus := []models.ChannelStatus{
		models.StatusOK, models.StatusOK, models.StatusStale, models.StatusStale,
		models.StatusOK, models.StatusOK,
	}
	wantCount := []int{1, 2, 3, 4, 1, 2}
	for i := range wantStatus {
		r := ch.Read()
		if r.Status != wantStatus[i] || r.StaleCount != wantCount[i] {
			t.Fatalf("read %d: status=%s count=%d, want %s/%d", i, r.Status, r.StaleCount, wantStatus[i], wantCount[i])
		}
		if r.Status == models.StatusStale && (r.Temperature == nil || !r.Usable()) {
			t.Fatalf("stale reading must keep its temperature and stay usable")
		}
	}
}

func TestChannel_SampleLeavesStateAlone(t *testing.T) {
	dev := &scriptDevice{script: []result{{hot: 25}, {hot: 25}, {hot: 25}}}
	ch := newTestChannel(dev, 0, 5, &sleepRecorder{})

	ch.Read()
	s := ch.Sample()
	if s.Status != models.StatusOK || *s.Temperature != 25 {
		t.Fatalf("sample=%+v", s)
	}
	if r := ch.Read(); r.StaleCount != 2 {
		t.Fatalf("stale count=%d, sample must not count", r.StaleCount)
	}
}

type typedDevice struct {
	scriptDevice
	tc  ThermocoupleType
	err error
}

func (d *typedDevice) SetThermocoupleType(tc ThermocoupleType) error {
	if d.err != nil {
		return d.err
	}
	d.tc = tc
	return nil
}

func TestReader_SetThermocoupleType(t *testing.T) {
	typed := &typedDevice{scriptDevice: scriptDevice{script: []result{{hot: 30}}}}
	plain := &scriptDevice{script: []result{{hot: 30}}}
	r := NewReader(newTestChannel(typed, 0, 5, &sleepRecorder{}), newTestChannel(plain, 0, 5, &sleepRecorder{}))

	if got := len(r.Channels()); got != 2 {
		t.Fatalf("channels=%d, want 2", got)
	}
	if err := r.SetThermocoupleType(TypeJ); err != nil {
		t.Fatalf("set type: %v", err)
	}
	if typed.tc != TypeJ {
		t.Fatalf("type=%v, want J", typed.tc)
	}

	typed.err = errors.New("nack")
	if err := r.SetThermocoupleType(TypeK); err == nil {
		t.Fatal("expected device error")
	}
}
