package actuator

import (
	"errors"
	"math"
	"syscall"
	"testing"
	"time"

	"cooling_control/internal/hardware"
	"cooling_control/internal/models"
)

// recordingWriter fails the first failN writes with err, then succeeds.
type recordingWriter struct {
	failN  int
	err    error
	calls  int
	values []int
}

func (w *recordingWriter) Write(v int) error {
	w.calls++
	if w.calls <= w.failN {
		return w.err
	}
	w.values = append(w.values, v)
	return nil
}

type fakeClock struct {
	t      time.Time
	sleeps []time.Duration
}

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }
func (c *fakeClock) sleep(d time.Duration)   { c.sleeps = append(c.sleeps, d) }

func testConfig(clk *fakeClock) Config {
	return Config{
		Name:            "test",
		Min:             0,
		Max:             100,
		Retries:         2,
		Backoff:         2 * time.Millisecond,
		FailSafeOnFault: true,
		Now:             clk.now,
		Sleep:           clk.sleep,
	}
}

func newClock() *fakeClock { return &fakeClock{t: time.Unix(1_700_000_000, 0)} }

func TestDriver_Clamp(t *testing.T) {
	for _, tc := range []struct {
		in   float64
		want int
	}{
		{-50, 0}, {0, 0}, {42, 42}, {100, 100}, {250, 100}, {math.NaN(), 0},
	} {
		clk := newClock()
		w := &recordingWriter{}
		d := NewDriver(w, testConfig(clk), nil)
		d.SetOutput(tc.in)
		st := d.Status()
		if st.Physical != tc.want || st.Percent != float64(tc.want) {
			t.Errorf("SetOutput(%v): status=%+v, want %d", tc.in, st, tc.want)
		}
	}
}

func TestDriver_SlewLimit(t *testing.T) {
	clk := newClock()
	cfg := testConfig(clk)
	cfg.SlewRate = 10 // %/s
	w := &recordingWriter{}
	d := NewDriver(w, cfg, nil)

	steps := []struct {
		dt      time.Duration
		request float64
		want    float64
	}{
		{500 * time.Millisecond, 100, 5},
		{time.Second, 100, 15},
		{2 * time.Second, 0, 0},
		{100 * time.Millisecond, 0.5, 0.5},
		{0, 90, 0.5},
	}
	prev := 0.0
	for i, s := range steps {
		clk.advance(s.dt)
		d.SetOutput(s.request)
		got := d.Status().Percent
		if math.Abs(got-s.want) > 1e-9 {
			t.Fatalf("step %d: percent=%v, want %v", i, got, s.want)
		}
		if math.Abs(got-prev) > cfg.SlewRate*s.dt.Seconds()+1e-9 {
			t.Fatalf("step %d: change %v exceeds rate*dt", i, got-prev)
		}
		prev = got
	}
}

func TestDriver_StopBypassesSlew(t *testing.T) {
	clk := newClock()
	cfg := testConfig(clk)
	cfg.StartupPercent = 80
	cfg.SlewRate = 1
	w := &recordingWriter{}
	d := NewDriver(w, cfg, nil)

	d.Stop()
	d.Stop()
	st := d.Status()
	if st.Percent != 0 || st.Physical != 0 {
		t.Fatalf("status after stop=%+v", st)
	}
	// 80 at startup, 0 once; the second stop is deduplicated
	if len(w.values) != 2 || w.values[1] != 0 {
		t.Fatalf("writes=%v", w.values)
	}
}

func TestDriver_MappingAndInvert(t *testing.T) {
	clk := newClock()
	cfg := testConfig(clk)
	cfg.Min, cfg.Max = 2, 125

	w := &recordingWriter{}
	d := NewDriver(w, cfg, nil)
	for _, p := range []float64{0, 50, 100} {
		d.SetOutput(p)
	}
	if want := []int{2, 64, 125}; !equalInts(w.values, want) {
		t.Fatalf("writes=%v, want %v", w.values, want)
	}

	cfg.Invert = true
	w = &recordingWriter{}
	d = NewDriver(w, cfg, nil)
	d.SetOutput(100)
	if want := []int{125, 2}; !equalInts(w.values, want) {
		t.Fatalf("inverted writes=%v, want %v", w.values, want)
	}
}

func TestDriver_SkipsUnchangedValue(t *testing.T) {
	clk := newClock()
	w := &recordingWriter{}
	d := NewDriver(w, testConfig(clk), nil)
	d.SetOutput(30)
	d.SetOutput(30)
	d.SetOutput(30.2)
	if len(w.values) != 2 {
		t.Fatalf("writes=%v", w.values)
	}
}

func TestDriver_RetryRecovers(t *testing.T) {
	clk := newClock()
	w := &recordingWriter{failN: 2, err: syscall.Errno(121)}
	cfg := testConfig(clk)
	cfg.StartupPercent = 40
	d := NewDriver(w, cfg, nil)

	if st := d.Status(); st.Fault != models.ActuatorOK || st.Physical != 40 {
		t.Fatalf("status=%+v", st)
	}
	want := []time.Duration{2 * time.Millisecond, 4 * time.Millisecond}
	if len(clk.sleeps) != 2 || clk.sleeps[0] != want[0] || clk.sleeps[1] != want[1] {
		t.Fatalf("sleeps=%v, want %v", clk.sleeps, want)
	}
}

func TestDriver_FailSafeAfterRetriesExhausted(t *testing.T) {
	clk := newClock()
	cfg := testConfig(clk)
	cfg.Min, cfg.Max = 2, 125
	cfg.FailSafePercent = 0
	w := &recordingWriter{}
	d := NewDriver(w, cfg, nil)

	w.failN, w.calls = 3, 0
	w.err = syscall.Errno(5)
	clk.sleeps = nil

	d.SetOutput(70) // must not panic or surface an error

	if w.calls != 4 {
		t.Fatalf("write calls=%d, want 3 attempts + 1 fail-safe", w.calls)
	}
	if last := w.values[len(w.values)-1]; last != 2 {
		t.Fatalf("fail-safe value=%d, want 2", last)
	}
	if len(clk.sleeps) != 3 || clk.sleeps[2] != failSafeDelay {
		t.Fatalf("sleeps=%v", clk.sleeps)
	}
	st := d.Status()
	if st.Fault != models.ActuatorBusWriteFailure || st.Percent != 70 {
		t.Fatalf("status=%+v", st)
	}

	// next successful write clears the fault
	d.SetOutput(71)
	if st := d.Status(); st.Fault != models.ActuatorOK {
		t.Fatalf("fault not cleared: %+v", st)
	}
}

func TestDriver_CommandMatchingFailSafeClearsFault(t *testing.T) {
	clk := newClock()
	cfg := testConfig(clk)
	cfg.Min, cfg.Max = 2, 125
	cfg.FailSafePercent = 0
	w := &recordingWriter{}
	d := NewDriver(w, cfg, nil)

	w.failN, w.calls = 3, 0
	w.err = syscall.Errno(5)
	d.SetOutput(70)
	if st := d.Status(); st.Fault != models.ActuatorBusWriteFailure || st.Physical != 2 {
		t.Fatalf("status after fail-safe=%+v", st)
	}

	d.SetOutput(0) // maps to the fail-safe value already on the device
	if w.calls != 5 {
		t.Fatalf("write calls=%d, want the command written despite matching value", w.calls)
	}
	st := d.Status()
	if st.Fault != models.ActuatorOK || st.Percent != 0 || st.Physical != 2 {
		t.Fatalf("status=%+v", st)
	}

	d.SetOutput(0)
	if w.calls != 5 {
		t.Fatalf("healthy driver rewrote an unchanged value, calls=%d", w.calls)
	}
}

func TestDriver_NonTransientErrorNotRetried(t *testing.T) {
	clk := newClock()
	cfg := testConfig(clk)
	cfg.FailSafeOnFault = false
	w := &recordingWriter{}
	d := NewDriver(w, cfg, nil)

	w.failN, w.calls, w.err = 10, 0, errors.New("wiper out of range")
	d.SetOutput(50)
	if w.calls != 1 {
		t.Fatalf("calls=%d, want 1", w.calls)
	}
}

func TestDriver_Unavailable(t *testing.T) {
	clk := newClock()
	d := NewDriver(nil, testConfig(clk), nil)
	d.SetOutput(55)
	st := d.Status()
	if st.Available || st.Fault != models.ActuatorBusUnavailable || st.Percent != 55 {
		t.Fatalf("status=%+v", st)
	}
	d.Stop()
	if d.Status().Percent != 0 {
		t.Fatal("stop must still record 0")
	}
}

func TestDriver_MinOverride(t *testing.T) {
	clk := newClock()
	cfg := testConfig(clk)
	cfg.Min, cfg.Max = 2, 125
	w := &recordingWriter{}
	d := NewDriver(w, cfg, nil)

	lo := 60
	d.SetMinOverride(&lo)
	d.SetOutput(1)
	if got := w.values[len(w.values)-1]; got != 61 {
		t.Fatalf("value=%d, want 61", got)
	}
	if st := d.Status(); st.MinOverride == nil || *st.MinOverride != 60 {
		t.Fatalf("status=%+v", st)
	}
	d.SetMinOverride(nil)
	d.SetOutput(0)
	if got := w.values[len(w.values)-1]; got != 2 {
		t.Fatalf("value=%d after clearing override", got)
	}
}

func TestConfig_Orient(t *testing.T) {
	cfg := Config{ReverseActing: true}
	if got := cfg.Orient(40); got != 60 {
		t.Fatalf("reverse acting 40 -> %v, want 60", got)
	}
	if got := cfg.Orient(140); got != 0 {
		t.Fatalf("reverse acting 140 -> %v, want 0", got)
	}
	if got := (Config{}).Orient(40); got != 40 {
		t.Fatalf("direct acting 40 -> %v", got)
	}
}

// regBus records writes to a single-device register file.
type regBus struct {
	wiper   []byte
	control []byte
	failAll bool
}

func (b *regBus) ReadBytes(addr byte, num int) ([]byte, error) { return make([]byte, num), nil }
func (b *regBus) WriteBytes(addr byte, value []byte) error       { return nil }
func (b *regBus) Close() error                                   { return nil }
func (b *regBus) ReadFromReg(addr, reg byte, value []byte) error {
	if b.failAll {
		return syscall.Errno(121)
	}
	return nil
}
func (b *regBus) WriteToReg(addr, reg byte, value []byte) error {
	switch reg {
	case regWiper:
		b.wiper = append(b.wiper, value...)
	case regControl:
		b.control = append(b.control, value...)
	}
	return nil
}

func TestDigipot(t *testing.T) {
	clk := newClock()
	cfg := testConfig(clk)
	cfg.Min, cfg.Max = 2, 125
	rb := &regBus{}
	d := NewDigipot(hardware.NewSharedBus(rb), DS3502DefaultAddr, cfg, nil)

	if len(rb.control) != 1 || rb.control[0] != controlWROnly {
		t.Fatalf("control writes=%v", rb.control)
	}
	d.SetOutput(100)
	if rb.wiper[len(rb.wiper)-1] != 125 {
		t.Fatalf("wiper=%v", rb.wiper)
	}
	var _ Actuator = d
}

func TestDigipot_ProbeFailure(t *testing.T) {
	clk := newClock()
	d := NewDigipot(hardware.NewSharedBus(&regBus{failAll: true}), DS3502DefaultAddr, testConfig(clk), nil)
	if st := d.Status(); st.Available || st.Fault != models.ActuatorBusUnavailable {
		t.Fatalf("status=%+v", st)
	}
	d2 := NewDigipot(hardware.NewSharedBus(nil), DS3502DefaultAddr, testConfig(clk), nil)
	if d2.Status().Available {
		t.Fatal("unavailable bus must yield unavailable digipot")
	}
}

func TestPWMFan_NoPin(t *testing.T) {
	clk := newClock()
	f := NewPWMFan(nil, testConfig(clk), nil)
	f.SetOutput(20)
	if st := f.Status(); st.Available || st.Percent != 20 {
		t.Fatalf("status=%+v", st)
	}
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}
	var _ Actuator = f
}

func equalInts(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
