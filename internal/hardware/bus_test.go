package hardware

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"syscall"
	"testing"
)

// fakeBus answers reads for a fixed set of addresses.
type fakeBus struct {
	mu      sync.Mutex
	present map[byte]bool
	reads   int
	closed  bool
}

func (f *fakeBus) ReadBytes(addr byte, num int) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reads++
	if !f.present[addr] {
		return nil, syscall.Errno(121)
	}
	return make([]byte, num), nil
}
func (f *fakeBus) WriteBytes(addr byte, value []byte) error       { return nil }
func (f *fakeBus) ReadFromReg(addr, reg byte, value []byte) error { return nil }
func (f *fakeBus) WriteToReg(addr, reg byte, value []byte) error  { return nil }
func (f *fakeBus) Close() error                                   { f.closed = true; return nil }

func TestSharedBus_Unavailable(t *testing.T) {
	b := NewSharedBus(nil)
	if b.Available() {
		t.Fatal("nil bus reported available")
	}
	called := false
	err := b.Do(func(Bus) error { called = true; return nil })
	if !errors.Is(err, ErrBusUnavailable) {
		t.Fatalf("err=%v, want ErrBusUnavailable", err)
	}
	if called {
		t.Fatal("callback ran on unavailable bus")
	}
	if _, err := b.Scan(); !errors.Is(err, ErrBusUnavailable) {
		t.Fatalf("scan err=%v", err)
	}
	if err := b.Close(); err != nil {
		t.Fatalf("close unavailable: %v", err)
	}
}

func TestSharedBus_Scan(t *testing.T) {
	fb := &fakeBus{present: map[byte]bool{0x28: true, 0x66: true, 0x67: true, 0x03: true}}
	b := NewSharedBus(fb)

	found, err := b.Scan()
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	got := FormatAddrs(found)
	want := []string{"0x28", "0x66", "0x67"}
	if fmt.Sprint(got) != fmt.Sprint(want) {
		t.Fatalf("scan=%v, want %v (0x03 is outside the probe range)", got, want)
	}
	if fb.reads != int(scanLast-scanFirst)+1 {
		t.Errorf("probes=%d", fb.reads)
	}
}

func TestSharedBus_DoSerializes(t *testing.T) {
	b := NewSharedBus(&fakeBus{})
	var (
		inside int
		maxIn  int
		mu     sync.Mutex
		wg     sync.WaitGroup
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = b.Do(func(Bus) error {
				mu.Lock()
				inside++
				if inside > maxIn {
					maxIn = inside
				}
				mu.Unlock()
				mu.Lock()
				inside--
				mu.Unlock()
				return nil
			})
		}()
	}
	wg.Wait()
	if maxIn != 1 {
		t.Fatalf("max concurrent transactions=%d", maxIn)
	}
}

func TestParseAddr(t *testing.T) {
	tests := []struct {
		in      string
		want    byte
		wantErr bool
	}{
		{"0x66", 0x66, false},
		{"0X28", 0x28, false},
		{"67", 0x67, false},
		{" 0x08 ", 0x08, false},
		{"", 0, true},
		{"0x", 0, true},
		{"0xzz", 0, true},
		{"0x80", 0, true},
	}
	for _, tc := range tests {
		got, err := ParseAddr(tc.in)
		if (err != nil) != tc.wantErr {
			t.Errorf("ParseAddr(%q) err=%v, wantErr=%v", tc.in, err, tc.wantErr)
			continue
		}
		if got != tc.want {
			t.Errorf("ParseAddr(%q)=%#x, want %#x", tc.in, got, tc.want)
		}
	}
}

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"eio", syscall.Errno(5), true},
		{"eremoteio", syscall.Errno(121), true},
		{"wrapped eio", fmt.Errorf("read 0x66: %w", syscall.Errno(5)), true},
		{"sentinel", fmt.Errorf("crc: %w", ErrTransient), true},
		{"enodev", syscall.Errno(19), false},
		{"not exist", os.ErrNotExist, false},
		{"plain", errors.New("boom"), false},
	}
	for _, tc := range tests {
		if got := IsTransient(tc.err); got != tc.want {
			t.Errorf("%s: IsTransient=%v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestOneWire(t *testing.T) {
	root := t.TempDir()
	for _, dir := range []string{"3b-000000000001", "3b-000000000002", "28-00000abc", "w1_bus_master1"} {
		if err := os.MkdirAll(filepath.Join(root, dir), 0o755); err != nil {
			t.Fatal(err)
		}
	}
	payload := "01 02 03 04 05 06 07 08 09 : crc=09 YES\n01 02 03 04 05 06 07 08 09 t=1000\n"
	if err := os.WriteFile(filepath.Join(root, "3b-000000000001", "w1_slave"), []byte(payload), 0o644); err != nil {
		t.Fatal(err)
	}

	w := NewOneWire(root)
	ids, err := w.Scan("3b-")
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if fmt.Sprint(ids) != "[3b-000000000001 3b-000000000002]" {
		t.Errorf("scan=%v", ids)
	}
	all, _ := w.Scan("")
	if len(all) != 3 {
		t.Errorf("scan all=%v", all)
	}

	lines, err := w.ReadSlave("3b-000000000001")
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(lines) != 2 {
		t.Fatalf("lines=%q", lines)
	}

	if _, err := w.ReadSlave("3b-000000000002"); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("missing w1_slave err=%v", err)
	}
}
