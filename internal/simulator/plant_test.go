package simulator

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"
)

func TestPlant_HeatsWithoutCooling(t *testing.T) {
	p := New(Config{Min: 0, Max: 100, Seed: 1})
	for i := 0; i < 10; i++ {
		p.Step(1)
	}
	if got := p.Temperature(1); got <= AmbientC {
		t.Fatalf("temperature=%v, want above ambient", got)
	}
	if p.Temperature(1) <= p.Temperature(0) {
		t.Fatal("protected mass has the larger heat load")
	}
}

func TestPlant_CoolingPullsTowardAmbient(t *testing.T) {
	p := New(Config{Min: 2, Max: 125, Seed: 1})
	p.SetTemperature(0, 60)
	if err := p.Write(125); err != nil {
		t.Fatal(err)
	}
	if p.Cooling() != 1 {
		t.Fatalf("cooling=%v", p.Cooling())
	}
	for i := 0; i < 200; i++ {
		p.Step(0.5)
	}
	if got := p.Temperature(0); got != AmbientC {
		t.Fatalf("temperature=%v, want clamped at ambient", got)
	}

	_ = p.Write(2)
	if p.Cooling() != 0 {
		t.Fatalf("cooling=%v at range minimum", p.Cooling())
	}
	_ = p.Write(-10)
	if p.Cooling() != 0 {
		t.Fatal("cooling below range must clamp")
	}
}

func TestPlant_SensorReadAndFault(t *testing.T) {
	p := New(Config{Seed: 7})
	p.SetTemperature(1, 40)
	dev := p.Sensor(1)

	hot, cold, err := dev.Read()
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(hot-40) > NoiseC+resolutionC || cold != AmbientC {
		t.Fatalf("hot=%v cold=%v", hot, cold)
	}
	if math.Mod(hot, resolutionC) != 0 {
		t.Fatalf("reading %v not quantized", hot)
	}

	boom := errors.New("boom")
	p.SetFault(1, boom)
	if _, _, err := dev.Read(); !errors.Is(err, boom) {
		t.Fatalf("err=%v", err)
	}
	p.SetFault(1, nil)
	if _, _, err := dev.Read(); err != nil {
		t.Fatal(err)
	}
}

func TestPlant_RunStopsOnCancel(t *testing.T) {
	p := New(Config{Seed: 1})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		p.Run(ctx, time.Millisecond)
		close(done)
	}()
	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
	if p.Temperature(0) <= AmbientC {
		t.Fatal("plant did not advance while running")
	}
}
