package logger

import (
	"strings"
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestToZapLevel(t *testing.T) {
	cases := map[string]zapcore.Level{
		DebugLevel: zapcore.DebugLevel,
		InfoLevel:  zapcore.InfoLevel,
		WarnLevel:  zapcore.WarnLevel,
		"Warning":  zapcore.WarnLevel,
		" ERROR ":  zapcore.ErrorLevel,
		"bogus":    defaultZapLevel,
	}
	for in, want := range cases {
		if got := toZapLevel(in); got != want {
			t.Fatalf("toZapLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestGetReturnsSingleton(t *testing.T) {
	a := Get(InfoLevel)
	b := Init(Options{Level: DebugLevel, Format: FormatJSON})
	if a != b {
		t.Fatalf("expected the same instance from Get and Init")
	}
}

func TestNewIsIndependent(t *testing.T) {
	if New(InfoLevel) == Get(InfoLevel) {
		t.Fatalf("New must not return the singleton")
	}
	l := NewNop().Named("loop")
	l.Infow("noop_does_not_panic", "k", 1)
}

func TestSetLevelPropagatesToChildren(t *testing.T) {
	parent := New(InfoLevel)
	child := parent.Named("loop")
	if child.Desugar().Core().Enabled(zapcore.DebugLevel) {
		t.Fatal("debug enabled at info level")
	}

	parent.SetLevel(DebugLevel)
	if !child.Desugar().Core().Enabled(zapcore.DebugLevel) {
		t.Fatal("child did not follow parent level change")
	}
	if child.Level() != "debug" {
		t.Fatalf("Level() = %q", child.Level())
	}
}

func TestJSONFormat(t *testing.T) {
	l := newZapLogger(Options{Level: WarnLevel, Format: FormatJSON})
	if l.Desugar().Core().Enabled(zapcore.InfoLevel) {
		t.Fatal("info enabled at warn level")
	}
	buf, err := newEncoder(FormatJSON).EncodeEntry(zapcore.Entry{Level: zapcore.WarnLevel, Message: "sensor_stale"}, nil)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if out := buf.String(); out[0] != '{' || !strings.Contains(out, `"level":"warn"`) {
		t.Fatalf("unexpected json line: %s", out)
	}
}
