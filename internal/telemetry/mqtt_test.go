package telemetry

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"cooling_control/internal/models"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

type doneToken struct{}

func (doneToken) Wait() bool                     { return true }
func (doneToken) WaitTimeout(time.Duration) bool { return true }
func (doneToken) Error() error                   { return nil }

func (doneToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}

type message struct {
	topic    string
	retained bool
	payload  []byte
}

// fakeClient overrides the calls the publisher makes; the embedded nil
// interface panics on anything else.
type fakeClient struct {
	mqtt.Client
	mu           sync.Mutex
	open         bool
	messages     []message
	disconnected bool
}

func (c *fakeClient) IsConnectionOpen() bool { return c.open }

func (c *fakeClient) Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages = append(c.messages, message{topic: topic, retained: retained, payload: payload.([]byte)})
	return doneToken{}
}

func (c *fakeClient) Disconnect(quiesce uint) { c.disconnected = true }

func TestPublisher_Tick(t *testing.T) {
	c := &fakeClient{open: true}
	p := NewPublisher(c, "cooling", nil)

	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	expiry := now.Add(3 * time.Second)
	p.ObserveTick(models.Snapshot{OutputPct: 55, PostrunExpiry: &expiry, UpdatedAt: now})

	if len(c.messages) != 1 {
		t.Fatalf("messages=%d", len(c.messages))
	}
	m := c.messages[0]
	if m.topic != "cooling/state" || !m.retained {
		t.Fatalf("message=%+v", m)
	}
	var got map[string]any
	if err := json.Unmarshal(m.payload, &got); err != nil {
		t.Fatal(err)
	}
	if got["output_pct"] != 55.0 || got["postrun_remaining_seconds"] != 3.0 {
		t.Fatalf("payload=%v", got)
	}
}

func TestPublisher_Event(t *testing.T) {
	c := &fakeClient{open: true}
	p := NewPublisher(c, "site/fan", nil)
	p.ObserveEvent(models.ControlEvent{EventID: "e1", Type: models.EventAlarm})

	if len(c.messages) != 1 || c.messages[0].topic != "site/fan/events" || c.messages[0].retained {
		t.Fatalf("messages=%+v", c.messages)
	}
}

func TestPublisher_DropsWhileDisconnected(t *testing.T) {
	c := &fakeClient{open: false}
	p := NewPublisher(c, "cooling", nil)
	p.ObserveTick(models.Snapshot{})
	p.ObserveEvent(models.ControlEvent{Type: models.EventStop})
	if len(c.messages) != 0 {
		t.Fatalf("published while disconnected: %+v", c.messages)
	}
	p.Close()
	if !c.disconnected {
		t.Fatal("close must disconnect")
	}
}
