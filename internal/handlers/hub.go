package handlers

import (
	"sync"

	"cooling_control/internal/models"
)

const subscriberBuffer = 16

// StreamHub fans control events out to websocket clients. It observes the
// loop; a slow client misses events rather than stalling the worker.
type StreamHub struct {
	mu   sync.Mutex
	subs map[chan models.ControlEvent]struct{}
}

func NewStreamHub() *StreamHub {
	return &StreamHub{subs: make(map[chan models.ControlEvent]struct{})}
}

func (h *StreamHub) ObserveTick(models.Snapshot) {}

func (h *StreamHub) ObserveEvent(e models.ControlEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subs {
		select {
		case ch <- e:
		default:
		}
	}
}

// Subscribe returns a channel of events and a func that unsubscribes.
func (h *StreamHub) Subscribe() (<-chan models.ControlEvent, func()) {
	ch := make(chan models.ControlEvent, subscriberBuffer)
	h.mu.Lock()
	h.subs[ch] = struct{}{}
	h.mu.Unlock()
	return ch, func() {
		h.mu.Lock()
		delete(h.subs, ch)
		h.mu.Unlock()
	}
}
