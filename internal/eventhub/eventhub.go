// Package eventhub distributes board events (pin edges, LED level changes,
// clock and timer state) to subscribed channels. Publishing never blocks, so
// drivers may publish from interrupt dispatch; a subscriber that falls behind
// loses events.
package eventhub

import (
	"sync"
	"time"

	"github.com/ravasco/go-devboard/pkg/pin"
)

type Topic uint8

const (
	TopicButton Topic = iota
	TopicLED
	TopicLFCLK
	TopicTimer
)

func (t Topic) String() string {
	switch t {
	case TopicButton:
		return "button"
	case TopicLED:
		return "led"
	case TopicLFCLK:
		return "lfclk"
	case TopicTimer:
		return "timer"
	default:
		return "topic?"
	}
}

// Event carries one board state change. Pin and Level are set for button and
// LED events, Running for timer events.
type Event struct {
	Topic   Topic
	Pin     pin.Pin
	Level   pin.Level
	Running bool
	When    time.Time
}

type Hub struct {
	listenersMutex sync.RWMutex
	listeners      map[Topic][]chan<- Event
}

func New() *Hub {
	return &Hub{
		listeners: map[Topic][]chan<- Event{},
	}
}

func (h *Hub) Subscribe(t Topic, ch chan<- Event) {
	h.listenersMutex.Lock()
	defer h.listenersMutex.Unlock()
	h.listeners[t] = append(h.listeners[t], ch)
}

func (h *Hub) Unsubscribe(t Topic, ch chan<- Event) {
	h.listenersMutex.Lock()
	defer h.listenersMutex.Unlock()
	currListeners, ok := h.listeners[t]
	if !ok {
		return
	}
	for idx, listener := range currListeners {
		if listener == ch {
			currListeners[idx] = currListeners[len(currListeners)-1]
			h.listeners[t] = currListeners[:len(currListeners)-1]
			break
		}
	}
	if len(h.listeners[t]) == 0 {
		delete(h.listeners, t)
	}
}

// Publish delivers the event to every subscriber of its topic without
// blocking; full subscriber channels are skipped.
func (h *Hub) Publish(ev Event) {
	if ev.When.IsZero() {
		ev.When = time.Now()
	}
	h.listenersMutex.RLock()
	defer h.listenersMutex.RUnlock()
	for _, listener := range h.listeners[ev.Topic] {
		select {
		case listener <- ev:
		default:
		}
	}
}
