// Package events implements the in-process pub/sub event bus (A9): the
// orchestrator and health tracker publish routing and health-state events
// that the optional /v1/events endpoint streams out to subscribers.
package events

import (
	"encoding/json"
	"sync"
	"time"
)

// EventType identifies the kind of event.
type EventType string

const (
	EventRouteSuccess EventType = "route_success"
	EventRouteError   EventType = "route_error"
	EventHealthChange EventType = "health_change"
)

// Event is a single event published on the bus.
type Event struct {
	Type      EventType `json:"type"`
	Timestamp time.Time `json:"timestamp"`

	// Routing fields (populated for route_success/route_error).
	TraceID        string  `json:"trace_id,omitempty"`
	RequestedModel string  `json:"requested_model,omitempty"`
	ProviderID     string  `json:"provider_id,omitempty"`
	LatencyMs      float64 `json:"latency_ms,omitempty"`
	RetryCount     int     `json:"retry_count,omitempty"`
	ErrorClass     string  `json:"error_class,omitempty"`
	ErrorMsg       string  `json:"error_msg,omitempty"`
	Reason         string  `json:"reason,omitempty"`

	// Health fields (populated for health_change events).
	OldState string `json:"old_state,omitempty"`
	NewState string `json:"new_state,omitempty"`
}

// JSON returns the event as a JSON byte slice.
func (e *Event) JSON() []byte {
	b, _ := json.Marshal(e)
	return b
}

// Subscriber receives events on a channel.
type Subscriber struct {
	C    chan Event
	done chan struct{}
}

// Bus is an in-memory pub/sub event bus.
type Bus struct {
	mu          sync.RWMutex
	subscribers map[*Subscriber]struct{}
}

// NewBus creates a new event bus.
func NewBus() *Bus {
	return &Bus{
		subscribers: make(map[*Subscriber]struct{}),
	}
}

// Subscribe creates a new subscriber with a buffered channel.
func (b *Bus) Subscribe(bufSize int) *Subscriber {
	if bufSize <= 0 {
		bufSize = 64
	}
	s := &Subscriber{
		C:    make(chan Event, bufSize),
		done: make(chan struct{}),
	}
	b.mu.Lock()
	b.subscribers[s] = struct{}{}
	b.mu.Unlock()
	return s
}

// Unsubscribe removes a subscriber and closes its done channel; its event
// channel C is left open.
func (b *Bus) Unsubscribe(s *Subscriber) {
	b.mu.Lock()
	delete(b.subscribers, s)
	b.mu.Unlock()
	close(s.done)
}

// Publish sends an event to all subscribers (non-blocking).
func (b *Bus) Publish(e Event) {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	for s := range b.subscribers {
		select {
		case s.C <- e:
		default:
			// Drop event if subscriber is slow (back-pressure).
		}
	}
}

// SubscriberCount returns the number of active subscribers.
func (b *Bus) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}
