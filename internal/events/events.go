// Package events publishes domain events after a transaction has committed.
//
// Publishing is best-effort: a failed publish is logged by the caller and
// never rolls back the operation that produced the event.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"
)

// Type names a domain event.
type Type string

const (
	OrderPlaced        Type = "order.placed"
	OrderStatusChanged Type = "order.status_changed"
	ReturnRequested    Type = "return.requested"
	ReturnProcessed    Type = "return.processed"
	CartsAbandoned     Type = "carts.abandoned"
)

// Event is the envelope written to the bus.
type Event struct {
	Type       Type            `json:"type"`
	Key        string          `json:"key"`
	OccurredAt time.Time       `json:"occurred_at"`
	Payload    json.RawMessage `json:"payload"`
}

// New builds an event, marshalling payload to JSON. A payload that cannot be
// marshalled is replaced by an error object rather than dropping the event.
func New(t Type, key string, at time.Time, payload any) Event {
	raw, err := json.Marshal(payload)
	if err != nil {
		raw, _ = json.Marshal(map[string]string{"marshal_error": err.Error()})
	}
	return Event{Type: t, Key: key, OccurredAt: at.UTC(), Payload: raw}
}

// Publisher delivers events.
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
}

// Nop drops every event.
type Nop struct{}

// Publish implements Publisher.
func (Nop) Publish(context.Context, Event) error { return nil }

// Recorder keeps events in memory. Used by tests and the scenario harness.
//
// Thread-safety: Recorder is safe for concurrent use via internal mutex.
type Recorder struct {
	mu     sync.Mutex
	events []Event
	Err    error // returned from every Publish when set
}

// Publish implements Publisher.
func (r *Recorder) Publish(_ context.Context, ev Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return r.Err
	}
	r.events = append(r.events, ev)
	return nil
}

// Events returns a copy of everything published so far.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// OfType returns recorded events of a single type.
func (r *Recorder) OfType(t Type) []Event {
	var out []Event
	for _, ev := range r.Events() {
		if ev.Type == t {
			out = append(out, ev)
		}
	}
	return out
}

// Decode unmarshals an event payload into v.
func Decode(ev Event, v any) error {
	if err := json.Unmarshal(ev.Payload, v); err != nil {
		return fmt.Errorf("decode %s payload: %w", ev.Type, err)
	}
	return nil
}
