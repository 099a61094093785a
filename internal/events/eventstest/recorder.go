// Package eventstest provides an in-memory events.Publisher for tests
package eventstest

import (
	"context"
	"sync"

	"storyhub/internal/events"
)

// Recorder keeps published events in memory. When Err is set, Publish still records
// the event and then returns Err.
type Recorder struct {
	Err error

	mu     sync.Mutex
	events []events.Event
}

func (r *Recorder) Publish(_ context.Context, e events.Event) error {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
	return r.Err
}

// Events returns a copy of the recorded events in order
func (r *Recorder) Events() []events.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]events.Event(nil), r.events...)
}

// Types returns the recorded event types in order
func (r *Recorder) Types() []string {
	recorded := r.Events()
	out := make([]string, len(recorded))
	for i, e := range recorded {
		out[i] = e.Type
	}
	return out
}
