package events

import (
	"context"
	"sync"
	"time"
)

// Recorder is a Bus that keeps every published event; tests use it to count
// emissions.
type Recorder struct {
	mu     sync.Mutex
	events []Event
	inner  *InMemoryBus
}

func NewRecorder() *Recorder {
	return &Recorder{inner: NewInMemoryBus()}
}

func (r *Recorder) Publish(ctx context.Context, name string, payload map[string]interface{}) {
	r.mu.Lock()
	r.events = append(r.events, Event{Name: name, OccurredAt: time.Now(), Payload: payload})
	r.mu.Unlock()
	r.inner.Publish(ctx, name, payload)
}

func (r *Recorder) Subscribe(name string, h Handler) {
	r.inner.Subscribe(name, h)
}

// Named returns the recorded events called name.
func (r *Recorder) Named(name string) []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Event
	for _, e := range r.events {
		if e.Name == name {
			out = append(out, e)
		}
	}
	return out
}

// Count returns how many events called name were published.
func (r *Recorder) Count(name string) int {
	return len(r.Named(name))
}
