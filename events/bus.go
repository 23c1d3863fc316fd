// Package events is the in-process domain event bus that hands payment
// outcomes to accounting sync, invoice status and notification consumers.
package events

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/Govind-619/PayRoute/utils"
)

const (
	PaymentInitiated      = "payment.initiated"
	PaymentCompleted      = "payment.completed"
	PaymentFailed         = "payment.failed"
	PaymentCancelled      = "payment.cancelled"
	PaymentExpired        = "payment.expired"
	RefundCompleted       = "refund.completed"
	RefundFailed          = "refund.failed"
	UpiTransactionStatus  = "upi.transaction.status"
	UpiTransactionExpired = "upi.transaction.expired"
)

// ProviderEvent names a webhook-level event, e.g. "stripe.payment.success".
func ProviderEvent(provider, suffix string) string {
	return provider + "." + suffix
}

// Event is one domain fact.
type Event struct {
	Name       string                 `json:"name"`
	OccurredAt time.Time              `json:"occurred_at"`
	Payload    map[string]interface{} `json:"payload"`
}

// Handler consumes events. A returned error is logged; it never reaches the
// publisher.
type Handler func(ctx context.Context, evt Event) error

// Bus publishes domain events to subscribers.
type Bus interface {
	Publish(ctx context.Context, name string, payload map[string]interface{})
	Subscribe(name string, h Handler)
}

// InMemoryBus dispatches synchronously, in subscription order.
type InMemoryBus struct {
	mu       sync.RWMutex
	handlers map[string][]Handler
	now      func() time.Time
}

func NewInMemoryBus() *InMemoryBus {
	return &InMemoryBus{
		handlers: make(map[string][]Handler),
		now:      time.Now,
	}
}

// Subscribe registers h for name. "*" receives every event.
func (b *InMemoryBus) Subscribe(name string, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[name] = append(b.handlers[name], h)
}

func (b *InMemoryBus) Publish(ctx context.Context, name string, payload map[string]interface{}) {
	evt := Event{Name: name, OccurredAt: b.now(), Payload: payload}

	b.mu.RLock()
	hs := make([]Handler, 0, len(b.handlers[name])+len(b.handlers["*"]))
	hs = append(hs, b.handlers[name]...)
	hs = append(hs, b.handlers["*"]...)
	b.mu.RUnlock()

	utils.LogInfo("Publishing event %s to %d subscriber(s)", name, len(hs))
	for _, h := range hs {
		b.dispatch(ctx, h, evt)
	}
}

func (b *InMemoryBus) dispatch(ctx context.Context, h Handler, evt Event) {
	defer func() {
		if r := recover(); r != nil {
			utils.LogErrorWithStack(fmt.Errorf("event handler for %s panicked: %v", evt.Name, r), debug.Stack())
		}
	}()
	if err := h(ctx, evt); err != nil {
		utils.LogError("Event handler for %s failed: %v", evt.Name, err)
	}
}
