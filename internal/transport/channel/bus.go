// Package channel provides the in-memory event bus carrying notification
// events from the alert watchers to the notifier.
package channel

import (
	"context"

	"github.com/finbeat/finbeat/internal/domain"
)

// MetricsSink records bus buffer metrics. Non-blocking, fire-and-forget.
type MetricsSink interface {
	BufferSizeUpdate(size int)
	BufferCapacitySet(capacity int)
	BufferSaturationUpdate(saturation float64)
	EmitError()
}

type Option func(*EventBus)

// WithMetrics attaches a metrics sink to the bus.
func WithMetrics(sink MetricsSink) Option {
	return func(b *EventBus) {
		b.metrics = sink
	}
}

type EventBus struct {
	ch      chan domain.NotificationEvent
	metrics MetricsSink // optional, nil = disabled
}

func NewEventBus(buffer int, opts ...Option) *EventBus {
	b := &EventBus{
		ch: make(chan domain.NotificationEvent, buffer),
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.metrics != nil {
		b.metrics.BufferCapacitySet(buffer)
	}
	return b
}

// Emit enqueues an event, blocking while the buffer is full until ctx is
// cancelled.
func (b *EventBus) Emit(ctx context.Context, event domain.NotificationEvent) error {
	select {
	case b.ch <- event:
		b.updateMetrics()
		return nil
	case <-ctx.Done():
		if b.metrics != nil {
			b.metrics.EmitError()
		}
		return ctx.Err()
	}
}

func (b *EventBus) Channel() <-chan domain.NotificationEvent {
	return b.ch
}

func (b *EventBus) updateMetrics() {
	if b.metrics == nil {
		return
	}
	size := len(b.ch)
	capacity := cap(b.ch)
	b.metrics.BufferSizeUpdate(size)
	if capacity > 0 {
		b.metrics.BufferSaturationUpdate(float64(size) / float64(capacity))
	}
}
