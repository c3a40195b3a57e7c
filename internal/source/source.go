// Package source adapts upstream event streams into a pull-based Source the
// engine consumes one Delivery at a time.
//
// Adapters:
//   - JSONL: newline-delimited JSON from a file or stdin
//   - Kafka: a consumer-group reader; Ack commits the message offset
//   - Logs: LimitOrderUpdated logs from an Ethereum node subscription
//   - Slice: an in-memory list, for tests and scenarios
package source

import (
	"context"

	"github.com/roach88/limitidx/internal/order"
)

// Source yields deliveries in upstream order.
//
// Next blocks until a delivery is available, the context is cancelled or the
// stream ends. It returns io.EOF once a finite stream is exhausted.
type Source interface {
	Next(ctx context.Context) (Delivery, error)
	Close() error
}

// Delivery is one event handed to the engine.
//
// Err is set when the payload could not be decoded; Event then carries only
// its Origin. A delivery must be acknowledged once the engine is done with it
// so the upstream does not redeliver.
type Delivery struct {
	Event order.RawEvent
	Err   error

	ack func(ctx context.Context) error
}

// NewDelivery builds a delivery; ack may be nil.
func NewDelivery(ev order.RawEvent, err error, ack func(ctx context.Context) error) Delivery {
	return Delivery{Event: ev, Err: err, ack: ack}
}

// Origin reports where the event came from.
func (d Delivery) Origin() string {
	return d.Event.Origin
}

// Ack acknowledges the delivery upstream.
func (d Delivery) Ack(ctx context.Context) error {
	if d.ack == nil {
		return nil
	}
	return d.ack(ctx)
}
