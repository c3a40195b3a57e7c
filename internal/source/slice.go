package source

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/roach88/limitidx/internal/order"
)

// Slice replays a fixed list of events.
// Events without an Origin are labelled "<name>:<index>" (1-based).
type Slice struct {
	name   string
	mu     sync.Mutex
	events []order.RawEvent
	next   int
	acked  []string
}

var _ Source = (*Slice)(nil)

// NewSlice returns a Source over events.
func NewSlice(name string, events ...order.RawEvent) *Slice {
	return &Slice{name: name, events: events}
}

// Next returns the next event or io.EOF.
func (s *Slice) Next(ctx context.Context) (Delivery, error) {
	if err := ctx.Err(); err != nil {
		return Delivery{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.next >= len(s.events) {
		return Delivery{}, io.EOF
	}
	ev := s.events[s.next]
	s.next++
	if ev.Origin == "" {
		ev.Origin = fmt.Sprintf("%s:%d", s.name, s.next)
	}

	origin := ev.Origin
	return NewDelivery(ev, nil, func(context.Context) error {
		s.mu.Lock()
		s.acked = append(s.acked, origin)
		s.mu.Unlock()
		return nil
	}), nil
}

// Acked returns the origins acknowledged so far, in ack order.
func (s *Slice) Acked() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.acked...)
}

// Close is a no-op.
func (s *Slice) Close() error {
	return nil
}
