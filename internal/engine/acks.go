package engine

import (
	"context"
	"sync"

	"github.com/roach88/limitidx/internal/source"
)

// settled is a delivery whose outcome allows acknowledgement.
type settled struct {
	delivery source.Delivery
	key      string
}

// ackSequencer acknowledges sharded deliveries in delivery order.
//
// Sources such as Kafka commit a position, so acknowledging a later delivery
// implicitly acknowledges every earlier one. Shards finish out of order; the
// sequencer holds completed deliveries until every earlier sequence number has
// completed and only then acknowledges the contiguous prefix. A delivery that
// never completes (store failure, cancellation) blocks every later ack, which
// leaves it and everything after it for the upstream to redeliver.
type ackSequencer struct {
	mu      sync.Mutex
	next    uint64
	pending map[uint64]settled
	halted  bool
}

func newAckSequencer() *ackSequencer {
	return &ackSequencer{pending: make(map[uint64]settled)}
}

// complete marks seq done and acknowledges the ready prefix. On an ack
// failure it returns the delivery that failed and halts the sequencer.
func (s *ackSequencer) complete(ctx context.Context, seq uint64, done settled) (settled, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.halted {
		return settled{}, nil
	}

	s.pending[seq] = done
	for {
		head, ok := s.pending[s.next]
		if !ok {
			return settled{}, nil
		}
		delete(s.pending, s.next)
		if err := head.delivery.Ack(ctx); err != nil {
			s.halted = true
			return head, err
		}
		s.next++
	}
}

// held reports how many completed deliveries wait for an earlier one.
func (s *ackSequencer) held() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}
