package engine

import (
	"context"
	"errors"
	"sync"

	"github.com/roach88/limitidx/internal/order"
	"github.com/roach88/limitidx/internal/source"
)

var errQueueClosed = errors.New("queue closed")

// job is one parsed delivery routed to a shard.
type job struct {
	delivery source.Delivery
	event    order.Event
	key      string
	seq      uint64
}

// shardQueue is a bounded FIFO feeding one worker.
//
// The dispatcher is the only producer and the shard worker the only consumer.
// Enqueue blocks while the queue is full so a slow shard applies backpressure
// to the source instead of buffering the whole stream.
//
// Two coalescing signal channels (buffer 1) support context-aware waiting on
// both sides.
type shardQueue struct {
	mu     sync.Mutex
	jobs   []job
	limit  int
	closed bool
	ready  chan struct{} // job available or queue closed
	space  chan struct{} // slot freed
}

// newShardQueue creates an empty queue holding at most limit jobs.
func newShardQueue(limit int) *shardQueue {
	if limit <= 0 {
		limit = 1
	}
	return &shardQueue{
		jobs:  make([]job, 0, limit),
		limit: limit,
		ready: make(chan struct{}, 1),
		space: make(chan struct{}, 1),
	}
}

// Enqueue appends j, waiting for space if the queue is full.
func (q *shardQueue) Enqueue(ctx context.Context, j job) error {
	for {
		q.mu.Lock()
		if q.closed {
			q.mu.Unlock()
			return errQueueClosed
		}
		if len(q.jobs) < q.limit {
			q.jobs = append(q.jobs, j)
			q.mu.Unlock()
			notify(q.ready)
			return nil
		}
		q.mu.Unlock()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-q.space:
		}
	}
}

// TryDequeue removes the front job without blocking.
func (q *shardQueue) TryDequeue() (job, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.jobs) == 0 {
		return job{}, false
	}

	j := q.jobs[0]
	// Clear the slot so the delivery can be collected.
	q.jobs[0] = job{}
	if len(q.jobs) == 1 {
		q.jobs = q.jobs[:0]
	} else {
		q.jobs = q.jobs[1:]
	}

	notify(q.space)
	return j, true
}

// Wait returns a channel that fires when jobs may be available.
// It is closed once the queue is closed.
func (q *shardQueue) Wait() <-chan struct{} {
	return q.ready
}

// Drained reports whether the queue is closed and empty.
func (q *shardQueue) Drained() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed && len(q.jobs) == 0
}

// Len returns the current queue length.
func (q *shardQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.jobs)
}

// Close signals that no more jobs will be enqueued.
func (q *shardQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}
	q.closed = true
	close(q.ready)
}

func notify(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}
