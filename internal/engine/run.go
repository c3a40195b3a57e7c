package engine

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/roach88/limitidx/internal/order"
	"github.com/roach88/limitidx/internal/source"
)

// Summary counts what a Run did.
type Summary struct {
	RunID     string        `json:"run_id"`
	Events    int           `json:"events"`
	Created   int           `json:"created"`
	Updated   int           `json:"updated"`
	Malformed int           `json:"malformed"`
	Encoding  int           `json:"encoding"`
	Duration  time.Duration `json:"duration_ns"`
}

// Skipped returns the number of events acknowledged without a store write.
func (s Summary) Skipped() int {
	return s.Malformed + s.Encoding
}

type tally struct {
	mu     sync.Mutex
	counts map[Result]int
}

func (t *tally) add(r Result) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.counts == nil {
		t.counts = make(map[Result]int)
	}
	t.counts[r]++
}

func (t *tally) summary(runID string, d time.Duration) Summary {
	t.mu.Lock()
	defer t.mu.Unlock()
	s := Summary{
		RunID:     runID,
		Created:   t.counts[ResultCreated],
		Updated:   t.counts[ResultUpdated],
		Malformed: t.counts[ResultMalformed],
		Encoding:  t.counts[ResultEncoding],
		Duration:  d,
	}
	s.Events = s.Created + s.Updated + s.Malformed + s.Encoding + t.counts[ResultStoreError]
	return s
}

// run carries per-Run state.
type run struct {
	e      *Engine
	id     string
	logger *slog.Logger
	tally  tally
}

// Run consumes src until it is exhausted (io.EOF), ctx is cancelled or a
// store, source or acknowledgement failure occurs.
//
// ERROR HANDLING:
//   - Malformed and encoding errors are logged, acknowledged and skipped;
//     redelivering such an event cannot succeed
//   - A store error stops the run with a *RunError and the event is NOT
//     acknowledged, so the upstream redelivers it
//   - Cancellation returns ctx.Err(); the in-flight event is not acknowledged
//
// With one worker, events are handled in delivery order. With N workers,
// events are routed to shard (identity mod N) so each identity keeps its
// delivery order. Acknowledgements still go out in delivery order: a delivery
// is acknowledged only after it and every earlier delivery completed, so a
// store failure in one shard is never covered by a later ack from another.
func (e *Engine) Run(ctx context.Context, src source.Source) (Summary, error) {
	start := time.Now()
	r := &run{e: e, id: e.runIDs.Generate()}
	r.logger = e.logger.With("run_id", r.id)

	r.logger.Info("run starting", "workers", e.workers)

	var err error
	if e.workers <= 1 {
		err = r.sequential(ctx, src)
	} else {
		err = r.sharded(ctx, src)
	}

	sum := r.tally.summary(r.id, time.Since(start))
	attrs := []any{
		"events", sum.Events,
		"created", sum.Created,
		"updated", sum.Updated,
		"skipped", sum.Skipped(),
		"duration", sum.Duration,
	}
	switch {
	case err == nil:
		r.logger.Info("run finished", attrs...)
	case errors.Is(err, context.Canceled):
		r.logger.Info("run stopping: context cancelled", attrs...)
	default:
		r.logger.Error("run stopped", append(attrs, "error", err)...)
	}
	return sum, err
}

func (r *run) sequential(ctx context.Context, src source.Source) error {
	for {
		d, err := r.next(ctx, src)
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}

		ev, err := prepare(d)
		if err != nil {
			r.e.metrics.ObserveEvent(ResultMalformed, 0)
			if err := r.settle(ctx, d, Outcome{}, err); err != nil {
				return err
			}
			continue
		}

		out, err := r.e.Process(ctx, ev)
		if err := r.settle(ctx, d, out, err); err != nil {
			return err
		}
	}
}

func (r *run) sharded(ctx context.Context, src source.Source) error {
	g, gctx := errgroup.WithContext(ctx)
	acks := newAckSequencer()

	queues := make([]*shardQueue, r.e.workers)
	for i := range queues {
		q := newShardQueue(r.e.queueDepth)
		queues[i] = q
		g.Go(func() error {
			return r.drain(gctx, q, acks)
		})
	}

	g.Go(func() error {
		defer func() {
			for _, q := range queues {
				q.Close()
			}
		}()

		for seq := uint64(0); ; seq++ {
			d, err := r.next(gctx, src)
			if errors.Is(err, io.EOF) {
				return nil
			}
			if err != nil {
				return err
			}

			ev, err := prepare(d)
			if err != nil {
				r.e.metrics.ObserveEvent(ResultMalformed, 0)
				if err := r.settleInOrder(gctx, acks, seq, d, Outcome{}, err); err != nil {
					return err
				}
				continue
			}

			key, err := order.Identity(ev.IdentityInput)
			if err != nil {
				r.e.metrics.ObserveEvent(ResultEncoding, 0)
				if err := r.settleInOrder(gctx, acks, seq, d, Outcome{}, err); err != nil {
					return err
				}
				continue
			}

			q := queues[shardOf(key, len(queues))]
			if err := q.Enqueue(gctx, job{delivery: d, event: ev, key: key, seq: seq}); err != nil {
				return err
			}
		}
	})

	err := g.Wait()
	if held := acks.held(); held > 0 {
		r.logger.Warn("deliveries left unacknowledged behind an earlier failure", "count", held)
	}
	if err != nil && ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

// drain processes one shard until it is closed and empty.
func (r *run) drain(ctx context.Context, q *shardQueue, acks *ackSequencer) error {
	for {
		if j, ok := q.TryDequeue(); ok {
			out, err := r.e.Process(ctx, j.event)
			if err := r.settleInOrder(ctx, acks, j.seq, j.delivery, out, err); err != nil {
				return err
			}
			continue
		}

		if q.Drained() {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-q.Wait():
		}
	}
}

func (r *run) next(ctx context.Context, src source.Source) (source.Delivery, error) {
	d, err := src.Next(ctx)
	if err == nil || errors.Is(err, io.EOF) {
		return d, err
	}
	if ctx.Err() != nil {
		return d, ctx.Err()
	}
	return d, &RunError{Code: ErrCodeSource, RunID: r.id, Err: err}
}

// settle records the result of one delivery and acknowledges it unless the
// run must stop.
func (r *run) settle(ctx context.Context, d source.Delivery, out Outcome, err error) error {
	if err := r.record(ctx, d, out, err); err != nil {
		return err
	}
	if err := d.Ack(ctx); err != nil {
		return &RunError{Code: ErrCodeAck, RunID: r.id, Origin: d.Origin(), Key: out.Key, Err: err}
	}
	return nil
}

// settleInOrder is settle for sharded runs: the acknowledgement waits until
// every earlier delivery has completed.
func (r *run) settleInOrder(ctx context.Context, acks *ackSequencer, seq uint64, d source.Delivery, out Outcome, err error) error {
	if err := r.record(ctx, d, out, err); err != nil {
		return err
	}
	failed, err := acks.complete(ctx, seq, settled{delivery: d, key: out.Key})
	if err != nil {
		return &RunError{Code: ErrCodeAck, RunID: r.id, Origin: failed.delivery.Origin(), Key: failed.key, Err: err}
	}
	return nil
}

// record tallies one delivery and returns the error that stops the run, if any.
func (r *run) record(ctx context.Context, d source.Delivery, out Outcome, err error) error {
	switch {
	case err == nil:
		r.tally.add(out.Result())

	case skippable(err):
		r.tally.add(Classify(err))
		logEventError(r.logger, slog.LevelWarn, d, out.Key, err)

	case ctx.Err() != nil:
		return ctx.Err()

	default:
		r.tally.add(ResultStoreError)
		logEventError(r.logger, slog.LevelError, d, out.Key, err)
		return &RunError{Code: ErrCodeStore, RunID: r.id, Origin: d.Origin(), Key: out.Key, Err: err}
	}
	return nil
}

// prepare turns a delivery into an event.
func prepare(d source.Delivery) (order.Event, error) {
	if d.Err != nil {
		return order.Event{}, d.Err
	}
	return d.Event.Parse()
}

// shardOf maps an identity to a shard using its low 64 bits.
func shardOf(key string, n int) int {
	if n <= 1 || len(key) < 16 {
		return 0
	}
	v, err := strconv.ParseUint(key[len(key)-16:], 16, 64)
	if err != nil {
		return 0
	}
	return int(v % uint64(n))
}

// logEventError logs a failed event with enough context to replay it from the
// upstream: the identity when derivable, else the raw fields.
func logEventError(logger *slog.Logger, level slog.Level, d source.Delivery, key string, err error) {
	attrs := []any{
		"error", err,
		"origin", d.Origin(),
		"result", Classify(err),
	}
	if key != "" {
		attrs = append(attrs, "identity", key)
	} else {
		attrs = append(attrs, "event", d.Event.Fields())
	}
	logger.Log(context.Background(), level, "event processing failed", attrs...)
}
