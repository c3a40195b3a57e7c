package engine

import (
	"context"
	"log/slog"
	"math/big"
	"time"

	"github.com/roach88/limitidx/internal/order"
	"github.com/roach88/limitidx/internal/store"
)

// DefaultWorkers is the number of shard workers Run uses unless configured.
// One worker handles every event strictly in delivery order.
const DefaultWorkers = 1

// DefaultQueueDepth bounds each shard queue when Workers > 1.
const DefaultQueueDepth = 256

// Metrics receives per-event instrumentation.
// Implemented by metrics.Recorder; the zero engine uses a no-op.
type Metrics interface {
	ObserveEvent(result Result, elapsed time.Duration)
	SetInflightLocks(n int)
}

type nopMetrics struct{}

func (nopMetrics) ObserveEvent(Result, time.Duration) {}
func (nopMetrics) SetInflightLocks(int)               {}

// Engine merges update events into persisted records.
//
// Thread-safety model:
//   - Process(): safe from any goroutine; load-merge-save is serialized per
//     identity, distinct identities proceed in parallel
//   - Run(): may be called concurrently with Process and with other Runs
//
// INVARIANTS:
//   - A record's key is always order.Identity of its identity fields
//   - UpdatesCount equals the number of successful Process calls for the key
//   - Identity fields are copied from the first event and never change
type Engine struct {
	store      store.RecordStore
	locks      *keyedMutex
	logger     *slog.Logger
	metrics    Metrics
	workers    int
	queueDepth int
	runIDs     RunIDGenerator
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithMetrics sets the metrics sink.
func WithMetrics(m Metrics) Option {
	return func(e *Engine) {
		if m != nil {
			e.metrics = m
		}
	}
}

// WithWorkers sets the number of shard workers Run uses.
// Values below 1 are treated as 1.
func WithWorkers(n int) Option {
	return func(e *Engine) {
		if n < 1 {
			n = 1
		}
		e.workers = n
	}
}

// WithQueueDepth sets the per-shard queue bound used when Workers > 1.
func WithQueueDepth(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.queueDepth = n
		}
	}
}

// WithRunIDGenerator sets the run ID source. Default: UUIDv7Generator.
func WithRunIDGenerator(g RunIDGenerator) Option {
	return func(e *Engine) {
		if g != nil {
			e.runIDs = g
		}
	}
}

// New creates an Engine over s.
func New(s store.RecordStore, opts ...Option) *Engine {
	e := &Engine{
		store:      s,
		locks:      newKeyedMutex(),
		logger:     slog.Default(),
		metrics:    nopMetrics{},
		workers:    DefaultWorkers,
		queueDepth: DefaultQueueDepth,
		runIDs:     UUIDv7Generator{},
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// Workers returns the configured worker count.
func (e *Engine) Workers() int {
	return e.workers
}

// Outcome describes a successfully processed event.
type Outcome struct {
	// Key is the record's identity.
	Key string

	// Record is the record as saved.
	Record order.Record

	// Created is true when the event created the record.
	Created bool
}

// Result classifies the outcome as created or updated.
func (o Outcome) Result() Result {
	if o.Created {
		return ResultCreated
	}
	return ResultUpdated
}

// Process merges one event into its record.
//
// Malformed and encoding errors are returned before the store is touched.
// Load and Save errors are returned exactly as the store produced them, with
// Outcome.Key set; the stored record is then unchanged.
func (e *Engine) Process(ctx context.Context, ev order.Event) (Outcome, error) {
	start := time.Now()

	out, err := e.process(ctx, ev)
	if err != nil {
		e.metrics.ObserveEvent(Classify(err), time.Since(start))
		return out, err
	}

	e.metrics.ObserveEvent(out.Result(), time.Since(start))
	e.logger.Debug("event processed",
		"identity", out.Key,
		"origin", ev.Origin,
		"result", out.Result(),
		"updates_count", out.Record.UpdatesCount,
		"remaining", out.Record.RemainingAmount.String(),
	)
	return out, nil
}

// ProcessRaw parses raw and processes the resulting event.
func (e *Engine) ProcessRaw(ctx context.Context, raw order.RawEvent) (Outcome, error) {
	ev, err := raw.Parse()
	if err != nil {
		e.metrics.ObserveEvent(ResultMalformed, 0)
		return Outcome{}, err
	}
	return e.Process(ctx, ev)
}

func (e *Engine) process(ctx context.Context, ev order.Event) (Outcome, error) {
	if err := ev.Validate(); err != nil {
		return Outcome{}, err
	}

	key, canonical, err := order.Derive(ev.IdentityInput)
	if err != nil {
		return Outcome{}, err
	}

	unlock := e.locks.Lock(key)
	e.metrics.SetInflightLocks(e.locks.Len())
	defer func() {
		unlock()
		e.metrics.SetInflightLocks(e.locks.Len())
	}()

	rec, found, err := e.store.Load(ctx, key)
	if err != nil {
		return Outcome{Key: key}, err
	}
	if !found {
		rec = order.NewRecord(key, canonical)
	}

	rec.UpdatesCount++
	rec.RemainingAmount = new(big.Int).Set(ev.Remaining)

	if err := e.store.Save(ctx, key, rec); err != nil {
		return Outcome{Key: key}, err
	}

	return Outcome{Key: key, Record: rec, Created: !found}, nil
}
