package harness

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/roach88/limitidx/internal/engine"
	"github.com/roach88/limitidx/internal/logging"
	"github.com/roach88/limitidx/internal/order"
	"github.com/roach88/limitidx/internal/source"
	"github.com/roach88/limitidx/internal/store"
	"github.com/roach88/limitidx/internal/testutil"
)

// Option configures a scenario run.
type Option func(*options)

type options struct {
	logger *slog.Logger
}

// WithLogger sends engine logs to l instead of discarding them.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// stepRecorder captures the per-event results the engine reports.
// Runs are sequential, so results arrive in event order.
type stepRecorder struct {
	mu      sync.Mutex
	results []engine.Result
}

func (r *stepRecorder) ObserveEvent(result engine.Result, _ time.Duration) {
	r.mu.Lock()
	r.results = append(r.results, result)
	r.mu.Unlock()
}

func (r *stepRecorder) SetInflightLocks(int) {}

// Run executes a scenario against a fresh in-memory store and returns the
// result. A non-nil error means the run itself failed; expectation failures
// are reported through Result.Errors.
func Run(ctx context.Context, scenario *Scenario, opts ...Option) (*Result, error) {
	o := options{logger: logging.Discard()}
	for _, opt := range opts {
		opt(&o)
	}

	st := store.NewMemory()
	steps := &stepRecorder{}
	eng := engine.New(st,
		engine.WithLogger(o.logger),
		engine.WithMetrics(steps),
		engine.WithRunIDGenerator(testutil.NewFixedRunIDGenerator(scenario.RunID)),
	)

	raws := make([]order.RawEvent, len(scenario.Events))
	for i, ev := range scenario.Events {
		raws[i] = ev.RawEvent
	}
	src := source.NewSlice(scenario.Name, raws...)

	sum, err := eng.Run(ctx, src)
	if err != nil {
		return nil, fmt.Errorf("scenario %s: %w", scenario.Name, err)
	}
	if len(steps.results) != len(scenario.Events) {
		return nil, fmt.Errorf("scenario %s: engine reported %d results for %d events",
			scenario.Name, len(steps.results), len(scenario.Events))
	}

	result := NewResult()
	result.RunID = sum.RunID
	result.Counts = countsOf(sum)

	for i, ev := range scenario.Events {
		step := Step{
			Index:  i,
			Origin: fmt.Sprintf("%s:%d", scenario.Name, i+1),
			Result: string(steps.results[i]),
			ID:     identityOf(ev.RawEvent),
		}
		result.Steps = append(result.Steps, step)

		if err := checkStep(ev, step); err != nil {
			result.AddError(err.Error())
		}
	}

	records, err := st.List(ctx, 0)
	if err != nil {
		return nil, fmt.Errorf("scenario %s: list records: %w", scenario.Name, err)
	}
	result.Records = records

	for _, msg := range EvaluateExpectations(result, scenario.Expect) {
		result.AddError(msg)
	}

	o.logger.Debug("scenario finished",
		"scenario", scenario.Name,
		"pass", result.Pass,
		"records", len(result.Records),
	)
	return result, nil
}

// identityOf returns the identity raw names, or "" if it names none.
func identityOf(raw order.RawEvent) string {
	ev, err := raw.Parse()
	if err != nil {
		return ""
	}
	id, err := order.Identity(ev.IdentityInput)
	if err != nil {
		return ""
	}
	return id
}
