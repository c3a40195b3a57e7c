// Package metrics exposes engine instrumentation to Prometheus.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/roach88/limitidx/internal/engine"
)

const namespace = "limitidx"

// Recorder implements engine.Metrics on its own registry.
type Recorder struct {
	registry *prometheus.Registry
	events   *prometheus.CounterVec
	latency  prometheus.Histogram
	locks    prometheus.Gauge
}

var _ engine.Metrics = (*Recorder)(nil)

// NewRecorder creates a Recorder with Go runtime and process collectors.
func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_total",
			Help:      "Events handled, by result.",
		}, []string{"outcome"}),
		latency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "process_seconds",
			Help:      "Time spent merging one event, including store access.",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 10),
		}),
		locks: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "inflight_locks",
			Help:      "Identities currently locked or awaited.",
		}),
	}

	r.registry.MustRegister(
		r.events,
		r.latency,
		r.locks,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	// Pre-create every series so dashboards see zeros before the first event.
	for _, res := range []engine.Result{
		engine.ResultCreated,
		engine.ResultUpdated,
		engine.ResultMalformed,
		engine.ResultEncoding,
		engine.ResultStoreError,
	} {
		r.events.WithLabelValues(string(res))
	}

	return r
}

// ObserveEvent counts one event; elapsed is recorded for events that reached
// the engine (elapsed > 0).
func (r *Recorder) ObserveEvent(result engine.Result, elapsed time.Duration) {
	r.events.WithLabelValues(string(result)).Inc()
	if elapsed > 0 {
		r.latency.Observe(elapsed.Seconds())
	}
}

// SetInflightLocks records the current lock table size.
func (r *Recorder) SetInflightLocks(n int) {
	r.locks.Set(float64(n))
}

// Registry returns the registry backing the recorder.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr until ctx is cancelled.
func (r *Recorder) Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", r.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}
