package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/limitidx/internal/engine"
)

func TestRecorder_CountsByOutcome(t *testing.T) {
	r := NewRecorder()

	r.ObserveEvent(engine.ResultCreated, 2*time.Millisecond)
	r.ObserveEvent(engine.ResultUpdated, time.Millisecond)
	r.ObserveEvent(engine.ResultUpdated, time.Millisecond)
	r.ObserveEvent(engine.ResultMalformed, 0)

	assert.Equal(t, 1.0, testutil.ToFloat64(r.events.WithLabelValues("created")))
	assert.Equal(t, 2.0, testutil.ToFloat64(r.events.WithLabelValues("updated")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.events.WithLabelValues("malformed")))
	assert.Equal(t, 0.0, testutil.ToFloat64(r.events.WithLabelValues("store_error")))

	assert.Equal(t, 1, testutil.CollectAndCount(r.latency))

	expected := `
# HELP limitidx_events_total Events handled, by result.
# TYPE limitidx_events_total counter
limitidx_events_total{outcome="created"} 1
limitidx_events_total{outcome="encoding"} 0
limitidx_events_total{outcome="malformed"} 1
limitidx_events_total{outcome="store_error"} 0
limitidx_events_total{outcome="updated"} 2
`
	require.NoError(t, testutil.CollectAndCompare(r.events, strings.NewReader(expected)))
}

func TestRecorder_LatencySkipsUnprocessedEvents(t *testing.T) {
	r := NewRecorder()
	r.ObserveEvent(engine.ResultCreated, time.Millisecond)
	r.ObserveEvent(engine.ResultMalformed, 0)

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	assert.Contains(t, rec.Body.String(), "limitidx_process_seconds_count 1")
}

func TestRecorder_SeriesExistBeforeFirstEvent(t *testing.T) {
	r := NewRecorder()
	assert.Equal(t, 5, testutil.CollectAndCount(r.events))
}

func TestRecorder_InflightLocks(t *testing.T) {
	r := NewRecorder()
	r.SetInflightLocks(3)
	assert.Equal(t, 3.0, testutil.ToFloat64(r.locks))
}

func TestRecorder_Handler(t *testing.T) {
	r := NewRecorder()
	r.ObserveEvent(engine.ResultEncoding, 0)

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `limitidx_events_total{outcome="encoding"} 1`)
	assert.Contains(t, string(body), "limitidx_inflight_locks")
}
