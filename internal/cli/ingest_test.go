package cli

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/limitidx/internal/config"
	"github.com/roach88/limitidx/internal/engine"
	"github.com/roach88/limitidx/internal/source"
	"github.com/roach88/limitidx/internal/store"
	"github.com/roach88/limitidx/internal/testutil"
)

type summaryResponse struct {
	Status string         `json:"status"`
	RunID  string         `json:"run_id"`
	Data   engine.Summary `json:"data"`
	Error  *CLIError      `json:"error"`
}

func TestIngest_StdinIntoMemory(t *testing.T) {
	mem := memoryBackend{store.NewMemory()}
	opts := testOptions("json")
	opts.Stores = fixedStore(mem)
	opts.Stdin = strings.NewReader(eventLines(t, 100, 50) + "not json\n")

	out, _, err := execute(t, NewIngestCommand(opts))
	require.NoError(t, err)

	var resp summaryResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "run-test", resp.RunID)
	assert.Equal(t, 3, resp.Data.Events)
	assert.Equal(t, 1, resp.Data.Created)
	assert.Equal(t, 1, resp.Data.Updated)
	assert.Equal(t, 1, resp.Data.Malformed)

	rec, found, err := mem.Load(context.Background(), testutil.SampleID)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, uint64(2), rec.UpdatesCount)
	assert.Equal(t, "50", rec.RemainingAmount.String())
}

func TestIngest_FileSourceTextSummary(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.jsonl")
	require.NoError(t, os.WriteFile(path, []byte(eventLines(t, 9, 8, 7)), 0644))

	opts := testOptions("text")
	opts.Stores = fixedStore(memoryBackend{store.NewMemory()})

	out, _, err := execute(t, NewIngestCommand(opts), "--file", path, "--workers", "2")
	require.NoError(t, err)
	assert.Contains(t, out, "Run run-test")
	assert.Contains(t, out, "events:    3")
	assert.Contains(t, out, "created:   1")
	assert.Contains(t, out, "updated:   2")
	assert.Equal(t, 2, opts.cfg.Engine.Workers)
}

func TestIngest_StoreFailureExitsOne(t *testing.T) {
	failing := testutil.NewFailingStore()
	failing.FailSave(0)

	opts := testOptions("json")
	opts.Stores = fixedStore(failingBackend{failing})
	opts.Stdin = strings.NewReader(eventLines(t, 100))

	out, _, err := execute(t, NewIngestCommand(opts))
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.True(t, engine.IsStoreError(err))

	var resp summaryResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, CodeStore, resp.Error.Code)
}

func TestIngest_StoreOpenFailureExitsTwo(t *testing.T) {
	opts := testOptions("text")
	opts.Stores = func(context.Context, config.StoreConfig) (Backend, error) {
		return nil, &store.UnavailableError{Backend: "test", Op: "open", Err: testutil.ErrInjected}
	}
	opts.Stdin = strings.NewReader("")

	out, _, err := execute(t, NewIngestCommand(opts))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "Error [E_STORE]: failed to open store")
}

func TestIngest_InvalidConfigExitsTwo(t *testing.T) {
	opts := testOptions("text")
	opts.Stores = fixedStore(memoryBackend{store.NewMemory()})

	_, _, err := execute(t, NewIngestCommand(opts), "--source", "carrier-pigeon")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "source.kind")
}

func TestIngest_KafkaWithWorkersWarns(t *testing.T) {
	opts := testOptions("text")
	opts.Stores = fixedStore(memoryBackend{store.NewMemory()})
	opts.Sources = func(_ context.Context, cfg config.SourceConfig, _ io.Reader, _ *slog.Logger) (source.Source, error) {
		assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
		assert.Equal(t, "limit-orders", cfg.Kafka.Topic)
		return source.NewSlice("kafka", testutil.SampleRaw(1)), nil
	}

	_, logs, err := execute(t, NewIngestCommand(opts),
		"--source", "kafka",
		"--kafka-brokers", "k1:9092,k2:9092",
		"--kafka-topic", "limit-orders",
		"--workers", "4",
	)
	require.NoError(t, err)
	assert.Contains(t, logs, "already applied are redelivered")
}

func TestIngest_ServesMetrics(t *testing.T) {
	opts := testOptions("json")
	opts.Stores = fixedStore(memoryBackend{store.NewMemory()})
	opts.Stdin = strings.NewReader(eventLines(t, 1))

	_, _, err := execute(t, NewIngestCommand(opts), "--metrics-addr", "127.0.0.1:0")
	require.NoError(t, err)
}

func TestIngest_VerboseLogsDebug(t *testing.T) {
	opts := testOptions("json")
	opts.Verbose = true
	opts.Stores = fixedStore(memoryBackend{store.NewMemory()})
	opts.Stdin = strings.NewReader(eventLines(t, 1))

	_, logs, err := execute(t, NewIngestCommand(opts))
	require.NoError(t, err)
	assert.Contains(t, logs, "event processed")
	assert.Contains(t, logs, testutil.SampleID)
}
