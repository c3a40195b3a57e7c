package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWithWriter_JSON(t *testing.T) {
	var buf bytes.Buffer
	cfg := DefaultConfig()

	logger, closeFn, err := NewWithWriter(cfg, &buf)
	require.NoError(t, err)

	logger.Debug("hidden")
	logger.Info("event processed", "identity", "0xabc", "updates_count", 2)
	require.NoError(t, closeFn())

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1, "debug is below the default level")

	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, "event processed", entry["msg"])
	assert.Equal(t, "info", entry["level"])
	assert.Equal(t, "0xabc", entry["identity"])
	assert.Equal(t, float64(2), entry["updates_count"])
}

func TestNewWithWriter_ConsoleAndLevel(t *testing.T) {
	var buf bytes.Buffer
	cfg := DefaultConfig()
	cfg.Format = "console"
	cfg.Level = "debug"

	logger, _, err := NewWithWriter(cfg, &buf)
	require.NoError(t, err)

	logger.Debug("lock acquired", "identity", "0x01")
	assert.Contains(t, buf.String(), "DEBUG")
	assert.Contains(t, buf.String(), "lock acquired")
}

func TestNewWithWriter_FileSink(t *testing.T) {
	var buf bytes.Buffer
	cfg := DefaultConfig()
	cfg.File = filepath.Join(t.TempDir(), "limitidx.log")

	logger, closeFn, err := NewWithWriter(cfg, &buf)
	require.NoError(t, err)

	logger.Warn("skipping removed log", "tx", "0xdead")
	require.NoError(t, closeFn())

	data, err := os.ReadFile(cfg.File)
	require.NoError(t, err)
	assert.Contains(t, string(data), "skipping removed log")
	assert.Contains(t, buf.String(), "skipping removed log")
}

func TestValidate(t *testing.T) {
	cfg := DefaultConfig()
	assert.NoError(t, cfg.Validate())

	cfg.Level = "loud"
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.Format = "xml"
	assert.Error(t, cfg.Validate())

	_, _, err := NewWithWriter(cfg, &bytes.Buffer{})
	assert.Error(t, err)
}

func TestDiscard(t *testing.T) {
	logger := Discard()
	logger.Error("nothing happens")
	assert.False(t, logger.Enabled(context.Background(), slog.LevelError))
}
