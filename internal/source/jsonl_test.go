package source

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/limitidx/internal/order"
)

const validLine = `{"makerAddress":"0x11","takerAddress":"0x22","makerAsset":"0x33","takerAsset":"0x44","makerAmount":"100","takerAmount":200,"expiration":"0x270f","remaining":"100"}`

func TestJSONL_ReadsEventsWithOrigins(t *testing.T) {
	input := strings.Join([]string{
		validLine,
		"",
		"# comment",
		`{"makerAddress": `,
		validLine,
	}, "\n")

	src := NewJSONL("events.jsonl", strings.NewReader(input))
	ctx := context.Background()

	d1, err := src.Next(ctx)
	require.NoError(t, err)
	assert.NoError(t, d1.Err)
	assert.Equal(t, "events.jsonl:1", d1.Origin())
	assert.Equal(t, order.Quantity("200"), d1.Event.TakerAmount)

	d2, err := src.Next(ctx)
	require.NoError(t, err)
	assert.True(t, order.IsMalformed(d2.Err))
	assert.Equal(t, "events.jsonl:4", d2.Origin())

	d3, err := src.Next(ctx)
	require.NoError(t, err)
	assert.NoError(t, d3.Err)
	assert.Equal(t, "events.jsonl:5", d3.Origin())
	assert.NoError(t, d3.Ack(ctx), "ack is a no-op for files")

	_, err = src.Next(ctx)
	assert.ErrorIs(t, err, io.EOF)
}

func TestJSONL_CancelledContext(t *testing.T) {
	src := NewJSONL("x", strings.NewReader(validLine))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := src.Next(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestOpenJSONL(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.jsonl")
	require.NoError(t, os.WriteFile(path, []byte(validLine+"\n"), 0o644))

	src, err := OpenJSONL(path)
	require.NoError(t, err)
	defer src.Close()

	d, err := src.Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, path+":1", d.Origin())

	_, err = OpenJSONL(filepath.Join(t.TempDir(), "missing.jsonl"))
	assert.Error(t, err)
}

func TestSlice_LabelsAndAcks(t *testing.T) {
	src := NewSlice("scenario", order.RawEvent{MakerAddress: "0x1"}, order.RawEvent{Origin: "custom"})
	ctx := context.Background()

	d1, err := src.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, "scenario:1", d1.Origin())

	d2, err := src.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, "custom", d2.Origin())

	require.NoError(t, d2.Ack(ctx))
	require.NoError(t, d1.Ack(ctx))
	assert.Equal(t, []string{"custom", "scenario:1"}, src.Acked())

	_, err = src.Next(ctx)
	assert.ErrorIs(t, err, io.EOF)
}
