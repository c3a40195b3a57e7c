package cli

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/limitidx/internal/engine"
	"github.com/roach88/limitidx/internal/order"
	"github.com/roach88/limitidx/internal/store"
	"github.com/roach88/limitidx/internal/testutil"
)

func seedTwo(t *testing.T, s store.RecordStore) {
	t.Helper()
	e := engine.New(s)
	_, err := e.Process(context.Background(), testutil.EventFor(100, 5))
	require.NoError(t, err)
	_, err = e.Process(context.Background(), testutil.EventFor(101, 6))
	require.NoError(t, err)
}

func TestList_JSON(t *testing.T) {
	mem := memoryBackend{store.NewMemory()}
	seedTwo(t, mem)

	opts := testOptions("json")
	opts.Stores = fixedStore(mem)

	out, _, err := execute(t, NewListCommand(opts))
	require.NoError(t, err)

	var resp struct {
		Data []order.Record `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.Len(t, resp.Data, 2)
	assert.Less(t, resp.Data[0].ID, resp.Data[1].ID)
}

func TestList_Limit(t *testing.T) {
	mem := memoryBackend{store.NewMemory()}
	seedTwo(t, mem)

	opts := testOptions("text")
	opts.Stores = fixedStore(mem)

	out, _, err := execute(t, NewListCommand(opts), "--limit", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "1 order(s)")
}

func TestList_Empty(t *testing.T) {
	opts := testOptions("text")
	opts.Stores = fixedStore(memoryBackend{store.NewMemory()})

	out, _, err := execute(t, NewListCommand(opts))
	require.NoError(t, err)
	assert.Contains(t, out, "No orders.")
}

func TestList_MakerNeedsSQLite(t *testing.T) {
	opts := testOptions("text")
	opts.Stores = fixedStore(memoryBackend{store.NewMemory()})

	_, _, err := execute(t, NewListCommand(opts), "--maker", "0x11")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestList_MakerOnSQLite(t *testing.T) {
	st, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	seedTwo(t, st)

	opts := testOptions("json")
	opts.Stores = fixedStore(keepOpen{st})

	out, _, err := execute(t, NewListCommand(opts), "--maker", "0x1111111111111111111111111111111111111111")
	require.NoError(t, err)

	var resp struct {
		Data []order.Record `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Len(t, resp.Data, 2)

	out, _, err = execute(t, NewListCommand(testOptionsWith(keepOpen{st})), "--maker", "0x9999999999999999999999999999999999999999")
	require.NoError(t, err)
	assert.Contains(t, out, `"data": []`)
}

func TestList_NegativeLimit(t *testing.T) {
	opts := testOptions("text")
	opts.Stores = fixedStore(memoryBackend{store.NewMemory()})

	_, _, err := execute(t, NewListCommand(opts), "--limit", "-1")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

// keepOpen lets several commands share one SQLite store.
type keepOpen struct {
	*store.Store
}

func (keepOpen) Close() error { return nil }

func testOptionsWith(b Backend) *RootOptions {
	opts := testOptions("json")
	opts.Stores = fixedStore(b)
	return opts
}
