package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"

	"github.com/roach88/limitidx/internal/config"
	"github.com/roach88/limitidx/internal/engine"
	"github.com/roach88/limitidx/internal/store"
	"github.com/roach88/limitidx/internal/testutil"
)

// failingBackend adapts a FailingStore to Backend.
type failingBackend struct {
	*testutil.FailingStore
}

func (failingBackend) Close() error { return nil }

func fixedStore(b Backend) StoreOpener {
	return func(context.Context, config.StoreConfig) (Backend, error) {
		return b, nil
	}
}

func testOptions(format string) *RootOptions {
	return &RootOptions{
		Format: format,
		RunIDs: testutil.NewFixedRunIDGenerator("run-test"),
	}
}

// execute runs cmd with args and returns stdout, stderr and the error.
func execute(t *testing.T, cmd *cobra.Command, args ...string) (string, string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), errOut.String(), err
}

// eventLines renders events as JSON lines.
func eventLines(t *testing.T, remaining ...int64) string {
	t.Helper()
	var b strings.Builder
	for _, r := range remaining {
		data, err := json.Marshal(testutil.SampleRaw(r))
		require.NoError(t, err)
		b.Write(data)
		b.WriteByte('\n')
	}
	return b.String()
}

// seed merges the sample order into s with the given remaining amounts.
func seed(t *testing.T, s store.RecordStore, remaining ...int64) {
	t.Helper()
	e := engine.New(s)
	for _, r := range remaining {
		_, err := e.Process(context.Background(), testutil.SampleEvent(r))
		require.NoError(t, err)
	}
}
