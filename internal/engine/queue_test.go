package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testJob(key string) job {
	return job{key: key}
}

func TestShardQueue_FIFO(t *testing.T) {
	q := newShardQueue(8)
	ctx := context.Background()

	for _, k := range []string{"A", "B", "C"} {
		require.NoError(t, q.Enqueue(ctx, testJob(k)))
	}
	assert.Equal(t, 3, q.Len())

	for _, want := range []string{"A", "B", "C"} {
		j, ok := q.TryDequeue()
		require.True(t, ok)
		assert.Equal(t, want, j.key)
	}

	_, ok := q.TryDequeue()
	assert.False(t, ok, "dequeue from empty queue should return false")
}

func TestShardQueue_EnqueueBlocksWhenFull(t *testing.T) {
	q := newShardQueue(1)
	ctx := context.Background()
	require.NoError(t, q.Enqueue(ctx, testJob("A")))

	done := make(chan error, 1)
	go func() {
		done <- q.Enqueue(ctx, testJob("B"))
	}()

	select {
	case <-done:
		t.Fatal("enqueue into a full queue should block")
	case <-time.After(20 * time.Millisecond):
	}

	_, ok := q.TryDequeue()
	require.True(t, ok)

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("enqueue did not resume after space freed")
	}
	assert.Equal(t, 1, q.Len())
}

func TestShardQueue_EnqueueHonorsContext(t *testing.T) {
	q := newShardQueue(1)
	require.NoError(t, q.Enqueue(context.Background(), testJob("A")))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	err := q.Enqueue(ctx, testJob("B"))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestShardQueue_Close(t *testing.T) {
	q := newShardQueue(4)
	ctx := context.Background()
	require.NoError(t, q.Enqueue(ctx, testJob("A")))

	q.Close()
	q.Close() // idempotent

	assert.ErrorIs(t, q.Enqueue(ctx, testJob("B")), errQueueClosed)
	assert.False(t, q.Drained(), "closed queue still holds A")

	select {
	case <-q.Wait():
	default:
		t.Fatal("Wait should fire after Close")
	}

	_, ok := q.TryDequeue()
	require.True(t, ok)
	assert.True(t, q.Drained())
}
