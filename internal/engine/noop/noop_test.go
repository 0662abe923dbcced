package noop

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nadzzz/polyvoice/internal/engine"
)

func TestSpeakReportsIndexes(t *testing.T) {
	e := New()
	ctx := context.Background()

	var indexes []int
	var done int
	require.NoError(t, e.Initialize(func(index int, isDone bool) {
		if isDone {
			done++
			return
		}
		indexes = append(indexes, index)
	}))

	markup := engine.Join([]string{"a", engine.IndexCode(1), "b", engine.IndexCode(2)})
	require.NoError(t, e.Speak(ctx, "ava", markup))

	assert.Equal(t, []int{1, 2}, indexes)
	assert.Equal(t, 1, done)
}

func TestRequiresInitialize(t *testing.T) {
	e := New()
	ctx := context.Background()

	assert.ErrorIs(t, e.Speak(ctx, "ava", "hi"), engine.ErrNotInitialized)
	assert.ErrorIs(t, e.InsertBreak(ctx, "ava", 10), engine.ErrNotInitialized)

	require.NoError(t, e.Initialize(func(int, bool) {}))
	assert.NoError(t, e.InsertBreak(ctx, "ava", 10))

	require.NoError(t, e.Terminate())
	assert.ErrorIs(t, e.Speak(ctx, "ava", "hi"), engine.ErrNotInitialized)
}

func TestBatchReportsDoneOnce(t *testing.T) {
	e := New()
	ctx := context.Background()

	var events []string
	require.NoError(t, e.Initialize(func(index int, isDone bool) {
		if isDone {
			events = append(events, "done")
			return
		}
		events = append(events, fmt.Sprintf("index %d", index))
	}))

	e.BeginBatch()
	require.NoError(t, e.Speak(ctx, "ava", "hello"+engine.IndexCode(1)))
	require.NoError(t, e.InsertBreak(ctx, "ava", 50))
	require.NoError(t, e.Speak(ctx, "amelie", "bonjour"+engine.IndexCode(2)))
	assert.Equal(t, []string{"index 1", "index 2"}, events)

	e.EndBatch()
	assert.Equal(t, []string{"index 1", "index 2", "done"}, events)

	// An empty batch reports nothing.
	e.BeginBatch()
	e.EndBatch()
	assert.Len(t, events, 3)
}

func TestStopDropsPendingDone(t *testing.T) {
	e := New()
	var done int
	require.NoError(t, e.Initialize(func(_ int, isDone bool) {
		if isDone {
			done++
		}
	}))

	e.BeginBatch()
	require.NoError(t, e.Speak(context.Background(), "ava", "hello"))
	require.NoError(t, e.Stop())
	e.EndBatch()
	assert.Zero(t, done)
}
