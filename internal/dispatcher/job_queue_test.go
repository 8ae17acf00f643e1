package dispatcher

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPoolRunsTasks(t *testing.T) {
	p := NewPool(4, 16, 0)
	p.Start()

	var n int64
	for i := 0; i < 10; i++ {
		require.NoError(t, p.Submit(Task{Name: "count", Run: func(ctx context.Context) {
			atomic.AddInt64(&n, 1)
		}}))
	}
	require.NoError(t, p.Stop(context.Background()))
	assert.Equal(t, int64(10), atomic.LoadInt64(&n))

	assert.ErrorIs(t, p.Submit(Task{Name: "late", Run: func(context.Context) {}}), ErrPoolStopped)
	assert.NoError(t, p.Stop(context.Background()))
}

func TestPoolQueueFull(t *testing.T) {
	// not started, so nothing drains the queue
	p := NewPool(1, 2, 0)
	noop := Task{Name: "noop", Run: func(context.Context) {}}

	require.NoError(t, p.Submit(noop))
	require.NoError(t, p.Submit(noop))
	assert.ErrorIs(t, p.Submit(noop), ErrQueueFull)
	assert.NoError(t, p.Stop(context.Background()))
}

func TestPoolSurvivesPanics(t *testing.T) {
	p := NewPool(1, 4, 0)
	p.Start()

	var ran int64
	require.NoError(t, p.Submit(Task{Name: "boom", Run: func(context.Context) { panic("boom") }}))
	require.NoError(t, p.Submit(Task{Name: "after", Run: func(context.Context) { atomic.AddInt64(&ran, 1) }}))
	require.NoError(t, p.Stop(context.Background()))
	assert.Equal(t, int64(1), atomic.LoadInt64(&ran))
}

func TestPoolDelayAndCancel(t *testing.T) {
	p := NewPool(1, 4, time.Hour)
	p.Start()

	started := make(chan struct{})
	var cancelled int64
	require.NoError(t, p.Submit(Task{Name: "first", Run: func(context.Context) { close(started) }}))
	require.NoError(t, p.Submit(Task{Name: "second", Run: func(ctx context.Context) {
		if ctx.Err() != nil {
			atomic.AddInt64(&cancelled, 1)
		}
	}}))
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, p.Stop(ctx), context.DeadlineExceeded)
	assert.Equal(t, int64(1), atomic.LoadInt64(&cancelled))
}
