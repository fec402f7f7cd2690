package loop

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func start(t *testing.T, l *Loop) (cancel func()) {
	t.Helper()
	ctx, stop := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		_ = l.Run(ctx)
	}()
	return func() {
		stop()
		<-stopped
	}
}

func TestPostRunsInOrder(t *testing.T) {
	l := New(8)
	stop := start(t, l)
	defer stop()

	var got []int
	for i := range 100 {
		require.NoError(t, l.Post(func() { got = append(got, i) }))
	}
	require.NoError(t, l.Call(context.Background(), func() {}))

	require.Len(t, got, 100)
	for i, v := range got {
		assert.Equal(t, i, v)
	}
}

func TestExecuting(t *testing.T) {
	l := New(1)
	stop := start(t, l)
	defer stop()

	assert.False(t, l.Executing())

	var inside bool
	require.NoError(t, l.Call(context.Background(), func() { inside = l.Executing() }))
	assert.True(t, inside)
	assert.False(t, l.Executing())
}

func TestPostFromManyGoroutines(t *testing.T) {
	l := New(4)
	stop := start(t, l)
	defer stop()

	var (
		wg      sync.WaitGroup
		counter int
		offLoop int
	)
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = l.Post(func() {
				if !l.Executing() {
					offLoop++
				}
				counter++
			})
		}()
	}
	wg.Wait()
	require.NoError(t, l.Call(context.Background(), func() {}))

	var got, bad int
	require.NoError(t, l.Call(context.Background(), func() { got, bad = counter, offLoop }))
	assert.Equal(t, 50, got)
	assert.Zero(t, bad)
}

func TestPanicDoesNotStopLoop(t *testing.T) {
	l := New(1)
	stop := start(t, l)
	defer stop()

	require.NoError(t, l.Post(func() { panic("boom") }))

	ran := false
	require.NoError(t, l.Call(context.Background(), func() { ran = true }))
	assert.True(t, ran)
}

func TestPostAfterStop(t *testing.T) {
	l := New(1)
	stop := start(t, l)
	stop()

	assert.ErrorIs(t, l.Post(func() {}), ErrClosed)
	assert.ErrorIs(t, l.Call(context.Background(), func() {}), ErrClosed)
}

func TestCallContextCancelled(t *testing.T) {
	l := New(1) // not running, task will never execute
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := l.Call(ctx, func() {})
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestRunTwice(t *testing.T) {
	l := New(1)
	stop := start(t, l)
	defer stop()

	require.Eventually(t, l.running.Load, time.Second, time.Millisecond)
	assert.Error(t, l.Run(context.Background()))
}
