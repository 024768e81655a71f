package analyzer

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Test Plan for workerPool:
// - submit returns the function's result within the deadline
// - submit returns ErrFileTimeout when the function overruns
// - The pool stays usable after a timeout (a replacement worker spawns)
// - An abandoned invocation finishing late does not corrupt later results
// - A timeout cancels the in-flight job's context
// - Context cancellation interrupts a pending submit

func TestWorkerPool_SubmitReturnsResult(t *testing.T) {
	pool := newWorkerPool()
	defer pool.close()

	got, err := pool.submit(context.Background(), time.Second, func(_ context.Context) (string, error) {
		return "fragment", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "fragment", got)
}

func TestWorkerPool_SubmitPropagatesError(t *testing.T) {
	pool := newWorkerPool()
	defer pool.close()

	wantErr := errors.New("engine exploded")
	_, err := pool.submit(context.Background(), time.Second, func(_ context.Context) (string, error) {
		return "", wantErr
	})
	assert.ErrorIs(t, err, wantErr)
}

func TestWorkerPool_TimeoutAbandonsWorker(t *testing.T) {
	pool := newWorkerPool()
	defer pool.close()

	release := make(chan struct{})
	_, err := pool.submit(context.Background(), 20*time.Millisecond, func(_ context.Context) (string, error) {
		<-release
		return "late", nil
	})
	assert.ErrorIs(t, err, ErrFileTimeout)

	// A replacement worker must serve the next submission while the
	// abandoned one is still stuck.
	got, err := pool.submit(context.Background(), time.Second, func(_ context.Context) (string, error) {
		return "next", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "next", got)

	close(release)
}

func TestWorkerPool_LateResultDoesNotLeakIntoNextSubmit(t *testing.T) {
	pool := newWorkerPool()
	defer pool.close()

	release := make(chan struct{})
	_, err := pool.submit(context.Background(), 20*time.Millisecond, func(_ context.Context) (string, error) {
		<-release
		return "stale", nil
	})
	require.ErrorIs(t, err, ErrFileTimeout)

	// Let the abandoned invocation finish before the next submit.
	close(release)
	time.Sleep(50 * time.Millisecond)

	got, err := pool.submit(context.Background(), time.Second, func(_ context.Context) (string, error) {
		return "fresh", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "fresh", got)
}

func TestWorkerPool_TimeoutCancelsInFlightJob(t *testing.T) {
	pool := newWorkerPool()
	defer pool.close()

	observed := make(chan error, 1)
	_, err := pool.submit(context.Background(), 20*time.Millisecond, func(ctx context.Context) (string, error) {
		<-ctx.Done()
		observed <- ctx.Err()
		return "", ctx.Err()
	})
	require.ErrorIs(t, err, ErrFileTimeout)

	// The hung invocation must be told to stop, not left to run forever.
	select {
	case cerr := <-observed:
		assert.ErrorIs(t, cerr, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("in-flight invocation was never cancelled")
	}
}

func TestWorkerPool_ContextCancellation(t *testing.T) {
	pool := newWorkerPool()
	defer pool.close()

	ctx, cancel := context.WithCancel(context.Background())
	release := make(chan struct{})
	defer close(release)

	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, err := pool.submit(ctx, time.Minute, func(_ context.Context) (string, error) {
		<-release
		return "", nil
	})
	assert.ErrorIs(t, err, context.Canceled)
}
