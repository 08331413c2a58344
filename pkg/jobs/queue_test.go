package jobs

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueueProcessesJobs(t *testing.T) {
	var processed atomic.Int32
	queue := NewQueue("test", func(ctx context.Context, job Job) error {
		processed.Add(1)
		return nil
	}, QueueConfig{Workers: 2})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	queue.Start(ctx)
	defer queue.Stop()

	for i := 0; i < 5; i++ {
		require.NoError(t, queue.Enqueue(Job{ID: "j", Type: "noop"}))
	}

	assert.Eventually(t, func() bool {
		return processed.Load() == 5
	}, time.Second, 10*time.Millisecond)
}

func TestQueueRetriesFailedJobs(t *testing.T) {
	var attempts atomic.Int32
	queue := NewQueue("test", func(ctx context.Context, job Job) error {
		if attempts.Add(1) < 3 {
			return errors.New("transient")
		}
		return nil
	}, QueueConfig{Workers: 1, MaxRetries: 5, RetryDelay: 5 * time.Millisecond})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	queue.Start(ctx)
	defer queue.Stop()

	require.NoError(t, queue.Enqueue(Job{ID: "j1", Type: "flaky"}))

	assert.Eventually(t, func() bool {
		return attempts.Load() == 3
	}, time.Second, 10*time.Millisecond)
}

func TestQueueEnqueueBeforeStart(t *testing.T) {
	queue := NewQueue("test", func(ctx context.Context, job Job) error { return nil }, QueueConfig{})
	err := queue.Enqueue(Job{ID: "j1"})
	assert.Error(t, err)
}

func TestQueueDropsAfterMaxRetries(t *testing.T) {
	var attempts atomic.Int32
	queue := NewQueue("test", func(ctx context.Context, job Job) error {
		attempts.Add(1)
		return errors.New("permanent")
	}, QueueConfig{Workers: 1, MaxRetries: 2, RetryDelay: 5 * time.Millisecond})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	queue.Start(ctx)
	defer queue.Stop()

	require.NoError(t, queue.Enqueue(Job{ID: "j1", Type: "doomed"}))

	// Initial attempt plus two retries, then the job is dropped.
	assert.Eventually(t, func() bool {
		return attempts.Load() == 3
	}, time.Second, 10*time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(3), attempts.Load())
}
