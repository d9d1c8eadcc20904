package jobs

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueueProcessesRun(t *testing.T) {
	done := make(chan Job, 1)
	q := NewQueue("allotment", func(ctx context.Context, job Job) error {
		done <- job
		return nil
	}, QueueConfig{Workers: 1})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	q.Start(ctx)
	defer q.Stop()

	require.NoError(t, q.Enqueue(Job{RunID: "run-1"}))
	select {
	case job := <-done:
		assert.Equal(t, "run-1", job.RunID)
		assert.False(t, job.Enqueued.IsZero())
	case <-time.After(time.Second):
		t.Fatal("run was not processed")
	}
}

func TestQueueEnqueueBeforeStartFails(t *testing.T) {
	q := NewQueue("allotment", func(context.Context, Job) error { return nil }, QueueConfig{})
	require.Error(t, q.Enqueue(Job{RunID: "run-1"}))
}

func TestQueueRetriesFailedRun(t *testing.T) {
	var mu sync.Mutex
	var attempts []int
	delivered := make(chan struct{}, 8)
	q := NewQueue("allotment", func(ctx context.Context, job Job) error {
		mu.Lock()
		attempts = append(attempts, job.Attempt)
		mu.Unlock()
		delivered <- struct{}{}
		return errors.New("boom")
	}, QueueConfig{Workers: 1, MaxRetries: 2, RetryDelay: 5 * time.Millisecond})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	q.Start(ctx)
	defer q.Stop()

	require.NoError(t, q.Enqueue(Job{RunID: "run-1"}))
	for i := 0; i < 3; i++ {
		select {
		case <-delivered:
		case <-time.After(time.Second):
			t.Fatalf("delivery %d never happened", i+1)
		}
	}

	select {
	case <-delivered:
		t.Fatal("run delivered past the retry limit")
	case <-time.After(50 * time.Millisecond):
	}

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []int{0, 1, 2}, attempts)
}
