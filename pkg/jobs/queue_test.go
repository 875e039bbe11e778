package jobs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueueRetriesUntilSuccess(t *testing.T) {
	var calls atomic.Int32
	done := make(chan struct{})
	q := NewQueue("test", func(_ context.Context, job Job) error {
		if calls.Add(1) < 3 {
			return errors.New("transient")
		}
		close(done)
		return nil
	}, QueueConfig{Workers: 1, MaxRetries: 3, RetryDelay: time.Millisecond})
	q.Start(context.Background())
	defer q.Stop()

	require.NoError(t, q.Enqueue(context.Background(), Job{ID: "j1", Type: "notify"}))

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("job was not retried to success")
	}
	assert.Equal(t, int32(3), calls.Load())
}

func TestQueueStopDrainsBufferedJobs(t *testing.T) {
	release := make(chan struct{})
	var mu sync.Mutex
	var handled []string

	q := NewQueue("drain", func(_ context.Context, job Job) error {
		<-release
		mu.Lock()
		handled = append(handled, job.ID)
		mu.Unlock()
		return nil
	}, QueueConfig{Workers: 1, BufferSize: 8})
	q.Start(context.Background())

	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, q.Enqueue(context.Background(), Job{ID: id}))
	}

	stopped := make(chan struct{})
	go func() {
		q.Stop()
		close(stopped)
	}()
	close(release)

	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("stop did not return")
	}

	mu.Lock()
	defer mu.Unlock()
	assert.ElementsMatch(t, []string{"a", "b", "c"}, handled)
	assert.Error(t, q.Enqueue(context.Background(), Job{ID: "late"}))
}

func TestQueueRejectsBeforeStart(t *testing.T) {
	q := NewQueue("idle", func(context.Context, Job) error { return nil }, QueueConfig{})
	assert.Error(t, q.Enqueue(context.Background(), Job{ID: "x"}))
}

func TestQueueStopKeepsInFlightContextAlive(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	var ctxErr atomic.Value

	q := NewQueue("inflight", func(ctx context.Context, _ Job) error {
		close(started)
		<-release
		ctxErr.Store(fmt.Sprint(ctx.Err()))
		return ctx.Err()
	}, QueueConfig{Workers: 1, DrainTimeout: 2 * time.Second})
	q.Start(context.Background())
	require.NoError(t, q.Enqueue(context.Background(), Job{ID: "j1"}))
	<-started

	stopped := make(chan struct{})
	go func() {
		q.Stop()
		close(stopped)
	}()
	// Give Stop time to cancel the intake context before the job finishes.
	time.Sleep(20 * time.Millisecond)
	close(release)

	select {
	case <-stopped:
	case <-time.After(3 * time.Second):
		t.Fatal("stop did not return")
	}
	assert.Equal(t, "<nil>", ctxErr.Load())
}

func TestQueueDrainDeadlineCancelsHandlers(t *testing.T) {
	started := make(chan struct{})
	q := NewQueue("deadline", func(ctx context.Context, _ Job) error {
		close(started)
		<-ctx.Done()
		return ctx.Err()
	}, QueueConfig{Workers: 1, DrainTimeout: 20 * time.Millisecond})
	q.Start(context.Background())
	require.NoError(t, q.Enqueue(context.Background(), Job{ID: "slow"}))
	<-started

	stopped := make(chan struct{})
	go func() {
		q.Stop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("drain deadline was not enforced")
	}
}
