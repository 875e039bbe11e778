package kafka

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeReader struct {
	mu        sync.Mutex
	messages  []kafka.Message
	fetchErr  error
	fetches   int
	committed []int64
	commitCh  chan struct{}
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	r.mu.Lock()
	r.fetches++
	if r.fetchErr != nil {
		r.mu.Unlock()
		return kafka.Message{}, r.fetchErr
	}
	if len(r.messages) > 0 {
		msg := r.messages[0]
		r.messages = r.messages[1:]
		r.mu.Unlock()
		return msg, nil
	}
	r.mu.Unlock()
	<-ctx.Done()
	return kafka.Message{}, ctx.Err()
}

func (r *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	r.mu.Lock()
	for _, m := range msgs {
		r.committed = append(r.committed, m.Offset)
	}
	r.mu.Unlock()
	if r.commitCh != nil {
		r.commitCh <- struct{}{}
	}
	return nil
}

func (r *fakeReader) Close() error { return nil }

func TestConsumerBacksOffOnFetchErrors(t *testing.T) {
	reader := &fakeReader{fetchErr: errors.New("broker down")}
	c := &Consumer{reader: reader, maxAttempts: 1, retryDelay: 40 * time.Millisecond}

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	var stages []string
	err := c.Run(ctx, func(context.Context, []byte, []byte) error { return nil }, func(stage string, _ error) {
		stages = append(stages, stage)
	})
	require.NoError(t, err)

	reader.mu.Lock()
	defer reader.mu.Unlock()
	assert.GreaterOrEqual(t, reader.fetches, 1)
	assert.LessOrEqual(t, reader.fetches, 4)
	assert.Len(t, stages, reader.fetches)
}

func TestConsumerRetriesHandlerThenCommits(t *testing.T) {
	reader := &fakeReader{
		messages: []kafka.Message{{Offset: 7, Key: []byte("k"), Value: []byte("v")}},
		commitCh: make(chan struct{}, 1),
	}
	c := &Consumer{reader: reader, maxAttempts: 3, retryDelay: time.Millisecond}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	attempts := 0
	done := make(chan error, 1)
	go func() {
		done <- c.Run(ctx, func(_ context.Context, key, value []byte) error {
			attempts++
			if attempts < 2 {
				return errors.New("transient")
			}
			assert.Equal(t, "k", string(key))
			assert.Equal(t, "v", string(value))
			return nil
		}, func(string, error) {})
	}()

	select {
	case <-reader.commitCh:
	case <-time.After(2 * time.Second):
		t.Fatal("message was not committed")
	}
	cancel()
	require.NoError(t, <-done)

	assert.Equal(t, 2, attempts)
	reader.mu.Lock()
	defer reader.mu.Unlock()
	assert.Equal(t, []int64{7}, reader.committed)
}
