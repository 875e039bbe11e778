package fanout

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/noah-isme/classroom-gate-api/pkg/jobs"
	"github.com/noah-isme/classroom-gate-api/pkg/kafka"
)

// Delivery modes.
const (
	ModeSync  = "sync"
	ModeQueue = "queue"
	ModeKafka = "kafka"
)

const jobType = "notification.fanout"

// Notifier hands an event to its delivery mode.
type Notifier interface {
	Notify(ctx context.Context, ev Event) error
	Mode() string
}

// SyncNotifier writes rows before returning.
type SyncNotifier struct {
	writer *Writer
}

// NewSyncNotifier delivers through writer on the caller's goroutine.
func NewSyncNotifier(writer *Writer) *SyncNotifier {
	return &SyncNotifier{writer: writer}
}

// Notify writes one row per recipient and returns the first store error.
func (n *SyncNotifier) Notify(ctx context.Context, ev Event) error {
	_, err := n.writer.Deliver(ctx, ev)
	return err
}

// Mode returns ModeSync.
func (n *SyncNotifier) Mode() string { return ModeSync }

// QueueNotifier defers delivery to an in-process worker pool with bounded retries.
type QueueNotifier struct {
	queue *jobs.Queue
}

// NewQueueNotifier builds the worker pool; call Start before Notify and Stop on shutdown.
func NewQueueNotifier(writer *Writer, cfg jobs.QueueConfig) *QueueNotifier {
	handler := func(ctx context.Context, job jobs.Job) error {
		ev, ok := job.Payload.(Event)
		if !ok {
			return fmt.Errorf("unexpected payload %T", job.Payload)
		}
		if _, err := writer.Deliver(ctx, ev); err != nil {
			writer.recorder.RecordNotificationFailure(ModeQueue)
			return err
		}
		return nil
	}
	return &QueueNotifier{queue: jobs.NewQueue("notifications", handler, cfg)}
}

// Start launches the workers.
func (n *QueueNotifier) Start(ctx context.Context) { n.queue.Start(ctx) }

// Stop waits for buffered events to be written.
func (n *QueueNotifier) Stop() { n.queue.Stop() }

// Notify enqueues ev; it fails once Stop has been called.
func (n *QueueNotifier) Notify(ctx context.Context, ev Event) error {
	return n.queue.Enqueue(ctx, jobs.Job{ID: ev.Key, Type: jobType, Payload: ev})
}

// Mode returns ModeQueue.
func (n *QueueNotifier) Mode() string { return ModeQueue }

type publisher interface {
	Send(ctx context.Context, key string, message interface{}) error
}

// KafkaNotifier publishes events keyed by event key; cmd/notification-worker writes the rows.
type KafkaNotifier struct {
	producer publisher
}

// NewKafkaNotifier publishes through producer, normally a *kafka.Producer.
func NewKafkaNotifier(producer publisher) *KafkaNotifier {
	return &KafkaNotifier{producer: producer}
}

// Notify publishes ev; rows are written later by the consumer.
func (n *KafkaNotifier) Notify(ctx context.Context, ev Event) error {
	if err := n.producer.Send(ctx, ev.Key, ev); err != nil {
		return fmt.Errorf("publish %s: %w", ev.Key, err)
	}
	return nil
}

// Mode returns ModeKafka.
func (n *KafkaNotifier) Mode() string { return ModeKafka }

// MessageHandler decodes a published Event and delivers it. Undecodable messages are
// logged and acknowledged since a retry cannot fix them.
func MessageHandler(writer *Writer, logger *zap.Logger) kafka.MessageHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(ctx context.Context, key, value []byte) error {
		var ev Event
		if err := json.Unmarshal(value, &ev); err != nil {
			logger.Error("discarding malformed notification event", zap.ByteString("key", key), zap.Error(err))
			return nil
		}
		if _, err := writer.Deliver(ctx, ev); err != nil {
			writer.recorder.RecordNotificationFailure(ModeKafka)
			return err
		}
		return nil
	}
}
