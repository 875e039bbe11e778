package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
)

type Config struct {
	Brokers     []string
	Topic       string
	GroupID     string
	MaxAttempts int
	RetryDelay  time.Duration
}

// Producer publishes JSON messages to a single topic.
type Producer struct {
	writer *kafka.Writer
}

func NewProducer(cfg Config) (*Producer, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("kafka producer requires at least one broker")
	}
	if cfg.Topic == "" {
		return nil, fmt.Errorf("kafka producer requires a topic")
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
	}

	return &Producer{writer: writer}, nil
}

// Send marshals message and writes it under key. Messages sharing a key land on one partition.
func (p *Producer) Send(ctx context.Context, key string, message interface{}) error {
	msgBytes, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(key),
		Value: msgBytes,
	})
	if err != nil {
		return fmt.Errorf("failed to write message: %w", err)
	}

	return nil
}

func (p *Producer) Close() error {
	return p.writer.Close()
}

// MessageHandler processes one message. An error triggers an in-place retry.
type MessageHandler func(ctx context.Context, key, value []byte) error

type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Consumer reads a topic as part of a consumer group and commits only after handling.
type Consumer struct {
	reader      messageReader
	maxAttempts int
	retryDelay  time.Duration
}

// NewConsumer joins cfg.GroupID on cfg.Topic. Failed messages are retried up to
// cfg.MaxAttempts times.
func NewConsumer(cfg Config) *Consumer {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 5
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = time.Second
	}
	return &Consumer{
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers: cfg.Brokers,
			GroupID: cfg.GroupID,
			Topic:   cfg.Topic,
		}),
		maxAttempts: cfg.MaxAttempts,
		retryDelay:  cfg.RetryDelay,
	}
}

// Run blocks until ctx is cancelled. onError is called for fetch, handler and commit failures.
func (c *Consumer) Run(ctx context.Context, handle MessageHandler, onError func(stage string, err error)) error {
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			onError("fetch", err)
			if !sleepCtx(ctx, c.retryDelay) {
				return nil
			}
			continue
		}

		if err := c.handleWithRetry(ctx, msg, handle, onError); err != nil {
			if ctx.Err() != nil {
				// Left uncommitted; redelivered to the next group member.
				return nil
			}
			onError("drop", err)
		}

		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			onError("commit", err)
		}
	}
}

// Offsets are committed per partition position, so a failing message is retried in place
// rather than skipped; after maxAttempts it is dropped to unblock the partition.
func (c *Consumer) handleWithRetry(ctx context.Context, msg kafka.Message, handle MessageHandler, onError func(string, error)) error {
	var err error
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		if err = handle(ctx, msg.Key, msg.Value); err == nil {
			return nil
		}
		onError("handle", fmt.Errorf("attempt %d/%d offset %d: %w", attempt, c.maxAttempts, msg.Offset, err))
		if attempt == c.maxAttempts {
			break
		}
		if !sleepCtx(ctx, time.Duration(attempt)*c.retryDelay) {
			return ctx.Err()
		}
	}
	return err
}

// sleepCtx waits for d and reports false if ctx ended first.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

func (c *Consumer) Close() error {
	return c.reader.Close()
}
