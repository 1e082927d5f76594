// Package kafka provides Kafka producer and consumer clients backed by
// segmentio/kafka-go. Events are published as JSON; the consumer hands each
// record to a MessageHandler and commits it once handled.
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/Adithya-Monish-Kumar-K/termlens/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/termlens/pkg/resilience"
	"github.com/segmentio/kafka-go"
)

// ErrMalformed marks a message that can never be handled. Such messages are
// committed without retrying so they do not stall the partition.
var ErrMalformed = errors.New("malformed message")

// Message is a fetched record.
type Message struct {
	Key       []byte
	Value     []byte
	Partition int
	Offset    int64
	Time      time.Time
}

type MessageHandler func(ctx context.Context, msg Message) error

// JSON adapts a handler for JSON-encoded values of type T. Values that fail
// to decode are reported as ErrMalformed.
func JSON[T any](fn func(ctx context.Context, key string, value T) error) MessageHandler {
	return func(ctx context.Context, msg Message) error {
		var v T
		if err := json.Unmarshal(msg.Value, &v); err != nil {
			return fmt.Errorf("%w at offset %d: %v", ErrMalformed, msg.Offset, err)
		}
		return fn(ctx, string(msg.Key), v)
	}
}

// messageReader is the subset of *kafka.Reader the consume loop needs.
type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// ConsumerStats counts what the consume loop has done so far.
type ConsumerStats struct {
	Handled   int64
	Skipped   int64
	Failed    int64
	LastMsgAt time.Time
}

type Consumer struct {
	reader  messageReader
	handler MessageHandler
	retry   resilience.RetryConfig
	logger  *slog.Logger

	handled atomic.Int64
	skipped atomic.Int64
	failed  atomic.Int64
	lastMsg atomic.Int64
}

// NewConsumer joins cfg.ConsumerGroup on topic, starting from the newest
// offset when the group has no committed position.
func NewConsumer(cfg config.KafkaConfig, topic string, handler MessageHandler) *Consumer {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     cfg.Brokers,
		Topic:       topic,
		GroupID:     cfg.ConsumerGroup,
		MinBytes:    1e3,
		MaxBytes:    10e6,
		MaxWait:     time.Second,
		StartOffset: kafka.LastOffset,
	})
	return newConsumer(r, topic, handler)
}

func newConsumer(r messageReader, topic string, handler MessageHandler) *Consumer {
	return &Consumer{
		reader:  r,
		handler: handler,
		retry: resilience.RetryConfig{
			MaxAttempts:  3,
			InitialDelay: 50 * time.Millisecond,
			MaxDelay:     time.Second,
			ShouldRetry:  func(err error) bool { return !errors.Is(err, ErrMalformed) },
		},
		logger: slog.Default().With("component", "kafka-consumer", "topic", topic),
	}
}

// Start runs the consume loop until ctx is cancelled, then closes the reader.
// Handler errors are retried; a message that still fails is left uncommitted
// unless it is malformed.
func (c *Consumer) Start(ctx context.Context) error {
	c.logger.Info("consumer started")
	defer c.reader.Close()
	for {
		raw, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				c.logger.Info("consumer stopping", "reason", ctx.Err())
				return nil
			}
			c.logger.Error("failed to fetch message", "error", err)
			continue
		}
		c.lastMsg.Store(time.Now().UnixNano())
		msg := Message{
			Key:       raw.Key,
			Value:     raw.Value,
			Partition: raw.Partition,
			Offset:    raw.Offset,
			Time:      raw.Time,
		}
		log := c.logger.With("partition", msg.Partition, "offset", msg.Offset)

		err = resilience.Retry(ctx, "handle message", c.retry, func() error {
			return c.handler(ctx, msg)
		})
		switch {
		case err == nil:
			c.handled.Add(1)
		case errors.Is(err, ErrMalformed):
			c.skipped.Add(1)
			log.Warn("skipping malformed message", "error", err)
		default:
			c.failed.Add(1)
			log.Error("failed to process message", "error", err)
			continue
		}
		if err := c.reader.CommitMessages(ctx, raw); err != nil && ctx.Err() == nil {
			log.Error("failed to commit message", "error", err)
		}
	}
}

// Stats returns a snapshot of the loop counters.
func (c *Consumer) Stats() ConsumerStats {
	s := ConsumerStats{
		Handled: c.handled.Load(),
		Skipped: c.skipped.Load(),
		Failed:  c.failed.Load(),
	}
	if ns := c.lastMsg.Load(); ns != 0 {
		s.LastMsgAt = time.Unix(0, ns)
	}
	return s
}

// Close closes the underlying Kafka reader.
func (c *Consumer) Close() error {
	return c.reader.Close()
}
