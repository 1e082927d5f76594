package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/Adithya-Monish-Kumar-K/termlens/pkg/config"
)

// Event is one record to publish. Key picks the partition; Value is sent
// as JSON. A zero Time is replaced with the publish time.
type Event struct {
	Key   string
	Value any
	Time  time.Time
}

var jsonHeader = kafka.Header{Key: "content-type", Value: []byte("application/json")}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// ProducerStats counts events since the producer was created. Dropped
// events could not be encoded; failed events were lost to a write error.
type ProducerStats struct {
	Published int64
	Dropped   int64
	Failed    int64
}

type Producer struct {
	writer    messageWriter
	topic     string
	logger    *slog.Logger
	published atomic.Int64
	dropped   atomic.Int64
	failed    atomic.Int64
}

// NewProducer returns a synchronous, snappy-compressed producer for topic.
// Writes wait for the partition leader only; analytics events tolerate the
// rare loss.
func NewProducer(cfg config.KafkaConfig, topic string) *Producer {
	w := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		BatchSize:    100,
		BatchTimeout: 10 * time.Millisecond,
		MaxAttempts:  3,
		RequiredAcks: kafka.RequireOne,
		Compression:  kafka.Snappy,
	}
	return newProducer(w, topic)
}

func newProducer(w messageWriter, topic string) *Producer {
	return &Producer{
		writer: w,
		topic:  topic,
		logger: slog.Default().With("component", "kafka-producer", "topic", topic),
	}
}

func (p *Producer) Topic() string {
	return p.topic
}

func (p *Producer) Publish(ctx context.Context, event Event) error {
	return p.PublishBatch(ctx, []Event{event})
}

// PublishBatch writes events in one call. Events whose value cannot be
// encoded are dropped and reported with ErrMalformed; the rest are still
// written.
func (p *Producer) PublishBatch(ctx context.Context, events []Event) error {
	now := time.Now()
	messages := make([]kafka.Message, 0, len(events))
	var malformed []error
	for i, event := range events {
		value, err := json.Marshal(event.Value)
		if err != nil {
			malformed = append(malformed, fmt.Errorf("event %d (key %q): %w: %v", i, event.Key, ErrMalformed, err))
			continue
		}
		ts := event.Time
		if ts.IsZero() {
			ts = now
		}
		messages = append(messages, kafka.Message{
			Key:     []byte(event.Key),
			Value:   value,
			Time:    ts,
			Headers: []kafka.Header{jsonHeader},
		})
	}
	if len(malformed) > 0 {
		p.dropped.Add(int64(len(malformed)))
		p.logger.Warn("dropping unencodable events", "count", len(malformed))
	}
	if len(messages) == 0 {
		return errors.Join(malformed...)
	}

	if err := p.writer.WriteMessages(ctx, messages...); err != nil {
		p.failed.Add(int64(len(messages)))
		p.logger.Error("failed to publish batch", "count", len(messages), "error", err)
		return errors.Join(append(malformed, fmt.Errorf("publishing to %s: %w", p.topic, err))...)
	}
	p.published.Add(int64(len(messages)))
	p.logger.Debug("batch published", "count", len(messages))
	return errors.Join(malformed...)
}

func (p *Producer) Stats() ProducerStats {
	return ProducerStats{
		Published: p.published.Load(),
		Dropped:   p.dropped.Load(),
		Failed:    p.failed.Load(),
	}
}

// Close flushes pending writes and closes the writer.
func (p *Producer) Close() error {
	return p.writer.Close()
}
