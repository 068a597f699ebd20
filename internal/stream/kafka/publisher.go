// Package kafka mirrors live match transitions to a Kafka topic so other
// systems can replay the event history.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/alanyoungcy/matchcast/internal/domain"
)

// messageWriter is the part of *kafka.Writer the publisher uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Config selects brokers and topic.
type Config struct {
	Brokers      []string
	Topic        string
	BatchTimeout time.Duration
}

// Publisher writes one Kafka message per live transition, keyed by match id
// so every match stays on one partition and keeps its order.
type Publisher struct {
	w      messageWriter
	topic  string
	logger *slog.Logger
}

// NewPublisher creates a Publisher for cfg.
func NewPublisher(cfg Config, logger *slog.Logger) (*Publisher, error) {
	if len(cfg.Brokers) == 0 || cfg.Topic == "" {
		return nil, fmt.Errorf("kafka: brokers and topic are required")
	}
	if cfg.BatchTimeout <= 0 {
		cfg.BatchTimeout = 50 * time.Millisecond
	}
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireOne,
		BatchTimeout: cfg.BatchTimeout,
	}
	return newPublisher(w, cfg.Topic, logger), nil
}

func newPublisher(w messageWriter, topic string, logger *slog.Logger) *Publisher {
	return &Publisher{
		w:      w,
		topic:  topic,
		logger: logger.With(slog.String("component", "kafka_publisher")),
	}
}

// PublishTransition writes tr to the topic.
func (p *Publisher) PublishTransition(ctx context.Context, tr domain.Transition) error {
	value, err := json.Marshal(tr)
	if err != nil {
		return fmt.Errorf("kafka: marshal transition: %w", err)
	}
	msg := kafkago.Message{
		Key:   []byte(tr.State.MatchID),
		Value: value,
		Time:  tr.State.UpdatedAt,
		Headers: []kafkago.Header{
			{Key: "status", Value: []byte(tr.State.Status)},
		},
	}
	if err := p.w.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("kafka: write %s: %w", p.topic, err)
	}
	p.logger.DebugContext(ctx, "transition mirrored",
		slog.String("match_id", tr.State.MatchID),
		slog.Int("events", len(tr.Events)),
	)
	return nil
}

// Close flushes pending writes.
func (p *Publisher) Close() error {
	return p.w.Close()
}
