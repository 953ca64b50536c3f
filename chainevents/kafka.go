package chainevents

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"
)

// MessageReader is the subset of *kafka.Reader the source needs.
type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Handler applies one event.
type Handler interface {
	Apply(ctx context.Context, ev Event) error
}

// KafkaConfig selects the topic to mirror.
type KafkaConfig struct {
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
	GroupID string   `yaml:"group_id"`
	// RetryBackoff is the pause before re-applying an event after a
	// transient failure.
	RetryBackoff time.Duration `yaml:"retry_backoff"`
}

// KafkaSource consumes chain events from a Kafka topic.
type KafkaSource struct {
	reader  MessageReader
	backoff time.Duration
	logger  *slog.Logger
}

// NewKafkaSource opens a consumer-group reader for cfg.
func NewKafkaSource(cfg KafkaConfig, logger *slog.Logger) (*KafkaSource, error) {
	if len(cfg.Brokers) == 0 || cfg.Topic == "" || cfg.GroupID == "" {
		return nil, fmt.Errorf("chainevents: brokers, topic and group_id are required")
	}
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        cfg.Brokers,
		Topic:          cfg.Topic,
		GroupID:        cfg.GroupID,
		StartOffset:    kafka.FirstOffset,
		MaxBytes:       1 << 20,
		CommitInterval: 0,
	})
	return NewSource(reader, cfg.RetryBackoff, logger), nil
}

// NewSource wraps an existing reader.
func NewSource(reader MessageReader, backoff time.Duration, logger *slog.Logger) *KafkaSource {
	if backoff <= 0 {
		backoff = time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &KafkaSource{reader: reader, backoff: backoff, logger: logger.With("component", "chainevents")}
}

// Run fetches, applies and commits until ctx is done. Undecodable and invalid
// events are logged and committed. Other apply errors are retried on the same
// message, so a store outage stalls the partition instead of skipping events.
func (s *KafkaSource) Run(ctx context.Context, h Handler) error {
	for {
		msg, err := s.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("chainevents: fetch: %w", err)
		}

		if err := s.apply(ctx, h, msg); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}

		if err := s.reader.CommitMessages(ctx, msg); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("chainevents: commit: %w", err)
		}
	}
}

// apply returns nil once msg may be committed, or ctx.Err().
func (s *KafkaSource) apply(ctx context.Context, h Handler, msg kafka.Message) error {
	var ev Event
	if err := json.Unmarshal(msg.Value, &ev); err != nil {
		s.logger.ErrorContext(ctx, "undecodable chain event", "partition", msg.Partition, "offset", msg.Offset, "error", err)
		return nil
	}

	for {
		err := h.Apply(ctx, ev)
		switch {
		case err == nil:
			s.logger.DebugContext(ctx, "chain event applied", "event", ev.Name, "tx_hash", ev.TxHash)
			return nil
		case errors.Is(err, ErrInvalidEvent):
			s.logger.WarnContext(ctx, "skipping invalid chain event", "event", ev.Name, "offset", msg.Offset, "error", err)
			return nil
		}

		s.logger.ErrorContext(ctx, "chain event apply failed; retrying", "event", ev.Name, "offset", msg.Offset, "error", err)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(s.backoff):
		}
	}
}

// Close closes the reader.
func (s *KafkaSource) Close() error {
	return s.reader.Close()
}
