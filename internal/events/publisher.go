package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"

	"github.com/paperharbor/acquisition-service/internal/domain"
)

// EventTypePaperSaved is emitted once per newly persisted paper.
const EventTypePaperSaved = "paper.saved"

// Publisher emits pipeline events to downstream consumers.
type Publisher interface {
	PaperSaved(ctx context.Context, paper *domain.Paper) error
	Close() error
}

// PaperSavedEvent is the wire envelope for a persisted paper.
type PaperSavedEvent struct {
	EventID   string        `json:"event_id"`
	EventType string        `json:"event_type"`
	Timestamp time.Time     `json:"timestamp"`
	Paper     *domain.Paper `json:"paper"`
}

// Kafka publishes events to a Kafka topic.
type Kafka struct {
	writer *kafka.Writer
	logger zerolog.Logger
}

var _ Publisher = (*Kafka)(nil)

// NewKafka creates a publisher writing to the given brokers and topic.
func NewKafka(brokers []string, topic string, batchTimeout time.Duration, logger zerolog.Logger) *Kafka {
	if batchTimeout <= 0 {
		batchTimeout = 10 * time.Millisecond
	}
	return &Kafka{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireOne,
			BatchTimeout: batchTimeout,
		},
		logger: logger.With().Str("component", "event-publisher").Logger(),
	}
}

// PaperSaved publishes a paper.saved event keyed by the paper's natural key.
func (k *Kafka) PaperSaved(ctx context.Context, paper *domain.Paper) error {
	event := PaperSavedEvent{
		EventID:   uuid.New().String(),
		EventType: EventTypePaperSaved,
		Timestamp: time.Now().UTC(),
		Paper:     paper,
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(paper.NaturalKey),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(EventTypePaperSaved)},
		},
	}
	if err := k.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("write message: %w", err)
	}

	k.logger.Debug().
		Str("event_id", event.EventID).
		Str("natural_key", paper.NaturalKey).
		Msg("published paper.saved event")
	return nil
}

// Close flushes and closes the underlying writer.
func (k *Kafka) Close() error {
	return k.writer.Close()
}

// Nop discards all events. Used when Kafka is disabled.
type Nop struct{}

var _ Publisher = (*Nop)(nil)

func (Nop) PaperSaved(context.Context, *domain.Paper) error { return nil }
func (Nop) Close() error                                    { return nil }
