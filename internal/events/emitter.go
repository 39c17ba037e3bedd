package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/avolkhov/newsdigest/internal/models"
)

// RecordEvent is the payload published for every newly persisted record, so
// downstream consumers do not have to poll the store.
type RecordEvent struct {
	Link       string    `json:"link"`
	AITitle    string    `json:"ai_title"`
	AICategory string    `json:"ai_category"`
	SourceURL  string    `json:"source_url"`
	CreatedAt  time.Time `json:"created_at"`
}

// Emitter writes record events to a Kafka topic. It is an optional side
// channel: emit failures are reported to the caller but must never fail the
// pipeline item itself.
type Emitter struct {
	writer *kafka.Writer
}

// NewEmitter builds a Kafka-backed emitter.
func NewEmitter(brokers []string, topic string) *Emitter {
	return &Emitter{
		writer: kafka.NewWriter(kafka.WriterConfig{
			Brokers:     brokers,
			Topic:       topic,
			MaxAttempts: 3,
		}),
	}
}

// RecordPersisted publishes one event, keyed by link so consumers can
// compact per article.
func (e *Emitter) RecordPersisted(ctx context.Context, rec models.EnrichedRecord) error {
	payload, err := json.Marshal(RecordEvent{
		Link:       rec.Link,
		AITitle:    rec.AITitle,
		AICategory: rec.AICategory,
		SourceURL:  rec.SourceURL,
		CreatedAt:  rec.CreatedAt,
	})
	if err != nil {
		return fmt.Errorf("marshal record event: %w", err)
	}

	if err := e.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(rec.Link),
		Value: payload,
	}); err != nil {
		return fmt.Errorf("write record event: %w", err)
	}
	return nil
}

// Close flushes and releases the writer.
func (e *Emitter) Close() error { return e.writer.Close() }
