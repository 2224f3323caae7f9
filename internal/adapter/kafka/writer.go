package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/storm-hazard-routing/internal/config"
	"github.com/couchcryptid/storm-hazard-routing/internal/domain"
	kafkago "github.com/segmentio/kafka-go"
)

// Writer produces event updates to a Kafka topic.
// It implements pipeline.BatchLoader.
type Writer struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewWriter creates a Kafka producer for the configured sink topic.
func NewWriter(cfg *config.Config, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaSinkTopic,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Writer{writer: w, logger: logger}
}

// LoadBatch serializes and publishes event updates to the sink topic in a
// single WriteMessages call. Updates are keyed by event ID so every change to
// one event lands on the same partition in order.
func (w *Writer) LoadBatch(ctx context.Context, updates []domain.EventUpdate) error {
	if len(updates) == 0 {
		return nil
	}
	msgs := make([]kafkago.Message, len(updates))
	for i := range updates {
		msg, err := serializeToMessage(updates[i])
		if err != nil {
			return err
		}
		msgs[i] = msg
	}
	if err := w.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("write %d event updates: %w", len(msgs), err)
	}
	w.logger.Debug("event updates published", "count", len(msgs))
	return nil
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// serializeToMessage marshals an EventUpdate into a Kafka message.
func serializeToMessage(update domain.EventUpdate) (kafkago.Message, error) {
	data, err := json.Marshal(update)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize event update: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(update.Event.ID),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "action", Value: []byte(update.Outcome)},
			{Key: "event_type", Value: []byte(update.Event.EventType)},
			{Key: "processed_at", Value: []byte(update.ProcessedAt.Format(time.RFC3339))},
		},
	}, nil
}
