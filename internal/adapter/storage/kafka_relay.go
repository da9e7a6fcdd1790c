package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/rl1809/jersey-pos/internal/core/domain"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaRelay appends batches to a topic. Messages are keyed by event key so
// every event of one SKU lands on one partition in order.
type KafkaRelay struct {
	writer messageWriter
}

func NewKafkaRelay(brokers []string, topic string) *KafkaRelay {
	return newKafkaRelay(&kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		BatchTimeout: 10 * time.Millisecond,
		BatchSize:    100,
	})
}

func newKafkaRelay(w messageWriter) *KafkaRelay {
	return &KafkaRelay{writer: w}
}

func (k *KafkaRelay) Name() string { return "kafka" }

func (k *KafkaRelay) Forward(ctx context.Context, batch []domain.Event) error {
	if len(batch) == 0 {
		return nil
	}
	msgs := make([]kafka.Message, 0, len(batch))
	for _, ev := range batch {
		value, err := json.Marshal(ev)
		if err != nil {
			return fmt.Errorf("encode %s: %w", ev.Kind, err)
		}
		msgs = append(msgs, kafka.Message{
			Key:   []byte(ev.Key),
			Value: value,
			Time:  ev.At,
			Headers: []kafka.Header{
				{Key: "kind", Value: []byte(ev.Kind)},
			},
		})
	}
	if err := k.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("kafka write: %w", err)
	}
	return nil
}

func (k *KafkaRelay) Close() error {
	return k.writer.Close()
}
