package storage

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/rl1809/jersey-pos/internal/core/domain"
)

type mockWriter struct {
	mu     sync.Mutex
	msgs   []kafka.Message
	err    error
	closed bool
}

func (m *mockWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.msgs = append(m.msgs, msgs...)
	return nil
}

func (m *mockWriter) Close() error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	return nil
}

func TestKafkaRelay_KeysByEventKey(t *testing.T) {
	w := &mockWriter{}
	relay := newKafkaRelay(w)
	at := time.Now()

	sale := domain.Sale{ID: 7, SKU: "RM24HH1", Quantity: 2}
	batch := []domain.Event{
		domain.NewSaleCreatedEvent(sale, at),
		domain.NewStockUpdatedEvent(domain.StockLevel{SKU: "RM24HH1", Quantity: 3, Version: 2}, at),
	}
	if err := relay.Forward(context.Background(), batch); err != nil {
		t.Fatalf("Forward failed: %v", err)
	}

	if len(w.msgs) != 2 {
		t.Fatalf("expected 2 messages in one write, got %d", len(w.msgs))
	}
	for i, msg := range w.msgs {
		if string(msg.Key) != "RM24HH1" {
			t.Errorf("message %d: expected key RM24HH1, got %q", i, msg.Key)
		}
		if len(msg.Headers) != 1 || string(msg.Headers[0].Value) != string(batch[i].Kind) {
			t.Errorf("message %d: unexpected headers %+v", i, msg.Headers)
		}
	}

	var got domain.Event
	if err := json.Unmarshal(w.msgs[1].Value, &got); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	stock, ok := got.Payload.(domain.StockUpdated)
	if !ok || stock.NewQuantity != 3 || stock.Version != 2 {
		t.Errorf("unexpected payload %#v", got.Payload)
	}

	if err := relay.Close(); err != nil || !w.closed {
		t.Error("expected writer to be closed")
	}
}

func TestKafkaRelay_WriteError(t *testing.T) {
	w := &mockWriter{err: errors.New("broker down")}
	relay := newKafkaRelay(w)

	ev := domain.NewJerseyDeletedEvent(3, time.Now())
	if err := relay.Forward(context.Background(), []domain.Event{ev}); err == nil {
		t.Error("expected write error to surface")
	}
}
