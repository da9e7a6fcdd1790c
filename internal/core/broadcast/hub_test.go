package broadcast_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rl1809/jersey-pos/internal/core/broadcast"
	"github.com/rl1809/jersey-pos/internal/core/domain"
)

func stockEvent(sku string, qty int, version int64) domain.Event {
	return domain.NewStockUpdatedEvent(domain.StockLevel{SKU: sku, JerseyID: 1, Quantity: qty, Version: version}, time.Now())
}

func receive(t *testing.T, sub *broadcast.Subscription) broadcast.Batch {
	t.Helper()
	select {
	case b, ok := <-sub.C():
		require.True(t, ok, "subscription closed")
		return b
	case <-time.After(time.Second):
		t.Fatal("no batch delivered")
		return nil
	}
}

func TestPublish_FansOutToAllSubscribers(t *testing.T) {
	hub := broadcast.NewHub(8)
	a, b := hub.Subscribe(), hub.Subscribe()
	defer a.Close()
	defer b.Close()

	sale := domain.Sale{ID: 1, SKU: "RM24HH1", Quantity: 2}
	hub.Publish(domain.NewSaleCreatedEvent(sale, time.Now()), stockEvent("RM24HH1", 3, 1))

	for _, sub := range []*broadcast.Subscription{a, b} {
		batch := receive(t, sub)
		require.Len(t, batch, 2, "sale and stock events travel together")
		assert.Equal(t, domain.EventSaleCreated, batch[0].Kind)
		assert.Equal(t, domain.EventStockUpdated, batch[1].Kind)
	}
}

func TestSubscribe_TopicFilter(t *testing.T) {
	hub := broadcast.NewHub(8)
	stockOnly := hub.Subscribe(domain.TopicStock)
	defer stockOnly.Close()

	hub.Publish(domain.NewJerseyDeletedEvent(4, time.Now()))
	hub.Publish(domain.NewSaleDeletedEvent(domain.Sale{ID: 9, SKU: "A"}, time.Now()), stockEvent("A", 5, 2))

	batch := receive(t, stockOnly)
	require.Len(t, batch, 1)
	assert.Equal(t, domain.EventStockUpdated, batch[0].Kind)

	select {
	case b := <-stockOnly.C():
		t.Fatalf("unexpected batch %v", b)
	default:
	}
}

func TestPublish_PerSkuOrderPreserved(t *testing.T) {
	hub := broadcast.NewHub(1024)
	sub := hub.Subscribe()
	defer sub.Close()

	var wg sync.WaitGroup
	for _, sku := range []string{"A", "B", "C"} {
		wg.Add(1)
		go func(sku string) {
			defer wg.Done()
			for v := int64(1); v <= 100; v++ {
				hub.Publish(stockEvent(sku, int(v), v))
			}
		}(sku)
	}
	wg.Wait()

	last := map[string]int64{}
	for i := 0; i < 300; i++ {
		ev := receive(t, sub)[0]
		p := ev.Payload.(domain.StockUpdated)
		assert.Equal(t, last[p.SKU]+1, p.Version, "sku %s out of order", p.SKU)
		last[p.SKU] = p.Version
	}
}

func TestPublish_SlowSubscriberEvictedWithoutBlocking(t *testing.T) {
	hub := broadcast.NewHub(2)
	slow := hub.Subscribe()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 10; i++ {
			hub.Publish(stockEvent("A", i, int64(i+1)))
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked on a slow subscriber")
	}

	n := 0
	for range slow.C() {
		n++
	}
	assert.Equal(t, 2, n)
	assert.True(t, errors.Is(slow.Err(), broadcast.ErrSlowSubscriber))
	assert.Equal(t, 0, hub.SubscriberCount())
	assert.Equal(t, uint64(1), hub.Stats().Evicted)
}

func TestClose_StopsDelivery(t *testing.T) {
	hub := broadcast.NewHub(4)
	sub := hub.Subscribe()
	sub.Close()
	sub.Close()

	hub.Publish(stockEvent("A", 1, 1))
	_, ok := <-sub.C()
	assert.False(t, ok)
	assert.NoError(t, sub.Err())
	assert.Equal(t, 0, hub.SubscriberCount())
}

type captureRelay struct {
	mu      sync.Mutex
	batches []broadcast.Batch
	fail    bool
}

func (r *captureRelay) Name() string { return "capture" }
func (r *captureRelay) Close() error { return nil }

func (r *captureRelay) Forward(_ context.Context, batch []domain.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail {
		return fmt.Errorf("broker unavailable")
	}
	r.batches = append(r.batches, batch)
	return nil
}

func (r *captureRelay) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.batches)
}

func TestPump_ForwardsUntilCanceled(t *testing.T) {
	hub := broadcast.NewHub(8)
	relay := &captureRelay{}
	ctx, cancel := context.WithCancel(context.Background())

	stopped := make(chan struct{})
	go func() {
		broadcast.Pump(ctx, hub, relay)
		close(stopped)
	}()
	require.Eventually(t, func() bool { return hub.SubscriberCount() == 1 }, time.Second, 5*time.Millisecond)

	hub.Publish(stockEvent("A", 1, 1))
	hub.Publish(stockEvent("A", 0, 2))
	require.Eventually(t, func() bool { return relay.count() == 2 }, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("pump did not stop")
	}
	assert.Equal(t, 0, hub.SubscriberCount())
}

func TestPump_StopsWhenHubCloses(t *testing.T) {
	hub := broadcast.NewHub(8)
	stopped := make(chan struct{})
	go func() {
		broadcast.Pump(context.Background(), hub, &captureRelay{fail: true})
		close(stopped)
	}()
	require.Eventually(t, func() bool { return hub.SubscriberCount() == 1 }, time.Second, 5*time.Millisecond)

	hub.Publish(stockEvent("A", 1, 1))
	hub.Close()
	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("pump did not stop after hub close")
	}
}
