package storage

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestMemoryIdempotency_ClaimReleaseExpire(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)
	guard := NewMemoryIdempotency(time.Minute)
	guard.now = func() time.Time { return now }

	if ok, _ := guard.Claim(ctx, "k"); !ok {
		t.Fatal("expected first claim to succeed")
	}
	if ok, _ := guard.Claim(ctx, "k"); ok {
		t.Error("expected replay to be refused")
	}

	guard.Release(ctx, "k")
	if ok, _ := guard.Claim(ctx, "k"); !ok {
		t.Error("expected claim after release to succeed")
	}

	now = now.Add(2 * time.Minute)
	if ok, _ := guard.Claim(ctx, "k"); !ok {
		t.Error("expected claim after expiry to succeed")
	}
}

func TestMemoryIdempotency_Concurrent(t *testing.T) {
	ctx := context.Background()
	guard := NewMemoryIdempotency(time.Minute)

	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if ok, _ := guard.Claim(ctx, "same"); ok {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()

	if wins.Load() != 1 {
		t.Errorf("expected exactly 1 success, got %d", wins.Load())
	}
}
