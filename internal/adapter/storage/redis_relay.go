package storage

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/rl1809/jersey-pos/internal/core/domain"
)

// RedisRelay republishes batches on Redis pub/sub. Each event goes to its kind
// channel and to the catch-all channel; a batch is sent in one MULTI/EXEC so
// subscribers of the catch-all channel never see half of it.
type RedisRelay struct {
	client *redis.Client
	prefix string
}

func NewRedisRelay(client *redis.Client, prefix string) *RedisRelay {
	if prefix == "" {
		prefix = "jerseypos"
	}
	return &RedisRelay{client: client, prefix: prefix}
}

func (r *RedisRelay) Name() string { return "redis" }

func (r *RedisRelay) Channel(kind domain.EventKind) string {
	return fmt.Sprintf("%s:events:%s", r.prefix, kind)
}

func (r *RedisRelay) AllChannel() string {
	return r.prefix + ":events:all"
}

func (r *RedisRelay) Forward(ctx context.Context, batch []domain.Event) error {
	if len(batch) == 0 {
		return nil
	}
	payloads := make([][]byte, len(batch))
	for i, ev := range batch {
		b, err := json.Marshal(ev)
		if err != nil {
			return fmt.Errorf("encode %s: %w", ev.Kind, err)
		}
		payloads[i] = b
	}

	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, ev := range batch {
			pipe.Publish(ctx, r.Channel(ev.Kind), payloads[i])
			pipe.Publish(ctx, r.AllChannel(), payloads[i])
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis publish: %w", err)
	}
	return nil
}

// Close leaves the client open; it is shared with the idempotency guard.
func (r *RedisRelay) Close() error { return nil }
