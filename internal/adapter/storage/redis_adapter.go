package storage

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	idempotencyKeyPrefix  = "idem:"
	defaultIdempotencyTTL = 24 * time.Hour
)

// releaseScript deletes the key only while it still holds our token, so a
// late release cannot drop a claim that expired and was taken by another request.
var releaseScript = redis.NewScript(`
if redis.call('GET', KEYS[1]) == ARGV[1] then
	return redis.call('DEL', KEYS[1])
end
return 0
`)

type RedisIdempotency struct {
	client *redis.Client
	ttl    time.Duration
	token  string
}

func NewRedisIdempotency(client *redis.Client, ttl time.Duration) *RedisIdempotency {
	if ttl <= 0 {
		ttl = defaultIdempotencyTTL
	}
	return &RedisIdempotency{client: client, ttl: ttl, token: uuid.NewString()}
}

func (r *RedisIdempotency) Claim(ctx context.Context, key string) (bool, error) {
	return r.client.SetNX(ctx, idempotencyKeyPrefix+key, r.token, r.ttl).Result()
}

func (r *RedisIdempotency) Release(ctx context.Context, key string) error {
	return releaseScript.Run(ctx, r.client, []string{idempotencyKeyPrefix + key}, r.token).Err()
}
