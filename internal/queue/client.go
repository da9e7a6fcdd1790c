// Package queue enqueues background tasks on asynq.
package queue

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hibiken/asynq"

	"github.com/rl1809/jersey-pos/internal/config"
	"github.com/rl1809/jersey-pos/internal/core/domain"
)

const (
	DefaultQueue = "default"

	stockLowRetention = time.Hour
)

type Client struct {
	client       *asynq.Client
	enabled      bool
	defaultQueue string
}

// NewClient returns a disabled client when the queue is off; every enqueue is then a no-op.
func NewClient(cfg *config.QueueConfig) *Client {
	if cfg == nil || !cfg.Enabled {
		return &Client{defaultQueue: DefaultQueue}
	}
	return &Client{
		client:       asynq.NewClient(buildRedisOpt(cfg)),
		enabled:      true,
		defaultQueue: DefaultQueue,
	}
}

func (c *Client) Enabled() bool {
	return c != nil && c.enabled && c.client != nil
}

func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}

// NotifyLowStock enqueues one stock:low task per counter version, so a retried
// notification for the same change is dropped by asynq.
func (c *Client) NotifyLowStock(ctx context.Context, level domain.StockLevel) error {
	if !c.Enabled() {
		return nil
	}
	task, err := NewStockLowTask(StockLowPayload{
		SKU:       level.SKU,
		JerseyID:  level.JerseyID,
		Quantity:  level.Quantity,
		Threshold: level.Threshold,
		Version:   level.Version,
	})
	if err != nil {
		return err
	}
	_, err = c.client.EnqueueContext(ctx, task,
		asynq.Queue(c.defaultQueue),
		asynq.TaskID(stockLowTaskID(level)),
		asynq.Retention(stockLowRetention),
		asynq.MaxRetry(3),
	)
	if errors.Is(err, asynq.ErrTaskIDConflict) {
		return nil
	}
	return err
}

func stockLowTaskID(level domain.StockLevel) string {
	return fmt.Sprintf("%s:%s:%d", TaskStockLow, level.SKU, level.Version)
}

func BuildServerConfig(cfg *config.QueueConfig) (asynq.RedisClientOpt, asynq.Config) {
	concurrency := 5
	if cfg != nil && cfg.Concurrency > 0 {
		concurrency = cfg.Concurrency
	}
	return buildRedisOpt(cfg), asynq.Config{
		Concurrency: concurrency,
		Queues:      map[string]int{DefaultQueue: 1},
	}
}

func buildRedisOpt(cfg *config.QueueConfig) asynq.RedisClientOpt {
	host := "127.0.0.1"
	port := 6379
	password := ""
	db := 0
	if cfg != nil {
		if strings.TrimSpace(cfg.Host) != "" {
			host = strings.TrimSpace(cfg.Host)
		}
		if cfg.Port > 0 {
			port = cfg.Port
		}
		password = cfg.Password
		db = cfg.DB
	}
	return asynq.RedisClientOpt{
		Addr:     fmt.Sprintf("%s:%d", host, port),
		Password: password,
		DB:       db,
	}
}
