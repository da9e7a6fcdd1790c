package queue

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rl1809/jersey-pos/internal/config"
	"github.com/rl1809/jersey-pos/internal/core/domain"
)

func TestDisabledClientIsNoop(t *testing.T) {
	c := NewClient(&config.QueueConfig{Enabled: false})
	assert.False(t, c.Enabled())
	assert.NoError(t, c.NotifyLowStock(context.Background(), domain.StockLevel{SKU: "RM24HH1"}))
	assert.NoError(t, c.Close())
}

func TestNewStockLowTask(t *testing.T) {
	task, err := NewStockLowTask(StockLowPayload{SKU: "RM24HH1", Quantity: 1, Threshold: 2, Version: 9})
	require.NoError(t, err)
	assert.Equal(t, TaskStockLow, task.Type())

	var got StockLowPayload
	require.NoError(t, json.Unmarshal(task.Payload(), &got))
	assert.Equal(t, "RM24HH1", got.SKU)
	assert.Equal(t, int64(9), got.Version)
}

func TestStockLowTaskIDPerVersion(t *testing.T) {
	a := stockLowTaskID(domain.StockLevel{SKU: "RM24HH1", Version: 3})
	b := stockLowTaskID(domain.StockLevel{SKU: "RM24HH1", Version: 4})
	assert.Equal(t, "stock:low:RM24HH1:3", a)
	assert.NotEqual(t, a, b)
}

func TestBuildServerConfig(t *testing.T) {
	opt, cfg := BuildServerConfig(&config.QueueConfig{Host: " redis ", Port: 6380, DB: 2, Concurrency: 3})
	assert.Equal(t, "redis:6380", opt.Addr)
	assert.Equal(t, 2, opt.DB)
	assert.Equal(t, 3, cfg.Concurrency)
}
