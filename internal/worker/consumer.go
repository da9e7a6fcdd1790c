// Package worker consumes asynq tasks.
package worker

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/hibiken/asynq"

	"github.com/rl1809/jersey-pos/internal/core/domain"
	"github.com/rl1809/jersey-pos/internal/logger"
	"github.com/rl1809/jersey-pos/internal/queue"
)

type VariantReader interface {
	GetVariantBySKU(ctx context.Context, sku string) (*domain.Variant, error)
}

type Consumer struct {
	variants VariantReader
	alert    func(domain.Variant)
}

func NewConsumer(variants VariantReader) *Consumer {
	return &Consumer{variants: variants, alert: logAlert}
}

func (c *Consumer) Register(mux *asynq.ServeMux) {
	if c == nil || mux == nil {
		logger.Debugw("worker_register_skip_nil", "consumer_nil", c == nil, "mux_nil", mux == nil)
		return
	}
	mux.HandleFunc(queue.TaskStockLow, c.handleStockLow)
}

// handleStockLow re-reads the variant; stock may have been received since the
// task was queued, in which case nothing is raised.
func (c *Consumer) handleStockLow(ctx context.Context, task *asynq.Task) error {
	var payload queue.StockLowPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		logger.Warnw("worker_stock_low_unmarshal_failed", "error", err)
		return errors.Join(err, asynq.SkipRetry)
	}
	if payload.SKU == "" {
		logger.Debugw("worker_stock_low_skip_invalid_payload")
		return nil
	}

	v, err := c.variants.GetVariantBySKU(ctx, payload.SKU)
	if errors.Is(err, domain.ErrUnknownSku) {
		logger.Debugw("worker_stock_low_skip_variant_gone", "sku", payload.SKU)
		return nil
	}
	if err != nil {
		logger.Warnw("worker_stock_low_fetch_variant_failed", "sku", payload.SKU, "error", err)
		return err
	}
	if !v.IsLowStock() {
		logger.Debugw("worker_stock_low_skip_restocked", "sku", v.SKU, "stock", v.StockQuantity)
		return nil
	}
	c.alert(*v)
	return nil
}

func logAlert(v domain.Variant) {
	logger.Warnw("low_stock_alert",
		"sku", v.SKU,
		"jersey_id", v.JerseyID,
		"stock", v.StockQuantity,
		"threshold", v.LowStockThreshold,
	)
}
