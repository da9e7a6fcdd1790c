package queue

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// TaskStockLow fires when a counter drops to its low-stock threshold
	TaskStockLow = "stock:low"
)

type StockLowPayload struct {
	SKU       string `json:"sku"`
	JerseyID  uint   `json:"jersey_id"`
	Quantity  int    `json:"quantity"`
	Threshold int    `json:"threshold"`
	Version   int64  `json:"version"`
}

func NewStockLowTask(payload StockLowPayload) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskStockLow, body), nil
}
