package port

import (
	"context"

	"github.com/rl1809/jersey-pos/internal/core/domain"
)

type EventPublisher interface {
	// Publish hands over events of one committed change; it must not block
	Publish(events ...domain.Event)
}

// Relay forwards committed batches to an external system.
type Relay interface {
	Name() string
	Forward(ctx context.Context, batch []domain.Event) error
	Close() error
}

type StockNotifier interface {
	// NotifyLowStock is called after a change leaves a counter at or under its threshold
	NotifyLowStock(ctx context.Context, level domain.StockLevel) error
}
