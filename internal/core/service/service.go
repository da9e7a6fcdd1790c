package service

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/rl1809/jersey-pos/internal/core/domain"
	"github.com/rl1809/jersey-pos/internal/core/ledger"
	"github.com/rl1809/jersey-pos/internal/logger"
	"github.com/rl1809/jersey-pos/internal/port"
)

var tracer = otel.Tracer("github.com/rl1809/jersey-pos/internal/core/service")

type Option func(*base)

// WithIdempotency enables request_id deduplication for sales.
func WithIdempotency(guard port.IdempotencyGuard) Option {
	return func(b *base) { b.guard = guard }
}

// WithNotifier receives counters that drop to their low-stock threshold.
func WithNotifier(n port.StockNotifier) Option {
	return func(b *base) { b.notifier = n }
}

func WithClock(now func() time.Time) Option {
	return func(b *base) { b.now = now }
}

// base carries what both services share.
type base struct {
	store     port.Store
	ledger    *ledger.Ledger
	publisher port.EventPublisher
	guard     port.IdempotencyGuard
	notifier  port.StockNotifier
	now       func() time.Time
}

func newBase(store port.Store, l *ledger.Ledger, publisher port.EventPublisher, opts []Option) base {
	b := base{store: store, ledger: l, publisher: publisher, now: time.Now}
	for _, opt := range opts {
		opt(&b)
	}
	return b
}

// detach keeps a request running to completion once it has been accepted,
// whatever happens to the client connection.
func detach(ctx context.Context) context.Context {
	return context.WithoutCancel(ctx)
}

func (b *base) emit(events ...domain.Event) {
	if b.publisher != nil {
		b.publisher.Publish(events...)
	}
}

// afterCommit runs outside every lock.
func (b *base) afterCommit(ctx context.Context, m ledger.Mutation) {
	if b.notifier == nil || !m.CrossedLowThreshold() {
		return
	}
	if err := b.notifier.NotifyLowStock(ctx, m.Level); err != nil {
		logger.Warnw("low_stock_notify_failed", "sku", m.Level.SKU, "error", err)
	}
}

func fail(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}
