package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/rl1809/jersey-pos/internal/core/domain"
	"github.com/rl1809/jersey-pos/internal/core/ledger"
	"github.com/rl1809/jersey-pos/internal/logger"
	"github.com/rl1809/jersey-pos/internal/port"
)

type SaleInput struct {
	RequestID      string
	SKU            string
	Quantity       int
	DiscountAmount domain.Money
	CustomerName   string
	Notes          string
}

// SaleService records sales and their reversals. A sale row and its stock
// change are committed by the same ledger hook, so either both exist or neither.
type SaleService struct {
	base
}

func NewSaleService(store port.Store, l *ledger.Ledger, publisher port.EventPublisher, opts ...Option) *SaleService {
	return &SaleService{base: newBase(store, l, publisher, opts)}
}

func (s *SaleService) ProcessSale(ctx context.Context, in SaleInput) (*domain.Sale, error) {
	ctx, span := tracer.Start(ctx, "sale.process", trace.WithAttributes(
		attribute.String("sku", in.SKU),
		attribute.Int("quantity", in.Quantity),
	))
	defer span.End()
	ctx = detach(ctx)

	in.SKU = strings.TrimSpace(in.SKU)
	variant, err := s.store.GetVariantBySKU(ctx, in.SKU)
	if err != nil {
		return nil, fail(span, err)
	}
	jersey, err := s.store.GetJersey(ctx, variant.JerseyID)
	if err != nil {
		return nil, fail(span, fmt.Errorf("jersey of %s: %w", in.SKU, err))
	}

	salePrice, err := domain.PriceSale(jersey.RetailPrice, in.Quantity, in.DiscountAmount)
	if err != nil {
		return nil, fail(span, err)
	}

	if in.RequestID != "" && s.guard != nil {
		ok, err := s.guard.Claim(ctx, idempotencyKey(in.RequestID))
		if err != nil {
			return nil, fail(span, fmt.Errorf("idempotency check failed: %w", err))
		}
		if !ok {
			return nil, fail(span, fmt.Errorf("%w: %s", domain.ErrDuplicateRequest, in.RequestID))
		}
	}

	sale := domain.Sale{
		SKU:            in.SKU,
		VariantID:      variant.ID,
		JerseyID:       variant.JerseyID,
		Quantity:       in.Quantity,
		OriginalPrice:  jersey.RetailPrice,
		DiscountAmount: in.DiscountAmount,
		SalePrice:      salePrice,
		CustomerName:   strings.TrimSpace(in.CustomerName),
		Notes:          in.Notes,
		RequestID:      in.RequestID,
	}
	s.linkCustomer(ctx, &sale)

	m, err := s.ledger.Decrement(ctx, in.SKU, in.Quantity, func(ctx context.Context, m ledger.Mutation) error {
		sale.SaleDate = s.now()
		if err := s.store.RecordSale(ctx, &sale); err != nil {
			return err
		}
		s.emit(
			domain.NewSaleCreatedEvent(sale, sale.SaleDate),
			domain.NewStockUpdatedEvent(m.Level, sale.SaleDate),
		)
		return nil
	})
	if err != nil {
		s.releaseRequest(ctx, in.RequestID)
		return nil, fail(span, err)
	}

	span.SetAttributes(attribute.Int64("sale.id", int64(sale.ID)), attribute.Int("stock.after", m.Level.Quantity))
	logger.Infow("sale_processed",
		"sale_id", sale.ID,
		"sku", sale.SKU,
		"quantity", sale.Quantity,
		"sale_price", sale.SalePrice.String(),
		"stock_after", m.Level.Quantity,
	)
	s.afterCommit(ctx, m)
	return &sale, nil
}

// DeleteSale reverses a sale, returning exactly its quantity to stock.
func (s *SaleService) DeleteSale(ctx context.Context, id uint) error {
	ctx, span := tracer.Start(ctx, "sale.delete", trace.WithAttributes(attribute.Int64("sale.id", int64(id))))
	defer span.End()
	ctx = detach(ctx)

	sale, err := s.store.GetSale(ctx, id)
	if err != nil {
		return fail(span, err)
	}

	m, err := s.ledger.Increment(ctx, sale.SKU, sale.Quantity, func(ctx context.Context, m ledger.Mutation) error {
		if err := s.store.RevertSale(ctx, *sale); err != nil {
			return err
		}
		at := s.now()
		s.emit(
			domain.NewSaleDeletedEvent(*sale, at),
			domain.NewStockUpdatedEvent(m.Level, at),
		)
		return nil
	})
	if err != nil {
		if errors.Is(err, domain.ErrUnknownSku) {
			err = fmt.Errorf("sale %d cannot be reverted, its variant is gone: %w", id, err)
		}
		return fail(span, err)
	}

	logger.Infow("sale_deleted", "sale_id", id, "sku", sale.SKU, "quantity", sale.Quantity, "stock_after", m.Level.Quantity)
	return nil
}

func (s *SaleService) GetSale(ctx context.Context, id uint) (*domain.Sale, error) {
	return s.store.GetSale(ctx, id)
}

// ListSales returns the most recent sales first.
func (s *SaleService) ListSales(ctx context.Context, limit int) ([]domain.Sale, error) {
	return s.store.ListSales(ctx, limit)
}

func (s *SaleService) linkCustomer(ctx context.Context, sale *domain.Sale) {
	if sale.CustomerName == "" {
		return
	}
	c, err := s.store.FindCustomerByName(ctx, sale.CustomerName)
	switch {
	case err == nil:
		sale.CustomerID = &c.ID
	case !errors.Is(err, domain.ErrNotFound):
		logger.Warnw("customer_lookup_failed", "customer_name", sale.CustomerName, "error", err)
	}
}

func (s *SaleService) releaseRequest(ctx context.Context, requestID string) {
	if requestID == "" || s.guard == nil {
		return
	}
	if err := s.guard.Release(ctx, idempotencyKey(requestID)); err != nil {
		logger.Warnw("idempotency_release_failed", "request_id", requestID, "error", err)
	}
}

func idempotencyKey(requestID string) string {
	return "sale:" + requestID
}
