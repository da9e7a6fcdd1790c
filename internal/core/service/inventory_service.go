package service

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/rl1809/jersey-pos/internal/core/domain"
	"github.com/rl1809/jersey-pos/internal/core/ledger"
	"github.com/rl1809/jersey-pos/internal/core/sku"
	"github.com/rl1809/jersey-pos/internal/logger"
	"github.com/rl1809/jersey-pos/internal/port"
)

type VariantInput struct {
	JerseyID          uint
	Size              string
	Sleeve            string
	SKU               string // empty means generate
	StockQuantity     int
	LowStockThreshold int
}

// InventoryService owns catalog changes that touch stock counters: variants,
// receipts and jersey deletion. Plain reference data passes straight through.
type InventoryService struct {
	base
	encoder *sku.Encoder
}

func NewInventoryService(store port.Store, l *ledger.Ledger, publisher port.EventPublisher, encoder *sku.Encoder, opts ...Option) *InventoryService {
	return &InventoryService{base: newBase(store, l, publisher, opts), encoder: encoder}
}

// Bootstrap loads the ledger from the store and teaches the encoder every team
// code already in use.
func (s *InventoryService) Bootstrap(ctx context.Context) error {
	levels, err := s.store.ListStockLevels(ctx)
	if err != nil {
		return fmt.Errorf("load stock levels: %w", err)
	}
	s.ledger.Load(levels)

	seeds, err := s.store.ListSkuSeeds(ctx)
	if err != nil {
		return fmt.Errorf("load sku seeds: %w", err)
	}
	learned := 0
	for _, seed := range seeds {
		if s.encoder.Seed(seed) {
			learned++
		}
	}
	logger.Infow("inventory_bootstrapped", "variants", len(levels), "team_codes_learned", learned)
	return nil
}

func (s *InventoryService) CreateVariant(ctx context.Context, in VariantInput) (*domain.Variant, error) {
	ctx, span := tracer.Start(ctx, "variant.create", trace.WithAttributes(attribute.Int64("jersey.id", int64(in.JerseyID))))
	defer span.End()
	ctx = detach(ctx)

	jersey, err := s.store.GetJersey(ctx, in.JerseyID)
	if err != nil {
		return nil, fail(span, err)
	}
	sleeve, err := sku.NormalizeSleeve(in.Sleeve)
	if err != nil {
		return nil, fail(span, err)
	}
	size := strings.TrimSpace(in.Size)
	if size == "" {
		return nil, fail(span, fmt.Errorf("%w: size is required", domain.ErrInvalidInput))
	}

	code := strings.TrimSpace(in.SKU)
	if code == "" {
		if code, err = s.encoder.Encode(identity(jersey), size, sleeve); err != nil {
			return nil, fail(span, err)
		}
	}
	span.SetAttributes(attribute.String("sku", code))

	variant := domain.Variant{
		JerseyID:          jersey.ID,
		Size:              size,
		Sleeve:            sleeve,
		SKU:               code,
		StockQuantity:     in.StockQuantity,
		LowStockThreshold: in.LowStockThreshold,
	}
	level := domain.StockLevel{SKU: code, JerseyID: jersey.ID, Quantity: in.StockQuantity, Threshold: in.LowStockThreshold}

	m, err := s.ledger.CreateVariant(ctx, level, func(ctx context.Context, _ ledger.Mutation) error {
		if err := s.store.CreateVariant(ctx, &variant); err != nil {
			return err
		}
		s.emit(domain.NewVariantCreatedEvent(variant, variant.CreatedAt))
		return nil
	})
	if err != nil {
		return nil, fail(span, err)
	}

	s.encoder.Seed(domain.SkuSeed{TeamName: jersey.TeamName, Season: jersey.Season, Type: jersey.Type, Size: size, Sleeve: sleeve, SKU: code})
	logger.Infow("variant_created", "variant_id", variant.ID, "sku", code, "stock", variant.StockQuantity)
	s.afterCommit(ctx, m)
	return &variant, nil
}

func (s *InventoryService) DeleteVariant(ctx context.Context, id uint) error {
	ctx, span := tracer.Start(ctx, "variant.delete", trace.WithAttributes(attribute.Int64("variant.id", int64(id))))
	defer span.End()
	ctx = detach(ctx)

	variant, err := s.store.GetVariant(ctx, id)
	if err != nil {
		return fail(span, err)
	}

	_, err = s.ledger.DeleteVariant(ctx, variant.SKU, func(ctx context.Context, _ ledger.Mutation) error {
		if err := s.store.DeleteVariant(ctx, id); err != nil {
			return err
		}
		s.emit(domain.NewVariantDeletedEvent(*variant, s.now()))
		return nil
	})
	if err != nil {
		return fail(span, err)
	}
	logger.Infow("variant_deleted", "variant_id", id, "sku", variant.SKU)
	return nil
}

// ReceiveStock books incoming units and returns the new level.
func (s *InventoryService) ReceiveStock(ctx context.Context, code string, qty int) (domain.StockLevel, error) {
	ctx, span := tracer.Start(ctx, "stock.receive", trace.WithAttributes(
		attribute.String("sku", code),
		attribute.Int("quantity", qty),
	))
	defer span.End()
	ctx = detach(ctx)

	code = strings.TrimSpace(code)
	m, err := s.ledger.Increment(ctx, code, qty, func(ctx context.Context, m ledger.Mutation) error {
		if err := s.store.AdjustStock(ctx, code, m.Delta); err != nil {
			return err
		}
		s.emit(domain.NewStockUpdatedEvent(m.Level, s.now()))
		return nil
	})
	if err != nil {
		return domain.StockLevel{}, fail(span, err)
	}
	logger.Infow("stock_received", "sku", code, "quantity", qty, "stock_after", m.Level.Quantity)
	return m.Level, nil
}

// DeleteJersey removes the jersey with all its variants and counters.
func (s *InventoryService) DeleteJersey(ctx context.Context, id uint) error {
	ctx, span := tracer.Start(ctx, "jersey.delete", trace.WithAttributes(attribute.Int64("jersey.id", int64(id))))
	defer span.End()
	ctx = detach(ctx)

	if _, err := s.store.GetJersey(ctx, id); err != nil {
		return fail(span, err)
	}

	removed, err := s.ledger.DeleteJersey(ctx, id, func(ctx context.Context, ms []ledger.Mutation) error {
		skus := make([]string, len(ms))
		for i, m := range ms {
			skus[i] = m.Level.SKU
		}
		variants, err := s.store.ListVariants(ctx, id)
		if err != nil {
			return err
		}
		if err := s.store.DeleteJersey(ctx, id, skus); err != nil {
			return err
		}
		at := s.now()
		events := make([]domain.Event, 0, len(skus)+1)
		for _, v := range variants {
			if slices.Contains(skus, v.SKU) {
				events = append(events, domain.NewVariantDeletedEvent(v, at))
			}
		}
		s.emit(append(events, domain.NewJerseyDeletedEvent(id, at))...)
		return nil
	})
	if err != nil {
		return fail(span, err)
	}
	logger.Infow("jersey_deleted", "jersey_id", id, "variants_removed", len(removed))
	return nil
}

// PreviewSKU shows the SKU a new variant would get. It binds no team code.
func (s *InventoryService) PreviewSKU(ctx context.Context, jerseyID uint, size, sleeve string) (string, error) {
	jersey, err := s.store.GetJersey(ctx, jerseyID)
	if err != nil {
		return "", err
	}
	return s.encoder.Preview(identity(jersey), strings.TrimSpace(size), sleeve)
}

func (s *InventoryService) CreateTeam(ctx context.Context, team *domain.Team) error {
	team.Name = strings.TrimSpace(team.Name)
	if team.Name == "" {
		return fmt.Errorf("%w: team name is required", domain.ErrInvalidInput)
	}
	return s.store.CreateTeam(ctx, team)
}

func (s *InventoryService) ListTeams(ctx context.Context) ([]domain.Team, error) {
	return s.store.ListTeams(ctx)
}

func (s *InventoryService) CreateJersey(ctx context.Context, jersey *domain.Jersey) error {
	jersey.Name = strings.TrimSpace(jersey.Name)
	switch {
	case jersey.Name == "":
		return fmt.Errorf("%w: jersey name is required", domain.ErrInvalidInput)
	case jersey.RetailPrice.IsNegative() || jersey.CostPrice.IsNegative():
		return fmt.Errorf("%w: prices must not be negative", domain.ErrInvalidInput)
	}
	team, err := s.store.GetTeam(ctx, jersey.TeamID)
	if err != nil {
		return err
	}
	jersey.TeamName = team.Name
	return s.store.CreateJersey(ctx, jersey)
}

func (s *InventoryService) GetJersey(ctx context.Context, id uint) (*domain.Jersey, error) {
	return s.store.GetJersey(ctx, id)
}

func (s *InventoryService) ListJerseys(ctx context.Context) ([]domain.Jersey, error) {
	return s.store.ListJerseys(ctx)
}

func (s *InventoryService) ListVariants(ctx context.Context, jerseyID uint) ([]domain.Variant, error) {
	if _, err := s.store.GetJersey(ctx, jerseyID); err != nil {
		return nil, err
	}
	return s.store.ListVariants(ctx, jerseyID)
}

// Snapshot returns the variants of one jersey, or of every jersey when jerseyID is 0.
// Observers load it after subscribing to the event stream.
func (s *InventoryService) Snapshot(ctx context.Context, jerseyID uint) ([]domain.Variant, error) {
	if jerseyID != 0 {
		return s.ListVariants(ctx, jerseyID)
	}
	jerseys, err := s.store.ListJerseys(ctx)
	if err != nil {
		return nil, err
	}
	var out []domain.Variant
	for _, j := range jerseys {
		variants, err := s.store.ListVariants(ctx, j.ID)
		if err != nil {
			return nil, err
		}
		out = append(out, variants...)
	}
	return out, nil
}

// QuickView is the variants-by-sku snapshot.
func (s *InventoryService) QuickView(ctx context.Context, code string) (*domain.VariantDetail, error) {
	return s.store.GetVariantDetail(ctx, strings.TrimSpace(code))
}

func (s *InventoryService) LowStock(ctx context.Context) ([]domain.LowStockAlert, error) {
	return s.store.ListLowStock(ctx)
}

func (s *InventoryService) CreateCustomer(ctx context.Context, c *domain.Customer) error {
	c.Name = strings.TrimSpace(c.Name)
	if c.Name == "" {
		return fmt.Errorf("%w: customer name is required", domain.ErrInvalidInput)
	}
	return s.store.CreateCustomer(ctx, c)
}

func (s *InventoryService) ListCustomers(ctx context.Context) ([]domain.Customer, error) {
	return s.store.ListCustomers(ctx)
}

func identity(j *domain.Jersey) sku.Identity {
	return sku.Identity{Team: j.TeamName, Season: j.Season, Type: j.Type}
}
