// Package coupon holds the pool of single-use promo codes.
package coupon

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"

	"github.com/rl1809/jersey-pos/internal/core/domain"
	"github.com/rl1809/jersey-pos/internal/logger"
	"github.com/rl1809/jersey-pos/internal/port"
)

var tracer = otel.Tracer("github.com/rl1809/jersey-pos/internal/core/coupon")

// Pool serializes every status change behind one mutex. The persisted claim runs
// inside that section, so a code leaves the in-memory pool only once the store
// has accepted it.
type Pool struct {
	mu        sync.Mutex
	store     port.CouponStore
	publisher port.EventPublisher
	available []domain.Coupon
	known     map[string]struct{}
	now       func() time.Time
}

func NewPool(store port.CouponStore, publisher port.EventPublisher) *Pool {
	return &Pool{
		store:     store,
		publisher: publisher,
		known:     make(map[string]struct{}),
		now:       time.Now,
	}
}

// Load rebuilds the pool from the store.
func (p *Pool) Load(ctx context.Context) error {
	available, err := p.store.ListCoupons(ctx, domain.CouponStatusAvailable)
	if err != nil {
		return fmt.Errorf("load available coupons: %w", err)
	}
	claimed, err := p.store.ListCoupons(ctx, domain.CouponStatusClaimed)
	if err != nil {
		return fmt.Errorf("load claimed coupons: %w", err)
	}
	sortFIFO(available)

	known := make(map[string]struct{}, len(available)+len(claimed))
	for _, c := range available {
		known[c.Code] = struct{}{}
	}
	for _, c := range claimed {
		known[c.Code] = struct{}{}
	}

	p.mu.Lock()
	p.available = available
	p.known = known
	p.mu.Unlock()
	return nil
}

// Preview returns the codes an import would accept, without storing anything.
func (p *Pool) Preview(codes []string) []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.accept(codes)
}

// ImportBatch stores every code not seen before and returns the accepted coupons.
// Codes are trimmed; blanks and repeats are skipped silently.
func (p *Pool) ImportBatch(ctx context.Context, codes []string) ([]domain.Coupon, error) {
	ctx, span := tracer.Start(ctx, "coupon.import")
	defer span.End()

	p.mu.Lock()
	defer p.mu.Unlock()

	accepted := p.accept(codes)
	span.SetAttributes(attribute.Int("coupon.submitted", len(codes)), attribute.Int("coupon.accepted", len(accepted)))
	if len(accepted) == 0 {
		return nil, nil
	}

	now := p.now()
	batch := make([]domain.Coupon, len(accepted))
	for i, code := range accepted {
		batch[i] = domain.Coupon{Code: code, Status: domain.CouponStatusAvailable, ImportedAt: now}
	}
	stored, err := p.store.CreateCoupons(ctx, batch)
	if err != nil {
		span.SetStatus(otelcodes.Error, err.Error())
		return nil, fmt.Errorf("store coupons: %w", err)
	}

	events := make([]domain.Event, 0, len(stored))
	for _, c := range stored {
		p.known[c.Code] = struct{}{}
		p.available = append(p.available, c)
		events = append(events, domain.NewCouponImportedEvent(c, now))
	}
	p.publish(events...)
	return stored, nil
}

// ClaimOne hands out the oldest available coupon. Codes the store reports as
// already claimed elsewhere are dropped and the next one is tried.
func (p *Pool) ClaimOne(ctx context.Context) (domain.Coupon, error) {
	ctx, span := tracer.Start(ctx, "coupon.claim")
	defer span.End()

	p.mu.Lock()
	defer p.mu.Unlock()

	for len(p.available) > 0 {
		c, err := p.claimAt(ctx, 0)
		if errors.Is(err, domain.ErrNotFound) {
			continue
		}
		return c, err
	}
	span.SetStatus(otelcodes.Error, domain.ErrCouponPoolEmpty.Error())
	return domain.Coupon{}, domain.ErrCouponPoolEmpty
}

// Claim hands out one specific coupon, failing with ErrNotFound unless it is available.
func (p *Pool) Claim(ctx context.Context, id uint) (domain.Coupon, error) {
	ctx, span := tracer.Start(ctx, "coupon.claim")
	defer span.End()
	span.SetAttributes(attribute.Int64("coupon.id", int64(id)))

	p.mu.Lock()
	defer p.mu.Unlock()

	idx := slices.IndexFunc(p.available, func(c domain.Coupon) bool { return c.ID == id })
	if idx < 0 {
		return domain.Coupon{}, fmt.Errorf("%w: coupon %d is not available", domain.ErrNotFound, id)
	}
	return p.claimAt(ctx, idx)
}

// claimAt persists the claim and drops the coupon from the pool. A coupon the
// store no longer holds as available is dropped too, with ErrNotFound. Caller
// holds p.mu.
func (p *Pool) claimAt(ctx context.Context, idx int) (domain.Coupon, error) {
	c := p.available[idx]
	now := p.now()
	if err := p.store.ClaimCoupon(ctx, c.ID, now); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			p.available = slices.Delete(p.available, idx, idx+1)
			logger.Warnw("coupon_already_claimed", "coupon_id", c.ID)
		}
		return domain.Coupon{}, fmt.Errorf("claim coupon %d: %w", c.ID, err)
	}

	p.available = slices.Delete(p.available, idx, idx+1)
	c.Status = domain.CouponStatusClaimed
	c.ClaimedAt = &now
	p.publish(domain.NewCouponClaimedEvent(c, now))
	return c, nil
}

func (p *Pool) ListAvailable() []domain.Coupon {
	p.mu.Lock()
	defer p.mu.Unlock()
	return slices.Clone(p.available)
}

func (p *Pool) ListClaimed(ctx context.Context) ([]domain.Coupon, error) {
	return p.store.ListCoupons(ctx, domain.CouponStatusClaimed)
}

func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.available)
}

// accept filters codes against the known set and against each other. Caller holds p.mu.
func (p *Pool) accept(codes []string) []string {
	seen := make(map[string]struct{}, len(codes))
	var out []string
	for _, raw := range codes {
		code := strings.TrimSpace(raw)
		if code == "" {
			continue
		}
		if _, ok := p.known[code]; ok {
			continue
		}
		if _, ok := seen[code]; ok {
			continue
		}
		seen[code] = struct{}{}
		out = append(out, code)
	}
	return out
}

func (p *Pool) publish(events ...domain.Event) {
	if p.publisher != nil && len(events) > 0 {
		p.publisher.Publish(events...)
	}
}

func sortFIFO(coupons []domain.Coupon) {
	sort.SliceStable(coupons, func(i, j int) bool {
		if !coupons[i].ImportedAt.Equal(coupons[j].ImportedAt) {
			return coupons[i].ImportedAt.Before(coupons[j].ImportedAt)
		}
		return coupons[i].ID < coupons[j].ID
	})
}
