package service

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/rl1809/jersey-pos/internal/core/domain"
)

// Mock Store
type mockStore struct {
	mu        sync.Mutex
	teams     map[uint]domain.Team
	jerseys   map[uint]domain.Jersey
	variants  map[uint]domain.Variant
	sales     map[uint]domain.Sale
	customers []domain.Customer
	coupons   map[uint]domain.Coupon
	nextID    uint

	failRecordSale error
	failAdjust     error
}

func newMockStore() *mockStore {
	return &mockStore{
		teams:    make(map[uint]domain.Team),
		jerseys:  make(map[uint]domain.Jersey),
		variants: make(map[uint]domain.Variant),
		sales:    make(map[uint]domain.Sale),
		coupons:  make(map[uint]domain.Coupon),
	}
}

func (m *mockStore) id() uint {
	m.nextID++
	return m.nextID
}

func (m *mockStore) CreateTeam(_ context.Context, team *domain.Team) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	team.ID = m.id()
	m.teams[team.ID] = *team
	return nil
}

func (m *mockStore) GetTeam(_ context.Context, id uint) (*domain.Team, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.teams[id]
	if !ok {
		return nil, fmt.Errorf("%w: team %d", domain.ErrNotFound, id)
	}
	return &t, nil
}

func (m *mockStore) ListTeams(context.Context) ([]domain.Team, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.Team, 0, len(m.teams))
	for _, t := range m.teams {
		out = append(out, t)
	}
	return out, nil
}

func (m *mockStore) CreateJersey(_ context.Context, jersey *domain.Jersey) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	jersey.ID = m.id()
	m.jerseys[jersey.ID] = *jersey
	return nil
}

func (m *mockStore) GetJersey(_ context.Context, id uint) (*domain.Jersey, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jerseys[id]
	if !ok {
		return nil, fmt.Errorf("%w: jersey %d", domain.ErrNotFound, id)
	}
	return &j, nil
}

func (m *mockStore) ListJerseys(context.Context) ([]domain.Jersey, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.Jersey, 0, len(m.jerseys))
	for _, j := range m.jerseys {
		out = append(out, j)
	}
	return out, nil
}

func (m *mockStore) DeleteJersey(_ context.Context, id uint, skus []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.jerseys[id]; !ok {
		return fmt.Errorf("%w: jersey %d", domain.ErrNotFound, id)
	}
	for _, v := range m.variants {
		if v.JerseyID == id && !slices.Contains(skus, v.SKU) {
			return fmt.Errorf("%w: jersey %d still has %s", domain.ErrConflict, id, v.SKU)
		}
	}
	for vid, v := range m.variants {
		if v.JerseyID == id {
			delete(m.variants, vid)
		}
	}
	delete(m.jerseys, id)
	return nil
}

func (m *mockStore) CreateCustomer(_ context.Context, c *domain.Customer) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c.ID = m.id()
	m.customers = append(m.customers, *c)
	return nil
}

func (m *mockStore) ListCustomers(context.Context) ([]domain.Customer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.Customer(nil), m.customers...), nil
}

func (m *mockStore) FindCustomerByName(_ context.Context, name string) (*domain.Customer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.customers {
		if c.Name == name {
			return &c, nil
		}
	}
	return nil, fmt.Errorf("%w: customer %q", domain.ErrNotFound, name)
}

func (m *mockStore) CreateVariant(_ context.Context, v *domain.Variant) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.jerseys[v.JerseyID]; !ok {
		return fmt.Errorf("%w: jersey %d", domain.ErrNotFound, v.JerseyID)
	}
	if _, ok := m.bySKU(v.SKU); ok {
		return fmt.Errorf("%w: %s", domain.ErrDuplicateSku, v.SKU)
	}
	v.ID = m.id()
	v.CreatedAt = time.Now()
	m.variants[v.ID] = *v
	return nil
}

func (m *mockStore) bySKU(sku string) (domain.Variant, bool) {
	for _, v := range m.variants {
		if v.SKU == sku {
			return v, true
		}
	}
	return domain.Variant{}, false
}

func (m *mockStore) GetVariant(_ context.Context, id uint) (*domain.Variant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.variants[id]
	if !ok {
		return nil, fmt.Errorf("%w: variant %d", domain.ErrNotFound, id)
	}
	return &v, nil
}

func (m *mockStore) GetVariantBySKU(_ context.Context, sku string) (*domain.Variant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.bySKU(sku)
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnknownSku, sku)
	}
	return &v, nil
}

func (m *mockStore) GetVariantDetail(ctx context.Context, sku string) (*domain.VariantDetail, error) {
	v, err := m.GetVariantBySKU(ctx, sku)
	if err != nil {
		return nil, err
	}
	return &domain.VariantDetail{Variant: *v, IsLowStock: v.IsLowStock()}, nil
}

func (m *mockStore) ListVariants(_ context.Context, jerseyID uint) ([]domain.Variant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Variant
	for _, v := range m.variants {
		if v.JerseyID == jerseyID {
			out = append(out, v)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *mockStore) DeleteVariant(_ context.Context, id uint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.variants[id]; !ok {
		return fmt.Errorf("%w: variant %d", domain.ErrNotFound, id)
	}
	delete(m.variants, id)
	return nil
}

func (m *mockStore) AdjustStock(_ context.Context, sku string, delta int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failAdjust != nil {
		return m.failAdjust
	}
	return m.adjust(sku, delta)
}

func (m *mockStore) adjust(sku string, delta int) error {
	v, ok := m.bySKU(sku)
	if !ok {
		return fmt.Errorf("%w: %s", domain.ErrUnknownSku, sku)
	}
	if v.StockQuantity+delta < 0 {
		return fmt.Errorf("%w: %s", domain.ErrInsufficientStock, sku)
	}
	v.StockQuantity += delta
	v.StockVersion++
	m.variants[v.ID] = v
	return nil
}

func (m *mockStore) ListStockLevels(context.Context) ([]domain.StockLevel, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.StockLevel, 0, len(m.variants))
	for _, v := range m.variants {
		out = append(out, domain.StockLevel{
			SKU: v.SKU, JerseyID: v.JerseyID, Quantity: v.StockQuantity,
			Threshold: v.LowStockThreshold, Version: v.StockVersion,
		})
	}
	return out, nil
}

func (m *mockStore) ListSkuSeeds(context.Context) ([]domain.SkuSeed, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.SkuSeed
	for _, v := range m.variants {
		j := m.jerseys[v.JerseyID]
		out = append(out, domain.SkuSeed{TeamName: j.TeamName, Season: j.Season, Type: j.Type, Size: v.Size, Sleeve: v.Sleeve, SKU: v.SKU})
	}
	return out, nil
}

func (m *mockStore) ListLowStock(context.Context) ([]domain.LowStockAlert, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.LowStockAlert
	for _, v := range m.variants {
		if v.IsLowStock() {
			out = append(out, domain.LowStockAlert{VariantID: v.ID, SKU: v.SKU, StockQuantity: v.StockQuantity})
		}
	}
	return out, nil
}

func (m *mockStore) RecordSale(_ context.Context, sale *domain.Sale) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failRecordSale != nil {
		return m.failRecordSale
	}
	if err := m.adjust(sale.SKU, -sale.Quantity); err != nil {
		return err
	}
	sale.ID = m.id()
	m.sales[sale.ID] = *sale
	return nil
}

func (m *mockStore) RevertSale(_ context.Context, sale domain.Sale) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sales[sale.ID]; !ok {
		return fmt.Errorf("%w: sale %d", domain.ErrNotFound, sale.ID)
	}
	if err := m.adjust(sale.SKU, sale.Quantity); err != nil {
		return err
	}
	delete(m.sales, sale.ID)
	return nil
}

func (m *mockStore) GetSale(_ context.Context, id uint) (*domain.Sale, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sales[id]
	if !ok {
		return nil, fmt.Errorf("%w: sale %d", domain.ErrNotFound, id)
	}
	return &s, nil
}

func (m *mockStore) ListSales(context.Context, int) ([]domain.Sale, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.Sale, 0, len(m.sales))
	for _, s := range m.sales {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (m *mockStore) CreateCoupons(_ context.Context, coupons []domain.Coupon) ([]domain.Coupon, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.Coupon, len(coupons))
	for i, c := range coupons {
		c.ID = m.id()
		m.coupons[c.ID] = c
		out[i] = c
	}
	return out, nil
}

func (m *mockStore) ListCoupons(_ context.Context, status domain.CouponStatus) ([]domain.Coupon, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Coupon
	for _, c := range m.coupons {
		if c.Status == status {
			out = append(out, c)
		}
	}
	return out, nil
}

func (m *mockStore) ClaimCoupon(_ context.Context, id uint, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.coupons[id]
	if !ok || c.Status != domain.CouponStatusAvailable {
		return errors.New("coupon not available")
	}
	c.Status = domain.CouponStatusClaimed
	c.ClaimedAt = &at
	m.coupons[id] = c
	return nil
}

func (m *mockStore) stockOf(sku string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, _ := m.bySKU(sku)
	return v.StockQuantity
}

func (m *mockStore) saleCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sales)
}

// Mock EventPublisher
type mockPublisher struct {
	mu      sync.Mutex
	batches [][]domain.Event
}

func (p *mockPublisher) Publish(events ...domain.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.batches = append(p.batches, append([]domain.Event(nil), events...))
}

func (p *mockPublisher) events() []domain.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []domain.Event
	for _, b := range p.batches {
		out = append(out, b...)
	}
	return out
}

// Mock IdempotencyGuard
type mockGuard struct {
	mu   sync.Mutex
	keys map[string]bool
}

func newMockGuard() *mockGuard {
	return &mockGuard{keys: make(map[string]bool)}
}

func (g *mockGuard) Claim(_ context.Context, key string) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.keys[key] {
		return false, nil
	}
	g.keys[key] = true
	return true, nil
}

func (g *mockGuard) Release(_ context.Context, key string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.keys, key)
	return nil
}

// Mock StockNotifier
type mockNotifier struct {
	mu     sync.Mutex
	levels []domain.StockLevel
}

func (n *mockNotifier) NotifyLowStock(_ context.Context, level domain.StockLevel) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.levels = append(n.levels, level)
	return nil
}

func (n *mockNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.levels)
}
