package reconcile_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rl1809/jersey-pos/internal/core/domain"
	"github.com/rl1809/jersey-pos/internal/core/reconcile"
)

var at = time.Date(2024, 9, 1, 10, 0, 0, 0, time.UTC)

func stock(sku string, jersey uint, qty int, version int64) domain.Event {
	return domain.NewStockUpdatedEvent(domain.StockLevel{SKU: sku, JerseyID: jersey, Quantity: qty, Version: version}, at)
}

func hydrated() *reconcile.Variants {
	v := reconcile.NewVariants(7)
	v.Hydrate([]domain.Variant{
		{ID: 1, JerseyID: 7, SKU: "RM24HH1", StockQuantity: 3, StockVersion: 5},
		{ID: 2, JerseyID: 7, SKU: "RM24HH2", StockQuantity: 1, StockVersion: 2},
		{ID: 9, JerseyID: 8, SKU: "BR24HH1", StockQuantity: 4},
	})
	return v
}

func TestVariants_BufferedUpdateConverges(t *testing.T) {
	v := hydrated()

	ev := stock("RM24HH1", 7, 2, 6)
	assert.True(t, v.Apply(ev))
	got, _ := v.BySKU("RM24HH1")
	assert.Equal(t, 2, got.StockQuantity)

	assert.False(t, v.Apply(ev), "duplicate delivery is a no-op")
	got, _ = v.BySKU("RM24HH1")
	assert.Equal(t, 2, got.StockQuantity)
}

func TestVariants_StaleUpdateIgnored(t *testing.T) {
	v := hydrated()

	// version 4 committed before the snapshot (version 5) was read
	assert.False(t, v.Apply(stock("RM24HH1", 7, 9, 4)))
	got, _ := v.BySKU("RM24HH1")
	assert.Equal(t, 3, got.StockQuantity)
}

func TestVariants_OutOfOrderSameSkuConverges(t *testing.T) {
	v := hydrated()
	newer, older := stock("RM24HH2", 7, 0, 4), stock("RM24HH2", 7, 5, 3)

	v.Apply(newer)
	v.Apply(older)
	got, _ := v.BySKU("RM24HH2")
	assert.Equal(t, 0, got.StockQuantity)
	assert.Equal(t, int64(4), got.StockVersion)
}

func TestVariants_ScopeAndUnknownSku(t *testing.T) {
	v := hydrated()
	assert.Equal(t, 2, v.Len(), "other jerseys are filtered at hydration")

	assert.False(t, v.Apply(stock("BR24HH1", 8, 0, 1)), "other jersey")
	assert.False(t, v.Apply(stock("RM24XX9", 7, 0, 1)), "unknown sku is discarded")
}

func TestVariants_CreateAndDelete(t *testing.T) {
	v := hydrated()
	created := domain.NewVariantCreatedEvent(domain.Variant{ID: 3, JerseyID: 7, SKU: "RM24HF1", StockQuantity: 6}, at)

	assert.True(t, v.Apply(created))
	assert.False(t, v.Apply(created))
	assert.Equal(t, 3, v.Len())
	assert.False(t, v.Apply(domain.NewVariantCreatedEvent(domain.Variant{ID: 10, JerseyID: 8, SKU: "X"}, at)))

	deleted := domain.NewVariantDeletedEvent(domain.Variant{ID: 3, JerseyID: 7, SKU: "RM24HF1"}, at)
	assert.True(t, v.Apply(deleted))
	assert.False(t, v.Apply(deleted))
	_, ok := v.BySKU("RM24HF1")
	assert.False(t, ok)
}

func TestVariants_JerseyDeleted(t *testing.T) {
	all := reconcile.NewVariants(0)
	all.Hydrate([]domain.Variant{
		{ID: 1, JerseyID: 7, SKU: "A"},
		{ID: 2, JerseyID: 8, SKU: "B"},
	})

	assert.True(t, all.Apply(domain.NewJerseyDeletedEvent(7, at)))
	assert.False(t, all.Apply(domain.NewJerseyDeletedEvent(7, at)))
	require.Equal(t, 1, all.Len())
	assert.Equal(t, "B", all.List()[0].SKU)
}

func TestSales_NewestFirstAndIdempotent(t *testing.T) {
	s := reconcile.NewSales()
	s.Hydrate([]domain.Sale{{ID: 2, SKU: "A"}, {ID: 1, SKU: "A"}})

	created := domain.NewSaleCreatedEvent(domain.Sale{ID: 3, SKU: "B"}, at)
	changed := reconcile.ApplyAll(s, []domain.Event{created, created, stock("B", 1, 0, 1)})
	assert.True(t, changed)

	list := s.List()
	require.Len(t, list, 3)
	assert.Equal(t, uint(3), list[0].ID)

	deleted := domain.NewSaleDeletedEvent(domain.Sale{ID: 1, SKU: "A"}, at)
	assert.True(t, s.Apply(deleted))
	assert.False(t, s.Apply(deleted))
	assert.Equal(t, 2, s.Len())
}

func TestSales_DeleteBeforeCreateIsNoop(t *testing.T) {
	s := reconcile.NewSales()
	assert.False(t, s.Apply(domain.NewSaleDeletedEvent(domain.Sale{ID: 5}, at)))
	assert.Equal(t, 0, s.Len())
}

func TestCoupons(t *testing.T) {
	c := reconcile.NewCoupons()
	c.Hydrate([]domain.Coupon{{ID: 1, Code: "A"}})

	imported := domain.NewCouponImportedEvent(domain.Coupon{ID: 2, Code: "B"}, at)
	assert.True(t, c.Apply(imported))
	assert.False(t, c.Apply(imported))

	claimed := domain.NewCouponClaimedEvent(domain.Coupon{ID: 1, Code: "A"}, at)
	assert.True(t, c.Apply(claimed))
	assert.False(t, c.Apply(claimed))

	list := c.List()
	require.Len(t, list, 1)
	assert.Equal(t, "B", list[0].Code)
}

func TestJerseys(t *testing.T) {
	j := reconcile.NewJerseys()
	j.Hydrate([]domain.Jersey{{ID: 1, Name: "Home"}, {ID: 2, Name: "Away"}})
	assert.True(t, j.Apply(domain.NewJerseyDeletedEvent(1, at)))
	assert.False(t, j.Apply(domain.NewJerseyDeletedEvent(1, at)))
	assert.False(t, j.Apply(stock("A", 2, 1, 1)))
	assert.Equal(t, 1, j.Len())
}
