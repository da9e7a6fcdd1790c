package service

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/rl1809/jersey-pos/internal/adapter/storage"
	"github.com/rl1809/jersey-pos/internal/core/domain"
	"github.com/rl1809/jersey-pos/internal/core/ledger"
	"github.com/rl1809/jersey-pos/internal/core/sku"
)

var sqliteSeq atomic.Int64

// newSqliteServices wires the services over a real sqlite store.
func newSqliteServices(t *testing.T) (*InventoryService, *SaleService, *storage.GormStore, *mockPublisher) {
	t.Helper()
	dsn := fmt.Sprintf("file:servicetest_%d?mode=memory&cache=shared", sqliteSeq.Add(1))
	db, err := storage.Open(storage.Options{Driver: "sqlite", DSN: dsn})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { storage.Close(db) })

	store := storage.NewGormStore(db)
	l := ledger.New()
	pub := &mockPublisher{}
	inventory := NewInventoryService(store, l, pub, sku.NewEncoder(sku.NewRegistry()))
	sales := NewSaleService(store, l, pub, WithIdempotency(newMockGuard()))
	return inventory, sales, store, pub
}

func TestSqlite_SaleAppliesDiscountToStoredRetailPrice(t *testing.T) {
	inventory, sales, store, pub := newSqliteServices(t)
	ctx := context.Background()

	team := domain.Team{Name: "Real Madrid"}
	if err := inventory.CreateTeam(ctx, &team); err != nil {
		t.Fatalf("CreateTeam failed: %v", err)
	}
	jersey := domain.Jersey{TeamID: team.ID, Name: "Home", Season: "2024/25", Type: "Home", RetailPrice: domain.MoneyFromInt(50)}
	if err := inventory.CreateJersey(ctx, &jersey); err != nil {
		t.Fatalf("CreateJersey failed: %v", err)
	}
	if _, err := inventory.CreateVariant(ctx, VariantInput{
		JerseyID: jersey.ID, Size: "M", Sleeve: "H", SKU: "RM24HH1", StockQuantity: 5, LowStockThreshold: 1,
	}); err != nil {
		t.Fatalf("CreateVariant failed: %v", err)
	}

	sale, err := sales.ProcessSale(ctx, SaleInput{SKU: "RM24HH1", Quantity: 2, DiscountAmount: domain.MoneyFromInt(10)})
	if err != nil {
		t.Fatalf("ProcessSale failed: %v", err)
	}
	if sale.OriginalPrice.String() != "50.00" {
		t.Errorf("expected original price 50.00, got %s", sale.OriginalPrice)
	}
	if sale.SalePrice.String() != "45.00" {
		t.Errorf("expected sale price 45.00, got %s", sale.SalePrice)
	}

	stored, err := store.GetVariantBySKU(ctx, "RM24HH1")
	if err != nil {
		t.Fatalf("GetVariantBySKU failed: %v", err)
	}
	if stored.StockQuantity != 3 {
		t.Errorf("expected stored stock 3, got %d", stored.StockQuantity)
	}

	var update *domain.StockUpdated
	for _, ev := range pub.events() {
		if p, ok := ev.Payload.(domain.StockUpdated); ok {
			update = &p
		}
	}
	if update == nil || update.NewQuantity != 3 || update.SKU != "RM24HH1" {
		t.Errorf("expected stock:updated with new_quantity 3, got %+v", update)
	}
}

func TestSqlite_DeleteJerseyRemovesVariants(t *testing.T) {
	inventory, _, store, _ := newSqliteServices(t)
	ctx := context.Background()

	team := domain.Team{Name: "Roma"}
	if err := inventory.CreateTeam(ctx, &team); err != nil {
		t.Fatalf("CreateTeam failed: %v", err)
	}
	jersey := domain.Jersey{TeamID: team.ID, Name: "Away", Season: "2023/24", Type: "Away", RetailPrice: domain.MoneyFromInt(70)}
	if err := inventory.CreateJersey(ctx, &jersey); err != nil {
		t.Fatalf("CreateJersey failed: %v", err)
	}
	for _, size := range []string{"M", "L"} {
		if _, err := inventory.CreateVariant(ctx, VariantInput{JerseyID: jersey.ID, Size: size, Sleeve: "H", StockQuantity: 2}); err != nil {
			t.Fatalf("CreateVariant %s failed: %v", size, err)
		}
	}

	if err := inventory.DeleteJersey(ctx, jersey.ID); err != nil {
		t.Fatalf("DeleteJersey failed: %v", err)
	}
	left, err := store.ListVariants(ctx, jersey.ID)
	if err != nil {
		t.Fatalf("ListVariants failed: %v", err)
	}
	if len(left) != 0 {
		t.Errorf("expected no variants left, got %d", len(left))
	}
	if _, err := inventory.CreateVariant(ctx, VariantInput{JerseyID: jersey.ID, Size: "S", Sleeve: "H"}); err == nil {
		t.Error("expected creating a variant for a deleted jersey to fail")
	}
}
