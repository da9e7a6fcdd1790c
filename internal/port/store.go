package port

import (
	"context"
	"time"

	"github.com/rl1809/jersey-pos/internal/core/domain"
)

// Lookups return an error wrapping domain.ErrNotFound (or domain.ErrUnknownSku
// for SKU lookups) when the row does not exist.

type CatalogStore interface {
	CreateTeam(ctx context.Context, team *domain.Team) error
	GetTeam(ctx context.Context, id uint) (*domain.Team, error)
	ListTeams(ctx context.Context) ([]domain.Team, error)

	CreateJersey(ctx context.Context, jersey *domain.Jersey) error
	GetJersey(ctx context.Context, id uint) (*domain.Jersey, error)
	ListJerseys(ctx context.Context) ([]domain.Jersey, error)

	// DeleteJersey removes the jersey and the listed variants in one transaction.
	// It fails with ErrConflict if the jersey still has other variants.
	DeleteJersey(ctx context.Context, id uint, skus []string) error

	CreateCustomer(ctx context.Context, customer *domain.Customer) error
	ListCustomers(ctx context.Context) ([]domain.Customer, error)
	FindCustomerByName(ctx context.Context, name string) (*domain.Customer, error)
}

type VariantStore interface {
	// CreateVariant fails with domain.ErrDuplicateSku on a taken SKU
	CreateVariant(ctx context.Context, variant *domain.Variant) error
	GetVariant(ctx context.Context, id uint) (*domain.Variant, error)
	GetVariantBySKU(ctx context.Context, sku string) (*domain.Variant, error)
	GetVariantDetail(ctx context.Context, sku string) (*domain.VariantDetail, error)
	ListVariants(ctx context.Context, jerseyID uint) ([]domain.Variant, error)
	DeleteVariant(ctx context.Context, id uint) error

	// AdjustStock applies delta and bumps the stock version, refusing to go below zero
	AdjustStock(ctx context.Context, sku string, delta int) error

	ListStockLevels(ctx context.Context) ([]domain.StockLevel, error)
	ListSkuSeeds(ctx context.Context) ([]domain.SkuSeed, error)
	ListLowStock(ctx context.Context) ([]domain.LowStockAlert, error)
}

type SaleStore interface {
	// RecordSale inserts the sale and decrements its variant in one transaction
	RecordSale(ctx context.Context, sale *domain.Sale) error

	// RevertSale deletes the sale and restores its quantity in one transaction
	RevertSale(ctx context.Context, sale domain.Sale) error

	GetSale(ctx context.Context, id uint) (*domain.Sale, error)
	ListSales(ctx context.Context, limit int) ([]domain.Sale, error)
}

type CouponStore interface {
	// CreateCoupons inserts the batch and returns it with ids assigned
	CreateCoupons(ctx context.Context, coupons []domain.Coupon) ([]domain.Coupon, error)
	ListCoupons(ctx context.Context, status domain.CouponStatus) ([]domain.Coupon, error)

	// ClaimCoupon flips one available coupon to claimed, failing if it is not available
	ClaimCoupon(ctx context.Context, id uint, at time.Time) error
}

type Store interface {
	CatalogStore
	VariantStore
	SaleStore
	CouponStore
}
