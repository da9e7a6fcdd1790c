package storage

import (
	"time"

	"github.com/rl1809/jersey-pos/internal/core/domain"
)

type teamRecord struct {
	ID        uint   `gorm:"primaryKey"`
	Name      string `gorm:"size:120;uniqueIndex;not null"`
	League    string `gorm:"size:120"`
	Country   string `gorm:"size:120"`
	CreatedAt time.Time
}

func (teamRecord) TableName() string { return "teams" }

type jerseyRecord struct {
	ID          uint         `gorm:"primaryKey"`
	TeamID      uint         `gorm:"index;not null"`
	Name        string       `gorm:"size:200;not null"`
	Season      string       `gorm:"size:32"`
	Type        string       `gorm:"size:32"`
	Supplier    string       `gorm:"size:120"`
	CostPrice   domain.Money `gorm:"type:decimal(12,2);not null"`
	RetailPrice domain.Money `gorm:"type:decimal(12,2);not null"`
	Description string       `gorm:"type:text"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (jerseyRecord) TableName() string { return "jerseys" }

type variantRecord struct {
	ID                uint   `gorm:"primaryKey"`
	JerseyID          uint   `gorm:"index;not null"`
	Size              string `gorm:"size:16;not null"`
	Sleeve            string `gorm:"size:1;not null"`
	SKU               string `gorm:"column:sku;size:64;uniqueIndex;not null"`
	StockQuantity     int    `gorm:"not null"`
	LowStockThreshold int    `gorm:"not null"`
	StockVersion      int64  `gorm:"not null"`
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

func (variantRecord) TableName() string { return "variants" }

type saleRecord struct {
	ID             uint         `gorm:"primaryKey"`
	SKU            string       `gorm:"column:sku;size:64;index;not null"`
	VariantID      uint         `gorm:"index"`
	JerseyID       uint         `gorm:"index"`
	Quantity       int          `gorm:"not null"`
	OriginalPrice  domain.Money `gorm:"type:decimal(12,2);not null"`
	DiscountAmount domain.Money `gorm:"type:decimal(12,2);not null"`
	SalePrice      domain.Money `gorm:"type:decimal(12,2);not null"`
	CustomerID     *uint        `gorm:"index"`
	CustomerName   string       `gorm:"size:200"`
	Notes          string       `gorm:"type:text"`
	RequestID      string       `gorm:"size:64;index"`
	SaleDate       time.Time    `gorm:"index;not null"`
}

func (saleRecord) TableName() string { return "sales" }

type customerRecord struct {
	ID        uint   `gorm:"primaryKey"`
	Name      string `gorm:"size:200;index;not null"`
	Email     string `gorm:"size:200"`
	Phone     string `gorm:"size:64"`
	Address   string `gorm:"type:text"`
	CreatedAt time.Time
}

func (customerRecord) TableName() string { return "customers" }

type couponRecord struct {
	ID         uint       `gorm:"primaryKey"`
	Code       string     `gorm:"size:191;uniqueIndex;not null"`
	Status     string     `gorm:"size:16;index;not null"`
	ImportedAt time.Time  `gorm:"index;not null"`
	ClaimedAt  *time.Time
}

func (couponRecord) TableName() string { return "coupons" }

func allModels() []interface{} {
	return []interface{}{
		&teamRecord{},
		&jerseyRecord{},
		&variantRecord{},
		&saleRecord{},
		&customerRecord{},
		&couponRecord{},
	}
}

func (r teamRecord) toDomain() domain.Team {
	return domain.Team{ID: r.ID, Name: r.Name, League: r.League, Country: r.Country, CreatedAt: r.CreatedAt}
}

func (r jerseyRecord) toDomain(teamName string) domain.Jersey {
	return domain.Jersey{
		ID:          r.ID,
		TeamID:      r.TeamID,
		TeamName:    teamName,
		Name:        r.Name,
		Season:      r.Season,
		Type:        r.Type,
		Supplier:    r.Supplier,
		CostPrice:   r.CostPrice,
		RetailPrice: r.RetailPrice,
		Description: r.Description,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
}

func (r variantRecord) toDomain() domain.Variant {
	return domain.Variant{
		ID:                r.ID,
		JerseyID:          r.JerseyID,
		Size:              r.Size,
		Sleeve:            r.Sleeve,
		SKU:               r.SKU,
		StockQuantity:     r.StockQuantity,
		LowStockThreshold: r.LowStockThreshold,
		StockVersion:      r.StockVersion,
		CreatedAt:         r.CreatedAt,
		UpdatedAt:         r.UpdatedAt,
	}
}

func (r saleRecord) toDomain() domain.Sale {
	return domain.Sale{
		ID:             r.ID,
		SKU:            r.SKU,
		VariantID:      r.VariantID,
		JerseyID:       r.JerseyID,
		Quantity:       r.Quantity,
		OriginalPrice:  r.OriginalPrice,
		DiscountAmount: r.DiscountAmount,
		SalePrice:      r.SalePrice,
		CustomerID:     r.CustomerID,
		CustomerName:   r.CustomerName,
		Notes:          r.Notes,
		RequestID:      r.RequestID,
		SaleDate:       r.SaleDate,
	}
}

func saleFromDomain(s domain.Sale) saleRecord {
	return saleRecord{
		ID:             s.ID,
		SKU:            s.SKU,
		VariantID:      s.VariantID,
		JerseyID:       s.JerseyID,
		Quantity:       s.Quantity,
		OriginalPrice:  s.OriginalPrice,
		DiscountAmount: s.DiscountAmount,
		SalePrice:      s.SalePrice,
		CustomerID:     s.CustomerID,
		CustomerName:   s.CustomerName,
		Notes:          s.Notes,
		RequestID:      s.RequestID,
		SaleDate:       s.SaleDate,
	}
}

func (r customerRecord) toDomain() domain.Customer {
	return domain.Customer{ID: r.ID, Name: r.Name, Email: r.Email, Phone: r.Phone, Address: r.Address, CreatedAt: r.CreatedAt}
}

func (r couponRecord) toDomain() domain.Coupon {
	return domain.Coupon{
		ID:         r.ID,
		Code:       r.Code,
		Status:     domain.CouponStatus(r.Status),
		ImportedAt: r.ImportedAt,
		ClaimedAt:  r.ClaimedAt,
	}
}
