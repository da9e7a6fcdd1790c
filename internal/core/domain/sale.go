package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Sale is immutable once recorded; the only change allowed is a full reversal.
type Sale struct {
	ID             uint      `json:"id"`
	SKU            string    `json:"sku"`
	VariantID      uint      `json:"variant_id"`
	JerseyID       uint      `json:"jersey_id"`
	Quantity       int       `json:"quantity"`
	OriginalPrice  Money     `json:"original_price"`
	DiscountAmount Money     `json:"discount_amount"`
	SalePrice      Money     `json:"sale_price"`
	CustomerID     *uint     `json:"customer_id,omitempty"`
	CustomerName   string    `json:"customer_name,omitempty"`
	Notes          string    `json:"notes,omitempty"`
	RequestID      string    `json:"request_id,omitempty"`
	SaleDate       time.Time `json:"sale_date"`
}

// PriceSale returns the per-unit sale price after spreading a flat discount over
// quantity units, rounded half-up to cents.
func PriceSale(retail Money, quantity int, discount Money) (Money, error) {
	if quantity < 1 {
		return Money{}, fmt.Errorf("%w: quantity must be at least 1, got %d", ErrInvalidInput, quantity)
	}
	if retail.IsNegative() {
		return Money{}, fmt.Errorf("%w: negative retail price", ErrInvalidInput)
	}
	qty := decimal.NewFromInt(int64(quantity))
	gross := retail.Decimal.Mul(qty)
	if discount.IsNegative() || discount.Decimal.GreaterThan(gross) {
		return Money{}, fmt.Errorf("%w: discount %s outside [0, %s]", ErrInvalidInput, discount, gross.StringFixed(2))
	}
	return NewMoney(gross.Sub(discount.Decimal).Div(qty)), nil
}
