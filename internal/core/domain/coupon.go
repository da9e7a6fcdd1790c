package domain

import "time"

type CouponStatus string

const (
	CouponStatusAvailable CouponStatus = "available"
	CouponStatusClaimed   CouponStatus = "claimed"
)

type Coupon struct {
	ID         uint         `json:"id"`
	Code       string       `json:"code"`
	Status     CouponStatus `json:"status"`
	ImportedAt time.Time    `json:"imported_at"`
	ClaimedAt  *time.Time   `json:"claimed_at,omitempty"`
}
