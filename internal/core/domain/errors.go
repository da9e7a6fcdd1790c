package domain

import "errors"

var (
	ErrUnknownSku        = errors.New("unknown sku")
	ErrDuplicateSku      = errors.New("duplicate sku")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrCouponPoolEmpty   = errors.New("coupon pool empty")
	ErrInvalidInput      = errors.New("invalid input")
	ErrNotFound          = errors.New("not found")
	ErrDuplicateRequest  = errors.New("duplicate request")
	ErrConflict          = errors.New("conflict")
)
