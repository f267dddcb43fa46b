package services

import "errors"

// Order-path error taxonomy. Sentinels are wrapped with item context
// where applicable, so handlers can match the kind with errors.Is while
// the message still names the offending item.
var (
	ErrUnauthorized      = errors.New("unauthorized")
	ErrEmptyCart         = errors.New("cart is empty")
	ErrVariantNotFound   = errors.New("variant not found")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrOrderNotFound     = errors.New("order not found")
	ErrForbidden         = errors.New("forbidden")
)
