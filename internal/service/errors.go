package service

import (
	"errors"
	"fmt"
	"storefront-payments/internal/client"

	"github.com/shopspring/decimal"
)

var (
	ErrInvalidSignature    = client.ErrInvalidSignature
	ErrProviderUnavailable = client.ErrProviderUnavailable
	ErrPaymentDeclined     = client.ErrPaymentDeclined

	ErrInvalidPayload     = errors.New("invalid payload")
	ErrInsufficientStock  = errors.New("insufficient stock")
	ErrEmptyCart          = errors.New("cart is empty")
	ErrPersistence        = errors.New("persistence failure")
	ErrNotFound           = errors.New("not found")
	ErrForbidden          = errors.New("forbidden")
	ErrInvalidRefundState = errors.New("invalid refund state")
	ErrAmountMismatch     = errors.New("captured amount does not match order total")
	ErrCaptureRejected    = errors.New("capture rejected")
)

// InsufficientStockError names the product that could not be covered.
type InsufficientStockError struct {
	ProductID   uint
	ProductName string
}

func (e *InsufficientStockError) Error() string {
	return "Not enough stock for " + e.ProductName
}

func (e *InsufficientStockError) Unwrap() error {
	return ErrInsufficientStock
}

// CartStockError rejects an add-to-cart that would exceed current stock.
type CartStockError struct {
	Available int
	InCart    int
}

func (e *CartStockError) Error() string {
	return fmt.Sprintf("Not enough stock! Available: %d, You already have: %d in the cart.", e.Available, e.InCart)
}

func (e *CartStockError) Unwrap() error {
	return ErrInsufficientStock
}

// AmountMismatchError rejects a commit whose re-priced cart differs from what
// the provider actually captured.
type AmountMismatchError struct {
	Captured decimal.Decimal
	Due      decimal.Decimal
}

func (e *AmountMismatchError) Error() string {
	return fmt.Sprintf("Captured amount %s does not match order total %s", e.Captured.StringFixed(2), e.Due.StringFixed(2))
}

func (e *AmountMismatchError) Unwrap() error {
	return ErrAmountMismatch
}

// RejectedCaptureError reports a capture that was already recorded as FAILED.
type RejectedCaptureError struct {
	CaptureID string
	Reason    string
}

func (e *RejectedCaptureError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("payment %s was rejected", e.CaptureID)
	}
	return e.Reason
}

func (e *RejectedCaptureError) Unwrap() error {
	return ErrCaptureRejected
}

// ProviderError carries a provider's own response code for a refused request.
type ProviderError struct {
	Provider string
	Code     string
	Message  string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s responded %s: %s", e.Provider, e.Code, e.Message)
}

func (e *ProviderError) Unwrap() error {
	return ErrPaymentDeclined
}

// IsCheckoutRejection reports whether err is a validation outcome of checkout
// rather than an infrastructure failure.
func IsCheckoutRejection(err error) bool {
	return errors.Is(err, ErrInsufficientStock) ||
		errors.Is(err, ErrEmptyCart) ||
		errors.Is(err, ErrAmountMismatch) ||
		errors.Is(err, ErrCaptureRejected)
}

func persistenceErr(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrPersistence, err)
}
