package client

import "errors"

var (
	// ErrProviderUnavailable marks network failures and 5xx answers from a payment provider.
	ErrProviderUnavailable = errors.New("payment provider unavailable")
	// ErrInvalidSignature is returned when a webhook fails provider verification.
	ErrInvalidSignature = errors.New("invalid webhook signature")
	// ErrPaymentDeclined is returned when the provider answered but refused the payment.
	ErrPaymentDeclined = errors.New("payment declined")
)
