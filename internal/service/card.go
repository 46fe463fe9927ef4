package service

import (
	"context"
	"fmt"
	"storefront-payments/internal/client"
	"storefront-payments/internal/dto"
	"time"

	"github.com/rs/zerolog"
)

// CardService charges the cart through Braintree. A settled sale is finalized
// through the reconciler like any other capture.
type CardService interface {
	ChargeCart(ctx context.Context, userID, nonce string) (*dto.FinalizeResult, error)
}

type cardServiceImpl struct {
	braintreeClient client.BraintreeClient
	cartService     CartService
	reconciler      PaymentReconciler
	currency        string
	logger          zerolog.Logger
}

func NewCardService(
	braintreeClient client.BraintreeClient,
	cartService CartService,
	reconciler PaymentReconciler,
	currency string,
	logger zerolog.Logger,
) CardService {
	return &cardServiceImpl{
		braintreeClient: braintreeClient,
		cartService:     cartService,
		reconciler:      reconciler,
		currency:        currency,
		logger:          logger.With().Str("component", "card").Logger(),
	}
}

func (s *cardServiceImpl) ChargeCart(ctx context.Context, userID, nonce string) (*dto.FinalizeResult, error) {
	if nonce == "" {
		return nil, fmt.Errorf("payment method nonce required: %w", ErrInvalidPayload)
	}

	total, err := s.cartService.Total(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !total.IsPositive() {
		return nil, ErrEmptyCart
	}

	charge, err := s.braintreeClient.ChargeOneTime(ctx, nonce, total)
	if err != nil {
		return nil, fmt.Errorf("braintree charge: %w", err)
	}
	s.logger.Info().Str("user_id", userID).Str("capture_id", charge.TransactionID).
		Str("status", charge.Status).Str("amount", total.StringFixed(2)).Msg("card charged")

	return s.reconciler.FinalizeCapture(context.WithoutCancel(ctx), CaptureInfo{
		CaptureID:  charge.TransactionID,
		Provider:   ProviderBraintree,
		UserID:     userID,
		Amount:     total,
		Currency:   s.currency,
		CapturedAt: time.Now(),
	})
}
