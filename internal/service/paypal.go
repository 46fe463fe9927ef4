package service

import (
	"context"
	"fmt"
	"storefront-payments/internal/client"
	"storefront-payments/internal/dto"

	"github.com/rs/zerolog"
)

// PaypalService drives the hosted-order flow. Capturing here never finalizes:
// the verified webhook is the only writer for a PayPal capture.
type PaypalService interface {
	CreateOrder(ctx context.Context, userID string) (*dto.CreateOrderResponse, error)
	CaptureOrder(ctx context.Context, userID, orderID string) (*dto.CaptureResponse, error)
}

type paypalServiceImpl struct {
	paypalClient client.PaypalClient
	cartService  CartService
	currency     string
	logger       zerolog.Logger
}

func NewPaypalService(
	paypalClient client.PaypalClient,
	cartService CartService,
	currency string,
	logger zerolog.Logger,
) PaypalService {
	return &paypalServiceImpl{
		paypalClient: paypalClient,
		cartService:  cartService,
		currency:     currency,
		logger:       logger.With().Str("component", "paypal").Logger(),
	}
}

func (s *paypalServiceImpl) CreateOrder(ctx context.Context, userID string) (*dto.CreateOrderResponse, error) {
	total, err := s.cartService.Total(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !total.IsPositive() {
		return nil, ErrEmptyCart
	}

	resp, err := s.paypalClient.CreateOrder(ctx, total, s.currency, userID)
	if err != nil {
		return nil, fmt.Errorf("paypal api create order: %w", err)
	}

	s.logger.Info().Str("user_id", userID).Str("paypal_order_id", resp.OrderID).
		Str("amount", total.StringFixed(2)).Msg("paypal order created")

	return &dto.CreateOrderResponse{
		OrderID:    resp.OrderID,
		ApproveURL: resp.ApproveURL,
		Amount:     total,
	}, nil
}

func (s *paypalServiceImpl) CaptureOrder(ctx context.Context, userID, orderID string) (*dto.CaptureResponse, error) {
	order, err := s.paypalClient.CaptureOrder(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("paypal api capture order: %w", err)
	}

	capture := order.FirstCapture()
	if capture == nil {
		return nil, fmt.Errorf("capture missing in order %s: %w", orderID, ErrInvalidPayload)
	}
	if owner := order.CustomID(); owner != "" && owner != userID {
		s.logger.Warn().Str("user_id", userID).Str("owner", owner).Str("paypal_order_id", orderID).
			Msg("order captured by a different session")
	}

	s.logger.Info().Str("user_id", userID).Str("paypal_order_id", orderID).
		Str("capture_id", capture.ID).Str("status", capture.Status).Msg("paypal order captured")

	return &dto.CaptureResponse{
		OrderID:   order.ID,
		CaptureID: capture.ID,
		Status:    capture.Status,
	}, nil
}
