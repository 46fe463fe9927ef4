package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"path"
	"storefront-payments/internal/client"
	"storefront-payments/internal/dto"
	"storefront-payments/internal/events"
	"storefront-payments/internal/model"
	"storefront-payments/internal/notify"
	"storefront-payments/internal/repository"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const (
	ProviderPaypal    = "PAYPAL"
	ProviderNets      = "NETS"
	ProviderBraintree = "BRAINTREE"
)

// CaptureInfo describes a payment the provider has already captured.
type CaptureInfo struct {
	CaptureID  string
	Provider   string
	UserID     string
	PayerID    string
	PayerEmail string
	Amount     decimal.Decimal
	Currency   string
	CapturedAt time.Time
}

type PaymentReconciler interface {
	ReconcileWebhookEvent(ctx context.Context, headers http.Header, body []byte) error
	FinalizeCapture(ctx context.Context, capture CaptureInfo) (*dto.FinalizeResult, error)
	GetPaymentStatus(ctx context.Context, captureID string) (*dto.PaymentStatus, error)
	Subscribe(captureID string) (<-chan dto.FinalizeEvent, func())
}

type paymentReconcilerImpl struct {
	db               *gorm.DB
	paypalClient     client.PaypalClient
	finalizer        CheckoutFinalizer
	transactionRepo  repository.TransactionRepository
	refundRepo       repository.RefundRepository
	webhookEventRepo repository.WebhookEventRepository
	notifier         notify.Notifier
	publisher        events.Publisher
	logger           zerolog.Logger
}

func NewPaymentReconciler(
	db *gorm.DB,
	paypalClient client.PaypalClient,
	finalizer CheckoutFinalizer,
	transactionRepo repository.TransactionRepository,
	refundRepo repository.RefundRepository,
	webhookEventRepo repository.WebhookEventRepository,
	notifier notify.Notifier,
	publisher events.Publisher,
	logger zerolog.Logger,
) PaymentReconciler {
	return &paymentReconcilerImpl{
		db:               db,
		paypalClient:     paypalClient,
		finalizer:        finalizer,
		transactionRepo:  transactionRepo,
		refundRepo:       refundRepo,
		webhookEventRepo: webhookEventRepo,
		notifier:         notifier,
		publisher:        publisher,
		logger:           logger.With().Str("component", "reconciler").Logger(),
	}
}

// ReconcileWebhookEvent verifies the raw body before decoding it. A nil return
// means the delivery is settled and must not be retried by the provider.
func (s *paymentReconcilerImpl) ReconcileWebhookEvent(ctx context.Context, headers http.Header, body []byte) error {
	if err := s.paypalClient.VerifyWebhookSignature(ctx, headers, body); err != nil {
		return fmt.Errorf("verify webhook signature: %w", err)
	}

	var event model.PayPalWebhookEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return fmt.Errorf("decode webhook payload: %w: %w", ErrInvalidPayload, err)
	}

	log := s.logger.With().Str("event_id", event.ID).Str("event_type", event.EventType).Logger()

	if event.ID != "" {
		seen, err := s.webhookEventRepo.Exists(ctx, event.ID)
		if err != nil {
			return persistenceErr("check webhook event", err)
		}
		if seen {
			log.Info().Msg("webhook event already processed")
			return nil
		}
	}

	var resourceID string
	var err error
	switch event.EventType {
	case model.EventCaptureCompleted:
		resourceID, err = s.handleCaptureCompleted(ctx, &event, log)
	case model.EventCaptureRefunded:
		resourceID, err = s.handleCaptureRefunded(ctx, &event, log)
	default:
		log.Debug().Msg("ignore webhook event")
		return nil
	}
	if err != nil {
		return err
	}

	if event.ID != "" {
		if err := s.webhookEventRepo.MarkProcessed(ctx, nil, event.ID, event.EventType, resourceID); err != nil {
			// the capture anchor still guards a redelivery
			log.Warn().Err(err).Msg("record webhook event")
		}
	}
	return nil
}

func (s *paymentReconcilerImpl) handleCaptureCompleted(ctx context.Context, event *model.PayPalWebhookEvent, log zerolog.Logger) (string, error) {
	var resource model.PaypalResource
	if err := json.Unmarshal(event.Resource, &resource); err != nil {
		return "", fmt.Errorf("decode capture resource: %w: %w", ErrInvalidPayload, err)
	}
	captureID := resource.ID
	if captureID == "" {
		return "", fmt.Errorf("capture id missing: %w", ErrInvalidPayload)
	}
	log = log.With().Str("capture_id", captureID).Logger()

	exists, err := s.transactionRepo.Exists(ctx, captureID)
	if err != nil {
		return "", persistenceErr("check transaction", err)
	}
	if exists {
		log.Info().Msg("duplicate capture ignored")
		return captureID, nil
	}

	paypalOrderID := resource.SupplementaryData.RelatedIDs.OrderID
	if paypalOrderID == "" {
		return "", fmt.Errorf("order id missing for capture %s: %w", captureID, ErrInvalidPayload)
	}

	// the owner comes from the provider's order, not from the event body
	order, err := s.paypalClient.GetOrder(ctx, paypalOrderID)
	if err != nil {
		return "", fmt.Errorf("paypal api get order: %w", err)
	}
	userID := order.CustomID()
	if userID == "" {
		log.Error().Bool("alert", true).Bool("manual_reconciliation", true).
			Str("paypal_order_id", paypalOrderID).
			Msg("captured order carries no user")
		return "", fmt.Errorf("order %s has no owner: %w", paypalOrderID, ErrInvalidPayload)
	}

	amount, err := decimal.NewFromString(resource.Amount.Value)
	if err != nil {
		// money was taken but the event cannot say how much
		log.Error().Err(err).Bool("alert", true).Bool("manual_reconciliation", true).
			Str("amount", resource.Amount.Value).
			Msg("capture amount unreadable")
		return "", fmt.Errorf("capture amount %q: %w: %w", resource.Amount.Value, ErrInvalidPayload, err)
	}
	capturedAt, err := time.Parse(time.RFC3339, resource.CreateTime)
	if err != nil {
		log.Warn().Err(err).Str("create_time", resource.CreateTime).Msg("capture time unreadable, using receipt time")
		capturedAt = time.Now()
	}

	_, err = s.FinalizeCapture(ctx, CaptureInfo{
		CaptureID:  captureID,
		Provider:   ProviderPaypal,
		UserID:     userID,
		PayerID:    order.Payer.PayerID,
		PayerEmail: order.Payer.Email,
		Amount:     amount,
		Currency:   resource.Amount.Currency,
		CapturedAt: capturedAt,
	})
	if err != nil && !IsCheckoutRejection(err) {
		return "", err
	}
	// rejections are recorded as FAILED; a provider retry cannot change them
	return captureID, nil
}

func (s *paymentReconcilerImpl) handleCaptureRefunded(ctx context.Context, event *model.PayPalWebhookEvent, log zerolog.Logger) (string, error) {
	var resource model.PaypalResource
	if err := json.Unmarshal(event.Resource, &resource); err != nil {
		return "", fmt.Errorf("decode refund resource: %w: %w", ErrInvalidPayload, err)
	}

	captureID := refundedCaptureID(&resource)
	if captureID == "" {
		return "", fmt.Errorf("refund %s has no capture: %w", resource.ID, ErrInvalidPayload)
	}
	log = log.With().Str("capture_id", captureID).Str("refund_id", resource.ID).Logger()

	var changed bool
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		changed, err = settleRefund(ctx, tx, s.transactionRepo, s.refundRepo, captureID, resource.ID)
		return err
	})
	if errors.Is(err, ErrNotFound) {
		log.Warn().Msg("refund for unknown capture")
		return resource.ID, nil
	}
	if err != nil {
		return "", err
	}

	if changed {
		log.Info().Msg("capture refunded")
		s.publish(ctx, events.Event{
			Type:      events.TypePaymentRefunded,
			CaptureID: captureID,
			RefundID:  resource.ID,
			Amount:    resource.Amount.Value,
			Currency:  resource.Amount.Currency,
		})
	}
	return resource.ID, nil
}

// FinalizeCapture is the single write path for a captured payment. The insert of
// the transaction row is the commit point: whoever inserts it finalizes, every
// other caller observes the existing row. Replaying a capture that was recorded
// as FAILED returns a RejectedCaptureError, never a result.
func (s *paymentReconcilerImpl) FinalizeCapture(ctx context.Context, capture CaptureInfo) (*dto.FinalizeResult, error) {
	log := s.logger.With().
		Str("capture_id", capture.CaptureID).
		Str("provider", capture.Provider).
		Str("user_id", capture.UserID).
		Logger()

	exists, err := s.transactionRepo.Exists(ctx, capture.CaptureID)
	if err != nil {
		return nil, persistenceErr("check transaction", err)
	}
	if exists {
		log.Info().Msg("duplicate capture ignored")
		return s.existingResult(ctx, capture.CaptureID)
	}

	var order *model.Order
	duplicate := false
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		created, err := s.transactionRepo.CreateIfAbsent(ctx, tx, newTransaction(capture, model.TransactionCompleted, ""))
		if err != nil {
			return persistenceErr("insert transaction", err)
		}
		if !created {
			duplicate = true
			return nil
		}

		order, err = s.finalizer.FinalizeInTx(ctx, tx, capture.UserID, capture.CaptureID)
		if err != nil {
			return err
		}
		// the cart may have changed since the provider was told what to charge
		if !order.Total.Equal(capture.Amount) {
			return &AmountMismatchError{Captured: capture.Amount, Due: order.Total}
		}

		if err := s.transactionRepo.LinkOrder(ctx, tx, capture.CaptureID, order.ID); err != nil {
			return persistenceErr("link order", err)
		}
		return nil
	})

	switch {
	case err == nil && duplicate:
		log.Info().Msg("duplicate capture ignored")
		return s.existingResult(ctx, capture.CaptureID)
	case err == nil:
		log.Info().Uint("order_id", order.ID).Str("amount", capture.Amount.StringFixed(2)).Msg("capture finalized")
		s.notify(ctx, log, capture.CaptureID, dto.FinalizeEvent{
			CaptureID: capture.CaptureID,
			Status:    dto.FinalizeStatusFinalized,
			OrderID:   order.ID,
		})
		s.publish(ctx, events.Event{
			Type:      events.TypePaymentFinalized,
			CaptureID: capture.CaptureID,
			Provider:  capture.Provider,
			UserID:    capture.UserID,
			OrderID:   order.ID,
			Amount:    capture.Amount.StringFixed(2),
			Currency:  capture.Currency,
		})
		return &dto.FinalizeResult{CaptureID: capture.CaptureID, OrderID: order.ID}, nil
	case IsCheckoutRejection(err):
		s.recordRejection(ctx, log, capture, err)
		return nil, err
	default:
		if !errors.Is(err, ErrPersistence) {
			err = persistenceErr("commit finalize", err)
		}
		// money is held by the provider and nothing is recorded locally
		log.Error().Err(err).
			Bool("alert", true).
			Bool("manual_reconciliation", true).
			Str("amount", capture.Amount.StringFixed(2)).
			Msg("captured payment could not be finalized")
		return nil, err
	}
}

// recordRejection keeps a FAILED row for a capture whose cart could not be
// committed, so the payment stays visible for refund or manual follow-up.
func (s *paymentReconcilerImpl) recordRejection(ctx context.Context, log zerolog.Logger, capture CaptureInfo, cause error) {
	log.Error().Err(cause).
		Bool("alert", true).
		Bool("manual_reconciliation", true).
		Str("amount", capture.Amount.StringFixed(2)).
		Msg("captured payment rejected at checkout")

	created, err := s.transactionRepo.CreateIfAbsent(ctx, nil, newTransaction(capture, model.TransactionFailed, cause.Error()))
	if err != nil {
		log.Error().Err(err).Bool("alert", true).Bool("manual_reconciliation", true).Msg("record failed capture")
	}
	if !created {
		return
	}

	s.notify(ctx, log, capture.CaptureID, dto.FinalizeEvent{
		CaptureID: capture.CaptureID,
		Status:    dto.FinalizeStatusFailed,
		Message:   cause.Error(),
	})
	s.publish(ctx, events.Event{
		Type:      events.TypePaymentFinalizeFailed,
		CaptureID: capture.CaptureID,
		Provider:  capture.Provider,
		UserID:    capture.UserID,
		Amount:    capture.Amount.StringFixed(2),
		Currency:  capture.Currency,
		Reason:    cause.Error(),
	})
}

func (s *paymentReconcilerImpl) existingResult(ctx context.Context, captureID string) (*dto.FinalizeResult, error) {
	transaction, err := s.transactionRepo.FindByID(ctx, nil, captureID)
	if err != nil {
		return nil, persistenceErr("get transaction", err)
	}
	if transaction.Status == model.TransactionFailed {
		return nil, &RejectedCaptureError{CaptureID: captureID, Reason: transaction.FailReason}
	}
	result := &dto.FinalizeResult{CaptureID: captureID, Duplicate: true}
	if transaction.OrderID != nil {
		result.OrderID = *transaction.OrderID
	}
	return result, nil
}

// GetPaymentStatus only reads committed state; it never finalizes.
func (s *paymentReconcilerImpl) GetPaymentStatus(ctx context.Context, captureID string) (*dto.PaymentStatus, error) {
	status := &dto.PaymentStatus{CaptureID: captureID}

	transaction, err := s.transactionRepo.FindByID(ctx, nil, captureID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return status, nil
	}
	if err != nil {
		return nil, persistenceErr("get transaction", err)
	}

	switch transaction.Status {
	case model.TransactionCompleted:
		status.Finalized = transaction.OrderID != nil
		status.OrderID = transaction.OrderID
	case model.TransactionFailed:
		status.Failed = true
	}
	status.Refunded = transaction.Refunded
	return status, nil
}

func (s *paymentReconcilerImpl) Subscribe(captureID string) (<-chan dto.FinalizeEvent, func()) {
	return s.notifier.Subscribe(captureID)
}

func (s *paymentReconcilerImpl) notify(ctx context.Context, log zerolog.Logger, captureID string, event dto.FinalizeEvent) {
	if err := s.notifier.Notify(ctx, captureID, event); err != nil {
		log.Warn().Err(err).Msg("notify finalize subscribers")
	}
}

func (s *paymentReconcilerImpl) publish(ctx context.Context, event events.Event) {
	event.OccurredAt = time.Now().UTC()
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.Warn().Err(err).Str("event_type", event.Type).Str("capture_id", event.CaptureID).Msg("publish payment event")
	}
}

func newTransaction(capture CaptureInfo, status model.TransactionStatus, reason string) *model.Transaction {
	capturedAt := capture.CapturedAt
	if capturedAt.IsZero() {
		capturedAt = time.Now()
	}
	return &model.Transaction{
		ID:         capture.CaptureID,
		Provider:   capture.Provider,
		UserID:     capture.UserID,
		PayerID:    capture.PayerID,
		PayerEmail: capture.PayerEmail,
		Amount:     capture.Amount,
		Currency:   capture.Currency,
		Status:     status,
		FailReason: truncate(reason, 255),
		CapturedAt: capturedAt,
	}
}

// refundedCaptureID finds the capture a refund resource belongs to: the "up"
// link points at the capture, related ids are the fallback.
func refundedCaptureID(resource *model.PaypalResource) string {
	for _, link := range resource.Links {
		if link.Rel != "up" {
			continue
		}
		u, err := url.Parse(link.Href)
		if err != nil {
			continue
		}
		if id := path.Base(u.Path); id != "" && id != "/" && id != "." {
			return id
		}
	}
	return resource.SupplementaryData.RelatedIDs.CaptureID
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
