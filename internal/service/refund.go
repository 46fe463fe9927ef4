package service

import (
	"context"
	"errors"
	"fmt"
	"storefront-payments/internal/client"
	"storefront-payments/internal/dto"
	"storefront-payments/internal/events"
	"storefront-payments/internal/model"
	"storefront-payments/internal/repository"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

type RefundService interface {
	RequestRefund(ctx context.Context, userID string, req *dto.RefundRequest) (*model.Refund, error)
	ListPending(ctx context.Context) ([]*model.Refund, error)
	ApproveRefund(ctx context.Context, refundID string) (*model.Refund, error)
	AdminRefund(ctx context.Context, captureID, reason string) (*model.Refund, error)
}

type refundServiceImpl struct {
	db              *gorm.DB
	paypalClient    client.PaypalClient
	transactionRepo repository.TransactionRepository
	refundRepo      repository.RefundRepository
	publisher       events.Publisher
	logger          zerolog.Logger
}

func NewRefundService(
	db *gorm.DB,
	paypalClient client.PaypalClient,
	transactionRepo repository.TransactionRepository,
	refundRepo repository.RefundRepository,
	publisher events.Publisher,
	logger zerolog.Logger,
) RefundService {
	return &refundServiceImpl{
		db:              db,
		paypalClient:    paypalClient,
		transactionRepo: transactionRepo,
		refundRepo:      refundRepo,
		publisher:       publisher,
		logger:          logger.With().Str("component", "refund").Logger(),
	}
}

func (s *refundServiceImpl) RequestRefund(ctx context.Context, userID string, req *dto.RefundRequest) (*model.Refund, error) {
	transaction, err := s.getTransaction(ctx, req.TransactionID)
	if err != nil {
		return nil, err
	}
	if transaction.UserID != userID {
		return nil, fmt.Errorf("transaction %s: %w", req.TransactionID, ErrForbidden)
	}
	if transaction.Refunded {
		return nil, fmt.Errorf("transaction %s already refunded: %w", req.TransactionID, ErrInvalidRefundState)
	}

	refund := &model.Refund{
		ID:            uuid.NewString(),
		TransactionID: transaction.ID,
		UserID:        userID,
		Reason:        req.Reason,
		Image:         req.Image,
		Status:        model.RefundPending,
	}
	created, err := s.refundRepo.Create(ctx, nil, refund)
	if err != nil {
		return nil, fmt.Errorf("create refund: %w", err)
	}
	if !created {
		return nil, fmt.Errorf("refund already requested for %s: %w", transaction.ID, ErrInvalidRefundState)
	}

	s.logger.Info().Str("refund_id", refund.ID).Str("capture_id", transaction.ID).Str("user_id", userID).Msg("refund requested")
	return refund, nil
}

func (s *refundServiceImpl) ListPending(ctx context.Context) ([]*model.Refund, error) {
	return s.refundRepo.ListPending(ctx)
}

func (s *refundServiceImpl) ApproveRefund(ctx context.Context, refundID string) (*model.Refund, error) {
	refund, err := s.refundRepo.FindByID(ctx, refundID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("refund %s: %w", refundID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get refund: %w", err)
	}
	if refund.Status == model.RefundRefunded {
		return nil, fmt.Errorf("refund %s already settled: %w", refundID, ErrInvalidRefundState)
	}

	transaction, err := s.getTransaction(ctx, refund.TransactionID)
	if err != nil {
		return nil, err
	}

	// APPROVED is kept if the provider call below fails, so approval can be retried
	if _, err := s.refundRepo.Advance(ctx, nil, refund.ID, model.RefundApproved, ""); err != nil {
		return nil, fmt.Errorf("approve refund: %w", err)
	}

	if err := s.execute(ctx, transaction); err != nil {
		return nil, err
	}
	return s.refundRepo.FindByID(ctx, refund.ID)
}

func (s *refundServiceImpl) AdminRefund(ctx context.Context, captureID, reason string) (*model.Refund, error) {
	transaction, err := s.getTransaction(ctx, captureID)
	if err != nil {
		return nil, err
	}
	if transaction.Refunded {
		return nil, fmt.Errorf("transaction %s already refunded: %w", captureID, ErrInvalidRefundState)
	}
	if reason == "" {
		reason = "refunded by admin"
	}

	_, err = s.refundRepo.Create(ctx, nil, &model.Refund{
		ID:            uuid.NewString(),
		TransactionID: transaction.ID,
		UserID:        transaction.UserID,
		Reason:        reason,
		Status:        model.RefundApproved,
	})
	if err != nil {
		return nil, fmt.Errorf("create refund: %w", err)
	}

	if err := s.execute(ctx, transaction); err != nil {
		return nil, err
	}
	return s.refundRepo.FindByTransactionID(ctx, nil, transaction.ID)
}

// execute refunds the capture at the provider, then records it. No row is
// locked while the provider call is in flight.
func (s *refundServiceImpl) execute(ctx context.Context, transaction *model.Transaction) error {
	if transaction.Provider != ProviderPaypal {
		return fmt.Errorf("%s captures are refunded manually: %w", transaction.Provider, ErrInvalidRefundState)
	}

	providerRefund, err := s.paypalClient.RefundCapture(ctx, transaction.ID)
	if err != nil {
		return fmt.Errorf("paypal api refund capture: %w", err)
	}

	var changed bool
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		changed, err = settleRefund(ctx, tx, s.transactionRepo, s.refundRepo, transaction.ID, providerRefund.ID)
		return err
	})
	if err != nil {
		s.logger.Error().Err(err).Bool("alert", true).Bool("manual_reconciliation", true).
			Str("capture_id", transaction.ID).Str("provider_refund_id", providerRefund.ID).
			Msg("refund issued but not recorded")
		return err
	}

	s.logger.Info().Str("capture_id", transaction.ID).Str("provider_refund_id", providerRefund.ID).
		Str("status", providerRefund.Status).Msg("capture refunded")
	if changed {
		event := events.Event{
			Type:       events.TypePaymentRefunded,
			CaptureID:  transaction.ID,
			Provider:   transaction.Provider,
			UserID:     transaction.UserID,
			RefundID:   providerRefund.ID,
			Amount:     transaction.Amount.StringFixed(2),
			Currency:   transaction.Currency,
			OccurredAt: time.Now().UTC(),
		}
		if err := s.publisher.Publish(ctx, event); err != nil {
			s.logger.Warn().Err(err).Str("capture_id", transaction.ID).Msg("publish payment event")
		}
	}
	return nil
}

func (s *refundServiceImpl) getTransaction(ctx context.Context, captureID string) (*model.Transaction, error) {
	transaction, err := s.transactionRepo.FindByID(ctx, nil, captureID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("transaction %s: %w", captureID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get transaction: %w", err)
	}
	return transaction, nil
}

// settleRefund marks the capture refunded and moves its refund record to
// REFUNDED, creating the record for refunds issued outside the shop. It
// reports whether anything changed.
func settleRefund(
	ctx context.Context,
	tx *gorm.DB,
	transactionRepo repository.TransactionRepository,
	refundRepo repository.RefundRepository,
	captureID, providerRefundID string,
) (bool, error) {
	transaction, err := transactionRepo.FindByID(ctx, tx, captureID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, fmt.Errorf("transaction %s: %w", captureID, ErrNotFound)
	}
	if err != nil {
		return false, persistenceErr("get transaction", err)
	}

	flipped, err := transactionRepo.MarkRefunded(ctx, tx, captureID, providerRefundID)
	if err != nil {
		return false, persistenceErr("mark transaction refunded", err)
	}

	refund, err := refundRepo.FindByTransactionID(ctx, tx, captureID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		var id *string
		if providerRefundID != "" {
			id = &providerRefundID
		}
		created, err := refundRepo.Create(ctx, tx, &model.Refund{
			ID:               uuid.NewString(),
			TransactionID:    captureID,
			UserID:           transaction.UserID,
			Reason:           "refunded at provider",
			Status:           model.RefundRefunded,
			ProviderRefundID: id,
		})
		if err != nil {
			return false, persistenceErr("create refund", err)
		}
		return flipped || created, nil
	}
	if err != nil {
		return false, persistenceErr("get refund", err)
	}

	advanced, err := refundRepo.Advance(ctx, tx, refund.ID, model.RefundRefunded, providerRefundID)
	if err != nil {
		return false, persistenceErr("advance refund", err)
	}
	return flipped || advanced, nil
}
