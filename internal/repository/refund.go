package repository

import (
	"context"
	"storefront-payments/internal/model"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type RefundRepository interface {
	Create(ctx context.Context, tx *gorm.DB, refund *model.Refund) (bool, error)
	FindByID(ctx context.Context, refundID string) (*model.Refund, error)
	FindByTransactionID(ctx context.Context, tx *gorm.DB, transactionID string) (*model.Refund, error)
	ListPending(ctx context.Context) ([]*model.Refund, error)
	Advance(ctx context.Context, tx *gorm.DB, refundID string, to model.RefundStatus, providerRefundID string) (bool, error)
}

type refundRepoImpl struct {
	db *gorm.DB
}

func NewRefundRepository(db *gorm.DB) RefundRepository {
	return &refundRepoImpl{
		db: db,
	}
}

// Create stores a refund unless one already exists for the transaction.
func (r *refundRepoImpl) Create(ctx context.Context, tx *gorm.DB, refund *model.Refund) (bool, error) {
	result := pick(r.db, tx).WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(refund)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *refundRepoImpl) FindByID(ctx context.Context, refundID string) (*model.Refund, error) {
	var refund model.Refund
	err := r.db.WithContext(ctx).
		Where("id = ?", refundID).
		First(&refund).Error
	if err != nil {
		return nil, err
	}
	return &refund, nil
}

func (r *refundRepoImpl) FindByTransactionID(ctx context.Context, tx *gorm.DB, transactionID string) (*model.Refund, error) {
	var refund model.Refund
	err := pick(r.db, tx).WithContext(ctx).
		Where("transaction_id = ?", transactionID).
		First(&refund).Error
	if err != nil {
		return nil, err
	}
	return &refund, nil
}

func (r *refundRepoImpl) ListPending(ctx context.Context) ([]*model.Refund, error) {
	var refunds []*model.Refund
	err := r.db.WithContext(ctx).
		Where("status = ?", model.RefundPending).
		Order("created_at DESC").
		Find(&refunds).Error
	if err != nil {
		return nil, err
	}
	return refunds, nil
}

// Advance moves a refund forward only. The WHERE clause lists the statuses
// ranked below the target, so a stale or repeated update matches no row.
func (r *refundRepoImpl) Advance(ctx context.Context, tx *gorm.DB, refundID string, to model.RefundStatus, providerRefundID string) (bool, error) {
	var from []model.RefundStatus
	for _, s := range []model.RefundStatus{model.RefundPending, model.RefundApproved, model.RefundRefunded} {
		if s.Rank() < to.Rank() {
			from = append(from, s)
		}
	}
	if len(from) == 0 {
		return false, nil
	}

	updates := map[string]interface{}{
		"status":     to,
		"updated_at": time.Now(),
	}
	if providerRefundID != "" {
		updates["provider_refund_id"] = providerRefundID
	}

	result := pick(r.db, tx).WithContext(ctx).
		Model(&model.Refund{}).
		Where("id = ? AND status IN ?", refundID, from).
		Updates(updates)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}
