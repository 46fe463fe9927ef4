package repository

import (
	"context"
	"storefront-payments/internal/model"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type TransactionRepository interface {
	CreateIfAbsent(ctx context.Context, tx *gorm.DB, transaction *model.Transaction) (bool, error)
	LinkOrder(ctx context.Context, tx *gorm.DB, captureID string, orderID uint) error
	FindByID(ctx context.Context, tx *gorm.DB, captureID string) (*model.Transaction, error)
	Exists(ctx context.Context, captureID string) (bool, error)
	MarkRefunded(ctx context.Context, tx *gorm.DB, captureID string, refundID string) (bool, error)
	List(ctx context.Context, search string) ([]*model.Transaction, error)
	ListByStatus(ctx context.Context, status model.TransactionStatus) ([]*model.Transaction, error)
}

type transactionRepositoryImpl struct {
	db *gorm.DB
}

func NewTransactionRepository(db *gorm.DB) TransactionRepository {
	return &transactionRepositoryImpl{
		db: db,
	}
}

// CreateIfAbsent inserts the row unless the capture id is already recorded.
// It reports false for the loser of a race; the primary key is the only lock.
func (r *transactionRepositoryImpl) CreateIfAbsent(ctx context.Context, tx *gorm.DB, transaction *model.Transaction) (bool, error) {
	result := pick(r.db, tx).WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(transaction)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *transactionRepositoryImpl) LinkOrder(ctx context.Context, tx *gorm.DB, captureID string, orderID uint) error {
	result := pick(r.db, tx).WithContext(ctx).
		Model(&model.Transaction{}).
		Where("id = ?", captureID).
		Updates(map[string]interface{}{
			"order_id":   orderID,
			"updated_at": time.Now(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *transactionRepositoryImpl) FindByID(ctx context.Context, tx *gorm.DB, captureID string) (*model.Transaction, error) {
	var transaction model.Transaction
	err := pick(r.db, tx).WithContext(ctx).
		Where("id = ?", captureID).
		First(&transaction).Error
	if err != nil {
		return nil, err
	}
	return &transaction, nil
}

func (r *transactionRepositoryImpl) Exists(ctx context.Context, captureID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.Transaction{}).
		Where("id = ?", captureID).
		Count(&count).Error

	return count > 0, err
}

// MarkRefunded flips the refunded flag once; false means it was already set
// or the capture is unknown.
func (r *transactionRepositoryImpl) MarkRefunded(ctx context.Context, tx *gorm.DB, captureID string, refundID string) (bool, error) {
	updates := map[string]interface{}{
		"refunded":   true,
		"updated_at": time.Now(),
	}
	if refundID != "" {
		updates["refund_id"] = refundID
	}

	result := pick(r.db, tx).WithContext(ctx).
		Model(&model.Transaction{}).
		Where("id = ? AND refunded = ?", captureID, false).
		Updates(updates)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *transactionRepositoryImpl) List(ctx context.Context, search string) ([]*model.Transaction, error) {
	var transactions []*model.Transaction
	query := r.db.WithContext(ctx).Order("captured_at DESC")
	if search != "" {
		like := "%" + search + "%"
		query = query.Where("id LIKE ? OR payer_email LIKE ? OR user_id LIKE ?", like, like, like)
	}
	if err := query.Find(&transactions).Error; err != nil {
		return nil, err
	}
	return transactions, nil
}

func (r *transactionRepositoryImpl) ListByStatus(ctx context.Context, status model.TransactionStatus) ([]*model.Transaction, error) {
	var transactions []*model.Transaction
	err := r.db.WithContext(ctx).
		Where("status = ?", status).
		Order("captured_at").
		Find(&transactions).Error
	if err != nil {
		return nil, err
	}
	return transactions, nil
}
