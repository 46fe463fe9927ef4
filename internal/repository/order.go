package repository

import (
	"context"
	"storefront-payments/internal/model"

	"gorm.io/gorm"
)

type OrderRepository interface {
	Create(ctx context.Context, tx *gorm.DB, order *model.Order) error
	CreateOrderLines(ctx context.Context, tx *gorm.DB, lines []*model.OrderLine) error
	FindByID(ctx context.Context, orderID uint) (*model.Order, error)
	FindByTransactionID(ctx context.Context, tx *gorm.DB, transactionID string) (*model.Order, error)
	GetOrderLines(ctx context.Context, orderID uint) ([]*model.OrderLine, error)
	ListByUser(ctx context.Context, userID string) ([]*model.Order, error)
	CountByTransactionID(ctx context.Context, transactionID string) (int64, error)
}

type orderRepoImpl struct {
	db *gorm.DB
}

func NewOrderRepository(db *gorm.DB) OrderRepository {
	return &orderRepoImpl{
		db: db,
	}
}

// Create allocates the order id; the auto-increment key is strictly greater
// than every id handed out before it.
func (r *orderRepoImpl) Create(ctx context.Context, tx *gorm.DB, order *model.Order) error {
	return pick(r.db, tx).WithContext(ctx).Create(order).Error
}

func (r *orderRepoImpl) CreateOrderLines(ctx context.Context, tx *gorm.DB, lines []*model.OrderLine) error {
	return pick(r.db, tx).WithContext(ctx).Create(&lines).Error
}

func (r *orderRepoImpl) FindByID(ctx context.Context, orderID uint) (*model.Order, error) {
	var order model.Order
	err := r.db.WithContext(ctx).
		Where("id = ?", orderID).
		First(&order).Error

	if err != nil {
		return nil, err
	}

	return &order, nil
}

func (r *orderRepoImpl) FindByTransactionID(ctx context.Context, tx *gorm.DB, transactionID string) (*model.Order, error) {
	var order model.Order
	err := pick(r.db, tx).WithContext(ctx).
		Where("transaction_id = ?", transactionID).
		First(&order).Error

	if err != nil {
		return nil, err
	}

	return &order, nil
}

func (r *orderRepoImpl) GetOrderLines(ctx context.Context, orderID uint) ([]*model.OrderLine, error) {
	var lines []*model.OrderLine
	err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("id").
		Find(&lines).Error

	if err != nil {
		return nil, err
	}

	return lines, nil
}

func (r *orderRepoImpl) ListByUser(ctx context.Context, userID string) ([]*model.Order, error) {
	var orders []*model.Order
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC, id DESC").
		Find(&orders).Error

	if err != nil {
		return nil, err
	}

	return orders, nil
}

func (r *orderRepoImpl) CountByTransactionID(ctx context.Context, transactionID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.Order{}).
		Where("transaction_id = ?", transactionID).
		Count(&count).Error

	return count, err
}
