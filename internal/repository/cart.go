package repository

import (
	"context"
	"storefront-payments/internal/model"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type CartRepository interface {
	GetUserCart(ctx context.Context, tx *gorm.DB, userID string) ([]*model.CartItem, error)
	Add(ctx context.Context, userID string, productID uint, quantity int) error
	UpdateQuantity(ctx context.Context, userID string, productID uint, quantity int) error
	Delete(ctx context.Context, userID string, productID uint) error
	DeleteAll(ctx context.Context, tx *gorm.DB, userID string) error
}

type cartRepoImpl struct {
	db *gorm.DB
}

func NewCartRepository(db *gorm.DB) CartRepository {
	return &cartRepoImpl{
		db: db,
	}
}

// GetUserCart returns lines ordered by product id; callers that lock or
// decrement per line rely on that ordering.
func (r *cartRepoImpl) GetUserCart(ctx context.Context, tx *gorm.DB, userID string) ([]*model.CartItem, error) {
	var items []*model.CartItem
	err := pick(r.db, tx).WithContext(ctx).
		Where("user_id = ?", userID).
		Order("product_id").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *cartRepoImpl) Add(ctx context.Context, userID string, productID uint, quantity int) error {
	item := &model.CartItem{
		UserID:    userID,
		ProductID: productID,
		Quantity:  quantity,
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}, {Name: "product_id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"quantity":   gorm.Expr("cart_items.quantity + ?", quantity),
			"updated_at": time.Now(),
		}),
	}).Create(item).Error
}

func (r *cartRepoImpl) UpdateQuantity(ctx context.Context, userID string, productID uint, quantity int) error {
	result := r.db.WithContext(ctx).
		Model(&model.CartItem{}).
		Where("user_id = ? AND product_id = ?", userID, productID).
		Updates(map[string]interface{}{
			"quantity":   quantity,
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

func (r *cartRepoImpl) Delete(ctx context.Context, userID string, productID uint) error {
	return r.db.WithContext(ctx).
		Where("user_id = ? AND product_id = ?", userID, productID).
		Delete(&model.CartItem{}).Error
}

func (r *cartRepoImpl) DeleteAll(ctx context.Context, tx *gorm.DB, userID string) error {
	return pick(r.db, tx).WithContext(ctx).
		Where("user_id = ?", userID).
		Delete(&model.CartItem{}).Error
}
