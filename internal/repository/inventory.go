package repository

import (
	"context"
	"errors"
	"storefront-payments/internal/model"

	"gorm.io/gorm"
)

// ErrStockConflict is returned when a conditional decrement matched no row:
// either the product is gone or its stock is below the requested quantity.
var ErrStockConflict = errors.New("stock conditional update matched no rows")

type InventoryRepository interface {
	GetStock(ctx context.Context, tx *gorm.DB, productID uint) (int, error)
	Decrement(ctx context.Context, tx *gorm.DB, productID uint, quantity int) error
}

type inventoryRepoImpl struct {
	db *gorm.DB
}

func NewInventoryRepository(db *gorm.DB) InventoryRepository {
	return &inventoryRepoImpl{
		db: db,
	}
}

func (r *inventoryRepoImpl) GetStock(ctx context.Context, tx *gorm.DB, productID uint) (int, error) {
	var product model.Product
	err := pick(r.db, tx).WithContext(ctx).
		Select("id", "quantity").
		Where("id = ?", productID).
		First(&product).Error
	if err != nil {
		return 0, err
	}
	return product.Quantity, nil
}

// Decrement is a single guarded statement, so two checkouts racing for the
// same units can never push stock below zero.
func (r *inventoryRepoImpl) Decrement(ctx context.Context, tx *gorm.DB, productID uint, quantity int) error {
	result := pick(r.db, tx).WithContext(ctx).
		Model(&model.Product{}).
		Where("id = ? AND quantity >= ?", productID, quantity).
		UpdateColumn("quantity", gorm.Expr("quantity - ?", quantity))

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrStockConflict
	}
	return nil
}
