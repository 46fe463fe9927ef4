package service

import (
	"context"
	"errors"
	"fmt"
	"storefront-payments/internal/model"
	"storefront-payments/internal/repository"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type CheckoutFinalizer interface {
	// FinalizeCheckout commits the user's cart against an already captured payment
	// and returns the new order id.
	FinalizeCheckout(ctx context.Context, userID, captureID string) (uint, error)
	// FinalizeInTx does the same work on the caller's transaction.
	FinalizeInTx(ctx context.Context, tx *gorm.DB, userID, captureID string) (*model.Order, error)
}

type checkoutFinalizerImpl struct {
	db            *gorm.DB
	cartRepo      repository.CartRepository
	productRepo   repository.ProductRepository
	inventoryRepo repository.InventoryRepository
	orderRepo     repository.OrderRepository
}

func NewCheckoutFinalizer(
	db *gorm.DB,
	cartRepo repository.CartRepository,
	productRepo repository.ProductRepository,
	inventoryRepo repository.InventoryRepository,
	orderRepo repository.OrderRepository,
) CheckoutFinalizer {
	return &checkoutFinalizerImpl{
		db:            db,
		cartRepo:      cartRepo,
		productRepo:   productRepo,
		inventoryRepo: inventoryRepo,
		orderRepo:     orderRepo,
	}
}

func (s *checkoutFinalizerImpl) FinalizeCheckout(ctx context.Context, userID, captureID string) (uint, error) {
	var orderID uint
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		order, err := s.FinalizeInTx(ctx, tx, userID, captureID)
		if err != nil {
			return err
		}
		orderID = order.ID
		return nil
	})
	if err != nil {
		if IsCheckoutRejection(err) || errors.Is(err, ErrPersistence) {
			return 0, err
		}
		return 0, persistenceErr("commit checkout", err)
	}
	return orderID, nil
}

func (s *checkoutFinalizerImpl) FinalizeInTx(ctx context.Context, tx *gorm.DB, userID, captureID string) (*model.Order, error) {
	items, err := s.cartRepo.GetUserCart(ctx, tx, userID)
	if err != nil {
		return nil, persistenceErr("get user cart", err)
	}
	if len(items) == 0 {
		return nil, ErrEmptyCart
	}

	productIDs := make([]uint, len(items))
	for i, item := range items {
		productIDs[i] = item.ProductID
	}
	products, err := s.productRepo.FindMany(ctx, tx, productIDs)
	if err != nil {
		return nil, persistenceErr("get cart products", err)
	}
	productMap := make(map[uint]*model.Product, len(products))
	for _, p := range products {
		productMap[p.ID] = p
	}

	// validate every line before the first write
	for _, item := range items {
		product, ok := productMap[item.ProductID]
		if !ok {
			return nil, &InsufficientStockError{
				ProductID:   item.ProductID,
				ProductName: fmt.Sprintf("product #%d", item.ProductID),
			}
		}
		if item.Quantity > product.Quantity {
			return nil, &InsufficientStockError{ProductID: product.ID, ProductName: product.Name}
		}
	}

	now := time.Now()
	total := decimal.Zero
	lines := make([]*model.OrderLine, len(items))
	for i, item := range items {
		product := productMap[item.ProductID]

		err := s.inventoryRepo.Decrement(ctx, tx, product.ID, item.Quantity)
		if errors.Is(err, repository.ErrStockConflict) {
			return nil, &InsufficientStockError{ProductID: product.ID, ProductName: product.Name}
		}
		if err != nil {
			return nil, persistenceErr("decrement stock", err)
		}

		subtotal := product.Price.Mul(decimal.NewFromInt(int64(item.Quantity)))
		total = total.Add(subtotal)
		lines[i] = &model.OrderLine{
			UserID:        userID,
			ProductID:     product.ID,
			ProductName:   product.Name,
			Quantity:      item.Quantity,
			Subtotal:      subtotal,
			TransactionID: captureID,
			OrderedAt:     now,
		}
	}

	order := &model.Order{
		UserID:        userID,
		TransactionID: captureID,
		Total:         total,
		CreatedAt:     now,
	}
	if err := s.orderRepo.Create(ctx, tx, order); err != nil {
		return nil, persistenceErr("create order", err)
	}
	for _, line := range lines {
		line.OrderID = order.ID
	}
	if err := s.orderRepo.CreateOrderLines(ctx, tx, lines); err != nil {
		return nil, persistenceErr("create order lines", err)
	}

	if err := s.cartRepo.DeleteAll(ctx, tx, userID); err != nil {
		return nil, persistenceErr("clear cart", err)
	}

	return order, nil
}
