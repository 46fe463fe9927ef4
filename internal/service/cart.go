package service

import (
	"context"
	"errors"
	"fmt"
	"storefront-payments/internal/dto"
	"storefront-payments/internal/model"
	"storefront-payments/internal/repository"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type CartService interface {
	Add(ctx context.Context, userID string, productID uint, quantity int) error
	UpdateQuantities(ctx context.Context, userID string, quantities map[uint]int) error
	Remove(ctx context.Context, userID string, productID uint) error
	Clear(ctx context.Context, userID string) error
	View(ctx context.Context, userID string) (*dto.CartView, error)
	// Total is the server-side amount charged by every payment rail.
	Total(ctx context.Context, userID string) (decimal.Decimal, error)
}

type cartServiceImpl struct {
	cartRepo    repository.CartRepository
	productRepo repository.ProductRepository
}

func NewCartService(
	cartRepo repository.CartRepository,
	productRepo repository.ProductRepository,
) CartService {
	return &cartServiceImpl{
		cartRepo:    cartRepo,
		productRepo: productRepo,
	}
}

func (s *cartServiceImpl) Add(ctx context.Context, userID string, productID uint, quantity int) error {
	if quantity <= 0 {
		quantity = 1
	}

	product, err := s.productRepo.FindByID(ctx, nil, productID)
	if errors.Is(err, gorm.ErrRecordNotFound) || (err == nil && product.Hidden) {
		return fmt.Errorf("product %d: %w", productID, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("get product: %w", err)
	}

	items, err := s.cartRepo.GetUserCart(ctx, nil, userID)
	if err != nil {
		return fmt.Errorf("get user cart: %w", err)
	}
	inCart := 0
	for _, item := range items {
		if item.ProductID == productID {
			inCart = item.Quantity
			break
		}
	}

	if inCart+quantity > product.Quantity {
		return &CartStockError{Available: product.Quantity, InCart: inCart}
	}

	if err := s.cartRepo.Add(ctx, userID, productID, quantity); err != nil {
		return fmt.Errorf("add cart item: %w", err)
	}
	return nil
}

func (s *cartServiceImpl) UpdateQuantities(ctx context.Context, userID string, quantities map[uint]int) error {
	for productID, quantity := range quantities {
		if quantity < 1 {
			quantity = 1
		}
		err := s.cartRepo.UpdateQuantity(ctx, userID, productID, quantity)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("cart item %d: %w", productID, ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("update cart item: %w", err)
		}
	}
	return nil
}

func (s *cartServiceImpl) Remove(ctx context.Context, userID string, productID uint) error {
	if err := s.cartRepo.Delete(ctx, userID, productID); err != nil {
		return fmt.Errorf("remove cart item: %w", err)
	}
	return nil
}

func (s *cartServiceImpl) Clear(ctx context.Context, userID string) error {
	if err := s.cartRepo.DeleteAll(ctx, nil, userID); err != nil {
		return fmt.Errorf("clear cart: %w", err)
	}
	return nil
}

func (s *cartServiceImpl) View(ctx context.Context, userID string) (*dto.CartView, error) {
	items, err := s.cartRepo.GetUserCart(ctx, nil, userID)
	if err != nil {
		return nil, fmt.Errorf("get user cart: %w", err)
	}

	view := &dto.CartView{Lines: []dto.CartLine{}, Total: decimal.Zero}
	if len(items) == 0 {
		return view, nil
	}

	productIDs := make([]uint, len(items))
	for i, item := range items {
		productIDs[i] = item.ProductID
	}
	products, err := s.productRepo.FindMany(ctx, nil, productIDs)
	if err != nil {
		return nil, fmt.Errorf("get cart products: %w", err)
	}
	productMap := make(map[uint]*model.Product, len(products))
	for _, p := range products {
		productMap[p.ID] = p
	}

	for _, item := range items {
		product, ok := productMap[item.ProductID]
		if !ok {
			continue
		}
		subtotal := product.Price.Mul(decimal.NewFromInt(int64(item.Quantity)))
		view.Lines = append(view.Lines, dto.CartLine{
			ProductID: product.ID,
			Name:      product.Name,
			Price:     product.Price,
			Quantity:  item.Quantity,
			Available: product.Quantity,
			Subtotal:  subtotal,
		})
		view.Total = view.Total.Add(subtotal)
	}
	return view, nil
}

func (s *cartServiceImpl) Total(ctx context.Context, userID string) (decimal.Decimal, error) {
	view, err := s.View(ctx, userID)
	if err != nil {
		return decimal.Zero, err
	}
	return view.Total, nil
}
