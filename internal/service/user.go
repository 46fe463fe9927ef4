package service

import (
	"context"
	"errors"
	"fmt"
	"storefront-payments/internal/dto"
	"storefront-payments/internal/repository"

	"gorm.io/gorm"
)

// UserService serves a shopper's order history.
type UserService interface {
	ListOrders(ctx context.Context, userID string) ([]*dto.OrderSummary, error)
	GetInvoice(ctx context.Context, userID string, orderID uint) (*dto.Invoice, error)
}

type userServiceImpl struct {
	orderRepo repository.OrderRepository
}

func NewUserService(
	orderRepo repository.OrderRepository,
) UserService {
	return &userServiceImpl{
		orderRepo: orderRepo,
	}
}

func (s *userServiceImpl) ListOrders(ctx context.Context, userID string) ([]*dto.OrderSummary, error) {
	orders, err := s.orderRepo.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}

	summaries := make([]*dto.OrderSummary, len(orders))
	for i, order := range orders {
		summaries[i] = &dto.OrderSummary{
			OrderID:       order.ID,
			TransactionID: order.TransactionID,
			OrderedAt:     order.CreatedAt,
			Total:         order.Total,
		}
	}
	return summaries, nil
}

func (s *userServiceImpl) GetInvoice(ctx context.Context, userID string, orderID uint) (*dto.Invoice, error) {
	order, err := s.orderRepo.FindByID(ctx, orderID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("order %d: %w", orderID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get order: %w", err)
	}
	if order.UserID != userID {
		return nil, fmt.Errorf("order %d: %w", orderID, ErrForbidden)
	}

	lines, err := s.orderRepo.GetOrderLines(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("get order lines: %w", err)
	}

	invoice := &dto.Invoice{
		OrderID:       order.ID,
		TransactionID: order.TransactionID,
		OrderedAt:     order.CreatedAt,
		Lines:         make([]dto.InvoiceLine, len(lines)),
		Total:         order.Total,
	}
	for i, line := range lines {
		invoice.Lines[i] = dto.InvoiceLine{
			ProductID:   line.ProductID,
			ProductName: line.ProductName,
			Quantity:    line.Quantity,
			Subtotal:    line.Subtotal,
		}
	}
	return invoice, nil
}
