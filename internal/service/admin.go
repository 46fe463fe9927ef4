package service

import (
	"context"
	"fmt"
	"storefront-payments/internal/model"
	"storefront-payments/internal/repository"
)

// AdminService backs the back-office transaction views and the operator CLI.
type AdminService interface {
	ListTransactions(ctx context.Context, search string) ([]*model.Transaction, error)
	ListFailedCaptures(ctx context.Context) ([]*model.Transaction, error)
}

type adminServiceImpl struct {
	transactionRepo repository.TransactionRepository
}

func NewAdminService(
	transactionRepo repository.TransactionRepository,
) AdminService {
	return &adminServiceImpl{
		transactionRepo: transactionRepo,
	}
}

func (s *adminServiceImpl) ListTransactions(ctx context.Context, search string) ([]*model.Transaction, error) {
	transactions, err := s.transactionRepo.List(ctx, search)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	return transactions, nil
}

// ListFailedCaptures returns payments taken by a provider that never became an order.
func (s *adminServiceImpl) ListFailedCaptures(ctx context.Context) ([]*model.Transaction, error) {
	transactions, err := s.transactionRepo.ListByStatus(ctx, model.TransactionFailed)
	if err != nil {
		return nil, fmt.Errorf("list failed captures: %w", err)
	}
	return transactions, nil
}
