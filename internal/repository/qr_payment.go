package repository

import (
	"context"
	"storefront-payments/internal/model"

	"gorm.io/gorm"
)

type QRPaymentRepository interface {
	Create(ctx context.Context, payment *model.QRPayment) error
	FindByRef(ctx context.Context, txnRetrievalRef string) (*model.QRPayment, error)
}

type qrPaymentRepoImpl struct {
	db *gorm.DB
}

func NewQRPaymentRepository(db *gorm.DB) QRPaymentRepository {
	return &qrPaymentRepoImpl{
		db: db,
	}
}

func (r *qrPaymentRepoImpl) Create(ctx context.Context, payment *model.QRPayment) error {
	return r.db.WithContext(ctx).Create(payment).Error
}

func (r *qrPaymentRepoImpl) FindByRef(ctx context.Context, txnRetrievalRef string) (*model.QRPayment, error) {
	var payment model.QRPayment
	err := r.db.WithContext(ctx).
		Where("txn_retrieval_ref = ?", txnRetrievalRef).
		First(&payment).Error
	if err != nil {
		return nil, err
	}
	return &payment, nil
}
