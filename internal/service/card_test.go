package service

import (
	"context"
	"fmt"
	"storefront-payments/internal/client"
	"storefront-payments/internal/model"
	"testing"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBraintree struct {
	charged []decimal.Decimal
	err     error
}

func (f *fakeBraintree) ChargeOneTime(_ context.Context, _ string, amount decimal.Decimal) (*client.BraintreeCharge, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.charged = append(f.charged, amount)
	return &client.BraintreeCharge{TransactionID: fmt.Sprintf("bt-%d", len(f.charged)), Status: "submitted_for_settlement"}, nil
}

func TestChargeCartFinalizesThroughReconciler(t *testing.T) {
	env := newTestEnv(t)
	a := env.product(t, "Product A", "10.00", 5)
	env.putInCart(t, "u1", a.ID, 2)
	bt := &fakeBraintree{}

	svc := NewCardService(bt, env.cart, env.reconciler, "SGD", zerolog.Nop())
	res, err := svc.ChargeCart(context.Background(), "u1", "fake-valid-nonce")
	require.NoError(t, err)

	assert.Equal(t, "bt-1", res.CaptureID)
	assert.NotZero(t, res.OrderID)
	require.Len(t, bt.charged, 1)
	assert.Equal(t, "20.00", bt.charged[0].StringFixed(2))

	transaction, err := env.transactionRepo.FindByID(context.Background(), nil, "bt-1")
	require.NoError(t, err)
	assert.Equal(t, ProviderBraintree, transaction.Provider)
	assert.Equal(t, 3, env.stock(t, a.ID))
}

func TestChargeCartDeclined(t *testing.T) {
	env := newTestEnv(t)
	a := env.product(t, "Product A", "10.00", 5)
	env.putInCart(t, "u1", a.ID, 1)

	bt := &fakeBraintree{err: fmt.Errorf("%w: declined by processor: Do Not Honor", client.ErrPaymentDeclined)}
	svc := NewCardService(bt, env.cart, env.reconciler, "SGD", zerolog.Nop())

	_, err := svc.ChargeCart(context.Background(), "u1", "fake-processor-declined-visa-nonce")
	assert.ErrorIs(t, err, ErrPaymentDeclined)
	assert.Zero(t, env.count(t, &model.Transaction{}))
	assert.Equal(t, 5, env.stock(t, a.ID))
}

func TestChargeCartValidation(t *testing.T) {
	env := newTestEnv(t)
	svc := NewCardService(&fakeBraintree{}, env.cart, env.reconciler, "SGD", zerolog.Nop())

	_, err := svc.ChargeCart(context.Background(), "u1", "")
	assert.ErrorIs(t, err, ErrInvalidPayload)

	_, err = svc.ChargeCart(context.Background(), "u1", "nonce")
	assert.ErrorIs(t, err, ErrEmptyCart)
}
