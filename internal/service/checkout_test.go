package service

import (
	"context"
	"errors"
	"fmt"
	"storefront-payments/internal/model"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

func TestFinalizeCheckoutCommitsCart(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	a := env.product(t, "Product A", "10.00", 5)
	env.putInCart(t, "u1", a.ID, 2)

	orderID, err := env.finalizer.FinalizeCheckout(ctx, "u1", "CAP1")
	require.NoError(t, err)
	require.NotZero(t, orderID)

	assert.Equal(t, 3, env.stock(t, a.ID))

	lines, err := env.orderRepo.GetOrderLines(ctx, orderID)
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.Equal(t, 2, lines[0].Quantity)
	assert.True(t, decimal.RequireFromString("20.00").Equal(lines[0].Subtotal))
	assert.Equal(t, "CAP1", lines[0].TransactionID)
	assert.Equal(t, "u1", lines[0].UserID)

	items, err := env.cartRepo.GetUserCart(ctx, nil, "u1")
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestFinalizeCheckoutIsAllOrNothing(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	a := env.product(t, "Product A", "10.00", 5)
	b := env.product(t, "Product B", "4.00", 2)
	env.putInCart(t, "u1", a.ID, 1)
	env.putInCart(t, "u1", b.ID, 3)

	_, err := env.finalizer.FinalizeCheckout(ctx, "u1", "CAP1")
	require.ErrorIs(t, err, ErrInsufficientStock)
	assert.EqualError(t, err, "Not enough stock for Product B")

	assert.Equal(t, 5, env.stock(t, a.ID))
	assert.Equal(t, 2, env.stock(t, b.ID))
	assert.Zero(t, env.count(t, &model.Order{}))
	assert.Zero(t, env.count(t, &model.OrderLine{}))

	items, err := env.cartRepo.GetUserCart(ctx, nil, "u1")
	require.NoError(t, err)
	assert.Len(t, items, 2)
}

func TestFinalizeCheckoutEmptyCart(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.finalizer.FinalizeCheckout(context.Background(), "nobody", "CAP1")
	assert.ErrorIs(t, err, ErrEmptyCart)
}

func TestFinalizeCheckoutUsesPriceAtCommit(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	a := env.product(t, "Product A", "10.00", 5)
	env.putInCart(t, "u1", a.ID, 2)

	require.NoError(t, env.db.Model(&model.Product{}).Where("id = ?", a.ID).
		Update("price", decimal.RequireFromString("12.50")).Error)

	orderID, err := env.finalizer.FinalizeCheckout(ctx, "u1", "CAP1")
	require.NoError(t, err)

	order, err := env.orderRepo.FindByID(ctx, orderID)
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("25.00").Equal(order.Total))
}

func TestFinalizeCheckoutOrderIDsIncrease(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	a := env.product(t, "Product A", "1.00", 10)

	var last uint
	for i := 0; i < 3; i++ {
		env.putInCart(t, "u1", a.ID, 1)
		orderID, err := env.finalizer.FinalizeCheckout(ctx, "u1", fmt.Sprintf("CAP%d", i))
		require.NoError(t, err)
		assert.Greater(t, orderID, last)
		last = orderID
	}
}

func TestConcurrentCheckoutsNeverOversell(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	const stock = 3
	p := env.product(t, "Limited", "5.00", stock)

	users := 10
	for i := 0; i < users; i++ {
		env.putInCart(t, fmt.Sprintf("u%d", i), p.ID, 1)
	}

	var g errgroup.Group
	results := make([]error, users)
	for i := 0; i < users; i++ {
		i := i
		g.Go(func() error {
			_, err := env.finalizer.FinalizeCheckout(ctx, fmt.Sprintf("u%d", i), fmt.Sprintf("CAP-%d", i))
			results[i] = err
			if err != nil && !errors.Is(err, ErrInsufficientStock) {
				return err
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())

	succeeded := 0
	for _, err := range results {
		if err == nil {
			succeeded++
		}
	}
	assert.Equal(t, stock, succeeded)
	assert.Zero(t, env.stock(t, p.ID))
	assert.Equal(t, int64(stock), env.count(t, &model.Order{}))
}
