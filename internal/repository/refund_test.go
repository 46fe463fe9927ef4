package repository

import (
	"context"
	"testing"

	"storefront-payments/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRefundAdvanceNeverRegresses(t *testing.T) {
	repo := NewRefundRepository(newTestDB(t))
	ctx := context.Background()

	created, err := repo.Create(ctx, nil, &model.Refund{
		ID:            "rf-1",
		TransactionID: "CAP1",
		UserID:        "user-1",
		Reason:        "damaged",
		Status:        model.RefundPending,
	})
	require.NoError(t, err)
	require.True(t, created)

	created, err = repo.Create(ctx, nil, &model.Refund{ID: "rf-2", TransactionID: "CAP1", UserID: "user-1", Status: model.RefundPending})
	require.NoError(t, err)
	assert.False(t, created, "one refund per transaction")

	pending, err := repo.ListPending(ctx)
	require.NoError(t, err)
	assert.Len(t, pending, 1)

	moved, err := repo.Advance(ctx, nil, "rf-1", model.RefundRefunded, "PP-RF-1")
	require.NoError(t, err)
	assert.True(t, moved)

	moved, err = repo.Advance(ctx, nil, "rf-1", model.RefundApproved, "")
	require.NoError(t, err)
	assert.False(t, moved)

	moved, err = repo.Advance(ctx, nil, "rf-1", model.RefundRefunded, "PP-RF-2")
	require.NoError(t, err)
	assert.False(t, moved)

	got, err := repo.FindByID(ctx, "rf-1")
	require.NoError(t, err)
	assert.Equal(t, model.RefundRefunded, got.Status)
	require.NotNil(t, got.ProviderRefundID)
	assert.Equal(t, "PP-RF-1", *got.ProviderRefundID)

	pending, err = repo.ListPending(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)
}
