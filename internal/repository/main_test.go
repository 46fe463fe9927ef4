package repository

import (
	"context"
	"fmt"
	"storefront-payments/internal/client"
	"storefront-payments/internal/model"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := client.InitSqliteClient(fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString()))
	require.NoError(t, err)

	t.Cleanup(func() {
		sqlDB, _ := db.DB()
		sqlDB.Close()
	})
	return db
}

func createProduct(t *testing.T, db *gorm.DB, name, price string, stock int) *model.Product {
	t.Helper()

	p := &model.Product{Name: name, Price: decimal.RequireFromString(price), Quantity: stock}
	require.NoError(t, NewProductRepository(db).Create(context.Background(), p))
	return p
}
