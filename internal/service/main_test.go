package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"storefront-payments/internal/client"
	"storefront-payments/internal/events"
	"storefront-payments/internal/model"
	"storefront-payments/internal/notify"
	"storefront-payments/internal/repository"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type mockPaypalClient struct {
	mock.Mock
}

func (m *mockPaypalClient) CreateOrder(ctx context.Context, amount decimal.Decimal, currency, userID string) (*client.CreateOrderResponse, error) {
	args := m.Called(ctx, amount, currency, userID)
	resp, _ := args.Get(0).(*client.CreateOrderResponse)
	return resp, args.Error(1)
}

func (m *mockPaypalClient) CaptureOrder(ctx context.Context, orderID string) (*model.PaypalOrder, error) {
	args := m.Called(ctx, orderID)
	order, _ := args.Get(0).(*model.PaypalOrder)
	return order, args.Error(1)
}

func (m *mockPaypalClient) GetOrder(ctx context.Context, orderID string) (*model.PaypalOrder, error) {
	args := m.Called(ctx, orderID)
	order, _ := args.Get(0).(*model.PaypalOrder)
	return order, args.Error(1)
}

func (m *mockPaypalClient) RefundCapture(ctx context.Context, captureID string) (*model.PaypalRefund, error) {
	args := m.Called(ctx, captureID)
	refund, _ := args.Get(0).(*model.PaypalRefund)
	return refund, args.Error(1)
}

func (m *mockPaypalClient) VerifyWebhookSignature(ctx context.Context, headers http.Header, body []byte) error {
	args := m.Called(ctx, headers, body)
	return args.Error(0)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *recordingPublisher) Publish(_ context.Context, event events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) ofType(eventType string) []events.Event {
	p.mu.Lock()
	defer p.mu.Unlock()

	var out []events.Event
	for _, e := range p.events {
		if e.Type == eventType {
			out = append(out, e)
		}
	}
	return out
}

type testEnv struct {
	db              *gorm.DB
	productRepo     repository.ProductRepository
	inventoryRepo   repository.InventoryRepository
	cartRepo        repository.CartRepository
	orderRepo       repository.OrderRepository
	transactionRepo repository.TransactionRepository
	refundRepo      repository.RefundRepository
	qrPaymentRepo   repository.QRPaymentRepository

	// reconciler log output, one JSON object per line
	logs *bytes.Buffer

	paypal    *mockPaypalClient
	registry  *notify.Registry
	publisher *recordingPublisher

	finalizer  CheckoutFinalizer
	reconciler PaymentReconciler
	cart       CartService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db, err := client.InitSqliteClient(fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString()))
	require.NoError(t, err)
	t.Cleanup(func() {
		sqlDB, _ := db.DB()
		sqlDB.Close()
	})

	env := &testEnv{
		db:              db,
		productRepo:     repository.NewProductRepository(db),
		inventoryRepo:   repository.NewInventoryRepository(db),
		cartRepo:        repository.NewCartRepository(db),
		orderRepo:       repository.NewOrderRepository(db),
		transactionRepo: repository.NewTransactionRepository(db),
		refundRepo:      repository.NewRefundRepository(db),
		qrPaymentRepo:   repository.NewQRPaymentRepository(db),
		logs:            &bytes.Buffer{},
		paypal:          &mockPaypalClient{},
		registry:        notify.NewRegistry(),
		publisher:       &recordingPublisher{},
	}
	env.finalizer = NewCheckoutFinalizer(db, env.cartRepo, env.productRepo, env.inventoryRepo, env.orderRepo)
	env.reconciler = NewPaymentReconciler(
		db,
		env.paypal,
		env.finalizer,
		env.transactionRepo,
		env.refundRepo,
		repository.NewWebhookEventRepository(db),
		env.registry,
		env.publisher,
		zerolog.New(zerolog.SyncWriter(env.logs)),
	)
	env.cart = NewCartService(env.cartRepo, env.productRepo)
	return env
}

func (e *testEnv) product(t *testing.T, name, price string, stock int) *model.Product {
	t.Helper()

	p := &model.Product{Name: name, Price: decimal.RequireFromString(price), Quantity: stock}
	require.NoError(t, e.productRepo.Create(context.Background(), p))
	return p
}

// putInCart writes the cart line directly, bypassing the add-to-cart stock check.
func (e *testEnv) putInCart(t *testing.T, userID string, productID uint, qty int) {
	t.Helper()
	require.NoError(t, e.cartRepo.Add(context.Background(), userID, productID, qty))
}

func (e *testEnv) stock(t *testing.T, productID uint) int {
	t.Helper()

	stock, err := e.inventoryRepo.GetStock(context.Background(), nil, productID)
	require.NoError(t, err)
	return stock
}

func (e *testEnv) count(t *testing.T, m interface{}) int64 {
	t.Helper()

	var n int64
	require.NoError(t, e.db.Model(m).Count(&n).Error)
	return n
}

func captureCompletedBody(t *testing.T, eventID, captureID, paypalOrderID, amount string) []byte {
	t.Helper()

	body, err := json.Marshal(map[string]any{
		"id":            eventID,
		"event_type":    model.EventCaptureCompleted,
		"resource_type": "capture",
		"resource": map[string]any{
			"id":          captureID,
			"status":      "COMPLETED",
			"create_time": "2026-10-19T08:00:00Z",
			"amount":      map[string]string{"currency_code": "SGD", "value": amount},
			"supplementary_data": map[string]any{
				"related_ids": map[string]string{"order_id": paypalOrderID},
			},
		},
	})
	require.NoError(t, err)
	return body
}

func captureRefundedBody(t *testing.T, eventID, refundID, captureID string) []byte {
	t.Helper()

	body, err := json.Marshal(map[string]any{
		"id":            eventID,
		"event_type":    model.EventCaptureRefunded,
		"resource_type": "refund",
		"resource": map[string]any{
			"id":     refundID,
			"status": "COMPLETED",
			"amount": map[string]string{"currency_code": "SGD", "value": "20.00"},
			"links": []map[string]string{
				{"rel": "self", "href": "https://api-m.sandbox.paypal.com/v2/payments/refunds/" + refundID},
				{"rel": "up", "href": "https://api-m.sandbox.paypal.com/v2/payments/captures/" + captureID},
			},
		},
	})
	require.NoError(t, err)
	return body
}

func paypalOrderOf(orderID, userID string) *model.PaypalOrder {
	return &model.PaypalOrder{
		ID:     orderID,
		Status: "COMPLETED",
		Payer:  model.Payer{PayerID: "PAYER-" + userID, Email: userID + "@example.com"},
		PurchaseUnits: []model.PurchaseUnit{
			{CustomID: userID},
		},
	}
}
