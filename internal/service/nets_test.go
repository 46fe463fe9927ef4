package service

import (
	"context"
	"storefront-payments/internal/client"
	"storefront-payments/internal/dto"
	"storefront-payments/internal/model"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type netsQuery struct {
	ref     string
	timeout bool
}

type fakeNets struct {
	mu        sync.Mutex
	requested []decimal.Decimal
	queries   []netsQuery
	// respond answers the n-th query, counted from 1
	respond func(n int, timeout bool) *model.NetsQRData
}

func (f *fakeNets) RequestQR(_ context.Context, amount decimal.Decimal) (*model.NetsQRData, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requested = append(f.requested, amount)
	return &model.NetsQRData{
		ResponseCode:    model.NetsResponseSuccess,
		TxnStatus:       model.NetsTxnStatusSuccess,
		QRCode:          "iVBORw0KGgo=",
		TxnRetrievalRef: "REF1",
		NetworkStatus:   0,
	}, nil
}

func (f *fakeNets) Query(_ context.Context, ref string, timeout bool) (*model.NetsQRData, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, netsQuery{ref: ref, timeout: timeout})
	return f.respond(len(f.queries), timeout), nil
}

func (f *fakeNets) queryLog() []netsQuery {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]netsQuery(nil), f.queries...)
}

var _ client.NetsClient = (*fakeNets)(nil)

func pending() *model.NetsQRData {
	return &model.NetsQRData{ResponseCode: "09", TxnStatus: 0}
}

func paid() *model.NetsQRData {
	return &model.NetsQRData{ResponseCode: model.NetsResponseSuccess, TxnStatus: model.NetsTxnStatusSuccess}
}

func newNetsService(env *testEnv, nets client.NetsClient) NetsService {
	return NewNetsService(nets, env.cart, env.reconciler, env.qrPaymentRepo, time.Millisecond, 60, zerolog.Nop())
}

// issueQR generates the QR code for the user's current cart and returns its ref.
func issueQR(t *testing.T, svc NetsService, userID string) string {
	t.Helper()

	resp, err := svc.GenerateQR(context.Background(), userID)
	require.NoError(t, err)
	return resp.TxnRetrievalRef
}

func collect(out *[]dto.QRPollEvent) func(dto.QRPollEvent) error {
	return func(ev dto.QRPollEvent) error {
		*out = append(*out, ev)
		return nil
	}
}

func TestGenerateQRChargesCartTotal(t *testing.T) {
	env := newTestEnv(t)
	a := env.product(t, "Product A", "10.00", 5)
	b := env.product(t, "Product B", "2.35", 5)
	env.putInCart(t, "u1", a.ID, 2)
	env.putInCart(t, "u1", b.ID, 1)
	nets := &fakeNets{}

	resp, err := newNetsService(env, nets).GenerateQR(context.Background(), "u1")
	require.NoError(t, err)

	assert.Equal(t, "REF1", resp.TxnRetrievalRef)
	assert.Equal(t, "22.35", resp.Total.StringFixed(2))
	require.Len(t, nets.requested, 1)
	assert.Equal(t, "22.35", nets.requested[0].StringFixed(2))

	qr, err := env.qrPaymentRepo.FindByRef(context.Background(), "REF1")
	require.NoError(t, err)
	assert.Equal(t, "u1", qr.UserID)
	assert.Equal(t, "22.35", qr.Amount.StringFixed(2))
}

func TestGenerateQREmptyCart(t *testing.T) {
	env := newTestEnv(t)

	_, err := newNetsService(env, &fakeNets{}).GenerateQR(context.Background(), "u1")
	assert.ErrorIs(t, err, ErrEmptyCart)
}

func TestPollQRStopsOnSuccess(t *testing.T) {
	env := newTestEnv(t)
	a := env.product(t, "Product A", "10.00", 5)
	env.putInCart(t, "u1", a.ID, 2)

	nets := &fakeNets{respond: func(n int, _ bool) *model.NetsQRData {
		if n == 3 {
			return paid()
		}
		return pending()
	}}

	svc := newNetsService(env, nets)
	ref := issueQR(t, svc, "u1")

	var got []dto.QRPollEvent
	require.NoError(t, svc.PollQR(context.Background(), "u1", ref, collect(&got)))

	require.Len(t, got, 3)
	assert.Equal(t, dto.QRPollPending, got[0].Status)
	assert.Equal(t, dto.QRPollPending, got[1].Status)
	assert.Equal(t, dto.QRPollSuccess, got[2].Status)
	assert.Equal(t, 3, got[2].Poll)
	assert.NotZero(t, got[2].OrderID)

	// no query after the terminal one
	time.Sleep(10 * time.Millisecond)
	assert.Len(t, nets.queryLog(), 3)

	transaction, err := env.transactionRepo.FindByID(context.Background(), nil, NetsCaptureID("REF1"))
	require.NoError(t, err)
	assert.Equal(t, ProviderNets, transaction.Provider)
	assert.Equal(t, "20.00", transaction.Amount.StringFixed(2))
	assert.Equal(t, 3, env.stock(t, a.ID))
}

func TestPollQRHardTimeout(t *testing.T) {
	env := newTestEnv(t)
	a := env.product(t, "Product A", "10.00", 5)
	env.putInCart(t, "u1", a.ID, 1)

	nets := &fakeNets{respond: func(int, bool) *model.NetsQRData { return pending() }}

	svc := newNetsService(env, nets)
	ref := issueQR(t, svc, "u1")

	var got []dto.QRPollEvent
	require.NoError(t, svc.PollQR(context.Background(), "u1", ref, collect(&got)))

	queries := nets.queryLog()
	require.Len(t, queries, 61)
	for _, q := range queries[:60] {
		assert.False(t, q.timeout)
	}
	assert.True(t, queries[60].timeout, "timeout flag goes out on the query after poll 60")

	last := got[len(got)-1]
	assert.Equal(t, dto.QRPollFail, last.Status)
	for _, ev := range got[:len(got)-1] {
		assert.Equal(t, dto.QRPollPending, ev.Status)
	}

	assert.Zero(t, env.count(t, &model.Transaction{}))
	assert.Equal(t, 5, env.stock(t, a.ID))
}

func TestPollQRPaidOnTimeoutQuery(t *testing.T) {
	env := newTestEnv(t)
	a := env.product(t, "Product A", "10.00", 5)
	env.putInCart(t, "u1", a.ID, 1)

	nets := &fakeNets{respond: func(_ int, timeout bool) *model.NetsQRData {
		if timeout {
			return paid()
		}
		return pending()
	}}

	svc := newNetsService(env, nets)
	ref := issueQR(t, svc, "u1")

	var got []dto.QRPollEvent
	require.NoError(t, svc.PollQR(context.Background(), "u1", ref, collect(&got)))
	assert.Equal(t, dto.QRPollSuccess, got[len(got)-1].Status)
}

func TestPollQRCancelledOnDisconnect(t *testing.T) {
	env := newTestEnv(t)
	a := env.product(t, "Product A", "10.00", 5)
	env.putInCart(t, "u1", a.ID, 1)
	nets := &fakeNets{respond: func(int, bool) *model.NetsQRData { return pending() }}
	svc := newNetsService(env, nets)
	ref := issueQR(t, svc, "u1")

	ctx, cancel := context.WithCancel(context.Background())
	var got []dto.QRPollEvent
	err := svc.PollQR(ctx, "u1", ref, func(ev dto.QRPollEvent) error {
		got = append(got, ev)
		if ev.Poll == 2 {
			cancel()
		}
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)

	time.Sleep(10 * time.Millisecond)
	assert.Len(t, nets.queryLog(), 2)
	assert.Len(t, got, 2)
}

func TestPollQRRejectedPaymentStaysRejected(t *testing.T) {
	env := newTestEnv(t)
	a := env.product(t, "Product A", "10.00", 1)
	env.putInCart(t, "u1", a.ID, 3)

	nets := &fakeNets{respond: func(int, bool) *model.NetsQRData { return paid() }}
	svc := newNetsService(env, nets)
	ref := issueQR(t, svc, "u1")

	var first []dto.QRPollEvent
	require.NoError(t, svc.PollQR(context.Background(), "u1", ref, collect(&first)))
	require.NotEmpty(t, first)
	assert.Equal(t, dto.QRPollFail, first[len(first)-1].Status)
	assert.Equal(t, "Not enough stock for Product A", first[len(first)-1].Message)

	// reopening the stream must not turn the FAILED capture into a success
	var second []dto.QRPollEvent
	require.NoError(t, svc.PollQR(context.Background(), "u1", ref, collect(&second)))
	require.NotEmpty(t, second)
	last := second[len(second)-1]
	assert.Equal(t, dto.QRPollFail, last.Status)
	assert.Equal(t, "Not enough stock for Product A", last.Message)
	assert.Zero(t, last.OrderID)

	assert.Zero(t, env.count(t, &model.Order{}))
	assert.Equal(t, 1, env.stock(t, a.ID))
}

func TestPollQRSettlesAgainstIssuedAmount(t *testing.T) {
	env := newTestEnv(t)
	a := env.product(t, "Product A", "10.00", 20)
	env.putInCart(t, "u1", a.ID, 2)

	nets := &fakeNets{respond: func(int, bool) *model.NetsQRData { return paid() }}
	svc := newNetsService(env, nets)
	ref := issueQR(t, svc, "u1")

	// the cart grows after the 20.00 code was shown
	env.putInCart(t, "u1", a.ID, 8)

	var got []dto.QRPollEvent
	require.NoError(t, svc.PollQR(context.Background(), "u1", ref, collect(&got)))
	last := got[len(got)-1]
	assert.Equal(t, dto.QRPollFail, last.Status)
	assert.Equal(t, "Captured amount 20.00 does not match order total 100.00", last.Message)

	transaction, err := env.transactionRepo.FindByID(context.Background(), nil, NetsCaptureID(ref))
	require.NoError(t, err)
	assert.Equal(t, model.TransactionFailed, transaction.Status)
	assert.Equal(t, "20.00", transaction.Amount.StringFixed(2))
	assert.Zero(t, env.count(t, &model.Order{}))
	assert.Equal(t, 20, env.stock(t, a.ID))
}

func TestPollQROnlyByIssuingUser(t *testing.T) {
	env := newTestEnv(t)
	a := env.product(t, "Product A", "10.00", 5)
	env.putInCart(t, "u1", a.ID, 1)
	env.putInCart(t, "u2", a.ID, 1)

	nets := &fakeNets{respond: func(int, bool) *model.NetsQRData { return paid() }}
	svc := newNetsService(env, nets)
	ref := issueQR(t, svc, "u1")

	var got []dto.QRPollEvent
	err := svc.PollQR(context.Background(), "u2", ref, collect(&got))
	assert.ErrorIs(t, err, ErrForbidden)

	err = svc.PollQR(context.Background(), "u1", "REF-UNKNOWN", collect(&got))
	assert.ErrorIs(t, err, ErrNotFound)

	assert.Empty(t, got)
	assert.Empty(t, nets.queryLog())
	assert.Zero(t, env.count(t, &model.Transaction{}))
}
