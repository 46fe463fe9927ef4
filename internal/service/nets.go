package service

import (
	"context"
	"errors"
	"fmt"
	"storefront-payments/internal/client"
	"storefront-payments/internal/dto"
	"storefront-payments/internal/model"
	"storefront-payments/internal/repository"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

const netsCurrency = "SGD"

type NetsService interface {
	GenerateQR(ctx context.Context, userID string) (*dto.QRCodeResponse, error)
	// PollQR queries the provider until the payment settles, fails or times out,
	// passing every response to emit. It returns when ctx is cancelled. Only the
	// user the QR code was generated for may poll it.
	PollQR(ctx context.Context, userID, txnRetrievalRef string, emit func(dto.QRPollEvent) error) error
}

type netsServiceImpl struct {
	netsClient    client.NetsClient
	cartService   CartService
	reconciler    PaymentReconciler
	qrPaymentRepo repository.QRPaymentRepository
	interval      time.Duration
	maxPolls      int
	logger        zerolog.Logger
}

func NewNetsService(
	netsClient client.NetsClient,
	cartService CartService,
	reconciler PaymentReconciler,
	qrPaymentRepo repository.QRPaymentRepository,
	interval time.Duration,
	maxPolls int,
	logger zerolog.Logger,
) NetsService {
	return &netsServiceImpl{
		netsClient:    netsClient,
		cartService:   cartService,
		reconciler:    reconciler,
		qrPaymentRepo: qrPaymentRepo,
		interval:      interval,
		maxPolls:      maxPolls,
		logger:        logger.With().Str("component", "nets").Logger(),
	}
}

func (s *netsServiceImpl) GenerateQR(ctx context.Context, userID string) (*dto.QRCodeResponse, error) {
	total, err := s.cartService.Total(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !total.IsPositive() {
		return nil, ErrEmptyCart
	}
	total = total.Round(2)

	data, err := s.netsClient.RequestQR(ctx, total)
	if err != nil {
		return nil, err
	}
	if !data.Succeeded() || data.QRCode == "" {
		return nil, &ProviderError{Provider: "nets", Code: data.ResponseCode, Message: data.ErrorMessage}
	}

	err = s.qrPaymentRepo.Create(ctx, &model.QRPayment{
		TxnRetrievalRef: data.TxnRetrievalRef,
		UserID:          userID,
		Amount:          total,
		Currency:        netsCurrency,
	})
	if err != nil {
		return nil, persistenceErr("record qr payment", err)
	}

	s.logger.Info().Str("user_id", userID).Str("txn_retrieval_ref", data.TxnRetrievalRef).
		Str("amount", total.StringFixed(2)).Msg("nets qr generated")

	return &dto.QRCodeResponse{
		Total:           total,
		QRCode:          data.QRCode,
		TxnRetrievalRef: data.TxnRetrievalRef,
		NetworkStatus:   data.NetworkStatus,
		TimerSeconds:    int((s.interval * time.Duration(s.maxPolls)).Seconds()),
	}, nil
}

func (s *netsServiceImpl) PollQR(ctx context.Context, userID, txnRetrievalRef string, emit func(dto.QRPollEvent) error) error {
	log := s.logger.With().Str("user_id", userID).Str("txn_retrieval_ref", txnRetrievalRef).Logger()

	qr, err := s.qrPaymentRepo.FindByRef(ctx, txnRetrievalRef)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("qr payment %s: %w", txnRetrievalRef, ErrNotFound)
	}
	if err != nil {
		return persistenceErr("get qr payment", err)
	}
	if qr.UserID != userID {
		log.Warn().Str("owner", qr.UserID).Msg("qr polled by another user")
		return fmt.Errorf("qr payment %s: %w", txnRetrievalRef, ErrForbidden)
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for poll := 1; poll <= s.maxPolls; poll++ {
		select {
		case <-ctx.Done():
			log.Debug().Int("poll", poll).Msg("qr polling cancelled")
			return ctx.Err()
		case <-ticker.C:
		}
		// a tick and a disconnect can be ready together
		if err := ctx.Err(); err != nil {
			return err
		}

		data, err := s.netsClient.Query(ctx, txnRetrievalRef, false)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log.Warn().Err(err).Int("poll", poll).Msg("nets query failed")
			if err := emit(dto.QRPollEvent{Poll: poll, Status: dto.QRPollPending, Message: err.Error()}); err != nil {
				return err
			}
			continue
		}

		if data.Succeeded() {
			return s.settle(ctx, log, qr, poll, data, emit)
		}
		if err := emit(pollEvent(poll, dto.QRPollPending, data)); err != nil {
			return err
		}
	}

	// out of polls: the flagged query tells the provider the client gave up
	poll := s.maxPolls + 1
	data, err := s.netsClient.Query(ctx, txnRetrievalRef, true)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		log.Warn().Err(err).Msg("nets timeout query failed")
		return emit(dto.QRPollEvent{Poll: poll, Status: dto.QRPollFail, Message: "payment timed out"})
	}
	if data.Succeeded() {
		return s.settle(ctx, log, qr, poll, data, emit)
	}

	log.Info().Str("response_code", data.ResponseCode).Int("txn_status", data.TxnStatus).Msg("qr payment timed out")
	ev := pollEvent(poll, dto.QRPollFail, data)
	ev.Message = "payment timed out"
	return emit(ev)
}

// settle finalizes a paid QR transaction against the amount the code was
// issued for. The finalize runs detached from ctx because the payment is
// already taken even if the client has left.
func (s *netsServiceImpl) settle(ctx context.Context, log zerolog.Logger, qr *model.QRPayment, poll int, data *model.NetsQRData, emit func(dto.QRPollEvent) error) error {
	ev := pollEvent(poll, dto.QRPollSuccess, data)
	result, err := s.reconciler.FinalizeCapture(context.WithoutCancel(ctx), CaptureInfo{
		CaptureID:  NetsCaptureID(qr.TxnRetrievalRef),
		Provider:   ProviderNets,
		UserID:     qr.UserID,
		Amount:     qr.Amount,
		Currency:   qr.Currency,
		CapturedAt: time.Now(),
	})
	switch {
	case err == nil:
		ev.OrderID = result.OrderID
		log.Info().Uint("order_id", result.OrderID).Int("poll", poll).Msg("qr payment settled")
	case IsCheckoutRejection(err):
		ev.Status = dto.QRPollFail
		ev.Message = err.Error()
	default:
		ev.Status = dto.QRPollFail
		ev.Message = "payment received, order pending review"
		if errors.Is(err, ErrPersistence) {
			log.Error().Err(err).Msg("qr finalize failed")
		}
	}
	return emit(ev)
}

// NetsCaptureID is the transaction ledger key of a NETS QR payment.
func NetsCaptureID(txnRetrievalRef string) string {
	return fmt.Sprintf("NETS-%s", txnRetrievalRef)
}

func pollEvent(poll int, status string, data *model.NetsQRData) dto.QRPollEvent {
	return dto.QRPollEvent{
		Poll:         poll,
		Status:       status,
		ResponseCode: data.ResponseCode,
		TxnStatus:    data.TxnStatus,
		Message:      data.ErrorMessage,
	}
}
