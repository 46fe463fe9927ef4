package handler

import (
	"fmt"
	"io"
	"net/http"
	"storefront-payments/internal/dto"
	"storefront-payments/internal/middleware"
	"storefront-payments/internal/service"
	"time"

	"github.com/labstack/echo/v4"
)

type PaypalHandler struct {
	paypalService service.PaypalService
	reconciler    service.PaymentReconciler
	sseWait       time.Duration
}

func NewPaypalHandler(paypalService service.PaypalService, reconciler service.PaymentReconciler, sseWait time.Duration) *PaypalHandler {
	return &PaypalHandler{
		paypalService: paypalService,
		reconciler:    reconciler,
		sseWait:       sseWait,
	}
}

func (h *PaypalHandler) CreateOrder(c echo.Context) error {
	ctx := c.Request().Context()

	result, err := h.paypalService.CreateOrder(ctx, middleware.UserID(c))
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, result)
}

func (h *PaypalHandler) CaptureOrder(c echo.Context) error {
	ctx := c.Request().Context()

	orderID := c.Param("orderID")
	if orderID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "missing order id")
	}

	result, err := h.paypalService.CaptureOrder(ctx, middleware.UserID(c), orderID)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, result)
}

// PayPalWebhook hands the unparsed body to the reconciler; signature checks
// need the exact bytes PayPal sent.
func (h *PaypalHandler) PayPalWebhook(c echo.Context) error {
	ctx := c.Request().Context()

	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return c.NoContent(http.StatusBadRequest)
	}

	err = h.reconciler.ReconcileWebhookEvent(ctx, c.Request().Header, body)
	if err != nil {
		return fmt.Errorf("handle webhook: %w", err)
	}

	return c.NoContent(http.StatusOK)
}

func (h *PaypalHandler) PaymentStatus(c echo.Context) error {
	ctx := c.Request().Context()

	captureID := c.QueryParam("captureId")
	if captureID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "missing captureId")
	}

	status, err := h.reconciler.GetPaymentStatus(ctx, captureID)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, status)
}

// PaymentEvents streams the single finalize outcome of a capture. It
// subscribes before reading the ledger so a finalize landing in between is
// not missed.
func (h *PaypalHandler) PaymentEvents(c echo.Context) error {
	ctx := c.Request().Context()

	captureID := c.QueryParam("captureId")
	if captureID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "missing captureId")
	}

	events, cancel := h.reconciler.Subscribe(captureID)
	defer cancel()

	status, err := h.reconciler.GetPaymentStatus(ctx, captureID)
	if err != nil {
		return err
	}

	startSSE(c)

	switch {
	case status.Finalized:
		ev := dto.FinalizeEvent{CaptureID: captureID, Status: dto.FinalizeStatusFinalized}
		if status.OrderID != nil {
			ev.OrderID = *status.OrderID
		}
		return writeSSE(c, ev.Status, ev)
	case status.Failed:
		ev := dto.FinalizeEvent{CaptureID: captureID, Status: dto.FinalizeStatusFailed}
		return writeSSE(c, ev.Status, ev)
	}

	timer := time.NewTimer(h.sseWait)
	defer timer.Stop()

	select {
	case ev, ok := <-events:
		if !ok {
			return nil
		}
		return writeSSE(c, ev.Status, ev)
	case <-timer.C:
		ev := dto.FinalizeEvent{
			CaptureID: captureID,
			Status:    dto.FinalizeStatusTimeout,
			Message:   "still processing, poll /api/payment-status",
		}
		return writeSSE(c, ev.Status, ev)
	case <-ctx.Done():
		return nil
	}
}
