package handler

import (
	"net/http"
	"storefront-payments/internal/dto"
	"storefront-payments/internal/middleware"
	"storefront-payments/internal/service"

	"github.com/labstack/echo/v4"
)

type RefundHandler struct {
	refundService service.RefundService
	adminService  service.AdminService
}

func NewRefundHandler(refundService service.RefundService, adminService service.AdminService) *RefundHandler {
	return &RefundHandler{
		refundService: refundService,
		adminService:  adminService,
	}
}

func (h *RefundHandler) RequestRefund(c echo.Context) error {
	ctx := c.Request().Context()

	var req dto.RefundRequest
	if err := c.Bind(&req); err != nil || req.TransactionID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid req body")
	}

	refund, err := h.refundService.RequestRefund(ctx, middleware.UserID(c), &req)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusCreated, refund)
}

func (h *RefundHandler) ListPending(c echo.Context) error {
	ctx := c.Request().Context()

	refunds, err := h.refundService.ListPending(ctx)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, refunds)
}

func (h *RefundHandler) Approve(c echo.Context) error {
	ctx := c.Request().Context()

	refund, err := h.refundService.ApproveRefund(ctx, c.Param("refundID"))
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, refund)
}

func (h *RefundHandler) AdminRefund(c echo.Context) error {
	ctx := c.Request().Context()

	var req struct {
		Reason string `json:"reason"`
	}
	_ = c.Bind(&req)

	refund, err := h.refundService.AdminRefund(ctx, c.Param("captureID"), req.Reason)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, refund)
}

func (h *RefundHandler) ListTransactions(c echo.Context) error {
	ctx := c.Request().Context()

	transactions, err := h.adminService.ListTransactions(ctx, c.QueryParam("search"))
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, transactions)
}
