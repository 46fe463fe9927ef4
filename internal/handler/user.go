package handler

import (
	"net/http"
	"storefront-payments/internal/middleware"
	"storefront-payments/internal/service"
	"strconv"

	"github.com/labstack/echo/v4"
)

type UserHandler struct {
	userService service.UserService
}

func NewUserHandler(userService service.UserService) *UserHandler {
	return &UserHandler{
		userService: userService,
	}
}

func (h *UserHandler) ListOrders(c echo.Context) error {
	ctx := c.Request().Context()

	orders, err := h.userService.ListOrders(ctx, middleware.UserID(c))
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, orders)
}

func (h *UserHandler) GetInvoice(c echo.Context) error {
	ctx := c.Request().Context()

	orderID, err := strconv.ParseUint(c.Param("orderID"), 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid order id")
	}

	invoice, err := h.userService.GetInvoice(ctx, middleware.UserID(c), uint(orderID))
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, invoice)
}
