package handler

import (
	"net/http"
	"storefront-payments/internal/dto"
	"storefront-payments/internal/middleware"
	"storefront-payments/internal/service"

	"github.com/labstack/echo/v4"
)

type CardHandler struct {
	cardService service.CardService
}

func NewCardHandler(cardService service.CardService) *CardHandler {
	return &CardHandler{
		cardService: cardService,
	}
}

func (h *CardHandler) Checkout(c echo.Context) error {
	ctx := c.Request().Context()

	var req dto.CardCheckoutRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid req body")
	}

	result, err := h.cardService.ChargeCart(ctx, middleware.UserID(c), req.Nonce)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, result)
}
