package handler

import (
	"context"
	"errors"
	"net/http"
	"storefront-payments/internal/dto"
	"storefront-payments/internal/middleware"
	"storefront-payments/internal/service"

	"github.com/labstack/echo/v4"
)

type NetsHandler struct {
	netsService service.NetsService
}

func NewNetsHandler(netsService service.NetsService) *NetsHandler {
	return &NetsHandler{
		netsService: netsService,
	}
}

func (h *NetsHandler) GenerateQR(c echo.Context) error {
	ctx := c.Request().Context()

	result, err := h.netsService.GenerateQR(ctx, middleware.UserID(c))
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, result)
}

// PollQR streams every poll result until the payment settles. The request
// context ends the loop when the client goes away. The stream opens on the
// first event, so lookup and ownership errors still get a status code.
func (h *NetsHandler) PollQR(c echo.Context) error {
	ctx := c.Request().Context()

	ref := c.Param("txnRetrievalRef")
	if ref == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "missing txn retrieval ref")
	}

	streaming := false
	err := h.netsService.PollQR(ctx, middleware.UserID(c), ref, func(ev dto.QRPollEvent) error {
		if !streaming {
			startSSE(c)
			streaming = true
		}
		return writeSSE(c, ev.Status, ev)
	})
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
