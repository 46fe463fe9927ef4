package handler

import (
	"errors"
	"net/http"
	"storefront-payments/internal/service"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

// ErrorHandler maps service errors to HTTP answers and hands the rest to echo.
func ErrorHandler(e *echo.Echo, logger zerolog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		httpErr := toHTTPError(err)
		if httpErr.Code >= http.StatusInternalServerError {
			zerolog.Ctx(c.Request().Context()).Error().Err(err).
				Str("path", c.Path()).Int("status", httpErr.Code).Msg("request failed")
		}
		e.DefaultHTTPErrorHandler(httpErr, c)
	}
}

func toHTTPError(err error) *echo.HTTPError {
	var httpErr *echo.HTTPError
	if errors.As(err, &httpErr) {
		return httpErr
	}

	var stockErr *service.InsufficientStockError
	var cartErr *service.CartStockError
	switch {
	case errors.As(err, &stockErr):
		return echo.NewHTTPError(http.StatusConflict, stockErr.Error())
	case errors.As(err, &cartErr):
		return echo.NewHTTPError(http.StatusConflict, cartErr.Error())
	case errors.Is(err, service.ErrAmountMismatch), errors.Is(err, service.ErrCaptureRejected):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, service.ErrEmptyCart):
		return echo.NewHTTPError(http.StatusBadRequest, "Your cart is empty")
	case errors.Is(err, service.ErrInvalidPayload):
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	case errors.Is(err, service.ErrInvalidSignature):
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid signature")
	case errors.Is(err, service.ErrForbidden):
		return echo.NewHTTPError(http.StatusForbidden, "forbidden")
	case errors.Is(err, service.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "not found")
	case errors.Is(err, service.ErrInvalidRefundState):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, service.ErrPaymentDeclined):
		return echo.NewHTTPError(http.StatusPaymentRequired, err.Error())
	case errors.Is(err, service.ErrProviderUnavailable):
		return echo.NewHTTPError(http.StatusBadGateway, "payment provider unavailable")
	}
	return echo.NewHTTPError(http.StatusInternalServerError, "internal error").SetInternal(err)
}
