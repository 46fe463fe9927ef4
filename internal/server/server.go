package server

import (
	"context"
	"net/http"
	"storefront-payments/internal/handler"
	appmw "storefront-payments/internal/middleware"
	"storefront-payments/internal/service"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
)

type Services struct {
	Paypal     service.PaypalService
	Reconciler service.PaymentReconciler
	Nets       service.NetsService
	Card       service.CardService
	Cart       service.CartService
	User       service.UserService
	Refund     service.RefundService
	Admin      service.AdminService
}

type Options struct {
	JWTSecret string
	SSEWait   time.Duration
}

type Server struct {
	echo          *echo.Echo
	jwtSecret     string
	paypalHandler *handler.PaypalHandler
	netsHandler   *handler.NetsHandler
	cardHandler   *handler.CardHandler
	cartHandler   *handler.CartHandler
	userHandler   *handler.UserHandler
	refundHandler *handler.RefundHandler
}

func NewServer(services Services, opts Options, logger zerolog.Logger) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = handler.ErrorHandler(e, logger)

	e.Use(appmw.RequestID(logger))
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogError:     true,
		LogRequestID: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			event := zerolog.Ctx(c.Request().Context()).Info()
			if v.Error != nil {
				event = zerolog.Ctx(c.Request().Context()).Warn().Err(v.Error)
			}
			event.
				Str("method", v.Method).
				Str("uri", v.URI).
				Int("status", v.Status).
				Dur("latency", v.Latency).
				Str("user_id", appmw.UserID(c)).
				Msg("request")
			return nil
		},
	}))
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	s := &Server{
		echo:          e,
		jwtSecret:     opts.JWTSecret,
		paypalHandler: handler.NewPaypalHandler(services.Paypal, services.Reconciler, opts.SSEWait),
		netsHandler:   handler.NewNetsHandler(services.Nets),
		cardHandler:   handler.NewCardHandler(services.Card),
		cartHandler:   handler.NewCartHandler(services.Cart),
		userHandler:   handler.NewUserHandler(services.User),
		refundHandler: handler.NewRefundHandler(services.Refund, services.Admin),
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	api := s.echo.Group("/api")

	api.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})

	// -------- provider callbacks (signed, no session) --------
	api.POST("/paypal/webhook", s.paypalHandler.PayPalWebhook)

	auth := api.Group("", appmw.AuthMiddleware(s.jwtSecret))

	// -------- cart --------
	auth.GET("/cart", s.cartHandler.View)
	auth.POST("/cart/items", s.cartHandler.Add)
	auth.PATCH("/cart", s.cartHandler.Update)
	auth.DELETE("/cart/items/:productID", s.cartHandler.Remove)
	auth.DELETE("/cart", s.cartHandler.Clear)

	// -------- paypal --------
	auth.POST("/paypal/orders", s.paypalHandler.CreateOrder)
	auth.POST("/paypal/orders/:orderID/capture", s.paypalHandler.CaptureOrder)

	// -------- payment state --------
	auth.GET("/payment-status", s.paypalHandler.PaymentStatus)
	auth.GET("/payment-events", s.paypalHandler.PaymentEvents)

	// -------- nets qr --------
	auth.POST("/nets/qr", s.netsHandler.GenerateQR)
	auth.GET("/nets/qr/:txnRetrievalRef/events", s.netsHandler.PollQR)

	// -------- card --------
	auth.POST("/card/checkout", s.cardHandler.Checkout)

	// -------- orders & refunds --------
	auth.GET("/orders", s.userHandler.ListOrders)
	auth.GET("/orders/:orderID/invoice", s.userHandler.GetInvoice)
	auth.POST("/refunds", s.refundHandler.RequestRefund)

	// -------- admin --------
	admin := auth.Group("/admin", appmw.RequireAdmin())
	admin.GET("/transactions", s.refundHandler.ListTransactions)
	admin.GET("/refunds", s.refundHandler.ListPending)
	admin.POST("/refunds/:refundID/approve", s.refundHandler.Approve)
	admin.POST("/transactions/:captureID/refund", s.refundHandler.AdminRefund)
}

func (s *Server) Start(address string) error {
	return s.echo.Start(address)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}
