package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"storefront-payments/internal/client"
	"storefront-payments/internal/config"
	"storefront-payments/internal/events"
	"storefront-payments/internal/logger"
	"storefront-payments/internal/notify"
	"storefront-payments/internal/repository"
	"storefront-payments/internal/server"
	"storefront-payments/internal/service"
	"syscall"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"
)

func main() {
	// load .env into os.Environ
	if err := godotenv.Load(); err != nil {
		fmt.Println("No .env file found (ok in prod)")
	}

	cfg := &config.Config{}
	if err := env.Parse(cfg); err != nil {
		fmt.Printf("Failed to parse config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.Log, os.Stdout)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	db, err := client.InitDatabase(cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("init database")
	}

	productRepo := repository.NewProductRepository(db)
	if cfg.Database.Driver == "sqlite" {
		if err := productRepo.Seed(ctx); err != nil {
			log.Fatal().Err(err).Msg("seed products")
		}
	}
	inventoryRepo := repository.NewInventoryRepository(db)
	cartRepo := repository.NewCartRepository(db)
	orderRepo := repository.NewOrderRepository(db)
	transactionRepo := repository.NewTransactionRepository(db)
	refundRepo := repository.NewRefundRepository(db)
	webhookEventRepo := repository.NewWebhookEventRepository(db)

	paypalClient := client.NewPaypalClient(&cfg.Paypal)
	netsClient := client.NewNetsClient(&cfg.Nets)
	braintreeClient := client.NewBraintreeClient(&cfg.BrainTree)

	g, gctx := errgroup.WithContext(ctx)

	registry := notify.NewRegistry()
	var notifier notify.Notifier = registry
	rdb, err := client.InitRedisClient(ctx, cfg.Redis)
	if err != nil {
		log.Fatal().Err(err).Msg("init redis")
	}
	if rdb != nil {
		defer rdb.Close()
		redisNotifier := notify.NewRedisNotifier(rdb, notify.DefaultChannel, registry, log)
		notifier = redisNotifier
		g.Go(func() error {
			return redisNotifier.Run(gctx)
		})
	} else {
		log.Warn().Msg("redis not configured, finalize notifications stay in-process")
	}

	publisher := events.NewPublisher(cfg.Kafka, log)
	defer publisher.Close()

	cartService := service.NewCartService(cartRepo, productRepo)
	finalizer := service.NewCheckoutFinalizer(db, cartRepo, productRepo, inventoryRepo, orderRepo)
	reconciler := service.NewPaymentReconciler(
		db,
		paypalClient,
		finalizer,
		transactionRepo,
		refundRepo,
		webhookEventRepo,
		notifier,
		publisher,
		log,
	)

	services := server.Services{
		Paypal:     service.NewPaypalService(paypalClient, cartService, cfg.Paypal.Currency, log),
		Reconciler: reconciler,
		Nets:       service.NewNetsService(netsClient, cartService, reconciler, repository.NewQRPaymentRepository(db), cfg.Payment.QRPollInterval, cfg.Payment.QRMaxPolls, log),
		Card:       service.NewCardService(braintreeClient, cartService, reconciler, cfg.Paypal.Currency, log),
		Cart:       cartService,
		User:       service.NewUserService(orderRepo),
		Refund:     service.NewRefundService(db, paypalClient, transactionRepo, refundRepo, publisher, log),
		Admin:      service.NewAdminService(transactionRepo),
	}

	serverAddr := cfg.HTTP.Host + ":" + cfg.HTTP.Port

	// Init HTTP server
	srv := server.NewServer(services, server.Options{
		JWTSecret: cfg.Auth.JWTSecret,
		SSEWait:   cfg.Payment.SSEWait,
	}, log)

	g.Go(func() error {
		log.Info().Str("addr", serverAddr).Str("env", cfg.Environment.Name).Msg("starting HTTP server")
		if err := srv.Start(serverAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("starting graceful shutdown")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("server stopped with error")
		os.Exit(1)
	}
	log.Info().Msg("server stopped")
}
