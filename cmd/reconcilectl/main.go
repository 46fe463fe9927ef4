package main

import (
	"fmt"
	"os"
	"storefront-payments/internal/client"
	"storefront-payments/internal/config"
	"storefront-payments/internal/events"
	"storefront-payments/internal/logger"
	"storefront-payments/internal/notify"
	"storefront-payments/internal/repository"
	"storefront-payments/internal/service"
	"sync"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func main() {
	_ = godotenv.Load()

	rootCmd := &cobra.Command{
		Use:          "reconcilectl",
		Short:        "Inspect captured payments that need manual reconciliation",
		SilenceUsage: true,
	}

	// the database is opened on first use so help and usage work without config
	load := sync.OnceValues(newApp)

	rootCmd.AddCommand(failedCmd(load))
	rootCmd.AddCommand(statusCmd(load))
	rootCmd.AddCommand(transactionsCmd(load))

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type app struct {
	admin      service.AdminService
	reconciler service.PaymentReconciler
}

func newApp() (*app, error) {
	cfg := &config.Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	log := logger.New(cfg.Log, os.Stderr)

	db, err := client.InitDatabase(cfg.Database)
	if err != nil {
		return nil, err
	}

	cartRepo := repository.NewCartRepository(db)
	productRepo := repository.NewProductRepository(db)
	orderRepo := repository.NewOrderRepository(db)
	transactionRepo := repository.NewTransactionRepository(db)

	// read-only use: no notifications or events leave this process
	reconciler := service.NewPaymentReconciler(
		db,
		client.NewPaypalClient(&cfg.Paypal),
		service.NewCheckoutFinalizer(db, cartRepo, productRepo, repository.NewInventoryRepository(db), orderRepo),
		transactionRepo,
		repository.NewRefundRepository(db),
		repository.NewWebhookEventRepository(db),
		notify.NewRegistry(),
		events.NopPublisher{},
		log,
	)

	return &app{
		admin:      service.NewAdminService(transactionRepo),
		reconciler: reconciler,
	}, nil
}
