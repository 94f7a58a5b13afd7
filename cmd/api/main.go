package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"adgrid/internal/client"
	"adgrid/internal/config"
	"adgrid/internal/events"
	"adgrid/internal/logger"
	"adgrid/internal/metrics"
	"adgrid/internal/repository"
	"adgrid/internal/server"
	"adgrid/internal/service"
	"adgrid/internal/storage"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
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

	slog.SetDefault(logger.New(cfg.Log, os.Stdout))

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	if cfg.Razorpay.WebhookSecret == "" {
		slog.Warn("RAZORPAY_WEBHOOK_SECRET is not set; payment verification will fail")
	}

	db, err := client.InitDBClient(cfg.Database.Driver, cfg.Database.URL)
	if err != nil {
		slog.Error("failed to open database", "driver", cfg.Database.Driver, "error", err)
		os.Exit(1)
	}

	razorpayClient := client.NewRazorpayClient(&cfg.Razorpay)

	purchaseRepo := repository.NewPurchaseRepository(db)
	adRepo := repository.NewAdRepository(db)
	webhookEventRepo := repository.NewWebhookEventRepository(db)

	hub := events.NewHub(32)
	rabbit, closeRabbit := events.NewRabbitPublisherOrNop(cfg.RabbitMQ.URL, cfg.RabbitMQ.Exchange)
	defer closeRabbit()
	publisher := events.Multi{hub, rabbit}

	purchaseTracker := service.NewPurchaseTracker(db, purchaseRepo)
	orderService, err := service.NewOrderService(&cfg.Razorpay, razorpayClient, purchaseTracker)
	if err != nil {
		slog.Error("failed to init order service", "error", err)
		os.Exit(1)
	}
	paymentService := service.NewPaymentService(
		cfg.Razorpay.WebhookSecret,
		cfg.Razorpay.WebhookSecret,
		purchaseTracker,
		webhookEventRepo,
		publisher,
	)
	adService := service.NewAdService(adRepo, purchaseTracker, publisher)

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics.Register(registry)

	srv := server.NewServer(cfg, server.Dependencies{
		OrderService:    orderService,
		PaymentService:  paymentService,
		AdService:       adService,
		PurchaseTracker: purchaseTracker,
		ImageStore:      storage.NewLocalImageStore(cfg.Storage.UploadDir, cfg.BaseURL),
		Hub:             hub,
		Registry:        registry,
	})

	serverAddr := cfg.HTTP.Host + ":" + cfg.HTTP.Port

	slog.Info("starting HTTP server", "addr", serverAddr, "environment", cfg.Environment.Name)
	go func() {
		if err := srv.Start(serverAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("HTTP server error", "error", err)
			os.Exit(1)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)

	<-sigChan
	slog.Info("signal received, starting graceful shutdown")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}
