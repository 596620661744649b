package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"

	"keyshop/internal/client"
	"keyshop/internal/config"
	"keyshop/internal/fraud"
	"keyshop/internal/quarantine"
	"keyshop/internal/repository"
	"keyshop/internal/server"
	"keyshop/internal/service"
	"keyshop/internal/stream"
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

	db := client.InitSqliteClient(cfg.DatabaseURL)
	rdb := client.InitRedisClient(cfg.RedisAddr, cfg.RedisDB)

	vpnClient := client.NewVPNPanelClient(&cfg.VPN)
	botClient := client.NewBotClient(&cfg.Bot)
	ocrClient := client.NewOCRClient(&cfg.OCR)
	checkoutClient := client.NewCheckoutClient(&cfg.Checkout)

	store, err := quarantine.NewStore(cfg.Quarantine.Root, cfg.Quarantine.ReleasedRoot)
	if err != nil {
		log.Fatal("init quarantine store:", err)
	}

	orderRepo := repository.NewOrderRepository(db)
	productRepo := repository.NewProductRepository(db)
	keyRepo := repository.NewKeyRepository(db)
	couponRepo := repository.NewCouponRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)
	auditRepo := repository.NewAuditRepository(db)

	if err := productRepo.Seed(context.Background()); err != nil {
		log.Println("seed products:", err)
	}

	hub := stream.NewHub(rdb)
	fraudEngine := fraud.NewEngine(orderRepo, cfg.Fraud.HighAmountThreshold, cfg.OCR.MinConfidence)

	notificationService := service.NewNotificationService(notificationRepo, hub, botClient)
	orderService := service.NewOrderService(
		db, cfg,
		orderRepo, productRepo, keyRepo, couponRepo,
		store, fraudEngine, ocrClient, checkoutClient,
		notificationService,
	)
	approvalService := service.NewApprovalService(
		orderRepo, keyRepo, auditRepo,
		store, vpnClient, &cfg.VPN,
		notificationService,
	)

	paymentWindow := time.Duration(cfg.Orders.PaymentWindowMinutes) * time.Minute
	reaper := service.NewReaper(
		orderRepo, auditRepo, store, notificationService,
		time.Duration(cfg.Orders.ReaperIntervalSec)*time.Second,
		paymentWindow,
	)
	stopReaper := reaper.Start()

	serverAddr := cfg.HTTP.Host + ":" + cfg.HTTP.Port

	srv := server.NewServer(cfg, orderService, approvalService, notificationService, botClient, hub)

	log.Println("Starting HTTP server on", serverAddr)
	go func() {
		if err := srv.Start(serverAddr); err != nil && err != http.ErrServerClosed {
			log.Fatal("HTTP server error")
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)

	<-sigChan
	log.Println("Signal received, starting graceful shutdown...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := stopReaper(shutdownCtx); err != nil {
		log.Println("reaper shutdown:", err)
	}
	if err := srv.Shutdown(); err != nil {
		log.Fatal("HTTP server shutdown error")
	}
}
