package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/qtu11/SipMart-sub003/config"
	httpHandler "github.com/qtu11/SipMart-sub003/internal/adapter/http/handler"
	pgStorage "github.com/qtu11/SipMart-sub003/internal/adapter/storage/postgres"
	redisStorage "github.com/qtu11/SipMart-sub003/internal/adapter/storage/redis"
	"github.com/qtu11/SipMart-sub003/internal/core/ports"
	"github.com/qtu11/SipMart-sub003/internal/core/settlement"
	"github.com/qtu11/SipMart-sub003/internal/service"
	"github.com/qtu11/SipMart-sub003/pkg/logger"
)

func main() {
	// Load configuration
	cfg, err := config.Load("")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.New(cfg.Log.Level, cfg.Log.Pretty)

	log.Info().
		Str("mode", cfg.Server.Mode).
		Int("port", cfg.Server.Port).
		Msg("Starting SipMart settlement core")

	ctx := context.Background()

	// Initialize PostgreSQL pool
	pool, err := pgStorage.NewPool(ctx, cfg.Database, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()
	log.Info().Msg("PostgreSQL connected")

	// Initialize Redis client
	rdb, err := redisStorage.NewClient(ctx, cfg.Redis, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()
	log.Info().Msg("Redis connected")

	// Initialize repositories
	userRepo := pgStorage.NewUserRepo(pool)
	assetRepo := pgStorage.NewAssetRepo(pool)
	checkoutRepo := pgStorage.NewCheckoutRepo(pool)
	ledgerRepo := pgStorage.NewWalletLedgerRepo(pool)
	rewardRepo := pgStorage.NewRewardLedgerRepo(pool)
	paymentRepo := pgStorage.NewPaymentTransactionRepo(pool)
	incidentRepo := pgStorage.NewIncidentRepo(pool)
	transactor := pgStorage.NewTransactor(pool)

	// Initialize Redis stores
	callbackGuard := redisStorage.NewCallbackGuard(rdb)
	counterStore := redisStorage.NewCounterStore(rdb)

	// Initialize core services
	tokenSvc := service.NewJWTTokenService(cfg.JWT.Secret, cfg.JWT.Expiry, cfg.JWT.Issuer)
	deviceVerifier := service.NewDeviceKeyVerifier()
	bridge := service.NewGatewayBridge(cfg.Gateway)

	locationVerifier := service.NewStationLocationVerifier(log)
	signaler := service.NewHTTPDeviceSignaler(cfg.Devices, nil, log)
	notifier := service.NewLogNotifier(log)

	tariff := settlement.Tariff{
		CupDeposit:       cfg.Tariff.CupDeposit,
		PenaltyPerHour:   cfg.Tariff.PenaltyPerHour,
		BasePoints:       cfg.Tariff.BasePoints,
		EarlyBonusPoints: cfg.Tariff.EarlyBonusPoints,
		EarlyWindow:      cfg.Tariff.EarlyWindow,
		BikeFarePerHour:  cfg.Tariff.BikeFarePerHour,
		PointsPerKmX10:   cfg.Tariff.PointsPerKmX10,
		CO2GramsPerKm:    cfg.Tariff.CO2GramsPerKm,
	}

	// Initialize business services
	lendingSvc := service.NewLendingService(
		userRepo,
		assetRepo,
		checkoutRepo,
		ledgerRepo,
		rewardRepo,
		transactor,
		locationVerifier,
		signaler,
		notifier,
		tariff,
		cfg.Tariff.CupLoanPeriod,
		log,
	)
	walletSvc := service.NewWalletService(
		userRepo,
		paymentRepo,
		ledgerRepo,
		transactor,
		bridge,
		callbackGuard,
		counterStore,
		notifier,
		cfg.Withdrawal,
		log,
	)
	reportingSvc := service.NewReportingService(userRepo, ledgerRepo, rewardRepo, log)

	// Initialize health checkers
	pgHealth := pgStorage.NewHealthCheck(pool)
	redisHealth := redisStorage.NewHealthCheck(rdb)

	// Callback source filtering only applies in release mode; local gateways
	// simulate callbacks from loopback.
	allowedIPs := cfg.Gateway.AllowedIPs
	if cfg.Server.Mode != "release" {
		allowedIPs = nil
	}

	// Setup Gin router with all routes
	router := httpHandler.SetupRouter(httpHandler.RouterDeps{
		LendingSvc:         lendingSvc,
		WalletSvc:          walletSvc,
		ReportingSvc:       reportingSvc,
		TokenSvc:           tokenSvc,
		AssetRepo:          assetRepo,
		CheckoutRepo:       checkoutRepo,
		IncidentRepo:       incidentRepo,
		DeviceVerifier:     deviceVerifier,
		DeviceKeyHash:      cfg.Devices.KeyHash,
		CallbackAllowedIPs: allowedIPs,
		RateCounter:        counterStore,
		HealthCheckers:     []ports.HealthChecker{pgHealth, redisHealth},
		Logger:             log,
	})

	// HTTP Server with graceful shutdown
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	// Start server in goroutine
	go func() {
		log.Info().Str("addr", addr).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited")
}
