package handler

import (
	"github.com/qtu11/SipMart-sub003/internal/adapter/http/middleware"
	"github.com/qtu11/SipMart-sub003/internal/core/ports"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// RouterDeps holds all dependencies needed to set up routes.
type RouterDeps struct {
	LendingSvc   ports.LendingService
	WalletSvc    ports.WalletService
	ReportingSvc ports.ReportingService
	TokenSvc     ports.TokenService

	AssetRepo    ports.AssetRepository
	CheckoutRepo ports.CheckoutRepository
	IncidentRepo ports.IncidentRepository

	DeviceVerifier ports.DeviceKeyVerifier
	DeviceKeyHash  string

	CallbackAllowedIPs []string // empty = no source filtering

	RateCounter    ports.WindowCounter // nil = rate limiting disabled
	HealthCheckers []ports.HealthChecker
	Logger         zerolog.Logger
}

// SetupRouter initialises the Gin engine with all routes and middleware.
func SetupRouter(deps RouterDeps) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery(deps.Logger))
	r.Use(middleware.RequestLogger(deps.Logger))
	r.Use(middleware.MaxBodySize(1 << 20)) // 1 MB request body limit

	// Health check (deep — verifies PostgreSQL + Redis)
	r.GET("/health", HealthCheck(deps.HealthCheckers...))

	// Rate limit rules
	rules := middleware.DefaultRateLimitRules()

	// Helper: return rate limiter middleware if a counter is available, else noop.
	rl := func(group string) gin.HandlerFunc {
		if deps.RateCounter == nil {
			return func(c *gin.Context) { c.Next() }
		}
		rule, ok := rules[group]
		if !ok {
			return func(c *gin.Context) { c.Next() }
		}
		return middleware.RateLimiter(deps.RateCounter, group, rule, deps.Logger)
	}

	// API v1 routes
	v1 := r.Group("/api/v1")

	// --- Gateway callback (signature-authenticated, optional IP allowlist) ---
	callbackHandler := NewCallbackHandler(deps.WalletSvc)
	callbackChain := []gin.HandlerFunc{
		rl("callback"),
		middleware.IPAllowlist(deps.CallbackAllowedIPs, deps.Logger),
		callbackHandler.HandleCallback,
	}
	v1.GET("/payments/callback", callbackChain...)
	v1.POST("/payments/callback", callbackChain...)

	// --- Device webhook (pre-shared key authenticated) ---
	deviceHandler := NewDeviceHandler(deps.IncidentRepo, deps.AssetRepo, deps.Logger)
	deviceAuth := middleware.DeviceAuth(deps.DeviceVerifier, deps.DeviceKeyHash, deps.Logger)
	v1.POST("/devices/events", rl("device_events"), deviceAuth, deviceHandler.HandleEvent)

	// --- JWT-authenticated routes ---
	jwtAuth := middleware.JWTAuth(deps.TokenSvc, deps.Logger)
	staffOnly := middleware.StaffOnly()

	lendingHandler := NewLendingHandler(deps.LendingSvc, deps.AssetRepo, deps.CheckoutRepo)
	walletHandler := NewWalletHandler(deps.WalletSvc, deps.ReportingSvc)

	checkouts := v1.Group("/checkouts", jwtAuth)
	{
		checkouts.POST("", rl("checkouts"), lendingHandler.Checkout)
		checkouts.GET("", rl("reports"), lendingHandler.ListCheckouts)
		checkouts.POST("/:id/return", rl("returns"), lendingHandler.Return)
	}

	trips := v1.Group("/trips", jwtAuth)
	{
		trips.POST("", rl("checkouts"), lendingHandler.RecordTrip)
	}

	wallet := v1.Group("/wallet", jwtAuth)
	{
		wallet.GET("/balance", rl("reports"), walletHandler.GetBalance)
		wallet.GET("/ledger", rl("reports"), walletHandler.ListLedger)
		wallet.GET("/rewards", rl("reports"), walletHandler.GetRewards)
		wallet.POST("/topup", rl("wallet_topup"), walletHandler.Topup)
		wallet.POST("/withdrawals", rl("withdrawals"), walletHandler.Withdraw)
		wallet.POST("/withdrawals/:id/review", staffOnly, walletHandler.ReviewWithdrawal)
	}

	// --- Staff housekeeping ---
	assets := v1.Group("/assets", jwtAuth, staffOnly)
	{
		assets.POST("/:id/cleaned", lendingHandler.MarkCleaned)
	}
	v1.GET("/devices/incidents", jwtAuth, staffOnly, deviceHandler.ListIncidents)

	return r
}
