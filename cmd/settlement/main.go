package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"

	"cargopay/internal/ebarimt"
	"cargopay/internal/fund"
	"cargopay/internal/handler"
	"cargopay/internal/invoice"
	"cargopay/internal/middleware"
	"cargopay/internal/notification"
	"cargopay/internal/refund"
	"cargopay/internal/repository/postgres"
	"cargopay/internal/settlement"
	"cargopay/pkg/config"
	"cargopay/pkg/logger"
	"cargopay/pkg/validator"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	log := logger.New("settlement-service")

	if err := cfg.ValidateCore(); err != nil {
		log.Fatal("Invalid configuration", map[string]interface{}{"error": err.Error()})
	}

	log.Info("Starting Settlement Service", map[string]interface{}{
		"port": cfg.Server.Port,
	})

	// Database connection
	db, err := sqlx.Connect("postgres", cfg.Database.URL)
	if err != nil {
		log.Fatal("Failed to connect to database", map[string]interface{}{
			"error": err.Error(),
		})
	}
	defer db.Close()

	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.Database.ConnMaxLifetime)

	log.Info("Database connected", nil)

	// Redis connection
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.URL,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	if err := redisClient.Ping(context.Background()).Err(); err != nil {
		log.Fatal("Failed to connect to Redis", map[string]interface{}{
			"error": err.Error(),
		})
	}

	log.Info("Redis connected", nil)

	// Initialize repositories
	invoiceRepo := postgres.NewInvoiceRepository(db)
	packageRepo := postgres.NewPackageRepository(db)
	pricingRepo := postgres.NewPricingRepository(db)
	fundRepo := postgres.NewFundRepository(db)
	returnRepo := postgres.NewReturnRepository(db)
	refundRepo := postgres.NewRefundRepository(db)
	policyRepo := postgres.NewPolicyRepository(db)
	settlementRepo := postgres.NewSettlementRepository(db)
	feeRepo := postgres.NewFeeRepository(db)
	auditRepo := postgres.NewAuditRepository(db)

	// Initialize services
	var issuer invoice.ReceiptIssuer
	if cfg.Ebarimt.Stub {
		issuer = ebarimt.NewStub()
		log.Warn("Using stub e-receipt issuer", nil)
	} else {
		issuer = ebarimt.NewClient(cfg.Ebarimt.BaseURL, cfg.Ebarimt.Timeout, log)
	}

	notifier := notification.NewService(log)
	fundService := fund.NewService(fundRepo, log)
	invoiceService := invoice.NewService(invoiceRepo, packageRepo, pricingRepo, fundService, issuer, notifier, log)
	refundService := refund.NewService(returnRepo, refundRepo, invoiceRepo, policyRepo, fundService, log)
	settlementService := settlement.NewService(settlementRepo, feeRepo, log)

	// Initialize handlers
	val := validator.New()
	invoiceHandler := handler.NewInvoiceHandler(invoiceService, val, log)
	returnHandler := handler.NewReturnHandler(refundService, invoiceService, val, log)
	settlementHandler := handler.NewSettlementHandler(settlementService, val, log)
	fundHandler := handler.NewFundHandler(fundService, log)
	systemHandler := handler.NewSystemHandler(db, redisClient, log)

	// Setup router
	r := mux.NewRouter()

	// Middleware
	r.Use(middleware.CORS)
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.Recovery)
	r.Use(middleware.CorrelationID)
	r.Use(middleware.NewLoggingMiddleware(log).Log)
	r.Use(middleware.BodyLimit(1 << 20)) // 1MB global cap
	r.Use(middleware.NewRateLimiter(redisClient, 150, time.Minute).Limit)
	r.Use(middleware.NewAuditMiddleware(auditRepo, log).Audit)

	authMW := middleware.NewAuthMiddleware(cfg.JWT.Secret, middleware.NewRedisTokenBlacklist(redisClient))
	idemMW := middleware.NewIdempotencyMiddleware(redisClient, 24*time.Hour)

	// Health check routes (no auth)
	r.HandleFunc("/health", systemHandler.Health).Methods("GET")
	r.HandleFunc("/ready", systemHandler.Ready).Methods("GET")

	// Protected routes
	api := r.PathPrefix("/api/v1").Subrouter()
	api.Use(authMW.Authenticate)
	api.Use(middleware.NewRateLimiter(redisClient, 60, time.Minute).Limit)

	invoices := api.PathPrefix("/invoices").Subrouter()
	invoices.Use(idemMW.Require)
	invoices.HandleFunc("/generate/{packageId}", invoiceHandler.Generate).Methods("POST")
	invoices.HandleFunc("", invoiceHandler.List).Methods("GET")
	invoices.HandleFunc("/{id}", invoiceHandler.Get).Methods("GET")
	invoices.HandleFunc("/{id}/pay", invoiceHandler.Pay).Methods("POST")
	invoices.HandleFunc("/{id}/pickup", invoiceHandler.Pickup).Methods("POST")

	returns := api.PathPrefix("/returns").Subrouter()
	returns.Use(idemMW.Require)
	returns.HandleFunc("", returnHandler.Open).Methods("POST")
	returns.HandleFunc("", returnHandler.List).Methods("GET")
	returns.HandleFunc("/{id}", returnHandler.Get).Methods("GET")
	returns.HandleFunc("/{id}/review", returnHandler.Review).Methods("POST")
	returns.HandleFunc("/{id}/refund/complete", returnHandler.Complete).Methods("POST")

	settlements := api.PathPrefix("/settlements").Subrouter()
	settlements.Use(idemMW.Require)
	settlements.HandleFunc("/generate", settlementHandler.Generate).Methods("POST")
	settlements.HandleFunc("", settlementHandler.List).Methods("GET")
	settlements.HandleFunc("/{id}", settlementHandler.Get).Methods("GET")
	settlements.HandleFunc("/{id}/hub-review", settlementHandler.HubReview).Methods("PATCH")
	settlements.HandleFunc("/{id}/carrier-review", settlementHandler.CarrierReview).Methods("PATCH")
	settlements.HandleFunc("/{id}/transfer", settlementHandler.Transfer).Methods("PATCH")

	insurance := api.PathPrefix("/insurance").Subrouter()
	insurance.HandleFunc("/fund", fundHandler.Balance).Methods("GET")
	insurance.HandleFunc("/fund/transactions", fundHandler.Transactions).Methods("GET")
	insurance.HandleFunc("/fund/verify", fundHandler.Verify).Methods("GET")

	auditHandler := handler.NewAuditHandler(auditRepo)
	api.HandleFunc("/audit-logs", auditHandler.List).Methods("GET")

	// Start server
	srv := &http.Server{
		Addr:         cfg.Server.Host + ":" + cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Graceful shutdown
	go func() {
		log.Info("Settlement service started", map[string]interface{}{
			"address": srv.Addr,
		})
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Server failed to start", map[string]interface{}{
				"error": err.Error(),
			})
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server", nil)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown", map[string]interface{}{
			"error": err.Error(),
		})
	}

	log.Info("Server exited", nil)
}
