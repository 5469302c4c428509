package main

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/spf13/viper"
	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/festpay/backend/docs"
	"github.com/festpay/backend/internal/config"
	"github.com/festpay/backend/internal/database"
	"github.com/festpay/backend/internal/handlers"
	mW "github.com/festpay/backend/internal/middleware"
	"github.com/festpay/backend/internal/services"
)

// @title FestPay Settlement API
// @version 1.0
// @description API for cashless event payment settlement
// @host localhost:8080
// @BasePath /api/v1
// @schemes http https

func main() {
	// Initialize config
	viper.SetConfigFile(".env") // explicitly point to .env file
	viper.AutomaticEnv()        // allow environment variables to override .env

	viper.SetEnvPrefix("")

	viper.BindEnv("database.host", "DATABASE_HOST")
	viper.BindEnv("database.port", "DATABASE_PORT")
	viper.BindEnv("database.user", "DATABASE_USER")
	viper.BindEnv("database.password", "DATABASE_PASSWORD")
	viper.BindEnv("database.name", "DATABASE_NAME")
	viper.BindEnv("database.ssl_mode", "DATABASE_SSL_MODE")

	viper.BindEnv("redis.host", "REDIS_HOST")
	viper.BindEnv("redis.port", "REDIS_PORT")
	viper.BindEnv("redis.password", "REDIS_PASSWORD")
	viper.BindEnv("redis.db", "REDIS_DB")

	viper.BindEnv("jwt.secret_key", "JWT_SECRET_KEY")
	viper.BindEnv("jwt.expiry_hours", "JWT_EXPIRY_HOURS")

	viper.BindEnv("reconciler.interval_minutes", "RECONCILER_INTERVAL_MINUTES")

	if err := viper.ReadInConfig(); err != nil {
		log.Printf("Config file not found, using defaults: %v", err)
	}

	// Initialize Swagger docs
	docs.SwaggerInfo.Title = "FestPay Settlement API"
	docs.SwaggerInfo.Description = "API for cashless event payment settlement"
	docs.SwaggerInfo.Version = "1.0"
	docs.SwaggerInfo.Host = "localhost:8080"
	docs.SwaggerInfo.BasePath = "/api/v1"
	docs.SwaggerInfo.Schemes = []string{"http", "https"}

	// Initialize services
	db := database.InitDatabase()
	defer db.Close()

	redisClient := database.InitRedis()
	if redisClient != nil {
		defer redisClient.Close()
	}

	identityService := services.NewIdentityService(db)
	ledgerService := services.NewLedgerService(db)
	stockService := services.NewStockService(db)
	journalService := services.NewJournalService(db)

	var locker services.Locker
	if redisClient != nil {
		locker = services.NewRedisLocker(redisClient)
	} else {
		log.Println("Redis unavailable, falling back to in-process participant locks")
		locker = services.NewLocalLocker()
	}

	settlementService := services.NewSettlementService(identityService, ledgerService,
		stockService, journalService, locker, redisClient)

	mobileMoneyConfig := config.LoadMobileMoneyConfig()
	ebillingClient := services.NewEBillingClient(mobileMoneyConfig)
	paymentService := services.NewMobilePaymentService(db, ebillingClient, settlementService, journalService, mobileMoneyConfig)

	walletQRService := services.NewWalletQRService(db, redisClient)
	payoutService := services.NewPayoutService(db, journalService)

	settlementHandler := handlers.NewSettlementHandler(settlementService)
	transactionHandler := handlers.NewTransactionHandler(journalService, identityService, ledgerService)
	paymentHandler := handlers.NewPaymentHandler(paymentService)
	qrHandler := handlers.NewQRHandler(walletQRService, identityService)
	productHandler := handlers.NewProductHandler(stockService)
	payoutHandler := handlers.NewPayoutHandler(payoutService)

	// Background sweep for confirmed-but-uncredited payments
	reconcilerCtx, stopReconciler := context.WithCancel(context.Background())
	defer stopReconciler()
	go runReconciler(reconcilerCtx, paymentService)

	// Setup router
	r := chi.NewRouter()

	// Middleware
	r.Use(mW.SecurityHeaders)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(middleware.Timeout(60 * time.Second))

	// CORS
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Access-Control-Allow-Origin"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"status": "healthy"})
	})

	// Swagger documentation
	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("http://localhost:8080/swagger/doc.json"),
	))

	// API routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(mW.AuthMiddleware)

			r.Post("/settlements", settlementHandler.CreateSettlement)

			r.Get("/transactions", transactionHandler.ListTransactions)
			r.Get("/transactions/{txId}", transactionHandler.GetTransaction)

			r.Get("/participants/balance-enquiry", transactionHandler.BalanceEnquiry)

			r.Get("/products/{productId}", productHandler.GetProduct)

			r.Post("/payments/initiate", paymentHandler.InitiatePayment)
			r.Post("/payments/{paymentId}/confirm", paymentHandler.ConfirmPayment)
			r.Get("/payments/{paymentId}", paymentHandler.GetPayment)

			r.Post("/qr/generate", qrHandler.GenerateQR)
			r.Post("/qr/process", qrHandler.ProcessQR)

			r.Post("/payouts/export", payoutHandler.ExportPayout)
		})
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	// Start server
	server := &http.Server{
		Addr:         ":" + port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		log.Printf("Server starting on :%s", port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Server shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	log.Println("Server stopped")
}

func runReconciler(ctx context.Context, payments *services.MobilePaymentService) {
	interval := viper.GetInt("reconciler.interval_minutes")
	if interval <= 0 {
		interval = 5
	}

	ticker := time.NewTicker(time.Duration(interval) * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			repaired, err := payments.ReconcileUncredited(ctx)
			if err != nil {
				log.Printf("[RECONCILER] Sweep failed: %v", err)
				continue
			}
			if repaired > 0 {
				log.Printf("[RECONCILER] Repaired %d uncredited payment(s)", repaired)
			}
		}
	}
}
