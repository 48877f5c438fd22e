package main

import (
	"context"
	"database/sql"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/shopspring/decimal"

	httpapi "travelfund-backend/internal/api/http"
	"travelfund-backend/internal/config"
	"travelfund-backend/internal/logger"
	"travelfund-backend/internal/repository/postgres"
	"travelfund-backend/internal/service"
	"travelfund-backend/internal/storage"
)

func main() {
	// Parse command-line flags
	configPath := flag.String("config", "config/config.dev.yaml", "Path to configuration file")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize logger
	logger.Initialize(cfg.Log.Level, cfg.Log.Format)
	logger.Info("Starting Travel Fund Backend...", "log_level", cfg.Log.Level, "log_format", cfg.Log.Format)
	logger.Info("Server configuration", "address", cfg.GetServerAddress())
	logger.Info("Database configuration", "host", cfg.Database.Host, "port", cfg.Database.Port, "database", cfg.Database.Database, "user", cfg.Database.User)

	// Initialize Database
	db, err := sql.Open("postgres", cfg.GetDatabaseConnectionString())
	if err != nil {
		logger.Error("Failed to connect to database", "error", err)
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	// Test database connection
	if err := db.Ping(); err != nil {
		logger.Error("Failed to ping database", "error", err)
		log.Fatalf("Failed to ping database: %v", err)
	}
	logger.Info("Database connection established")

	// Initialize Repositories
	store := postgres.NewStore(db)

	// Initialize Document Storage
	var docStore storage.DocumentStore
	switch cfg.Storage.Type {
	case "", "local":
		logger.Info("Using local document storage", "upload_dir", cfg.Storage.UploadDir)
		localStore, err := storage.NewLocalDocumentStore(cfg.Storage.BaseURL, cfg.Storage.UploadDir)
		if err != nil {
			logger.Error("Failed to initialize local storage", "error", err)
			log.Fatalf("Failed to initialize local storage: %v", err)
		}
		docStore = localStore
	default:
		logger.Error("Unsupported storage type", "type", cfg.Storage.Type)
		log.Fatalf("Storage type '%s' not yet implemented", cfg.Storage.Type)
	}

	policy, err := fundPolicy(cfg)
	if err != nil {
		log.Fatalf("Invalid fund policy: %v", err)
	}

	// Initialize Audit Notifier
	audit := service.NewAsyncAuditNotifier(service.LogAuditSink{}, cfg.Audit.BufferSize)
	defer audit.Close()

	// Initialize Services
	locks := service.NewFundLocks(time.Duration(cfg.Fund.LockWaitMillis) * time.Millisecond)
	fundSvc := service.NewFundService(store.FundRepository, store.BeneficiaryRepository, audit, locks, policy)
	reimbursementSvc := service.NewReimbursementService(
		store.RequestRepository,
		store.FundRepository,
		store.PaymentMethodRepository,
		store.BeneficiaryRepository,
		docStore,
		audit,
		locks,
		policy,
	)
	methodSvc := service.NewPaymentMethodService(store.PaymentMethodRepository, store.BeneficiaryRepository, audit)

	// Set up HTTP server
	router := httpapi.NewRouter(fundSvc, reimbursementSvc, methodSvc)
	server := &http.Server{
		Addr:         cfg.GetServerAddress(),
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	go func() {
		logger.Info("HTTP server listening", "address", cfg.GetServerAddress())
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("HTTP server error", "error", err)
			log.Fatalf("Failed to serve: %v", err)
		}
	}()

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	// Graceful shutdown
	logger.Info("Shutting down HTTP server...")
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Error("HTTP server shutdown failed", "error", err)
	}
	logger.Info("Server stopped. Goodbye!")
}

// fundPolicy translates the string-typed config values into the policy the
// services consume.
func fundPolicy(cfg *config.Config) (service.FundPolicy, error) {
	initial, err := decimal.NewFromString(cfg.Fund.DefaultInitialAmount)
	if err != nil {
		return service.FundPolicy{}, err
	}
	return service.FundPolicy{
		DefaultInitialAmount: initial,
		DefaultPeriodDays:    cfg.Fund.DefaultPeriodDays,
		RenewalLimit:         cfg.Fund.RenewalLimit,
		ResponseSLADays:      cfg.Fund.ResponseSLADays,
		LockWait:             time.Duration(cfg.Fund.LockWaitMillis) * time.Millisecond,
	}, nil
}
