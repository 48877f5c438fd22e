package main

import (
	"database/sql"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/shopspring/decimal"

	"travelfund-backend/internal/config"
	"travelfund-backend/internal/jobs"
	"travelfund-backend/internal/logger"
	"travelfund-backend/internal/repository/postgres"
	"travelfund-backend/internal/scheduler"
	"travelfund-backend/internal/service"
)

func main() {
	// Parse command-line flags
	configPath := flag.String("config", "config/config.dev.yaml", "Path to configuration file")
	runOnce := flag.String("run-once", "", "Run a specific job once and exit (e.g., 'mark-expired-funds', 'scheduled-renewals', 'all-nightly')")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize logger
	logger.Initialize(cfg.Log.Level, cfg.Log.Format)
	logger.Info("Starting Travel Fund Cronjob Runner...", "log_level", cfg.Log.Level)

	// Initialize Database
	logger.Info("Connecting to database...", "host", cfg.Database.Host, "port", cfg.Database.Port)
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

	// Initialize Services
	initial, err := decimal.NewFromString(cfg.Fund.DefaultInitialAmount)
	if err != nil {
		log.Fatalf("Invalid default initial amount: %v", err)
	}
	policy := service.FundPolicy{
		DefaultInitialAmount: initial,
		DefaultPeriodDays:    cfg.Fund.DefaultPeriodDays,
		RenewalLimit:         cfg.Fund.RenewalLimit,
		ResponseSLADays:      cfg.Fund.ResponseSLADays,
		LockWait:             time.Duration(cfg.Fund.LockWaitMillis) * time.Millisecond,
	}

	audit := service.NewAsyncAuditNotifier(service.LogAuditSink{}, cfg.Audit.BufferSize)
	defer audit.Close()

	locks := service.NewFundLocks(policy.LockWait)
	fundSvc := service.NewFundService(store.FundRepository, store.BeneficiaryRepository, audit, locks, policy)

	// Initialize Job Runner
	jobRunner := jobs.NewJobRunner(store.FundRepository, fundSvc, cfg)

	// Check if running a single job
	if *runOnce != "" {
		logger.Info("Running job once", "job", *runOnce)
		runJobOnce(jobRunner, *runOnce)
		logger.Info("Job execution completed", "job", *runOnce)
		return
	}

	// Initialize Scheduler
	cronScheduler := scheduler.NewScheduler(jobRunner)

	// Start scheduler
	cronScheduler.Start()
	logger.Info("Cronjob scheduler is running. Press Ctrl+C to stop.")

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	// Graceful shutdown
	logger.Info("Shutting down cronjob scheduler...")
	cronScheduler.Stop()
	logger.Info("Cronjob scheduler stopped. Goodbye!")
}

// runJobOnce runs a specific job once and exits
func runJobOnce(jobRunner *jobs.JobRunner, jobName string) {
	switch jobName {
	case "mark-expired-funds":
		jobRunner.MarkExpiredFunds()
	case "scheduled-renewals":
		jobRunner.RunScheduledRenewals()
	case "all-nightly":
		jobRunner.RunAllNightlyJobs()
	default:
		logger.Error("Unknown job name", "job", jobName)
		fmt.Printf("Available jobs:\n")
		fmt.Printf("  - mark-expired-funds\n")
		fmt.Printf("  - scheduled-renewals\n")
		fmt.Printf("  - all-nightly\n")
		os.Exit(1)
	}
}
