package jobs

import (
	"context"
	"errors"
	"time"

	"travelfund-backend/internal/config"
	"travelfund-backend/internal/domain"
	"travelfund-backend/internal/logger"
	"travelfund-backend/internal/repository"
	"travelfund-backend/internal/service"
)

// JobRunner coordinates all scheduled jobs
type JobRunner struct {
	fundRepo repository.FundRepository
	fundSvc  service.FundService
	config   *config.Config
}

// NewJobRunner creates a new job runner with all dependencies
func NewJobRunner(fundRepo repository.FundRepository, fundSvc service.FundService, cfg *config.Config) *JobRunner {
	return &JobRunner{
		fundRepo: fundRepo,
		fundSvc:  fundSvc,
		config:   cfg,
	}
}

// Config exposes the loaded configuration to the scheduler
func (jr *JobRunner) Config() *config.Config {
	return jr.config
}

// runWithRecovery wraps job execution with panic recovery
func (jr *JobRunner) runWithRecovery(jobName string, jobFunc func()) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("Job panicked", "job", jobName, "panic", r)
		}
	}()

	logger.Info("Starting job", "job", jobName)
	jobFunc()
	logger.Info("Job completed", "job", jobName)
}

// MarkExpiredFunds walks funds whose expiration date has passed and flips
// them to EXPIRED or BLOCKED_EXPIRED.
func (jr *JobRunner) MarkExpiredFunds() {
	jr.runWithRecovery("MarkExpiredFunds", func() {
		ctx := context.Background()
		funds, err := jr.fundRepo.ListExpirable(ctx, time.Now().UTC())
		if err != nil {
			logger.Error("Failed to list expirable funds", "error", err)
			return
		}

		var flipped int
		for _, fund := range funds {
			if _, err := jr.fundSvc.ExpireFund(ctx, fund.ID, "system"); err != nil {
				// A concurrent renewal or block may have moved the fund on;
				// skip and let the next sweep settle it.
				logger.Warn("Failed to expire fund", "fund_id", fund.ID, "error", err)
				continue
			}
			flipped++
		}
		logger.Info("Expiration sweep finished", "candidates", len(funds), "expired", flipped)
	})
}

// RunScheduledRenewals renews funds whose automatic renewal is due. Funds at
// their renewal limit are left alone and logged.
func (jr *JobRunner) RunScheduledRenewals() {
	jr.runWithRecovery("RunScheduledRenewals", func() {
		ctx := context.Background()
		funds, err := jr.fundRepo.ListRenewable(ctx, time.Now().UTC())
		if err != nil {
			logger.Error("Failed to list renewable funds", "error", err)
			return
		}

		var renewed int
		for _, fund := range funds {
			if _, err := jr.fundSvc.RenewFund(ctx, fund.ID, "system"); err != nil {
				if errors.Is(err, domain.ErrRenewalLimitExceeded) {
					logger.Info("Fund reached its renewal limit", "fund_id", fund.ID)
				} else {
					logger.Warn("Failed to renew fund", "fund_id", fund.ID, "error", err)
				}
				continue
			}
			renewed++
		}
		logger.Info("Scheduled renewals finished", "candidates", len(funds), "renewed", renewed)
	})
}

// RunAllNightlyJobs runs all nightly jobs (for manual execution)
func (jr *JobRunner) RunAllNightlyJobs() {
	jr.MarkExpiredFunds()
	jr.RunScheduledRenewals()
}
