// Package scheduler
package scheduler

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/Hassan-Shakoor/DealShark-BE/app/services"
	"github.com/Hassan-Shakoor/DealShark-BE/models"
	"github.com/Hassan-Shakoor/DealShark-BE/repository"
	"github.com/Hassan-Shakoor/DealShark-BE/utils"
	"github.com/redis/go-redis/v9"
)

// SettlementScheduler periodically retries settlement transfer legs that did
// not complete on the webhook path. A business leg can fail on a transient
// provider error; a referrer leg stays pending until the referrer connects a
// payout account of their own.
type SettlementScheduler struct {
	settlementRepo repository.SettlementRepository
	businessRepo   repository.BusinessRepository
	paymentGateway services.PaymentGateway
	rc             *redis.Client
	logger         *log.Logger
	interval       time.Duration
	batchSize      int

	logFile *os.File
}

// NewSettlementScheduler creates a new settlement retry scheduler
func NewSettlementScheduler(
	settlementRepo repository.SettlementRepository,
	businessRepo repository.BusinessRepository,
	paymentGateway services.PaymentGateway,
	rc *redis.Client,
	interval time.Duration,
) *SettlementScheduler {
	if interval <= 0 {
		interval = 5 * time.Minute
	}

	s := &SettlementScheduler{
		settlementRepo: settlementRepo,
		businessRepo:   businessRepo,
		paymentGateway: paymentGateway,
		rc:             rc,
		interval:       interval,
		batchSize:      100,
	}

	// Initialize scheduler-specific logger (to stdout and persistent file)
	if err := s.initSchedulerLogger(); err != nil {
		// Fallback to default stdout logger if file logger init fails
		s.logger = log.Default()
		s.logger.Printf("scheduler: failed to initialize file logger: %v", err)
	}

	return s
}

// initSchedulerLogger configures a logger that writes to both stdout and a persistent file under data/ (or /data)
func (s *SettlementScheduler) initSchedulerLogger() error {
	// Prefer relative data/ then fallback to /data for containerized environments
	candidates := []string{
		filepath.Join("data"),
		"/data",
	}
	for _, dir := range candidates {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			continue
		}
		logPath := filepath.Join(dir, "scheduler.log")
		f, err := os.OpenFile(logPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			continue
		}
		s.logFile = f
		mw := io.MultiWriter(os.Stdout, f)
		s.logger = log.New(mw, "scheduler ", log.LstdFlags|log.Lmicroseconds|log.LUTC)
		return nil
	}
	return fmt.Errorf("could not create scheduler log file in any candidate directory")
}

// Start launches the scheduler loop in a background goroutine and returns a stop function
func (s *SettlementScheduler) Start(parent context.Context) func() {
	ctx, cancel := context.WithCancel(parent)

	go func() {
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		s.runOnce(ctx)

		for {
			select {
			case <-ctx.Done():
				if s.logFile != nil {
					_ = s.logFile.Close()
				}
				return
			case <-ticker.C:
				s.runOnce(ctx)
			}
		}
	}()

	return cancel
}

func (s *SettlementScheduler) runOnce(ctx context.Context) {
	// Only one instance works a batch at a time; the lock expires on its own
	// so a crashed holder does not stall retries forever.
	if s.rc != nil {
		acquired, err := s.rc.SetNX(ctx, settlementLockKey, "1", s.interval).Result()
		if err == nil && !acquired {
			return
		}
	}

	// Legs younger than a minute are usually still settling on the webhook
	// path; skip them to avoid racing it.
	cutoff := utils.UTCNow().Add(-time.Minute)

	settlements, err := s.settlementRepo.ListUnsettledTransfers(ctx, cutoff, s.batchSize)
	if err != nil {
		s.logger.Printf("scheduler: list unsettled transfers failed: %v", err)
		return
	}
	if len(settlements) == 0 {
		return
	}
	s.logger.Printf("scheduler: %d settlements with incomplete transfer legs", len(settlements))

	for _, settlement := range settlements {
		select {
		case <-ctx.Done():
			return
		default:
		}
		s.processSettlement(ctx, settlement)
	}
}

func (s *SettlementScheduler) processSettlement(ctx context.Context, settlement *models.Settlement) {
	deal := settlement.Deal
	business := deal.Business

	if settlement.BusinessTransferStatus != models.TransferStatusCompleted && business.HasStripeAccount() {
		s.retryLeg(ctx, settlement, repository.TransferLegBusiness, services.TransferRequest{
			AmountCents:   settlement.BusinessCut,
			Currency:      settlement.Currency,
			DestinationID: *business.StripeAccountID,
			TransferGroup: settlement.ReferralCode,
			Description:   fmt.Sprintf("Business cut for deal %q", deal.DealName),
		})
	}

	if settlement.ReferrerTransferStatus != models.TransferStatusCompleted {
		// The referrer leg needs a destination account. Referrers who connect
		// one after the sale get picked up here.
		referrerBusiness, err := s.businessRepo.ByUserID(ctx, settlement.ReferrerUserID)
		if err != nil {
			s.logger.Printf("scheduler: load referrer business failed for settlement id=%d: %v", settlement.ID, err)
			return
		}
		if referrerBusiness == nil || !referrerBusiness.HasStripeAccount() {
			return
		}

		s.retryLeg(ctx, settlement, repository.TransferLegReferrer, services.TransferRequest{
			AmountCents:   settlement.ReferrerCut,
			Currency:      settlement.Currency,
			DestinationID: *referrerBusiness.StripeAccountID,
			TransferGroup: settlement.ReferralCode,
			Description:   fmt.Sprintf("Referral commission for deal %q", deal.DealName),
		})
	}
}

func (s *SettlementScheduler) retryLeg(ctx context.Context, settlement *models.Settlement, leg string, req services.TransferRequest) {
	transferID, err := s.paymentGateway.CreateTransfer(ctx, req)
	if err != nil {
		errMsg := err.Error()
		if uerr := s.settlementRepo.UpdateTransferLeg(ctx, settlement.ID, leg, models.TransferStatusFailed, nil, &errMsg); uerr != nil {
			s.logger.Printf("scheduler: record failed %s leg for settlement id=%d: %v", leg, settlement.ID, uerr)
		}
		s.logger.Printf("scheduler: %s transfer retry failed for settlement id=%d: %v", leg, settlement.ID, err)
		return
	}

	if err := s.settlementRepo.UpdateTransferLeg(ctx, settlement.ID, leg, models.TransferStatusCompleted, &transferID, nil); err != nil {
		s.logger.Printf("scheduler: record completed %s leg for settlement id=%d: %v", leg, settlement.ID, err)
		return
	}
	s.logger.Printf("scheduler: %s transfer completed for settlement id=%d transfer=%s", leg, settlement.ID, transferID)
}

const settlementLockKey = "scheduler:settlement:lock"
