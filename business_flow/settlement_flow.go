// Package businessflow contains the core business logic and use cases for payment settlement workflows
package businessflow

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/Hassan-Shakoor/DealShark-BE/app/dto"
	"github.com/Hassan-Shakoor/DealShark-BE/app/services"
	"github.com/Hassan-Shakoor/DealShark-BE/models"
	"github.com/Hassan-Shakoor/DealShark-BE/repository"
	"github.com/Hassan-Shakoor/DealShark-BE/utils"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// SettlementFlow handles payment webhooks, commission splits, and checkout
type SettlementFlow interface {
	HandleWebhook(ctx context.Context, payload []byte, signature string) (*dto.WebhookAckResponse, error)
	CreateCheckout(ctx context.Context, req *dto.CreateCheckoutRequest, metadata *ClientMetadata) (*dto.CreateCheckoutResponse, error)
	MySettlements(ctx context.Context, userID uint, limit, offset int) (*dto.ListSettlementsResponse, error)
}

// CheckoutURLs are the hosted checkout redirect targets
type CheckoutURLs struct {
	SuccessURL string
	CancelURL  string
}

// SettlementFlowImpl implements the settlement flow
type SettlementFlowImpl struct {
	businessRepo     repository.BusinessRepository
	subscriptionRepo repository.SubscriptionRepository
	settlementRepo   repository.SettlementRepository
	webhookEventRepo repository.WebhookEventRepository
	auditRepo        repository.AuditLogRepository
	paymentGateway   services.PaymentGateway
	rc               *redis.Client
	checkoutURLs     CheckoutURLs
	db               *gorm.DB
}

// NewSettlementFlow creates a new settlement flow instance
func NewSettlementFlow(
	businessRepo repository.BusinessRepository,
	subscriptionRepo repository.SubscriptionRepository,
	settlementRepo repository.SettlementRepository,
	webhookEventRepo repository.WebhookEventRepository,
	auditRepo repository.AuditLogRepository,
	paymentGateway services.PaymentGateway,
	rc *redis.Client,
	checkoutURLs CheckoutURLs,
	db *gorm.DB,
) SettlementFlow {
	return &SettlementFlowImpl{
		businessRepo:     businessRepo,
		subscriptionRepo: subscriptionRepo,
		settlementRepo:   settlementRepo,
		webhookEventRepo: webhookEventRepo,
		auditRepo:        auditRepo,
		paymentGateway:   paymentGateway,
		rc:               rc,
		checkoutURLs:     checkoutURLs,
		db:               db,
	}
}

// checkoutSessionObject is the slice of the provider's checkout session
// payload the settlement path needs.
type checkoutSessionObject struct {
	ID          string            `json:"id"`
	AmountTotal int64             `json:"amount_total"`
	Currency    string            `json:"currency"`
	Metadata    map[string]string `json:"metadata"`
}

// accountObject is the slice of the provider's account payload the
// onboarding path needs.
type accountObject struct {
	ID               string `json:"id"`
	DetailsSubmitted bool   `json:"details_submitted"`
	ChargesEnabled   bool   `json:"charges_enabled"`
	PayoutsEnabled   bool   `json:"payouts_enabled"`
}

// HandleWebhook verifies, deduplicates, and dispatches a provider event.
// Signature verification is mandatory. Replayed, unknown-type, and
// unattributable events are all acknowledged so the provider stops
// retrying; only transient failures return an error.
//
// Database effects commit before any money moves: transfer legs run after
// the transaction, so a failure while recording the settlement can never
// follow an executed transfer, and a provider retry after a rollback never
// finds a half-settled ledger.
func (f *SettlementFlowImpl) HandleWebhook(ctx context.Context, payload []byte, signature string) (*dto.WebhookAckResponse, error) {
	event, err := f.paymentGateway.VerifyWebhook(payload, signature)
	if err != nil {
		return nil, NewBusinessError("WEBHOOK_VERIFICATION_FAILED", "Webhook verification failed", ErrWebhookSignatureInvalid)
	}

	// Cache fast path for replays; the database ledger below is the
	// authoritative dedup under concurrency.
	if f.rc != nil {
		set, err := f.rc.SetNX(ctx, dedupCacheKey(event.ID), "1", utils.WebhookDedupTTL).Result()
		if err == nil && !set {
			return &dto.WebhookAckResponse{Received: true, Status: "duplicate"}, nil
		}
	}

	var ack *dto.WebhookAckResponse
	var plan *settlementPlan

	err = repository.WithTransaction(ctx, f.db, func(txCtx context.Context) error {
		// Record the event in the ledger first. A replayed event hits the
		// unique event_id constraint and is acknowledged without effects;
		// the savepoint keeps the transaction alive past that violation.
		ledger := &models.WebhookEvent{
			EventID:   event.ID,
			EventType: event.Type,
			Status:    models.WebhookStatusProcessed,
		}
		err := repository.WithSavepoint(txCtx, func() error {
			return f.webhookEventRepo.Save(txCtx, ledger)
		})
		if err != nil {
			if repository.IsUniqueViolation(err) {
				ack = &dto.WebhookAckResponse{Received: true, Status: "duplicate"}
				return nil
			}
			return err
		}

		switch event.Type {
		case "checkout.session.completed":
			status, p, err := f.planCheckoutSettlement(txCtx, event)
			if err != nil {
				return err
			}
			plan = p
			ack = &dto.WebhookAckResponse{Received: true, Status: status}
		case "account.updated":
			if err := f.applyAccountUpdate(txCtx, event); err != nil {
				return err
			}
			ack = &dto.WebhookAckResponse{Received: true, Status: "processed"}
		default:
			// Unknown event types are acknowledged and ignored.
			ack = &dto.WebhookAckResponse{Received: true, Status: "ignored"}
		}

		return nil
	})

	if err != nil {
		// Free the cache slot so the provider's retry is not swallowed by
		// the fast path after a transient failure.
		if f.rc != nil {
			_ = f.rc.Del(ctx, dedupCacheKey(event.ID)).Err()
		}
		return nil, NewBusinessError("WEBHOOK_PROCESSING_FAILED", "Webhook processing failed", err)
	}

	if plan != nil {
		f.executeSettlementPlan(ctx, plan)
	}

	return ack, nil
}

// CreateCheckout creates a hosted checkout session for a referred purchase.
// The referral code travels in the session metadata and comes back on the
// completion webhook for attribution.
func (f *SettlementFlowImpl) CreateCheckout(ctx context.Context, req *dto.CreateCheckoutRequest, metadata *ClientMetadata) (*dto.CreateCheckoutResponse, error) {
	code := strings.ToUpper(strings.TrimSpace(req.ReferralCode))

	sub, err := f.subscriptionRepo.ByReferralCode(ctx, code)
	if err != nil {
		return nil, NewBusinessError("CHECKOUT_FAILED", "Checkout creation failed", err)
	}
	if sub == nil || !utils.IsTrue(sub.Deal.IsActive) {
		return nil, NewBusinessError("CHECKOUT_FAILED", "Checkout creation failed", ErrReferralCodeNotFound)
	}

	currency := req.Currency
	if currency == "" {
		currency = utils.DefaultCurrency
	}

	sessionID, url, err := f.paymentGateway.CreateCheckoutSession(ctx, services.CheckoutRequest{
		DealName:     sub.Deal.DealName,
		AmountCents:  req.AmountCents,
		Currency:     currency,
		ReferralCode: code,
		SuccessURL:   f.checkoutURLs.SuccessURL,
		CancelURL:    f.checkoutURLs.CancelURL,
	})
	if err != nil {
		errMsg := fmt.Sprintf("Checkout creation failed: %s", err.Error())
		_ = f.createAuditLog(ctx, nil, models.AuditActionCheckoutCreated, errMsg, false, &errMsg, metadata)

		return nil, NewBusinessError("CHECKOUT_FAILED", "Checkout creation failed", ErrUpstreamGateway)
	}

	msg := fmt.Sprintf("Checkout session created for code %s", code)
	_ = f.createAuditLog(ctx, nil, models.AuditActionCheckoutCreated, msg, true, nil, metadata)

	return &dto.CreateCheckoutResponse{
		SessionID:   sessionID,
		CheckoutURL: url,
	}, nil
}

// MySettlements returns settlements where the user is either the referrer
// or the deal's business owner
func (f *SettlementFlowImpl) MySettlements(ctx context.Context, userID uint, limit, offset int) (*dto.ListSettlementsResponse, error) {
	if limit <= 0 || limit > utils.MaxPageSize {
		limit = utils.DefaultPageSize
	}
	if offset < 0 {
		offset = 0
	}

	settlements, err := f.settlementRepo.ListByUser(ctx, userID, limit, offset)
	if err != nil {
		return nil, NewBusinessError("GET_SETTLEMENTS_FAILED", "Failed to load settlements", err)
	}

	settlementDTOs := make([]dto.SettlementDTO, 0, len(settlements))
	for _, settlement := range settlements {
		settlementDTOs = append(settlementDTOs, ToSettlementDTO(*settlement))
	}

	return &dto.ListSettlementsResponse{Settlements: settlementDTOs}, nil
}

// Private helper methods

// settlementPlan is a committed settlement row plus the transfer legs still
// to execute. Planning happens inside the webhook transaction; execution
// happens after it commits.
type settlementPlan struct {
	settlement *models.Settlement
	transfers  []plannedTransfer
}

type plannedTransfer struct {
	leg string
	req services.TransferRequest
}

// planCheckoutSettlement attributes a completed payment to its referral
// code, records the split, and plans the two independent transfer legs.
// Destinations are resolved here so execution needs no further reads.
func (f *SettlementFlowImpl) planCheckoutSettlement(ctx context.Context, event *services.GatewayEvent) (string, *settlementPlan, error) {
	var session checkoutSessionObject
	if err := json.Unmarshal(event.Data, &session); err != nil {
		return "", nil, fmt.Errorf("failed to decode checkout session: %w", err)
	}

	code := session.Metadata["referral_code"]
	if code == "" {
		status, err := f.dropEvent(ctx, event, "no referral code in metadata")
		return status, nil, err
	}

	sub, err := f.subscriptionRepo.ByReferralCode(ctx, strings.ToUpper(code))
	if err != nil {
		return "", nil, err
	}
	if sub == nil {
		// Unknown codes are dropped, not errored: the payment is real but
		// carries no attributable referral.
		status, err := f.dropEvent(ctx, event, "unknown referral code "+code)
		return status, nil, err
	}

	deal := sub.Deal
	if !deal.IsCommission() {
		status, err := f.dropEvent(ctx, event, "deal has no reward")
		return status, nil, err
	}

	business := deal.Business
	if !business.HasStripeAccount() {
		status, err := f.dropEvent(ctx, event, "business has no payment account")
		return status, nil, err
	}

	pct := deal.CommissionRate()
	referrerCut, businessCut := models.SplitAmount(session.AmountTotal, pct)

	subscriptionID := sub.ID
	settlement := &models.Settlement{
		CorrelationID:          uuid.New(),
		SubscriptionID:         &subscriptionID,
		DealID:                 deal.ID,
		ReferrerUserID:         sub.ReferrerUserID,
		ReferralCode:           sub.ReferralCode,
		EventID:                event.ID,
		GrossAmount:            session.AmountTotal,
		Currency:               session.Currency,
		CommissionPct:          pct,
		ReferrerCut:            referrerCut,
		BusinessCut:            businessCut,
		ReferrerTransferStatus: models.TransferStatusPending,
		BusinessTransferStatus: models.TransferStatusPending,
	}

	if err := f.settlementRepo.Save(ctx, settlement); err != nil {
		return "", nil, err
	}

	plan := &settlementPlan{settlement: settlement}
	plan.transfers = append(plan.transfers, plannedTransfer{
		leg: repository.TransferLegBusiness,
		req: services.TransferRequest{
			AmountCents:   businessCut,
			Currency:      session.Currency,
			DestinationID: *business.StripeAccountID,
			TransferGroup: sub.ReferralCode,
			Description:   fmt.Sprintf("Business cut for deal %q", deal.DealName),
		},
	})

	// Referrer payout goes to the referrer's connected payout account. A
	// referrer whose account was disconnected after subscribing leaves the
	// leg pending for the retry scheduler.
	referrerBusiness, err := f.businessRepo.ByUserID(ctx, sub.ReferrerUserID)
	if err != nil {
		return "", nil, err
	}
	if referrerBusiness != nil && referrerBusiness.HasStripeAccount() {
		plan.transfers = append(plan.transfers, plannedTransfer{
			leg: repository.TransferLegReferrer,
			req: services.TransferRequest{
				AmountCents:   referrerCut,
				Currency:      session.Currency,
				DestinationID: *referrerBusiness.StripeAccountID,
				TransferGroup: sub.ReferralCode,
				Description:   fmt.Sprintf("Referral commission for deal %q", deal.DealName),
			},
		})
	}

	msg := fmt.Sprintf("Settlement recorded: %d (gross %d, referrer %d, business %d)",
		settlement.ID, settlement.GrossAmount, referrerCut, businessCut)
	_ = f.createAuditLog(ctx, &sub.ReferrerUserID, models.AuditActionSettlementProcessed, msg, true, nil, nil)

	return "processed", plan, nil
}

// executeSettlementPlan runs the planned transfer legs. The legs are
// independent: one failing neither blocks nor reverses the other. Outcomes
// land on the settlement row per leg.
func (f *SettlementFlowImpl) executeSettlementPlan(ctx context.Context, plan *settlementPlan) {
	for _, transfer := range plan.transfers {
		f.runTransferLeg(ctx, plan.settlement, transfer.leg, transfer.req)
	}
}

// runTransferLeg executes one transfer and records its outcome. Errors are
// captured on the settlement row, never returned.
func (f *SettlementFlowImpl) runTransferLeg(ctx context.Context, settlement *models.Settlement, leg string, req services.TransferRequest) {
	transferID, err := f.paymentGateway.CreateTransfer(ctx, req)
	if err != nil {
		errMsg := err.Error()
		_ = f.settlementRepo.UpdateTransferLeg(ctx, settlement.ID, leg, models.TransferStatusFailed, nil, &errMsg)
		return
	}

	_ = f.settlementRepo.UpdateTransferLeg(ctx, settlement.ID, leg, models.TransferStatusCompleted, &transferID, nil)
}

// applyAccountUpdate keeps is_onboarding_completed in lockstep with the
// provider's three onboarding gates, in both directions.
func (f *SettlementFlowImpl) applyAccountUpdate(ctx context.Context, event *services.GatewayEvent) error {
	var acct accountObject
	if err := json.Unmarshal(event.Data, &acct); err != nil {
		return fmt.Errorf("failed to decode account: %w", err)
	}

	business, err := f.businessRepo.ByStripeAccountID(ctx, acct.ID)
	if err != nil {
		return err
	}
	if business == nil {
		// Account not ours; acknowledge and move on.
		return nil
	}

	completed := acct.DetailsSubmitted && acct.ChargesEnabled && acct.PayoutsEnabled
	if business.IsOnboarded() == completed {
		return nil
	}

	if err := f.businessRepo.SetOnboardingStatus(ctx, business.ID, completed); err != nil {
		return err
	}

	if completed {
		msg := fmt.Sprintf("Onboarding completed for business: %d", business.ID)
		_ = f.createAuditLog(ctx, &business.UserID, models.AuditActionOnboardingCompleted, msg, true, nil, nil)
	}

	return nil
}

// dropEvent marks the ledger row dropped with a reason and acknowledges
func (f *SettlementFlowImpl) dropEvent(ctx context.Context, event *services.GatewayEvent, reason string) (string, error) {
	if err := f.webhookEventRepo.UpdateStatus(ctx, event.ID, models.WebhookStatusDropped, &reason); err != nil {
		return "", err
	}

	msg := fmt.Sprintf("Webhook %s dropped: %s", event.ID, reason)
	_ = f.createAuditLog(ctx, nil, models.AuditActionWebhookDropped, msg, true, nil, nil)

	return "dropped", nil
}

func (f *SettlementFlowImpl) createAuditLog(ctx context.Context, userID *uint, action, description string, success bool, errorMsg *string, metadata *ClientMetadata) error {
	ipAddress := "127.0.0.1"
	userAgent := ""
	if metadata != nil {
		ipAddress = metadata.IPAddress
		userAgent = metadata.UserAgent
	}

	audit := &models.AuditLog{
		UserID:       userID,
		Action:       action,
		Description:  &description,
		Success:      utils.ToPtr(success),
		IPAddress:    &ipAddress,
		UserAgent:    &userAgent,
		ErrorMessage: errorMsg,
	}

	requestID := ctx.Value(RequestIDKey)
	if requestID != nil {
		requestIDStr, ok := requestID.(string)
		if ok {
			audit.RequestID = &requestIDStr
		}
	}

	return f.auditRepo.Save(ctx, audit)
}

func dedupCacheKey(eventID string) string {
	return "webhook:event:" + eventID
}
