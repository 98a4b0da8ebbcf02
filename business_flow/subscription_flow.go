// Package businessflow contains the core business logic and use cases for referral subscription workflows
package businessflow

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"math/big"
	"strconv"
	"strings"
	"time"

	"github.com/Hassan-Shakoor/DealShark-BE/app/dto"
	"github.com/Hassan-Shakoor/DealShark-BE/models"
	"github.com/Hassan-Shakoor/DealShark-BE/repository"
	"github.com/Hassan-Shakoor/DealShark-BE/utils"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/xuri/excelize/v2"
	"gorm.io/gorm"
)

// SubscriptionFlow handles the referral subscription engine
type SubscriptionFlow interface {
	Subscribe(ctx context.Context, userID uint, req *dto.SubscribeRequest, metadata *ClientMetadata) (*dto.SubscribeResponse, error)
	Unsubscribe(ctx context.Context, userID, dealID uint, metadata *ClientMetadata) error
	Resolve(ctx context.Context, referralCode string) (*dto.ResolveReferralResponse, error)
	MySubscriptions(ctx context.Context, userID uint) (*dto.ListSubscriptionsResponse, error)
	DealSubscribers(ctx context.Context, userID, dealID uint) (*dto.DealSubscribersResponse, error)
	ExportDealSubscribers(ctx context.Context, userID, dealID uint, metadata *ClientMetadata) (string, []byte, error)
}

// SubscriptionFlowImpl implements the referral subscription flow
type SubscriptionFlowImpl struct {
	userRepo         repository.UserRepository
	businessRepo     repository.BusinessRepository
	dealRepo         repository.DealRepository
	subscriptionRepo repository.SubscriptionRepository
	auditRepo        repository.AuditLogRepository
	rc               *redis.Client
	referralBaseURL  string
	db               *gorm.DB
}

// NewSubscriptionFlow creates a new subscription flow instance
func NewSubscriptionFlow(
	userRepo repository.UserRepository,
	businessRepo repository.BusinessRepository,
	dealRepo repository.DealRepository,
	subscriptionRepo repository.SubscriptionRepository,
	auditRepo repository.AuditLogRepository,
	rc *redis.Client,
	referralBaseURL string,
	db *gorm.DB,
) SubscriptionFlow {
	return &SubscriptionFlowImpl{
		userRepo:         userRepo,
		businessRepo:     businessRepo,
		dealRepo:         dealRepo,
		subscriptionRepo: subscriptionRepo,
		auditRepo:        auditRepo,
		rc:               rc,
		referralBaseURL:  strings.TrimRight(referralBaseURL, "/"),
		db:               db,
	}
}

// Subscribe enrolls a referrer in a deal. Referrers must be able to receive
// their cut, so a linked and onboarded payout account is a precondition.
// The operation is idempotent per (deal, referrer): a repeat subscribe
// returns the existing subscription and never mints a new code.
func (f *SubscriptionFlowImpl) Subscribe(ctx context.Context, userID uint, req *dto.SubscribeRequest, metadata *ClientMetadata) (*dto.SubscribeResponse, error) {
	var sub *models.Subscription
	var already bool

	err := repository.WithTransaction(ctx, f.db, func(txCtx context.Context) error {
		user, err := f.userRepo.ByID(txCtx, userID)
		if err != nil {
			return err
		}
		if user == nil {
			return ErrUserNotFound
		}

		payout, err := f.businessRepo.ByUserID(txCtx, userID)
		if err != nil {
			return err
		}
		if payout == nil || !payout.HasStripeAccount() {
			return ErrReferrerNoPayoutAccount
		}
		if !payout.IsOnboarded() {
			return ErrReferrerNotOnboarded
		}

		deal, err := f.dealRepo.ByIDWithBusiness(txCtx, req.DealID)
		if err != nil {
			return err
		}
		if deal == nil || !utils.IsTrue(deal.IsActive) {
			return ErrDealNotFound
		}

		// Idempotency fast path
		sub, err = f.subscriptionRepo.ByDealAndReferrer(txCtx, deal.ID, userID)
		if err != nil {
			return err
		}
		if sub != nil {
			already = true
			sub.Deal = *deal
			return nil
		}

		sub, err = f.createSubscription(txCtx, deal, userID)
		if err != nil {
			// A concurrent subscribe for the same (deal, referrer) lost us
			// the unique slot; re-read and return the winner's row.
			if repository.IsUniqueViolation(err) {
				sub, err = f.subscriptionRepo.ByDealAndReferrer(txCtx, deal.ID, userID)
				if err != nil {
					return err
				}
				if sub != nil {
					already = true
					sub.Deal = *deal
					return nil
				}
				return ErrReferralCodeExhausted
			}
			return err
		}

		sub.Deal = *deal
		return nil
	})

	if err != nil {
		errMsg := fmt.Sprintf("Subscription failed: %s", err.Error())
		_ = f.createAuditLog(ctx, &userID, models.AuditActionSubscriptionCreated, errMsg, false, &errMsg, metadata)

		return nil, NewBusinessError("SUBSCRIBE_FAILED", "Subscription failed", err)
	}

	if !already {
		msg := fmt.Sprintf("Subscription created: %d", sub.ID)
		_ = f.createAuditLog(ctx, &userID, models.AuditActionSubscriptionCreated, msg, true, nil, metadata)
	}

	return &dto.SubscribeResponse{
		Subscription:      ToSubscriptionDTO(*sub),
		AlreadySubscribed: already,
	}, nil
}

// Unsubscribe removes the referrer's subscription to a deal. The row is
// deleted outright, so the code dies and a later re-subscribe mints a
// fresh one.
func (f *SubscriptionFlowImpl) Unsubscribe(ctx context.Context, userID, dealID uint, metadata *ClientMetadata) error {
	var code string

	err := repository.WithTransaction(ctx, f.db, func(txCtx context.Context) error {
		sub, err := f.subscriptionRepo.ByDealAndReferrer(txCtx, dealID, userID)
		if err != nil {
			return err
		}
		if sub == nil {
			return ErrSubscriptionNotFound
		}

		code = sub.ReferralCode
		return f.subscriptionRepo.Delete(txCtx, sub.ID)
	})

	if err != nil {
		errMsg := fmt.Sprintf("Unsubscribe failed: %s", err.Error())
		_ = f.createAuditLog(ctx, &userID, models.AuditActionSubscriptionRemoved, errMsg, false, &errMsg, metadata)

		return NewBusinessError("UNSUBSCRIBE_FAILED", "Unsubscribe failed", err)
	}

	// Drop the cached resolution so the dead code stops resolving promptly.
	if f.rc != nil && code != "" {
		_ = f.rc.Del(ctx, resolveCacheKey(code)).Err()
	}

	msg := fmt.Sprintf("Subscription removed: deal %d", dealID)
	_ = f.createAuditLog(ctx, &userID, models.AuditActionSubscriptionRemoved, msg, true, nil, metadata)

	return nil
}

// Resolve maps a referral code to its deal, business, and referrer. This is
// the public landing endpoint behind every shared link, so resolutions are
// cached briefly.
func (f *SubscriptionFlowImpl) Resolve(ctx context.Context, referralCode string) (*dto.ResolveReferralResponse, error) {
	code := strings.ToUpper(strings.TrimSpace(referralCode))
	if len(code) != models.ReferralCodeLength {
		return nil, NewBusinessError("RESOLVE_FAILED", "Referral code resolution failed", ErrReferralCodeNotFound)
	}

	cacheKey := resolveCacheKey(code)
	if f.rc != nil {
		if bs, err := f.rc.Get(ctx, cacheKey).Bytes(); err == nil && len(bs) > 0 {
			var cached dto.ResolveReferralResponse
			if err := json.Unmarshal(bs, &cached); err == nil {
				return &cached, nil
			}
		}
	}

	sub, err := f.subscriptionRepo.ByReferralCode(ctx, code)
	if err != nil {
		return nil, NewBusinessError("RESOLVE_FAILED", "Referral code resolution failed", err)
	}
	if sub == nil || !utils.IsTrue(sub.Deal.IsActive) {
		return nil, NewBusinessError("RESOLVE_FAILED", "Referral code resolution failed", ErrReferralCodeNotFound)
	}

	resp := &dto.ResolveReferralResponse{
		ReferralCode: sub.ReferralCode,
		Deal:         ToDealDTO(sub.Deal),
		Business:     ToBusinessDTO(sub.Deal.Business),
		ReferrerName: sub.Referrer.FullName(),
	}

	if f.rc != nil {
		if bs, err := json.Marshal(resp); err == nil {
			_ = f.rc.Set(ctx, cacheKey, bs, utils.ResolveCacheTTL).Err()
		}
	}

	return resp, nil
}

// MySubscriptions returns the referrer's active subscriptions
func (f *SubscriptionFlowImpl) MySubscriptions(ctx context.Context, userID uint) (*dto.ListSubscriptionsResponse, error) {
	subs, err := f.subscriptionRepo.ListByReferrer(ctx, userID)
	if err != nil {
		return nil, NewBusinessError("GET_SUBSCRIPTIONS_FAILED", "Failed to load subscriptions", err)
	}

	subDTOs := make([]dto.SubscriptionDTO, 0, len(subs))
	for _, sub := range subs {
		subDTOs = append(subDTOs, ToSubscriptionDTO(*sub))
	}

	return &dto.ListSubscriptionsResponse{Subscriptions: subDTOs}, nil
}

// DealSubscribers returns the referrers subscribed to one of the business's deals
func (f *SubscriptionFlowImpl) DealSubscribers(ctx context.Context, userID, dealID uint) (*dto.DealSubscribersResponse, error) {
	deal, subs, err := f.listOwnDealSubscribers(ctx, userID, dealID)
	if err != nil {
		return nil, NewBusinessError("GET_SUBSCRIBERS_FAILED", "Failed to load subscribers", err)
	}

	subscribers := make([]dto.SubscriberDTO, 0, len(subs))
	for _, sub := range subs {
		subscribers = append(subscribers, dto.SubscriberDTO{
			UserID:       sub.ReferrerUserID,
			FullName:     sub.Referrer.FullName(),
			Email:        sub.Referrer.Email,
			ReferralCode: sub.ReferralCode,
			ReferralLink: sub.ReferralLink,
			SubscribedAt: sub.CreatedAt.Format(time.RFC3339),
		})
	}

	return &dto.DealSubscribersResponse{
		DealID:      deal.ID,
		DealName:    deal.DealName,
		Subscribers: subscribers,
	}, nil
}

// ExportDealSubscribers builds an XLSX workbook of a deal's subscribers
func (f *SubscriptionFlowImpl) ExportDealSubscribers(ctx context.Context, userID, dealID uint, metadata *ClientMetadata) (string, []byte, error) {
	deal, subs, err := f.listOwnDealSubscribers(ctx, userID, dealID)
	if err != nil {
		return "", nil, NewBusinessError("EXPORT_SUBSCRIBERS_FAILED", "Failed to export subscribers", err)
	}

	xl := excelize.NewFile()
	defer func() { _ = xl.Close() }()

	sheet := xl.GetSheetName(0)
	header := []string{"user_id", "full_name", "email", "referral_code", "referral_link", "subscribed_at"}
	_ = xl.SetSheetRow(sheet, "A1", &header)

	for ri, sub := range subs {
		record := []string{
			strconv.FormatUint(uint64(sub.ReferrerUserID), 10),
			sub.Referrer.FullName(),
			sub.Referrer.Email,
			sub.ReferralCode,
			sub.ReferralLink,
			sub.CreatedAt.UTC().Format(time.RFC3339),
		}
		cellRef, _ := excelize.CoordinatesToCellName(1, ri+2)
		_ = xl.SetSheetRow(sheet, cellRef, &record)
	}

	buf, err := xl.WriteToBuffer()
	if err != nil {
		return "", nil, NewBusinessError("EXCEL_WRITE_ERROR", "Failed to write Excel file", err)
	}

	msg := fmt.Sprintf("Subscribers exported for deal: %d", deal.ID)
	_ = f.createAuditLog(ctx, &userID, models.AuditActionSubscribersExported, msg, true, nil, metadata)

	filename := fmt.Sprintf("deal_%d_subscribers.xlsx", deal.ID)
	return filename, buf.Bytes(), nil
}

// Private helper methods

func (f *SubscriptionFlowImpl) createSubscription(ctx context.Context, deal *models.Deal, userID uint) (*models.Subscription, error) {
	// The global unique index on referral_code is the collision detector;
	// regeneration is bounded so a pathological RNG cannot spin forever.
	// Each insert runs in a savepoint: a unique violation aborts the
	// enclosing Postgres transaction otherwise, and both the retry and the
	// conflict re-read below need it alive.
	for attempt := 0; attempt < utils.ReferralCodeMaxAttempts; attempt++ {
		code, err := GenerateReferralCode()
		if err != nil {
			return nil, err
		}

		sub := &models.Subscription{
			UUID:           uuid.New(),
			DealID:         deal.ID,
			ReferrerUserID: userID,
			ReferralCode:   code,
			ReferralLink:   f.referralBaseURL + "/ref/" + code,
		}

		err = repository.WithSavepoint(ctx, func() error {
			return f.subscriptionRepo.Save(ctx, sub)
		})
		if err == nil {
			return sub, nil
		}
		if !repository.IsUniqueViolation(err) {
			return nil, err
		}

		// Distinguish a code collision from a (deal, referrer) race: if the
		// pair now exists, surface the conflict to the caller.
		existing, lookupErr := f.subscriptionRepo.ByDealAndReferrer(ctx, deal.ID, userID)
		if lookupErr != nil {
			return nil, lookupErr
		}
		if existing != nil {
			return nil, err
		}
	}

	return nil, ErrReferralCodeExhausted
}

func (f *SubscriptionFlowImpl) listOwnDealSubscribers(ctx context.Context, userID, dealID uint) (*models.Deal, []*models.Subscription, error) {
	user, err := f.userRepo.ByID(ctx, userID)
	if err != nil {
		return nil, nil, err
	}
	if user == nil {
		return nil, nil, ErrUserNotFound
	}
	if !user.IsBusiness() {
		return nil, nil, ErrNotBusinessAccount
	}

	business, err := f.businessRepo.ByUserID(ctx, userID)
	if err != nil {
		return nil, nil, err
	}
	if business == nil {
		return nil, nil, ErrBusinessNotFound
	}

	deal, err := f.dealRepo.ByID(ctx, dealID)
	if err != nil {
		return nil, nil, err
	}
	if deal == nil {
		return nil, nil, ErrDealNotFound
	}
	if deal.BusinessID != business.ID {
		return nil, nil, ErrDealAccessDenied
	}

	subs, err := f.subscriptionRepo.ListByDeal(ctx, deal.ID)
	if err != nil {
		return nil, nil, err
	}

	return deal, subs, nil
}

func (f *SubscriptionFlowImpl) createAuditLog(ctx context.Context, userID *uint, action, description string, success bool, errorMsg *string, metadata *ClientMetadata) error {
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

// GenerateReferralCode generates an 8-character uppercase alphanumeric code
// using crypto/rand
func GenerateReferralCode() (string, error) {
	alphabetLen := big.NewInt(int64(len(models.ReferralCodeAlphabet)))

	code := make([]byte, models.ReferralCodeLength)
	for i := range code {
		n, err := rand.Int(rand.Reader, alphabetLen)
		if err != nil {
			return "", err
		}
		code[i] = models.ReferralCodeAlphabet[n.Int64()]
	}

	return string(code), nil
}

func resolveCacheKey(code string) string {
	return "referral:resolve:" + code
}
