// Package repository provides data access layer implementations and interfaces for database operations
package repository

import (
	"context"
	"time"

	"github.com/Hassan-Shakoor/DealShark-BE/models"
	"github.com/google/uuid"
)

// RepositoryContext key for transaction in context
type contextKey string

const TxContextKey contextKey = "tx"

type Repository[T any, F any] interface {
	ByID(ctx context.Context, id uint) (*T, error)
	ByFilter(ctx context.Context, filter F, orderBy string, limit, offset int) ([]*T, error)
	Save(ctx context.Context, entity *T) error
	SaveBatch(ctx context.Context, entities []*T) error
	Count(ctx context.Context, filter F) (int64, error)
	Exists(ctx context.Context, filter F) (bool, error)
}

// UserRepository defines operations for users
type UserRepository interface {
	Repository[models.User, models.UserFilter]
	ByEmail(ctx context.Context, email string) (*models.User, error)
	ByUUID(ctx context.Context, uid uuid.UUID) (*models.User, error)
	MarkEmailVerified(ctx context.Context, userID uint) error
	UpdateLastLogin(ctx context.Context, userID uint) error
}

// OTPVerificationRepository defines operations for OTP verifications
type OTPVerificationRepository interface {
	Repository[models.OTPVerification, models.OTPVerificationFilter]
	LatestActiveByUser(ctx context.Context, userID uint, otpType string) (*models.OTPVerification, error)
	ExpireOldOTPs(ctx context.Context, userID uint, otpType string) error
	GetLatestByCorrelationID(ctx context.Context, correlationID uuid.UUID) (*models.OTPVerification, error)
}

// UserSessionRepository defines operations for user sessions
type UserSessionRepository interface {
	Repository[models.UserSession, models.UserSessionFilter]
	BySessionToken(ctx context.Context, token string) (*models.UserSession, error)
	ByRefreshToken(ctx context.Context, token string) (*models.UserSession, error)
	ExpireSession(ctx context.Context, sessionID uint) error
	ExpireAllUserSessions(ctx context.Context, userID uint) error
}

// AuditLogRepository defines operations for audit logs
type AuditLogRepository interface {
	Repository[models.AuditLog, models.AuditLogFilter]
	ListByUser(ctx context.Context, userID uint, limit, offset int) ([]*models.AuditLog, error)
	ListByAction(ctx context.Context, action string, limit, offset int) ([]*models.AuditLog, error)
}

// BusinessRepository defines operations for businesses
type BusinessRepository interface {
	Repository[models.Business, models.BusinessFilter]
	ByUserID(ctx context.Context, userID uint) (*models.Business, error)
	ByStripeAccountID(ctx context.Context, accountID string) (*models.Business, error)
	UpdateProfile(ctx context.Context, businessID uint, fields map[string]any) error
	SetOnboardingStatus(ctx context.Context, businessID uint, completed bool) error
}

// DealRepository defines operations for deals
type DealRepository interface {
	Repository[models.Deal, models.DealFilter]
	ByIDWithBusiness(ctx context.Context, id uint) (*models.Deal, error)
	Search(ctx context.Context, filter models.DealFilter, limit, offset int) ([]*models.Deal, int64, error)
	ListByBusiness(ctx context.Context, businessID uint, activeOnly bool) ([]*models.Deal, error)
	ActiveCommissionDealExists(ctx context.Context, businessID uint, commissionPct float64) (bool, error)
	Deactivate(ctx context.Context, dealID uint) error
}

// SubscriptionRepository defines operations for referral subscriptions
type SubscriptionRepository interface {
	Repository[models.Subscription, models.SubscriptionFilter]
	ByDealAndReferrer(ctx context.Context, dealID, referrerUserID uint) (*models.Subscription, error)
	ByReferralCode(ctx context.Context, code string) (*models.Subscription, error)
	ListByReferrer(ctx context.Context, referrerUserID uint) ([]*models.Subscription, error)
	ListByDeal(ctx context.Context, dealID uint) ([]*models.Subscription, error)
	Delete(ctx context.Context, subscriptionID uint) error
}

// SettlementRepository defines operations for settlements
type SettlementRepository interface {
	Repository[models.Settlement, models.SettlementFilter]
	UpdateTransferLeg(ctx context.Context, settlementID uint, leg string, status string, transferID, transferErr *string) error
	ListByUser(ctx context.Context, userID uint, limit, offset int) ([]*models.Settlement, error)
	ListUnsettledTransfers(ctx context.Context, olderThan time.Time, limit int) ([]*models.Settlement, error)
}

// WebhookEventRepository defines operations for the webhook event ledger
type WebhookEventRepository interface {
	Repository[models.WebhookEvent, models.WebhookEventFilter]
	ByEventID(ctx context.Context, eventID string) (*models.WebhookEvent, error)
	UpdateStatus(ctx context.Context, eventID, status string, detail *string) error
}
