// Package models contains domain entities and business models for the referral marketplace
package models

import (
	"time"

	"github.com/google/uuid"
)

// Subscription links a referrer to a deal through a globally unique referral
// code. One subscription per (deal, referrer); repeat subscribes are
// idempotent and never mint a new code. Unsubscribing removes the row
// outright, so a later re-subscribe starts over with a fresh code.
type Subscription struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	UUID           uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:uk_subscriptions_uuid" json:"uuid"`
	DealID         uint      `gorm:"not null;index:idx_subscriptions_deal_id;uniqueIndex:uk_subscriptions_deal_referrer" json:"deal_id"`
	Deal           Deal      `gorm:"foreignKey:DealID;references:ID" json:"deal,omitempty"`
	ReferrerUserID uint      `gorm:"not null;index:idx_subscriptions_referrer_id;uniqueIndex:uk_subscriptions_deal_referrer" json:"referrer_user_id"`
	Referrer       User      `gorm:"foreignKey:ReferrerUserID;references:ID" json:"referrer,omitempty"`

	ReferralCode string `gorm:"size:8;not null;uniqueIndex:uk_subscriptions_referral_code" json:"referral_code"`
	ReferralLink string `gorm:"size:255;not null" json:"referral_link"`

	CreatedAt time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC');index:idx_subscriptions_created_at" json:"created_at"`
	UpdatedAt time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"updated_at"`
}

func (Subscription) TableName() string {
	return "subscriptions"
}

// Referral code format
const (
	ReferralCodeLength   = 8
	ReferralCodeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

// SubscriptionFilter represents filter criteria for subscription queries
type SubscriptionFilter struct {
	ID             *uint
	UUID           *uuid.UUID
	DealID         *uint
	ReferrerUserID *uint
	ReferralCode   *string
	CreatedAfter   *time.Time
	CreatedBefore  *time.Time
}
