// Package models contains domain entities and business models for the referral marketplace
package models

import (
	"time"

	"github.com/google/uuid"
)

// Settlement is an insert-only record of a referred payment split. The two
// transfer legs succeed or fail independently; their outcomes are tracked on
// the same row. Deal and referrer are captured at settlement time so the
// record survives the subscription being removed by an unsubscribe.
type Settlement struct {
	ID             uint          `gorm:"primaryKey" json:"id"`
	CorrelationID  uuid.UUID     `gorm:"type:uuid;not null;index:idx_settlements_correlation_id" json:"correlation_id"`
	SubscriptionID *uint         `gorm:"index:idx_settlements_subscription_id" json:"subscription_id,omitempty"`
	Subscription   *Subscription `gorm:"foreignKey:SubscriptionID;references:ID;constraint:OnDelete:SET NULL" json:"subscription,omitempty"`
	DealID         uint          `gorm:"not null;index:idx_settlements_deal_id" json:"deal_id"`
	Deal           Deal          `gorm:"foreignKey:DealID;references:ID" json:"deal,omitempty"`
	ReferrerUserID uint          `gorm:"not null;index:idx_settlements_referrer_id" json:"referrer_user_id"`

	ReferralCode string `gorm:"size:8;not null;index:idx_settlements_referral_code" json:"referral_code"`
	EventID      string `gorm:"size:255;not null;index:idx_settlements_event_id" json:"event_id"`

	// Amounts in the smallest currency unit.
	GrossAmount   int64   `gorm:"not null" json:"gross_amount"`
	Currency      string  `gorm:"size:3;not null" json:"currency"`
	CommissionPct float64 `gorm:"type:numeric(5,2);not null" json:"commission_pct"`
	ReferrerCut   int64   `gorm:"not null" json:"referrer_cut"`
	BusinessCut   int64   `gorm:"not null" json:"business_cut"`

	ReferrerTransferID     *string `gorm:"size:255" json:"referrer_transfer_id,omitempty"`
	ReferrerTransferStatus string  `gorm:"size:20;not null;default:pending" json:"referrer_transfer_status"`
	ReferrerTransferError  *string `gorm:"type:text" json:"referrer_transfer_error,omitempty"`
	BusinessTransferID     *string `gorm:"size:255" json:"business_transfer_id,omitempty"`
	BusinessTransferStatus string  `gorm:"size:20;not null;default:pending" json:"business_transfer_status"`
	BusinessTransferError  *string `gorm:"type:text" json:"business_transfer_error,omitempty"`

	CreatedAt time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC');index:idx_settlements_created_at" json:"created_at"`
	UpdatedAt time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"updated_at"`
}

func (Settlement) TableName() string {
	return "settlements"
}

// Transfer leg status constants
const (
	TransferStatusPending   = "pending"
	TransferStatusCompleted = "completed"
	TransferStatusFailed    = "failed"
)

// SettlementFilter represents filter criteria for settlement queries
type SettlementFilter struct {
	ID             *uint
	CorrelationID  *uuid.UUID
	SubscriptionID *uint
	DealID         *uint
	ReferrerUserID *uint
	ReferralCode   *string
	EventID        *string
	CreatedAfter   *time.Time
	CreatedBefore  *time.Time
}

// SplitAmount computes the referrer and business cuts of a gross amount.
// The referrer cut is floored; the business keeps the remainder so the two
// legs always sum to the gross amount.
func SplitAmount(gross int64, pct float64) (referrerCut, businessCut int64) {
	referrerCut = int64(float64(gross) * pct / 100)
	businessCut = gross - referrerCut
	return referrerCut, businessCut
}
