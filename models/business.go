// Package models contains domain entities and business models for the referral marketplace
package models

import (
	"time"

	"github.com/google/uuid"
)

type Business struct {
	ID     uint      `gorm:"primaryKey" json:"id"`
	UUID   uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:uk_businesses_uuid" json:"uuid"`
	UserID uint      `gorm:"not null;uniqueIndex:uk_businesses_user_id" json:"user_id"`
	User   User      `gorm:"foreignKey:UserID;references:ID" json:"user,omitempty"`

	BusinessName string  `gorm:"size:255;not null;index:idx_businesses_name" json:"business_name"`
	Industry     string  `gorm:"size:100;not null;index:idx_businesses_industry" json:"industry"`
	Description  *string `gorm:"type:text" json:"description,omitempty"`
	Website      *string `gorm:"size:255" json:"website,omitempty"`
	Address      *string `gorm:"size:255" json:"address,omitempty"`
	Phone        *string `gorm:"size:20" json:"phone,omitempty"`

	// Payment account state. StripeAccountID is assigned once at signup;
	// IsOnboardingCompleted tracks the provider's onboarding gates, written
	// by the account.updated webhook and the on-demand profile refresh.
	StripeAccountID       *string `gorm:"size:255;uniqueIndex:uk_businesses_stripe_account_id" json:"stripe_account_id,omitempty"`
	IsOnboardingCompleted *bool   `gorm:"default:false;index:idx_businesses_onboarding" json:"is_onboarding_completed"`

	CreatedAt time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"created_at"`
	UpdatedAt time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"updated_at"`

	// Relations
	Deals []Deal `gorm:"foreignKey:BusinessID" json:"deals,omitempty"`
}

func (Business) TableName() string {
	return "businesses"
}

// BusinessFilter represents filter criteria for business queries
type BusinessFilter struct {
	ID                    *uint
	UUID                  *uuid.UUID
	UserID                *uint
	BusinessName          *string
	Industry              *string
	StripeAccountID       *string
	IsOnboardingCompleted *bool
	CreatedAfter          *time.Time
	CreatedBefore         *time.Time
}

// CanCreateDeals reports whether the business satisfies the payout
// preconditions for publishing deals.
func (b *Business) CanCreateDeals() bool {
	return b.HasStripeAccount() && b.IsOnboarded()
}

func (b *Business) HasStripeAccount() bool {
	return b.StripeAccountID != nil && *b.StripeAccountID != ""
}

func (b *Business) IsOnboarded() bool {
	return b.IsOnboardingCompleted != nil && *b.IsOnboardingCompleted
}
