// Package models contains domain entities and business models for the referral marketplace
package models

import (
	"time"

	"github.com/google/uuid"
)

type Deal struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	UUID       uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:uk_deals_uuid" json:"uuid"`
	BusinessID uint      `gorm:"not null;index:idx_deals_business_id;uniqueIndex:uk_deals_business_commission,where:is_active AND reward_type = 'commission'" json:"business_id"`
	Business   Business  `gorm:"foreignKey:BusinessID;references:ID" json:"business,omitempty"`

	DealName        string `gorm:"size:255;not null" json:"deal_name"`
	DealDescription string `gorm:"type:text;not null" json:"deal_description"`

	// RewardType commission requires CommissionPct in (0, 100];
	// no_reward requires it absent. A business may run at most one
	// active commission deal per percentage; the partial unique index
	// enforces that under concurrency.
	RewardType    string   `gorm:"size:20;not null;index:idx_deals_reward_type" json:"reward_type"`
	CommissionPct *float64 `gorm:"type:numeric(5,2);uniqueIndex:uk_deals_business_commission,where:is_active AND reward_type = 'commission'" json:"commission_pct,omitempty"`

	CustomerIncentive *string `gorm:"type:text" json:"customer_incentive,omitempty"`
	PosterText        *string `gorm:"type:text" json:"poster_text,omitempty"`

	IsActive *bool `gorm:"default:true;index:idx_deals_is_active" json:"is_active"`

	CreatedAt time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC');index:idx_deals_created_at" json:"created_at"`
	UpdatedAt time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"updated_at"`

	// Relations
	Subscriptions []Subscription `gorm:"foreignKey:DealID" json:"-"`
}

func (Deal) TableName() string {
	return "deals"
}

// Reward type constants
const (
	RewardTypeCommission = "commission"
	RewardTypeNoReward   = "no_reward"
)

// DealFilter represents filter criteria for deal queries
type DealFilter struct {
	ID            *uint
	UUID          *uuid.UUID
	BusinessID    *uint
	DealName      *string
	RewardType    *string
	Industry      *string
	Search        *string // matches deal name, description and business name
	IsActive      *bool
	CreatedAfter  *time.Time
	CreatedBefore *time.Time
}

func (d *Deal) IsCommission() bool {
	return d.RewardType == RewardTypeCommission
}

// CommissionRate returns the commission percentage, zero for no_reward deals.
func (d *Deal) CommissionRate() float64 {
	if d.CommissionPct == nil {
		return 0
	}
	return *d.CommissionPct
}
