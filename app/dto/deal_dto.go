// Package dto contains Data Transfer Objects for API request and response structures
package dto

// CreateDealRequest represents the deal creation form data
type CreateDealRequest struct {
	DealName          string   `json:"deal_name" validate:"required,min=1,max=255"`
	DealDescription   string   `json:"deal_description" validate:"required,min=1"`
	RewardType        string   `json:"reward_type" validate:"required,reward_type"`
	CommissionPct     *float64 `json:"commission_pct,omitempty" validate:"omitempty,gt=0,lte=100"`
	CustomerIncentive *string  `json:"customer_incentive,omitempty" validate:"omitempty,max=2000"`
	PosterText        *string  `json:"poster_text,omitempty" validate:"omitempty,max=2000"`
}

// DealDTO represents deal data for API responses
type DealDTO struct {
	ID                uint     `json:"id"`
	UUID              string   `json:"uuid"`
	BusinessID        uint     `json:"business_id"`
	BusinessName      string   `json:"business_name,omitempty"`
	Industry          string   `json:"industry,omitempty"`
	DealName          string   `json:"deal_name"`
	DealDescription   string   `json:"deal_description"`
	RewardType        string   `json:"reward_type"`
	CommissionPct     *float64 `json:"commission_pct,omitempty"`
	CustomerIncentive *string  `json:"customer_incentive,omitempty"`
	PosterText        *string  `json:"poster_text,omitempty"`
	IsActive          *bool    `json:"is_active"`
	CreatedAt         string   `json:"created_at"`
}

// ListDealsRequest represents the public deal listing query
type ListDealsRequest struct {
	Search     string `query:"search" validate:"omitempty,max=255"`
	RewardType string `query:"reward_type" validate:"omitempty,reward_type"`
	Industry   string `query:"industry" validate:"omitempty,max=100"`
	Page       int    `query:"page" validate:"omitempty,min=1"`
	PageSize   int    `query:"page_size" validate:"omitempty,min=1,max=100"`
}

// ListDealsResponse represents a page of deals
type ListDealsResponse struct {
	Deals      []DealDTO  `json:"deals"`
	Pagination Pagination `json:"pagination"`
}

// DealSubscribersResponse represents the subscriber list of a deal
type DealSubscribersResponse struct {
	DealID      uint            `json:"deal_id"`
	DealName    string          `json:"deal_name"`
	Subscribers []SubscriberDTO `json:"subscribers"`
}

// SubscriberDTO represents one referrer subscribed to a deal
type SubscriberDTO struct {
	UserID       uint   `json:"user_id"`
	FullName     string `json:"full_name"`
	Email        string `json:"email"`
	ReferralCode string `json:"referral_code"`
	ReferralLink string `json:"referral_link"`
	SubscribedAt string `json:"subscribed_at"`
}
