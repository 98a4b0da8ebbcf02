// Package dto contains Data Transfer Objects for API request and response structures
package dto

// SubscribeRequest represents a referrer subscribing to a deal
type SubscribeRequest struct {
	DealID uint `json:"deal_id" validate:"required,min=1"`
}

// SubscriptionDTO represents subscription data for API responses
type SubscriptionDTO struct {
	ID           uint     `json:"id"`
	DealID       uint     `json:"deal_id"`
	Deal         *DealDTO `json:"deal,omitempty"`
	ReferralCode string   `json:"referral_code"`
	ReferralLink string   `json:"referral_link"`
	CreatedAt    string   `json:"created_at"`
}

// SubscribeResponse represents the outcome of a subscribe call.
// AlreadySubscribed is true when the referrer already had an active
// subscription and the existing code was returned.
type SubscribeResponse struct {
	Subscription      SubscriptionDTO `json:"subscription"`
	AlreadySubscribed bool            `json:"already_subscribed"`
}

// ResolveReferralResponse represents the public landing payload for a referral code
type ResolveReferralResponse struct {
	ReferralCode string      `json:"referral_code"`
	Deal         DealDTO     `json:"deal"`
	Business     BusinessDTO `json:"business"`
	ReferrerName string      `json:"referrer_name"`
}

// ListSubscriptionsResponse represents the referrer's subscription list
type ListSubscriptionsResponse struct {
	Subscriptions []SubscriptionDTO `json:"subscriptions"`
}
