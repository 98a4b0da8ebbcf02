// Package dto contains Data Transfer Objects for API request and response structures
package dto

// CreateCheckoutRequest represents a checkout session creation request
type CreateCheckoutRequest struct {
	ReferralCode string `json:"referral_code" validate:"required,len=8,alphanum"`
	AmountCents  int64  `json:"amount_cents" validate:"required,min=50"`
	Currency     string `json:"currency" validate:"omitempty,len=3,lowercase"`
}

// CreateCheckoutResponse carries the hosted checkout URL
type CreateCheckoutResponse struct {
	SessionID   string `json:"session_id"`
	CheckoutURL string `json:"checkout_url"`
}

// SettlementDTO represents one settled referral payment
type SettlementDTO struct {
	ID                     uint    `json:"id"`
	ReferralCode           string  `json:"referral_code"`
	DealName               string  `json:"deal_name,omitempty"`
	GrossAmount            int64   `json:"gross_amount"`
	Currency               string  `json:"currency"`
	CommissionPct          float64 `json:"commission_pct"`
	ReferrerCut            int64   `json:"referrer_cut"`
	BusinessCut            int64   `json:"business_cut"`
	ReferrerTransferStatus string  `json:"referrer_transfer_status"`
	BusinessTransferStatus string  `json:"business_transfer_status"`
	CreatedAt              string  `json:"created_at"`
}

// ListSettlementsResponse represents a user's settlement history
type ListSettlementsResponse struct {
	Settlements []SettlementDTO `json:"settlements"`
}

// WebhookAckResponse is returned for every accepted webhook delivery
type WebhookAckResponse struct {
	Received bool   `json:"received"`
	Status   string `json:"status,omitempty"`
}
