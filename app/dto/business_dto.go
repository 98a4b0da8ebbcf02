// Package dto contains Data Transfer Objects for API request and response structures
package dto

// BusinessDTO represents business data for API responses
type BusinessDTO struct {
	ID                    uint    `json:"id"`
	UUID                  string  `json:"uuid"`
	BusinessName          string  `json:"business_name"`
	Industry              string  `json:"industry"`
	Description           *string `json:"description,omitempty"`
	Website               *string `json:"website,omitempty"`
	Address               *string `json:"address,omitempty"`
	Phone                 *string `json:"phone,omitempty"`
	IsOnboardingCompleted *bool   `json:"is_onboarding_completed"`
	CreatedAt             string  `json:"created_at"`
}

// UpdateBusinessRequest represents a business profile update. Only
// descriptive fields are mutable; payment account state never changes here.
type UpdateBusinessRequest struct {
	BusinessName *string `json:"business_name,omitempty" validate:"omitempty,min=1,max=255"`
	Industry     *string `json:"industry,omitempty" validate:"omitempty,min=1,max=100"`
	Description  *string `json:"description,omitempty" validate:"omitempty,max=2000"`
	Website      *string `json:"website,omitempty" validate:"omitempty,url,max=255"`
	Address      *string `json:"address,omitempty" validate:"omitempty,max=255"`
	Phone        *string `json:"phone,omitempty" validate:"omitempty,min=7,max=20"`
}

// OnboardingLinkResponse carries the hosted onboarding URL
type OnboardingLinkResponse struct {
	OnboardingURL string `json:"onboarding_url"`
}

// PublicBusinessResponse represents the public business page with its active deals
type PublicBusinessResponse struct {
	Business BusinessDTO `json:"business"`
	Deals    []DealDTO   `json:"deals"`
}
