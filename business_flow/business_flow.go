// Package businessflow contains the business logic for the application.
package businessflow

import (
	"strings"
	"time"

	"github.com/Hassan-Shakoor/DealShark-BE/app/dto"
	"github.com/Hassan-Shakoor/DealShark-BE/models"
)

const RequestIDKey = "X-Request-ID"

// ClientMetadata holds all client-related information for audit logging and session tracking
type ClientMetadata struct {
	IPAddress  string            `json:"ip_address"`
	UserAgent  string            `json:"user_agent"`
	RequestID  string            `json:"request_id,omitempty"`
	SessionID  string            `json:"session_id,omitempty"`
	Additional map[string]string `json:"additional,omitempty"`
}

// NewClientMetadata creates a new ClientMetadata instance with basic information
func NewClientMetadata(ipAddress, userAgent string) *ClientMetadata {
	return &ClientMetadata{
		IPAddress:  ipAddress,
		UserAgent:  userAgent,
		Additional: make(map[string]string),
	}
}

// AddAdditional adds additional custom information to the metadata
func (cm *ClientMetadata) AddAdditional(key, value string) {
	if cm.Additional == nil {
		cm.Additional = make(map[string]string)
	}
	cm.Additional[key] = value
}

// SetRequestID sets the request ID
func (cm *ClientMetadata) SetRequestID(requestID string) {
	cm.RequestID = requestID
}

// SetSessionID sets the session ID
func (cm *ClientMetadata) SetSessionID(sessionID string) {
	cm.SessionID = sessionID
}

// ToUserDTO converts a user model to UserDTO for API responses
func ToUserDTO(user models.User) dto.UserDTO {
	d := dto.UserDTO{
		ID:              user.ID,
		UUID:            user.UUID.String(),
		FirstName:       user.FirstName,
		LastName:        user.LastName,
		Email:           user.Email,
		Phone:           user.Phone,
		Role:            user.Role,
		IsEmailVerified: user.IsEmailVerified,
		IsActive:        user.IsActive,
		CreatedAt:       user.CreatedAt.Format(time.RFC3339),
	}

	if user.Business != nil {
		b := ToBusinessDTO(*user.Business)
		d.Business = &b
	}

	return d
}

// ToBusinessDTO converts a business model to BusinessDTO for API responses
func ToBusinessDTO(business models.Business) dto.BusinessDTO {
	return dto.BusinessDTO{
		ID:                    business.ID,
		UUID:                  business.UUID.String(),
		BusinessName:          business.BusinessName,
		Industry:              business.Industry,
		Description:           business.Description,
		Website:               business.Website,
		Address:               business.Address,
		Phone:                 business.Phone,
		IsOnboardingCompleted: business.IsOnboardingCompleted,
		CreatedAt:             business.CreatedAt.Format(time.RFC3339),
	}
}

// ToDealDTO converts a deal model to DealDTO for API responses.
// Business fields are filled when the relation is preloaded.
func ToDealDTO(deal models.Deal) dto.DealDTO {
	d := dto.DealDTO{
		ID:                deal.ID,
		UUID:              deal.UUID.String(),
		BusinessID:        deal.BusinessID,
		DealName:          deal.DealName,
		DealDescription:   deal.DealDescription,
		RewardType:        deal.RewardType,
		CommissionPct:     deal.CommissionPct,
		CustomerIncentive: deal.CustomerIncentive,
		PosterText:        deal.PosterText,
		IsActive:          deal.IsActive,
		CreatedAt:         deal.CreatedAt.Format(time.RFC3339),
	}

	if deal.Business.ID != 0 {
		d.BusinessName = deal.Business.BusinessName
		d.Industry = deal.Business.Industry
	}

	return d
}

// ToSubscriptionDTO converts a subscription model to SubscriptionDTO
func ToSubscriptionDTO(sub models.Subscription) dto.SubscriptionDTO {
	d := dto.SubscriptionDTO{
		ID:           sub.ID,
		DealID:       sub.DealID,
		ReferralCode: sub.ReferralCode,
		ReferralLink: sub.ReferralLink,
		CreatedAt:    sub.CreatedAt.Format(time.RFC3339),
	}

	if sub.Deal.ID != 0 {
		deal := ToDealDTO(sub.Deal)
		d.Deal = &deal
	}

	return d
}

// ToSettlementDTO converts a settlement model to SettlementDTO
func ToSettlementDTO(settlement models.Settlement) dto.SettlementDTO {
	d := dto.SettlementDTO{
		ID:                     settlement.ID,
		ReferralCode:           settlement.ReferralCode,
		GrossAmount:            settlement.GrossAmount,
		Currency:               settlement.Currency,
		CommissionPct:          settlement.CommissionPct,
		ReferrerCut:            settlement.ReferrerCut,
		BusinessCut:            settlement.BusinessCut,
		ReferrerTransferStatus: settlement.ReferrerTransferStatus,
		BusinessTransferStatus: settlement.BusinessTransferStatus,
		CreatedAt:              settlement.CreatedAt.Format(time.RFC3339),
	}

	if settlement.Deal.ID != 0 {
		d.DealName = settlement.Deal.DealName
	}

	return d
}

func ToSessionDTO(session models.UserSession) dto.SessionDTO {
	return dto.SessionDTO{
		SessionToken: session.SessionToken,
		RefreshToken: session.RefreshToken,
		ExpiresIn:    int(time.Until(session.ExpiresAt).Seconds()),
		TokenType:    "Bearer",
		CreatedAt:    session.CreatedAt.Format(time.RFC3339),
	}
}

// MaskEmail hides most of the local part of an email address.
// Show j****e@example.com format.
func MaskEmail(email string) string {
	at := strings.Index(email, "@")
	if at <= 2 {
		return email
	}
	return email[:1] + "****" + email[at-1:]
}
