// Package businessflow contains the core business logic and use cases for business profile workflows
package businessflow

import (
	"context"
	"fmt"

	"github.com/Hassan-Shakoor/DealShark-BE/app/dto"
	"github.com/Hassan-Shakoor/DealShark-BE/app/services"
	"github.com/Hassan-Shakoor/DealShark-BE/models"
	"github.com/Hassan-Shakoor/DealShark-BE/repository"
	"github.com/Hassan-Shakoor/DealShark-BE/utils"
	"gorm.io/gorm"
)

// BusinessProfileFlow handles business profile management and payment onboarding
type BusinessProfileFlow interface {
	GetMyBusiness(ctx context.Context, userID uint) (*dto.BusinessDTO, error)
	UpdateMyBusiness(ctx context.Context, userID uint, req *dto.UpdateBusinessRequest, metadata *ClientMetadata) (*dto.BusinessDTO, error)
	GetPublicBusiness(ctx context.Context, businessID uint) (*dto.PublicBusinessResponse, error)
	CreateOnboardingLink(ctx context.Context, userID uint, metadata *ClientMetadata) (*dto.OnboardingLinkResponse, error)
}

// OnboardingURLs are the hosted onboarding redirect targets
type OnboardingURLs struct {
	RefreshURL string
	ReturnURL  string
}

// BusinessProfileFlowImpl implements the business profile flow
type BusinessProfileFlowImpl struct {
	userRepo       repository.UserRepository
	businessRepo   repository.BusinessRepository
	dealRepo       repository.DealRepository
	auditRepo      repository.AuditLogRepository
	paymentGateway services.PaymentGateway
	onboardingURLs OnboardingURLs
	db             *gorm.DB
}

// NewBusinessProfileFlow creates a new business profile flow instance
func NewBusinessProfileFlow(
	userRepo repository.UserRepository,
	businessRepo repository.BusinessRepository,
	dealRepo repository.DealRepository,
	auditRepo repository.AuditLogRepository,
	paymentGateway services.PaymentGateway,
	onboardingURLs OnboardingURLs,
	db *gorm.DB,
) BusinessProfileFlow {
	return &BusinessProfileFlowImpl{
		userRepo:       userRepo,
		businessRepo:   businessRepo,
		dealRepo:       dealRepo,
		auditRepo:      auditRepo,
		paymentGateway: paymentGateway,
		onboardingURLs: onboardingURLs,
		db:             db,
	}
}

// GetMyBusiness returns the authenticated user's business profile. When a
// connected account exists, the onboarding flag is refreshed against the
// provider so the profile does not stay stale between webhooks.
func (f *BusinessProfileFlowImpl) GetMyBusiness(ctx context.Context, userID uint) (*dto.BusinessDTO, error) {
	business, err := f.findOwnBusiness(ctx, userID)
	if err != nil {
		return nil, NewBusinessError("GET_BUSINESS_FAILED", "Failed to load business profile", err)
	}

	f.refreshOnboardingStatus(ctx, business)

	d := ToBusinessDTO(*business)
	return &d, nil
}

// refreshOnboardingStatus re-reads the connected account's gates from the
// provider and reconciles the local flag. The flag only ever reflects
// provider-reported state; a provider error leaves it untouched.
func (f *BusinessProfileFlowImpl) refreshOnboardingStatus(ctx context.Context, business *models.Business) {
	if !business.HasStripeAccount() {
		return
	}

	status, err := f.paymentGateway.GetAccountStatus(ctx, *business.StripeAccountID)
	if err != nil {
		return
	}

	completed := status.Completed()
	if business.IsOnboarded() == completed {
		return
	}

	if err := f.businessRepo.SetOnboardingStatus(ctx, business.ID, completed); err != nil {
		return
	}
	business.IsOnboardingCompleted = utils.ToPtr(completed)
}

// UpdateMyBusiness updates the descriptive fields of a business profile.
// Payment account state is never touched here; onboarding completion is
// owned by the account.updated webhook.
func (f *BusinessProfileFlowImpl) UpdateMyBusiness(ctx context.Context, userID uint, req *dto.UpdateBusinessRequest, metadata *ClientMetadata) (*dto.BusinessDTO, error) {
	var business *models.Business

	err := repository.WithTransaction(ctx, f.db, func(txCtx context.Context) error {
		var err error
		business, err = f.findOwnBusiness(txCtx, userID)
		if err != nil {
			return err
		}

		fields := map[string]any{}
		if req.BusinessName != nil {
			fields["business_name"] = *req.BusinessName
		}
		if req.Industry != nil {
			fields["industry"] = *req.Industry
		}
		if req.Description != nil {
			fields["description"] = *req.Description
		}
		if req.Website != nil {
			fields["website"] = *req.Website
		}
		if req.Address != nil {
			fields["address"] = *req.Address
		}
		if req.Phone != nil {
			fields["phone"] = *req.Phone
		}

		if len(fields) > 0 {
			if err := f.businessRepo.UpdateProfile(txCtx, business.ID, fields); err != nil {
				return err
			}
		}

		business, err = f.businessRepo.ByID(txCtx, business.ID)
		return err
	})

	if err != nil {
		errMsg := fmt.Sprintf("Business update failed: %s", err.Error())
		_ = f.createAuditLog(ctx, &userID, models.AuditActionBusinessUpdated, errMsg, false, &errMsg, metadata)

		return nil, NewBusinessError("UPDATE_BUSINESS_FAILED", "Failed to update business profile", err)
	}

	msg := fmt.Sprintf("Business profile updated: %d", business.ID)
	_ = f.createAuditLog(ctx, &userID, models.AuditActionBusinessUpdated, msg, true, nil, metadata)

	d := ToBusinessDTO(*business)
	return &d, nil
}

// GetPublicBusiness returns a business page with its active deals
func (f *BusinessProfileFlowImpl) GetPublicBusiness(ctx context.Context, businessID uint) (*dto.PublicBusinessResponse, error) {
	business, err := f.businessRepo.ByID(ctx, businessID)
	if err != nil {
		return nil, NewBusinessError("GET_BUSINESS_FAILED", "Failed to load business", err)
	}
	if business == nil {
		return nil, NewBusinessError("GET_BUSINESS_FAILED", "Failed to load business", ErrBusinessNotFound)
	}

	deals, err := f.dealRepo.ListByBusiness(ctx, business.ID, true)
	if err != nil {
		return nil, NewBusinessError("GET_BUSINESS_FAILED", "Failed to load business deals", err)
	}

	dealDTOs := make([]dto.DealDTO, 0, len(deals))
	for _, deal := range deals {
		dealDTOs = append(dealDTOs, ToDealDTO(*deal))
	}

	return &dto.PublicBusinessResponse{
		Business: ToBusinessDTO(*business),
		Deals:    dealDTOs,
	}, nil
}

// CreateOnboardingLink creates a fresh hosted onboarding link for the
// business's connected payment account. Links are single-use and expire,
// so one is minted per request.
func (f *BusinessProfileFlowImpl) CreateOnboardingLink(ctx context.Context, userID uint, metadata *ClientMetadata) (*dto.OnboardingLinkResponse, error) {
	business, err := f.findOwnBusiness(ctx, userID)
	if err != nil {
		return nil, NewBusinessError("ONBOARDING_LINK_FAILED", "Failed to create onboarding link", err)
	}

	if !business.HasStripeAccount() {
		return nil, NewBusinessError("ONBOARDING_LINK_FAILED", "Failed to create onboarding link", ErrNoStripeAccount)
	}

	url, err := f.paymentGateway.CreateAccountLink(ctx, *business.StripeAccountID, f.onboardingURLs.RefreshURL, f.onboardingURLs.ReturnURL)
	if err != nil {
		errMsg := fmt.Sprintf("Onboarding link creation failed: %s", err.Error())
		_ = f.createAuditLog(ctx, &userID, models.AuditActionOnboardingLinked, errMsg, false, &errMsg, metadata)

		return nil, NewBusinessError("ONBOARDING_LINK_FAILED", "Failed to create onboarding link", ErrUpstreamGateway)
	}

	msg := fmt.Sprintf("Onboarding link created for business: %d", business.ID)
	_ = f.createAuditLog(ctx, &userID, models.AuditActionOnboardingLinked, msg, true, nil, metadata)

	return &dto.OnboardingLinkResponse{OnboardingURL: url}, nil
}

// Private helper methods

func (f *BusinessProfileFlowImpl) findOwnBusiness(ctx context.Context, userID uint) (*models.Business, error) {
	user, err := f.userRepo.ByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	if !user.IsBusiness() {
		return nil, ErrNotBusinessAccount
	}

	business, err := f.businessRepo.ByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if business == nil {
		return nil, ErrBusinessNotFound
	}

	return business, nil
}

func (f *BusinessProfileFlowImpl) createAuditLog(ctx context.Context, userID *uint, action, description string, success bool, errorMsg *string, metadata *ClientMetadata) error {
	ipAddress := "127.0.0.1"
	userAgent := ""
	if metadata != nil {
		ipAddress = metadata.IPAddress
		userAgent = metadata.UserAgent
	}

	audit := &models.AuditLog{
		UserID:       userID,
		Action:       action,
		Description:  &description,
		Success:      utils.ToPtr(success),
		IPAddress:    &ipAddress,
		UserAgent:    &userAgent,
		ErrorMessage: errorMsg,
	}

	requestID := ctx.Value(RequestIDKey)
	if requestID != nil {
		requestIDStr, ok := requestID.(string)
		if ok {
			audit.RequestID = &requestIDStr
		}
	}

	return f.auditRepo.Save(ctx, audit)
}
