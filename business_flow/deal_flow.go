// Package businessflow contains the core business logic and use cases for deal catalog workflows
package businessflow

import (
	"context"
	"fmt"
	"strings"

	"github.com/Hassan-Shakoor/DealShark-BE/app/dto"
	"github.com/Hassan-Shakoor/DealShark-BE/models"
	"github.com/Hassan-Shakoor/DealShark-BE/repository"
	"github.com/Hassan-Shakoor/DealShark-BE/utils"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// DealFlow handles the deal catalog business logic
type DealFlow interface {
	CreateDeal(ctx context.Context, userID uint, req *dto.CreateDealRequest, metadata *ClientMetadata) (*dto.DealDTO, error)
	ListDeals(ctx context.Context, req *dto.ListDealsRequest) (*dto.ListDealsResponse, error)
	GetDeal(ctx context.Context, dealID uint) (*dto.DealDTO, error)
	MyDeals(ctx context.Context, userID uint) (*dto.ListDealsResponse, error)
	DeleteDeal(ctx context.Context, userID, dealID uint, metadata *ClientMetadata) error
}

// DealFlowImpl implements the deal catalog flow
type DealFlowImpl struct {
	userRepo     repository.UserRepository
	businessRepo repository.BusinessRepository
	dealRepo     repository.DealRepository
	auditRepo    repository.AuditLogRepository
	db           *gorm.DB
}

// NewDealFlow creates a new deal flow instance
func NewDealFlow(
	userRepo repository.UserRepository,
	businessRepo repository.BusinessRepository,
	dealRepo repository.DealRepository,
	auditRepo repository.AuditLogRepository,
	db *gorm.DB,
) DealFlow {
	return &DealFlowImpl{
		userRepo:     userRepo,
		businessRepo: businessRepo,
		dealRepo:     dealRepo,
		auditRepo:    auditRepo,
		db:           db,
	}
}

// CreateDeal publishes a new deal for an onboarded business. At most one
// active commission deal per (business, percentage); the partial unique
// index is the final arbiter under concurrency.
func (f *DealFlowImpl) CreateDeal(ctx context.Context, userID uint, req *dto.CreateDealRequest, metadata *ClientMetadata) (*dto.DealDTO, error) {
	if err := validateRewardFields(req); err != nil {
		return nil, NewBusinessError("DEAL_VALIDATION_FAILED", "Deal validation failed", err)
	}

	var deal *models.Deal

	err := repository.WithTransaction(ctx, f.db, func(txCtx context.Context) error {
		business, err := f.findOnboardedBusiness(txCtx, userID)
		if err != nil {
			return err
		}

		dealName := strings.TrimSpace(req.DealName)

		// Cheap pre-check; the unique index still decides races.
		if req.RewardType == models.RewardTypeCommission {
			exists, err := f.dealRepo.ActiveCommissionDealExists(txCtx, business.ID, *req.CommissionPct)
			if err != nil {
				return err
			}
			if exists {
				return ErrDuplicateCommissionPct
			}
		}

		deal = &models.Deal{
			UUID:              uuid.New(),
			BusinessID:        business.ID,
			DealName:          dealName,
			DealDescription:   req.DealDescription,
			RewardType:        req.RewardType,
			CommissionPct:     req.CommissionPct,
			CustomerIncentive: req.CustomerIncentive,
			PosterText:        req.PosterText,
			IsActive:          utils.ToPtr(true),
		}

		if err := f.dealRepo.Save(txCtx, deal); err != nil {
			if repository.IsUniqueViolation(err) {
				return ErrDuplicateCommissionPct
			}
			return err
		}

		deal.Business = *business
		return nil
	})

	if err != nil {
		errMsg := fmt.Sprintf("Deal creation failed: %s", err.Error())
		_ = f.createAuditLog(ctx, &userID, models.AuditActionDealCreated, errMsg, false, &errMsg, metadata)

		return nil, NewBusinessError("DEAL_CREATION_FAILED", "Deal creation failed", err)
	}

	msg := fmt.Sprintf("Deal created: %d", deal.ID)
	_ = f.createAuditLog(ctx, &userID, models.AuditActionDealCreated, msg, true, nil, metadata)

	d := ToDealDTO(*deal)
	return &d, nil
}

// ListDeals returns the public paginated deal catalog
func (f *DealFlowImpl) ListDeals(ctx context.Context, req *dto.ListDealsRequest) (*dto.ListDealsResponse, error) {
	page := req.Page
	if page == 0 {
		page = 1
	}
	pageSize := req.PageSize
	if pageSize == 0 {
		pageSize = utils.DefaultPageSize
	}
	if page < 1 {
		return nil, NewBusinessError("DEAL_LIST_VALIDATION_FAILED", "Deal listing validation failed", ErrInvalidPage)
	}
	if pageSize < 1 || pageSize > utils.MaxPageSize {
		return nil, NewBusinessError("DEAL_LIST_VALIDATION_FAILED", "Deal listing validation failed", ErrInvalidPageSize)
	}

	filter := models.DealFilter{
		IsActive: utils.ToPtr(true),
	}
	if s := strings.TrimSpace(req.Search); s != "" {
		filter.Search = &s
	}
	if req.RewardType != "" {
		filter.RewardType = &req.RewardType
	}
	if req.Industry != "" {
		filter.Industry = &req.Industry
	}

	deals, total, err := f.dealRepo.Search(ctx, filter, pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, NewBusinessError("DEAL_LIST_FAILED", "Failed to list deals", err)
	}

	dealDTOs := make([]dto.DealDTO, 0, len(deals))
	for _, deal := range deals {
		dealDTOs = append(dealDTOs, ToDealDTO(*deal))
	}

	return &dto.ListDealsResponse{
		Deals: dealDTOs,
		Pagination: dto.Pagination{
			Page:     page,
			PageSize: pageSize,
			Total:    total,
		},
	}, nil
}

// GetDeal returns a single deal with its business attached
func (f *DealFlowImpl) GetDeal(ctx context.Context, dealID uint) (*dto.DealDTO, error) {
	deal, err := f.dealRepo.ByIDWithBusiness(ctx, dealID)
	if err != nil {
		return nil, NewBusinessError("GET_DEAL_FAILED", "Failed to load deal", err)
	}
	if deal == nil || !utils.IsTrue(deal.IsActive) {
		return nil, NewBusinessError("GET_DEAL_FAILED", "Failed to load deal", ErrDealNotFound)
	}

	d := ToDealDTO(*deal)
	return &d, nil
}

// MyDeals returns every deal of the authenticated business, active or not
func (f *DealFlowImpl) MyDeals(ctx context.Context, userID uint) (*dto.ListDealsResponse, error) {
	business, err := f.findOwnBusiness(ctx, userID)
	if err != nil {
		return nil, NewBusinessError("GET_DEALS_FAILED", "Failed to load deals", err)
	}

	deals, err := f.dealRepo.ListByBusiness(ctx, business.ID, false)
	if err != nil {
		return nil, NewBusinessError("GET_DEALS_FAILED", "Failed to load deals", err)
	}

	dealDTOs := make([]dto.DealDTO, 0, len(deals))
	for _, deal := range deals {
		dealDTOs = append(dealDTOs, ToDealDTO(*deal))
	}

	return &dto.ListDealsResponse{
		Deals: dealDTOs,
		Pagination: dto.Pagination{
			Page:     1,
			PageSize: len(dealDTOs),
			Total:    int64(len(dealDTOs)),
		},
	}, nil
}

// DeleteDeal deactivates a deal. Rows are never removed so settlements keep
// their history; deactivation also frees the commission percentage slot.
func (f *DealFlowImpl) DeleteDeal(ctx context.Context, userID, dealID uint, metadata *ClientMetadata) error {
	err := repository.WithTransaction(ctx, f.db, func(txCtx context.Context) error {
		business, err := f.findOwnBusiness(txCtx, userID)
		if err != nil {
			return err
		}

		deal, err := f.dealRepo.ByID(txCtx, dealID)
		if err != nil {
			return err
		}
		if deal == nil || !utils.IsTrue(deal.IsActive) {
			return ErrDealNotFound
		}
		if deal.BusinessID != business.ID {
			return ErrDealAccessDenied
		}

		return f.dealRepo.Deactivate(txCtx, deal.ID)
	})

	if err != nil {
		errMsg := fmt.Sprintf("Deal deactivation failed: %s", err.Error())
		_ = f.createAuditLog(ctx, &userID, models.AuditActionDealDeactivated, errMsg, false, &errMsg, metadata)

		return NewBusinessError("DEAL_DELETE_FAILED", "Deal deletion failed", err)
	}

	msg := fmt.Sprintf("Deal deactivated: %d", dealID)
	_ = f.createAuditLog(ctx, &userID, models.AuditActionDealDeactivated, msg, true, nil, metadata)

	return nil
}

// Private helper methods

// validateRewardFields enforces the conditional commission rules: commission
// deals carry a percentage in (0, 100], no-reward deals carry none.
func validateRewardFields(req *dto.CreateDealRequest) error {
	switch req.RewardType {
	case models.RewardTypeCommission:
		if req.CommissionPct == nil {
			return ErrCommissionPctRequired
		}
		if *req.CommissionPct <= 0 || *req.CommissionPct > 100 {
			return ErrCommissionPctOutOfRange
		}
	case models.RewardTypeNoReward:
		if req.CommissionPct != nil {
			return ErrCommissionPctForbidden
		}
	default:
		return ErrInvalidRewardType
	}

	return nil
}

func (f *DealFlowImpl) findOwnBusiness(ctx context.Context, userID uint) (*models.Business, error) {
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

// findOnboardedBusiness additionally enforces the payout preconditions for
// publishing deals.
func (f *DealFlowImpl) findOnboardedBusiness(ctx context.Context, userID uint) (*models.Business, error) {
	business, err := f.findOwnBusiness(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !business.HasStripeAccount() {
		return nil, ErrNoStripeAccount
	}
	if !business.IsOnboarded() {
		return nil, ErrOnboardingIncomplete
	}

	return business, nil
}

func (f *DealFlowImpl) createAuditLog(ctx context.Context, userID *uint, action, description string, success bool, errorMsg *string, metadata *ClientMetadata) error {
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
