// Package repository provides data access layer implementations and interfaces for database operations
package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/Hassan-Shakoor/DealShark-BE/models"
	"github.com/Hassan-Shakoor/DealShark-BE/utils"
	"gorm.io/gorm"
)

// DealRepositoryImpl implements DealRepository interface
type DealRepositoryImpl struct {
	*BaseRepository[models.Deal, models.DealFilter]
}

// NewDealRepository creates a new deal repository
func NewDealRepository(db *gorm.DB) DealRepository {
	return &DealRepositoryImpl{
		BaseRepository: NewBaseRepository[models.Deal, models.DealFilter](db),
	}
}

// ByIDWithBusiness retrieves a deal with its business preloaded
func (r *DealRepositoryImpl) ByIDWithBusiness(ctx context.Context, id uint) (*models.Deal, error) {
	db := r.getDB(ctx)

	var deal models.Deal
	err := db.Preload("Business").
		Last(&deal, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find deal by ID %d: %w", id, err)
	}

	return &deal, nil
}

// Search retrieves active deals matching the filter with a total count. The
// free-text search matches deal name, description and business name.
func (r *DealRepositoryImpl) Search(ctx context.Context, filter models.DealFilter, limit, offset int) ([]*models.Deal, int64, error) {
	db := r.getDB(ctx)

	query := r.applyFilter(db.Model(&models.Deal{}), filter)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count deals: %w", err)
	}

	query = query.Order("deals.created_at DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}

	var deals []*models.Deal
	err := query.Preload("Business").Find(&deals).Error
	if err != nil {
		return nil, 0, fmt.Errorf("failed to search deals: %w", err)
	}

	return deals, total, nil
}

// ListByBusiness retrieves deals belonging to a business
func (r *DealRepositoryImpl) ListByBusiness(ctx context.Context, businessID uint, activeOnly bool) ([]*models.Deal, error) {
	db := r.getDB(ctx)

	query := db.Where("business_id = ?", businessID)
	if activeOnly {
		query = query.Where("is_active = ?", true)
	}

	var deals []*models.Deal
	err := query.Order("created_at DESC").Find(&deals).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list deals by business: %w", err)
	}

	return deals, nil
}

// ActiveCommissionDealExists checks for an active commission deal at the
// same percentage under the business. Callers still rely on the unique
// constraint; this is the early check that keeps the common path cheap.
func (r *DealRepositoryImpl) ActiveCommissionDealExists(ctx context.Context, businessID uint, commissionPct float64) (bool, error) {
	db := r.getDB(ctx)

	var count int64
	err := db.Model(&models.Deal{}).
		Where("business_id = ? AND reward_type = ? AND commission_pct = ? AND is_active = ?",
			businessID, models.RewardTypeCommission, commissionPct, true).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to check deal existence: %w", err)
	}

	return count > 0, nil
}

// Deactivate soft-deactivates a deal
func (r *DealRepositoryImpl) Deactivate(ctx context.Context, dealID uint) error {
	db := r.getDB(ctx)

	err := db.Model(&models.Deal{}).
		Where("id = ?", dealID).
		Updates(map[string]any{
			"is_active":  false,
			"updated_at": utils.UTCNow(),
		}).Error
	if err != nil {
		return fmt.Errorf("failed to deactivate deal: %w", err)
	}

	return nil
}

// applyFilter applies filter criteria to a GORM query
func (r *DealRepositoryImpl) applyFilter(query *gorm.DB, filter models.DealFilter) *gorm.DB {
	if filter.ID != nil {
		query = query.Where("deals.id = ?", *filter.ID)
	}

	if filter.UUID != nil {
		query = query.Where("deals.uuid = ?", *filter.UUID)
	}

	if filter.BusinessID != nil {
		query = query.Where("deals.business_id = ?", *filter.BusinessID)
	}

	if filter.DealName != nil {
		query = query.Where("deals.deal_name = ?", *filter.DealName)
	}

	if filter.RewardType != nil {
		query = query.Where("deals.reward_type = ?", *filter.RewardType)
	}

	if filter.IsActive != nil {
		query = query.Where("deals.is_active = ?", *filter.IsActive)
	}

	if filter.CreatedAfter != nil {
		query = query.Where("deals.created_at > ?", *filter.CreatedAfter)
	}

	if filter.CreatedBefore != nil {
		query = query.Where("deals.created_at < ?", *filter.CreatedBefore)
	}

	// Industry and free-text search need the owning business
	if filter.Industry != nil || filter.Search != nil {
		query = query.Joins("JOIN businesses ON businesses.id = deals.business_id")

		if filter.Industry != nil {
			query = query.Where("businesses.industry = ?", *filter.Industry)
		}

		if filter.Search != nil {
			pattern := "%" + *filter.Search + "%"
			query = query.Where(
				"deals.deal_name ILIKE ? OR deals.deal_description ILIKE ? OR businesses.business_name ILIKE ?",
				pattern, pattern, pattern)
		}
	}

	return query
}

// ByFilter retrieves deals based on filter criteria
func (r *DealRepositoryImpl) ByFilter(ctx context.Context, filter models.DealFilter, orderBy string, limit, offset int) ([]*models.Deal, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.Deal{}), filter)

	if orderBy == "" {
		orderBy = "deals.id DESC"
	}
	query = query.Order(orderBy)

	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}

	var deals []*models.Deal
	err := query.Find(&deals).Error
	if err != nil {
		return nil, err
	}

	return deals, nil
}

// Count returns the number of deals matching the filter
func (r *DealRepositoryImpl) Count(ctx context.Context, filter models.DealFilter) (int64, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.Deal{}), filter)

	var count int64
	err := query.Count(&count).Error
	if err != nil {
		return 0, err
	}

	return count, nil
}

// Exists checks if any deal matching the filter exists
func (r *DealRepositoryImpl) Exists(ctx context.Context, filter models.DealFilter) (bool, error) {
	count, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}

	return count > 0, nil
}
