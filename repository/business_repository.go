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

// BusinessRepositoryImpl implements BusinessRepository interface
type BusinessRepositoryImpl struct {
	*BaseRepository[models.Business, models.BusinessFilter]
}

// NewBusinessRepository creates a new business repository
func NewBusinessRepository(db *gorm.DB) BusinessRepository {
	return &BusinessRepositoryImpl{
		BaseRepository: NewBaseRepository[models.Business, models.BusinessFilter](db),
	}
}

// ByUserID retrieves the business owned by a user
func (r *BusinessRepositoryImpl) ByUserID(ctx context.Context, userID uint) (*models.Business, error) {
	db := r.getDB(ctx)

	var business models.Business
	err := db.Where("user_id = ?", userID).
		First(&business).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find business by user ID: %w", err)
	}

	return &business, nil
}

// ByStripeAccountID retrieves a business by its connected payment account ID
func (r *BusinessRepositoryImpl) ByStripeAccountID(ctx context.Context, accountID string) (*models.Business, error) {
	db := r.getDB(ctx)

	var business models.Business
	err := db.Where("stripe_account_id = ?", accountID).
		First(&business).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find business by stripe account ID: %w", err)
	}

	return &business, nil
}

// UpdateProfile updates mutable descriptive fields of a business. Payment
// account fields are never touched here.
func (r *BusinessRepositoryImpl) UpdateProfile(ctx context.Context, businessID uint, fields map[string]any) error {
	if len(fields) == 0 {
		return nil
	}

	db := r.getDB(ctx)

	fields["updated_at"] = utils.UTCNow()
	err := db.Model(&models.Business{}).
		Where("id = ?", businessID).
		Updates(fields).Error
	if err != nil {
		return fmt.Errorf("failed to update business profile: %w", err)
	}

	return nil
}

// SetOnboardingStatus flips the onboarding-completed flag
func (r *BusinessRepositoryImpl) SetOnboardingStatus(ctx context.Context, businessID uint, completed bool) error {
	db := r.getDB(ctx)

	err := db.Model(&models.Business{}).
		Where("id = ?", businessID).
		Updates(map[string]any{
			"is_onboarding_completed": completed,
			"updated_at":              utils.UTCNow(),
		}).Error
	if err != nil {
		return fmt.Errorf("failed to set onboarding status: %w", err)
	}

	return nil
}

// applyFilter applies filter criteria to a GORM query
func (r *BusinessRepositoryImpl) applyFilter(query *gorm.DB, filter models.BusinessFilter) *gorm.DB {
	if filter.ID != nil {
		query = query.Where("id = ?", *filter.ID)
	}

	if filter.UUID != nil {
		query = query.Where("uuid = ?", *filter.UUID)
	}

	if filter.UserID != nil {
		query = query.Where("user_id = ?", *filter.UserID)
	}

	if filter.BusinessName != nil {
		query = query.Where("business_name = ?", *filter.BusinessName)
	}

	if filter.Industry != nil {
		query = query.Where("industry = ?", *filter.Industry)
	}

	if filter.StripeAccountID != nil {
		query = query.Where("stripe_account_id = ?", *filter.StripeAccountID)
	}

	if filter.IsOnboardingCompleted != nil {
		query = query.Where("is_onboarding_completed = ?", *filter.IsOnboardingCompleted)
	}

	if filter.CreatedAfter != nil {
		query = query.Where("created_at > ?", *filter.CreatedAfter)
	}

	if filter.CreatedBefore != nil {
		query = query.Where("created_at < ?", *filter.CreatedBefore)
	}

	return query
}

// ByFilter retrieves businesses based on filter criteria
func (r *BusinessRepositoryImpl) ByFilter(ctx context.Context, filter models.BusinessFilter, orderBy string, limit, offset int) ([]*models.Business, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.Business{}), filter)

	if orderBy == "" {
		orderBy = "id DESC"
	}
	query = query.Order(orderBy)

	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}

	var businesses []*models.Business
	err := query.Find(&businesses).Error
	if err != nil {
		return nil, err
	}

	return businesses, nil
}

// Count returns the number of businesses matching the filter
func (r *BusinessRepositoryImpl) Count(ctx context.Context, filter models.BusinessFilter) (int64, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.Business{}), filter)

	var count int64
	err := query.Count(&count).Error
	if err != nil {
		return 0, err
	}

	return count, nil
}

// Exists checks if any business matching the filter exists
func (r *BusinessRepositoryImpl) Exists(ctx context.Context, filter models.BusinessFilter) (bool, error) {
	count, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}

	return count > 0, nil
}
