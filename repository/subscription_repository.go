// Package repository provides data access layer implementations and interfaces for database operations
package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/Hassan-Shakoor/DealShark-BE/models"
	"gorm.io/gorm"
)

// SubscriptionRepositoryImpl implements SubscriptionRepository interface
type SubscriptionRepositoryImpl struct {
	*BaseRepository[models.Subscription, models.SubscriptionFilter]
}

// NewSubscriptionRepository creates a new subscription repository
func NewSubscriptionRepository(db *gorm.DB) SubscriptionRepository {
	return &SubscriptionRepositoryImpl{
		BaseRepository: NewBaseRepository[models.Subscription, models.SubscriptionFilter](db),
	}
}

// ByDealAndReferrer retrieves the subscription of a referrer on a deal
func (r *SubscriptionRepositoryImpl) ByDealAndReferrer(ctx context.Context, dealID, referrerUserID uint) (*models.Subscription, error) {
	db := r.getDB(ctx)

	var sub models.Subscription
	err := db.Where("deal_id = ? AND referrer_user_id = ?", dealID, referrerUserID).
		Preload("Deal").
		First(&sub).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find subscription by deal and referrer: %w", err)
	}

	return &sub, nil
}

// ByReferralCode retrieves a subscription by referral code with the deal,
// its business and the referrer preloaded
func (r *SubscriptionRepositoryImpl) ByReferralCode(ctx context.Context, code string) (*models.Subscription, error) {
	db := r.getDB(ctx)

	var sub models.Subscription
	err := db.Where("referral_code = ?", code).
		Preload("Deal").
		Preload("Deal.Business").
		Preload("Referrer").
		First(&sub).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find subscription by referral code: %w", err)
	}

	return &sub, nil
}

// ListByReferrer retrieves all subscriptions of a referrer
func (r *SubscriptionRepositoryImpl) ListByReferrer(ctx context.Context, referrerUserID uint) ([]*models.Subscription, error) {
	db := r.getDB(ctx)

	var subs []*models.Subscription
	err := db.Where("referrer_user_id = ?", referrerUserID).
		Order("created_at DESC").
		Preload("Deal").
		Preload("Deal.Business").
		Find(&subs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list subscriptions by referrer: %w", err)
	}

	return subs, nil
}

// ListByDeal retrieves all subscriptions on a deal
func (r *SubscriptionRepositoryImpl) ListByDeal(ctx context.Context, dealID uint) ([]*models.Subscription, error) {
	db := r.getDB(ctx)

	var subs []*models.Subscription
	err := db.Where("deal_id = ?", dealID).
		Order("created_at DESC").
		Preload("Referrer").
		Find(&subs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list subscriptions by deal: %w", err)
	}

	return subs, nil
}

// Delete removes a subscription outright. Unsubscribe is a real delete;
// settlement history keeps its own copy of the referral attribution.
func (r *SubscriptionRepositoryImpl) Delete(ctx context.Context, subscriptionID uint) error {
	db := r.getDB(ctx)

	err := db.Delete(&models.Subscription{}, subscriptionID).Error
	if err != nil {
		return fmt.Errorf("failed to delete subscription: %w", err)
	}

	return nil
}

// applyFilter applies filter criteria to a GORM query
func (r *SubscriptionRepositoryImpl) applyFilter(query *gorm.DB, filter models.SubscriptionFilter) *gorm.DB {
	if filter.ID != nil {
		query = query.Where("id = ?", *filter.ID)
	}

	if filter.UUID != nil {
		query = query.Where("uuid = ?", *filter.UUID)
	}

	if filter.DealID != nil {
		query = query.Where("deal_id = ?", *filter.DealID)
	}

	if filter.ReferrerUserID != nil {
		query = query.Where("referrer_user_id = ?", *filter.ReferrerUserID)
	}

	if filter.ReferralCode != nil {
		query = query.Where("referral_code = ?", *filter.ReferralCode)
	}

	if filter.CreatedAfter != nil {
		query = query.Where("created_at > ?", *filter.CreatedAfter)
	}

	if filter.CreatedBefore != nil {
		query = query.Where("created_at < ?", *filter.CreatedBefore)
	}

	return query
}

// ByFilter retrieves subscriptions based on filter criteria
func (r *SubscriptionRepositoryImpl) ByFilter(ctx context.Context, filter models.SubscriptionFilter, orderBy string, limit, offset int) ([]*models.Subscription, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.Subscription{}), filter)

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

	var subs []*models.Subscription
	err := query.Find(&subs).Error
	if err != nil {
		return nil, err
	}

	return subs, nil
}

// Count returns the number of subscriptions matching the filter
func (r *SubscriptionRepositoryImpl) Count(ctx context.Context, filter models.SubscriptionFilter) (int64, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.Subscription{}), filter)

	var count int64
	err := query.Count(&count).Error
	if err != nil {
		return 0, err
	}

	return count, nil
}

// Exists checks if any subscription matching the filter exists
func (r *SubscriptionRepositoryImpl) Exists(ctx context.Context, filter models.SubscriptionFilter) (bool, error) {
	count, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}

	return count > 0, nil
}
