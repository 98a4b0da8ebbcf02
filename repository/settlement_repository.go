// Package repository provides data access layer implementations and interfaces for database operations
package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/Hassan-Shakoor/DealShark-BE/models"
	"github.com/Hassan-Shakoor/DealShark-BE/utils"
	"gorm.io/gorm"
)

// Transfer leg identifiers for UpdateTransferLeg
const (
	TransferLegReferrer = "referrer"
	TransferLegBusiness = "business"
)

// SettlementRepositoryImpl implements SettlementRepository interface
type SettlementRepositoryImpl struct {
	*BaseRepository[models.Settlement, models.SettlementFilter]
}

// NewSettlementRepository creates a new settlement repository
func NewSettlementRepository(db *gorm.DB) SettlementRepository {
	return &SettlementRepositoryImpl{
		BaseRepository: NewBaseRepository[models.Settlement, models.SettlementFilter](db),
	}
}

// UpdateTransferLeg records the outcome of one transfer leg. Legs are
// independent; updating one never touches the other.
func (r *SettlementRepositoryImpl) UpdateTransferLeg(ctx context.Context, settlementID uint, leg string, status string, transferID, transferErr *string) error {
	db := r.getDB(ctx)

	fields := map[string]any{
		"updated_at": utils.UTCNow(),
	}
	switch leg {
	case TransferLegReferrer:
		fields["referrer_transfer_status"] = status
		fields["referrer_transfer_id"] = transferID
		fields["referrer_transfer_error"] = transferErr
	case TransferLegBusiness:
		fields["business_transfer_status"] = status
		fields["business_transfer_id"] = transferID
		fields["business_transfer_error"] = transferErr
	default:
		return fmt.Errorf("unknown transfer leg: %s", leg)
	}

	err := db.Model(&models.Settlement{}).
		Where("id = ?", settlementID).
		Updates(fields).Error
	if err != nil {
		return fmt.Errorf("failed to update transfer leg: %w", err)
	}

	return nil
}

// ListByUser retrieves settlements where the user is either the referrer or
// the owner of the deal's business
func (r *SettlementRepositoryImpl) ListByUser(ctx context.Context, userID uint, limit, offset int) ([]*models.Settlement, error) {
	db := r.getDB(ctx)

	var settlements []*models.Settlement
	err := db.Model(&models.Settlement{}).
		Joins("JOIN deals ON deals.id = settlements.deal_id").
		Joins("JOIN businesses ON businesses.id = deals.business_id").
		Where("settlements.referrer_user_id = ? OR businesses.user_id = ?", userID, userID).
		Order("settlements.created_at DESC").
		Limit(limit).
		Offset(offset).
		Preload("Deal").
		Find(&settlements).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list settlements by user: %w", err)
	}

	return settlements, nil
}

// ListUnsettledTransfers retrieves settlements with at least one transfer leg
// not yet completed, oldest first. Used by the background retry worker.
func (r *SettlementRepositoryImpl) ListUnsettledTransfers(ctx context.Context, olderThan time.Time, limit int) ([]*models.Settlement, error) {
	db := r.getDB(ctx)

	var settlements []*models.Settlement
	err := db.Model(&models.Settlement{}).
		Where("(referrer_transfer_status <> ? OR business_transfer_status <> ?) AND created_at < ?",
			models.TransferStatusCompleted, models.TransferStatusCompleted, olderThan).
		Order("created_at ASC").
		Limit(limit).
		Preload("Deal").
		Preload("Deal.Business").
		Find(&settlements).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list unsettled transfers: %w", err)
	}

	return settlements, nil
}

// applyFilter applies filter criteria to a GORM query
func (r *SettlementRepositoryImpl) applyFilter(query *gorm.DB, filter models.SettlementFilter) *gorm.DB {
	if filter.ID != nil {
		query = query.Where("id = ?", *filter.ID)
	}

	if filter.CorrelationID != nil {
		query = query.Where("correlation_id = ?", *filter.CorrelationID)
	}

	if filter.SubscriptionID != nil {
		query = query.Where("subscription_id = ?", *filter.SubscriptionID)
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

	if filter.EventID != nil {
		query = query.Where("event_id = ?", *filter.EventID)
	}

	if filter.CreatedAfter != nil {
		query = query.Where("created_at > ?", *filter.CreatedAfter)
	}

	if filter.CreatedBefore != nil {
		query = query.Where("created_at < ?", *filter.CreatedBefore)
	}

	return query
}

// ByFilter retrieves settlements based on filter criteria
func (r *SettlementRepositoryImpl) ByFilter(ctx context.Context, filter models.SettlementFilter, orderBy string, limit, offset int) ([]*models.Settlement, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.Settlement{}), filter)

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

	var settlements []*models.Settlement
	err := query.Find(&settlements).Error
	if err != nil {
		return nil, err
	}

	return settlements, nil
}

// Count returns the number of settlements matching the filter
func (r *SettlementRepositoryImpl) Count(ctx context.Context, filter models.SettlementFilter) (int64, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.Settlement{}), filter)

	var count int64
	err := query.Count(&count).Error
	if err != nil {
		return 0, err
	}

	return count, nil
}

// Exists checks if any settlement matching the filter exists
func (r *SettlementRepositoryImpl) Exists(ctx context.Context, filter models.SettlementFilter) (bool, error) {
	count, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}

	return count > 0, nil
}
