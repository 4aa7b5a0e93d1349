package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"fanloyalty/internal/infrastructure/database"
	"fanloyalty/internal/model"

	"gorm.io/gorm"
)

type RedemptionRepository struct {
	db *gorm.DB
}

func NewRedemptionRepository(db *gorm.DB) *RedemptionRepository {
	return &RedemptionRepository{db: db}
}

// Create inserts the redemption. ErrDuplicateRequest means another
// redemption already holds its request_id; any other unique collision
// (redemption_no, redemption_code) is ErrConcurrentUpdate.
func (r *RedemptionRepository) Create(ctx context.Context, tx *gorm.DB, redemption *model.RewardRedemption) error {
	if tx == nil {
		tx = r.db
	}
	err := tx.WithContext(ctx).Create(redemption).Error
	if !database.IsDuplicateKey(err) {
		return err
	}
	if redemption.RequestID != nil {
		var count int64
		if cerr := current(tx.WithContext(ctx)).
			Model(&model.RewardRedemption{}).
			Where("request_id = ?", *redemption.RequestID).
			Count(&count).Error; cerr != nil {
			return cerr
		}
		if count > 0 {
			return ErrDuplicateRequest
		}
	}
	return fmt.Errorf("%w: redemption %s: %v", ErrConcurrentUpdate, redemption.RedemptionNo, err)
}

func (r *RedemptionRepository) GetByRequestID(ctx context.Context, requestID string) (*model.RewardRedemption, error) {
	var redemption model.RewardRedemption
	err := r.db.WithContext(ctx).Where("request_id = ?", requestID).First(&redemption).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &redemption, nil
}

func (r *RedemptionRepository) GetByRedemptionNo(ctx context.Context, tx *gorm.DB, redemptionNo string) (*model.RewardRedemption, error) {
	if tx == nil {
		tx = r.db
	}
	var redemption model.RewardRedemption
	err := tx.WithContext(ctx).Where("redemption_no = ?", redemptionNo).First(&redemption).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRedemptionNotFound
		}
		return nil, err
	}
	return &redemption, nil
}

// MarkFulfilled sets fulfilled_at once for a manual-fulfillment redemption.
func (r *RedemptionRepository) MarkFulfilled(ctx context.Context, tx *gorm.DB, redemptionNo, by string) (*time.Time, error) {
	if tx == nil {
		tx = r.db
	}
	now := time.Now()
	result := tx.WithContext(ctx).
		Model(&model.RewardRedemption{}).
		Where("redemption_no = ? AND redemption_method = ? AND fulfilled_at IS NULL",
			redemptionNo, model.RedemptionMethodManualFulfillment).
		Updates(map[string]interface{}{
			"fulfilled_at": &now,
			"fulfilled_by": by,
		})

	if result.Error != nil {
		return nil, result.Error
	}

	if result.RowsAffected == 0 {
		redemption, err := r.GetByRedemptionNo(ctx, tx, redemptionNo)
		if err != nil {
			return nil, err
		}
		if redemption.RedemptionMethod != model.RedemptionMethodManualFulfillment {
			return nil, ErrNotManualFulfillment
		}
		return nil, ErrAlreadyFulfilled
	}

	return &now, nil
}

func (r *RedemptionRepository) SumPointsByMembership(ctx context.Context, membershipID int64) (int64, error) {
	var sum int64
	err := r.db.WithContext(ctx).
		Model(&model.RewardRedemption{}).
		Where("membership_id = ?", membershipID).
		Select("COALESCE(SUM(points_spent), 0)").
		Scan(&sum).Error
	return sum, err
}
