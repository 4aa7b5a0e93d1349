package repository

import (
	"context"
	"errors"
	"time"

	"fanloyalty/internal/model"

	"gorm.io/gorm"
)

type RewardRepository struct {
	db *gorm.DB
}

func NewRewardRepository(db *gorm.DB) *RewardRepository {
	return &RewardRepository{db: db}
}

func (r *RewardRepository) Create(ctx context.Context, reward *model.Reward) error {
	return r.db.WithContext(ctx).Create(reward).Error
}

func (r *RewardRepository) GetByID(ctx context.Context, tx *gorm.DB, id int64) (*model.Reward, error) {
	if tx == nil {
		tx = r.db
	}
	var reward model.Reward
	err := tx.WithContext(ctx).Where("id = ?", id).First(&reward).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRewardNotFound
		}
		return nil, err
	}
	return &reward, nil
}

// ListActiveByProgram is a display read of the catalog.
func (r *RewardRepository) ListActiveByProgram(ctx context.Context, programID int64) ([]*model.Reward, error) {
	var rewards []*model.Reward
	err := r.db.WithContext(ctx).
		Where("program_id = ? AND is_active = ?", programID, true).
		Order("points_cost ASC, id ASC").
		Find(&rewards).Error
	return rewards, err
}

// IncrementRedeemed takes one unit of inventory. The limit is evaluated by the
// UPDATE against the row as it is at write time, never against an earlier read.
func (r *RewardRepository) IncrementRedeemed(ctx context.Context, tx *gorm.DB, id int64) error {
	result := tx.WithContext(ctx).
		Model(&model.Reward{}).
		Where("id = ? AND is_active = ? AND (quantity_limit IS NULL OR quantity_redeemed < quantity_limit)", id, true).
		UpdateColumn("quantity_redeemed", gorm.Expr("quantity_redeemed + 1"))

	if result.Error != nil {
		return result.Error
	}

	if result.RowsAffected == 0 {
		reward, err := r.GetByID(ctx, tx, id)
		if err != nil {
			return err
		}
		if !reward.IsActive {
			return ErrRewardInactive
		}
		return ErrRewardOutOfStock
	}

	return nil
}

func (r *RewardRepository) AddCodes(ctx context.Context, rewardID int64, codes []string) error {
	rows := make([]*model.RewardCode, 0, len(codes))
	for _, code := range codes {
		rows = append(rows, &model.RewardCode{RewardID: rewardID, Code: code})
	}
	return r.db.WithContext(ctx).Create(&rows).Error
}

// ConsumeCode hands the oldest unused pre-provisioned code to redemptionNo.
func (r *RewardRepository) ConsumeCode(ctx context.Context, tx *gorm.DB, rewardID int64, redemptionNo string) (string, error) {
	var code model.RewardCode
	err := tx.WithContext(ctx).
		Where("reward_id = ? AND redemption_no IS NULL", rewardID).
		Order("id ASC").
		First(&code).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", ErrCodePoolEmpty
		}
		return "", err
	}

	now := time.Now()
	result := tx.WithContext(ctx).
		Model(&model.RewardCode{}).
		Where("id = ? AND redemption_no IS NULL", code.ID).
		Updates(map[string]interface{}{
			"redemption_no": redemptionNo,
			"consumed_at":   &now,
		})

	if result.Error != nil {
		return "", result.Error
	}

	if result.RowsAffected == 0 {
		return "", ErrConcurrentUpdate
	}

	return code.Code, nil
}
