package repository

import (
	"context"

	"fanloyalty/internal/model"

	"gorm.io/gorm"
)

type TierRepository struct {
	db *gorm.DB
}

func NewTierRepository(db *gorm.DB) *TierRepository {
	return &TierRepository{db: db}
}

// Create inserts the tier together with its benefits, in the given order.
func (r *TierRepository) Create(ctx context.Context, tier *model.Tier) error {
	return r.db.WithContext(ctx).Create(tier).Error
}

// ListByProgram returns the ladder ordered by rank, each tier's benefits ordered by id.
func (r *TierRepository) ListByProgram(ctx context.Context, tx *gorm.DB, programID int64) ([]model.Tier, error) {
	if tx == nil {
		tx = r.db
	}
	var tiers []model.Tier
	err := tx.WithContext(ctx).
		Preload("Benefits", func(db *gorm.DB) *gorm.DB {
			return db.Order("id ASC")
		}).
		Where("program_id = ?", programID).
		Order("`rank` ASC").
		Find(&tiers).Error
	return tiers, err
}
