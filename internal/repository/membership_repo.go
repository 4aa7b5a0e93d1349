package repository

import (
	"context"
	"errors"

	"fanloyalty/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type MembershipRepository struct {
	db *gorm.DB
}

func NewMembershipRepository(db *gorm.DB) *MembershipRepository {
	return &MembershipRepository{db: db}
}

func (r *MembershipRepository) Create(ctx context.Context, tx *gorm.DB, membership *model.Membership) error {
	if tx == nil {
		tx = r.db
	}
	return tx.WithContext(ctx).Create(membership).Error
}

func (r *MembershipRepository) GetByID(ctx context.Context, tx *gorm.DB, id int64) (*model.Membership, error) {
	if tx == nil {
		tx = r.db
	}
	var membership model.Membership
	err := tx.WithContext(ctx).Where("id = ?", id).First(&membership).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrMembershipNotFound
		}
		return nil, err
	}
	return &membership, nil
}

func (r *MembershipRepository) GetByFanAndProgram(ctx context.Context, fanID, programID int64) (*model.Membership, error) {
	var membership model.Membership
	err := r.db.WithContext(ctx).
		Where("fan_id = ? AND program_id = ?", fanID, programID).
		First(&membership).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrMembershipNotFound
		}
		return nil, err
	}
	return &membership, nil
}

// GetOrCreate joins a fan to a program; joining twice returns the existing membership.
func (r *MembershipRepository) GetOrCreate(ctx context.Context, fanID, programID int64) (*model.Membership, error) {
	membership, err := r.GetByFanAndProgram(ctx, fanID, programID)
	if err == nil {
		return membership, nil
	}
	if !errors.Is(err, ErrMembershipNotFound) {
		return nil, err
	}

	err = r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "fan_id"}, {Name: "program_id"}},
			DoNothing: true,
		}).
		Create(&model.Membership{FanID: fanID, ProgramID: programID}).Error
	if err != nil {
		return nil, err
	}

	return r.GetByFanAndProgram(ctx, fanID, programID)
}

// Credit adds amount to both the spendable balance and lifetime-earned.
func (r *MembershipRepository) Credit(ctx context.Context, tx *gorm.DB, id int64, amount int64) error {
	result := tx.WithContext(ctx).
		Model(&model.Membership{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"balance":         gorm.Expr("balance + ?", amount),
			"lifetime_earned": gorm.Expr("lifetime_earned + ?", amount),
			"version":         gorm.Expr("version + 1"),
		})

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrMembershipNotFound
	}
	return nil
}

// Debit subtracts amount from the balance only if the balance, as seen by the
// update itself, still covers it. Lifetime-earned is untouched.
func (r *MembershipRepository) Debit(ctx context.Context, tx *gorm.DB, id int64, amount int64) error {
	result := tx.WithContext(ctx).
		Model(&model.Membership{}).
		Where("id = ? AND balance >= ?", id, amount).
		Updates(map[string]interface{}{
			"balance": gorm.Expr("balance - ?", amount),
			"version": gorm.Expr("version + 1"),
		})

	if result.Error != nil {
		return result.Error
	}

	if result.RowsAffected == 0 {
		if _, err := r.GetByID(ctx, tx, id); err != nil {
			return err
		}
		return ErrBalanceNotEnough
	}

	return nil
}

// ListAfter pages memberships by id for batch jobs.
func (r *MembershipRepository) ListAfter(ctx context.Context, afterID int64, limit int) ([]*model.Membership, error) {
	var memberships []*model.Membership
	err := r.db.WithContext(ctx).
		Where("id > ?", afterID).
		Order("id ASC").
		Limit(limit).
		Find(&memberships).Error
	return memberships, err
}
