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

type ClaimRepository struct {
	db *gorm.DB
}

func NewClaimRepository(db *gorm.DB) *ClaimRepository {
	return &ClaimRepository{db: db}
}

// Create inserts a pending claim. A second open claim for the same
// (membership, activity) fails with ErrDuplicateOpenClaim; any other unique
// collision is ErrConcurrentUpdate.
func (r *ClaimRepository) Create(ctx context.Context, tx *gorm.DB, claim *model.ManualClaim) error {
	if tx == nil {
		tx = r.db
	}
	err := tx.WithContext(ctx).Create(claim).Error
	if !database.IsDuplicateKey(err) {
		return err
	}
	open, cerr := r.HasOpen(ctx, current(tx), claim.MembershipID, claim.ActivityID)
	if cerr != nil {
		return cerr
	}
	if open {
		return ErrDuplicateOpenClaim
	}
	return fmt.Errorf("%w: claim %s: %v", ErrConcurrentUpdate, claim.ClaimNo, err)
}

func (r *ClaimRepository) GetByClaimNo(ctx context.Context, tx *gorm.DB, claimNo string) (*model.ManualClaim, error) {
	if tx == nil {
		tx = r.db
	}
	var claim model.ManualClaim
	err := tx.WithContext(ctx).Where("claim_no = ?", claimNo).First(&claim).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrClaimNotFound
		}
		return nil, err
	}
	return &claim, nil
}

// HasOpen reports a pending or approved claim for (membership, activity).
func (r *ClaimRepository) HasOpen(ctx context.Context, tx *gorm.DB, membershipID, activityID int64) (bool, error) {
	if tx == nil {
		tx = r.db
	}
	var count int64
	err := tx.WithContext(ctx).
		Model(&model.ManualClaim{}).
		Where("open_key = ?", model.ClaimOpenKey(membershipID, activityID)).
		Count(&count).Error
	return count > 0, err
}

// ClaimResolution carries the columns written when a claim leaves pending.
type ClaimResolution struct {
	Reviewer     string
	RejectReason string
	CompletionID *int64
}

// Resolve moves a claim from fromStatus to toStatus. The WHERE on status makes
// the transition happen at most once; losers get ErrClaimStatusInvalid.
func (r *ClaimRepository) Resolve(ctx context.Context, tx *gorm.DB, claimNo string, fromStatus, toStatus string, res ClaimResolution) error {
	if !model.CanTransitionTo(fromStatus, toStatus) {
		return ErrClaimStatusInvalid
	}

	if tx == nil {
		tx = r.db
	}

	now := time.Now()
	updates := map[string]interface{}{
		"status":      toStatus,
		"reviewer":    res.Reviewer,
		"reviewed_at": &now,
	}

	switch toStatus {
	case model.ClaimStatusApproved:
		updates["completion_id"] = res.CompletionID
	case model.ClaimStatusRejected:
		updates["reject_reason"] = res.RejectReason
		updates["open_key"] = nil
	}

	result := tx.WithContext(ctx).
		Model(&model.ManualClaim{}).
		Where("claim_no = ? AND status = ?", claimNo, fromStatus).
		Updates(updates)

	if result.Error != nil {
		return result.Error
	}

	if result.RowsAffected == 0 {
		return ErrClaimStatusInvalid
	}

	return nil
}

// AttachCompletion links an approved claim to the completion its approval produced.
func (r *ClaimRepository) AttachCompletion(ctx context.Context, tx *gorm.DB, claimID, completionID int64) error {
	result := tx.WithContext(ctx).
		Model(&model.ManualClaim{}).
		Where("id = ? AND status = ?", claimID, model.ClaimStatusApproved).
		Update("completion_id", completionID)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrClaimStatusInvalid
	}
	return nil
}

func (r *ClaimRepository) ListPending(ctx context.Context, programID int64, page, pageSize int) ([]*model.ManualClaim, int64, error) {
	var claims []*model.ManualClaim
	var total int64

	query := r.db.WithContext(ctx).
		Model(&model.ManualClaim{}).
		Where("program_id = ? AND status = ?", programID, model.ClaimStatusPending)

	err := query.Count(&total).Error
	if err != nil {
		return nil, 0, err
	}

	err = query.
		Order("created_at ASC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&claims).Error

	return claims, total, err
}
