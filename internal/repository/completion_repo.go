package repository

import (
	"context"
	"fmt"

	"fanloyalty/internal/infrastructure/database"
	"fanloyalty/internal/model"

	"gorm.io/gorm"
)

type CompletionRepository struct {
	db *gorm.DB
}

func NewCompletionRepository(db *gorm.DB) *CompletionRepository {
	return &CompletionRepository{db: db}
}

// Create inserts the completion. ErrDuplicateCompletion means the
// (membership, activity, frequency_key) index rejected it; any other unique
// collision, such as a reused completion_no, is ErrConcurrentUpdate.
func (r *CompletionRepository) Create(ctx context.Context, tx *gorm.DB, completion *model.ActivityCompletion) error {
	if tx == nil {
		tx = r.db
	}
	err := tx.WithContext(ctx).Create(completion).Error
	if !database.IsDuplicateKey(err) {
		return err
	}
	if completion.FrequencyKey != nil {
		var count int64
		if cerr := current(tx.WithContext(ctx)).
			Model(&model.ActivityCompletion{}).
			Where("membership_id = ? AND activity_id = ? AND frequency_key = ?",
				completion.MembershipID, completion.ActivityID, *completion.FrequencyKey).
			Count(&count).Error; cerr != nil {
			return cerr
		}
		if count > 0 {
			return ErrDuplicateCompletion
		}
	}
	return fmt.Errorf("%w: completion %s: %v", ErrConcurrentUpdate, completion.CompletionNo, err)
}

// ExistsByFrequencyKey is the advisory pre-check; the unique index decides.
func (r *CompletionRepository) ExistsByFrequencyKey(ctx context.Context, tx *gorm.DB, membershipID, activityID int64, key string) (bool, error) {
	if tx == nil {
		tx = r.db
	}
	var count int64
	err := tx.WithContext(ctx).
		Model(&model.ActivityCompletion{}).
		Where("membership_id = ? AND activity_id = ? AND frequency_key = ?", membershipID, activityID, key).
		Count(&count).Error
	return count > 0, err
}

// ListByMembership pages a membership's completions, newest first.
func (r *CompletionRepository) ListByMembership(ctx context.Context, membershipID int64, page, pageSize int) ([]*model.ActivityCompletion, int64, error) {
	var completions []*model.ActivityCompletion
	var total int64

	query := r.db.WithContext(ctx).Model(&model.ActivityCompletion{}).Where("membership_id = ?", membershipID)

	err := query.Count(&total).Error
	if err != nil {
		return nil, 0, err
	}

	err = query.
		Order("completed_at DESC, id DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&completions).Error

	return completions, total, err
}

func (r *CompletionRepository) SumPointsByMembership(ctx context.Context, membershipID int64) (int64, error) {
	var sum int64
	err := r.db.WithContext(ctx).
		Model(&model.ActivityCompletion{}).
		Where("membership_id = ?", membershipID).
		Select("COALESCE(SUM(points_earned), 0)").
		Scan(&sum).Error
	return sum, err
}
