package repository

import (
	"context"
	"errors"
	"time"

	"fanloyalty/internal/model"

	"gorm.io/gorm"
)

type ClubRepository struct {
	db *gorm.DB
}

func NewClubRepository(db *gorm.DB) *ClubRepository {
	return &ClubRepository{db: db}
}

func (r *ClubRepository) CreateClub(ctx context.Context, club *model.Club) error {
	return r.db.WithContext(ctx).Create(club).Error
}

func (r *ClubRepository) CreateProgram(ctx context.Context, program *model.Program) error {
	return r.db.WithContext(ctx).Create(program).Error
}

func (r *ClubRepository) GetClub(ctx context.Context, id int64) (*model.Club, error) {
	var club model.Club
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&club).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrClubNotFound
		}
		return nil, err
	}
	return &club, nil
}

// GetClubByProgram loads the club owning programID.
func (r *ClubRepository) GetClubByProgram(ctx context.Context, tx *gorm.DB, programID int64) (*model.Club, error) {
	if tx == nil {
		tx = r.db
	}
	var program model.Program
	err := tx.WithContext(ctx).Where("id = ?", programID).First(&program).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrProgramNotFound
		}
		return nil, err
	}

	var club model.Club
	err = tx.WithContext(ctx).Where("id = ?", program.ClubID).First(&club).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrClubNotFound
		}
		return nil, err
	}
	return &club, nil
}

// ClubCriteria holds the verification criteria to overwrite; nil fields are left alone.
type ClubCriteria struct {
	OfficialEmailDomain *string
	PublicLink          *string
	AuthorityDeclared   *bool
}

func (r *ClubRepository) UpdateCriteria(ctx context.Context, clubID int64, c ClubCriteria) error {
	updates := map[string]interface{}{}
	if c.OfficialEmailDomain != nil {
		updates["official_email_domain"] = *c.OfficialEmailDomain
	}
	if c.PublicLink != nil {
		updates["public_link"] = *c.PublicLink
	}
	if c.AuthorityDeclared != nil {
		updates["authority_declared"] = *c.AuthorityDeclared
	}
	if len(updates) == 0 {
		return nil
	}
	result := r.db.WithContext(ctx).Model(&model.Club{}).Where("id = ?", clubID).Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		if _, err := r.GetClub(ctx, clubID); err != nil {
			return err
		}
	}
	return nil
}

// UpdateStatus moves a club to status, guarded by the status it was read in.
func (r *ClubRepository) UpdateStatus(ctx context.Context, clubID int64, fromStatus, toStatus, by string) error {
	updates := map[string]interface{}{
		"status": toStatus,
	}
	if toStatus == model.ClubStatusVerified || toStatus == model.ClubStatusOfficial {
		now := time.Now()
		updates["verified_at"] = &now
		updates["verified_by"] = by
	}

	result := r.db.WithContext(ctx).
		Model(&model.Club{}).
		Where("id = ? AND status = ?", clubID, fromStatus).
		Updates(updates)

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrConcurrentUpdate
	}
	return nil
}
