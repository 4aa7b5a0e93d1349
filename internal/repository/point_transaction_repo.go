package repository

import (
	"context"

	"fanloyalty/internal/model"

	"gorm.io/gorm"
)

type PointTransactionRepository struct {
	db *gorm.DB
}

func NewPointTransactionRepository(db *gorm.DB) *PointTransactionRepository {
	return &PointTransactionRepository{db: db}
}

func (r *PointTransactionRepository) Create(ctx context.Context, tx *gorm.DB, trans *model.PointTransaction) error {
	if tx == nil {
		tx = r.db
	}
	return tx.WithContext(ctx).Create(trans).Error
}

func (r *PointTransactionRepository) ListByMembership(ctx context.Context, membershipID int64, page, pageSize int) ([]*model.PointTransaction, int64, error) {
	var transactions []*model.PointTransaction
	var total int64

	query := r.db.WithContext(ctx).Model(&model.PointTransaction{}).Where("membership_id = ?", membershipID)

	err := query.Count(&total).Error
	if err != nil {
		return nil, 0, err
	}

	err = query.
		Order("id DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&transactions).Error

	return transactions, total, err
}

func (r *PointTransactionRepository) GetByReferenceNo(ctx context.Context, referenceNo string) (*model.PointTransaction, error) {
	var trans model.PointTransaction
	err := r.db.WithContext(ctx).Where("reference_no = ?", referenceNo).First(&trans).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &trans, nil
}

// SumByMembership is the journal's view of the balance.
func (r *PointTransactionRepository) SumByMembership(ctx context.Context, membershipID int64) (int64, error) {
	var sum int64
	err := r.db.WithContext(ctx).
		Model(&model.PointTransaction{}).
		Where("membership_id = ?", membershipID).
		Select("COALESCE(SUM(amount), 0)").
		Scan(&sum).Error
	return sum, err
}
