package model

import (
	"time"
)

const (
	PointTransactionTypeAward  = "AWARD"
	PointTransactionTypeRedeem = "REDEEM"
)

// PointTransaction is the journal of a membership's balance changes.
// Rows are append-only and carry the balance on both sides of the change.
type PointTransaction struct {
	ID            int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	TransactionNo string    `gorm:"type:varchar(64);uniqueIndex;not null" json:"transaction_no"`
	MembershipID  int64     `gorm:"index;not null" json:"membership_id"`
	ReferenceNo   string    `gorm:"type:varchar(64);index;not null" json:"reference_no"` // completion_no or redemption_no
	Amount        int64     `gorm:"not null" json:"amount"`                              // positive award, negative spend
	Type          string    `gorm:"type:varchar(20);not null" json:"type"`
	BalanceBefore int64     `gorm:"not null" json:"balance_before"`
	BalanceAfter  int64     `gorm:"not null" json:"balance_after"`
	Remark        string    `gorm:"type:varchar(256)" json:"remark"`
	CreatedAt     time.Time `gorm:"autoCreateTime;index" json:"created_at"`
}

func (PointTransaction) TableName() string {
	return "point_transaction"
}
