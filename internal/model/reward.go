package model

import (
	"time"
)

const (
	RedemptionMethodVoucher           = "voucher"
	RedemptionMethodManualFulfillment = "manual_fulfillment"
	RedemptionMethodCodeDisplay       = "code_display"
)

type Reward struct {
	ID               int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	ProgramID        int64     `gorm:"index;not null" json:"program_id"`
	Name             string    `gorm:"type:varchar(128);not null" json:"name"`
	PointsCost       int64     `gorm:"not null" json:"points_cost"`
	QuantityLimit    *int64    `json:"quantity_limit"`
	QuantityRedeemed int64     `gorm:"not null;default:0" json:"quantity_redeemed"`
	RedemptionMethod string    `gorm:"type:varchar(32);not null" json:"redemption_method"`
	UseCodePool      bool      `gorm:"not null;default:false" json:"use_code_pool"`
	IsActive         bool      `gorm:"not null" json:"is_active"`
	CreatedAt        time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Reward) TableName() string {
	return "reward"
}

// IssuesCode reports whether a redemption of this reward carries a code.
func (r *Reward) IssuesCode() bool {
	return r.RedemptionMethod == RedemptionMethodVoucher || r.RedemptionMethod == RedemptionMethodCodeDisplay
}

// InStock is a display-only check; redemption re-checks inside its transaction.
func (r *Reward) InStock() bool {
	return r.QuantityLimit == nil || r.QuantityRedeemed < *r.QuantityLimit
}

// RewardCode is a pre-provisioned code, consumed by exactly one redemption.
type RewardCode struct {
	ID           int64      `gorm:"primaryKey;autoIncrement" json:"id"`
	RewardID     int64      `gorm:"index;not null" json:"reward_id"`
	Code         string     `gorm:"type:varchar(64);uniqueIndex;not null" json:"code"`
	RedemptionNo *string    `gorm:"type:varchar(64);index" json:"redemption_no"`
	ConsumedAt   *time.Time `json:"consumed_at"`
	CreatedAt    time.Time  `gorm:"autoCreateTime" json:"created_at"`
}

func (RewardCode) TableName() string {
	return "reward_code"
}

// RewardRedemption is the append-only record of one spend.
type RewardRedemption struct {
	ID               int64      `gorm:"primaryKey;autoIncrement" json:"id"`
	RedemptionNo     string     `gorm:"type:varchar(64);uniqueIndex;not null" json:"redemption_no"`
	RequestID        *string    `gorm:"type:varchar(64);uniqueIndex" json:"request_id,omitempty"`
	MembershipID     int64      `gorm:"index;not null" json:"membership_id"`
	RewardID         int64      `gorm:"index;not null" json:"reward_id"`
	BaseCost         int64      `gorm:"not null" json:"base_cost"`
	DiscountPercent  string     `gorm:"type:varchar(16);not null;default:'0'" json:"discount_percent"`
	PointsSpent      int64      `gorm:"not null" json:"points_spent"`
	RedemptionMethod string     `gorm:"type:varchar(32);not null" json:"redemption_method"`
	RedemptionCode   *string    `gorm:"type:varchar(64);uniqueIndex" json:"redemption_code"`
	BalanceAfter     int64      `gorm:"not null" json:"balance_after"`
	FulfilledAt      *time.Time `json:"fulfilled_at"`
	FulfilledBy      string     `gorm:"type:varchar(64)" json:"fulfilled_by,omitempty"`
	CreatedAt        time.Time  `gorm:"autoCreateTime;index" json:"created_at"`
}

func (RewardRedemption) TableName() string {
	return "reward_redemption"
}
