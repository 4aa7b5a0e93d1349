package model

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	BenefitPointsMultiplier   = "points_multiplier"
	BenefitDiscountPercent    = "discount_percent"
	BenefitVIPAccess          = "vip_access"
	BenefitMonthlyBonusPoints = "monthly_bonus_points"
)

// Tier is unlocked when lifetime-earned reaches PointsThreshold.
type Tier struct {
	ID              int64         `gorm:"primaryKey;autoIncrement" json:"id"`
	ProgramID       int64         `gorm:"uniqueIndex:uk_tier_program_rank;not null" json:"program_id"`
	Rank            int           `gorm:"uniqueIndex:uk_tier_program_rank;not null" json:"rank"`
	Name            string        `gorm:"type:varchar(64);not null" json:"name"`
	PointsThreshold int64         `gorm:"not null" json:"points_threshold"`
	Benefits        []TierBenefit `gorm:"foreignKey:TierID" json:"benefits,omitempty"`
	CreatedAt       time.Time     `gorm:"autoCreateTime" json:"created_at"`
}

func (Tier) TableName() string {
	return "tier"
}

type TierBenefit struct {
	ID     int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	TierID int64           `gorm:"index;not null" json:"tier_id"`
	Type   string          `gorm:"type:varchar(32);not null" json:"type"`
	Value  decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"value"`
}

func (TierBenefit) TableName() string {
	return "tier_benefit"
}
