package model

import (
	"strconv"
	"time"
)

// Membership is a fan's enrollment in one program.
// Balance and LifetimeEarned are only changed through conditional updates in the repository layer.
type Membership struct {
	ID             int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	FanID          int64     `gorm:"uniqueIndex:uk_membership_fan_program;not null" json:"fan_id"`
	ProgramID      int64     `gorm:"uniqueIndex:uk_membership_fan_program;index;not null" json:"program_id"`
	Balance        int64     `gorm:"not null;default:0" json:"balance"`         // spendable points
	LifetimeEarned int64     `gorm:"not null;default:0" json:"lifetime_earned"` // never decreases
	Version        int       `gorm:"not null;default:0" json:"version"`
	CreatedAt      time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Membership) TableName() string {
	return "membership"
}

func membershipKey(membershipID int64) string {
	return "membership:" + strconv.FormatInt(membershipID, 10)
}
