package model

import (
	"time"
)

// ActivityCompletion is the immutable record of one credited activity.
// FrequencyKey is NULL for unlimited activities; otherwise the unique index
// uk_completion_frequency is what rejects a duplicate award under concurrency.
type ActivityCompletion struct {
	ID           int64                `gorm:"primaryKey;autoIncrement" json:"id"`
	CompletionNo string               `gorm:"type:varchar(64);uniqueIndex;not null" json:"completion_no"`
	MembershipID int64                `gorm:"uniqueIndex:uk_completion_frequency,priority:1;not null" json:"membership_id"`
	ActivityID   int64                `gorm:"uniqueIndex:uk_completion_frequency,priority:2;index;not null" json:"activity_id"`
	FrequencyKey *string              `gorm:"type:varchar(96);uniqueIndex:uk_completion_frequency,priority:3" json:"frequency_key"`
	MatchKey     string               `gorm:"type:varchar(64)" json:"match_key,omitempty"`
	BasePoints   int64                `gorm:"not null" json:"base_points"`
	Multiplier   string               `gorm:"type:varchar(16);not null;default:'1'" json:"multiplier"`
	PointsEarned int64                `gorm:"not null" json:"points_earned"`
	ClaimID      *int64               `gorm:"index" json:"claim_id,omitempty"`
	Metadata     VerificationMetadata `gorm:"type:text;serializer:json" json:"metadata"`
	CompletedAt  time.Time            `gorm:"not null;index" json:"completed_at"`
}

func (ActivityCompletion) TableName() string {
	return "activity_completion"
}
