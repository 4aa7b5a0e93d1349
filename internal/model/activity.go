package model

import (
	"time"
)

// Frequency policies limiting how often one membership is credited for one activity.
const (
	FrequencyOnceEver     = "once_ever"
	FrequencyOncePerMatch = "once_per_match"
	FrequencyOncePerDay   = "once_per_day"
	FrequencyUnlimited    = "unlimited"
)

// Activity is club-admin owned configuration. The core only reads it.
type Activity struct {
	ID                 int64      `gorm:"primaryKey;autoIncrement" json:"id"`
	ProgramID          int64      `gorm:"index;not null" json:"program_id"`
	Name               string     `gorm:"type:varchar(128);not null" json:"name"`
	PointsAwarded      int64      `gorm:"not null" json:"points_awarded"`
	Frequency          string     `gorm:"type:varchar(20);not null" json:"frequency"`
	VerificationMethod string     `gorm:"type:varchar(20);not null" json:"verification_method"`
	TimeWindowStart    *time.Time `json:"time_window_start"`
	TimeWindowEnd      *time.Time `json:"time_window_end"`
	IsActive           bool       `gorm:"not null" json:"is_active"`
	CreatedAt          time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt          time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Activity) TableName() string {
	return "activity"
}

// InWindow reports whether t falls inside the optional [start, end] window, bounds inclusive.
func (a *Activity) InWindow(t time.Time) bool {
	if a.TimeWindowStart != nil && t.Before(*a.TimeWindowStart) {
		return false
	}
	if a.TimeWindowEnd != nil && t.After(*a.TimeWindowEnd) {
		return false
	}
	return true
}
