package model

import (
	"fmt"
	"time"
)

const (
	ClaimStatusPending  = "pending"
	ClaimStatusApproved = "approved"
	ClaimStatusRejected = "rejected"
)

const (
	ClaimDecisionApprove = "approve"
	ClaimDecisionReject  = "reject"
)

// ValidClaimTransitions: a claim leaves pending exactly once.
var ValidClaimTransitions = map[string][]string{
	ClaimStatusPending: {ClaimStatusApproved, ClaimStatusRejected},
}

func CanTransitionTo(currentStatus, targetStatus string) bool {
	allowedStatuses, exists := ValidClaimTransitions[currentStatus]
	if !exists {
		return false
	}
	for _, s := range allowedStatuses {
		if s == targetStatus {
			return true
		}
	}
	return false
}

// ManualClaim is a fan's request for a human to credit an activity.
// OpenKey is set while the claim is pending or approved and cleared on rejection,
// so its unique index allows at most one open claim per (membership, activity).
type ManualClaim struct {
	ID           int64                `gorm:"primaryKey;autoIncrement" json:"id"`
	ClaimNo      string               `gorm:"type:varchar(64);uniqueIndex;not null" json:"claim_no"`
	MembershipID int64                `gorm:"index;not null" json:"membership_id"`
	ActivityID   int64                `gorm:"index;not null" json:"activity_id"`
	ProgramID    int64                `gorm:"index;not null" json:"program_id"`
	OpenKey      *string              `gorm:"type:varchar(64);uniqueIndex" json:"-"`
	MatchKey     string               `gorm:"type:varchar(64)" json:"match_key,omitempty"`
	Proof        VerificationMetadata `gorm:"type:text;serializer:json" json:"proof"`
	Status       string               `gorm:"type:varchar(20);index;not null" json:"status"`
	Reviewer     string               `gorm:"type:varchar(64)" json:"reviewer,omitempty"`
	RejectReason string               `gorm:"type:varchar(256)" json:"reject_reason,omitempty"`
	CompletionID *int64               `json:"completion_id,omitempty"`
	ReviewedAt   *time.Time           `json:"reviewed_at,omitempty"`
	CreatedAt    time.Time            `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt    time.Time            `gorm:"autoUpdateTime" json:"updated_at"`
}

func (ManualClaim) TableName() string {
	return "manual_claim"
}

func ClaimOpenKey(membershipID, activityID int64) string {
	return fmt.Sprintf("%d:%d", membershipID, activityID)
}
