package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

const (
	OutboxStatusPending = "PENDING"
	OutboxStatusSent    = "SENT"
	OutboxStatusFailed  = "FAILED"
)

const (
	EventPointsAwarded   = "points.awarded"
	EventRewardRedeemed  = "reward.redeemed"
	EventRewardFulfilled = "reward.fulfilled"
	EventClaimSubmitted  = "claim.submitted"
	EventClaimApproved   = "claim.approved"
	EventClaimRejected   = "claim.rejected"
)

// OutboxMessage is a ledger event written in the same transaction as the change it describes.
type OutboxMessage struct {
	ID         int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	EventID    string    `gorm:"type:varchar(36);uniqueIndex;not null" json:"event_id"`
	EventType  string    `gorm:"type:varchar(32);not null" json:"event_type"`
	MessageKey string    `gorm:"type:varchar(64);not null" json:"message_key"`
	Topic      string    `gorm:"type:varchar(64);not null" json:"topic"`
	Payload    string    `gorm:"type:text;not null" json:"payload"`
	Status     string    `gorm:"type:varchar(20);index;not null;default:'PENDING'" json:"status"`
	RetryCount int       `gorm:"not null;default:0" json:"retry_count"`
	CreatedAt  time.Time `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt  time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (OutboxMessage) TableName() string {
	return "outbox_message"
}

// LedgerEvent is the payload published for every outbox message.
type LedgerEvent struct {
	EventID      string         `json:"event_id"`
	Type         string         `json:"type"`
	MembershipID int64          `json:"membership_id"`
	ReferenceNo  string         `json:"reference_no"`
	Amount       int64          `json:"amount,omitempty"`
	BalanceAfter int64          `json:"balance_after,omitempty"`
	OccurredAt   time.Time      `json:"occurred_at"`
	Data         map[string]any `json:"data,omitempty"`
}

// NewOutboxMessage wraps an event for topic, keyed by membership so a consumer
// sees one membership's events in order.
func NewOutboxMessage(topic string, event LedgerEvent) (*OutboxMessage, error) {
	if event.EventID == "" {
		event.EventID = uuid.NewString()
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now()
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return nil, err
	}
	return &OutboxMessage{
		EventID:    event.EventID,
		EventType:  event.Type,
		MessageKey: membershipKey(event.MembershipID),
		Topic:      topic,
		Payload:    string(payload),
		Status:     OutboxStatusPending,
	}, nil
}
