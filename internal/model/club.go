package model

import (
	"time"
)

const (
	ClubStatusPending   = "pending"
	ClubStatusVerified  = "verified"
	ClubStatusOfficial  = "official"
	ClubStatusSuspended = "suspended"
)

// VerifiedCriteriaThreshold is how many verification criteria a club needs to become verified.
const VerifiedCriteriaThreshold = 2

type Club struct {
	ID                  int64      `gorm:"primaryKey;autoIncrement" json:"id"`
	Name                string     `gorm:"type:varchar(128);not null" json:"name"`
	Status              string     `gorm:"type:varchar(20);index;not null;default:'pending'" json:"status"`
	OfficialEmailDomain string     `gorm:"type:varchar(128)" json:"official_email_domain"`
	PublicLink          string     `gorm:"type:varchar(256)" json:"public_link"`
	AuthorityDeclared   bool       `gorm:"not null;default:false" json:"authority_declared"`
	VerifiedAt          *time.Time `json:"verified_at"`
	VerifiedBy          string     `gorm:"type:varchar(64)" json:"verified_by"`
	CreatedAt           time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt           time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Club) TableName() string {
	return "club"
}

// CriteriaMet counts the verification criteria present on the club.
func (c *Club) CriteriaMet() int {
	n := 0
	if c.OfficialEmailDomain != "" {
		n++
	}
	if c.PublicLink != "" {
		n++
	}
	if c.AuthorityDeclared {
		n++
	}
	return n
}

// IsLive reports whether the club's programs may move points.
func (c *Club) IsLive() bool {
	return c.Status == ClubStatusVerified || c.Status == ClubStatusOfficial
}

// Program is a club's loyalty program.
type Program struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	ClubID    int64     `gorm:"index;not null" json:"club_id"`
	Name      string    `gorm:"type:varchar(128);not null" json:"name"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Program) TableName() string {
	return "program"
}
