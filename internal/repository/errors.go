package repository

import (
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrMembershipNotFound = errors.New("membership not found")
	ErrActivityNotFound   = errors.New("activity not found")
	ErrClaimNotFound      = errors.New("claim not found")
	ErrRewardNotFound     = errors.New("reward not found")
	ErrRedemptionNotFound = errors.New("redemption not found")
	ErrClubNotFound       = errors.New("club not found")
	ErrProgramNotFound    = errors.New("program not found")

	ErrBalanceNotEnough     = errors.New("balance not enough")
	ErrDuplicateCompletion  = errors.New("completion already recorded for frequency key")
	ErrDuplicateOpenClaim   = errors.New("open claim already exists")
	ErrClaimStatusInvalid   = errors.New("claim status invalid")
	ErrRewardInactive       = errors.New("reward inactive")
	ErrRewardOutOfStock     = errors.New("reward out of stock")
	ErrCodePoolEmpty        = errors.New("reward code pool empty")
	ErrDuplicateRequest     = errors.New("duplicate request")
	ErrConcurrentUpdate     = errors.New("row changed by a concurrent transaction")
	ErrAlreadyFulfilled     = errors.New("redemption already fulfilled")
	ErrNotManualFulfillment = errors.New("redemption is not manually fulfilled")
)

// current reads the latest committed rows rather than the transaction's
// snapshot. After a unique violation on MySQL the conflicting row is only
// visible to a locking read; sqlite has no snapshot to bypass.
func current(tx *gorm.DB) *gorm.DB {
	if tx.Dialector.Name() == "mysql" {
		return tx.Clauses(clause.Locking{Strength: "SHARE"})
	}
	return tx
}
