package service

import (
	"errors"
	"fmt"

	"fanloyalty/internal/infrastructure/database"
	"fanloyalty/internal/repository"
)

var (
	ErrNotEligible           = errors.New("not eligible")
	ErrProgramNotLive        = errors.New("program not live")
	ErrAlreadyCompleted      = errors.New("activity already completed")
	ErrInsufficientPoints    = errors.New("insufficient points")
	ErrOutOfStock            = errors.New("reward out of stock")
	ErrRewardInactive        = errors.New("reward inactive")
	ErrClaimAlreadyResolved  = errors.New("claim already resolved")
	ErrDuplicatePendingClaim = errors.New("duplicate pending claim")
	ErrConcurrencyConflict   = errors.New("concurrency conflict, retry")
	ErrInvalidRequest        = errors.New("invalid request")
)

// IsRetryable reports whether err may succeed when the same call is repeated.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrConcurrencyConflict)
}

// classify turns storage-level conflicts into ErrConcurrencyConflict and
// leaves every other error as it is. A request id collision that could not be
// replayed is a conflict too.
func classify(err error) error {
	if err == nil || errors.Is(err, ErrConcurrencyConflict) {
		return err
	}
	if errors.Is(err, repository.ErrConcurrentUpdate) ||
		errors.Is(err, repository.ErrDuplicateRequest) ||
		database.IsConflict(err) {
		return fmt.Errorf("%w: %v", ErrConcurrencyConflict, err)
	}
	return err
}

func normalizePage(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}
	if pageSize > 100 {
		pageSize = 100
	}
	return page, pageSize
}
