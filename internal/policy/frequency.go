// Package policy maps an activity's frequency tag to the key that identifies
// one credit window. Two completions with the same key for the same
// (membership, activity) may not both exist; a nil key means no limit.
package policy

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"fanloyalty/internal/model"
)

var (
	ErrUnknownFrequency = errors.New("unknown frequency policy")
	ErrMatchKeyRequired = errors.New("match key required for once_per_match")
)

// Context is what a frequency rule may look at.
type Context struct {
	At       time.Time
	Location *time.Location
	MatchKey string
}

// KeyFunc derives the frequency key for one attempt.
type KeyFunc func(c Context) (*string, error)

var (
	mu    sync.RWMutex
	rules = map[string]KeyFunc{
		model.FrequencyOnceEver:     onceEver,
		model.FrequencyOncePerDay:   oncePerDay,
		model.FrequencyOncePerMatch: oncePerMatch,
		model.FrequencyUnlimited:    unlimited,
	}
)

// Register adds or replaces the rule for frequency.
func Register(frequency string, fn KeyFunc) {
	mu.Lock()
	defer mu.Unlock()
	rules[frequency] = fn
}

// Key returns the frequency key for frequency under c.
func Key(frequency string, c Context) (*string, error) {
	mu.RLock()
	fn, ok := rules[frequency]
	mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownFrequency, frequency)
	}
	return fn(c)
}

func onceEver(Context) (*string, error) {
	return keyOf("ever"), nil
}

// oncePerDay buckets by calendar day in the configured reference timezone.
func oncePerDay(c Context) (*string, error) {
	loc := c.Location
	if loc == nil {
		loc = time.UTC
	}
	return keyOf("day:" + c.At.In(loc).Format("2006-01-02")), nil
}

func oncePerMatch(c Context) (*string, error) {
	matchKey := strings.TrimSpace(c.MatchKey)
	if matchKey == "" {
		return nil, ErrMatchKeyRequired
	}
	return keyOf("match:" + matchKey), nil
}

func unlimited(Context) (*string, error) {
	return nil, nil
}

func keyOf(s string) *string {
	return &s
}
