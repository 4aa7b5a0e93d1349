// Package testutil builds throwaway SQLite stores and catalog fixtures for tests.
package testutil

import (
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"fanloyalty/internal/config"
	"fanloyalty/internal/infrastructure/database"
	"fanloyalty/internal/model"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

var seq atomic.Int64

// NewDB opens a private in-memory store with every table migrated.
func NewDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := database.Open(&config.DatabaseConfig{
		Driver:   database.DriverSQLite,
		Path:     ":memory:",
		LogLevel: "silent",
	})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))

	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })
	return db
}

// SeedProgram creates a club in clubStatus and one program owned by it.
func SeedProgram(t *testing.T, db *gorm.DB, clubStatus string) (*model.Club, *model.Program) {
	t.Helper()
	n := seq.Add(1)
	club := &model.Club{Name: fmt.Sprintf("Club %d", n), Status: clubStatus}
	require.NoError(t, db.Create(club).Error)
	program := &model.Program{ClubID: club.ID, Name: fmt.Sprintf("Program %d", n)}
	require.NoError(t, db.Create(program).Error)
	return club, program
}

func SeedMembership(t *testing.T, db *gorm.DB, programID int64) *model.Membership {
	t.Helper()
	m := &model.Membership{FanID: seq.Add(1), ProgramID: programID}
	require.NoError(t, db.Create(m).Error)
	return m
}

// SeedActivity creates an active, unlimited, unverified activity worth points,
// then applies opts.
func SeedActivity(t *testing.T, db *gorm.DB, programID, points int64, opts ...func(*model.Activity)) *model.Activity {
	t.Helper()
	a := &model.Activity{
		ProgramID:          programID,
		Name:               fmt.Sprintf("Activity %d", seq.Add(1)),
		PointsAwarded:      points,
		Frequency:          model.FrequencyUnlimited,
		VerificationMethod: model.VerificationNone,
		IsActive:           true,
	}
	for _, opt := range opts {
		opt(a)
	}
	require.NoError(t, db.Create(a).Error)
	return a
}

// SeedReward creates an active voucher reward costing cost, then applies opts.
func SeedReward(t *testing.T, db *gorm.DB, programID, cost int64, opts ...func(*model.Reward)) *model.Reward {
	t.Helper()
	r := &model.Reward{
		ProgramID:        programID,
		Name:             fmt.Sprintf("Reward %d", seq.Add(1)),
		PointsCost:       cost,
		RedemptionMethod: model.RedemptionMethodVoucher,
		IsActive:         true,
	}
	for _, opt := range opts {
		opt(r)
	}
	require.NoError(t, db.Create(r).Error)
	return r
}

// Benefit is shorthand for a tier benefit row.
func Benefit(kind string, value string) model.TierBenefit {
	return model.TierBenefit{Type: kind, Value: decimal.RequireFromString(value)}
}

// SeedTier creates a tier with benefits stored in the order given.
func SeedTier(t *testing.T, db *gorm.DB, programID int64, rank int, threshold int64, benefits ...model.TierBenefit) *model.Tier {
	t.Helper()
	tier := &model.Tier{
		ProgramID:       programID,
		Rank:            rank,
		Name:            fmt.Sprintf("Tier %d", rank),
		PointsThreshold: threshold,
	}
	require.NoError(t, db.Create(tier).Error)
	for i := range benefits {
		benefits[i].TierID = tier.ID
		require.NoError(t, db.Create(&benefits[i]).Error)
	}
	tier.Benefits = benefits
	return tier
}

// Fund credits points through a real completion row so that the ledger still
// reconciles, and returns the reloaded membership.
func Fund(t *testing.T, db *gorm.DB, m *model.Membership, points int64) *model.Membership {
	t.Helper()
	n := seq.Add(1)
	require.NoError(t, db.Transaction(func(tx *gorm.DB) error {
		activity := &model.Activity{
			ProgramID:          m.ProgramID,
			Name:               fmt.Sprintf("Opening balance %d", n),
			PointsAwarded:      points,
			Frequency:          model.FrequencyUnlimited,
			VerificationMethod: model.VerificationNone,
		}
		if err := tx.Create(activity).Error; err != nil {
			return err
		}
		completion := &model.ActivityCompletion{
			CompletionNo: fmt.Sprintf("SEED%d", n),
			MembershipID: m.ID,
			ActivityID:   activity.ID,
			BasePoints:   points,
			Multiplier:   "1",
			PointsEarned: points,
			Metadata:     model.VerificationMetadata{Method: model.VerificationNone},
			CompletedAt:  time.Now(),
		}
		if err := tx.Create(completion).Error; err != nil {
			return err
		}
		before := m.Balance
		if err := tx.Model(&model.Membership{}).Where("id = ?", m.ID).Updates(map[string]interface{}{
			"balance":         gorm.Expr("balance + ?", points),
			"lifetime_earned": gorm.Expr("lifetime_earned + ?", points),
		}).Error; err != nil {
			return err
		}
		return tx.Create(&model.PointTransaction{
			TransactionNo: fmt.Sprintf("SEEDTXN%d", n),
			MembershipID:  m.ID,
			ReferenceNo:   completion.CompletionNo,
			Amount:        points,
			Type:          model.PointTransactionTypeAward,
			BalanceBefore: before,
			BalanceAfter:  before + points,
		}).Error
	}))

	var reloaded model.Membership
	require.NoError(t, db.First(&reloaded, m.ID).Error)
	return &reloaded
}

// Reload fetches the current membership row.
func Reload(t *testing.T, db *gorm.DB, id int64) *model.Membership {
	t.Helper()
	var m model.Membership
	require.NoError(t, db.First(&m, id).Error)
	return &m
}

// Clock is a settable time source for services under test.
type Clock struct {
	now atomic.Pointer[time.Time]
}

func NewClock(t time.Time) *Clock {
	c := &Clock{}
	c.Set(t)
	return c
}

func (c *Clock) Set(t time.Time) {
	c.now.Store(&t)
}

func (c *Clock) Now() time.Time {
	return *c.now.Load()
}
