package service

import (
	"context"
	"testing"
	"time"

	"fanloyalty/internal/config"
	"fanloyalty/internal/infrastructure/cache"
	"fanloyalty/internal/model"
	"fanloyalty/internal/testutil"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

var matchDay = time.Date(2026, 5, 16, 15, 0, 0, 0, time.UTC)

func testConfig() *config.Config {
	return &config.Config{
		Redis: config.RedisConfig{TTL: time.Minute},
		Kafka: config.KafkaConfig{Topic: config.KafkaTopicConfig{
			Points: "loyalty.points",
			Claims: "loyalty.claims",
		}},
		Business: config.BusinessConfig{
			ApplyTierMultiplier: true,
			DayBoundaryTimezone: "UTC",
			MaxRetryCount:       5,
			TierCacheSize:       16,
			TierCacheTTL:        time.Minute,
		},
	}
}

type fixture struct {
	db           *gorm.DB
	cfg          *config.Config
	clock        *testutil.Clock
	redis        *miniredis.Miniredis
	completions  *CompletionService
	claims       *ClaimService
	tiers        *TierService
	redemptions  *RedemptionService
	verification *VerificationService
	memberships  *MembershipService
}

type fixtureOption func(*config.Config)

func withoutMultiplier(cfg *config.Config) { cfg.Business.ApplyTierMultiplier = false }

func withTimezone(tz string) fixtureOption {
	return func(cfg *config.Config) { cfg.Business.DayBoundaryTimezone = tz }
}

func newFixture(t *testing.T, opts ...fixtureOption) *fixture {
	t.Helper()
	cfg := testConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	return build(t, cfg, nil)
}

// newCachedFixture backs the standing cache with an in-memory redis.
func newCachedFixture(t *testing.T) *fixture {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	f := build(t, testConfig(), client)
	f.redis = mr
	return f
}

func build(t *testing.T, cfg *config.Config, client *redis.Client) *fixture {
	db := testutil.NewDB(t)
	clock := testutil.NewClock(matchDay)
	standing := cache.NewStandingCache(client, cfg.Redis.TTL)

	completions := NewCompletionService(db, cfg, standing)
	completions.SetClock(clock.Now)
	claims := NewClaimService(db, cfg, completions)
	claims.SetClock(clock.Now)
	tiers := NewTierService(db, cfg, standing)
	tiers.SetClock(clock.Now)
	redemptions := NewRedemptionService(db, cfg, standing, tiers)
	redemptions.SetClock(clock.Now)

	return &fixture{
		db:           db,
		cfg:          cfg,
		clock:        clock,
		completions:  completions,
		claims:       claims,
		tiers:        tiers,
		redemptions:  redemptions,
		verification: NewVerificationService(db),
		memberships:  NewMembershipService(db),
	}
}

// liveMember seeds a verified club, its program and one membership.
func (f *fixture) liveMember(t *testing.T) (*model.Program, *model.Membership) {
	t.Helper()
	_, program := testutil.SeedProgram(t, f.db, model.ClubStatusVerified)
	return program, testutil.SeedMembership(t, f.db, program.ID)
}

func (f *fixture) complete(t *testing.T, m *model.Membership, a *model.Activity, opts ...func(*CompletionRequest)) (*CompletionResult, error) {
	t.Helper()
	req := &CompletionRequest{MembershipID: m.ID, ActivityID: a.ID}
	for _, opt := range opts {
		opt(req)
	}
	return f.completions.AttemptCompletion(context.Background(), req)
}

func (f *fixture) requireConsistent(t *testing.T, membershipID int64) *LedgerReport {
	t.Helper()
	report, err := f.memberships.Reconcile(context.Background(), membershipID)
	require.NoError(t, err)
	require.True(t, report.Consistent(), "ledger drift: %+v", report)
	return report
}

func (f *fixture) countRows(t *testing.T, value interface{}, query string, args ...interface{}) int64 {
	t.Helper()
	var n int64
	require.NoError(t, f.db.Model(value).Where(query, args...).Count(&n).Error)
	return n
}

func manualProof(desc string) model.VerificationMetadata {
	return model.VerificationMetadata{
		Method: model.VerificationManual,
		Manual: &model.ManualProof{Description: desc},
	}
}

func frequency(f string) func(*model.Activity) {
	return func(a *model.Activity) { a.Frequency = f }
}

func verifiedBy(method string) func(*model.Activity) {
	return func(a *model.Activity) { a.VerificationMethod = method }
}

func int64Ptr(v int64) *int64 { return &v }
