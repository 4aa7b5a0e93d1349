package service

import (
	"context"
	"log/slog"
	"time"

	"fanloyalty/internal/config"
	"fanloyalty/internal/infrastructure/cache"
	"fanloyalty/internal/model"
	"fanloyalty/internal/repository"
	"fanloyalty/internal/tier"

	lru "github.com/hashicorp/golang-lru"
	"gorm.io/gorm"
)

// TierService serves display reads of tier standing. Nothing here is used to
// move points; the award and redeem paths read tiers inside their own transaction.
type TierService struct {
	membershipRepo *repository.MembershipRepository
	tierRepo       *repository.TierRepository
	standing       *cache.StandingCache
	ladders        *lru.Cache
	ladderTTL      time.Duration
	now            func() time.Time
	logger         *slog.Logger
}

type ladderEntry struct {
	tiers    []model.Tier
	loadedAt time.Time
}

func NewTierService(db *gorm.DB, cfg *config.Config, standing *cache.StandingCache) *TierService {
	size := cfg.Business.TierCacheSize
	if size <= 0 {
		size = 256
	}
	ladders, _ := lru.New(size) // only fails for size <= 0
	return &TierService{
		membershipRepo: repository.NewMembershipRepository(db),
		tierRepo:       repository.NewTierRepository(db),
		standing:       standing,
		ladders:        ladders,
		ladderTTL:      cfg.Business.TierCacheTTL,
		now:            time.Now,
		logger:         slog.Default().With(slog.String("component", "tier")),
	}
}

func (s *TierService) SetClock(now func() time.Time) {
	s.now = now
}

type TierSummary struct {
	ID              int64  `json:"id"`
	Rank            int    `json:"rank"`
	Name            string `json:"name"`
	PointsThreshold int64  `json:"points_threshold"`
}

// Standing is a membership's balance and tier position at ComputedAt.
type Standing struct {
	MembershipID   int64        `json:"membership_id"`
	ProgramID      int64        `json:"program_id"`
	Balance        int64        `json:"balance"`
	LifetimeEarned int64        `json:"lifetime_earned"`
	CurrentTier    *TierSummary `json:"current_tier"`
	NextTier       *TierSummary `json:"next_tier"`
	PointsToNext   int64        `json:"points_to_next"`
	Effects        tier.Effects `json:"effects"`
	ComputedAt     time.Time    `json:"computed_at"`
}

func summarize(t *model.Tier) *TierSummary {
	if t == nil {
		return nil
	}
	return &TierSummary{ID: t.ID, Rank: t.Rank, Name: t.Name, PointsThreshold: t.PointsThreshold}
}

// GetStanding returns the cached snapshot when there is one, otherwise
// computes it from the membership row and the program's ladder.
func (s *TierService) GetStanding(ctx context.Context, membershipID int64) (*Standing, error) {
	var cached Standing
	hit, err := s.standing.Get(ctx, membershipID, &cached)
	if err != nil {
		s.logger.Warn("read standing cache failed", slog.Int64("membership_id", membershipID), slog.Any("err", err))
	}
	if hit {
		return &cached, nil
	}

	membership, err := s.membershipRepo.GetByID(ctx, nil, membershipID)
	if err != nil {
		return nil, err
	}
	tiers, err := s.Ladder(ctx, membership.ProgramID)
	if err != nil {
		return nil, err
	}

	current, next := tier.ComputeTier(membership.LifetimeEarned, tiers)
	standing := &Standing{
		MembershipID:   membership.ID,
		ProgramID:      membership.ProgramID,
		Balance:        membership.Balance,
		LifetimeEarned: membership.LifetimeEarned,
		CurrentTier:    summarize(current),
		NextTier:       summarize(next),
		PointsToNext:   tier.PointsToNext(membership.LifetimeEarned, next),
		Effects:        tier.EffectsFor(current),
		ComputedAt:     s.now(),
	}

	if err := s.standing.Set(ctx, membershipID, standing); err != nil {
		s.logger.Warn("write standing cache failed", slog.Int64("membership_id", membershipID), slog.Any("err", err))
	}
	return standing, nil
}

// Ladder returns a program's tiers in rank order from the in-process cache.
// Entries live for business.tier_cache_ttl; a zero TTL keeps them until evicted.
func (s *TierService) Ladder(ctx context.Context, programID int64) ([]model.Tier, error) {
	if v, ok := s.ladders.Get(programID); ok {
		entry := v.(ladderEntry)
		if s.ladderTTL <= 0 || s.now().Sub(entry.loadedAt) < s.ladderTTL {
			return entry.tiers, nil
		}
	}

	tiers, err := s.tierRepo.ListByProgram(ctx, nil, programID)
	if err != nil {
		return nil, err
	}
	s.ladders.Add(programID, ladderEntry{tiers: tiers, loadedAt: s.now()})
	return tiers, nil
}

// InvalidateLadder drops the cached ladder of programID. Tiers are edited
// outside this service, so nothing calls it on the write path: catalog edits
// reach display reads once the cached entry is older than the TTL.
func (s *TierService) InvalidateLadder(programID int64) {
	s.ladders.Remove(programID)
}
