package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"fanloyalty/internal/config"
	"fanloyalty/internal/infrastructure/cache"
	"fanloyalty/internal/model"
	"fanloyalty/internal/repository"
	"fanloyalty/internal/tier"
	"fanloyalty/pkg/idgen"

	"gorm.io/gorm"
)

type RedemptionService struct {
	db              *gorm.DB
	cfg             *config.Config
	now             func() time.Time
	standing        *cache.StandingCache
	tiers           *TierService
	membershipRepo  *repository.MembershipRepository
	rewardRepo      *repository.RewardRepository
	redemptionRepo  *repository.RedemptionRepository
	tierRepo        *repository.TierRepository
	clubRepo        *repository.ClubRepository
	transactionRepo *repository.PointTransactionRepository
	outboxRepo      *repository.OutboxRepository
	logger          *slog.Logger
}

func NewRedemptionService(db *gorm.DB, cfg *config.Config, standing *cache.StandingCache, tiers *TierService) *RedemptionService {
	return &RedemptionService{
		db:              db,
		cfg:             cfg,
		now:             time.Now,
		standing:        standing,
		tiers:           tiers,
		membershipRepo:  repository.NewMembershipRepository(db),
		rewardRepo:      repository.NewRewardRepository(db),
		redemptionRepo:  repository.NewRedemptionRepository(db),
		tierRepo:        repository.NewTierRepository(db),
		clubRepo:        repository.NewClubRepository(db),
		transactionRepo: repository.NewPointTransactionRepository(db),
		outboxRepo:      repository.NewOutboxRepository(db),
		logger:          slog.Default().With(slog.String("component", "redemption")),
	}
}

func (s *RedemptionService) SetClock(now func() time.Time) {
	s.now = now
}

type RedeemRequest struct {
	RequestID    string `json:"request_id"`
	MembershipID int64  `json:"membership_id" binding:"required"`
	RewardID     int64  `json:"reward_id" binding:"required"`
}

type RedeemResult struct {
	RedemptionNo     string  `json:"redemption_no"`
	RewardID         int64   `json:"reward_id"`
	BaseCost         int64   `json:"base_cost"`
	DiscountPercent  string  `json:"discount_percent"`
	FinalCost        int64   `json:"final_cost"`
	BalanceAfter     int64   `json:"balance_after"`
	RedemptionCode   *string `json:"redemption_code"`
	RedemptionMethod string  `json:"redemption_method"`
	Replayed         bool    `json:"replayed,omitempty"`
}

func resultOf(r *model.RewardRedemption) *RedeemResult {
	return &RedeemResult{
		RedemptionNo:     r.RedemptionNo,
		RewardID:         r.RewardID,
		BaseCost:         r.BaseCost,
		DiscountPercent:  r.DiscountPercent,
		FinalCost:        r.PointsSpent,
		BalanceAfter:     r.BalanceAfter,
		RedemptionCode:   r.RedemptionCode,
		RedemptionMethod: r.RedemptionMethod,
	}
}

// Redeem spends points on a reward. Activity, stock and balance are all
// re-checked by conditional updates inside one transaction, so a failure
// leaves nothing behind. A repeated RequestID returns the first result.
func (s *RedemptionService) Redeem(ctx context.Context, req *RedeemRequest) (*RedeemResult, error) {
	if req.RequestID != "" {
		replay, err := s.replay(ctx, req)
		if err != nil || replay != nil {
			return replay, err
		}
	}

	var redemption *model.RewardRedemption
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		redemption, err = s.redeem(ctx, tx, req)
		return err
	})
	if errors.Is(err, repository.ErrDuplicateRequest) && req.RequestID != "" {
		// lost the race to a concurrent call carrying the same request id
		replay, replayErr := s.replay(ctx, req)
		if replayErr != nil || replay != nil {
			return replay, replayErr
		}
	}
	if err != nil {
		return nil, classify(err)
	}

	s.invalidate(ctx, redemption.MembershipID)
	s.logger.Info("reward redeemed",
		slog.String("redemption_no", redemption.RedemptionNo),
		slog.Int64("membership_id", redemption.MembershipID),
		slog.Int64("reward_id", redemption.RewardID),
		slog.Int64("points", redemption.PointsSpent),
	)
	return resultOf(redemption), nil
}

func (s *RedemptionService) replay(ctx context.Context, req *RedeemRequest) (*RedeemResult, error) {
	existing, err := s.redemptionRepo.GetByRequestID(ctx, req.RequestID)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, nil
	}
	if existing.MembershipID != req.MembershipID || existing.RewardID != req.RewardID {
		return nil, fmt.Errorf("%w: request id %s belongs to another redemption", ErrInvalidRequest, req.RequestID)
	}
	result := resultOf(existing)
	result.Replayed = true
	return result, nil
}

func (s *RedemptionService) redeem(ctx context.Context, tx *gorm.DB, req *RedeemRequest) (*model.RewardRedemption, error) {
	membership, err := s.membershipRepo.GetByID(ctx, tx, req.MembershipID)
	if err != nil {
		return nil, err
	}
	if err := requireLive(ctx, tx, s.clubRepo, membership.ProgramID); err != nil {
		return nil, err
	}

	reward, err := s.rewardRepo.GetByID(ctx, tx, req.RewardID)
	if err != nil {
		return nil, err
	}
	if reward.ProgramID != membership.ProgramID {
		return nil, fmt.Errorf("%w: reward %d is not in program %d", repository.ErrRewardNotFound, reward.ID, membership.ProgramID)
	}
	if !reward.IsActive {
		return nil, fmt.Errorf("%w: reward %d", ErrRewardInactive, reward.ID)
	}

	tiers, err := s.tierRepo.ListByProgram(ctx, tx, membership.ProgramID)
	if err != nil {
		return nil, err
	}
	current, _ := tier.ComputeTier(membership.LifetimeEarned, tiers)
	discount := tier.EffectsFor(current).DiscountPercent
	finalCost := tier.FinalCost(reward.PointsCost, discount)

	if err := s.rewardRepo.IncrementRedeemed(ctx, tx, reward.ID); err != nil {
		switch {
		case errors.Is(err, repository.ErrRewardOutOfStock):
			return nil, fmt.Errorf("%w: reward %d", ErrOutOfStock, reward.ID)
		case errors.Is(err, repository.ErrRewardInactive):
			return nil, fmt.Errorf("%w: reward %d", ErrRewardInactive, reward.ID)
		}
		return nil, fmt.Errorf("take inventory: %w", err)
	}

	if err := s.membershipRepo.Debit(ctx, tx, membership.ID, finalCost); err != nil {
		if errors.Is(err, repository.ErrBalanceNotEnough) {
			return nil, fmt.Errorf("%w: need %d", ErrInsufficientPoints, finalCost)
		}
		return nil, fmt.Errorf("debit membership: %w", err)
	}
	debited, err := s.membershipRepo.GetByID(ctx, tx, membership.ID)
	if err != nil {
		return nil, err
	}

	redemptionNo := idgen.RedemptionNo()
	code, err := s.issueCode(ctx, tx, reward, redemptionNo)
	if err != nil {
		return nil, err
	}

	redemption := &model.RewardRedemption{
		RedemptionNo:     redemptionNo,
		MembershipID:     membership.ID,
		RewardID:         reward.ID,
		BaseCost:         reward.PointsCost,
		DiscountPercent:  discount.String(),
		PointsSpent:      finalCost,
		RedemptionMethod: reward.RedemptionMethod,
		RedemptionCode:   code,
		BalanceAfter:     debited.Balance,
	}
	if req.RequestID != "" {
		requestID := req.RequestID
		redemption.RequestID = &requestID
	}
	if err := s.redemptionRepo.Create(ctx, tx, redemption); err != nil {
		if errors.Is(err, repository.ErrDuplicateRequest) {
			return nil, err
		}
		return nil, fmt.Errorf("insert redemption: %w", err)
	}

	if err := s.transactionRepo.Create(ctx, tx, &model.PointTransaction{
		TransactionNo: idgen.TransactionNo(),
		MembershipID:  membership.ID,
		ReferenceNo:   redemptionNo,
		Amount:        -finalCost,
		Type:          model.PointTransactionTypeRedeem,
		BalanceBefore: debited.Balance + finalCost,
		BalanceAfter:  debited.Balance,
		Remark:        fmt.Sprintf("reward %d", reward.ID),
	}); err != nil {
		return nil, fmt.Errorf("write journal: %w", err)
	}

	msg, err := model.NewOutboxMessage(s.cfg.Kafka.Topic.Points, model.LedgerEvent{
		Type:         model.EventRewardRedeemed,
		MembershipID: membership.ID,
		ReferenceNo:  redemptionNo,
		Amount:       -finalCost,
		BalanceAfter: debited.Balance,
		OccurredAt:   s.now(),
		Data: map[string]any{
			"reward_id":         reward.ID,
			"base_cost":         reward.PointsCost,
			"discount_percent":  redemption.DiscountPercent,
			"redemption_method": reward.RedemptionMethod,
		},
	})
	if err != nil {
		return nil, err
	}
	if err := s.outboxRepo.Create(ctx, tx, msg); err != nil {
		return nil, fmt.Errorf("write outbox: %w", err)
	}
	return redemption, nil
}

// issueCode attaches a code for voucher and code_display rewards, taken from
// the pre-provisioned pool when the reward uses one. Manual fulfillment gets none.
func (s *RedemptionService) issueCode(ctx context.Context, tx *gorm.DB, reward *model.Reward, redemptionNo string) (*string, error) {
	if !reward.IssuesCode() {
		return nil, nil
	}
	if !reward.UseCodePool {
		code := idgen.RedemptionCode()
		return &code, nil
	}
	code, err := s.rewardRepo.ConsumeCode(ctx, tx, reward.ID, redemptionNo)
	if err != nil {
		if errors.Is(err, repository.ErrCodePoolEmpty) {
			return nil, fmt.Errorf("%w: reward %d has no codes left", ErrOutOfStock, reward.ID)
		}
		return nil, err
	}
	return &code, nil
}

type FulfillRequest struct {
	RedemptionNo string `json:"redemption_no" binding:"required"`
	FulfilledBy  string `json:"fulfilled_by" binding:"required"`
}

// MarkFulfilled records that a club admin handed over a manually fulfilled reward.
func (s *RedemptionService) MarkFulfilled(ctx context.Context, req *FulfillRequest) (*model.RewardRedemption, error) {
	var redemption *model.RewardRedemption
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		fulfilledAt, err := s.redemptionRepo.MarkFulfilled(ctx, tx, req.RedemptionNo, req.FulfilledBy)
		if err != nil {
			return err
		}
		redemption, err = s.redemptionRepo.GetByRedemptionNo(ctx, tx, req.RedemptionNo)
		if err != nil {
			return err
		}

		msg, err := model.NewOutboxMessage(s.cfg.Kafka.Topic.Points, model.LedgerEvent{
			Type:         model.EventRewardFulfilled,
			MembershipID: redemption.MembershipID,
			ReferenceNo:  redemption.RedemptionNo,
			OccurredAt:   *fulfilledAt,
			Data: map[string]any{
				"reward_id":    redemption.RewardID,
				"fulfilled_by": req.FulfilledBy,
			},
		})
		if err != nil {
			return err
		}
		return s.outboxRepo.Create(ctx, tx, msg)
	})
	if err != nil {
		return nil, classify(err)
	}

	s.logger.Info("redemption fulfilled", slog.String("redemption_no", req.RedemptionNo), slog.String("by", req.FulfilledBy))
	return redemption, nil
}

type RecommendedReward struct {
	RewardID         int64  `json:"reward_id"`
	Name             string `json:"name"`
	PointsCost       int64  `json:"points_cost"`
	FinalCost        int64  `json:"final_cost"`
	RedemptionMethod string `json:"redemption_method"`
	Remaining        *int64 `json:"remaining,omitempty"`
	Affordable       bool   `json:"affordable"`
}

// RecommendedRewards lists the program's active, in-stock rewards priced for
// the membership. It is a display read and may be stale.
func (s *RedemptionService) RecommendedRewards(ctx context.Context, membershipID int64) ([]RecommendedReward, error) {
	membership, err := s.membershipRepo.GetByID(ctx, nil, membershipID)
	if err != nil {
		return nil, err
	}
	tiers, err := s.tiers.Ladder(ctx, membership.ProgramID)
	if err != nil {
		return nil, err
	}
	current, _ := tier.ComputeTier(membership.LifetimeEarned, tiers)
	discount := tier.EffectsFor(current).DiscountPercent

	rewards, err := s.rewardRepo.ListActiveByProgram(ctx, membership.ProgramID)
	if err != nil {
		return nil, err
	}

	out := make([]RecommendedReward, 0, len(rewards))
	for _, r := range rewards {
		if !r.InStock() {
			continue
		}
		cost := tier.FinalCost(r.PointsCost, discount)
		rec := RecommendedReward{
			RewardID:         r.ID,
			Name:             r.Name,
			PointsCost:       r.PointsCost,
			FinalCost:        cost,
			RedemptionMethod: r.RedemptionMethod,
			Affordable:       membership.Balance >= cost,
		}
		if r.QuantityLimit != nil {
			remaining := *r.QuantityLimit - r.QuantityRedeemed
			rec.Remaining = &remaining
		}
		out = append(out, rec)
	}
	return out, nil
}

func (s *RedemptionService) invalidate(ctx context.Context, membershipID int64) {
	if err := s.standing.Invalidate(ctx, membershipID); err != nil {
		s.logger.Warn("invalidate standing failed", slog.Int64("membership_id", membershipID), slog.Any("err", err))
	}
}
