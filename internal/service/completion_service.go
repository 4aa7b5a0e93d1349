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
	"fanloyalty/internal/policy"
	"fanloyalty/internal/repository"
	"fanloyalty/internal/tier"
	"fanloyalty/pkg/idgen"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// CompletionService is the Activity Completion Gate: every award of points
// goes through award.
type CompletionService struct {
	db              *gorm.DB
	cfg             *config.Config
	loc             *time.Location
	now             func() time.Time
	standing        *cache.StandingCache
	membershipRepo  *repository.MembershipRepository
	activityRepo    *repository.ActivityRepository
	completionRepo  *repository.CompletionRepository
	tierRepo        *repository.TierRepository
	clubRepo        *repository.ClubRepository
	transactionRepo *repository.PointTransactionRepository
	outboxRepo      *repository.OutboxRepository
	logger          *slog.Logger
}

func NewCompletionService(db *gorm.DB, cfg *config.Config, standing *cache.StandingCache) *CompletionService {
	loc, err := cfg.Business.Location()
	if err != nil {
		loc = time.UTC
	}
	return &CompletionService{
		db:              db,
		cfg:             cfg,
		loc:             loc,
		now:             time.Now,
		standing:        standing,
		membershipRepo:  repository.NewMembershipRepository(db),
		activityRepo:    repository.NewActivityRepository(db),
		completionRepo:  repository.NewCompletionRepository(db),
		tierRepo:        repository.NewTierRepository(db),
		clubRepo:        repository.NewClubRepository(db),
		transactionRepo: repository.NewPointTransactionRepository(db),
		outboxRepo:      repository.NewOutboxRepository(db),
		logger:          slog.Default().With(slog.String("component", "completion")),
	}
}

// SetClock replaces the time source.
func (s *CompletionService) SetClock(now func() time.Time) {
	s.now = now
}

type CompletionRequest struct {
	MembershipID int64                      `json:"membership_id" binding:"required"`
	ActivityID   int64                      `json:"activity_id" binding:"required"`
	MatchKey     string                     `json:"match_key"`
	Metadata     model.VerificationMetadata `json:"metadata"`
}

type CompletionResult struct {
	CompletionID   int64     `json:"-"`
	CompletionNo   string    `json:"completion_no"`
	MembershipID   int64     `json:"membership_id"`
	ActivityID     int64     `json:"activity_id"`
	BasePoints     int64     `json:"base_points"`
	Multiplier     string    `json:"multiplier"`
	PointsEarned   int64     `json:"points_earned"`
	Balance        int64     `json:"balance"`
	LifetimeEarned int64     `json:"lifetime_earned"`
	CompletedAt    time.Time `json:"completed_at"`
}

// awardInput is one attempt at the gate. At is the moment the fan did the
// activity: now for direct completions, submission time for claims.
type awardInput struct {
	MembershipID int64
	ActivityID   int64
	MatchKey     string
	Metadata     model.VerificationMetadata
	At           time.Time
	ClaimID      *int64
	ClaimNo      string
}

// AttemptCompletion records one completion and awards its points, or reports
// why it cannot: ErrProgramNotLive, ErrNotEligible, ErrAlreadyCompleted or
// ErrConcurrencyConflict.
func (s *CompletionService) AttemptCompletion(ctx context.Context, req *CompletionRequest) (*CompletionResult, error) {
	var result *CompletionResult
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		result, err = s.award(ctx, tx, awardInput{
			MembershipID: req.MembershipID,
			ActivityID:   req.ActivityID,
			MatchKey:     req.MatchKey,
			Metadata:     req.Metadata,
			At:           s.now(),
		})
		return err
	})
	if err != nil {
		return nil, classify(err)
	}

	s.invalidate(ctx, result.MembershipID)
	s.logger.Info("points awarded",
		slog.String("completion_no", result.CompletionNo),
		slog.Int64("membership_id", result.MembershipID),
		slog.Int64("activity_id", result.ActivityID),
		slog.Int64("points", result.PointsEarned),
	)
	return result, nil
}

// award runs every eligibility check against tx and, if they pass, inserts the
// completion, credits the membership, journals the change and queues the event.
// The unique frequency index is what finally rejects a duplicate.
func (s *CompletionService) award(ctx context.Context, tx *gorm.DB, in awardInput) (*CompletionResult, error) {
	if in.Metadata.Method == "" {
		in.Metadata.Method = model.VerificationNone
	}

	membership, err := s.membershipRepo.GetByID(ctx, tx, in.MembershipID)
	if err != nil {
		return nil, err
	}
	if err := requireLive(ctx, tx, s.clubRepo, membership.ProgramID); err != nil {
		return nil, err
	}

	activity, err := s.activityRepo.GetByID(ctx, tx, in.ActivityID)
	if err != nil {
		return nil, err
	}
	frequencyKey, err := s.checkEligible(membership, activity, in)
	if err != nil {
		return nil, err
	}

	if frequencyKey != nil {
		exists, err := s.completionRepo.ExistsByFrequencyKey(ctx, tx, membership.ID, activity.ID, *frequencyKey)
		if err != nil {
			return nil, err
		}
		if exists {
			return nil, fmt.Errorf("%w: %s", ErrAlreadyCompleted, *frequencyKey)
		}
	}

	multiplier := decimal.NewFromInt(1)
	if s.cfg.Business.ApplyTierMultiplier {
		tiers, err := s.tierRepo.ListByProgram(ctx, tx, membership.ProgramID)
		if err != nil {
			return nil, err
		}
		current, _ := tier.ComputeTier(membership.LifetimeEarned, tiers)
		multiplier = tier.EffectsFor(current).Multiplier
	}
	earned := tier.ApplyMultiplier(activity.PointsAwarded, multiplier)

	completion := &model.ActivityCompletion{
		CompletionNo: idgen.CompletionNo(),
		MembershipID: membership.ID,
		ActivityID:   activity.ID,
		FrequencyKey: frequencyKey,
		MatchKey:     in.MatchKey,
		BasePoints:   activity.PointsAwarded,
		Multiplier:   multiplier.String(),
		PointsEarned: earned,
		ClaimID:      in.ClaimID,
		Metadata:     in.Metadata,
		CompletedAt:  in.At,
	}
	if err := s.completionRepo.Create(ctx, tx, completion); err != nil {
		if errors.Is(err, repository.ErrDuplicateCompletion) && frequencyKey != nil {
			return nil, fmt.Errorf("%w: %s", ErrAlreadyCompleted, *frequencyKey)
		}
		return nil, fmt.Errorf("insert completion: %w", err)
	}

	if err := s.membershipRepo.Credit(ctx, tx, membership.ID, earned); err != nil {
		return nil, fmt.Errorf("credit membership: %w", err)
	}
	// re-read after the update so before/after reflect the row we actually changed
	credited, err := s.membershipRepo.GetByID(ctx, tx, membership.ID)
	if err != nil {
		return nil, err
	}

	remark := fmt.Sprintf("activity %d", activity.ID)
	if in.ClaimNo != "" {
		remark = fmt.Sprintf("activity %d via claim %s", activity.ID, in.ClaimNo)
	}
	if err := s.transactionRepo.Create(ctx, tx, &model.PointTransaction{
		TransactionNo: idgen.TransactionNo(),
		MembershipID:  membership.ID,
		ReferenceNo:   completion.CompletionNo,
		Amount:        earned,
		Type:          model.PointTransactionTypeAward,
		BalanceBefore: credited.Balance - earned,
		BalanceAfter:  credited.Balance,
		Remark:        remark,
	}); err != nil {
		return nil, fmt.Errorf("write journal: %w", err)
	}

	data := map[string]any{
		"activity_id": activity.ID,
		"base_points": activity.PointsAwarded,
		"multiplier":  completion.Multiplier,
	}
	if frequencyKey != nil {
		data["frequency_key"] = *frequencyKey
	}
	if in.ClaimNo != "" {
		data["claim_no"] = in.ClaimNo
	}
	msg, err := model.NewOutboxMessage(s.cfg.Kafka.Topic.Points, model.LedgerEvent{
		Type:         model.EventPointsAwarded,
		MembershipID: membership.ID,
		ReferenceNo:  completion.CompletionNo,
		Amount:       earned,
		BalanceAfter: credited.Balance,
		OccurredAt:   in.At,
		Data:         data,
	})
	if err != nil {
		return nil, err
	}
	if err := s.outboxRepo.Create(ctx, tx, msg); err != nil {
		return nil, fmt.Errorf("write outbox: %w", err)
	}

	return &CompletionResult{
		CompletionID:   completion.ID,
		CompletionNo:   completion.CompletionNo,
		MembershipID:   membership.ID,
		ActivityID:     activity.ID,
		BasePoints:     activity.PointsAwarded,
		Multiplier:     completion.Multiplier,
		PointsEarned:   earned,
		Balance:        credited.Balance,
		LifetimeEarned: credited.LifetimeEarned,
		CompletedAt:    in.At,
	}, nil
}

// checkEligible applies the activity rules in order and returns the
// frequency key for the attempt.
func (s *CompletionService) checkEligible(membership *model.Membership, activity *model.Activity, in awardInput) (*string, error) {
	if activity.ProgramID != membership.ProgramID {
		return nil, fmt.Errorf("%w: activity %d is not in program %d", ErrNotEligible, activity.ID, membership.ProgramID)
	}
	if !activity.IsActive {
		return nil, fmt.Errorf("%w: activity %d inactive", ErrNotEligible, activity.ID)
	}
	if !activity.InWindow(in.At) {
		return nil, fmt.Errorf("%w: activity %d outside its time window", ErrNotEligible, activity.ID)
	}

	if in.Metadata.Method != activity.VerificationMethod {
		return nil, fmt.Errorf("%w: activity requires %s verification, got %s",
			ErrNotEligible, activity.VerificationMethod, in.Metadata.Method)
	}
	if err := in.Metadata.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotEligible, err)
	}

	key, err := policy.Key(activity.Frequency, policy.Context{
		At:       in.At,
		Location: s.loc,
		MatchKey: in.MatchKey,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotEligible, err)
	}
	return key, nil
}

func (s *CompletionService) invalidate(ctx context.Context, membershipID int64) {
	if err := s.standing.Invalidate(ctx, membershipID); err != nil {
		s.logger.Warn("invalidate standing failed", slog.Int64("membership_id", membershipID), slog.Any("err", err))
	}
}
