package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"fanloyalty/internal/config"
	"fanloyalty/internal/model"
	"fanloyalty/internal/repository"
	"fanloyalty/pkg/idgen"

	"gorm.io/gorm"
)

// ReasonAlreadyCompleted is recorded when approval finds the activity already credited.
const ReasonAlreadyCompleted = "already completed"

// ClaimService runs the human-reviewed path to an award. Approval goes
// through the completion gate exactly once.
type ClaimService struct {
	db             *gorm.DB
	cfg            *config.Config
	now            func() time.Time
	completions    *CompletionService
	claimRepo      *repository.ClaimRepository
	membershipRepo *repository.MembershipRepository
	activityRepo   *repository.ActivityRepository
	completionRepo *repository.CompletionRepository
	clubRepo       *repository.ClubRepository
	outboxRepo     *repository.OutboxRepository
	logger         *slog.Logger
}

func NewClaimService(db *gorm.DB, cfg *config.Config, completions *CompletionService) *ClaimService {
	return &ClaimService{
		db:             db,
		cfg:            cfg,
		now:            time.Now,
		completions:    completions,
		claimRepo:      repository.NewClaimRepository(db),
		membershipRepo: repository.NewMembershipRepository(db),
		activityRepo:   repository.NewActivityRepository(db),
		completionRepo: repository.NewCompletionRepository(db),
		clubRepo:       repository.NewClubRepository(db),
		outboxRepo:     repository.NewOutboxRepository(db),
		logger:         slog.Default().With(slog.String("component", "claim")),
	}
}

func (s *ClaimService) SetClock(now func() time.Time) {
	s.now = now
}

type SubmitClaimRequest struct {
	MembershipID int64                      `json:"membership_id" binding:"required"`
	ActivityID   int64                      `json:"activity_id" binding:"required"`
	MatchKey     string                     `json:"match_key"`
	Proof        model.VerificationMetadata `json:"proof"`
}

// SubmitClaim opens a pending claim. Fails with ErrDuplicatePendingClaim while
// another claim for the same activity is pending or approved, and with
// ErrAlreadyCompleted when the frequency window is already used.
func (s *ClaimService) SubmitClaim(ctx context.Context, req *SubmitClaimRequest) (*model.ManualClaim, error) {
	submittedAt := s.now()
	proof := req.Proof
	if proof.Method == "" {
		proof.Method = model.VerificationManual
	}

	var claim *model.ManualClaim
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		membership, err := s.membershipRepo.GetByID(ctx, tx, req.MembershipID)
		if err != nil {
			return err
		}
		if err := requireLive(ctx, tx, s.clubRepo, membership.ProgramID); err != nil {
			return err
		}

		activity, err := s.activityRepo.GetByID(ctx, tx, req.ActivityID)
		if err != nil {
			return err
		}
		if activity.VerificationMethod != model.VerificationManual {
			return fmt.Errorf("%w: activity %d is not verified manually", ErrNotEligible, activity.ID)
		}
		key, err := s.completions.checkEligible(membership, activity, awardInput{
			MatchKey: req.MatchKey,
			Metadata: proof,
			At:       submittedAt,
		})
		if err != nil {
			return err
		}
		if key != nil {
			exists, err := s.completionRepo.ExistsByFrequencyKey(ctx, tx, membership.ID, activity.ID, *key)
			if err != nil {
				return err
			}
			if exists {
				return fmt.Errorf("%w: %s", ErrAlreadyCompleted, *key)
			}
		}

		open, err := s.claimRepo.HasOpen(ctx, tx, membership.ID, activity.ID)
		if err != nil {
			return err
		}
		if open {
			return fmt.Errorf("%w: membership %d activity %d", ErrDuplicatePendingClaim, membership.ID, activity.ID)
		}

		openKey := model.ClaimOpenKey(membership.ID, activity.ID)
		claim = &model.ManualClaim{
			ClaimNo:      idgen.ClaimNo(),
			MembershipID: membership.ID,
			ActivityID:   activity.ID,
			ProgramID:    membership.ProgramID,
			OpenKey:      &openKey,
			MatchKey:     req.MatchKey,
			Proof:        proof,
			Status:       model.ClaimStatusPending,
			CreatedAt:    submittedAt,
		}
		if err := s.claimRepo.Create(ctx, tx, claim); err != nil {
			if errors.Is(err, repository.ErrDuplicateOpenClaim) {
				return fmt.Errorf("%w: membership %d activity %d", ErrDuplicatePendingClaim, membership.ID, activity.ID)
			}
			return fmt.Errorf("insert claim: %w", err)
		}

		return s.queueClaimEvent(ctx, tx, claim, model.EventClaimSubmitted, nil)
	})
	if err != nil {
		return nil, classify(err)
	}

	s.logger.Info("claim submitted",
		slog.String("claim_no", claim.ClaimNo),
		slog.Int64("membership_id", claim.MembershipID),
		slog.Int64("activity_id", claim.ActivityID),
	)
	return claim, nil
}

type ReviewClaimRequest struct {
	ClaimNo  string `json:"claim_no" binding:"required"`
	Decision string `json:"decision" binding:"required,oneof=approve reject"`
	Reviewer string `json:"reviewer" binding:"required"`
	Reason   string `json:"reason"`
}

// ReviewClaim resolves a pending claim. A claim leaves pending once; any later
// review fails with ErrClaimAlreadyResolved.
func (s *ClaimService) ReviewClaim(ctx context.Context, req *ReviewClaimRequest) (*model.ManualClaim, error) {
	switch req.Decision {
	case model.ClaimDecisionApprove:
		return s.approve(ctx, req)
	case model.ClaimDecisionReject:
		reason := strings.TrimSpace(req.Reason)
		if reason == "" {
			reason = "rejected by reviewer"
		}
		return s.reject(ctx, req.ClaimNo, req.Reviewer, reason)
	default:
		return nil, fmt.Errorf("%w: unknown decision %q", ErrInvalidRequest, req.Decision)
	}
}

// approve flips the claim to approved first so a second reviewer loses on the
// status guard before reaching the gate, then awards inside the same transaction.
func (s *ClaimService) approve(ctx context.Context, req *ReviewClaimRequest) (*model.ManualClaim, error) {
	var result *CompletionResult
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		claim, err := s.claimRepo.GetByClaimNo(ctx, tx, req.ClaimNo)
		if err != nil {
			return err
		}
		if err := s.claimRepo.Resolve(ctx, tx, claim.ClaimNo, model.ClaimStatusPending, model.ClaimStatusApproved,
			repository.ClaimResolution{Reviewer: req.Reviewer}); err != nil {
			if errors.Is(err, repository.ErrClaimStatusInvalid) {
				return fmt.Errorf("%w: %s", ErrClaimAlreadyResolved, claim.ClaimNo)
			}
			return err
		}

		claimID := claim.ID
		result, err = s.completions.award(ctx, tx, awardInput{
			MembershipID: claim.MembershipID,
			ActivityID:   claim.ActivityID,
			MatchKey:     claim.MatchKey,
			Metadata:     claim.Proof,
			At:           claim.CreatedAt,
			ClaimID:      &claimID,
			ClaimNo:      claim.ClaimNo,
		})
		if err != nil {
			return err
		}

		if err := s.claimRepo.AttachCompletion(ctx, tx, claim.ID, result.CompletionID); err != nil {
			return err
		}
		claim.Status = model.ClaimStatusApproved
		return s.queueClaimEvent(ctx, tx, claim, model.EventClaimApproved, map[string]any{
			"reviewer":      req.Reviewer,
			"completion_no": result.CompletionNo,
			"points_earned": result.PointsEarned,
		})
	})

	if errors.Is(err, ErrAlreadyCompleted) {
		// the approval rolled back; close the claim instead of leaving it pending forever
		if _, rejectErr := s.reject(ctx, req.ClaimNo, req.Reviewer, ReasonAlreadyCompleted); rejectErr != nil {
			return nil, rejectErr
		}
		return nil, err
	}
	if err != nil {
		return nil, classify(err)
	}

	s.completions.invalidate(ctx, result.MembershipID)
	s.logger.Info("claim approved",
		slog.String("claim_no", req.ClaimNo),
		slog.String("reviewer", req.Reviewer),
		slog.String("completion_no", result.CompletionNo),
		slog.Int64("points", result.PointsEarned),
	)
	return s.claimRepo.GetByClaimNo(ctx, nil, req.ClaimNo)
}

func (s *ClaimService) reject(ctx context.Context, claimNo, reviewer, reason string) (*model.ManualClaim, error) {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		claim, err := s.claimRepo.GetByClaimNo(ctx, tx, claimNo)
		if err != nil {
			return err
		}
		if err := s.claimRepo.Resolve(ctx, tx, claim.ClaimNo, model.ClaimStatusPending, model.ClaimStatusRejected,
			repository.ClaimResolution{Reviewer: reviewer, RejectReason: reason}); err != nil {
			if errors.Is(err, repository.ErrClaimStatusInvalid) {
				return fmt.Errorf("%w: %s", ErrClaimAlreadyResolved, claimNo)
			}
			return err
		}
		claim.Status = model.ClaimStatusRejected
		return s.queueClaimEvent(ctx, tx, claim, model.EventClaimRejected, map[string]any{
			"reviewer": reviewer,
			"reason":   reason,
		})
	})
	if err != nil {
		return nil, classify(err)
	}

	s.logger.Info("claim rejected", slog.String("claim_no", claimNo), slog.String("reviewer", reviewer), slog.String("reason", reason))
	return s.claimRepo.GetByClaimNo(ctx, nil, claimNo)
}

func (s *ClaimService) queueClaimEvent(ctx context.Context, tx *gorm.DB, claim *model.ManualClaim, eventType string, extra map[string]any) error {
	data := map[string]any{
		"activity_id": claim.ActivityID,
		"status":      claim.Status,
	}
	for k, v := range extra {
		data[k] = v
	}
	msg, err := model.NewOutboxMessage(s.cfg.Kafka.Topic.Claims, model.LedgerEvent{
		Type:         eventType,
		MembershipID: claim.MembershipID,
		ReferenceNo:  claim.ClaimNo,
		OccurredAt:   s.now(),
		Data:         data,
	})
	if err != nil {
		return err
	}
	if err := s.outboxRepo.Create(ctx, tx, msg); err != nil {
		return fmt.Errorf("write outbox: %w", err)
	}
	return nil
}

// ListPendingClaims pages a program's review queue, oldest first.
func (s *ClaimService) ListPendingClaims(ctx context.Context, programID int64, page, pageSize int) ([]*model.ManualClaim, int64, error) {
	page, pageSize = normalizePage(page, pageSize)
	return s.claimRepo.ListPending(ctx, programID, page, pageSize)
}
