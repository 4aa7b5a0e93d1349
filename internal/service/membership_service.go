package service

import (
	"context"
	"fmt"
	"log/slog"

	"fanloyalty/internal/model"
	"fanloyalty/internal/repository"

	"gorm.io/gorm"
)

type MembershipService struct {
	membershipRepo  *repository.MembershipRepository
	completionRepo  *repository.CompletionRepository
	redemptionRepo  *repository.RedemptionRepository
	transactionRepo *repository.PointTransactionRepository
	clubRepo        *repository.ClubRepository
	logger          *slog.Logger
}

func NewMembershipService(db *gorm.DB) *MembershipService {
	return &MembershipService{
		membershipRepo:  repository.NewMembershipRepository(db),
		completionRepo:  repository.NewCompletionRepository(db),
		redemptionRepo:  repository.NewRedemptionRepository(db),
		transactionRepo: repository.NewPointTransactionRepository(db),
		clubRepo:        repository.NewClubRepository(db),
		logger:          slog.Default().With(slog.String("component", "membership")),
	}
}

type JoinRequest struct {
	FanID     int64 `json:"fan_id" binding:"required"`
	ProgramID int64 `json:"program_id" binding:"required"`
}

// Join enrolls a fan in a program. Joining again returns the same membership.
func (s *MembershipService) Join(ctx context.Context, req *JoinRequest) (*model.Membership, error) {
	if _, err := s.clubRepo.GetClubByProgram(ctx, nil, req.ProgramID); err != nil {
		return nil, err
	}
	membership, err := s.membershipRepo.GetOrCreate(ctx, req.FanID, req.ProgramID)
	if err != nil {
		return nil, fmt.Errorf("join program %d: %w", req.ProgramID, err)
	}
	return membership, nil
}

func (s *MembershipService) GetMembership(ctx context.Context, membershipID int64) (*model.Membership, error) {
	return s.membershipRepo.GetByID(ctx, nil, membershipID)
}

// ListTransactions pages the point journal, newest first.
func (s *MembershipService) ListTransactions(ctx context.Context, membershipID int64, page, pageSize int) ([]*model.PointTransaction, int64, error) {
	if _, err := s.membershipRepo.GetByID(ctx, nil, membershipID); err != nil {
		return nil, 0, err
	}
	page, pageSize = normalizePage(page, pageSize)
	return s.transactionRepo.ListByMembership(ctx, membershipID, page, pageSize)
}

// ListCompletions pages the activities a membership has been credited for, newest first.
func (s *MembershipService) ListCompletions(ctx context.Context, membershipID int64, page, pageSize int) ([]*model.ActivityCompletion, int64, error) {
	if _, err := s.membershipRepo.GetByID(ctx, nil, membershipID); err != nil {
		return nil, 0, err
	}
	page, pageSize = normalizePage(page, pageSize)
	return s.completionRepo.ListByMembership(ctx, membershipID, page, pageSize)
}

// LedgerReport compares a membership's counters with the facts behind them.
type LedgerReport struct {
	MembershipID   int64 `json:"membership_id"`
	Balance        int64 `json:"balance"`
	LifetimeEarned int64 `json:"lifetime_earned"`
	Earned         int64 `json:"earned"`
	Spent          int64 `json:"spent"`
	Journal        int64 `json:"journal"`
}

// Consistent holds when balance = earned − spent ≥ 0, the journal sums to the
// balance and lifetime-earned equals everything ever earned.
func (r *LedgerReport) Consistent() bool {
	return r.Balance >= 0 &&
		r.Balance == r.Earned-r.Spent &&
		r.Balance == r.Journal &&
		r.LifetimeEarned == r.Earned
}

// Reconcile builds the ledger report of one membership. The sums are separate
// reads, so a change committed in between shows up as transient drift.
func (s *MembershipService) Reconcile(ctx context.Context, membershipID int64) (*LedgerReport, error) {
	membership, err := s.membershipRepo.GetByID(ctx, nil, membershipID)
	if err != nil {
		return nil, err
	}
	return s.reconcile(ctx, membership)
}

func (s *MembershipService) reconcile(ctx context.Context, membership *model.Membership) (*LedgerReport, error) {
	earned, err := s.completionRepo.SumPointsByMembership(ctx, membership.ID)
	if err != nil {
		return nil, err
	}
	spent, err := s.redemptionRepo.SumPointsByMembership(ctx, membership.ID)
	if err != nil {
		return nil, err
	}
	journal, err := s.transactionRepo.SumByMembership(ctx, membership.ID)
	if err != nil {
		return nil, err
	}
	return &LedgerReport{
		MembershipID:   membership.ID,
		Balance:        membership.Balance,
		LifetimeEarned: membership.LifetimeEarned,
		Earned:         earned,
		Spent:          spent,
		Journal:        journal,
	}, nil
}
