package service

import (
	"context"
	"fmt"
	"log/slog"

	"fanloyalty/internal/model"
	"fanloyalty/internal/repository"

	"gorm.io/gorm"
)

const systemActor = "system"

// VerificationService answers whether a program may move points and drives
// the owning club's status.
type VerificationService struct {
	db       *gorm.DB
	clubRepo *repository.ClubRepository
	logger   *slog.Logger
}

func NewVerificationService(db *gorm.DB) *VerificationService {
	return &VerificationService{
		db:       db,
		clubRepo: repository.NewClubRepository(db),
		logger:   slog.Default().With(slog.String("component", "verification")),
	}
}

func (s *VerificationService) IsProgramLive(ctx context.Context, programID int64) (bool, error) {
	club, err := s.clubRepo.GetClubByProgram(ctx, nil, programID)
	if err != nil {
		return false, err
	}
	return club.IsLive(), nil
}

// requireLive fails with ErrProgramNotLive unless the club owning programID is
// verified or official, as seen by tx.
func requireLive(ctx context.Context, tx *gorm.DB, clubRepo *repository.ClubRepository, programID int64) error {
	club, err := clubRepo.GetClubByProgram(ctx, tx, programID)
	if err != nil {
		return err
	}
	if !club.IsLive() {
		return fmt.Errorf("%w: club %d is %s", ErrProgramNotLive, club.ID, club.Status)
	}
	return nil
}

type EvaluateClubRequest struct {
	ClubID              int64   `json:"club_id" binding:"required"`
	OfficialEmailDomain *string `json:"official_email_domain"`
	PublicLink          *string `json:"public_link"`
	AuthorityDeclared   *bool   `json:"authority_declared"`
}

// EvaluateClub records any criteria in req, then promotes a pending club to
// verified once enough criteria are present. Other statuses are left alone.
func (s *VerificationService) EvaluateClub(ctx context.Context, req *EvaluateClubRequest) (*model.Club, error) {
	err := s.clubRepo.UpdateCriteria(ctx, req.ClubID, repository.ClubCriteria{
		OfficialEmailDomain: req.OfficialEmailDomain,
		PublicLink:          req.PublicLink,
		AuthorityDeclared:   req.AuthorityDeclared,
	})
	if err != nil {
		return nil, err
	}

	club, err := s.clubRepo.GetClub(ctx, req.ClubID)
	if err != nil {
		return nil, err
	}
	if club.Status != model.ClubStatusPending || club.CriteriaMet() < model.VerifiedCriteriaThreshold {
		return club, nil
	}

	if err := s.clubRepo.UpdateStatus(ctx, club.ID, model.ClubStatusPending, model.ClubStatusVerified, systemActor); err != nil {
		return nil, classify(err)
	}
	s.logger.Info("club verified", slog.Int64("club_id", club.ID), slog.Int("criteria", club.CriteriaMet()))
	return s.clubRepo.GetClub(ctx, club.ID)
}

// ForceVerify makes the club official regardless of criteria.
func (s *VerificationService) ForceVerify(ctx context.Context, clubID int64, admin string) (*model.Club, error) {
	return s.moveTo(ctx, clubID, model.ClubStatusOfficial, admin)
}

// Suspend stops the club's programs from moving points.
func (s *VerificationService) Suspend(ctx context.Context, clubID int64, admin string) (*model.Club, error) {
	return s.moveTo(ctx, clubID, model.ClubStatusSuspended, admin)
}

func (s *VerificationService) moveTo(ctx context.Context, clubID int64, status, admin string) (*model.Club, error) {
	if admin == "" {
		return nil, fmt.Errorf("%w: admin required", ErrInvalidRequest)
	}
	club, err := s.clubRepo.GetClub(ctx, clubID)
	if err != nil {
		return nil, err
	}
	if club.Status == status {
		return club, nil
	}

	if err := s.clubRepo.UpdateStatus(ctx, clubID, club.Status, status, admin); err != nil {
		return nil, classify(err)
	}

	s.logger.Info("club status changed",
		slog.Int64("club_id", clubID),
		slog.String("from", club.Status),
		slog.String("to", status),
		slog.String("admin", admin),
	)
	return s.clubRepo.GetClub(ctx, clubID)
}
