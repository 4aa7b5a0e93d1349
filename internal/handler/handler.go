package handler

import (
	"errors"
	"log/slog"
	"strconv"

	"fanloyalty/internal/config"
	"fanloyalty/internal/infrastructure/cache"
	"fanloyalty/internal/repository"
	"fanloyalty/internal/service"
	"fanloyalty/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"gorm.io/gorm"
)

type Handler struct {
	membershipService   *service.MembershipService
	completionService   *service.CompletionService
	claimService        *service.ClaimService
	tierService         *service.TierService
	redemptionService   *service.RedemptionService
	verificationService *service.VerificationService
	db                  *gorm.DB
}

// NewHandler wires every service. rdb may be nil, in which case standing is
// always computed from the store.
func NewHandler(db *gorm.DB, rdb *redis.Client, cfg *config.Config) *Handler {
	standing := cache.NewStandingCache(rdb, cfg.Redis.TTL)
	completions := service.NewCompletionService(db, cfg, standing)
	tiers := service.NewTierService(db, cfg, standing)
	return &Handler{
		membershipService:   service.NewMembershipService(db),
		completionService:   completions,
		claimService:        service.NewClaimService(db, cfg, completions),
		tierService:         tiers,
		redemptionService:   service.NewRedemptionService(db, cfg, standing, tiers),
		verificationService: service.NewVerificationService(db),
		db:                  db,
	}
}

var businessErrors = []struct {
	err  error
	code int
}{
	{service.ErrNotEligible, response.CodeNotEligible},
	{service.ErrProgramNotLive, response.CodeProgramNotLive},
	{service.ErrAlreadyCompleted, response.CodeAlreadyCompleted},
	{service.ErrInsufficientPoints, response.CodeInsufficientPoints},
	{service.ErrOutOfStock, response.CodeOutOfStock},
	{service.ErrRewardInactive, response.CodeRewardInactive},
	{service.ErrClaimAlreadyResolved, response.CodeClaimAlreadyResolved},
	{service.ErrDuplicatePendingClaim, response.CodeDuplicatePendingClaim},
	{repository.ErrAlreadyFulfilled, response.CodeAlreadyFulfilled},
	{repository.ErrNotManualFulfillment, response.CodeNotManualFulfillment},
}

var notFoundErrors = []error{
	repository.ErrMembershipNotFound,
	repository.ErrActivityNotFound,
	repository.ErrClaimNotFound,
	repository.ErrRewardNotFound,
	repository.ErrRedemptionNotFound,
	repository.ErrClubNotFound,
	repository.ErrProgramNotFound,
}

// fail writes err as the envelope code it maps to. Unknown errors are logged
// and reported without their text.
func fail(c *gin.Context, err error) {
	if service.IsRetryable(err) {
		response.RetryableError(c, response.CodeConcurrencyConflict, err.Error())
		return
	}
	if errors.Is(err, service.ErrInvalidRequest) {
		response.ParamError(c, err.Error())
		return
	}
	for _, be := range businessErrors {
		if errors.Is(err, be.err) {
			response.BusinessError(c, be.code, err.Error())
			return
		}
	}
	for _, nf := range notFoundErrors {
		if errors.Is(err, nf) {
			response.NotFound(c, err.Error())
			return
		}
	}

	slog.Error("request failed",
		slog.String("method", c.Request.Method),
		slog.String("path", c.FullPath()),
		slog.String("request_id", c.GetString(requestIDKey)),
		slog.Any("err", err),
	)
	response.ServerError(c, "internal error")
}

func queryID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Query(name), 10, 64)
	if err != nil || id <= 0 {
		response.ParamError(c, name+" is required")
		return 0, false
	}
	return id, true
}

func queryPage(c *gin.Context) (int, int) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	return page, pageSize
}

// Join enrolls a fan in a program.
// POST /api/v1/membership/join
func (h *Handler) Join(c *gin.Context) {
	var req service.JoinRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "invalid params: "+err.Error())
		return
	}

	membership, err := h.membershipService.Join(c.Request.Context(), &req)
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, membership)
}

// GET /api/v1/membership/standing?membership_id=
func (h *Handler) GetStanding(c *gin.Context) {
	membershipID, ok := queryID(c, "membership_id")
	if !ok {
		return
	}

	standing, err := h.tierService.GetStanding(c.Request.Context(), membershipID)
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, standing)
}

// GET /api/v1/membership/transactions?membership_id=&page=&page_size=
func (h *Handler) ListTransactions(c *gin.Context) {
	membershipID, ok := queryID(c, "membership_id")
	if !ok {
		return
	}
	page, pageSize := queryPage(c)

	list, total, err := h.membershipService.ListTransactions(c.Request.Context(), membershipID, page, pageSize)
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, gin.H{
		"list":      list,
		"total":     total,
		"page":      page,
		"page_size": pageSize,
	})
}

// GET /api/v1/membership/completions?membership_id=&page=&page_size=
func (h *Handler) ListCompletions(c *gin.Context) {
	membershipID, ok := queryID(c, "membership_id")
	if !ok {
		return
	}
	page, pageSize := queryPage(c)

	list, total, err := h.membershipService.ListCompletions(c.Request.Context(), membershipID, page, pageSize)
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, gin.H{
		"list":      list,
		"total":     total,
		"page":      page,
		"page_size": pageSize,
	})
}

// CompleteActivity is called by a verification front-end once the fan has
// satisfied the activity's real-world condition.
// POST /api/v1/activity/complete
func (h *Handler) CompleteActivity(c *gin.Context) {
	var req service.CompletionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "invalid params: "+err.Error())
		return
	}

	result, err := h.completionService.AttemptCompletion(c.Request.Context(), &req)
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, result)
}

// POST /api/v1/claim/submit
func (h *Handler) SubmitClaim(c *gin.Context) {
	var req service.SubmitClaimRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "invalid params: "+err.Error())
		return
	}

	claim, err := h.claimService.SubmitClaim(c.Request.Context(), &req)
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, claim)
}

// POST /api/v1/claim/review
func (h *Handler) ReviewClaim(c *gin.Context) {
	var req service.ReviewClaimRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "invalid params: "+err.Error())
		return
	}

	claim, err := h.claimService.ReviewClaim(c.Request.Context(), &req)
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, claim)
}

// GET /api/v1/claim/pending?program_id=&page=&page_size=
func (h *Handler) ListPendingClaims(c *gin.Context) {
	programID, ok := queryID(c, "program_id")
	if !ok {
		return
	}
	page, pageSize := queryPage(c)

	list, total, err := h.claimService.ListPendingClaims(c.Request.Context(), programID, page, pageSize)
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, gin.H{
		"list":      list,
		"total":     total,
		"page":      page,
		"page_size": pageSize,
	})
}

// Redeem spends points on a reward. The idempotency key is request_id in the
// body, or the X-Request-ID header when the body has none.
// POST /api/v1/reward/redeem
func (h *Handler) Redeem(c *gin.Context) {
	var req service.RedeemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "invalid params: "+err.Error())
		return
	}
	if req.RequestID == "" {
		req.RequestID = c.GetHeader(requestIDHeader)
	}

	result, err := h.redemptionService.Redeem(c.Request.Context(), &req)
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, result)
}

// GET /api/v1/reward/recommended?membership_id=
func (h *Handler) RecommendedRewards(c *gin.Context) {
	membershipID, ok := queryID(c, "membership_id")
	if !ok {
		return
	}

	list, err := h.redemptionService.RecommendedRewards(c.Request.Context(), membershipID)
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, gin.H{"list": list})
}

// POST /api/v1/reward/fulfill
func (h *Handler) FulfillRedemption(c *gin.Context) {
	var req service.FulfillRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "invalid params: "+err.Error())
		return
	}

	redemption, err := h.redemptionService.MarkFulfilled(c.Request.Context(), &req)
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, redemption)
}

// GET /api/v1/program/live?program_id=
func (h *Handler) ProgramLive(c *gin.Context) {
	programID, ok := queryID(c, "program_id")
	if !ok {
		return
	}

	live, err := h.verificationService.IsProgramLive(c.Request.Context(), programID)
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, gin.H{"program_id": programID, "live": live})
}

// POST /api/v1/admin/club/evaluate
func (h *Handler) EvaluateClub(c *gin.Context) {
	var req service.EvaluateClubRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "invalid params: "+err.Error())
		return
	}

	club, err := h.verificationService.EvaluateClub(c.Request.Context(), &req)
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, club)
}

type clubAdminRequest struct {
	ClubID int64  `json:"club_id" binding:"required"`
	Admin  string `json:"admin" binding:"required"`
}

// POST /api/v1/admin/club/force-verify
func (h *Handler) ForceVerifyClub(c *gin.Context) {
	var req clubAdminRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "invalid params: "+err.Error())
		return
	}

	club, err := h.verificationService.ForceVerify(c.Request.Context(), req.ClubID, req.Admin)
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, club)
}

// POST /api/v1/admin/club/suspend
func (h *Handler) SuspendClub(c *gin.Context) {
	var req clubAdminRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "invalid params: "+err.Error())
		return
	}

	club, err := h.verificationService.Suspend(c.Request.Context(), req.ClubID, req.Admin)
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, club)
}

// Health pings the store.
func (h *Handler) Health(c *gin.Context) {
	sqlDB, err := h.db.DB()
	if err == nil {
		err = sqlDB.PingContext(c.Request.Context())
	}
	if err != nil {
		c.JSON(503, gin.H{"status": "unavailable"})
		return
	}
	c.JSON(200, gin.H{"status": "ok"})
}
