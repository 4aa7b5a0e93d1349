package handler

import (
	"fanloyalty/internal/config"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"gorm.io/gorm"
)

func SetupRouter(db *gorm.DB, rdb *redis.Client, cfg *config.Config) *gin.Engine {
	mode := cfg.Server.Mode
	if mode == "" {
		mode = gin.ReleaseMode
	}
	gin.SetMode(mode)

	r := gin.New()
	r.Use(RecoveryMiddleware())
	r.Use(RequestIDMiddleware())
	r.Use(LoggerMiddleware())
	r.Use(CORSMiddleware())

	h := NewHandler(db, rdb, cfg)

	api := r.Group("/api/v1")
	{
		membership := api.Group("/membership")
		{
			membership.POST("/join", h.Join)
			membership.GET("/standing", h.GetStanding)
			membership.GET("/transactions", h.ListTransactions)
			membership.GET("/completions", h.ListCompletions)
		}

		activity := api.Group("/activity")
		{
			activity.POST("/complete", h.CompleteActivity)
		}

		claim := api.Group("/claim")
		{
			claim.POST("/submit", h.SubmitClaim)
			claim.POST("/review", h.ReviewClaim)
			claim.GET("/pending", h.ListPendingClaims)
		}

		reward := api.Group("/reward")
		{
			reward.POST("/redeem", h.Redeem)
			reward.GET("/recommended", h.RecommendedRewards)
			reward.POST("/fulfill", h.FulfillRedemption)
		}

		api.GET("/program/live", h.ProgramLive)

		admin := api.Group("/admin/club")
		{
			admin.POST("/evaluate", h.EvaluateClub)
			admin.POST("/force-verify", h.ForceVerifyClub)
			admin.POST("/suspend", h.SuspendClub)
		}
	}

	r.GET("/health", h.Health)

	return r
}
