package handler

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"fanloyalty/internal/config"
	"fanloyalty/internal/model"
	"fanloyalty/internal/testutil"
	"fanloyalty/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type envelope struct {
	Code      int             `json:"code"`
	Message   string          `json:"message"`
	Retryable bool            `json:"retryable"`
	Data      json.RawMessage `json:"data"`
}

func newRouter(t *testing.T) (*gin.Engine, *gorm.DB) {
	t.Helper()
	db := testutil.NewDB(t)
	cfg := &config.Config{
		Server: config.ServerConfig{Mode: gin.TestMode},
		Redis:  config.RedisConfig{TTL: time.Minute},
		Kafka: config.KafkaConfig{Topic: config.KafkaTopicConfig{
			Points: "loyalty.points",
			Claims: "loyalty.claims",
		}},
		Business: config.BusinessConfig{ApplyTierMultiplier: true, DayBoundaryTimezone: "UTC"},
	}
	return SetupRouter(db, nil, cfg), db
}

func do(t *testing.T, r http.Handler, method, path string, body any, headers ...string) (int, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var env envelope
	if w.Code == http.StatusOK {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	}
	return w.Code, env
}

func TestEarnAndSpendOverHTTP(t *testing.T) {
	r, db := newRouter(t)
	_, program := testutil.SeedProgram(t, db, model.ClubStatusVerified)
	activity := testutil.SeedActivity(t, db, program.ID, 120, func(a *model.Activity) { a.Frequency = model.FrequencyOnceEver })
	reward := testutil.SeedReward(t, db, program.ID, 100)

	status, env := do(t, r, http.MethodPost, "/api/v1/membership/join", gin.H{"fan_id": 77, "program_id": program.ID})
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, response.CodeSuccess, env.Code, env.Message)
	var membership model.Membership
	require.NoError(t, json.Unmarshal(env.Data, &membership))

	_, env = do(t, r, http.MethodPost, "/api/v1/activity/complete", gin.H{"membership_id": membership.ID, "activity_id": activity.ID})
	require.Equal(t, response.CodeSuccess, env.Code, env.Message)
	var completion struct {
		PointsEarned int64 `json:"points_earned"`
		Balance      int64 `json:"balance"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &completion))
	assert.Equal(t, int64(120), completion.PointsEarned)

	_, env = do(t, r, http.MethodPost, "/api/v1/activity/complete", gin.H{"membership_id": membership.ID, "activity_id": activity.ID})
	assert.Equal(t, response.CodeAlreadyCompleted, env.Code)
	assert.False(t, env.Retryable)

	_, env = do(t, r, http.MethodPost, "/api/v1/reward/redeem",
		gin.H{"membership_id": membership.ID, "reward_id": reward.ID}, "X-Request-ID", "redeem-1")
	require.Equal(t, response.CodeSuccess, env.Code, env.Message)
	var redeemed struct {
		BalanceAfter int64 `json:"balance_after"`
		Replayed     bool  `json:"replayed"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &redeemed))
	assert.Equal(t, int64(20), redeemed.BalanceAfter)

	_, env = do(t, r, http.MethodPost, "/api/v1/reward/redeem",
		gin.H{"membership_id": membership.ID, "reward_id": reward.ID}, "X-Request-ID", "redeem-1")
	require.Equal(t, response.CodeSuccess, env.Code, env.Message)
	require.NoError(t, json.Unmarshal(env.Data, &redeemed))
	assert.True(t, redeemed.Replayed)

	_, env = do(t, r, http.MethodPost, "/api/v1/reward/redeem", gin.H{"membership_id": membership.ID, "reward_id": reward.ID})
	assert.Equal(t, response.CodeInsufficientPoints, env.Code)

	_, env = do(t, r, http.MethodGet, fmt.Sprintf("/api/v1/membership/standing?membership_id=%d", membership.ID), nil)
	require.Equal(t, response.CodeSuccess, env.Code, env.Message)
	var standing struct {
		Balance        int64 `json:"balance"`
		LifetimeEarned int64 `json:"lifetime_earned"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &standing))
	assert.Equal(t, int64(20), standing.Balance)
	assert.Equal(t, int64(120), standing.LifetimeEarned)

	_, env = do(t, r, http.MethodGet, fmt.Sprintf("/api/v1/membership/transactions?membership_id=%d", membership.ID), nil)
	require.Equal(t, response.CodeSuccess, env.Code, env.Message)
	var page struct {
		Total int64 `json:"total"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &page))
	assert.Equal(t, int64(2), page.Total)

	_, env = do(t, r, http.MethodGet, fmt.Sprintf("/api/v1/membership/completions?membership_id=%d", membership.ID), nil)
	require.Equal(t, response.CodeSuccess, env.Code, env.Message)
	var history struct {
		Total int64 `json:"total"`
		List  []struct {
			ActivityID   int64 `json:"activity_id"`
			PointsEarned int64 `json:"points_earned"`
		} `json:"list"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &history))
	assert.Equal(t, int64(1), history.Total)
	require.Len(t, history.List, 1)
	assert.Equal(t, activity.ID, history.List[0].ActivityID)
	assert.Equal(t, int64(120), history.List[0].PointsEarned)

	_, env = do(t, r, http.MethodGet, "/api/v1/membership/completions?membership_id=99999", nil)
	assert.Equal(t, response.CodeNotFound, env.Code)
}

func TestClaimFlowOverHTTP(t *testing.T) {
	r, db := newRouter(t)
	_, program := testutil.SeedProgram(t, db, model.ClubStatusOfficial)
	member := testutil.SeedMembership(t, db, program.ID)
	activity := testutil.SeedActivity(t, db, program.ID, 40, func(a *model.Activity) {
		a.VerificationMethod = model.VerificationManual
	})

	_, env := do(t, r, http.MethodPost, "/api/v1/claim/submit", gin.H{
		"membership_id": member.ID,
		"activity_id":   activity.ID,
		"proof":         gin.H{"method": "manual", "manual": gin.H{"description": "ticket stub"}},
	})
	require.Equal(t, response.CodeSuccess, env.Code, env.Message)
	var claim model.ManualClaim
	require.NoError(t, json.Unmarshal(env.Data, &claim))

	_, env = do(t, r, http.MethodGet, fmt.Sprintf("/api/v1/claim/pending?program_id=%d", program.ID), nil)
	require.Equal(t, response.CodeSuccess, env.Code, env.Message)
	assert.Contains(t, string(env.Data), claim.ClaimNo)

	_, env = do(t, r, http.MethodPost, "/api/v1/claim/review", gin.H{"claim_no": claim.ClaimNo, "decision": "maybe", "reviewer": "s1"})
	assert.Equal(t, response.CodeParamError, env.Code)

	_, env = do(t, r, http.MethodPost, "/api/v1/claim/review", gin.H{"claim_no": claim.ClaimNo, "decision": "approve", "reviewer": "s1"})
	require.Equal(t, response.CodeSuccess, env.Code, env.Message)

	_, env = do(t, r, http.MethodPost, "/api/v1/claim/review", gin.H{"claim_no": claim.ClaimNo, "decision": "reject", "reviewer": "s2"})
	assert.Equal(t, response.CodeClaimAlreadyResolved, env.Code)

	assert.Equal(t, int64(40), testutil.Reload(t, db, member.ID).Balance)
}

func TestClubAdminOverHTTP(t *testing.T) {
	r, db := newRouter(t)
	club, program := testutil.SeedProgram(t, db, model.ClubStatusPending)
	member := testutil.SeedMembership(t, db, program.ID)
	activity := testutil.SeedActivity(t, db, program.ID, 10)
	livePath := fmt.Sprintf("/api/v1/program/live?program_id=%d", program.ID)

	_, env := do(t, r, http.MethodGet, livePath, nil)
	require.Equal(t, response.CodeSuccess, env.Code, env.Message)
	assert.JSONEq(t, fmt.Sprintf(`{"program_id":%d,"live":false}`, program.ID), string(env.Data))

	_, env = do(t, r, http.MethodPost, "/api/v1/activity/complete", gin.H{"membership_id": member.ID, "activity_id": activity.ID})
	assert.Equal(t, response.CodeProgramNotLive, env.Code)

	_, env = do(t, r, http.MethodPost, "/api/v1/admin/club/evaluate", gin.H{
		"club_id":               club.ID,
		"official_email_domain": "rovers.example",
		"public_link":           "https://rovers.example",
	})
	require.Equal(t, response.CodeSuccess, env.Code, env.Message)

	_, env = do(t, r, http.MethodGet, livePath, nil)
	assert.JSONEq(t, fmt.Sprintf(`{"program_id":%d,"live":true}`, program.ID), string(env.Data))

	_, env = do(t, r, http.MethodPost, "/api/v1/admin/club/suspend", gin.H{"club_id": club.ID})
	assert.Equal(t, response.CodeParamError, env.Code)

	_, env = do(t, r, http.MethodPost, "/api/v1/admin/club/suspend", gin.H{"club_id": club.ID, "admin": "league"})
	require.Equal(t, response.CodeSuccess, env.Code, env.Message)

	_, env = do(t, r, http.MethodPost, "/api/v1/admin/club/force-verify", gin.H{"club_id": club.ID, "admin": "league"})
	require.Equal(t, response.CodeSuccess, env.Code, env.Message)
	var verified model.Club
	require.NoError(t, json.Unmarshal(env.Data, &verified))
	assert.Equal(t, model.ClubStatusOfficial, verified.Status)
}

func TestParamAndNotFoundErrors(t *testing.T) {
	r, _ := newRouter(t)

	_, env := do(t, r, http.MethodGet, "/api/v1/membership/standing", nil)
	assert.Equal(t, response.CodeParamError, env.Code)

	_, env = do(t, r, http.MethodGet, "/api/v1/membership/standing?membership_id=abc", nil)
	assert.Equal(t, response.CodeParamError, env.Code)

	_, env = do(t, r, http.MethodGet, "/api/v1/membership/standing?membership_id=404", nil)
	assert.Equal(t, response.CodeNotFound, env.Code)

	_, env = do(t, r, http.MethodPost, "/api/v1/activity/complete", gin.H{"activity_id": 1})
	assert.Equal(t, response.CodeParamError, env.Code)

	_, env = do(t, r, http.MethodPost, "/api/v1/membership/join", gin.H{"fan_id": 1, "program_id": 999})
	assert.Equal(t, response.CodeNotFound, env.Code)
}

func TestHealthAndRequestID(t *testing.T) {
	r, _ := newRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Request-ID", "trace-1")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
	assert.Equal(t, "trace-1", w.Header().Get("X-Request-ID"))

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}
