package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/campushub/gamification/internal/application/command"
	"github.com/campushub/gamification/internal/application/engine"
	"github.com/campushub/gamification/internal/application/eventhandler"
	"github.com/campushub/gamification/internal/domain/gamification"
	"github.com/campushub/gamification/internal/infrastructure/messaging"
	"github.com/campushub/gamification/internal/infrastructure/persistence/memory"
	"github.com/campushub/gamification/internal/interface/http/handlers"
	"github.com/campushub/gamification/pkg/logger"
)

const testAdminKey = "staff-key"

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *APIError       `json:"error"`
	Meta    *ResponseMeta   `json:"meta"`
}

type testServer struct {
	store   *memory.Store
	svc     *engine.Service
	handler http.Handler
}

func newTestServer(t *testing.T, health handlers.HealthChecker) *testServer {
	t.Helper()

	store := memory.New()
	bus := messaging.NewInMemoryEventBus(messaging.DefaultInMemoryEventBusConfig())
	t.Cleanup(func() { _ = bus.Close() })

	svc, err := engine.NewService(store, gamification.DefaultPointsTable(), bus, nil)
	require.NoError(t, err)
	require.NoError(t, eventhandler.NewActivityHooks(svc, nil).Register(bus))

	hash, err := bcrypt.GenerateFromPassword([]byte(testAdminKey), bcrypt.MinCost)
	require.NoError(t, err)

	cfg := DefaultConfig()
	cfg.RateLimitPerMinute = 0

	srv, err := NewServer(cfg, Dependencies{
		Service:               svc,
		RecordActivityHandler: command.NewRecordActivityHandler(bus, nil),
		AdminAuth:             handlers.NewAdminKeyAuth("", []string{string(hash)}),
		Metrics: http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = io.WriteString(w, "# metrics\n")
		}),
		HealthChecker: health,
		Logger:        logger.New(logger.Options{Output: io.Discard, Level: logger.LevelError}),
	})
	require.NoError(t, err)

	return &testServer{store: store, svc: svc, handler: srv.Handler()}
}

func (ts *testServer) addUser(id, username string, points int64) {
	ts.store.AddUser(&gamification.User{
		ID:               id,
		Username:         username,
		TotalPoints:      points,
		ExperiencePoints: points,
	})
}

func (ts *testServer) addAchievement(t *testing.T, id string, cond gamification.Condition, points int) {
	t.Helper()
	a, err := gamification.NewAchievement(gamification.NewAchievementParams{
		ID:        id,
		Code:      id,
		Name:      "Achievement " + id,
		Type:      gamification.TypeMilestone,
		Tier:      gamification.TierBronze,
		Points:    points,
		Condition: cond,
		IsActive:  true,
	})
	require.NoError(t, err)
	_, err = ts.store.Achievements().GetOrCreate(context.Background(), a)
	require.NoError(t, err)
}

func (ts *testServer) do(t *testing.T, method, path, body string, header map[string]string) (int, envelope) {
	t.Helper()

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range header {
		req.Header.Set(k, v)
	}

	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)

	var env envelope
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.NewDecoder(bytes.NewReader(rec.Body.Bytes())).Decode(&env))
	}
	return rec.Code, env
}

func decodeData[T any](t *testing.T, env envelope) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(env.Data, &out))
	return out
}

// ─────────────────────────────────────────────────────────────────────────────
// Read endpoints
// ─────────────────────────────────────────────────────────────────────────────

func TestLeaderboard_Limits(t *testing.T) {
	ts := newTestServer(t, nil)
	ts.addUser("u1", "zoe", 300)
	ts.addUser("u2", "amy", 500)
	ts.addUser("u3", "bob", 300)

	code, env := ts.do(t, http.MethodGet, "/api/v1/leaderboard", "", nil)
	require.Equal(t, http.StatusOK, code)
	entries := decodeData[[]gamification.LeaderboardEntry](t, env)
	require.Len(t, entries, 3)
	assert.Equal(t, []string{"amy", "bob", "zoe"}, []string{entries[0].Username, entries[1].Username, entries[2].Username})
	assert.Equal(t, []int{1, 2, 3}, []int{entries[0].Rank, entries[1].Rank, entries[2].Rank})
	assert.Equal(t, "store", env.Meta.Source)

	code, env = ts.do(t, http.MethodGet, "/api/v1/leaderboard?limit=0", "", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, decodeData[[]gamification.LeaderboardEntry](t, env), 1)

	code, env = ts.do(t, http.MethodGet, "/api/v1/leaderboard?limit=ten", "", nil)
	assert.Equal(t, http.StatusBadRequest, code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "invalid_limit", env.Error.Code)
}

func TestUserStats(t *testing.T) {
	ts := newTestServer(t, nil)
	ts.addUser("u1", "amy", 1500)
	ts.store.SetActivity("u1", 4, 2)

	code, env := ts.do(t, http.MethodGet, "/api/v1/users/u1/stats", "", nil)
	require.Equal(t, http.StatusOK, code)

	stats := decodeData[UserStatsDTO](t, env)
	assert.Equal(t, 2, stats.Level)
	assert.Equal(t, int64(1500), stats.TotalPoints)
	assert.Equal(t, int64(1500), stats.PointsToNextLevel)
	assert.Equal(t, 50, stats.LevelProgress)
	assert.Equal(t, int64(4), stats.TotalPosts)
	assert.Equal(t, int64(2), stats.TotalComments)
	assert.Len(t, stats.PointsBySource, len(gamification.AllSources()))

	code, env = ts.do(t, http.MethodGet, "/api/v1/users/ghost/stats", "", nil)
	assert.Equal(t, http.StatusNotFound, code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "not_found", env.Error.Code)
}

func TestCheckAchievements_IsIdempotent(t *testing.T) {
	ts := newTestServer(t, nil)
	ts.addUser("u1", "amy", 150)
	ts.addAchievement(t, "century", gamification.Condition{Kind: gamification.ConditionTotalPoints, Threshold: 100}, 25)

	code, env := ts.do(t, http.MethodPost, "/api/v1/users/u1/achievements/check", "", nil)
	require.Equal(t, http.StatusOK, code)
	unlocked := decodeData[[]UnlockDTO](t, env)
	require.Len(t, unlocked, 1)
	assert.Equal(t, "century", unlocked[0].Achievement.Code)
	assert.Equal(t, int64(175), unlocked[0].TotalPoints)

	code, env = ts.do(t, http.MethodPost, "/api/v1/users/u1/achievements/check", "", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Empty(t, decodeData[[]UnlockDTO](t, env))

	code, env = ts.do(t, http.MethodGet, "/api/v1/users/u1/achievements", "", nil)
	require.Equal(t, http.StatusOK, code)
	earned := decodeData[[]EarnedAchievementDTO](t, env)
	require.Len(t, earned, 1)
	assert.Equal(t, "total_points", earned[0].Rule.Kind)
}

func TestListAchievements_ReportsTierAsLevel(t *testing.T) {
	ts := newTestServer(t, nil)
	ts.addAchievement(t, "century", gamification.Condition{Kind: gamification.ConditionTotalPoints, Threshold: 100}, 25)

	code, env := ts.do(t, http.MethodGet, "/api/v1/achievements", "", nil)
	require.Equal(t, http.StatusOK, code)
	require.NotNil(t, env.Meta)
	assert.Equal(t, 1, env.Meta.Count)

	var raw []map[string]any
	require.NoError(t, json.Unmarshal(env.Data, &raw))
	require.Len(t, raw, 1)
	assert.Equal(t, "bronze", raw[0]["level"])
	assert.Equal(t, "bronze", raw[0]["tier"])
	assert.Equal(t, "century", raw[0]["code"])
}

// ─────────────────────────────────────────────────────────────────────────────
// Activity ingestion
// ─────────────────────────────────────────────────────────────────────────────

func TestRecordActivity_AwardsThroughHooks(t *testing.T) {
	ts := newTestServer(t, nil)
	ts.addUser("u1", "amy", 0)

	code, _ := ts.do(t, http.MethodPost, "/api/v1/events",
		`{"type":"activity.post_created","user_id":"u1","subject":"Notes on graph theory"}`, nil)
	require.Equal(t, http.StatusAccepted, code)

	code, env := ts.do(t, http.MethodGet, "/api/v1/users/u1/points-history", "", nil)
	require.Equal(t, http.StatusOK, code)
	history := decodeData[[]PointsEntryDTO](t, env)
	require.Len(t, history, 1)
	assert.Equal(t, "post", history[0].Source)
	assert.Equal(t, 10, history[0].Points)
	assert.Contains(t, history[0].Description, "Notes on graph theory")
}

func TestRecordActivity_Validation(t *testing.T) {
	ts := newTestServer(t, nil)

	tests := []struct {
		name  string
		body  string
		code  string
		field string
	}{
		{"unknown type", `{"type":"activity.dance","user_id":"u1"}`, "validation_failed", "type"},
		{"missing user", `{"type":"activity.post_created"}`, "validation_failed", "user_id"},
		{"negative count", `{"type":"activity.login_streak","user_id":"u1","count":-2}`, "validation_failed", "count"},
		{"unknown field", `{"type":"activity.post_created","user_id":"u1","bonus":99}`, "invalid_body", ""},
		{"empty body", ``, "invalid_body", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, env := ts.do(t, http.MethodPost, "/api/v1/events", tt.body, nil)
			assert.Equal(t, http.StatusBadRequest, code)
			require.NotNil(t, env.Error)
			assert.Equal(t, tt.code, env.Error.Code)
			if tt.field != "" {
				assert.Contains(t, env.Error.Fields, tt.field)
			}
		})
	}
}

func TestRecordActivity_StreakWithoutCountIsRejected(t *testing.T) {
	ts := newTestServer(t, nil)

	code, env := ts.do(t, http.MethodPost, "/api/v1/events",
		`{"type":"activity.login_streak","user_id":"u1"}`, nil)
	assert.Equal(t, http.StatusBadRequest, code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "invalid_request", env.Error.Code)
}

// ─────────────────────────────────────────────────────────────────────────────
// Admin endpoints
// ─────────────────────────────────────────────────────────────────────────────

func TestAdminAwardPoints(t *testing.T) {
	ts := newTestServer(t, nil)
	ts.addUser("u1", "amy", 990)
	body := `{"user_id":"u1","points":20}`

	code, env := ts.do(t, http.MethodPost, "/api/v1/admin/award-points", body, nil)
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, "missing_api_key", env.Error.Code)

	code, _ = ts.do(t, http.MethodPost, "/api/v1/admin/award-points", body, map[string]string{"X-Admin-Key": "guess"})
	assert.Equal(t, http.StatusForbidden, code)

	code, env = ts.do(t, http.MethodPost, "/api/v1/admin/award-points", body, map[string]string{"Authorization": "Bearer " + testAdminKey})
	require.Equal(t, http.StatusOK, code)
	resp := decodeData[AwardPointsResponse](t, env)
	assert.True(t, resp.Success)
	assert.Equal(t, 20, resp.Points)
	assert.Equal(t, int64(1010), resp.TotalPoints)
	assert.Equal(t, int64(1010), resp.ExperiencePoints)
	assert.Equal(t, 2, resp.Level)
	assert.True(t, resp.LevelUp)
	assert.Equal(t, 1, resp.LevelChange)
	assert.Empty(t, resp.AchievementsUnlocked)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(env.Data, &raw))
	for _, key := range []string{"points", "total_points", "level", "level_up", "level_change", "experience_points", "achievements_unlocked"} {
		assert.Contains(t, raw, key)
	}

	history, err := ts.svc.PointsHistory(context.Background(), "u1", 10)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, gamification.SourceAdminBonus, history[0].Source)
	assert.Equal(t, "Admin awarded 20 points", history[0].Description)
}

func TestAdminAwardPoints_LevelUpUnlocksLevelAchievements(t *testing.T) {
	ts := newTestServer(t, nil)
	ts.addUser("u1", "amy", 990)
	ts.addAchievement(t, "level-two", gamification.Condition{Kind: gamification.ConditionLevelReached, Threshold: 2}, 30)
	auth := map[string]string{"X-Admin-Key": testAdminKey}

	code, env := ts.do(t, http.MethodPost, "/api/v1/admin/award-points", `{"user_id":"u1","points":20}`, auth)
	require.Equal(t, http.StatusOK, code)
	resp := decodeData[AwardPointsResponse](t, env)
	assert.Equal(t, int64(1010), resp.TotalPoints)
	require.Len(t, resp.AchievementsUnlocked, 1)
	unlock := resp.AchievementsUnlocked[0]
	assert.Equal(t, "level-two", unlock.Achievement.Code)
	assert.Equal(t, "bronze", unlock.Achievement.Level)
	assert.Equal(t, 30, unlock.PointsAwarded)
	assert.Equal(t, int64(1040), unlock.TotalPoints)

	code, env = ts.do(t, http.MethodGet, "/api/v1/users/u1/stats", "", nil)
	require.Equal(t, http.StatusOK, code)
	stats := decodeData[UserStatsDTO](t, env)
	assert.Equal(t, int64(1), stats.TotalAchievements)
	assert.Equal(t, int64(1040), stats.TotalPoints)
}

func TestAdminAwardPoints_NoLevelUpSkipsEvaluation(t *testing.T) {
	ts := newTestServer(t, nil)
	ts.addUser("u1", "amy", 0)
	ts.addAchievement(t, "starter", gamification.Condition{Kind: gamification.ConditionTotalPoints, Threshold: 10}, 5)
	auth := map[string]string{"X-Admin-Key": testAdminKey}

	code, env := ts.do(t, http.MethodPost, "/api/v1/admin/award-points", `{"user_id":"u1","points":20}`, auth)
	require.Equal(t, http.StatusOK, code)
	resp := decodeData[AwardPointsResponse](t, env)
	assert.False(t, resp.LevelUp)
	assert.Zero(t, resp.LevelChange)
	assert.Empty(t, resp.AchievementsUnlocked)

	count, err := ts.store.Achievements().CountEarned(context.Background(), "u1")
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestAdminAwardPoints_Errors(t *testing.T) {
	ts := newTestServer(t, nil)
	auth := map[string]string{"X-Admin-Key": testAdminKey}

	code, _ := ts.do(t, http.MethodPost, "/api/v1/admin/award-points", `{"user_id":"ghost","points":5}`, auth)
	assert.Equal(t, http.StatusNotFound, code)

	code, env := ts.do(t, http.MethodPost, "/api/v1/admin/award-points", `{"user_id":"u1","points":0}`, auth)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Contains(t, env.Error.Fields, "points")

	code, env = ts.do(t, http.MethodPost, "/api/v1/admin/award-points", `{"user_id":"u1","points":5,"source":"bribe"}`, auth)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "points_source", env.Error.Fields["source"])
}

func TestAdminGrantAchievement(t *testing.T) {
	ts := newTestServer(t, nil)
	ts.addUser("u1", "amy", 0)
	ts.addAchievement(t, "mentor", gamification.Condition{Kind: gamification.ConditionNone}, 40)
	auth := map[string]string{"X-Admin-Key": testAdminKey}
	body := `{"user_id":"u1","achievement_id":"mentor"}`

	code, env := ts.do(t, http.MethodPost, "/api/v1/admin/grant-achievement", body, auth)
	require.Equal(t, http.StatusCreated, code)
	unlock := decodeData[UnlockDTO](t, env)
	assert.Equal(t, 40, unlock.PointsAwarded)
	assert.Equal(t, int64(40), unlock.TotalPoints)

	code, env = ts.do(t, http.MethodPost, "/api/v1/admin/grant-achievement", body, auth)
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "conflict", env.Error.Code)

	code, _ = ts.do(t, http.MethodPost, "/api/v1/admin/grant-achievement", `{"user_id":"u1","achievement_id":"nope"}`, auth)
	assert.Equal(t, http.StatusNotFound, code)
}

// ─────────────────────────────────────────────────────────────────────────────
// Health & metrics
// ─────────────────────────────────────────────────────────────────────────────

func TestHealth_OptionalCheckKeepsStatusHealthy(t *testing.T) {
	checker := handlers.NewCompositeHealthChecker("test")
	checker.AddCheck("postgres", func(context.Context) error { return nil })
	checker.AddOptionalCheck("redis", func(context.Context) error { return errors.New("connection refused") })
	ts := newTestServer(t, checker)

	code, env := ts.do(t, http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusOK, code)
	status := decodeData[handlers.HealthStatus](t, env)
	assert.True(t, status.Healthy)
	assert.False(t, status.Checks["redis"].Healthy)

	checker.AddCheck("postgres", func(context.Context) error { return errors.New("down") })
	code, _ = ts.do(t, http.MethodGet, "/ready", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, code)
}

func TestMetricsAndRequestID(t *testing.T) {
	ts := newTestServer(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	req.Header.Set("X-Request-ID", "req-42")
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "req-42", rec.Header().Get("X-Request-ID"))
	assert.Contains(t, rec.Body.String(), "# metrics")
}
