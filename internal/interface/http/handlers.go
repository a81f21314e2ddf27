package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/campushub/gamification/internal/application/command"
	"github.com/campushub/gamification/internal/application/engine"
	"github.com/campushub/gamification/internal/application/query"
	"github.com/campushub/gamification/internal/domain/gamification"
	"github.com/campushub/gamification/internal/domain/shared"
	"github.com/campushub/gamification/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// HEALTH & STATUS HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleRoot serves the root endpoint with basic API information.
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, map[string]interface{}{
		"name":    "Campus Hub Gamification API",
		"version": s.config.Version,
		"endpoints": map[string]string{
			"health":       "/health",
			"achievements": "/api/v1/achievements",
			"leaderboard":  "/api/v1/leaderboard",
			"user_stats":   "/api/v1/users/{id}/stats",
		},
	})
}

// handleHealth handles the health check endpoint.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.deps.HealthChecker != nil {
		status := s.deps.HealthChecker.Check(r.Context())
		code := http.StatusOK
		if !status.Healthy {
			code = http.StatusServiceUnavailable
		}
		writeJSON(w, r, code, status)
		return
	}

	writeJSON(w, r, http.StatusOK, map[string]interface{}{
		"status":  "healthy",
		"uptime":  s.Uptime().String(),
		"version": s.config.Version,
	})
}

// handleReady handles the readiness endpoint (for Kubernetes).
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.deps.HealthChecker != nil {
		status := s.deps.HealthChecker.Check(r.Context())
		if !status.Ready {
			writeJSON(w, r, http.StatusServiceUnavailable, map[string]string{
				"status": "not_ready",
				"reason": status.Message,
			})
			return
		}
	}

	writeJSON(w, r, http.StatusOK, map[string]string{"status": "ready"})
}

// handleLive handles the liveness endpoint (for Kubernetes).
func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, map[string]string{"status": "alive"})
}

// ══════════════════════════════════════════════════════════════════════════════
// CATALOG & LEADERBOARD HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleListAchievements handles GET /api/v1/achievements
func (s *Server) handleListAchievements(w http.ResponseWriter, r *http.Request) {
	list, err := s.deps.Service.Catalog().Active(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	dtos := toAchievementDTOs(list)
	writeJSONWithMeta(w, r, http.StatusOK, dtos, &ResponseMeta{Count: len(dtos)})
}

// handleGetLeaderboard handles GET /api/v1/leaderboard
func (s *Server) handleGetLeaderboard(w http.ResponseWriter, r *http.Request) {
	limit, err := parseLimit(r)
	if err != nil {
		writeJSONError(w, r, http.StatusBadRequest, "invalid_limit", err.Error())
		return
	}

	result, err := s.deps.GetLeaderboardHandler.Handle(r.Context(), query.GetLeaderboardQuery{Limit: limit})
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	writeJSONWithMeta(w, r, http.StatusOK, result.Entries, &ResponseMeta{
		Count:  len(result.Entries),
		Source: result.Source,
	})
}

// ══════════════════════════════════════════════════════════════════════════════
// USER HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleGetUserStats handles GET /api/v1/users/{id}/stats
func (s *Server) handleGetUserStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.deps.Service.GetUserStats(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, toUserStatsDTO(stats))
}

// handleGetUserAchievements handles GET /api/v1/users/{id}/achievements
func (s *Server) handleGetUserAchievements(w http.ResponseWriter, r *http.Request) {
	earned, err := s.deps.Service.UserAchievements(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	dtos := toEarnedDTOs(earned)
	writeJSONWithMeta(w, r, http.StatusOK, dtos, &ResponseMeta{Count: len(dtos)})
}

// handleGetPointsHistory handles GET /api/v1/users/{id}/points-history
func (s *Server) handleGetPointsHistory(w http.ResponseWriter, r *http.Request) {
	limit, err := parseLimit(r)
	if err != nil {
		writeJSONError(w, r, http.StatusBadRequest, "invalid_limit", err.Error())
		return
	}

	entries, err := s.deps.Service.PointsHistory(r.Context(), r.PathValue("id"), limit)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	dtos := toPointsEntryDTOs(entries)
	writeJSONWithMeta(w, r, http.StatusOK, dtos, &ResponseMeta{Count: len(dtos)})
}

// handleCheckAchievements handles POST /api/v1/users/{id}/achievements/check
func (s *Server) handleCheckAchievements(w http.ResponseWriter, r *http.Request) {
	unlocked, err := s.deps.Service.CheckAchievements(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	dtos := toUnlockDTOs(unlocked)
	writeJSONWithMeta(w, r, http.StatusOK, dtos, &ResponseMeta{Count: len(dtos)})
}

// ══════════════════════════════════════════════════════════════════════════════
// ACTIVITY INGESTION
// ══════════════════════════════════════════════════════════════════════════════

// handleRecordActivity handles POST /api/v1/events
func (s *Server) handleRecordActivity(w http.ResponseWriter, r *http.Request) {
	var req RecordActivityRequest
	if !s.decodeAndValidate(w, r, &req) {
		return
	}

	correlationID := req.CorrelationID
	if correlationID == "" {
		correlationID = getRequestID(r.Context())
	}

	result, err := s.deps.RecordActivityHandler.Handle(r.Context(), command.RecordActivityCommand{
		UserID:        req.UserID,
		Type:          shared.EventType(req.Type),
		Subject:       req.Subject,
		Count:         req.Count,
		CorrelationID: correlationID,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	writeJSON(w, r, http.StatusAccepted, result)
}

// ══════════════════════════════════════════════════════════════════════════════
// ADMIN HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleAdminAwardPoints handles POST /api/v1/admin/award-points
func (s *Server) handleAdminAwardPoints(w http.ResponseWriter, r *http.Request) {
	var req AwardPointsRequest
	if !s.decodeAndValidate(w, r, &req) {
		return
	}

	source := gamification.SourceAdminBonus
	if req.Source != "" {
		source = gamification.Source(req.Source)
	}
	description := strings.TrimSpace(req.Description)
	if description == "" {
		description = fmt.Sprintf("Admin awarded %d points", req.Points)
	}

	result, err := s.deps.Service.AwardPoints(r.Context(), req.UserID, source,
		engine.WithPoints(req.Points),
		engine.WithDescription(description),
	)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	log := logger.FromContext(r.Context(), s.logger)
	log.Info("admin awarded points",
		logger.UserID(req.UserID),
		logger.Source(string(source)),
		logger.Points(req.Points),
		logger.TotalPoints(result.TotalPoints),
	)

	resp := AwardPointsResponse{
		Success:              true,
		EntryID:              result.EntryID,
		Points:               result.Points,
		TotalPoints:          result.TotalPoints,
		ExperiencePoints:     result.ExperiencePoints,
		Level:                result.Level,
		LevelUp:              result.LevelUp,
		LevelChange:          result.LevelChange,
		AchievementsUnlocked: []UnlockDTO{},
	}

	// A new level can satisfy level achievements. The award fields above
	// describe the award alone; each unlock carries the totals after it. The
	// points are already committed, so a failed evaluation is only logged.
	if result.LevelUp {
		unlocked, err := s.deps.Service.CheckAchievements(r.Context(), req.UserID)
		if err != nil {
			log.Error("achievement check after level-up failed", logger.UserID(req.UserID), logger.Err(err))
		}
		resp.AchievementsUnlocked = toUnlockDTOs(unlocked)
	}

	writeJSON(w, r, http.StatusOK, resp)
}

// handleAdminGrantAchievement handles POST /api/v1/admin/grant-achievement
func (s *Server) handleAdminGrantAchievement(w http.ResponseWriter, r *http.Request) {
	var req GrantAchievementRequest
	if !s.decodeAndValidate(w, r, &req) {
		return
	}

	result, err := s.deps.Service.AwardAchievement(r.Context(), req.UserID, req.AchievementID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.logger.Info("admin granted achievement",
		logger.UserID(req.UserID),
		logger.AchievementCode(result.Achievement.Code),
		logger.String("request_id", getRequestID(r.Context())),
	)

	writeJSON(w, r, http.StatusCreated, toUnlockDTOs([]*engine.AchievementResult{result})[0])
}

// ══════════════════════════════════════════════════════════════════════════════
// REQUEST & ERROR HELPERS
// ══════════════════════════════════════════════════════════════════════════════

// decodeAndValidate reads a JSON body into dst and validates it. It writes
// the 400 response itself and returns false on failure.
func (s *Server) decodeAndValidate(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case errors.As(err, &maxErr):
			writeJSONError(w, r, http.StatusRequestEntityTooLarge, "payload_too_large", "Request body too large")
		case errors.Is(err, io.EOF):
			writeJSONError(w, r, http.StatusBadRequest, "invalid_body", "Request body is required")
		default:
			writeJSONError(w, r, http.StatusBadRequest, "invalid_body", "Malformed JSON body")
		}
		return false
	}

	if err := s.validate.Struct(dst); err != nil {
		writeJSONErrorWithFields(w, r, http.StatusBadRequest, "validation_failed", "Request validation failed", validationFields(err))
		return false
	}
	return true
}

// writeError maps a domain error to a status code.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, shared.ErrNotFound):
		writeJSONError(w, r, http.StatusNotFound, "not_found", errorMessage(err))
	case errors.Is(err, shared.ErrAlreadyExists):
		writeJSONError(w, r, http.StatusConflict, "conflict", errorMessage(err))
	case errors.Is(err, shared.ErrInvalidInput), errors.Is(err, shared.ErrValidation):
		writeJSONError(w, r, http.StatusBadRequest, "invalid_request", errorMessage(err))
	case r.Context().Err() != nil:
		// Client went away; nothing useful to send.
		logger.FromContext(r.Context(), s.logger).Debug("request cancelled", logger.String("path", r.URL.Path))
	default:
		logger.FromContext(r.Context(), s.logger).Error("request failed",
			logger.Err(err),
			logger.String("path", r.URL.Path),
		)
		writeJSONError(w, r, http.StatusInternalServerError, "internal_error", "Internal server error")
	}
}

// errorMessage returns the public part of a domain error.
func errorMessage(err error) string {
	var de *shared.DomainError
	if errors.As(err, &de) && de.Message != "" {
		return de.Message
	}
	return err.Error()
}

// parseLimit reads ?limit=. Absent means the default (0); any explicit
// value below one is raised to one.
func parseLimit(r *http.Request) (int, error) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("limit must be an integer")
	}
	if n < 1 {
		n = 1
	}
	return n, nil
}
