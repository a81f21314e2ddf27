package http

import (
	"errors"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/campushub/gamification/internal/application/engine"
	"github.com/campushub/gamification/internal/domain/gamification"
	"github.com/campushub/gamification/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// REQUESTS
// ══════════════════════════════════════════════════════════════════════════════

// RecordActivityRequest is the body of POST /api/v1/events.
type RecordActivityRequest struct {
	Type          string `json:"type" validate:"required,activity_type"`
	UserID        string `json:"user_id" validate:"required,max=64"`
	Subject       string `json:"subject" validate:"max=255"`
	Count         int    `json:"count" validate:"gte=0"`
	CorrelationID string `json:"correlation_id" validate:"omitempty,max=64"`
}

// AwardPointsRequest is the body of POST /api/v1/admin/award-points.
type AwardPointsRequest struct {
	UserID      string `json:"user_id" validate:"required,max=64"`
	Points      int    `json:"points" validate:"required,gt=0,lte=100000"`
	Source      string `json:"source" validate:"omitempty,points_source"`
	Description string `json:"description" validate:"max=255"`
}

// GrantAchievementRequest is the body of POST /api/v1/admin/grant-achievement.
type GrantAchievementRequest struct {
	UserID        string `json:"user_id" validate:"required,max=64"`
	AchievementID string `json:"achievement_id" validate:"required,max=64"`
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})

	_ = v.RegisterValidation("points_source", func(fl validator.FieldLevel) bool {
		return gamification.Source(fl.Field().String()).IsValid()
	})
	_ = v.RegisterValidation("activity_type", func(fl validator.FieldLevel) bool {
		return shared.EventType(fl.Field().String()).IsActivity()
	})

	return v
}

// validationFields maps each failing field to the tag that rejected it.
// It returns nil when err is not a validator error.
func validationFields(err error) map[string]string {
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return nil
	}
	fields := make(map[string]string, len(ve))
	for _, fe := range ve {
		fields[fe.Field()] = fe.Tag()
	}
	return fields
}

// ══════════════════════════════════════════════════════════════════════════════
// RESPONSES
// ══════════════════════════════════════════════════════════════════════════════

// ConditionDTO is the structured unlock rule.
type ConditionDTO struct {
	Kind      string `json:"kind"`
	Threshold int64  `json:"threshold,omitempty"`
}

// AchievementDTO is a catalog entry.
type AchievementDTO struct {
	ID          string       `json:"id"`
	Code        string       `json:"code"`
	Name        string       `json:"name"`
	Description string       `json:"description"`
	Type        string       `json:"type"`
	Tier        string       `json:"tier"`
	Level       string       `json:"level"`
	Points      int          `json:"points"`
	Icon        string       `json:"icon,omitempty"`
	Condition   string       `json:"condition"`
	Rule        ConditionDTO `json:"rule"`
}

func toAchievementDTO(a *gamification.Achievement) AchievementDTO {
	c := a.EffectiveCondition()
	return AchievementDTO{
		ID:          a.ID,
		Code:        a.Code,
		Name:        a.Name,
		Description: a.Description,
		Type:        string(a.Type),
		Tier:        string(a.Tier),
		Level:       string(a.Tier),
		Points:      a.Points,
		Icon:        a.Icon,
		Condition:   a.ConditionDescription,
		Rule:        ConditionDTO{Kind: string(c.Kind), Threshold: c.Threshold},
	}
}

func toAchievementDTOs(list []*gamification.Achievement) []AchievementDTO {
	out := make([]AchievementDTO, 0, len(list))
	for _, a := range list {
		out = append(out, toAchievementDTO(a))
	}
	return out
}

// EarnedAchievementDTO is an achievement a user holds.
type EarnedAchievementDTO struct {
	AchievementDTO
	EarnedAt time.Time `json:"earned_at"`
	Progress int       `json:"progress"`
}

func toEarnedDTOs(list []*gamification.EarnedAchievement) []EarnedAchievementDTO {
	out := make([]EarnedAchievementDTO, 0, len(list))
	for _, e := range list {
		out = append(out, EarnedAchievementDTO{
			AchievementDTO: toAchievementDTO(e.Achievement),
			EarnedAt:       e.EarnedAt,
			Progress:       e.Progress,
		})
	}
	return out
}

// UnlockDTO describes one achievement unlocked by a request.
type UnlockDTO struct {
	Achievement   AchievementDTO `json:"achievement"`
	PointsAwarded int            `json:"points_awarded"`
	TotalPoints   int64          `json:"total_points"`
	Level         int            `json:"level"`
	LevelUp       bool           `json:"level_up"`
}

func toUnlockDTOs(results []*engine.AchievementResult) []UnlockDTO {
	out := make([]UnlockDTO, 0, len(results))
	for _, r := range results {
		out = append(out, UnlockDTO{
			Achievement:   toAchievementDTO(r.Achievement),
			PointsAwarded: r.PointsAwarded,
			TotalPoints:   r.TotalPoints(),
			Level:         r.Level(),
			LevelUp:       r.LevelUp(),
		})
	}
	return out
}

// UserStatsDTO is the body of GET /api/v1/users/{id}/stats.
type UserStatsDTO struct {
	UserID            string           `json:"user_id"`
	Username          string           `json:"username"`
	Level             int              `json:"level"`
	TotalPoints       int64            `json:"total_points"`
	ExperiencePoints  int64            `json:"experience_points"`
	PointsToNextLevel int64            `json:"points_to_next_level"`
	LevelProgress     int              `json:"level_progress"`
	TotalPosts        int64            `json:"total_posts"`
	TotalComments     int64            `json:"total_comments"`
	TotalAchievements int64            `json:"total_achievements"`
	PointsBySource    map[string]int64 `json:"points_by_source"`
}

func toUserStatsDTO(s *engine.UserStats) UserStatsDTO {
	bySource := make(map[string]int64, len(s.PointsBySource))
	for src, pts := range s.PointsBySource {
		bySource[string(src)] = pts
	}
	return UserStatsDTO{
		UserID:            s.UserID,
		Username:          s.Username,
		Level:             s.Level,
		TotalPoints:       s.TotalPoints,
		ExperiencePoints:  s.ExperiencePoints,
		PointsToNextLevel: s.PointsToNextLevel,
		LevelProgress:     gamification.LevelProgress(s.ExperiencePoints),
		TotalPosts:        s.TotalPosts,
		TotalComments:     s.TotalComments,
		TotalAchievements: s.TotalAchievements,
		PointsBySource:    bySource,
	}
}

// PointsEntryDTO is one ledger line.
type PointsEntryDTO struct {
	ID          string    `json:"id"`
	Points      int       `json:"points"`
	Source      string    `json:"source"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
}

func toPointsEntryDTOs(list []*gamification.PointsEntry) []PointsEntryDTO {
	out := make([]PointsEntryDTO, 0, len(list))
	for _, e := range list {
		out = append(out, PointsEntryDTO{
			ID:          e.ID,
			Points:      e.Points,
			Source:      string(e.Source),
			Description: e.Description,
			CreatedAt:   e.CreatedAt,
		})
	}
	return out
}

// AwardPointsResponse is returned by the admin award endpoint.
// AchievementsUnlocked lists what the evaluation after a level-up unlocked.
type AwardPointsResponse struct {
	Success              bool        `json:"success"`
	EntryID              string      `json:"entry_id"`
	Points               int         `json:"points"`
	TotalPoints          int64       `json:"total_points"`
	ExperiencePoints     int64       `json:"experience_points"`
	Level                int         `json:"level"`
	LevelUp              bool        `json:"level_up"`
	LevelChange          int         `json:"level_change"`
	AchievementsUnlocked []UnlockDTO `json:"achievements_unlocked"`
}
