package gamification

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// ENUMS
// ══════════════════════════════════════════════════════════════════════════════

// AchievementType groups achievements in the catalog.
type AchievementType string

const (
	TypeAcademic   AchievementType = "academic"
	TypeSocial     AchievementType = "social"
	TypeCompletion AchievementType = "completion"
	TypeMilestone  AchievementType = "milestone"
	TypeSpecial    AchievementType = "special"
)

// IsValid reports whether t is a known achievement type.
func (t AchievementType) IsValid() bool {
	switch t {
	case TypeAcademic, TypeSocial, TypeCompletion, TypeMilestone, TypeSpecial:
		return true
	default:
		return false
	}
}

// Tier is the rarity of an achievement.
type Tier string

const (
	TierBronze   Tier = "bronze"
	TierSilver   Tier = "silver"
	TierGold     Tier = "gold"
	TierPlatinum Tier = "platinum"
)

// IsValid reports whether t is a known tier.
func (t Tier) IsValid() bool {
	switch t {
	case TierBronze, TierSilver, TierGold, TierPlatinum:
		return true
	default:
		return false
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// ACHIEVEMENT
// ══════════════════════════════════════════════════════════════════════════════

// Achievement is a catalog entry. The engine only reads achievements.
type Achievement struct {
	ID          string
	Code        string
	Name        string
	Description string
	Type        AchievementType
	Tier        Tier
	Points      int
	Icon        string

	// ConditionDescription keeps the human-readable rule shown to users.
	ConditionDescription string
	Condition            Condition

	IsActive  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewAchievementParams contains the parameters for NewAchievement.
type NewAchievementParams struct {
	ID                   string
	Code                 string
	Name                 string
	Description          string
	Type                 AchievementType
	Tier                 Tier
	Points               int
	Icon                 string
	ConditionDescription string
	// Condition is optional. When its Kind is empty it is derived from
	// ConditionDescription with ParseCondition.
	Condition Condition
	IsActive  bool
	Now       time.Time
}

// NewAchievement validates params and builds an Achievement.
func NewAchievement(p NewAchievementParams) (*Achievement, error) {
	name := strings.TrimSpace(p.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: empty name", ErrInvalidAchievement)
	}
	if p.Code == "" {
		return nil, fmt.Errorf("%w: empty code for %q", ErrInvalidAchievement, name)
	}
	if !p.Type.IsValid() {
		return nil, fmt.Errorf("%w: unknown type %q for %q", ErrInvalidAchievement, p.Type, name)
	}
	if !p.Tier.IsValid() {
		return nil, fmt.Errorf("%w: unknown tier %q for %q", ErrInvalidAchievement, p.Tier, name)
	}
	if p.Points < 0 {
		return nil, fmt.Errorf("%w: negative points for %q", ErrInvalidAchievement, name)
	}

	cond := p.Condition
	if cond.Kind == "" {
		cond = ParseCondition(p.ConditionDescription)
	}
	if err := cond.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidAchievement, err)
	}

	desc := p.ConditionDescription
	if desc == "" {
		desc = cond.String()
	}

	now := p.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}

	return &Achievement{
		ID:                   p.ID,
		Code:                 p.Code,
		Name:                 name,
		Description:          p.Description,
		Type:                 p.Type,
		Tier:                 p.Tier,
		Points:               p.Points,
		Icon:                 p.Icon,
		ConditionDescription: desc,
		Condition:            cond,
		IsActive:             p.IsActive,
		CreatedAt:            now,
		UpdatedAt:            now,
	}, nil
}

// EffectiveCondition returns the structured condition, migrating legacy rows
// that only carry a text description.
func (a *Achievement) EffectiveCondition() Condition {
	if a.Condition.Kind == "" {
		return ParseCondition(a.ConditionDescription)
	}
	return a.Condition
}

// SortAchievements orders achievements by type, tier and name, the catalog order.
func SortAchievements(list []*Achievement) {
	sort.SliceStable(list, func(i, j int) bool {
		a, b := list[i], list[j]
		if a.Type != b.Type {
			return a.Type < b.Type
		}
		if a.Tier != b.Tier {
			return a.Tier < b.Tier
		}
		return a.Name < b.Name
	})
}

// ══════════════════════════════════════════════════════════════════════════════
// USER ACHIEVEMENT
// ══════════════════════════════════════════════════════════════════════════════

// CompletedProgress is the progress stored on every earned achievement.
const CompletedProgress = 100

// UserAchievement records that a user earned an achievement. It is never
// updated or deleted.
type UserAchievement struct {
	ID            string
	UserID        string
	AchievementID string
	EarnedAt      time.Time
	Progress      int
}

// EarnedAchievement joins a UserAchievement with its catalog entry.
type EarnedAchievement struct {
	Achievement *Achievement
	EarnedAt    time.Time
	Progress    int
}
