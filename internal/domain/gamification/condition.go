package gamification

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// ══════════════════════════════════════════════════════════════════════════════
// UNLOCK CONDITIONS
// ══════════════════════════════════════════════════════════════════════════════

// ConditionKind is the tag of an unlock condition.
type ConditionKind string

const (
	// ConditionNone never unlocks. Used for achievements granted by hand or
	// whose legacy text could not be understood.
	ConditionNone         ConditionKind = "none"
	ConditionFirstPost    ConditionKind = "first_post"
	ConditionFirstComment ConditionKind = "first_comment"
	ConditionTotalPoints  ConditionKind = "total_points"
	ConditionPostCount    ConditionKind = "post_count"
	ConditionCommentCount ConditionKind = "comment_count"
	ConditionLevelReached ConditionKind = "level_reached"
)

// IsValid reports whether k is a known kind.
func (k ConditionKind) IsValid() bool {
	switch k {
	case ConditionNone, ConditionFirstPost, ConditionFirstComment, ConditionTotalPoints,
		ConditionPostCount, ConditionCommentCount, ConditionLevelReached:
		return true
	default:
		return false
	}
}

// HasThreshold reports whether conditions of this kind carry a number.
func (k ConditionKind) HasThreshold() bool {
	switch k {
	case ConditionTotalPoints, ConditionPostCount, ConditionCommentCount, ConditionLevelReached:
		return true
	default:
		return false
	}
}

// Condition is a structured unlock rule.
type Condition struct {
	Kind      ConditionKind `json:"kind" yaml:"kind"`
	Threshold int64         `json:"threshold,omitempty" yaml:"threshold,omitempty"`
}

// NoCondition is the inert condition.
var NoCondition = Condition{Kind: ConditionNone}

// UserProgress is the snapshot a condition is evaluated against.
type UserProgress struct {
	Posts       int64
	Comments    int64
	TotalPoints int64
	Level       int
}

// SatisfiedBy reports whether p meets the condition.
func (c Condition) SatisfiedBy(p UserProgress) bool {
	switch c.Kind {
	case ConditionFirstPost:
		return p.Posts >= 1
	case ConditionFirstComment:
		return p.Comments >= 1
	case ConditionTotalPoints:
		return p.TotalPoints >= c.Threshold
	case ConditionPostCount:
		return p.Posts >= c.Threshold
	case ConditionCommentCount:
		return p.Comments >= c.Threshold
	case ConditionLevelReached:
		return int64(p.Level) >= c.Threshold
	case ConditionNone:
		return false
	default:
		return false
	}
}

// Validate checks that the kind is known and the threshold fits it.
func (c Condition) Validate() error {
	if !c.Kind.IsValid() {
		return fmt.Errorf("condition: unknown kind %q", c.Kind)
	}
	if c.Threshold < 0 {
		return fmt.Errorf("condition %s: negative threshold %d", c.Kind, c.Threshold)
	}
	if !c.Kind.HasThreshold() && c.Threshold != 0 {
		return fmt.Errorf("condition %s: threshold not allowed", c.Kind)
	}
	return nil
}

// IsInert reports whether the condition can never be satisfied.
func (c Condition) IsInert() bool {
	return c.Kind == ConditionNone || c.Kind == ""
}

// String renders the condition in the legacy text form, which ParseCondition
// reads back to the same value.
func (c Condition) String() string {
	switch c.Kind {
	case ConditionFirstPost:
		return "first post"
	case ConditionFirstComment:
		return "first comment"
	case ConditionTotalPoints:
		return fmt.Sprintf("total points %d", c.Threshold)
	case ConditionPostCount:
		return fmt.Sprintf("posts %d", c.Threshold)
	case ConditionCommentCount:
		return fmt.Sprintf("comments %d", c.Threshold)
	case ConditionLevelReached:
		return fmt.Sprintf("level %d", c.Threshold)
	default:
		return "none"
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Legacy text migration
// ─────────────────────────────────────────────────────────────────────────────

var firstNumber = regexp.MustCompile(`[0-9]+`)

// legacyRules are tried in order; the first phrase found in the text decides.
// "total points" must precede "posts" and "comments" must follow both.
var legacyRules = []struct {
	phrase  string
	kind    ConditionKind
	numeric bool
}{
	{"first post", ConditionFirstPost, false},
	{"first comment", ConditionFirstComment, false},
	{"total points", ConditionTotalPoints, true},
	{"posts", ConditionPostCount, true},
	{"comments", ConditionCommentCount, true},
	{"level", ConditionLevelReached, true},
}

// ParseCondition converts a free-text condition description into a Condition.
//
// Matching is case-insensitive. A numeric rule takes the first run of digits
// anywhere in the text; when there is none the rule does not apply and the
// next rule is tried. Text matching no rule yields NoCondition.
func ParseCondition(text string) Condition {
	lower := strings.ToLower(text)
	threshold, hasNumber := extractNumber(lower)

	for _, r := range legacyRules {
		if !strings.Contains(lower, r.phrase) {
			continue
		}
		if !r.numeric {
			return Condition{Kind: r.kind}
		}
		if hasNumber {
			return Condition{Kind: r.kind, Threshold: threshold}
		}
	}
	return NoCondition
}

func extractNumber(s string) (int64, bool) {
	m := firstNumber.FindString(s)
	if m == "" {
		return 0, false
	}
	n, err := strconv.ParseInt(m, 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}
