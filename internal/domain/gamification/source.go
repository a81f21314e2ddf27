package gamification

import (
	"fmt"
	"sort"
)

// ══════════════════════════════════════════════════════════════════════════════
// SOURCE
// ══════════════════════════════════════════════════════════════════════════════

// Source identifies why points were awarded.
type Source string

const (
	SourcePost         Source = "post"
	SourceComment      Source = "comment"
	SourceLikeReceived Source = "like_received"
	SourceNoteShared   Source = "note_shared"
	SourceAchievement  Source = "achievement"
	SourceLoginStreak  Source = "login_streak"
	SourceHelpOthers   Source = "help_others"
	SourceAdminBonus   Source = "admin_bonus"
)

// AllSources returns the closed set of sources in a stable order.
func AllSources() []Source {
	return []Source{
		SourcePost,
		SourceComment,
		SourceLikeReceived,
		SourceNoteShared,
		SourceAchievement,
		SourceLoginStreak,
		SourceHelpOthers,
		SourceAdminBonus,
	}
}

// IsValid reports whether s belongs to the closed set of sources.
func (s Source) IsValid() bool {
	switch s {
	case SourcePost, SourceComment, SourceLikeReceived, SourceNoteShared,
		SourceAchievement, SourceLoginStreak, SourceHelpOthers, SourceAdminBonus:
		return true
	default:
		return false
	}
}

// String returns the string representation.
func (s Source) String() string {
	return string(s)
}

// ══════════════════════════════════════════════════════════════════════════════
// POINTS TABLE
// ══════════════════════════════════════════════════════════════════════════════

// PointsTable maps a source to the number of points awarded when the caller
// does not pass an explicit amount. A source missing from the table is unknown
// to the service that owns the table.
type PointsTable map[Source]int

// DefaultPointsTable returns a fresh copy of the stock points table.
// Sources configured at zero must always be awarded with an explicit amount.
func DefaultPointsTable() PointsTable {
	return PointsTable{
		SourcePost:         10,
		SourceComment:      5,
		SourceLikeReceived: 2,
		SourceNoteShared:   8,
		SourceAchievement:  0,
		SourceLoginStreak:  3,
		SourceHelpOthers:   15,
		SourceAdminBonus:   0,
	}
}

// PointsFor returns the default amount for source and whether the source is known.
func (t PointsTable) PointsFor(source Source) (int, bool) {
	p, ok := t[source]
	return p, ok
}

// With returns a copy of the table with source set to points.
func (t PointsTable) With(source Source, points int) PointsTable {
	out := t.Clone()
	out[source] = points
	return out
}

// Clone returns a copy of the table.
func (t PointsTable) Clone() PointsTable {
	out := make(PointsTable, len(t))
	for k, v := range t {
		out[k] = v
	}
	return out
}

// Validate checks that every key is a known source and no value is negative.
func (t PointsTable) Validate() error {
	keys := make([]string, 0, len(t))
	for s := range t {
		keys = append(keys, string(s))
	}
	sort.Strings(keys)

	for _, k := range keys {
		s := Source(k)
		if !s.IsValid() {
			return fmt.Errorf("points table: %w: %q", ErrInvalidSource, k)
		}
		if t[s] < 0 {
			return fmt.Errorf("points table: negative default for %q: %d", k, t[s])
		}
	}
	return nil
}
