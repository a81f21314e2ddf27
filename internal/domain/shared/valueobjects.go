package shared

// ═══════════════════════════════════════════════════════════════════════════
// Pagination Value Object
// ═══════════════════════════════════════════════════════════════════════════

// Default and maximum page sizes for list endpoints.
const (
	DefaultPageLimit = 50
	MaxPageLimit     = 100
)

// Page describes a window over an ordered result set.
type Page struct {
	Limit  int
	Offset int
}

// NewPage builds a Page. A non-positive limit falls back to DefaultPageLimit,
// a limit above MaxPageLimit is clamped, a negative offset becomes zero.
func NewPage(limit, offset int) Page {
	return Page{Limit: ClampLimit(limit), Offset: max(offset, 0)}
}

// ClampLimit applies the default and maximum page size to limit.
func ClampLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultPageLimit
	case limit > MaxPageLimit:
		return MaxPageLimit
	default:
		return limit
	}
}

// Next returns the page that follows p.
func (p Page) Next() Page {
	return Page{Limit: p.Limit, Offset: p.Offset + p.Limit}
}
