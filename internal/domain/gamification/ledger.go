package gamification

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/campushub/gamification/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// LEDGER ENTRY
// ══════════════════════════════════════════════════════════════════════════════

// MaxDescriptionLength bounds the free-text description of a ledger entry.
const MaxDescriptionLength = 255

// PointsEntry is one immutable line of the points ledger.
type PointsEntry struct {
	ID          string
	UserID      string
	Points      int
	Source      Source
	Description string
	CreatedAt   time.Time
}

// LedgerWriter appends entries. It is implemented by a store transaction so the
// entry and the aggregate update commit together.
type LedgerWriter interface {
	AppendEntry(ctx context.Context, entry *PointsEntry) error
}

// LedgerReader reads the ledger outside of a transaction.
type LedgerReader interface {
	// SumForUser returns the sum of all entries for the user (0 if none).
	SumForUser(ctx context.Context, userID string) (int64, error)

	// ListForUser returns entries newest first.
	ListForUser(ctx context.Context, userID string, page shared.Page) ([]*PointsEntry, error)

	// SumBySource returns per-source sums. Sources without entries may be absent.
	SumBySource(ctx context.Context, userID string) (map[Source]int64, error)
}

// ══════════════════════════════════════════════════════════════════════════════
// POINTS LEDGER
// ══════════════════════════════════════════════════════════════════════════════

// PointsLedger is the append-only record of why users hold their points.
// Recording an entry never touches the user aggregate.
type PointsLedger struct {
	reader LedgerReader
	newID  func() string
	now    func() time.Time
}

// NewPointsLedger creates a ledger. newID generates entry identifiers.
func NewPointsLedger(reader LedgerReader, newID func() string) *PointsLedger {
	return &PointsLedger{
		reader: reader,
		newID:  newID,
		now:    time.Now,
	}
}

// WithClock replaces the ledger clock. Used by tests.
func (l *PointsLedger) WithClock(now func() time.Time) *PointsLedger {
	l.now = now
	return l
}

// Record validates and appends a new entry through w and returns its ID.
func (l *PointsLedger) Record(ctx context.Context, w LedgerWriter, userID string, points int, source Source, description string) (string, error) {
	if userID == "" {
		return "", ErrInvalidUser
	}
	if points <= 0 {
		return "", ErrNonPositivePoints
	}
	if !source.IsValid() {
		return "", ErrInvalidSource
	}

	entry := &PointsEntry{
		ID:          l.newID(),
		UserID:      userID,
		Points:      points,
		Source:      source,
		Description: truncate(strings.TrimSpace(description), MaxDescriptionLength),
		CreatedAt:   l.now().UTC(),
	}

	if err := w.AppendEntry(ctx, entry); err != nil {
		return "", fmt.Errorf("append ledger entry: %w", err)
	}
	return entry.ID, nil
}

// TotalFor returns the ledger sum for the user. It is meant for audits;
// the hot path reads the cached aggregate on the user.
func (l *PointsLedger) TotalFor(ctx context.Context, userID string) (int64, error) {
	return l.reader.SumForUser(ctx, userID)
}

// HistoryFor returns the most recent entries, newest first.
// limit is clamped to 1..100 and defaults to 50.
func (l *PointsLedger) HistoryFor(ctx context.Context, userID string, limit int) ([]*PointsEntry, error) {
	return l.HistoryPage(ctx, userID, shared.NewPage(limit, 0))
}

// HistoryPage returns one page of history. Callers continue with page.Next().
func (l *PointsLedger) HistoryPage(ctx context.Context, userID string, page shared.Page) ([]*PointsEntry, error) {
	return l.reader.ListForUser(ctx, userID, shared.NewPage(page.Limit, page.Offset))
}

// BySource returns the per-source sums with every known source present.
func (l *PointsLedger) BySource(ctx context.Context, userID string) (map[Source]int64, error) {
	sums, err := l.reader.SumBySource(ctx, userID)
	if err != nil {
		return nil, err
	}

	out := make(map[Source]int64, len(AllSources()))
	for _, s := range AllSources() {
		out[s] = sums[s]
	}
	return out, nil
}

// DefaultDescription is used when an award has no explicit description.
func DefaultDescription(source Source) string {
	return "Points for " + string(source)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
