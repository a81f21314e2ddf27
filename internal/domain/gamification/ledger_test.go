package gamification

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/campushub/gamification/internal/domain/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeLedger struct {
	entries []*PointsEntry
	failErr error
	page    shared.Page
}

func (f *fakeLedger) AppendEntry(_ context.Context, e *PointsEntry) error {
	if f.failErr != nil {
		return f.failErr
	}
	f.entries = append(f.entries, e)
	return nil
}

func (f *fakeLedger) SumForUser(_ context.Context, userID string) (int64, error) {
	var sum int64
	for _, e := range f.entries {
		if e.UserID == userID {
			sum += int64(e.Points)
		}
	}
	return sum, nil
}

func (f *fakeLedger) ListForUser(_ context.Context, userID string, page shared.Page) ([]*PointsEntry, error) {
	f.page = page
	var out []*PointsEntry
	for i := len(f.entries) - 1; i >= 0; i-- {
		if f.entries[i].UserID == userID {
			out = append(out, f.entries[i])
		}
	}
	if page.Offset >= len(out) {
		return nil, nil
	}
	out = out[page.Offset:]
	if len(out) > page.Limit {
		out = out[:page.Limit]
	}
	return out, nil
}

func (f *fakeLedger) SumBySource(_ context.Context, userID string) (map[Source]int64, error) {
	out := map[Source]int64{}
	for _, e := range f.entries {
		if e.UserID == userID {
			out[e.Source] += int64(e.Points)
		}
	}
	return out, nil
}

func newTestLedger(f *fakeLedger) *PointsLedger {
	n := 0
	return NewPointsLedger(f, func() string {
		n++
		return fmt.Sprintf("entry-%d", n)
	}).WithClock(func() time.Time {
		return time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	})
}

func TestPointsLedger_Record(t *testing.T) {
	ctx := context.Background()
	f := &fakeLedger{}
	l := newTestLedger(f)

	id, err := l.Record(ctx, f, "u1", 10, SourcePost, "  hello  ")
	require.NoError(t, err)
	assert.Equal(t, "entry-1", id)

	require.Len(t, f.entries, 1)
	e := f.entries[0]
	assert.Equal(t, "u1", e.UserID)
	assert.Equal(t, 10, e.Points)
	assert.Equal(t, SourcePost, e.Source)
	assert.Equal(t, "hello", e.Description)
	assert.Equal(t, time.UTC, e.CreatedAt.Location())
}

func TestPointsLedger_Record_Validation(t *testing.T) {
	ctx := context.Background()
	f := &fakeLedger{}
	l := newTestLedger(f)

	_, err := l.Record(ctx, f, "u1", 0, SourcePost, "")
	assert.ErrorIs(t, err, ErrNonPositivePoints)
	assert.True(t, shared.IsValidation(err))

	_, err = l.Record(ctx, f, "u1", 5, Source("karma"), "")
	assert.ErrorIs(t, err, ErrInvalidSource)

	_, err = l.Record(ctx, f, "", 5, SourcePost, "")
	assert.ErrorIs(t, err, ErrInvalidUser)
	assert.True(t, shared.IsNotFound(err))

	assert.Empty(t, f.entries)
}

func TestPointsLedger_Record_WriterError(t *testing.T) {
	boom := errors.New("boom")
	f := &fakeLedger{failErr: boom}
	l := newTestLedger(f)

	_, err := l.Record(context.Background(), f, "u1", 5, SourceComment, "")
	assert.ErrorIs(t, err, boom)
}

func TestPointsLedger_Record_TruncatesDescription(t *testing.T) {
	f := &fakeLedger{}
	l := newTestLedger(f)

	_, err := l.Record(context.Background(), f, "u1", 5, SourceComment, strings.Repeat("ñ", 400))
	require.NoError(t, err)
	assert.Len(t, []rune(f.entries[0].Description), MaxDescriptionLength)
}

func TestPointsLedger_TotalAndHistory(t *testing.T) {
	ctx := context.Background()
	f := &fakeLedger{}
	l := newTestLedger(f)

	for i := 0; i < 3; i++ {
		_, err := l.Record(ctx, f, "u1", 10, SourcePost, "")
		require.NoError(t, err)
	}
	_, err := l.Record(ctx, f, "u1", 25, SourceAchievement, "Achievement unlocked: Primer Paso")
	require.NoError(t, err)
	_, err = l.Record(ctx, f, "u2", 7, SourceComment, "")
	require.NoError(t, err)

	total, err := l.TotalFor(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(55), total)

	history, err := l.HistoryFor(ctx, "u1", 2)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, SourceAchievement, history[0].Source)

	_, err = l.HistoryFor(ctx, "u1", 0)
	require.NoError(t, err)
	assert.Equal(t, shared.DefaultPageLimit, f.page.Limit)

	_, err = l.HistoryFor(ctx, "u1", 1000)
	require.NoError(t, err)
	assert.Equal(t, shared.MaxPageLimit, f.page.Limit)

	next, err := l.HistoryPage(ctx, "u1", shared.NewPage(2, 0).Next())
	require.NoError(t, err)
	assert.Len(t, next, 2)
}

func TestPointsLedger_BySource_ZeroFilled(t *testing.T) {
	ctx := context.Background()
	f := &fakeLedger{}
	l := newTestLedger(f)

	_, err := l.Record(ctx, f, "u1", 10, SourcePost, "")
	require.NoError(t, err)

	sums, err := l.BySource(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, sums, len(AllSources()))
	assert.Equal(t, int64(10), sums[SourcePost])
	assert.Equal(t, int64(0), sums[SourceHelpOthers])
}

func TestPointsTable(t *testing.T) {
	table := DefaultPointsTable()

	p, ok := table.PointsFor(SourcePost)
	assert.True(t, ok)
	assert.Equal(t, 10, p)

	p, ok = table.PointsFor(SourceAchievement)
	assert.True(t, ok)
	assert.Equal(t, 0, p)

	_, ok = table.PointsFor(Source("karma"))
	assert.False(t, ok)

	tuned := table.With(SourcePost, 20)
	assert.Equal(t, 20, tuned[SourcePost])
	assert.Equal(t, 10, table[SourcePost])

	assert.NoError(t, table.Validate())
	assert.ErrorIs(t, PointsTable{Source("karma"): 1}.Validate(), ErrInvalidSource)
	assert.Error(t, PointsTable{SourcePost: -1}.Validate())
}

func TestDefaultDescription(t *testing.T) {
	assert.Equal(t, "Points for like_received", DefaultDescription(SourceLikeReceived))
}
