package engine

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/campushub/gamification/internal/domain/gamification"
	"github.com/campushub/gamification/internal/domain/shared"
	"github.com/campushub/gamification/internal/infrastructure/persistence/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ─────────────────────────────────────────────────────────────────────────────
// Helpers
// ─────────────────────────────────────────────────────────────────────────────

type recordingPublisher struct {
	mu     sync.Mutex
	events []shared.Event
}

func (p *recordingPublisher) Publish(e shared.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) ofType(t shared.EventType) []shared.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []shared.Event
	for _, e := range p.events {
		if e.EventType() == t {
			out = append(out, e)
		}
	}
	return out
}

type fixture struct {
	store *memory.Store
	svc   *Service
	pub   *recordingPublisher
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	store := memory.New()
	pub := &recordingPublisher{}

	var n atomic.Uint64
	clock := time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC)
	var tick atomic.Int64

	svc, err := NewService(store, gamification.DefaultPointsTable(), pub, nil,
		WithIDGenerator(func() string { return fmt.Sprintf("id-%d", n.Add(1)) }),
		WithClock(func() time.Time { return clock.Add(time.Duration(tick.Add(1)) * time.Second) }),
	)
	require.NoError(t, err)

	return &fixture{store: store, svc: svc, pub: pub}
}

func (f *fixture) addUser(id string, points int64) {
	f.store.AddUser(&gamification.User{
		ID:               id,
		Username:         "user-" + id,
		TotalPoints:      points,
		ExperiencePoints: points,
		Level:            gamification.LevelFor(points),
	})
}

func (f *fixture) addAchievement(t *testing.T, name string, typ gamification.AchievementType, tier gamification.Tier, points int, condition string) *gamification.Achievement {
	t.Helper()

	a, err := gamification.NewAchievement(gamification.NewAchievementParams{
		Code:                 fmt.Sprintf("code-%s", name),
		Name:                 name,
		Type:                 typ,
		Tier:                 tier,
		Points:               points,
		ConditionDescription: condition,
		IsActive:             true,
	})
	require.NoError(t, err)

	created, err := f.store.Achievements().GetOrCreate(context.Background(), a)
	require.NoError(t, err)
	require.True(t, created)
	return a
}

// assertConsistent checks the ledger and level invariants for a user.
func (f *fixture) assertConsistent(t *testing.T, userID string) {
	t.Helper()
	ctx := context.Background()

	u, err := f.store.Users().GetByID(ctx, userID)
	require.NoError(t, err)

	sum, err := f.store.Ledger().SumForUser(ctx, userID)
	require.NoError(t, err)

	assert.Equal(t, u.TotalPoints, sum, "total points must equal ledger sum")
	assert.Equal(t, gamification.LevelFor(u.ExperiencePoints), u.Level)
}

// ─────────────────────────────────────────────────────────────────────────────
// AwardPoints
// ─────────────────────────────────────────────────────────────────────────────

func TestAwardPoints_DefaultTable(t *testing.T) {
	f := newFixture(t)
	f.addUser("u1", 0)

	res, err := f.svc.AwardPoints(context.Background(), "u1", gamification.SourcePost)
	require.NoError(t, err)

	assert.Equal(t, 10, res.Points)
	assert.Equal(t, int64(10), res.TotalPoints)
	assert.Equal(t, int64(10), res.ExperiencePoints)
	assert.Equal(t, 1, res.Level)
	assert.False(t, res.LevelUp)
	assert.Equal(t, 0, res.LevelChange)
	assert.NotEmpty(t, res.EntryID)

	entries := f.store.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, "Points for post", entries[0].Description)
	assert.Equal(t, res.EntryID, entries[0].ID)

	f.assertConsistent(t, "u1")
}

func TestAwardPoints_ExplicitPointsAndDescription(t *testing.T) {
	f := newFixture(t)
	f.addUser("u1", 0)

	res, err := f.svc.AwardPoints(context.Background(), "u1", gamification.SourceAdminBonus,
		WithPoints(250), WithDescription("Hackathon winner"))
	require.NoError(t, err)
	assert.Equal(t, 250, res.Points)

	entries := f.store.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, gamification.SourceAdminBonus, entries[0].Source)
	assert.Equal(t, "Hackathon winner", entries[0].Description)
}

// Scenario B: crossing the 1000 boundary.
func TestAwardPoints_LevelUp(t *testing.T) {
	f := newFixture(t)
	f.addUser("u1", 995)

	res, err := f.svc.AwardPoints(context.Background(), "u1", gamification.SourcePost)
	require.NoError(t, err)

	assert.Equal(t, int64(1005), res.TotalPoints)
	assert.Equal(t, 2, res.Level)
	assert.True(t, res.LevelUp)
	assert.Equal(t, 1, res.LevelChange)

	levelUps := f.pub.ofType(shared.EventLevelUp)
	require.Len(t, levelUps, 1)
	ev := levelUps[0].(shared.LevelUpEvent)
	assert.Equal(t, 1, ev.OldLevel)
	assert.Equal(t, 2, ev.NewLevel)
}

func TestAwardPoints_MultiLevelJump(t *testing.T) {
	f := newFixture(t)
	f.addUser("u1", 0)

	res, err := f.svc.AwardPoints(context.Background(), "u1", gamification.SourceAdminBonus, WithPoints(3500))
	require.NoError(t, err)

	assert.Equal(t, 4, res.Level)
	assert.Equal(t, 3, res.LevelChange)
}

func TestAwardPoints_Errors(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.addUser("u1", 0)

	_, err := f.svc.AwardPoints(ctx, "missing", gamification.SourcePost)
	assert.ErrorIs(t, err, gamification.ErrInvalidUser)

	_, err = f.svc.AwardPoints(ctx, "u1", gamification.Source("karma"))
	assert.ErrorIs(t, err, gamification.ErrUnknownSource)

	// Zero defaults need an explicit amount.
	_, err = f.svc.AwardPoints(ctx, "u1", gamification.SourceAchievement)
	assert.ErrorIs(t, err, gamification.ErrNonPositivePoints)

	_, err = f.svc.AwardPoints(ctx, "u1", gamification.SourceAdminBonus)
	assert.ErrorIs(t, err, gamification.ErrNonPositivePoints)

	_, err = f.svc.AwardPoints(ctx, "u1", gamification.SourcePost, WithPoints(-3))
	assert.ErrorIs(t, err, gamification.ErrNonPositivePoints)

	assert.Empty(t, f.store.Entries())
	assert.Empty(t, f.pub.events)
}

func TestAwardPoints_CustomTable(t *testing.T) {
	store := memory.New()
	store.AddUser(&gamification.User{ID: "u1", Level: 1})

	table := gamification.DefaultPointsTable().With(gamification.SourcePost, 20)
	svc, err := NewService(store, table, nil, nil)
	require.NoError(t, err)

	// Mutating the caller's table after construction has no effect.
	table[gamification.SourcePost] = 1000

	res, err := svc.AwardPoints(context.Background(), "u1", gamification.SourcePost)
	require.NoError(t, err)
	assert.Equal(t, 20, res.Points)
}

func TestAwardPoints_TableWithoutSource(t *testing.T) {
	store := memory.New()
	store.AddUser(&gamification.User{ID: "u1", Level: 1})

	svc, err := NewService(store, gamification.PointsTable{gamification.SourcePost: 10}, nil, nil)
	require.NoError(t, err)

	_, err = svc.AwardPoints(context.Background(), "u1", gamification.SourceComment)
	assert.ErrorIs(t, err, gamification.ErrUnknownSource)
}

func TestNewService_RejectsInvalidTable(t *testing.T) {
	_, err := NewService(memory.New(), gamification.PointsTable{"karma": 1}, nil, nil)
	assert.Error(t, err)

	_, err = NewService(nil, nil, nil, nil)
	assert.Error(t, err)
}

func TestAwardPoints_ConcurrentSameUser(t *testing.T) {
	f := newFixture(t)
	f.addUser("u1", 0)

	const workers = 50
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			_, err := f.svc.AwardPoints(context.Background(), "u1", gamification.SourceHelpOthers)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	u, err := f.store.Users().GetByID(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(workers*15), u.TotalPoints)
	assert.Equal(t, int64(workers*15), u.ExperiencePoints)
	assert.Len(t, f.store.Entries(), workers)
	f.assertConsistent(t, "u1")
}

func TestAwardPoints_Monotonic(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.addUser("u1", 0)

	prev := int64(0)
	for _, src := range []gamification.Source{
		gamification.SourcePost, gamification.SourceComment, gamification.SourceLikeReceived,
		gamification.SourceNoteShared, gamification.SourceLoginStreak, gamification.SourceHelpOthers,
	} {
		res, err := f.svc.AwardPoints(ctx, "u1", src)
		require.NoError(t, err)
		assert.Greater(t, res.TotalPoints, prev)
		prev = res.TotalPoints
	}
	f.assertConsistent(t, "u1")
}

// ─────────────────────────────────────────────────────────────────────────────
// Achievements
// ─────────────────────────────────────────────────────────────────────────────

// Scenario A: first post unlocks the first-post achievement.
func TestCheckAchievements_FirstPost(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.addUser("u1", 0)
	primer := f.addAchievement(t, "Primer Paso", gamification.TypeAcademic, gamification.TierBronze, 10, "first post")
	f.addAchievement(t, "Voz en la Comunidad", gamification.TypeSocial, gamification.TierBronze, 5, "first comment")

	f.store.AddPost("u1")
	res, err := f.svc.AwardPoints(ctx, "u1", gamification.SourcePost)
	require.NoError(t, err)
	assert.Equal(t, int64(10), res.TotalPoints)
	assert.Equal(t, 1, res.Level)

	unlocked, err := f.svc.CheckAchievements(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, unlocked, 1)

	got := unlocked[0]
	assert.Equal(t, primer.ID, got.Achievement.ID)
	assert.Equal(t, 10, got.PointsAwarded)
	assert.Equal(t, int64(20), got.TotalPoints())
	assert.Equal(t, 1, got.Level())
	assert.False(t, got.LevelUp())

	entries := f.store.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, gamification.SourceAchievement, entries[1].Source)
	assert.Equal(t, "Achievement unlocked: Primer Paso", entries[1].Description)

	require.Len(t, f.pub.ofType(shared.EventAchievementUnlocked), 1)
	f.assertConsistent(t, "u1")
}

func TestCheckAchievements_Idempotent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.addUser("u1", 0)
	f.addAchievement(t, "Primer Paso", gamification.TypeAcademic, gamification.TierBronze, 10, "first post")
	f.store.AddPost("u1")

	first, err := f.svc.CheckAchievements(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, first, 1)

	second, err := f.svc.CheckAchievements(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, second)

	assert.Len(t, f.store.Entries(), 1)
	f.assertConsistent(t, "u1")
}

// Scenario C: awarding an earned achievement again fails and writes nothing.
func TestAwardAchievement_AlreadyEarned(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.addUser("u1", 0)
	a := f.addAchievement(t, "Nivel 2", gamification.TypeMilestone, gamification.TierBronze, 20, "level 2")

	_, err := f.svc.AwardAchievement(ctx, "u1", a.ID)
	require.NoError(t, err)
	before := f.store.Entries()

	_, err = f.svc.AwardAchievement(ctx, "u1", a.ID)
	assert.ErrorIs(t, err, gamification.ErrAlreadyEarned)
	assert.True(t, shared.IsAlreadyExists(err))

	assert.Equal(t, before, f.store.Entries())
	count, err := f.store.Achievements().CountEarned(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

// Once earned, an achievement reports ErrAlreadyEarned even if its reward
// was later edited down to zero.
func TestAwardAchievement_AlreadyEarnedBeatsZeroPoints(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.addUser("u1", 0)
	a := f.addAchievement(t, "Nivel 2", gamification.TypeMilestone, gamification.TierBronze, 20, "level 2")

	_, err := f.svc.AwardAchievement(ctx, "u1", a.ID)
	require.NoError(t, err)
	require.True(t, f.store.SetAchievementPoints(a.ID, 0))
	before := f.store.Entries()

	_, err = f.svc.AwardAchievement(ctx, "u1", a.ID)
	assert.ErrorIs(t, err, gamification.ErrAlreadyEarned)
	assert.NotErrorIs(t, err, gamification.ErrNonPositivePoints)
	assert.Equal(t, before, f.store.Entries())
}

func TestAwardAchievement_Errors(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.addUser("u1", 0)
	free := f.addAchievement(t, "Bienvenido a la Familia", gamification.TypeSpecial, gamification.TierBronze, 0, "signup")

	_, err := f.svc.AwardAchievement(ctx, "u1", "nope")
	assert.ErrorIs(t, err, gamification.ErrAchievementNotFound)

	a := f.addAchievement(t, "Nivel 5", gamification.TypeMilestone, gamification.TierSilver, 50, "level 5")
	_, err = f.svc.AwardAchievement(ctx, "ghost", a.ID)
	assert.ErrorIs(t, err, gamification.ErrInvalidUser)

	// A zero-point achievement is never unlocked.
	_, err = f.svc.AwardAchievement(ctx, "u1", free.ID)
	assert.ErrorIs(t, err, gamification.ErrNonPositivePoints)

	count, err := f.store.Achievements().CountEarned(ctx, "u1")
	require.NoError(t, err)
	assert.Zero(t, count)
	assert.Empty(t, f.store.Entries())
}

// Scenario D: "posts 10" needs exactly ten posts.
func TestCheckAchievements_PostThreshold(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.addUser("u1", 0)
	f.addAchievement(t, "Participante Activo", gamification.TypeAcademic, gamification.TierSilver, 25, "posts 10")

	f.store.SetActivity("u1", 9, 0)
	unlocked, err := f.svc.CheckAchievements(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, unlocked)

	f.store.AddPost("u1")
	unlocked, err = f.svc.CheckAchievements(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, unlocked, 1)
	assert.Equal(t, "Participante Activo", unlocked[0].Achievement.Name)

	unlocked, err = f.svc.CheckAchievements(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, unlocked)
}

func TestCheckAchievements_FailureDoesNotAbortBatch(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.addUser("u1", 0)
	// Sorted first (academic) and worth zero points, so its award fails.
	f.addAchievement(t, "Broken", gamification.TypeAcademic, gamification.TierBronze, 0, "first post")
	f.addAchievement(t, "Voz en la Comunidad", gamification.TypeSocial, gamification.TierBronze, 5, "first comment")

	f.store.SetActivity("u1", 1, 1)

	unlocked, err := f.svc.CheckAchievements(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, unlocked, 1)
	assert.Equal(t, "Voz en la Comunidad", unlocked[0].Achievement.Name)

	ids, err := f.store.Achievements().EarnedIDs(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, ids, 1)
	f.assertConsistent(t, "u1")
}

func TestCheckAchievements_BonusFeedsLaterConditions(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.addUser("u1", 95)
	f.addAchievement(t, "Primer Paso", gamification.TypeAcademic, gamification.TierBronze, 10, "first post")
	f.addAchievement(t, "Novato de la Comunidad", gamification.TypeCompletion, gamification.TierBronze, 15, "total points 100")
	f.store.AddPost("u1")

	unlocked, err := f.svc.CheckAchievements(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, unlocked, 2)
	assert.Equal(t, "Primer Paso", unlocked[0].Achievement.Name)
	assert.Equal(t, "Novato de la Comunidad", unlocked[1].Achievement.Name)
	assert.Equal(t, int64(120), unlocked[1].TotalPoints())
}

func TestCheckAchievements_SkipsInactiveAndInert(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.addUser("u1", 5000)
	f.addAchievement(t, "Día de Suerte", gamification.TypeSpecial, gamification.TierBronze, 10, "first like")

	inactive, err := gamification.NewAchievement(gamification.NewAchievementParams{
		Code: "old", Name: "Old", Type: gamification.TypeMilestone, Tier: gamification.TierGold,
		Points: 10, ConditionDescription: "level 1", IsActive: false,
	})
	require.NoError(t, err)
	_, err = f.store.Achievements().GetOrCreate(ctx, inactive)
	require.NoError(t, err)

	unlocked, err := f.svc.CheckAchievements(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, unlocked)
}

func TestCheckAchievements_UnknownUser(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.CheckAchievements(context.Background(), "ghost")
	assert.ErrorIs(t, err, gamification.ErrInvalidUser)
}

func TestAwardAchievement_ConcurrentSingleWinner(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.addUser("u1", 0)
	a := f.addAchievement(t, "Nivel 2", gamification.TypeMilestone, gamification.TierBronze, 20, "level 2")

	const workers = 20
	var wins atomic.Int32
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			if _, err := f.svc.AwardAchievement(ctx, "u1", a.ID); err == nil {
				wins.Add(1)
			} else {
				assert.ErrorIs(t, err, gamification.ErrAlreadyEarned)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), wins.Load())
	assert.Len(t, f.store.Entries(), 1)
	f.assertConsistent(t, "u1")
}

// ─────────────────────────────────────────────────────────────────────────────
// Queries
// ─────────────────────────────────────────────────────────────────────────────

func TestGetUserStats(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.addUser("u1", 0)
	f.addAchievement(t, "Primer Paso", gamification.TypeAcademic, gamification.TierBronze, 10, "first post")
	f.store.SetActivity("u1", 2, 3)

	_, err := f.svc.AwardPoints(ctx, "u1", gamification.SourcePost)
	require.NoError(t, err)
	_, err = f.svc.AwardPoints(ctx, "u1", gamification.SourceComment)
	require.NoError(t, err)
	_, err = f.svc.CheckAchievements(ctx, "u1")
	require.NoError(t, err)

	stats, err := f.svc.GetUserStats(ctx, "u1")
	require.NoError(t, err)

	assert.Equal(t, "u1", stats.UserID)
	assert.Equal(t, "user-u1", stats.Username)
	assert.Equal(t, int64(25), stats.TotalPoints)
	assert.Equal(t, int64(25), stats.ExperiencePoints)
	assert.Equal(t, 1, stats.Level)
	assert.Equal(t, int64(2), stats.TotalPosts)
	assert.Equal(t, int64(3), stats.TotalComments)
	assert.Equal(t, int64(1), stats.TotalAchievements)
	assert.Equal(t, int64(1975), stats.PointsToNextLevel)

	assert.Len(t, stats.PointsBySource, len(gamification.AllSources()))
	assert.Equal(t, int64(10), stats.PointsBySource[gamification.SourcePost])
	assert.Equal(t, int64(5), stats.PointsBySource[gamification.SourceComment])
	assert.Equal(t, int64(10), stats.PointsBySource[gamification.SourceAchievement])
	assert.Equal(t, int64(0), stats.PointsBySource[gamification.SourceNoteShared])

	_, err = f.svc.GetUserStats(ctx, "ghost")
	assert.ErrorIs(t, err, gamification.ErrInvalidUser)
}

func TestLeaderboard(t *testing.T) {
	f := newFixture(t)
	f.addUser("a", 300)
	f.addUser("b", 1200)
	f.addUser("c", 300)

	entries, err := f.svc.Leaderboard(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, entries, 3)

	assert.Equal(t, "b", entries[0].UserID)
	assert.Equal(t, 1, entries[0].Rank)
	assert.Equal(t, 2, entries[0].Level)
	assert.Equal(t, "a", entries[1].UserID)
	assert.Equal(t, "c", entries[2].UserID)
	assert.Equal(t, 3, entries[2].Rank)

	top, err := f.svc.Leaderboard(context.Background(), 1)
	require.NoError(t, err)
	assert.Len(t, top, 1)
}

func TestPointsHistoryAndUserAchievements(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.addUser("u1", 0)
	f.addAchievement(t, "Voz en la Comunidad", gamification.TypeSocial, gamification.TierBronze, 5, "first comment")
	f.store.AddComment("u1")

	_, err := f.svc.AwardPoints(ctx, "u1", gamification.SourceComment)
	require.NoError(t, err)
	_, err = f.svc.CheckAchievements(ctx, "u1")
	require.NoError(t, err)

	history, err := f.svc.PointsHistory(ctx, "u1", 50)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, gamification.SourceAchievement, history[0].Source)
	assert.Equal(t, gamification.SourceComment, history[1].Source)

	earned, err := f.svc.UserAchievements(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, earned, 1)
	assert.Equal(t, "Voz en la Comunidad", earned[0].Achievement.Name)
	assert.Equal(t, gamification.CompletedProgress, earned[0].Progress)

	_, err = f.svc.PointsHistory(ctx, "ghost", 10)
	assert.ErrorIs(t, err, gamification.ErrInvalidUser)
	_, err = f.svc.UserAchievements(ctx, "ghost")
	assert.ErrorIs(t, err, gamification.ErrInvalidUser)
}

func TestAuditUser(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.addUser("u1", 0)
	// Seeded with a balance that has no ledger entries behind it.
	f.addUser("u2", 1500)

	_, err := f.svc.AwardPoints(ctx, "u1", gamification.SourcePost)
	require.NoError(t, err)

	u1, err := f.store.Users().GetByID(ctx, "u1")
	require.NoError(t, err)
	report, err := f.svc.AuditUser(ctx, u1)
	require.NoError(t, err)
	assert.True(t, report.Consistent())

	u2, err := f.store.Users().GetByID(ctx, "u2")
	require.NoError(t, err)
	report, err = f.svc.AuditUser(ctx, u2)
	require.NoError(t, err)
	assert.True(t, report.PointsDrift())
	assert.False(t, report.LevelDrift())
}

func TestAwardPoints_PublishesPointsAwarded(t *testing.T) {
	f := newFixture(t)
	f.addUser("u1", 0)

	_, err := f.svc.AwardPoints(context.Background(), "u1", gamification.SourceNoteShared)
	require.NoError(t, err)

	events := f.pub.ofType(shared.EventPointsAwarded)
	require.Len(t, events, 1)
	ev := events[0].(shared.PointsAwardedEvent)
	assert.Equal(t, "u1", ev.UserID)
	assert.Equal(t, "note_shared", ev.Source)
	assert.Equal(t, 8, ev.Points)
	assert.Equal(t, int64(8), ev.TotalPoints)
}
