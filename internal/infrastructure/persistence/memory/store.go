// Package memory provides a thread-safe in-memory implementation of the
// gamification store. It backs unit tests and the API in dev mode, and gives
// the same per-user serialisation guarantee as the PostgreSQL store.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/campushub/gamification/internal/domain/gamification"
	"github.com/campushub/gamification/internal/domain/shared"
)

// Store is an in-memory gamification.Store.
type Store struct {
	mu sync.RWMutex

	users        map[string]*gamification.User
	entries      []*gamification.PointsEntry
	achievements map[string]*gamification.Achievement
	earned       map[string]map[string]*gamification.UserAchievement // user -> achievement -> record
	posts        map[string]int64
	comments     map[string]int64

	locksMu   sync.Mutex
	userLocks map[string]*sync.Mutex

	counter atomic.Uint64
}

// New creates an empty Store.
func New() *Store {
	return &Store{
		users:        make(map[string]*gamification.User),
		achievements: make(map[string]*gamification.Achievement),
		earned:       make(map[string]map[string]*gamification.UserAchievement),
		posts:        make(map[string]int64),
		comments:     make(map[string]int64),
		userLocks:    make(map[string]*sync.Mutex),
	}
}

var _ gamification.Store = (*Store)(nil)

// NextID generates a deterministic ID with the given prefix, e.g. "ach_000001".
func (s *Store) NextID(prefix string) string {
	n := s.counter.Add(1)
	return fmt.Sprintf("%s_%06d", prefix, n)
}

// ─────────────────────────────────────────────────────────────────────────────
// Fixtures
// ─────────────────────────────────────────────────────────────────────────────

// AddUser inserts or replaces a user. A zero level is normalised.
func (s *Store) AddUser(u *gamification.User) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *u
	if cp.Level == 0 {
		cp.Level = gamification.LevelFor(cp.ExperiencePoints)
	}
	s.users[cp.ID] = &cp
}

// AddPost records one post authored by userID.
func (s *Store) AddPost(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.posts[userID]++
}

// AddComment records one comment authored by userID.
func (s *Store) AddComment(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.comments[userID]++
}

// SetActivity overwrites the post and comment counts of a user.
func (s *Store) SetActivity(userID string, posts, comments int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.posts[userID] = posts
	s.comments[userID] = comments
}

// SetAchievementPoints changes the reward of a catalog entry, as an admin
// edit would. It reports whether the achievement exists.
func (s *Store) SetAchievementPoints(id string, points int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.achievements[id]
	if ok {
		a.Points = points
	}
	return ok
}

// Entries returns a copy of every ledger entry in insertion order.
func (s *Store) Entries() []gamification.PointsEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]gamification.PointsEntry, len(s.entries))
	for i, e := range s.entries {
		out[i] = *e
	}
	return out
}

// ─────────────────────────────────────────────────────────────────────────────
// Store
// ─────────────────────────────────────────────────────────────────────────────

// Users implements gamification.Store.
func (s *Store) Users() gamification.UserRepository { return (*userRepo)(s) }

// Ledger implements gamification.Store.
func (s *Store) Ledger() gamification.LedgerReader { return (*ledgerRepo)(s) }

// Achievements implements gamification.Store.
func (s *Store) Achievements() gamification.AchievementRepository { return (*achievementRepo)(s) }

// Activity implements gamification.Store.
func (s *Store) Activity() gamification.ActivityCounter { return (*activityRepo)(s) }

// WithinTx runs fn with staged writes that are applied atomically when fn
// returns nil. Users locked through the tx stay locked until it ends.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, tx gamification.Tx) error) error {
	tx := &memTx{
		store: s,
		users: make(map[string]*gamification.User),
	}
	defer tx.release()

	if err := ctx.Err(); err != nil {
		return err
	}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	return tx.commit()
}

func (s *Store) userLock(userID string) *sync.Mutex {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()

	l, ok := s.userLocks[userID]
	if !ok {
		l = &sync.Mutex{}
		s.userLocks[userID] = l
	}
	return l
}

// ══════════════════════════════════════════════════════════════════════════════
// TRANSACTION
// ══════════════════════════════════════════════════════════════════════════════

type memTx struct {
	store  *Store
	locked []*sync.Mutex

	users   map[string]*gamification.User
	entries []*gamification.PointsEntry
	earned  []*gamification.UserAchievement
}

func (t *memTx) LockUser(ctx context.Context, userID string) (*gamification.User, error) {
	if u, ok := t.users[userID]; ok {
		cp := *u
		return &cp, nil
	}

	t.store.mu.RLock()
	_, ok := t.store.users[userID]
	t.store.mu.RUnlock()
	if !ok {
		return nil, gamification.ErrInvalidUser
	}

	l := t.store.userLock(userID)
	l.Lock()
	t.locked = append(t.locked, l)

	// Re-read after acquiring the lock: a concurrent tx may have committed.
	t.store.mu.RLock()
	u := *t.store.users[userID]
	t.store.mu.RUnlock()

	t.users[userID] = &u
	cp := u
	return &cp, ctx.Err()
}

func (t *memTx) SaveUserTotals(_ context.Context, u *gamification.User) error {
	staged, ok := t.users[u.ID]
	if !ok {
		return fmt.Errorf("save user %s: not locked in this transaction", u.ID)
	}
	staged.TotalPoints = u.TotalPoints
	staged.ExperiencePoints = u.ExperiencePoints
	staged.Level = u.Level
	staged.UpdatedAt = u.UpdatedAt
	return nil
}

func (t *memTx) AppendEntry(_ context.Context, e *gamification.PointsEntry) error {
	cp := *e
	t.entries = append(t.entries, &cp)
	return nil
}

func (t *memTx) UserAchievementExists(_ context.Context, userID, achievementID string) (bool, error) {
	for _, ua := range t.earned {
		if ua.UserID == userID && ua.AchievementID == achievementID {
			return true, nil
		}
	}

	t.store.mu.RLock()
	defer t.store.mu.RUnlock()
	_, ok := t.store.earned[userID][achievementID]
	return ok, nil
}

func (t *memTx) InsertUserAchievement(ctx context.Context, ua *gamification.UserAchievement) error {
	exists, err := t.UserAchievementExists(ctx, ua.UserID, ua.AchievementID)
	if err != nil {
		return err
	}
	if exists {
		return gamification.ErrAlreadyEarned
	}
	cp := *ua
	t.earned = append(t.earned, &cp)
	return nil
}

func (t *memTx) commit() error {
	s := t.store
	s.mu.Lock()
	defer s.mu.Unlock()

	// Same guarantee as the unique (user_id, achievement_id) index.
	for _, ua := range t.earned {
		if _, ok := s.earned[ua.UserID][ua.AchievementID]; ok {
			return gamification.ErrAlreadyEarned
		}
	}

	for id, u := range t.users {
		cp := *u
		s.users[id] = &cp
	}
	s.entries = append(s.entries, t.entries...)
	for _, ua := range t.earned {
		m, ok := s.earned[ua.UserID]
		if !ok {
			m = make(map[string]*gamification.UserAchievement)
			s.earned[ua.UserID] = m
		}
		m[ua.AchievementID] = ua
	}
	return nil
}

func (t *memTx) release() {
	for i := len(t.locked) - 1; i >= 0; i-- {
		t.locked[i].Unlock()
	}
	t.locked = nil
}

// ══════════════════════════════════════════════════════════════════════════════
// REPOSITORIES
// ══════════════════════════════════════════════════════════════════════════════

type userRepo Store

func (r *userRepo) GetByID(_ context.Context, id string) (*gamification.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.users[id]
	if !ok {
		return nil, gamification.ErrInvalidUser
	}
	cp := *u
	return &cp, nil
}

func (r *userRepo) TopByPoints(_ context.Context, limit int) ([]*gamification.User, error) {
	r.mu.RLock()
	list := make([]*gamification.User, 0, len(r.users))
	for _, u := range r.users {
		cp := *u
		list = append(list, &cp)
	}
	r.mu.RUnlock()

	sort.Slice(list, func(i, j int) bool {
		if list[i].TotalPoints != list[j].TotalPoints {
			return list[i].TotalPoints > list[j].TotalPoints
		}
		return list[i].Username < list[j].Username
	})

	if limit > 0 && len(list) > limit {
		list = list[:limit]
	}
	return list, nil
}

func (r *userRepo) List(_ context.Context, page shared.Page) ([]*gamification.User, error) {
	r.mu.RLock()
	list := make([]*gamification.User, 0, len(r.users))
	for _, u := range r.users {
		cp := *u
		list = append(list, &cp)
	}
	r.mu.RUnlock()

	sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })
	return paginate(list, page), nil
}

type ledgerRepo Store

func (r *ledgerRepo) SumForUser(_ context.Context, userID string) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var sum int64
	for _, e := range r.entries {
		if e.UserID == userID {
			sum += int64(e.Points)
		}
	}
	return sum, nil
}

func (r *ledgerRepo) ListForUser(_ context.Context, userID string, page shared.Page) ([]*gamification.PointsEntry, error) {
	r.mu.RLock()
	var list []*gamification.PointsEntry
	for i := len(r.entries) - 1; i >= 0; i-- {
		if e := r.entries[i]; e.UserID == userID {
			cp := *e
			list = append(list, &cp)
		}
	}
	r.mu.RUnlock()

	// Insertion order already matches commit order; keep it for equal timestamps.
	sort.SliceStable(list, func(i, j int) bool {
		return list[i].CreatedAt.After(list[j].CreatedAt)
	})
	return paginate(list, page), nil
}

func (r *ledgerRepo) SumBySource(_ context.Context, userID string) (map[gamification.Source]int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[gamification.Source]int64)
	for _, e := range r.entries {
		if e.UserID == userID {
			out[e.Source] += int64(e.Points)
		}
	}
	return out, nil
}

type achievementRepo Store

func (r *achievementRepo) ListActive(_ context.Context) ([]*gamification.Achievement, error) {
	return r.list(true), nil
}

func (r *achievementRepo) ListAll(_ context.Context) ([]*gamification.Achievement, error) {
	return r.list(false), nil
}

func (r *achievementRepo) list(activeOnly bool) []*gamification.Achievement {
	r.mu.RLock()
	out := make([]*gamification.Achievement, 0, len(r.achievements))
	for _, a := range r.achievements {
		if activeOnly && !a.IsActive {
			continue
		}
		cp := *a
		out = append(out, &cp)
	}
	r.mu.RUnlock()

	gamification.SortAchievements(out)
	return out
}

func (r *achievementRepo) GetByID(_ context.Context, id string) (*gamification.Achievement, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.achievements[id]
	if !ok {
		return nil, gamification.ErrAchievementNotFound
	}
	cp := *a
	return &cp, nil
}

func (r *achievementRepo) GetOrCreate(_ context.Context, a *gamification.Achievement) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.achievements {
		if existing.Code == a.Code || existing.Name == a.Name {
			a.ID = existing.ID
			return false, nil
		}
	}

	if a.ID == "" {
		a.ID = (*Store)(r).NextID("ach")
	}
	cp := *a
	r.achievements[cp.ID] = &cp
	return true, nil
}

func (r *achievementRepo) EarnedIDs(_ context.Context, userID string) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.earned[userID]))
	for id := range r.earned[userID] {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func (r *achievementRepo) ListEarned(_ context.Context, userID string) ([]*gamification.EarnedAchievement, error) {
	r.mu.RLock()
	out := make([]*gamification.EarnedAchievement, 0, len(r.earned[userID]))
	for achID, ua := range r.earned[userID] {
		a, ok := r.achievements[achID]
		if !ok {
			continue
		}
		cp := *a
		out = append(out, &gamification.EarnedAchievement{
			Achievement: &cp,
			EarnedAt:    ua.EarnedAt,
			Progress:    ua.Progress,
		})
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].EarnedAt.Equal(out[j].EarnedAt) {
			return out[i].EarnedAt.After(out[j].EarnedAt)
		}
		return out[i].Achievement.Name < out[j].Achievement.Name
	})
	return out, nil
}

func (r *achievementRepo) CountEarned(_ context.Context, userID string) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return int64(len(r.earned[userID])), nil
}

type activityRepo Store

func (r *activityRepo) CountPosts(_ context.Context, userID string) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.posts[userID], nil
}

func (r *activityRepo) CountComments(_ context.Context, userID string) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.comments[userID], nil
}

func paginate[T any](list []T, page shared.Page) []T {
	page = shared.NewPage(page.Limit, page.Offset)
	if page.Offset >= len(list) {
		return nil
	}
	list = list[page.Offset:]
	if len(list) > page.Limit {
		list = list[:page.Limit]
	}
	return list
}
