// Package eventhandler contains the integration points between user activity
// and the gamification engine, plus the handlers that keep read models in
// sync with domain events.
package eventhandler

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/campushub/gamification/internal/application/engine"
	"github.com/campushub/gamification/internal/domain/gamification"
	"github.com/campushub/gamification/internal/domain/shared"
)

// ═══════════════════════════════════════════════════════════════════════════
// ACTIVITY HOOKS
// Called by the content write paths (posts, comments, likes, notes) right
// after the record is created. Every hook awards the points for the action
// and then checks the achievement catalog for the user.
//
// Errors from the award surface to the caller. Achievement evaluation never
// fails the hook once the points are in.
// ═══════════════════════════════════════════════════════════════════════════

// Engine is the part of the gamification service the hooks use.
type Engine interface {
	AwardPoints(ctx context.Context, userID string, source gamification.Source, opts ...engine.AwardOption) (*engine.AwardResult, error)
	CheckAchievements(ctx context.Context, userID string) ([]*engine.AchievementResult, error)
}

// excerptLength is how much of a post makes it into the ledger description.
const excerptLength = 50

// HookResult is what one hook did.
type HookResult struct {
	Award    *engine.AwardResult
	Unlocked []*engine.AchievementResult
}

// ActivityHooks turns user activity into points.
type ActivityHooks struct {
	engine Engine
	logger *slog.Logger
}

// NewActivityHooks creates the hooks.
func NewActivityHooks(e Engine, logger *slog.Logger) *ActivityHooks {
	if logger == nil {
		logger = slog.Default()
	}
	return &ActivityHooks{
		engine: e,
		logger: logger.With("handler", "activity_hooks"),
	}
}

// OnPostCreated awards the author of a new post.
func (h *ActivityHooks) OnPostCreated(ctx context.Context, authorID, content string) (*HookResult, error) {
	return h.award(ctx, authorID, gamification.SourcePost,
		`Post created: "`+truncateRunes(content, excerptLength)+`"...`)
}

// OnCommentCreated awards the author of a new comment.
// postAuthor is the username of the commented post's author.
func (h *ActivityHooks) OnCommentCreated(ctx context.Context, authorID, postAuthor string) (*HookResult, error) {
	return h.award(ctx, authorID, gamification.SourceComment,
		"Comment created on post by "+postAuthor)
}

// OnLikeReceived awards the author of liked content.
func (h *ActivityHooks) OnLikeReceived(ctx context.Context, contentAuthorID, liker string) (*HookResult, error) {
	return h.award(ctx, contentAuthorID, gamification.SourceLikeReceived,
		liker+" liked your content")
}

// OnNoteShared awards the author of a shared study note.
func (h *ActivityHooks) OnNoteShared(ctx context.Context, authorID, title string) (*HookResult, error) {
	return h.award(ctx, authorID, gamification.SourceNoteShared,
		`Note shared: "`+truncateRunes(title, excerptLength)+`"`)
}

// OnLoginStreak awards a user who kept logging in for days in a row.
func (h *ActivityHooks) OnLoginStreak(ctx context.Context, userID string, days int) (*HookResult, error) {
	return h.award(ctx, userID, gamification.SourceLoginStreak,
		fmt.Sprintf("Login streak: %d days", days))
}

// OnHelpGiven awards a user who helped someone else.
func (h *ActivityHooks) OnHelpGiven(ctx context.Context, helperID, helped string) (*HookResult, error) {
	description := ""
	if helped != "" {
		description = "Helped " + helped
	}
	return h.award(ctx, helperID, gamification.SourceHelpOthers, description)
}

func (h *ActivityHooks) award(ctx context.Context, userID string, source gamification.Source, description string) (*HookResult, error) {
	// Content without an author (deleted account) earns nothing.
	if userID == "" {
		return &HookResult{}, nil
	}

	var opts []engine.AwardOption
	if description != "" {
		opts = append(opts, engine.WithDescription(description))
	}

	award, err := h.engine.AwardPoints(ctx, userID, source, opts...)
	if err != nil {
		return nil, fmt.Errorf("award %s points: %w", source, err)
	}

	unlocked, err := h.engine.CheckAchievements(ctx, userID)
	if err != nil {
		h.logger.Error("achievement check failed",
			"user_id", userID,
			"source", source,
			"error", err,
		)
	}

	return &HookResult{Award: award, Unlocked: unlocked}, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Event bus wiring
// ─────────────────────────────────────────────────────────────────────────────

// Handle dispatches an activity event to the matching hook.
// Implements shared.EventHandler.
func (h *ActivityHooks) Handle(ctx context.Context, event shared.Event) error {
	ev, ok := event.(shared.ActivityEvent)
	if !ok {
		h.logger.Warn("received non-activity event", "event_type", event.EventType())
		return nil
	}

	var err error

	switch ev.EventType() {
	case shared.EventPostCreated:
		_, err = h.OnPostCreated(ctx, ev.UserID, ev.Subject)
	case shared.EventCommentCreated:
		_, err = h.OnCommentCreated(ctx, ev.UserID, ev.Subject)
	case shared.EventLikeReceived:
		_, err = h.OnLikeReceived(ctx, ev.UserID, ev.Subject)
	case shared.EventNoteShared:
		_, err = h.OnNoteShared(ctx, ev.UserID, ev.Subject)
	case shared.EventLoginStreak:
		_, err = h.OnLoginStreak(ctx, ev.UserID, ev.Count)
	case shared.EventHelpGiven:
		_, err = h.OnHelpGiven(ctx, ev.UserID, ev.Subject)
	default:
		h.logger.Warn("unhandled activity event", "event_type", ev.EventType())
		return nil
	}

	if err != nil {
		h.logger.Error("activity hook failed",
			"event_type", ev.EventType(),
			"user_id", ev.UserID,
			"error", err,
		)
	}
	return err
}

// Register subscribes the hooks to every activity event type.
func (h *ActivityHooks) Register(bus shared.EventSubscriber) error {
	for _, t := range shared.ActivityEventTypes {
		if err := bus.Subscribe(t, h.Handle); err != nil {
			return fmt.Errorf("subscribe %s: %w", t, err)
		}
	}
	return nil
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
