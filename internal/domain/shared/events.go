// Package shared contains common domain types, errors, events, and value objects
// that are used across all domain packages.
package shared

import (
	"context"
	"encoding/json"
	"time"
)

// EventType represents the type of domain event.
type EventType string

// Domain event types - these drive the event-driven architecture.
// Activity events come from the content side of the network, the rest are
// produced by the gamification engine after a successful commit.
const (
	// Activity events
	EventPostCreated    EventType = "activity.post_created"
	EventCommentCreated EventType = "activity.comment_created"
	EventLikeReceived   EventType = "activity.like_received"
	EventNoteShared     EventType = "activity.note_shared"
	EventLoginStreak    EventType = "activity.login_streak"
	EventHelpGiven      EventType = "activity.help_given"

	// Progress events
	EventPointsAwarded EventType = "points.awarded"
	EventLevelUp       EventType = "progress.level_up"

	// Achievement events
	EventAchievementUnlocked EventType = "achievement.unlocked"
)

// ActivityEventTypes lists every event type that may be ingested from outside.
var ActivityEventTypes = []EventType{
	EventPostCreated,
	EventCommentCreated,
	EventLikeReceived,
	EventNoteShared,
	EventLoginStreak,
	EventHelpGiven,
}

// IsActivity reports whether t is an ingestible activity event type.
func (t EventType) IsActivity() bool {
	for _, a := range ActivityEventTypes {
		if a == t {
			return true
		}
	}
	return false
}

// Event is the base interface for all domain events.
type Event interface {
	// EventType returns the type of the event.
	EventType() EventType

	// OccurredAt returns when the event occurred.
	OccurredAt() time.Time

	// AggregateID returns the ID of the aggregate that produced this event.
	AggregateID() string

	// Payload returns the event data as a map for serialization.
	Payload() map[string]interface{}
}

// BaseEvent provides common event functionality.
type BaseEvent struct {
	Type          EventType `json:"type"`
	Timestamp     time.Time `json:"timestamp"`
	AggregateId   string    `json:"aggregate_id"`
	Version       int       `json:"version"`
	CorrelationID string    `json:"correlation_id,omitempty"`
}

// EventType implements Event interface.
func (e BaseEvent) EventType() EventType {
	return e.Type
}

// OccurredAt implements Event interface.
func (e BaseEvent) OccurredAt() time.Time {
	return e.Timestamp
}

// AggregateID implements Event interface.
func (e BaseEvent) AggregateID() string {
	return e.AggregateId
}

// NewBaseEvent creates a new base event.
func NewBaseEvent(eventType EventType, aggregateID string) BaseEvent {
	return BaseEvent{
		Type:        eventType,
		Timestamp:   time.Now(),
		AggregateId: aggregateID,
		Version:     1,
	}
}

// WithCorrelationID sets the correlation ID for tracing.
func (e BaseEvent) WithCorrelationID(id string) BaseEvent {
	e.CorrelationID = id
	return e
}

// ═══════════════════════════════════════════════════════════════════════════
// Activity Events
// ═══════════════════════════════════════════════════════════════════════════

// ActivityEvent is emitted by the content side whenever a user does something
// worth points. The aggregate is the user who receives the points.
type ActivityEvent struct {
	BaseEvent
	UserID string `json:"user_id"`
	// Subject is a short human-readable hint: a post excerpt, a note title,
	// the username of the liker or of the post author.
	Subject string `json:"subject,omitempty"`
	// Count carries a number for events that have one (streak length in days).
	Count int `json:"count,omitempty"`
}

// Payload implements Event interface.
func (e ActivityEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id": e.UserID,
		"subject": e.Subject,
		"count":   e.Count,
	}
}

// NewActivityEvent creates a new ActivityEvent of the given type.
func NewActivityEvent(eventType EventType, userID, subject string, count int) ActivityEvent {
	return ActivityEvent{
		BaseEvent: NewBaseEvent(eventType, userID),
		UserID:    userID,
		Subject:   subject,
		Count:     count,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Progress Events
// ═══════════════════════════════════════════════════════════════════════════

// PointsAwardedEvent is emitted after points have been committed to the ledger.
type PointsAwardedEvent struct {
	BaseEvent
	UserID      string `json:"user_id"`
	EntryID     string `json:"entry_id"`
	Source      string `json:"source"`
	Points      int    `json:"points"`
	TotalPoints int64  `json:"total_points"`
	Level       int    `json:"level"`
}

// Payload implements Event interface.
func (e PointsAwardedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id":      e.UserID,
		"entry_id":     e.EntryID,
		"source":       e.Source,
		"points":       e.Points,
		"total_points": e.TotalPoints,
		"level":        e.Level,
	}
}

// NewPointsAwardedEvent creates a new PointsAwardedEvent.
func NewPointsAwardedEvent(userID, entryID, source string, points int, total int64, level int) PointsAwardedEvent {
	return PointsAwardedEvent{
		BaseEvent:   NewBaseEvent(EventPointsAwarded, userID),
		UserID:      userID,
		EntryID:     entryID,
		Source:      source,
		Points:      points,
		TotalPoints: total,
		Level:       level,
	}
}

// LevelUpEvent is emitted when an award moves a user to a higher level.
type LevelUpEvent struct {
	BaseEvent
	UserID   string `json:"user_id"`
	OldLevel int    `json:"old_level"`
	NewLevel int    `json:"new_level"`
}

// Payload implements Event interface.
func (e LevelUpEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id":   e.UserID,
		"old_level": e.OldLevel,
		"new_level": e.NewLevel,
	}
}

// NewLevelUpEvent creates a new LevelUpEvent.
func NewLevelUpEvent(userID string, oldLevel, newLevel int) LevelUpEvent {
	return LevelUpEvent{
		BaseEvent: NewBaseEvent(EventLevelUp, userID),
		UserID:    userID,
		OldLevel:  oldLevel,
		NewLevel:  newLevel,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Achievement Events
// ═══════════════════════════════════════════════════════════════════════════

// AchievementUnlockedEvent is emitted when a user earns an achievement.
type AchievementUnlockedEvent struct {
	BaseEvent
	UserID          string `json:"user_id"`
	AchievementID   string `json:"achievement_id"`
	AchievementCode string `json:"achievement_code"`
	Name            string `json:"name"`
	Points          int    `json:"points"`
}

// Payload implements Event interface.
func (e AchievementUnlockedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id":          e.UserID,
		"achievement_id":   e.AchievementID,
		"achievement_code": e.AchievementCode,
		"name":             e.Name,
		"points":           e.Points,
	}
}

// NewAchievementUnlockedEvent creates a new AchievementUnlockedEvent.
func NewAchievementUnlockedEvent(userID, achievementID, code, name string, points int) AchievementUnlockedEvent {
	return AchievementUnlockedEvent{
		BaseEvent:       NewBaseEvent(EventAchievementUnlocked, userID),
		UserID:          userID,
		AchievementID:   achievementID,
		AchievementCode: code,
		Name:            name,
		Points:          points,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Event Envelope (for serialization and transport)
// ═══════════════════════════════════════════════════════════════════════════

// EventEnvelope wraps an event for transport/storage.
type EventEnvelope struct {
	ID            string          `json:"id"`
	Type          EventType       `json:"type"`
	AggregateID   string          `json:"aggregate_id"`
	Timestamp     time.Time       `json:"timestamp"`
	Version       int             `json:"version"`
	CorrelationID string          `json:"correlation_id,omitempty"`
	Payload       json.RawMessage `json:"payload"`
}

// EventHandler handles one event. ctx carries the bus's per-handler
// deadline.
type EventHandler func(ctx context.Context, event Event) error

// EventPublisher defines the interface for publishing events.
type EventPublisher interface {
	// Publish sends an event to subscribers.
	Publish(event Event) error
}

// EventSubscriber defines the interface for subscribing to events.
type EventSubscriber interface {
	// Subscribe registers a handler for an event type.
	Subscribe(eventType EventType, handler EventHandler) error

	// SubscribeAll registers a handler for all events.
	SubscribeAll(handler EventHandler) error
}

// EventBus combines publishing and subscribing.
type EventBus interface {
	EventPublisher
	EventSubscriber
}
