// Package command contains write operations (CQRS - Commands).
package command

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/campushub/gamification/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// RECORD ACTIVITY COMMAND
// Accepts an activity reported by the content side (post created, like
// received...) and puts it on the event bus, where the activity hooks turn
// it into points.
// ══════════════════════════════════════════════════════════════════════════════

// RecordActivityCommand is one reported activity.
type RecordActivityCommand struct {
	// UserID is the user who earns the points.
	UserID string

	// Type is one of shared.ActivityEventTypes.
	Type shared.EventType

	// Subject is a short hint for the ledger description: post excerpt,
	// note title, liker or post author username.
	Subject string

	// Count is the streak length for activity.login_streak.
	Count int

	// CorrelationID for tracing.
	CorrelationID string
}

// Validate validates the command.
func (c RecordActivityCommand) Validate() error {
	if c.UserID == "" {
		return errors.New("record_activity: user_id is required")
	}
	if !c.Type.IsActivity() {
		return fmt.Errorf("record_activity: unknown activity type: %s", c.Type)
	}
	if c.Type == shared.EventLoginStreak && c.Count <= 0 {
		return errors.New("record_activity: count must be positive for login streaks")
	}
	return nil
}

// RecordActivityResult is returned once the activity is on the bus.
type RecordActivityResult struct {
	UserID     string           `json:"user_id"`
	Type       shared.EventType `json:"type"`
	AcceptedAt time.Time        `json:"accepted_at"`
}

// RecordActivityHandler handles RecordActivityCommand.
type RecordActivityHandler struct {
	publisher shared.EventPublisher
	logger    *slog.Logger
}

// NewRecordActivityHandler creates the handler.
func NewRecordActivityHandler(publisher shared.EventPublisher, logger *slog.Logger) *RecordActivityHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &RecordActivityHandler{
		publisher: publisher,
		logger:    logger.With("command", "record_activity"),
	}
}

// Handle validates the command and publishes the activity event.
func (h *RecordActivityHandler) Handle(ctx context.Context, cmd RecordActivityCommand) (*RecordActivityResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, shared.WrapError("command.RecordActivity", shared.ErrValidation, err.Error(), err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	event := shared.NewActivityEvent(cmd.Type, cmd.UserID, cmd.Subject, cmd.Count)
	if cmd.CorrelationID != "" {
		event.BaseEvent = event.BaseEvent.WithCorrelationID(cmd.CorrelationID)
	}

	if err := h.publisher.Publish(event); err != nil {
		return nil, shared.WrapError("command.RecordActivity", shared.ErrServiceUnavailable, "failed to publish activity", err)
	}

	h.logger.Debug("activity accepted",
		"user_id", cmd.UserID,
		"type", cmd.Type,
	)

	return &RecordActivityResult{
		UserID:     cmd.UserID,
		Type:       cmd.Type,
		AcceptedAt: event.OccurredAt(),
	}, nil
}
