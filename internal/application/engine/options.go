package engine

import (
	"time"

	"github.com/google/uuid"
)

// ══════════════════════════════════════════════════════════════════════════════
// AWARD OPTIONS
// ══════════════════════════════════════════════════════════════════════════════

// AwardOption customises a single AwardPoints call.
type AwardOption func(*awardOptions)

type awardOptions struct {
	points      *int
	description string
}

// WithPoints overrides the points table amount for this award.
func WithPoints(points int) AwardOption {
	return func(o *awardOptions) {
		o.points = &points
	}
}

// WithDescription sets the ledger description for this award.
func WithDescription(description string) AwardOption {
	return func(o *awardOptions) {
		o.description = description
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// SERVICE OPTIONS
// ══════════════════════════════════════════════════════════════════════════════

// Option configures a Service.
type Option func(*Service)

// WithIDGenerator replaces the entity ID generator.
func WithIDGenerator(fn func() string) Option {
	return func(s *Service) {
		s.newID = fn
	}
}

// WithClock replaces the service clock.
func WithClock(fn func() time.Time) Option {
	return func(s *Service) {
		s.now = fn
	}
}

func defaultID() string {
	return uuid.NewString()
}
