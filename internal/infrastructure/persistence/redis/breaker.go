package redis

import (
	"context"
	"errors"
	"time"

	"github.com/sony/gobreaker"
)

// BreakerSettings returns the gobreaker settings for the leaderboard
// projection: three consecutive Redis failures open the circuit for fifteen
// seconds, then a single trial request decides whether it closes again.
//
// Errors matching ignore, and context cancellation, are answers rather than
// outages and never count against Redis.
func BreakerSettings(name string, onStateChange func(name string, from, to gobreaker.State), ignore ...error) gobreaker.Settings {
	return gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Timeout:     15 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		OnStateChange: onStateChange,
		IsSuccessful: func(err error) bool {
			if err == nil || errors.Is(err, context.Canceled) {
				return true
			}
			for _, target := range ignore {
				if errors.Is(err, target) {
					return true
				}
			}
			return false
		},
	}
}

// NewBreaker builds a circuit breaker from BreakerSettings.
func NewBreaker(name string, onStateChange func(name string, from, to gobreaker.State), ignore ...error) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(BreakerSettings(name, onStateChange, ignore...))
}

// IsBreakerOpen reports whether err means the call was refused by the
// breaker without reaching Redis.
func IsBreakerOpen(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}
