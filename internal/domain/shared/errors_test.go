package shared

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDomainError_MatchesKindAndCause(t *testing.T) {
	cause := errors.New("duplicate key")
	err := fmt.Errorf("create user: %w", WrapError("gamification.user", ErrAlreadyExists, "username already taken", cause))

	assert.True(t, IsAlreadyExists(err))
	assert.ErrorIs(t, err, cause)
	assert.False(t, IsNotFound(err))
	assert.Equal(t, "create user: gamification.user: username already taken: duplicate key", err.Error())

	var de *DomainError
	assert.True(t, errors.As(err, &de))
	assert.Equal(t, "username already taken", de.Message)
}

func TestDomainError_Sentinel(t *testing.T) {
	errMissing := NewDomainError("gamification.achievement", ErrNotFound, "achievement not found")

	assert.True(t, IsNotFound(errMissing))
	assert.ErrorIs(t, fmt.Errorf("load: %w", errMissing), errMissing)
	assert.Equal(t, "gamification.achievement: achievement not found", errMissing.Error())
}

func TestIsValidation(t *testing.T) {
	assert.True(t, IsValidation(NewDomainError("x.y", ErrInvalidInput, "bad")))
	assert.True(t, IsValidation(NewDomainError("x.y", ErrValidation, "bad")))
	assert.False(t, IsValidation(NewDomainError("x.y", ErrServiceUnavailable, "down")))
	assert.False(t, IsValidation(nil))
}
