package models

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppError(t *testing.T) {
	t.Run("message without cause", func(t *testing.T) {
		err := NewValidationError("display name is required")
		assert.Equal(t, "display name is required", err.Error())
		assert.True(t, IsValidation(err))
	})

	t.Run("message with cause", func(t *testing.T) {
		cause := errors.New("connection refused")
		err := NewRemoteError("get conversation", cause)
		assert.Contains(t, err.Error(), "get conversation")
		assert.Contains(t, err.Error(), "connection refused")
		assert.ErrorIs(t, err, cause)
	})

	t.Run("classification survives wrapping", func(t *testing.T) {
		err := fmt.Errorf("outer context: %w", NewNotFoundError("user", "u1"))
		assert.True(t, IsNotFound(err))
		assert.False(t, IsValidation(err))
	})

	t.Run("helpers reject plain errors", func(t *testing.T) {
		plain := errors.New("something else")
		assert.False(t, IsNotFound(plain))
		assert.False(t, IsRemote(plain))
		assert.False(t, IsNotFound(nil))
	})
}
