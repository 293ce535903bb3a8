package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPersistenceError_Unwraps(t *testing.T) {
	base := errors.New("disk full")
	err := fmt.Errorf("follow: %w", &PersistenceError{Op: "update", Collection: "users", ID: "u2", Diverged: true, Err: base})

	var pe *PersistenceError
	assert.True(t, errors.As(err, &pe))
	assert.True(t, pe.Diverged)
	assert.ErrorIs(t, err, base)
	assert.Equal(t, "follow: update users/u2: disk full", err.Error())
}

func TestNewAuthError(t *testing.T) {
	assert.Nil(t, NewAuthError(nil))

	ae := NewAuthError(errors.New("email already in use"))
	assert.Equal(t, "email already in use", ae.Error())

	// already an AuthError: returned as-is
	wrapped := fmt.Errorf("signup: %w", ae)
	assert.Same(t, ae, NewAuthError(wrapped))
}

func TestIsNotFound(t *testing.T) {
	assert.True(t, IsNotFound(fmt.Errorf("users/u1: %w", ErrNotFound)))
	assert.False(t, IsNotFound(ErrNotAuthenticated))
}

func TestDeviceError_Message(t *testing.T) {
	err := &DeviceError{Cause: "permission denied"}
	assert.Equal(t, "device error: permission denied", err.Error())
}
