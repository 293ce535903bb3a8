// Package apperr defines the error taxonomy shared by the session, social
// graph, messaging, feed and capture packages.
package apperr

import (
	"errors"
	"fmt"
)

var (
	// ErrNotAuthenticated is returned when an operation needs a signed-in identity.
	ErrNotAuthenticated = errors.New("not authenticated")
	// ErrNotFound is returned when a referenced identity or document is absent.
	ErrNotFound = errors.New("not found")
	// ErrFollowSelf keeps ids out of their own follower/following sets.
	ErrFollowSelf = errors.New("cannot follow self")
	// ErrInvalidInput flags client input rejected before any I/O.
	ErrInvalidInput = errors.New("invalid input")
)

// AuthError carries the auth provider's message through to the caller.
type AuthError struct {
	Message string
	Err     error
}

func (e *AuthError) Error() string { return e.Message }
func (e *AuthError) Unwrap() error { return e.Err }

// NewAuthError wraps err, keeping its message as the user-facing text.
func NewAuthError(err error) *AuthError {
	if err == nil {
		return nil
	}
	var ae *AuthError
	if errors.As(err, &ae) {
		return ae
	}
	return &AuthError{Message: err.Error(), Err: err}
}

// DeviceError reports a microphone that is unavailable or failed mid-capture.
type DeviceError struct {
	Cause string
	Err   error
}

func (e *DeviceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("device error: %s: %v", e.Cause, e.Err)
	}
	return "device error: " + e.Cause
}

func (e *DeviceError) Unwrap() error { return e.Err }

// PersistenceError is a failed document write. When Diverged is set a local
// mutation was already applied, so local and remote state disagree until a
// retry or reconciliation.
type PersistenceError struct {
	Op         string
	Collection string
	ID         string
	Diverged   bool
	Err        error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s %s/%s: %v", e.Op, e.Collection, e.ID, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// IsNotFound reports whether err is (or wraps) ErrNotFound.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }
