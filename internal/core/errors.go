package core

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound reports a missing subject or room.
	ErrNotFound = errors.New("not found")

	// ErrRoomExists is returned by providers asked to create a duplicate room.
	ErrRoomExists = errors.New("room already exists")
)

// ValidationError reports malformed caller input.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// AuthError reports a missing or invalid identity.
type AuthError struct {
	Reason string
}

func (e *AuthError) Error() string {
	if e.Reason == "" {
		return "unauthorized"
	}
	return "unauthorized: " + e.Reason
}

// ConfigError reports that a required backing provider is not configured.
type ConfigError struct {
	Component string
}

func (e *ConfigError) Error() string {
	return e.Component + " is not configured"
}

// RateLimitError reports a denied admission.
type RateLimitError struct {
	Category Category
	Decision Decision
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limit exceeded for %s", e.Category)
}

// UpstreamError wraps an unexpected provider failure.
type UpstreamError struct {
	Op  string
	Err error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var target *ValidationError
	return errors.As(err, &target)
}

// IsConfig reports whether err is a ConfigError.
func IsConfig(err error) bool {
	var target *ConfigError
	return errors.As(err, &target)
}

// IsAuth reports whether err is an AuthError.
func IsAuth(err error) bool {
	var target *AuthError
	return errors.As(err, &target)
}
