package core

import (
	"errors"
	"fmt"
)

// Storage-level sentinels. Services translate them into the typed errors below.
var (
	ErrNotFound  = errors.New("not found")
	ErrDuplicate = errors.New("duplicate entry")
)

// ValidationError reports malformed, missing or conflicting input.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return e.Field + ": " + e.Message
	}
	return e.Message
}

func NewValidationError(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

// AuthError is a failed login or registration credential check.
type AuthError struct {
	Message string
	// MissingCredentials distinguishes absent input (400) from a rejected login (401).
	MissingCredentials bool
}

func (e *AuthError) Error() string {
	return e.Message
}

// PermissionError is an unauthenticated access to a protected resource.
type PermissionError struct {
	Message string
}

func (e *PermissionError) Error() string {
	if e.Message == "" {
		return "Authentication credentials were not provided."
	}
	return e.Message
}

// NotFoundError covers both unknown ids and ids owned by someone else.
type NotFoundError struct {
	Entity string
	ID     int64
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %d not found", e.Entity, e.ID)
}

// CSRFError is raised when an unsafe authenticated request lacks a valid token.
type CSRFError struct {
	Reason string
}

func (e *CSRFError) Error() string {
	return "CSRF Failed: " + e.Reason
}
