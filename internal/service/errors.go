// Package service holds the Auth API and Credit API business logic.
package service

import (
	"errors"
	"sort"
	"strings"
)

// Service errors.
var (
	ErrInvalidEmail       = errors.New("invalid email")
	ErrWeakPassword       = errors.New("password must be at least 6 characters")
	ErrEmailExists        = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("bad credentials")
	ErrUserNotFound       = errors.New("user not found")
	ErrCreditNotFound     = errors.New("credit not found")
	ErrInvalidToken       = errors.New("invalid token")
	ErrTokenExpired       = errors.New("token expired")
	ErrMailDeliveryFailed = errors.New("mail delivery failed")
)

// ValidationError maps field names to their validation messages.
// Errors that are not tied to a field use the "_schema" key.
type ValidationError struct {
	Fields map[string][]string
}

// SchemaField is the key used for errors about the body as a whole.
const SchemaField = "_schema"

func newValidationError() *ValidationError {
	return &ValidationError{Fields: make(map[string][]string)}
}

func (e *ValidationError) add(field, msg string) {
	e.Fields[field] = append(e.Fields[field], msg)
}

func (e *ValidationError) empty() bool {
	return len(e.Fields) == 0
}

func (e *ValidationError) Error() string {
	names := make([]string, 0, len(e.Fields))
	for name := range e.Fields {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, name+": "+strings.Join(e.Fields[name], " "))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}
