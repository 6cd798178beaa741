// Package common defines shared constants and sentinel errors used across
// the voice journal server. Callers should use errors.Is to match these
// values; the HTTP layer maps them to status codes.
package common

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// Repository-level errors.
	ErrNotFound = errors.New("not found")

	// Service-level errors (generic/internal flow control).
	ErrInternal     = errors.New("internal error")
	ErrUnauthorized = errors.New("unauthorized")
	ErrBadRequest   = errors.New("bad request")
	ErrConflict     = errors.New("conflict")

	// Entry-specific errors.
	ErrNoAudio = errors.New("no audio associated with this entry")

	// Transcription returned an empty result; distinct from a transport
	// failure so callers can tell "the engine produced nothing" apart
	// from "the engine was unreachable".
	ErrEmptyTranscription = errors.New("empty transcription result")

	// Auth errors (invalid or malformed token).
	ErrInvalidToken = errors.New("invalid token")

	// Validation sentinel; matched via errors.Is against *ValidationError.
	ErrValidation = errors.New("validation failed")
)

// FieldError describes a single field-level validation problem.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError aggregates field-level problems for one request payload.
// It unwraps to ErrValidation so errors.Is(err, ErrValidation) matches.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	msgs := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		msgs = append(msgs, fmt.Sprintf("%s: %s", f.Field, f.Message))
	}
	return "validation failed: " + strings.Join(msgs, "; ")
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// NewValidationError builds a ValidationError for a single field.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Fields: []FieldError{{Field: field, Message: message}}}
}
