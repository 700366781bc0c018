// Package domain provides shared domain-level sentinel errors.
package domain

import (
	"errors"
	"fmt"
)

// ErrNotFound indicates the requested entity does not exist.
var ErrNotFound = errors.New("not found")

// ErrConflict indicates the write collides with existing state (a booked slot,
// a duplicate user).
var ErrConflict = errors.New("conflict")

// ErrValidation indicates the caller supplied invalid input.
var ErrValidation = errors.New("validation failed")

// ErrUnauthorized indicates missing or rejected credentials.
var ErrUnauthorized = errors.New("unauthorized")

// Invalid wraps ErrValidation with a human-readable message. The message alone
// is what clients see.
func Invalid(msg string) error {
	return &publicError{msg: msg, kind: ErrValidation}
}

// Invalidf is Invalid with formatting.
func Invalidf(format string, args ...any) error {
	return &publicError{msg: fmt.Sprintf(format, args...), kind: ErrValidation}
}

// Unauthorized wraps ErrUnauthorized with a client-visible message.
func Unauthorized(msg string) error {
	return &publicError{msg: msg, kind: ErrUnauthorized}
}

// Conflict wraps ErrConflict with a client-visible message.
func Conflict(msg string) error {
	return &publicError{msg: msg, kind: ErrConflict}
}

// PublicMessage returns the client-visible message carried by err, if any.
func PublicMessage(err error) (string, bool) {
	var pe *publicError
	if errors.As(err, &pe) {
		return pe.msg, true
	}
	return "", false
}

type publicError struct {
	msg  string
	kind error
}

func (e *publicError) Error() string        { return e.msg }
func (e *publicError) Is(target error) bool { return target == e.kind }
