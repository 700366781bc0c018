package domain

import (
	"errors"
	"fmt"
	"testing"
)

func TestInvalidMatchesErrValidation(t *testing.T) {
	err := Invalid("Recipient email is required")
	if !errors.Is(err, ErrValidation) {
		t.Fatal("expected errors.Is(err, ErrValidation)")
	}
	if err.Error() != "Recipient email is required" {
		t.Errorf("unexpected message %q", err.Error())
	}

	wrapped := fmt.Errorf("send confirmation: %w", Invalidf("bad %s", "date"))
	if !errors.Is(wrapped, ErrValidation) {
		t.Fatal("expected wrapped validation error to match")
	}
	if errors.Is(wrapped, ErrNotFound) {
		t.Fatal("validation error must not match ErrNotFound")
	}
}

func TestUnauthorizedPublicMessage(t *testing.T) {
	err := fmt.Errorf("login: %w", Unauthorized("Invalid credentials or role"))
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatal("expected errors.Is(err, ErrUnauthorized)")
	}
	if errors.Is(err, ErrValidation) {
		t.Fatal("unauthorized error must not match ErrValidation")
	}
	msg, ok := PublicMessage(err)
	if !ok || msg != "Invalid credentials or role" {
		t.Errorf("PublicMessage = %q, %v", msg, ok)
	}
	if _, ok := PublicMessage(ErrNotFound); ok {
		t.Error("plain sentinel should carry no public message")
	}
}
