package common

import (
	"errors"
	"fmt"
	"testing"
)

func TestError_Error(t *testing.T) {
	e := &Error{Code: "SOME_CODE", Message: "something happened", StatusCode: 400}
	if got := e.Error(); got != "SOME_CODE: something happened" {
		t.Fatalf("unexpected message: %q", got)
	}

	e.Details = "column does not exist"
	if got := e.Error(); got != "SOME_CODE: something happened (column does not exist)" {
		t.Fatalf("unexpected message with details: %q", got)
	}
}

func TestSentinels_MatchByIdentity(t *testing.T) {
	wrapped := fmt.Errorf("login: %w", ErrInvalidCredentials)

	if !errors.Is(wrapped, ErrInvalidCredentials) {
		t.Fatalf("errors.Is must match the wrapped sentinel")
	}
	if errors.Is(wrapped, ErrAccountLocked) {
		t.Fatalf("errors.Is must not match a different sentinel")
	}

	var opErr *Error
	if !errors.As(wrapped, &opErr) {
		t.Fatalf("errors.As must extract *Error")
	}
	if opErr.StatusCode != 401 {
		t.Fatalf("expected 401, got %d", opErr.StatusCode)
	}
}

func TestInternal_CarriesCauseAsDetails(t *testing.T) {
	e := Internal("LOGIN_FAILED", "Failed to authenticate user", errors.New("db down"))
	if e.StatusCode != 500 {
		t.Fatalf("expected 500, got %d", e.StatusCode)
	}
	if e.Details != "db down" {
		t.Fatalf("expected cause in details, got %q", e.Details)
	}

	e = Internal("LOGIN_FAILED", "Failed to authenticate user", nil)
	if e.Details != "" {
		t.Fatalf("expected empty details for nil cause, got %q", e.Details)
	}
}

func TestValidation(t *testing.T) {
	e := Validation("email: must be a valid email address")
	if e.Code != "VALIDATION_ERROR" || e.StatusCode != 400 {
		t.Fatalf("unexpected error: %+v", e)
	}
	if e.Details == "" {
		t.Fatalf("expected details to be set")
	}
}
