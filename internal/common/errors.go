// Package common defines shared sentinel errors and small helpers used across
// the auth service. Callers should use errors.Is / errors.As to match these
// values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound = errors.New("not found")

	// Token lifecycle errors. Both map to INVALID_TOKEN at the HTTP layer;
	// they stay distinct so callers can log the reason.
	ErrTokenExpired       = errors.New("token expired")
	ErrInvalidBearerToken = errors.New("invalid token")
)

// Error is an operational error: an expected failure that is safe to surface
// to clients. Services return these instead of letting faults escape their
// boundary; the HTTP layer maps them onto the response envelope.
type Error struct {
	Code       string
	Message    string
	StatusCode int
	Details    string
}

func (e *Error) Error() string {
	if e.Details != "" {
		return e.Code + ": " + e.Message + " (" + e.Details + ")"
	}
	return e.Code + ": " + e.Message
}

// Sentinel operational errors. These are matched by identity (errors.Is),
// so they must never be mutated.
var (
	ErrUserExists = &Error{
		Code:       "USER_EXISTS",
		Message:    "User with this email or username already exists",
		StatusCode: 409,
	}
	ErrWeakPassword = &Error{
		Code:       "WEAK_PASSWORD",
		Message:    "Password must be at least 8 characters long",
		StatusCode: 400,
	}
	ErrInvalidCredentials = &Error{
		Code:       "INVALID_CREDENTIALS",
		Message:    "Invalid email or password",
		StatusCode: 401,
	}
	ErrAccountLocked = &Error{
		Code:       "ACCOUNT_LOCKED",
		Message:    "Account is temporarily locked due to too many failed login attempts",
		StatusCode: 423,
	}
	ErrInvalidRefreshToken = &Error{
		Code:       "INVALID_REFRESH_TOKEN",
		Message:    "Invalid refresh token",
		StatusCode: 401,
	}
	ErrMissingRefreshToken = &Error{
		Code:       "MISSING_REFRESH_TOKEN",
		Message:    "Refresh token is required",
		StatusCode: 400,
	}
	ErrInvalidResponses = &Error{
		Code:       "INVALID_RESPONSES",
		Message:    "Assessment responses are required and must be an array",
		StatusCode: 400,
	}
	ErrUserNotFound = &Error{
		Code:       "USER_NOT_FOUND",
		Message:    "User not found",
		StatusCode: 404,
	}
	ErrMissingToken = &Error{
		Code:       "MISSING_TOKEN",
		Message:    "Access token is required",
		StatusCode: 401,
	}
	ErrInvalidToken = &Error{
		Code:       "INVALID_TOKEN",
		Message:    "Invalid or expired token",
		StatusCode: 401,
	}
	ErrRateLimited = &Error{
		Code:       "RATE_LIMITED",
		Message:    "Too many requests, please try again later",
		StatusCode: 429,
	}
)

// Internal wraps an unexpected infrastructure failure into a generic
// operational 500. The cause's message travels in Details.
func Internal(code, message string, cause error) *Error {
	e := &Error{Code: code, Message: message, StatusCode: 500}
	if cause != nil {
		e.Details = cause.Error()
	}
	return e
}

// Validation builds a 400 VALIDATION_ERROR carrying field-level details.
func Validation(details string) *Error {
	return &Error{
		Code:       "VALIDATION_ERROR",
		Message:    "Invalid input data",
		StatusCode: 400,
		Details:    details,
	}
}
