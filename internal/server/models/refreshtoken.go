package models

import "time"

// RefreshToken is one opaque refresh token slot belonging to a user.
// CreatedAt orders the slots; rotation replaces the token value in place and
// keeps the slot's position.
type RefreshToken struct {
	Token     string
	UserID    string
	CreatedAt time.Time
	ExpiresAt time.Time
}
