package domain

import "time"

// RefreshToken persists one active session. The token string is rewritten
// in place on every successful refresh; at most one valid string exists
// per session slot at any time.
type RefreshToken struct {
	ID        int64
	UserID    int64
	Token     string
	ExpiresAt time.Time
	CreatedAt time.Time
}

// Expired reports whether the session is past its TTL.
func (t RefreshToken) Expired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}

// ResetToken is a one-time, short-lived password reset capability.
// Unlike session tokens it is a bare random string, not a signed blob.
type ResetToken struct {
	Token     string
	UserID    int64
	ExpiresAt time.Time
}

// Expired reports whether the reset capability is past its TTL.
func (t ResetToken) Expired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}
