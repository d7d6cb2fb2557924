package models

import "time"

// Session is an authenticated bearer-token row. TokenHash is the SHA-256 hex
// digest of the opaque token; the plaintext is returned to the caller exactly
// once at creation and never persisted.
type Session struct {
	ID        string
	UserID    int64
	TokenHash string
	IPAddress string
	UserAgent string
	ExpiresAt time.Time
	CreatedAt time.Time
}

// Expired reports whether the session is past its expiry at the given time.
func (s *Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.After(now)
}
