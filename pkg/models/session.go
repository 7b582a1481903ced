package models

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// User identifies the signed-in account.
type User struct {
	ID       int64  `yaml:"id" json:"id"`
	Username string `yaml:"username" json:"username"`
}

// Session is the current user's bearer token and identity. The zero value is
// the signed-out session. It is persisted as a single document so the token
// and the user can never be observed out of step.
type Session struct {
	Token   string    `yaml:"token,omitempty"`
	User    *User     `yaml:"user,omitempty"`
	SavedAt time.Time `yaml:"saved_at,omitempty"`
}

// Active reports whether the session carries a token.
func (s Session) Active() bool {
	return s.Token != ""
}

// ExpiresAt returns the token's exp claim. The token is decoded without
// signature verification; the client never holds the signing key. ok is
// false when the token is not a JWT or carries no exp claim.
func (s Session) ExpiresAt() (exp time.Time, ok bool) {
	if s.Token == "" {
		return time.Time{}, false
	}
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(s.Token, claims); err != nil {
		return time.Time{}, false
	}
	date, err := claims.GetExpirationTime()
	if err != nil || date == nil {
		return time.Time{}, false
	}
	return date.Time, true
}

// Expired reports whether the token carries an exp claim earlier than now.
// Opaque tokens never expire client-side.
func (s Session) Expired(now time.Time) bool {
	exp, ok := s.ExpiresAt()
	return ok && !now.Before(exp)
}

// Username returns the signed-in username, or "" when absent.
func (s Session) Username() string {
	if s.User == nil {
		return ""
	}
	return s.User.Username
}
