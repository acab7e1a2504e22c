// Package auth carries the signed-in user's session through request
// contexts and into every outbound port call.
package auth

import (
	"context"
	"errors"
	"time"
)

// ErrUnauthorized is returned when there is no usable session, or when an
// upstream service rejects the session's token.
var ErrUnauthorized = errors.New("unauthorized")

// Session identifies the signed-in user. AccessToken is forwarded to upstream
// services as a bearer token; it may be empty for local backends.
type Session struct {
	Email       string
	AccessToken string
	ExpiresAt   time.Time
}

// Valid reports whether the session names a user and has not expired.
func (s Session) Valid(now time.Time) bool {
	if s.Email == "" {
		return false
	}
	return s.ExpiresAt.IsZero() || now.Before(s.ExpiresAt)
}

// Key is a stable identifier for per-session state such as dashboard
// navigators.
func (s Session) Key() string {
	if s.AccessToken != "" {
		return s.Email + "|" + s.AccessToken
	}
	return s.Email
}

type contextKey string

const sessionContextKey contextKey = "session"

// WithSession stores s in ctx.
func WithSession(ctx context.Context, s Session) context.Context {
	return context.WithValue(ctx, sessionContextKey, s)
}

// FromContext returns the session stored in ctx, if any.
func FromContext(ctx context.Context) (Session, bool) {
	s, ok := ctx.Value(sessionContextKey).(Session)
	return s, ok
}

// MustFromContext is like FromContext but returns ErrUnauthorized when the
// context carries no session.
func MustFromContext(ctx context.Context) (Session, error) {
	s, ok := FromContext(ctx)
	if !ok || s.Email == "" {
		return Session{}, ErrUnauthorized
	}
	return s, nil
}
