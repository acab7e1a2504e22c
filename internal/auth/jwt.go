package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

// Claims are the session token claims issued by the identity provider.
type Claims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// Verifier checks HS256 session tokens.
type Verifier struct {
	secret []byte
	now    func() time.Time
}

// NewVerifier returns a verifier for tokens signed with secret.
func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: []byte(secret), now: time.Now}
}

// Sign issues a token for email valid for ttl. Used by tests and the dev
// login form; production tokens come from the identity provider.
func (v *Verifier) Sign(email string, ttl time.Duration) (string, error) {
	now := v.now()
	claims := Claims{
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   email,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(v.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// Verify parses token and returns the session it describes. Any failure is
// reported as ErrUnauthorized wrapping the cause.
func (v *Verifier) Verify(token string) (Session, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return Session{}, ErrUnauthorized
	}

	var claims Claims
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	_, err := parser.ParseWithClaims(token, &claims, func(*jwt.Token) (interface{}, error) {
		return v.secret, nil
	})
	if err != nil {
		return Session{}, fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}

	email := claims.Email
	if email == "" {
		email = claims.Subject
	}
	if email == "" {
		return Session{}, fmt.Errorf("%w: token has no email claim", ErrUnauthorized)
	}
	if claims.ExpiresAt == nil {
		return Session{}, fmt.Errorf("%w: token has no expiry", ErrUnauthorized)
	}
	s := Session{Email: email, AccessToken: token, ExpiresAt: claims.ExpiresAt.Time}
	if !s.Valid(v.now()) {
		return Session{}, fmt.Errorf("%w: token expired", ErrUnauthorized)
	}
	return s, nil
}

// IsUnauthorized reports whether err means the session must be renewed.
func IsUnauthorized(err error) bool {
	return errors.Is(err, ErrUnauthorized)
}
