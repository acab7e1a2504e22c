package auth

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// CookieName is the browser cookie holding the session token.
const CookieName = "session_token"

// MiddlewareConfig configures session resolution for protected routes.
type MiddlewareConfig struct {
	// Verifier validates session tokens. When nil, DevEmail must be set.
	Verifier *Verifier
	// DevEmail signs every request in as this user when no Verifier is
	// configured. Local development only.
	DevEmail string
	// LoginURL is where page requests without a session are redirected.
	LoginURL string
}

// TokenFromRequest extracts the session token: cookie first (browser), then
// the Authorization bearer header (API clients).
func TokenFromRequest(r *http.Request) string {
	if c, err := r.Cookie(CookieName); err == nil && c.Value != "" {
		return c.Value
	}
	h := r.Header.Get("Authorization")
	if h == "" {
		return ""
	}
	parts := strings.SplitN(h, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

// Resolve returns the session for r according to cfg.
func (cfg MiddlewareConfig) Resolve(r *http.Request) (Session, error) {
	if cfg.Verifier == nil {
		if cfg.DevEmail == "" {
			return Session{}, ErrUnauthorized
		}
		return Session{Email: cfg.DevEmail}, nil
	}
	return cfg.Verifier.Verify(TokenFromRequest(r))
}

// Middleware puts the request's session in the context. Requests without a
// valid session get 401 JSON on API paths and htmx requests, and a redirect
// to the login page otherwise.
func Middleware(cfg MiddlewareConfig) func(http.Handler) http.Handler {
	loginURL := cfg.LoginURL
	if loginURL == "" {
		loginURL = "/login"
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			s, err := cfg.Resolve(r)
			if err != nil {
				slog.DebugContext(r.Context(), "Rejected request without valid session",
					"path", r.URL.Path, "error", err)
				Reject(w, r, loginURL)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithSession(r.Context(), s)))
		})
	}
}

// Reject answers a request whose session is missing or no longer accepted.
func Reject(w http.ResponseWriter, r *http.Request, loginURL string) {
	switch {
	case strings.HasPrefix(r.URL.Path, "/api/"):
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "authentication required"})
	case r.Header.Get("HX-Request") == "true":
		w.Header().Set("HX-Redirect", loginURL)
		w.WriteHeader(http.StatusUnauthorized)
	default:
		http.Redirect(w, r, loginURL, http.StatusSeeOther)
	}
}

// SetCookie stores token in the session cookie until expires.
func SetCookie(w http.ResponseWriter, token string, expires time.Time, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    token,
		Path:     "/",
		Expires:  expires,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearCookie removes the session cookie.
func ClearCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}
