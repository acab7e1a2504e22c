package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestVerifier_SignAndVerify(t *testing.T) {
	v := NewVerifier("test-secret")

	token, err := v.Sign("ana@example.com", time.Hour)
	if err != nil {
		t.Fatalf("Sign() error = %v", err)
	}

	s, err := v.Verify(token)
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if s.Email != "ana@example.com" {
		t.Errorf("Email = %q, want ana@example.com", s.Email)
	}
	if s.AccessToken != token {
		t.Error("AccessToken should carry the raw token")
	}
	if !s.Valid(time.Now()) {
		t.Error("fresh session should be valid")
	}
}

func TestVerifier_Rejects(t *testing.T) {
	v := NewVerifier("test-secret")
	other := NewVerifier("other-secret")

	foreign, _ := other.Sign("ana@example.com", time.Hour)
	expired, _ := v.Sign("ana@example.com", -time.Minute)

	tests := []struct {
		name  string
		token string
	}{
		{"empty", ""},
		{"garbage", "not.a.token"},
		{"wrong secret", foreign},
		{"expired", expired},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := v.Verify(tt.token)
			if !errors.Is(err, ErrUnauthorized) {
				t.Errorf("Verify() error = %v, want ErrUnauthorized", err)
			}
		})
	}
}

func TestTokenFromRequest(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Authorization", "Bearer abc")
	if got := TokenFromRequest(r); got != "abc" {
		t.Errorf("bearer token = %q", got)
	}

	r.AddCookie(&http.Cookie{Name: CookieName, Value: "from-cookie"})
	if got := TokenFromRequest(r); got != "from-cookie" {
		t.Errorf("cookie should win, got %q", got)
	}

	r = httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Authorization", "Basic abc")
	if got := TokenFromRequest(r); got != "" {
		t.Errorf("basic auth should be ignored, got %q", got)
	}
}

func TestMiddleware(t *testing.T) {
	v := NewVerifier("test-secret")
	token, _ := v.Sign("ana@example.com", time.Hour)

	var seen Session
	protected := Middleware(MiddlewareConfig{Verifier: v})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = FromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	tests := []struct {
		name       string
		path       string
		token      string
		htmx       bool
		wantStatus int
		wantHeader string
	}{
		{"valid api", "/api/v1/budgets", token, false, http.StatusNoContent, ""},
		{"api without session", "/api/v1/budgets", "", false, http.StatusUnauthorized, ""},
		{"page without session", "/", "", false, http.StatusSeeOther, "Location"},
		{"htmx without session", "/ui/widgets/burn-rate", "", true, http.StatusUnauthorized, "HX-Redirect"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seen = Session{}
			r := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.token != "" {
				r.Header.Set("Authorization", "Bearer "+tt.token)
			}
			if tt.htmx {
				r.Header.Set("HX-Request", "true")
			}
			w := httptest.NewRecorder()
			protected.ServeHTTP(w, r)

			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			if tt.wantHeader != "" && w.Header().Get(tt.wantHeader) != "/login" {
				t.Errorf("%s = %q, want /login", tt.wantHeader, w.Header().Get(tt.wantHeader))
			}
			if tt.wantStatus == http.StatusNoContent && seen.Email != "ana@example.com" {
				t.Errorf("session not propagated: %+v", seen)
			}
		})
	}
}

func TestMiddleware_DevEmail(t *testing.T) {
	var seen Session
	h := Middleware(MiddlewareConfig{DevEmail: "dev@example.com"})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = FromContext(r.Context())
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	if seen.Email != "dev@example.com" {
		t.Errorf("dev session = %+v", seen)
	}
}

func TestMustFromContext(t *testing.T) {
	if _, err := MustFromContext(context.Background()); !errors.Is(err, ErrUnauthorized) {
		t.Errorf("empty context error = %v", err)
	}
	ctx := WithSession(context.Background(), Session{Email: "a@b.c"})
	if s, err := MustFromContext(ctx); err != nil || s.Email != "a@b.c" {
		t.Errorf("MustFromContext = %+v, %v", s, err)
	}
}
