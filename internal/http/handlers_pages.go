package http

import (
	"net/http"
	"time"

	"finboard/internal/auth"
	"finboard/internal/core"
	"finboard/internal/dashboard"
	"finboard/internal/log"
)

type widgetSlot struct {
	ID    dashboard.WidgetID
	Title string
}

var widgetTitles = map[dashboard.WidgetID]string{
	dashboard.WidgetDistribution: "Spending by category",
	dashboard.WidgetBurnRate:     "Budget burn rate",
	dashboard.WidgetAccumulation: "Accumulated budget",
}

type dashboardPage struct {
	Email    string
	Currency string
	Period   core.YearMonth
	Widgets  []widgetSlot
}

type loginPage struct {
	Error   string
	DevMode bool
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	sess, err := session(r)
	if err != nil {
		auth.Reject(w, r, s.loginURL)
		return
	}

	prefs, err := s.deps.Preferences.Get(r.Context(), sess)
	if err != nil {
		s.writeUIError(w, r, sess, log.OpRender, err)
		return
	}

	page := dashboardPage{
		Email:    sess.Email,
		Currency: prefs.Currency,
		Period:   core.CurrentYearMonth(s.now()),
	}
	for _, id := range dashboard.Widgets {
		page.Widgets = append(page.Widgets, widgetSlot{ID: id, Title: widgetTitles[id]})
	}
	s.render(w, r, nil, "dashboard_page", page)
}

func (s *Server) handleLoginPage(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, nil, "login_page", loginPage{DevMode: s.deps.Auth.Verifier == nil})
}

// handleCreateSession accepts a signed session token (form field or JSON
// "token") and stores it in the session cookie. Without a verifier the dev
// session is used and no cookie is needed.
func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	parser := NewRequestBodyParser(r)
	if err := parser.Parse(); err != nil {
		BadRequestError("Malformed request").Write(w)
		return
	}

	var sess auth.Session
	var err error
	if s.deps.Auth.Verifier == nil {
		sess, err = s.deps.Auth.Resolve(r)
	} else {
		sess, err = s.deps.Auth.Verifier.Verify(parser.Get("token"))
	}
	if err != nil {
		s.logger.InfoContext(r.Context(), "Sign-in refused",
			log.FieldClientIP, s.detector.ExtractClientIP(r),
			log.FieldError, err)
		if parser.IsJSON() {
			writeJSON(w, http.StatusUnauthorized, errorBody{Error: "invalid or expired token"})
			return
		}
		s.render(w, r, NewHTMXResponse().Status(http.StatusUnauthorized), "login_page",
			loginPage{Error: "Invalid or expired token", DevMode: s.deps.Auth.Verifier == nil})
		return
	}

	if sess.AccessToken != "" {
		auth.SetCookie(w, sess.AccessToken, sess.ExpiresAt, s.deps.SecureCookies)
	}
	s.deps.Navigators.For(sess).ClearRedirect()
	s.logger.InfoContext(r.Context(), "Signed in", log.FieldUser, sess.Email)

	switch {
	case parser.IsJSON():
		writeJSON(w, http.StatusOK, map[string]any{
			"email":     sess.Email,
			"expiresAt": sess.ExpiresAt.Format(time.RFC3339),
		})
	case isHTMX(r):
		NewHTMXResponse().Redirect("/").Write(w)
	default:
		http.Redirect(w, r, "/", http.StatusSeeOther)
	}
}

// handleLogout drops the per-session dashboard state and the cookie. It does
// not require a valid session so an expired one can still sign out.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if sess, err := s.deps.Auth.Resolve(r); err == nil {
		s.deps.Navigators.Forget(sess)
		s.deps.Dashboard.InvalidateUser(sess.Email)
		s.logger.InfoContext(r.Context(), "Signed out", log.FieldUser, sess.Email)
	}
	auth.ClearCookie(w)

	if isHTMX(r) {
		NewHTMXResponse().Redirect(s.loginURL).Write(w)
		return
	}
	http.Redirect(w, r, s.loginURL, http.StatusSeeOther)
}
