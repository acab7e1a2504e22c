package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"finboard/internal/auth"
	"finboard/internal/budget"
	"finboard/internal/core"
	"finboard/internal/dashboard"
	"finboard/internal/log"
)

type errorBody struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

// statusFor maps a service error to an HTTP status and a message that is
// safe to show the user.
func statusFor(err error) (int, string) {
	var ve *core.ValidationError
	var missing *budget.MissingMonthError
	switch {
	case auth.IsUnauthorized(err):
		return http.StatusUnauthorized, "authentication required"
	case errors.As(err, &ve):
		return http.StatusBadRequest, ve.Error()
	case errors.Is(err, core.ErrNotFound):
		return http.StatusNotFound, err.Error()
	case errors.Is(err, core.ErrConflict):
		return http.StatusConflict, err.Error()
	case errors.Is(err, dashboard.ErrFutureMonth):
		return http.StatusUnprocessableEntity, err.Error()
	case errors.As(err, &missing):
		return http.StatusServiceUnavailable, fmt.Sprintf("spending for month %d is unavailable", missing.Month)
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "upstream service timed out"
	default:
		return http.StatusInternalServerError, "internal server error"
	}
}

func isAPI(r *http.Request) bool {
	return strings.HasPrefix(r.URL.Path, "/api/")
}

func isHTMX(r *http.Request) bool {
	return r.Header.Get("HX-Request") == "true"
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(v)
}

// writeAPIError answers a JSON API request with the mapped status.
func (s *Server) writeAPIError(w http.ResponseWriter, r *http.Request, op string, err error) {
	status, msg := statusFor(err)
	s.logFailure(r, op, status, err)
	body := errorBody{Error: msg}
	var ve *core.ValidationError
	if errors.As(err, &ve) {
		body.Field = ve.Field
	}
	writeJSON(w, status, body)
}

// writeUIError answers a page or htmx request. Upstream session rejections
// redirect to the login page once per session; later failures in the same
// session only get the 401 so a dashboard full of widgets does not trigger a
// redirect storm.
func (s *Server) writeUIError(w http.ResponseWriter, r *http.Request, sess auth.Session, op string, err error) {
	status, msg := statusFor(err)
	s.logFailure(r, op, status, err)

	if status == http.StatusUnauthorized {
		nav := s.deps.Navigators.For(sess)
		redirect := nav.BeginRedirect()
		if redirect {
			auth.ClearCookie(w)
		}
		switch {
		case isHTMX(r) && redirect:
			NewHTMXResponse().Status(status).Redirect(s.loginURL).Write(w)
		case isHTMX(r):
			NewHTMXResponse().Status(status).NoSwap().Write(w)
		case redirect:
			http.Redirect(w, r, s.loginURL, http.StatusSeeOther)
		default:
			ErrorResponse(status, "Your session has expired, please sign in again").Write(w)
		}
		return
	}

	if isHTMX(r) {
		ErrorResponse(status, msg).TriggerErrorNotification(msg).Write(w)
		return
	}
	ErrorResponse(status, msg).Write(w)
}

func (s *Server) logFailure(r *http.Request, op string, status int, err error) {
	fields := log.NewFields().WithOperation(op).WithError(err)
	if status >= http.StatusInternalServerError {
		s.structured.LogError(r.Context(), "Request failed", err, op, fields)
		return
	}
	log.FromContext(r.Context()).DebugContext(r.Context(), "Request rejected",
		append(fields.ToSlice(), log.FieldStatusCode, status)...)
}
