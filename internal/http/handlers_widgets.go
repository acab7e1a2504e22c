package http

import (
	"context"
	"errors"
	"net/http"

	"finboard/internal/auth"
	"finboard/internal/core"
	"finboard/internal/dashboard"
	"finboard/internal/log"
)

type widgetPartial struct {
	dashboard.WidgetData
	Title string
	Label string
}

// handleWidget renders a navigable widget at its cursor. A "period" query
// parameter jumps the cursor first.
func (s *Server) handleWidget(w http.ResponseWriter, r *http.Request) {
	sess, err := session(r)
	if err != nil {
		auth.Reject(w, r, s.loginURL)
		return
	}
	widget, err := dashboard.ParseWidget(r.PathValue("widget"))
	if err != nil {
		NotFoundError("Unknown widget").Write(w)
		return
	}
	nav := s.deps.Navigators.For(sess)

	if r.URL.Query().Get("period") != "" {
		period, err := ParsePeriod(r.URL.Query(), s.now())
		if err != nil {
			s.writeUIError(w, r, sess, log.OpNavigate, err)
			return
		}
		if _, err := nav.Jump(widget, period); err != nil {
			s.writeUIError(w, r, sess, log.OpNavigate, err)
			return
		}
	}
	s.renderWidget(w, r, sess, nav, widget)
}

// handleWidgetMove steps a widget one month back or forward. A step past the
// current month is ignored and the current month is re-rendered.
func (s *Server) handleWidgetMove(w http.ResponseWriter, r *http.Request) {
	sess, err := session(r)
	if err != nil {
		auth.Reject(w, r, s.loginURL)
		return
	}
	widget, err := dashboard.ParseWidget(r.PathValue("widget"))
	if err != nil {
		NotFoundError("Unknown widget").Write(w)
		return
	}
	dir, err := dashboard.ParseDirection(r.PathValue("direction"))
	if err != nil {
		NotFoundError("Unknown direction").Write(w)
		return
	}

	nav := s.deps.Navigators.For(sess)
	if _, err := nav.Move(widget, dir); err != nil && !errors.Is(err, dashboard.ErrFutureMonth) {
		s.writeUIError(w, r, sess, log.OpNavigate, err)
		return
	}
	s.renderWidget(w, r, sess, nav, widget)
}

// renderWidget loads and renders the widget. A load superseded by a newer
// navigation is answered with 204 and no swap; the newer request renders.
func (s *Server) renderWidget(w http.ResponseWriter, r *http.Request, sess auth.Session, nav *dashboard.Navigator, widget dashboard.WidgetID) {
	ctx, cancel := context.WithTimeout(r.Context(), widgetTimeout)
	defer cancel()

	data, err := s.deps.Dashboard.LoadWidget(ctx, sess, nav, widget)
	switch {
	case errors.Is(err, dashboard.ErrStale):
		StaleResponse().Write(w)
		return
	case err != nil:
		s.writeUIError(w, r, sess, log.OpLoad, err)
		return
	}

	b := NewHTMXResponse().TriggerWidgetLoaded(widget, data.Period.String(), data.Generation)
	s.render(w, r, b, widgetTemplate(widget), widgetPartial{
		WidgetData: data,
		Title:      widgetTitles[widget],
		Label:      data.Period.Label(),
	})
}

type summaryPartial struct {
	dashboard.SummaryView
	Label    string
	Currency string
}

func (s *Server) handleSummaryWidget(w http.ResponseWriter, r *http.Request) {
	sess, err := session(r)
	if err != nil {
		auth.Reject(w, r, s.loginURL)
		return
	}
	period, err := ParsePeriod(r.URL.Query(), s.now())
	if err != nil {
		s.writeUIError(w, r, sess, log.OpLoad, err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), widgetTimeout)
	defer cancel()

	view, err := s.deps.Dashboard.Summary(ctx, sess, period)
	if err != nil {
		s.writeUIError(w, r, sess, log.OpLoad, err)
		return
	}
	prefs, err := s.deps.Preferences.Get(ctx, sess)
	if err != nil {
		s.writeUIError(w, r, sess, log.OpLoad, err)
		return
	}
	s.render(w, r, nil, "widget_summary", summaryPartial{
		SummaryView: view,
		Label:       period.Label(),
		Currency:    prefs.Currency,
	})
}

func (s *Server) handleEmergencyFundWidget(w http.ResponseWriter, r *http.Request) {
	sess, err := session(r)
	if err != nil {
		auth.Reject(w, r, s.loginURL)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), widgetTimeout)
	defer cancel()

	status, err := s.deps.Dashboard.EmergencyFund(ctx, sess)
	if err != nil {
		s.writeUIError(w, r, sess, log.OpLoad, err)
		return
	}
	s.render(w, r, nil, "widget_emergency_fund", status)
}

type comparisonPartial struct {
	dashboard.ComparisonView
	Current core.YearMonth
}

func (s *Server) handleComparisonWidget(w http.ResponseWriter, r *http.Request) {
	sess, err := session(r)
	if err != nil {
		auth.Reject(w, r, s.loginURL)
		return
	}
	year := s.now().Year()
	if v := r.URL.Query().Get("year"); v != "" {
		if year, err = ParseYear("year", v); err != nil {
			s.writeUIError(w, r, sess, log.OpLoad, err)
			return
		}
	}
	ctx, cancel := context.WithTimeout(r.Context(), widgetTimeout)
	defer cancel()

	view, err := s.deps.Dashboard.Comparison(ctx, sess, year)
	if err != nil {
		s.writeUIError(w, r, sess, log.OpLoad, err)
		return
	}
	s.render(w, r, nil, "widget_comparison", comparisonPartial{
		ComparisonView: view,
		Current:        core.CurrentYearMonth(s.now()),
	})
}
