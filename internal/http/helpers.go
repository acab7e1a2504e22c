package http

import (
	"bytes"
	"fmt"
	"html/template"
	"math"
	"net/http"
	"strings"
	"time"

	"finboard/internal/auth"
	"finboard/internal/core"
	"finboard/internal/dashboard"
	"finboard/internal/log"
)

// sanitizeInput removes control characters and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}

func templateFuncs() template.FuncMap {
	return template.FuncMap{
		"money": func(m core.Money) string { return m.Format("") },
		"moneyIn": func(m core.Money, currency string) string {
			return m.Format(currency)
		},
		"pct": func(p float64) string { return fmt.Sprintf("%.0f%%", p) },
		// bar clamps a percentage to a progress-bar width.
		"bar": func(p float64) string {
			return fmt.Sprintf("%.0f%%", math.Max(0, math.Min(100, p)))
		},
		"monthName": func(m int) string {
			if !core.ValidMonth(m) {
				return ""
			}
			return time.Month(m).String()[:3]
		},
		"negative": func(m core.Money) bool { return m.IsNegative() },
	}
}

// widgetTemplate names the partial that renders w.
func widgetTemplate(w dashboard.WidgetID) string {
	return "widget_" + strings.ReplaceAll(string(w), "-", "_")
}

// session returns the caller's session; routes behind auth.Middleware always
// carry one.
func session(r *http.Request) (auth.Session, error) {
	return auth.MustFromContext(r.Context())
}

// render executes a named template into b's body. The template runs into a
// buffer first so a failure never leaves a half-written response. A nil b
// means a plain 200.
func (s *Server) render(w http.ResponseWriter, r *http.Request, b *HTMXResponseBuilder, name string, data any) {
	if b == nil {
		b = NewHTMXResponse()
	}
	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, name, data); err != nil {
		s.structured.LogError(r.Context(), "Template render failed", err, log.OpRender,
			log.LogFields{"template": name})
		InternalServerError("Something went wrong").Write(w)
		return
	}
	b.BodyHTML(buf.String()).Write(w)
}
