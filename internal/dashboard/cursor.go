// Package dashboard drives the dashboard widgets: per-session month cursors
// with stale-load protection, and the loaders that feed the budget engine.
package dashboard

import (
	"fmt"
	"time"

	"finboard/internal/core"
)

// Cursor is the month a widget is showing.
type Cursor struct {
	core.YearMonth
}

// CursorAt returns the cursor for the calendar month containing now.
func CursorAt(now time.Time) Cursor {
	return Cursor{core.CurrentYearMonth(now)}
}

// Prev is always allowed; January rolls back to December of the prior year.
func (c Cursor) Prev() Cursor {
	return Cursor{c.YearMonth.Prev()}
}

// CanNext reports whether the cursor is before the current calendar month.
func (c Cursor) CanNext(now time.Time) bool {
	return c.Before(core.CurrentYearMonth(now))
}

// Next advances one month. At the current calendar month it returns the
// cursor unchanged and false.
func (c Cursor) Next(now time.Time) (Cursor, bool) {
	if !c.CanNext(now) {
		return c, false
	}
	return Cursor{c.YearMonth.Next()}, true
}

// WidgetID names a navigable dashboard widget.
type WidgetID string

const (
	WidgetDistribution WidgetID = "distribution"
	WidgetBurnRate     WidgetID = "burn-rate"
	WidgetAccumulation WidgetID = "accumulation"
)

// Widgets lists the navigable widgets in page order.
var Widgets = []WidgetID{WidgetDistribution, WidgetBurnRate, WidgetAccumulation}

// ParseWidget validates a widget name from a URL.
func ParseWidget(s string) (WidgetID, error) {
	for _, w := range Widgets {
		if string(w) == s {
			return w, nil
		}
	}
	return "", fmt.Errorf("unknown widget %q: %w", s, core.ErrNotFound)
}

// Direction is a navigation step.
type Direction string

const (
	DirectionPrev Direction = "prev"
	DirectionNext Direction = "next"
)

func ParseDirection(s string) (Direction, error) {
	switch Direction(s) {
	case DirectionPrev, DirectionNext:
		return Direction(s), nil
	}
	return "", fmt.Errorf("unknown direction %q: %w", s, core.ErrNotFound)
}
