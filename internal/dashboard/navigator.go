package dashboard

import (
	"context"
	"errors"
	"sync"
	"time"

	"finboard/internal/core"
)

// ErrFutureMonth is returned when navigating past the current month.
var ErrFutureMonth = errors.New("cannot navigate past the current month")

// Ticket identifies one widget load. It is current until a newer Begin or a
// Move on the same widget.
type Ticket struct {
	Widget     WidgetID
	Cursor     Cursor
	Generation uint64
}

type widgetState struct {
	cursor     Cursor
	generation uint64
	cancel     context.CancelFunc
}

// Navigator holds one session's widget cursors. Each widget moves
// independently; loads are tagged with a generation so that a response for
// a superseded load can be recognised and dropped.
type Navigator struct {
	mu         sync.Mutex
	now        func() time.Time
	widgets    map[WidgetID]*widgetState
	redirected bool
}

// NewNavigator starts every widget at the current calendar month.
func NewNavigator(now func() time.Time) *Navigator {
	if now == nil {
		now = time.Now
	}
	n := &Navigator{now: now, widgets: make(map[WidgetID]*widgetState, len(Widgets))}
	start := CursorAt(now())
	for _, w := range Widgets {
		n.widgets[w] = &widgetState{cursor: start}
	}
	return n
}

func (n *Navigator) state(w WidgetID) *widgetState {
	st, ok := n.widgets[w]
	if !ok {
		st = &widgetState{cursor: CursorAt(n.now())}
		n.widgets[w] = st
	}
	return st
}

// Cursor returns the widget's current cursor.
func (n *Navigator) Cursor(w WidgetID) Cursor {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.state(w).cursor
}

// CanNext reports whether the widget may move forward.
func (n *Navigator) CanNext(w WidgetID) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.state(w).cursor.CanNext(n.now())
}

// Move steps the widget's cursor and supersedes any load in flight.
func (n *Navigator) Move(w WidgetID, dir Direction) (Cursor, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	st := n.state(w)
	switch dir {
	case DirectionPrev:
		st.cursor = st.cursor.Prev()
	case DirectionNext:
		next, ok := st.cursor.Next(n.now())
		if !ok {
			return st.cursor, ErrFutureMonth
		}
		st.cursor = next
	default:
		return st.cursor, ErrFutureMonth
	}
	n.supersede(st)
	return st.cursor, nil
}

// Jump moves the widget to period, which must not be in the future.
func (n *Navigator) Jump(w WidgetID, period core.YearMonth) (Cursor, error) {
	if err := period.Validate(); err != nil {
		return Cursor{}, err
	}
	n.mu.Lock()
	defer n.mu.Unlock()

	if core.CurrentYearMonth(n.now()).Before(period) {
		return n.state(w).cursor, ErrFutureMonth
	}
	st := n.state(w)
	st.cursor = Cursor{period}
	n.supersede(st)
	return st.cursor, nil
}

// Begin starts a load of the widget at its current cursor. The returned
// context is cancelled when the load is superseded or committed.
func (n *Navigator) Begin(ctx context.Context, w WidgetID) (Ticket, context.Context) {
	n.mu.Lock()
	defer n.mu.Unlock()

	st := n.state(w)
	n.supersede(st)
	loadCtx, cancel := context.WithCancel(ctx)
	st.cancel = cancel
	return Ticket{Widget: w, Cursor: st.cursor, Generation: st.generation}, loadCtx
}

// Commit reports whether t is still the widget's latest load. A stale
// ticket's result must be discarded.
func (n *Navigator) Commit(t Ticket) bool {
	n.mu.Lock()
	defer n.mu.Unlock()

	st := n.state(t.Widget)
	if t.Generation != st.generation {
		return false
	}
	if st.cancel != nil {
		st.cancel()
		st.cancel = nil
	}
	return true
}

// Generation returns the widget's latest load generation.
func (n *Navigator) Generation(w WidgetID) uint64 {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.state(w).generation
}

// supersede bumps the generation and cancels the load in flight.
func (n *Navigator) supersede(st *widgetState) {
	st.generation++
	if st.cancel != nil {
		st.cancel()
		st.cancel = nil
	}
}

// BeginRedirect reports whether a login redirect should be issued. It
// returns true once until ClearRedirect is called.
func (n *Navigator) BeginRedirect() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.redirected {
		return false
	}
	n.redirected = true
	return true
}

// ClearRedirect re-arms the redirect guard after a successful sign-in.
func (n *Navigator) ClearRedirect() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.redirected = false
}

// Reset cancels every load in flight and returns all widgets to the current
// month.
func (n *Navigator) Reset() {
	n.mu.Lock()
	defer n.mu.Unlock()
	start := CursorAt(n.now())
	for _, st := range n.widgets {
		st.cursor = start
		n.supersede(st)
	}
}
