package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"finboard/internal/auth"
	"finboard/internal/core"
	"finboard/internal/dashboard"
	"finboard/internal/log"
	"finboard/internal/middleware/ratelimit"
	"finboard/internal/remote"
	"finboard/internal/services"
	"finboard/internal/storage/memory"
)

const devEmail = "ana@example.com"

var testNow = time.Date(2025, time.June, 15, 12, 0, 0, 0, time.UTC)

func fixedNow() time.Time { return testNow }

// gatedStore lets a test fail or intercept spending lookups.
type gatedStore struct {
	*memory.Store

	mu         sync.Mutex
	failWith   error
	onSpending func()
}

func (g *gatedStore) SpendingByCategory(ctx context.Context, s auth.Session, period core.YearMonth) ([]core.CategorySpending, error) {
	g.mu.Lock()
	fail, hook := g.failWith, g.onSpending
	g.onSpending = nil
	g.mu.Unlock()

	if hook != nil {
		hook()
	}
	if fail != nil {
		return nil, fail
	}
	return g.Store.SpendingByCategory(ctx, s, period)
}

func (g *gatedStore) fail(err error) {
	g.mu.Lock()
	g.failWith = err
	g.mu.Unlock()
}

func (g *gatedStore) intercept(fn func()) {
	g.mu.Lock()
	g.onSpending = fn
	g.mu.Unlock()
}

type testEnv struct {
	srv   *Server
	store *gatedStore
}

type envOption func(*Deps)

func withVerifier(v *auth.Verifier) envOption {
	return func(d *Deps) {
		d.Auth = auth.MiddlewareConfig{Verifier: v}
	}
}

func withRateLimit(perMinute int) envOption {
	return func(d *Deps) {
		d.RateLimit = ratelimit.Config{RequestsPerMinute: perMinute, CleanupInterval: time.Minute}
	}
}

func newTestEnv(t *testing.T, opts ...envOption) *testEnv {
	t.Helper()

	mem := memory.New(nil)
	mem.SetClock(fixedNow)
	store := &gatedStore{Store: mem}

	logger := log.New(log.Config{Output: io.Discard})
	dash := dashboard.NewService(store, dashboard.DefaultConfig(), logger).WithClock(fixedNow)
	txs := services.NewTransactionService(store, store, nil)
	txs.OnWrite(dash)

	deps := Deps{
		Categories:   services.NewCategoryService(store),
		Budgets:      services.NewBudgetService(store, store, store).WithClock(fixedNow),
		Transactions: txs,
		Preferences:  services.NewPreferencesService(store),
		Backend:      store,
		Dashboard:    dash,
		Navigators:   dashboard.NewRegistry(100, time.Hour, fixedNow),
		Auth:         auth.MiddlewareConfig{DevEmail: devEmail},
		RateLimit:    ratelimit.Config{RequestsPerMinute: 10000, CleanupInterval: time.Minute},
		Logger:       logger,
		Now:          fixedNow,
	}
	for _, opt := range opts {
		opt(&deps)
	}

	srv, err := NewServer(":0", deps)
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	t.Cleanup(srv.limiter.Stop)

	return &testEnv{srv: srv, store: store}
}

type reqOption func(*http.Request)

func htmx() reqOption {
	return func(r *http.Request) { r.Header.Set("HX-Request", "true") }
}

func bearer(token string) reqOption {
	return func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+token) }
}

func form() reqOption {
	return func(r *http.Request) { r.Header.Set("Content-Type", "application/x-www-form-urlencoded") }
}

func (e *testEnv) do(t *testing.T, method, path, body string, opts ...reqOption) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rd)
	if strings.HasPrefix(body, "{") || strings.HasPrefix(body, "[") {
		req.Header.Set("Content-Type", "application/json")
	}
	for _, opt := range opts {
		opt(req)
	}
	rr := httptest.NewRecorder()
	e.srv.Handler.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rr.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", rr.Body.String(), err)
	}
	return v
}

// seedBudget creates an accumulating "Food" category with a 100/month
// allocation in 2025 and returns the category and allocation IDs.
func (e *testEnv) seedBudget(t *testing.T) (categoryID, itemID string) {
	t.Helper()
	rr := e.do(t, http.MethodPost, "/api/v1/expense-types", `{"name":"Food","icon":"cart","accumulate":true}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("create category: %d %s", rr.Code, rr.Body.String())
	}
	cat := decode[core.ExpenseCategory](t, rr)

	rr = e.do(t, http.MethodPost, "/api/v1/budgets",
		`{"year":2025,"items":[{"expenseTypeId":"`+cat.ID+`","amount":"100.00"}]}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("create budget: %d %s", rr.Code, rr.Body.String())
	}
	b := decode[core.Budget](t, rr)
	if len(b.Items) != 1 {
		t.Fatalf("budget items = %d, want 1", len(b.Items))
	}
	return cat.ID, b.Items[0].ID
}

func (e *testEnv) spend(t *testing.T, categoryID, itemID, date, amount string) core.Transaction {
	t.Helper()
	rr := e.do(t, http.MethodPost, "/api/v1/transactions",
		`{"budgetItemId":"`+itemID+`","expenseTypeId":"`+categoryID+`","amount":"`+amount+`","transactionDate":"`+date+`","description":"groceries"}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("create transaction: %d %s", rr.Code, rr.Body.String())
	}
	if trigger := rr.Header().Get("HX-Trigger"); !strings.Contains(trigger, `"transaction:changed"`) {
		t.Errorf("create transaction HX-Trigger = %q", trigger)
	}
	return decode[core.Transaction](t, rr)
}

func TestHealthAndReady(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(t, http.MethodGet, "/healthz", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("healthz = %d", rr.Code)
	}
	if body := decode[map[string]any](t, rr); body["status"] != "ok" {
		t.Errorf("healthz status = %v", body["status"])
	}

	rr = env.do(t, http.MethodGet, "/readyz", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("readyz = %d: %s", rr.Code, rr.Body.String())
	}
	body := decode[map[string]any](t, rr)
	checks, _ := body["checks"].(map[string]any)
	if checks["backend"] != "ok" || checks["templates"] != "ok" {
		t.Errorf("checks = %v", checks)
	}
}

func TestMetrics(t *testing.T) {
	env := newTestEnv(t)
	env.do(t, http.MethodGet, "/healthz", "")

	rr := env.do(t, http.MethodGet, "/metrics", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("metrics = %d", rr.Code)
	}
	for _, name := range []string{"http_requests_total", "rate_limit_hits_total", "uptime_seconds"} {
		if !strings.Contains(rr.Body.String(), name) {
			t.Errorf("metrics missing %s", name)
		}
	}
}

func TestUnauthenticatedRequests(t *testing.T) {
	env := newTestEnv(t, withVerifier(auth.NewVerifier("test-secret")))

	tests := []struct {
		name         string
		path         string
		opts         []reqOption
		wantStatus   int
		wantLocation string
		wantHXTarget string
	}{
		{name: "page redirects", path: "/", wantStatus: http.StatusSeeOther, wantLocation: "/login"},
		{name: "api gets json", path: "/api/v1/expense-types", wantStatus: http.StatusUnauthorized},
		{name: "htmx gets redirect header", path: "/ui/widgets/burn-rate", opts: []reqOption{htmx()}, wantStatus: http.StatusUnauthorized, wantHXTarget: "/login"},
		{name: "bad token", path: "/api/v1/budgets", opts: []reqOption{bearer("not-a-token")}, wantStatus: http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := env.do(t, http.MethodGet, tt.path, "", tt.opts...)
			if rr.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rr.Code, tt.wantStatus)
			}
			if tt.wantLocation != "" && rr.Header().Get("Location") != tt.wantLocation {
				t.Errorf("Location = %q", rr.Header().Get("Location"))
			}
			if tt.wantHXTarget != "" && rr.Header().Get("HX-Redirect") != tt.wantHXTarget {
				t.Errorf("HX-Redirect = %q", rr.Header().Get("HX-Redirect"))
			}
		})
	}
}

func TestLoginFlow(t *testing.T) {
	v := auth.NewVerifier("test-secret")
	env := newTestEnv(t, withVerifier(v))

	rr := env.do(t, http.MethodGet, "/login", "")
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), "<form") {
		t.Fatalf("login page = %d", rr.Code)
	}

	rr = env.do(t, http.MethodPost, "/auth/session", "token=garbage", form())
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("bad token status = %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "Invalid or expired token") {
		t.Errorf("bad token body = %s", rr.Body.String())
	}

	token, err := v.Sign(devEmail, time.Hour)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	rr = env.do(t, http.MethodPost, "/auth/session", "token="+url.QueryEscape(token), form())
	if rr.Code != http.StatusSeeOther || rr.Header().Get("Location") != "/" {
		t.Fatalf("login = %d %q", rr.Code, rr.Header().Get("Location"))
	}
	cookie := sessionCookie(rr)
	if cookie == nil || cookie.Value != token {
		t.Fatalf("session cookie = %+v", cookie)
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(cookie)
	page := httptest.NewRecorder()
	env.srv.Handler.ServeHTTP(page, req)
	if page.Code != http.StatusOK {
		t.Fatalf("dashboard = %d", page.Code)
	}
	if !strings.Contains(page.Body.String(), devEmail) {
		t.Errorf("dashboard does not show the signed-in user")
	}
	if page.Header().Get("Cache-Control") != "no-store" {
		t.Errorf("Cache-Control = %q", page.Header().Get("Cache-Control"))
	}

	rr = env.do(t, http.MethodPost, "/auth/session", `{"token":"`+token+`"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("json login = %d", rr.Code)
	}
	if body := decode[map[string]string](t, rr); body["email"] != devEmail {
		t.Errorf("json login email = %q", body["email"])
	}
}

func TestLogoutClearsCookie(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(t, http.MethodPost, "/auth/logout", "", htmx())
	if rr.Header().Get("HX-Redirect") != "/login" {
		t.Errorf("HX-Redirect = %q", rr.Header().Get("HX-Redirect"))
	}
	c := sessionCookie(rr)
	if c == nil || c.MaxAge >= 0 {
		t.Errorf("cookie not cleared: %+v", c)
	}
}

func sessionCookie(rr *httptest.ResponseRecorder) *http.Cookie {
	for _, c := range rr.Result().Cookies() {
		if c.Name == auth.CookieName {
			return c
		}
	}
	return nil
}

func TestCategoryAPI(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(t, http.MethodPost, "/api/v1/expense-types", `{"name":"Books","icon":"book"}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("create = %d %s", rr.Code, rr.Body.String())
	}
	created := decode[core.ExpenseCategory](t, rr)

	tests := []struct {
		name       string
		method     string
		path       string
		body       string
		wantStatus int
		wantField  string
	}{
		{name: "duplicate name", method: http.MethodPost, path: "/api/v1/expense-types", body: `{"name":"books"}`, wantStatus: http.StatusConflict},
		{name: "missing name", method: http.MethodPost, path: "/api/v1/expense-types", body: `{"icon":"x"}`, wantStatus: http.StatusBadRequest, wantField: "name"},
		{name: "malformed body", method: http.MethodPost, path: "/api/v1/expense-types", body: `{"name":`, wantStatus: http.StatusBadRequest},
		{name: "get", method: http.MethodGet, path: "/api/v1/expense-types/" + created.ID, wantStatus: http.StatusOK},
		{name: "get unknown", method: http.MethodGet, path: "/api/v1/expense-types/nope", wantStatus: http.StatusNotFound},
		{name: "rename", method: http.MethodPut, path: "/api/v1/expense-types/" + created.ID, body: `{"name":"Novels","icon":"book"}`, wantStatus: http.StatusOK},
		{name: "delete", method: http.MethodDelete, path: "/api/v1/expense-types/" + created.ID, wantStatus: http.StatusNoContent},
		{name: "delete again", method: http.MethodDelete, path: "/api/v1/expense-types/" + created.ID, wantStatus: http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := env.do(t, tt.method, tt.path, tt.body)
			if rr.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d: %s", rr.Code, tt.wantStatus, rr.Body.String())
			}
			if tt.wantField != "" {
				if body := decode[errorBody](t, rr); body.Field != tt.wantField {
					t.Errorf("field = %q, want %q", body.Field, tt.wantField)
				}
			}
		})
	}
}

func TestBudgetAndTransactionAPI(t *testing.T) {
	env := newTestEnv(t)
	catID, itemID := env.seedBudget(t)

	rr := env.do(t, http.MethodPost, "/api/v1/budgets", `{"year":2024,"items":[]}`)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("past year = %d, want 400", rr.Code)
	}
	rr = env.do(t, http.MethodPost, "/api/v1/budgets", `{"budget":{"year":2025},"items":[]}`)
	if rr.Code != http.StatusConflict {
		t.Errorf("duplicate year = %d, want 409", rr.Code)
	}
	rr = env.do(t, http.MethodGet, "/api/v1/budgets/abc", "")
	if rr.Code != http.StatusBadRequest {
		t.Errorf("bad year = %d, want 400", rr.Code)
	}

	created := env.spend(t, catID, itemID, "2025-06-03", "42.50")
	if !created.Amount.Equal(core.MustParseMoney("42.50")) {
		t.Errorf("amount = %s", created.Amount)
	}

	rr = env.do(t, http.MethodGet, "/api/v1/transactions?startDate=2025-06-01&endDate=2025-06-30", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("list = %d", rr.Code)
	}
	page := decode[core.TransactionPage](t, rr)
	if len(page.Content) != 1 || page.Content[0].ID != created.ID {
		t.Errorf("list = %+v", page.Content)
	}

	rr = env.do(t, http.MethodGet, "/api/v1/transactions/check-budget-item/"+itemID, "")
	if rr.Code != http.StatusOK || strings.TrimSpace(rr.Body.String()) != "true" {
		t.Errorf("check-budget-item = %d %s", rr.Code, rr.Body.String())
	}

	rr = env.do(t, http.MethodDelete, "/api/v1/budgets/2025", "")
	if rr.Code != http.StatusConflict {
		t.Errorf("delete budget with transactions = %d, want 409", rr.Code)
	}

	rr = env.do(t, http.MethodGet, "/api/v1/transactions/summary/monthly?year=2025&month=6", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("monthly summary = %d %s", rr.Code, rr.Body.String())
	}

	rr = env.do(t, http.MethodDelete, "/api/v1/transactions/"+created.ID, "")
	if rr.Code != http.StatusNoContent {
		t.Errorf("delete transaction = %d", rr.Code)
	}
	rr = env.do(t, http.MethodGet, "/api/v1/transactions/"+created.ID, "")
	if rr.Code != http.StatusNotFound {
		t.Errorf("deleted transaction = %d, want 404", rr.Code)
	}
}

func TestTransactionRejectsForeignItem(t *testing.T) {
	env := newTestEnv(t)
	catID, _ := env.seedBudget(t)

	rr := env.do(t, http.MethodPost, "/api/v1/transactions",
		`{"budgetItemId":"missing","expenseTypeId":"`+catID+`","amount":"5","transactionDate":"2025-06-01"}`)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rr.Code)
	}
	if body := decode[errorBody](t, rr); body.Field != "budgetItemId" {
		t.Errorf("field = %q", body.Field)
	}
}

func TestDashboardAPI(t *testing.T) {
	env := newTestEnv(t)
	catID, itemID := env.seedBudget(t)
	env.spend(t, catID, itemID, "2025-01-10", "60")
	env.spend(t, catID, itemID, "2025-06-02", "25")

	rr := env.do(t, http.MethodGet, "/api/v1/dashboard/accumulation?period=2025-06", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("accumulation = %d %s", rr.Code, rr.Body.String())
	}
	acc := decode[dashboard.AccumulationView](t, rr)
	if len(acc.Items) != 1 {
		t.Fatalf("accumulation items = %d", len(acc.Items))
	}
	// Jan carries 40, Feb..May carry 100 each, plus June's own 100.
	if got := acc.Items[0].Accumulated; !got.Equal(core.MustParseMoney("540")) {
		t.Errorf("accumulated = %s, want 540", got)
	}
	if got := acc.Items[0].Remaining; !got.Equal(core.MustParseMoney("515")) {
		t.Errorf("remaining = %s, want 515", got)
	}

	rr = env.do(t, http.MethodGet, "/api/v1/dashboard/burn-rate?year=2025&month=6", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("burn-rate = %d", rr.Code)
	}
	burn := decode[dashboard.BurnRateView](t, rr)
	if !burn.HasBudget || len(burn.Items) != 1 {
		t.Fatalf("burn-rate = %+v", burn)
	}

	for _, path := range []string{
		"/api/v1/dashboard/distribution",
		"/api/v1/dashboard/summary?period=2025-06",
		"/api/v1/dashboard/comparison?year=2025",
		"/api/v1/dashboard/emergency-fund",
	} {
		if rr := env.do(t, http.MethodGet, path, ""); rr.Code != http.StatusOK {
			t.Errorf("%s = %d %s", path, rr.Code, rr.Body.String())
		}
	}

	rr = env.do(t, http.MethodGet, "/api/v1/dashboard/burn-rate?period=2025-13", "")
	if rr.Code != http.StatusBadRequest {
		t.Errorf("bad period = %d, want 400", rr.Code)
	}
	if body := decode[errorBody](t, rr); body.Field != "period" {
		t.Errorf("field = %q", body.Field)
	}
}

func TestWidgetNavigation(t *testing.T) {
	env := newTestEnv(t)
	env.seedBudget(t)

	rr := env.do(t, http.MethodGet, "/ui/widgets/burn-rate", "", htmx())
	if rr.Code != http.StatusOK {
		t.Fatalf("widget = %d %s", rr.Code, rr.Body.String())
	}
	body := rr.Body.String()
	if !strings.Contains(body, "June 2025") {
		t.Errorf("widget does not show the current month: %s", body)
	}
	if !strings.Contains(body, " disabled") {
		t.Errorf("next button should be disabled at the current month")
	}
	if !strings.Contains(rr.Header().Get("HX-Trigger"), "widget:loaded") {
		t.Errorf("HX-Trigger = %q", rr.Header().Get("HX-Trigger"))
	}

	rr = env.do(t, http.MethodPost, "/ui/widgets/burn-rate/next", "", htmx())
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), "June 2025") {
		t.Errorf("next at the current month = %d, want June 2025 re-rendered", rr.Code)
	}

	rr = env.do(t, http.MethodPost, "/ui/widgets/burn-rate/prev", "", htmx())
	if rr.Code != http.StatusOK {
		t.Fatalf("prev = %d", rr.Code)
	}
	if body := rr.Body.String(); !strings.Contains(body, "May 2025") || strings.Contains(body, " disabled") {
		t.Errorf("prev = %s", body)
	}

	// Cursors are per widget.
	rr = env.do(t, http.MethodGet, "/ui/widgets/accumulation", "", htmx())
	if !strings.Contains(rr.Body.String(), "June 2025") {
		t.Errorf("accumulation widget moved with burn-rate")
	}

	rr = env.do(t, http.MethodGet, "/ui/widgets/burn-rate?period=2025-02", "", htmx())
	if !strings.Contains(rr.Body.String(), "February 2025") {
		t.Errorf("jump did not move the cursor")
	}
	rr = env.do(t, http.MethodGet, "/ui/widgets/burn-rate?period=2025-09", "", htmx())
	if rr.Code != http.StatusUnprocessableEntity {
		t.Errorf("jump to the future = %d, want 422", rr.Code)
	}

	tests := []struct {
		name   string
		method string
		path   string
	}{
		{"unknown widget", http.MethodGet, "/ui/widgets/pie"},
		{"unknown widget move", http.MethodPost, "/ui/widgets/pie/prev"},
		{"unknown direction", http.MethodPost, "/ui/widgets/burn-rate/sideways"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if rr := env.do(t, tt.method, tt.path, "", htmx()); rr.Code != http.StatusNotFound {
				t.Errorf("status = %d, want 404", rr.Code)
			}
		})
	}
}

func TestStaleWidgetLoadIsNotSwapped(t *testing.T) {
	env := newTestEnv(t)
	env.seedBudget(t)

	nav := env.srv.deps.Navigators.For(auth.Session{Email: devEmail})
	env.store.intercept(func() {
		if _, err := nav.Move(dashboard.WidgetBurnRate, dashboard.DirectionPrev); err != nil {
			t.Errorf("Move: %v", err)
		}
	})

	rr := env.do(t, http.MethodGet, "/ui/widgets/burn-rate", "", htmx())
	if rr.Code != http.StatusNoContent {
		t.Fatalf("stale load = %d, want 204", rr.Code)
	}
	if rr.Header().Get("HX-Reswap") != "none" {
		t.Errorf("HX-Reswap = %q", rr.Header().Get("HX-Reswap"))
	}

	rr = env.do(t, http.MethodGet, "/ui/widgets/burn-rate", "", htmx())
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), "May 2025") {
		t.Errorf("follow-up load = %d, want May 2025", rr.Code)
	}
}

func TestUpstreamUnauthorizedRedirectsOnce(t *testing.T) {
	env := newTestEnv(t)
	env.seedBudget(t)
	env.store.fail(auth.ErrUnauthorized)

	rr := env.do(t, http.MethodGet, "/ui/widgets/burn-rate", "", htmx())
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("first = %d, want 401", rr.Code)
	}
	if rr.Header().Get("HX-Redirect") != "/login" {
		t.Errorf("first HX-Redirect = %q", rr.Header().Get("HX-Redirect"))
	}
	if c := sessionCookie(rr); c == nil || c.MaxAge >= 0 {
		t.Errorf("cookie not cleared on first rejection")
	}

	rr = env.do(t, http.MethodGet, "/ui/widgets/distribution", "", htmx())
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("second = %d, want 401", rr.Code)
	}
	if rr.Header().Get("HX-Redirect") != "" {
		t.Errorf("second request redirected again")
	}
	if rr.Header().Get("HX-Reswap") != "none" {
		t.Errorf("second HX-Reswap = %q", rr.Header().Get("HX-Reswap"))
	}

	if rr := env.do(t, http.MethodPost, "/auth/session", "", form()); rr.Code != http.StatusSeeOther {
		t.Fatalf("sign in = %d", rr.Code)
	}
	rr = env.do(t, http.MethodGet, "/ui/widgets/burn-rate", "", htmx())
	if rr.Header().Get("HX-Redirect") != "/login" {
		t.Errorf("redirect not re-armed after sign in")
	}
}

func TestUpstreamTimeoutIsGatewayTimeout(t *testing.T) {
	env := newTestEnv(t)
	env.seedBudget(t)
	env.store.fail(context.DeadlineExceeded)

	rr := env.do(t, http.MethodGet, "/api/v1/dashboard/burn-rate", "")
	if rr.Code != http.StatusGatewayTimeout {
		t.Errorf("status = %d, want 504", rr.Code)
	}
}

func TestWriteRateLimit(t *testing.T) {
	env := newTestEnv(t, withRateLimit(2))

	var last *httptest.ResponseRecorder
	for i := 0; i < 3; i++ {
		last = env.do(t, http.MethodPost, "/api/v1/expense-types", `{"name":"Cat `+string(rune('A'+i))+`"}`)
	}
	if last.Code != http.StatusTooManyRequests {
		t.Fatalf("third write = %d, want 429", last.Code)
	}
	if last.Header().Get("Retry-After") == "" {
		t.Errorf("missing Retry-After")
	}
	if !strings.Contains(last.Header().Get("Content-Type"), "application/json") {
		t.Errorf("api 429 should be JSON, got %q", last.Header().Get("Content-Type"))
	}

	if rr := env.do(t, http.MethodGet, "/api/v1/expense-types", ""); rr.Code != http.StatusOK {
		t.Errorf("reads should pass the limiter, got %d", rr.Code)
	}
}

func TestResponseHeaders(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(t, http.MethodGet, "/healthz", "")
	if rr.Header().Get("X-Request-ID") == "" {
		t.Errorf("missing X-Request-ID")
	}
	if rr.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Errorf("X-Content-Type-Options = %q", rr.Header().Get("X-Content-Type-Options"))
	}

	rr = env.do(t, http.MethodGet, "/static/app.css", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("static = %d", rr.Code)
	}
	if cc := rr.Header().Get("Cache-Control"); !strings.Contains(cc, "max-age=86400") {
		t.Errorf("static Cache-Control = %q", cc)
	}
}

// TestRemoteClientCompatibility drives the API through the upstream client,
// so one finboard instance can serve as the backend of another.
func TestRemoteClientCompatibility(t *testing.T) {
	v := auth.NewVerifier("test-secret")
	env := newTestEnv(t, withVerifier(v))
	ts := httptest.NewServer(env.srv.Handler)
	t.Cleanup(ts.Close)

	client, err := remote.New(remote.Config{
		BudgetURL:      ts.URL,
		TransactionURL: ts.URL,
		UserURL:        ts.URL,
		Timeout:        5 * time.Second,
	})
	if err != nil {
		t.Fatalf("remote.New: %v", err)
	}

	token, err := v.Sign(devEmail, time.Hour)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	sess := auth.Session{Email: devEmail, AccessToken: token}
	ctx := context.Background()

	cat, err := client.CreateCategory(ctx, sess, core.ExpenseCategory{Name: "Travel", Accumulate: true})
	if err != nil {
		t.Fatalf("CreateCategory: %v", err)
	}
	cats, err := client.ListCategories(ctx, sess)
	if err != nil {
		t.Fatalf("ListCategories: %v", err)
	}
	found := false
	for _, c := range cats {
		found = found || c.ID == cat.ID
	}
	if !found {
		t.Errorf("created category not listed")
	}

	if _, err := client.GetCategory(ctx, sess, "missing"); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("GetCategory(missing) = %v, want ErrNotFound", err)
	}

	_, err = client.ListCategories(ctx, auth.Session{Email: devEmail, AccessToken: "expired"})
	if !auth.IsUnauthorized(err) {
		t.Errorf("bad token = %v, want unauthorized", err)
	}
}
