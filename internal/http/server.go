// Package http serves the dashboard pages, the htmx widget partials and the
// JSON API.
package http

import (
	"context"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"time"

	"finboard/internal/auth"
	"finboard/internal/cache"
	"finboard/internal/dashboard"
	"finboard/internal/log"
	"finboard/internal/middleware/ratelimit"
	"finboard/internal/middleware/security"
	"finboard/internal/middleware/trace"
	"finboard/internal/ports"
	"finboard/internal/services"
	appweb "finboard/web"
)

const (
	defaultLoginURL = "/login"
	widgetTimeout   = 15 * time.Second
)

// Deps is everything the server needs from the rest of the application.
type Deps struct {
	Categories   *services.CategoryService
	Budgets      *services.BudgetService
	Transactions *services.TransactionService
	Preferences  *services.PreferencesService

	// Backend serves the read-only summary endpoints.
	Backend ports.Backend

	Dashboard  *dashboard.Service
	Navigators *dashboard.Registry

	Auth          auth.MiddlewareConfig
	SecureCookies bool

	// Caches is swept periodically while the server runs. Optional.
	Caches    *cache.Manager
	RateLimit ratelimit.Config
	Logger    *log.Logger
	Now       func() time.Time
}

// Server embeds http.Server and holds the wired handlers.
type Server struct {
	*http.Server

	deps       Deps
	templates  *template.Template
	logger     *log.Logger
	structured *log.StructuredLogger
	detector   *security.Detector
	limiter    *ratelimit.Limiter
	tracer     *trace.Middleware
	loginURL   string
	now        func() time.Time
	startedAt  time.Time
}

// NewServer parses the embedded templates and builds the route table.
func NewServer(addr string, deps Deps) (*Server, error) {
	if deps.Logger == nil {
		deps.Logger = log.New(log.DefaultConfig())
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	loginURL := deps.Auth.LoginURL
	if loginURL == "" {
		loginURL = defaultLoginURL
	}

	tmpl, err := template.New("").Funcs(templateFuncs()).ParseFS(appweb.TemplatesFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}

	logger := deps.Logger.WithComponent(log.ComponentHTTP)
	detector := security.NewDetector()
	s := &Server{
		deps:       deps,
		templates:  tmpl,
		logger:     logger,
		structured: log.NewStructuredLogger(logger),
		detector:   detector,
		limiter:    ratelimit.NewLimiter(deps.RateLimit),
		tracer:     trace.NewMiddleware(deps.Logger, detector.ExtractClientIP),
		loginURL:   loginURL,
		now:        deps.Now,
		startedAt:  deps.Now(),
	}

	handler, err := s.routes()
	if err != nil {
		return nil, err
	}
	s.Server = &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s, nil
}

func (s *Server) routes() (http.Handler, error) {
	staticFS, err := fs.Sub(appweb.StaticFS, "static")
	if err != nil {
		return nil, fmt.Errorf("static assets: %w", err)
	}

	protected := http.NewServeMux()
	protected.HandleFunc("GET /{$}", s.handleIndex)

	protected.HandleFunc("GET /ui/widgets/{widget}", s.handleWidget)
	protected.HandleFunc("POST /ui/widgets/{widget}/{direction}", s.handleWidgetMove)
	protected.HandleFunc("GET /ui/summary", s.handleSummaryWidget)
	protected.HandleFunc("GET /ui/emergency-fund", s.handleEmergencyFundWidget)
	protected.HandleFunc("GET /ui/comparison", s.handleComparisonWidget)

	protected.HandleFunc("GET /api/v1/expense-types", s.handleListCategories)
	protected.HandleFunc("POST /api/v1/expense-types", s.handleCreateCategory)
	protected.HandleFunc("GET /api/v1/expense-types/{id}", s.handleGetCategory)
	protected.HandleFunc("PUT /api/v1/expense-types/{id}", s.handleUpdateCategory)
	protected.HandleFunc("DELETE /api/v1/expense-types/{id}", s.handleDeleteCategory)

	protected.HandleFunc("GET /api/v1/budgets", s.handleListBudgets)
	protected.HandleFunc("POST /api/v1/budgets", s.handleCreateBudget)
	protected.HandleFunc("POST /api/v1/budgets/copy", s.handleCopyBudget)
	protected.HandleFunc("GET /api/v1/budgets/{year}", s.handleGetBudget)
	protected.HandleFunc("PUT /api/v1/budgets/{year}", s.handleReplaceBudget)
	protected.HandleFunc("DELETE /api/v1/budgets/{year}", s.handleDeleteBudget)

	protected.HandleFunc("GET /api/v1/transactions", s.handleListTransactions)
	protected.HandleFunc("POST /api/v1/transactions", s.handleCreateTransaction)
	protected.HandleFunc("GET /api/v1/transactions/summary/monthly", s.handleMonthlySummary)
	protected.HandleFunc("GET /api/v1/transactions/summary/by-type", s.handleSpendingByType)
	protected.HandleFunc("GET /api/v1/transactions/summary/yearly", s.handleYearlySummary)
	protected.HandleFunc("GET /api/v1/transactions/check-budget-item/{id}", s.handleCheckBudgetItem)
	protected.HandleFunc("GET /api/v1/transactions/{id}", s.handleGetTransaction)
	protected.HandleFunc("PUT /api/v1/transactions/{id}", s.handleUpdateTransaction)
	protected.HandleFunc("DELETE /api/v1/transactions/{id}", s.handleDeleteTransaction)

	protected.HandleFunc("GET /api/v1/users/preferences", s.handleGetPreferences)
	protected.HandleFunc("POST /api/v1/users/preferences", s.handleSavePreferences)
	protected.HandleFunc("PUT /api/v1/users/preferences", s.handleSavePreferences)

	protected.HandleFunc("GET /api/v1/dashboard/burn-rate", s.handleAPIBurnRate)
	protected.HandleFunc("GET /api/v1/dashboard/accumulation", s.handleAPIAccumulation)
	protected.HandleFunc("GET /api/v1/dashboard/distribution", s.handleAPIDistribution)
	protected.HandleFunc("GET /api/v1/dashboard/comparison", s.handleAPIComparison)
	protected.HandleFunc("GET /api/v1/dashboard/emergency-fund", s.handleAPIEmergencyFund)
	protected.HandleFunc("GET /api/v1/dashboard/summary", s.handleAPISummary)

	authCfg := s.deps.Auth
	authCfg.LoginURL = s.loginURL
	requireSession := auth.Middleware(authCfg)

	mux := http.NewServeMux()
	mux.Handle("/", security.NoStore(requireSession(protected)))
	mux.HandleFunc("GET /login", s.handleLoginPage)
	mux.HandleFunc("POST /auth/session", s.handleCreateSession)
	mux.HandleFunc("POST /auth/logout", s.handleLogout)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.HandleFunc("GET /metrics", s.handleMetrics)
	mux.Handle("GET /static/", security.StaticAssetMiddleware(86400)(
		http.StripPrefix("/static/", http.FileServer(http.FS(staticFS)))))

	// Outermost first: trace, suspicious-request detection, headers, write
	// rate limit.
	var h http.Handler = mux
	h = s.limiter.Writes(s.detector.ExtractClientIP, s.handleRateLimited)(h)
	h = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(h)
	h = s.detector.Middleware(s.deps.Logger)(h)
	h = s.tracer.Middleware(h)
	return h, nil
}

// Start runs the cache sweeper and serves until Shutdown.
func (s *Server) Start(sweepInterval time.Duration) error {
	if s.deps.Caches != nil && sweepInterval > 0 {
		s.deps.Caches.StartCleanup(sweepInterval)
	}
	s.logger.Info("HTTP server listening", "addr", s.Addr)
	return s.ListenAndServe()
}

// Shutdown stops accepting requests, waits for in-flight ones and stops the
// background sweepers.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.Server.Shutdown(ctx)
	s.limiter.Stop()
	if s.deps.Caches != nil {
		s.deps.Caches.Stop()
	}
	return err
}

func (s *Server) handleRateLimited(w http.ResponseWriter, r *http.Request) {
	s.logger.WarnContext(r.Context(), "Rate limit exceeded",
		log.FieldClientIP, s.detector.ExtractClientIP(r),
		log.FieldPath, r.URL.Path)
	if isAPI(r) {
		writeJSON(w, http.StatusTooManyRequests, errorBody{Error: "rate limit exceeded"})
		return
	}
	NewHTMXResponse().
		Status(http.StatusTooManyRequests).
		TriggerErrorNotification("Too many requests, slow down").
		Write(w)
}
