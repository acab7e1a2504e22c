package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"finboard/internal/amqp"
	"finboard/internal/auth"
	"finboard/internal/cache"
	"finboard/internal/cli"
	"finboard/internal/config"
	"finboard/internal/dashboard"
	apphttp "finboard/internal/http"
	"finboard/internal/middleware/ratelimit"
	"finboard/internal/services"
)

const (
	maxSessions    = 10000
	sessionIdle    = 12 * time.Hour
	cacheSweep     = time.Minute
	shutdownWindow = 30 * time.Second
)

func main() {
	cfg, logger := cli.LoadAndValidateConfig((*config.Config).Validate)
	ctx := context.Background()

	res := cli.OpenBackend(ctx, logger, cfg)

	policy, _ := cfg.Policy()
	dashCfg := dashboard.DefaultConfig()
	dashCfg.Policy = policy
	dashCfg.CacheTTL = cfg.SpendingCacheTTL
	dash := dashboard.NewService(res.Backend, dashCfg, logger)
	navigators := dashboard.NewRegistry(maxSessions, sessionIdle, time.Now)

	caches := cache.NewManager()
	caches.Register("spending", dash.Cleaner())
	caches.Register("navigators", navigators.Cleaner())

	// Events are best effort; the dashboard works without a broker.
	var publisher services.EventPublisher
	var amqpClient *amqp.Client
	if cfg.AMQPURL != "" {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Warn("AMQP unavailable, transaction events disabled", "error", err)
		} else {
			amqpClient = client
			publisher = client
			logger.Info("AMQP publisher initialized", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
		}
	}

	transactions := services.NewTransactionService(res.Backend, res.Backend, publisher)
	transactions.OnWrite(dash)

	authCfg := auth.MiddlewareConfig{LoginURL: cfg.AuthLoginURL}
	if cfg.AuthJWTSecret != "" {
		authCfg.Verifier = auth.NewVerifier(cfg.AuthJWTSecret)
	} else {
		authCfg.DevEmail = cfg.AuthDevEmail
		logger.Warn("No AUTH_JWT_SECRET, every request is signed in as the dev user", "email", cfg.AuthDevEmail)
	}

	srv, err := apphttp.NewServer(":"+cfg.Port, apphttp.Deps{
		Categories:    services.NewCategoryService(res.Backend),
		Budgets:       services.NewBudgetService(res.Backend, res.Backend, res.Backend),
		Transactions:  transactions,
		Preferences:   services.NewPreferencesService(res.Backend),
		Backend:       res.Backend,
		Dashboard:     dash,
		Navigators:    navigators,
		Auth:          authCfg,
		SecureCookies: cfg.SecureCookies,
		Caches:        caches,
		RateLimit:     ratelimit.DefaultConfig(),
		Logger:        logger,
	})
	if err != nil {
		logger.Error("Failed to build HTTP server", "error", err)
		os.Exit(1)
	}

	shutdownCtx, done := cli.GracefulShutdown(logger, shutdownWindow, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
		if amqpClient != nil {
			if err := amqpClient.Close(); err != nil {
				logger.Warn("AMQP close error", "error", err)
			}
		}
		if err := res.Close(); err != nil {
			logger.Warn("Backend close error", "error", err)
		}
	})

	logger.Info("Starting finboard",
		"port", cfg.Port,
		"backend", res.Type.String(),
		"policy", policy.String())
	if err := srv.Start(cacheSweep); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", "error", err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(shutdownCtx, done)
	logger.Info("Server stopped gracefully")
}
