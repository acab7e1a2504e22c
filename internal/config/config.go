// Package config reads the process configuration from the environment.
package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"finboard/internal/budget"
	"finboard/internal/log"
)

const (
	BackendMemory = "memory"
	BackendSQLite = "sqlite"
	BackendRemote = "remote"
)

var validBackends = []string{BackendMemory, BackendSQLite, BackendRemote}

type Config struct {
	// HTTP server
	Port          string
	LogLevel      string
	SecureCookies bool

	// Backend selection
	DataBackend  string
	SQLiteDBPath string

	// Upstream services (remote backend)
	BudgetServiceURL      string
	TransactionServiceURL string
	UserServiceURL        string
	UpstreamTimeout       time.Duration

	// Sessions
	AuthJWTSecret string
	AuthLoginURL  string
	AuthDevEmail  string

	// AMQP
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Google Sheets ledger
	GoogleSpreadsheetID      string
	GoogleLedgerSheet        string
	GoogleServiceAccountJSON string
	GoogleServiceAccountFile string
	GoogleOAuthClientJSON    string
	GoogleOAuthClientFile    string
	GoogleOAuthTokenJSON     string
	GoogleOAuthTokenFile     string
	OAuthRedirectPort        string

	// Dashboard
	AccumulationPolicy string
	SpendingCacheTTL   time.Duration

	// Worker
	LedgerSyncInterval time.Duration
	LedgerMaxRetries   int
}

func Load() *Config {
	return &Config{
		Port:          getEnv("PORT", "8080"),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		SecureCookies: getEnvBool("COOKIE_SECURE", false),

		DataBackend:  getEnv("DATA_BACKEND", BackendMemory),
		SQLiteDBPath: getEnv("SQLITE_DB_PATH", "./data/finboard.db"),

		BudgetServiceURL:      getEnv("BUDGET_SERVICE_URL", ""),
		TransactionServiceURL: getEnv("TRANSACTION_SERVICE_URL", ""),
		UserServiceURL:        getEnv("USER_SERVICE_URL", ""),
		UpstreamTimeout:       getEnvDuration("UPSTREAM_TIMEOUT", 10*time.Second),

		AuthJWTSecret: getEnv("AUTH_JWT_SECRET", ""),
		AuthLoginURL:  getEnv("AUTH_LOGIN_URL", "/login"),
		AuthDevEmail:  getEnv("AUTH_DEV_EMAIL", ""),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "finboard"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "ledger_transactions"),

		GoogleSpreadsheetID:      getEnv("GOOGLE_SPREADSHEET_ID", ""),
		GoogleLedgerSheet:        getEnv("GOOGLE_LEDGER_SHEET_NAME", "Ledger"),
		GoogleServiceAccountJSON: getEnv("GOOGLE_SERVICE_ACCOUNT_JSON", ""),
		GoogleServiceAccountFile: getEnv("GOOGLE_SERVICE_ACCOUNT_FILE", ""),
		GoogleOAuthClientJSON:    getEnv("GOOGLE_OAUTH_CLIENT_JSON", ""),
		GoogleOAuthClientFile:    getEnv("GOOGLE_OAUTH_CLIENT_FILE", ""),
		GoogleOAuthTokenJSON:     getEnv("GOOGLE_OAUTH_TOKEN_JSON", ""),
		GoogleOAuthTokenFile:     getEnv("GOOGLE_OAUTH_TOKEN_FILE", "token.json"),
		OAuthRedirectPort:        getEnv("OAUTH_REDIRECT_PORT", "8085"),

		AccumulationPolicy: getEnv("ACCUMULATION_MISSING_DATA_POLICY", budget.FailOpen.String()),
		SpendingCacheTTL:   getEnvDuration("SPENDING_CACHE_TTL", 5*time.Minute),

		LedgerSyncInterval: getEnvDuration("LEDGER_SYNC_INTERVAL", time.Minute),
		LedgerMaxRetries:   getEnvInt("LEDGER_MAX_RETRIES", 5),
	}
}

// Policy parses AccumulationPolicy. Validate reports the same error.
func (c *Config) Policy() (budget.MissingDataPolicy, error) {
	return budget.ParsePolicy(c.AccumulationPolicy)
}

// Validate checks the web server configuration and reports every problem
// found at once.
func (c *Config) Validate() error {
	var errs []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errs = append(errs, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errs = append(errs, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, err.Error())
	}

	errs = append(errs, c.validateBackend()...)

	if c.AuthJWTSecret == "" && c.AuthDevEmail == "" {
		errs = append(errs, "either AUTH_JWT_SECRET or AUTH_DEV_EMAIL must be set")
	}
	if c.AuthJWTSecret != "" && len(c.AuthJWTSecret) < 32 {
		errs = append(errs, "AUTH_JWT_SECRET must be at least 32 characters")
	}

	if _, err := c.Policy(); err != nil {
		errs = append(errs, err.Error())
	}
	if c.SpendingCacheTTL < 0 {
		errs = append(errs, fmt.Sprintf("invalid spending cache TTL %v: must not be negative", c.SpendingCacheTTL))
	}

	errs = append(errs, c.validateAMQP(false)...)

	return joinErrors(errs)
}

// ValidateWorker checks the ledger worker configuration: a local backend,
// a broker and a spreadsheet are required.
func (c *Config) ValidateWorker() error {
	var errs []string

	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, err.Error())
	}
	errs = append(errs, c.validateBackend()...)
	if c.DataBackend == BackendRemote {
		errs = append(errs, "the ledger worker needs a local data backend (memory or sqlite), not remote")
	}
	errs = append(errs, c.validateAMQP(true)...)

	if c.GoogleSpreadsheetID == "" {
		errs = append(errs, "GOOGLE_SPREADSHEET_ID is required for the ledger worker")
	}
	if c.GoogleLedgerSheet == "" {
		errs = append(errs, "GOOGLE_LEDGER_SHEET_NAME cannot be empty")
	}
	if c.GoogleServiceAccountFile != "" {
		if _, err := os.Stat(c.GoogleServiceAccountFile); os.IsNotExist(err) {
			errs = append(errs, fmt.Sprintf("Google service account file does not exist: %s", c.GoogleServiceAccountFile))
		}
	}

	if c.GoogleOAuthClientJSON != "" || c.GoogleOAuthClientFile != "" {
		if c.GoogleOAuthTokenJSON == "" {
			if _, err := os.Stat(c.GoogleOAuthTokenFile); err != nil {
				errs = append(errs, fmt.Sprintf("Google OAuth token file is not readable: %s (run finboardctl sheets authorize)", c.GoogleOAuthTokenFile))
			}
		}
	}

	if c.LedgerSyncInterval < time.Second {
		errs = append(errs, fmt.Sprintf("invalid ledger sync interval %v: must be at least 1 second", c.LedgerSyncInterval))
	} else if c.LedgerSyncInterval > 24*time.Hour {
		errs = append(errs, fmt.Sprintf("invalid ledger sync interval %v: must be at most 24 hours", c.LedgerSyncInterval))
	}
	if c.LedgerMaxRetries < 1 {
		errs = append(errs, fmt.Sprintf("invalid ledger max retries %d: must be at least 1", c.LedgerMaxRetries))
	}

	return joinErrors(errs)
}

func (c *Config) validateBackend() []string {
	var errs []string
	switch c.DataBackend {
	case BackendMemory:
	case BackendSQLite:
		if c.SQLiteDBPath == "" {
			errs = append(errs, "SQLite database path cannot be empty when using sqlite backend")
			break
		}
		dir := filepath.Dir(c.SQLiteDBPath)
		if dir != "." && dir != "" {
			if _, err := os.Stat(dir); os.IsNotExist(err) {
				if err := os.MkdirAll(dir, 0o755); err != nil {
					errs = append(errs, fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err))
				}
			}
		}
	case BackendRemote:
		for name, raw := range map[string]string{
			"BUDGET_SERVICE_URL":      c.BudgetServiceURL,
			"TRANSACTION_SERVICE_URL": c.TransactionServiceURL,
			"USER_SERVICE_URL":        c.UserServiceURL,
		} {
			if raw == "" {
				errs = append(errs, fmt.Sprintf("%s is required when using remote backend", name))
				continue
			}
			if u, err := url.Parse(raw); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
				errs = append(errs, fmt.Sprintf("invalid %s '%s': must be an http(s) URL", name, raw))
			}
		}
		if c.UpstreamTimeout <= 0 {
			errs = append(errs, fmt.Sprintf("invalid upstream timeout %v: must be positive", c.UpstreamTimeout))
		}
	default:
		errs = append(errs, fmt.Sprintf("invalid data backend '%s': must be one of %v", c.DataBackend, validBackends))
	}
	return errs
}

func (c *Config) validateAMQP(required bool) []string {
	var errs []string
	if c.AMQPURL == "" {
		if required {
			errs = append(errs, "AMQP_URL is required")
		}
		return errs
	}
	if parsed, err := url.Parse(c.AMQPURL); err != nil {
		errs = append(errs, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
	} else if parsed.Scheme != "amqp" && parsed.Scheme != "amqps" {
		errs = append(errs, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsed.Scheme))
	}
	if c.AMQPExchange == "" {
		errs = append(errs, "AMQP exchange name cannot be empty when AMQP URL is provided")
	}
	if c.AMQPQueue == "" {
		errs = append(errs, "AMQP queue name cannot be empty when AMQP URL is provided")
	}
	return errs
}

func joinErrors(errs []string) error {
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errs, "\n- "))
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
