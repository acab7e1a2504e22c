package backend

import (
	"fmt"
	"time"

	"finboard/internal/config"
)

// Config holds what the factory needs for each backend type.
type Config struct {
	Type Type

	// memory
	DataDirectory string

	// sqlite
	SQLiteDBPath string

	// remote
	BudgetServiceURL      string
	TransactionServiceURL string
	UserServiceURL        string
	UpstreamTimeout       time.Duration
}

// FromAppConfig converts the application config to a backend config.
func FromAppConfig(app *config.Config) (Config, error) {
	if app == nil {
		return Config{}, fmt.Errorf("app config is nil")
	}
	t := Type(app.DataBackend)
	if !t.IsValid() {
		return Config{}, fmt.Errorf("invalid backend type in config: %s", app.DataBackend)
	}
	return Config{
		Type:                  t,
		DataDirectory:         "data",
		SQLiteDBPath:          app.SQLiteDBPath,
		BudgetServiceURL:      app.BudgetServiceURL,
		TransactionServiceURL: app.TransactionServiceURL,
		UserServiceURL:        app.UserServiceURL,
		UpstreamTimeout:       app.UpstreamTimeout,
	}, nil
}

func (c Config) Validate() error {
	switch c.Type {
	case MemoryBackend:
	case SQLiteBackend:
		if c.SQLiteDBPath == "" {
			return fmt.Errorf("SQLite database path is required for sqlite backend")
		}
	case RemoteBackend:
		if c.BudgetServiceURL == "" || c.TransactionServiceURL == "" || c.UserServiceURL == "" {
			return fmt.Errorf("budget, transaction and user service URLs are required for remote backend")
		}
	default:
		return fmt.Errorf("invalid backend type: %s", c.Type)
	}
	return nil
}
