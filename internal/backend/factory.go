package backend

import (
	"context"
	"fmt"

	"finboard/internal/log"
	"finboard/internal/remote"
	"finboard/internal/storage"
	"finboard/internal/storage/memory"
)

type DefaultFactory struct {
	logger *log.Logger
}

func NewFactory(logger *log.Logger) Factory {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &DefaultFactory{logger: logger.WithComponent(log.ComponentBackend)}
}

func (f *DefaultFactory) CreateBackend(ctx context.Context, cfg Config) (*Result, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	switch cfg.Type {
	case SQLiteBackend:
		return f.createSQLiteBackend(cfg)
	case RemoteBackend:
		return f.createRemoteBackend(cfg)
	default:
		return f.createMemoryBackend(cfg)
	}
}

func (f *DefaultFactory) createSQLiteBackend(cfg Config) (*Result, error) {
	repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
	}
	f.logger.Info("Initialized SQLite backend", "db_path", cfg.SQLiteDBPath)
	return &Result{Type: SQLiteBackend, Backend: repo, Cleanup: repo.Close}, nil
}

func (f *DefaultFactory) createRemoteBackend(cfg Config) (*Result, error) {
	client, err := remote.New(remote.Config{
		BudgetURL:      cfg.BudgetServiceURL,
		TransactionURL: cfg.TransactionServiceURL,
		UserURL:        cfg.UserServiceURL,
		Timeout:        cfg.UpstreamTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize remote backend: %w", err)
	}
	f.logger.Info("Initialized remote backend",
		"budget_url", cfg.BudgetServiceURL,
		"transaction_url", cfg.TransactionServiceURL,
		"user_url", cfg.UserServiceURL)
	return &Result{Type: RemoteBackend, Backend: client}, nil
}

func (f *DefaultFactory) createMemoryBackend(cfg Config) (*Result, error) {
	dir := cfg.DataDirectory
	if dir == "" {
		dir = "data"
	}
	store := memory.NewFromFiles(dir)
	f.logger.Info("Initialized memory backend", "data_directory", dir)
	return &Result{Type: MemoryBackend, Backend: store}, nil
}
