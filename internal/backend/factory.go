package backend

import (
	"context"
	"fmt"

	"budget/internal/gateway/httpapi"
	"budget/internal/gateway/local"
	"budget/internal/gateway/memory"
	"budget/internal/log"
	"budget/internal/storage"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *log.Logger
}

// NewFactory creates a new backend factory
func NewFactory(logger *log.Logger) Factory {
	if logger == nil {
		logger = log.Discard()
	}
	return &DefaultFactory{logger: logger.WithComponent(log.ComponentGateway)}
}

// CreateBackend implements Factory.CreateBackend
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*Result, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	switch config.Type {
	case HTTPBackend:
		return f.createHTTPBackend(config)
	case LocalBackend:
		return f.createLocalBackend(ctx, config)
	case MemoryBackend:
		return f.createMemoryBackend()
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
}

func (f *DefaultFactory) createHTTPBackend(config Config) (*Result, error) {
	client, err := httpapi.New(httpapi.Options{
		BaseURL:   config.APIURL,
		Token:     config.APIToken,
		Timeout:   config.RequestTimeout,
		CacheTTL:  config.CacheTTL,
		CacheSize: config.CacheSize,
		Logger:    f.logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize HTTP gateway: %w", err)
	}

	f.logger.Info("Initialized HTTP gateway",
		"api_url", config.APIURL,
		"cache_enabled", config.CacheTTL > 0)

	result := &Result{Gateway: client}
	if c := client.Cache(); c != nil {
		result.Cache = c
	}
	return result, nil
}

func (f *DefaultFactory) createLocalBackend(ctx context.Context, config Config) (*Result, error) {
	repo, err := storage.NewSQLiteRepository(config.SQLiteDBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
	}

	f.logger.InfoContext(ctx, "Initialized local backend", "db_path", config.SQLiteDBPath)

	return &Result{
		Gateway: local.New(repo),
		Cleanup: repo.Close,
	}, nil
}

func (f *DefaultFactory) createMemoryBackend() (*Result, error) {
	f.logger.Info("Initialized memory backend")
	return &Result{Gateway: memory.New()}, nil
}
