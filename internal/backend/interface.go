package backend

import (
	"context"
	"time"

	"budget/internal/cache"
	"budget/internal/gateway"
)

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// Result contains the gateway instance and what the caller must manage
// around it.
type Result struct {
	Gateway gateway.Gateway
	// Cache is the gateway read cache, nil when the gateway doesn't cache.
	Cache interface {
		cache.Cleaner
		Purge()
	}
	Cleanup CleanupFunc
}

// Close runs Cleanup if set.
func (r *Result) Close() error {
	if r == nil || r.Cleanup == nil {
		return nil
	}
	return r.Cleanup()
}

// Factory creates gateways based on configuration
type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*Result, error)
}

// Config holds configuration for backend creation
type Config struct {
	Type BackendType

	// HTTP specific
	APIURL         string
	APIToken       string
	RequestTimeout time.Duration
	CacheTTL       time.Duration
	CacheSize      int

	// Local specific
	SQLiteDBPath string
}

// BackendType represents the type of backend
type BackendType string

const (
	HTTPBackend   BackendType = "http"
	MemoryBackend BackendType = "memory"
	LocalBackend  BackendType = "local"
)

// String implements fmt.Stringer
func (bt BackendType) String() string {
	return string(bt)
}

// IsValid returns true if the backend type is valid
func (bt BackendType) IsValid() bool {
	switch bt {
	case HTTPBackend, MemoryBackend, LocalBackend:
		return true
	default:
		return false
	}
}
