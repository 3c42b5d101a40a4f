package config

import (
	"fmt"
	"net/url"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"
)

// Backend names accepted in BUDGET_BACKEND.
const (
	BackendHTTP   = "http"
	BackendMemory = "memory"
	BackendLocal  = "local"
)

var validBackends = []string{BackendHTTP, BackendMemory, BackendLocal}

type Config struct {
	// Gateway
	Backend        string
	APIURL         string
	APIToken       string
	RequestTimeout time.Duration

	// Session
	Debounce    time.Duration
	TrendPeriod string
	TrendDays   int

	// Read cache
	CacheTTL  time.Duration
	CacheSize int

	// Local backend
	SQLiteDBPath string

	// AMQP change feed
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Google Sheets export
	GoogleSpreadsheetID      string
	GoogleSheetName          string
	GoogleServiceAccountFile string
	GoogleServiceAccountJSON string

	LogLevel string
}

func Load() *Config {
	return &Config{
		Backend:        getEnv("BUDGET_BACKEND", BackendHTTP),
		APIURL:         getEnv("BUDGET_API_URL", "http://localhost:8000/api"),
		APIToken:       getEnv("BUDGET_API_TOKEN", ""),
		RequestTimeout: getEnvDuration("BUDGET_REQUEST_TIMEOUT", 10*time.Second),

		Debounce:    getEnvDuration("BUDGET_DEBOUNCE", 500*time.Millisecond),
		TrendPeriod: getEnv("BUDGET_TREND_PERIOD", "daily"),
		TrendDays:   getEnvInt("BUDGET_TREND_DAYS", 30),

		CacheTTL:  getEnvDuration("BUDGET_CACHE_TTL", 0),
		CacheSize: getEnvInt("BUDGET_CACHE_SIZE", 128),

		SQLiteDBPath: getEnv("SQLITE_DB_PATH", "./data/budget.db"),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "budget"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "budget_changes"),

		GoogleSpreadsheetID:      getEnv("GOOGLE_SPREADSHEET_ID", ""),
		GoogleSheetName:          getEnv("GOOGLE_SHEET_NAME", "Transactions"),
		GoogleServiceAccountFile: getEnv("GOOGLE_SERVICE_ACCOUNT_FILE", ""),
		GoogleServiceAccountJSON: getEnv("GOOGLE_SERVICE_ACCOUNT_JSON", ""),

		LogLevel: getEnv("LOG_LEVEL", "info"),
	}
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	if !slices.Contains(validBackends, c.Backend) {
		errors = append(errors, fmt.Sprintf("invalid backend '%s': must be one of %v", c.Backend, validBackends))
	}

	if c.Backend == BackendHTTP {
		if parsedURL, err := url.Parse(c.APIURL); err != nil || c.APIURL == "" {
			errors = append(errors, fmt.Sprintf("invalid API URL '%s'", c.APIURL))
		} else if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
			errors = append(errors, fmt.Sprintf("invalid API URL scheme '%s': must be 'http' or 'https'", parsedURL.Scheme))
		}
	}

	if c.Backend == BackendLocal && strings.TrimSpace(c.SQLiteDBPath) == "" {
		errors = append(errors, "SQLite database path cannot be empty when using local backend")
	}

	if c.RequestTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("invalid request timeout %v: must be positive", c.RequestTimeout))
	}

	if c.Debounce <= 0 {
		errors = append(errors, fmt.Sprintf("invalid debounce %v: must be positive", c.Debounce))
	} else if c.Debounce > 10*time.Second {
		errors = append(errors, fmt.Sprintf("invalid debounce %v: must be at most 10 seconds", c.Debounce))
	}

	switch c.TrendPeriod {
	case "daily", "weekly", "monthly":
	default:
		errors = append(errors, fmt.Sprintf("invalid trend period '%s': must be daily, weekly or monthly", c.TrendPeriod))
	}
	if c.TrendDays < 1 || c.TrendDays > 3660 {
		errors = append(errors, fmt.Sprintf("invalid trend days %d: must be between 1 and 3660", c.TrendDays))
	}

	if c.CacheTTL < 0 {
		errors = append(errors, fmt.Sprintf("invalid cache TTL %v: must not be negative", c.CacheTTL))
	} else if c.CacheTTL > 0 && c.CacheSize < 1 {
		errors = append(errors, fmt.Sprintf("invalid cache size %d: must be at least 1 when caching is enabled", c.CacheSize))
	}

	// Validate AMQP URL if provided
	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			errors = append(errors, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	switch strings.ToLower(c.LogLevel) {
	case "", "debug", "info", "warn", "warning", "error":
	default:
		errors = append(errors, fmt.Sprintf("invalid log level '%s'", c.LogLevel))
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}

// ValidateExport checks the settings needed by the Google Sheets export.
func (c *Config) ValidateExport() error {
	var errors []string
	if c.GoogleSpreadsheetID == "" {
		errors = append(errors, "GOOGLE_SPREADSHEET_ID is required for export")
	}
	if c.GoogleSheetName == "" {
		errors = append(errors, "GOOGLE_SHEET_NAME is required for export")
	}
	if c.GoogleServiceAccountFile == "" && c.GoogleServiceAccountJSON == "" {
		errors = append(errors, "either GOOGLE_SERVICE_ACCOUNT_FILE or GOOGLE_SERVICE_ACCOUNT_JSON must be provided for export")
	}
	if c.GoogleServiceAccountFile != "" {
		if _, err := os.Stat(c.GoogleServiceAccountFile); os.IsNotExist(err) {
			errors = append(errors, fmt.Sprintf("Google service account file does not exist: %s", c.GoogleServiceAccountFile))
		}
	}
	if len(errors) > 0 {
		return fmt.Errorf("export configuration invalid:\n- %s", strings.Join(errors, "\n- "))
	}
	return nil
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

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
