package log

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// ContextKey type for context keys
type ContextKey string

const (
	// RequestIDKey is the context key for an outbound request ID.
	RequestIDKey ContextKey = "request_id"

	// RequestIDHeader carries the request ID to the gateway.
	RequestIDHeader = "X-Request-ID"
)

// WithRequestID stores a request ID in ctx.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, RequestIDKey, id)
}

// RequestIDFromContext returns the request ID stored in ctx, if any.
func RequestIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(RequestIDKey).(string); ok {
		return id
	}
	return ""
}

// Transport is an http.RoundTripper that tags every outbound request with a
// request ID and logs its outcome.
type Transport struct {
	Base   http.RoundTripper
	Logger *Logger
}

// NewTransport wraps base (http.DefaultTransport when nil).
func NewTransport(base http.RoundTripper, logger *Logger) *Transport {
	if base == nil {
		base = http.DefaultTransport
	}
	return &Transport{Base: base, Logger: logger.WithComponent(ComponentGateway)}
}

func (t *Transport) RoundTrip(r *http.Request) (*http.Response, error) {
	ctx := r.Context()
	requestID := RequestIDFromContext(ctx)
	if requestID == "" {
		requestID = uuid.NewString()
	}
	r = r.Clone(WithRequestID(ctx, requestID))
	r.Header.Set(RequestIDHeader, requestID)

	start := time.Now()
	resp, err := t.Base.RoundTrip(r)
	duration := time.Since(start).Milliseconds()

	fields := NewFields().
		WithRequestID(requestID).
		WithHTTPRequest(r.Method, r.URL.Path, r.URL.RawQuery)
	if err != nil {
		t.Logger.Fields(ctx, slog.LevelWarn, "Gateway request failed", fields.WithError(err).WithHTTPResponse(0, duration))
		return nil, err
	}

	level := slog.LevelDebug
	if resp.StatusCode >= 500 {
		level = slog.LevelError
	} else if resp.StatusCode >= 400 {
		level = slog.LevelWarn
	}
	t.Logger.Fields(ctx, level, "Gateway request completed", fields.WithHTTPResponse(resp.StatusCode, duration))
	return resp, nil
}
