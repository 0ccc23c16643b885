// Package logger wraps slog with the event names the service logs under.
package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
)

// Logger embeds *slog.Logger, so Info/Warn/Error/Debug are available directly.
type Logger struct {
	*slog.Logger
}

// New logs to stdout: text in development, JSON everywhere else.
func New(env string) *Logger {
	return NewWithWriter(env, os.Stdout)
}

// NewWithWriter creates a logger writing to w. Tests pass io.Discard.
func NewWithWriter(env string, w io.Writer) *Logger {
	opts := &slog.HandlerOptions{Level: slog.LevelInfo}

	var handler slog.Handler
	if strings.EqualFold(env, "development") {
		opts.Level = slog.LevelDebug
		handler = slog.NewTextHandler(w, opts)
	} else {
		handler = slog.NewJSONHandler(w, opts)
	}

	return &Logger{Logger: slog.New(handler)}
}

// WithRequestID tags every record with the request's correlation ID.
func (l *Logger) WithRequestID(requestID string) *Logger {
	return &Logger{Logger: l.With(slog.String("request_id", requestID))}
}

// WithTenant tags every record with the workspace being served.
func (l *Logger) WithTenant(tenantID string) *Logger {
	return &Logger{Logger: l.With(slog.String("tenant_id", tenantID))}
}

func (l *Logger) HTTPRequest(method, path string, status int, latencyMs float64, clientIP string) {
	level := slog.LevelInfo
	if status >= 500 {
		level = slog.LevelError
	}
	l.Log(context.Background(), level, "http_request",
		slog.String("method", method),
		slog.String("path", path),
		slog.Int("status", status),
		slog.Float64("latency_ms", latencyMs),
		slog.String("client_ip", clientIP),
	)
}

// ProviderCall logs the outcome of a single external valuation provider call.
func (l *Logger) ProviderCall(provider, leadID string, latencyMs int64, err error) {
	if err == nil {
		l.Debug("provider_call",
			slog.String("provider", provider),
			slog.String("lead_id", leadID),
			slog.Int64("latency_ms", latencyMs),
		)
		return
	}
	l.Warn("provider_call",
		slog.String("provider", provider),
		slog.String("lead_id", leadID),
		slog.Int64("latency_ms", latencyMs),
		slog.String("error", err.Error()),
	)
}

func (l *Logger) RateLimitExceeded(clientIP, path string) {
	l.Warn("rate_limit_exceeded",
		slog.String("client_ip", clientIP),
		slog.String("path", path),
	)
}
