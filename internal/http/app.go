package http

import (
	"context"

	"dealflow_backend/platform/config"
	"dealflow_backend/platform/logger"
)

// RouterConfig is the slice of configuration the router reads.
type RouterConfig interface {
	config.HTTPConfig
	config.JWTConfig
}

// HealthChecker is one dependency reported by /api/health.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// HealthFunc adapts a function to HealthChecker.
type HealthFunc func(ctx context.Context) error

func (f HealthFunc) Ping(ctx context.Context) error { return f(ctx) }

// App is what the composition root hands to router.New.
type App struct {
	Config RouterConfig
	Logger *logger.Logger
	// Health maps a dependency name such as "database" or "redis" to its check.
	Health  map[string]HealthChecker
	Modules []Module
}
