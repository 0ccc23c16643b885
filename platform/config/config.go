// Package config provides application configuration loading.
// This is part of the platform layer and contains no business logic.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// =============================================================================
// Module-Specific Config Interfaces (Principle of Least Privilege)
// =============================================================================

// DatabaseConfig provides database connection settings.
type DatabaseConfig interface {
	GetDatabaseURL() string
	GetDatabaseMaxConns() int
}

// JWTConfig provides JWT validation settings for middleware.
type JWTConfig interface {
	GetJWTAccessSecret() string
}

// HTTPConfig provides settings for the HTTP server.
type HTTPConfig interface {
	GetHTTPAddr() string
	GetCORSAllowAll() bool
	GetCORSOrigins() []string
	GetCORSAllowCreds() bool
	GetRateLimitRPS() float64
	GetRateLimitBurst() int
}

// SchedulerConfig provides settings for the asynq job queue.
type SchedulerConfig interface {
	GetRedisURL() string
	GetRedisTLSInsecure() bool
	GetAsynqQueueName() string
	GetAsynqConcurrency() int
}

// MinIOConfig provides settings for the evaluation audit archive.
type MinIOConfig interface {
	GetMinIOEndpoint() string
	GetMinIOAccessKey() string
	GetMinIOSecretKey() string
	GetMinIOUseSSL() bool
	GetMinioBucketEvaluationAudit() string
	IsMinIOEnabled() bool
}

// SMTPConfig provides settings for outbound first messages.
type SMTPConfig interface {
	GetSMTPHost() string
	GetSMTPPort() int
	GetSMTPUsername() string
	GetSMTPPassword() string
	GetSMTPFromName() string
	GetSMTPFromAddress() string
	IsSMTPEnabled() bool
}

// ProviderConfig provides endpoints for the external valuation providers.
type ProviderConfig interface {
	GetEstimatorAPIURL() string
	GetEstimatorAPIKey() string
	GetRentCastBaseURL() string
	GetRentCastAPIKey() string
	GetRentCastRatePerSecond() float64
	IsRentCastEnabled() bool
}

// InboxConfig provides settings for the unread-count poller.
type InboxConfig interface {
	GetMessagingAPIURL() string
	GetMessagingAPIKey() string
	GetUnreadPollInterval() time.Duration
	IsInboxEnabled() bool
}

// =============================================================================
// Main Config Struct
// =============================================================================

// Config holds all application configuration values.
type Config struct {
	Env                        string
	HTTPAddr                   string
	DatabaseURL                string
	DatabaseMaxConns           int
	JWTAccessSecret            string
	CORSAllowAll               bool
	CORSOrigins                []string
	CORSAllowCreds             bool
	RateLimitRPS               float64
	RateLimitBurst             int
	PhoneDefaultRegion         string
	RedisURL                   string
	RedisTLSInsecure           bool
	AsynqQueueName             string
	AsynqConcurrency           int
	MinIOEndpoint              string
	MinIOAccessKey             string
	MinIOSecretKey             string
	MinIOUseSSL                bool
	MinioBucketEvaluationAudit string
	SMTPHost                   string
	SMTPPort                   int
	SMTPUsername               string
	SMTPPassword               string
	SMTPFromName               string
	SMTPFromAddress            string
	EstimatorAPIURL            string
	EstimatorAPIKey            string
	RentCastBaseURL            string
	RentCastAPIKey             string
	RentCastRatePerSecond      float64
	MessagingAPIURL            string
	MessagingAPIKey            string
	UnreadPollInterval         time.Duration
	Policy                     Policy
}

// =============================================================================
// Interface Implementations
// =============================================================================

// DatabaseConfig implementation
func (c *Config) GetDatabaseURL() string  { return c.DatabaseURL }
func (c *Config) GetDatabaseMaxConns() int { return c.DatabaseMaxConns }

// JWTConfig implementation
func (c *Config) GetJWTAccessSecret() string { return c.JWTAccessSecret }

// HTTPConfig implementation
func (c *Config) GetHTTPAddr() string      { return c.HTTPAddr }
func (c *Config) GetCORSAllowAll() bool    { return c.CORSAllowAll }
func (c *Config) GetCORSOrigins() []string { return c.CORSOrigins }
func (c *Config) GetCORSAllowCreds() bool  { return c.CORSAllowCreds }
func (c *Config) GetRateLimitRPS() float64 { return c.RateLimitRPS }
func (c *Config) GetRateLimitBurst() int   { return c.RateLimitBurst }

// GetPhoneDefaultRegion is the region assumed for contact phones without a country code.
func (c *Config) GetPhoneDefaultRegion() string { return c.PhoneDefaultRegion }

// SchedulerConfig implementation
func (c *Config) GetRedisURL() string       { return c.RedisURL }
func (c *Config) GetRedisTLSInsecure() bool { return c.RedisTLSInsecure }
func (c *Config) GetAsynqQueueName() string { return c.AsynqQueueName }
func (c *Config) GetAsynqConcurrency() int  { return c.AsynqConcurrency }
func (c *Config) IsSchedulerEnabled() bool  { return c.RedisURL != "" }

// MinIOConfig implementation
func (c *Config) GetMinIOEndpoint() string  { return c.MinIOEndpoint }
func (c *Config) GetMinIOAccessKey() string { return c.MinIOAccessKey }
func (c *Config) GetMinIOSecretKey() string { return c.MinIOSecretKey }
func (c *Config) GetMinIOUseSSL() bool      { return c.MinIOUseSSL }
func (c *Config) GetMinioBucketEvaluationAudit() string {
	return c.MinioBucketEvaluationAudit
}
func (c *Config) IsMinIOEnabled() bool { return c.MinIOEndpoint != "" }

// SMTPConfig implementation
func (c *Config) GetSMTPHost() string        { return c.SMTPHost }
func (c *Config) GetSMTPPort() int           { return c.SMTPPort }
func (c *Config) GetSMTPUsername() string    { return c.SMTPUsername }
func (c *Config) GetSMTPPassword() string    { return c.SMTPPassword }
func (c *Config) GetSMTPFromName() string    { return c.SMTPFromName }
func (c *Config) GetSMTPFromAddress() string { return c.SMTPFromAddress }
func (c *Config) IsSMTPEnabled() bool        { return c.SMTPHost != "" && c.SMTPFromAddress != "" }

// ProviderConfig implementation
func (c *Config) GetEstimatorAPIURL() string        { return c.EstimatorAPIURL }
func (c *Config) GetEstimatorAPIKey() string        { return c.EstimatorAPIKey }
func (c *Config) GetRentCastBaseURL() string        { return c.RentCastBaseURL }
func (c *Config) GetRentCastAPIKey() string         { return c.RentCastAPIKey }
func (c *Config) GetRentCastRatePerSecond() float64 { return c.RentCastRatePerSecond }
func (c *Config) IsRentCastEnabled() bool           { return c.RentCastAPIKey != "" }

// InboxConfig implementation
func (c *Config) GetMessagingAPIURL() string           { return c.MessagingAPIURL }
func (c *Config) GetMessagingAPIKey() string           { return c.MessagingAPIKey }
func (c *Config) GetUnreadPollInterval() time.Duration { return c.UnreadPollInterval }
func (c *Config) IsInboxEnabled() bool                 { return c.MessagingAPIURL != "" }

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	_ = godotenv.Load()

	corsOrigins := splitCSV(getEnv("CORS_ORIGINS", "http://localhost:4200"))
	corsAllowAll := strings.EqualFold(getEnv("CORS_ALLOW_ALL", "false"), "true")
	if containsWildcard(corsOrigins) {
		corsAllowAll = true
	}

	policy, err := LoadPolicy()
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Env:                        getEnv("APP_ENV", "development"),
		HTTPAddr:                   getEnv("HTTP_ADDR", ":8080"),
		DatabaseURL:                getEnv("DATABASE_URL", ""),
		DatabaseMaxConns:           mustInt(getEnv("DATABASE_MAX_CONNS", "25")),
		JWTAccessSecret:            getEnv("JWT_ACCESS_SECRET", ""),
		CORSAllowAll:               corsAllowAll,
		CORSOrigins:                corsOrigins,
		CORSAllowCreds:             strings.EqualFold(getEnv("CORS_ALLOW_CREDENTIALS", "true"), "true"),
		RateLimitRPS:               mustFloat(getEnv("RATE_LIMIT_RPS", "10")),
		RateLimitBurst:             mustInt(getEnv("RATE_LIMIT_BURST", "30")),
		PhoneDefaultRegion:         strings.ToUpper(getEnv("PHONE_DEFAULT_REGION", "US")),
		RedisURL:                   getEnv("REDIS_URL", ""),
		RedisTLSInsecure:           strings.EqualFold(getEnv("REDIS_TLS_INSECURE", "false"), "true"),
		AsynqQueueName:             getEnv("ASYNQ_QUEUE", "evaluations"),
		AsynqConcurrency:           mustInt(getEnv("ASYNQ_CONCURRENCY", "10")),
		MinIOEndpoint:              getEnv("MINIO_ENDPOINT", ""),
		MinIOAccessKey:             getEnv("MINIO_ACCESS_KEY", ""),
		MinIOSecretKey:             getEnv("MINIO_SECRET_KEY", ""),
		MinIOUseSSL:                strings.EqualFold(getEnv("MINIO_USE_SSL", "false"), "true"),
		MinioBucketEvaluationAudit: getEnv("MINIO_BUCKET_EVALUATION_AUDIT", "evaluation-audit"),
		SMTPHost:                   getEnv("SMTP_HOST", ""),
		SMTPPort:                   mustInt(getEnv("SMTP_PORT", "587")),
		SMTPUsername:               getEnv("SMTP_USERNAME", ""),
		SMTPPassword:               getEnv("SMTP_PASSWORD", ""),
		SMTPFromName:               getEnv("SMTP_FROM_NAME", "Dealflow"),
		SMTPFromAddress:            getEnv("SMTP_FROM_ADDRESS", ""),
		EstimatorAPIURL:            getEnv("ESTIMATOR_API_URL", ""),
		EstimatorAPIKey:            getEnv("ESTIMATOR_API_KEY", ""),
		RentCastBaseURL:            getEnv("RENTCAST_BASE_URL", "https://api.rentcast.io/v1"),
		RentCastAPIKey:             getEnv("RENTCAST_API_KEY", ""),
		RentCastRatePerSecond:      mustFloat(getEnv("RENTCAST_RATE_PER_SECOND", "2")),
		MessagingAPIURL:            getEnv("MESSAGING_API_URL", ""),
		MessagingAPIKey:            getEnv("MESSAGING_API_KEY", ""),
		UnreadPollInterval:         mustDuration(getEnv("UNREAD_POLL_INTERVAL", "30s")),
		Policy:                     policy,
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.JWTAccessSecret == "" {
		return nil, fmt.Errorf("JWT_ACCESS_SECRET is required")
	}
	if cfg.EstimatorAPIURL == "" {
		return nil, fmt.Errorf("ESTIMATOR_API_URL is required")
	}
	if cfg.CORSAllowAll && cfg.CORSAllowCreds {
		return nil, fmt.Errorf("CORS_ALLOW_CREDENTIALS cannot be true when CORS_ALLOW_ALL is true")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return fallback
}

func mustDuration(value string) time.Duration {
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0
	}
	return d
}

func mustInt(value string) int {
	result, err := strconv.Atoi(value)
	if err != nil {
		return 0
	}
	return result
}

func mustFloat(value string) float64 {
	result, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0
	}
	return result
}

func splitCSV(value string) []string {
	parts := strings.Split(value, ",")
	results := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			results = append(results, trimmed)
		}
	}
	return results
}

func containsWildcard(values []string) bool {
	for _, value := range values {
		if value == "*" {
			return true
		}
	}
	return false
}
