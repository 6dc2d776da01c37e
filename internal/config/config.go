// Package config defines the configuration structure for the SkyRisk service.
// Configuration is loaded once at process start (or Lambda cold start) and is
// immutable thereafter.
//
// Values are resolved via a priority chain:
//
//	OS Environment (Highest) -> Dotenv File -> *_FILE secret files (Lowest)
//
// Any missing required value or invalid format fails startup.
package config

import (
	"time"

	"skyrisk/internal/types"
)

// SecretString is an alias for types.SecretString, the redacted secret type used
// throughout configuration to prevent accidental logging of sensitive values.
type SecretString = types.SecretString

// Climatology source selectors.
const (
	ClimatologyStatic   = "static"
	ClimatologyPostgres = "postgres"
)

// Config is the top-level configuration struct for the SkyRisk service.
// Sub-components receive only the config subsets they require.
type Config struct {
	// System Metadata
	Environment string `envconfig:"APP_ENV" validate:"required,oneof=local dev staging prod"`
	Service     string `envconfig:"SERVICE_NAME" default:"skyrisk-api"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`

	// Domain Configurations
	Server        ServerConfig
	Upstream      UpstreamConfig
	Session       SessionConfig
	Climatology   ClimatologyConfig
	Database      DatabaseConfig
	Risk          RiskConfig
	AWS           AWSConfig
	Security      SecurityConfig
	Observability ObservabilityConfig

	// Build Metadata (Injected via ldflags, not Env)
	Build BuildInfo
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port           string        `envconfig:"PORT" default:"8080"`
	RequestTimeout time.Duration `envconfig:"REQUEST_TIMEOUT" default:"15s" validate:"gt=0"`

	// Per-client request budget. A non-positive RPS disables limiting.
	RateLimitRPS   float64 `envconfig:"API_RATE_LIMIT_RPS" default:"5"`
	RateLimitBurst int     `envconfig:"API_RATE_LIMIT_BURST" default:"20" validate:"gte=0"`
}

// UpstreamConfig configures the Open-Meteo clients.
type UpstreamConfig struct {
	ForecastURL  string        `envconfig:"OPENMETEO_FORECAST_URL" default:"https://api.open-meteo.com/v1/forecast" validate:"required,url"`
	GeocodingURL string        `envconfig:"OPENMETEO_GEOCODING_URL" default:"https://geocoding-api.open-meteo.com/v1/search" validate:"required,url"`
	Timeout      time.Duration `envconfig:"UPSTREAM_TIMEOUT" default:"10s" validate:"gt=0"`
	MaxRetries   int           `envconfig:"UPSTREAM_MAX_RETRIES" default:"2" validate:"gte=0,lte=5"`
	// Client-side limiter for the upstream fair-use policy. 0 disables it.
	RPS       float64       `envconfig:"UPSTREAM_RPS" default:"8" validate:"gte=0"`
	Burst     int           `envconfig:"UPSTREAM_BURST" default:"4" validate:"gte=1"`
	CacheTTL  time.Duration `envconfig:"FORECAST_CACHE_TTL" default:"10m" validate:"gte=0"`
	// UserAgent defaults to BuildInfo.UserAgent when unset.
	UserAgent string        `envconfig:"UPSTREAM_USER_AGENT"`
}

// SessionConfig controls the in-memory dashboard session store.
type SessionConfig struct {
	TTL           time.Duration `envconfig:"SESSION_TTL" default:"1h" validate:"gt=0"`
	SweepInterval time.Duration `envconfig:"SESSION_SWEEP_INTERVAL" default:"5m" validate:"gt=0"`
}

// ClimatologyConfig selects where the monthly climatology table comes from.
type ClimatologyConfig struct {
	Source string `envconfig:"CLIMATOLOGY_SOURCE" default:"static" validate:"oneof=static postgres"`
	// SeedOnStart upserts the built-in table into Postgres at startup.
	SeedOnStart bool `envconfig:"CLIMATOLOGY_SEED" default:"false"`
}

// DatabaseConfig holds database connection and pool tuning parameters.
// URL is only required when the climatology source is postgres.
type DatabaseConfig struct {
	URL SecretString `envconfig:"DATABASE_URL"`

	MaxConns          int           `envconfig:"DB_MAX_CONNS" default:"5"`
	MinConns          int           `envconfig:"DB_MIN_CONNS" default:"1"`
	MaxConnLifetime   time.Duration `envconfig:"DB_MAX_CONN_LIFETIME" default:"30m"`
	AcquireTimeout    time.Duration `envconfig:"DB_ACQUIRE_TIMEOUT" default:"2s"`
	HealthCheckPeriod time.Duration `envconfig:"DB_HEALTH_CHECK_PERIOD" default:"1m"`
}

// RiskConfig holds the category thresholds shared by climatology and
// forecast scoring.
type RiskConfig struct {
	HotC     float64 `envconfig:"RISK_HOT_C" default:"35"`
	ColdC    float64 `envconfig:"RISK_COLD_C" default:"0"`
	WetMM    float64 `envconfig:"RISK_WET_MM" default:"20" validate:"gte=0"`
	WindyKmh float64 `envconfig:"RISK_WINDY_KMH" default:"12" validate:"gte=0"`
}

// AWSConfig holds regional configuration for CloudWatch.
type AWSConfig struct {
	Region string `envconfig:"AWS_REGION" default:"us-east-1"`

	// LocalStack Support (Empty in Prod)
	EndpointURL string `envconfig:"AWS_ENDPOINT_URL"`
}

// SecurityConfig holds browser-facing settings.
type SecurityConfig struct {
	CorsAllowedOrigins []string `envconfig:"CORS_ALLOWED_ORIGINS" default:"*"`
}

// ObservabilityConfig holds telemetry settings.
type ObservabilityConfig struct {
	MetricsEnabled  bool   `envconfig:"METRICS_ENABLED" default:"false"`
	MetricNamespace string `envconfig:"METRIC_NAMESPACE" default:"SkyRisk"`
	// Buffered datums are published at this interval and on shutdown.
	MetricsFlushInterval time.Duration `envconfig:"METRICS_FLUSH_INTERVAL" default:"30s" validate:"gt=0"`
}

// BuildInfo holds build-time metadata injected via ldflags.
// These values are NOT populated from environment variables.
type BuildInfo struct {
	Version   string
	Commit    string
	BuildTime string
}

// ConfigErrorType categorizes configuration loading failures to aid debugging.
type ConfigErrorType string

const (
	// ErrMissingEnv indicates a required environment variable was not found.
	ErrMissingEnv ConfigErrorType = "MISSING_ENV"
	// ErrSecretResolution indicates a *_FILE secret could not be read.
	ErrSecretResolution ConfigErrorType = "SECRET_FAILURE"
	// ErrValidation indicates the configuration failed struct validation rules.
	ErrValidation ConfigErrorType = "VALIDATION_FAILED"
	// ErrParsing indicates a failure when parsing environment variable values
	// into their target types.
	ErrParsing ConfigErrorType = "PARSING_FAILED"
)
