// Package config defines the configuration of the push dispatch service.
// Configuration is loaded once at process start (or Lambda cold start) and is
// immutable thereafter.
//
// Values are resolved via a priority chain:
//
//	OS Environment (Highest) -> Dotenv File -> struct defaults (Lowest)
//
// A missing required value or an invalid format aborts startup.
package config

import (
	"time"

	"campuspush/internal/types"
)

// SecretString is an alias for types.SecretString so config consumers do not
// need to import types just to unmask a credential.
type SecretString = types.SecretString

// Metrics backends.
const (
	MetricsBackendPrometheus = "prometheus"
	MetricsBackendCloudWatch = "cloudwatch"
	MetricsBackendNone       = "none"
)

// Config is the top-level configuration struct. Sub-components receive only
// the subset they need.
type Config struct {
	Environment string `envconfig:"APP_ENV" validate:"required,oneof=local dev staging prod"`
	Service     string `envconfig:"SERVICE_NAME" default:"campuspush"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info" validate:"oneof=debug info warn error"`

	Server        ServerConfig
	Database      DatabaseConfig
	Gateway       GatewayConfig
	Dispatch      DispatchConfig
	Redis         RedisConfig
	AWS           AWSConfig
	Security      SecurityConfig
	Observability ObservabilityConfig

	// Build Metadata (Injected via ldflags, not Env)
	Build BuildInfo
}

// ServerConfig holds HTTP listener settings.
type ServerConfig struct {
	Port           string        `envconfig:"PORT" default:"8080"`
	RequestTimeout time.Duration `envconfig:"REQUEST_TIMEOUT" default:"30s"`
}

// DatabaseConfig holds the connection string and pool tuning for the
// directory, token and notification stores.
type DatabaseConfig struct {
	URL SecretString `envconfig:"DATABASE_URL" validate:"required,url"`

	MaxConns          int           `envconfig:"DB_MAX_CONNS" default:"10"`
	MinConns          int           `envconfig:"DB_MIN_CONNS" default:"2"`
	MaxConnLifetime   time.Duration `envconfig:"DB_MAX_CONN_LIFETIME" default:"30m"`
	AcquireTimeout    time.Duration `envconfig:"DB_ACQUIRE_TIMEOUT" default:"2s"`
	HealthCheckPeriod time.Duration `envconfig:"DB_HEALTH_CHECK_PERIOD" default:"1m"`
}

// GatewayConfig configures the push gateway client.
type GatewayConfig struct {
	ServerKey SecretString  `envconfig:"FCM_SERVER_KEY" validate:"required"`
	Endpoint  string        `envconfig:"FCM_ENDPOINT" default:"https://fcm.googleapis.com/fcm/send" validate:"url"`
	Timeout   time.Duration `envconfig:"FCM_TIMEOUT" default:"10s"`
	UserAgent string        `envconfig:"FCM_USER_AGENT" default:"campuspush/1.0"`
	// BreakerThreshold is the number of consecutive failed dispatch
	// batches (requests in which no endpoint succeeded) that opens the
	// circuit. Endpoints within one batch are always all attempted; an open
	// circuit rejects later requests whole. Zero disables the breaker.
	BreakerThreshold uint32 `envconfig:"FCM_BREAKER_THRESHOLD" default:"0"`
}

// DispatchConfig tunes the fan-out engine and the delivery log writer.
type DispatchConfig struct {
	// MaxConcurrency caps simultaneous gateway calls per request.
	// Zero means unbounded.
	MaxConcurrency  int           `envconfig:"DISPATCH_MAX_CONCURRENCY" default:"0" validate:"gte=0"`
	LogWriteTimeout time.Duration `envconfig:"LOG_WRITE_TIMEOUT" default:"10s"`
}

// RedisConfig configures the optional campus membership cache. An empty
// URL or a zero TTL disables it.
type RedisConfig struct {
	URL               SecretString  `envconfig:"REDIS_URL"`
	DirectoryCacheTTL time.Duration `envconfig:"DIRECTORY_CACHE_TTL" default:"0"`
}

// Enabled reports whether the membership cache should be constructed.
func (c RedisConfig) Enabled() bool {
	return !c.URL.IsZero() && c.DirectoryCacheTTL > 0
}

// AWSConfig holds regional configuration for the CloudWatch backend.
type AWSConfig struct {
	Region      string `envconfig:"AWS_REGION" default:"us-east-1"`
	EndpointURL string `envconfig:"AWS_ENDPOINT_URL"`
}

// SecurityConfig holds CORS settings.
type SecurityConfig struct {
	CorsAllowedOrigins []string `envconfig:"CORS_ALLOWED_ORIGINS" default:"*"`
}

// ObservabilityConfig selects the metrics backend.
type ObservabilityConfig struct {
	MetricsBackend  string `envconfig:"METRICS_BACKEND" default:"prometheus" validate:"oneof=prometheus cloudwatch none"`
	MetricNamespace string `envconfig:"METRIC_NAMESPACE" default:"CampusPush"`
}

// BuildInfo holds build-time metadata injected via ldflags.
type BuildInfo struct {
	Version   string
	Commit    string
	BuildTime string
}

// ConfigErrorType categorizes configuration loading failures.
type ConfigErrorType string

const (
	// ErrMissingEnv indicates a required environment variable was not found.
	ErrMissingEnv ConfigErrorType = "MISSING_ENV"
	// ErrValidation indicates the configuration failed struct validation rules.
	ErrValidation ConfigErrorType = "VALIDATION_FAILED"
	// ErrParsing indicates an environment value could not be parsed into
	// its target type.
	ErrParsing ConfigErrorType = "PARSING_FAILED"
)
