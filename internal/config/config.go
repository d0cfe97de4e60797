// Package config loads and validates app config from env and an optional .env file using Viper.
package config

import (
	"errors"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvProduction is the APP_ENV value that forbids in-memory stores.
const EnvProduction = "production"

// Config holds application configuration loaded from the environment.
type Config struct {
	// GRPCAddr is the address the gRPC server listens on (e.g. :8080).
	GRPCAddr string `mapstructure:"GRPC_ADDR"`
	// DatabaseURL is the Postgres DSN. Empty selects in-memory stores (dev and tests only).
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	// Env is the application environment (e.g. "development", "production").
	Env string `mapstructure:"APP_ENV"`

	// JWTPublicKey is the PEM-encoded public key (or path) used to verify access tokens.
	JWTPublicKey string `mapstructure:"JWT_PUBLIC_KEY"`
	// JWTPrivateKey is only needed by cmd/seed to mint dev tokens.
	JWTPrivateKey string `mapstructure:"JWT_PRIVATE_KEY"`
	JWTIssuer     string `mapstructure:"JWT_ISSUER"`
	JWTAudience   string `mapstructure:"JWT_AUDIENCE"`
	// JWTAccessTTL is the lifetime of tokens minted by cmd/seed (e.g. "15m").
	JWTAccessTTL string `mapstructure:"JWT_ACCESS_TTL"`

	LogLevel  string `mapstructure:"LOG_LEVEL"`
	LogFormat string `mapstructure:"LOG_FORMAT"`

	// OTelEndpoint is the OTLP gRPC collector endpoint; empty disables OTel export.
	OTelEndpoint    string `mapstructure:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	OTelInsecure    bool   `mapstructure:"OTEL_EXPORTER_OTLP_INSECURE"`
	OTelServiceName string `mapstructure:"OTEL_SERVICE_NAME"`

	// KafkaBrokers is a comma-separated list of broker addresses; empty disables Kafka telemetry and notifications.
	KafkaBrokers        string `mapstructure:"KAFKA_BROKERS"`
	TelemetryKafkaTopic string `mapstructure:"TELEMETRY_KAFKA_TOPIC"`
	NotifyKafkaTopic    string `mapstructure:"NOTIFY_KAFKA_TOPIC"`

	// RedisAddr enables the shared heartbeat throttle; empty uses a per-process throttle.
	RedisAddr string `mapstructure:"REDIS_ADDR"`

	// SessionTouchInterval bounds how often implicit sync traffic writes lastActivity per session.
	SessionTouchInterval  time.Duration `mapstructure:"SESSION_TOUCH_INTERVAL"`
	SessionInactivityDays int           `mapstructure:"SESSION_INACTIVITY_DAYS"`
	SessionSweepInterval  time.Duration `mapstructure:"SESSION_SWEEP_INTERVAL"`
	// SyncCursorSettle is subtracted from the Postgres clock when computing a pull's serverTime.
	SyncCursorSettle time.Duration `mapstructure:"SYNC_CURSOR_SETTLE"`

	// AuthzPolicyPath optionally overrides the embedded Rego policy with a file.
	AuthzPolicyPath string `mapstructure:"AUTHZ_POLICY_PATH"`
}

// Load reads .env (if present), then builds and validates Config from the environment via Viper.
// Missing .env is ignored (e.g. in CI). Env vars override .env. Returns an error if required fields are invalid.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig() // ignore ErrConfigFileNotFound

	v.AutomaticEnv()

	v.SetDefault("GRPC_ADDR", ":8080")
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("APP_ENV", "")
	v.SetDefault("JWT_PUBLIC_KEY", "")
	v.SetDefault("JWT_PRIVATE_KEY", "")
	v.SetDefault("JWT_ISSUER", "fieldsales-auth")
	v.SetDefault("JWT_AUDIENCE", "fieldsales-api")
	v.SetDefault("JWT_ACCESS_TTL", "15m")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")
	v.SetDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	v.SetDefault("OTEL_EXPORTER_OTLP_INSECURE", true)
	v.SetDefault("OTEL_SERVICE_NAME", "fieldsales-sync")
	v.SetDefault("KAFKA_BROKERS", "")
	v.SetDefault("TELEMETRY_KAFKA_TOPIC", "fieldsales-telemetry")
	v.SetDefault("NOTIFY_KAFKA_TOPIC", "fieldsales-notifications")
	v.SetDefault("REDIS_ADDR", "")
	v.SetDefault("SESSION_TOUCH_INTERVAL", "1m")
	v.SetDefault("SESSION_INACTIVITY_DAYS", 30)
	v.SetDefault("SESSION_SWEEP_INTERVAL", "1h")
	v.SetDefault("SYNC_CURSOR_SETTLE", "2s")
	v.SetDefault("AUTHZ_POLICY_PATH", "")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if cfg.GRPCAddr == "" {
		return nil, errors.New("config: GRPC_ADDR must be set")
	}
	if cfg.DatabaseURL == "" && cfg.Env == EnvProduction {
		return nil, errors.New("config: DATABASE_URL must be set when APP_ENV=production")
	}
	if cfg.SessionInactivityDays < 1 {
		return nil, errors.New("config: SESSION_INACTIVITY_DAYS must be at least 1")
	}
	if cfg.SessionTouchInterval < 0 || cfg.SyncCursorSettle < 0 {
		return nil, errors.New("config: SESSION_TOUCH_INTERVAL and SYNC_CURSOR_SETTLE must not be negative")
	}
	if cfg.SessionSweepInterval <= 0 {
		return nil, errors.New("config: SESSION_SWEEP_INTERVAL must be positive")
	}
	switch strings.ToLower(cfg.LogFormat) {
	case "json", "text":
	default:
		return nil, errors.New("config: LOG_FORMAT must be json or text")
	}

	return &cfg, nil
}

// InMemory reports whether the process should run on in-memory stores.
func (c *Config) InMemory() bool {
	return c.DatabaseURL == ""
}

// AccessTTL parses JWTAccessTTL as a time.Duration. Returns 15m if unset or invalid.
func (c *Config) AccessTTL() time.Duration {
	d, err := time.ParseDuration(c.JWTAccessTTL)
	if err != nil || d <= 0 {
		return 15 * time.Minute
	}
	return d
}

// KafkaBrokersList returns Kafka broker addresses from the comma-separated config.
// Used to decide if Kafka telemetry/notifications are enabled (non-empty list) and to create writers.
func (c *Config) KafkaBrokersList() []string {
	if c == nil || c.KafkaBrokers == "" {
		return nil
	}
	parts := strings.Split(c.KafkaBrokers, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
