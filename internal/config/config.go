package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration
type Config struct {
	Server        ServerConfig
	Tenant        TenantConfig
	Cache         CacheConfig
	Upstream      UpstreamConfig
	Operator      OperatorConfig
	Observability ObservabilityConfig
	RateLimit     RateLimitConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host           string
	Port           string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	RequestTimeout time.Duration
}

// TenantConfig holds host-to-tenant resolution configuration
type TenantConfig struct {
	// BaseDomain is the production apex, e.g. "classbridge.in". Tenant
	// subdomains hang off it.
	BaseDomain string
	// DevSuffix is an alternative apex for local work, e.g. "lvh.me".
	// Checked before BaseDomain so nested dev hosts resolve correctly.
	DevSuffix string
}

// CacheConfig holds Redis and tiering configuration
type CacheConfig struct {
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	DialTimeout   time.Duration
	ReadTimeout   time.Duration
	WriteTimeout  time.Duration
	OpTimeout     time.Duration
	ProbeInterval time.Duration
	SweepInterval time.Duration
	// TTLOverrides tunes individual resource TTLs without a rebuild, parsed
	// from "students=10m,dashboard=1m" form.
	TTLOverrides map[string]time.Duration
}

// UpstreamConfig holds the record API connection settings
type UpstreamConfig struct {
	BaseURL          string
	Timeout          time.Duration
	SubscriptionPath string
}

// OperatorConfig holds operator token verification settings
type OperatorConfig struct {
	// JWTSecret verifies operator tokens. Empty disables operator bypass
	// entirely, which is the safe default.
	JWTSecret string
}

// ObservabilityConfig holds logging and tracing configuration
type ObservabilityConfig struct {
	LogLevel       string
	LogFormat      string
	OTELEnabled    bool
	ServiceName    string
	ServiceVersion string
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	RequestsPerSecond float64
	Burst             int
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Host:           getEnv("SERVER_HOST", "0.0.0.0"),
			Port:           getEnv("SERVER_PORT", "8080"),
			ReadTimeout:    parseDuration("SERVER_READ_TIMEOUT", "15s"),
			WriteTimeout:   parseDuration("SERVER_WRITE_TIMEOUT", "30s"),
			IdleTimeout:    parseDuration("SERVER_IDLE_TIMEOUT", "60s"),
			RequestTimeout: parseDuration("SERVER_REQUEST_TIMEOUT", "60s"),
		},
		Tenant: TenantConfig{
			BaseDomain: getEnv("TENANT_BASE_DOMAIN", ""),
			DevSuffix:  getEnv("TENANT_DEV_SUFFIX", "lvh.me"),
		},
		Cache: CacheConfig{
			RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
			RedisPassword: getEnv("REDIS_PASSWORD", ""),
			RedisDB:       parseInt("REDIS_DB", 0),
			DialTimeout:   parseDuration("REDIS_DIAL_TIMEOUT", "2s"),
			ReadTimeout:   parseDuration("REDIS_READ_TIMEOUT", "500ms"),
			WriteTimeout:  parseDuration("REDIS_WRITE_TIMEOUT", "500ms"),
			OpTimeout:     parseDuration("CACHE_OP_TIMEOUT", "250ms"),
			ProbeInterval: parseDuration("CACHE_PROBE_INTERVAL", "5s"),
			SweepInterval: parseDuration("CACHE_SWEEP_INTERVAL", "1m"),
			TTLOverrides:  parseTTLOverrides("CACHE_TTL_OVERRIDES"),
		},
		Upstream: UpstreamConfig{
			BaseURL:          getEnv("UPSTREAM_BASE_URL", ""),
			Timeout:          parseDuration("UPSTREAM_TIMEOUT", "10s"),
			SubscriptionPath: getEnv("UPSTREAM_SUBSCRIPTION_PATH", "/internal/tenants/:tenantId/subscription"),
		},
		Operator: OperatorConfig{
			JWTSecret: getEnv("OPERATOR_JWT_SECRET", ""),
		},
		Observability: ObservabilityConfig{
			LogLevel:       getEnv("LOG_LEVEL", "info"),
			LogFormat:      getEnv("LOG_FORMAT", "json"),
			OTELEnabled:    parseBool("OTEL_ENABLED", false),
			ServiceName:    getEnv("OTEL_SERVICE_NAME", "classbridge"),
			ServiceVersion: getEnv("OTEL_SERVICE_VERSION", "0.1.0"),
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: float64(parseInt("RATELIMIT_RPS", 50)),
			Burst:             parseInt("RATELIMIT_BURST", 100),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Tenant.BaseDomain == "" {
		return fmt.Errorf("TENANT_BASE_DOMAIN is required")
	}
	if c.Upstream.BaseURL == "" {
		return fmt.Errorf("UPSTREAM_BASE_URL is required")
	}
	return nil
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func parseInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func parseBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func parseTTLOverrides(key string) map[string]time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	overrides := make(map[string]time.Duration)
	for _, pair := range strings.Split(value, ",") {
		name, raw, ok := strings.Cut(strings.TrimSpace(pair), "=")
		if !ok {
			continue
		}
		if d, err := time.ParseDuration(strings.TrimSpace(raw)); err == nil {
			overrides[strings.TrimSpace(name)] = d
		}
	}
	return overrides
}

func parseDuration(key string, defaultValue string) time.Duration {
	value := getEnv(key, defaultValue)
	d, err := time.ParseDuration(value)
	if err != nil {
		// Fallback to default
		d, _ = time.ParseDuration(defaultValue)
	}
	return d
}
