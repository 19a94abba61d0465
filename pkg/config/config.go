package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/raildesk/raildesk/pkg/observability"
)

// Config holds all application configuration
type Config struct {
	// Server configuration
	Server ServerConfig

	// Database configuration
	Database DatabaseConfig

	// Redis configuration (rate limiting; optional)
	Redis RedisConfig

	// Identity provider configuration
	IdP IdPConfig

	// Authorization configuration
	Auth AuthConfig

	// Observability configuration
	Observability ObservabilityConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	// Health/metrics server (separate port for k8s probes)
	HealthPort string
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	URL         string
	MaxConns    int
	MinConns    int
	ConnTimeout time.Duration
	MaxLifetime time.Duration
	MaxIdleTime time.Duration
}

// RedisConfig holds Redis configuration for the distributed rate limiter
type RedisConfig struct {
	URL      string
	Password string
	DB       int
	Enabled  bool
}

// IdPConfig holds external identity provider configuration
type IdPConfig struct {
	// OIDC issuer used to verify bearer tokens
	IssuerURL string
	ClientID  string

	// Admin API used for the privileged-claim side channel and for
	// provisioning staff/admin provider accounts
	AdminAPIURL       string
	AdminClientID     string
	AdminClientSecret string
	TokenEndpoint     string

	// Per-request verification timeout; a timeout is treated as a
	// provider error, never as fail-open
	VerifyTimeout time.Duration

	// Claim propagation is fire-and-forget with its own budget
	ClaimTimeout time.Duration
}

// AuthConfig holds authorization configuration
type AuthConfig struct {
	// AdminEmail is the designated administrator identity ensured at startup
	AdminEmail    string
	AdminPassword string

	// PrivilegedEmails is the static allow-list promoted to admin on
	// first authentication after being listed
	PrivilegedEmails []string

	// ExemptPaths bypass token verification entirely (sign-in, sign-up,
	// public listings)
	ExemptPaths []string
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	LogLevel       observability.LogLevel
	MetricsEnabled bool
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{
		Server:        loadServerConfig(),
		Database:      loadDatabaseConfig(),
		Redis:         loadRedisConfig(),
		IdP:           loadIdPConfig(),
		Auth:          loadAuthConfig(),
		Observability: loadObservabilityConfig(),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

func loadServerConfig() ServerConfig {
	return ServerConfig{
		Host:            getEnv("RAILDESK_HOST", "0.0.0.0"),
		Port:            getEnv("RAILDESK_PORT", "8080"),
		ReadTimeout:     getEnvDuration("RAILDESK_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:    getEnvDuration("RAILDESK_WRITE_TIMEOUT", 15*time.Second),
		IdleTimeout:     getEnvDuration("RAILDESK_IDLE_TIMEOUT", 60*time.Second),
		ShutdownTimeout: getEnvDuration("RAILDESK_SHUTDOWN_TIMEOUT", 30*time.Second),
		HealthPort:      getEnv("RAILDESK_HEALTH_PORT", "9090"),
	}
}

func loadDatabaseConfig() DatabaseConfig {
	return DatabaseConfig{
		URL:         getEnv("RAILDESK_POSTGRES_URL", "postgres://localhost/raildesk?sslmode=disable"),
		MaxConns:    getEnvInt("RAILDESK_POSTGRES_MAX_CONNS", 25),
		MinConns:    getEnvInt("RAILDESK_POSTGRES_MIN_CONNS", 5),
		ConnTimeout: getEnvDuration("RAILDESK_POSTGRES_TIMEOUT", 10*time.Second),
		MaxLifetime: getEnvDuration("RAILDESK_POSTGRES_MAX_LIFETIME", 30*time.Minute),
		MaxIdleTime: getEnvDuration("RAILDESK_POSTGRES_MAX_IDLE_TIME", 5*time.Minute),
	}
}

func loadRedisConfig() RedisConfig {
	url := getEnv("RAILDESK_REDIS_URL", "")
	return RedisConfig{
		URL:      url,
		Password: getEnv("RAILDESK_REDIS_PASSWORD", ""),
		DB:       getEnvInt("RAILDESK_REDIS_DB", 0),
		Enabled:  url != "",
	}
}

func loadIdPConfig() IdPConfig {
	return IdPConfig{
		IssuerURL:         getEnv("RAILDESK_IDP_ISSUER_URL", ""),
		ClientID:          getEnv("RAILDESK_IDP_CLIENT_ID", ""),
		AdminAPIURL:       getEnv("RAILDESK_IDP_ADMIN_API_URL", ""),
		AdminClientID:     getEnv("RAILDESK_IDP_ADMIN_CLIENT_ID", ""),
		AdminClientSecret: getEnv("RAILDESK_IDP_ADMIN_CLIENT_SECRET", ""),
		TokenEndpoint:     getEnv("RAILDESK_IDP_TOKEN_ENDPOINT", ""),
		VerifyTimeout:     getEnvDuration("RAILDESK_IDP_VERIFY_TIMEOUT", 5*time.Second),
		ClaimTimeout:      getEnvDuration("RAILDESK_IDP_CLAIM_TIMEOUT", 5*time.Second),
	}
}

func loadAuthConfig() AuthConfig {
	return AuthConfig{
		AdminEmail:       getEnv("RAILDESK_ADMIN_EMAIL", "admin@raildesk.example"),
		AdminPassword:    getEnv("RAILDESK_ADMIN_PASSWORD", ""),
		PrivilegedEmails: getEnvList("RAILDESK_PRIVILEGED_EMAILS", nil),
		ExemptPaths: getEnvList("RAILDESK_AUTH_EXEMPT_PATHS", []string{
			"/api/accounts/login",
			"/api/accounts/signup",
			"/api/public",
		}),
	}
}

func loadObservabilityConfig() ObservabilityConfig {
	return ObservabilityConfig{
		LogLevel:       observability.ParseLogLevel(getEnv("RAILDESK_LOG_LEVEL", "info")),
		MetricsEnabled: getEnvBool("RAILDESK_METRICS_ENABLED", true),
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}
	if c.Server.HealthPort == "" {
		return fmt.Errorf("health port is required")
	}
	if c.Server.Port == c.Server.HealthPort {
		return fmt.Errorf("server port and health port must be different")
	}

	if c.Database.URL == "" {
		return fmt.Errorf("postgres URL is required")
	}

	if c.IdP.IssuerURL == "" {
		return fmt.Errorf("identity provider issuer URL is required")
	}
	if c.IdP.ClientID == "" {
		return fmt.Errorf("identity provider client ID is required")
	}
	if c.IdP.VerifyTimeout <= 0 {
		return fmt.Errorf("identity provider verify timeout must be positive")
	}

	if c.Auth.AdminEmail == "" {
		return fmt.Errorf("admin email is required")
	}

	return nil
}

// getEnv returns an environment variable value or a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool returns a boolean environment variable or a default
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}

// getEnvInt returns an integer environment variable or a default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvDuration returns a duration environment variable or a default
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// getEnvList returns a comma-separated environment variable as a slice
func getEnvList(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				out = append(out, trimmed)
			}
		}
		return out
	}
	return defaultValue
}
