package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Credential backends
const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
	BackendHybrid   = "hybrid"
)

type Config struct {
	// Environment
	GoEnv string `env:"GO_ENV" default:"development"`

	// Relay listener
	TCPHost string `env:"TCP_HOST" default:""` // empty = all interfaces
	TCPPort int    `env:"TCP_PORT" default:"7000"`

	// Admin API
	HTTPPort     int  `env:"HTTP_PORT" default:"8080"`
	AdminEnabled bool `env:"ADMIN_ENABLED" default:"false"`

	// Credential store
	CredentialBackend string        `env:"CREDENTIAL_BACKEND" default:"memory"`
	CredentialTimeout time.Duration `env:"CREDENTIAL_TIMEOUT" default:"5s"`
	DatabaseURL       string        `env:"DATABASE_URL"`

	// Redis Cache
	RedisURL      string `env:"REDIS_URL" default:"redis://localhost:6379"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	CacheTTL      int    `env:"CACHE_TTL" default:"3600"` // seconds

	// Session tokens, disabled when JWT_SECRET is empty
	JWTSecret string        `env:"JWT_SECRET"`
	JWTExpiry time.Duration `env:"JWT_EXPIRY" default:"24h"`

	// Connection limits
	RateLimit    float64       `env:"RATE_LIMIT" default:"0"` // inbound messages/sec, 0 disables
	RateBurst    int           `env:"RATE_BURST" default:"20"`
	WriteTimeout time.Duration `env:"WRITE_TIMEOUT" default:"10s"`
	IdleTimeout  time.Duration `env:"IDLE_TIMEOUT" default:"0"`

	// Routing
	AllowOperatorIdentify bool `env:"ALLOW_OPERATOR_IDENTIFY" default:"true"`

	// Monitoring
	PrometheusEnabled bool `env:"PROMETHEUS_ENABLED" default:"false"`

	// Development
	LogLevel  string `env:"LOG_LEVEL" default:"info"`
	LogFormat string `env:"LOG_FORMAT" default:"text"`
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	// .env is optional, system env vars still apply without it
	_ = godotenv.Load(".env")
	return loadFromEnv()
}

func loadFromEnv() (*Config, error) {
	config := &Config{}

	if err := loadEnvString(&config.GoEnv, "GO_ENV", "development"); err != nil {
		return nil, err
	}

	// Relay listener
	if err := loadEnvString(&config.TCPHost, "TCP_HOST", ""); err != nil {
		return nil, err
	}
	if err := loadEnvInt(&config.TCPPort, "TCP_PORT", 7000); err != nil {
		return nil, err
	}

	// Admin API
	if err := loadEnvInt(&config.HTTPPort, "HTTP_PORT", 8080); err != nil {
		return nil, err
	}
	if err := loadEnvBool(&config.AdminEnabled, "ADMIN_ENABLED", false); err != nil {
		return nil, err
	}

	// Credential store
	if err := loadEnvString(&config.CredentialBackend, "CREDENTIAL_BACKEND", BackendMemory); err != nil {
		return nil, err
	}
	config.CredentialBackend = strings.ToLower(config.CredentialBackend)
	if err := loadEnvDuration(&config.CredentialTimeout, "CREDENTIAL_TIMEOUT", 5*time.Second); err != nil {
		return nil, err
	}
	if err := loadEnvString(&config.DatabaseURL, "DATABASE_URL", ""); err != nil {
		return nil, err
	}

	// Redis
	if err := loadEnvString(&config.RedisURL, "REDIS_URL", "redis://localhost:6379"); err != nil {
		return nil, err
	}
	if err := loadEnvString(&config.RedisPassword, "REDIS_PASSWORD", ""); err != nil {
		return nil, err
	}
	if err := loadEnvInt(&config.CacheTTL, "CACHE_TTL", 3600); err != nil {
		return nil, err
	}

	// Session tokens
	if err := loadEnvString(&config.JWTSecret, "JWT_SECRET", ""); err != nil {
		return nil, err
	}
	if err := loadEnvDuration(&config.JWTExpiry, "JWT_EXPIRY", 24*time.Hour); err != nil {
		return nil, err
	}

	// Connection limits
	if err := loadEnvFloat(&config.RateLimit, "RATE_LIMIT", 0); err != nil {
		return nil, err
	}
	if err := loadEnvInt(&config.RateBurst, "RATE_BURST", 20); err != nil {
		return nil, err
	}
	if err := loadEnvDuration(&config.WriteTimeout, "WRITE_TIMEOUT", 10*time.Second); err != nil {
		return nil, err
	}
	if err := loadEnvDuration(&config.IdleTimeout, "IDLE_TIMEOUT", 0); err != nil {
		return nil, err
	}

	// Routing
	if err := loadEnvBool(&config.AllowOperatorIdentify, "ALLOW_OPERATOR_IDENTIFY", true); err != nil {
		return nil, err
	}

	// Monitoring
	if err := loadEnvBool(&config.PrometheusEnabled, "PROMETHEUS_ENABLED", false); err != nil {
		return nil, err
	}

	// Development
	if err := loadEnvString(&config.LogLevel, "LOG_LEVEL", "info"); err != nil {
		return nil, err
	}
	if err := loadEnvString(&config.LogFormat, "LOG_FORMAT", "text"); err != nil {
		return nil, err
	}
	return config, nil
}

// Helper functions for type conversion and validation
func loadEnvString(target *string, key, defaultValue string) error {
	if value := os.Getenv(key); value != "" {
		*target = value
	} else {
		*target = defaultValue
	}
	return nil
}

func loadEnvInt(target *int, key string, defaultValue int) error {
	if value := os.Getenv(key); value != "" {
		parsed, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid integer value for %s: %v", key, err)
		}
		*target = parsed
	} else {
		*target = defaultValue
	}
	return nil
}

func loadEnvFloat(target *float64, key string, defaultValue float64) error {
	if value := os.Getenv(key); value != "" {
		parsed, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("invalid number value for %s: %v", key, err)
		}
		*target = parsed
	} else {
		*target = defaultValue
	}
	return nil
}

func loadEnvBool(target *bool, key string, defaultValue bool) error {
	if value := os.Getenv(key); value != "" {
		parsed, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid boolean value for %s: %v", key, err)
		}
		*target = parsed
	} else {
		*target = defaultValue
	}
	return nil
}

func loadEnvDuration(target *time.Duration, key string, defaultValue time.Duration) error {
	if value := os.Getenv(key); value != "" {
		parsed, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid duration value for %s: %v", key, err)
		}
		*target = parsed
	} else {
		*target = defaultValue
	}
	return nil
}

// Validate performs validation on the loaded configuration
func (c *Config) Validate() error {
	var errors []string

	// Validate ports are in valid range
	if c.TCPPort < 0 || c.TCPPort > 65535 {
		errors = append(errors, "TCP_PORT must be between 0 and 65535")
	}
	if c.AdminEnabled && (c.HTTPPort < 1 || c.HTTPPort > 65535) {
		errors = append(errors, "HTTP_PORT must be between 1 and 65535")
	}

	validBackends := []string{BackendMemory, BackendPostgres, BackendHybrid}
	if !contains(validBackends, c.CredentialBackend) {
		errors = append(errors, fmt.Sprintf("CREDENTIAL_BACKEND must be one of: %s", strings.Join(validBackends, ", ")))
	}
	if c.CredentialBackend != BackendMemory && c.DatabaseURL == "" {
		errors = append(errors, "DATABASE_URL is required for the "+c.CredentialBackend+" backend")
	}
	if c.CredentialTimeout <= 0 {
		errors = append(errors, "CREDENTIAL_TIMEOUT must be positive")
	}

	if c.RateLimit < 0 {
		errors = append(errors, "RATE_LIMIT must not be negative")
	}
	if c.RateLimit > 0 && c.RateBurst < 1 {
		errors = append(errors, "RATE_BURST must be at least 1 when RATE_LIMIT is set")
	}
	if c.WriteTimeout < 0 || c.IdleTimeout < 0 {
		errors = append(errors, "WRITE_TIMEOUT and IDLE_TIMEOUT must not be negative")
	}

	// Validate log level
	validLogLevels := []string{"debug", "info", "warn", "error"}
	if !contains(validLogLevels, c.LogLevel) {
		errors = append(errors, fmt.Sprintf("LOG_LEVEL must be one of: %s", strings.Join(validLogLevels, ", ")))
	}

	// Validate log format
	validLogFormats := []string{"text", "json"}
	if !contains(validLogFormats, c.LogFormat) {
		errors = append(errors, fmt.Sprintf("LOG_FORMAT must be one of: %s", strings.Join(validLogFormats, ", ")))
	}

	// Session tokens are optional, a short secret is not
	if c.JWTSecret != "" && len(c.JWTSecret) < 32 {
		errors = append(errors, "JWT_SECRET should be at least 32 characters long")
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(errors, "; "))
	}

	return nil
}

// TCPAddr is the relay listen address.
func (c *Config) TCPAddr() string {
	return fmt.Sprintf("%s:%d", c.TCPHost, c.TCPPort)
}

func (c *Config) HTTPAddr() string {
	return fmt.Sprintf(":%d", c.HTTPPort)
}

// CacheExpiry is CACHE_TTL as a duration.
func (c *Config) CacheExpiry() time.Duration {
	return time.Duration(c.CacheTTL) * time.Second
}

// SessionsEnabled reports whether login tokens are issued.
func (c *Config) SessionsEnabled() bool {
	return c.JWTSecret != ""
}

// IsDevelopment returns true if the application is running in development mode
func (c *Config) IsDevelopment() bool {
	return c.GoEnv == "development"
}

// IsProduction returns true if the application is running in production mode
func (c *Config) IsProduction() bool {
	return c.GoEnv == "production"
}

// Helper function to check if slice contains a string
func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}
