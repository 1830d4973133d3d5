// Package config provides configuration management for the scientometrics service.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// SSL mode constants for database connections.
const (
	// SSLModeDisable disables SSL (use only for local development).
	SSLModeDisable = "disable"
	// SSLModeRequire requires SSL but does not verify certificates.
	SSLModeRequire = "require"
	// SSLModeVerifyCA verifies the server certificate against a CA.
	SSLModeVerifyCA = "verify-ca"
	// SSLModeVerifyFull verifies the server certificate and hostname.
	SSLModeVerifyFull = "verify-full"
)

// EnvPrefix is the prefix of every environment variable read by Load.
const EnvPrefix = "SCIM"

// Config holds all configuration for the scientometrics service.
type Config struct {
	// Server contains HTTP server settings.
	Server ServerConfig `mapstructure:"server"`
	// Database contains PostgreSQL connection settings.
	Database DatabaseConfig `mapstructure:"database"`
	// Logging contains structured logging settings.
	Logging LoggingConfig `mapstructure:"logging"`
	// Metrics contains Prometheus metrics exposure settings.
	Metrics MetricsConfig `mapstructure:"metrics"`
	// Auth contains bearer token verification settings.
	Auth AuthConfig `mapstructure:"auth"`
	// Redis contains the optional metrics cache settings.
	Redis RedisConfig `mapstructure:"redis"`
	// Scientometrics contains plugin-level settings.
	Scientometrics ScientometricsConfig `mapstructure:"scientometrics"`
	// Extractors contains per-provider HTTP settings.
	Extractors ExtractorsConfig `mapstructure:"extractors"`
}

// ServerConfig holds server configuration.
type ServerConfig struct {
	// Host is the address to bind the server to (default: 0.0.0.0).
	Host string `mapstructure:"host"`
	// HTTPPort is the HTTP server port (default: 8080).
	HTTPPort int `mapstructure:"http_port"`
	// MetricsPort is the metrics server port (default: 9091).
	MetricsPort int `mapstructure:"metrics_port"`
	// ReadTimeout is the maximum duration for reading request body.
	ReadTimeout time.Duration `mapstructure:"read_timeout"`
	// WriteTimeout is the maximum duration for writing response.
	// Refreshes call out to three providers, so keep this above their timeouts.
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	// ShutdownTimeout is the maximum duration to wait for graceful shutdown.
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// DatabaseConfig holds database connection configuration.
type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name"`
	// SSLMode controls SSL connection security (require, verify-ca, verify-full, disable).
	SSLMode           string        `mapstructure:"ssl_mode"`
	MaxConns          int32         `mapstructure:"max_conns"`
	MinConns          int32         `mapstructure:"min_conns"`
	MaxConnLifetime   time.Duration `mapstructure:"max_conn_lifetime"`
	MaxConnIdleTime   time.Duration `mapstructure:"max_conn_idle_time"`
	HealthCheckPeriod time.Duration `mapstructure:"health_check_period"`
	ConnectTimeout    time.Duration `mapstructure:"connect_timeout"`
	// MigrationPath is the path to migration files (relative or absolute).
	MigrationPath string `mapstructure:"migration_path"`
	// MigrationAutoRun enables automatic migration on startup (default: false).
	MigrationAutoRun bool `mapstructure:"migration_auto_run"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	// Level is the log level (trace, debug, info, warn, error, fatal, panic).
	Level string `mapstructure:"level"`
	// Format is the log format (json, console).
	Format string `mapstructure:"format"`
	// Output is the log output destination (stdout, stderr, file path).
	Output string `mapstructure:"output"`
	// AddSource adds source file and line to log output.
	AddSource bool `mapstructure:"add_source"`
	// TimeFormat is the timestamp format.
	TimeFormat string `mapstructure:"time_format"`
}

// MetricsConfig holds metrics configuration.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// AuthConfig holds bearer token settings.
type AuthConfig struct {
	// Enabled turns on JWT verification for the HTTP API.
	Enabled bool `mapstructure:"enabled"`
	// JWTSecret is the HMAC signing secret (loaded from SCIM_AUTH_JWT_SECRET only).
	JWTSecret string `mapstructure:"-"`
	// Issuer, when set, must match the token's iss claim.
	Issuer string `mapstructure:"issuer"`
	// SysadminRole is the role claim value granting sysadmin rights.
	SysadminRole string `mapstructure:"sysadmin_role"`
}

// RedisConfig holds the metrics cache settings.
type RedisConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	URL     string `mapstructure:"url"`
	// Password overrides the URL password (loaded from SCIM_REDIS_PASSWORD only).
	Password     string        `mapstructure:"-"`
	TTL          time.Duration `mapstructure:"ttl"`
	PoolSize     int           `mapstructure:"pool_size"`
	MinIdleConns int           `mapstructure:"min_idle_conns"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
}

// ScientometricsConfig holds plugin-level settings.
type ScientometricsConfig struct {
	// EnabledMetrics lists the sources users may declare author ids for and
	// the default set refreshed by the batch command.
	EnabledMetrics []string `mapstructure:"enabled_metrics"`
	// ShowOnUserPage is exposed to clients rendering profile pages.
	ShowOnUserPage bool `mapstructure:"show_on_user_page"`
	// ExtrasKey is the profile extras key author ids are written under.
	ExtrasKey string `mapstructure:"extras_key"`
	// LegacyExtrasKey is read when ExtrasKey is absent.
	LegacyExtrasKey string `mapstructure:"legacy_extras_key"`
}

// ExtractorsConfig holds configuration for all metric providers.
type ExtractorsConfig struct {
	GoogleScholar   ExtractorConfig `mapstructure:"google_scholar"`
	SemanticScholar ExtractorConfig `mapstructure:"semantic_scholar"`
	OpenAlex        ExtractorConfig `mapstructure:"openalex"`
}

// ExtractorConfig holds configuration for a single provider.
type ExtractorConfig struct {
	// APIKey is the API key (loaded from environment variable, e.g. SCIM_EXTRACTORS_SEMANTIC_SCHOLAR_API_KEY).
	APIKey string `mapstructure:"-"`
	// BaseURL is the API base URL.
	BaseURL string `mapstructure:"base_url"`
	// Timeout is the timeout for a single provider call.
	Timeout time.Duration `mapstructure:"timeout"`
	// RateLimit is the maximum requests per second.
	RateLimit float64 `mapstructure:"rate_limit"`
	// Burst is the token bucket size.
	Burst int `mapstructure:"burst"`
	// Email is sent to providers offering a polite pool (OpenAlex mailto).
	Email string `mapstructure:"email"`
}

// DSN returns the PostgreSQL connection string.
func (c *DatabaseConfig) DSN() string {
	params := url.Values{}
	params.Set("sslmode", c.SSLMode)
	if c.ConnectTimeout > 0 {
		params.Set("connect_timeout", fmt.Sprintf("%d", int(c.ConnectTimeout.Seconds())))
	}

	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?%s",
		url.QueryEscape(c.User),
		url.QueryEscape(c.Password),
		c.Host,
		c.Port,
		c.Name,
		params.Encode(),
	)
}

// HTTPAddress returns the HTTP server address.
func (c *ServerConfig) HTTPAddress() string {
	return fmt.Sprintf("%s:%d", c.Host, c.HTTPPort)
}

// Load loads configuration from a .env file, environment variables and config files.
func Load() (*Config, error) {
	// A missing .env is the normal case outside local development.
	_ = godotenv.Load()

	v := viper.New()

	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/scientometrics-service")

	if err := v.ReadInConfig(); err != nil {
		var configNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &configNotFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	loadSecrets(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// loadSecrets populates secret fields exclusively from environment variables.
// These fields are tagged with mapstructure:"-" to prevent loading from config files.
func loadSecrets(cfg *Config) {
	cfg.Auth.JWTSecret = os.Getenv(EnvPrefix + "_AUTH_JWT_SECRET")
	cfg.Redis.Password = os.Getenv(EnvPrefix + "_REDIS_PASSWORD")

	cfg.Extractors.GoogleScholar.APIKey = os.Getenv(EnvPrefix + "_EXTRACTORS_GOOGLE_SCHOLAR_API_KEY")
	cfg.Extractors.SemanticScholar.APIKey = os.Getenv(EnvPrefix + "_EXTRACTORS_SEMANTIC_SCHOLAR_API_KEY")
	cfg.Extractors.OpenAlex.APIKey = os.Getenv(EnvPrefix + "_EXTRACTORS_OPENALEX_API_KEY")
}

// setDefaults sets default configuration values.
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.http_port", 8080)
	v.SetDefault("server.metrics_port", 9091)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "120s")
	v.SetDefault("server.shutdown_timeout", "30s")

	// Database defaults
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "scim")
	v.SetDefault("database.password", "")
	v.SetDefault("database.name", "scientometrics")
	// Use SCIM_DATABASE_SSL_MODE=disable for local development.
	v.SetDefault("database.ssl_mode", SSLModeRequire)
	v.SetDefault("database.max_conns", 20)
	v.SetDefault("database.min_conns", 2)
	v.SetDefault("database.max_conn_lifetime", "1h")
	v.SetDefault("database.max_conn_idle_time", "30m")
	v.SetDefault("database.health_check_period", "30s")
	v.SetDefault("database.connect_timeout", "10s")
	v.SetDefault("database.migration_path", "migrations")
	v.SetDefault("database.migration_auto_run", false)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stdout")
	v.SetDefault("logging.add_source", false)
	v.SetDefault("logging.time_format", time.RFC3339)

	// Metrics defaults
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")

	// Auth defaults
	v.SetDefault("auth.enabled", false)
	v.SetDefault("auth.issuer", "")
	v.SetDefault("auth.sysadmin_role", "sysadmin")

	// Redis defaults
	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.url", "redis://localhost:6379/0")
	v.SetDefault("redis.ttl", "10m")
	v.SetDefault("redis.pool_size", 10)
	v.SetDefault("redis.min_idle_conns", 2)
	v.SetDefault("redis.dial_timeout", "5s")

	// Plugin defaults
	v.SetDefault("scientometrics.enabled_metrics", []string{"google_scholar", "semantic_scholar", "openalex"})
	v.SetDefault("scientometrics.show_on_user_page", true)
	v.SetDefault("scientometrics.extras_key", "scim")
	v.SetDefault("scientometrics.legacy_extras_key", "scientometrics")

	// Extractor defaults - Google Scholar has no API; keep the rate low.
	v.SetDefault("extractors.google_scholar.base_url", "https://scholar.google.com")
	v.SetDefault("extractors.google_scholar.timeout", "30s")
	v.SetDefault("extractors.google_scholar.rate_limit", 0.5)
	v.SetDefault("extractors.google_scholar.burst", 1)
	v.SetDefault("extractors.google_scholar.email", "")

	// Extractor defaults - Semantic Scholar
	v.SetDefault("extractors.semantic_scholar.base_url", "https://api.semanticscholar.org/graph/v1")
	v.SetDefault("extractors.semantic_scholar.timeout", "30s")
	v.SetDefault("extractors.semantic_scholar.rate_limit", 1.0)
	v.SetDefault("extractors.semantic_scholar.burst", 1)
	v.SetDefault("extractors.semantic_scholar.email", "")

	// Extractor defaults - OpenAlex
	v.SetDefault("extractors.openalex.base_url", "https://api.openalex.org")
	v.SetDefault("extractors.openalex.timeout", "30s")
	v.SetDefault("extractors.openalex.rate_limit", 10.0)
	v.SetDefault("extractors.openalex.burst", 5)
	v.SetDefault("extractors.openalex.email", "")
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Server.HTTPPort <= 0 || c.Server.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.Server.HTTPPort)
	}
	if c.Server.MetricsPort <= 0 || c.Server.MetricsPort > 65535 {
		return fmt.Errorf("invalid metrics port: %d", c.Server.MetricsPort)
	}

	if c.Database.Host == "" {
		return fmt.Errorf("database host is required")
	}
	if c.Database.Port <= 0 || c.Database.Port > 65535 {
		return fmt.Errorf("invalid database port: %d", c.Database.Port)
	}
	if c.Database.Name == "" {
		return fmt.Errorf("database name is required")
	}
	if c.Database.MaxConns < c.Database.MinConns {
		return fmt.Errorf("max_conns (%d) must be >= min_conns (%d)", c.Database.MaxConns, c.Database.MinConns)
	}

	validLogLevels := map[string]bool{
		"trace": true, "debug": true, "info": true,
		"warn": true, "error": true, "fatal": true, "panic": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}

	if c.Auth.Enabled && c.Auth.JWTSecret == "" {
		return fmt.Errorf("auth is enabled but %s_AUTH_JWT_SECRET is not set", EnvPrefix)
	}

	if c.Redis.Enabled {
		if c.Redis.URL == "" {
			return fmt.Errorf("redis url is required when redis is enabled")
		}
		if c.Redis.TTL <= 0 {
			return fmt.Errorf("redis ttl must be positive")
		}
	}

	if c.Scientometrics.ExtrasKey == "" {
		return fmt.Errorf("scientometrics extras_key is required")
	}
	if c.Scientometrics.ExtrasKey == c.Scientometrics.LegacyExtrasKey {
		return fmt.Errorf("scientometrics extras_key and legacy_extras_key must differ")
	}
	seen := make(map[string]bool, len(c.Scientometrics.EnabledMetrics))
	for _, s := range c.Scientometrics.EnabledMetrics {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("scientometrics enabled_metrics contains an empty source")
		}
		if seen[s] {
			return fmt.Errorf("scientometrics enabled_metrics lists %q twice", s)
		}
		seen[s] = true
	}

	for name, ec := range map[string]ExtractorConfig{
		"google_scholar":   c.Extractors.GoogleScholar,
		"semantic_scholar": c.Extractors.SemanticScholar,
		"openalex":         c.Extractors.OpenAlex,
	} {
		if ec.RateLimit < 0 {
			return fmt.Errorf("extractor %s rate_limit must not be negative", name)
		}
	}

	return nil
}
