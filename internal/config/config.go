package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"
)

// Config represents the complete application configuration
type Config struct {
	Server   ServerConfig   `yaml:"server" envconfig:"SERVER"`
	Identity IdentityConfig `yaml:"identity" envconfig:"IDENTITY"`
	Store    StoreConfig    `yaml:"store" envconfig:"STORE"`
	Security SecurityConfig `yaml:"security" envconfig:"SECURITY"`
	Logging  LoggingConfig  `yaml:"logging" envconfig:"LOGGING"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Port            int           `yaml:"port" envconfig:"PORT" default:"8080"`
	ReadTimeout     time.Duration `yaml:"read_timeout" envconfig:"READ_TIMEOUT" default:"15s"`
	WriteTimeout    time.Duration `yaml:"write_timeout" envconfig:"WRITE_TIMEOUT" default:"15s"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" envconfig:"IDLE_TIMEOUT" default:"60s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" envconfig:"SHUTDOWN_TIMEOUT" default:"30s"`
}

// IdentityConfig describes the external identity provider (GoTrue-compatible).
// The anon key is used for user-facing credential exchange; the service key
// for admin user management. JWTSecret verifies access tokens locally.
type IdentityConfig struct {
	BaseURL    string        `yaml:"base_url" envconfig:"BASE_URL"`
	AnonKey    string        `yaml:"anon_key" envconfig:"ANON_KEY"`
	ServiceKey string        `yaml:"service_key" envconfig:"SERVICE_KEY"`
	JWTSecret  string        `yaml:"jwt_secret" envconfig:"JWT_SECRET"`
	Timeout    time.Duration `yaml:"timeout" envconfig:"TIMEOUT" default:"10s"`
}

// StoreConfig describes the external tenant record store (PostgREST dialect)
type StoreConfig struct {
	BaseURL    string        `yaml:"base_url" envconfig:"BASE_URL"`
	ServiceKey string        `yaml:"service_key" envconfig:"SERVICE_KEY"`
	Timeout    time.Duration `yaml:"timeout" envconfig:"TIMEOUT" default:"10s"`
}

// SecurityConfig contains security-related configuration
type SecurityConfig struct {
	AllowedOrigins []string        `yaml:"allowed_origins" envconfig:"ALLOWED_ORIGINS" default:"http://localhost:8080"`
	EnableCORS     bool            `yaml:"enable_cors" envconfig:"ENABLE_CORS" default:"true"`
	RateLimit      RateLimitConfig `yaml:"rate_limit" envconfig:"RATE_LIMIT"`
}

// RateLimitConfig contains rate limiting configuration
type RateLimitConfig struct {
	Enabled bool    `yaml:"enabled" envconfig:"ENABLED" default:"true"`
	RPS     float64 `yaml:"rps" envconfig:"RPS" default:"100"`
	Burst   int     `yaml:"burst" envconfig:"BURST" default:"50"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level    string `yaml:"level" envconfig:"LEVEL" default:"info"`
	Output   string `yaml:"output" envconfig:"OUTPUT" default:"stdout"`
	FilePath string `yaml:"file_path" envconfig:"FILE_PATH" default:"logs/app.log"`
}

// Load loads configuration from .env, environment variables and an optional
// YAML file. Environment variables take precedence over the file.
func Load() (*Config, error) {
	// Best-effort .env load for development; missing file is not an error.
	_ = godotenv.Load()

	var cfg Config
	if configFile := getConfigFilePath(); configFile != "" {
		if _, err := os.Stat(configFile); err == nil {
			fileCfg, err := loadFromFile(configFile)
			if err != nil {
				return nil, fmt.Errorf("failed to load config from file: %w", err)
			}
			cfg = *fileCfg
		}
	}

	if err := envconfig.Process("KDS", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// loadFromFile loads configuration from a YAML file
func loadFromFile(filePath string) (*Config, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// getConfigFilePath returns the config file path, overridable via env
func getConfigFilePath() string {
	if path := os.Getenv("KDS_CONFIG_FILE"); path != "" {
		return path
	}
	return "config.yaml"
}

func (c *Config) validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Identity.BaseURL == "" {
		return fmt.Errorf("identity base URL is required (KDS_IDENTITY_BASE_URL)")
	}
	if c.Identity.ServiceKey == "" {
		return fmt.Errorf("identity service key is required (KDS_IDENTITY_SERVICE_KEY)")
	}
	if c.Identity.JWTSecret == "" {
		return fmt.Errorf("identity JWT secret is required (KDS_IDENTITY_JWT_SECRET)")
	}
	if c.Store.BaseURL == "" {
		return fmt.Errorf("store base URL is required (KDS_STORE_BASE_URL)")
	}
	if c.Store.ServiceKey == "" {
		return fmt.Errorf("store service key is required (KDS_STORE_SERVICE_KEY)")
	}
	return nil
}
