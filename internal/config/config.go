package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"
)

// DeploymentMode selects how strictly store bootstrap treats missing
// configuration.
type DeploymentMode string

const (
	ModeDevelopment DeploymentMode = "development"
	ModeProduction  DeploymentMode = "production"
)

// StoreConfig identifies the merchant store this process serves. It is
// read once at startup and never mutated.
type StoreConfig struct {
	ShopifyStoreID     string         `env:"SHOPIFY_STORE_ID"`
	ShopifyStoreName   string         `env:"SHOPIFY_STORE_NAME"`
	ShopifyAccessToken string         `env:"SHOPIFY_ADMIN_API_KEY"`
	DeploymentMode     DeploymentMode `env:"DEPLOYMENT_MODE"`
}

// CanCreateStore reports whether enough is configured to provision a store
// record in the directory.
func (c StoreConfig) CanCreateStore() bool {
	return len(c.MissingVariables()) == 0
}

// MissingVariables lists the unset variables that block store creation.
func (c StoreConfig) MissingVariables() []string {
	var missing []string
	if strings.TrimSpace(c.ShopifyStoreID) == "" {
		missing = append(missing, "SHOPIFY_STORE_ID")
	}
	if strings.TrimSpace(c.ShopifyStoreName) == "" {
		missing = append(missing, "SHOPIFY_STORE_NAME")
	}
	if strings.TrimSpace(c.ShopifyAccessToken) == "" {
		missing = append(missing, "SHOPIFY_ADMIN_API_KEY")
	}
	return missing
}

// IsProduction reports whether the deployment runs in production mode.
func (c StoreConfig) IsProduction() bool {
	return c.DeploymentMode == ModeProduction
}

type ServerConfig struct {
	Host string `env:"HTTP_HOST"`
	Port int    `env:"HTTP_PORT"`
}

// Addr returns the listen address.
func (c ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

type DatabaseConfig struct {
	Driver          string `env:"DATABASE_DRIVER"`
	DSN             string `env:"DATABASE_URL"`
	MaxOpenConns    int    `env:"DATABASE_MAX_OPEN_CONNS"`
	MaxIdleConns    int    `env:"DATABASE_MAX_IDLE_CONNS"`
	ConnMaxLifetime int    `env:"DATABASE_CONN_MAX_LIFETIME"`
	AutoMigrate     bool   `env:"DATABASE_AUTO_MIGRATE"`
}

// Enabled reports whether a persistent database is configured.
func (c DatabaseConfig) Enabled() bool {
	return strings.TrimSpace(c.DSN) != ""
}

type LoggingConfig struct {
	Level  string `env:"LOG_LEVEL"`
	Format string `env:"LOG_FORMAT"`
	Output string `env:"LOG_OUTPUT"`
}

// DirectoryConfig points the resolver at a remote store directory. An empty
// URL means the in-process directory is used.
type DirectoryConfig struct {
	URL     string        `env:"STORE_DIRECTORY_URL"`
	APIKey  string        `env:"STORE_DIRECTORY_API_KEY"`
	Timeout time.Duration `env:"STORE_DIRECTORY_TIMEOUT"`
}

type CacheConfig struct {
	Kind     string `env:"RESOLVER_CACHE"`
	Path     string `env:"RESOLVER_CACHE_PATH"`
	RedisURL string `env:"REDIS_URL"`
	Prefix   string `env:"RESOLVER_CACHE_PREFIX"`
}

type HTTPPolicyConfig struct {
	AllowedOrigins string `env:"CORS_ALLOWED_ORIGINS"`
	RateLimitRPS   int    `env:"RATE_LIMIT_RPS"`
	RateLimitBurst int    `env:"RATE_LIMIT_BURST"`
}

// Origins splits the comma separated CORS origin list.
func (c HTTPPolicyConfig) Origins() []string {
	var out []string
	for _, part := range strings.Split(c.AllowedOrigins, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// Config is the full process configuration.
type Config struct {
	Store          StoreConfig
	Server         ServerConfig
	Database       DatabaseConfig
	Logging        LoggingConfig
	Directory      DirectoryConfig
	Cache          CacheConfig
	HTTP           HTTPPolicyConfig
	MilestonesPath string `env:"MILESTONES_CONFIG"`
}

// Default returns the configuration used when no variables are set.
func Default() *Config {
	return &Config{
		Store: StoreConfig{DeploymentMode: ModeDevelopment},
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8080,
		},
		Database: DatabaseConfig{
			Driver:      "postgres",
			AutoMigrate: true,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: "stdout",
		},
		Directory: DirectoryConfig{Timeout: 10 * time.Second},
		Cache: CacheConfig{
			Kind:   "file",
			Path:   ".rewards/cache.json",
			Prefix: "cartrewards:",
		},
		HTTP: HTTPPolicyConfig{
			AllowedOrigins: "*",
			RateLimitRPS:   20,
			RateLimitBurst: 40,
		},
	}
}

// Load reads an optional .env file and decodes the environment over the
// defaults. envFile may be empty; a missing ".env" is ignored, a missing
// explicit file is an error.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			return nil, fmt.Errorf("load env file %s: %w", envFile, err)
		}
	} else if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(); err != nil {
			return nil, fmt.Errorf("load .env: %w", err)
		}
	}
	return FromEnv()
}

// FromEnv decodes the current environment over Default().
func FromEnv() (*Config, error) {
	cfg := Default()
	if err := envdecode.Decode(cfg); err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return nil, fmt.Errorf("decode environment: %w", err)
	}
	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) normalize() {
	c.Store.ShopifyStoreID = strings.ToLower(strings.TrimSpace(c.Store.ShopifyStoreID))
	c.Store.ShopifyStoreName = strings.TrimSpace(c.Store.ShopifyStoreName)
	c.Store.ShopifyAccessToken = strings.TrimSpace(c.Store.ShopifyAccessToken)
	c.Store.DeploymentMode = DeploymentMode(strings.ToLower(strings.TrimSpace(string(c.Store.DeploymentMode))))
	if c.Store.DeploymentMode == "" {
		c.Store.DeploymentMode = ModeDevelopment
	}
	c.Cache.Kind = strings.ToLower(strings.TrimSpace(c.Cache.Kind))
	c.Directory.URL = strings.TrimRight(strings.TrimSpace(c.Directory.URL), "/")
}

// Validate rejects configuration the process cannot run with.
func (c *Config) Validate() error {
	switch c.Store.DeploymentMode {
	case ModeDevelopment, ModeProduction:
	default:
		return fmt.Errorf("DEPLOYMENT_MODE must be development or production, got %q", c.Store.DeploymentMode)
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("HTTP_PORT out of range: %d", c.Server.Port)
	}
	switch c.Cache.Kind {
	case "memory", "file":
	case "redis":
		if strings.TrimSpace(c.Cache.RedisURL) == "" {
			return fmt.Errorf("REDIS_URL is required when RESOLVER_CACHE=redis")
		}
	default:
		return fmt.Errorf("RESOLVER_CACHE must be memory, file or redis, got %q", c.Cache.Kind)
	}
	if c.Directory.Timeout < 0 {
		return fmt.Errorf("STORE_DIRECTORY_TIMEOUT must not be negative")
	}
	return nil
}
