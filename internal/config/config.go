package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const (
	envPrefix         = "FLASH_"
	defaultConfigFile = "config.yaml"

	// DevJWTSecret is the secret used for local development only
	DevJWTSecret = "dev-secret-change-in-production"
)

type Config struct {
	Env      string         `koanf:"env"`
	Server   ServerConfig   `koanf:"server"`
	LLM      LLMConfig      `koanf:"llm"`
	Features FeatureConfig  `koanf:"features"`
	Mock     MockConfig     `koanf:"mock"`
	Database DatabaseConfig `koanf:"database"`
	Auth     AuthConfig     `koanf:"auth"`
	Metrics  MetricsConfig  `koanf:"metrics"`
}

type ServerConfig struct {
	Port               int           `koanf:"port"`
	SessionIdleTTL     time.Duration `koanf:"session_idle_ttl"`      // Drop generation sessions idle this long
	MaxSessionsPerUser int           `koanf:"max_sessions_per_user"` // Editor windows tracked per user
}

type LLMConfig struct {
	BaseURL string        `koanf:"base_url"`
	Timeout time.Duration `koanf:"timeout"`
}

// FeatureConfig holds feature flags
type FeatureConfig struct {
	MockData bool `koanf:"mock_data"` // Serve every generation from the mock generator
}

type MockConfig struct {
	StepDelay time.Duration `koanf:"step_delay"`
	WordDelay time.Duration `koanf:"word_delay"`
}

// DatabaseConfig selects the history store
type DatabaseConfig struct {
	Driver string `koanf:"driver"` // postgres, sqlite
	URL    string `koanf:"url"`    // Connection string or sqlite file path
}

type AuthConfig struct {
	JWTSecret   string        `koanf:"jwt_secret"`
	TokenTTL    time.Duration `koanf:"token_ttl"`
	AdminEmails []string      `koanf:"admin_emails"` // Users allowed to change feature settings
}

// MetricsConfig controls the Prometheus /metrics endpoint
type MetricsConfig struct {
	Enabled bool `koanf:"enabled"`
}

var defaults = map[string]interface{}{
	"env":                          "development",
	"server.port":                  8080,
	"server.session_idle_ttl":      30 * time.Minute,
	"server.max_sessions_per_user": 16,
	"llm.base_url":                 "http://localhost:8001",
	"llm.timeout":                  30 * time.Second,
	"features.mock_data":           false,
	"mock.step_delay":              time.Second,
	"mock.word_delay":              50 * time.Millisecond,
	"auth.token_ttl":               24 * time.Hour,
	"metrics.enabled":              true,
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// Load reads configuration from the optional YAML file named by
// FLASH_CONFIG_FILE, then FLASH_ environment variables, then defaults.
func Load() (*Config, error) {
	k := koanf.New(".")

	path := os.Getenv("FLASH_CONFIG_FILE")
	if path == "" {
		path = defaultConfigFile
	}

	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		// A missing file is fine, env and defaults still apply
		if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	// Double underscore separates nested keys: FLASH_LLM__BASE_URL -> llm.base_url
	if err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		return strings.Replace(strings.ToLower(strings.TrimPrefix(s, envPrefix)), "__", ".", -1)
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment: %w", err)
	}

	for key, value := range defaults {
		if !k.Exists(key) {
			k.Set(key, value)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	cfg.Auth.JWTSecret = substituteEnvVars(cfg.Auth.JWTSecret)
	cfg.Database.URL = substituteEnvVars(cfg.Database.URL)
	if cfg.Auth.JWTSecret == "" && !cfg.IsProduction() {
		cfg.Auth.JWTSecret = DevJWTSecret
	}
	cfg.Database.Driver = cfg.Database.ResolveDriver()
	cfg.Auth.AdminEmails = splitList(cfg.Auth.AdminEmails)

	return &cfg, nil
}

// splitList flattens comma separated entries, as env variables carry lists
// in a single value, and lowercases them for comparison with user emails.
func splitList(values []string) []string {
	var out []string
	for _, value := range values {
		for _, item := range strings.Split(value, ",") {
			if item = strings.ToLower(strings.TrimSpace(item)); item != "" {
				out = append(out, item)
			}
		}
	}
	return out
}

// IsProduction reports whether the service runs in production
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Env, "production")
}

// Validate rejects settings that are unsafe for the current environment
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port %d", c.Server.Port)
	}
	if c.Server.SessionIdleTTL < 0 {
		return fmt.Errorf("session idle ttl must not be negative, got %s", c.Server.SessionIdleTTL)
	}
	if c.LLM.Timeout <= 0 {
		return fmt.Errorf("llm timeout must be positive, got %s", c.LLM.Timeout)
	}
	switch c.Database.Driver {
	case "", DriverPostgres, DriverSQLite:
	default:
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}
	if c.IsProduction() {
		if c.Auth.JWTSecret == "" || c.Auth.JWTSecret == DevJWTSecret {
			return errors.New("auth.jwt_secret must be set to a non-default value in production")
		}
	}
	return nil
}

// Database drivers
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// ResolveDriver returns the configured driver, inferring it from the URL when unset
func (d DatabaseConfig) ResolveDriver() string {
	if d.Driver != "" {
		return strings.ToLower(d.Driver)
	}
	switch {
	case d.URL == "":
		return ""
	case strings.HasPrefix(d.URL, "postgres://"), strings.HasPrefix(d.URL, "postgresql://"):
		return DriverPostgres
	default:
		return DriverSQLite
	}
}

func substituteEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		varName := envVarPattern.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}
