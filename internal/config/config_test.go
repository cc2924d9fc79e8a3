package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// isolate points FLASH_CONFIG_FILE at a path that does not exist
func isolate(t *testing.T) {
	t.Helper()
	t.Setenv("FLASH_CONFIG_FILE", filepath.Join(t.TempDir(), "missing.yaml"))
}

func TestLoad_Defaults(t *testing.T) {
	isolate(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.Env)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 30*time.Minute, cfg.Server.SessionIdleTTL)
	assert.Equal(t, 16, cfg.Server.MaxSessionsPerUser)
	assert.Equal(t, "http://localhost:8001", cfg.LLM.BaseURL)
	assert.Equal(t, 30*time.Second, cfg.LLM.Timeout)
	assert.False(t, cfg.Features.MockData)
	assert.Equal(t, time.Second, cfg.Mock.StepDelay)
	assert.Equal(t, 50*time.Millisecond, cfg.Mock.WordDelay)
	assert.Equal(t, DevJWTSecret, cfg.Auth.JWTSecret)
	assert.Equal(t, 24*time.Hour, cfg.Auth.TokenTTL)
	assert.Empty(t, cfg.Auth.AdminEmails)
	assert.Empty(t, cfg.Database.Driver)
	assert.True(t, cfg.Metrics.Enabled)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_EnvOverrides(t *testing.T) {
	isolate(t)
	t.Setenv("FLASH_SERVER__PORT", "9000")
	t.Setenv("FLASH_LLM__BASE_URL", "http://llm:9001")
	t.Setenv("FLASH_LLM__TIMEOUT", "5s")
	t.Setenv("FLASH_FEATURES__MOCK_DATA", "true")
	t.Setenv("FLASH_MOCK__WORD_DELAY", "10ms")
	t.Setenv("FLASH_DATABASE__URL", "postgres://localhost/flash")
	t.Setenv("FLASH_SERVER__SESSION_IDLE_TTL", "5m")
	t.Setenv("FLASH_AUTH__ADMIN_EMAILS", "Lead@example.com, ops@example.com")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, "http://llm:9001", cfg.LLM.BaseURL)
	assert.Equal(t, 5*time.Second, cfg.LLM.Timeout)
	assert.True(t, cfg.Features.MockData)
	assert.Equal(t, 10*time.Millisecond, cfg.Mock.WordDelay)
	assert.Equal(t, DriverPostgres, cfg.Database.Driver)
	assert.Equal(t, 5*time.Minute, cfg.Server.SessionIdleTTL)
	assert.Equal(t, []string{"lead@example.com", "ops@example.com"}, cfg.Auth.AdminEmails)
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
server:
  port: 7070
llm:
  base_url: http://file-llm:8001
database:
  driver: sqlite
  url: /tmp/flash.db
auth:
  jwt_secret: ${TEST_FLASH_SECRET}
  admin_emails:
    - admin@example.com
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	t.Setenv("FLASH_CONFIG_FILE", path)
	t.Setenv("TEST_FLASH_SECRET", "from-env-substitution")
	// Env still wins over the file
	t.Setenv("FLASH_SERVER__PORT", "7171")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 7171, cfg.Server.Port)
	assert.Equal(t, "http://file-llm:8001", cfg.LLM.BaseURL)
	assert.Equal(t, DriverSQLite, cfg.Database.Driver)
	assert.Equal(t, "/tmp/flash.db", cfg.Database.URL)
	assert.Equal(t, "from-env-substitution", cfg.Auth.JWTSecret)
	assert.Equal(t, []string{"admin@example.com"}, cfg.Auth.AdminEmails)
}

func TestLoad_InvalidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server: [unclosed"), 0o600))
	t.Setenv("FLASH_CONFIG_FILE", path)

	_, err := Load()
	assert.Error(t, err)
}

func TestConfig_Validate(t *testing.T) {
	base := func() Config {
		return Config{
			Env:    "development",
			Server: ServerConfig{Port: 8080},
			LLM:    LLMConfig{Timeout: time.Second},
			Auth:   AuthConfig{JWTSecret: DevJWTSecret},
		}
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{name: "development accepts dev secret", mutate: func(c *Config) {}},
		{
			name:    "production rejects dev secret",
			mutate:  func(c *Config) { c.Env = "production" },
			wantErr: "jwt_secret",
		},
		{
			name:    "production rejects empty secret",
			mutate:  func(c *Config) { c.Env = "production"; c.Auth.JWTSecret = "" },
			wantErr: "jwt_secret",
		},
		{
			name:   "production accepts real secret",
			mutate: func(c *Config) { c.Env = "production"; c.Auth.JWTSecret = "s3cr3t-value" },
		},
		{
			name:    "invalid port",
			mutate:  func(c *Config) { c.Server.Port = 0 },
			wantErr: "invalid server port",
		},
		{
			name:    "negative session ttl",
			mutate:  func(c *Config) { c.Server.SessionIdleTTL = -time.Second },
			wantErr: "session idle ttl",
		},
		{
			name:    "unknown driver",
			mutate:  func(c *Config) { c.Database.Driver = "mysql" },
			wantErr: "unsupported database driver",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestDatabaseConfig_ResolveDriver(t *testing.T) {
	assert.Equal(t, "", DatabaseConfig{}.ResolveDriver())
	assert.Equal(t, DriverPostgres, DatabaseConfig{URL: "postgresql://u@h/db"}.ResolveDriver())
	assert.Equal(t, DriverSQLite, DatabaseConfig{URL: "flash.db"}.ResolveDriver())
	assert.Equal(t, DriverSQLite, DatabaseConfig{Driver: "SQLite", URL: "postgres://x"}.ResolveDriver())
}
