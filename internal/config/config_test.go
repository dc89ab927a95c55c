package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"APP_ENV", "SERVER_PORT", "DB_DRIVER", "DB_DSN", "DB_DEBUG", "DB_MIGRATIONS",
		"JWT_SECRET", "JWT_TTL", "SESSION_SECRET", "CORS_ORIGINS", "LOG_LEVEL",
		"ADMIN_EMAIL", "ADMIN_PASSWORD", "SEED_DEMO", "CONFIG_PATH",
	} {
		t.Setenv(k, "")
	}
}

func requiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("DB_DSN", "postgres://localhost/chantiers")
	t.Setenv("JWT_SECRET", "jwt")
	t.Setenv("SESSION_SECRET", "sess")
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	requiredEnv(t)

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "8080", cfg.Server.Port)
	require.Equal(t, "postgres", cfg.DB.Driver)
	require.Equal(t, "auto", cfg.DB.Migrations)
	require.Equal(t, 24*time.Hour, cfg.Auth.TokenTTL)
	require.False(t, cfg.IsProduction())
}

func TestLoadMissingSecrets(t *testing.T) {
	clearEnv(t)
	t.Setenv("DB_DSN", "postgres://localhost/chantiers")

	_, err := Load()
	require.ErrorContains(t, err, "JWT_SECRET")
}

func TestLoadMissingDSN(t *testing.T) {
	clearEnv(t)
	t.Setenv("JWT_SECRET", "jwt")
	t.Setenv("SESSION_SECRET", "sess")

	_, err := Load()
	require.ErrorContains(t, err, "DB_DSN")
}

func TestLoadEnvOverrides(t *testing.T) {
	clearEnv(t)
	requiredEnv(t)
	t.Setenv("APP_ENV", "production")
	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("JWT_TTL", "90m")
	t.Setenv("CORS_ORIGINS", "http://localhost:5173, https://app.example.com ,")
	t.Setenv("SEED_DEMO", "true")

	cfg, err := Load()
	require.NoError(t, err)
	require.True(t, cfg.IsProduction())
	require.Equal(t, "sqlite", cfg.DB.Driver)
	require.Equal(t, 90*time.Minute, cfg.Auth.TokenTTL)
	require.Equal(t, []string{"http://localhost:5173", "https://app.example.com"}, cfg.CORS.Origins)
	require.True(t, cfg.Seed.Demo)
}

func TestLoadInvalidValues(t *testing.T) {
	clearEnv(t)
	requiredEnv(t)
	t.Setenv("DB_DRIVER", "mongodb")

	_, err := Load()
	require.ErrorContains(t, err, "DB_DRIVER")

	t.Setenv("DB_DRIVER", "")
	t.Setenv("SEED_DEMO", "maybe")
	_, err = Load()
	require.ErrorContains(t, err, "SEED_DEMO")
}

func TestLoadFromYAML(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
env: staging
server:
  port: "9090"
db:
  driver: mysql
  dsn: "user:pass@tcp(localhost:3306)/chantiers"
auth:
  jwt_secret: from-file
  session_secret: from-file
  token_ttl: 2h
log:
  level: debug
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	t.Setenv("CONFIG_PATH", path)
	t.Setenv("SERVER_PORT", "7070")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "staging", cfg.Env)
	require.Equal(t, "7070", cfg.Server.Port)
	require.Equal(t, "mysql", cfg.DB.Driver)
	require.Equal(t, "from-file", cfg.Auth.JWTSecret)
	require.Equal(t, 2*time.Hour, cfg.Auth.TokenTTL)
	require.Equal(t, "debug", cfg.Log.Level)
}
