package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"spycats/internal/config"
	"spycats/internal/domain"
)

func useWorkspace(t *testing.T) string {
	t.Helper()
	viper.Reset()
	t.Cleanup(viper.Reset)
	initConfig()
	dir := t.TempDir()
	viper.Set("workspace", dir)
	return dir
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	useWorkspace(t)
	t.Setenv("SPYCATS_DATABASE_DRIVER", "postgres")
	t.Setenv("SPYCATS_DATABASE_DSN", "postgres://x@localhost/db")
	t.Setenv("SPYCATS_SERVER_ADDR", "0.0.0.0:9000")
	t.Setenv("SPYCATS_SERVER_BASE_PATH", "/v2")
	t.Setenv("SPYCATS_SERVER_CORS_ORIGINS", "https://a.example,https://b.example")
	t.Setenv("SPYCATS_BREEDS_URL", "http://registry.local/breeds")
	t.Setenv("SPYCATS_BREEDS_API_KEY", "secret")
	t.Setenv("SPYCATS_BREEDS_TIMEOUT", "2s")
	t.Setenv("SPYCATS_BREEDS_CACHE_TTL", "0s")
	t.Setenv("SPYCATS_BREEDS_CACHE_SIZE", "16")
	t.Setenv("SPYCATS_LOG_LEVEL", "debug")

	cfg, err := loadConfig()
	require.NoError(t, err)
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, "postgres://x@localhost/db", cfg.Database.DSN)
	assert.Equal(t, "0.0.0.0:9000", cfg.Server.Addr)
	assert.Equal(t, "/v2", cfg.Server.BasePath)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Server.CORSOrigins)
	assert.Equal(t, "http://registry.local/breeds", cfg.Breeds.URL)
	assert.Equal(t, "secret", cfg.Breeds.APIKey)
	assert.Equal(t, 2*time.Second, cfg.Breeds.Timeout)
	assert.Zero(t, cfg.Breeds.CacheTTL)
	assert.Equal(t, 16, cfg.Breeds.CacheSize)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoadConfigEnvOverridesFile(t *testing.T) {
	dir := useWorkspace(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, config.FileName),
		[]byte("database:\n  driver: postgres\n  dsn: postgres://file@localhost/db\n"), 0o644))
	t.Setenv("SPYCATS_DATABASE_DSN", "postgres://env@localhost/db")

	cfg, err := loadConfig()
	require.NoError(t, err)
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, "postgres://env@localhost/db", cfg.Database.DSN)
}

func TestLoadConfigRejectsBadOverride(t *testing.T) {
	useWorkspace(t)
	t.Setenv("SPYCATS_BREEDS_TIMEOUT", "soon")

	_, err := loadConfig()
	require.ErrorContains(t, err, "breeds.timeout")
}

func TestQuietLoggingKeepsConfiguredLevel(t *testing.T) {
	dir := useWorkspace(t)

	cfg, err := loadConfig()
	require.NoError(t, err)
	quietLogging(cfg)
	assert.Equal(t, "warn", cfg.Log.Level)

	require.NoError(t, os.WriteFile(filepath.Join(dir, config.FileName), []byte("log:\n  level: debug\n"), 0o644))
	cfg, err = loadConfig()
	require.NoError(t, err)
	quietLogging(cfg)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestParseTarget(t *testing.T) {
	got, err := parseTarget("Goldfinger: UK")
	require.NoError(t, err)
	assert.Equal(t, domain.NewTarget{Name: "Goldfinger", Country: "UK"}, got)

	got, err = parseTarget("Blofeld:CH:seen at 10:00")
	require.NoError(t, err)
	assert.Equal(t, "seen at 10:00", got.Notes)

	for _, bad := range []string{"", "solo", ":UK", "Name:"} {
		_, err := parseTarget(bad)
		assert.Error(t, err, bad)
	}
}

func TestParseID(t *testing.T) {
	id, err := parseID("42")
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)

	for _, bad := range []string{"0", "-1", "abc"} {
		_, err := parseID(bad)
		assert.Error(t, err, bad)
	}
}
