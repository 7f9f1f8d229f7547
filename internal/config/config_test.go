package config

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	cfg, err := LoadFrom(map[string]string{})
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, StorageTypeMemory, cfg.StorageType)
	assert.Equal(t, 1024, cfg.GameCacheSize)
	assert.Equal(t, 24*time.Hour, cfg.GameTTL)
	assert.Equal(t, ":8080", cfg.Addr())

	level, err := cfg.SlogLevel()
	require.NoError(t, err)
	assert.Equal(t, slog.LevelInfo, level)
}

func TestOverrides(t *testing.T) {
	cfg, err := LoadFrom(map[string]string{
		"HOST":            "127.0.0.1",
		"PORT":            "9000",
		"LOG_LEVEL":       "debug",
		"STORAGE_TYPE":    "Redis",
		"REDIS_URL":       "redis://localhost:6379/0",
		"GAME_CACHE_SIZE": "0",
		"GAME_TTL":        "2h",
	})
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:9000", cfg.Addr())
	assert.Equal(t, StorageTypeRedis, cfg.StorageType)
	assert.Equal(t, 0, cfg.GameCacheSize)
	assert.Equal(t, 2*time.Hour, cfg.GameTTL)

	level, err := cfg.SlogLevel()
	require.NoError(t, err)
	assert.Equal(t, slog.LevelDebug, level)
}

func TestBackendRequirements(t *testing.T) {
	_, err := LoadFrom(map[string]string{"STORAGE_TYPE": "redis"})
	assert.ErrorContains(t, err, "REDIS_URL")

	_, err = LoadFrom(map[string]string{"STORAGE_TYPE": "postgres"})
	assert.ErrorContains(t, err, "POSTGRES_DSN")

	_, err = LoadFrom(map[string]string{"STORAGE_TYPE": "mongo"})
	assert.ErrorContains(t, err, "STORAGE_TYPE")
}

func TestInvalidValues(t *testing.T) {
	_, err := LoadFrom(map[string]string{"PORT": "abc"})
	assert.Error(t, err)

	_, err = LoadFrom(map[string]string{"PORT": "70000"})
	assert.ErrorContains(t, err, "PORT")

	_, err = LoadFrom(map[string]string{"LOG_LEVEL": "loud"})
	assert.ErrorContains(t, err, "LOG_LEVEL")

	_, err = LoadFrom(map[string]string{"GAME_CACHE_SIZE": "-1"})
	assert.ErrorContains(t, err, "GAME_CACHE_SIZE")
}
