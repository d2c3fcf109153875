package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 1000, cfg.ChunkSize)
	assert.Equal(t, 200, cfg.ChunkOverlap)
	assert.Equal(t, 20, cfg.MaxSectionChunks)
	assert.Equal(t, 3, cfg.MaxRetries)
	assert.Equal(t, "gpt-4o-mini", cfg.PrimaryModel)
	assert.InDelta(t, 0.2, cfg.Temperature, 1e-9)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("CHUNK_SIZE", "1200")
	t.Setenv("CHUNK_OVERLAP", "250")
	t.Setenv("PRIMARY_MODEL", "gemini-2.0-flash")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 1200, cfg.ChunkSize)
	assert.Equal(t, 250, cfg.ChunkOverlap)
	assert.Equal(t, "gemini-2.0-flash", cfg.PrimaryModel)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestLoadRejectsOverlapNotBelowChunkSize(t *testing.T) {
	t.Setenv("CHUNK_SIZE", "200")
	t.Setenv("CHUNK_OVERLAP", "200")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "CHUNK_OVERLAP")
}

func TestLoadRejectsOutOfRangeValues(t *testing.T) {
	t.Setenv("TEMPERATURE", "1.5")

	_, err := Load()
	assert.Error(t, err)
}
