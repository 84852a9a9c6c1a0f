package common

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	t.Setenv("TAXASSIST_CONFIG", "")
	t.Setenv("OPENAI_API_KEY", "")

	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, 3000, cfg.Chunk.Size)
	assert.Equal(t, 200, cfg.Chunk.Overlap)
	assert.Equal(t, "last-write-wins", cfg.Reconcile.MergePolicy)
	assert.False(t, cfg.LLMEnabled())
	assert.Empty(t, cfg.LLM.APIKey)
}

func TestLoadConfig_YAMLThenEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "taxassist.yaml")
	yml := `
llm:
  model: gpt-4.1-mini
  timeout: 15s
chunk:
  size: 1000
  overlap: 100
reconcile:
  merge_policy: first-write-wins
`
	require.NoError(t, os.WriteFile(path, []byte(yml), 0o644))

	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("CHUNK_OVERLAP", "50")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "gpt-4.1-mini", cfg.LLM.Model)
	assert.Equal(t, 15*time.Second, cfg.LLM.Timeout)
	assert.Equal(t, 1000, cfg.Chunk.Size)
	assert.Equal(t, 50, cfg.Chunk.Overlap, "env overrides the file")
	assert.Equal(t, "first-write-wins", cfg.Reconcile.MergePolicy)
	assert.True(t, cfg.LLMEnabled())
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"overlap equals size", func(c *Config) { c.Chunk.Overlap = c.Chunk.Size }},
		{"negative overlap", func(c *Config) { c.Chunk.Overlap = -1 }},
		{"zero size", func(c *Config) { c.Chunk.Size = 0 }},
		{"no archive depth", func(c *Config) { c.Limits.MaxArchiveDepth = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidInput))
			var appErr *AppError
			require.True(t, errors.As(err, &appErr))
			assert.Equal(t, "CONFIG_ERROR", appErr.Code)
		})
	}
	assert.NoError(t, DefaultConfig().Validate())
}

func TestLoadConfig_MissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}
