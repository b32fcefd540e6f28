package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, ":8080", cfg.ListenAddr)
	assert.Equal(t, "./data/projects", cfg.DataDir)
	assert.Equal(t, "gemini-2.0-flash", cfg.LLMModel)
	assert.Equal(t, 30*time.Second, cfg.KeepAliveInterval)
	assert.Equal(t, 100000, cfg.MaxFullTextLen)
	assert.False(t, cfg.LLMEnabled())
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("LISTEN_ADDR", ":9090")
	t.Setenv("LLM_API_KEY", "test-key")
	t.Setenv("LLM_HISTORY_WINDOW", "20")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.ListenAddr)
	assert.Equal(t, 20, cfg.HistoryWindow)
	assert.True(t, cfg.LLMEnabled())
}

func TestValidate_Rejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty data dir", func(c *Config) { c.DataDir = "" }},
		{"empty papers dir", func(c *Config) { c.PapersDir = "" }},
		{"zero history window", func(c *Config) { c.HistoryWindow = 0 }},
		{"sub-second keepalive", func(c *Config) { c.KeepAliveInterval = 100 * time.Millisecond }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load()
			require.NoError(t, err)
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
