package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("TITI_CONFIG_FILE", "")
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:8010", cfg.Addr())
	assert.Equal(t, "file", cfg.StoreBackend)
	assert.Equal(t, 12, cfg.AcademicMaxResults)
	assert.Equal(t, 4, cfg.LegalMaxResults)
	assert.Equal(t, 6, cfg.MaxHistoryTurns)
	assert.Equal(t, 50, cfg.QueryMaxTokens)
	assert.False(t, cfg.TLSEnabled())
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("ACADEMIC_MAX_RESULTS", "4")
	t.Setenv("LLM_TEMPERATURE", "0.7")
	t.Setenv("SEARCH_TIMEOUT", "3s")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, https://b.example")
	t.Setenv("LLM_WARMUP", "false")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9000", cfg.ServerPort)
	assert.Equal(t, 4, cfg.AcademicMaxResults)
	assert.InDelta(t, 0.7, cfg.LLMTemperature, 1e-9)
	assert.Equal(t, 3*time.Second, cfg.SearchTimeout)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSAllowedOrigins)
	assert.False(t, cfg.LLMWarmup)
}

func TestLoadIgnoresMalformedNumbers(t *testing.T) {
	t.Setenv("MAX_HISTORY_TURNS", "many")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 6, cfg.MaxHistoryTurns)
}

func TestLoadFileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "titi.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
port: "8443"
store_backend: bolt
legal_max_results: 3
search_provider: searxng
searxng_url: http://searx.local
`), 0o644))

	t.Setenv("TITI_CONFIG_FILE", path)
	t.Setenv("LEGAL_MAX_RESULTS", "2")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8443", cfg.ServerPort)
	assert.Equal(t, "bolt", cfg.StoreBackend)
	assert.Equal(t, 2, cfg.LegalMaxResults)
	assert.Equal(t, "http://searx.local", cfg.SearXNGURL)
	// Untouched keys keep their defaults.
	assert.Equal(t, "conversations", cfg.ConversationsDir)
}

func TestLoadMissingFile(t *testing.T) {
	t.Setenv("TITI_CONFIG_FILE", filepath.Join(t.TempDir(), "missing.yaml"))
	_, err := Load()
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown store", func(c *Config) { c.StoreBackend = "postgres" }},
		{"unknown llm", func(c *Config) { c.LLMProvider = "llama" }},
		{"unknown search", func(c *Config) { c.SearchProvider = "bing" }},
		{"unknown format", func(c *Config) { c.PromptFormat = "chatml" }},
		{"searxng without url", func(c *Config) { c.SearchProvider = "searxng" }},
		{"brave without key", func(c *Config) { c.SearchProvider = "brave" }},
		{"cert without key", func(c *Config) { c.TLSCertFile = "cert.pem" }},
		{"negative history", func(c *Config) { c.MaxHistoryTurns = -1 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}

	assert.NoError(t, Default().Validate())
}

func TestResolvedPromptFormat(t *testing.T) {
	tests := []struct {
		provider, format string
		want             string
		raw              bool
	}{
		{"local", "auto", "gemma", true},
		{"openai", "auto", "plain", false},
		{"gemini", "auto", "plain", false},
		{"anthropic", "gemma", "gemma", false},
		{"local", "plain", "plain", false},
	}
	for _, tt := range tests {
		t.Run(tt.provider+"/"+tt.format, func(t *testing.T) {
			cfg := Default()
			cfg.LLMProvider = tt.provider
			cfg.PromptFormat = tt.format
			assert.Equal(t, tt.want, cfg.ResolvedPromptFormat())
			assert.Equal(t, tt.raw, cfg.RawPrompt())
		})
	}
}
