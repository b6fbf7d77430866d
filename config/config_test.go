package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir()))
	t.Cleanup(func() { _ = os.Chdir(wd) })

	cfg, err := Load(viper.New(), "")
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.ServerAddr)
	assert.Equal(t, "Latest advancements in AI", cfg.DefaultTopic)
	assert.Equal(t, time.Hour, cfg.SessionTTL)
	assert.Zero(t, cfg.StageTimeout)
	assert.Equal(t, "openai", cfg.LLM.Provider)
	assert.Equal(t, "gpt-4o-mini", cfg.LLM.Model)
}

func TestLoadFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "research-assistant.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`server_addr: ":9090"
session_ttl: 30m
stage_timeout: 2m
llm:
  provider: deepseek
  model: deepseek-chat
  base_url: https://api.deepseek.com/v1
`), 0o644))
	t.Setenv("RESEARCH_ASSISTANT_LLM_MODEL", "deepseek-reasoner")

	cfg, err := Load(viper.New(), path)
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.ServerAddr)
	assert.Equal(t, 30*time.Minute, cfg.SessionTTL)
	assert.Equal(t, 2*time.Minute, cfg.StageTimeout)
	assert.Equal(t, "deepseek", cfg.LLM.Provider)
	assert.Equal(t, "deepseek-reasoner", cfg.LLM.Model)
	assert.Equal(t, "https://api.deepseek.com/v1", cfg.LLM.BaseURL)
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(viper.New(), filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorContains(t, err, "reading config")

	dir := t.TempDir()
	path := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("session_ttl: -1s\n"), 0o644))
	_, err = Load(viper.New(), path)
	assert.ErrorContains(t, err, "session_ttl must be positive")
}
