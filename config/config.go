// Package config loads the research assistant settings from a YAML file,
// RESEARCH_ASSISTANT_* environment variables and command-line flags.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	EnvPrefix = "RESEARCH_ASSISTANT"
	fileName  = "research-assistant"
)

// Config holds process-wide settings. The model credential is not part of
// it: every session enters its own.
type Config struct {
	ServerAddr   string        `mapstructure:"server_addr"`
	DefaultTopic string        `mapstructure:"default_topic"`
	SessionTTL   time.Duration `mapstructure:"session_ttl"`
	StageTimeout time.Duration `mapstructure:"stage_timeout"`
	Verbose      bool          `mapstructure:"verbose"`
	LLM          LLMConfig     `mapstructure:"llm"`
}

type LLMConfig struct {
	Provider  string `mapstructure:"provider"`
	Model     string `mapstructure:"model"`
	BaseURL   string `mapstructure:"base_url"`
	MaxTokens int64  `mapstructure:"max_tokens"`
}

// SetDefaults registers every key so environment overrides reach Unmarshal.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("server_addr", ":8080")
	v.SetDefault("default_topic", "Latest advancements in AI")
	v.SetDefault("session_ttl", time.Hour)
	v.SetDefault("stage_timeout", time.Duration(0))
	v.SetDefault("verbose", false)
	v.SetDefault("llm.provider", "openai")
	v.SetDefault("llm.model", "gpt-4o-mini")
	v.SetDefault("llm.base_url", "")
	v.SetDefault("llm.max_tokens", 0)
}

// Load reads configuration into v. An explicit path must exist; otherwise
// ./research-assistant.yaml and ~/.config/research-assistant/ are searched
// and a missing file is not an error.
func Load(v *viper.Viper, path string) (Config, error) {
	SetDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(fileName)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", fileName))
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decoding config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if c.ServerAddr == "" {
		return errors.New("server_addr must not be empty")
	}
	if c.SessionTTL <= 0 {
		return fmt.Errorf("session_ttl must be positive, got %s", c.SessionTTL)
	}
	if c.StageTimeout < 0 {
		return fmt.Errorf("stage_timeout must not be negative, got %s", c.StageTimeout)
	}
	if c.LLM.Provider == "" {
		return errors.New("llm.provider must not be empty")
	}
	return nil
}
