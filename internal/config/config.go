package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/abhisek/socratic/internal/llm"
	"github.com/abhisek/socratic/internal/logging"
)

// EnvPrefix prefixes every environment override, e.g. SOCRATIC_SERVER_ADDR.
const EnvPrefix = "SOCRATIC"

// Config is the resolved application configuration.
type Config struct {
	Server  ServerConfig
	Store   StoreConfig
	Log     logging.Config
	Session SessionConfig
	LLM     llm.Config
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Addr            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// StoreConfig configures persistence. An empty DB selects the default path.
type StoreConfig struct {
	DB string
}

// SessionConfig configures the idle-session reaper.
type SessionConfig struct {
	IdleTimeout    time.Duration
	ReaperInterval time.Duration
}

// providerKeys maps each provider to the env var holding its API key.
var providerKeys = []struct {
	provider string
	key      string
	env      string
}{
	{"anthropic", "llm.anthropic.api_key", "SOCRATIC_ANTHROPIC_API_KEY"},
	{"openai", "llm.openai.api_key", "SOCRATIC_OPENAI_API_KEY"},
	{"gemini", "llm.gemini.api_key", "SOCRATIC_GEMINI_API_KEY"},
	{"openrouter", "llm.openrouter.api_key", "SOCRATIC_OPENROUTER_API_KEY"},
}

// DefaultPath returns $XDG_CONFIG_HOME/socratic/config.yaml.
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("resolve config dir: %w", err)
	}
	return filepath.Join(dir, "socratic", "config.yaml"), nil
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 90*time.Second)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)
	v.SetDefault("store.db", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.development", false)
	v.SetDefault("session.idle_timeout", 2*time.Hour)
	v.SetDefault("session.reaper_interval", 5*time.Minute)
	v.SetDefault("llm.provider", "")
	v.SetDefault("llm.model", "")
	v.SetDefault("llm.base_url", "")
	v.SetDefault("llm.timeout", 60*time.Second)
	v.SetDefault("llm.max_attempts", 3)

	for _, pk := range providerKeys {
		_ = v.BindEnv(pk.key, pk.env)
	}
	return v
}

// Load reads the YAML file at path, applies defaults and SOCRATIC_ env
// overrides. An empty path tries DefaultPath and tolerates its absence; an
// explicit path must exist.
func Load(path string) (*Config, error) {
	v := newViper()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	} else if def, err := DefaultPath(); err == nil {
		v.SetConfigFile(def)
		if err := v.ReadInConfig(); err != nil && !errors.Is(err, os.ErrNotExist) {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("reading config %s: %w", def, err)
			}
		}
	}

	return fromViper(v)
}

func fromViper(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Addr:            v.GetString("server.addr"),
			ReadTimeout:     v.GetDuration("server.read_timeout"),
			WriteTimeout:    v.GetDuration("server.write_timeout"),
			ShutdownTimeout: v.GetDuration("server.shutdown_timeout"),
		},
		Store: StoreConfig{DB: v.GetString("store.db")},
		Log: logging.Config{
			Level:       v.GetString("log.level"),
			Development: v.GetBool("log.development"),
		},
		Session: SessionConfig{
			IdleTimeout:    v.GetDuration("session.idle_timeout"),
			ReaperInterval: v.GetDuration("session.reaper_interval"),
		},
	}

	llmCfg, err := llmConfig(v)
	if err != nil {
		return nil, err
	}
	cfg.LLM = llmCfg

	if cfg.Session.ReaperInterval <= 0 {
		return nil, fmt.Errorf("session.reaper_interval must be positive, got %s", cfg.Session.ReaperInterval)
	}
	return cfg, nil
}

// llmConfig resolves the provider. An explicit llm.provider wins; otherwise
// the first SOCRATIC_*_API_KEY found selects one, then the vendors' own
// key variables. With none of these the provider stays empty and the
// LLM-backed features report themselves unavailable.
func llmConfig(v *viper.Viper) (llm.Config, error) {
	cfg := llm.DefaultConfig()
	cfg.Provider = ""

	cfg.Anthropic.APIKey = v.GetString("llm.anthropic.api_key")
	cfg.OpenAI.APIKey = v.GetString("llm.openai.api_key")
	cfg.Gemini.APIKey = v.GetString("llm.gemini.api_key")
	cfg.OpenRouter.APIKey = v.GetString("llm.openrouter.api_key")

	switch p := v.GetString("llm.provider"); {
	case p != "":
		cfg.Provider = p
	default:
		for _, pk := range providerKeys {
			if v.GetString(pk.key) != "" {
				cfg.Provider = pk.provider
				break
			}
		}
	}

	if cfg.Provider == "" {
		if discovered, ok := llm.DiscoverConfig(); ok {
			discovered.Retry = cfg.Retry
			cfg = discovered
		}
	}

	if m := v.GetString("llm.model"); m != "" {
		switch cfg.Provider {
		case "anthropic":
			cfg.Anthropic.Model = m
		case "openai":
			cfg.OpenAI.Model = m
		case "gemini":
			cfg.Gemini.Model = m
		case "openrouter":
			cfg.OpenRouter.Model = m
		}
	}
	if u := v.GetString("llm.base_url"); u != "" {
		switch cfg.Provider {
		case "anthropic":
			cfg.Anthropic.BaseURL = u
		case "openai":
			cfg.OpenAI.BaseURL = u
		case "openrouter":
			cfg.OpenRouter.BaseURL = u
		}
	}

	cfg.Timeout = v.GetDuration("llm.timeout")
	cfg.Retry.MaxAttempts = v.GetInt("llm.max_attempts")

	if cfg.Provider != "" {
		if err := cfg.Validate(); err != nil {
			return llm.Config{}, fmt.Errorf("llm config: %w", err)
		}
	}
	return cfg, nil
}
