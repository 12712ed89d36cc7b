package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds application configuration.
type Config struct {
	API     APIConfig
	Session SessionConfig
	Journal JournalConfig
}

// APIConfig holds pipeline backend settings.
type APIConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// SessionConfig holds defaults for the start form. The operator can
// override every field in the TUI before starting.
type SessionConfig struct {
	ClientID     string        `mapstructure:"client_id"`
	ClientSecret string        `mapstructure:"client_secret"`
	FeedURL      string        `mapstructure:"feed_url"`
	FeedOffset   int           `mapstructure:"feed_offset"`
	MaxItems     int           `mapstructure:"max_items"`
	Keyword      string        `mapstructure:"keyword"`
	PollInterval time.Duration `mapstructure:"poll_interval"`
}

// JournalConfig holds the audit journal location.
type JournalConfig struct {
	Path           string `mapstructure:"path"`
	MigrationsPath string `mapstructure:"migrations_path"`
}

// Load reads configuration from file and env. Env var overrides use prefix FEEDPILOT_.
func Load() (Config, error) {
	v := viper.New()

	// default values
	v.SetDefault("api.base_url", "http://127.0.0.1:8000")
	v.SetDefault("api.timeout", "30s")
	v.SetDefault("session.client_id", "")
	v.SetDefault("session.client_secret", "")
	v.SetDefault("session.feed_url", "")
	v.SetDefault("session.feed_offset", 0)
	v.SetDefault("session.max_items", 10)
	v.SetDefault("session.keyword", "")
	v.SetDefault("session.poll_interval", "3s")
	v.SetDefault("journal.path", filepath.Join(os.Getenv("HOME"), ".local", "share", "feedpilot", "journal.db"))
	v.SetDefault("journal.migrations_path", "internal/journal/migrations")

	v.SetConfigType("toml")

	cfgPath := os.Getenv("FEEDPILOT_CONFIG")
	if cfgPath != "" {
		v.SetConfigFile(cfgPath)
	} else {
		v.AddConfigPath(filepath.Join(os.Getenv("HOME"), ".config", "feedpilot"))
		v.SetConfigName("config")
	}

	v.SetEnvPrefix("FEEDPILOT")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// read config file if present
	_ = v.ReadInConfig()

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	return c, nil
}
