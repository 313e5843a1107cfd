package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// Defaults applied when fields are absent from the config file.
const (
	DefaultMessageWindow = 50
	DefaultTypingWindow  = 2 * time.Second
	DefaultStoreAddr     = "localhost:6379"
)

// Config represents the global ~/.chatapp/config.toml.
type Config struct {
	DefaultProfile string `toml:"default_profile"`

	// MessageWindow is the maximum number of recent messages streamed for
	// an open conversation.
	MessageWindow int `toml:"message_window"`
	// TypingWindowSeconds is the inactivity window after which a caller
	// should clear its typing flag.
	TypingWindowSeconds int `toml:"typing_window_seconds"`

	Store StoreConfig `toml:"store"`
}

// StoreConfig holds the hosted document store endpoint.
type StoreConfig struct {
	Addr     string `toml:"addr"`
	Password string `toml:"password"`
	DB       int    `toml:"db"`
}

// TypingWindow returns the configured typing inactivity window.
func (c *Config) TypingWindow() time.Duration {
	if c.TypingWindowSeconds <= 0 {
		return DefaultTypingWindow
	}
	return time.Duration(c.TypingWindowSeconds) * time.Second
}

// Load reads config from the given path and applies defaults. Returns an
// error if the file is missing or malformed.
func Load(path string) (*Config, error) {
	var cfg Config
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	return &cfg, nil
}

// Default returns a config with all defaults, used when no file exists yet.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// Save writes config to the given path, creating parent dirs as needed.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	encErr := toml.NewEncoder(f).Encode(cfg)
	if closeErr := f.Close(); closeErr != nil && encErr == nil {
		return closeErr
	}
	return encErr
}

func (c *Config) applyDefaults() {
	if c.MessageWindow <= 0 {
		c.MessageWindow = DefaultMessageWindow
	}
	if c.Store.Addr == "" {
		c.Store.Addr = DefaultStoreAddr
	}
}
