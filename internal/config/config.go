// Package config reads the service configuration through viper. Values come
// from defaults, an optional config file, NODEWAKER_* environment variables
// and command line flags bound to the same keys.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const EnvPrefix = "NODEWAKER"

var (
	ErrNoStorage  = errors.New("no client storage configured, set storage.file or storage.url")
	ErrTwoStorage = errors.New("storage.file and storage.url are mutually exclusive")
)

type Storage struct {
	File    string
	URL     string
	PutURL  string
	Token   string
	Timeout time.Duration
	Retries int
}

// Remote reports whether the HTTP backend is selected.
func (s Storage) Remote() bool {
	return s.URL != ""
}

type Config struct {
	Listen       string
	Storage      Storage
	Interface    string
	ProbeTimeout time.Duration
	WoLPort      int
	JWTSecret    string
	LogLevel     string
	LogFile      string
}

// SetDefaults registers every key with its default.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("listen", "0.0.0.0:5555")
	v.SetDefault("storage.file", "")
	v.SetDefault("storage.url", "")
	v.SetDefault("storage.put_url", "")
	v.SetDefault("storage.token", "")
	v.SetDefault("storage.timeout", 10*time.Second)
	v.SetDefault("storage.retries", 2)
	v.SetDefault("interface", "")
	v.SetDefault("probe.timeout", time.Second)
	v.SetDefault("wol.port", 9)
	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.file", "")
}

// New returns a viper instance with defaults and environment binding set up.
func New() *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// ReadFile merges the given config file into v. An empty path is a no-op.
func ReadFile(v *viper.Viper, path string) error {
	if path == "" {
		return nil
	}
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("reading config file %s: %w", path, err)
	}
	return nil
}

// Load builds a validated Config from v.
func Load(v *viper.Viper) (*Config, error) {
	c := &Config{
		Listen: v.GetString("listen"),
		Storage: Storage{
			File:    strings.TrimSpace(v.GetString("storage.file")),
			URL:     strings.TrimSpace(v.GetString("storage.url")),
			PutURL:  strings.TrimSpace(v.GetString("storage.put_url")),
			Token:   v.GetString("storage.token"),
			Timeout: v.GetDuration("storage.timeout"),
			Retries: v.GetInt("storage.retries"),
		},
		Interface:    strings.TrimSpace(v.GetString("interface")),
		ProbeTimeout: v.GetDuration("probe.timeout"),
		WoLPort:      v.GetInt("wol.port"),
		JWTSecret:    v.GetString("auth.jwt_secret"),
		LogLevel:     v.GetString("log.level"),
		LogFile:      v.GetString("log.file"),
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Validate checks that exactly one storage backend is configured and that
// numeric settings are in range.
func (c *Config) Validate() error {
	switch {
	case c.Storage.File == "" && c.Storage.URL == "":
		return ErrNoStorage
	case c.Storage.File != "" && c.Storage.URL != "":
		return ErrTwoStorage
	}
	if c.Storage.PutURL != "" && c.Storage.URL == "" {
		return errors.New("storage.put_url requires storage.url")
	}
	if c.Storage.Timeout <= 0 {
		return fmt.Errorf("storage.timeout must be positive, got %s", c.Storage.Timeout)
	}
	if c.Storage.Retries < 0 {
		return fmt.Errorf("storage.retries must not be negative, got %d", c.Storage.Retries)
	}
	if c.ProbeTimeout <= 0 {
		return fmt.Errorf("probe.timeout must be positive, got %s", c.ProbeTimeout)
	}
	if c.WoLPort < 1 || c.WoLPort > 65535 {
		return fmt.Errorf("wol.port must be in 1..65535, got %d", c.WoLPort)
	}
	return nil
}
