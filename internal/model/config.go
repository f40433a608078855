package model

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Token transport modes for the mail service.
const (
	AuthModeQuery  = "query"
	AuthModeBearer = "bearer"
)

// APIConfig holds settings for the remote mail service.
type APIConfig struct {
	// BaseURL is the root URL of the mail service.
	BaseURL string `mapstructure:"base_url" yaml:"base_url"`

	// AuthMode selects how the token is sent: "query" or "bearer".
	AuthMode string `mapstructure:"auth_mode" yaml:"auth_mode"`

	TimeoutSec int `mapstructure:"timeout_sec" yaml:"timeout_sec"`

	// MaxRetries bounds retries of rate-limited (429) reads.
	MaxRetries int `mapstructure:"max_retries" yaml:"max_retries"`
}

// PollConfig controls the inbox refresh cadence.
type PollConfig struct {
	IntervalSec int `mapstructure:"interval_sec" yaml:"interval_sec"`
}

// DisplayConfig holds UI/rendering preferences.
type DisplayConfig struct {
	Lang string `mapstructure:"lang" yaml:"lang"`
}

// LogConfig controls the log file.
type LogConfig struct {
	Level string `mapstructure:"level" yaml:"level"`
	File  string `mapstructure:"file" yaml:"file"`
}

// ArchiveConfig locates the local archive of saved messages.
type ArchiveConfig struct {
	DBPath    string `mapstructure:"db_path" yaml:"db_path"`
	ExportDir string `mapstructure:"export_dir" yaml:"export_dir"`
}

// AppConfig is the top-level application configuration.
type AppConfig struct {
	API     APIConfig     `mapstructure:"api" yaml:"api"`
	Poll    PollConfig    `mapstructure:"poll" yaml:"poll"`
	Display DisplayConfig `mapstructure:"display" yaml:"display"`
	Log     LogConfig     `mapstructure:"log" yaml:"log"`
	Archive ArchiveConfig `mapstructure:"archive" yaml:"archive"`
}

// PollInterval returns the poll cadence as a duration.
func (c *AppConfig) PollInterval() time.Duration {
	return time.Duration(c.Poll.IntervalSec) * time.Second
}

// RequestTimeout returns the per-request HTTP timeout.
func (c *AppConfig) RequestTimeout() time.Duration {
	return time.Duration(c.API.TimeoutSec) * time.Second
}

// Validate reports configuration values the client cannot run with.
func (c *AppConfig) Validate() error {
	if c.API.BaseURL == "" {
		return errors.New("api.base_url is required")
	}
	switch c.API.AuthMode {
	case AuthModeQuery, AuthModeBearer:
	default:
		return fmt.Errorf("api.auth_mode must be %q or %q, got %q",
			AuthModeQuery, AuthModeBearer, c.API.AuthMode)
	}
	if c.Poll.IntervalSec <= 0 {
		return fmt.Errorf("poll.interval_sec must be positive, got %d", c.Poll.IntervalSec)
	}
	return nil
}

// DefaultConfigDir returns ~/.config/tempmail.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "tempmail")
}

// DefaultConfigPath returns the default path for the configuration file,
// located at ~/.config/tempmail/config.yaml.
func DefaultConfigPath() string {
	return filepath.Join(DefaultConfigDir(), "config.yaml")
}

func setDefaults(v *viper.Viper) {
	dir := DefaultConfigDir()
	v.SetDefault("api.base_url", "http://localhost:8080")
	v.SetDefault("api.auth_mode", AuthModeQuery)
	v.SetDefault("api.timeout_sec", 30)
	v.SetDefault("api.max_retries", 3)
	v.SetDefault("poll.interval_sec", 10)
	v.SetDefault("display.lang", "en")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.file", filepath.Join(dir, "tempmail.log"))
	v.SetDefault("archive.db_path", filepath.Join(dir, "archive.db"))
	v.SetDefault("archive.export_dir", filepath.Join(dir, "export"))
}

// LoadConfig reads configuration from the given YAML file path using Viper.
// Values may be overridden by TEMPMAIL_* environment variables and by
// flags bound from fs (which may be nil). A missing file is not an error.
func LoadConfig(path string, fs *pflag.FlagSet) (*AppConfig, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("tempmail")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if fs != nil {
		bindings := map[string]string{
			"api.base_url":      "base-url",
			"api.auth_mode":     "auth-mode",
			"poll.interval_sec": "interval",
			"display.lang":      "lang",
			"log.level":         "log-level",
		}
		for key, flag := range bindings {
			if f := fs.Lookup(flag); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("binding flag %s: %w", flag, err)
				}
			}
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		var pathErr *os.PathError
		if !errors.As(err, &notFound) && !errors.As(err, &pathErr) {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	}

	cfg := &AppConfig{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	cfg.API.AuthMode = strings.ToLower(cfg.API.AuthMode)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// SaveConfig writes the given configuration to a YAML file at path,
// creating parent directories if needed.
func SaveConfig(path string, cfg *AppConfig) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory %s: %w", dir, err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.Set("api", cfg.API)
	v.Set("poll", cfg.Poll)
	v.Set("display", cfg.Display)
	v.Set("log", cfg.Log)
	v.Set("archive", cfg.Archive)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}

	return nil
}
