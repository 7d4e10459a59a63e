package model

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Storage backends for the session slots.
const (
	SessionBackendSQLite  = "sqlite"
	SessionBackendKeyring = "keyring"
)

// Cross-instance change feed backends.
const (
	SyncBackendLocal = "local"
	SyncBackendRedis = "redis"
	SyncBackendFile  = "file"
)

// APIConfig holds the portal REST API settings.
type APIConfig struct {
	BaseURL    string `mapstructure:"base_url" yaml:"base_url"`
	TimeoutSec int    `mapstructure:"timeout_sec" yaml:"timeout_sec"`
}

// SessionConfig selects where the token and identity slots live.
type SessionConfig struct {
	// Backend is "sqlite" or "keyring".
	Backend string `mapstructure:"backend" yaml:"backend"`

	// DBPath is the SQLite file shared by every client instance.
	DBPath string `mapstructure:"db_path" yaml:"db_path"`

	// KeyringDir is used by the file fallback of the keyring backend.
	KeyringDir string `mapstructure:"keyring_dir" yaml:"keyring_dir"`
}

// SyncConfig selects how other client instances learn about session changes.
type SyncConfig struct {
	Backend      string `mapstructure:"backend" yaml:"backend"`
	RedisAddr    string `mapstructure:"redis_addr" yaml:"redis_addr"`
	RedisChannel string `mapstructure:"redis_channel" yaml:"redis_channel"`
}

// NotificationsConfig holds poller settings.
type NotificationsConfig struct {
	PollIntervalSec int `mapstructure:"poll_interval_sec" yaml:"poll_interval_sec"`
}

// AlertsConfig holds the realtime alert feed settings.
type AlertsConfig struct {
	Enabled         bool   `mapstructure:"enabled" yaml:"enabled"`
	ProjectID       string `mapstructure:"project_id" yaml:"project_id"`
	CredentialsFile string `mapstructure:"credentials_file" yaml:"credentials_file"`
	Collection      string `mapstructure:"collection" yaml:"collection"`
	FreshnessSec    int    `mapstructure:"freshness_sec" yaml:"freshness_sec"`
	DismissSec      int    `mapstructure:"dismiss_sec" yaml:"dismiss_sec"`
}

// LogConfig controls the structured log output.
type LogConfig struct {
	File  string `mapstructure:"file" yaml:"file"`
	Level string `mapstructure:"level" yaml:"level"`
}

// AppConfig is the top-level application configuration.
type AppConfig struct {
	API           APIConfig           `mapstructure:"api" yaml:"api"`
	Session       SessionConfig       `mapstructure:"session" yaml:"session"`
	Sync          SyncConfig          `mapstructure:"sync" yaml:"sync"`
	Notifications NotificationsConfig `mapstructure:"notifications" yaml:"notifications"`
	Alerts        AlertsConfig        `mapstructure:"alerts" yaml:"alerts"`
	Log           LogConfig           `mapstructure:"log" yaml:"log"`
}

// PollInterval returns the notification poll interval.
func (c *AppConfig) PollInterval() time.Duration {
	return time.Duration(c.Notifications.PollIntervalSec) * time.Second
}

// FreshnessWindow returns the age limit for realtime alerts.
func (c *AppConfig) FreshnessWindow() time.Duration {
	return time.Duration(c.Alerts.FreshnessSec) * time.Second
}

// DismissAfter returns how long an alert stays on screen.
func (c *AppConfig) DismissAfter() time.Duration {
	return time.Duration(c.Alerts.DismissSec) * time.Second
}

// Validate checks the enumerated settings.
func (c *AppConfig) Validate() error {
	switch c.Session.Backend {
	case SessionBackendSQLite, SessionBackendKeyring:
	default:
		return fmt.Errorf("session.backend: unknown backend %q", c.Session.Backend)
	}
	switch c.Sync.Backend {
	case SyncBackendLocal, SyncBackendFile:
	case SyncBackendRedis:
		if c.Sync.RedisAddr == "" {
			return errors.New("sync.redis_addr is required for the redis backend")
		}
	default:
		return fmt.Errorf("sync.backend: unknown backend %q", c.Sync.Backend)
	}
	if c.Sync.Backend == SyncBackendFile && c.Session.Backend != SessionBackendSQLite {
		return errors.New("sync.backend file requires session.backend sqlite")
	}
	if c.Alerts.Enabled && c.Alerts.ProjectID == "" {
		return errors.New("alerts.project_id is required when alerts are enabled")
	}
	return nil
}

// DefaultConfigDir returns ~/.config/registry-portal.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "registry-portal")
}

// DefaultConfigPath returns the default path for the configuration file,
// located at ~/.config/registry-portal/config.yaml.
func DefaultConfigPath() string {
	return filepath.Join(DefaultConfigDir(), "config.yaml")
}

func setDefaults(v *viper.Viper) {
	dir := DefaultConfigDir()
	v.SetDefault("api.base_url", "http://localhost:5000/api")
	v.SetDefault("api.timeout_sec", 30)
	v.SetDefault("session.backend", SessionBackendSQLite)
	v.SetDefault("session.db_path", filepath.Join(dir, "portal.db"))
	v.SetDefault("session.keyring_dir", filepath.Join(dir, "credentials"))
	v.SetDefault("sync.backend", SyncBackendFile)
	v.SetDefault("sync.redis_addr", "")
	v.SetDefault("sync.redis_channel", "registry-portal:session")
	v.SetDefault("notifications.poll_interval_sec", 60)
	v.SetDefault("alerts.enabled", false)
	v.SetDefault("alerts.project_id", "")
	v.SetDefault("alerts.credentials_file", "")
	v.SetDefault("alerts.collection", "alerts")
	v.SetDefault("alerts.freshness_sec", 10)
	v.SetDefault("alerts.dismiss_sec", 8)
	v.SetDefault("log.file", filepath.Join(dir, "portal.log"))
	v.SetDefault("log.level", "info")
}

// LoadConfig reads configuration from the given YAML file path using Viper.
// A missing file yields the defaults. Every key can be overridden with a
// PORTAL_ prefixed environment variable, e.g. PORTAL_API_BASE_URL.
func LoadConfig(path string) (*AppConfig, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("PORTAL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

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

	if cfg.Notifications.PollIntervalSec <= 0 {
		cfg.Notifications.PollIntervalSec = 60
	}
	if cfg.Alerts.FreshnessSec <= 0 {
		cfg.Alerts.FreshnessSec = 10
	}
	if cfg.Alerts.DismissSec <= 0 {
		cfg.Alerts.DismissSec = 8
	}

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
	v.Set("session", cfg.Session)
	v.Set("sync", cfg.Sync)
	v.Set("notifications", cfg.Notifications)
	v.Set("alerts", cfg.Alerts)
	v.Set("log", cfg.Log)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}

	return nil
}
