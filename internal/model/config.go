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

// EnvPrefix is prepended to every environment override (NOTEHUB_SERVER_BASE_URL, ...).
const EnvPrefix = "NOTEHUB"

// ServerConfig points the client at the portal API and its realtime endpoint.
type ServerConfig struct {
	// BaseURL is the root of the HTTP API (e.g., https://notes.example.edu).
	BaseURL string `mapstructure:"base_url" yaml:"base_url"`

	// SocketURL is the websocket endpoint. Derived from BaseURL when empty.
	SocketURL string `mapstructure:"socket_url" yaml:"socket_url"`

	// RequestTimeoutSec bounds every HTTP request.
	RequestTimeoutSec int `mapstructure:"request_timeout_sec" yaml:"request_timeout_sec"`

	// BreakerTimeoutSec is how long the circuit stays open before probing again.
	BreakerTimeoutSec int `mapstructure:"breaker_timeout_sec" yaml:"breaker_timeout_sec"`
}

// RealtimeConfig controls the reconnection policy of the live channel.
type RealtimeConfig struct {
	ReconnectDelayMs     int `mapstructure:"reconnect_delay_ms" yaml:"reconnect_delay_ms"`
	MaxReconnectAttempts int `mapstructure:"max_reconnect_attempts" yaml:"max_reconnect_attempts"`
}

// DisplayConfig holds UI/rendering preferences.
type DisplayConfig struct {
	Theme            string `mapstructure:"theme" yaml:"theme"`
	AlertDurationSec int    `mapstructure:"alert_duration_sec" yaml:"alert_duration_sec"`
}

// LogConfig configures the rotating log file.
type LogConfig struct {
	Level      string `mapstructure:"level" yaml:"level"`
	Format     string `mapstructure:"format" yaml:"format"`
	File       string `mapstructure:"file" yaml:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb" yaml:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days" yaml:"max_age_days"`
}

// DevServerConfig configures the local reference server.
type DevServerConfig struct {
	Addr   string `mapstructure:"addr" yaml:"addr"`
	DBPath string `mapstructure:"db_path" yaml:"db_path"`
}

// AppConfig is the top-level application configuration.
type AppConfig struct {
	Server    ServerConfig    `mapstructure:"server" yaml:"server"`
	Realtime  RealtimeConfig  `mapstructure:"realtime" yaml:"realtime"`
	Display   DisplayConfig   `mapstructure:"display" yaml:"display"`
	Log       LogConfig       `mapstructure:"log" yaml:"log"`
	DevServer DevServerConfig `mapstructure:"devserver" yaml:"devserver"`

	// LastIdentity is restored on startup when a session credential exists.
	LastIdentity *Identity `mapstructure:"last_identity" yaml:"last_identity,omitempty"`
}

// ReconnectDelay returns the fixed delay between reconnection attempts.
func (c RealtimeConfig) ReconnectDelay() time.Duration {
	return time.Duration(c.ReconnectDelayMs) * time.Millisecond
}

// RequestTimeout returns the per-request HTTP timeout.
func (c ServerConfig) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutSec) * time.Second
}

// BreakerTimeout returns the open-state duration of the API circuit breaker.
func (c ServerConfig) BreakerTimeout() time.Duration {
	return time.Duration(c.BreakerTimeoutSec) * time.Second
}

// WebsocketURL returns SocketURL, or BaseURL with its scheme switched to
// ws/wss and a /ws path when SocketURL is not set.
func (c ServerConfig) WebsocketURL() string {
	if c.SocketURL != "" {
		return c.SocketURL
	}
	base := strings.TrimRight(c.BaseURL, "/")
	switch {
	case strings.HasPrefix(base, "https://"):
		base = "wss://" + strings.TrimPrefix(base, "https://")
	case strings.HasPrefix(base, "http://"):
		base = "ws://" + strings.TrimPrefix(base, "http://")
	}
	return base + "/ws"
}

// AlertDuration returns how long a toast stays on screen.
func (c DisplayConfig) AlertDuration() time.Duration {
	return time.Duration(c.AlertDurationSec) * time.Second
}

// ConfigDir returns ~/.config/notehub, falling back to the working directory.
func ConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "notehub")
}

// DefaultConfigPath returns the default path for the configuration file,
// located at ~/.config/notehub/config.yaml.
func DefaultConfigPath() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}

// defaultAppConfig returns a sensible default configuration.
func defaultAppConfig() *AppConfig {
	return &AppConfig{
		Server: ServerConfig{
			BaseURL:           "http://localhost:8088",
			RequestTimeoutSec: 15,
			BreakerTimeoutSec: 10,
		},
		Realtime: RealtimeConfig{
			ReconnectDelayMs:     2000,
			MaxReconnectAttempts: 5,
		},
		Display: DisplayConfig{
			Theme:            "default",
			AlertDurationSec: 4,
		},
		Log: LogConfig{
			Level:      "info",
			Format:     "json",
			File:       filepath.Join(ConfigDir(), "logs", "notehub.log"),
			MaxSizeMB:  10,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
		DevServer: DevServerConfig{
			Addr:   ":8088",
			DBPath: filepath.Join(ConfigDir(), "devserver.db"),
		},
	}
}

// newViper builds a viper instance seeded with defaults and env overrides.
func newViper(path string) *viper.Viper {
	def := defaultAppConfig()

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("server.base_url", def.Server.BaseURL)
	v.SetDefault("server.socket_url", "")
	v.SetDefault("server.request_timeout_sec", def.Server.RequestTimeoutSec)
	v.SetDefault("server.breaker_timeout_sec", def.Server.BreakerTimeoutSec)
	v.SetDefault("realtime.reconnect_delay_ms", def.Realtime.ReconnectDelayMs)
	v.SetDefault("realtime.max_reconnect_attempts", def.Realtime.MaxReconnectAttempts)
	v.SetDefault("display.theme", def.Display.Theme)
	v.SetDefault("display.alert_duration_sec", def.Display.AlertDurationSec)
	v.SetDefault("log.level", def.Log.Level)
	v.SetDefault("log.format", def.Log.Format)
	v.SetDefault("log.file", def.Log.File)
	v.SetDefault("log.max_size_mb", def.Log.MaxSizeMB)
	v.SetDefault("log.max_backups", def.Log.MaxBackups)
	v.SetDefault("log.max_age_days", def.Log.MaxAgeDays)
	v.SetDefault("devserver.addr", def.DevServer.Addr)
	v.SetDefault("devserver.db_path", def.DevServer.DBPath)

	return v
}

// LoadConfig reads configuration from the given YAML file path using Viper.
// A missing file is not an error: defaults plus environment overrides apply.
func LoadConfig(path string) (*AppConfig, error) {
	v := newViper(path)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		var pathErr *os.PathError
		if !errors.As(err, &notFound) && !errors.As(err, &pathErr) {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	}

	cfg := defaultAppConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	if cfg.Realtime.MaxReconnectAttempts < 0 {
		cfg.Realtime.MaxReconnectAttempts = 0
	}
	if cfg.Realtime.ReconnectDelayMs <= 0 {
		cfg.Realtime.ReconnectDelayMs = defaultAppConfig().Realtime.ReconnectDelayMs
	}
	if cfg.Display.AlertDurationSec <= 0 {
		cfg.Display.AlertDurationSec = defaultAppConfig().Display.AlertDurationSec
	}
	if cfg.LastIdentity != nil && !cfg.LastIdentity.Valid() {
		cfg.LastIdentity = nil
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

	v.Set("server", cfg.Server)
	v.Set("realtime", cfg.Realtime)
	v.Set("display", cfg.Display)
	v.Set("log", cfg.Log)
	v.Set("devserver", cfg.DevServer)
	if cfg.LastIdentity != nil {
		v.Set("last_identity", cfg.LastIdentity)
	}

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}

	return nil
}
