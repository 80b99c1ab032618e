package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

type Config struct {
	// MPD connection
	MPD MPDConfig `koanf:"mpd"`

	// DatabasePath overrides the default XDG data location.
	DatabasePath string `koanf:"database_path"`

	// FullSyncInterval is the minimum time between full-catalog
	// reconciliation passes, e.g. "4h". Defaults to 4 hours.
	FullSyncInterval string `koanf:"full_sync_interval"`

	// Last.fm scrobbling (enabled when configured)
	Lastfm LastfmConfig `koanf:"lastfm"`

	// Desktop notifications for chart rank changes
	Notify NotifyConfig `koanf:"notify"`

	// Logging
	Log LogConfig `koanf:"log"`
}

// MPDConfig holds the MPD server connection settings.
type MPDConfig struct {
	Address  string `koanf:"address"`  // e.g. "localhost:6600"
	Password string `koanf:"password"` // optional
}

// LastfmConfig holds Last.fm scrobbling configuration.
type LastfmConfig struct {
	APIKey     string `koanf:"api_key"`
	APISecret  string `koanf:"api_secret"`
	SessionKey string `koanf:"session_key"`
}

// NotifyConfig holds desktop notification settings.
type NotifyConfig struct {
	RankChanges *bool `koanf:"rank_changes"` // default: true
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string `koanf:"level"` // "debug", "info", "warn", "error"
	Path  string `koanf:"path"`  // empty means stderr
}

func Load() (*Config, error) {
	k := koanf.New(".")

	// Try config files in order of priority (last wins)
	for _, path := range getConfigPaths() {
		if _, err := os.Stat(path); err == nil {
			if err := k.Load(file.Provider(path), toml.Parser()); err != nil {
				return nil, err
			}
		}
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, err
	}

	if cfg.MPD.Address == "" {
		cfg.MPD.Address = "localhost:6600"
	}

	// Normalize address (strip any scheme prefix)
	cfg.MPD.Address = strings.TrimPrefix(cfg.MPD.Address, "tcp://")

	// Expand ~ in database_path
	if cfg.DatabasePath != "" {
		cfg.DatabasePath = expandPath(cfg.DatabasePath)
	}
	if cfg.Log.Path != "" {
		cfg.Log.Path = expandPath(cfg.Log.Path)
	}

	return cfg, nil
}

func getConfigPaths() []string {
	paths := []string{}

	// 1. ~/.config/sillon/config.toml
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "sillon", "config.toml"))
	}

	// 2. ./config.toml (pwd, highest priority)
	paths = append(paths, "config.toml")

	return paths
}

func expandPath(path string) string {
	if path != "" && path[0] == '~' {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[1:])
		}
	}
	return path
}

// HasLastfmConfig returns true if Last.fm scrobbling is configured.
func (c *Config) HasLastfmConfig() bool {
	return c.Lastfm.APIKey != "" && c.Lastfm.APISecret != "" && c.Lastfm.SessionKey != ""
}

// RankNotificationsEnabled reports whether rank-change notifications
// should be sent (default: true).
func (c *Config) RankNotificationsEnabled() bool {
	if c.Notify.RankChanges == nil {
		return true
	}
	return *c.Notify.RankChanges
}

// GetFullSyncInterval returns the configured full-sync interval with the
// default applied. Invalid values fall back to the default.
func (c *Config) GetFullSyncInterval() time.Duration {
	const def = 4 * time.Hour
	if c.FullSyncInterval == "" {
		return def
	}
	d, err := time.ParseDuration(c.FullSyncInterval)
	if err != nil || d <= 0 {
		return def
	}
	return d
}
