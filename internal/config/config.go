package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Cache   CacheConfig   `mapstructure:"cache"`
	UI      UIConfig      `mapstructure:"ui"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// ServerConfig holds catalogue API configuration
type ServerConfig struct {
	URL   string `mapstructure:"url"`   // API base URL
	Token string `mapstructure:"token"` // API token
}

// CacheConfig holds local data cache configuration
type CacheConfig struct {
	Dir     string `mapstructure:"dir"`
	Enabled bool   `mapstructure:"enabled"` // false keeps the cache in memory only
}

// UIConfig holds UI configuration
type UIConfig struct {
	ShowGroups bool `mapstructure:"show_groups"` // Render group headers between children
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	File  string `mapstructure:"file"`
	Level string `mapstructure:"level"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			URL: "https://api.raywenderlich.com/api",
		},
		Cache: CacheConfig{
			Dir:     defaultCachePath(),
			Enabled: true,
		},
		UI: UIConfig{
			ShowGroups: true,
		},
		Logging: LoggingConfig{
			File:  defaultLogPath(),
			Level: "INFO",
		},
	}
}

// defaultLogPath returns the default log file path for the current OS
func defaultLogPath() string {
	switch runtime.GOOS {
	case "windows":
		return filepath.Join(os.Getenv("APPDATA"), "lectern", "lectern.log")
	default:
		home, _ := os.UserHomeDir()
		return filepath.Join(home, ".local", "share", "lectern", "lectern.log")
	}
}

// defaultConfigPath returns the default config directory for the current OS
func defaultConfigPath() string {
	switch runtime.GOOS {
	case "windows":
		return filepath.Join(os.Getenv("APPDATA"), "lectern")
	default:
		home, _ := os.UserHomeDir()
		return filepath.Join(home, ".config", "lectern")
	}
}

// defaultCachePath returns the default cache directory path for the current OS
func defaultCachePath() string {
	switch runtime.GOOS {
	case "windows":
		return filepath.Join(os.Getenv("LOCALAPPDATA"), "lectern", "cache")
	default:
		home, _ := os.UserHomeDir()
		return filepath.Join(home, ".local", "share", "lectern", "cache")
	}
}

// newViper returns a viper instance with defaults and env overrides bound.
// Every key needs a default for LECTERN_* variables to reach Unmarshal.
func newViper(defaults *Config) *viper.Viper {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	v.SetDefault("server.url", defaults.Server.URL)
	v.SetDefault("server.token", defaults.Server.Token)
	v.SetDefault("cache.dir", defaults.Cache.Dir)
	v.SetDefault("cache.enabled", defaults.Cache.Enabled)
	v.SetDefault("ui.show_groups", defaults.UI.ShowGroups)
	v.SetDefault("logging.file", defaults.Logging.File)
	v.SetDefault("logging.level", defaults.Logging.Level)

	// Environment variable overrides (LECTERN_SERVER_TOKEN, ...)
	v.SetEnvPrefix("LECTERN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// LoadConfig loads configuration from file and environment.
// An empty path searches the default config directory and the working directory.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	v := newViper(cfg)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath(defaultConfigPath())
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		switch {
		case errors.As(err, &notFound):
			// Config file not found is OK, use defaults
		case path != "" && errors.Is(err, fs.ErrNotExist):
			// Explicit path that does not exist yet
		default:
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("error parsing config: %w", err)
	}

	cfg.Cache.Dir = expandHome(cfg.Cache.Dir)
	cfg.Logging.File = expandHome(cfg.Logging.File)
	return cfg, nil
}

// SaveConfig writes cfg to path, or to the default location when path is empty
func SaveConfig(cfg *Config, path string) error {
	if path == "" {
		path = filepath.Join(defaultConfigPath(), "config.yaml")
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	v := viper.New()
	// Set fields individually to ensure correct key names (snake_case)
	v.Set("server.url", cfg.Server.URL)
	v.Set("server.token", cfg.Server.Token)
	v.Set("cache.dir", cfg.Cache.Dir)
	v.Set("cache.enabled", cfg.Cache.Enabled)
	v.Set("ui.show_groups", cfg.UI.ShowGroups)
	v.Set("logging.file", cfg.Logging.File)
	v.Set("logging.level", cfg.Logging.Level)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// IsConfigured returns true if the server URL and token are set
func (c *Config) IsConfigured() bool {
	return c.Server.URL != "" && c.Server.Token != ""
}

// CachePath returns the cache directory, or "" when the cache is memory-only
func (c *Config) CachePath() string {
	if !c.Cache.Enabled {
		return ""
	}
	return c.Cache.Dir
}

// ClearCache removes all cached data under dir
func ClearCache(dir string) error {
	if dir == "" {
		return nil
	}
	if err := os.RemoveAll(dir); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to clear cache: %w", err)
	}
	return nil
}

func expandHome(path string) string {
	if !strings.HasPrefix(path, "~") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[1:])
}
