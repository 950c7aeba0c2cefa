package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Monitor  Monitor  `yaml:"monitor"`
	Storage  Storage  `yaml:"storage"`
	Memory   Group    `yaml:"memory"`
	Thermal  Group    `yaml:"thermal"`
	Database Database `yaml:"database"`
	Log      Log      `yaml:"log"`
}

type Monitor struct {
	// Interval between update ticks
	Interval time.Duration `yaml:"interval"`
	// RescanInterval between storage discovery passes, negative disables
	RescanInterval time.Duration `yaml:"rescan_interval"`
	// HistoryLength is the number of samples kept per sensor
	HistoryLength int `yaml:"history_length"`
	// HistoryWindow drops samples older than this
	HistoryWindow time.Duration `yaml:"history_window"`
}

type Storage struct {
	Enabled *bool `yaml:"enabled,omitempty"`
	// MaxDrives bounds index probing when enumeration finds nothing
	MaxDrives      int           `yaml:"max_drives"`
	Exclude        []int         `yaml:"exclude,omitempty"`
	CommandTimeout time.Duration `yaml:"command_timeout"`
	Watchdog       time.Duration `yaml:"watchdog"`
}

type Group struct {
	Enabled *bool `yaml:"enabled,omitempty"`
}

type Database struct {
	Path string `yaml:"path"`
}

type Log struct {
	// Level: debug, info, warn, error
	Level string `yaml:"level"`
	// Format: text, json or auto (text on a terminal, json otherwise)
	Format string `yaml:"format"`
}

// defaultConfig provides baseline settings; hardware is discovered dynamically
var defaultConfig = Config{
	Monitor: Monitor{
		Interval:       time.Second,
		RescanInterval: time.Minute,
		HistoryLength:  600,
		HistoryWindow:  10 * time.Minute,
	},
	Storage: Storage{
		MaxDrives:      8,
		CommandTimeout: 20 * time.Second,
		Watchdog:       30 * time.Second,
	},
	Database: Database{
		Path: defaultDatabasePath(),
	},
	Log: Log{
		Level:  "warn",
		Format: "text",
	},
}

func defaultDatabasePath() string {
	if os.Geteuid() == 0 {
		return "/var/lib/hwgod/hwgod.db"
	}
	return filepath.Join(os.Getenv("HOME"), ".local/share/hwgod/hwgod.db")
}

// Default returns the built-in configuration.
func Default() *Config {
	cfg := defaultConfig
	return &cfg
}

func Load(path string) (*Config, error) {
	if path == "" {
		// Try default locations
		candidates := []string{
			"/etc/hwgod/config.yaml",
			filepath.Join(os.Getenv("HOME"), ".config/hwgod/config.yaml"),
			"config.yaml",
		}
		for _, c := range candidates {
			if _, err := os.Stat(c); err == nil {
				path = c
				break
			}
		}
	}

	cfg := Config{}
	if path == "" {
		// No config file found - use defaults
		cfg = defaultConfig
	} else {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}

	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyDefaults fills missing fields from defaultConfig
func (c *Config) applyDefaults() {
	d := defaultConfig
	if c.Monitor.Interval == 0 {
		c.Monitor.Interval = d.Monitor.Interval
	}
	if c.Monitor.RescanInterval == 0 {
		c.Monitor.RescanInterval = d.Monitor.RescanInterval
	}
	if c.Monitor.HistoryLength == 0 {
		c.Monitor.HistoryLength = d.Monitor.HistoryLength
	}
	if c.Monitor.HistoryWindow == 0 {
		c.Monitor.HistoryWindow = d.Monitor.HistoryWindow
	}
	if c.Storage.MaxDrives == 0 {
		c.Storage.MaxDrives = d.Storage.MaxDrives
	}
	if c.Storage.CommandTimeout == 0 {
		c.Storage.CommandTimeout = d.Storage.CommandTimeout
	}
	if c.Storage.Watchdog == 0 {
		c.Storage.Watchdog = d.Storage.Watchdog
	}
	if c.Database.Path == "" {
		c.Database.Path = d.Database.Path
	}
	if c.Log.Level == "" {
		c.Log.Level = d.Log.Level
	}
	if c.Log.Format == "" {
		c.Log.Format = d.Log.Format
	}
}

func (c *Config) validate() error {
	if c.Monitor.Interval < 100*time.Millisecond {
		return fmt.Errorf("monitor.interval %s is below 100ms", c.Monitor.Interval)
	}
	if c.Monitor.HistoryLength < 0 {
		return fmt.Errorf("monitor.history_length must not be negative")
	}
	if c.Storage.MaxDrives < 0 {
		return fmt.Errorf("storage.max_drives must not be negative")
	}
	if c.Storage.Watchdog > 0 && c.Storage.Watchdog < c.Storage.CommandTimeout {
		return fmt.Errorf("storage.watchdog %s is shorter than storage.command_timeout %s",
			c.Storage.Watchdog, c.Storage.CommandTimeout)
	}
	switch c.Log.Format {
	case "text", "json", "auto":
	default:
		return fmt.Errorf("log.format must be text, json or auto, got %q", c.Log.Format)
	}
	return nil
}

// IsEnabled reports whether the group is switched on; groups default to on.
func (g Group) IsEnabled() bool {
	return g.Enabled == nil || *g.Enabled
}

// IsEnabled reports whether storage monitoring is switched on.
func (s Storage) IsEnabled() bool {
	return s.Enabled == nil || *s.Enabled
}

// Excluded reports whether a drive index is excluded.
func (s Storage) Excluded(index int) bool {
	for _, x := range s.Exclude {
		if x == index {
			return true
		}
	}
	return false
}
