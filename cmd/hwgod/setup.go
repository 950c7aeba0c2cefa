package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/sigreer/hwgod/internal/config"
	"github.com/sigreer/hwgod/internal/db"
	"github.com/sigreer/hwgod/internal/hardware"
	"github.com/sigreer/hwgod/internal/logging"
	"github.com/sigreer/hwgod/internal/memory"
	"github.com/sigreer/hwgod/internal/storage"
	"github.com/sigreer/hwgod/internal/thermal"
	"github.com/sigreer/hwgod/internal/tui"
)

// setup loads the config and builds the logger, exiting on failure
func setup() (*config.Config, *slog.Logger) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	logger, err := logging.New(os.Stderr, cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error configuring logging: %v\n", err)
		os.Exit(1)
	}
	slog.SetDefault(logger)
	return cfg, logger
}

// factories returns one group factory per enabled hardware group
func factories(cfg *config.Config, logger *slog.Logger) []hardware.GroupFactory {
	history := hardware.HistoryPolicy{
		Length: cfg.Monitor.HistoryLength,
		Window: cfg.Monitor.HistoryWindow,
	}

	var out []hardware.GroupFactory
	if cfg.Memory.IsEnabled() {
		out = append(out, func() (hardware.Group, error) {
			return memory.New(memory.Options{History: history, Logger: logger}), nil
		})
	}
	if cfg.Storage.IsEnabled() {
		out = append(out, func() (hardware.Group, error) {
			return storage.New(storage.Options{
				MaxDrives:      cfg.Storage.MaxDrives,
				Excluded:       cfg.Storage.Excluded,
				CommandTimeout: cfg.Storage.CommandTimeout,
				Watchdog:       cfg.Storage.Watchdog,
				History:        history,
				Logger:         logger,
			}), nil
		})
	}
	if cfg.Thermal.IsEnabled() {
		out = append(out, func() (hardware.Group, error) {
			return thermal.New(thermal.Options{History: history, Logger: logger}), nil
		})
	}
	return out
}

// openComputer builds and opens the computer, exiting on failure
func openComputer(cfg *config.Config, logger *slog.Logger) *hardware.Computer {
	c := hardware.NewComputer(logger, factories(cfg, logger)...)
	if err := c.Open(); err != nil {
		fmt.Fprintf(os.Stderr, "Error opening hardware: %v\n", err)
		os.Exit(1)
	}
	return c
}

func openDB(cfg *config.Config) (*db.DB, error) {
	return db.New(cfg.Database.Path)
}

// mustOpenDB opens the database, exiting on failure
func mustOpenDB(cfg *config.Config) *db.DB {
	store, err := openDB(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening database: %v\n", err)
		os.Exit(1)
	}
	return store
}

// pinLookup answers whether a sensor is pinned. The zero value reports
// nothing pinned.
type pinLookup struct {
	settings hardware.Settings
}

func (p pinLookup) isPinned(s *hardware.Sensor) bool {
	if p.settings == nil {
		return false
	}
	v, ok, err := p.settings.Get(hardware.SettingKey(s.ID(), tui.PinSuffix))
	return err == nil && ok && v == "true"
}
