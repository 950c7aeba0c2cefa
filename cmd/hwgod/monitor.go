package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/sigreer/hwgod/internal/db"
	"github.com/sigreer/hwgod/internal/hardware"
	"github.com/sigreer/hwgod/internal/tui"
)

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Live monitoring with auto-refresh",
	Long: `Live hardware monitor in the terminal.

Every sensor is refreshed once per monitor.interval. Storage discovery is
repeated every monitor.rescan_interval so hot-plugged drives appear and
removed drives disappear; a negative interval disables rescans.

Hardware appearing and disappearing is written to the event journal.
With --record, every sensor value of every tick is written to the sample
log as well.

Keys: up/down select, p pin or unpin, r rescan, space pause, q quit.`,
	Run: runMonitor,
}

func init() {
	monitorCmd.Flags().DurationP("interval", "i", 0, "refresh interval (default from config)")
	monitorCmd.Flags().Bool("record", false, "Record sensor samples to the database")
	monitorCmd.Flags().Duration("retention", 7*24*time.Hour, "Drop recorded samples older than this")
}

func runMonitor(cmd *cobra.Command, args []string) {
	interval, _ := cmd.Flags().GetDuration("interval")
	record, _ := cmd.Flags().GetBool("record")
	retention, _ := cmd.Flags().GetDuration("retention")

	if !term.IsTerminal(int(os.Stdout.Fd())) {
		fmt.Fprintln(os.Stderr, "Error: monitor needs a terminal, use 'hwgod status' instead")
		os.Exit(1)
	}

	cfg, logger := setup()
	if interval <= 0 {
		interval = cfg.Monitor.Interval
	}

	store := mustOpenDB(cfg)
	defer store.Close()

	if record && retention > 0 {
		if n, err := store.PruneSamples(time.Now().Add(-retention)); err != nil {
			logger.Warn("failed to prune samples", "error", err)
		} else if n > 0 {
			logger.Info("pruned samples", "count", n)
		}
	}

	c := openComputer(cfg, logger)
	journal := db.NewJournal(store, logger)
	journal.Attach(c)
	defer func() {
		if err := c.Close(); err != nil {
			logger.Warn("failed to close hardware", "error", err)
		}
		journal.Detach()
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if cfg.Monitor.RescanInterval > 0 {
		go rescanLoop(ctx, c, cfg.Monitor.RescanInterval, logger)
	}

	var opts []tui.Option
	if record {
		opts = append(opts, tui.WithTickHook(journal.RecordTick))
	}
	if err := tui.Run(tui.NewModel(c, store, interval, opts...)); err != nil {
		fmt.Fprintf(os.Stderr, "Error running monitor: %v\n", err)
		os.Exit(1)
	}
}

// rescanLoop asks the computer to rediscover hardware until ctx ends
func rescanLoop(ctx context.Context, c *hardware.Computer, every time.Duration, logger *slog.Logger) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := c.Rescan(); err != nil {
				logger.Debug("rescan incomplete", "error", err)
			}
		}
	}
}
