package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/sigreer/hwgod/internal/report"
	"github.com/sigreer/hwgod/internal/version"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "hwgod",
	Short: "Hardware sensor and SMART telemetry monitor",
	Long: `hwgod discovers memory, storage and thermal hardware, exposes each
device's measured values as sensors, and follows hardware as it appears
and disappears.

Storage drives are read through raw ATA SMART commands, which needs
root (Linux) or Administrator (Windows) privileges.`,
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show every hardware node and its current sensor values",
	Run: func(cmd *cobra.Command, args []string) {
		jsonOut, _ := cmd.Flags().GetBool("json")
		cfg, logger := setup()

		c := openComputer(cfg, logger)
		defer c.Close()
		if err := c.Update(); err != nil {
			logger.Warn("update incomplete", "error", err)
		}

		var pinned pinLookup
		if store, err := openDB(cfg); err == nil {
			defer store.Close()
			pinned = pinLookup{settings: store}
		} else {
			logger.Debug("settings unavailable", "error", err)
		}

		nodes := report.Collect(c, pinned.isPinned)
		if jsonOut {
			if err := report.PrintJSON(os.Stdout, nodes); err != nil {
				fmt.Fprintf(os.Stderr, "Error encoding output: %v\n", err)
				os.Exit(1)
			}
			return
		}
		report.PrintStatus(os.Stdout, nodes)
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("hwgod %s\n", version.Version)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is /etc/hwgod/config.yaml)")

	statusCmd.Flags().Bool("json", false, "Output as JSON")

	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(monitorCmd)
	rootCmd.AddCommand(smartCmd)
	rootCmd.AddCommand(eventsCmd)
	rootCmd.AddCommand(drivesCmd)
	rootCmd.AddCommand(pinCmd)
	rootCmd.AddCommand(unpinCmd)
	rootCmd.AddCommand(pinsCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
