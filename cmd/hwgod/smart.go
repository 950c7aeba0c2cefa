package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/sigreer/hwgod/internal/hardware"
	"github.com/sigreer/hwgod/internal/report"
	"github.com/sigreer/hwgod/internal/storage"
)

var smartCmd = &cobra.Command{
	Use:   "smart [id...]",
	Short: "Show raw SMART attributes and thresholds",
	Long: `Read the SMART attribute and threshold tables of every drive, or of the
drives given by identifier.

Examples:
  hwgod smart
  hwgod smart hdd/0
  hwgod smart hdd/0 hdd/2 --json`,
	Run: runSmart,
}

func init() {
	smartCmd.Flags().Bool("json", false, "Output as JSON")
}

func runSmart(cmd *cobra.Command, args []string) {
	jsonOut, _ := cmd.Flags().GetBool("json")

	want := make(map[hardware.Identifier]bool)
	for _, a := range args {
		id, err := hardware.Parse(a)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Invalid identifier %q: %v\n", a, err)
			os.Exit(1)
		}
		want[id] = true
	}

	cfg, logger := setup()
	cfg.Memory.Enabled = new(bool)
	cfg.Thermal.Enabled = new(bool)

	c := openComputer(cfg, logger)
	defer c.Close()
	if err := c.Update(); err != nil {
		logger.Warn("update incomplete", "error", err)
	}

	var reports []report.SmartReport
	for _, n := range c.Hardware() {
		d, ok := n.Device().(*storage.Drive)
		if !ok {
			continue
		}
		if len(want) > 0 && !want[n.ID()] {
			continue
		}
		delete(want, n.ID())
		reports = append(reports, report.NewSmartReport(
			n.ID().String(), n.Name(), d.Identity(), d.Size(), d.SmartSupported(), d.Entries()))
	}
	for id := range want {
		fmt.Fprintf(os.Stderr, "Not found: %s\n", id)
	}

	if jsonOut {
		if err := report.PrintSmartJSON(os.Stdout, reports); err != nil {
			fmt.Fprintf(os.Stderr, "Error encoding output: %v\n", err)
			os.Exit(1)
		}
		return
	}
	if len(reports) == 0 {
		fmt.Println("No drives found")
		return
	}
	for i, r := range reports {
		if i > 0 {
			fmt.Println()
		}
		report.PrintSmart(os.Stdout, r)
	}
}
