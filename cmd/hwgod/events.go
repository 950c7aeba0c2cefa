package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/sigreer/hwgod/internal/db"
	"github.com/sigreer/hwgod/internal/hardware"
	"github.com/sigreer/hwgod/internal/report"
)

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Show hardware that appeared and disappeared",
	Long: `List the hardware event journal, newest first.

Events are recorded while 'hwgod monitor' runs: one entry when a session
starts and stops, and one for every hardware node added or removed.`,
	Run: runEvents,
}

var drivesCmd = &cobra.Command{
	Use:   "drives",
	Short: "List every drive that has been seen",
	Run:   runDrives,
}

func init() {
	eventsCmd.Flags().Int("limit", 50, "Maximum number of events to show")
	eventsCmd.Flags().String("id", "", "Only show events for this identifier and below")
	eventsCmd.Flags().Duration("since", 0, "Only show events newer than this (e.g. 24h)")
	eventsCmd.Flags().Bool("json", false, "Output as JSON")

	drivesCmd.Flags().Bool("json", false, "Output as JSON")
}

func runEvents(cmd *cobra.Command, args []string) {
	limit, _ := cmd.Flags().GetInt("limit")
	idFilter, _ := cmd.Flags().GetString("id")
	since, _ := cmd.Flags().GetDuration("since")
	jsonOut, _ := cmd.Flags().GetBool("json")

	cfg, _ := setup()
	store := mustOpenDB(cfg)
	defer store.Close()

	var events []*db.HardwareEvent
	var err error
	switch {
	case idFilter != "":
		id, perr := hardware.Parse(idFilter)
		if perr != nil {
			fmt.Fprintf(os.Stderr, "Invalid identifier %q: %v\n", idFilter, perr)
			os.Exit(1)
		}
		events, err = store.GetEventsFor(id.String(), limit)
	case since > 0:
		events, err = store.GetEventsSince(time.Now().Add(-since))
	default:
		events, err = store.GetRecentEvents(limit)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading events: %v\n", err)
		os.Exit(1)
	}

	if jsonOut {
		printJSON(events)
		return
	}
	report.PrintEvents(os.Stdout, events, time.Now())
}

func runDrives(cmd *cobra.Command, args []string) {
	jsonOut, _ := cmd.Flags().GetBool("json")

	cfg, _ := setup()
	store := mustOpenDB(cfg)
	defer store.Close()

	drives, err := store.GetAllDrives()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading drives: %v\n", err)
		os.Exit(1)
	}
	if jsonOut {
		printJSON(drives)
		return
	}
	report.PrintDrives(os.Stdout, drives, time.Now())
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		fmt.Fprintf(os.Stderr, "Error encoding output: %v\n", err)
		os.Exit(1)
	}
}
