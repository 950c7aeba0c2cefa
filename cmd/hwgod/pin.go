package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sigreer/hwgod/internal/hardware"
	"github.com/sigreer/hwgod/internal/tui"
)

var pinCmd = &cobra.Command{
	Use:   "pin <sensor-id>",
	Short: "Pin a sensor to the monitor header",
	Long: `Pin a sensor so it is shown in the header of 'hwgod monitor' and
marked in 'hwgod status'. Sensor identifiers are listed by 'hwgod status'.

Examples:
  hwgod pin hdd/0/temperature/0
  hwgod pin ram/load/0`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		setPin(args[0], true)
	},
}

var unpinCmd = &cobra.Command{
	Use:   "unpin <sensor-id>",
	Short: "Remove a sensor from the monitor header",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		setPin(args[0], false)
	},
}

var pinsCmd = &cobra.Command{
	Use:   "pins",
	Short: "List pinned sensors",
	Run: func(cmd *cobra.Command, args []string) {
		cfg, _ := setup()
		store := mustOpenDB(cfg)
		defer store.Close()

		keys, err := store.KeysWithSuffix(tui.PinSuffix)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error reading settings: %v\n", err)
			os.Exit(1)
		}
		for _, k := range keys {
			if v, ok, _ := store.Get(k); ok && v == "true" {
				fmt.Println(strings.TrimSuffix(k, "/"+tui.PinSuffix))
			}
		}
	},
}

func setPin(arg string, pin bool) {
	id, err := hardware.Parse(arg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid identifier %q: %v\n", arg, err)
		os.Exit(1)
	}

	cfg, _ := setup()
	store := mustOpenDB(cfg)
	defer store.Close()

	key := hardware.SettingKey(id, tui.PinSuffix)
	if pin {
		err = store.Set(key, "true")
	} else {
		err = store.Delete(key)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error saving setting: %v\n", err)
		os.Exit(1)
	}
	if pin {
		fmt.Printf("Pinned %s\n", id)
	} else {
		fmt.Printf("Unpinned %s\n", id)
	}
}
