package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"meshmon/internal/device"
)

var readCmd = &cobra.Command{
	Use:   "read",
	Short: "Read a device snapshot from a radio",
	Long: `Connect to a radio, run the config handshake and print the resulting
snapshot. The target is a configured connection or an ad-hoc one given
with --tcp or --serial.

Examples:
  meshmon read
  meshmon read -c tcp-meshtastic.local
  meshmon read --tcp 192.168.1.40
  meshmon read --serial /dev/ttyUSB0`,
	Args: cobra.NoArgs,
	Run:  runRead,
}

func init() {
	addTargetFlags(readCmd)
	readCmd.Flags().Bool("json", false, "output as JSON")
}

func runRead(cmd *cobra.Command, args []string) {
	jsonOut, _ := cmd.Flags().GetBool("json")

	spec, err := targetSpec(cmd)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	snapshot, err := device.NewManager().Read(context.Background(), spec)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading %s: %v\n", spec.Describe(), err)
		os.Exit(1)
	}

	if jsonOut {
		if err := printJSON(snapshot.AsMap()); err != nil {
			fmt.Fprintf(os.Stderr, "Error encoding output: %v\n", err)
			os.Exit(1)
		}

		return
	}
	printSnapshot(os.Stdout, snapshot)
}
