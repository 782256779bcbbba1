package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"meshmon/internal/device"
)

var rebootCmd = &cobra.Command{
	Use:   "reboot",
	Short: "Reboot a radio",
	Long: `Ask the radio to restart. The device drops off the mesh for a short
while; the next poll cycle picks it back up.`,
	Args: cobra.NoArgs,
	Run:  runReboot,
}

var setChannelCmd = &cobra.Command{
	Use:   "set-channel <name>",
	Short: "Rename the radio's primary channel",
	Args:  cobra.ExactArgs(1),
	Run:   runSetChannel,
}

func init() {
	addTargetFlags(rebootCmd)
	addTargetFlags(setChannelCmd)
}

func runReboot(cmd *cobra.Command, args []string) {
	spec, err := targetSpec(cmd)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if err := device.NewManager().Reboot(context.Background(), spec); err != nil {
		fmt.Fprintf(os.Stderr, "Error rebooting %s: %v\n", spec.Describe(), err)
		os.Exit(1)
	}
	fmt.Println("Reboot requested.")
}

func runSetChannel(cmd *cobra.Command, args []string) {
	name := args[0]

	spec, err := targetSpec(cmd)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if err := device.NewManager().SetChannel(context.Background(), spec, name); err != nil {
		fmt.Fprintf(os.Stderr, "Error setting channel via %s: %v\n", spec.Describe(), err)
		os.Exit(1)
	}
	fmt.Printf("Primary channel renamed to %q.\n", name)
}
