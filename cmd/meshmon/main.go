package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"meshmon/internal/app"
)

var rootCmd = &cobra.Command{
	Use:   "meshmon",
	Short: "Meshtastic radio monitor",
	Long: `Meshmon polls Meshtastic radios over serial or TCP and caches the latest
device snapshot per configured connection. The run command starts the
polling daemon; the other commands are one-shots for discovery, status
and device control.`,
	Version: app.BuildVersionWithDate(),
}

func init() {
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(readCmd)
	rootCmd.AddCommand(refreshCmd)
	rootCmd.AddCommand(portsCmd)
	rootCmd.AddCommand(discoverCmd)
	rootCmd.AddCommand(sendCmd)
	rootCmd.AddCommand(rebootCmd)
	rootCmd.AddCommand(setChannelCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
