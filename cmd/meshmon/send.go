package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"meshmon/internal/device"
)

var sendCmd = &cobra.Command{
	Use:   "send <message>...",
	Short: "Send a text message through a radio",
	Long: `Send a text message over the mesh. Without --to the message broadcasts
on the primary channel.

Examples:
  meshmon send "hello mesh"
  meshmon send --to '!a1b2c3d4' see you at the summit
  meshmon send --tcp 192.168.1.40 ping`,
	Args: cobra.MinimumNArgs(1),
	Run:  runSend,
}

func init() {
	addTargetFlags(sendCmd)
	sendCmd.Flags().String("to", "", "destination node id (default: broadcast)")
}

func runSend(cmd *cobra.Command, args []string) {
	to, _ := cmd.Flags().GetString("to")
	message := strings.Join(args, " ")

	spec, err := targetSpec(cmd)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if err := device.NewManager().SendMessage(context.Background(), spec, message, to); err != nil {
		fmt.Fprintf(os.Stderr, "Error sending via %s: %v\n", spec.Describe(), err)
		os.Exit(1)
	}

	if to == "" {
		fmt.Println("Message broadcast on the primary channel.")
	} else {
		fmt.Printf("Message sent to %s.\n", to)
	}
}
