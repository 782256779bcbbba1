package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"meshmon/internal/domain"
	"meshmon/internal/transport"
)

var portsCmd = &cobra.Command{
	Use:   "ports",
	Short: "List serial ports with known radio hardware",
	Long: `Enumerate USB serial ports and keep the ones whose vendor/product pair
matches a known radio adapter. Motherboard UARTs and virtual ports are
skipped.`,
	Args: cobra.NoArgs,
	Run:  runPorts,
}

func init() {
	portsCmd.Flags().Bool("json", false, "output as JSON")
}

func runPorts(cmd *cobra.Command, args []string) {
	jsonOut, _ := cmd.Flags().GetBool("json")

	ports, err := transport.NewEnumerator().ListPorts()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error listing serial ports: %v\n", err)
		os.Exit(1)
	}

	if jsonOut {
		out := make([]map[string]any, 0, len(ports))
		for _, port := range ports {
			out = append(out, port.AsMap())
		}
		if err := printJSON(out); err != nil {
			fmt.Fprintf(os.Stderr, "Error encoding output: %v\n", err)
			os.Exit(1)
		}

		return
	}

	if len(ports) == 0 {
		fmt.Println("No radio serial ports found.")

		return
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "DEVICE\tUSB ID\tDESCRIPTION\tSERIAL")
	for _, port := range ports {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n",
			port.Device, usbID(port), orDash(port.Description), orDash(port.SerialNumber))
	}
	_ = tw.Flush()
}

func usbID(port domain.UsbPortInfo) string {
	if port.VID == nil || port.PID == nil {
		return "-"
	}

	return fmt.Sprintf("%04x:%04x", *port.VID, *port.PID)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}

	return s
}
