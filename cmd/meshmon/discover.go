package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"meshmon/internal/device"
	"meshmon/internal/discovery"
	"meshmon/internal/domain"
)

var discoverCmd = &cobra.Command{
	Use:   "discover",
	Short: "Find radios on the local network",
	Long: `Sweep a subnet for hosts answering on the radio TCP port, or browse
mDNS with --mdns. Every responding host is verified with a full device
read before it is reported.

Examples:
  meshmon discover
  meshmon discover --subnet 192.168.1.0/24
  meshmon discover --mdns`,
	Args: cobra.NoArgs,
	Run:  runDiscover,
}

func init() {
	discoverCmd.Flags().String("subnet", "", "CIDR to sweep (default: the local /24)")
	discoverCmd.Flags().Int("port", domain.DefaultTCPPort, "TCP port to probe")
	discoverCmd.Flags().Duration("timeout", discovery.DefaultProbeTimeout, "per-host connect timeout")
	discoverCmd.Flags().Bool("mdns", false, "browse mDNS instead of sweeping a subnet")
	discoverCmd.Flags().Bool("json", false, "output as JSON")
}

func runDiscover(cmd *cobra.Command, args []string) {
	subnet, _ := cmd.Flags().GetString("subnet")
	port, _ := cmd.Flags().GetInt("port")
	timeout, _ := cmd.Flags().GetDuration("timeout")
	mdns, _ := cmd.Flags().GetBool("mdns")
	jsonOut, _ := cmd.Flags().GetBool("json")

	ctx := context.Background()
	scanner := discovery.NewScanner(device.NewManager())

	var (
		candidates []domain.TCPCandidate
		err        error
	)
	if mdns {
		candidates, err = scanner.BrowseMDNS(ctx)
	} else {
		candidates, err = scanner.Scan(ctx, discovery.Options{
			Subnet:  subnet,
			Port:    port,
			Timeout: timeout,
		})
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error discovering radios: %v\n", err)
		os.Exit(1)
	}

	if jsonOut {
		out := make([]map[string]any, 0, len(candidates))
		for _, candidate := range candidates {
			out = append(out, candidateMap(candidate))
		}
		if err := printJSON(out); err != nil {
			fmt.Fprintf(os.Stderr, "Error encoding output: %v\n", err)
			os.Exit(1)
		}

		return
	}

	if len(candidates) == 0 {
		fmt.Println("No radios found.")

		return
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "HOST\tPORT\tNODE\tNAME")
	for _, candidate := range candidates {
		nodeID, nodeName := "-", "-"
		if candidate.Telemetry != nil {
			nodeID = orDash(candidate.Telemetry.NodeID)
			nodeName = orDash(candidate.Telemetry.NodeName)
		}
		fmt.Fprintf(tw, "%s\t%d\t%s\t%s\n", candidate.Host, candidate.Port, nodeID, nodeName)
	}
	_ = tw.Flush()
}

func candidateMap(c domain.TCPCandidate) map[string]any {
	m := map[string]any{
		"host": c.Host,
		"port": c.Port,
	}
	if c.Telemetry != nil {
		m["node"] = c.Telemetry.AsMap()
	}

	return m
}
