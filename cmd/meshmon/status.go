package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"meshmon/internal/persistence"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show cached device snapshots",
	Long: `Print the latest snapshot the daemon cached for each connection. Only
the local cache is read; no radio is contacted. Run refresh to poll a
device on demand.`,
	Args: cobra.NoArgs,
	Run:  runStatus,
}

func init() {
	statusCmd.Flags().StringP("connection", "c", "", "configured connection id")
	statusCmd.Flags().Bool("json", false, "output as JSON")
}

func runStatus(cmd *cobra.Command, args []string) {
	selector, _ := cmd.Flags().GetString("connection")
	jsonOut, _ := cmd.Flags().GetBool("json")

	paths, cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()
	db, err := persistence.Open(ctx, paths.DBFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening snapshot cache: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = db.Close() }()
	repo := persistence.NewSnapshotRepo(db)

	var records []persistence.SnapshotRecord
	if selector == "" {
		records, err = repo.List(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error reading snapshot cache: %v\n", err)
			os.Exit(1)
		}
	} else {
		id, _, rerr := resolveConnection(cfg, selector)
		if rerr != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", rerr)
			os.Exit(1)
		}
		record, gerr := repo.Get(ctx, id)
		if gerr != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", gerr)
			os.Exit(1)
		}
		records = []persistence.SnapshotRecord{record}
	}

	if jsonOut {
		out := make([]map[string]any, 0, len(records))
		for _, record := range records {
			out = append(out, map[string]any{
				"connection_id": record.ConnectionID,
				"snapshot":      record.Payload,
			})
		}
		if err := printJSON(out); err != nil {
			fmt.Fprintf(os.Stderr, "Error encoding output: %v\n", err)
			os.Exit(1)
		}

		return
	}

	if len(records) == 0 {
		fmt.Println("No snapshots cached. Is the daemon running?")

		return
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "CONNECTION\tKIND\tTARGET\tNODE\tPOLLED\tSTATUS")
	for _, record := range records {
		polled := "-"
		if !record.PolledAt.IsZero() {
			polled = record.PolledAt.Format(time.RFC3339)
		}
		status := "ok"
		if record.Error != "" {
			status = "error: " + record.Error
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			record.ConnectionID, record.Kind, record.Target, orDash(record.NodeID), polled, status)
	}
	_ = tw.Flush()
}
