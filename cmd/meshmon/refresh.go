package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"meshmon/internal/device"
	"meshmon/internal/persistence"
	"meshmon/internal/poll"
)

var refreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Poll a connection now and update the snapshot cache",
	Long: `Read the device behind a configured connection and replace its cached
snapshot without going through the daemon. A failed read caches an error
snapshot, the same way a failed daemon poll does.`,
	Args: cobra.NoArgs,
	Run:  runRefresh,
}

func init() {
	refreshCmd.Flags().StringP("connection", "c", "", "configured connection id")
	refreshCmd.Flags().Bool("json", false, "output as JSON")
}

func runRefresh(cmd *cobra.Command, args []string) {
	selector, _ := cmd.Flags().GetString("connection")
	jsonOut, _ := cmd.Flags().GetBool("json")

	paths, cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	id, spec, err := resolveConnection(cfg, selector)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()
	snapshot, readErr := device.NewManager().Read(ctx, spec)
	if readErr != nil {
		snapshot = poll.ErrorSnapshot(spec, readErr, time.Now())
	}

	db, err := persistence.Open(ctx, paths.DBFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening snapshot cache: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = db.Close() }()

	if err := persistence.NewSnapshotRepo(db).Replace(ctx, id, snapshot); err != nil {
		fmt.Fprintf(os.Stderr, "Error updating snapshot cache: %v\n", err)
		os.Exit(1)
	}

	if jsonOut {
		if err := printJSON(snapshot.AsMap()); err != nil {
			fmt.Fprintf(os.Stderr, "Error encoding output: %v\n", err)
			os.Exit(1)
		}
	} else {
		printSnapshot(os.Stdout, snapshot)
	}

	if readErr != nil {
		fmt.Fprintf(os.Stderr, "Error reading %s: %v\n", spec.Describe(), readErr)
		os.Exit(1)
	}
}
