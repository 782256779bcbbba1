package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	"meshmon/internal/app"
	"meshmon/internal/platform"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the polling daemon",
	Long: `Start a poller for every configured connection and keep the snapshot
cache current until interrupted. SIGHUP triggers an immediate refresh of
all connections.`,
	Args: cobra.NoArgs,
	Run:  runDaemon,
}

func runDaemon(cmd *cobra.Command, args []string) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	lock, err := platform.AcquireInstanceLock(app.Name)
	switch {
	case errors.Is(err, platform.ErrInstanceAlreadyRunning):
		fmt.Fprintln(os.Stderr, "Error: another meshmon daemon is already running")
		os.Exit(1)
	case errors.Is(err, platform.ErrInstanceLockUnsupported):
		slog.Warn("instance lock unsupported on this platform", "error", err)
	case err != nil:
		fmt.Fprintf(os.Stderr, "Error acquiring instance lock: %v\n", err)
		os.Exit(1)
	default:
		defer func() { _ = lock.Release() }()
	}

	rt, err := app.Initialize(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing runtime: %v\n", err)
		os.Exit(1)
	}

	var closeOnce sync.Once
	closeRuntime := func() {
		closeOnce.Do(func() {
			_ = rt.Close()
		})
	}
	defer closeRuntime()

	if len(rt.Config.Connections) == 0 {
		slog.Warn("no connections configured, daemon will idle", "config", rt.Paths.ConfigFile)
	}
	rt.StartPollers(rt.Ctx)

	<-ctx.Done()
	slog.Info("shutdown signal received")
	closeRuntime()
}
