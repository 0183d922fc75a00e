package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/frahmantamala/evaluation-sync/internal/reconciliation"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Start background workers",
	Long:  `Start long running workers such as the periodic fleet sync.`,
}

var syncWorkerCmd = &cobra.Command{
	Use:   "sync",
	Short: "Periodically sync every active tenant",
	Long:  `Sync all active, unexpired tenants on a fixed interval with a bounded worker pool`,
	Run: func(cmd *cobra.Command, args []string) {
		startSyncWorker()
	},
}

var (
	maxWorkers   int
	syncInterval time.Duration
	runOnce      bool
)

func startSyncWorker() {
	deps, err := initializeDependencies()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize dependencies: %v\n", err)
		os.Exit(1)
	}
	defer deps.Close()

	lg := deps.Logger
	workers := getIntFlag(maxWorkers, deps.Config.Sync.MaxWorkers)
	interval := syncInterval
	if interval <= 0 {
		interval = deps.Config.Sync.Interval
	}

	pool := reconciliation.NewPool(deps.Sync, workers, lg)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	lg.Info("starting sync worker", "max_workers", workers, "interval", interval, "once", runOnce)

	runFleet := func() {
		tenants, err := deps.Tenants.ListSyncable(ctx, time.Now())
		if err != nil {
			lg.Error("failed to list syncable tenants", "error", err)
			return
		}
		ids := make([]string, 0, len(tenants))
		for _, t := range tenants {
			ids = append(ids, t.ID)
		}
		for _, o := range pool.Run(ctx, ids) {
			if o.Err != nil {
				lg.Warn("tenant sync failed", "tenant_id", o.TenantID, "error", o.Err)
			}
		}
	}

	runFleet()
	if runOnce {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			runFleet()
		case <-ctx.Done():
			lg.Info("sync worker shutting down")
			return
		}
	}
}

func getIntFlag(flagValue, configValue int) int {
	if flagValue > 0 {
		return flagValue
	}
	return configValue
}

func init() {
	syncWorkerCmd.Flags().IntVar(&maxWorkers, "max-workers", 0, "Maximum tenants synced at once (overrides config)")
	syncWorkerCmd.Flags().DurationVar(&syncInterval, "interval", 0, "Time between fleet syncs (overrides config)")
	syncWorkerCmd.Flags().BoolVar(&runOnce, "once", false, "Sync every tenant once and exit")

	workerCmd.AddCommand(syncWorkerCmd)

	rootCmd.AddCommand(workerCmd)
}
