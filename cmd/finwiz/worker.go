package main

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/Veraticus/finwiz/internal/budget"
	"github.com/Veraticus/finwiz/internal/syncer"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

func workerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Run scheduled projections and syncs until interrupted",
		Long: `Run the budget projection for every user on projection.interval.

With --sync-interval the worker also syncs every user's transactions on that
interval. Both loops stop on SIGINT or SIGTERM.`,
		RunE: runWorker,
	}

	cmd.Flags().Duration("sync-interval", 0, "also sync all users on this interval (0 disables)")

	return cmd
}

func runWorker(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	syncInterval, _ := cmd.Flags().GetDuration("sync-interval")

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	if err := a.connectPublisher(); err != nil {
		return err
	}

	scheduler := budget.NewScheduler(a.engine(), a.store, appConfig.Projection.Interval, appConfig.Projection.Concurrency)

	var orch *syncer.Orchestrator
	if syncInterval > 0 {
		client, err := newPlaidClient()
		if err != nil {
			return err
		}
		if orch, err = a.orchestrator(client, appConfig.SyncOptions()); err != nil {
			return err
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return scheduler.Run(gctx)
	})
	if orch != nil {
		g.Go(func() error {
			return syncLoop(gctx, a, orch, syncInterval)
		})
	}

	slog.Info("Worker started",
		"projection_interval", appConfig.Projection.Interval,
		"sync_interval", syncInterval)

	err = g.Wait()
	if errors.Is(err, context.Canceled) {
		slog.Info("Worker stopped")
		return nil
	}
	return err
}

// syncLoop syncs every user now and then on each tick until ctx is done.
func syncLoop(ctx context.Context, a *app, orch *syncer.Orchestrator, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		ids, err := a.store.ListUserIDs(ctx)
		if err != nil && ctx.Err() == nil {
			slog.Error("Failed to list users for sync", "error", err)
		}
		for _, id := range ids {
			if _, err := orch.Sync(ctx, id); err != nil && ctx.Err() == nil {
				slog.Error("Scheduled sync failed", "user_id", id, "error", err)
			}
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
