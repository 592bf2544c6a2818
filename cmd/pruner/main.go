package main

import (
	"context"
	"errors"
	"log"
	"log/slog"

	"go.temporal.io/api/serviceerror"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"

	"github.com/samirrijal/geopoly/internal/adapters/postgres"
	"github.com/samirrijal/geopoly/internal/adapters/valkey"
	"github.com/samirrijal/geopoly/internal/core/ports"
	"github.com/samirrijal/geopoly/internal/core/usecases"
	"github.com/samirrijal/geopoly/internal/pkg/config"
	"github.com/samirrijal/geopoly/internal/pkg/logging"
	"github.com/samirrijal/geopoly/internal/workflows"
)

func main() {
	cfg, err := config.Load("geopoly-pruner")
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logging.Setup(cfg.Log.Level, cfg.Log.Format)
	ctx := context.Background()

	db, err := postgres.New(ctx, cfg.Database.DSN(), cfg.Database.MaxConns)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()

	// Pruned keys are also evicted from the hot layer.
	var hot ports.HotCache
	if cfg.Valkey.Enabled {
		cache, err := valkey.New(cfg.Valkey.Addr)
		if err != nil {
			slog.Warn("valkey unavailable, hot entries will expire by ttl", "error", err)
		} else {
			defer cache.Close()
			hot = cache
		}
	}

	cacheSvc := usecases.NewCacheService(postgres.NewCacheRepo(db), hot, usecases.CacheConfig{
		CoordDecimals:  cfg.Cache.CoordDecimals,
		RadiusDecimals: cfg.Cache.RadiusDecimals,
		HotTTLSeconds:  cfg.Cache.HotTTLSeconds,
	})

	c, err := client.Dial(client.Options{
		HostPort:  cfg.Temporal.HostPort,
		Namespace: cfg.Temporal.Namespace,
		Logger:    slog.Default(),
	})
	if err != nil {
		log.Fatalf("temporal client: %v", err)
	}
	defer c.Close()

	w := worker.New(c, cfg.Temporal.TaskQueue, worker.Options{})
	w.RegisterWorkflow(workflows.PruneWorkflow)
	w.RegisterActivity(&workflows.CacheActivities{Cache: cacheSvc})

	_, err = c.ExecuteWorkflow(ctx, client.StartWorkflowOptions{
		ID:           workflows.PruneWorkflowID,
		TaskQueue:    cfg.Temporal.TaskQueue,
		CronSchedule: cfg.Temporal.PruneSchedule,
	}, workflows.PruneWorkflow, workflows.PruneInput{MaxEntries: cfg.Cache.MaxEntries})
	var started *serviceerror.WorkflowExecutionAlreadyStarted
	switch {
	case err == nil:
		slog.Info("prune schedule started", "schedule", cfg.Temporal.PruneSchedule, "max_entries", cfg.Cache.MaxEntries)
	case errors.As(err, &started):
		slog.Info("prune schedule already running", "workflow_id", workflows.PruneWorkflowID)
	default:
		log.Fatalf("start prune workflow: %v", err)
	}

	slog.Info("pruner worker started", "task_queue", cfg.Temporal.TaskQueue)
	if err := w.Run(worker.InterruptCh()); err != nil {
		log.Fatalf("worker: %v", err)
	}
}
