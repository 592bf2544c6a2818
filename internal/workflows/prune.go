package workflows

import (
	"errors"
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"
)

// PruneWorkflowID is the id of the scheduled prune workflow.
const PruneWorkflowID = "geopoly-cache-prune"

// PruneInput is the input for the prune workflow.
type PruneInput struct {
	// MaxEntries is the number of newest entries kept.
	MaxEntries int
}

// PruneResult reports one prune run.
type PruneResult struct {
	Before  int
	Deleted int
}

// PruneWorkflow trims the durable polygon cache to its newest MaxEntries
// entries. It is started on a cron schedule by cmd/pruner.
func PruneWorkflow(ctx workflow.Context, input PruneInput) (PruneResult, error) {
	logger := workflow.GetLogger(ctx)
	if input.MaxEntries < 0 {
		return PruneResult{}, temporal.NewNonRetryableApplicationError(
			"max entries must not be negative", "InvalidInput", errors.New("negative max entries"))
	}

	ctx = workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 2 * time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			MaximumAttempts: 3,
		},
	})

	var result PruneResult
	if err := workflow.ExecuteActivity(ctx, "CountCacheEntries").Get(ctx, &result.Before); err != nil {
		return result, err
	}
	if result.Before <= input.MaxEntries {
		logger.Info("cache within limit", "entries", result.Before, "max", input.MaxEntries)
		return result, nil
	}

	if err := workflow.ExecuteActivity(ctx, "PruneCache", input.MaxEntries).Get(ctx, &result.Deleted); err != nil {
		return result, err
	}

	logger.Info("cache prune finished", "before", result.Before, "deleted", result.Deleted)
	return result, nil
}
