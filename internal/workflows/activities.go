package workflows

import (
	"context"
	"fmt"

	"go.temporal.io/sdk/activity"

	"github.com/samirrijal/geopoly/internal/core/usecases"
)

// CacheActivities holds the activity implementations for cache maintenance.
type CacheActivities struct {
	Cache *usecases.CacheService
}

// CountCacheEntries returns the number of durable cache entries.
func (a *CacheActivities) CountCacheEntries(ctx context.Context) (int, error) {
	stats, err := a.Cache.Stats(ctx)
	if err != nil {
		return 0, fmt.Errorf("cache stats: %w", err)
	}
	return stats.Total, nil
}

// PruneCache deletes all but the newest keep entries and returns how many
// were removed.
func (a *CacheActivities) PruneCache(ctx context.Context, keep int) (int, error) {
	n, err := a.Cache.Prune(ctx, keep)
	if err != nil {
		return 0, fmt.Errorf("prune cache: %w", err)
	}
	activity.GetLogger(ctx).Info("cache pruned", "deleted", n, "kept", keep)
	return n, nil
}
