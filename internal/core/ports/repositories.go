package ports

import (
	"context"

	"github.com/samirrijal/geopoly/internal/core/domain"
)

// CacheRepository is the durable polygon cache.
type CacheRepository interface {
	// Get returns domain.ErrNotFound when the key is absent.
	Get(ctx context.Context, key string) (*domain.CacheEntry, error)
	// Upsert inserts the entry or replaces the polygon stored under its key.
	Upsert(ctx context.Context, entry *domain.CacheEntry) error
	Stats(ctx context.Context) (*domain.CacheStats, error)
	// Clear removes every entry and returns the deleted keys.
	Clear(ctx context.Context) ([]string, error)
	Delete(ctx context.Context, key string) (bool, error)
	// Oldest lists entries by creation time along with the total count.
	Oldest(ctx context.Context, limit, offset int) ([]domain.CacheEntry, int, error)
	// Prune keeps the newest keep entries and returns the deleted keys.
	Prune(ctx context.Context, keep int) ([]string, error)
}
