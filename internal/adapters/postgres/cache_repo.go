package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/samirrijal/geopoly/internal/core/domain"
	"github.com/samirrijal/geopoly/internal/pkg/geospatial"
)

// CacheRepo implements ports.CacheRepository on the cache_entries table.
// Rings are stored as GeoJSON polygon text.
type CacheRepo struct {
	db *DB
}

// NewCacheRepo creates a new CacheRepo.
func NewCacheRepo(db *DB) *CacheRepo {
	return &CacheRepo{db: db}
}

const cacheColumns = `cache_key, latitude, longitude, radius_meters, polygon_data, area_sqm, created_at, updated_at`

func scanEntry(row pgx.Row) (*domain.CacheEntry, error) {
	var (
		e       domain.CacheEntry
		polygon string
	)
	if err := row.Scan(&e.Key, &e.Latitude, &e.Longitude, &e.RadiusMeters,
		&polygon, &e.AreaSqm, &e.CreatedAt, &e.UpdatedAt); err != nil {
		return nil, err
	}
	ring, err := geospatial.UnmarshalRing([]byte(polygon))
	if err != nil {
		return nil, fmt.Errorf("cache entry %s: %w", e.Key, err)
	}
	e.Ring = ring
	return &e, nil
}

// Get returns the entry stored under key.
func (r *CacheRepo) Get(ctx context.Context, key string) (*domain.CacheEntry, error) {
	e, err := scanEntry(r.db.Pool.QueryRow(ctx,
		`SELECT `+cacheColumns+` FROM cache_entries WHERE cache_key = $1`, key))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get cache entry: %w", err)
	}
	return e, nil
}

// Upsert inserts the entry; a concurrent writer of the same key wins by
// replacing the polygon and stamping updated_at.
func (r *CacheRepo) Upsert(ctx context.Context, e *domain.CacheEntry) error {
	polygon, err := geospatial.MarshalRing(e.Ring)
	if err != nil {
		return fmt.Errorf("encode ring: %w", err)
	}
	createdAt := e.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	_, err = r.db.Pool.Exec(ctx, `
		INSERT INTO cache_entries (cache_key, latitude, longitude, radius_meters, polygon_data, area_sqm, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (cache_key) DO UPDATE
		SET polygon_data = EXCLUDED.polygon_data,
		    area_sqm = EXCLUDED.area_sqm,
		    updated_at = now()
	`, e.Key, e.Latitude, e.Longitude, e.RadiusMeters, string(polygon), e.AreaSqm, createdAt)
	if err != nil {
		return fmt.Errorf("upsert cache entry: %w", err)
	}
	return nil
}

// Stats counts entries grouped by radius.
func (r *CacheRepo) Stats(ctx context.Context) (*domain.CacheStats, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT radius_meters, count(*) FROM cache_entries
		GROUP BY radius_meters ORDER BY radius_meters
	`)
	if err != nil {
		return nil, fmt.Errorf("cache stats: %w", err)
	}
	defer rows.Close()

	stats := &domain.CacheStats{ByRadius: map[float64]int{}}
	for rows.Next() {
		var (
			radius float64
			count  int
		)
		if err := rows.Scan(&radius, &count); err != nil {
			return nil, err
		}
		stats.ByRadius[radius] = count
		stats.Total += count
	}
	return stats, rows.Err()
}

// Clear deletes every entry.
func (r *CacheRepo) Clear(ctx context.Context) ([]string, error) {
	return r.collectKeys(ctx, `DELETE FROM cache_entries RETURNING cache_key`)
}

// Delete removes one entry and reports whether it existed.
func (r *CacheRepo) Delete(ctx context.Context, key string) (bool, error) {
	tag, err := r.db.Pool.Exec(ctx, `DELETE FROM cache_entries WHERE cache_key = $1`, key)
	if err != nil {
		return false, fmt.Errorf("delete cache entry: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// Oldest lists entries oldest first.
func (r *CacheRepo) Oldest(ctx context.Context, limit, offset int) ([]domain.CacheEntry, int, error) {
	var total int
	if err := r.db.Pool.QueryRow(ctx, `SELECT count(*) FROM cache_entries`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count cache entries: %w", err)
	}

	rows, err := r.db.Pool.Query(ctx, `
		SELECT `+cacheColumns+` FROM cache_entries
		ORDER BY created_at ASC, id ASC
		LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list cache entries: %w", err)
	}
	defer rows.Close()

	var entries []domain.CacheEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, 0, err
		}
		entries = append(entries, *e)
	}
	return entries, total, rows.Err()
}

// Prune deletes all but the newest keep entries.
func (r *CacheRepo) Prune(ctx context.Context, keep int) ([]string, error) {
	return r.collectKeys(ctx, `
		DELETE FROM cache_entries
		WHERE id IN (
			SELECT id FROM cache_entries
			ORDER BY created_at DESC, id DESC
			OFFSET $1
		)
		RETURNING cache_key
	`, keep)
}

func (r *CacheRepo) collectKeys(ctx context.Context, sql string, args ...any) ([]string, error) {
	rows, err := r.db.Pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("delete cache entries: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}
