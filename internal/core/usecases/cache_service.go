package usecases

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/samirrijal/geopoly/internal/core/domain"
	"github.com/samirrijal/geopoly/internal/core/ports"
	"github.com/samirrijal/geopoly/internal/pkg/logging"
	"github.com/samirrijal/geopoly/internal/pkg/metrics"
)

// CacheConfig controls key precision and the hot layer.
type CacheConfig struct {
	CoordDecimals  int
	RadiusDecimals int
	HotTTLSeconds  int
}

// DefaultCacheConfig rounds coordinates to 6 decimals and radii to 2.
func DefaultCacheConfig() CacheConfig {
	return CacheConfig{CoordDecimals: 6, RadiusDecimals: 2, HotTTLSeconds: 3600}
}

const hotKeyPrefix = "geopoly:polygon:"

// CacheService fronts the durable polygon cache with an optional hot layer.
type CacheService struct {
	repo ports.CacheRepository
	hot  ports.HotCache
	cfg  CacheConfig
	now  func() time.Time
}

// NewCacheService creates a new CacheService. hot may be nil.
func NewCacheService(repo ports.CacheRepository, hot ports.HotCache, cfg CacheConfig) *CacheService {
	return &CacheService{repo: repo, hot: hot, cfg: cfg, now: time.Now}
}

// MakeKey derives the cache key for a request: the inputs are rounded,
// encoded as JSON with sorted fields and hashed with SHA-256.
func MakeKey(lat, lon, radius float64, coordDecimals, radiusDecimals int) string {
	payload, _ := json.Marshal(map[string]float64{
		"lat":    roundTo(lat, coordDecimals),
		"lon":    roundTo(lon, coordDecimals),
		"radius": roundTo(radius, radiusDecimals),
	})
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}

func roundTo(v float64, decimals int) float64 {
	p := math.Pow10(decimals)
	r := math.Round(v*p) / p
	if r == 0 {
		return 0 // drop the sign of -0
	}
	return r
}

// Key derives the cache key using the configured precision.
func (s *CacheService) Key(lat, lon, radius float64) string {
	return MakeKey(lat, lon, radius, s.cfg.CoordDecimals, s.cfg.RadiusDecimals)
}

// Get returns the entry for key, or nil when absent. A durable hit is
// copied into the hot layer.
func (s *CacheService) Get(ctx context.Context, key string) (*domain.CacheEntry, error) {
	log := logging.FromContext(ctx)

	if s.hot != nil {
		data, err := s.hot.Get(ctx, hotKeyPrefix+key)
		switch {
		case err == nil:
			var entry domain.CacheEntry
			if err := json.Unmarshal(data, &entry); err == nil {
				metrics.CacheHits.WithLabelValues("hot").Inc()
				return &entry, nil
			}
			log.Warn("discarding undecodable hot cache entry", "key", key)
		case errors.Is(err, domain.ErrNotFound):
			metrics.CacheMisses.WithLabelValues("hot").Inc()
		default:
			log.Warn("hot cache read failed", "key", key, "error", err)
		}
	}

	entry, err := s.repo.Get(ctx, key)
	if errors.Is(err, domain.ErrNotFound) {
		metrics.CacheMisses.WithLabelValues("store").Inc()
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	metrics.CacheHits.WithLabelValues("store").Inc()
	s.setHot(ctx, entry)
	return entry, nil
}

// Put stores a computed polygon under key.
func (s *CacheService) Put(ctx context.Context, key string, req domain.CircleRequest, res *domain.PolygonResult) error {
	entry := &domain.CacheEntry{
		Key:          key,
		Latitude:     req.Center.Lat,
		Longitude:    req.Center.Lon,
		RadiusMeters: req.RadiusMeters,
		Ring:         res.Ring,
		AreaSqm:      res.AreaSqm,
		CreatedAt:    s.now().UTC(),
	}
	if err := s.repo.Upsert(ctx, entry); err != nil {
		return fmt.Errorf("store polygon: %w", err)
	}
	s.setHot(ctx, entry)
	return nil
}

func (s *CacheService) setHot(ctx context.Context, entry *domain.CacheEntry) {
	if s.hot == nil {
		return
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return
	}
	if err := s.hot.Set(ctx, hotKeyPrefix+entry.Key, data, s.cfg.HotTTLSeconds); err != nil {
		logging.FromContext(ctx).Warn("hot cache write failed", "key", entry.Key, "error", err)
	}
}

func (s *CacheService) invalidate(ctx context.Context, keys []string) {
	if s.hot == nil || len(keys) == 0 {
		return
	}
	hotKeys := make([]string, len(keys))
	for i, k := range keys {
		hotKeys[i] = hotKeyPrefix + k
	}
	if err := s.hot.Delete(ctx, hotKeys...); err != nil {
		logging.FromContext(ctx).Warn("hot cache invalidation failed", "keys", len(keys), "error", err)
	}
}

// Stats returns the entry count, total and per radius.
func (s *CacheService) Stats(ctx context.Context) (*domain.CacheStats, error) {
	return s.repo.Stats(ctx)
}

// Clear deletes every entry and returns how many were removed.
func (s *CacheService) Clear(ctx context.Context) (int, error) {
	keys, err := s.repo.Clear(ctx)
	if err != nil {
		return 0, err
	}
	s.invalidate(ctx, keys)
	return len(keys), nil
}

// Delete removes the entry for key and reports whether it existed.
func (s *CacheService) Delete(ctx context.Context, key string) (bool, error) {
	deleted, err := s.repo.Delete(ctx, key)
	if err != nil {
		return false, err
	}
	s.invalidate(ctx, []string{key})
	return deleted, nil
}

// Oldest pages through entries oldest first.
func (s *CacheService) Oldest(ctx context.Context, limit, offset int) ([]domain.CacheEntry, int, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return s.repo.Oldest(ctx, limit, offset)
}

// Prune keeps the newest keep entries and returns how many were removed.
func (s *CacheService) Prune(ctx context.Context, keep int) (int, error) {
	if keep < 0 {
		return 0, fmt.Errorf("keep must not be negative, got %d", keep)
	}
	keys, err := s.repo.Prune(ctx, keep)
	if err != nil {
		return 0, err
	}
	s.invalidate(ctx, keys)
	metrics.CachePruned.Add(float64(len(keys)))
	return len(keys), nil
}
