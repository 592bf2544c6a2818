package usecases

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/samirrijal/geopoly/internal/core/domain"
	"github.com/samirrijal/geopoly/internal/core/ports"
	"github.com/samirrijal/geopoly/internal/pkg/geospatial"
	"github.com/samirrijal/geopoly/internal/pkg/logging"
	"github.com/samirrijal/geopoly/internal/pkg/metrics"
)

// PolygonConfig configures request handling.
type PolygonConfig struct {
	MaxRadius float64
	// ArtificialDelay is slept before computing an uncached polygon.
	ArtificialDelay   time.Duration
	SideEffectTimeout time.Duration
}

// PolygonService validates requests, serves cached polygons, computes and
// caches new ones, and records every served request in the background.
type PolygonService struct {
	cfg       PolygonConfig
	cache     *CacheService
	builder   *PolygonBuilder
	logger    ports.RequestLogger
	publisher ports.EventPublisher

	group singleflight.Group
	tasks sync.WaitGroup
	now   func() time.Time
}

// NewPolygonService creates a new PolygonService. logger and publisher may
// be nil.
func NewPolygonService(cfg PolygonConfig, cache *CacheService, builder *PolygonBuilder,
	logger ports.RequestLogger, publisher ports.EventPublisher) *PolygonService {
	if cfg.MaxRadius <= 0 {
		cfg.MaxRadius = 50000
	}
	if cfg.SideEffectTimeout <= 0 {
		cfg.SideEffectTimeout = 10 * time.Second
	}
	return &PolygonService{
		cfg:       cfg,
		cache:     cache,
		builder:   builder,
		logger:    logger,
		publisher: publisher,
		now:       time.Now,
	}
}

// Validate checks coordinates and radius.
func (s *PolygonService) Validate(req domain.CircleRequest) error {
	if !geospatial.ValidateCoordinates(req.Center.Lat, req.Center.Lon) {
		return &domain.ValidationError{
			Field:   "coordinates",
			Message: "latitude must be within [-90, 90] and longitude within [-180, 180]",
		}
	}
	if !geospatial.ValidateRadius(req.RadiusMeters, s.cfg.MaxRadius) {
		return &domain.ValidationError{
			Field:   "radius",
			Message: fmt.Sprintf("radius must be greater than 0 and at most %g meters", s.cfg.MaxRadius),
		}
	}
	return nil
}

// Create returns the polygon for req, from the cache when possible.
func (s *PolygonService) Create(ctx context.Context, req domain.CircleRequest) (*domain.PolygonResult, error) {
	if err := s.Validate(req); err != nil {
		return nil, err
	}
	log := logging.FromContext(ctx)
	key := s.cache.Key(req.Center.Lat, req.Center.Lon, req.RadiusMeters)

	entry, err := s.cache.Get(ctx, key)
	if err != nil {
		log.Error("cache lookup failed, computing polygon", "key", key, "error", err)
	}
	if entry != nil {
		res := &domain.PolygonResult{Ring: entry.Ring, AreaSqm: entry.AreaSqm, Source: domain.SourceCache}
		s.record(req, res)
		return res, nil
	}

	if s.cfg.ArtificialDelay > 0 {
		time.Sleep(s.cfg.ArtificialDelay)
	}

	v, err, shared := s.group.Do(key, func() (interface{}, error) {
		res, err := s.builder.Build(ctx, req)
		if err != nil {
			return nil, err
		}
		// The entry is written even if the caller has gone away.
		if err := s.cache.Put(context.WithoutCancel(ctx), key, req, res); err != nil {
			log.Error("cache write failed", "key", key, "error", err)
		}
		return res, nil
	})
	if err != nil {
		return nil, err
	}
	if shared {
		log.Debug("polygon computation shared", "key", key)
	}

	res := v.(*domain.PolygonResult)
	s.record(req, res)
	return res, nil
}

// record logs the served request on a detached goroutine. Failures are
// logged and never reach the caller.
func (s *PolygonService) record(req domain.CircleRequest, res *domain.PolygonResult) {
	if s.logger == nil && s.publisher == nil {
		return
	}
	rec := domain.RequestLog{
		Timestamp:    s.now().UTC(),
		Latitude:     req.Center.Lat,
		Longitude:    req.Center.Lon,
		RadiusMeters: req.RadiusMeters,
		AreaSqm:      res.AreaSqm,
		Cached:       res.Cached(),
		Source:       res.Source,
	}

	s.tasks.Add(1)
	go func() {
		defer s.tasks.Done()
		defer func() {
			if r := recover(); r != nil {
				slog.Error("request log task panicked", "panic", r)
			}
		}()

		ctx, cancel := context.WithTimeout(context.Background(), s.cfg.SideEffectTimeout)
		defer cancel()

		if s.logger != nil {
			if err := s.logger.LogRequest(ctx, rec); err != nil {
				metrics.SideEffectErrors.WithLabelValues("sheets").Inc()
				slog.Warn("request log failed", "error", err)
			}
		}
		if s.publisher != nil {
			if err := s.publisher.PublishPolygon(ctx, rec); err != nil {
				metrics.SideEffectErrors.WithLabelValues("nats").Inc()
				slog.Warn("polygon event publish failed", "error", err)
			}
		}
	}()
}

// Wait blocks until in-flight request log tasks finish or ctx is done.
func (s *PolygonService) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.tasks.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
