package usecases

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/samirrijal/geopoly/internal/core/domain"
	"github.com/samirrijal/geopoly/internal/core/ports"
	"github.com/samirrijal/geopoly/internal/pkg/geospatial"
	"github.com/samirrijal/geopoly/internal/pkg/logging"
	"github.com/samirrijal/geopoly/internal/pkg/metrics"
)

var tracer = otel.Tracer("github.com/samirrijal/geopoly/internal/core/usecases")

// ErrMalformedPolygon marks a primary result that failed the sanity check.
var ErrMalformedPolygon = errors.New("malformed polygon")

// Tolerances for accepting a primary result.
const (
	vertexDistanceTolerance = 0.05
	circleAreaTolerance     = 0.05
)

// BuilderConfig configures the primary/fallback builder.
type BuilderConfig struct {
	Segments        int
	PrimaryTimeout  time.Duration
	BreakerFailures uint32
	BreakerCooldown time.Duration
}

// PolygonBuilder computes polygons on the primary engine and falls back to
// the local engine when the primary fails, times out, returns a malformed
// polygon or its circuit breaker is open. There is no retry beyond that
// single step.
type PolygonBuilder struct {
	primary  ports.PolygonEngine
	fallback ports.PolygonEngine
	breaker  *gobreaker.CircuitBreaker[*domain.PolygonResult]
	cfg      BuilderConfig
}

// NewPolygonBuilder creates a builder. primary may be nil, in which case
// every polygon is computed by fallback.
func NewPolygonBuilder(primary, fallback ports.PolygonEngine, cfg BuilderConfig) *PolygonBuilder {
	if cfg.Segments < 1 {
		cfg.Segments = 64
	}
	if cfg.PrimaryTimeout <= 0 {
		cfg.PrimaryTimeout = 3 * time.Second
	}
	if cfg.BreakerFailures == 0 {
		cfg.BreakerFailures = 5
	}
	b := &PolygonBuilder{primary: primary, fallback: fallback, cfg: cfg}
	if primary != nil {
		b.breaker = gobreaker.NewCircuitBreaker[*domain.PolygonResult](gobreaker.Settings{
			Name:    primary.Name(),
			Timeout: cfg.BreakerCooldown,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= cfg.BreakerFailures
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				slog.Warn("polygon engine breaker state changed",
					"engine", name, "from", from.String(), "to", to.String())
			},
		})
	}
	return b
}

// attempt is the tagged outcome of the primary path.
type attempt struct {
	result *domain.PolygonResult
	err    error
}

func (a attempt) ok() bool { return a.err == nil && a.result != nil }

// Build returns the polygon for req tagged with the path that produced it.
func (b *PolygonBuilder) Build(ctx context.Context, req domain.CircleRequest) (*domain.PolygonResult, error) {
	ctx, span := tracer.Start(ctx, "polygon.build")
	defer span.End()
	span.SetAttributes(
		attribute.Float64("geopoly.lat", req.Center.Lat),
		attribute.Float64("geopoly.lon", req.Center.Lon),
		attribute.Float64("geopoly.radius_m", req.RadiusMeters),
	)
	log := logging.FromContext(ctx)

	if b.primary != nil {
		start := time.Now()
		a := b.attemptPrimary(ctx, req)
		if a.ok() {
			a.result.Source = domain.SourceEngine
			b.observe(domain.SourceEngine, start)
			span.SetAttributes(attribute.String("geopoly.source", string(domain.SourceEngine)))
			return a.result, nil
		}
		metrics.PrimaryFailures.WithLabelValues(failureReason(a.err)).Inc()
		span.AddEvent("primary failed")
		log.Warn("primary polygon engine failed, using fallback",
			"engine", b.primary.Name(), "error", a.err)
	}

	start := time.Now()
	res, err := b.fallback.Build(ctx, req, b.cfg.Segments)
	if err == nil && res == nil {
		err = ErrMalformedPolygon
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "fallback failed")
		return nil, fmt.Errorf("%w: %s engine: %w", domain.ErrGeometry, b.fallback.Name(), err)
	}
	res.Source = domain.SourceFallback
	b.observe(domain.SourceFallback, start)
	span.SetAttributes(attribute.String("geopoly.source", string(domain.SourceFallback)))
	return res, nil
}

func (b *PolygonBuilder) attemptPrimary(ctx context.Context, req domain.CircleRequest) attempt {
	ctx, span := tracer.Start(ctx, "polygon.primary")
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, b.cfg.PrimaryTimeout)
	defer cancel()

	res, err := b.breaker.Execute(func() (*domain.PolygonResult, error) {
		res, err := b.primary.Build(ctx, req, b.cfg.Segments)
		if err != nil {
			return nil, err
		}
		if err := CheckPolygon(req, res); err != nil {
			return nil, err
		}
		return res, nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "primary failed")
	}
	return attempt{result: res, err: err}
}

func (b *PolygonBuilder) observe(src domain.Source, start time.Time) {
	metrics.PolygonsBuilt.WithLabelValues(string(src)).Inc()
	metrics.BuildDuration.WithLabelValues(string(src)).Observe(time.Since(start).Seconds())
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return "breaker_open"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, ErrMalformedPolygon):
		return "malformed"
	default:
		return "error"
	}
}

// CheckPolygon rejects results that are not a plausible circle for req:
// an open or short ring, non-finite values, vertices off the circle or an
// area far from πr².
func CheckPolygon(req domain.CircleRequest, res *domain.PolygonResult) error {
	if res == nil {
		return fmt.Errorf("%w: empty result", ErrMalformedPolygon)
	}
	ring := res.Ring
	if len(ring) < 4 {
		return fmt.Errorf("%w: %d vertices", ErrMalformedPolygon, len(ring))
	}
	if ring[0] != ring[len(ring)-1] {
		return fmt.Errorf("%w: ring not closed", ErrMalformedPolygon)
	}
	if math.IsNaN(res.AreaSqm) || math.IsInf(res.AreaSqm, 0) || res.AreaSqm <= 0 {
		return fmt.Errorf("%w: area %v", ErrMalformedPolygon, res.AreaSqm)
	}

	r := req.RadiusMeters
	for _, p := range ring {
		if math.IsNaN(p[0]) || math.IsNaN(p[1]) {
			return fmt.Errorf("%w: NaN vertex", ErrMalformedPolygon)
		}
		d := geospatial.Haversine(req.Center.Lat, req.Center.Lon, p[1], p[0])
		if math.Abs(d-r) > vertexDistanceTolerance*r {
			return fmt.Errorf("%w: vertex %.1fm from center, want %.1fm", ErrMalformedPolygon, d, r)
		}
	}

	want := math.Pi * r * r
	if math.Abs(res.AreaSqm-want) > circleAreaTolerance*want {
		return fmt.Errorf("%w: area %.1f, want about %.1f", ErrMalformedPolygon, res.AreaSqm, want)
	}
	return nil
}

// LocalEngine computes polygons in-process with the geospatial package.
type LocalEngine struct {
	polarArea geospatial.AreaMethod
}

// NewLocalEngine creates a LocalEngine measuring polar rings with method.
func NewLocalEngine(method geospatial.AreaMethod) *LocalEngine {
	if method == "" {
		method = geospatial.PolarAreaLegacy
	}
	return &LocalEngine{polarArea: method}
}

func (e *LocalEngine) Name() string { return "local" }

// Build computes the polygon for req.
func (e *LocalEngine) Build(_ context.Context, req domain.CircleRequest, segments int) (*domain.PolygonResult, error) {
	ring, err := geospatial.CreateCirclePolygon(req.Center.Lat, req.Center.Lon, req.RadiusMeters, segments)
	if err != nil {
		return nil, err
	}
	return &domain.PolygonResult{
		Ring:    ring,
		AreaSqm: geospatial.CalculatePolygonAreaWith(ring, e.polarArea),
		Source:  domain.SourceFallback,
	}, nil
}
