package ports

import (
	"context"

	"github.com/samirrijal/geopoly/internal/core/domain"
)

// PolygonEngine computes a circle polygon and its area.
type PolygonEngine interface {
	Build(ctx context.Context, req domain.CircleRequest, segments int) (*domain.PolygonResult, error)
	Name() string
}

// HotCache is a short-lived key/value layer in front of the durable cache.
type HotCache interface {
	// Get returns domain.ErrNotFound on a miss.
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttlSeconds int) error
	Delete(ctx context.Context, keys ...string) error
}

// RequestLogger records served requests in an external sink.
type RequestLogger interface {
	LogRequest(ctx context.Context, rec domain.RequestLog) error
}

// EventPublisher publishes domain events to a message broker.
type EventPublisher interface {
	PublishPolygon(ctx context.Context, rec domain.RequestLog) error
}
