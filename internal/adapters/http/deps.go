package http

import (
	"context"

	"github.com/nats-io/nats.go"

	"github.com/samirrijal/geopoly/internal/core/usecases"
)

// Pinger is a backing service that can report connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Dependencies holds all services needed by HTTP handlers.
// Optional collaborators are left nil when unavailable.
type Dependencies struct {
	Polygons *usecases.PolygonService
	Cache    *usecases.CacheService
	DB       Pinger
	Hot      Pinger
	NATS     *nats.Conn
	Version  string
}
