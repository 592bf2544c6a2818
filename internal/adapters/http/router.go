package http

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/fiber/v2/middleware/timeout"
	"github.com/gofiber/websocket/v2"

	"github.com/samirrijal/geopoly/internal/pkg/metrics"
)

const (
	// polygonTimeout covers the artificial delay plus a slow primary engine.
	polygonTimeout = 30 * time.Second
	cacheTimeout   = 10 * time.Second
)

// OpenAPIPath is where /docs/openapi.yaml is read from.
var OpenAPIPath = "api/openapi.yaml"

// SetupRoutes registers all REST, GraphQL, and WebSocket routes.
func SetupRoutes(app *fiber.App, deps *Dependencies) {
	app.Use(metrics.Middleware())
	app.Get("/metrics", metrics.Handler())

	app.Use(compress.New(compress.Config{
		Level: compress.LevelBestSpeed,
	}))

	app.Use(requestid.New())
	app.Use(RequestIDLogMiddleware())
	app.Use(AccessLogMiddleware())

	// Rate limiting: 120 requests per minute per IP
	app.Use(limiter.New(limiter.Config{
		Max:        120,
		Expiration: 1 * time.Minute,
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return newError(c, fiber.StatusTooManyRequests, "rate_limited", "too many requests, please try again later")
		},
	}))

	// Security headers + API version
	app.Use(func(c *fiber.Ctx) error {
		c.Set("X-Content-Type-Options", "nosniff")
		c.Set("X-Frame-Options", "DENY")
		c.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		c.Set("X-API-Version", deps.Version)
		return c.Next()
	})

	app.Use(CachingMiddleware())

	app.Get("/", RootHandler())
	app.Get("/health", HealthHandler())
	app.Get("/ready", ReadyHandler(deps))

	app.Post("/polygon", timeout.NewWithContext(CreatePolygonHandler(deps), polygonTimeout))

	app.Delete("/cache", timeout.NewWithContext(ClearCacheHandler(deps), cacheTimeout))
	cache := app.Group("/cache")
	cache.Get("/stats", timeout.NewWithContext(CacheStatsHandler(deps), cacheTimeout))
	cache.Get("/entries", timeout.NewWithContext(ListCacheEntriesHandler(deps), cacheTimeout))
	cache.Delete("/entry", timeout.NewWithContext(DeleteCacheEntryHandler(deps), cacheTimeout))

	app.Post("/graphql", timeout.NewWithContext(GraphQLHandler(deps), polygonTimeout))

	SetupDocs(app, OpenAPIPath)

	app.Use("/ws", func(c *fiber.Ctx) error {
		if deps.NATS == nil {
			return errUnavailable(c, "event stream not available")
		}
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	if deps.NATS != nil {
		app.Get("/ws", websocket.New(WebSocketHandler(deps.NATS)))
	}
}
