package http

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/samirrijal/geopoly/internal/pkg/logging"
)

// Locals set by the polygon handler and picked up by the access log.
const (
	localPolygonSource = "polygon_source"
	localPolygonCached = "polygon_cached"
)

// RequestIDLogMiddleware stores a request-scoped logger carrying the Fiber
// request ID in the user context, where usecases pick it up through
// logging.FromContext.
func RequestIDLogMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		rid, ok := c.Locals("requestid").(string)
		if ok && rid != "" {
			c.SetUserContext(logging.WithLogger(c.UserContext(), slog.Default().With("request_id", rid)))
		}
		return c.Next()
	}
}

// AccessLogMiddleware writes one structured line per request. Polygon
// requests also carry the engine that produced the result and whether it
// came from the cache.
func AccessLogMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		method, path := c.Method(), c.Path()

		err := c.Next()

		status := c.Response().StatusCode()
		attrs := []slog.Attr{
			slog.String("method", method),
			slog.String("path", path),
			slog.Int("status", status),
			slog.Duration("latency", time.Since(start)),
			slog.Int("bytes_out", len(c.Response().Body())),
		}
		if src, ok := c.Locals(localPolygonSource).(string); ok {
			cached, _ := c.Locals(localPolygonCached).(bool)
			attrs = append(attrs, slog.Group("polygon",
				slog.String("source", src),
				slog.Bool("cached", cached),
			))
		}

		level := slog.LevelInfo
		switch {
		case err != nil:
			attrs = append(attrs, slog.String("error", err.Error()))
			level = slog.LevelError
		case status >= 500:
			level = slog.LevelError
		case status >= 400:
			level = slog.LevelWarn
		}

		// The request-scoped logger already carries request_id.
		logging.FromContext(c.UserContext()).LogAttrs(c.UserContext(), level, fmt.Sprintf("%s %s", method, path), attrs...)
		return err
	}
}

// CachingMiddleware sets default Cache-Control headers on GET responses that
// did not set their own, then tags successful GET bodies with a weak ETag and
// answers 304 when the client already holds it.
func CachingMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if err := c.Next(); err != nil {
			return err
		}
		if c.Method() != fiber.MethodGet {
			return nil
		}

		if c.GetRespHeader(fiber.HeaderCacheControl) == "" {
			if cc := cacheControlFor(c.Path()); cc != "" {
				c.Set(fiber.HeaderCacheControl, cc)
			}
		}

		body := c.Response().Body()
		if c.Response().StatusCode() != fiber.StatusOK || len(body) == 0 {
			return nil
		}
		sum := sha256.Sum256(body)
		etag := `W/"` + hex.EncodeToString(sum[:8]) + `"`
		c.Set(fiber.HeaderETag, etag)
		if c.Get(fiber.HeaderIfNoneMatch) == etag {
			c.Status(fiber.StatusNotModified)
			c.Response().ResetBody()
		}
		return nil
	}
}

func cacheControlFor(path string) string {
	switch {
	case path == "/health", path == "/ready", path == "/metrics":
		return "no-cache"
	case path == "/cache" || strings.HasPrefix(path, "/cache/"):
		// changes with every computed polygon
		return "no-store"
	case strings.HasPrefix(path, "/docs"):
		return "public, max-age=3600"
	case path == "/":
		return "public, max-age=300"
	}
	return ""
}
