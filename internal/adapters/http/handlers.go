package http

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
	geojson "github.com/paulmach/go.geojson"

	"github.com/samirrijal/geopoly/internal/core/domain"
)

// RootHandler returns the service banner.
func RootHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"message": "GeoPolygon API is running"})
	}
}

// CreatePolygonHandler builds (or serves from cache) the polygon
// approximating a ground circle and returns it as a GeoJSON Feature.
func CreatePolygonHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body polygonRequest
		if err := c.BodyParser(&body); err != nil {
			return errBadRequest(c, "invalid request body")
		}
		if err := validate.Struct(body); err != nil {
			return errBadRequest(c, validationMessage(err))
		}

		req := domain.CircleRequest{
			Center:       domain.GeoPoint{Lat: *body.Latitude, Lon: *body.Longitude},
			RadiusMeters: *body.Radius,
		}
		res, err := deps.Polygons.Create(c.UserContext(), req)
		if err != nil {
			return writeDomainError(c, err, "failed to build polygon")
		}

		c.Locals(localPolygonSource, string(res.Source))
		c.Locals(localPolygonCached, res.Cached())
		if res.Cached() {
			c.Set("X-Cache", "HIT")
		} else {
			c.Set("X-Cache", "MISS")
		}
		return c.JSON(polygonFeature(req, res))
	}
}

func polygonFeature(req domain.CircleRequest, res *domain.PolygonResult) *geojson.Feature {
	f := geojson.NewFeature(res.Ring.Geometry())
	b := domain.RingBounds(res.Ring)
	f.BoundingBox = []float64{b.MinLon, b.MinLat, b.MaxLon, b.MaxLat}
	f.SetProperty("center", []float64{req.Center.Lon, req.Center.Lat})
	f.SetProperty("radius", req.RadiusMeters)
	f.SetProperty("area_sqm", res.AreaSqm)
	f.SetProperty("cached", res.Cached())
	f.SetProperty("source", string(res.Source))
	return f
}

// CacheStatsHandler reports the number of cached polygons per radius.
func CacheStatsHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		stats, err := deps.Cache.Stats(c.UserContext())
		if err != nil {
			return writeDomainError(c, err, "failed to read cache stats")
		}
		return c.JSON(fiber.Map{
			"total_cached_polygons": stats.Total,
			"radius_distribution":   radiusDistribution(stats),
		})
	}
}

func radiusDistribution(stats *domain.CacheStats) map[string]int {
	out := make(map[string]int, len(stats.ByRadius))
	for r, n := range stats.ByRadius {
		out[strconv.FormatFloat(r, 'f', -1, 64)] = n
	}
	return out
}

// ClearCacheHandler removes every cache entry.
func ClearCacheHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		n, err := deps.Cache.Clear(c.UserContext())
		if err != nil {
			return writeDomainError(c, err, "failed to clear cache")
		}
		return c.JSON(fiber.Map{"deleted_entries": n})
	}
}

// DeleteCacheEntryHandler removes the entry for ?lat&lon&radius.
func DeleteCacheEntryHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var q cacheEntryQuery
		if err := c.QueryParser(&q); err != nil {
			return errBadRequest(c, "lat, lon and radius must be numbers")
		}
		if err := validate.Struct(q); err != nil {
			return errBadRequest(c, validationMessage(err))
		}

		key := deps.Cache.Key(*q.Lat, *q.Lon, *q.Radius)
		deleted, err := deps.Cache.Delete(c.UserContext(), key)
		if err != nil {
			return writeDomainError(c, err, "failed to delete cache entry")
		}
		if !deleted {
			return errNotFound(c, "cache entry not found")
		}
		return c.JSON(fiber.Map{"deleted": true, "key": key})
	}
}

// ListCacheEntriesHandler pages through cache entries, oldest first.
func ListCacheEntriesHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		offset := c.QueryInt("offset", 0)
		limit := c.QueryInt("limit", 20)
		if offset < 0 {
			offset = 0
		}
		if limit <= 0 || limit > 100 {
			limit = 20
		}

		entries, total, err := deps.Cache.Oldest(c.UserContext(), limit, offset)
		if err != nil {
			return writeDomainError(c, err, "failed to list cache entries")
		}
		if entries == nil {
			entries = []domain.CacheEntry{}
		}

		pg := Pagination{Offset: offset, Limit: limit, Total: total}
		SetLinkHeaders(c, pg)
		return c.JSON(PaginatedResponse[domain.CacheEntry]{Data: entries, Pagination: pg})
	}
}
