package http

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
)

// HealthHandler returns a basic liveness check.
func HealthHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	}
}

// postgisReporter is implemented by the Postgres adapter.
type postgisReporter interface {
	PostGISVersion(ctx context.Context) (string, error)
}

// ReadyHandler checks DB, Valkey and NATS connectivity. Only the database is
// required; PostGIS, the hot cache and the event bus are reported but
// optional, since polygons fall back to the local engine.
func ReadyHandler(deps *Dependencies) fiber.Handler {
	startedAt := time.Now()

	return func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.UserContext(), 3*time.Second)
		defer cancel()

		checks := make(map[string]string)
		allOK := true

		if deps.DB != nil {
			if err := deps.DB.Ping(ctx); err != nil {
				checks["database"] = "error: " + err.Error()
				allOK = false
			} else {
				checks["database"] = "ok"
			}
			if pg, ok := deps.DB.(postgisReporter); ok {
				if v, err := pg.PostGISVersion(ctx); err != nil {
					checks["postgis"] = "unavailable, using local engine"
				} else {
					checks["postgis"] = v
				}
			}
		} else {
			checks["database"] = "not configured"
			allOK = false
		}

		if deps.Hot != nil {
			if err := deps.Hot.Ping(ctx); err != nil {
				checks["cache"] = "error: " + err.Error()
			} else {
				checks["cache"] = "ok"
			}
		} else {
			checks["cache"] = "not configured"
		}

		if deps.NATS != nil {
			if deps.NATS.IsConnected() {
				checks["nats"] = "ok"
			} else {
				checks["nats"] = "disconnected"
			}
		} else {
			checks["nats"] = "not configured"
		}

		status := "ready"
		code := fiber.StatusOK
		if !allOK {
			status = "not ready"
			code = fiber.StatusServiceUnavailable
		}

		return c.Status(code).JSON(fiber.Map{
			"status":  status,
			"checks":  checks,
			"uptime":  time.Since(startedAt).Round(time.Second).String(),
			"version": deps.Version,
		})
	}
}
