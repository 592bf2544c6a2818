package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/nats-io/nats.go"

	"github.com/samirrijal/geopoly/internal/adapters/http"
	natsadapter "github.com/samirrijal/geopoly/internal/adapters/nats"
	"github.com/samirrijal/geopoly/internal/adapters/postgres"
	"github.com/samirrijal/geopoly/internal/adapters/sheets"
	"github.com/samirrijal/geopoly/internal/adapters/valkey"
	"github.com/samirrijal/geopoly/internal/core/ports"
	"github.com/samirrijal/geopoly/internal/core/usecases"
	"github.com/samirrijal/geopoly/internal/pkg/config"
	"github.com/samirrijal/geopoly/internal/pkg/geospatial"
	"github.com/samirrijal/geopoly/internal/pkg/logging"
	"github.com/samirrijal/geopoly/internal/pkg/metrics"
	"github.com/samirrijal/geopoly/internal/pkg/telemetry"
)

var version = "dev"

func main() {
	cfg, err := config.Load("geopoly-api")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logging.Setup(cfg.Log.Level, cfg.Log.Format)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Telemetry
	if cfg.Telemetry.Enabled {
		shutdown, err := telemetry.InitTracer(ctx, cfg.Telemetry.ServiceName, cfg.Telemetry.TempoAddr)
		if err != nil {
			slog.Warn("telemetry init failed", "error", err)
		} else {
			defer shutdown()
		}
	}

	// Database
	db, err := postgres.New(ctx, cfg.Database.DSN(), cfg.Database.MaxConns)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()

	if v, err := db.PostGISVersion(ctx); err != nil {
		slog.Warn("postgis unavailable, polygons will be built locally", "error", err)
	} else {
		slog.Info("database connected", "postgis", v)
	}

	deps := &http.Dependencies{DB: db, Version: version}

	// Hot cache
	var hot ports.HotCache
	if cfg.Valkey.Enabled {
		cache, err := valkey.New(cfg.Valkey.Addr)
		if err != nil {
			slog.Warn("valkey unavailable, hot cache disabled", "error", err)
		} else {
			defer cache.Close()
			hot = cache
			deps.Hot = cache
		}
	}

	// NATS
	var publisher ports.EventPublisher
	if cfg.NATS.Enabled {
		pub, err := natsadapter.NewPublisher(cfg.NATS.URL)
		if err != nil {
			slog.Warn("nats unavailable, polygon events disabled", "error", err)
		} else {
			defer pub.Close()
			publisher = pub
		}

		// Separate connection for the WebSocket relay
		var nc *nats.Conn
		nc, err = natsadapter.RawConn(cfg.NATS.URL)
		if err != nil {
			slog.Warn("nats ws conn unavailable", "error", err)
		} else {
			defer nc.Close()
			deps.NATS = nc
		}
	}

	// Spreadsheet request log
	var requestLog ports.RequestLogger
	switch sl, err := sheets.New(ctx, cfg.Sheets); {
	case errors.Is(err, sheets.ErrDisabled):
		slog.Warn("spreadsheet logging disabled", "reason", err)
	case err != nil:
		slog.Warn("spreadsheet logging unavailable", "error", err)
	case cfg.Sheets.SpreadsheetID == "":
		slog.Warn("spreadsheet logging disabled: no spreadsheet id, run `migrate sheets <title>` to create one")
	default:
		requestLog = sl
	}

	// Use cases
	var primary ports.PolygonEngine
	if cfg.Geometry.PrimaryEnabled {
		primary = postgres.NewPostGISEngine(db)
	}
	builder := usecases.NewPolygonBuilder(
		primary,
		usecases.NewLocalEngine(geospatial.AreaMethod(cfg.Geometry.PolarAreaMethod)),
		usecases.BuilderConfig{
			Segments:        cfg.Geometry.DefaultPoints,
			PrimaryTimeout:  cfg.Geometry.PrimaryTimeout,
			BreakerFailures: cfg.Geometry.BreakerFailures,
			BreakerCooldown: cfg.Geometry.BreakerCooldown,
		},
	)
	cacheSvc := usecases.NewCacheService(postgres.NewCacheRepo(db), hot, usecases.CacheConfig{
		CoordDecimals:  cfg.Cache.CoordDecimals,
		RadiusDecimals: cfg.Cache.RadiusDecimals,
		HotTTLSeconds:  cfg.Cache.HotTTLSeconds,
	})
	polygons := usecases.NewPolygonService(usecases.PolygonConfig{
		MaxRadius:         cfg.Geometry.MaxRadius,
		ArtificialDelay:   cfg.Performance.ArtificialDelay,
		SideEffectTimeout: cfg.Performance.SideEffectTimeout,
	}, cacheSvc, builder, requestLog, publisher)

	deps.Polygons = polygons
	deps.Cache = cacheSvc

	// Pool gauges
	go func() {
		ticker := time.NewTicker(15 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				metrics.UpdateDBPoolMetrics(db.Pool.Stat())
			case <-ctx.Done():
				return
			}
		}
	}()

	// Fiber
	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:    64 * 1024,
		AppName:      "GeoPolygon API",
		JSONEncoder:  json.Marshal,
		JSONDecoder:  json.Unmarshal,
	})
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,DELETE,OPTIONS",
		AllowHeaders: "Origin, Content-Type, Accept",
		MaxAge:       3600,
	}))

	http.SetupRoutes(app, deps)

	go func() {
		addr := fmt.Sprintf(":%d", cfg.Server.Port)
		slog.Info("API server starting", "addr", addr, "version", version)
		if err := app.Listen(addr); err != nil {
			log.Fatalf("listen: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	slog.Info("shutdown signal received, draining connections...", "signal", sig.String())

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		slog.Error("forced shutdown", "error", err)
	}
	if err := polygons.Wait(shutdownCtx); err != nil {
		slog.Warn("request log tasks still running at shutdown", "error", err)
	}

	slog.Info("server stopped")
}
