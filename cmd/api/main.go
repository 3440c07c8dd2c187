package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/citybikes/bikemap/internal/adapters/digitransit"
	"github.com/citybikes/bikemap/internal/adapters/http"
	natsadapter "github.com/citybikes/bikemap/internal/adapters/nats"
	"github.com/citybikes/bikemap/internal/adapters/postgres"
	"github.com/citybikes/bikemap/internal/adapters/valkey"
	"github.com/citybikes/bikemap/internal/core/domain"
	"github.com/citybikes/bikemap/internal/core/ports"
	"github.com/citybikes/bikemap/internal/core/usecases"
	"github.com/citybikes/bikemap/internal/pkg/config"
	"github.com/citybikes/bikemap/internal/pkg/logging"
	"github.com/citybikes/bikemap/internal/pkg/telemetry"
)

func main() {
	cfg, err := config.Load("bikemap-api")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	// Structured logging
	logLevel := os.Getenv("LOG_LEVEL")
	if logLevel == "" {
		logLevel = "info"
	}
	logging.Setup(logLevel, "json")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Telemetry
	if cfg.Telemetry.Enabled {
		shutdown, err := telemetry.InitTracer(ctx, cfg.Telemetry.ServiceName, cfg.Telemetry.TempoAddr)
		if err != nil {
			slog.Warn("telemetry init failed", "error", err)
		} else {
			defer shutdown(context.Background())
		}
	}

	// Database
	db, err := postgres.New(ctx, cfg.Database.DSN())
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()

	// Cache
	cache, err := valkey.New(cfg.Valkey.Addr)
	if err != nil {
		slog.Warn("valkey unavailable", "error", err)
		cache = nil
	} else {
		defer cache.Close()
	}

	// A nil *valkey.Cache must not end up inside the CacheService
	// interface, services treat a nil interface as "no cache".
	var cacheSvc ports.CacheService
	if cache != nil {
		cacheSvc = cache
	}

	// Raw NATS connection for WebSocket relay
	natsConn, err := natsadapter.RawConn(cfg.NATS.URL)
	if err != nil {
		slog.Warn("nats ws conn unavailable", "error", err)
	}

	// Durable subscription: availability changes evict the stale
	// per-station cache entries so reads pick up fresh counts before
	// the TTL expires.
	if cache != nil {
		subscriber, err := natsadapter.NewSubscriber(cfg.NATS.URL)
		if err != nil {
			slog.Warn("nats subscriber unavailable", "error", err)
		} else {
			defer subscriber.Close()
			err = subscriber.SubscribeStationUpdates(ctx, func(ctx context.Context, update *domain.StationUpdate) error {
				return cache.DeleteMany(ctx, "stations:id:"+update.ID, "stations:all")
			})
			if err != nil {
				slog.Warn("station update subscription failed", "error", err)
			}
		}
	}

	// Upstream transit-data router
	gateway := digitransit.New(cfg.Upstream.URL())

	// Repos and use cases
	stationRepo := postgres.NewStationRepo(db)
	stationSvc := usecases.NewStationService(stationRepo, cacheSvc)
	resolverSvc := usecases.NewResolverService(gateway, nil, cacheSvc)
	mapSvc := usecases.NewMapService(cfg.Map.TileLayers, cfg.Map.APIKey)

	deps := &http.Dependencies{
		Stations: stationSvc,
		Resolver: resolverSvc,
		Map:      mapSvc,
		Defaults: http.MapDefaults{
			Zoom:   cfg.Map.DefaultZoom,
			Width:  cfg.Map.DefaultWidth,
			Height: cfg.Map.DefaultHeight,
		},
		NATS:  natsConn,
		DB:    db,
		Cache: cache,
	}

	// Fiber
	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:    1024 * 1024, // 1 MB max request body
		AppName:      "BikeMap API",
	})
	app.Use(recover.New())
	app.Use(logger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins:     "http://localhost:3000, http://localhost:5173",
		AllowMethods:     "GET,POST,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		AllowCredentials: false,
		MaxAge:           3600,
	}))

	http.SetupRoutes(app, deps)

	// Graceful shutdown
	go func() {
		addr := fmt.Sprintf(":%d", cfg.Server.Port)
		slog.Info("API server starting", "addr", addr)
		if err := app.Listen(addr); err != nil {
			log.Fatalf("listen: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	slog.Info("shutdown signal received, draining connections...", "signal", sig.String())

	// Give in-flight requests up to 10s to complete
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		slog.Error("forced shutdown", "error", err)
	}

	slog.Info("server stopped")
}
