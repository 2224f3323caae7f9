package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	httpadapter "github.com/couchcryptid/storm-hazard-routing/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/storm-hazard-routing/internal/adapter/kafka"
	"github.com/couchcryptid/storm-hazard-routing/internal/adapter/mapbox"
	"github.com/couchcryptid/storm-hazard-routing/internal/config"
	"github.com/couchcryptid/storm-hazard-routing/internal/domain"
	"github.com/couchcryptid/storm-hazard-routing/internal/engine"
	"github.com/couchcryptid/storm-hazard-routing/internal/observability"
	"github.com/couchcryptid/storm-hazard-routing/internal/pipeline"
	"github.com/couchcryptid/storm-hazard-routing/internal/roadnet"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	network, err := roadnet.Load(cfg.RoadNetworkFile)
	if err != nil {
		logger.Error("failed to load road network", "path", cfg.RoadNetworkFile, "error", err)
		os.Exit(1)
	}

	eng := engine.New(network, engine.OptionsFromConfig(cfg), logger, metrics)
	logger.Info("engine started",
		"scenario_time", eng.ScenarioTime(),
		"workers", eng.Workers(),
	)

	// Initialize geocoder (feature-flagged via MAPBOX_ENABLED / MAPBOX_TOKEN).
	var geocoder domain.Geocoder
	if cfg.MapboxEnabled {
		client := mapbox.NewClient(cfg.MapboxToken, cfg.MapboxTimeout, logger, metrics)
		geocoder = mapbox.NewCachedGeocoder(client, cfg.MapboxCacheSize, metrics)
		metrics.GeocodeEnabled.Set(1)
		logger.Info("mapbox geocoding enabled", "cache_size", cfg.MapboxCacheSize, "timeout", cfg.MapboxTimeout)
	} else {
		logger.Info("mapbox geocoding disabled")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	ready := []sharedobs.ReadinessChecker{eng}
	var reader *kafkaadapter.Reader
	var writer *kafkaadapter.Writer
	if cfg.KafkaEnabled {
		reader = kafkaadapter.NewReader(cfg, logger)
		writer = kafkaadapter.NewWriter(cfg, logger)
		transformer := pipeline.NewTransformer(geocoder, logger)
		p := pipeline.New(reader, transformer, eng, writer, logger, metrics, cfg.BatchSize)
		ready = append(ready, p)

		// Start report pipeline.
		go func() {
			if err := p.Run(ctx); err != nil {
				logger.Error("pipeline error", "error", err)
			}
		}()
	} else {
		logger.Info("kafka disabled, reports accepted over http only")
	}

	srv := httpadapter.NewServer(cfg.HTTPAddr, eng, geocoder, httpadapter.AllReady(ready...), logger)

	// Start HTTP server.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if reader != nil {
		if err := reader.Close(); err != nil {
			logger.Error("kafka reader close error", "error", err)
		}
	}
	if writer != nil {
		if err := writer.Close(); err != nil {
			logger.Error("kafka writer close error", "error", err)
		}
	}

	logger.Info("shutdown complete")
}
