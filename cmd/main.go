package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/angeloszaimis/workload-cache/config"
	"github.com/angeloszaimis/workload-cache/internal/cache"
	"github.com/angeloszaimis/workload-cache/internal/handler"
	"github.com/angeloszaimis/workload-cache/internal/httpserver"
	"github.com/angeloszaimis/workload-cache/internal/metrics"
	"github.com/angeloszaimis/workload-cache/internal/upstream"
	"github.com/angeloszaimis/workload-cache/internal/worker"
	"github.com/angeloszaimis/workload-cache/internal/workload"
	"github.com/angeloszaimis/workload-cache/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", slog.Any("err", err))
		os.Exit(1)
	}

	log := logger.New(cfg.Logging.Level, true, cfg.Server.Environment)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	client, err := upstream.New(cfg.Upstream.URL, cfg.Upstream.APIKey, cfg.UpstreamTimeout(), log)
	if err != nil {
		log.Error("Failed to create upstream client", slog.Any("err", err))
		os.Exit(1)
	}

	collector := metrics.NewCollector(cfg.Metrics.BufferSize, log)
	collector.Start(ctx)

	w := worker.New(client, cache.New(), workerConfig(cfg), log, collector)
	w.Start(ctx)

	workloadHandler := handler.NewWorkloadHandler(log, w, w.Options())
	router := setupRouter(workloadHandler, collector)

	srv, err := httpserver.New(cfg.Server.Address, router, serverOptions(cfg))
	if err != nil {
		log.Error("Failed to create server", slog.Any("err", err))
		os.Exit(1)
	}

	srvErrCh := make(chan error, 1)

	go func() {
		log.Info("Serving workload cache",
			slog.String("addr", srv.Addr()),
			slog.String("upstream", client.URL().String()))
		srvErrCh <- srv.Start()
	}()

	select {
	case <-ctx.Done():
		log.Info("Shutting down gracefully...")
		w.Stop()
		if err := srv.Shutdown(context.Background()); err != nil {
			log.Error("Error during shutdown", slog.Any("err", err))
		}
		logSnapshot(log, collector.Snapshot())
	case err := <-srvErrCh:
		w.Stop()
		if err != nil {
			log.Error("Error starting workload cache", slog.Any("err", err))
			os.Exit(1)
		}
	}
}

func workerConfig(cfg *config.Config) worker.Config {
	return worker.Config{
		Options: workload.CacheOptions{
			ShouldFetch:  cfg.Cache.ShouldFetch,
			ShouldUpdate: cfg.Cache.ShouldUpdate,
		},
		RefreshInterval: cfg.RefreshInterval(),
		StaleThreshold:  cfg.StaleThreshold(),
		FailurePolicy:   worker.FailurePolicy(cfg.Cache.RefreshFailurePolicy),
		Concurrency:     cfg.Cache.RefreshConcurrency,
	}
}

func serverOptions(cfg *config.Config) httpserver.Options {
	return httpserver.Options{
		ReadTimeout:  cfg.ReadTimeout(),
		WriteTimeout: cfg.WriteTimeout(),
		IdleTimeout:  cfg.IdleTimeout(),
	}
}

func logSnapshot(log *slog.Logger, s metrics.Snapshot) {
	log.Info("Final cache statistics",
		slog.Duration("uptime", s.Uptime),
		slog.Int64("hits", s.CacheHits),
		slog.Int64("misses", s.CacheMisses),
		slog.Int64("evictions", s.CacheEvictions),
		slog.Int64("records", s.CacheSize),
		slog.Any("upstream_requests", s.UpstreamRequests),
		slog.Any("refreshes", s.Refreshes))
}
