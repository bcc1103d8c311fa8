// Package main runs posterd, the HTTP server for the poster storefront and admin views.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"syscall"

	"github.com/Ad1th/Poster-Website/internal/app"
	"github.com/Ad1th/Poster-Website/internal/config"
	"github.com/Ad1th/Poster-Website/pkg/bootstrap"
	"github.com/Ad1th/Poster-Website/pkg/config/configloader"
	"github.com/Ad1th/Poster-Website/pkg/server"
	"github.com/Ad1th/Poster-Website/pkg/telemetry"
	"golang.org/x/sync/errgroup"
)

const serviceName = "posterd"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		log.Printf("application run failed: %v", err)
		os.Exit(1)
	}
	log.Println("application stopped gracefully")
}

// run loads the configuration, loads the catalog once and serves HTTP until ctx is done.
func run(ctx context.Context) error {
	cfg, cfgErr := configloader.Load[*config.Config](serviceName)
	if cfgErr != nil {
		return fmt.Errorf("failed to load configuration: %w", cfgErr)
	}
	log.Printf("Configuration loaded: %v", cfg)

	logger := bootstrap.NewLogger(cfg.Log.Level, cfg.Log.Format)
	slog.SetDefault(logger)

	providers, err := telemetry.Setup(ctx, serviceName, cfg.Telemetry)
	if err != nil {
		return fmt.Errorf("failed to set up telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Shutdown.Timeout)
		defer cancel()
		if err := providers.Shutdown(shutdownCtx); err != nil {
			logger.Error("Failed to flush telemetry", "error", err)
		}
	}()

	deps, err := app.SetupDependencies(app.ServerSettings(cfg), logger)
	if err != nil {
		return fmt.Errorf("failed to set up dependencies: %w", err)
	}
	defer func() {
		if err := deps.Close(); err != nil {
			logger.Error("Failed to release dependencies", "error", err)
		}
	}()

	// an unreachable backend is not fatal: views report it and retry on the next request
	if err := deps.Store.Load(ctx); err != nil {
		logger.Warn("Initial catalog load failed", "error", err)
	} else {
		logger.Info("Catalog loaded", "entries", len(deps.Store.Entries()))
	}

	stopWatching, err := deps.StartWatching(ctx)
	if err != nil {
		return fmt.Errorf("failed to watch catalog changes: %w", err)
	}
	defer stopWatching()

	g, gCtx := errgroup.WithContext(ctx)
	httpServer := app.SetupHttpServer(deps, cfg, providers.MetricsHandler())
	server.Serve(g, gCtx, httpServer, "HTTP", cfg.Shutdown.Timeout, logger)

	if cfg.PProf.Enabled {
		pprofServer := &http.Server{Addr: cfg.PProf.Addr}
		server.Serve(g, gCtx, pprofServer, "Pprof", cfg.Shutdown.Timeout, logger)
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("errgroup encountered an error: %w", err)
	}
	return nil
}
