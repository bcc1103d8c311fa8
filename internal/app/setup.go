// Package app wires the catalog, its backend and the views into the posterd
// server and the posterctl CLI.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/Ad1th/Poster-Website/internal/catalog"
	appconfig "github.com/Ad1th/Poster-Website/internal/config"
	"github.com/Ad1th/Poster-Website/internal/imageprep"
	"github.com/Ad1th/Poster-Website/internal/mirror"
	"github.com/Ad1th/Poster-Website/internal/notify"
	"github.com/Ad1th/Poster-Website/internal/remote"
	"github.com/Ad1th/Poster-Website/internal/resolver"
	"github.com/Ad1th/Poster-Website/internal/transport/rest"
	"github.com/Ad1th/Poster-Website/pkg/auth"
	"github.com/Ad1th/Poster-Website/pkg/config"
	pnats "github.com/Ad1th/Poster-Website/pkg/nats"
	"github.com/Ad1th/Poster-Website/pkg/server"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// Settings is the part of the configuration shared by posterd and posterctl.
type Settings struct {
	// Name identifies the process on the NATS connection.
	Name           string
	Catalog        config.CatalogConfig
	Image          config.ImageConfig
	Auth           config.AuthConfig
	Nats           config.NATSConfig
	CircuitBreaker config.CircuitBreakerConfig
	Mirror         config.MirrorConfig
}

func ServerSettings(cfg *appconfig.Config) Settings {
	return Settings{
		Name:           "posterd",
		Catalog:        cfg.Catalog,
		Image:          cfg.Image,
		Auth:           cfg.Auth,
		Nats:           cfg.Nats,
		CircuitBreaker: cfg.CircuitBreaker,
		Mirror:         cfg.Mirror,
	}
}

func CLISettings(cfg *appconfig.CLIConfig) Settings {
	return Settings{
		Name:           "posterctl",
		Catalog:        cfg.Catalog,
		Image:          cfg.Image,
		Auth:           cfg.Auth,
		Nats:           cfg.Nats,
		CircuitBreaker: cfg.CircuitBreaker,
		Mirror:         cfg.Mirror,
	}
}

type Dependencies struct {
	Store    *catalog.Store
	Client   *remote.Client
	Resolver *resolver.Resolver
	Prober   *resolver.HTTPProber
	Sessions *auth.SessionIssuer
	Notifier notify.Notifier
	// Mirror is nil when no mirror path is configured.
	Mirror   *mirror.Store
	Settings Settings
	Logger   *slog.Logger

	closers []func() error
}

// SetupDependencies builds the catalog store and everything around it. The
// store is not loaded yet; callers decide when the first Load happens.
func SetupDependencies(settings Settings, logger *slog.Logger) (*Dependencies, error) {
	deps := &Dependencies{Settings: settings, Logger: logger}

	checker, err := auth.NewBcryptChecker(settings.Auth.SecretHash)
	if err != nil {
		return nil, err
	}
	deps.Sessions = auth.NewSessionIssuer(checker, settings.Auth)

	deps.Client = remote.NewClient(settings.Catalog, remote.NewHTTPClient(settings.CircuitBreaker, logger), logger)

	// image probes go to arbitrary hosts and must not trip the catalog breaker
	probeClient := &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)}
	deps.Prober = resolver.NewHTTPProber(probeClient)
	deps.Resolver = resolver.New(deps.Client.Layout(), settings.Image.LoadTimeout, logger)

	if settings.Nats.Enabled() {
		nc, err := pnats.NewClient(settings.Nats.Url, settings.Name, settings.Nats.Timeout)
		if err != nil {
			return nil, err
		}
		deps.closers = append(deps.closers, nc.Drain)
		deps.Notifier = notify.NewNATS(pnats.NewBus(nc), settings.Nats.Subject, logger)
		logger.Info("Catalog changes are shared over NATS", "url", settings.Nats.Url)
	} else {
		deps.Notifier = notify.NewLocal()
	}

	opts := []catalog.Option{
		catalog.WithNotifier(deps.Notifier),
		catalog.WithImageLimits(imageprep.Limits{
			MaxBytes:     settings.Image.MaxUploadBytes,
			MaxDimension: settings.Image.MaxDimension,
		}),
	}
	if settings.Mirror.Path != "" {
		m, err := mirror.OpenStore(settings.Mirror.Path)
		if err != nil {
			_ = deps.Close()
			return nil, err
		}
		deps.Mirror = m
		deps.closers = append(deps.closers, m.Close)
		opts = append(opts, catalog.WithMirror(m))
	}
	deps.Store = catalog.NewStore(deps.Client, logger, opts...)
	return deps, nil
}

// StartWatching reloads the store on changes made by other views and drops
// image chains of deleted entries. The returned func stops both.
func (d *Dependencies) StartWatching(ctx context.Context) (func(), error) {
	stopWatch, err := catalog.Watch(ctx, d.Store, d.Notifier)
	if err != nil {
		return nil, err
	}
	stopForget, err := d.Notifier.Subscribe(ctx, func(_ context.Context, change notify.Change) {
		if change.Op == notify.OpDelete && change.ID != "" {
			d.Resolver.Forget(change.ID)
		}
	})
	if err != nil {
		stopWatch()
		return nil, fmt.Errorf("watch deletions: %w", err)
	}
	return func() {
		stopWatch()
		stopForget()
	}, nil
}

// Close releases the mirror and the NATS connection, newest first.
func (d *Dependencies) Close() error {
	var errs []error
	for i := len(d.closers) - 1; i >= 0; i-- {
		if err := d.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	d.closers = nil
	return errors.Join(errs...)
}

// SetupHttpHandler builds the router with the storefront and admin routes.
// metrics is mounted at metricsPath when both are set.
// Used by tests to get a handler without a listener.
func SetupHttpHandler(deps *Dependencies, metrics http.Handler, metricsPath string) http.Handler {
	mux := server.NewChiRouter(deps.Logger)
	h := rest.NewHandler(deps.Store, deps.Resolver, deps.Prober.Load, deps.Sessions, rest.Options{
		Currency:       deps.Settings.Catalog.Currency,
		MaxUploadBytes: deps.Settings.Image.MaxUploadBytes,
	}, deps.Logger)
	h.RegisterRoutes(mux)
	if metrics != nil && metricsPath != "" {
		mux.Handle(metricsPath, metrics)
	}
	return mux
}

// SetupHttpServer creates the posterd HTTP server.
func SetupHttpServer(deps *Dependencies, cfg *appconfig.Config, metrics http.Handler) *http.Server {
	return server.NewHTTPServer(cfg.HTTPServer, SetupHttpHandler(deps, metrics, cfg.Telemetry.Metrics.Path))
}
