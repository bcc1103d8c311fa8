package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/Ad1th/Poster-Website/internal/admin"
	"github.com/Ad1th/Poster-Website/internal/app"
	appconfig "github.com/Ad1th/Poster-Website/internal/config"
	catalogerrors "github.com/Ad1th/Poster-Website/internal/errors"
	"github.com/Ad1th/Poster-Website/pkg/bootstrap"
	"github.com/Ad1th/Poster-Website/pkg/config/configloader"
)

const serviceName = "posterctl"

type commandContext struct {
	configFlag *string
	logOut     io.Writer

	deps   *app.Dependencies
	logger *slog.Logger
}

func newCommandContext(configFlag *string, logOut io.Writer) *commandContext {
	return &commandContext{configFlag: configFlag, logOut: logOut}
}

// dependencies loads the configuration and wires the catalog on first use.
func (c *commandContext) dependencies() (*app.Dependencies, error) {
	if c.deps != nil {
		return c.deps, nil
	}
	path := strings.TrimSpace(*c.configFlag)
	var (
		cfg *appconfig.CLIConfig
		err error
	)
	if path == "" {
		cfg, err = configloader.Load[*appconfig.CLIConfig](serviceName)
	} else {
		cfg, err = configloader.LoadFrom[*appconfig.CLIConfig](serviceName, path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	format := cfg.Log.Format
	if format == "" {
		format = "text"
	}
	level := cfg.Log.Level
	if level == "" {
		level = "warn"
	}
	c.logger = bootstrap.NewLoggerTo(c.logOut, level, format)

	deps, err := app.SetupDependencies(app.CLISettings(cfg), c.logger)
	if err != nil {
		return nil, err
	}
	c.deps = deps
	return deps, nil
}

// withPanel opens an admin panel for the stored session on a freshly loaded catalog.
func (c *commandContext) withPanel(ctx context.Context, fn func(*admin.Panel) error) error {
	deps, err := c.dependencies()
	if err != nil {
		return err
	}
	session, ok, err := deps.Mirror.Session()
	if err != nil {
		return err
	}
	if !ok {
		return c.fail(ctx, catalogerrors.ErrUnauthorized)
	}
	if err := deps.Store.Load(ctx); err != nil {
		return c.fail(ctx, err)
	}
	panel, err := admin.NewPanel(ctx, deps.Store, deps.Client, session, deps.Sessions, c.logger)
	if err != nil {
		return c.fail(ctx, err)
	}
	if err := fn(panel); err != nil {
		return c.fail(ctx, err)
	}
	return nil
}

// fail logs the cause and returns an error that prints as a user-facing message.
func (c *commandContext) fail(ctx context.Context, err error) error {
	if c.logger != nil {
		c.logger.ErrorContext(ctx, "Command failed", "error", err)
	}
	return &failure{cause: err}
}

func (c *commandContext) close() {
	if c.deps == nil {
		return
	}
	if err := c.deps.Close(); err != nil && c.logger != nil {
		c.logger.Warn("Failed to release resources", "error", err)
	}
	c.deps = nil
}

// failure shows only the transient message; the cause stays reachable for errors.Is.
type failure struct {
	cause   error
	message string
}

func (f *failure) Error() string {
	if f.message != "" {
		return f.message
	}
	return catalogerrors.UserMessage(f.cause)
}

func (f *failure) Unwrap() error {
	return f.cause
}
