// Package app wires matchcast's dependencies (stores, caches, blob storage,
// broker, classifier, services and notifications) and runs the configured
// operating mode.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/alanyoungcy/matchcast/internal/config"
)

// App is the root application object. It owns the configuration, logger, and a
// list of cleanup functions that are called in reverse order on shutdown.
type App struct {
	cfg     *config.Config
	logger  *slog.Logger
	closers []func()
}

// New creates a new App from the given configuration and logger.
func New(cfg *config.Config, logger *slog.Logger) *App {
	return &App{
		cfg:    cfg,
		logger: logger.With(slog.String("component", "app")),
	}
}

// Run wires all dependencies and blocks in the selected mode until it
// completes or ctx is cancelled. Cancellation is not reported as an error.
func (a *App) Run(ctx context.Context) error {
	a.logger.InfoContext(ctx, "starting application",
		slog.String("mode", a.cfg.Mode),
		slog.String("log_level", a.cfg.LogLevel),
	)

	deps, cleanup, err := Wire(ctx, a.cfg, a.logger)
	if err != nil {
		return fmt.Errorf("app: wire dependencies: %w", err)
	}
	a.closers = append(a.closers, cleanup)

	switch strings.ToLower(a.cfg.Mode) {
	case "serve":
		err = a.ServeMode(ctx, deps)
	case "rebuild":
		err = a.RebuildMode(ctx, deps)
	case "ingest":
		err = a.IngestMode(ctx, deps)
	case "simulate":
		err = a.SimulateMode(ctx, deps)
	case "full":
		err = a.FullMode(ctx, deps)
	default:
		err = fmt.Errorf("app: unsupported mode %q", a.cfg.Mode)
	}
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// Close tears down all resources in reverse registration order. It is safe to
// call multiple times; subsequent calls are no-ops.
func (a *App) Close() {
	a.logger.Info("shutting down application")
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
