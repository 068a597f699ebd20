// Command matchcast loads configuration, sets up signal handling and runs the
// football rating, prediction and live match service in the configured mode.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/alanyoungcy/matchcast/internal/app"
	"github.com/alanyoungcy/matchcast/internal/config"
)

func main() {
	configPath := flag.String("config", "config.toml", "path to configuration file")
	mode := flag.String("mode", "", "override the configured mode")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("failed to load config",
			slog.String("path", *configPath),
			slog.String("error", err.Error()),
		)
		os.Exit(1)
	}
	if *mode != "" {
		cfg.Mode = *mode
	}

	logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: parseLevel(cfg.LogLevel)}))
	slog.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger.Info("matchcast starting",
		slog.String("mode", cfg.Mode),
		slog.String("config", *configPath),
		slog.Any("settings", config.RedactedConfig(cfg)),
	)

	application := app.New(cfg, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err = application.Run(ctx)
	stop()
	application.Close()

	if err != nil {
		logger.Error("application exited with error", slog.String("error", err.Error()))
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
	logger.Info("matchcast stopped")
}

func parseLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
