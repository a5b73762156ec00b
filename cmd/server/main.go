package main

import (
	"context"
	"errors"
	"flag"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/tsunami-security-scanner-callback-server/config"
	"github.com/google/tsunami-security-scanner-callback-server/internal/app"
	"github.com/google/tsunami-security-scanner-callback-server/pkg/storage"
	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"
)

func main() {
	configPath := flag.String("custom-config", "", "path to a YAML configuration file")
	flag.Parse()

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Error("failed to load .env file", "error", err)
		os.Exit(1)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if err = cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	logLvl := slog.LevelDebug
	if cfg.Prod {
		logLvl = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLvl}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := storage.New(cfg.StorageOptions(), clockwork.NewRealClock())
	if err != nil {
		logger.Error("failed to create interaction store", "error", err)
		os.Exit(1)
	}
	defer closeStore()

	tcs, err := app.New(ctx, cfg, store, logger)
	if err != nil {
		logger.Error("failed to create server", "error", err)
		os.Exit(1)
	}
	if err = tcs.Run(); err != nil {
		logger.Error("server stopped", "error", err)
		stop()
		_ = closeStore()
		os.Exit(1)
	}
}
