package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"chantier-tracker/internal/config"
	"chantier-tracker/internal/database"
	"chantier-tracker/internal/server"
)

var (
	migrateOnlyFlag = flag.Bool("migrate-only", false, "Run DB migrations and exit")
	seedOnlyFlag    = flag.Bool("seed-only", false, "Run DB seed and exit")
)

func main() {
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}

	logger := slog.New(newLogHandler(cfg))
	slog.SetDefault(logger)

	db, err := database.Open(cfg.DB, logger)
	if err != nil {
		logger.Error("failed to connect to database", "driver", cfg.DB.Driver, "error", err)
		os.Exit(1)
	}

	if *seedOnlyFlag {
		if err := database.Seed(db, cfg.Seed, logger); err != nil {
			logger.Error("seeding failed", "error", err)
			os.Exit(1)
		}
		logger.Info("seeding completed")
		return
	}

	if err := database.Migrate(db, cfg.DB); err != nil {
		logger.Error("migration failed", "mode", cfg.DB.Migrations, "error", err)
		os.Exit(1)
	}
	if *migrateOnlyFlag {
		logger.Info("migrations completed")
		return
	}

	if err := database.Seed(db, cfg.Seed, logger); err != nil {
		logger.Error("seeding failed", "error", err)
		os.Exit(1)
	}

	r := server.NewRouter(cfg, server.NewDeps(db, cfg, logger))

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	waitForShutdown(logger, srv)

	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}

func waitForShutdown(logger *slog.Logger, srv *http.Server) {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	logger.Info("shutting down")
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("shutdown error", "error", err)
	}
}

// newLogHandler logs JSON in production and text elsewhere.
func newLogHandler(cfg *config.Config) slog.Handler {
	opts := &slog.HandlerOptions{Level: parseLogLevel(cfg.Log.Level)}
	if cfg.IsProduction() {
		return slog.NewJSONHandler(os.Stdout, opts)
	}
	return slog.NewTextHandler(os.Stdout, opts)
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
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
