package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/castwatch/backend/internal/config"
	"github.com/castwatch/backend/internal/db"
	"github.com/castwatch/backend/internal/httpserver"
	"github.com/castwatch/backend/internal/logging"
	"github.com/castwatch/backend/internal/middleware"
)

// Run bootstraps the castwatch backend application.
func Run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return errors.New("expected command: serve or migrate")
	}

	switch args[0] {
	case "serve":
		return serve(ctx)
	case "migrate":
		return runMigrations(ctx, args[1:])
	default:
		return fmt.Errorf("unknown command %q", args[0])
	}
}

func setup() (config.Config, *slog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return config.Config{}, nil, err
	}

	logger := logging.New(os.Stdout, cfg.SlogLevel())
	slog.SetDefault(logger)
	return cfg, logger, nil
}

func serve(ctx context.Context) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}

	pool, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer pool.Close()

	router := buildRouter(pool, cfg)
	handler := middleware.RequestLogger(logger)(router)

	srv := httpserver.New(cfg.AppPort, handler, cfg.WriteTimeout)

	logger.Info("starting http server", "port", cfg.AppPort, "catalog", cfg.Catalog.BaseURL)

	srvErr := make(chan error, 1)
	go func() {
		srvErr <- srv.Start()
	}()

	signalCh := make(chan os.Signal, 1)
	signal.Notify(signalCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(signalCh)

	select {
	case <-ctx.Done():
		logger.Info("context canceled, shutting down server")
	case sig := <-signalCh:
		logger.Info("received signal, shutting down", "signal", sig.String())
	case err := <-srvErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), httpserver.ShutdownTimeout)
	defer cancel()

	return srv.Shutdown(shutdownCtx)
}

func runMigrations(ctx context.Context, args []string) error {
	command := "up"
	if len(args) > 0 {
		command = args[0]
	}
	if command != "up" && command != "status" {
		return fmt.Errorf("unknown migrate command %q (expected up or status)", command)
	}

	cfg, logger, err := setup()
	if err != nil {
		return err
	}

	migrationDir, err := resolveDir(cfg.MigrationDir)
	if err != nil {
		return err
	}

	pool, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer pool.Close()

	conn, err := pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	migrator := db.Migrator{Dir: migrationDir, Logger: logger}

	if command == "status" {
		status, err := migrator.Status(ctx, conn)
		if err != nil {
			return err
		}
		db.PrintStatus(os.Stdout, status)
		return nil
	}

	applied, err := migrator.Up(ctx, conn)
	if err != nil {
		return err
	}
	if len(applied) == 0 {
		logger.Info("database already up to date")
		return nil
	}
	logger.Info("migrations complete", "applied", len(applied))
	return nil
}

func resolveDir(dir string) (string, error) {
	if filepath.IsAbs(dir) {
		return dir, nil
	}
	wd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("determine working directory: %w", err)
	}
	return filepath.Join(wd, dir), nil
}
