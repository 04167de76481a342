// Package main is the entry point for the glucose monitoring API server.
//
// main stays minimal:
//  1. Load .env (optional) and the configuration
//  2. Build the logger and the application graph
//  3. Start serving until a shutdown signal arrives
//
// All actual logic lives in internal/.
package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"

	"github.com/joho/godotenv"

	"github.com/geniesugar/glucose-monitor/internal/app"
	"github.com/geniesugar/glucose-monitor/internal/config"
	"github.com/geniesugar/glucose-monitor/internal/logger"
	"github.com/geniesugar/glucose-monitor/internal/server"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run() error {
	// A missing .env is normal in production, where the environment is set
	// by the process manager.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("loading .env: %w", err)
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	log := logger.New(cfg.Log, os.Stdout)
	if cfg.Auth.JWTSecret == config.DevJWTSecret {
		log.Warn("JWT_SECRET not set; using the development secret")
	}
	if !cfg.DexcomOAuthEnabled() {
		log.Info("Dexcom OAuth not configured; /api/devices/dexcom/connect is disabled")
	}

	a, err := app.New(context.Background(), cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			log.Error("shutdown cleanup failed", slog.String("error", err.Error()))
		}
	}()
	a.Start()

	return server.New(a).Start(cfg.Port)
}
