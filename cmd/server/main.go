// Package main implements the entry point for the Forkline outreach API
// server, which drives multi-step sales sequences against restaurants.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"

	"github.com/forkline/outreach-api/internal/config"
	"github.com/forkline/outreach-api/internal/platform/logger"
)

func main() {
	migrateCmd := flag.String("migrate", "",
		"run a migration command (up, down, status, version) instead of the server")
	flag.Parse()

	if err := run(*migrateCmd); err != nil {
		log.Fatalf("outreach-api: %v", err)
	}
}

// run loads configuration, wires the application, and either runs the
// requested migration command or serves HTTP until shutdown.
func run(migrateCmd string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	appLogger, err := logger.Setup(cfg.Server)
	if err != nil {
		return fmt.Errorf("failed to set up logger: %w", err)
	}

	appLogger.Info("configuration loaded",
		"port", cfg.Server.Port,
		"log_level", cfg.Server.LogLevel)

	if migrateCmd != "" {
		return runMigrations(cfg, migrateCmd)
	}

	app, err := newApplication(cfg, appLogger)
	if err != nil {
		return fmt.Errorf("failed to initialize application: %w", err)
	}

	return app.startHTTPServer(context.Background(), app.setupRouter())
}
