/**
 * Passport MRZ Worker - Main Entry Point
 *
 * Consumes passport extraction jobs from Redis and stores the decoded
 * machine-readable zone of each image in PostgreSQL.
 */

package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/adverant/nexus/passport-worker/internal/config"
	"github.com/adverant/nexus/passport-worker/internal/logging"
	"github.com/adverant/nexus/passport-worker/internal/worker"
)

func main() {
	logger := logging.NewLogger("passport-worker")

	// Load environment variables
	if err := godotenv.Load(); err != nil {
		logger.Warn(".env not found, using system environment variables")
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}
	logger.SetLevel(logging.ParseLevel(cfg.LogLevel))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := worker.Run(ctx, cfg, logger); err != nil {
		logger.Error("Worker failed", "error", err)
		os.Exit(1)
	}
}
