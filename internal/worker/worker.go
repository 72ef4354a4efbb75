/**
 * Passport MRZ Worker service
 *
 * Architecture:
 * - Redis LIST (or asynq) consumer for the passport job queue
 * - MRZ extraction pipeline (20 region/rotation attempts per image)
 * - PostgreSQL persistence for jobs and extracted passport records
 */

package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/adverant/nexus/passport-worker/internal/config"
	"github.com/adverant/nexus/passport-worker/internal/extractor"
	"github.com/adverant/nexus/passport-worker/internal/logging"
	"github.com/adverant/nexus/passport-worker/internal/ocr/tesseract"
	"github.com/adverant/nexus/passport-worker/internal/processor"
	"github.com/adverant/nexus/passport-worker/internal/queue"
	"github.com/adverant/nexus/passport-worker/internal/storage"
)

// Run starts the worker and blocks until ctx is cancelled, then shuts down
// gracefully: in-flight jobs finish before storage is closed.
func Run(ctx context.Context, cfg *config.Config, logger *logging.Logger) error {
	if err := cfg.ValidateWorker(); err != nil {
		return fmt.Errorf("invalid worker configuration: %w", err)
	}

	logger.Info("Passport worker starting",
		"queue_backend", cfg.QueueBackend,
		"queue", cfg.QueueName,
		"workers", cfg.WorkerConcurrency,
		"ocr_engine", cfg.OCREngine)

	engine, err := tesseract.NewEngine(cfg.OCREngine, cfg.OCROptions(), logger.Named("ocr"))
	if err != nil {
		return fmt.Errorf("failed to initialize OCR engine: %w", err)
	}

	base := extractor.New(engine, logger.Named("extractor"), extractor.Options{
		Debug:    cfg.Debug,
		DebugDir: cfg.DebugDir,
	})
	debug := base.WithOptions(extractor.Options{Debug: true, DebugDir: cfg.DebugDir})

	logger.Info("Connecting to PostgreSQL...")
	storageManager, err := storage.NewStorageManager(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to initialize storage manager: %w", err)
	}
	defer func() {
		if err := storageManager.Close(); err != nil {
			logger.Warn("Error closing storage manager", "error", err)
		}
	}()

	schemaCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := storageManager.EnsureSchema(schemaCtx); err != nil {
		return err
	}

	proc, err := processor.NewPassportProcessor(&processor.ProcessorConfig{
		MaxFileSize:    cfg.MaxFileSize,
		Store:          storageManager,
		Extractor:      base,
		DebugExtractor: debug,
		Logger:         logger.Named("processor"),
	})
	if err != nil {
		return fmt.Errorf("failed to initialize passport processor: %w", err)
	}

	stop, err := startConsumer(ctx, cfg, proc, logger.Named("queue"))
	if err != nil {
		return err
	}

	logger.Info("Passport worker is READY, waiting for jobs", "queue", cfg.QueueName)

	<-ctx.Done()
	logger.Info("Shutdown requested, draining in-flight jobs...")

	if err := stop(); err != nil {
		logger.Warn("Error stopping queue consumer", "error", err)
	}

	logger.Info("Shutdown complete")
	return nil
}

func startConsumer(ctx context.Context, cfg *config.Config, proc processor.PassportProcessorInterface, logger *logging.Logger) (func() error, error) {
	switch cfg.QueueBackend {
	case "asynq":
		consumer, err := queue.NewConsumer(&queue.ConsumerConfig{
			RedisURL:          cfg.RedisURL,
			QueueName:         cfg.QueueName,
			Concurrency:       cfg.WorkerConcurrency,
			Processor:         proc,
			ProcessingTimeout: int64(cfg.ProcessingTimeout),
			Logger:            logger,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to initialize asynq consumer: %w", err)
		}
		if err := consumer.Start(ctx); err != nil {
			return nil, err
		}
		return func() error { return consumer.Stop(context.Background()) }, nil

	default:
		consumer, err := queue.NewRedisConsumer(&queue.RedisConsumerConfig{
			RedisURL:          cfg.RedisURL,
			QueueName:         cfg.QueueName,
			Concurrency:       cfg.WorkerConcurrency,
			Processor:         proc,
			ProcessingTimeout: int64(cfg.ProcessingTimeout),
			Logger:            logger,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to initialize queue consumer: %w", err)
		}
		if err := consumer.Start(); err != nil {
			return nil, err
		}
		return consumer.Stop, nil
	}
}
