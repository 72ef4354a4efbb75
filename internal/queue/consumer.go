/**
 * Asynq Queue Consumer for the passport MRZ worker
 *
 * Alternative to the LIST consumer for deployments that already run asynq.
 * Tasks of type "extract-passport" carry a JobPayload as JSON.
 */

package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/hibiken/asynq"

	"github.com/adverant/nexus/passport-worker/internal/logging"
	"github.com/adverant/nexus/passport-worker/internal/processor"
)

// Consumer handles job consumption from an asynq queue
type Consumer struct {
	server    *asynq.Server
	mux       *asynq.ServeMux
	processor processor.PassportProcessorInterface
	config    *ConsumerConfig
	logger    *logging.Logger
}

// ConsumerConfig holds consumer configuration
type ConsumerConfig struct {
	RedisURL          string
	QueueName         string
	Concurrency       int
	Processor         processor.PassportProcessorInterface
	ProcessingTimeout int64 // milliseconds (default: 120000 = 2 minutes)
	Logger            *logging.Logger
}

// NewConsumer creates a new queue consumer
func NewConsumer(cfg *ConsumerConfig) (*Consumer, error) {
	if cfg.RedisURL == "" {
		return nil, fmt.Errorf("RedisURL is required")
	}

	if cfg.QueueName == "" {
		return nil, fmt.Errorf("QueueName is required")
	}

	if cfg.Processor == nil {
		return nil, fmt.Errorf("Processor is required")
	}

	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}

	logger := cfg.Logger
	if logger == nil {
		logger = logging.Nop()
	}

	redisOpt, err := asynq.ParseRedisURI(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	server := asynq.NewServer(
		redisOpt,
		asynq.Config{
			Concurrency: cfg.Concurrency,
			Queues: map[string]int{
				cfg.QueueName: 10, // Priority 10 for main queue
				"default":     1,  // Priority 1 for fallback
			},
			RetryDelayFunc: retryDelay,
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				logger.Error("Task processing error", "type", task.Type(), "error", err)
			}),
			Logger:   &asynqLogger{logger: logger.Named("asynq")},
			LogLevel: asynq.WarnLevel,
		},
	)

	mux := asynq.NewServeMux()

	consumer := &Consumer{
		server:    server,
		mux:       mux,
		processor: cfg.Processor,
		config:    cfg,
		logger:    logger,
	}

	mux.HandleFunc(TaskTypeExtract, consumer.handleExtractPassport)

	return consumer, nil
}

// retryDelay is an exponential backoff: 5s, 10s, 20s, capped at 60s
func retryDelay(n int, _ error, _ *asynq.Task) time.Duration {
	delay := time.Duration(5*(1<<uint(n))) * time.Second
	if delay > 60*time.Second || delay <= 0 {
		delay = 60 * time.Second
	}
	return delay
}

// Start starts the queue consumer
func (c *Consumer) Start(ctx context.Context) error {
	c.logger.Info("Starting asynq queue consumer",
		"concurrency", c.config.Concurrency,
		"queue", c.config.QueueName)

	if err := c.server.Start(c.mux); err != nil {
		return fmt.Errorf("failed to start asynq server: %w", err)
	}

	return nil
}

// Stop stops the queue consumer gracefully
func (c *Consumer) Stop(ctx context.Context) error {
	c.logger.Info("Stopping queue consumer...")
	c.server.Shutdown()
	c.logger.Info("Queue consumer stopped")
	return nil
}

// handleExtractPassport processes one extract-passport task
func (c *Consumer) handleExtractPassport(ctx context.Context, task *asynq.Task) error {
	var payload JobPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return fmt.Errorf("failed to unmarshal job data: %v: %w", err, asynq.SkipRetry)
	}

	if err := payload.Validate(); err != nil {
		return fmt.Errorf("invalid job: %v: %w", err, asynq.SkipRetry)
	}

	c.logger.Info("Processing job", "job_id", payload.JobID, "filename", payload.Filename)

	if err := c.processor.UpdateJobStatus(ctx, payload.JobID, processor.StatusProcessing, map[string]interface{}{
		"filename": payload.Filename,
		"mimeType": payload.MimeType,
		"fileSize": payload.FileSize,
	}); err != nil {
		c.logger.Warn("Failed to update status to processing", "job_id", payload.JobID, "error", err)
	}

	timeout := processingTimeout(c.config.ProcessingTimeout)
	processCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	result, err := c.processor.ProcessPassport(processCtx, payload.Request())
	if err != nil {
		retried, _ := asynq.GetRetryCount(ctx)
		maxRetry, ok := asynq.GetMaxRetry(ctx)
		if !ok {
			maxRetry = DefaultMaxRetries
		}
		attempts := retried + 1

		if shouldRetry(err, attempts, maxRetry+1) {
			c.logger.Warn("Job failed, asynq will retry",
				"job_id", payload.JobID,
				"attempt", attempts,
				"error", err)
			return fmt.Errorf("passport processing failed: %w", err)
		}

		if updateErr := c.processor.UpdateJobStatus(ctx, payload.JobID, processor.StatusFailed, failureMetadata(err, attempts)); updateErr != nil {
			c.logger.Warn("Failed to update status to failed", "job_id", payload.JobID, "error", updateErr)
		}
		return fmt.Errorf("passport processing failed: %v: %w", err, asynq.SkipRetry)
	}

	c.logger.Info("Job completed",
		"job_id", payload.JobID,
		"status", result.Status,
		"record_id", result.RecordID,
		"duration_ms", result.ProcessingTimeMs)

	if rw := task.ResultWriter(); rw != nil {
		resultData, _ := json.Marshal(result.ToMap())
		if _, err := rw.Write(resultData); err != nil {
			c.logger.Debug("Could not write task result", "job_id", payload.JobID, "error", err)
		}
	}

	return nil
}

// GetStatistics returns consumer statistics
func (c *Consumer) GetStatistics() map[string]interface{} {
	return map[string]interface{}{
		"concurrency": c.config.Concurrency,
		"queue":       c.config.QueueName,
	}
}

// asynqLogger routes asynq's internal logging through logging.Logger
type asynqLogger struct {
	logger *logging.Logger
}

func (l *asynqLogger) Debug(args ...interface{}) { l.logger.Debug(fmt.Sprint(args...)) }
func (l *asynqLogger) Info(args ...interface{})  { l.logger.Info(fmt.Sprint(args...)) }
func (l *asynqLogger) Warn(args ...interface{})  { l.logger.Warn(fmt.Sprint(args...)) }
func (l *asynqLogger) Error(args ...interface{}) { l.logger.Error(fmt.Sprint(args...)) }

func (l *asynqLogger) Fatal(args ...interface{}) {
	l.logger.Error(fmt.Sprint(args...))
	os.Exit(1)
}
