/**
 * Direct Redis Queue Consumer for the passport MRZ worker
 *
 * Compatible with the TypeScript RedisQueue producers.
 * Uses simple Redis LIST operations:
 *   <queue>             LIST of job ids (LPUSH by producers, BRPOP here)
 *   <queue>:data        HASH job id -> RedisJobData JSON
 *   <queue>:processing  SET, <queue>:completed SET, <queue>:failed SET
 *   <queue>:results     HASH job id -> result JSON
 *   <queue>:errors      HASH job id -> error JSON
 *   <queue>:events      PUB/SUB channel of job:<status> events
 */

package queue

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/adverant/nexus/passport-worker/internal/errors"
	"github.com/adverant/nexus/passport-worker/internal/logging"
	"github.com/adverant/nexus/passport-worker/internal/processor"
)

var errNoJobs = stderrors.New("no jobs available")

// queueKeys names the Redis keys derived from a queue name
type queueKeys struct {
	list, data, processing, completed, failed, results, errors, events string
}

func keysFor(queue string) queueKeys {
	return queueKeys{
		list:       queue,
		data:       queue + ":data",
		processing: queue + ":processing",
		completed:  queue + ":completed",
		failed:     queue + ":failed",
		results:    queue + ":results",
		errors:     queue + ":errors",
		events:     queue + ":events",
	}
}

// RedisConsumer handles job consumption from Redis queue
type RedisConsumer struct {
	client    *redis.Client
	processor processor.PassportProcessorInterface
	config    *RedisConsumerConfig
	keys      queueKeys
	logger    *logging.Logger
	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
}

// RedisConsumerConfig holds consumer configuration
type RedisConsumerConfig struct {
	RedisURL          string
	QueueName         string
	Concurrency       int
	Processor         processor.PassportProcessorInterface
	ProcessingTimeout int64 // milliseconds (default: 120000 = 2 minutes)
	Logger            *logging.Logger
}

// NewRedisConsumer creates a new Redis-based queue consumer
func NewRedisConsumer(cfg *RedisConsumerConfig) (*RedisConsumer, error) {
	if cfg.RedisURL == "" {
		return nil, fmt.Errorf("RedisURL is required")
	}

	if cfg.QueueName == "" {
		cfg.QueueName = DefaultQueueName
	}

	if cfg.Processor == nil {
		return nil, fmt.Errorf("Processor is required")
	}

	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}

	client, err := redisClient(cfg.RedisURL)
	if err != nil {
		return nil, err
	}

	logger := cfg.Logger
	if logger == nil {
		logger = logging.Nop()
	}

	consumerCtx, cancel := context.WithCancel(context.Background())

	return &RedisConsumer{
		client:    client,
		processor: cfg.Processor,
		config:    cfg,
		keys:      keysFor(cfg.QueueName),
		logger:    logger,
		ctx:       consumerCtx,
		cancel:    cancel,
	}, nil
}

// redisClient parses url and checks the connection
func redisClient(url string) (*redis.Client, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	client := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return client, nil
}

// Start begins processing jobs from the queue
func (c *RedisConsumer) Start() error {
	c.logger.Info("Starting Redis queue consumer",
		"concurrency", c.config.Concurrency,
		"queue", c.config.QueueName)

	for i := 0; i < c.config.Concurrency; i++ {
		c.wg.Add(1)
		go c.worker(i)
	}

	c.logger.Info("Queue consumer started successfully")
	return nil
}

// Stop gracefully stops the consumer. In-flight jobs finish first.
func (c *RedisConsumer) Stop() error {
	c.logger.Info("Stopping queue consumer...")
	c.cancel()
	c.wg.Wait()
	return c.client.Close()
}

// worker is a goroutine that processes jobs
func (c *RedisConsumer) worker(id int) {
	defer c.wg.Done()
	c.logger.Debug("Worker started", "worker", id)

	for {
		select {
		case <-c.ctx.Done():
			c.logger.Debug("Worker stopping", "worker", id)
			return
		default:
			if err := c.processNextJob(); err != nil {
				if err == errNoJobs || c.ctx.Err() != nil {
					continue
				}
				c.logger.Warn("Worker error", "worker", id, "error", err)
				time.Sleep(1 * time.Second)
			}
		}
	}
}

// processNextJob fetches and processes the next job from the queue
func (c *RedisConsumer) processNextJob() error {
	// Block for up to 5 seconds waiting for a job
	result, err := c.client.BRPop(c.ctx, 5*time.Second, c.keys.list).Result()
	if err != nil {
		if err == redis.Nil {
			return errNoJobs
		}
		return fmt.Errorf("failed to fetch job: %w", err)
	}

	if len(result) < 2 {
		return fmt.Errorf("invalid job result")
	}

	id := result[1]

	jobData, err := c.client.HGet(c.ctx, c.keys.data, id).Result()
	if err != nil {
		return fmt.Errorf("failed to get job data: %w", err)
	}

	var job RedisJobData
	if err := json.Unmarshal([]byte(jobData), &job); err != nil {
		c.markFailed(id, id, fmt.Errorf("failed to unmarshal job: %w", err), 0)
		return nil
	}

	if job.Payload.JobID == "" {
		job.Payload.JobID = job.ID
	}
	if job.MaxRetries <= 0 {
		job.MaxRetries = DefaultMaxRetries
	}
	jobID := job.Payload.JobID

	if err := job.Payload.Validate(); err != nil {
		c.markFailed(job.ID, jobID, errors.NewInvalidImageError(jobID, err), job.Attempts)
		return nil
	}

	// Creates the job row on first sight; later updates fill it in
	if err := c.processor.UpdateJobStatus(c.ctx, jobID, processor.StatusProcessing, map[string]interface{}{
		"filename": job.Payload.Filename,
		"mimeType": job.Payload.MimeType,
		"fileSize": job.Payload.FileSize,
	}); err != nil {
		c.logger.Warn("Could not update job status to processing", "job_id", jobID, "error", err)
	}
	c.client.SAdd(c.ctx, c.keys.processing, job.ID)
	c.publish(jobID, "processing")

	c.logger.Info("Processing job", "job_id", jobID, "filename", job.Payload.Filename)

	processResult, err := c.processJob(&job)
	if err != nil {
		job.Attempts++
		if shouldRetry(err, job.Attempts, job.MaxRetries) {
			updatedData, _ := json.Marshal(job)
			c.client.HSet(c.ctx, c.keys.data, job.ID, updatedData)
			c.client.SRem(c.ctx, c.keys.processing, job.ID)
			c.client.LPush(c.ctx, c.keys.list, job.ID)
			c.logger.Warn("Job re-queued for retry",
				"job_id", jobID,
				"attempt", job.Attempts,
				"max_retries", job.MaxRetries,
				"error", err)
			return nil
		}

		c.markFailed(job.ID, jobID, err, job.Attempts)
		return nil
	}

	c.markCompleted(job.ID, jobID, processResult)
	return nil
}

// processJob runs the processor under the per-job timeout
func (c *RedisConsumer) processJob(job *RedisJobData) (*processor.ProcessResult, error) {
	timeout := processingTimeout(c.config.ProcessingTimeout)
	c.logger.Debug("Processing timeout set", "job_id", job.Payload.JobID, "timeout", timeout)

	// Detached from c.ctx so that Stop lets in-flight jobs finish
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	return c.processor.ProcessPassport(ctx, job.Payload.Request())
}

func (c *RedisConsumer) markCompleted(id, jobID string, result *processor.ProcessResult) {
	ctx := context.Background()
	c.client.SRem(ctx, c.keys.processing, id)
	c.client.SAdd(ctx, c.keys.completed, id)
	resultData, _ := json.Marshal(result.ToMap())
	c.client.HSet(ctx, c.keys.results, id, resultData)
	c.publish(jobID, "completed")

	c.logger.Info("Job completed", "job_id", jobID, "status", result.Status, "record_id", result.RecordID)
}

func (c *RedisConsumer) markFailed(id, jobID string, err error, attempts int) {
	ctx := context.Background()
	metadata := failureMetadata(err, attempts)

	c.client.SRem(ctx, c.keys.processing, id)
	c.client.SAdd(ctx, c.keys.failed, id)
	errorData, _ := json.Marshal(metadata)
	c.client.HSet(ctx, c.keys.errors, id, errorData)

	if updateErr := c.processor.UpdateJobStatus(ctx, jobID, processor.StatusFailed, metadata); updateErr != nil {
		c.logger.Warn("Failed to update job status to failed", "job_id", jobID, "error", updateErr)
	}
	c.publish(jobID, "failed")

	c.logger.Error("Job failed", "job_id", jobID, "attempts", attempts, "error", err)
}

// publish sends a job:<status> event for WebSocket streaming
func (c *RedisConsumer) publish(jobID, status string) {
	eventData, _ := json.Marshal(jobEvent(jobID, status, time.Now()))
	c.client.Publish(context.Background(), c.keys.events, eventData)
}

func jobEvent(jobID, status string, at time.Time) map[string]interface{} {
	return map[string]interface{}{
		"event":     fmt.Sprintf("job:%s", status),
		"jobId":     jobID,
		"timestamp": at.Format(time.RFC3339),
	}
}

// GetStats returns queue statistics
func (c *RedisConsumer) GetStats(ctx context.Context) (map[string]int64, error) {
	return queueStats(ctx, c.client, c.keys)
}

func queueStats(ctx context.Context, client *redis.Client, keys queueKeys) (map[string]int64, error) {
	pipe := client.Pipeline()
	waiting := pipe.LLen(ctx, keys.list)
	processing := pipe.SCard(ctx, keys.processing)
	completed := pipe.SCard(ctx, keys.completed)
	failed := pipe.SCard(ctx, keys.failed)
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("failed to read queue stats: %w", err)
	}

	return map[string]int64{
		"waiting":    waiting.Val(),
		"processing": processing.Val(),
		"completed":  completed.Val(),
		"failed":     failed.Val(),
	}, nil
}
