package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
)

// Producer submits extraction jobs to a queue backend
type Producer interface {
	Submit(ctx context.Context, payload *JobPayload) (string, error)
	Close() error
}

// ProducerConfig selects and configures the backend
type ProducerConfig struct {
	Backend    string // "list" or "asynq"
	RedisURL   string
	QueueName  string
	MaxRetries int
}

// NewProducer creates the producer for cfg.Backend
func NewProducer(cfg *ProducerConfig) (Producer, error) {
	if cfg.QueueName == "" {
		cfg.QueueName = DefaultQueueName
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = DefaultMaxRetries
	}

	switch cfg.Backend {
	case "", "list":
		client, err := redisClient(cfg.RedisURL)
		if err != nil {
			return nil, err
		}
		return &RedisProducer{client: client, keys: keysFor(cfg.QueueName), maxRetries: cfg.MaxRetries}, nil
	case "asynq":
		redisOpt, err := asynq.ParseRedisURI(cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
		}
		return &AsynqProducer{client: asynq.NewClient(redisOpt), queue: cfg.QueueName, maxRetries: cfg.MaxRetries}, nil
	default:
		return nil, fmt.Errorf("unknown queue backend %q (want list or asynq)", cfg.Backend)
	}
}

// prepare assigns a job id and checks the payload
func prepare(payload *JobPayload) error {
	if payload.JobID == "" {
		payload.JobID = uuid.New().String()
	}
	if payload.FileSize == 0 {
		payload.FileSize = int64(len(payload.FileBuffer))
	}
	return payload.Validate()
}

// RedisProducer writes jobs using the LIST protocol
type RedisProducer struct {
	client     *redis.Client
	keys       queueKeys
	maxRetries int
}

// newRedisJob wraps payload in the envelope stored in <queue>:data
func newRedisJob(payload *JobPayload, maxRetries int, now time.Time) *RedisJobData {
	return &RedisJobData{
		ID:         payload.JobID,
		Type:       JobTypeExtract,
		Payload:    *payload,
		CreatedAt:  now,
		MaxRetries: maxRetries,
	}
}

// Submit stores the job data and pushes its id onto the queue
func (p *RedisProducer) Submit(ctx context.Context, payload *JobPayload) (string, error) {
	if err := prepare(payload); err != nil {
		return "", err
	}

	data, err := json.Marshal(newRedisJob(payload, p.maxRetries, time.Now()))
	if err != nil {
		return "", fmt.Errorf("failed to marshal job: %w", err)
	}

	_, err = p.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, p.keys.data, payload.JobID, data)
		pipe.LPush(ctx, p.keys.list, payload.JobID)
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("failed to enqueue job %s: %w", payload.JobID, err)
	}

	eventData, _ := json.Marshal(jobEvent(payload.JobID, "queued", time.Now()))
	p.client.Publish(ctx, p.keys.events, eventData)

	return payload.JobID, nil
}

// Stats returns the LIST queue counters
func (p *RedisProducer) Stats(ctx context.Context) (map[string]int64, error) {
	return queueStats(ctx, p.client, p.keys)
}

// Close closes the Redis connection
func (p *RedisProducer) Close() error {
	return p.client.Close()
}

// AsynqProducer enqueues extract-passport tasks
type AsynqProducer struct {
	client     *asynq.Client
	queue      string
	maxRetries int
}

// Submit enqueues the payload as a task whose id is the job id
func (p *AsynqProducer) Submit(ctx context.Context, payload *JobPayload) (string, error) {
	if err := prepare(payload); err != nil {
		return "", err
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal job: %w", err)
	}

	task := asynq.NewTask(TaskTypeExtract, data)
	info, err := p.client.EnqueueContext(ctx, task,
		asynq.Queue(p.queue),
		asynq.TaskID(payload.JobID),
		asynq.MaxRetry(p.maxRetries),
		asynq.Retention(24*time.Hour),
	)
	if err != nil {
		return "", fmt.Errorf("failed to enqueue job %s: %w", payload.JobID, err)
	}

	return info.ID, nil
}

// Close closes the asynq client
func (p *AsynqProducer) Close() error {
	return p.client.Close()
}
