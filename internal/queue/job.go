package queue

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"

	"github.com/adverant/nexus/passport-worker/internal/errors"
	"github.com/adverant/nexus/passport-worker/internal/processor"
)

// Defaults shared by both backends
const (
	DefaultQueueName  = "passport:jobs"
	DefaultMaxRetries = 3
	TaskTypeExtract   = "extract-passport"
	JobTypeExtract    = "passport-extraction"
	defaultTimeoutMs  = 120000
)

// RedisJobData represents a job from the Redis queue
type RedisJobData struct {
	ID         string     `json:"id"`
	Type       string     `json:"type"`
	Payload    JobPayload `json:"payload"`
	CreatedAt  time.Time  `json:"createdAt"`
	Attempts   int        `json:"attempts"`
	MaxRetries int        `json:"maxRetries"`
}

// JobPayload contains the actual job data
type JobPayload struct {
	JobID      string                 `json:"jobId"`
	Filename   string                 `json:"filename"`
	MimeType   string                 `json:"mimeType,omitempty"`
	FileSize   int64                  `json:"fileSize,omitempty"`
	FilePath   string                 `json:"filePath,omitempty"`
	FileBuffer []byte                 `json:"fileBuffer,omitempty"` // base64 on the wire
	Debug      bool                   `json:"debug,omitempty"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
}

// UnmarshalJSON implements custom JSON unmarshaling for JobPayload to handle Buffer serialization
// Supports both base64 string format and Node.js Buffer object format
func (p *JobPayload) UnmarshalJSON(data []byte) error {
	// Create alias type to avoid recursion
	type Alias JobPayload
	aux := &struct {
		FileBuffer interface{} `json:"fileBuffer,omitempty"`
		*Alias
	}{
		Alias: (*Alias)(p),
	}

	if err := json.Unmarshal(data, &aux); err != nil {
		return fmt.Errorf("failed to unmarshal JobPayload: %w", err)
	}

	if aux.FileBuffer == nil {
		return nil
	}

	switch v := aux.FileBuffer.(type) {
	case string:
		decoded, err := base64.StdEncoding.DecodeString(v)
		if err != nil {
			return fmt.Errorf("failed to decode base64 fileBuffer: %w", err)
		}
		p.FileBuffer = decoded

	case map[string]interface{}:
		bufferType, ok := v["type"].(string)
		if !ok || bufferType != "Buffer" {
			return fmt.Errorf("invalid Buffer object format (missing or incorrect 'type' field)")
		}
		dataArray, ok := v["data"].([]interface{})
		if !ok {
			return fmt.Errorf("Buffer object missing 'data' array")
		}
		p.FileBuffer = make([]byte, len(dataArray))
		for i, val := range dataArray {
			byteVal, ok := val.(float64)
			if !ok || byteVal < 0 || byteVal > 255 {
				return fmt.Errorf("invalid byte value in Buffer data array at index %d", i)
			}
			p.FileBuffer[i] = byte(byteVal)
		}

	default:
		return fmt.Errorf("fileBuffer must be either base64 string or Buffer object, got %T", v)
	}

	return nil
}

// Request converts the payload to a processor request
func (p *JobPayload) Request() *processor.ProcessRequest {
	return &processor.ProcessRequest{
		JobID:      p.JobID,
		Filename:   p.Filename,
		MimeType:   p.MimeType,
		FileSize:   p.FileSize,
		FilePath:   p.FilePath,
		FileBuffer: p.FileBuffer,
		Debug:      p.Debug,
		Metadata:   p.Metadata,
	}
}

// Validate checks that the payload names a job and an image source
func (p *JobPayload) Validate() error {
	if p.JobID == "" {
		return fmt.Errorf("jobId is required")
	}
	if len(p.FileBuffer) == 0 && p.FilePath == "" {
		return fmt.Errorf("job %s has neither fileBuffer nor filePath", p.JobID)
	}
	return nil
}

// shouldRetry decides whether a failed job goes back on the queue. Only
// retriable processing errors are retried; extraction outcomes never are.
func shouldRetry(err error, attempts, maxRetries int) bool {
	if err == nil || attempts >= maxRetries {
		return false
	}
	if pe, ok := errors.As(err); ok {
		return pe.Retriable()
	}
	return true
}

// failureMetadata is what gets stored for a failed job
func failureMetadata(err error, attempts int) map[string]interface{} {
	var m map[string]interface{}
	if pe, ok := errors.As(err); ok {
		m = pe.ToMap()
	} else {
		m = map[string]interface{}{"error_code": "PROCESSING_ERROR", "message": err.Error()}
	}
	m["error"] = err.Error()
	m["attempts"] = attempts
	return m
}

func processingTimeout(ms int64) time.Duration {
	if ms <= 0 {
		ms = defaultTimeoutMs
	}
	return time.Duration(ms) * time.Millisecond
}
