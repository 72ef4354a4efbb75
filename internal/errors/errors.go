package errors

import (
	stderrors "errors"
	"fmt"
	"time"
)

/**
 * Custom error types for the passport MRZ worker
 *
 * Extraction outcomes (invalid image, MRZ not detected) are ordinary
 * results and are never retried; infrastructure failures are.
 */

// ErrorCode enum for structured error handling
type ErrorCode string

const (
	// Extraction errors
	ErrorInvalidImage      ErrorCode = "INVALID_IMAGE"
	ErrorMRZNotDetected    ErrorCode = "MRZ_NOT_DETECTED"
	ErrorEngineFailure     ErrorCode = "ENGINE_FAILURE"
	ErrorUnsupportedFormat ErrorCode = "UNSUPPORTED_FORMAT"
	ErrorFileTooLarge      ErrorCode = "FILE_TOO_LARGE"

	// Processing errors
	ErrorProcessingTimeout ErrorCode = "PROCESSING_TIMEOUT"
	ErrorCancelled         ErrorCode = "CANCELLED"

	// Infrastructure errors
	ErrorStorageFailed ErrorCode = "STORAGE_FAILED"
	ErrorQueueFailed   ErrorCode = "QUEUE_FAILED"
)

// ProcessingError represents a structured processing error
type ProcessingError struct {
	Code      ErrorCode
	Message   string
	JobID     string
	Timestamp time.Time
	Details   map[string]interface{}
	Cause     error
}

func (e *ProcessingError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *ProcessingError) Unwrap() error {
	return e.Cause
}

// Retriable reports whether a worker should re-queue the job that produced e.
func (e *ProcessingError) Retriable() bool {
	switch e.Code {
	case ErrorProcessingTimeout, ErrorStorageFailed, ErrorQueueFailed:
		return true
	}
	return false
}

// Is reports whether err (or anything it wraps) is a ProcessingError with the given code.
func Is(err error, code ErrorCode) bool {
	var pe *ProcessingError
	if stderrors.As(err, &pe) {
		return pe.Code == code
	}
	return false
}

// As returns the first ProcessingError in err's chain.
func As(err error) (*ProcessingError, bool) {
	var pe *ProcessingError
	if stderrors.As(err, &pe) {
		return pe, true
	}
	return nil, false
}

// Factory functions for common errors

func NewInvalidImageError(source string, cause error) *ProcessingError {
	return &ProcessingError{
		Code:      ErrorInvalidImage,
		Message:   fmt.Sprintf("Cannot read image: %s", source),
		Timestamp: time.Now(),
		Details: map[string]interface{}{
			"source": source,
		},
		Cause: cause,
	}
}

func NewMRZNotDetectedError(attempts int) *ProcessingError {
	return &ProcessingError{
		Code:      ErrorMRZNotDetected,
		Message:   "MRZ not detected",
		Timestamp: time.Now(),
		Details: map[string]interface{}{
			"attempts": attempts,
		},
	}
}

func NewEngineFailureError(engine string, tag string, cause error) *ProcessingError {
	return &ProcessingError{
		Code:      ErrorEngineFailure,
		Message:   fmt.Sprintf("OCR engine %s failed on %s", engine, tag),
		Timestamp: time.Now(),
		Details: map[string]interface{}{
			"engine": engine,
			"tag":    tag,
		},
		Cause: cause,
	}
}

func NewUnsupportedFormatError(jobID string, mimeType string) *ProcessingError {
	return &ProcessingError{
		Code:      ErrorUnsupportedFormat,
		Message:   fmt.Sprintf("Unsupported file format: %s", mimeType),
		JobID:     jobID,
		Timestamp: time.Now(),
		Details: map[string]interface{}{
			"mime_type": mimeType,
		},
	}
}

func NewFileTooLargeError(jobID string, size, limit int64) *ProcessingError {
	return &ProcessingError{
		Code:      ErrorFileTooLarge,
		Message:   fmt.Sprintf("File size exceeds maximum: %d > %d bytes", size, limit),
		JobID:     jobID,
		Timestamp: time.Now(),
		Details: map[string]interface{}{
			"file_size": size,
			"max_size":  limit,
		},
	}
}

func NewProcessingTimeoutError(jobID string, duration time.Duration, cause error) *ProcessingError {
	return &ProcessingError{
		Code:      ErrorProcessingTimeout,
		Message:   fmt.Sprintf("Processing timed out after %v", duration),
		JobID:     jobID,
		Timestamp: time.Now(),
		Details: map[string]interface{}{
			"timeout_duration": duration.String(),
		},
		Cause: cause,
	}
}

func NewCancelledError(jobID string, cause error) *ProcessingError {
	return &ProcessingError{
		Code:      ErrorCancelled,
		Message:   "Processing cancelled",
		JobID:     jobID,
		Timestamp: time.Now(),
		Cause:     cause,
	}
}

func NewStorageFailedError(jobID string, cause error) *ProcessingError {
	return &ProcessingError{
		Code:      ErrorStorageFailed,
		Message:   "Failed to store extraction results",
		JobID:     jobID,
		Timestamp: time.Now(),
		Cause:     cause,
	}
}

func NewQueueFailedError(jobID string, cause error) *ProcessingError {
	return &ProcessingError{
		Code:      ErrorQueueFailed,
		Message:   "Failed to submit job to queue",
		JobID:     jobID,
		Timestamp: time.Now(),
		Cause:     cause,
	}
}

// ToMap converts error to map for database storage
func (e *ProcessingError) ToMap() map[string]interface{} {
	result := map[string]interface{}{
		"error_code": string(e.Code),
		"message":    e.Message,
		"timestamp":  e.Timestamp,
	}

	for k, v := range e.Details {
		result[k] = v
	}

	if e.JobID != "" {
		result["job_id"] = e.JobID
	}

	if e.Cause != nil {
		result["cause"] = e.Cause.Error()
	}

	return result
}
