/**
 * Passport Processor for the MRZ worker
 *
 * Orchestrates one extraction job:
 * - Load the image (buffer or local path) under the size limit
 * - Detect the real format from magic bytes and reject non-images
 * - Run the MRZ extractor under the job deadline
 * - Persist the job outcome and extracted record
 */

package processor

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/adverant/nexus/passport-worker/internal/errors"
	"github.com/adverant/nexus/passport-worker/internal/logging"
	"github.com/adverant/nexus/passport-worker/internal/passport"
	"github.com/adverant/nexus/passport-worker/internal/storage"
)

// Job statuses written to storage
const (
	StatusProcessing   = "processing"
	StatusExtracted    = "extracted"
	StatusNotDetected  = "not_detected"
	StatusInvalidImage = "invalid_image"
	StatusFailed       = "failed"
)

// PassportProcessorInterface defines the interface for passport processing
type PassportProcessorInterface interface {
	ProcessPassport(ctx context.Context, req *ProcessRequest) (*ProcessResult, error)
	UpdateJobStatus(ctx context.Context, jobID string, status string, metadata map[string]interface{}) error
}

// Extractor is the part of *extractor.Extractor the processor uses
type Extractor interface {
	ExtractBytesContext(ctx context.Context, data []byte, source string) *passport.Result
}

// Store is the part of *storage.StorageManager the processor uses
type Store interface {
	StoreExtraction(ctx context.Context, input *storage.ExtractionInput) (*storage.StoredExtraction, error)
	UpdateJobStatus(ctx context.Context, update *storage.JobUpdate) error
}

// ProcessorConfig holds processor configuration
type ProcessorConfig struct {
	MaxFileSize    int64
	Store          Store
	Extractor      Extractor
	DebugExtractor Extractor // used for requests with Debug set; defaults to Extractor
	Logger         *logging.Logger
}

// ProcessRequest represents a passport extraction request
type ProcessRequest struct {
	JobID      string
	Filename   string
	MimeType   string
	FileSize   int64
	FilePath   string
	FileBuffer []byte
	Debug      bool
	Metadata   map[string]interface{}
}

// ProcessResult represents the processing result
type ProcessResult struct {
	JobID            string
	RecordID         string
	Status           string
	Result           *passport.Result
	ProcessingTimeMs int64
}

// ToMap renders the result for the queue's result hash
func (r *ProcessResult) ToMap() map[string]interface{} {
	m := map[string]interface{}{
		"jobId":            r.JobID,
		"status":           r.Status,
		"processingTimeMs": r.ProcessingTimeMs,
	}
	if r.RecordID != "" {
		m["recordId"] = r.RecordID
	}
	if r.Result != nil {
		m["result"] = r.Result.ToMap()
		m["attempts"] = len(r.Result.Attempts)
		if r.Result.DebugDir != "" {
			m["debugDir"] = r.Result.DebugDir
		}
	}
	return m
}

// PassportProcessor implements PassportProcessorInterface
type PassportProcessor struct {
	config         *ProcessorConfig
	store          Store
	extractor      Extractor
	debugExtractor Extractor
	logger         *logging.Logger
}

// NewPassportProcessor creates a new passport processor
func NewPassportProcessor(cfg *ProcessorConfig) (*PassportProcessor, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}

	if cfg.Store == nil {
		return nil, fmt.Errorf("store is required")
	}

	if cfg.Extractor == nil {
		return nil, fmt.Errorf("extractor is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = logging.Nop()
	}

	debugExtractor := cfg.DebugExtractor
	if debugExtractor == nil {
		debugExtractor = cfg.Extractor
	}

	return &PassportProcessor{
		config:         cfg,
		store:          cfg.Store,
		extractor:      cfg.Extractor,
		debugExtractor: debugExtractor,
		logger:         logger,
	}, nil
}

// ProcessPassport runs one job through the pipeline.
//
// Invalid images and undetected MRZs are normal outcomes: they are stored
// and returned without an error. The returned error is always a
// *errors.ProcessingError.
func (p *PassportProcessor) ProcessPassport(ctx context.Context, req *ProcessRequest) (*ProcessResult, error) {
	start := time.Now()
	if req.JobID == "" {
		req.JobID = uuid.New().String()
	}

	p.logger.Info("Starting passport extraction", "job_id", req.JobID, "filename", req.Filename, "size", req.FileSize)

	// Step 1: Load the image
	fileData, err := p.loadFile(req)
	if err != nil {
		return nil, err
	}
	req.FileSize = int64(len(fileData))

	// Step 2: Check the real format
	detectedMime := detectMimeTypeFromMagicBytes(fileData)
	if detectedMime != "" && detectedMime != req.MimeType {
		p.logger.Debug("Corrected MIME type from magic bytes", "job_id", req.JobID, "declared", req.MimeType, "detected", detectedMime)
		req.MimeType = detectedMime
	}
	if !isSupportedImage(req.MimeType) {
		return nil, errors.NewUnsupportedFormatError(req.JobID, req.MimeType)
	}

	// Step 3: Extract
	extractor := p.extractor
	if req.Debug {
		extractor = p.debugExtractor
	}

	source := req.Filename
	if source == "" {
		source = req.JobID
	}
	result := extractor.ExtractBytesContext(ctx, fileData, source)

	switch result.ErrorCode() {
	case errors.ErrorProcessingTimeout, errors.ErrorCancelled:
		result.Err.JobID = req.JobID
		p.logger.Warn("Extraction interrupted", "job_id", req.JobID, "error_code", result.Err.Code, "elapsed", time.Since(start))
		return nil, result.Err
	}

	processing := &ProcessResult{
		JobID:            req.JobID,
		Status:           statusFor(result),
		Result:           result,
		ProcessingTimeMs: time.Since(start).Milliseconds(),
	}

	// Step 4: Persist
	stored, err := p.store.StoreExtraction(ctx, &storage.ExtractionInput{
		Job:         p.jobUpdate(req, processing),
		Record:      result.Record,
		AttemptTags: attemptTags(result.Attempts),
	})
	if err != nil {
		p.logger.Error("Failed to store extraction", "job_id", req.JobID, "error", err)
		return nil, errors.NewStorageFailedError(req.JobID, err)
	}
	processing.RecordID = stored.RecordID

	p.logger.Info("Passport extraction finished",
		"job_id", req.JobID,
		"status", processing.Status,
		"attempts", len(result.Attempts),
		"record_id", processing.RecordID,
		"duration_ms", processing.ProcessingTimeMs)

	return processing, nil
}

// UpdateJobStatus updates job status in the database
func (p *PassportProcessor) UpdateJobStatus(ctx context.Context, jobID string, status string, metadata map[string]interface{}) error {
	update := &storage.JobUpdate{
		JobID:    jobID,
		Status:   status,
		Metadata: metadata,
	}

	// Extract specific fields from metadata if present
	if metadata != nil {
		if filename, ok := metadata["filename"].(string); ok {
			update.Filename = filename
		}
		if mimeType, ok := metadata["mimeType"].(string); ok {
			update.MimeType = mimeType
		}
		if fileSize, ok := metadata["fileSize"].(int64); ok {
			update.FileSize = fileSize
		}
		if processingTime, ok := metadata["processingTime"].(int64); ok {
			update.ProcessingTimeMs = processingTime
		}
		// ProcessingError.ToMap keys
		if code, ok := metadata["error_code"].(string); ok {
			update.ErrorCode = code
		}
		if message, ok := metadata["message"].(string); ok {
			update.ErrorMessage = message
		}
		if errorMsg, ok := metadata["error"].(string); ok {
			if update.ErrorCode == "" {
				update.ErrorCode = "PROCESSING_ERROR"
			}
			update.ErrorMessage = errorMsg
		}
	}

	return p.store.UpdateJobStatus(ctx, update)
}

// loadFile loads the image from the buffer or a local path
func (p *PassportProcessor) loadFile(req *ProcessRequest) ([]byte, error) {
	limit := p.config.MaxFileSize

	// If buffer is provided, use it directly
	if len(req.FileBuffer) > 0 {
		if limit > 0 && int64(len(req.FileBuffer)) > limit {
			return nil, errors.NewFileTooLargeError(req.JobID, int64(len(req.FileBuffer)), limit)
		}
		return req.FileBuffer, nil
	}

	if req.FilePath != "" {
		info, err := os.Stat(req.FilePath)
		if err != nil {
			return nil, errors.NewInvalidImageError(req.FilePath, err)
		}
		if limit > 0 && info.Size() > limit {
			return nil, errors.NewFileTooLargeError(req.JobID, info.Size(), limit)
		}
		data, err := os.ReadFile(req.FilePath)
		if err != nil {
			return nil, errors.NewInvalidImageError(req.FilePath, err)
		}
		if req.Filename == "" {
			req.Filename = req.FilePath
		}
		return data, nil
	}

	return nil, errors.NewInvalidImageError(req.JobID, fmt.Errorf("no file source provided (buffer or path)"))
}

func (p *PassportProcessor) jobUpdate(req *ProcessRequest, res *ProcessResult) *storage.JobUpdate {
	update := &storage.JobUpdate{
		JobID:            req.JobID,
		Status:           res.Status,
		Filename:         req.Filename,
		MimeType:         req.MimeType,
		FileSize:         req.FileSize,
		ProcessingTimeMs: res.ProcessingTimeMs,
		Attempts:         len(res.Result.Attempts),
		DebugDir:         res.Result.DebugDir,
		Metadata:         req.Metadata,
	}
	if res.Result.Err != nil {
		update.ErrorCode = string(res.Result.Err.Code)
		update.ErrorMessage = res.Result.Err.Message
	}
	return update
}

func statusFor(result *passport.Result) string {
	switch {
	case result.OK():
		return StatusExtracted
	case result.ErrorCode() == errors.ErrorMRZNotDetected:
		return StatusNotDetected
	default:
		return StatusInvalidImage
	}
}

func attemptTags(attempts []passport.Attempt) []string {
	tags := make([]string, len(attempts))
	for i, a := range attempts {
		tags[i] = a.Tag()
	}
	return tags
}
