/**
 * Configuration for the passport MRZ worker
 *
 * Loads configuration from environment variables (optionally seeded from a
 * .env file by the entry points).
 */

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/adverant/nexus/passport-worker/internal/ocr"
)

// Config holds worker configuration
type Config struct {
	// Redis configuration
	RedisURL     string
	QueueBackend string // "list" (plain Redis LIST protocol) or "asynq"
	QueueName    string

	// PostgreSQL configuration
	DatabaseURL string

	// Worker configuration
	WorkerConcurrency int
	MaxFileSize       int64
	ProcessingTimeout int // milliseconds

	// OCR engine configuration
	OCREngine      string // "library" (gosseract) or "cli" (tesseract binary)
	TesseractPath  string
	TessdataPrefix string
	TesseractLang  string
	TesseractOEM   int
	TesseractPSM   int

	// Debug side-channel
	Debug    bool
	DebugDir string

	LogLevel    string
	Environment string
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{
		RedisURL:          getEnvOrDefault("REDIS_URL", "redis://localhost:6379"),
		QueueBackend:      strings.ToLower(getEnvOrDefault("QUEUE_BACKEND", "list")),
		QueueName:         getEnvOrDefault("QUEUE_NAME", "passport:jobs"),
		DatabaseURL:       getEnvOrDefault("DATABASE_URL", ""),
		WorkerConcurrency: getEnvAsIntOrDefault("WORKER_CONCURRENCY", 4),
		MaxFileSize:       getEnvAsInt64OrDefault("MAX_FILE_SIZE", 52428800), // 50MB
		ProcessingTimeout: getEnvAsIntOrDefault("PROCESSING_TIMEOUT", 120000), // 2 minutes
		OCREngine:         strings.ToLower(getEnvOrDefault("OCR_ENGINE", "library")),
		TesseractPath:     getEnvOrDefault("TESSERACT_PATH", "/usr/bin/tesseract"),
		TessdataPrefix:    getEnvOrDefault("TESSDATA_PREFIX", ""),
		TesseractLang:     getEnvOrDefault("TESSERACT_LANG", "eng"),
		TesseractOEM:      getEnvAsIntOrDefault("TESSERACT_OEM", 1),
		TesseractPSM:      getEnvAsIntOrDefault("TESSERACT_PSM", 6),
		Debug:             getEnvAsBoolOrDefault("MRZ_DEBUG", false),
		DebugDir:          getEnvOrDefault("MRZ_DEBUG_DIR", os.TempDir()),
		LogLevel:          getEnvOrDefault("LOG_LEVEL", "info"),
		Environment:       getEnvOrDefault("ENVIRONMENT", "development"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks the settings every entry point needs
func (c *Config) Validate() error {
	switch c.OCREngine {
	case "library", "cli":
	default:
		return fmt.Errorf("OCR_ENGINE must be library or cli, got %q", c.OCREngine)
	}

	if c.OCREngine == "cli" && c.TesseractPath == "" {
		return fmt.Errorf("TESSERACT_PATH is required when OCR_ENGINE=cli")
	}

	if c.TesseractOEM < 0 || c.TesseractOEM > 3 {
		return fmt.Errorf("TESSERACT_OEM must be between 0 and 3, got %d", c.TesseractOEM)
	}

	if c.TesseractPSM < 0 || c.TesseractPSM > 13 {
		return fmt.Errorf("TESSERACT_PSM must be between 0 and 13, got %d", c.TesseractPSM)
	}

	if c.MaxFileSize < 1024 || c.MaxFileSize > 1073741824 { // 1KB to 1GB
		return fmt.Errorf("MAX_FILE_SIZE must be between 1KB and 1GB, got %d", c.MaxFileSize)
	}

	if c.Debug && c.DebugDir == "" {
		return fmt.Errorf("MRZ_DEBUG_DIR is required when MRZ_DEBUG is enabled")
	}

	return nil
}

// ValidateWorker checks the additional settings the queue worker needs
func (c *Config) ValidateWorker() error {
	if c.RedisURL == "" {
		return fmt.Errorf("REDIS_URL is required")
	}

	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	switch c.QueueBackend {
	case "list", "asynq":
	default:
		return fmt.Errorf("QUEUE_BACKEND must be list or asynq, got %q", c.QueueBackend)
	}

	if c.QueueName == "" {
		return fmt.Errorf("QUEUE_NAME is required")
	}

	if c.WorkerConcurrency < 1 || c.WorkerConcurrency > 100 {
		return fmt.Errorf("WORKER_CONCURRENCY must be between 1 and 100, got %d", c.WorkerConcurrency)
	}

	if c.ProcessingTimeout < 1000 {
		return fmt.Errorf("PROCESSING_TIMEOUT must be at least 1000ms, got %d", c.ProcessingTimeout)
	}

	return nil
}

// OCROptions builds engine options from the Tesseract settings
func (c *Config) OCROptions() ocr.Options {
	opts := ocr.DefaultOptions()
	if langs := splitList(c.TesseractLang, "+,"); len(langs) > 0 {
		opts.Languages = langs
	}
	opts.EngineMode = c.TesseractOEM
	opts.PageSegMode = c.TesseractPSM
	opts.TessdataPrefix = c.TessdataPrefix
	if c.TesseractPath != "" {
		opts.BinaryPath = c.TesseractPath
	}
	return opts
}

func splitList(s, seps string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return strings.ContainsRune(seps, r) || r == ' '
	})
}

// getEnvOrDefault gets environment variable or returns default
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsIntOrDefault gets environment variable as int or returns default
func getEnvAsIntOrDefault(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

// getEnvAsInt64OrDefault gets environment variable as int64 or returns default
func getEnvAsInt64OrDefault(key string, defaultValue int64) int64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseInt(valueStr, 10, 64)
	if err != nil {
		return defaultValue
	}

	return value
}

// getEnvAsBoolOrDefault gets environment variable as bool or returns default
func getEnvAsBoolOrDefault(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}
