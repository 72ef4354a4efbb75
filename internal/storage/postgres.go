/**
 * PostgreSQL Client for the passport MRZ worker
 *
 * Handles job persistence and extracted passport records.
 */

package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lib/pq"
)

// PostgresClient handles database operations
type PostgresClient struct {
	db *sql.DB
}

// JobUpdate represents a job status update
type JobUpdate struct {
	JobID            string
	Status           string
	Filename         string
	MimeType         string
	FileSize         int64
	ProcessingTimeMs int64
	RecordID         string
	Attempts         int
	ErrorCode        string
	ErrorMessage     string
	DebugDir         string
	Metadata         map[string]interface{}
}

// queryRower is satisfied by both *sql.DB and *sql.Tx
type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// NewPostgresClient creates a new PostgreSQL client
func NewPostgresClient(databaseURL string) (*PostgresClient, error) {
	if databaseURL == "" {
		return nil, fmt.Errorf("database URL is required")
	}

	// Connect to database
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(2 * time.Minute)

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresClient{db: db}, nil
}

// EnsureSchema creates the passport schema and tables if they are missing
func (p *PostgresClient) EnsureSchema(ctx context.Context) error {
	if _, err := p.db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}

// UpdateJobStatus upserts the job row
func (p *PostgresClient) UpdateJobStatus(ctx context.Context, update *JobUpdate) error {
	return upsertJob(ctx, p.db, update)
}

// upsertJob creates the job record on first sight and updates it afterwards.
// Zero values never overwrite data already stored.
func upsertJob(ctx context.Context, q queryRower, update *JobUpdate) error {
	if update.JobID == "" {
		return fmt.Errorf("job ID is required")
	}

	if update.Status == "" {
		return fmt.Errorf("status is required")
	}

	metadataJSON, err := json.Marshal(update.Metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}

	query := `
		INSERT INTO passport.extraction_jobs (
			id, filename, mime_type, file_size, status,
			processing_time_ms, record_id, attempts,
			error_code, error_message, debug_dir, metadata,
			created_at, updated_at
		) VALUES (
			$1::uuid, COALESCE(NULLIF($2, ''), 'unknown'), NULLIF($3, ''), NULLIF($4, 0), $5,
			NULLIF($6, 0), CASE WHEN $7 = '' THEN NULL ELSE $7::uuid END, NULLIF($8, 0),
			NULLIF($9, ''), NULLIF($10, ''), NULLIF($11, ''),
			COALESCE(NULLIF($12, 'null')::jsonb, '{}'::jsonb),
			NOW(), NOW()
		)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			filename = CASE
				WHEN EXCLUDED.filename = 'unknown' THEN passport.extraction_jobs.filename
				ELSE EXCLUDED.filename
			END,
			mime_type = COALESCE(EXCLUDED.mime_type, passport.extraction_jobs.mime_type),
			file_size = COALESCE(EXCLUDED.file_size, passport.extraction_jobs.file_size),
			processing_time_ms = COALESCE(EXCLUDED.processing_time_ms, passport.extraction_jobs.processing_time_ms),
			record_id = COALESCE(EXCLUDED.record_id, passport.extraction_jobs.record_id),
			attempts = COALESCE(EXCLUDED.attempts, passport.extraction_jobs.attempts),
			error_code = EXCLUDED.error_code,
			error_message = EXCLUDED.error_message,
			debug_dir = COALESCE(EXCLUDED.debug_dir, passport.extraction_jobs.debug_dir),
			metadata = passport.extraction_jobs.metadata || EXCLUDED.metadata,
			updated_at = NOW()
		RETURNING id
	`

	var returnedID string
	err = q.QueryRowContext(
		ctx,
		query,
		update.JobID,            // $1
		update.Filename,         // $2
		update.MimeType,         // $3
		update.FileSize,         // $4
		update.Status,           // $5
		update.ProcessingTimeMs, // $6
		update.RecordID,         // $7
		update.Attempts,         // $8
		update.ErrorCode,        // $9
		update.ErrorMessage,     // $10
		update.DebugDir,         // $11
		string(metadataJSON),    // $12
	).Scan(&returnedID)

	if err == sql.ErrNoRows {
		return fmt.Errorf("job not found: %s", update.JobID)
	}

	if err != nil {
		return fmt.Errorf("failed to update job status (job=%s, status=%s): %w",
			update.JobID, update.Status, err)
	}

	return nil
}

// GetJobByID retrieves a job by ID
func (p *PostgresClient) GetJobByID(ctx context.Context, jobID string) (map[string]interface{}, error) {
	if jobID == "" {
		return nil, fmt.Errorf("job ID is required")
	}

	query := `
		SELECT
			id,
			filename,
			mime_type,
			file_size,
			status,
			processing_time_ms,
			record_id,
			attempts,
			error_code,
			error_message,
			debug_dir,
			metadata,
			created_at,
			updated_at
		FROM passport.extraction_jobs
		WHERE id = $1::uuid
	`

	var (
		id, filename, status              string
		mimeType                          sql.NullString
		fileSize, processingTimeMs        sql.NullInt64
		recordID                          sql.NullString
		attempts                          sql.NullInt64
		errorCode, errorMessage, debugDir sql.NullString
		metadataJSON                      []byte
		createdAt, updatedAt              time.Time
	)

	err := p.db.QueryRowContext(ctx, query, jobID).Scan(
		&id, &filename, &mimeType, &fileSize, &status,
		&processingTimeMs, &recordID, &attempts,
		&errorCode, &errorMessage, &debugDir,
		&metadataJSON, &createdAt, &updatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("job not found: %s", jobID)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to get job: %w", err)
	}

	// Parse metadata
	var metadata map[string]interface{}
	if len(metadataJSON) > 0 {
		if err := json.Unmarshal(metadataJSON, &metadata); err != nil {
			return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
		}
	}

	// Build result map
	result := map[string]interface{}{
		"id":        id,
		"filename":  filename,
		"status":    status,
		"createdAt": createdAt,
		"updatedAt": updatedAt,
		"metadata":  metadata,
	}

	if mimeType.Valid {
		result["mimeType"] = mimeType.String
	}
	if fileSize.Valid {
		result["fileSize"] = fileSize.Int64
	}
	if processingTimeMs.Valid {
		result["processingTimeMs"] = processingTimeMs.Int64
	}
	if recordID.Valid {
		result["recordId"] = recordID.String
	}
	if attempts.Valid {
		result["attempts"] = attempts.Int64
	}
	if errorCode.Valid {
		result["errorCode"] = errorCode.String
	}
	if errorMessage.Valid {
		result["errorMessage"] = errorMessage.String
	}
	if debugDir.Valid {
		result["debugDir"] = debugDir.String
	}

	return result, nil
}

// insertRecord stores one passport record and returns its creation time
func insertRecord(ctx context.Context, q queryRower, row *recordRow) (time.Time, error) {
	query := `
		INSERT INTO passport.passport_records (
			id, job_id,
			surname, given_names, passport_number, nationality,
			birth_date, sex, expiry_date, issuer, optional_data,
			raw_mrz, attempt_tags, created_at
		) VALUES ($1::uuid, $2::uuid, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, NOW())
		RETURNING created_at
	`

	var createdAt time.Time
	err := q.QueryRowContext(
		ctx,
		query,
		row.ID,
		row.JobID,
		row.Surname,
		row.GivenNames,
		row.PassportNumber,
		row.Nationality,
		row.BirthDate,
		row.Sex,
		row.ExpiryDate,
		row.Issuer,
		row.Optional,
		row.RawMRZ,
		pq.Array(row.AttemptTags),
	).Scan(&createdAt)

	if err != nil {
		return time.Time{}, fmt.Errorf("failed to store passport record: %w", err)
	}

	return createdAt, nil
}

// Ping checks database connectivity
func (p *PostgresClient) Ping(ctx context.Context) error {
	return p.db.PingContext(ctx)
}

// Close closes the database connection
func (p *PostgresClient) Close() error {
	if p.db != nil {
		return p.db.Close()
	}
	return nil
}

// GetStats returns connection pool statistics
func (p *PostgresClient) GetStats() sql.DBStats {
	return p.db.Stats()
}
