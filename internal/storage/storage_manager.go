/**
 * Storage Manager for the passport MRZ worker
 *
 * Stores the job outcome and the extracted record in one transaction, so a
 * job is never marked extracted without its record.
 */

package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/adverant/nexus/passport-worker/internal/passport"
)

// StorageManager coordinates PostgreSQL operations
type StorageManager struct {
	postgres *PostgresClient
}

// ExtractionInput is one finished job. Record is nil when no MRZ was extracted.
type ExtractionInput struct {
	Job         *JobUpdate
	Record      *passport.Record
	AttemptTags []string
}

// StoredExtraction is what StoreExtraction wrote
type StoredExtraction struct {
	JobID     string
	RecordID  string
	CreatedAt time.Time
}

// StoredRecord is a passport record read back from the database
type StoredRecord struct {
	ID          string
	JobID       string
	Record      *passport.Record
	AttemptTags []string
	CreatedAt   time.Time
}

// recordRow is a passport record in column form; absent fields are NULL
type recordRow struct {
	ID             string
	JobID          string
	Surname        sql.NullString
	GivenNames     sql.NullString
	PassportNumber sql.NullString
	Nationality    sql.NullString
	BirthDate      sql.NullString
	Sex            sql.NullString
	ExpiryDate     sql.NullString
	Issuer         sql.NullString
	Optional       sql.NullString
	RawMRZ         sql.NullString
	AttemptTags    []string
}

// NewStorageManager creates a new storage manager
func NewStorageManager(postgresURL string) (*StorageManager, error) {
	postgres, err := NewPostgresClient(postgresURL)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize PostgreSQL client: %w", err)
	}

	return &StorageManager{postgres: postgres}, nil
}

// EnsureSchema applies Schema
func (sm *StorageManager) EnsureSchema(ctx context.Context) error {
	return sm.postgres.EnsureSchema(ctx)
}

// StoreExtraction atomically updates the job and inserts its record
func (sm *StorageManager) StoreExtraction(ctx context.Context, input *ExtractionInput) (*StoredExtraction, error) {
	if input == nil || input.Job == nil {
		return nil, fmt.Errorf("job update is required")
	}

	if input.Job.JobID == "" {
		return nil, fmt.Errorf("job ID is required")
	}

	tx, err := sm.postgres.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() // no-op after Commit

	out := &StoredExtraction{JobID: input.Job.JobID}

	var row *recordRow
	if input.Record != nil {
		out.RecordID = uuid.New().String()
		input.Job.RecordID = out.RecordID
		row = toRecordRow(out.RecordID, input.Job.JobID, input.Record, input.AttemptTags)
	}

	// The job row must exist before the record that references it.
	if err := upsertJob(ctx, tx, input.Job); err != nil {
		return nil, err
	}

	if row != nil {
		createdAt, err := insertRecord(ctx, tx, row)
		if err != nil {
			return nil, err
		}
		out.CreatedAt = createdAt
	} else {
		out.CreatedAt = time.Now()
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit extraction: %w", err)
	}

	return out, nil
}

// GetRecord retrieves a passport record by ID
func (sm *StorageManager) GetRecord(ctx context.Context, recordID string) (*StoredRecord, error) {
	if recordID == "" {
		return nil, fmt.Errorf("record ID is required")
	}

	rows, err := sm.queryRecords(ctx, "WHERE id = $1::uuid", recordID)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("passport record not found: %s", recordID)
	}
	return rows[0], nil
}

// FindByPassportNumber returns every stored record for a document number, newest first
func (sm *StorageManager) FindByPassportNumber(ctx context.Context, number string) ([]*StoredRecord, error) {
	if number == "" {
		return nil, fmt.Errorf("passport number is required")
	}
	return sm.queryRecords(ctx, "WHERE passport_number = $1", number)
}

func (sm *StorageManager) queryRecords(ctx context.Context, where string, args ...interface{}) ([]*StoredRecord, error) {
	query := `
		SELECT
			id, job_id,
			surname, given_names, passport_number, nationality,
			birth_date, sex, expiry_date, issuer, optional_data,
			raw_mrz, attempt_tags, created_at
		FROM passport.passport_records
		` + where + `
		ORDER BY created_at DESC
	`

	rows, err := sm.postgres.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query passport records: %w", err)
	}
	defer rows.Close()

	var results []*StoredRecord
	for rows.Next() {
		var (
			row       recordRow
			createdAt time.Time
		)
		if err := rows.Scan(
			&row.ID, &row.JobID,
			&row.Surname, &row.GivenNames, &row.PassportNumber, &row.Nationality,
			&row.BirthDate, &row.Sex, &row.ExpiryDate, &row.Issuer, &row.Optional,
			&row.RawMRZ, pq.Array(&row.AttemptTags), &createdAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan passport record: %w", err)
		}

		results = append(results, &StoredRecord{
			ID:          row.ID,
			JobID:       row.JobID,
			Record:      row.toRecord(),
			AttemptTags: row.AttemptTags,
			CreatedAt:   createdAt,
		})
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read passport records: %w", err)
	}

	return results, nil
}

// UpdateJobStatus updates job status in PostgreSQL
func (sm *StorageManager) UpdateJobStatus(ctx context.Context, update *JobUpdate) error {
	return sm.postgres.UpdateJobStatus(ctx, update)
}

// GetJobByID retrieves job by ID
func (sm *StorageManager) GetJobByID(ctx context.Context, jobID string) (map[string]interface{}, error) {
	return sm.postgres.GetJobByID(ctx, jobID)
}

// Ping checks database connectivity
func (sm *StorageManager) Ping(ctx context.Context) error {
	return sm.postgres.Ping(ctx)
}

// GetStats returns connection pool statistics
func (sm *StorageManager) GetStats() map[string]interface{} {
	pgStats := sm.postgres.GetStats()

	return map[string]interface{}{
		"postgres": map[string]interface{}{
			"max_open_connections": pgStats.MaxOpenConnections,
			"open_connections":     pgStats.OpenConnections,
			"in_use":               pgStats.InUse,
			"idle":                 pgStats.Idle,
			"wait_count":           pgStats.WaitCount,
			"wait_duration":        pgStats.WaitDuration.String(),
		},
	}
}

// Close closes all connections
func (sm *StorageManager) Close() error {
	if sm.postgres != nil {
		if err := sm.postgres.Close(); err != nil {
			return fmt.Errorf("failed to close PostgreSQL: %w", err)
		}
	}
	return nil
}

func toRecordRow(id, jobID string, rec *passport.Record, tags []string) *recordRow {
	if tags == nil {
		tags = []string{}
	}
	return &recordRow{
		ID:             id,
		JobID:          jobID,
		Surname:        nullString(rec.Surname),
		GivenNames:     nullString(rec.GivenNames),
		PassportNumber: nullString(rec.PassportNumber),
		Nationality:    nullString(rec.Nationality),
		BirthDate:      nullDate(rec.BirthDate),
		Sex:            nullString(rec.Sex),
		ExpiryDate:     nullDate(rec.ExpiryDate),
		Issuer:         nullString(rec.Issuer),
		Optional:       nullString(rec.Optional),
		RawMRZ:         nullString(rec.RawMRZ),
		AttemptTags:    tags,
	}
}

func (r *recordRow) toRecord() *passport.Record {
	return &passport.Record{
		Surname:        r.Surname.String,
		GivenNames:     r.GivenNames.String,
		PassportNumber: r.PassportNumber.String,
		Nationality:    r.Nationality.String,
		BirthDate:      dateColumn(r.BirthDate),
		Sex:            r.Sex.String,
		ExpiryDate:     dateColumn(r.ExpiryDate),
		Issuer:         r.Issuer.String,
		Optional:       r.Optional.String,
		RawMRZ:         r.RawMRZ.String,
	}
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullDate(d *passport.Date) sql.NullString {
	if d == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: d.String(), Valid: true}
}

// dateColumn reads a stored date; unparsable values come back absent
func dateColumn(s sql.NullString) *passport.Date {
	if !s.Valid {
		return nil
	}
	d, err := passport.ParseDate(s.String)
	if err != nil {
		return nil
	}
	return &d
}
