package storage

import (
	"context"
	"database/sql"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adverant/nexus/passport-worker/internal/passport"
)

func TestToRecordRow_AbsentFieldsAreNull(t *testing.T) {
	rec := &passport.Record{
		Surname:        "SMITH",
		PassportNumber: "AB123456",
		BirthDate:      &passport.Date{Year: 1985, Month: 5, Day: 15},
	}

	row := toRecordRow("r1", "j1", rec, nil)

	assert.Equal(t, sql.NullString{String: "SMITH", Valid: true}, row.Surname)
	assert.Equal(t, sql.NullString{String: "1985-05-15", Valid: true}, row.BirthDate)
	assert.False(t, row.GivenNames.Valid)
	assert.False(t, row.ExpiryDate.Valid)
	assert.False(t, row.Optional.Valid)
	assert.Equal(t, []string{}, row.AttemptTags, "tags are never NULL")
}

func TestRecordRow_ToRecord(t *testing.T) {
	row := &recordRow{
		Surname:    sql.NullString{String: "DOE", Valid: true},
		BirthDate:  sql.NullString{String: "1985-13-40", Valid: true},
		ExpiryDate: sql.NullString{String: "garbage", Valid: true},
	}

	rec := row.toRecord()
	assert.Equal(t, "DOE", rec.Surname)
	assert.Empty(t, rec.GivenNames)
	assert.Equal(t, &passport.Date{Year: 1985, Month: 13, Day: 40}, rec.BirthDate, "printed month and day are kept")
	assert.Nil(t, rec.ExpiryDate)
}

func TestDateColumn(t *testing.T) {
	assert.Nil(t, dateColumn(sql.NullString{}))
	assert.Equal(t, &passport.Date{Year: 2030, Month: 1, Day: 1}, dateColumn(sql.NullString{String: "2030-01-01", Valid: true}))
}

func TestStoreExtraction_RequiresJob(t *testing.T) {
	sm := &StorageManager{}
	_, err := sm.StoreExtraction(context.Background(), nil)
	assert.Error(t, err)

	_, err = sm.StoreExtraction(context.Background(), &ExtractionInput{Job: &JobUpdate{}})
	assert.ErrorContains(t, err, "job ID")
}

func TestUpsertJob_Validation(t *testing.T) {
	err := upsertJob(context.Background(), nil, &JobUpdate{Status: "processing"})
	assert.ErrorContains(t, err, "job ID")

	err = upsertJob(context.Background(), nil, &JobUpdate{JobID: "j"})
	assert.ErrorContains(t, err, "status")
}

func TestSchema_IsIdempotent(t *testing.T) {
	assert.Contains(t, Schema, "CREATE SCHEMA IF NOT EXISTS passport")
	assert.Contains(t, Schema, "CREATE TABLE IF NOT EXISTS passport.extraction_jobs")
	assert.Contains(t, Schema, "CREATE TABLE IF NOT EXISTS passport.passport_records")
	assert.NotContains(t, Schema, "DROP ")
}

// Runs against a real database when TEST_DATABASE_URL is set.
func TestStorageManager_Postgres(t *testing.T) {
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	sm, err := NewStorageManager(url)
	require.NoError(t, err)
	defer sm.Close()

	ctx := context.Background()
	require.NoError(t, sm.EnsureSchema(ctx))
	require.NoError(t, sm.EnsureSchema(ctx), "schema can be applied twice")

	jobID := uuid.New().String()
	require.NoError(t, sm.UpdateJobStatus(ctx, &JobUpdate{JobID: jobID, Status: "processing", Filename: "scan.jpg"}))

	number := "T" + uuid.New().String()[:8]
	stored, err := sm.StoreExtraction(ctx, &ExtractionInput{
		Job: &JobUpdate{JobID: jobID, Status: "extracted", Attempts: 3, ProcessingTimeMs: 42},
		Record: &passport.Record{
			Surname:        "SMITH",
			GivenNames:     "JANE MARIE",
			PassportNumber: number,
			BirthDate:      &passport.Date{Year: 1985, Month: 5, Day: 15},
		},
		AttemptTags: []string{"full_r0", "full_r90", "full_r180"},
	})
	require.NoError(t, err)
	require.NotEmpty(t, stored.RecordID)

	job, err := sm.GetJobByID(ctx, jobID)
	require.NoError(t, err)
	assert.Equal(t, "extracted", job["status"])
	assert.Equal(t, "scan.jpg", job["filename"], "later updates keep the filename")
	assert.Equal(t, stored.RecordID, job["recordId"])
	assert.Equal(t, int64(3), job["attempts"])

	got, err := sm.GetRecord(ctx, stored.RecordID)
	require.NoError(t, err)
	assert.Equal(t, jobID, got.JobID)
	assert.Equal(t, "JANE MARIE", got.Record.GivenNames)
	assert.Equal(t, &passport.Date{Year: 1985, Month: 5, Day: 15}, got.Record.BirthDate)
	assert.Nil(t, got.Record.ExpiryDate)
	assert.Equal(t, []string{"full_r0", "full_r90", "full_r180"}, got.AttemptTags)

	found, err := sm.FindByPassportNumber(ctx, number)
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, stored.RecordID, found[0].ID)

	require.NoError(t, sm.Ping(ctx))
	assert.Contains(t, sm.GetStats(), "postgres")
}
