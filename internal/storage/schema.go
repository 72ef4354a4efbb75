package storage

// Schema is applied by EnsureSchema. Every statement is idempotent.
//
// Dates are stored as YYYY-MM-DD text because MRZ month/day values are kept
// as printed and may not form a valid calendar date.
const Schema = `
CREATE SCHEMA IF NOT EXISTS passport;

CREATE TABLE IF NOT EXISTS passport.extraction_jobs (
	id                 UUID PRIMARY KEY,
	filename           TEXT NOT NULL DEFAULT 'unknown',
	mime_type          TEXT,
	file_size          BIGINT,
	status             TEXT NOT NULL,
	processing_time_ms BIGINT,
	record_id          UUID,
	attempts           INTEGER,
	error_code         TEXT,
	error_message      TEXT,
	debug_dir          TEXT,
	metadata           JSONB NOT NULL DEFAULT '{}'::jsonb,
	created_at         TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at         TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS extraction_jobs_status_idx
	ON passport.extraction_jobs (status);

CREATE TABLE IF NOT EXISTS passport.passport_records (
	id              UUID PRIMARY KEY,
	job_id          UUID NOT NULL REFERENCES passport.extraction_jobs (id) ON DELETE CASCADE,
	surname         TEXT,
	given_names     TEXT,
	passport_number TEXT,
	nationality     TEXT,
	birth_date      TEXT,
	sex             TEXT,
	expiry_date     TEXT,
	issuer          TEXT,
	optional_data   TEXT,
	raw_mrz         TEXT,
	attempt_tags    TEXT[] NOT NULL DEFAULT '{}',
	created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS passport_records_number_idx
	ON passport.passport_records (passport_number);
`
