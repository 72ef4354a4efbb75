/**
 * Passport extraction results
 *
 * A Result carries either a cleaned Record or the error that ended the
 * extraction, never both. Serialized output is a flat mapping; failures
 * serialize as a single "error" field.
 */

package passport

import (
	"encoding/json"
	"fmt"

	"github.com/adverant/nexus/passport-worker/internal/errors"
)

// Record is the cleaned MRZ data. Empty strings and nil dates are absent fields.
type Record struct {
	Surname        string `json:"surname,omitempty" yaml:"surname,omitempty"`
	GivenNames     string `json:"given_names,omitempty" yaml:"given_names,omitempty"`
	PassportNumber string `json:"passport_number,omitempty" yaml:"passport_number,omitempty"`
	Nationality    string `json:"nationality,omitempty" yaml:"nationality,omitempty"`
	BirthDate      *Date  `json:"birth_date,omitempty" yaml:"birth_date,omitempty"`
	Sex            string `json:"sex,omitempty" yaml:"sex,omitempty"`
	ExpiryDate     *Date  `json:"expiry_date,omitempty" yaml:"expiry_date,omitempty"`
	Issuer         string `json:"issuer,omitempty" yaml:"issuer,omitempty"`
	Optional       string `json:"optional,omitempty" yaml:"optional,omitempty"`
	RawMRZ         string `json:"raw_mrz,omitempty" yaml:"raw_mrz,omitempty"`
}

// ToMap flattens the record, leaving out absent fields.
func (r *Record) ToMap() map[string]interface{} {
	m := make(map[string]interface{})
	put := func(key, value string) {
		if value != "" {
			m[key] = value
		}
	}

	put("surname", r.Surname)
	put("given_names", r.GivenNames)
	put("passport_number", r.PassportNumber)
	put("nationality", r.Nationality)
	if r.BirthDate != nil {
		m["birth_date"] = r.BirthDate.String()
	}
	put("sex", r.Sex)
	if r.ExpiryDate != nil {
		m["expiry_date"] = r.ExpiryDate.String()
	}
	put("issuer", r.Issuer)
	put("optional", r.Optional)
	put("raw_mrz", r.RawMRZ)

	return m
}

// Attempt records one (region, rotation) recognition try.
type Attempt struct {
	Region   string `json:"region" yaml:"region"`
	Rotation string `json:"rotation" yaml:"rotation"`
	Found    bool   `json:"found" yaml:"found"`
	Artifact string `json:"artifact,omitempty" yaml:"artifact,omitempty"`
}

// Tag is the attempt's region/rotation label, e.g. "bot1_r90".
func (a Attempt) Tag() string {
	return fmt.Sprintf("%s_%s", a.Region, a.Rotation)
}

// Result is the outcome of one extraction call
type Result struct {
	Record   *Record
	Err      *errors.ProcessingError
	Attempts []Attempt

	// DebugDir is set when debug artifacts were written for this call.
	DebugDir string
}

// Success wraps a record.
func Success(rec *Record, attempts []Attempt) *Result {
	return &Result{Record: rec, Attempts: attempts}
}

// Failure wraps an extraction error.
func Failure(err *errors.ProcessingError, attempts []Attempt) *Result {
	return &Result{Err: err, Attempts: attempts}
}

// OK reports whether a record was extracted.
func (r *Result) OK() bool {
	return r.Err == nil && r.Record != nil
}

// ErrorCode returns the failure code, or "" on success.
func (r *Result) ErrorCode() errors.ErrorCode {
	if r.Err == nil {
		return ""
	}
	return r.Err.Code
}

// ToMap converts the result to its flat output mapping.
func (r *Result) ToMap() map[string]interface{} {
	if r.Err != nil {
		return map[string]interface{}{"error": r.Err.Message}
	}
	if r.Record == nil {
		return map[string]interface{}{}
	}
	return r.Record.ToMap()
}

// MarshalJSON keeps the record's field order on success.
func (r *Result) MarshalJSON() ([]byte, error) {
	if r.Err != nil {
		return json.Marshal(struct {
			Error string `json:"error"`
		}{r.Err.Message})
	}
	if r.Record == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(r.Record)
}

// MarshalYAML mirrors MarshalJSON.
func (r *Result) MarshalYAML() (interface{}, error) {
	if r.Err != nil {
		return struct {
			Error string `yaml:"error"`
		}{r.Err.Message}, nil
	}
	if r.Record == nil {
		return map[string]interface{}{}, nil
	}
	return r.Record, nil
}
