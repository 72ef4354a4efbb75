package errors

import (
	stderrors "errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProcessingError_ErrorIncludesCause(t *testing.T) {
	cause := stderrors.New("unexpected EOF")
	err := NewInvalidImageError("scan.jpg", cause)

	assert.Equal(t, "INVALID_IMAGE: Cannot read image: scan.jpg (caused by: unexpected EOF)", err.Error())
	assert.ErrorIs(t, err, cause)
}

func TestProcessingError_ErrorWithoutCause(t *testing.T) {
	err := NewMRZNotDetectedError(20)

	assert.Equal(t, "MRZ_NOT_DETECTED: MRZ not detected", err.Error())
	assert.Equal(t, 20, err.Details["attempts"])
}

func TestIs(t *testing.T) {
	wrapped := fmt.Errorf("extract: %w", NewMRZNotDetectedError(20))

	assert.True(t, Is(wrapped, ErrorMRZNotDetected))
	assert.False(t, Is(wrapped, ErrorInvalidImage))
	assert.False(t, Is(stderrors.New("plain"), ErrorMRZNotDetected))
	assert.False(t, Is(nil, ErrorMRZNotDetected))
}

func TestAs(t *testing.T) {
	pe, ok := As(fmt.Errorf("wrap: %w", NewStorageFailedError("job-1", nil)))
	require.True(t, ok)
	assert.Equal(t, ErrorStorageFailed, pe.Code)

	_, ok = As(stderrors.New("plain"))
	assert.False(t, ok)
}

func TestRetriable(t *testing.T) {
	tests := []struct {
		name string
		err  *ProcessingError
		want bool
	}{
		{"invalid image", NewInvalidImageError("x", nil), false},
		{"not detected", NewMRZNotDetectedError(20), false},
		{"unsupported", NewUnsupportedFormatError("j", "application/pdf"), false},
		{"too large", NewFileTooLargeError("j", 10, 5), false},
		{"timeout", NewProcessingTimeoutError("j", time.Second, nil), true},
		{"cancelled", NewCancelledError("j", nil), false},
		{"storage", NewStorageFailedError("j", nil), true},
		{"queue", NewQueueFailedError("j", nil), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Retriable())
		})
	}
}

func TestToMap(t *testing.T) {
	err := NewEngineFailureError("tesseract", "left_r90", stderrors.New("boom"))
	err.JobID = "job-7"

	m := err.ToMap()
	assert.Equal(t, "ENGINE_FAILURE", m["error_code"])
	assert.Equal(t, "tesseract", m["engine"])
	assert.Equal(t, "left_r90", m["tag"])
	assert.Equal(t, "job-7", m["job_id"])
	assert.Equal(t, "boom", m["cause"])
}
