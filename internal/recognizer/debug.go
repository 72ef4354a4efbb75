package recognizer

import (
	"fmt"
	"image"
	"os"
	"path/filepath"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"

	"github.com/adverant/nexus/passport-worker/internal/logging"
)

// DebugSink writes attempted regions and recognized text to a directory:
// ok_<tag>.jpg and raw_<tag>.txt for hits, fail_<tag>.jpg for misses.
// Write failures are logged and otherwise ignored. A nil sink writes nothing.
type DebugSink struct {
	dir    string
	logger *logging.Logger
}

// NewDebugSink writes into an existing directory.
func NewDebugSink(dir string, logger *logging.Logger) *DebugSink {
	if logger == nil {
		logger = logging.Nop()
	}
	return &DebugSink{dir: dir, logger: logger}
}

// NewDebugSession creates a fresh mrz_dbg_<uuid> directory under baseDir so
// concurrent extractions never share artifact names.
func NewDebugSession(baseDir string, logger *logging.Logger) (*DebugSink, error) {
	if baseDir == "" {
		baseDir = os.TempDir()
	}

	dir := filepath.Join(baseDir, "mrz_dbg_"+uuid.New().String())
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create debug directory: %w", err)
	}

	return NewDebugSink(dir, logger), nil
}

// Dir returns the artifact directory, or "" for a nil sink.
func (s *DebugSink) Dir() string {
	if s == nil {
		return ""
	}
	return s.dir
}

// RecordSuccess saves the region and the raw MRZ, returning the image path.
func (s *DebugSink) RecordSuccess(tag string, img image.Image, rawMRZ string) string {
	if s == nil {
		return ""
	}
	path := s.saveImage("ok_"+tag+".jpg", img)
	s.saveText("raw_"+tag+".txt", rawMRZ)
	return path
}

// RecordFailure saves the region, plus whatever text the engine produced.
func (s *DebugSink) RecordFailure(tag string, img image.Image, text string) string {
	if s == nil {
		return ""
	}
	path := s.saveImage("fail_"+tag+".jpg", img)
	if text != "" {
		s.saveText("raw_"+tag+".txt", text)
	}
	return path
}

func (s *DebugSink) saveImage(name string, img image.Image) string {
	path := filepath.Join(s.dir, name)
	if err := imaging.Save(img, path); err != nil {
		s.logger.Warn("Failed to write debug image", "path", path, "error", err)
		return ""
	}
	return path
}

func (s *DebugSink) saveText(name, text string) {
	path := filepath.Join(s.dir, name)
	if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
		s.logger.Warn("Failed to write debug text", "path", path, "error", err)
	}
}
