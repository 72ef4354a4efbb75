package tesseract

import (
	"fmt"
	"strings"

	"github.com/adverant/nexus/passport-worker/internal/logging"
	"github.com/adverant/nexus/passport-worker/internal/ocr"
)

// Engine kinds accepted by NewEngine.
const (
	EngineLibrary = "library"
	EngineCommand = "cli"
)

// NewEngine builds the engine named by kind. An empty kind selects the
// library engine.
func NewEngine(kind string, opts ocr.Options, logger *logging.Logger) (ocr.Engine, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "", EngineLibrary:
		return NewLibraryEngine(opts, logger), nil
	case EngineCommand:
		return NewCommandEngine(opts, logger)
	default:
		return nil, fmt.Errorf("unknown OCR engine %q (want %s or %s)", kind, EngineLibrary, EngineCommand)
	}
}
