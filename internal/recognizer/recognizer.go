/**
 * MRZ recognition adapter
 *
 * Wraps an OCR engine and turns one image region into either a raw MRZ
 * bundle or "not found". Engine failures are absorbed here: a failed
 * attempt is an expected outcome and the search moves on.
 */

package recognizer

import (
	"context"
	"image"
	"time"

	"github.com/adverant/nexus/passport-worker/internal/errors"
	"github.com/adverant/nexus/passport-worker/internal/logging"
	"github.com/adverant/nexus/passport-worker/internal/mrz"
	"github.com/adverant/nexus/passport-worker/internal/ocr"
)

// Recognition is the outcome of one attempt. A nil Bundle means not found.
type Recognition struct {
	Bundle *mrz.RawBundle
	Text   string
	// Artifact is the debug image written for this attempt, if any.
	Artifact string
}

// Found reports whether an MRZ was recognized.
func (r Recognition) Found() bool { return r.Bundle != nil }

// Recognizer runs one OCR engine over image regions
type Recognizer struct {
	engine ocr.Engine
	logger *logging.Logger
	sink   *DebugSink
}

// New creates a recognizer. sink may be nil to disable debug artifacts.
func New(engine ocr.Engine, logger *logging.Logger, sink *DebugSink) *Recognizer {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Recognizer{
		engine: engine,
		logger: logger,
		sink:   sink,
	}
}

// Sink returns the debug sink, or nil.
func (r *Recognizer) Sink() *DebugSink { return r.sink }

// Recognize runs the engine on img and looks for two MRZ lines in its output.
func (r *Recognizer) Recognize(ctx context.Context, tag string, img image.Image) Recognition {
	if img == nil || img.Bounds().Empty() {
		r.logger.Debug("Skipping empty region", "tag", tag)
		return Recognition{}
	}

	start := time.Now()
	text, err := r.engine.Recognize(ctx, img)
	if err != nil {
		failure := errors.NewEngineFailureError(r.engine.Name(), tag, err)
		r.logger.Warn("OCR attempt failed", "tag", tag, "error", failure)
		return Recognition{Artifact: r.sink.RecordFailure(tag, img, "")}
	}

	bundle, ok := mrz.Read(text)
	if !ok {
		r.logger.Debug("No MRZ in region",
			"tag", tag,
			"chars", len(text),
			"duration", time.Since(start))
		return Recognition{Text: text, Artifact: r.sink.RecordFailure(tag, img, text)}
	}

	r.logger.Debug("MRZ recognized", "tag", tag, "duration", time.Since(start))
	return Recognition{
		Bundle:   bundle,
		Text:     text,
		Artifact: r.sink.RecordSuccess(tag, img, bundle.RawMRZ()),
	}
}
