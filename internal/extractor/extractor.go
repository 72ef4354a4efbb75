/**
 * Passport MRZ extractor
 *
 * decode -> search -> normalize. One call handles one image and is
 * synchronous; different images may be extracted concurrently on the same
 * Extractor. Debug mode gives every call its own artifact directory.
 */

package extractor

import (
	"context"
	"image"
	"time"

	"github.com/adverant/nexus/passport-worker/internal/errors"
	"github.com/adverant/nexus/passport-worker/internal/geometry"
	"github.com/adverant/nexus/passport-worker/internal/logging"
	"github.com/adverant/nexus/passport-worker/internal/normalize"
	"github.com/adverant/nexus/passport-worker/internal/ocr"
	"github.com/adverant/nexus/passport-worker/internal/passport"
	"github.com/adverant/nexus/passport-worker/internal/recognizer"
)

// Options control debug artifacts.
type Options struct {
	Debug    bool
	DebugDir string // parent of the per-call mrz_dbg_* directories
}

// Extractor runs the whole pipeline for one image at a time
type Extractor struct {
	logger        *logging.Logger
	opts          Options
	recognizerFor func(sink *recognizer.DebugSink) Recognizer
}

// New creates an extractor backed by an OCR engine
func New(engine ocr.Engine, logger *logging.Logger, opts Options) *Extractor {
	if logger == nil {
		logger = logging.Nop()
	}
	recLogger := logger.Named("recognizer")
	return &Extractor{
		logger: logger,
		opts:   opts,
		recognizerFor: func(sink *recognizer.DebugSink) Recognizer {
			return recognizer.New(engine, recLogger, sink)
		},
	}
}

// WithOptions returns a copy of e that shares its engine but uses opts.
func (e *Extractor) WithOptions(opts Options) *Extractor {
	c := *e
	c.opts = opts
	return &c
}

// Options returns the options e was built with.
func (e *Extractor) Options() Options {
	return e.opts
}

// ExtractFile decodes the image at path and extracts its MRZ.
func (e *Extractor) ExtractFile(ctx context.Context, path string) *passport.Result {
	img, err := geometry.LoadFile(path)
	if err != nil {
		return e.failed(err, nil)
	}
	return e.ExtractImage(ctx, img)
}

// ExtractBytes decodes an in-memory image. source names it in errors.
func (e *Extractor) ExtractBytes(ctx context.Context, data []byte, source string) *passport.Result {
	img, err := geometry.DecodeBytes(data)
	if err != nil {
		if pe, ok := errors.As(err); ok && source != "" {
			pe = errors.NewInvalidImageError(source, pe.Cause)
			return passport.Failure(pe, nil)
		}
		return e.failed(err, nil)
	}
	return e.ExtractImage(ctx, img)
}

// ExtractImage searches an already decoded image.
func (e *Extractor) ExtractImage(ctx context.Context, img image.Image) *passport.Result {
	start := time.Now()

	var sink *recognizer.DebugSink
	if e.opts.Debug {
		s, err := recognizer.NewDebugSession(e.opts.DebugDir, e.logger)
		if err != nil {
			e.logger.Warn("Debug artifacts disabled for this extraction", "error", err)
		} else {
			sink = s
			e.logger.Info("Saving debug outputs", "dir", sink.Dir())
		}
	}

	outcome, err := NewController(e.recognizerFor(sink), e.logger).Search(ctx, img)
	if err != nil {
		return e.failed(err, nil)
	}

	var result *passport.Result
	switch outcome.State {
	case Found:
		result = passport.Success(normalize.Record(outcome.Bundle), outcome.Attempts)
		e.logger.Info("MRZ extracted",
			"attempts", len(outcome.Attempts),
			"duration", time.Since(start))
	default:
		result = passport.Failure(errors.NewMRZNotDetectedError(len(outcome.Attempts)), outcome.Attempts)
		e.logger.Info("MRZ not detected",
			"attempts", len(outcome.Attempts),
			"duration", time.Since(start))
	}

	result.DebugDir = sink.Dir()
	return result
}

// ExtractFileContext is ExtractFile raced against ctx.
func (e *Extractor) ExtractFileContext(ctx context.Context, path string) *passport.Result {
	return ExtractContext(ctx, func() *passport.Result { return e.ExtractFile(ctx, path) })
}

// ExtractBytesContext is ExtractBytes raced against ctx.
func (e *Extractor) ExtractBytesContext(ctx context.Context, data []byte, source string) *passport.Result {
	return ExtractContext(ctx, func() *passport.Result { return e.ExtractBytes(ctx, data, source) })
}

// ExtractContext runs fn and returns its result, unless ctx ends first. In
// that case fn keeps running in the background and its result is dropped.
func ExtractContext(ctx context.Context, fn func() *passport.Result) *passport.Result {
	start := time.Now()
	done := make(chan *passport.Result, 1)
	go func() {
		done <- fn()
	}()

	select {
	case result := <-done:
		return result
	case <-ctx.Done():
		err := ctx.Err()
		if err == context.DeadlineExceeded {
			return passport.Failure(errors.NewProcessingTimeoutError("", time.Since(start), err), nil)
		}
		return passport.Failure(errors.NewCancelledError("", err), nil)
	}
}

func (e *Extractor) failed(err error, attempts []passport.Attempt) *passport.Result {
	if pe, ok := errors.As(err); ok {
		e.logger.Warn("Extraction failed", "error_code", pe.Code, "error", pe.Message)
		return passport.Failure(pe, attempts)
	}
	return passport.Failure(errors.NewInvalidImageError("<image>", err), attempts)
}
