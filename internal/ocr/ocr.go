/**
 * OCR engine boundary
 *
 * The recognizer depends only on this interface; concrete Tesseract engines
 * live in the tesseract subpackage so that callers without libtesseract can
 * still build and test against fakes.
 */

package ocr

import (
	"context"
	"image"
	"strings"
)

// MRZCharset is every glyph that may appear in a machine-readable zone.
const MRZCharset = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789<"

// Engine turns an image region into raw recognized text.
type Engine interface {
	Name() string
	Recognize(ctx context.Context, img image.Image) (string, error)
}

// Options are passed through to the engine unmodified.
type Options struct {
	Languages      []string
	EngineMode     int // tesseract --oem
	PageSegMode    int // tesseract --psm
	Whitelist      string
	TessdataPrefix string
	BinaryPath     string // used by the command engine only
}

// DefaultOptions matches the settings MRZ reading was tuned with: LSTM
// engine, single uniform block of text, MRZ glyphs only.
func DefaultOptions() Options {
	return Options{
		Languages:   []string{"eng"},
		EngineMode:  1,
		PageSegMode: 6,
		Whitelist:   MRZCharset,
		BinaryPath:  "tesseract",
	}
}

// LanguageArg joins the configured languages the way tesseract's -l flag expects.
func (o Options) LanguageArg() string {
	if len(o.Languages) == 0 {
		return "eng"
	}
	return strings.Join(o.Languages, "+")
}

// EngineFunc adapts a plain function to Engine.
type EngineFunc func(ctx context.Context, img image.Image) (string, error)

func (f EngineFunc) Name() string { return "func" }

func (f EngineFunc) Recognize(ctx context.Context, img image.Image) (string, error) {
	return f(ctx, img)
}
