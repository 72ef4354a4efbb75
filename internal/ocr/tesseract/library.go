/**
 * Tesseract library engine
 *
 * Links libtesseract through gosseract. Each call gets its own client, so a
 * single engine can serve concurrent extractions.
 */

package tesseract

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/otiai10/gosseract/v2"

	"github.com/adverant/nexus/passport-worker/internal/logging"
	"github.com/adverant/nexus/passport-worker/internal/ocr"
)

// LibraryEngine recognizes text in-process with gosseract
type LibraryEngine struct {
	opts          ocr.Options
	clientFactory func() *gosseract.Client
}

// NewLibraryEngine creates a gosseract-backed engine
func NewLibraryEngine(opts ocr.Options, logger *logging.Logger) *LibraryEngine {
	// gosseract always initialises tesseract with the default engine mode,
	// which is LSTM for the stock traineddata. Legacy modes cannot be honoured.
	if opts.EngineMode == 0 || opts.EngineMode == 2 {
		logger.Warn("OCR engine mode is not configurable with the library engine, ignoring",
			"oem", opts.EngineMode)
	}

	return &LibraryEngine{
		opts:          opts,
		clientFactory: gosseract.NewClient,
	}
}

func (e *LibraryEngine) Name() string { return EngineLibrary }

// Recognize hands the image to tesseract as an in-memory PNG
func (e *LibraryEngine) Recognize(ctx context.Context, img image.Image) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		return "", fmt.Errorf("encode region: %w", err)
	}

	client := e.clientFactory()
	defer client.Close()

	if e.opts.TessdataPrefix != "" {
		if err := client.SetTessdataPrefix(e.opts.TessdataPrefix); err != nil {
			return "", fmt.Errorf("set tessdata prefix: %w", err)
		}
	}
	if len(e.opts.Languages) > 0 {
		if err := client.SetLanguage(e.opts.Languages...); err != nil {
			return "", fmt.Errorf("set languages: %w", err)
		}
	}
	if err := client.SetPageSegMode(gosseract.PageSegMode(e.opts.PageSegMode)); err != nil {
		return "", fmt.Errorf("set page segmentation mode: %w", err)
	}
	if e.opts.Whitelist != "" {
		if err := client.SetWhitelist(e.opts.Whitelist); err != nil {
			return "", fmt.Errorf("set whitelist: %w", err)
		}
	}
	if err := client.SetImageFromBytes(buf.Bytes()); err != nil {
		return "", fmt.Errorf("set image: %w", err)
	}

	text, err := client.Text()
	if err != nil {
		return "", fmt.Errorf("tesseract OCR failed: %w", err)
	}

	return strings.TrimSpace(text), nil
}
