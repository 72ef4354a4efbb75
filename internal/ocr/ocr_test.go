package ocr

import (
	"context"
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultOptions(t *testing.T) {
	opts := DefaultOptions()

	assert.Equal(t, 1, opts.EngineMode)
	assert.Equal(t, 6, opts.PageSegMode)
	assert.Equal(t, MRZCharset, opts.Whitelist)
	assert.Equal(t, "eng", opts.LanguageArg())
}

func TestOptions_LanguageArg(t *testing.T) {
	assert.Equal(t, "eng", Options{}.LanguageArg())
	assert.Equal(t, "eng+ocrb", Options{Languages: []string{"eng", "ocrb"}}.LanguageArg())
}

func TestEngineFunc(t *testing.T) {
	var seen image.Rectangle
	e := EngineFunc(func(_ context.Context, img image.Image) (string, error) {
		seen = img.Bounds()
		return "text", nil
	})

	text, err := e.Recognize(context.Background(), image.NewGray(image.Rect(0, 0, 3, 4)))
	require.NoError(t, err)
	assert.Equal(t, "text", text)
	assert.Equal(t, image.Rect(0, 0, 3, 4), seen)
	assert.Equal(t, "func", e.Name())
}
