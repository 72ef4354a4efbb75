package recognizer

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adverant/nexus/passport-worker/internal/logging"
)

const mrzText = "P<UTOERIKSSON<<ANNA<MARIA<<<<<<<<<<<<<<<<<<<\n" +
	"L898902C36UTO7408122F1204159ZE184226B<<<<<10"

type fakeEngine struct {
	text  string
	err   error
	calls int
}

func (f *fakeEngine) Name() string { return "fake" }

func (f *fakeEngine) Recognize(_ context.Context, _ image.Image) (string, error) {
	f.calls++
	return f.text, f.err
}

func region() image.Image {
	img := image.NewNRGBA(image.Rect(0, 0, 20, 10))
	for i := range img.Pix {
		img.Pix[i] = 0xff
	}
	img.SetNRGBA(1, 1, color.NRGBA{A: 255})
	return img
}

func TestRecognize_Found(t *testing.T) {
	engine := &fakeEngine{text: "UTOPIA PASSPORT\n" + mrzText + "\n"}
	r := New(engine, nil, nil)

	rec := r.Recognize(context.Background(), "full_r0", region())
	require.True(t, rec.Found())
	assert.Equal(t, "ERIKSSON", rec.Bundle.Surname)
	assert.Empty(t, rec.Artifact)
	assert.Equal(t, 1, engine.calls)
}

func TestRecognize_NoMRZLines(t *testing.T) {
	engine := &fakeEngine{text: "SHORT\nTEXT"}
	r := New(engine, nil, nil)

	rec := r.Recognize(context.Background(), "full_r0", region())
	assert.False(t, rec.Found())
	assert.Equal(t, "SHORT\nTEXT", rec.Text)
}

func TestRecognize_EngineFailureIsNotFound(t *testing.T) {
	var logs bytes.Buffer
	logger := logging.NewLogger("recognizer")
	logger.SetOutput(&logs)

	engine := &fakeEngine{err: fmt.Errorf("tesseract crashed")}
	r := New(engine, logger, nil)

	rec := r.Recognize(context.Background(), "left_r90", region())
	assert.False(t, rec.Found())
	assert.Contains(t, logs.String(), "[WARN] OCR attempt failed")
	assert.Contains(t, logs.String(), "ENGINE_FAILURE")
	assert.Contains(t, logs.String(), "left_r90")
}

func TestRecognize_EmptyRegionSkipsEngine(t *testing.T) {
	engine := &fakeEngine{text: mrzText}
	r := New(engine, nil, nil)

	rec := r.Recognize(context.Background(), "left_r0", image.NewNRGBA(image.Rect(0, 0, 0, 10)))
	assert.False(t, rec.Found())
	assert.Equal(t, 0, engine.calls)

	rec = r.Recognize(context.Background(), "left_r0", nil)
	assert.False(t, rec.Found())
	assert.Equal(t, 0, engine.calls)
}

func TestRecognize_DebugArtifacts(t *testing.T) {
	sink := NewDebugSink(t.TempDir(), nil)

	hit := New(&fakeEngine{text: mrzText}, nil, sink).Recognize(context.Background(), "bot1_r180", region())
	require.True(t, hit.Found())
	assert.Equal(t, filepath.Join(sink.Dir(), "ok_bot1_r180.jpg"), hit.Artifact)
	assert.FileExists(t, hit.Artifact)

	raw, err := os.ReadFile(filepath.Join(sink.Dir(), "raw_bot1_r180.txt"))
	require.NoError(t, err)
	assert.Equal(t, mrzText, string(raw))

	miss := New(&fakeEngine{}, nil, sink).Recognize(context.Background(), "full_r0", region())
	assert.False(t, miss.Found())
	assert.Equal(t, filepath.Join(sink.Dir(), "fail_full_r0.jpg"), miss.Artifact)
	assert.FileExists(t, miss.Artifact)
	assert.NoFileExists(t, filepath.Join(sink.Dir(), "raw_full_r0.txt"), "no text, no raw file")

	partial := New(&fakeEngine{text: "NOISE"}, nil, sink).Recognize(context.Background(), "left_r90", region())
	assert.False(t, partial.Found())
	assert.FileExists(t, filepath.Join(sink.Dir(), "raw_left_r90.txt"))
}

func TestRecognize_DebugWriteFailureDoesNotChangeResult(t *testing.T) {
	var logs bytes.Buffer
	logger := logging.NewLogger("recognizer")
	logger.SetOutput(&logs)

	sink := NewDebugSink(filepath.Join(t.TempDir(), "does", "not", "exist"), logger)
	r := New(&fakeEngine{text: mrzText}, logger, sink)

	rec := r.Recognize(context.Background(), "full_r0", region())
	require.True(t, rec.Found())
	assert.Equal(t, "L898902C3", rec.Bundle.PassportNumber)
	assert.Empty(t, rec.Artifact)
	assert.Contains(t, logs.String(), "Failed to write debug image")
}

func TestNewDebugSession_UniqueDirectories(t *testing.T) {
	base := t.TempDir()

	a, err := NewDebugSession(base, nil)
	require.NoError(t, err)
	b, err := NewDebugSession(base, nil)
	require.NoError(t, err)

	assert.NotEqual(t, a.Dir(), b.Dir())
	assert.True(t, strings.HasPrefix(filepath.Base(a.Dir()), "mrz_dbg_"))
	assert.DirExists(t, a.Dir())
	assert.DirExists(t, b.Dir())
}

func TestDebugSink_Nil(t *testing.T) {
	var sink *DebugSink
	assert.Equal(t, "", sink.Dir())
	assert.Equal(t, "", sink.RecordSuccess("full_r0", region(), "x"))
	assert.Equal(t, "", sink.RecordFailure("full_r0", region(), "x"))
}
