package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"github.com/adverant/nexus/passport-worker/internal/extractor"
	"github.com/adverant/nexus/passport-worker/internal/logging"
	"github.com/adverant/nexus/passport-worker/internal/ocr"
	"github.com/adverant/nexus/passport-worker/internal/ocr/tesseract"
	"github.com/adverant/nexus/passport-worker/internal/passport"
	"github.com/adverant/nexus/passport-worker/internal/processor"
)

var (
	extractDebug     bool
	extractDebugDir  string
	extractEngine    string
	extractTesseract string
	extractLang      string
	extractPSM       int
	extractOEM       int
	extractFormat    string
	extractWorkers   int
	extractStrict    bool
)

// engineFactory builds the OCR engine; tests replace it with a fake.
var engineFactory = func(kind string, opts ocr.Options, l *logging.Logger) (ocr.Engine, error) {
	return tesseract.NewEngine(kind, opts, l)
}

var extractCmd = &cobra.Command{
	Use:   "extract [image|dir]...",
	Short: "Extract the MRZ from passport images",
	Long: `Reads the machine-readable zone of each image and prints the decoded
passport fields. Directories are searched for JPEG, PNG, TIFF, BMP, GIF and
WebP files. One result is printed per image, in input order. A failed image
yields an object with a single "error" field.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runExtract,
}

func init() {
	f := extractCmd.Flags()
	f.BoolVar(&extractDebug, "debug", false, "save every attempted region and its raw OCR text")
	f.StringVar(&extractDebugDir, "debug-dir", "", "parent directory for debug sessions (default MRZ_DEBUG_DIR)")
	f.StringVar(&extractEngine, "engine", "", "OCR engine: library or cli (default OCR_ENGINE)")
	f.StringVar(&extractTesseract, "tesseract", "", "tesseract binary for the cli engine (default TESSERACT_PATH)")
	f.StringVar(&extractLang, "lang", "", "tesseract languages, e.g. eng or eng+deu (default TESSERACT_LANG)")
	f.IntVar(&extractPSM, "psm", -1, "tesseract page segmentation mode (default TESSERACT_PSM)")
	f.IntVar(&extractOEM, "oem", -1, "tesseract OCR engine mode (default TESSERACT_OEM)")
	f.StringVarP(&extractFormat, "format", "f", "json", "output format: json or yaml")
	f.IntVarP(&extractWorkers, "workers", "w", 1, "images extracted concurrently")
	f.BoolVar(&extractStrict, "strict", false, "exit non-zero when any image fails")
	rootCmd.AddCommand(extractCmd)
}

// extractEntry is one image in multi-image output
type extractEntry struct {
	File   string           `json:"file" yaml:"file"`
	Result *passport.Result `json:"result" yaml:"result"`
}

func runExtract(cmd *cobra.Command, args []string) error {
	if extractFormat != "json" && extractFormat != "yaml" {
		return fmt.Errorf("unknown format %q (want json or yaml)", extractFormat)
	}
	if extractWorkers < 1 {
		return fmt.Errorf("--workers must be at least 1")
	}

	paths, err := expandInputs(args)
	if err != nil {
		return err
	}
	if len(paths) == 0 {
		return fmt.Errorf("no image files found")
	}

	engine, err := engineFactory(engineKind(), ocrOptions(), logger.Named("ocr"))
	if err != nil {
		return fmt.Errorf("failed to initialize OCR engine: %w", err)
	}

	opts := extractor.Options{Debug: extractDebug || cfg.Debug, DebugDir: cfg.DebugDir}
	if extractDebugDir != "" {
		opts.DebugDir = extractDebugDir
	}
	if opts.Debug && opts.DebugDir == "" {
		opts.DebugDir = os.TempDir()
	}
	ext := extractor.New(engine, logger.Named("extractor"), opts)

	results := make([]*passport.Result, len(paths))
	g, ctx := errgroup.WithContext(cmd.Context())
	g.SetLimit(extractWorkers)
	for i, path := range paths {
		g.Go(func() error {
			results[i] = ext.ExtractFileContext(ctx, path)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	if err := writeResults(cmd.OutOrStdout(), paths, results); err != nil {
		return err
	}

	if extractStrict {
		failed := 0
		for _, r := range results {
			if !r.OK() {
				failed++
			}
		}
		if failed > 0 {
			return fmt.Errorf("%d of %d images failed", failed, len(results))
		}
	}
	return nil
}

func engineKind() string {
	if extractEngine != "" {
		return extractEngine
	}
	if extractTesseract != "" {
		return tesseract.EngineCommand
	}
	return cfg.OCREngine
}

func ocrOptions() ocr.Options {
	opts := cfg.OCROptions()
	if extractTesseract != "" {
		opts.BinaryPath = extractTesseract
	}
	if extractLang != "" {
		opts.Languages = splitLanguages(extractLang)
	}
	if extractPSM >= 0 {
		opts.PageSegMode = extractPSM
	}
	if extractOEM >= 0 {
		opts.EngineMode = extractOEM
	}
	return opts
}

func splitLanguages(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return r == '+' || r == ',' || r == ' '
	})
}

// expandInputs replaces each directory with the image files below it. Files
// named explicitly are kept even without an image extension; decoding
// decides whether they are usable.
func expandInputs(args []string) ([]string, error) {
	var paths []string
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil || !info.IsDir() {
			paths = append(paths, arg)
			continue
		}

		err = filepath.WalkDir(arg, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() && processor.IsImageFile(path) {
				paths = append(paths, path)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", arg, err)
		}
	}
	return paths, nil
}

func writeResults(w io.Writer, paths []string, results []*passport.Result) error {
	var out interface{} = results[0]
	if len(results) > 1 {
		entries := make([]extractEntry, len(results))
		for i := range results {
			entries[i] = extractEntry{File: paths[i], Result: results[i]}
		}
		out = entries
	}

	if extractFormat == "yaml" {
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(out); err != nil {
			return fmt.Errorf("failed to encode results: %w", err)
		}
		return enc.Close()
	}

	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		return fmt.Errorf("failed to encode results: %w", err)
	}
	return nil
}
