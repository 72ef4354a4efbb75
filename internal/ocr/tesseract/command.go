/**
 * Tesseract command engine
 *
 * Runs the tesseract binary against a temporary PNG. The binary path is an
 * explicit constructor argument so hosts with a non-standard install (for
 * example a Windows Program Files layout) need no global state.
 */

package tesseract

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"github.com/disintegration/imaging"

	"github.com/adverant/nexus/passport-worker/internal/logging"
	"github.com/adverant/nexus/passport-worker/internal/ocr"
)

// CommandEngine recognizes text by exec'ing tesseract
type CommandEngine struct {
	binary string
	opts   ocr.Options
	logger *logging.Logger
}

// NewCommandEngine creates an engine for the binary at opts.BinaryPath
func NewCommandEngine(opts ocr.Options, logger *logging.Logger) (*CommandEngine, error) {
	if opts.BinaryPath == "" {
		return nil, fmt.Errorf("tesseract binary path is required")
	}

	binary, err := exec.LookPath(opts.BinaryPath)
	if err != nil {
		return nil, fmt.Errorf("tesseract binary not found at %s: %w", opts.BinaryPath, err)
	}

	return &CommandEngine{
		binary: binary,
		opts:   opts,
		logger: logger,
	}, nil
}

func (e *CommandEngine) Name() string { return EngineCommand }

// Recognize writes the region to a temporary file and reads tesseract's stdout
func (e *CommandEngine) Recognize(ctx context.Context, img image.Image) (string, error) {
	tmp, err := os.CreateTemp("", "mrz-region-*.png")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	path := tmp.Name()
	_ = tmp.Close()
	defer func() {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			e.logger.Warn("Failed to remove temp region", "path", path, "error", err)
		}
	}()

	if err := imaging.Save(img, path); err != nil {
		return "", fmt.Errorf("write region: %w", err)
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, e.binary, e.args(path)...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("tesseract failed: %w: %s", err, strings.TrimSpace(stderr.String()))
	}

	return strings.TrimSpace(stdout.String()), nil
}

func (e *CommandEngine) args(input string) []string {
	args := []string{
		input, "stdout",
		"--oem", strconv.Itoa(e.opts.EngineMode),
		"--psm", strconv.Itoa(e.opts.PageSegMode),
		"-l", e.opts.LanguageArg(),
	}
	if e.opts.TessdataPrefix != "" {
		args = append(args, "--tessdata-dir", e.opts.TessdataPrefix)
	}
	if e.opts.Whitelist != "" {
		args = append(args, "-c", "tessedit_char_whitelist="+e.opts.Whitelist)
	}
	return args
}
