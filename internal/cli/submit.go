package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/adverant/nexus/passport-worker/internal/processor"
	"github.com/adverant/nexus/passport-worker/internal/queue"
)

var (
	submitBackend string
	submitQueue   string
	submitJobID   string
	submitDebug   bool
	submitByPath  bool
)

// producerFactory builds the queue producer; tests replace it with a fake.
var producerFactory = queue.NewProducer

var submitCmd = &cobra.Command{
	Use:   "submit [image]...",
	Short: "Queue passport images for the worker",
	Long: `Submits each image to the passport job queue and prints its job id.
By default the image bytes travel in the job; with --by-path only the path
is sent, which requires the worker to see the same filesystem.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSubmit,
}

func init() {
	f := submitCmd.Flags()
	f.StringVar(&submitBackend, "backend", "", "queue backend: list or asynq (default QUEUE_BACKEND)")
	f.StringVar(&submitQueue, "queue", "", "queue name (default QUEUE_NAME)")
	f.StringVar(&submitJobID, "job-id", "", "job id to use (single image only)")
	f.BoolVar(&submitDebug, "debug", false, "ask the worker to save debug artifacts")
	f.BoolVar(&submitByPath, "by-path", false, "send the file path instead of its contents")
	rootCmd.AddCommand(submitCmd)
}

func runSubmit(cmd *cobra.Command, args []string) error {
	if submitJobID != "" && len(args) > 1 {
		return fmt.Errorf("--job-id can only be used with a single image")
	}

	pcfg := &queue.ProducerConfig{
		Backend:   cfg.QueueBackend,
		RedisURL:  cfg.RedisURL,
		QueueName: cfg.QueueName,
	}
	if submitBackend != "" {
		pcfg.Backend = submitBackend
	}
	if submitQueue != "" {
		pcfg.QueueName = submitQueue
	}

	producer, err := producerFactory(pcfg)
	if err != nil {
		return fmt.Errorf("failed to connect to queue: %w", err)
	}
	defer producer.Close()

	for _, path := range args {
		payload, err := buildPayload(path)
		if err != nil {
			return err
		}
		payload.JobID = submitJobID

		id, err := producer.Submit(cmd.Context(), payload)
		if err != nil {
			return fmt.Errorf("failed to submit %s: %w", path, err)
		}
		logger.Debug("Job submitted", "job_id", id, "file", path, "queue", pcfg.QueueName)
		fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", id, path)
	}
	return nil
}

func buildPayload(path string) (*queue.JobPayload, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%s is a directory", path)
	}
	if info.Size() > cfg.MaxFileSize {
		return nil, fmt.Errorf("%s is %d bytes, limit is %d", path, info.Size(), cfg.MaxFileSize)
	}

	payload := &queue.JobPayload{
		Filename: filepath.Base(path),
		MimeType: mimeTypeFor(path),
		FileSize: info.Size(),
		Debug:    submitDebug,
	}

	if submitByPath {
		abs, err := filepath.Abs(path)
		if err != nil {
			return nil, err
		}
		payload.FilePath = abs
		return payload, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}
	payload.FileBuffer = data
	return payload, nil
}

func mimeTypeFor(path string) string {
	if m := processor.MimeTypeForFile(path); m != "" {
		return m
	}
	return "application/octet-stream"
}
