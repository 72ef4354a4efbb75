package cli

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/adverant/nexus/passport-worker/internal/worker"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Run the passport queue worker",
	Long: `Consumes passport extraction jobs from Redis and stores results in
PostgreSQL until interrupted. Configuration comes from the environment
(REDIS_URL, DATABASE_URL, QUEUE_BACKEND, WORKER_CONCURRENCY, ...).`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return worker.Run(ctx, cfg, logger.Named("passport-worker"))
	},
}

func init() {
	rootCmd.AddCommand(workerCmd)
}
