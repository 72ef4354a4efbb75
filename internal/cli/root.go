// Package cli implements the mrz command line.
package cli

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/adverant/nexus/passport-worker/internal/config"
	"github.com/adverant/nexus/passport-worker/internal/logging"
)

var (
	version = "dev"

	envFile string
	verbose bool

	cfg    *config.Config
	logger *logging.Logger
)

var rootCmd = &cobra.Command{
	Use:   "mrz",
	Short: "Read the machine-readable zone of passport images",
	Long: `mrz locates and decodes the machine-readable zone (MRZ) printed on
passport data pages. It can extract from local images directly, submit
images to the passport job queue, or run the queue worker.`,
	SilenceUsage:      true,
	PersistentPreRunE: loadConfig,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "environment file to load if present")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// SetVersion sets the version reported by "mrz version".
func SetVersion(v string) {
	if v != "" {
		version = v
	}
}

func loadConfig(cmd *cobra.Command, _ []string) error {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to load %s: %w", envFile, err)
		}
	}

	loaded, err := config.LoadConfig()
	if err != nil {
		return err
	}
	cfg = loaded

	logger = logging.NewLogger("mrz")
	logger.SetOutput(cmd.ErrOrStderr())
	logger.SetLevel(logging.ParseLevel(cfg.LogLevel))
	if verbose {
		logger.SetLevel(logging.LevelDebug)
	}
	return nil
}
