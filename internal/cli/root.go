package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"docqa/config"
	"docqa/internal/logger"
)

var (
	cfgFile   string
	cfg       *config.Config
	rootDir   string
	projectID int64
	appLog    *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "docqa",
	Short: "Ask questions about your PDF papers",
	Long: `docqa extracts text from PDF files, splits it into overlapping word
chunks, embeds them into one vector index per project and answers questions
from the most similar chunks with cited sources.

Example usage:
  docqa index ./papers -p 1           # Index every PDF under ./papers into project 1
  docqa ask -p 1 -q "main findings?"   # Ask a question
  docqa summarize -p 1                 # Summarize all papers of the project
  docqa serve                          # Start the HTTP API`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error

		if rootDir == "" {
			rootDir, err = os.Getwd()
			if err != nil {
				return fmt.Errorf("failed to get working directory: %w", err)
			}
		}

		if err := config.LoadEnv(rootDir); err != nil {
			return err
		}

		if cfgFile != "" {
			cfg, err = config.Load(cfgFile)
		} else {
			cfg, err = config.LoadFromDir(rootDir)
		}
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		if err := cfg.Validate(); err != nil {
			return err
		}

		appLog = logger.New(cfg.Logging)
		slog.SetDefault(appLog)
		return nil
	},
}

// Execute runs the CLI until it finishes or the process is interrupted.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./docqa.yaml)")
	rootCmd.PersistentFlags().StringVarP(&rootDir, "dir", "d", "", "data directory (default is current directory)")
	rootCmd.PersistentFlags().Int64VarP(&projectID, "project", "p", 0, "project id")
}

func GetConfig() *config.Config {
	return cfg
}

func GetRootDir() string {
	return rootDir
}

func requireProject() (int64, error) {
	if projectID <= 0 {
		return 0, fmt.Errorf("a positive --project id is required")
	}
	return projectID, nil
}
