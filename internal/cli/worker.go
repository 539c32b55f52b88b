package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"docqa/internal/adapter/queue"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Process queued index jobs from redis",
	Long: `Consume docqa:index_file tasks enqueued by 'docqa serve' when
worker.queue=asynq. Files must be readable at the path recorded in the task.`,
	RunE: runWorker,
}

func init() {
	rootCmd.AddCommand(workerCmd)
}

func runWorker(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()
	ctx := cmd.Context()

	a, err := newApp(ctx, appOptions{embed: true})
	if err != nil {
		return err
	}
	defer a.Close()

	srv := queue.NewServer(cfg.Worker.RedisAddr, cfg.Worker.Concurrency, a.logger)
	handler := queue.NewHandler(a.service.Indexer, logStatus(a), a.logger)

	a.logger.Info("starting worker",
		"redis", cfg.Worker.RedisAddr,
		"concurrency", cfg.Worker.Concurrency,
		"queue", queue.QueueName,
	)
	if err := srv.Start(handler.Mux()); err != nil {
		return fmt.Errorf("failed to start worker: %w", err)
	}

	<-ctx.Done()
	srv.Shutdown()
	return nil
}
