package cli

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"docqa/internal/adapter/queue"
	"docqa/internal/api"
	"docqa/internal/domain"
	"docqa/internal/port"
	"docqa/internal/usecase"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the HTTP API",
	Long: `Serve uploads, questions and project statistics over HTTP.

With worker.queue=local uploads are indexed by an in-process worker pool and
GET /jobs/:id reports their state. With worker.queue=asynq uploads are queued
in redis for 'docqa worker'.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default from config)")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()
	ctx := cmd.Context()

	a, err := newApp(ctx, appOptions{embed: true, generate: true})
	if err != nil {
		return err
	}
	defer a.Close()

	var (
		taskQueue port.TaskQueue
		tracker   port.JobTracker
	)
	switch cfg.Worker.Queue {
	case "asynq":
		q := queue.NewAsynqQueue(queue.Options{
			RedisAddr: cfg.Worker.RedisAddr,
			MaxRetry:  cfg.Worker.MaxRetry,
			Timeout:   cfg.Worker.TaskTimeout,
		})
		defer q.Close()
		taskQueue = q
	default:
		jobs := usecase.NewJobs(a.service.Indexer, usecase.JobsConfig{
			Workers:     cfg.Worker.Concurrency,
			QueueSize:   cfg.Worker.QueueSize,
			TaskTimeout: cfg.Worker.TaskTimeout,
			Retention:   cfg.Worker.JobRetention,
		}, usecase.WithJobsLogger(a.logger), usecase.WithStatusReporter(logStatus(a)))
		defer func() {
			closeCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			jobs.Close(closeCtx)
		}()
		taskQueue, tracker = jobs, jobs
	}

	addr := cfg.Server.Addr
	if serveAddr != "" {
		addr = serveAddr
	}

	srv := api.New(a.service, taskQueue, tracker, api.Config{
		UploadDir:   cfg.UploadDir(a.dir),
		MaxFileSize: cfg.Server.MaxFileSize,
	}, a.logger)
	return srv.Run(ctx, addr)
}

func logStatus(a *app) port.StatusReporter {
	return func(fileID int64, status domain.ProcessingStatus, err error) {
		if err != nil {
			a.logger.Warn("document status", "file_id", fileID, "status", status, "error", err)
			return
		}
		a.logger.Info("document status", "file_id", fileID, "status", status)
	}
}
