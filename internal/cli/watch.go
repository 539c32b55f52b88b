package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"docqa/internal/adapter/fs"
	"docqa/internal/domain"
	"docqa/internal/usecase"
)

var watchDebounce time.Duration

var watchCmd = &cobra.Command{
	Use:   "watch <dir>",
	Short: "Index PDF files as they appear in a directory",
	Long: `Watch a directory tree and index every matching PDF that is created or
rewritten into the project. Files already present are not indexed; run
'docqa index' for those first.`,
	Args: cobra.ExactArgs(1),
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)
	watchCmd.Flags().DurationVar(&watchDebounce, "debounce", 2*time.Second, "quiet period before a changed file is indexed")
}

func runWatch(cmd *cobra.Command, args []string) error {
	project, err := requireProject()
	if err != nil {
		return err
	}
	cfg := GetConfig()
	ctx := cmd.Context()

	a, err := newApp(ctx, appOptions{embed: true})
	if err != nil {
		return err
	}
	defer a.Close()

	walker := fs.NewWalker(cfg.Ingest.Includes, cfg.Ingest.Excludes)
	watcher, err := fs.NewWatcher(args[0], walker, watchDebounce, a.logger)
	if err != nil {
		return err
	}

	nextID, err := usecase.NextFileID(ctx, a.store, project)
	if err != nil {
		return err
	}

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

	fmt.Printf("Watching %s for project %d (Ctrl+C to stop)\n", args[0], project)
	return watcher.Run(ctx, func(path string) {
		fileID := nextID
		nextID++
		if _, err := jobs.Submit(domain.FileJob{FileID: fileID, ProjectID: project, Path: path}); err != nil {
			a.logger.Error("failed to queue file", "path", path, "error", err)
			return
		}
		a.logger.Info("queued file", "path", path, "file_id", fileID)
	})
}
