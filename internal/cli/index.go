package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"docqa/internal/adapter/fs"
	"docqa/internal/domain"
	"docqa/internal/port"
	"docqa/internal/usecase"
)

var (
	indexFileID  int64
	indexRebuild bool
)

var indexCmd = &cobra.Command{
	Use:   "index <pdf|dir>...",
	Short: "Index PDF files into a project",
	Long: `Extract, chunk and embed PDF files and merge them into the project's
vector index. Directories are walked using the ingest include/exclude globs.
Each file gets its own file id, counting up from --file-id (default: one past
the largest id already in the project).

Examples:
  docqa index paper.pdf -p 1
  docqa index ./papers -p 2 --file-id 100`,
	Args: cobra.MinimumNArgs(1),
	RunE: runIndex,
}

func init() {
	rootCmd.AddCommand(indexCmd)
	indexCmd.Flags().Int64Var(&indexFileID, "file-id", 0, "file id of the first file")
	indexCmd.Flags().BoolVar(&indexRebuild, "rebuild", false, "clear indexes built with a different embedding configuration")
}

func runIndex(cmd *cobra.Command, args []string) error {
	project, err := requireProject()
	if err != nil {
		return err
	}
	cfg := GetConfig()
	ctx := cmd.Context()

	files, err := collectPDFs(args, fs.NewWalker(cfg.Ingest.Includes, cfg.Ingest.Excludes), cfg.Server.MaxFileSize)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		fmt.Println("No PDF files found.")
		return nil
	}

	a, err := newApp(ctx, appOptions{embed: true, rebuild: indexRebuild})
	if err != nil {
		return err
	}
	defer a.Close()

	nextID := indexFileID
	if nextID <= 0 {
		nextID, err = usecase.NextFileID(ctx, a.store, project)
		if err != nil {
			return err
		}
	}

	bar := progressbar.NewOptions(len(files),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionShowBytes(false),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowCount(),
		progressbar.OptionSetDescription("[cyan]Indexing[reset]"),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "[green]=[reset]",
			SaucerHead:    "[green]>[reset]",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
		progressbar.OptionOnCompletion(func() {
			fmt.Println()
		}),
	)

	var (
		barMu     sync.Mutex
		startTime = time.Now()
		finished  int
	)
	report := func(fileID int64, status domain.ProcessingStatus, err error) {
		if status != domain.StatusCompleted && status != domain.StatusFailed {
			return
		}
		barMu.Lock()
		defer barMu.Unlock()
		finished++
		bar.Set(finished)
		if elapsed := time.Since(startTime); finished < len(files) && elapsed > 0 {
			rate := float64(finished) / elapsed.Seconds()
			eta := time.Duration(float64(len(files)-finished)/rate) * time.Second
			bar.Describe(fmt.Sprintf("[cyan]Indexing[reset] ETA: %s", formatDuration(eta)))
		}
	}

	queueSize := len(files)
	if cfg.Worker.QueueSize > queueSize {
		queueSize = cfg.Worker.QueueSize
	}
	jobs := usecase.NewJobs(a.service.Indexer, usecase.JobsConfig{
		Workers:     cfg.Worker.Concurrency,
		QueueSize:   queueSize,
		TaskTimeout: cfg.Worker.TaskTimeout,
		Retention:   cfg.Worker.JobRetention,
	}, usecase.WithStatusReporter(report), usecase.WithJobsLogger(a.logger))
	defer jobs.Close(ctx)

	ids := make([]string, len(files))
	paths := make(map[string]string, len(files))
	for i, path := range files {
		id, err := jobs.Submit(domain.FileJob{FileID: nextID + int64(i), ProjectID: project, Path: path})
		if err != nil {
			return fmt.Errorf("failed to queue %s: %w", path, err)
		}
		ids[i] = id
		paths[id] = path
	}

	var (
		chunks int
		failed []string
	)
	for _, id := range ids {
		st, err := jobs.Wait(ctx, id)
		if err != nil {
			return err
		}
		if st.Status == domain.StatusFailed {
			failed = append(failed, fmt.Sprintf("%s: %s", paths[id], st.Error))
			continue
		}
		if st.Result != nil {
			chunks += st.Result.TotalChunks
		}
	}

	stats, err := a.service.GetProjectStats(ctx, project)
	if err != nil {
		return err
	}

	fmt.Printf("\nIndexing complete:\n")
	fmt.Printf("  Files indexed:  %d\n", len(files)-len(failed))
	fmt.Printf("  Files failed:   %d\n", len(failed))
	fmt.Printf("  Chunks created: %d\n", chunks)
	fmt.Printf("  Project %d now holds %d documents, %d chunks\n", project, stats.TotalDocuments, stats.TotalChunks)

	if len(failed) > 0 {
		fmt.Printf("\nWarnings:\n")
		for _, f := range failed {
			fmt.Printf("  - %s\n", f)
		}
	}
	return nil
}

// collectPDFs expands directory arguments with the walker and keeps file
// arguments as given.
func collectPDFs(args []string, walker port.FileWalker, maxSize int64) ([]string, error) {
	var files []string
	for _, arg := range args {
		path, err := filepath.Abs(arg)
		if err != nil {
			return nil, fmt.Errorf("invalid path: %w", err)
		}
		info, err := os.Stat(path)
		if err != nil {
			return nil, fmt.Errorf("path does not exist: %w", err)
		}
		if !info.IsDir() {
			if err := fs.ValidateUpload(path, info.Size(), maxSize); err != nil {
				return nil, err
			}
			files = append(files, path)
			continue
		}

		found, err := walker.Walk(path)
		if err != nil {
			return nil, fmt.Errorf("failed to walk %s: %w", path, err)
		}
		for _, f := range found {
			files = append(files, f.Path)
		}
	}
	return files, nil
}

// formatDuration formats a duration in a human-readable way.
func formatDuration(d time.Duration) string {
	if d < time.Second {
		return "<1s"
	}
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		m := int(d.Minutes())
		s := int(d.Seconds()) % 60
		return fmt.Sprintf("%dm%ds", m, s)
	}
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	return fmt.Sprintf("%dh%dm", h, m)
}
