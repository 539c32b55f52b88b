package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"docqa/internal/domain"
	"docqa/internal/port"
)

const (
	TaskIndexFile = "docqa:index_file"
	QueueName     = "docqa"
)

// IndexFilePayload is the JSON body of a TaskIndexFile task. The file must be
// readable by the worker at Path.
type IndexFilePayload struct {
	FileID    int64  `json:"file_id"`
	ProjectID int64  `json:"project_id"`
	Path      string `json:"path"`
}

type Options struct {
	RedisAddr string
	MaxRetry  int
	Timeout   time.Duration
}

func NewIndexFileTask(job domain.FileJob, opts Options) (*asynq.Task, error) {
	if job.Path == "" {
		return nil, fmt.Errorf("file %d: queued jobs need a path", job.FileID)
	}
	payload, err := json.Marshal(IndexFilePayload{
		FileID:    job.FileID,
		ProjectID: job.ProjectID,
		Path:      job.Path,
	})
	if err != nil {
		return nil, err
	}

	taskOpts := []asynq.Option{asynq.Queue(QueueName)}
	if opts.MaxRetry >= 0 {
		taskOpts = append(taskOpts, asynq.MaxRetry(opts.MaxRetry))
	}
	if opts.Timeout > 0 {
		taskOpts = append(taskOpts, asynq.Timeout(opts.Timeout))
	}
	return asynq.NewTask(TaskIndexFile, payload, taskOpts...), nil
}

// AsynqQueue enqueues file jobs into redis for an out-of-process worker.
type AsynqQueue struct {
	client *asynq.Client
	opts   Options
}

var _ port.TaskQueue = (*AsynqQueue)(nil)

func NewAsynqQueue(opts Options) *AsynqQueue {
	return &AsynqQueue{
		client: asynq.NewClient(asynq.RedisClientOpt{Addr: opts.RedisAddr}),
		opts:   opts,
	}
}

func (q *AsynqQueue) Enqueue(ctx context.Context, job domain.FileJob) (string, error) {
	task, err := NewIndexFileTask(job, q.opts)
	if err != nil {
		return "", err
	}
	info, err := q.client.EnqueueContext(ctx, task)
	if err != nil {
		return "", fmt.Errorf("enqueue file %d: %w", job.FileID, err)
	}
	return info.ID, nil
}

func (q *AsynqQueue) Close() error {
	return q.client.Close()
}

// FileProcessor runs one file job to completion.
type FileProcessor interface {
	ProcessFile(ctx context.Context, job domain.FileJob, report port.StatusReporter) (*domain.ProcessResult, error)
}

// Handler processes TaskIndexFile tasks.
type Handler struct {
	processor FileProcessor
	report    port.StatusReporter
	logger    *slog.Logger
}

func NewHandler(processor FileProcessor, report port.StatusReporter, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{processor: processor, report: report, logger: logger}
}

// ProcessTask marks malformed payloads and errors that would fail again the
// same way (extraction, configuration, corrupt index) as not retryable.
func (h *Handler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload IndexFilePayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal failed: %w", asynq.SkipRetry)
	}

	job := domain.FileJob{FileID: payload.FileID, ProjectID: payload.ProjectID, Path: payload.Path}
	result, err := h.processor.ProcessFile(ctx, job, h.report)
	if err != nil {
		if domain.IsTerminal(err) {
			return errors.Join(err, asynq.SkipRetry)
		}
		return err
	}

	h.logger.Info("processed queued file",
		"file_id", result.FileID,
		"project_id", result.ProjectID,
		"chunks", result.TotalChunks,
	)
	return nil
}

func (h *Handler) Mux() *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.Handle(TaskIndexFile, h)
	return mux
}

// NewServer returns an asynq server consuming QueueName.
func NewServer(redisAddr string, concurrency int, logger *slog.Logger) *asynq.Server {
	if concurrency <= 0 {
		concurrency = 1
	}
	return asynq.NewServer(
		asynq.RedisClientOpt{Addr: redisAddr},
		asynq.Config{
			Concurrency: concurrency,
			Queues:      map[string]int{QueueName: 1},
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				logger.Error("task failed", "type", task.Type(), "error", err)
			}),
		},
	)
}
