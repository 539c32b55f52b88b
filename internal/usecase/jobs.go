package usecase

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"docqa/internal/domain"
	"docqa/internal/port"
)

// FileProcessor runs one file job to completion.
type FileProcessor interface {
	ProcessFile(ctx context.Context, job domain.FileJob, report port.StatusReporter) (*domain.ProcessResult, error)
}

type JobsConfig struct {
	Workers     int
	QueueSize   int
	TaskTimeout time.Duration
	Retention   time.Duration // finished job state is kept this long; default 1h
}

// Jobs is an in-process worker pool for file jobs. Submissions never block:
// a full queue rejects with domain.ErrQueueFull.
type Jobs struct {
	processor FileProcessor
	report    port.StatusReporter
	logger    *slog.Logger
	timeout   time.Duration
	retention time.Duration
	now       func() time.Time

	queue chan queuedJob
	wg    sync.WaitGroup

	mu       sync.RWMutex
	states   map[string]*domain.JobState
	done     map[string]chan struct{}
	finished map[string]time.Time
	closed   bool

	ctx    context.Context
	cancel context.CancelFunc
}

type queuedJob struct {
	id  string
	job domain.FileJob
}

type JobsOption func(*Jobs)

// WithStatusReporter forwards every document status transition to fn.
func WithStatusReporter(fn port.StatusReporter) JobsOption {
	return func(j *Jobs) { j.report = fn }
}

func WithJobsLogger(l *slog.Logger) JobsOption {
	return func(j *Jobs) { j.logger = l }
}

func NewJobs(processor FileProcessor, cfg JobsConfig, opts ...JobsOption) *Jobs {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 64
	}
	if cfg.Retention <= 0 {
		cfg.Retention = time.Hour
	}
	ctx, cancel := context.WithCancel(context.Background())
	j := &Jobs{
		processor: processor,
		logger:    slog.Default(),
		timeout:   cfg.TaskTimeout,
		retention: cfg.Retention,
		now:       time.Now,
		queue:     make(chan queuedJob, cfg.QueueSize),
		states:    make(map[string]*domain.JobState),
		done:      make(map[string]chan struct{}),
		finished:  make(map[string]time.Time),
		ctx:       ctx,
		cancel:    cancel,
	}
	for _, opt := range opts {
		opt(j)
	}

	for i := 0; i < cfg.Workers; i++ {
		j.wg.Add(1)
		go j.worker()
	}
	return j
}

// Enqueue implements port.TaskQueue.
func (j *Jobs) Enqueue(ctx context.Context, job domain.FileJob) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return j.Submit(job)
}

// Submit queues a job and returns its id.
func (j *Jobs) Submit(job domain.FileJob) (string, error) {
	id := uuid.NewString()

	j.mu.Lock()
	defer j.mu.Unlock()
	if j.closed {
		return "", domain.ErrQueueClosed
	}
	j.pruneLocked()

	select {
	case j.queue <- queuedJob{id: id, job: job}:
	default:
		return "", domain.ErrQueueFull
	}

	j.states[id] = &domain.JobState{
		ID:        id,
		FileID:    job.FileID,
		ProjectID: job.ProjectID,
		Status:    domain.StatusPending,
	}
	j.done[id] = make(chan struct{})
	return id, nil
}

// Status returns a copy of the job's state.
func (j *Jobs) Status(id string) (domain.JobState, bool) {
	j.mu.RLock()
	defer j.mu.RUnlock()
	st, ok := j.states[id]
	if !ok {
		return domain.JobState{}, false
	}
	return *st, true
}

// Wait blocks until the job finishes or ctx is done.
func (j *Jobs) Wait(ctx context.Context, id string) (domain.JobState, error) {
	j.mu.RLock()
	ch, ok := j.done[id]
	j.mu.RUnlock()
	if !ok {
		return domain.JobState{}, domain.ErrJobNotFound
	}

	select {
	case <-ch:
		st, _ := j.Status(id)
		return st, nil
	case <-ctx.Done():
		return domain.JobState{}, ctx.Err()
	}
}

// Close stops accepting jobs, drains the queue and waits for the workers.
// Jobs still queued when ctx expires are cancelled.
func (j *Jobs) Close(ctx context.Context) error {
	j.mu.Lock()
	if j.closed {
		j.mu.Unlock()
		return nil
	}
	j.closed = true
	close(j.queue)
	j.mu.Unlock()

	finished := make(chan struct{})
	go func() {
		j.wg.Wait()
		close(finished)
	}()

	select {
	case <-finished:
		j.cancel()
		return nil
	case <-ctx.Done():
		j.cancel()
		<-finished
		return ctx.Err()
	}
}

func (j *Jobs) worker() {
	defer j.wg.Done()
	for q := range j.queue {
		j.run(q)
	}
}

func (j *Jobs) run(q queuedJob) {
	ctx := j.ctx
	if j.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, j.timeout)
		defer cancel()
	}

	report := func(fileID int64, status domain.ProcessingStatus, err error) {
		j.setStatus(q.id, status, err)
		if j.report != nil {
			j.report(fileID, status, err)
		}
	}

	result, err := j.processor.ProcessFile(ctx, q.job, report)
	if err != nil {
		j.setStatus(q.id, domain.StatusFailed, err)
	} else {
		j.mu.Lock()
		if st, ok := j.states[q.id]; ok {
			st.Result = result
		}
		j.mu.Unlock()
	}

	j.mu.Lock()
	if ch, ok := j.done[q.id]; ok {
		close(ch)
	}
	j.finished[q.id] = j.now()
	j.mu.Unlock()

	j.logger.Debug("job finished", "job_id", q.id, "file_id", q.job.FileID, "error", err)
}

func (j *Jobs) setStatus(id string, status domain.ProcessingStatus, err error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	st, ok := j.states[id]
	if !ok {
		return
	}
	st.Status = status
	if err != nil {
		st.Error = err.Error()
	}
}

// pruneLocked forgets jobs that finished more than the retention period ago.
// Callers hold j.mu.
func (j *Jobs) pruneLocked() {
	cutoff := j.now().Add(-j.retention)
	for id, at := range j.finished {
		if at.Before(cutoff) {
			delete(j.finished, id)
			delete(j.states, id)
			delete(j.done, id)
		}
	}
}
