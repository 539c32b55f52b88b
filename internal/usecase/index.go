package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"docqa/internal/domain"
	"docqa/internal/port"
	"docqa/internal/vectorindex"
)

var tracer = otel.Tracer("docqa/usecase")

// ProjectInvalidator is told whenever a project's index changes.
type ProjectInvalidator interface {
	InvalidateProject(projectID int64)
}

// Indexer turns uploaded files into entries of their project's vector index.
// Mutations of one project are serialized: load, merge and save run under a
// per-project lock, so concurrent uploads never drop each other's chunks.
type Indexer struct {
	store     port.IndexStore
	embedder  port.Embedder
	extractor port.Extractor
	chunker   port.Chunker
	cache     ProjectInvalidator
	logger    *slog.Logger
	locks     *projectLocks
}

type IndexerOption func(*Indexer)

func WithInvalidator(c ProjectInvalidator) IndexerOption {
	return func(u *Indexer) { u.cache = c }
}

func WithIndexerLogger(l *slog.Logger) IndexerOption {
	return func(u *Indexer) { u.logger = l }
}

func NewIndexer(
	store port.IndexStore,
	embedder port.Embedder,
	extractor port.Extractor,
	chunker port.Chunker,
	opts ...IndexerOption,
) *Indexer {
	u := &Indexer{
		store:     store,
		embedder:  embedder,
		extractor: extractor,
		chunker:   chunker,
		logger:    slog.Default(),
		locks:     newProjectLocks(),
	}
	for _, opt := range opts {
		opt(u)
	}
	return u
}

// IndexDocument embeds the chunks of one file and merges them into the
// project's index. Embedding happens before the project lock is taken; a
// failure at any step leaves the stored index untouched.
func (u *Indexer) IndexDocument(ctx context.Context, chunks []domain.Chunk, fileID, projectID int64) (err error) {
	ctx, span := tracer.Start(ctx, "indexer.IndexDocument", trace.WithAttributes(
		attribute.Int64("project.id", projectID),
		attribute.Int64("file.id", fileID),
		attribute.Int("chunks", len(chunks)),
	))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	if len(chunks) == 0 {
		return nil
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}

	vectors, err := u.embedder.Embed(ctx, texts)
	if err != nil {
		var svcErr *domain.EmbeddingServiceError
		if errors.As(err, &svcErr) {
			return err
		}
		return &domain.EmbeddingServiceError{Model: u.embedder.ModelName(), Err: err}
	}

	fragment, err := vectorindex.Build(chunks, vectors, fileID)
	if err != nil {
		return &domain.EmbeddingServiceError{Model: u.embedder.ModelName(), Err: err}
	}

	unlock, err := u.locks.lock(ctx, projectID)
	if err != nil {
		return err
	}
	defer unlock()

	existing, err := u.load(ctx, projectID)
	if err != nil {
		return err
	}

	merged, err := vectorindex.Merge(existing, fragment)
	if err != nil {
		return &domain.StorageError{Op: "merge", ProjectID: projectID, Err: err}
	}

	if err := u.store.Save(ctx, projectID, merged); err != nil {
		return err
	}
	u.invalidate(projectID)

	u.logger.Info("indexed document",
		"project_id", projectID,
		"file_id", fileID,
		"chunks", fragment.Len(),
		"index_entries", merged.Len(),
	)
	return nil
}

// ProcessFile extracts, chunks and (when the job names a project) indexes a
// file, reporting status transitions to report.
func (u *Indexer) ProcessFile(ctx context.Context, job domain.FileJob, report port.StatusReporter) (*domain.ProcessResult, error) {
	if report == nil {
		report = func(int64, domain.ProcessingStatus, error) {}
	}
	report(job.FileID, domain.StatusProcessing, nil)

	result, err := u.processFile(ctx, job)
	if err != nil {
		u.logger.Error("file processing failed",
			"file_id", job.FileID,
			"project_id", job.ProjectID,
			"error", err,
		)
		report(job.FileID, domain.StatusFailed, err)
		return nil, err
	}

	report(job.FileID, domain.StatusCompleted, nil)
	return result, nil
}

func (u *Indexer) processFile(ctx context.Context, job domain.FileJob) (*domain.ProcessResult, error) {
	data := job.Data
	if data == nil {
		var err error
		data, err = os.ReadFile(job.Path)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", job.Path, err)
		}
	}

	text, err := u.extractor.Extract(ctx, data)
	if err != nil {
		return nil, err
	}

	chunks, err := u.chunker.Chunk(text)
	if err != nil {
		return nil, err
	}
	for i := range chunks {
		chunks[i].FileID = job.FileID
		chunks[i].ProjectID = job.ProjectID
	}

	result := &domain.ProcessResult{
		FileID:      job.FileID,
		ProjectID:   job.ProjectID,
		TotalChunks: len(chunks),
		TotalWords:  len(strings.Fields(text)),
		Chunks:      chunks,
	}

	if job.ProjectID == 0 {
		return result, nil
	}

	if err := u.IndexDocument(ctx, chunks, job.FileID, job.ProjectID); err != nil {
		return nil, err
	}
	result.Indexed = true
	return result, nil
}

// DeleteProjectIndex removes the project's persisted index.
func (u *Indexer) DeleteProjectIndex(ctx context.Context, projectID int64) error {
	unlock, err := u.locks.lock(ctx, projectID)
	if err != nil {
		return err
	}
	defer unlock()

	if err := u.store.Delete(ctx, projectID); err != nil {
		return err
	}
	u.invalidate(projectID)
	u.logger.Info("deleted project index", "project_id", projectID)
	return nil
}

func (u *Indexer) load(ctx context.Context, projectID int64) (*vectorindex.Index, error) {
	ix, err := u.store.Load(ctx, projectID)
	if errors.Is(err, domain.ErrIndexNotFound) {
		return nil, nil
	}
	return ix, err
}

func (u *Indexer) invalidate(projectID int64) {
	if u.cache != nil {
		u.cache.InvalidateProject(projectID)
	}
}

// projectLocks hands out one lock per project id and forgets it once no
// goroutine holds or waits for it.
type projectLocks struct {
	mu    sync.Mutex
	locks map[int64]*projectLock
}

type projectLock struct {
	sem  chan struct{}
	refs int
}

func newProjectLocks() *projectLocks {
	return &projectLocks{locks: make(map[int64]*projectLock)}
}

func (p *projectLocks) lock(ctx context.Context, projectID int64) (func(), error) {
	p.mu.Lock()
	l, ok := p.locks[projectID]
	if !ok {
		l = &projectLock{sem: make(chan struct{}, 1)}
		p.locks[projectID] = l
	}
	l.refs++
	p.mu.Unlock()

	select {
	case l.sem <- struct{}{}:
		return func() {
			<-l.sem
			p.release(projectID, l)
		}, nil
	case <-ctx.Done():
		p.release(projectID, l)
		return nil, ctx.Err()
	}
}

func (p *projectLocks) release(projectID int64, l *projectLock) {
	p.mu.Lock()
	l.refs--
	if l.refs == 0 {
		delete(p.locks, projectID)
	}
	p.mu.Unlock()
}

func (p *projectLocks) size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.locks)
}
