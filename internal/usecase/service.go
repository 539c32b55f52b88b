package usecase

import (
	"context"

	"docqa/internal/domain"
	"docqa/internal/port"
)

// Service is the core entry point shared by the CLI, the HTTP server and the
// queue worker.
type Service struct {
	Indexer  *Indexer
	Composer *Composer
	Store    port.IndexStore
}

func (s *Service) IndexDocument(ctx context.Context, chunks []domain.Chunk, fileID, projectID int64) error {
	return s.Indexer.IndexDocument(ctx, chunks, fileID, projectID)
}

func (s *Service) AnswerQuestion(ctx context.Context, question string, projectID int64) (domain.Answer, error) {
	return s.Composer.Answer(ctx, question, projectID)
}

func (s *Service) GetProjectStats(ctx context.Context, projectID int64) (domain.ProjectStats, error) {
	return ProjectStats(ctx, s.Store, projectID)
}

func (s *Service) Summarize(ctx context.Context, projectID int64) (domain.Answer, error) {
	return s.Composer.Summarize(ctx, projectID)
}

func (s *Service) Compare(ctx context.Context, projectID int64) (domain.Answer, error) {
	return s.Composer.Compare(ctx, projectID)
}

func (s *Service) ProcessFile(ctx context.Context, job domain.FileJob, report port.StatusReporter) (*domain.ProcessResult, error) {
	return s.Indexer.ProcessFile(ctx, job, report)
}

func (s *Service) DeleteProjectIndex(ctx context.Context, projectID int64) error {
	return s.Indexer.DeleteProjectIndex(ctx, projectID)
}
