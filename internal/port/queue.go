package port

import (
	"context"

	"docqa/internal/domain"
)

// TaskQueue hands a file off for background indexing and returns a job id.
type TaskQueue interface {
	Enqueue(ctx context.Context, job domain.FileJob) (string, error)
}

// JobTracker reports the state of jobs submitted through a TaskQueue, when
// the queue keeps that state in-process.
type JobTracker interface {
	Status(id string) (domain.JobState, bool)
}

// StatusReporter receives document status transitions during processing.
type StatusReporter func(fileID int64, status domain.ProcessingStatus, err error)
