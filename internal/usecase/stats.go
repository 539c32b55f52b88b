package usecase

import (
	"context"
	"errors"

	"docqa/internal/domain"
	"docqa/internal/port"
)

// ProjectStats reports distinct files and chunks held by the project's index.
// A project without an index has zero of both.
func ProjectStats(ctx context.Context, store port.IndexStore, projectID int64) (domain.ProjectStats, error) {
	ix, err := store.Load(ctx, projectID)
	if errors.Is(err, domain.ErrIndexNotFound) {
		return domain.ProjectStats{FileIDs: []int64{}}, nil
	}
	if err != nil {
		return domain.ProjectStats{}, err
	}
	return ix.Stats(), nil
}

// NextFileID returns one past the largest file id stored for the project.
func NextFileID(ctx context.Context, store port.IndexStore, projectID int64) (int64, error) {
	stats, err := ProjectStats(ctx, store, projectID)
	if err != nil {
		return 0, err
	}
	if len(stats.FileIDs) == 0 {
		return 1, nil
	}
	return stats.FileIDs[len(stats.FileIDs)-1] + 1, nil
}
