package port

import (
	"context"

	"docqa/internal/vectorindex"
)

// IndexStore persists one vector index per project. Save replaces the whole
// previously stored index. Load returns domain.ErrIndexNotFound when the
// project has nothing stored.
type IndexStore interface {
	Load(ctx context.Context, projectID int64) (*vectorindex.Index, error)

	Save(ctx context.Context, projectID int64, ix *vectorindex.Index) error

	Delete(ctx context.Context, projectID int64) error

	Close() error
}
