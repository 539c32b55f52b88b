// Package store persists one serialized vector index per project. Every
// backend overwrites the whole blob on save and never exposes a partially
// written index to Load.
package store

import (
	"errors"
	"fmt"

	"docqa/internal/domain"
	"docqa/internal/vectorindex"
)

// ProjectKey is the storage key of a project's index.
func ProjectKey(projectID int64) string {
	return fmt.Sprintf("project_%d", projectID)
}

func storageErr(op string, projectID int64, err error) error {
	if err == nil || errors.Is(err, domain.ErrIndexNotFound) {
		return err
	}
	return &domain.StorageError{Op: op, ProjectID: projectID, Err: err}
}

func encode(ix *vectorindex.Index) ([]byte, error) {
	if ix == nil {
		return nil, fmt.Errorf("nil index")
	}
	return ix.MarshalBinary()
}
