package store

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"docqa/internal/domain"
	"docqa/internal/port"
	"docqa/internal/vectorindex"
)

// FileStore writes one project_<id>.idx file per project. Saves go to a temp
// file in the same directory and are renamed over the old file.
type FileStore struct {
	dir string
}

var _ port.IndexStore = (*FileStore)(nil)

func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating index directory: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

func (s *FileStore) path(projectID int64) string {
	return filepath.Join(s.dir, ProjectKey(projectID)+".idx")
}

func (s *FileStore) Load(ctx context.Context, projectID int64) (*vectorindex.Index, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(s.path(projectID))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, domain.ErrIndexNotFound
	}
	if err != nil {
		return nil, storageErr("load", projectID, err)
	}

	ix, err := vectorindex.Decode(data)
	if err != nil {
		return nil, storageErr("load", projectID, err)
	}
	return ix, nil
}

func (s *FileStore) Save(ctx context.Context, projectID int64, ix *vectorindex.Index) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := encode(ix)
	if err != nil {
		return storageErr("save", projectID, err)
	}
	return storageErr("save", projectID, s.writeAtomic(s.path(projectID), data))
}

func (s *FileStore) writeAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(s.dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op after a successful rename

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}

func (s *FileStore) Delete(ctx context.Context, projectID int64) error {
	err := os.Remove(s.path(projectID))
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return storageErr("delete", projectID, err)
}

func (s *FileStore) Close() error {
	return nil
}
