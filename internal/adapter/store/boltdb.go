package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"go.etcd.io/bbolt"

	"docqa/internal/domain"
	"docqa/internal/port"
	"docqa/internal/vectorindex"
)

var (
	bucketIndexes = []byte("project_indexes")
	bucketMeta    = []byte("meta")
)

type BoltStore struct {
	db *bbolt.DB
}

var _ port.IndexStore = (*BoltStore)(nil)

func NewBoltStore(path string) (*BoltStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create store dir: %w", err)
	}

	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt db: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, b := range [][]byte{bucketIndexes, bucketMeta} {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", b, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &BoltStore{db: db}, nil
}

func (s *BoltStore) DB() *bbolt.DB {
	return s.db
}

func (s *BoltStore) Load(ctx context.Context, projectID int64) (*vectorindex.Index, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var ix *vectorindex.Index
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketIndexes).Get([]byte(ProjectKey(projectID)))
		if data == nil {
			return domain.ErrIndexNotFound
		}
		// Decode copies everything out of the mmap before the tx closes.
		var err error
		ix, err = vectorindex.Decode(data)
		return err
	})
	if err != nil {
		return nil, storageErr("load", projectID, err)
	}
	return ix, nil
}

func (s *BoltStore) Save(ctx context.Context, projectID int64, ix *vectorindex.Index) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := encode(ix)
	if err != nil {
		return storageErr("save", projectID, err)
	}

	err = s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketIndexes).Put([]byte(ProjectKey(projectID)), data)
	})
	return storageErr("save", projectID, err)
}

func (s *BoltStore) Delete(ctx context.Context, projectID int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketIndexes).Delete([]byte(ProjectKey(projectID)))
	})
	return storageErr("delete", projectID, err)
}

// Projects lists the ids of all projects with a stored index.
func (s *BoltStore) Projects() ([]int64, error) {
	var ids []int64
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketIndexes).ForEach(func(k, _ []byte) error {
			id, err := strconv.ParseInt(strings.TrimPrefix(string(k), "project_"), 10, 64)
			if err != nil {
				return nil
			}
			ids = append(ids, id)
			return nil
		})
	})
	return ids, err
}

func (s *BoltStore) Close() error {
	return s.db.Close()
}
