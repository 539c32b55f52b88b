package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"docqa/internal/domain"
	"docqa/internal/port"
	"docqa/internal/vectorindex"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS project_indexes (
	project_key TEXT PRIMARY KEY,
	project_id  INTEGER NOT NULL,
	entries     INTEGER NOT NULL,
	data        BLOB NOT NULL,
	updated_at  INTEGER NOT NULL
)`

// SQLiteStore keeps each project's index blob in one row.
type SQLiteStore struct {
	db   *sql.DB
	path string
}

var _ port.IndexStore = (*SQLiteStore)(nil)

func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	return &SQLiteStore{db: db, path: path}, nil
}

func (s *SQLiteStore) Load(ctx context.Context, projectID int64) (*vectorindex.Index, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT data FROM project_indexes WHERE project_key = ?`, ProjectKey(projectID),
	).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
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

func (s *SQLiteStore) Save(ctx context.Context, projectID int64, ix *vectorindex.Index) error {
	data, err := encode(ix)
	if err != nil {
		return storageErr("save", projectID, err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO project_indexes (project_key, project_id, entries, data, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(project_key) DO UPDATE SET
			entries = excluded.entries,
			data = excluded.data,
			updated_at = excluded.updated_at`,
		ProjectKey(projectID), projectID, ix.Len(), data, time.Now().Unix(),
	)
	return storageErr("save", projectID, err)
}

func (s *SQLiteStore) Delete(ctx context.Context, projectID int64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM project_indexes WHERE project_key = ?`, ProjectKey(projectID))
	return storageErr("delete", projectID, err)
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) Path() string {
	return s.path
}
