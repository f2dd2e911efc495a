package ingest

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// CheckpointStore records which keys have already been loaded, so a
// re-run of ingest skips them instead of re-encoding and re-upserting
// duplicate vectors. Pipeline.Run keys it by condition_id, not by source
// row: a condition already loaded is skipped whichever source row it
// came from.
type CheckpointStore struct {
	db *sql.DB
}

// NewCheckpointStore opens (creating if absent) a checkpoint database
// at path.
func NewCheckpointStore(path string) (*CheckpointStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening checkpoint store at %q: %w", path, err)
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS ingest_checkpoint (source_row TEXT PRIMARY KEY)`); err != nil {
		return nil, fmt.Errorf("creating checkpoint table: %w", err)
	}
	return &CheckpointStore{db: db}, nil
}

// Seen reports whether sourceRow has already been committed.
func (s *CheckpointStore) Seen(ctx context.Context, sourceRow string) (bool, error) {
	var exists int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM ingest_checkpoint WHERE source_row = ?`, sourceRow).Scan(&exists)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Commit marks sourceRow as loaded.
func (s *CheckpointStore) Commit(ctx context.Context, sourceRow string) error {
	_, err := s.db.ExecContext(ctx, `INSERT OR IGNORE INTO ingest_checkpoint (source_row) VALUES (?)`, sourceRow)
	return err
}

// Close releases the underlying database handle.
func (s *CheckpointStore) Close() error {
	return s.db.Close()
}
