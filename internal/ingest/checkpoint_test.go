package ingest

import (
	"context"
	"database/sql"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupCheckpointMock(t *testing.T) (*CheckpointStore, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS ingest_checkpoint`).WillReturnResult(sqlmock.NewResult(0, 0))
	store := &CheckpointStore{db: db}
	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS ingest_checkpoint (source_row TEXT PRIMARY KEY)`)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store, mock
}

func TestCheckpointStore_SeenFalseWhenRowAbsent(t *testing.T) {
	store, mock := setupCheckpointMock(t)
	mock.ExpectQuery(`SELECT 1 FROM ingest_checkpoint WHERE source_row = \?`).
		WithArgs("hpo:1").
		WillReturnError(sql.ErrNoRows)

	seen, err := store.Seen(context.Background(), "hpo:1")
	require.NoError(t, err)
	assert.False(t, seen)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCheckpointStore_SeenTrueWhenRowPresent(t *testing.T) {
	store, mock := setupCheckpointMock(t)
	rows := sqlmock.NewRows([]string{"1"}).AddRow(1)
	mock.ExpectQuery(`SELECT 1 FROM ingest_checkpoint WHERE source_row = \?`).
		WithArgs("hpo:2").
		WillReturnRows(rows)

	seen, err := store.Seen(context.Background(), "hpo:2")
	require.NoError(t, err)
	assert.True(t, seen)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCheckpointStore_SeenPropagatesQueryError(t *testing.T) {
	store, mock := setupCheckpointMock(t)
	mock.ExpectQuery(`SELECT 1 FROM ingest_checkpoint WHERE source_row = \?`).
		WithArgs("hpo:3").
		WillReturnError(assertConnErr{})

	_, err := store.Seen(context.Background(), "hpo:3")
	assert.Error(t, err)
}

func TestCheckpointStore_Commit(t *testing.T) {
	store, mock := setupCheckpointMock(t)
	mock.ExpectExec(`INSERT OR IGNORE INTO ingest_checkpoint \(source_row\) VALUES \(\?\)`).
		WithArgs("icd10:4").
		WillReturnResult(sqlmock.NewResult(1, 1))

	err := store.Commit(context.Background(), "icd10:4")
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

type assertConnErr struct{}

func (assertConnErr) Error() string { return "connection lost" }
