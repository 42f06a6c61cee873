package database

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestDB(t *testing.T) *DB {
	t.Helper()

	db, err := New(Config{
		Path:    filepath.Join(t.TempDir(), "test.db"),
		Profile: ProfileStandard,
		Name:    "test",
	})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	_, err = db.Exec(`CREATE TABLE test_table (id INTEGER PRIMARY KEY, value TEXT NOT NULL)`)
	require.NoError(t, err)

	return db
}

func TestWithTransaction_Commit(t *testing.T) {
	db := setupTestDB(t)

	err := WithTransaction(db.Conn(), func(tx *sql.Tx) error {
		_, err := tx.Exec("INSERT INTO test_table (value) VALUES (?)", "committed")
		return err
	})
	require.NoError(t, err)

	var count int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM test_table").Scan(&count))
	assert.Equal(t, 1, count)
}

func TestWithTransaction_RollbackOnError(t *testing.T) {
	db := setupTestDB(t)

	testErr := errors.New("boom")
	err := WithTransaction(db.Conn(), func(tx *sql.Tx) error {
		if _, err := tx.Exec("INSERT INTO test_table (value) VALUES (?)", "doomed"); err != nil {
			return err
		}
		return testErr
	})
	require.ErrorIs(t, err, testErr)

	var count int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM test_table").Scan(&count))
	assert.Equal(t, 0, count)
}

func TestWithTransaction_RollbackOnPanic(t *testing.T) {
	db := setupTestDB(t)

	err := WithTransaction(db.Conn(), func(tx *sql.Tx) error {
		if _, err := tx.Exec("INSERT INTO test_table (value) VALUES (?)", "doomed"); err != nil {
			return err
		}
		panic("boom")
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "panic in transaction")

	var count int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM test_table").Scan(&count))
	assert.Equal(t, 0, count)
}

func TestMigrate(t *testing.T) {
	db, err := New(Config{
		Path:    filepath.Join(t.TempDir(), "universe.db"),
		Profile: ProfileStandard,
		Name:    "universe",
	})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, db.Migrate())
	// Idempotent: schemas only use IF NOT EXISTS
	require.NoError(t, db.Migrate())

	var name string
	err = db.QueryRow("SELECT name FROM sqlite_master WHERE type = 'table' AND name = 'securities'").Scan(&name)
	require.NoError(t, err)
	assert.Equal(t, "securities", name)
}

func TestMigrate_UnknownSchema(t *testing.T) {
	db, err := New(Config{
		Path:    filepath.Join(t.TempDir(), "nope.db"),
		Profile: ProfileStandard,
		Name:    "nope",
	})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	require.Error(t, db.Migrate())
}

func TestBackupTo(t *testing.T) {
	db := setupTestDB(t)
	_, err := db.Exec("INSERT INTO test_table (value) VALUES ('a'), ('b')")
	require.NoError(t, err)

	backupPath := filepath.Join(t.TempDir(), "backups", "test.db")
	require.NoError(t, db.BackupTo(backupPath))

	backup, err := sql.Open("sqlite", backupPath)
	require.NoError(t, err)
	defer backup.Close()

	var integrity string
	require.NoError(t, backup.QueryRow("PRAGMA integrity_check").Scan(&integrity))
	assert.Equal(t, "ok", integrity)

	var count int
	require.NoError(t, backup.QueryRow("SELECT COUNT(*) FROM test_table").Scan(&count))
	assert.Equal(t, 2, count)

	// Overwrites a stale backup in place
	require.NoError(t, db.BackupTo(backupPath))
}

func TestHealthCheck(t *testing.T) {
	db := setupTestDB(t)
	assert.NoError(t, db.HealthCheck(context.Background()))
}
