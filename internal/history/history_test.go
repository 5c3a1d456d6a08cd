package history

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "state", "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestOpenCreatesDirectory(t *testing.T) {
	t.Parallel()

	db := openTestDB(t)
	assert.NotEmpty(t, db.Path())
}

func TestAppendAndRecent(t *testing.T) {
	t.Parallel()

	db := openTestDB(t)

	require.NoError(t, db.Append(Record{Kind: "mount", Target: "sdb1", OK: true, Message: "mounted at /mnt/data"}))
	require.NoError(t, db.Append(Record{Kind: "format", Target: "sdb1", OK: false, Message: "mkfs failed"}))
	require.NoError(t, db.Append(Record{
		ID: "fixed-id", Kind: "persist", Target: "sdb1", OK: true,
		BackupPath: "/etc/fstab.bak.diskmanager.1700000000",
	}))

	records, err := db.Recent(10)
	require.NoError(t, err)
	require.Len(t, records, 3)

	// Every record got an id and a timestamp.
	for _, r := range records {
		assert.NotEmpty(t, r.ID)
		assert.False(t, r.Timestamp.IsZero())
	}

	byID := map[string]Record{}
	for _, r := range records {
		byID[r.ID] = r
	}
	fixed, ok := byID["fixed-id"]
	require.True(t, ok)
	assert.Equal(t, "persist", fixed.Kind)
	assert.Equal(t, "/etc/fstab.bak.diskmanager.1700000000", fixed.BackupPath)
}

func TestRecentLimit(t *testing.T) {
	t.Parallel()

	db := openTestDB(t)
	for i := 0; i < 5; i++ {
		require.NoError(t, db.Append(Record{Kind: "mount", Target: "sdb1", OK: true}))
	}

	records, err := db.Recent(3)
	require.NoError(t, err)
	assert.Len(t, records, 3)

	// Non-positive limit falls back to a sane default.
	records, err = db.Recent(0)
	require.NoError(t, err)
	assert.Len(t, records, 5)
}

func TestRecentEmpty(t *testing.T) {
	t.Parallel()

	db := openTestDB(t)
	records, err := db.Recent(10)
	require.NoError(t, err)
	assert.Empty(t, records)
}
