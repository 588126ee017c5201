package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/endog/internal/journal"
)

// createTestStore creates a new store in a temp directory.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func replayAll(t *testing.T, s *Store) []string {
	t.Helper()
	var out []string
	for rec, err := range s.Replay(context.Background()) {
		require.NoError(t, err)
		out = append(out, string(rec))
	}
	return out
}

func TestOpen_CreatesNewDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	s, err := Open(path)
	require.NoError(t, err)
	defer s.Close()

	_, err = os.Stat(path)
	assert.NoError(t, err, "database file was not created")
}

func TestOpen_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	for i := 0; i < 3; i++ {
		s, err := Open(path)
		require.NoError(t, err, "Open() iteration %d", i)
		require.NoError(t, s.Close())
	}

	s, err := Open(path)
	require.NoError(t, err)
	defer s.Close()

	var name string
	err = s.db.QueryRow(
		"SELECT name FROM sqlite_master WHERE type='table' AND name=?",
		"records",
	).Scan(&name)
	require.NoError(t, err)
	assert.Equal(t, "records", name)
}

func TestOpen_Pragmas(t *testing.T) {
	s := createTestStore(t)

	assert.NoError(t, s.verifyPragma("journal_mode", "wal"))
	assert.NoError(t, s.verifyPragma("synchronous", "2"))
	assert.NoError(t, s.verifyPragma("busy_timeout", "5000"))
	assert.NoError(t, s.verifyPragma("user_version", "1"))
}

func TestOpen_MigrationCreatesIndex(t *testing.T) {
	s := createTestStore(t)

	var name string
	err := s.db.QueryRow(
		"SELECT name FROM sqlite_master WHERE type='index' AND name=?",
		"idx_records_appended_at",
	).Scan(&name)
	require.NoError(t, err)
}

func TestStore_AppendReplay(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Append(ctx, [][]byte{[]byte(`{"s":"a"}`), []byte(`{"s":"b"}`)}))
	require.NoError(t, s.Append(ctx, nil))
	require.NoError(t, s.Append(ctx, [][]byte{[]byte(`{"s":"c"}`)}))

	assert.Equal(t, []string{`{"s":"a"}`, `{"s":"b"}`, `{"s":"c"}`}, replayAll(t, s))

	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
}

func TestStore_ReplayAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	ctx := context.Background()

	s1, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s1.Append(ctx, [][]byte{[]byte("one"), []byte("two")}))
	require.NoError(t, s1.Close())

	s2, err := Open(path)
	require.NoError(t, err)
	defer s2.Close()

	assert.Equal(t, []string{"one", "two"}, replayAll(t, s2))
}

func TestStore_RejectedBatchWritesNothing(t *testing.T) {
	s := createTestStore(t)

	err := s.Append(context.Background(), [][]byte{[]byte("ok"), []byte("bad\nrecord")})
	assert.ErrorIs(t, err, journal.ErrMultilineRecord)
	assert.Empty(t, replayAll(t, s))
}

func TestStore_ReplayEarlyBreak(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.Append(ctx, [][]byte{[]byte("one"), []byte("two"), []byte("three")}))

	var got []string
	for rec, err := range s.Replay(ctx) {
		require.NoError(t, err)
		got = append(got, string(rec))
		if len(got) == 2 {
			break
		}
	}
	assert.Equal(t, []string{"one", "two"}, got)

	// The connection was released by the early break.
	require.NoError(t, s.Append(ctx, [][]byte{[]byte("four")}))
	assert.Len(t, replayAll(t, s), 4)
}

func TestStore_Closed(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())

	assert.ErrorIs(t, s.Append(context.Background(), [][]byte{[]byte("x")}), journal.ErrClosed)

	_, err = s.Count(context.Background())
	assert.ErrorIs(t, err, journal.ErrClosed)
}
