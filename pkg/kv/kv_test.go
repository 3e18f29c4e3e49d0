package kv

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(Options{Path: t.TempDir(), InMemory: true})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestPutGetCommit(t *testing.T) {
	s := openTestStore(t)

	txn, err := s.Begin(true)
	require.NoError(t, err)
	require.NoError(t, txn.Put("widgets", []byte("a"), []byte("1")))
	require.NoError(t, txn.Commit())

	reader, err := s.Begin(false)
	require.NoError(t, err)
	defer reader.Rollback()

	v, ok, err := reader.Get("widgets", []byte("a"))
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []byte("1"), v)
}

func TestRollbackDiscardsChanges(t *testing.T) {
	s := openTestStore(t)

	txn, err := s.Begin(true)
	require.NoError(t, err)
	require.NoError(t, txn.Put("widgets", []byte("a"), []byte("1")))
	txn.Rollback()

	reader, err := s.Begin(false)
	require.NoError(t, err)
	defer reader.Rollback()

	_, ok, err := reader.Get("widgets", []byte("a"))
	require.NoError(t, err)
	require.False(t, ok)
}

func TestSnapshotIsolation(t *testing.T) {
	s := openTestStore(t)

	setup, err := s.Begin(true)
	require.NoError(t, err)
	require.NoError(t, setup.Put("widgets", []byte("a"), []byte("1")))
	require.NoError(t, setup.Commit())

	reader, err := s.Begin(false)
	require.NoError(t, err)
	defer reader.Rollback()

	writer, err := s.Begin(true)
	require.NoError(t, err)
	require.NoError(t, writer.Put("widgets", []byte("a"), []byte("2")))
	require.NoError(t, writer.Commit())

	// Reader began before the writer committed: must still observe "1".
	v, ok, err := reader.Get("widgets", []byte("a"))
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []byte("1"), v)

	fresh, err := s.Begin(false)
	require.NoError(t, err)
	defer fresh.Rollback()
	v, ok, err = fresh.Get("widgets", []byte("a"))
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []byte("2"), v)
}

func TestScanPrefixOrdersKeys(t *testing.T) {
	s := openTestStore(t)

	txn, err := s.Begin(true)
	require.NoError(t, err)
	for _, k := range []string{"c", "a", "b"} {
		require.NoError(t, txn.Put("widgets", []byte(k), []byte(k)))
	}
	require.NoError(t, txn.Commit())

	reader, err := s.Begin(false)
	require.NoError(t, err)
	defer reader.Rollback()

	it := reader.ScanPrefix("widgets", nil)
	defer it.Close()

	var keys []string
	for ; it.Valid(); it.Next() {
		keys = append(keys, string(it.Key()))
	}
	require.Equal(t, []string{"a", "b", "c"}, keys)
}

func TestSubMapsDoNotCollide(t *testing.T) {
	s := openTestStore(t)

	txn, err := s.Begin(true)
	require.NoError(t, err)
	require.NoError(t, txn.Put("records::1", []byte("k"), []byte("vertex")))
	require.NoError(t, txn.Put("records::12", []byte("k"), []byte("other")))
	require.NoError(t, txn.Commit())

	reader, err := s.Begin(false)
	require.NoError(t, err)
	defer reader.Rollback()

	v, ok, err := reader.Get("records::1", []byte("k"))
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []byte("vertex"), v)
}
