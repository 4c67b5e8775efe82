package kv

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/reifydb/reifydb/encoding"
)

func openTestFileBackend(t *testing.T) *FileBackend {
	t.Helper()
	path := filepath.Join(t.TempDir(), "storage.db")
	b, err := OpenFileBackend(path, true)
	require.NoError(t, err)
	t.Cleanup(func() { _ = b.Close() })
	return b
}

func TestFileBackendBasicMVCC(t *testing.T) {
	ctx := context.Background()
	b := openTestFileBackend(t)
	k := rowKey(1, "k")

	require.NoError(t, b.Commit(ctx, []Delta{Set(k, []byte("a"))}, 1))
	require.NoError(t, b.Commit(ctx, []Delta{Set(k, []byte("b"))}, 2))

	v, ok, err := b.Get(ctx, k, 1)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "a", string(v))

	v, ok, err = b.Get(ctx, k, 2)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "b", string(v))

	_, ok, err = b.Get(ctx, k, 0)
	require.NoError(t, err)
	require.False(t, ok)
}

// TestFileBackendRangeRevBatchNewestVersionWins mirrors
// TestMemoryBackendRangeRevBatchNewestVersionWins: a reverse scan must
// return each key's newest version <= snapshot, not its oldest.
func TestFileBackendRangeRevBatchNewestVersionWins(t *testing.T) {
	ctx := context.Background()
	b := openTestFileBackend(t)

	keys := []string{"k1", "k2", "k3"}
	for _, k := range keys {
		key := rowKey(1, k)
		require.NoError(t, b.Commit(ctx, []Delta{Set(key, []byte("v1"))}, 1))
		require.NoError(t, b.Commit(ctx, []Delta{Set(key, []byte("v2"))}, 2))
		require.NoError(t, b.Commit(ctx, []Delta{Set(key, []byte("v3"))}, 3))
	}

	start, end := encoding.SourceRange(1)

	fwd, err := b.RangeBatch(ctx, start, end, 5, 10)
	require.NoError(t, err)
	require.Len(t, fwd, 3)
	for _, tup := range fwd {
		require.Equal(t, "v3", string(tup.Value))
		require.Equal(t, uint64(3), tup.Version)
	}

	rev, err := b.RangeRevBatch(ctx, start, end, 5, 10)
	require.NoError(t, err)
	require.Len(t, rev, 3)
	for _, tup := range rev {
		require.Equal(t, "v3", string(tup.Value))
		require.Equal(t, uint64(3), tup.Version)
	}

	for i, tup := range rev {
		require.Equal(t, fwd[len(fwd)-1-i].Key, tup.Key)
	}
}

// TestFileBackendKeyPrefixBleed ensures a key that is a byte-prefix of
// another, longer key (possible since RowKey.PK is an unbounded raw tail)
// does not bleed into that shorter key's Get or CompactKey grouping.
func TestFileBackendKeyPrefixBleed(t *testing.T) {
	ctx := context.Background()
	b := openTestFileBackend(t)

	short := rowKey(1, "ab")
	long := rowKey(1, "abc")

	require.NoError(t, b.Commit(ctx, []Delta{Set(short, []byte("short-v1"))}, 1))
	require.NoError(t, b.Commit(ctx, []Delta{Set(long, []byte("long-v1"))}, 2))
	require.NoError(t, b.Commit(ctx, []Delta{Set(short, []byte("short-v2"))}, 3))

	v, ok, err := b.Get(ctx, short, 10)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "short-v2", string(v))

	v, ok, err = b.Get(ctx, long, 10)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "long-v1", string(v))

	table, err := RouteTable(short)
	require.NoError(t, err)
	removed, err := b.CompactKey(ctx, table, short, 10)
	require.NoError(t, err)
	require.Equal(t, 1, removed)

	// The longer key's own version must survive untouched.
	v, ok, err = b.Get(ctx, long, 10)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "long-v1", string(v))
}
