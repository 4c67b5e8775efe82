package cdc

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/reifydb/reifydb/kv"
)

func TestScanResumableForwardReplay(t *testing.T) {
	ctx := context.Background()
	backend := kv.NewMemoryBackend()

	rec1 := Record{CommitVersion: 1, Deltas: []DeltaRecord{{Kind: DeltaSet, Key: []byte("k"), Value: []byte("a")}}}
	rec2 := Record{CommitVersion: 2, Deltas: []DeltaRecord{{Kind: DeltaSet, Key: []byte("k"), Value: []byte("b"), PreExisted: true, PreValue: []byte("a")}}}

	require.NoError(t, backend.Commit(ctx, []kv.Delta{BuildDelta(rec1)}, 1))
	require.NoError(t, backend.Commit(ctx, []kv.Delta{BuildDelta(rec2)}, 2))

	records, cursor, err := Scan(ctx, backend, Cursor{}, 10)
	require.NoError(t, err)
	require.Len(t, records, 2)
	require.Equal(t, uint64(1), records[0].CommitVersion)
	require.Equal(t, uint64(2), records[1].CommitVersion)
	require.Equal(t, uint64(3), cursor.FromVersion)

	more, _, err := Scan(ctx, backend, cursor, 10)
	require.NoError(t, err)
	require.Empty(t, more)
}

func TestRetentionCutoff(t *testing.T) {
	_, ok := RetentionCutoff(100, 0)
	require.False(t, ok)

	cutoff, ok := RetentionCutoff(100, 40)
	require.True(t, ok)
	require.Equal(t, uint64(60), cutoff)

	_, ok = RetentionCutoff(10, 40)
	require.False(t, ok)
}
