package cdc

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRecordRoundTrip(t *testing.T) {
	rec := Record{
		CommitVersion: 7,
		Sequence:      0,
		Deltas: []DeltaRecord{
			{Kind: DeltaSet, Key: []byte("k1"), Value: []byte("v1")},
			{Kind: DeltaRemove, Key: []byte("k2"), PreExisted: true, PreValue: []byte("old")},
		},
	}

	raw := Marshal(rec)
	got, err := Unmarshal(raw)
	require.NoError(t, err)
	require.Equal(t, rec.CommitVersion, got.CommitVersion)
	require.Equal(t, rec.Sequence, got.Sequence)
	require.Len(t, got.Deltas, 2)
	require.Equal(t, DeltaSet, got.Deltas[0].Kind)
	require.Equal(t, "v1", string(got.Deltas[0].Value))
	require.Equal(t, DeltaRemove, got.Deltas[1].Kind)
	require.True(t, got.Deltas[1].PreExisted)
	require.Equal(t, "old", string(got.Deltas[1].PreValue))
}

func TestEmptyCommitRecord(t *testing.T) {
	rec := Record{CommitVersion: 3, Sequence: 0}
	raw := Marshal(rec)
	got, err := Unmarshal(raw)
	require.NoError(t, err)
	require.Equal(t, uint64(3), got.CommitVersion)
	require.Empty(t, got.Deltas)
}
