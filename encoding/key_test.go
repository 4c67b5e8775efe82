package encoding

import (
	"bytes"
	"sort"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRowKeyRoundTrip(t *testing.T) {
	k := RowKey{Source: 7, PK: []byte("user:42")}
	decoded, err := DecodeRowKey(k.Encode())
	require.NoError(t, err)
	require.Equal(t, k.Source, decoded.Source)
	require.True(t, bytes.Equal(k.PK, decoded.PK))
}

func TestRowKeyOrderPreservation(t *testing.T) {
	keys := []RowKey{
		{Source: 1, PK: []byte("a")},
		{Source: 1, PK: []byte("b")},
		{Source: 2, PK: []byte("a")},
		{Source: 10, PK: []byte("z")},
	}
	encoded := make([][]byte, len(keys))
	for i, k := range keys {
		encoded[i] = k.Encode()
	}
	require.True(t, sort.SliceIsSorted(encoded, func(i, j int) bool {
		return bytes.Compare(encoded[i], encoded[j]) < 0
	}))
}

func TestSourceRangeIsHalfOpen(t *testing.T) {
	start, end := SourceRange(5)
	inRange := RowKey{Source: 5, PK: []byte("x")}.Encode()
	outOfRange := RowKey{Source: 6, PK: []byte{}}.Encode()

	require.True(t, bytes.Compare(start, inRange) <= 0)
	require.True(t, bytes.Compare(inRange, end) < 0)
	require.True(t, bytes.Compare(outOfRange, end) >= 0)
}

func TestKeycodeInvertsNumericOrdering(t *testing.T) {
	// Keycode complements every payload byte, so a larger id sorts before
	// a smaller one in byte order (descending ids become an ascending
	// scan), and the bytes differ from the Ascending-variant encoding of
	// the same ids.
	lo := NamespaceTableKey{NamespaceID: 1, TableID: 1}.Encode()
	hi := NamespaceTableKey{NamespaceID: 1, TableID: 2}.Encode()
	require.True(t, bytes.Compare(hi, lo) < 0)

	plainLo := NewEncoder(KindNamespaceTable, Ascending).Uint64(1).Uint64(1).Bytes()
	require.False(t, bytes.Equal(lo, plainLo))
}

func TestFlowNodeStateKeyRoundTrip(t *testing.T) {
	k := FlowNodeStateKey{NodeID: 99, State: []byte{1, 2, 3}}
	decoded, err := DecodeFlowNodeStateKey(k.Encode())
	require.NoError(t, err)
	require.Equal(t, k, decoded)
}

func TestSequenceKeyRoundTrip(t *testing.T) {
	k := SequenceKey{Name: "orders.id"}
	decoded, err := DecodeSequenceKey(k.Encode())
	require.NoError(t, err)
	require.Equal(t, k, decoded)
}

func TestDecodeWrongKindFails(t *testing.T) {
	raw := SequenceKey{Name: "x"}.Encode()
	_, err := DecodeRowKey(raw)
	require.Error(t, err)
}
