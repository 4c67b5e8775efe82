package sequence

import (
	"context"
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"github.com/reifydb/reifydb/encoding"
	"github.com/reifydb/reifydb/errs"
	"github.com/reifydb/reifydb/kv"
)

func TestNextStartsAtOneAndPersists(t *testing.T) {
	ctx := context.Background()
	s := NewStore(kv.NewMemorySingleVersionBackend())

	v, err := s.Next(ctx, "order_id", encoding.TypeUint64)
	require.NoError(t, err)
	require.Equal(t, uint64(1), v.Uint64())

	v, err = s.Next(ctx, "order_id", encoding.TypeUint64)
	require.NoError(t, err)
	require.Equal(t, uint64(2), v.Uint64())

	got, ok, err := s.Get(ctx, "order_id")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, uint64(2), got.Uint64())
}

func TestNextExhaustsAtTypeMaximum(t *testing.T) {
	ctx := context.Background()
	s := NewStore(kv.NewMemorySingleVersionBackend())

	require.NoError(t, s.Set(ctx, "tiny", uint256.NewInt(255)))

	_, err := s.Next(ctx, "tiny", encoding.TypeUint8)
	require.Error(t, err)
	var e *errs.Error
	require.ErrorAs(t, err, &e)
	require.Equal(t, errs.SequenceExhausted, e.Code)
}

func TestSignedCeilingIsOneBitNarrower(t *testing.T) {
	ctx := context.Background()
	s := NewStore(kv.NewMemorySingleVersionBackend())

	require.NoError(t, s.Set(ctx, "s8", uint256.NewInt(127)))
	_, err := s.Next(ctx, "s8", encoding.TypeInt8)
	require.Error(t, err)
	var e *errs.Error
	require.ErrorAs(t, err, &e)
	require.Equal(t, errs.SequenceExhausted, e.Code)
}

func TestSetOverwritesUnconditionally(t *testing.T) {
	ctx := context.Background()
	s := NewStore(kv.NewMemorySingleVersionBackend())

	_, err := s.Next(ctx, "n", encoding.TypeUint64)
	require.NoError(t, err)
	require.NoError(t, s.Set(ctx, "n", uint256.NewInt(1000)))

	got, ok, err := s.Get(ctx, "n")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, uint64(1000), got.Uint64())
}
