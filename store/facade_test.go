package store

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/reifydb/reifydb/config"
	"github.com/reifydb/reifydb/encoding"
	"github.com/reifydb/reifydb/kv"
	"github.com/reifydb/reifydb/txn"
)

var errNotAllowed = errors.New("not allowed")

func newTestFacade(t *testing.T) *Facade {
	t.Helper()
	backend := kv.NewMemoryBackend()
	single := kv.NewMemorySingleVersionBackend()
	mgr := txn.NewManager(backend, config.DefaultTransactionManager())
	return NewFacade(backend, single, mgr)
}

func rowKey(source uint64, pk string) []byte {
	return encoding.RowKey{Source: source, PK: []byte(pk)}.Encode()
}

// TestBasicMVCC covers part of scenario S1: after two commits to the same
// key, a reader opened afterwards sees the newer value.
func TestBasicMVCC(t *testing.T) {
	ctx := context.Background()
	f := newTestFacade(t)
	k := rowKey(1, "k")

	tx1 := f.BeginCommand(nil)
	require.NoError(t, tx1.Set(k, []byte("a")))
	require.NoError(t, tx1.Commit(ctx))

	tx2 := f.BeginCommand(nil)
	require.NoError(t, tx2.Set(k, []byte("b")))
	require.NoError(t, tx2.Commit(ctx))

	r1 := f.BeginQuery()
	v, ok, err := r1.Get(ctx, k)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "b", string(v))
	r1.Drop()
}

// TestConflict is scenario S2: a command transaction that reads a key
// concurrently overwritten by another committed transaction must fail to
// commit with TXN_001, and the concurrent writer's value must survive.
func TestConflict(t *testing.T) {
	ctx := context.Background()
	f := newTestFacade(t)
	k := rowKey(1, "k")

	setup := f.BeginCommand(nil)
	require.NoError(t, setup.Set(k, []byte("x")))
	require.NoError(t, setup.Commit(ctx))

	txA := f.BeginCommand(nil)
	_, _, err := txA.Get(ctx, k)
	require.NoError(t, err)

	txB := f.BeginCommand(nil)
	require.NoError(t, txB.Set(k, []byte("y")))
	require.NoError(t, txB.Commit(ctx))

	require.NoError(t, txA.Set(k, []byte("z")))
	err = txA.Commit(ctx)
	require.Error(t, err)

	r := f.BeginQuery()
	v, ok, err := r.Get(ctx, k)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "y", string(v))
	r.Drop()
}

// TestTombstoneVisibility covers the last step of scenario S3: after set,
// remove and set again, a reader opened afterwards sees the final value.
func TestTombstoneVisibility(t *testing.T) {
	ctx := context.Background()
	f := newTestFacade(t)
	k := rowKey(1, "k")

	tx1 := f.BeginCommand(nil)
	require.NoError(t, tx1.Set(k, []byte("a")))
	require.NoError(t, tx1.Commit(ctx))

	tx2 := f.BeginCommand(nil)
	require.NoError(t, tx2.Remove(k))
	require.NoError(t, tx2.Commit(ctx))

	tx3 := f.BeginCommand(nil)
	require.NoError(t, tx3.Set(k, []byte("c")))
	require.NoError(t, tx3.Commit(ctx))

	r := f.BeginQuery()
	v, ok, err := r.Get(ctx, k)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "c", string(v))
	r.Drop()
}

// TestCdcReplay is scenario S5.
func TestCdcReplay(t *testing.T) {
	ctx := context.Background()
	f := newTestFacade(t)
	k := rowKey(1, "k")

	tx1 := f.BeginCommand(nil)
	require.NoError(t, tx1.Set(k, []byte("a")))
	require.NoError(t, tx1.Commit(ctx))

	tx2 := f.BeginCommand(nil)
	require.NoError(t, tx2.Set(k, []byte("b")))
	require.NoError(t, tx2.Commit(ctx))

	scan := f.CdcScan(0)
	records, err := scan.Next(ctx, 10)
	require.NoError(t, err)
	require.Len(t, records, 2)
	require.Equal(t, uint64(1), records[0].CommitVersion)
	require.Len(t, records[0].Deltas, 1)
	require.Equal(t, "a", string(records[0].Deltas[0].Value))
	require.Equal(t, uint64(2), records[1].CommitVersion)
	require.True(t, records[1].Deltas[0].PreExisted)
	require.Equal(t, "a", string(records[1].Deltas[0].PreValue))
}

func TestInterceptorsFireAroundMutation(t *testing.T) {
	ctx := context.Background()
	f := newTestFacade(t)
	k := rowKey(1, "k")

	var order []string
	f.Interceptors.Register("row", OpCreate, Pre, func(ev *Event) error {
		order = append(order, "pre")
		return nil
	})
	f.Interceptors.Register("row", OpCreate, Post, func(ev *Event) error {
		order = append(order, "post")
		return nil
	})

	tx := f.BeginCommand(nil)
	err := f.Interceptors.Create(tx, "row", k, []byte("a"), func() error {
		order = append(order, "mutate")
		return tx.Set(k, []byte("a"))
	})
	require.NoError(t, err)
	require.NoError(t, tx.Commit(ctx))
	require.Equal(t, []string{"pre", "mutate", "post"}, order)
}

func TestInterceptorPreErrorAbortsMutation(t *testing.T) {
	f := newTestFacade(t)
	k := rowKey(1, "k")

	f.Interceptors.Register("row", OpDelete, Pre, func(ev *Event) error {
		return errNotAllowed
	})

	tx := f.BeginCommand(nil)
	mutated := false
	err := f.Interceptors.Delete(tx, "row", k, func() error {
		mutated = true
		return tx.Remove(k)
	})
	require.ErrorIs(t, err, errNotAllowed)
	require.False(t, mutated)
}
