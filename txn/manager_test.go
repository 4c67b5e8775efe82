package txn

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/reifydb/reifydb/config"
	"github.com/reifydb/reifydb/encoding"
	"github.com/reifydb/reifydb/errs"
	"github.com/reifydb/reifydb/kv"
)

func newTestManager() *Manager {
	return NewManager(kv.NewMemoryBackend(), config.DefaultTransactionManager())
}

func rowKey(source uint64, pk string) []byte {
	return encoding.RowKey{Source: source, PK: []byte(pk)}.Encode()
}

func TestBasicMVCCReadYourOwnWrite(t *testing.T) {
	ctx := context.Background()
	m := newTestManager()

	cmd := m.BeginCommand(nil)
	k := rowKey(1, "a")
	require.NoError(t, cmd.Set(k, []byte("v1")))

	v, ok, err := cmd.Get(ctx, k)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []byte("v1"), v)

	require.NoError(t, cmd.Commit(ctx))
	require.Equal(t, Committed, cmd.State())

	query := m.BeginQuery()
	v, ok, err = query.Get(ctx, k)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []byte("v1"), v)
	require.NoError(t, query.Rollback())
}

func TestSnapshotIsolationHidesLaterCommits(t *testing.T) {
	ctx := context.Background()
	m := newTestManager()
	k := rowKey(1, "a")

	setup := m.BeginCommand(nil)
	require.NoError(t, setup.Set(k, []byte("v1")))
	require.NoError(t, setup.Commit(ctx))

	query := m.BeginQuery()

	writer := m.BeginCommand(nil)
	require.NoError(t, writer.Set(k, []byte("v2")))
	require.NoError(t, writer.Commit(ctx))

	v, ok, err := query.Get(ctx, k)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []byte("v1"), v)
	require.NoError(t, query.Rollback())
}

func TestConcurrentWriteWriteConflictFails(t *testing.T) {
	ctx := context.Background()
	m := newTestManager()
	k := rowKey(1, "a")

	setup := m.BeginCommand(nil)
	require.NoError(t, setup.Set(k, []byte("base")))
	require.NoError(t, setup.Commit(ctx))

	a := m.BeginCommand(nil)
	b := m.BeginCommand(nil)

	_, _, err := a.Get(ctx, k)
	require.NoError(t, err)
	_, _, err = b.Get(ctx, k)
	require.NoError(t, err)

	require.NoError(t, a.Set(k, []byte("from-a")))
	require.NoError(t, a.Commit(ctx))

	require.NoError(t, b.Set(k, []byte("from-b")))
	err = b.Commit(ctx)
	require.Error(t, err)
	var e *errs.Error
	require.ErrorAs(t, err, &e)
	require.Equal(t, errs.TxnConflict, e.Code)
	require.Equal(t, RolledBack, b.State())
}

func TestNonOverlappingWritesDoNotConflict(t *testing.T) {
	ctx := context.Background()
	m := newTestManager()

	a := m.BeginCommand(nil)
	b := m.BeginCommand(nil)

	require.NoError(t, a.Set(rowKey(1, "a"), []byte("x")))
	require.NoError(t, b.Set(rowKey(1, "b"), []byte("y")))

	require.NoError(t, a.Commit(ctx))
	require.NoError(t, b.Commit(ctx))
}

func TestScopeViolationRejectsOutOfScopeKey(t *testing.T) {
	ctx := context.Background()
	m := newTestManager()

	scope := []ScopeRange{{Start: rowKey(1, ""), End: rowKey(2, "")}}
	cmd := m.BeginCommand(scope)

	err := cmd.Set(rowKey(9, "z"), []byte("v"))
	require.Error(t, err)
	var e *errs.Error
	require.ErrorAs(t, err, &e)
	require.Equal(t, errs.TxnKeyOutOfScope, e.Code)

	require.NoError(t, cmd.Set(rowKey(1, "a"), []byte("ok")))
	require.NoError(t, cmd.Commit(ctx))
}

func TestPendingWriteLimitRaisesTxnTooLarge(t *testing.T) {
	backend := kv.NewMemoryBackend()
	cfg := config.DefaultTransactionManager()
	cfg.MaxPendingWritesPerTxn = 2
	m := NewManager(backend, cfg)

	cmd := m.BeginCommand(nil)
	require.NoError(t, cmd.Set(rowKey(1, "a"), []byte("1")))
	require.NoError(t, cmd.Set(rowKey(1, "b"), []byte("2")))

	err := cmd.Set(rowKey(1, "c"), []byte("3"))
	require.Error(t, err)
	var e *errs.Error
	require.ErrorAs(t, err, &e)
	require.Equal(t, errs.TxnTooLarge, e.Code)

	require.NoError(t, cmd.Rollback())
}

func TestWriteOnQueryTransactionFails(t *testing.T) {
	m := newTestManager()
	query := m.BeginQuery()
	err := query.Set(rowKey(1, "a"), []byte("v"))
	require.Error(t, err)
	var e *errs.Error
	require.ErrorAs(t, err, &e)
	require.Equal(t, errs.TxnNotCommittable, e.Code)
	require.NoError(t, query.Rollback())
}

func TestDoubleCommitFails(t *testing.T) {
	ctx := context.Background()
	m := newTestManager()
	cmd := m.BeginCommand(nil)
	require.NoError(t, cmd.Set(rowKey(1, "a"), []byte("v")))
	require.NoError(t, cmd.Commit(ctx))

	err := cmd.Commit(ctx)
	require.Error(t, err)
	var e *errs.Error
	require.ErrorAs(t, err, &e)
	require.Equal(t, errs.TxnAlreadyCommit, e.Code)
}

func TestEmptyCommandCommitStillMintsVersion(t *testing.T) {
	ctx := context.Background()
	m := newTestManager()

	cmd := m.BeginCommand(nil)
	require.NoError(t, cmd.Commit(ctx))

	next := m.BeginCommand(nil)
	require.Equal(t, CommitVersion(1), next.Snapshot())
	require.NoError(t, next.Set(rowKey(1, "a"), []byte("v")))
	require.NoError(t, next.Commit(ctx))
}

func TestWatermarkAdvancesAsReadersDrop(t *testing.T) {
	ctx := context.Background()
	m := newTestManager()

	q1 := m.BeginQuery()
	w := m.BeginCommand(nil)
	require.NoError(t, w.Set(rowKey(1, "a"), []byte("v")))
	require.NoError(t, w.Commit(ctx))
	q2 := m.BeginQuery()
	require.Equal(t, CommitVersion(0), m.ReadDoneWatermark())

	require.NoError(t, q1.Rollback())
	require.Equal(t, CommitVersion(0), m.ReadDoneWatermark())

	require.NoError(t, q2.Rollback())
	require.Equal(t, CommitVersion(1), m.ReadDoneWatermark())
}

func TestRemoveThenGetIsInvisible(t *testing.T) {
	ctx := context.Background()
	m := newTestManager()
	k := rowKey(1, "a")

	setup := m.BeginCommand(nil)
	require.NoError(t, setup.Set(k, []byte("v1")))
	require.NoError(t, setup.Commit(ctx))

	cmd := m.BeginCommand(nil)
	require.NoError(t, cmd.Remove(k))
	_, ok, err := cmd.Get(ctx, k)
	require.NoError(t, err)
	require.False(t, ok)
	require.NoError(t, cmd.Commit(ctx))

	query := m.BeginQuery()
	_, ok, err = query.Get(ctx, k)
	require.NoError(t, err)
	require.False(t, ok)
	require.NoError(t, query.Rollback())
}
