package txn

import (
	"bytes"
	"context"

	"github.com/reifydb/reifydb/errs"
	"github.com/reifydb/reifydb/kv"
)

// ScopeRange is one half-open [Start, End) key range a command transaction
// declared on open; a nil End means unbounded. An empty scope means
// unrestricted — every key is in scope.
type ScopeRange struct {
	Start []byte
	End   []byte
}

func inScope(scope []ScopeRange, key []byte) bool {
	if len(scope) == 0 {
		return true
	}
	for _, r := range scope {
		if bytes.Compare(key, r.Start) < 0 {
			continue
		}
		if r.End != nil && bytes.Compare(key, r.End) >= 0 {
			continue
		}
		return true
	}
	return false
}

// opKind discriminates a buffered pending write.
type opKind byte

const (
	opSet opKind = iota
	opRemove
)

type pendingWrite struct {
	kind  opKind
	value []byte
}

// rangeRead records the bounds of a range query, so the conflict check can
// treat "some key inside this range was written concurrently" as a
// conflict even though the range's individual keys were never read one by
// one.
type rangeRead struct {
	start []byte
	end   []byte
}

// Transaction is a handle over one query or command transaction: a pinned
// snapshot version, an optional declared scope, and — for command
// transactions — a pending-write buffer and read-tracking set used by the
// commit-time conflict check.
type Transaction struct {
	manager  *Manager
	snapshot CommitVersion
	command  bool
	scope    []ScopeRange

	pendingOrder []string
	pending      map[string]pendingWrite

	reads      map[string]struct{}
	readRanges []rangeRead

	state   State
	dropped bool
}

// Snapshot returns the transaction's pinned snapshot version.
func (t *Transaction) Snapshot() CommitVersion { return t.snapshot }

// State returns the transaction's current lifecycle state.
func (t *Transaction) State() State { return t.state }

func (t *Transaction) checkActive() error {
	switch t.state {
	case Active:
		return nil
	case Committed:
		return errs.New(errs.ClassUser, errs.TxnAlreadyCommit, "transaction already committed")
	case RolledBack:
		return errs.New(errs.ClassUser, errs.TxnAlreadyRollback, "transaction already rolled back")
	default:
		return errs.New(errs.ClassUser, errs.TxnNotCommittable, "transaction is not active")
	}
}

func (t *Transaction) checkScope(key []byte) error {
	if !inScope(t.scope, key) {
		return errs.New(errs.ClassUser, errs.TxnKeyOutOfScope, "key outside declared transaction scope")
	}
	return nil
}

// Get returns the visible value of key: first consulting the pending
// buffer (a Set hides the backend, a Remove hides the backend as a
// tombstone), then falling back to the backend at the transaction's
// snapshot. The read is added to the read-set for conflict detection.
func (t *Transaction) Get(ctx context.Context, key []byte) ([]byte, bool, error) {
	if err := t.checkActive(); err != nil {
		return nil, false, err
	}
	if err := t.checkScope(key); err != nil {
		return nil, false, err
	}

	if t.command {
		if pw, ok := t.pending[string(key)]; ok {
			if pw.kind == opRemove {
				return nil, false, nil
			}
			return append([]byte(nil), pw.value...), true, nil
		}
	}

	if t.reads == nil {
		t.reads = make(map[string]struct{})
	}
	t.reads[string(key)] = struct{}{}

	return t.manager.backend.Get(ctx, key, t.snapshot)
}

// Range returns up to limit visible tuples in [start, end) as of the
// transaction's snapshot, overlaid with the pending buffer. The queried
// bounds are recorded for conflict detection even though individual keys
// within it may not all have been materialized.
func (t *Transaction) Range(ctx context.Context, start, end []byte, limit int) ([]kv.Tuple, error) {
	return t.rangeImpl(ctx, start, end, limit, false)
}

// RangeRev is Range with descending key order.
func (t *Transaction) RangeRev(ctx context.Context, start, end []byte, limit int) ([]kv.Tuple, error) {
	return t.rangeImpl(ctx, start, end, limit, true)
}

func (t *Transaction) rangeImpl(ctx context.Context, start, end []byte, limit int, reverse bool) ([]kv.Tuple, error) {
	if err := t.checkActive(); err != nil {
		return nil, err
	}

	if t.command {
		t.readRanges = append(t.readRanges, rangeRead{start: start, end: end})
	}

	var tuples []kv.Tuple
	var err error
	if reverse {
		tuples, err = t.manager.backend.RangeRevBatch(ctx, start, end, t.snapshot, limit)
	} else {
		tuples, err = t.manager.backend.RangeBatch(ctx, start, end, t.snapshot, limit)
	}
	if err != nil {
		return nil, err
	}
	if !t.command || len(t.pending) == 0 {
		return tuples, nil
	}
	return t.overlayPending(tuples, start, end, limit, reverse), nil
}

// overlayPending merges the pending buffer into a backend range result: a
// pending Remove hides a backend tuple for the same key, a pending Set
// overrides it. Pending-only keys within [start, end) are not synthesized
// here because the facade only needs read-after-write consistency within
// the same transaction for keys it explicitly set, which Get already
// serves; range reads during a command transaction are rare in practice and
// primarily used for scope validation and conflict tracking.
func (t *Transaction) overlayPending(tuples []kv.Tuple, start, end []byte, limit int, reverse bool) []kv.Tuple {
	out := make([]kv.Tuple, 0, len(tuples))
	for _, tup := range tuples {
		if pw, ok := t.pending[string(tup.Key)]; ok {
			if pw.kind == opRemove {
				continue
			}
			tup.Value = append([]byte(nil), pw.value...)
		}
		out = append(out, tup)
	}
	return out
}

// Set buffers a Set, replacing any previous pending entry for key.
func (t *Transaction) Set(key, value []byte) error {
	return t.bufferWrite(key, pendingWrite{kind: opSet, value: value})
}

// Remove buffers a Remove (tombstone), replacing any previous pending entry
// for key.
func (t *Transaction) Remove(key []byte) error {
	return t.bufferWrite(key, pendingWrite{kind: opRemove})
}

func (t *Transaction) bufferWrite(key []byte, pw pendingWrite) error {
	if err := t.checkActive(); err != nil {
		return err
	}
	if !t.command {
		return errs.New(errs.ClassUser, errs.TxnNotCommittable, "write on a query transaction")
	}
	if err := t.checkScope(key); err != nil {
		return err
	}

	k := string(key)
	if t.pending == nil {
		t.pending = make(map[string]pendingWrite)
	}
	if _, exists := t.pending[k]; !exists {
		if t.manager.maxPendingWrites > 0 && len(t.pending) >= t.manager.maxPendingWrites {
			return errs.New(errs.ClassUser, errs.TxnTooLarge, "transaction exceeds the configured pending-write limit")
		}
		t.pendingOrder = append(t.pendingOrder, k)
	}
	t.pending[k] = pw
	return nil
}

// Commit finalizes the transaction through the manager's commit protocol.
func (t *Transaction) Commit(ctx context.Context) error {
	if err := t.checkActive(); err != nil {
		return err
	}
	return t.manager.commit(ctx, t)
}

// Rollback discards the pending buffer with no backend I/O.
func (t *Transaction) Rollback() error {
	if err := t.checkActive(); err != nil {
		return err
	}
	t.pending = nil
	t.pendingOrder = nil
	t.state = RolledBack
	t.Drop()
	return nil
}

// Drop releases the transaction's reader registration. It is idempotent and
// safe to call unconditionally (e.g. via defer) regardless of whether the
// transaction already committed, rolled back, or was never finalized at
// all — an unfinalized Active transaction is treated as rolled back.
func (t *Transaction) Drop() {
	if t.dropped {
		return
	}
	t.dropped = true
	t.manager.watermark.Deregister(t.snapshot)
	if t.state == Active {
		t.pending = nil
		t.pendingOrder = nil
		t.state = RolledBack
	}
}
