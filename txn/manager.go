package txn

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/reifydb/reifydb/cdc"
	"github.com/reifydb/reifydb/config"
	"github.com/reifydb/reifydb/encoding"
	"github.com/reifydb/reifydb/errs"
	"github.com/reifydb/reifydb/kv"
	"github.com/reifydb/reifydb/logging"
)

// Manager is the transaction manager (component D): it owns the commit
// mutex, the monotonic commit-version counter, the reader watermark, and
// the conflict tracker, and is the only path by which mutations reach the
// backend.
type Manager struct {
	backend kv.Backend

	commitMu sync.Mutex
	next     CommitVersion

	watermark        *Watermark
	conflicts        *ConflictTracker
	activity         *cdc.ActivityBitmap
	singleVersionFor map[encoding.Kind]bool
	maxPendingWrites int

	log zerolog.Logger
}

// NewManager constructs a transaction manager over backend using cfg's
// conflict-tracking and single-version-semantics settings.
func NewManager(backend kv.Backend, cfg config.TransactionManager) *Manager {
	enabled := make(map[encoding.Kind]bool, len(cfg.EnableSingleVersionSemanticsFor))
	for _, k := range cfg.EnableSingleVersionSemanticsFor {
		enabled[encoding.Kind(k)] = true
	}
	if len(enabled) == 0 {
		enabled[encoding.KindFlowNodeState] = true
	}
	return &Manager{
		backend:          backend,
		watermark:        NewWatermark(),
		conflicts:        NewConflictTracker(cfg.MaxCommittedTxns),
		activity:         cdc.NewActivityBitmap(),
		singleVersionFor: enabled,
		maxPendingWrites: cfg.MaxPendingWritesPerTxn,
		log:              logging.WithComponent("txn-manager"),
	}
}

// Activity returns the manager's per-source commit-activity tracker, the
// accelerator the CDC retention purge consults before scanning retired CDC
// history.
func (m *Manager) Activity() *cdc.ActivityBitmap { return m.activity }

// CurrentVersion returns the most recently minted commit version.
func (m *Manager) CurrentVersion() CommitVersion {
	m.commitMu.Lock()
	defer m.commitMu.Unlock()
	return m.next
}

// BeginQuery opens a read-only transaction pinned at the current commit
// version. The snapshot is immutable for the transaction's life.
func (m *Manager) BeginQuery() *Transaction {
	m.commitMu.Lock()
	vs := m.next
	m.commitMu.Unlock()
	m.watermark.Register(vs)
	return &Transaction{manager: m, snapshot: vs, command: false, state: Active}
}

// BeginCommand opens a read-write transaction pinned at the current commit
// version, restricted to the given scope. An empty scope is unrestricted.
func (m *Manager) BeginCommand(scope []ScopeRange) *Transaction {
	m.commitMu.Lock()
	vs := m.next
	m.commitMu.Unlock()
	m.watermark.Register(vs)
	return &Transaction{manager: m, snapshot: vs, command: true, scope: scope, state: Active}
}

// ReadDoneWatermark returns the current read_done_watermark.
func (m *Manager) ReadDoneWatermark() CommitVersion {
	return m.watermark.Done()
}

// commit runs the full commit critical section described for a command
// transaction: mint a version, check for conflicts, materialize the
// pending buffer plus its CDC record into one backend.Commit call, record
// the commit in the conflict tracker, and release.
func (m *Manager) commit(ctx context.Context, t *Transaction) error {
	if !t.command {
		// A query transaction has nothing to commit; treat as a drop.
		t.state = Committed
		t.Drop()
		return nil
	}

	m.commitMu.Lock()

	m.next++
	vc := m.next

	if m.conflicts.ConflictsWith(t.snapshot, vc, t.reads, t.readRanges) {
		m.commitMu.Unlock()
		t.state = RolledBack
		t.pending = nil
		t.pendingOrder = nil
		t.Drop()
		return errs.New(errs.ClassUser, errs.TxnConflict, "transaction conflicts with a concurrently committed write")
	}

	deltas, cdcDeltas, writes := m.materialize(ctx, t, vc)
	batch := append(deltas, cdcDeltas...)

	if err := m.backend.Commit(ctx, batch, vc); err != nil {
		m.commitMu.Unlock()
		t.state = RolledBack
		t.pending = nil
		t.pendingOrder = nil
		t.Drop()
		return err
	}

	m.conflicts.Record(vc, writes)
	for _, d := range batch {
		m.activity.Record(kv.SourceID(d.Key), vc)
	}
	m.commitMu.Unlock()

	t.state = Committed
	t.pending = nil
	t.pendingOrder = nil
	t.Drop()

	if cutoff := m.watermark.Done(); cutoff > 0 {
		m.conflicts.Trim(cutoff)
	}

	m.log.Debug().Uint64("version", vc).Int("deltas", len(deltas)).Msg("transaction committed")
	return nil
}

// materialize turns a transaction's pending buffer into the delta batch
// handed to the backend, the CDC delta describing the same writes, and the
// write-set the conflict tracker should remember for this commit.
func (m *Manager) materialize(ctx context.Context, t *Transaction, vc CommitVersion) (deltas []kv.Delta, cdcDelta []kv.Delta, writes map[string]struct{}) {
	writes = make(map[string]struct{}, len(t.pendingOrder))
	cdcRecord := cdc.Record{CommitVersion: vc, Sequence: 0}

	for _, k := range t.pendingOrder {
		pw := t.pending[k]
		key := []byte(k)
		writes[k] = struct{}{}

		singleVersion := m.singleVersionForKey(key)

		preValue, preExisted, _ := m.backend.Get(ctx, key, vc-1)
		rec := cdc.DeltaRecord{Key: key, PreExisted: preExisted, PreValue: preValue}

		switch pw.kind {
		case opSet:
			d := kv.Delta{Key: key, Value: pw.value, SingleVersion: singleVersion}
			deltas = append(deltas, d)
			rec.Kind = cdc.DeltaSet
			rec.Value = pw.value
		case opRemove:
			d := kv.Delta{Key: key, Tombstone: true, SingleVersion: singleVersion}
			deltas = append(deltas, d)
			rec.Kind = cdc.DeltaRemove
		}
		cdcRecord.Deltas = append(cdcRecord.Deltas, rec)
	}

	return deltas, []kv.Delta{cdc.BuildDelta(cdcRecord)}, writes
}

func (m *Manager) singleVersionForKey(key []byte) bool {
	_, k, err := encoding.NewDecoder(key, encoding.Ascending)
	if err != nil {
		return false
	}
	return m.singleVersionFor[k]
}
