// Package store implements component E of the storage core: the facade
// tying encoding, the storage backend, the CDC log and the transaction
// manager together. It presents MultiVersionStore and SingleVersionStore to
// callers that need explicit-version access outside a transaction (mirrors
// ethdb.Database/ObjectDatabase as the single caller-facing surface over an
// interchangeable backend), a resumable CdcScan, garbage collection, and the
// interceptor chains fired around catalog mutations.
package store

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/reifydb/reifydb/cdc"
	"github.com/reifydb/reifydb/config"
	"github.com/reifydb/reifydb/kv"
	"github.com/reifydb/reifydb/logging"
	"github.com/reifydb/reifydb/txn"
)

// MultiVersionStore presents get/contains/range/range_rev/commit with an
// explicit CommitVersion, for callers that manage their own versioning
// rather than going through a Transaction (e.g. internal tooling and the
// operator CLI).
type MultiVersionStore struct {
	backend kv.Backend
}

// NewMultiVersionStore wraps backend.
func NewMultiVersionStore(backend kv.Backend) *MultiVersionStore {
	return &MultiVersionStore{backend: backend}
}

func (s *MultiVersionStore) Get(ctx context.Context, key []byte, version uint64) ([]byte, bool, error) {
	return s.backend.Get(ctx, key, version)
}

func (s *MultiVersionStore) Contains(ctx context.Context, key []byte, version uint64) (bool, error) {
	return s.backend.Contains(ctx, key, version)
}

func (s *MultiVersionStore) Range(ctx context.Context, start, end []byte, version uint64, limit int) ([]kv.Tuple, error) {
	return s.backend.RangeBatch(ctx, start, end, version, limit)
}

func (s *MultiVersionStore) RangeRev(ctx context.Context, start, end []byte, version uint64, limit int) ([]kv.Tuple, error) {
	return s.backend.RangeRevBatch(ctx, start, end, version, limit)
}

func (s *MultiVersionStore) Commit(ctx context.Context, deltas []kv.Delta, version uint64) error {
	return s.backend.Commit(ctx, deltas, version)
}

// SingleVersionStore presents a get/put/delete surface without versions,
// backing sequences and simple
// catalog counters through the single-version side-store.
type SingleVersionStore struct {
	backend kv.SingleVersionBackend
}

// NewSingleVersionStore wraps backend.
func NewSingleVersionStore(backend kv.SingleVersionBackend) *SingleVersionStore {
	return &SingleVersionStore{backend: backend}
}

func (s *SingleVersionStore) Get(ctx context.Context, key []byte) ([]byte, bool, error) {
	return s.backend.Get(ctx, key)
}

func (s *SingleVersionStore) Put(ctx context.Context, key, value []byte) error {
	return s.backend.Put(ctx, key, value)
}

func (s *SingleVersionStore) Delete(ctx context.Context, key []byte) error {
	return s.backend.Delete(ctx, key)
}

// CdcScan is a resumable forward scan over the CDC log: it owns its own
// cursor and advances it on every call, following
// migrations.Migrator.Apply's walk-and-checkpoint idiom of a caller-held
// cursor driving every step.
type CdcScan struct {
	backend kv.Backend
	cursor  cdc.Cursor
}

// Next returns up to limit records committed at or after the scan's current
// cursor, advancing the cursor past them.
func (c *CdcScan) Next(ctx context.Context, limit int) ([]cdc.Record, error) {
	records, cursor, err := cdc.Scan(ctx, c.backend, c.cursor, limit)
	if err != nil {
		return nil, err
	}
	c.cursor = cursor
	return records, nil
}

// Cursor returns the scan's current resumption point.
func (c *CdcScan) Cursor() cdc.Cursor { return c.cursor }

// Facade is the single entry point a caller opens: it owns the routed
// backend, the single-version side-store, the transaction manager and the
// interceptor chains, and runs GarbageCollect over its own backend.
type Facade struct {
	Multi        *MultiVersionStore
	Single       *SingleVersionStore
	Txn          *txn.Manager
	Interceptors *Interceptors

	backend       kv.Backend
	singleBackend kv.SingleVersionBackend
	cfg           config.Backend

	log zerolog.Logger
}

// Open constructs a Facade from the given backend and transaction-manager
// configuration: it selects the hot tier's concrete Backend per
// cfg.HotTier, wires optional warm/cold file tiers, and starts the
// transaction manager over the resulting tiered backend.
func Open(cfg config.Backend, txnCfg config.TransactionManager) (*Facade, error) {
	hot, err := kv.BackendForMedium(cfg.HotTier, cfg.HotTierPath, cfg.CreateIfMissing)
	if err != nil {
		return nil, err
	}

	var warm, cold kv.Backend
	if cfg.WarmTierPath != "" {
		warm, err = kv.OpenFileBackend(cfg.WarmTierPath, cfg.CreateIfMissing)
		if err != nil {
			return nil, err
		}
	}
	if cfg.ColdTierPath != "" {
		cold, err = kv.OpenFileBackend(cfg.ColdTierPath, cfg.CreateIfMissing)
		if err != nil {
			return nil, err
		}
	}

	backend := kv.NewTieredBackend(hot, warm, cold, 0)
	single := kv.NewMemorySingleVersionBackend()
	mgr := txn.NewManager(backend, txnCfg)

	return &Facade{
		Multi:         NewMultiVersionStore(backend),
		Single:        NewSingleVersionStore(single),
		Txn:           mgr,
		Interceptors:  NewInterceptors(),
		backend:       backend,
		singleBackend: single,
		cfg:           cfg,
		log:           logging.WithComponent("store-facade"),
	}, nil
}

// NewFacade wires a Facade directly over an already-constructed backend and
// transaction manager, the path tests use to avoid going through Open's
// tier-selection logic.
func NewFacade(backend kv.Backend, single kv.SingleVersionBackend, mgr *txn.Manager) *Facade {
	return &Facade{
		Multi:         NewMultiVersionStore(backend),
		Single:        NewSingleVersionStore(single),
		Txn:           mgr,
		Interceptors:  NewInterceptors(),
		backend:       backend,
		singleBackend: single,
		log:           logging.WithComponent("store-facade"),
	}
}

// BeginQuery opens a read-only transaction.
func (f *Facade) BeginQuery() *txn.Transaction { return f.Txn.BeginQuery() }

// BeginCommand opens a read-write transaction restricted to scope.
func (f *Facade) BeginCommand(scope []txn.ScopeRange) *txn.Transaction {
	return f.Txn.BeginCommand(scope)
}

// CdcScan opens a resumable CDC scan starting at from.
func (f *Facade) CdcScan(from uint64) *CdcScan {
	return &CdcScan{backend: f.backend, cursor: cdc.Cursor{FromVersion: from}}
}

// TierStats reports per-tier byte counts, if the backend tracks them.
func (f *Facade) TierStats() kv.TierStats {
	if t, ok := f.backend.(*kv.TieredBackend); ok {
		return t.Stats()
	}
	return kv.TierStats{}
}

// Close releases every resource the facade owns.
func (f *Facade) Close() error {
	var err error
	if e := f.backend.Close(); e != nil {
		err = e
	}
	if e := f.singleBackend.Close(); e != nil {
		err = e
	}
	return err
}
