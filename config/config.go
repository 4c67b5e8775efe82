// Package config enumerates the storage engine's configuration surface: the
// backend facade's tiering/durability knobs and the transaction manager's
// conflict-tracking limits. It is deliberately just structs — file/env
// plumbing is a CLI-layer concern out of scope for this core.
package config

import "github.com/c2h5oh/datasize"

// TierMedium names where a backend's hot tier physically lives.
type TierMedium string

const (
	TierMemory TierMedium = "memory"
	TierTmpfs  TierMedium = "tmpfs"
	TierFile   TierMedium = "file"
)

// Backend configures the store facade's backend and tiering behavior.
type Backend struct {
	// HotTier selects the medium backing the hot tier; HotTierPath is the
	// filesystem path used when HotTier is TierFile.
	HotTierPath string
	HotTier     TierMedium

	// CreateIfMissing allows opening a backend whose file does not yet
	// exist, creating it instead of failing.
	CreateIfMissing bool

	// ReuseConnection is carried in the configuration but no backend reads
	// it: every Open opens its own file handle, and a second Open of a path
	// that is already open is not shared with the first.
	ReuseConnection bool

	// CDCRetentionVersions bounds how many commit versions of CDC
	// history are retained; zero means unlimited.
	CDCRetentionVersions uint64

	// WarmTierPath/ColdTierPath, when non-empty, enable the optional
	// warm/cold tiers. Tier movement policy itself is left to the
	// operator — these paths are exposed so a future mover has somewhere
	// to write.
	WarmTierPath string
	ColdTierPath string

	// HotTierShardLimit is carried in the configuration but nothing reads
	// it; CDC records and activity bitmaps are never split into shards by
	// size.
	HotTierShardLimit datasize.ByteSize
}

// DefaultBackend returns the configuration implied as a sane
// starting point: an in-memory hot tier with unlimited CDC retention.
func DefaultBackend() Backend {
	return Backend{
		HotTier:           TierMemory,
		CreateIfMissing:   true,
		ReuseConnection:   true,
		HotTierShardLimit: 3 * datasize.KB,
	}
}

// KeyKind mirrors encoding.Kind without importing it, so config has no
// dependency on the encoding package's internal layout.
type KeyKind byte

// TransactionManager configures the transaction manager (component D).
type TransactionManager struct {
	// MaxCommittedTxns bounds the conflict tracker's LRU of recently
	// committed versions. Default ≈ 2^14.
	MaxCommittedTxns int

	// EnableSingleVersionSemanticsFor lists the key kinds that get the
	// single-version optimization (only the
	// newest version of a key is retained on commit). Defaults to
	// flow-node state keys.
	EnableSingleVersionSemanticsFor []KeyKind

	// MaxPendingWritesPerTxn bounds the number of buffered pending writes
	// a single command transaction may accumulate; the Set or Remove of a
	// new key beyond the limit fails with a transaction-too-large error.
	// Zero means unbounded.
	MaxPendingWritesPerTxn int
}

const defaultMaxCommittedTxns = 1 << 14
const defaultMaxPendingWritesPerTxn = 1 << 20

// DefaultTransactionManager returns the documented defaults.
func DefaultTransactionManager() TransactionManager {
	return TransactionManager{
		MaxCommittedTxns:       defaultMaxCommittedTxns,
		MaxPendingWritesPerTxn: defaultMaxPendingWritesPerTxn,
	}
}
