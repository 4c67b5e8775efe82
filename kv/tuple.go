// Package kv implements component B of the storage core: the pluggable
// backend abstraction over (key, version) -> value tuples, with routing of
// keys to internal tables, following the ethdb.Database/KV/Tx interface
// conventions of core/state/history.go and ethdb/memory_database.go.
package kv

// Tuple is one physical (key, version) -> value record as persisted by a
// Backend. Tombstone marks a delete recorded at Version rather than a
// physical erase.
type Tuple struct {
	Key       []byte
	Version   uint64
	Value     []byte
	Tombstone bool
}

// Delta is one mutation within a commit batch: either a Set (Tombstone
// false, Value present) or a Remove (Tombstone true, Value nil).
// SingleVersion marks that this key's prior versions should be purged as
// part of the same commit, so a batch can freely mix ordinary multi-version
// writes with single-version-semantics writes (e.g. flow-node state
// alongside the CDC record describing them).
type Delta struct {
	Key           []byte
	Value         []byte
	Tombstone     bool
	SingleVersion bool
}

// Set builds a Set delta.
func Set(key, value []byte) Delta { return Delta{Key: key, Value: value} }

// Remove builds a Remove (tombstone) delta.
func Remove(key []byte) Delta { return Delta{Key: key, Tombstone: true} }

// SetSingleVersion builds a Set delta whose prior versions are purged on
// commit.
func SetSingleVersion(key, value []byte) Delta {
	return Delta{Key: key, Value: value, SingleVersion: true}
}
