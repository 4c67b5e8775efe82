package cdc

import (
	"github.com/reifydb/reifydb/encoding"
	"github.com/reifydb/reifydb/kv"
)

// BuildDelta turns a Record into the kv.Delta the transaction manager
// appends to a commit's delta batch, so the record lands in the same
// backend.Commit call as the versioned tuples it describes — the atomicity
// guarantee comes from reusing one commit, not from a second durability
// mechanism.
func BuildDelta(rec Record) kv.Delta {
	key := encoding.CdcKey{CommitVersion: rec.CommitVersion, Sequence: rec.Sequence}.Encode()
	return kv.Set(key, Marshal(rec))
}

// RetentionCutoff computes the exclusive upper bound of CDC records eligible
// for garbage collection, given the current newest commit version and a
// configured retention window. A retentionVersions of zero means unlimited
// retention, and ok is false.
func RetentionCutoff(currentVersion, retentionVersions uint64) (cutoff uint64, ok bool) {
	if retentionVersions == 0 {
		return 0, false
	}
	if currentVersion <= retentionVersions {
		return 0, false
	}
	return currentVersion - retentionVersions, true
}

// PurgeRange returns the half-open byte range covering every CDC record with
// commit_version < cutoff, the range a garbage-collection pass deletes once
// RetentionCutoff reports a version in range.
func PurgeRange(cutoff uint64) (start, end []byte) {
	start = encoding.CdcScanFrom(0)
	end = encoding.CdcScanFrom(cutoff)
	return start, end
}
