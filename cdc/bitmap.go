package cdc

import (
	"sync"

	"github.com/RoaringBitmap/roaring"
)

// ActivityBitmap tracks, per routed source, the set of commit versions that
// touched it, so a garbage-collection pass can ask "did source S have any
// CDC activity below the retention cutoff" in one bitmap membership test
// instead of scanning the log. It shards by source the way a sharded
// roaring bitmap shards by key range: one bitmap per source, rebuilt additively
// as commits arrive and trimmed as old versions are purged.
type ActivityBitmap struct {
	mu      sync.Mutex
	bySource map[uint64]*roaring.Bitmap
}

// NewActivityBitmap returns an empty tracker.
func NewActivityBitmap() *ActivityBitmap {
	return &ActivityBitmap{bySource: make(map[uint64]*roaring.Bitmap)}
}

// Record marks that source touched version. version is truncated to 32 bits
// for bitmap storage; callers needing exact 64-bit version tracking should
// treat this as an approximate accelerator, not a source of truth — the CDC
// log itself remains authoritative.
func (a *ActivityBitmap) Record(source uint64, version uint64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	b, ok := a.bySource[source]
	if !ok {
		b = roaring.New()
		a.bySource[source] = b
	}
	b.Add(uint32(version))
}

// ActiveBelow reports whether source has any recorded version strictly
// below cutoff.
func (a *ActivityBitmap) ActiveBelow(source uint64, cutoff uint64) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	b, ok := a.bySource[source]
	if !ok || b.IsEmpty() {
		return false
	}
	return b.Minimum() < uint32(cutoff)
}

// Trim removes every recorded version below cutoff for source, called after
// a GC pass has purged those CDC records so the bitmap does not grow
// unbounded.
func (a *ActivityBitmap) Trim(source uint64, cutoff uint64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	b, ok := a.bySource[source]
	if !ok {
		return
	}
	b.RemoveRange(0, uint64(cutoff))
	if b.IsEmpty() {
		delete(a.bySource, source)
	}
}

// Sources returns every source currently tracked.
func (a *ActivityBitmap) Sources() []uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]uint64, 0, len(a.bySource))
	for s := range a.bySource {
		out = append(out, s)
	}
	return out
}
