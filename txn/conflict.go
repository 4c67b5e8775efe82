package txn

import (
	"bytes"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
)

func keyInRange(key, start, end []byte) bool {
	if bytes.Compare(key, start) < 0 {
		return false
	}
	if end != nil && bytes.Compare(key, end) >= 0 {
		return false
	}
	return true
}

// commitRecord is the conflict tracker's memory of one committed
// transaction: the version it committed at and the keys it wrote.
type commitRecord struct {
	version CommitVersion
	writes  map[string]struct{}
}

// ConflictTracker remembers recently committed write-sets so a committing
// transaction can check whether any key it read was concurrently written.
// It is bounded by a github.com/hashicorp/golang-lru/v2 cache of size
// MaxCommittedTxns; records are also proactively trimmed once their version
// falls at or below the read-done watermark, since no transaction can still
// need them for a conflict check at that point.
type ConflictTracker struct {
	mu    sync.Mutex
	cache *lru.Cache[CommitVersion, *commitRecord]
	order []CommitVersion
}

// NewConflictTracker returns a tracker bounded to size recently committed
// transactions.
func NewConflictTracker(size int) *ConflictTracker {
	if size <= 0 {
		size = 1
	}
	t := &ConflictTracker{}
	cache, _ := lru.NewWithEvict[CommitVersion, *commitRecord](size, func(key CommitVersion, _ *commitRecord) {
		t.removeFromOrder(key)
	})
	t.cache = cache
	return t
}

func (t *ConflictTracker) removeFromOrder(version CommitVersion) {
	for i, v := range t.order {
		if v == version {
			t.order = append(t.order[:i], t.order[i+1:]...)
			return
		}
	}
}

// Record remembers that version committed writes, for future conflict
// checks against transactions whose snapshot precedes it.
func (t *ConflictTracker) Record(version CommitVersion, writes map[string]struct{}) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.cache.Add(version, &commitRecord{version: version, writes: writes})
	t.order = append(t.order, version)
}

// ConflictsWith reports whether any transaction committed in (snapshot, upTo)
// wrote a key that keys or ranges overlaps.
func (t *ConflictTracker) ConflictsWith(snapshot, upTo CommitVersion, keys map[string]struct{}, ranges []rangeRead) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, v := range t.order {
		if v <= snapshot || v >= upTo {
			continue
		}
		rec, ok := t.cache.Peek(v)
		if !ok {
			continue
		}
		for k := range keys {
			if _, hit := rec.writes[k]; hit {
				return true
			}
		}
		if len(ranges) > 0 {
			for wk := range rec.writes {
				for _, r := range ranges {
					if keyInRange([]byte(wk), r.start, r.end) {
						return true
					}
				}
			}
		}
	}
	return false
}

// Trim removes every tracked record at or below cutoff, safe once the
// read-done watermark has advanced past them. It snapshots the current
// order before removing anything, since each Remove synchronously fires the
// eviction callback that mutates t.order in place.
func (t *ConflictTracker) Trim(cutoff CommitVersion) {
	t.mu.Lock()
	defer t.mu.Unlock()
	snapshot := append([]CommitVersion(nil), t.order...)
	for _, v := range snapshot {
		if v <= cutoff {
			t.cache.Remove(v)
		}
	}
}
