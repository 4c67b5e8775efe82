package kv

import (
	"bytes"
	"context"
	"sync"

	"github.com/google/btree"
	"github.com/rs/zerolog"

	"github.com/reifydb/reifydb/logging"
)

// entry is one (key, version) -> value record as stored in a table's
// in-memory B-tree, ordered first by key then by version ascending.
type entry struct {
	key       []byte
	version   uint64
	value     []byte
	tombstone bool
}

func lessEntry(a, b entry) bool {
	if c := bytes.Compare(a.key, b.key); c != 0 {
		return c < 0
	}
	return a.version < b.version
}

// MemoryBackend is the in-memory backend ("in-memory skip-list"),
// realized with a google/btree ordered tree per routed table
// so forward/reverse range scans are native tree walks rather than sorted
// slice scans. Grounded on ethdb/memory_database.go's NewMemDatabase, which
// picks one backend implementation to serve as "the" in-memory database.
type MemoryBackend struct {
	mu     sync.RWMutex
	tables map[Table]*btree.BTreeG[entry]
	log    zerolog.Logger
}

// NewMemoryBackend constructs an empty in-memory backend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{
		tables: make(map[Table]*btree.BTreeG[entry]),
		log:    logging.WithComponent("kv-memory"),
	}
}

func (m *MemoryBackend) table(t Table) *btree.BTreeG[entry] {
	tr, ok := m.tables[t]
	if !ok {
		tr = btree.NewG(32, lessEntry)
		m.tables[t] = tr
	}
	return tr
}

func tableForRange(start, end []byte) Table {
	if len(start) > 0 {
		if t, err := RouteTable(start); err == nil {
			return t
		}
	}
	if len(end) > 0 {
		if t, err := RouteTable(end); err == nil {
			return t
		}
	}
	return multiTable
}

// Get implements Backend.
func (m *MemoryBackend) Get(_ context.Context, key []byte, snapshot uint64) ([]byte, bool, error) {
	table, err := RouteTable(key)
	if err != nil {
		return nil, false, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	tr, ok := m.tables[table]
	if !ok {
		return nil, false, nil
	}
	var found entry
	hasFound := false
	tr.DescendRange(entry{key: key, version: snapshot}, entry{key: key, version: 0}, func(e entry) bool {
		if !bytes.Equal(e.key, key) {
			return false
		}
		found = e
		hasFound = true
		return false
	})
	// DescendRange's greaterThan bound is exclusive, so version==0 tuples
	// are missed above; check for them explicitly.
	if !hasFound {
		if e, ok := tr.Get(entry{key: key, version: 0}); ok && e.version <= snapshot {
			found, hasFound = e, true
		}
	}
	if !hasFound || found.tombstone {
		return nil, false, nil
	}
	out := make([]byte, len(found.value))
	copy(out, found.value)
	return out, true, nil
}

// Contains implements Backend.
func (m *MemoryBackend) Contains(ctx context.Context, key []byte, snapshot uint64) (bool, error) {
	_, ok, err := m.Get(ctx, key, snapshot)
	return ok, err
}

// visibleRange walks table between [start, end) and emits, for each
// distinct key, the tuple with the greatest version <= snapshot, skipping
// tombstones — an algorithm that could be expressed as a correlated
// subquery is here a single ordered pass with a one-entry lookahead buffer.
func visibleRange(tr *btree.BTreeG[entry], start, end []byte, snapshot uint64, limit int, reverse bool) []Tuple {
	out := make([]Tuple, 0, limit)
	var candidateKey []byte
	var candidate entry
	haveCandidate := false

	flush := func() {
		if haveCandidate && !candidate.tombstone {
			out = append(out, Tuple{
				Key:     append([]byte(nil), candidate.key...),
				Version: candidate.version,
				Value:   append([]byte(nil), candidate.value...),
			})
		}
		haveCandidate = false
	}

	visit := func(e entry) bool {
		if len(out) >= limit {
			return false
		}
		if candidateKey != nil && !bytes.Equal(candidateKey, e.key) {
			flush()
			if len(out) >= limit {
				return false
			}
		}
		candidateKey = e.key
		if e.version <= snapshot && (!haveCandidate || e.version > candidate.version) {
			candidate = e
			haveCandidate = true
		}
		return true
	}

	lo := entry{key: start, version: 0}
	var hi entry
	if end == nil {
		hi = entry{key: nil, version: ^uint64(0)}
	} else {
		hi = entry{key: end, version: 0}
	}

	if !reverse {
		if end == nil {
			tr.AscendGreaterOrEqual(lo, visit)
		} else {
			tr.AscendRange(lo, hi, visit)
		}
		flush()
	} else {
		// Descend walks (key desc, version desc); start/end bounds are
		// the same logical half-open range [start, end).
		loB := lo
		hiB := hi
		if end == nil {
			tr.Descend(func(e entry) bool {
				if bytes.Compare(e.key, start) < 0 {
					return false
				}
				return visit(e)
			})
		} else {
			tr.DescendRange(entry{key: hiB.key, version: 0}, loB, func(e entry) bool {
				return visit(e)
			})
		}
		flush()
	}

	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

// RangeBatch implements Backend.
func (m *MemoryBackend) RangeBatch(_ context.Context, start, end []byte, snapshot uint64, limit int) ([]Tuple, error) {
	table := tableForRange(start, end)
	m.mu.RLock()
	defer m.mu.RUnlock()
	tr, ok := m.tables[table]
	if !ok {
		return nil, nil
	}
	return visibleRange(tr, start, end, snapshot, limit, false), nil
}

// RangeRevBatch implements Backend.
func (m *MemoryBackend) RangeRevBatch(_ context.Context, start, end []byte, snapshot uint64, limit int) ([]Tuple, error) {
	table := tableForRange(start, end)
	m.mu.RLock()
	defer m.mu.RUnlock()
	tr, ok := m.tables[table]
	if !ok {
		return nil, nil
	}
	res := visibleRange(tr, start, end, snapshot, limit, true)
	// visibleRange's descend walk produces keys in descending order
	// already; nothing further to reverse.
	return res, nil
}

// Commit implements Backend.
func (m *MemoryBackend) Commit(_ context.Context, deltas []Delta, version uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, d := range deltas {
		table, err := RouteTable(d.Key)
		if err != nil {
			return err
		}
		tr := m.table(table)
		if d.SingleVersion {
			// Purge every prior version of this key, keeping only
			// the one we are about to write.
			var stale []entry
			tr.AscendRange(entry{key: d.Key, version: 0}, entry{key: d.Key, version: ^uint64(0)}, func(e entry) bool {
				if bytes.Equal(e.key, d.Key) {
					stale = append(stale, e)
				}
				return true
			})
			for _, e := range stale {
				tr.Delete(e)
			}
		}
		tr.ReplaceOrInsert(entry{
			key:       append([]byte(nil), d.Key...),
			version:   version,
			value:     append([]byte(nil), d.Value...),
			tombstone: d.Tombstone,
		})
	}
	m.log.Debug().Uint64("version", version).Int("deltas", len(deltas)).Msg("committed")
	return nil
}

// Close implements Backend; the in-memory backend holds no external
// resources.
func (m *MemoryBackend) Close() error { return nil }

// AllTables returns the set of routed table names currently populated, used
// by garbage collection and tier accounting.
func (m *MemoryBackend) AllTables() []Table {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Table, 0, len(m.tables))
	for t := range m.tables {
		out = append(out, t)
	}
	return out
}

// Len returns the number of (key, version) tuples stored in table t.
func (m *MemoryBackend) Len(t Table) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	tr, ok := m.tables[t]
	if !ok {
		return 0
	}
	return tr.Len()
}

// Tables implements Compactor.
func (m *MemoryBackend) Tables() []Table { return m.AllTables() }

// Keys implements Compactor, returning every distinct key in table in
// ascending order.
func (m *MemoryBackend) Keys(_ context.Context, t Table) ([][]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	tr, ok := m.tables[t]
	if !ok {
		return nil, nil
	}
	var out [][]byte
	var last []byte
	tr.Ascend(func(e entry) bool {
		if last == nil || !bytes.Equal(last, e.key) {
			out = append(out, append([]byte(nil), e.key...))
			last = e.key
		}
		return true
	})
	return out, nil
}

// CompactKey implements Compactor by deleting every stored version of key
// older than the greatest version <= asOf, keeping only that one tuple.
func (m *MemoryBackend) CompactKey(_ context.Context, t Table, key []byte, asOf uint64) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	tr, ok := m.tables[t]
	if !ok {
		return 0, nil
	}

	var versions []entry
	tr.AscendRange(entry{key: key, version: 0}, entry{key: key, version: ^uint64(0)}, func(e entry) bool {
		if bytes.Equal(e.key, key) {
			versions = append(versions, e)
		}
		return true
	})
	if len(versions) <= 1 {
		return 0, nil
	}

	keepIdx := -1
	for i, e := range versions {
		if e.version <= asOf {
			keepIdx = i
		} else {
			break
		}
	}
	if keepIdx < 0 {
		return 0, nil
	}

	// Only versions strictly older than the kept one are obsolete; versions
	// above asOf (after keepIdx, since versions is ascending) may still be
	// needed by a reader whose snapshot exceeds asOf and must be left alone.
	removed := 0
	for i := 0; i < keepIdx; i++ {
		tr.Delete(versions[i])
		removed++
	}
	return removed, nil
}

// PurgeKey implements Compactor by unconditionally deleting every stored
// version of key, used to retire CDC records past their retention window
// rather than compacting them to a latest version.
func (m *MemoryBackend) PurgeKey(_ context.Context, t Table, key []byte) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	tr, ok := m.tables[t]
	if !ok {
		return 0, nil
	}

	var versions []entry
	tr.AscendRange(entry{key: key, version: 0}, entry{key: key, version: ^uint64(0)}, func(e entry) bool {
		if bytes.Equal(e.key, key) {
			versions = append(versions, e)
		}
		return true
	})
	for _, e := range versions {
		tr.Delete(e)
	}
	return len(versions), nil
}
