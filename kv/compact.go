package kv

import "context"

// Compactor is the extra surface a garbage-collection pass needs beyond the
// ordinary Backend contract: the ability to enumerate a backend's routed
// tables and the distinct keys within one, and to rewrite a single key down
// to its latest version. Not every Backend need implement it — GC simply
// skips a backend that doesn't.
type Compactor interface {
	// Tables returns every routed table currently populated.
	Tables() []Table

	// Keys returns every distinct key currently stored in table, in
	// ascending order.
	Keys(ctx context.Context, table Table) ([][]byte, error)

	// CompactKey drops every stored version of key in table strictly
	// older than the greatest version at or below asOf, keeping only
	// that newest tuple (including a tombstone, if that is newest).
	// It returns how many versions were physically removed.
	CompactKey(ctx context.Context, table Table, key []byte, asOf uint64) (removed int, err error)

	// PurgeKey unconditionally deletes every stored version of key in
	// table, unlike CompactKey which always keeps the newest one. Used
	// for CDC retention purges, where a record past its retention window
	// is retired outright rather than compacted to a latest version.
	PurgeKey(ctx context.Context, table Table, key []byte) (removed int, err error)
}
