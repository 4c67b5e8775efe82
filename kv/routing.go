package kv

import (
	"fmt"

	"github.com/reifydb/reifydb/encoding"
)

// Table names the physical destination a key's family routes to. Row keys
// go to a per-source table so a hot source can be compacted independently;
// flow-node state keys go to a per-node table for the same reason; CDC
// records go to their own "cdc" table; every other kind shares one "multi"
// table.
type Table string

const multiTable Table = "multi"

// cdcTable is the physical table backing the change-data-capture log,
// routed independently of multiTable so it can be retained, scanned, and
// garbage-collected on its own schedule.
const cdcTable Table = "cdc"

// RouteTable derives the physical table a key lives in from its encoded
// kind and, for row/flow-node-state keys, its source/node id — this lets
// iteration over "all rows of table T" or "all state of node N" read a
// single physical table instead of filtering a shared one.
func RouteTable(raw []byte) (Table, error) {
	dec, kind, err := encoding.NewDecoder(raw, encoding.Ascending)
	if err != nil {
		return "", err
	}
	switch kind {
	case encoding.KindRow:
		source, err := dec.Uint64()
		if err != nil {
			return "", err
		}
		return Table(fmt.Sprintf("row-%d", source)), nil
	case encoding.KindFlowNodeState:
		node, err := dec.Uint64()
		if err != nil {
			return "", err
		}
		return Table(fmt.Sprintf("flow-%d", node)), nil
	case encoding.KindCdc:
		return cdcTable, nil
	default:
		return multiTable, nil
	}
}

// SourceID derives a numeric activity-bitmap shard id from an encoded key:
// row and flow-node-state keys shard by their own source/node id, so
// per-source activity can be tracked independently; every other kind
// shares one reserved shard per kind. The kind byte tags the high byte of
// the id so ids minted for different kinds never collide.
func SourceID(raw []byte) uint64 {
	dec, kind, err := encoding.NewDecoder(raw, encoding.Ascending)
	tag := uint64(kind) << 56
	if err != nil {
		return tag
	}
	switch kind {
	case encoding.KindRow, encoding.KindFlowNodeState:
		if id, err := dec.Uint64(); err == nil {
			return tag | (id &^ (uint64(0xFF) << 56))
		}
	}
	return tag
}

// SingleVersionSemantics reports whether keys of this kind should have
// their prior versions purged on commit, keeping only the newest. By
// default only flow-node state gets this treatment; callers can override
// via config.TransactionManager.
func SingleVersionSemantics(kind encoding.Kind, enabled map[encoding.Kind]bool) bool {
	if enabled == nil {
		return kind == encoding.KindFlowNodeState
	}
	return enabled[kind]
}
