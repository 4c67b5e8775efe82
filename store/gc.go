package store

import (
	"context"
	"math"

	"github.com/reifydb/reifydb/cdc"
	"github.com/reifydb/reifydb/encoding"
	"github.com/reifydb/reifydb/kv"
)

// GCStats records one garbage-collection pass's work, per spec.md §4.E.
type GCStats struct {
	KeysProcessed   int
	VersionsRemoved int
	// CDCPurged counts CDC records retired by the retention-window purge,
	// distinct from VersionsRemoved (which only counts ordinary MVCC
	// version compaction).
	CDCPurged int
}

// GarbageCollect scans every routed table the backend can enumerate, except
// the CDC log's own table (retired only by PurgeCDC), and
// compacts each key down to the greatest version at or below the current
// read_done_watermark, skipping versions above it (which some still-active
// reader may still need). This covers both eligibility classes spec.md
// §4.E names: single-version-semantics keys (already compacted on every
// commit, so this is typically a no-op cleanup pass for them) and ordinary
// MVCC keys whose history has fully fallen behind the watermark. Grounded
// on a version store's GarbageCollect(oldestActiveSnapshot) shape: scan,
// decide what is obsolete relative to the oldest version any reader could
// still want, rewrite.
func GarbageCollect(ctx context.Context, backend kv.Backend, watermark uint64) (GCStats, error) {
	compactor, ok := backend.(kv.Compactor)
	if !ok {
		return GCStats{}, nil
	}

	cdcTable, err := kv.RouteTable(encoding.CdcScanFrom(0))
	if err != nil {
		return GCStats{}, err
	}

	var stats GCStats
	for _, table := range compactor.Tables() {
		if table == cdcTable {
			continue
		}
		keys, err := compactor.Keys(ctx, table)
		if err != nil {
			return stats, err
		}
		for _, key := range keys {
			removed, err := compactor.CompactKey(ctx, table, key, watermark)
			if err != nil {
				return stats, err
			}
			stats.KeysProcessed++
			stats.VersionsRemoved += removed
		}
	}
	return stats, nil
}

// PurgeCDC retires CDC records committed before the retention window
// implied by retentionVersions (spec.md §6 cdc_retention_versions), given
// the newest minted commit version. It consults activity, when non-nil, to
// skip the scan entirely once no CDC record is known to exist below the
// cutoff, and physically deletes each retired record via kv.Compactor's
// PurgeKey rather than compacting it to a latest version — a CDC record has
// no "latest version" to keep, unlike an ordinary MVCC key.
func PurgeCDC(ctx context.Context, backend kv.Backend, activity *cdc.ActivityBitmap, currentVersion, retentionVersions uint64) (int, error) {
	cutoff, ok := cdc.RetentionCutoff(currentVersion, retentionVersions)
	if !ok {
		return 0, nil
	}

	cdcSource := kv.SourceID(encoding.CdcScanFrom(0))
	if activity != nil && !activity.ActiveBelow(cdcSource, cutoff) {
		return 0, nil
	}

	compactor, ok := backend.(kv.Compactor)
	if !ok {
		return 0, nil
	}

	start, end := cdc.PurgeRange(cutoff)
	const batchSize = 1024
	purged := 0
	for {
		tuples, err := backend.RangeBatch(ctx, start, end, math.MaxUint64, batchSize)
		if err != nil {
			return purged, err
		}
		if len(tuples) == 0 {
			break
		}
		for _, t := range tuples {
			table, err := kv.RouteTable(t.Key)
			if err != nil {
				return purged, err
			}
			removed, err := compactor.PurgeKey(ctx, table, t.Key)
			if err != nil {
				return purged, err
			}
			purged += removed
		}
		if len(tuples) < batchSize {
			break
		}
		start = append(append([]byte(nil), tuples[len(tuples)-1].Key...), 0x00)
	}

	if activity != nil {
		activity.Trim(cdcSource, cutoff)
	}
	return purged, nil
}

// GarbageCollect runs a GC pass over the facade's backend at its current
// read_done_watermark, followed by a CDC retention purge bounded by the
// facade's configured cdc_retention_versions.
func (f *Facade) GarbageCollect(ctx context.Context) (GCStats, error) {
	watermark := f.Txn.ReadDoneWatermark()
	stats, err := GarbageCollect(ctx, f.backend, watermark)
	if err != nil {
		return stats, err
	}

	purged, err := PurgeCDC(ctx, f.backend, f.Txn.Activity(), f.Txn.CurrentVersion(), f.cfg.CDCRetentionVersions)
	if err != nil {
		return stats, err
	}
	stats.CDCPurged = purged

	f.log.Debug().
		Int("keys_processed", stats.KeysProcessed).
		Int("versions_removed", stats.VersionsRemoved).
		Int("cdc_purged", stats.CDCPurged).
		Msg("garbage collection pass complete")
	return stats, nil
}
