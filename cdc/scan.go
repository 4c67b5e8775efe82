package cdc

import (
	"context"
	"math"

	"github.com/reifydb/reifydb/encoding"
	"github.com/reifydb/reifydb/errs"
	"github.com/reifydb/reifydb/kv"
)

// Cursor is the resumable position a CDC consumer holds between scan calls.
// FromVersion is the next commit version to fetch, inclusive; a consumer
// checkpoints the cursor Scan returns and passes it back on the next call to
// resume immediately after the last record it saw.
type Cursor struct {
	FromVersion uint64
}

// Scan reads up to limit CDC records committed at or after from.FromVersion,
// in commit order, following the walk-and-checkpoint idiom of an idempotent
// migration runner: each call is a pure forward step driven entirely by the
// cursor the caller holds, with no server-side session state. It returns the
// records found and a cursor positioned to resume immediately after them.
func Scan(ctx context.Context, backend kv.Backend, from Cursor, limit int) ([]Record, Cursor, error) {
	lower := encoding.CdcScanFrom(from.FromVersion)
	tuples, err := backend.RangeBatch(ctx, lower, nil, math.MaxUint64, limit)
	if err != nil {
		return nil, from, err
	}

	records := make([]Record, 0, len(tuples))
	cursor := from
	for _, t := range tuples {
		key, err := encoding.DecodeCdcKey(t.Key)
		if err != nil {
			return nil, from, errs.Wrap(errs.ClassInvariant, errs.SerDecode, "decode cdc key during scan", err)
		}
		rec, err := Unmarshal(t.Value)
		if err != nil {
			return nil, from, err
		}
		records = append(records, rec)
		if key.CommitVersion >= cursor.FromVersion {
			cursor.FromVersion = key.CommitVersion + 1
		}
	}

	return records, cursor, nil
}
