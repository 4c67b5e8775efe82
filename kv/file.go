package kv

import (
	"bytes"
	"context"
	"encoding/binary"
	"os"

	"github.com/ledgerwatch/bolt"
	"github.com/rs/zerolog"

	"github.com/reifydb/reifydb/errs"
	"github.com/reifydb/reifydb/logging"
)

// FileBackend is the single-file embedded backend
// ("embedded SQL-lite style file"), grounded on ethdb/memory_database.go's
// BoltDatabase/bolt.Open. Each routed Table becomes one bolt bucket; within
// a bucket, keys are stored as <key><8-byte big-endian version> so bolt's
// native byte-ordered cursor walks rows in the exact order a range
// query needs, with no secondary index.
type FileBackend struct {
	db  *bolt.DB
	log zerolog.Logger
}

// OpenFileBackend opens (creating if missing and createIfMissing is true)
// the single-file backend at path.
func OpenFileBackend(path string, createIfMissing bool) (*FileBackend, error) {
	if !createIfMissing {
		if _, err := os.Stat(path); err != nil {
			return nil, errs.Wrap(errs.ClassIO, errs.SerUnsupported, "open file backend", err)
		}
	}
	opts := &bolt.Options{}
	db, err := bolt.Open(path, 0600, opts)
	if err != nil {
		return nil, errs.Wrap(errs.ClassIO, errs.SerUnsupported, "open file backend", err)
	}
	// buckets are created lazily per table on first write; nothing to
	// pre-create here.
	return &FileBackend{db: db, log: logging.WithComponent("kv-file")}, nil
}

func storageKey(key []byte, version uint64) []byte {
	out := make([]byte, len(key)+8)
	copy(out, key)
	binary.BigEndian.PutUint64(out[len(key):], version)
	return out
}

func splitStorageKey(stored []byte) (key []byte, version uint64) {
	n := len(stored) - 8
	return stored[:n], binary.BigEndian.Uint64(stored[n:])
}

// decodeValue unpacks the tombstone flag stored as the first byte of every
// value, followed by the payload.
func decodeValue(raw []byte) (value []byte, tombstone bool) {
	if len(raw) == 0 {
		return nil, false
	}
	return raw[1:], raw[0] == 1
}

func encodeValue(value []byte, tombstone bool) []byte {
	flag := byte(0)
	if tombstone {
		flag = 1
	}
	out := make([]byte, 1+len(value))
	out[0] = flag
	copy(out[1:], value)
	return out
}

func (f *FileBackend) Get(_ context.Context, key []byte, snapshot uint64) ([]byte, bool, error) {
	table, err := RouteTable(key)
	if err != nil {
		return nil, false, err
	}
	var value []byte
	var found bool
	err = f.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(table))
		if b == nil {
			return nil
		}
		c := b.Cursor()
		for k, v := c.Seek(storageKey(key, 0)); k != nil; k, v = c.Next() {
			rowKey, version := splitStorageKey(k)
			if !bytes.Equal(rowKey, key) {
				// A distinct, longer key that happens to share this
				// key as a byte prefix sorts interleaved with it; skip
				// past it instead of mistaking it for one of our own
				// versions or stopping the scan early.
				if bytes.HasPrefix(rowKey, key) {
					continue
				}
				break
			}
			if version > snapshot {
				break
			}
			val, tomb := decodeValue(v)
			if !tomb {
				found = true
				value = append([]byte(nil), val...)
			} else {
				found = false
			}
		}
		return nil
	})
	if err != nil {
		return nil, false, errs.Wrap(errs.ClassIO, errs.SerUnsupported, "file backend get", err)
	}
	return value, found, nil
}

func (f *FileBackend) Contains(ctx context.Context, key []byte, snapshot uint64) (bool, error) {
	_, ok, err := f.Get(ctx, key, snapshot)
	return ok, err
}

func (f *FileBackend) rangeBatch(start, end []byte, snapshot uint64, limit int, reverse bool) ([]Tuple, error) {
	table := tableForRange(start, end)
	var out []Tuple
	err := f.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(table))
		if b == nil {
			return nil
		}
		c := b.Cursor()

		var candidateKey []byte
		var candidate Tuple
		have := false
		flush := func() {
			if have && !candidate.Tombstone {
				out = append(out, candidate)
			}
			have = false
		}

		visit := func(k, v []byte) bool {
			if len(out) >= limit {
				return false
			}
			rowKey, version := splitStorageKey(k)
			if candidateKey != nil && !bytes.Equal(candidateKey, rowKey) {
				flush()
			}
			candidateKey = append([]byte(nil), rowKey...)
			if version <= snapshot && (!have || version > candidate.Version) {
				val, tomb := decodeValue(v)
				candidate = Tuple{Key: candidateKey, Version: version, Value: append([]byte(nil), val...), Tombstone: tomb}
				have = true
			}
			return true
		}

		if !reverse {
			for k, v := c.Seek(start); k != nil; k, v = c.Next() {
				if end != nil && bytes.Compare(k, storageKey(end, 0)) >= 0 {
					break
				}
				if !visit(k, v) {
					break
				}
			}
		} else {
			var k, v []byte
			if end != nil {
				k, v = c.Seek(storageKey(end, 0))
				if k == nil {
					k, v = c.Last()
				} else {
					k, v = c.Prev()
				}
			} else {
				k, v = c.Last()
			}
			for ; k != nil; k, v = c.Prev() {
				if start != nil && bytes.Compare(k, storageKey(start, 0)) < 0 {
					break
				}
				if !visit(k, v) {
					break
				}
			}
		}
		flush()
		return nil
	})
	if err != nil {
		return nil, errs.Wrap(errs.ClassIO, errs.SerUnsupported, "file backend range", err)
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *FileBackend) RangeBatch(_ context.Context, start, end []byte, snapshot uint64, limit int) ([]Tuple, error) {
	return f.rangeBatch(start, end, snapshot, limit, false)
}

func (f *FileBackend) RangeRevBatch(_ context.Context, start, end []byte, snapshot uint64, limit int) ([]Tuple, error) {
	return f.rangeBatch(start, end, snapshot, limit, true)
}

func (f *FileBackend) Commit(_ context.Context, deltas []Delta, version uint64) error {
	err := f.db.Update(func(tx *bolt.Tx) error {
		byTable := map[Table][]Delta{}
		for _, d := range deltas {
			table, err := RouteTable(d.Key)
			if err != nil {
				return err
			}
			byTable[table] = append(byTable[table], d)
		}
		for table, ds := range byTable {
			b, err := tx.CreateBucketIfNotExists([]byte(table))
			if err != nil {
				return err
			}
			for _, d := range ds {
				if d.SingleVersion {
					c := b.Cursor()
					var stale [][]byte
					for k, _ := c.Seek(storageKey(d.Key, 0)); k != nil; k, _ = c.Next() {
						rowKey, _ := splitStorageKey(k)
						if !bytes.Equal(rowKey, d.Key) {
							if bytes.HasPrefix(rowKey, d.Key) {
								continue
							}
							break
						}
						stale = append(stale, append([]byte(nil), k...))
					}
					for _, sk := range stale {
						if err := b.Delete(sk); err != nil {
							return err
						}
					}
				}
				if err := b.Put(storageKey(d.Key, version), encodeValue(d.Value, d.Tombstone)); err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		return errs.Wrap(errs.ClassIO, errs.SerUnsupported, "file backend commit", err)
	}
	f.log.Debug().Uint64("version", version).Int("deltas", len(deltas)).Msg("committed")
	return nil
}

func (f *FileBackend) Close() error {
	if err := f.db.Close(); err != nil {
		return errs.Wrap(errs.ClassIO, errs.SerUnsupported, "close file backend", err)
	}
	return nil
}

// Tables implements Compactor, listing every bolt bucket currently present.
func (f *FileBackend) Tables() []Table {
	var out []Table
	_ = f.db.View(func(tx *bolt.Tx) error {
		return tx.ForEach(func(name []byte, _ *bolt.Bucket) error {
			out = append(out, Table(name))
			return nil
		})
	})
	return out
}

// Keys implements Compactor, returning every distinct row key in table in
// ascending order.
func (f *FileBackend) Keys(_ context.Context, table Table) ([][]byte, error) {
	var out [][]byte
	err := f.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(table))
		if b == nil {
			return nil
		}
		c := b.Cursor()
		var last []byte
		for k, _ := c.First(); k != nil; k, _ = c.Next() {
			rowKey, _ := splitStorageKey(k)
			if last == nil || !bytes.Equal(last, rowKey) {
				out = append(out, append([]byte(nil), rowKey...))
				last = rowKey
			}
		}
		return nil
	})
	if err != nil {
		return nil, errs.Wrap(errs.ClassIO, errs.SerUnsupported, "file backend keys", err)
	}
	return out, nil
}

// CompactKey implements Compactor by deleting every stored version of key in
// table older than the greatest version <= asOf.
func (f *FileBackend) CompactKey(_ context.Context, table Table, key []byte, asOf uint64) (int, error) {
	removed := 0
	err := f.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(table))
		if b == nil {
			return nil
		}
		c := b.Cursor()
		var versions [][]byte
		for k, _ := c.Seek(storageKey(key, 0)); k != nil; k, _ = c.Next() {
			rowKey, _ := splitStorageKey(k)
			if !bytes.Equal(rowKey, key) {
				if bytes.HasPrefix(rowKey, key) {
					continue
				}
				break
			}
			versions = append(versions, append([]byte(nil), k...))
		}
		if len(versions) <= 1 {
			return nil
		}
		keepIdx := -1
		for i, sk := range versions {
			_, v := splitStorageKey(sk)
			if v <= asOf {
				keepIdx = i
			} else {
				break
			}
		}
		if keepIdx < 0 {
			return nil
		}
		// Only versions strictly older than the kept one are obsolete;
		// versions above asOf must be left alone for readers that still
		// need them.
		for i := 0; i < keepIdx; i++ {
			if err := b.Delete(versions[i]); err != nil {
				return err
			}
			removed++
		}
		return nil
	})
	if err != nil {
		return 0, errs.Wrap(errs.ClassIO, errs.SerUnsupported, "file backend compact key", err)
	}
	return removed, nil
}

// PurgeKey implements Compactor by unconditionally deleting every stored
// version of key in table, used to retire CDC records past their retention
// window rather than compacting them to a latest version.
func (f *FileBackend) PurgeKey(_ context.Context, table Table, key []byte) (int, error) {
	removed := 0
	err := f.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(table))
		if b == nil {
			return nil
		}
		c := b.Cursor()
		var versions [][]byte
		for k, _ := c.Seek(storageKey(key, 0)); k != nil; k, _ = c.Next() {
			rowKey, _ := splitStorageKey(k)
			if !bytes.Equal(rowKey, key) {
				if bytes.HasPrefix(rowKey, key) {
					continue
				}
				break
			}
			versions = append(versions, append([]byte(nil), k...))
		}
		for _, sk := range versions {
			if err := b.Delete(sk); err != nil {
				return err
			}
			removed++
		}
		return nil
	})
	if err != nil {
		return 0, errs.Wrap(errs.ClassIO, errs.SerUnsupported, "file backend purge key", err)
	}
	return removed, nil
}
