// Package cdc implements component C of the storage core: a commit-ordered
// change-data-capture log. Every committed transaction writes exactly one
// Record into the same backend and the same commit call as its versioned
// tuples, keyed by (commit_version, sequence), so a consumer that observes
// version V in the log is guaranteed the corresponding tuples already exist
// at version V.
package cdc

import (
	"bytes"
	"encoding/binary"

	"github.com/golang/snappy"

	"github.com/reifydb/reifydb/errs"
)

// DeltaKind discriminates the two mutation shapes a committed delta can
// take.
type DeltaKind byte

const (
	DeltaSet DeltaKind = iota
	DeltaRemove
)

// DeltaRecord is one mutation within a committed transaction, carrying the
// pre-image captured at commit time so a consumer can compute before/after
// diffs without a second read.
type DeltaRecord struct {
	Kind DeltaKind
	Key  []byte
	// Value holds the new value for DeltaSet; empty for DeltaRemove.
	Value []byte

	// PreExisted reports whether the key had any visible value immediately
	// before this commit.
	PreExisted bool
	// PreTombstone reports whether the prior visible entry was itself a
	// tombstone (only meaningful when PreExisted is true under single-
	// version semantics; under normal MVCC a tombstone is never visible).
	PreTombstone bool
	// PreValue is the value immediately before this commit, when PreExisted
	// is true and PreTombstone is false.
	PreValue []byte
}

// Record is the durable unit of the CDC log: every delta applied by one
// committed transaction, tagged with the commit version and its sequence
// number within that version (always 0 for a single-statement commit; a
// version can carry more than one record if a facade batches transactions
// sharing a version, which this implementation does not do, but the shape
// accommodates it).
type Record struct {
	CommitVersion uint64
	Sequence      uint64
	Deltas        []DeltaRecord
}

func putUint32Bytes(buf *bytes.Buffer, b []byte) {
	var n [4]byte
	binary.BigEndian.PutUint32(n[:], uint32(len(b)))
	buf.Write(n[:])
	buf.Write(b)
}

func takeUint32Bytes(buf *bytes.Reader) ([]byte, error) {
	var n [4]byte
	if _, err := buf.Read(n[:]); err != nil {
		return nil, errs.Wrap(errs.ClassInvariant, errs.SerTruncated, "read length prefix", err)
	}
	length := binary.BigEndian.Uint32(n[:])
	out := make([]byte, length)
	if length > 0 {
		if _, err := buf.Read(out); err != nil {
			return nil, errs.Wrap(errs.ClassInvariant, errs.SerTruncated, "read length-prefixed payload", err)
		}
	}
	return out, nil
}

// Marshal serializes r into a snappy-compressed byte slice suitable for
// storage as the value half of a CdcKey tuple.
func Marshal(r Record) []byte {
	var buf bytes.Buffer
	var header [20]byte
	binary.BigEndian.PutUint64(header[0:8], r.CommitVersion)
	binary.BigEndian.PutUint64(header[8:16], r.Sequence)
	binary.BigEndian.PutUint32(header[16:20], uint32(len(r.Deltas)))
	buf.Write(header[:])

	for _, d := range r.Deltas {
		buf.WriteByte(byte(d.Kind))
		putUint32Bytes(&buf, d.Key)
		putUint32Bytes(&buf, d.Value)
		flags := byte(0)
		if d.PreExisted {
			flags |= 1
		}
		if d.PreTombstone {
			flags |= 2
		}
		buf.WriteByte(flags)
		putUint32Bytes(&buf, d.PreValue)
	}

	return snappy.Encode(nil, buf.Bytes())
}

// Unmarshal is the inverse of Marshal.
func Unmarshal(raw []byte) (Record, error) {
	plain, err := snappy.Decode(nil, raw)
	if err != nil {
		return Record{}, errs.Wrap(errs.ClassInvariant, errs.SerDecode, "decompress cdc record", err)
	}
	r := bytes.NewReader(plain)

	var header [20]byte
	if _, err := r.Read(header[:]); err != nil {
		return Record{}, errs.Wrap(errs.ClassInvariant, errs.SerTruncated, "read cdc record header", err)
	}
	rec := Record{
		CommitVersion: binary.BigEndian.Uint64(header[0:8]),
		Sequence:      binary.BigEndian.Uint64(header[8:16]),
	}
	count := binary.BigEndian.Uint32(header[16:20])
	rec.Deltas = make([]DeltaRecord, 0, count)

	for i := uint32(0); i < count; i++ {
		kindByte, err := r.ReadByte()
		if err != nil {
			return Record{}, errs.Wrap(errs.ClassInvariant, errs.SerTruncated, "read delta kind", err)
		}
		key, err := takeUint32Bytes(r)
		if err != nil {
			return Record{}, err
		}
		value, err := takeUint32Bytes(r)
		if err != nil {
			return Record{}, err
		}
		flags, err := r.ReadByte()
		if err != nil {
			return Record{}, errs.Wrap(errs.ClassInvariant, errs.SerTruncated, "read delta flags", err)
		}
		preValue, err := takeUint32Bytes(r)
		if err != nil {
			return Record{}, err
		}
		rec.Deltas = append(rec.Deltas, DeltaRecord{
			Kind:         DeltaKind(kindByte),
			Key:          key,
			Value:        value,
			PreExisted:   flags&1 != 0,
			PreTombstone: flags&2 != 0,
			PreValue:     preValue,
		})
	}

	return rec, nil
}
