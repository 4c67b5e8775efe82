// Package encoding implements component A of the storage core: an
// order-preserving key codec and a typed row/value layout with fixed and
// variadic sections, following the bucket/composite-key conventions of
// common/dbutils/bucket.go.
package encoding

import (
	"encoding/binary"
	"fmt"

	"github.com/reifydb/reifydb/errs"
)

// CurrentKeyEncodingVersion is the version byte written at the head of
// every encoded key, letting a future format change coexist with keys
// written under an older layout.
const CurrentKeyEncodingVersion byte = 1

// Kind is the one-byte discriminator identifying a key's family, so that
// catalog rows, table rows, flow-operator state, CDC entries and sequences
// never collide and can each be range-scanned independently.
type Kind byte

const (
	KindRow            Kind = iota + 1 // table row data, routed per source
	KindNamespaceTable                 // catalog: namespace -> table
	KindTableColumn                    // catalog: table -> column
	KindColumnPolicy                   // catalog: column -> policy
	KindFlowNodeState                  // flow-operator operator state, routed per node
	KindSequence                       // single-version sequence counters
	KindCdc                            // change-data-capture log records
	KindMulti                          // shared catch-all for everything else
)

// Variant selects between the two complementary codec forms
// names: Ascending (plain big-endian, natural ordering) and Keycode
// (bit-complemented, so a descending numeric field still sorts ascending in
// byte order).
type Variant byte

const (
	Ascending Variant = iota
	Keycode
)

// Encoder builds an order-preserving key incrementally. All integer writes
// are big-endian so that byte-order comparison matches numeric comparison;
// Keycode-variant encoders additionally complement every byte they write.
type Encoder struct {
	buf     []byte
	variant Variant
}

// NewEncoder starts a new key of the given kind and variant. The version
// and kind bytes are written immediately and are never complemented, so
// keys of different kinds never interleave regardless of variant.
func NewEncoder(kind Kind, variant Variant) *Encoder {
	e := &Encoder{variant: variant}
	e.buf = append(e.buf, CurrentKeyEncodingVersion, byte(kind))
	return e
}

func (e *Encoder) appendComplemented(b []byte) {
	if e.variant == Keycode {
		for i := range b {
			b[i] = ^b[i]
		}
	}
	e.buf = append(e.buf, b...)
}

// Uint64 appends an 8-byte big-endian (or bit-complemented, for Keycode)
// representation of v.
func (e *Encoder) Uint64(v uint64) *Encoder {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	e.appendComplemented(b[:])
	return e
}

// Uint32 appends a 4-byte big-endian representation of v.
func (e *Encoder) Uint32(v uint32) *Encoder {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	e.appendComplemented(b[:])
	return e
}

// Byte appends a single byte.
func (e *Encoder) Byte(v byte) *Encoder {
	b := [1]byte{v}
	e.appendComplemented(b[:])
	return e
}

// RawTail appends b verbatim as the final, unbounded-length component of
// the key. Because it is not length-prefixed it must be the last component
// written — any later component would be unrecoverable on decode and would
// also break ordering for keys that share this component as a true prefix.
func (e *Encoder) RawTail(b []byte) *Encoder {
	cp := make([]byte, len(b))
	copy(cp, b)
	e.appendComplemented(cp)
	return e
}

// LengthPrefixedBytes appends a 4-byte big-endian length followed by b, so
// further components can still be appended afterwards without ambiguity.
func (e *Encoder) LengthPrefixedBytes(b []byte) *Encoder {
	e.Uint32(uint32(len(b)))
	return e.RawTail(b)
}

// Bytes returns the encoded key built so far.
func (e *Encoder) Bytes() []byte {
	out := make([]byte, len(e.buf))
	copy(out, e.buf)
	return out
}

// Decoder reads components off an encoded key in the same order an Encoder
// wrote them.
type Decoder struct {
	buf     []byte
	pos     int
	variant Variant
}

// NewDecoder parses the version and kind prefix off raw and returns a
// Decoder positioned at the first kind-specific byte, along with the kind
// that was found. variant must match the Variant the key was encoded with.
func NewDecoder(raw []byte, variant Variant) (*Decoder, Kind, error) {
	if len(raw) < 2 {
		return nil, 0, errs.New(errs.ClassInvariant, errs.SerTruncated, "key shorter than version+kind prefix")
	}
	if raw[0] != CurrentKeyEncodingVersion {
		return nil, 0, errs.New(errs.ClassInvariant, errs.SerDecode, fmt.Sprintf("unsupported key encoding version %d", raw[0]))
	}
	return &Decoder{buf: raw[2:], variant: variant}, Kind(raw[1]), nil
}

func (d *Decoder) takeComplemented(n int) ([]byte, error) {
	if d.pos+n > len(d.buf) {
		return nil, errs.New(errs.ClassInvariant, errs.SerTruncated, "key decode ran past end of buffer")
	}
	out := make([]byte, n)
	copy(out, d.buf[d.pos:d.pos+n])
	d.pos += n
	if d.variant == Keycode {
		for i := range out {
			out[i] = ^out[i]
		}
	}
	return out, nil
}

// Uint64 decodes the next 8 bytes as a big-endian uint64.
func (d *Decoder) Uint64() (uint64, error) {
	b, err := d.takeComplemented(8)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(b), nil
}

// Uint32 decodes the next 4 bytes as a big-endian uint32.
func (d *Decoder) Uint32() (uint32, error) {
	b, err := d.takeComplemented(4)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b), nil
}

// Byte decodes the next single byte.
func (d *Decoder) Byte() (byte, error) {
	b, err := d.takeComplemented(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

// RawTail returns every remaining byte as the final component.
func (d *Decoder) RawTail() ([]byte, error) {
	return d.takeComplemented(len(d.buf) - d.pos)
}

// LengthPrefixedBytes decodes a 4-byte length followed by that many bytes.
func (d *Decoder) LengthPrefixedBytes() ([]byte, error) {
	n, err := d.Uint32()
	if err != nil {
		return nil, err
	}
	return d.takeComplemented(int(n))
}

// RowKey addresses one logical row within a routed table: the table's
// physical source id plus the row's primary-key bytes.
type RowKey struct {
	Source uint64
	PK     []byte
}

func (k RowKey) Encode() []byte {
	return NewEncoder(KindRow, Ascending).Uint64(k.Source).RawTail(k.PK).Bytes()
}

// DecodeRowKey is the inverse of RowKey.Encode.
func DecodeRowKey(raw []byte) (RowKey, error) {
	d, kind, err := NewDecoder(raw, Ascending)
	if err != nil {
		return RowKey{}, err
	}
	if kind != KindRow {
		return RowKey{}, errs.New(errs.ClassInvariant, errs.SerDecode, "not a row key")
	}
	source, err := d.Uint64()
	if err != nil {
		return RowKey{}, err
	}
	pk, err := d.RawTail()
	if err != nil {
		return RowKey{}, err
	}
	return RowKey{Source: source, PK: pk}, nil
}

// SourceRange returns the half-open byte range [prefix(source), prefix(source+1))
// covering every row key belonging to the given source, independent of PK.
func SourceRange(source uint64) (start, end []byte) {
	start = NewEncoder(KindRow, Ascending).Uint64(source).Bytes()
	end = NewEncoder(KindRow, Ascending).Uint64(source + 1).Bytes()
	return start, end
}

// FlowNodeStateKey addresses one piece of operator state belonging to a
// flow-graph node. These keys are eligible for the single-version
// optimization used by key kinds that only ever need prefix scans.
type FlowNodeStateKey struct {
	NodeID uint64
	State  []byte
}

func (k FlowNodeStateKey) Encode() []byte {
	return NewEncoder(KindFlowNodeState, Ascending).Uint64(k.NodeID).RawTail(k.State).Bytes()
}

func DecodeFlowNodeStateKey(raw []byte) (FlowNodeStateKey, error) {
	d, kind, err := NewDecoder(raw, Ascending)
	if err != nil {
		return FlowNodeStateKey{}, err
	}
	if kind != KindFlowNodeState {
		return FlowNodeStateKey{}, errs.New(errs.ClassInvariant, errs.SerDecode, "not a flow-node state key")
	}
	node, err := d.Uint64()
	if err != nil {
		return FlowNodeStateKey{}, err
	}
	state, err := d.RawTail()
	if err != nil {
		return FlowNodeStateKey{}, err
	}
	return FlowNodeStateKey{NodeID: node, State: state}, nil
}

// NamespaceTableKey is the catalog key for a table registered under a
// namespace. It uses the Keycode variant so that iterating tables by id
// descending is still a plain ascending byte scan, matching the
// description of selected catalog tables.
type NamespaceTableKey struct {
	NamespaceID uint64
	TableID     uint64
}

func (k NamespaceTableKey) Encode() []byte {
	return NewEncoder(KindNamespaceTable, Keycode).Uint64(k.NamespaceID).Uint64(k.TableID).Bytes()
}

func DecodeNamespaceTableKey(raw []byte) (NamespaceTableKey, error) {
	d, kind, err := NewDecoder(raw, Keycode)
	if err != nil {
		return NamespaceTableKey{}, err
	}
	if kind != KindNamespaceTable {
		return NamespaceTableKey{}, errs.New(errs.ClassInvariant, errs.SerDecode, "not a namespace-table key")
	}
	ns, err := d.Uint64()
	if err != nil {
		return NamespaceTableKey{}, err
	}
	table, err := d.Uint64()
	if err != nil {
		return NamespaceTableKey{}, err
	}
	return NamespaceTableKey{NamespaceID: ns, TableID: table}, nil
}

// TableColumnKey is the catalog key for a column registered under a table.
type TableColumnKey struct {
	TableID  uint64
	ColumnID uint64
}

func (k TableColumnKey) Encode() []byte {
	return NewEncoder(KindTableColumn, Ascending).Uint64(k.TableID).Uint64(k.ColumnID).Bytes()
}

func DecodeTableColumnKey(raw []byte) (TableColumnKey, error) {
	d, kind, err := NewDecoder(raw, Ascending)
	if err != nil {
		return TableColumnKey{}, err
	}
	if kind != KindTableColumn {
		return TableColumnKey{}, errs.New(errs.ClassInvariant, errs.SerDecode, "not a table-column key")
	}
	table, err := d.Uint64()
	if err != nil {
		return TableColumnKey{}, err
	}
	col, err := d.Uint64()
	if err != nil {
		return TableColumnKey{}, err
	}
	return TableColumnKey{TableID: table, ColumnID: col}, nil
}

// ColumnPolicyKey is the catalog key for a policy (e.g. saturation policy)
// attached to a column.
type ColumnPolicyKey struct {
	ColumnID uint64
	PolicyID uint64
}

func (k ColumnPolicyKey) Encode() []byte {
	return NewEncoder(KindColumnPolicy, Ascending).Uint64(k.ColumnID).Uint64(k.PolicyID).Bytes()
}

func DecodeColumnPolicyKey(raw []byte) (ColumnPolicyKey, error) {
	d, kind, err := NewDecoder(raw, Ascending)
	if err != nil {
		return ColumnPolicyKey{}, err
	}
	if kind != KindColumnPolicy {
		return ColumnPolicyKey{}, errs.New(errs.ClassInvariant, errs.SerDecode, "not a column-policy key")
	}
	col, err := d.Uint64()
	if err != nil {
		return ColumnPolicyKey{}, err
	}
	policy, err := d.Uint64()
	if err != nil {
		return ColumnPolicyKey{}, err
	}
	return ColumnPolicyKey{ColumnID: col, PolicyID: policy}, nil
}

// CdcKey addresses one change-data-capture record by its commit version and
// its sequence number within that version, ordering records for forward scan
// exactly in commit order.
type CdcKey struct {
	CommitVersion uint64
	Sequence      uint64
}

func (k CdcKey) Encode() []byte {
	return NewEncoder(KindCdc, Ascending).Uint64(k.CommitVersion).Uint64(k.Sequence).Bytes()
}

func DecodeCdcKey(raw []byte) (CdcKey, error) {
	d, kind, err := NewDecoder(raw, Ascending)
	if err != nil {
		return CdcKey{}, err
	}
	if kind != KindCdc {
		return CdcKey{}, errs.New(errs.ClassInvariant, errs.SerDecode, "not a cdc key")
	}
	version, err := d.Uint64()
	if err != nil {
		return CdcKey{}, err
	}
	seq, err := d.Uint64()
	if err != nil {
		return CdcKey{}, err
	}
	return CdcKey{CommitVersion: version, Sequence: seq}, nil
}

// CdcVersionRange returns the half-open byte range [prefix(version), prefix(version+1))
// covering every CDC record committed at exactly the given version.
func CdcVersionRange(version uint64) (start, end []byte) {
	start = NewEncoder(KindCdc, Ascending).Uint64(version).Bytes()
	end = NewEncoder(KindCdc, Ascending).Uint64(version + 1).Bytes()
	return start, end
}

// CdcScanFrom returns the inclusive lower bound for a forward CDC scan
// resuming at fromVersion.
func CdcScanFrom(fromVersion uint64) []byte {
	return NewEncoder(KindCdc, Ascending).Uint64(fromVersion).Bytes()
}

// SequenceKey addresses a single-version sequence counter by name.
type SequenceKey struct {
	Name string
}

func (k SequenceKey) Encode() []byte {
	return NewEncoder(KindSequence, Ascending).RawTail([]byte(k.Name)).Bytes()
}

func DecodeSequenceKey(raw []byte) (SequenceKey, error) {
	d, kind, err := NewDecoder(raw, Ascending)
	if err != nil {
		return SequenceKey{}, err
	}
	if kind != KindSequence {
		return SequenceKey{}, errs.New(errs.ClassInvariant, errs.SerDecode, "not a sequence key")
	}
	name, err := d.RawTail()
	if err != nil {
		return SequenceKey{}, err
	}
	return SequenceKey{Name: string(name)}, nil
}
