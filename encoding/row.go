package encoding

import (
	"encoding/binary"
	"math"

	"github.com/google/uuid"
	"github.com/reifydb/reifydb/errs"
)

// Row is a mutable, densely packed tuple conforming to a Layout: a
// validity-bitmap header, a static section of fixed-width slots, and a
// variadic tail for text/blob/big-integer/decimal payloads.
type Row struct {
	layout *Layout
	header []byte
	static []byte
	tail   []byte
}

// Allocate returns a new Row for l with every field undefined.
func (l *Layout) Allocate() *Row {
	return &Row{
		layout: l,
		header: make([]byte, l.HeaderSize),
		static: make([]byte, l.StaticSize),
	}
}

func (r *Row) setValid(i int) {
	r.header[i/8] |= 1 << uint(i%8)
}

func (r *Row) clearValid(i int) {
	r.header[i/8] &^= 1 << uint(i%8)
}

// IsDefined reports whether field i has been set.
func (r *Row) IsDefined(i int) bool {
	return r.header[i/8]&(1<<uint(i%8)) != 0
}

func (r *Row) field(i int) Field {
	return r.layout.Fields[i]
}

// --- fixed-width scalar accessors ---

func (r *Row) SetBool(i int, v bool) {
	f := r.field(i)
	if v {
		r.static[f.Offset] = 1
	} else {
		r.static[f.Offset] = 0
	}
	r.setValid(i)
}

func (r *Row) GetBool(i int) bool {
	f := r.field(i)
	return r.static[f.Offset] != 0
}

func (r *Row) TryGetBool(i int) (bool, bool) {
	if !r.IsDefined(i) {
		return false, false
	}
	return r.GetBool(i), true
}

func (r *Row) SetInt8(i int, v int8) {
	f := r.field(i)
	r.static[f.Offset] = byte(v)
	r.setValid(i)
}
func (r *Row) GetInt8(i int) int8 { return int8(r.static[r.field(i).Offset]) }

func (r *Row) SetUint8(i int, v uint8) {
	f := r.field(i)
	r.static[f.Offset] = v
	r.setValid(i)
}
func (r *Row) GetUint8(i int) uint8 { return r.static[r.field(i).Offset] }

func (r *Row) SetInt16(i int, v int16) {
	f := r.field(i)
	binary.LittleEndian.PutUint16(r.static[f.Offset:], uint16(v))
	r.setValid(i)
}
func (r *Row) GetInt16(i int) int16 {
	f := r.field(i)
	return int16(binary.LittleEndian.Uint16(r.static[f.Offset:]))
}

func (r *Row) SetUint16(i int, v uint16) {
	f := r.field(i)
	binary.LittleEndian.PutUint16(r.static[f.Offset:], v)
	r.setValid(i)
}
func (r *Row) GetUint16(i int) uint16 {
	f := r.field(i)
	return binary.LittleEndian.Uint16(r.static[f.Offset:])
}

func (r *Row) SetInt32(i int, v int32) {
	f := r.field(i)
	binary.LittleEndian.PutUint32(r.static[f.Offset:], uint32(v))
	r.setValid(i)
}
func (r *Row) GetInt32(i int) int32 {
	f := r.field(i)
	return int32(binary.LittleEndian.Uint32(r.static[f.Offset:]))
}

func (r *Row) SetUint32(i int, v uint32) {
	f := r.field(i)
	binary.LittleEndian.PutUint32(r.static[f.Offset:], v)
	r.setValid(i)
}
func (r *Row) GetUint32(i int) uint32 {
	f := r.field(i)
	return binary.LittleEndian.Uint32(r.static[f.Offset:])
}

func (r *Row) SetInt64(i int, v int64) {
	f := r.field(i)
	binary.LittleEndian.PutUint64(r.static[f.Offset:], uint64(v))
	r.setValid(i)
}
func (r *Row) GetInt64(i int) int64 {
	f := r.field(i)
	return int64(binary.LittleEndian.Uint64(r.static[f.Offset:]))
}

func (r *Row) SetUint64(i int, v uint64) {
	f := r.field(i)
	binary.LittleEndian.PutUint64(r.static[f.Offset:], v)
	r.setValid(i)
}
func (r *Row) GetUint64(i int) uint64 {
	f := r.field(i)
	return binary.LittleEndian.Uint64(r.static[f.Offset:])
}

// SetInt128/SetUint128 store the 128-bit value as raw big-endian bytes; no
// arithmetic is performed on them at this layer.
func (r *Row) SetInt128(i int, v [16]byte) {
	f := r.field(i)
	copy(r.static[f.Offset:f.Offset+16], v[:])
	r.setValid(i)
}
func (r *Row) GetInt128(i int) [16]byte {
	f := r.field(i)
	var out [16]byte
	copy(out[:], r.static[f.Offset:f.Offset+16])
	return out
}
func (r *Row) SetUint128(i int, v [16]byte) { r.SetInt128(i, v) }
func (r *Row) GetUint128(i int) [16]byte    { return r.GetInt128(i) }

func (r *Row) SetFloat32(i int, v float32) {
	r.SetUint32(i, math.Float32bits(v))
}
func (r *Row) GetFloat32(i int) float32 {
	return math.Float32frombits(r.GetUint32(i))
}

func (r *Row) SetFloat64(i int, v float64) {
	r.SetUint64(i, math.Float64bits(v))
}
func (r *Row) GetFloat64(i int) float64 {
	return math.Float64frombits(r.GetUint64(i))
}

func (r *Row) SetUUID(i int, v uuid.UUID) {
	f := r.field(i)
	copy(r.static[f.Offset:f.Offset+16], v[:])
	r.setValid(i)
}
func (r *Row) GetUUID(i int) uuid.UUID {
	f := r.field(i)
	var u uuid.UUID
	copy(u[:], r.static[f.Offset:f.Offset+16])
	return u
}

// Date/Time/Duration share int32/int64 storage with Date/Time/Duration
// semantics layered on by the caller (the query engine, out of scope here).
func (r *Row) SetDate(i int, daysSinceEpoch int32)  { r.SetInt32(i, daysSinceEpoch) }
func (r *Row) GetDate(i int) int32                  { return r.GetInt32(i) }
func (r *Row) SetTime(i int, nanosSinceMidnight int64) { r.SetInt64(i, nanosSinceMidnight) }
func (r *Row) GetTime(i int) int64                     { return r.GetInt64(i) }
func (r *Row) SetDuration(i int, nanos int64) { r.SetInt64(i, nanos) }
func (r *Row) GetDuration(i int) int64        { return r.GetInt64(i) }

// --- variadic accessors ---

func (r *Row) setVariadic(i int, data []byte) {
	f := r.field(i)
	offset := uint32(len(r.tail))
	length := uint32(len(data))
	binary.LittleEndian.PutUint32(r.static[f.Offset:], offset)
	binary.LittleEndian.PutUint32(r.static[f.Offset+4:], length)
	r.tail = append(r.tail, data...)
	r.setValid(i)
}

func (r *Row) getVariadic(i int) []byte {
	f := r.field(i)
	offset := binary.LittleEndian.Uint32(r.static[f.Offset:])
	length := binary.LittleEndian.Uint32(r.static[f.Offset+4:])
	return r.tail[offset : offset+length]
}

func (r *Row) SetText(i int, v string)    { r.setVariadic(i, []byte(v)) }
func (r *Row) GetText(i int) string       { return string(r.getVariadic(i)) }
func (r *Row) TryGetText(i int) (string, bool) {
	if !r.IsDefined(i) {
		return "", false
	}
	return r.GetText(i), true
}

func (r *Row) SetBlob(i int, v []byte) { r.setVariadic(i, v) }
func (r *Row) GetBlob(i int) []byte    { return r.getVariadic(i) }

// SetBigInt stores an arbitrary-precision integer as a sign byte (0 for
// non-negative, 1 for negative) followed by the big-endian magnitude.
func (r *Row) SetBigInt(i int, negative bool, magnitude []byte) {
	sign := byte(0)
	if negative {
		sign = 1
	}
	r.setVariadic(i, append([]byte{sign}, magnitude...))
}
func (r *Row) GetBigInt(i int) (negative bool, magnitude []byte) {
	raw := r.getVariadic(i)
	return raw[0] == 1, raw[1:]
}

// SetDecimal stores an arbitrary-precision decimal in its implementation
// defined text form (the storage core treats it as an opaque payload).
func (r *Row) SetDecimal(i int, text string) { r.setVariadic(i, []byte(text)) }
func (r *Row) GetDecimal(i int) string       { return string(r.getVariadic(i)) }

// Undefine clears field i's validity bit without touching its bytes.
func (r *Row) Undefine(i int) { r.clearValid(i) }

// --- wire format ---

// Encode serializes the row to its durable wire format: an 8-byte
// fingerprint, the validity header, the static section, and the variadic
// tail, in that order.
func (r *Row) Encode() []byte {
	out := make([]byte, 8+len(r.header)+len(r.static)+len(r.tail))
	binary.BigEndian.PutUint64(out[0:8], r.layout.Fingerprint)
	n := 8
	n += copy(out[n:], r.header)
	n += copy(out[n:], r.static)
	copy(out[n:], r.tail)
	return out
}

// DecodeRow parses a row previously produced by Encode, verifying that its
// fingerprint matches the supplied layout.
func DecodeRow(layout *Layout, data []byte) (*Row, error) {
	if len(data) < 8 {
		return nil, errs.New(errs.ClassInvariant, errs.SerTruncated, "row blob shorter than fingerprint")
	}
	fingerprint := binary.BigEndian.Uint64(data[0:8])
	if fingerprint != layout.Fingerprint {
		return nil, errs.New(errs.ClassInvariant, errs.SerFingerprint, "row fingerprint does not match layout")
	}
	n := 8
	headerEnd := n + int(layout.HeaderSize)
	staticEnd := headerEnd + int(layout.StaticSize)
	if staticEnd > len(data) {
		return nil, errs.New(errs.ClassInvariant, errs.SerTruncated, "row blob shorter than header+static section")
	}
	r := &Row{
		layout: layout,
		header: append([]byte(nil), data[n:headerEnd]...),
		static: append([]byte(nil), data[headerEnd:staticEnd]...),
		tail:   append([]byte(nil), data[staticEnd:]...),
	}
	return r, nil
}

// Layout returns the Layout this row was allocated against.
func (r *Row) Layout() *Layout { return r.layout }
