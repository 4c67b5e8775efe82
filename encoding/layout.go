package encoding

import (
	"encoding/binary"
	"hash/fnv"
)

// Type enumerates every physical type a row field can hold:
// fixed-width booleans/integers/floats/temporal/UUID values in the static
// section, and variable-length text/blob/arbitrary-precision values
// addressed by an (offset, length) pair into the variadic tail.
type Type uint8

const (
	TypeBool Type = iota + 1
	TypeInt8
	TypeInt16
	TypeInt32
	TypeInt64
	TypeInt128
	TypeUint8
	TypeUint16
	TypeUint32
	TypeUint64
	TypeUint128
	TypeFloat32
	TypeFloat64
	TypeDate     // days since epoch, stored as int32
	TypeTime     // nanoseconds since midnight, stored as int64
	TypeDuration // nanoseconds, stored as int64
	TypeUUID     // 128-bit, github.com/google/uuid layout
	TypeText     // variadic: UTF-8
	TypeBlob     // variadic: arbitrary bytes
	TypeBigInt   // variadic: arbitrary-precision integer, big-endian magnitude + sign byte
	TypeDecimal  // variadic: arbitrary-precision decimal, implementation-defined text form
)

// IsVariadic reports whether values of t live in the variadic tail (and
// therefore occupy an (offset, length) pair in the static section) rather
// than being stored inline.
func (t Type) IsVariadic() bool {
	switch t {
	case TypeText, TypeBlob, TypeBigInt, TypeDecimal:
		return true
	default:
		return false
	}
}

// staticSize returns the number of bytes t occupies in the static section:
// its natural width for fixed types, or 8 bytes (4-byte offset + 4-byte
// length) for variadic types.
func (t Type) staticSize() uint16 {
	switch t {
	case TypeBool, TypeInt8, TypeUint8:
		return 1
	case TypeInt16, TypeUint16:
		return 2
	case TypeInt32, TypeUint32, TypeFloat32, TypeDate:
		return 4
	case TypeInt64, TypeUint64, TypeFloat64, TypeTime, TypeDuration:
		return 8
	case TypeInt128, TypeUint128, TypeUUID:
		return 16
	case TypeText, TypeBlob, TypeBigInt, TypeDecimal:
		return 8 // (offset uint32, length uint32)
	default:
		return 0
	}
}

func (t Type) align() uint16 {
	size := t.staticSize()
	switch {
	case size >= 8:
		return 8
	case size >= 4:
		return 4
	case size >= 2:
		return 2
	default:
		return 1
	}
}

// Field describes one column of a Layout: its name (present for Named
// layouts, empty for Anonymous ones), type, and precomputed position.
type Field struct {
	Name   string
	Type   Type
	Offset uint16
	Size   uint16
}

// Layout precomputes the static geometry of a row: per-field offsets, the
// total static section size, the validity-bitmap header size, and a
// fingerprint identifying the exact field list so a decoder can recognize
// mismatched layouts (the layout's schema fingerprint).
type Layout struct {
	Fields      []Field
	HeaderSize  uint16
	StaticSize  uint16
	Named       bool
	Fingerprint uint64
}

func align(offset, alignment uint16) uint16 {
	if alignment == 0 {
		return offset
	}
	rem := offset % alignment
	if rem == 0 {
		return offset
	}
	return offset + (alignment - rem)
}

// NewAnonymousLayout builds a Layout addressed purely by field index, used
// for internal metadata blobs that never cross into the query engine.
func NewAnonymousLayout(types []Type) *Layout {
	fields := make([]Field, len(types))
	for i, t := range types {
		fields[i] = Field{Type: t}
	}
	return newLayout(fields, false)
}

// NamedField pairs a field name with its type, for layouts exchanged with
// the query engine.
type NamedField struct {
	Name string
	Type Type
}

// NewNamedLayout builds a Layout whose fields are addressable by name in
// addition to index.
func NewNamedLayout(fields []NamedField) *Layout {
	out := make([]Field, len(fields))
	for i, f := range fields {
		out[i] = Field{Name: f.Name, Type: f.Type}
	}
	return newLayout(out, true)
}

func newLayout(fields []Field, named bool) *Layout {
	headerSize := uint16((len(fields) + 7) / 8)
	offset := uint16(0)
	maxAlign := uint16(1)
	for i := range fields {
		a := fields[i].Type.align()
		if a > maxAlign {
			maxAlign = a
		}
		offset = align(offset, a)
		fields[i].Offset = offset
		fields[i].Size = fields[i].Type.staticSize()
		offset += fields[i].Size
	}
	staticSize := align(offset, maxAlign)

	l := &Layout{
		Fields:     fields,
		HeaderSize: headerSize,
		StaticSize: staticSize,
		Named:      named,
	}
	l.Fingerprint = l.computeFingerprint()
	return l
}

func (l *Layout) computeFingerprint() uint64 {
	h := fnv.New64a()
	var b [2]byte
	for _, f := range l.Fields {
		_, _ = h.Write([]byte{byte(f.Type)})
		binary.BigEndian.PutUint16(b[:], f.Offset)
		_, _ = h.Write(b[:])
		if l.Named {
			_, _ = h.Write([]byte(f.Name))
		}
	}
	return h.Sum64()
}

// FieldIndex returns the index of the named field, or -1 if absent.
func (l *Layout) FieldIndex(name string) int {
	for i, f := range l.Fields {
		if f.Name == name {
			return i
		}
	}
	return -1
}
