// Package sequence implements the single-version typed counters described
// alongside the storage core's data model: a logical name maps to a
// saturating counter of a declared integer width, persisted through the
// single-version side-store rather than the multi-version backend.
package sequence

import (
	"context"
	"fmt"

	"github.com/holiman/uint256"

	"github.com/reifydb/reifydb/encoding"
	"github.com/reifydb/reifydb/errs"
	"github.com/reifydb/reifydb/kv"
)

// Store persists named sequence counters. Values are tracked as a
// non-negative magnitude in a 256-bit integer regardless of the declared
// element type's signedness — a sequence only ever counts up from zero, so
// the element type affects only where saturation kicks in, never how the
// value is represented.
type Store struct {
	backend kv.SingleVersionBackend
}

// NewStore returns a Store persisting through backend.
func NewStore(backend kv.SingleVersionBackend) *Store {
	return &Store{backend: backend}
}

// maxFor returns the inclusive maximum value elemType can hold, expressed
// as a magnitude (a signed type's ceiling is one bit narrower than its
// unsigned counterpart of the same width).
func maxFor(elemType encoding.Type) (*uint256.Int, error) {
	var bits uint
	switch elemType {
	case encoding.TypeInt8:
		bits = 7
	case encoding.TypeUint8:
		bits = 8
	case encoding.TypeInt16:
		bits = 15
	case encoding.TypeUint16:
		bits = 16
	case encoding.TypeInt32:
		bits = 31
	case encoding.TypeUint32:
		bits = 32
	case encoding.TypeInt64:
		bits = 63
	case encoding.TypeUint64:
		bits = 64
	case encoding.TypeInt128:
		bits = 127
	case encoding.TypeUint128:
		bits = 128
	default:
		return nil, errs.New(errs.ClassUser, errs.SerUnsupported, fmt.Sprintf("sequence: unsupported element type %d", elemType))
	}
	max := new(uint256.Int).Lsh(uint256.NewInt(1), bits)
	max.Sub(max, uint256.NewInt(1))
	return max, nil
}

func encodeValue(v *uint256.Int) []byte {
	b := v.Bytes32()
	return b[:]
}

func decodeValue(raw []byte) (*uint256.Int, error) {
	if len(raw) != 32 {
		return nil, errs.New(errs.ClassInvariant, errs.SerDecode, "sequence: corrupt stored counter value")
	}
	v := new(uint256.Int)
	v.SetBytes32(raw)
	return v, nil
}

// Get returns the current value of the named sequence, or ok=false if it
// has never been written.
func (s *Store) Get(ctx context.Context, name string) (*uint256.Int, bool, error) {
	key := encoding.SequenceKey{Name: name}.Encode()
	raw, ok, err := s.backend.Get(ctx, key)
	if err != nil || !ok {
		return nil, ok, err
	}
	v, err := decodeValue(raw)
	return v, true, err
}

// Next atomically reads, saturating-adds one, and writes back the named
// sequence, returning the new value. A sequence at its element type's
// maximum raises SEQUENCE_EXHAUSTED instead of wrapping.
func (s *Store) Next(ctx context.Context, name string, elemType encoding.Type) (*uint256.Int, error) {
	max, err := maxFor(elemType)
	if err != nil {
		return nil, err
	}

	key := encoding.SequenceKey{Name: name}.Encode()
	raw, ok, err := s.backend.Get(ctx, key)
	if err != nil {
		return nil, err
	}

	current := new(uint256.Int)
	if ok {
		current, err = decodeValue(raw)
		if err != nil {
			return nil, err
		}
	}

	next := new(uint256.Int).Add(current, uint256.NewInt(1))
	if next.Cmp(max) > 0 {
		return nil, errs.New(errs.ClassUser, errs.SequenceExhausted, fmt.Sprintf("sequence %q exhausted its range", name))
	}

	if err := s.backend.Put(ctx, key, encodeValue(next)); err != nil {
		return nil, err
	}
	return next, nil
}

// Set overwrites the named sequence's value unconditionally, regardless of
// whether it fits any particular element type's range.
func (s *Store) Set(ctx context.Context, name string, value *uint256.Int) error {
	key := encoding.SequenceKey{Name: name}.Encode()
	return s.backend.Put(ctx, key, encodeValue(value))
}
