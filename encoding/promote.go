package encoding

import "github.com/reifydb/reifydb/errs"

// SaturationPolicy governs what happens when a value is demoted (narrowed)
// to a type too small to hold it: either the operation errors, or the
// result becomes undefined (NULL).
type SaturationPolicy int

const (
	SaturationError SaturationPolicy = iota
	SaturationUndefined
)

// CastOverflow is raised by Demote under SaturationError when the source
// value does not fit the target type.
const CastOverflow errs.Code = "CAST_001"

func isSignedInt(t Type) bool {
	switch t {
	case TypeInt8, TypeInt16, TypeInt32, TypeInt64, TypeInt128:
		return true
	default:
		return false
	}
}

func isUnsignedInt(t Type) bool {
	switch t {
	case TypeUint8, TypeUint16, TypeUint32, TypeUint64, TypeUint128:
		return true
	default:
		return false
	}
}

func isFloat(t Type) bool {
	return t == TypeFloat32 || t == TypeFloat64
}

// width returns the bit width of a numeric type, used to rank the
// promotion lattice.
func width(t Type) int {
	switch t {
	case TypeInt8, TypeUint8:
		return 8
	case TypeInt16, TypeUint16:
		return 16
	case TypeInt32, TypeUint32, TypeFloat32:
		return 32
	case TypeInt64, TypeUint64, TypeFloat64:
		return 64
	case TypeInt128, TypeUint128:
		return 128
	default:
		return 0
	}
}

// nextWiderSigned returns the smallest signed integer type strictly wider
// than the given width, or TypeInt128 if none is wider.
func nextWiderSigned(w int) Type {
	switch {
	case w < 16:
		return TypeInt16
	case w < 32:
		return TypeInt32
	case w < 64:
		return TypeInt64
	default:
		return TypeInt128
	}
}

// Promote computes the result type of a binary arithmetic operation over
// left and right, following the fixed promotion lattice:
// the wider of two same-signedness types wins outright; a signed/unsigned
// mix of equal width promotes to the next wider signed type (so the
// unsigned operand's full range still fits); float always dominates a
// same-or-narrower-width integer.
func Promote(left, right Type) (Type, error) {
	if !isNumeric(left) || !isNumeric(right) {
		return 0, errs.New(errs.ClassUser, errs.SerUnsupported, "promote: non-numeric operand type")
	}
	if left == right {
		return left, nil
	}
	if isFloat(left) || isFloat(right) {
		if isFloat(left) && isFloat(right) {
			if width(left) >= width(right) {
				return left, nil
			}
			return right, nil
		}
		// float vs integer: float wins if at least as wide, else widen the float.
		floatType, intType := left, right
		if isFloat(right) {
			floatType, intType = right, left
		}
		if width(floatType) >= width(intType) {
			return floatType, nil
		}
		return TypeFloat64, nil
	}
	if isSignedInt(left) && isSignedInt(right) {
		if width(left) >= width(right) {
			return left, nil
		}
		return right, nil
	}
	if isUnsignedInt(left) && isUnsignedInt(right) {
		if width(left) >= width(right) {
			return left, nil
		}
		return right, nil
	}
	// mixed signed/unsigned of possibly differing widths: result must be
	// signed and strictly wide enough to hold the unsigned operand's range.
	signedW, unsignedW := width(left), width(right)
	if isUnsignedInt(left) {
		signedW, unsignedW = width(right), width(left)
	}
	if signedW > unsignedW {
		if isSignedInt(left) {
			return left, nil
		}
		return right, nil
	}
	return nextWiderSigned(unsignedW), nil
}

func isNumeric(t Type) bool {
	return isSignedInt(t) || isUnsignedInt(t) || isFloat(t)
}

// signedBounds returns the inclusive min/max an n-bit signed integer can
// represent.
func signedBounds(widthBits int) (min, max int64) {
	if widthBits >= 64 {
		return -1 << 63, 1<<63 - 1
	}
	max = int64(1)<<(uint(widthBits)-1) - 1
	min = -max - 1
	return min, max
}

// unsignedMax returns the inclusive maximum an n-bit unsigned integer can
// represent.
func unsignedMax(widthBits int) uint64 {
	if widthBits >= 64 {
		return ^uint64(0)
	}
	return 1<<uint(widthBits) - 1
}

// DemoteInt64 narrows v to target, applying policy when v does not fit.
// ok is false (with no error) when policy is SaturationUndefined and v
// overflowed, signalling the caller should store NULL instead.
func DemoteInt64(v int64, target Type, policy SaturationPolicy) (result int64, ok bool, err error) {
	if isSignedInt(target) {
		min, max := signedBounds(width(target))
		if v < min || v > max {
			if policy == SaturationUndefined {
				return 0, false, nil
			}
			return 0, false, errs.New(errs.ClassUser, CastOverflow, "value does not fit target signed type")
		}
		return v, true, nil
	}
	if isUnsignedInt(target) {
		if v < 0 || uint64(v) > unsignedMax(width(target)) {
			if policy == SaturationUndefined {
				return 0, false, nil
			}
			return 0, false, errs.New(errs.ClassUser, CastOverflow, "value does not fit target unsigned type")
		}
		return v, true, nil
	}
	return 0, false, errs.New(errs.ClassUser, errs.SerUnsupported, "demote: non-integer target type")
}
