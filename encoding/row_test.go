package encoding

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestRowRoundTripFixedFields(t *testing.T) {
	layout := NewNamedLayout([]NamedField{
		{Name: "active", Type: TypeBool},
		{Name: "age", Type: TypeInt32},
		{Name: "balance", Type: TypeFloat64},
		{Name: "id", Type: TypeUUID},
	})

	row := layout.Allocate()
	row.SetBool(0, true)
	row.SetInt32(1, 42)
	row.SetFloat64(2, 3.5)
	u := uuid.New()
	row.SetUUID(3, u)

	decoded, err := DecodeRow(layout, row.Encode())
	require.NoError(t, err)
	require.True(t, decoded.GetBool(0))
	require.EqualValues(t, 42, decoded.GetInt32(1))
	require.InDelta(t, 3.5, decoded.GetFloat64(2), 0.0001)
	require.Equal(t, u, decoded.GetUUID(3))
}

func TestRowUndefinedField(t *testing.T) {
	layout := NewNamedLayout([]NamedField{{Name: "name", Type: TypeText}})
	row := layout.Allocate()
	_, ok := row.TryGetText(0)
	require.False(t, ok)

	row.SetText(0, "hello")
	v, ok := row.TryGetText(0)
	require.True(t, ok)
	require.Equal(t, "hello", v)
}

func TestRowVariadicFields(t *testing.T) {
	layout := NewNamedLayout([]NamedField{
		{Name: "name", Type: TypeText},
		{Name: "payload", Type: TypeBlob},
	})
	row := layout.Allocate()
	row.SetText(0, "widget")
	row.SetBlob(1, []byte{9, 8, 7})

	decoded, err := DecodeRow(layout, row.Encode())
	require.NoError(t, err)
	require.Equal(t, "widget", decoded.GetText(0))
	require.Equal(t, []byte{9, 8, 7}, decoded.GetBlob(1))
}

func TestRowFingerprintMismatchRejected(t *testing.T) {
	a := NewAnonymousLayout([]Type{TypeInt64})
	b := NewAnonymousLayout([]Type{TypeInt64, TypeInt64})

	row := a.Allocate()
	row.SetInt64(0, 7)

	_, err := DecodeRow(b, row.Encode())
	require.Error(t, err)
}

func TestPromoteLattice(t *testing.T) {
	cases := []struct {
		left, right, want Type
	}{
		{TypeInt8, TypeInt16, TypeInt16},
		{TypeInt32, TypeInt32, TypeInt32},
		{TypeUint32, TypeInt32, TypeInt64},
		{TypeFloat32, TypeInt16, TypeFloat32},
		{TypeInt64, TypeFloat64, TypeFloat64},
	}
	for _, c := range cases {
		got, err := Promote(c.left, c.right)
		require.NoError(t, err)
		require.Equalf(t, c.want, got, "promote(%v,%v)", c.left, c.right)
	}
}

func TestDemoteSaturationPolicies(t *testing.T) {
	_, ok, err := DemoteInt64(300, TypeInt8, SaturationError)
	require.Error(t, err)
	require.False(t, ok)

	v, ok, err := DemoteInt64(300, TypeInt8, SaturationUndefined)
	require.NoError(t, err)
	require.False(t, ok)
	require.Zero(t, v)

	v, ok, err = DemoteInt64(100, TypeInt8, SaturationError)
	require.NoError(t, err)
	require.True(t, ok)
	require.EqualValues(t, 100, v)
}
