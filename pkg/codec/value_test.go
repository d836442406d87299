package codec

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStruct_BindingWidthChecks(t *testing.T) {
	shape := NewShape("test/Widths",
		Field{Name: "small", Type: Uint8},
		Field{Name: "wide", Type: Uint32},
		Field{Name: "negative", Type: Int16},
		Field{Name: "huge", Type: Uint64},
		Field{Name: "ratio", Type: Float32},
		Field{Name: "label", Type: String},
	)
	s, err := NewStruct(shape, uint8(7), uint32(70000), int16(-3), uint64(1<<63), float32(0.5), "x")
	require.NoError(t, err)

	testCases := []struct {
		name    string
		bind    func() (any, error)
		want    any
		wantErr bool
	}{
		{name: "uint8 widens to uint32", bind: func() (any, error) { return s.Uint32("small") }, want: uint32(7)},
		{name: "uint8 widens to int64", bind: func() (any, error) { return s.Int64("small") }, want: int64(7)},
		{name: "uint32 fits uint32", bind: func() (any, error) { return s.Uint32("wide") }, want: uint32(70000)},
		{name: "uint32 does not fit uint16", bind: func() (any, error) { return s.Uint16("wide") }, wantErr: true},
		{name: "negative does not fit unsigned", bind: func() (any, error) { return s.Uint64("negative") }, wantErr: true},
		{name: "negative fits int8", bind: func() (any, error) { return s.Int8("negative") }, want: int8(-3)},
		{name: "uint64 above MaxInt64 does not fit int64", bind: func() (any, error) { return s.Int64("huge") }, wantErr: true},
		{name: "float32 widens to float64", bind: func() (any, error) { return s.Float64("ratio") }, want: 0.5},
		{name: "float32 is not an integer", bind: func() (any, error) { return s.Uint32("ratio") }, wantErr: true},
		{name: "string is not bytes", bind: func() (any, error) { return s.Bytes("label") }, wantErr: true},
		{name: "missing field", bind: func() (any, error) { return s.String("nope") }, wantErr: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := tc.bind()
			if tc.wantErr {
				require.ErrorIs(t, err, ErrSchemaMismatch)
				var de *DecodeError
				require.True(t, errors.As(err, &de))
				assert.Contains(t, de.Path, "test/Widths.")
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestNewStruct_Arity(t *testing.T) {
	_, err := NewStruct(testPointShape, "x", uint32(0))
	assert.ErrorIs(t, err, ErrSchemaMismatch)
}

func TestEncode_WrongValueType(t *testing.T) {
	s, err := NewStruct(testPointShape, "x", 0, uint8(7), uint32(1)) // untyped 0 is an int
	require.NoError(t, err)

	_, err = Encode(s)
	require.ErrorIs(t, err, ErrSchemaMismatch)
	var de *DecodeError
	require.True(t, errors.As(err, &de))
	assert.Equal(t, "test/Point.offset", de.Path)
}

func TestEncode_ArrayLengthMismatch(t *testing.T) {
	shape := NewShape("test/Cov", Field{Name: "covariance", Type: ArrayOf(Float64, 9)})
	s, err := NewStruct(shape, []float64{1, 2, 3})
	require.NoError(t, err)

	_, err = Encode(s)
	assert.ErrorIs(t, err, ErrSchemaMismatch)
}

func TestTimeConversions(t *testing.T) {
	ts := Time{Sec: 1700000000, Nsec: 250}
	assert.Equal(t, time.Unix(1700000000, 250).UTC(), ts.Time())

	d := Duration{Sec: 2, Nsec: 500}
	assert.Equal(t, 2*time.Second+500*time.Nanosecond, d.Duration())
}

func TestStruct_Map(t *testing.T) {
	outer := NewShape("test/Outer",
		Field{Name: "origin", Type: StructOf(testPointShape)},
		Field{Name: "count", Type: Uint16},
	)
	s, err := NewStruct(outer, newPoint(t, "o", 1, 2, 3), uint16(9))
	require.NoError(t, err)

	assert.Equal(t, map[string]any{
		"origin": map[string]any{"name": "o", "offset": uint32(1), "datatype": uint8(2), "count": uint32(3)},
		"count":  uint16(9),
	}, s.Map())
}
