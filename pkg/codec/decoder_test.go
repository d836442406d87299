package codec

import (
	"bytes"
	"encoding/binary"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	testPointShape = NewShape("test/Point",
		Field{Name: "name", Type: String},
		Field{Name: "offset", Type: Uint32},
		Field{Name: "datatype", Type: Uint8},
		Field{Name: "count", Type: Uint32},
	)

	testAllShape = NewShape("test/All",
		Field{Name: "flag", Type: Bool},
		Field{Name: "i8", Type: Int8},
		Field{Name: "u8", Type: Uint8},
		Field{Name: "i16", Type: Int16},
		Field{Name: "u16", Type: Uint16},
		Field{Name: "i32", Type: Int32},
		Field{Name: "u32", Type: Uint32},
		Field{Name: "i64", Type: Int64},
		Field{Name: "u64", Type: Uint64},
		Field{Name: "f32", Type: Float32},
		Field{Name: "f64", Type: Float64},
		Field{Name: "label", Type: String},
		Field{Name: "stamp", Type: TimeT},
		Field{Name: "timeout", Type: DurationT},
		Field{Name: "origin", Type: StructOf(testPointShape)},
		Field{Name: "points", Type: SequenceOf(StructOf(testPointShape))},
		Field{Name: "data", Type: SequenceOf(Uint8)},
		Field{Name: "covariance", Type: ArrayOf(Float64, 3)},
		Field{Name: "tags", Type: SequenceOf(String)},
		Field{Name: "grid", Type: SequenceOf(SequenceOf(Int16))},
	)
)

func newPoint(t *testing.T, name string, offset uint32, datatype uint8, count uint32) *Struct {
	t.Helper()
	s, err := NewStruct(testPointShape, name, offset, datatype, count)
	require.NoError(t, err)
	return s
}

func newAll(t *testing.T) *Struct {
	t.Helper()
	s, err := NewStruct(testAllShape,
		true, int8(-5), uint8(200), int16(-300), uint16(60000), int32(-70000), uint32(4000000000),
		int64(-1<<40), uint64(1<<63), float32(3.5), -1.125,
		"lidar_top",
		Time{Sec: 1700000000, Nsec: 42},
		Duration{Sec: -2, Nsec: 5},
		newPoint(t, "origin", 0, 7, 1),
		[]*Struct{newPoint(t, "x", 0, 7, 1), newPoint(t, "y", 4, 7, 1), newPoint(t, "z", 8, 7, 1)},
		[]byte{1, 2, 3, 4, 5},
		[]float64{0.1, 0.2, 0.3},
		[]string{"a", "", "ccc"},
		[]any{[]int16{1, -1}, []int16{}},
	)
	require.NoError(t, err)
	return s
}

func TestDecode_RoundTrip(t *testing.T) {
	original := newAll(t)

	payload, err := Encode(original)
	require.NoError(t, err)

	decoded, err := Decode(payload, testAllShape)
	require.NoError(t, err)
	assert.Equal(t, original.Map(), decoded.Map())

	// and through a cursor, checking exhaustion directly
	c := NewCursor(bytes.NewReader(payload), uint32(len(payload)))
	_, err = DecodeStruct(c, testAllShape)
	require.NoError(t, err)
	assert.True(t, c.Exhausted())

	again, err := Encode(decoded)
	require.NoError(t, err)
	assert.Equal(t, payload, again)
}

func TestDecode_TrailingByteIsSchemaMismatch(t *testing.T) {
	payload, err := Encode(newPoint(t, "x", 0, 7, 1))
	require.NoError(t, err)

	s, err := Decode(append(payload, 0x00), testPointShape)
	assert.Nil(t, s)
	require.ErrorIs(t, err, ErrSchemaMismatch)

	var de *DecodeError
	require.True(t, errors.As(err, &de))
	assert.Equal(t, "test/Point", de.Path)
}

func TestDecode_TruncationNeverReturnsPartialValue(t *testing.T) {
	payload, err := Encode(newAll(t))
	require.NoError(t, err)

	for n := 0; n < len(payload); n++ {
		s, err := Decode(payload[:n], testAllShape)
		assert.Nil(t, s, "prefix of %d bytes", n)
		require.Error(t, err, "prefix of %d bytes", n)
		assert.True(t, errors.Is(err, ErrBudgetExceeded) || errors.Is(err, ErrIO),
			"prefix of %d bytes: unexpected error %v", n, err)
	}
}

func TestDecode_TruncatedSourceWithIntactBudget(t *testing.T) {
	payload, err := Encode(newPoint(t, "x", 0, 7, 1))
	require.NoError(t, err)

	// the budget claims the full record but the source is cut short
	c := NewCursor(bytes.NewReader(payload[:len(payload)-2]), uint32(len(payload)))
	_, err = DecodeStruct(c, testPointShape)
	assert.ErrorIs(t, err, ErrIO)
}

func TestDecode_EmptySequence(t *testing.T) {
	shape := NewShape("test/Seq",
		Field{Name: "points", Type: SequenceOf(StructOf(testPointShape))},
		Field{Name: "data", Type: SequenceOf(Uint8)},
		Field{Name: "values", Type: SequenceOf(Float32)},
	)
	payload := make([]byte, 12) // three zero counts

	s, err := Decode(payload, shape)
	require.NoError(t, err)

	points, err := s.Structs("points")
	require.NoError(t, err)
	assert.NotNil(t, points)
	assert.Empty(t, points)

	data, err := s.Bytes("data")
	require.NoError(t, err)
	assert.NotNil(t, data)
	assert.Empty(t, data)

	values, ok := s.Value("values")
	require.True(t, ok)
	assert.Equal(t, []float32{}, values)
}

func TestDecode_OversizedCountFailsOnElements(t *testing.T) {
	testCases := []struct {
		name string
		elem Type
	}{
		{name: "bytes", elem: Uint8},
		{name: "floats", elem: Float64},
		{name: "structs", elem: StructOf(testPointShape)},
		{name: "strings", elem: String},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			shape := NewShape("test/Big", Field{Name: "items", Type: SequenceOf(tc.elem)})
			payload := binary.LittleEndian.AppendUint32(nil, 0xFFFFFFF0)
			payload = append(payload, 0, 0, 0, 0)

			s, err := Decode(payload, shape)
			assert.Nil(t, s)
			assert.ErrorIs(t, err, ErrBudgetExceeded)
		})
	}
}

func TestDecode_FixedArrayHasNoPrefix(t *testing.T) {
	shape := NewShape("test/Array", Field{Name: "rgb", Type: ArrayOf(Uint8, 3)}, Field{Name: "w", Type: ArrayOf(Int32, 2)})
	payload := []byte{10, 20, 30}
	payload = binary.LittleEndian.AppendUint32(payload, uint32(0xFFFFFFFF))
	payload = binary.LittleEndian.AppendUint32(payload, 9)

	s, err := Decode(payload, shape)
	require.NoError(t, err)

	rgb, err := s.Bytes("rgb")
	require.NoError(t, err)
	assert.Equal(t, []byte{10, 20, 30}, rgb)

	w, ok := s.Value("w")
	require.True(t, ok)
	assert.Equal(t, []int32{-1, 9}, w)
}

func TestDecode_ErrorPath(t *testing.T) {
	shape := NewShape("test/Cloud",
		Field{Name: "fields", Type: SequenceOf(StructOf(testPointShape))},
	)
	good, err := Encode(newPoint(t, "x", 0, 7, 1))
	require.NoError(t, err)

	payload := binary.LittleEndian.AppendUint32(nil, 2)
	payload = append(payload, good...)
	// second element: name with invalid utf-8
	payload = binary.LittleEndian.AppendUint32(payload, 1)
	payload = append(payload, 0xFF)
	payload = append(payload, make([]byte, 9)...)

	_, err = Decode(payload, shape)
	require.ErrorIs(t, err, ErrEncoding)

	var de *DecodeError
	require.True(t, errors.As(err, &de))
	assert.Equal(t, "test/Cloud.fields[1].name", de.Path)
	assert.Contains(t, err.Error(), "test/Cloud.fields[1].name")
}

func TestDecode_UnsupportedShapes(t *testing.T) {
	testCases := []struct {
		name string
		typ  Type
	}{
		{name: "char", typ: Type{Kind: KindChar}},
		{name: "bytes blob", typ: Type{Kind: KindBytes}},
		{name: "optional", typ: Type{Kind: KindOptional, Elem: &Uint8}},
		{name: "map", typ: Type{Kind: KindMap}},
		{name: "union", typ: Type{Kind: KindUnion}},
		{name: "invalid", typ: Type{}},
		{name: "struct without shape", typ: Type{Kind: KindStruct}},
		{name: "sequence without element", typ: Type{Kind: KindSequence}},
		{name: "negative array", typ: Type{Kind: KindArray, Elem: &Uint8, Len: -1}},
		{name: "sequence of char", typ: SequenceOf(Type{Kind: KindChar})},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			shape := NewShape("test/Unsupported",
				Field{Name: "before", Type: Uint8},
				Field{Name: "bad", Type: tc.typ},
			)
			// enough bytes that only the shape can be at fault
			payload := append([]byte{1}, binary.LittleEndian.AppendUint32(nil, 1)...)
			payload = append(payload, 0, 0, 0, 0)

			s, err := Decode(payload, shape)
			assert.Nil(t, s)
			require.ErrorIs(t, err, ErrUnsupportedShape)
			assert.Contains(t, err.Error(), "test/Unsupported.bad")

			assert.ErrorIs(t, shape.Validate(), ErrUnsupportedShape)
		})
	}
}

func TestDecodeValue_Primitive(t *testing.T) {
	c := NewCursor(bytes.NewReader([]byte{0x34, 0x12}), 2)
	v, err := DecodeValue(c, Uint16)
	require.NoError(t, err)
	assert.Equal(t, uint16(0x1234), v)

	_, err = DecodeValue(c, Uint8)
	var de *DecodeError
	require.True(t, errors.As(err, &de))
	assert.ErrorIs(t, err, ErrBudgetExceeded)
}

func TestShape_Validate(t *testing.T) {
	t.Run("valid nested shape", func(t *testing.T) {
		assert.NoError(t, testAllShape.Validate())
	})

	t.Run("duplicate field", func(t *testing.T) {
		shape := NewShape("test/Dup", Field{Name: "a", Type: Uint8}, Field{Name: "a", Type: Uint16})
		assert.ErrorIs(t, shape.Validate(), ErrUnsupportedShape)
	})

	t.Run("nested unsupported field reports path", func(t *testing.T) {
		inner := NewShape("test/Inner", Field{Name: "c", Type: Type{Kind: KindChar}})
		outer := NewShape("test/Outer", Field{Name: "items", Type: SequenceOf(StructOf(inner))})

		err := outer.Validate()
		require.ErrorIs(t, err, ErrUnsupportedShape)
		var de *DecodeError
		require.True(t, errors.As(err, &de))
		assert.Equal(t, "test/Outer.items.c", de.Path)
	})

	t.Run("recursive shape", func(t *testing.T) {
		node := &Shape{Name: "test/Node"}
		node.Fields = []Field{{Name: "self", Type: StructOf(node)}}
		assert.ErrorIs(t, node.Validate(), ErrUnsupportedShape)
	})
}

func TestShape_String(t *testing.T) {
	assert.Equal(t, "string name\nuint32 offset\nuint8 datatype\nuint32 count\n", testPointShape.String())
	assert.Equal(t, "test/Point[]", SequenceOf(StructOf(testPointShape)).String())
	assert.Equal(t, "float64[9]", ArrayOf(Float64, 9).String())
}

func TestDecode_ZeroWidthSequenceCountIsBounded(t *testing.T) {
	empty := NewShape("std_msgs/Empty")

	testCases := []struct {
		name    string
		elem    Type
		count   uint32
		tail    int
		wantErr error
	}{
		{name: "empty structs beyond budget", elem: StructOf(empty), count: 20_000_000, wantErr: ErrBudgetExceeded},
		{name: "max count", elem: StructOf(empty), count: math.MaxUint32, wantErr: ErrBudgetExceeded},
		{name: "zero-length arrays", elem: ArrayOf(Float64, 0), count: 1 << 30, wantErr: ErrBudgetExceeded},
		{name: "struct of zero-length array", elem: StructOf(NewShape("test/Pad", Field{Name: "pad", Type: ArrayOf(Uint8, 0)})), count: 5, tail: 4, wantErr: ErrBudgetExceeded},
		{name: "empty structs within budget", elem: StructOf(empty), count: 3, tail: 3},
		{name: "no elements", elem: StructOf(empty), count: 0},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			shape := NewShape("test/Hollow", Field{Name: "items", Type: SequenceOf(tc.elem)})
			payload := binary.LittleEndian.AppendUint32(nil, tc.count)
			payload = append(payload, make([]byte, tc.tail)...)

			c := NewCursor(bytes.NewReader(payload), uint32(len(payload)))
			s, err := DecodeStruct(c, shape)
			if tc.wantErr != nil {
				assert.Nil(t, s)
				require.ErrorIs(t, err, tc.wantErr)
				assert.Contains(t, err.Error(), "test/Hollow.items")
				return
			}
			require.NoError(t, err)
			items, ok := s.Value("items")
			require.True(t, ok)
			assert.Len(t, items, int(tc.count))
		})
	}
}

func TestMinSize(t *testing.T) {
	testCases := []struct {
		name string
		typ  Type
		want uint32
	}{
		{name: "primitive", typ: Float64, want: 8},
		{name: "string", typ: String, want: 4},
		{name: "sequence", typ: SequenceOf(StructOf(testPointShape)), want: 4},
		{name: "struct", typ: StructOf(testPointShape), want: 13},
		{name: "array", typ: ArrayOf(Int16, 3), want: 6},
		{name: "empty struct", typ: StructOf(NewShape("std_msgs/Empty")), want: 0},
		{name: "zero-length array", typ: ArrayOf(String, 0), want: 0},
		{name: "saturates", typ: ArrayOf(ArrayOf(Uint64, 1<<20), 1<<20), want: math.MaxUint32},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, minSize(tc.typ))
		})
	}
}

func TestDecode_NilShape(t *testing.T) {
	s, err := Decode([]byte{1, 2, 3}, nil)
	assert.Nil(t, s)
	assert.ErrorIs(t, err, ErrUnsupportedShape)

	s, err = DecodeStruct(NewCursor(bytes.NewReader(nil), 0), nil)
	assert.Nil(t, s)
	assert.ErrorIs(t, err, ErrUnsupportedShape)

	_, err = Encode(nil)
	assert.ErrorIs(t, err, ErrUnsupportedShape)
}
