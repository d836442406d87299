package codec

import (
	"encoding/binary"
	"fmt"
	"math"
	"strconv"
)

// Encode serializes s in the same wire format Decode reads.
func Encode(s *Struct) ([]byte, error) {
	if s == nil || s.shape == nil {
		return nil, &DecodeError{Err: fmt.Errorf("%w: nil struct", ErrUnsupportedShape)}
	}
	buf, err := appendStruct(nil, s.shape, s)
	if err != nil {
		return nil, withPath(err, s.shape.Name)
	}
	return buf, nil
}

// AppendValue appends the encoding of v as type t to buf.
func AppendValue(buf []byte, t Type, v any) ([]byte, error) {
	return appendValue(buf, t, v)
}

func appendStruct(buf []byte, shape *Shape, s *Struct) ([]byte, error) {
	if s == nil {
		return nil, fmt.Errorf("%w: nil %s value", ErrSchemaMismatch, shape.Name)
	}
	if s.shape != shape && len(s.values) != len(shape.Fields) {
		return nil, fmt.Errorf("%w: %s value for %s field", ErrSchemaMismatch, s.shape.Name, shape.Name)
	}

	var err error
	for i, f := range shape.Fields {
		if buf, err = appendValue(buf, f.Type, s.values[i]); err != nil {
			return nil, withPath(err, f.Name)
		}
	}
	return buf, nil
}

func wrongType(v any, t Type) error {
	return fmt.Errorf("%w: cannot encode %T as %s", ErrSchemaMismatch, v, t)
}

func appendValue(buf []byte, t Type, v any) ([]byte, error) {
	if err := t.validate(); err != nil {
		return nil, err
	}

	switch t.Kind {
	case KindBool:
		x, ok := v.(bool)
		if !ok {
			return nil, wrongType(v, t)
		}
		if x {
			return append(buf, 1), nil
		}
		return append(buf, 0), nil
	case KindInt8:
		x, ok := v.(int8)
		if !ok {
			return nil, wrongType(v, t)
		}
		return append(buf, byte(x)), nil
	case KindUint8:
		x, ok := v.(uint8)
		if !ok {
			return nil, wrongType(v, t)
		}
		return append(buf, x), nil
	case KindInt16:
		x, ok := v.(int16)
		if !ok {
			return nil, wrongType(v, t)
		}
		return binary.LittleEndian.AppendUint16(buf, uint16(x)), nil
	case KindUint16:
		x, ok := v.(uint16)
		if !ok {
			return nil, wrongType(v, t)
		}
		return binary.LittleEndian.AppendUint16(buf, x), nil
	case KindInt32:
		x, ok := v.(int32)
		if !ok {
			return nil, wrongType(v, t)
		}
		return binary.LittleEndian.AppendUint32(buf, uint32(x)), nil
	case KindUint32:
		x, ok := v.(uint32)
		if !ok {
			return nil, wrongType(v, t)
		}
		return binary.LittleEndian.AppendUint32(buf, x), nil
	case KindInt64:
		x, ok := v.(int64)
		if !ok {
			return nil, wrongType(v, t)
		}
		return binary.LittleEndian.AppendUint64(buf, uint64(x)), nil
	case KindUint64:
		x, ok := v.(uint64)
		if !ok {
			return nil, wrongType(v, t)
		}
		return binary.LittleEndian.AppendUint64(buf, x), nil
	case KindFloat32:
		x, ok := v.(float32)
		if !ok {
			return nil, wrongType(v, t)
		}
		return binary.LittleEndian.AppendUint32(buf, math.Float32bits(x)), nil
	case KindFloat64:
		x, ok := v.(float64)
		if !ok {
			return nil, wrongType(v, t)
		}
		return binary.LittleEndian.AppendUint64(buf, math.Float64bits(x)), nil
	case KindString:
		x, ok := v.(string)
		if !ok {
			return nil, wrongType(v, t)
		}
		buf, err := appendLength(buf, len(x))
		if err != nil {
			return nil, err
		}
		return append(buf, x...), nil
	case KindTime:
		x, ok := v.(Time)
		if !ok {
			return nil, wrongType(v, t)
		}
		buf = binary.LittleEndian.AppendUint32(buf, x.Sec)
		return binary.LittleEndian.AppendUint32(buf, x.Nsec), nil
	case KindDuration:
		x, ok := v.(Duration)
		if !ok {
			return nil, wrongType(v, t)
		}
		buf = binary.LittleEndian.AppendUint32(buf, uint32(x.Sec))
		return binary.LittleEndian.AppendUint32(buf, uint32(x.Nsec)), nil
	case KindStruct:
		x, ok := v.(*Struct)
		if !ok {
			return nil, wrongType(v, t)
		}
		return appendStruct(buf, t.Shape, x)
	case KindSequence, KindArray:
		return appendElements(buf, t, v)
	}
	return nil, fmt.Errorf("%w: field kind %s", ErrUnsupportedShape, t.Kind)
}

func appendLength(buf []byte, n int) ([]byte, error) {
	if uint64(n) > math.MaxUint32 {
		return nil, fmt.Errorf("%w: length %d does not fit a uint32 prefix", ErrBudgetExceeded, n)
	}
	return binary.LittleEndian.AppendUint32(buf, uint32(n)), nil
}

func appendElements(buf []byte, t Type, v any) ([]byte, error) {
	var elems []any
	raw, bulk := v.([]byte)
	bulk = bulk && t.Elem.Kind == KindUint8
	n := len(raw)
	if !bulk {
		var err error
		if elems, err = elementsOf(*t.Elem, v); err != nil {
			return nil, err
		}
		n = len(elems)
	}

	if t.Kind == KindArray {
		if n != t.Len {
			return nil, fmt.Errorf("%w: array of %d holds %d elements", ErrSchemaMismatch, t.Len, n)
		}
	} else {
		var err error
		if buf, err = appendLength(buf, n); err != nil {
			return nil, err
		}
	}

	if bulk {
		return append(buf, raw...), nil
	}
	var err error
	for i, e := range elems {
		if buf, err = appendValue(buf, *t.Elem, e); err != nil {
			return nil, withPath(err, "["+strconv.Itoa(i)+"]")
		}
	}
	return buf, nil
}

// elementsOf unpacks the typed slices produced by the decoder.
func elementsOf(elem Type, v any) ([]any, error) {
	switch x := v.(type) {
	case []any:
		return x, nil
	case []byte:
		return boxed(x), nil
	case []bool:
		return boxed(x), nil
	case []int8:
		return boxed(x), nil
	case []int16:
		return boxed(x), nil
	case []uint16:
		return boxed(x), nil
	case []int32:
		return boxed(x), nil
	case []uint32:
		return boxed(x), nil
	case []int64:
		return boxed(x), nil
	case []uint64:
		return boxed(x), nil
	case []float32:
		return boxed(x), nil
	case []float64:
		return boxed(x), nil
	case []string:
		return boxed(x), nil
	case []Time:
		return boxed(x), nil
	case []Duration:
		return boxed(x), nil
	case []*Struct:
		return boxed(x), nil
	}
	return nil, fmt.Errorf("%w: cannot encode %T as %s[]", ErrSchemaMismatch, v, elem)
}

func boxed[T any](xs []T) []any {
	out := make([]any, len(xs))
	for i, x := range xs {
		out[i] = x
	}
	return out
}
