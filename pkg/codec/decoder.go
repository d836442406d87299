package codec

import (
	"bytes"
	"fmt"
	"math"
	"strconv"
)

// Decode decodes payload as one value of shape. The whole payload is the
// record's budget: reading past it fails with ErrBudgetExceeded, and bytes
// left over once the shape is complete fail with ErrSchemaMismatch.
func Decode(payload []byte, shape *Shape) (*Struct, error) {
	if shape == nil {
		return nil, &DecodeError{Err: fmt.Errorf("%w: nil shape", ErrUnsupportedShape)}
	}
	if uint64(len(payload)) > math.MaxUint32 {
		return nil, &DecodeError{Path: shape.Name, Err: fmt.Errorf("%w: payload of %d bytes", ErrBudgetExceeded, len(payload))}
	}

	c := NewCursor(bytes.NewReader(payload), uint32(len(payload)))
	s, err := DecodeStruct(c, shape)
	if err != nil {
		return nil, err
	}
	if !c.Exhausted() {
		return nil, &DecodeError{
			Path: shape.Name,
			Err:  fmt.Errorf("%w: %d trailing bytes not described by the shape", ErrSchemaMismatch, c.Remaining()),
		}
	}
	return s, nil
}

// DecodeStruct decodes the fields of shape in declared order from c.
// Errors carry the field path, rooted at the shape name.
func DecodeStruct(c *Cursor, shape *Shape) (*Struct, error) {
	if shape == nil {
		return nil, &DecodeError{Err: fmt.Errorf("%w: nil shape", ErrUnsupportedShape)}
	}
	s, err := decodeFields(c, shape)
	if err != nil {
		return nil, withPath(err, shape.Name)
	}
	return s, nil
}

func decodeFields(c *Cursor, shape *Shape) (*Struct, error) {
	values := make([]any, len(shape.Fields))
	for i, f := range shape.Fields {
		v, err := decodeValue(c, f.Type)
		if err != nil {
			return nil, withPath(err, f.Name)
		}
		values[i] = v
	}
	return &Struct{shape: shape, values: values}, nil
}

// DecodeValue decodes a single value of type t from c.
func DecodeValue(c *Cursor, t Type) (any, error) {
	v, err := decodeValue(c, t)
	if err != nil {
		if _, ok := err.(*DecodeError); !ok {
			err = &DecodeError{Err: err}
		}
		return nil, err
	}
	return v, nil
}

func decodeValue(c *Cursor, t Type) (any, error) {
	if err := t.validate(); err != nil {
		return nil, err
	}

	switch t.Kind {
	case KindBool:
		return c.ReadBool()
	case KindInt8:
		return c.ReadInt8()
	case KindUint8:
		return c.ReadUint8()
	case KindInt16:
		return c.ReadInt16()
	case KindUint16:
		return c.ReadUint16()
	case KindInt32:
		return c.ReadInt32()
	case KindUint32:
		return c.ReadUint32()
	case KindInt64:
		return c.ReadInt64()
	case KindUint64:
		return c.ReadUint64()
	case KindFloat32:
		return c.ReadFloat32()
	case KindFloat64:
		return c.ReadFloat64()
	case KindString:
		return c.ReadString()
	case KindTime:
		return c.ReadTime()
	case KindDuration:
		return c.ReadDuration()
	case KindStruct:
		return decodeFields(c, t.Shape)
	case KindSequence:
		n, err := c.ReadLength()
		if err != nil {
			return nil, err
		}
		// zero-width elements never charge the budget, so their count may
		// not exceed the bytes still left in the record
		if n > c.Remaining() && minSize(*t.Elem) == 0 {
			return nil, fmt.Errorf("%w: %d zero-width elements with %d bytes left", ErrBudgetExceeded, n, c.Remaining())
		}
		return decodeElements(c, *t.Elem, n)
	case KindArray:
		if uint64(t.Len) > math.MaxUint32 {
			return nil, fmt.Errorf("%w: array length %d", ErrUnsupportedShape, t.Len)
		}
		return decodeElements(c, *t.Elem, uint32(t.Len))
	}
	return nil, fmt.Errorf("%w: field kind %s", ErrUnsupportedShape, t.Kind)
}

// decodeElements decodes n consecutive values of elem. Primitive elements
// land in a typed slice; everything else in []*Struct, []string or []any.
func decodeElements(c *Cursor, elem Type, n uint32) (any, error) {
	if err := elem.validate(); err != nil {
		return nil, err
	}

	switch elem.Kind {
	case KindUint8:
		// one reservation covers the whole run
		return c.ReadBytes(n)
	case KindBool:
		return readElements(c, n, 1, c.ReadBool)
	case KindInt8:
		return readElements(c, n, 1, c.ReadInt8)
	case KindInt16:
		return readElements(c, n, 2, c.ReadInt16)
	case KindUint16:
		return readElements(c, n, 2, c.ReadUint16)
	case KindInt32:
		return readElements(c, n, 4, c.ReadInt32)
	case KindUint32:
		return readElements(c, n, 4, c.ReadUint32)
	case KindInt64:
		return readElements(c, n, 8, c.ReadInt64)
	case KindUint64:
		return readElements(c, n, 8, c.ReadUint64)
	case KindFloat32:
		return readElements(c, n, 4, c.ReadFloat32)
	case KindFloat64:
		return readElements(c, n, 8, c.ReadFloat64)
	case KindTime:
		return readElements(c, n, 8, c.ReadTime)
	case KindDuration:
		return readElements(c, n, 8, c.ReadDuration)
	case KindString:
		// smallest string is its 4-byte prefix
		return readElements(c, n, 4, c.ReadString)
	case KindStruct:
		return readElements(c, n, minSize(elem), func() (*Struct, error) {
			return decodeFields(c, elem.Shape)
		})
	default:
		return readElements(c, n, minSize(elem), func() (any, error) {
			return decodeValue(c, elem)
		})
	}
}

// readElements calls read n times. Each read charges the budget itself, so
// an oversized count fails on the first element that does not fit.
func readElements[T any](c *Cursor, n, elemSize uint32, read func() (T, error)) ([]T, error) {
	out := make([]T, 0, capacityFor(c, n, elemSize))
	for i := uint32(0); i < n; i++ {
		v, err := read()
		if err != nil {
			return nil, withPath(err, "["+strconv.FormatUint(uint64(i), 10)+"]")
		}
		out = append(out, v)
	}
	return out, nil
}

// capacityFor bounds preallocation by what the remaining budget could hold.
func capacityFor(c *Cursor, n, elemSize uint32) int {
	if elemSize == 0 {
		elemSize = 1
	}
	if most := c.Remaining() / elemSize; n > most {
		return int(most)
	}
	return int(n)
}

// minSize is the fewest bytes a value of t occupies on the wire, saturating
// at math.MaxUint32.
func minSize(t Type) uint32 {
	return uint32(minWireSize(t, nil))
}

func minWireSize(t Type, seen map[*Shape]bool) uint64 {
	if size := t.Kind.Size(); size > 0 {
		return uint64(size)
	}
	switch t.Kind {
	case KindString, KindSequence:
		return 4
	case KindArray:
		if t.Elem == nil || t.Len <= 0 {
			return 0
		}
		elem := minWireSize(*t.Elem, seen)
		if elem > 0 && uint64(t.Len) > math.MaxUint32/elem {
			return math.MaxUint32
		}
		return uint64(t.Len) * elem
	case KindStruct:
		if t.Shape == nil || seen[t.Shape] {
			return 0
		}
		if seen == nil {
			seen = map[*Shape]bool{}
		}
		seen[t.Shape] = true
		defer delete(seen, t.Shape)

		var total uint64
		for _, f := range t.Shape.Fields {
			if total += minWireSize(f.Type, seen); total >= math.MaxUint32 {
				return math.MaxUint32
			}
		}
		return total
	}
	return 0
}
