package codec

import (
	"fmt"
	"strings"
)

// Kind identifies how a field is laid out on the wire.
type Kind uint8

const (
	KindInvalid Kind = iota
	KindBool
	KindInt8
	KindUint8
	KindInt16
	KindUint16
	KindInt32
	KindUint32
	KindInt64
	KindUint64
	KindFloat32
	KindFloat64
	KindString
	KindTime
	KindDuration
	KindStruct
	KindSequence
	KindArray

	// Declared so shapes can describe them, but not decodable.
	KindChar
	KindBytes
	KindOptional
	KindMap
	KindUnion
)

var kindNames = [...]string{
	KindInvalid:  "invalid",
	KindBool:     "bool",
	KindInt8:     "int8",
	KindUint8:    "uint8",
	KindInt16:    "int16",
	KindUint16:   "uint16",
	KindInt32:    "int32",
	KindUint32:   "uint32",
	KindInt64:    "int64",
	KindUint64:   "uint64",
	KindFloat32:  "float32",
	KindFloat64:  "float64",
	KindString:   "string",
	KindTime:     "time",
	KindDuration: "duration",
	KindStruct:   "struct",
	KindSequence: "sequence",
	KindArray:    "array",
	KindChar:     "char",
	KindBytes:    "bytes",
	KindOptional: "optional",
	KindMap:      "map",
	KindUnion:    "union",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", k)
}

// Size returns the fixed wire width of a primitive kind, or 0 for kinds
// whose width depends on the data.
func (k Kind) Size() uint32 {
	switch k {
	case KindBool, KindInt8, KindUint8:
		return 1
	case KindInt16, KindUint16:
		return 2
	case KindInt32, KindUint32, KindFloat32:
		return 4
	case KindInt64, KindUint64, KindFloat64, KindTime, KindDuration:
		return 8
	default:
		return 0
	}
}

// Supported reports whether the decoder implements k.
func (k Kind) Supported() bool {
	return k > KindInvalid && k <= KindArray
}

// Type describes one field's wire layout. Elem is set for sequences and
// arrays, Len for arrays, Shape for structs.
type Type struct {
	Kind  Kind
	Elem  *Type
	Len   int
	Shape *Shape
}

// Primitive types.
var (
	Bool      = Type{Kind: KindBool}
	Int8      = Type{Kind: KindInt8}
	Uint8     = Type{Kind: KindUint8}
	Int16     = Type{Kind: KindInt16}
	Uint16    = Type{Kind: KindUint16}
	Int32     = Type{Kind: KindInt32}
	Uint32    = Type{Kind: KindUint32}
	Int64     = Type{Kind: KindInt64}
	Uint64    = Type{Kind: KindUint64}
	Float32   = Type{Kind: KindFloat32}
	Float64   = Type{Kind: KindFloat64}
	String    = Type{Kind: KindString}
	TimeT     = Type{Kind: KindTime}
	DurationT = Type{Kind: KindDuration}
)

// SequenceOf returns a length-prefixed sequence of elem.
func SequenceOf(elem Type) Type {
	return Type{Kind: KindSequence, Elem: &elem}
}

// ArrayOf returns a fixed-length array of n elems. Arrays carry no length prefix.
func ArrayOf(elem Type, n int) Type {
	return Type{Kind: KindArray, Elem: &elem, Len: n}
}

// StructOf returns a nested struct field of the given shape.
func StructOf(s *Shape) Type {
	return Type{Kind: KindStruct, Shape: s}
}

func (t Type) String() string {
	switch t.Kind {
	case KindSequence:
		if t.Elem != nil {
			return t.Elem.String() + "[]"
		}
	case KindArray:
		if t.Elem != nil {
			return fmt.Sprintf("%s[%d]", t.Elem.String(), t.Len)
		}
	case KindStruct:
		if t.Shape != nil {
			return t.Shape.Name
		}
	}
	return t.Kind.String()
}

// validate checks that t is decodable.
func (t Type) validate() error {
	if !t.Kind.Supported() {
		return fmt.Errorf("%w: field kind %s", ErrUnsupportedShape, t.Kind)
	}
	switch t.Kind {
	case KindStruct:
		if t.Shape == nil {
			return fmt.Errorf("%w: struct field without shape", ErrUnsupportedShape)
		}
	case KindSequence, KindArray:
		if t.Elem == nil {
			return fmt.Errorf("%w: %s field without element type", ErrUnsupportedShape, t.Kind)
		}
		if t.Kind == KindArray && t.Len < 0 {
			return fmt.Errorf("%w: negative array length %d", ErrUnsupportedShape, t.Len)
		}
	}
	return nil
}

// Field is one named, typed member of a shape.
type Field struct {
	Name string
	Type Type
}

// Shape is an ordered field list. Field order is wire order.
type Shape struct {
	Name   string
	Fields []Field
	index  map[string]int
}

// NewShape declares a shape.
func NewShape(name string, fields ...Field) *Shape {
	s := &Shape{Name: name, Fields: fields, index: make(map[string]int, len(fields))}
	for i, f := range fields {
		s.index[f.Name] = i
	}
	return s
}

// FieldIndex returns the position of the named field.
func (s *Shape) FieldIndex(name string) (int, bool) {
	if s.index == nil {
		for i, f := range s.Fields {
			if f.Name == name {
				return i, true
			}
		}
		return 0, false
	}
	i, ok := s.index[name]
	return i, ok
}

// Validate walks the shape and reports the first field the decoder cannot handle.
func (s *Shape) Validate() error {
	if err := s.validateFields(map[*Shape]bool{}); err != nil {
		return withPath(err, s.Name)
	}
	return nil
}

func (s *Shape) validateFields(seen map[*Shape]bool) error {
	if seen[s] {
		return fmt.Errorf("%w: recursive shape %s", ErrUnsupportedShape, s.Name)
	}
	seen[s] = true
	defer delete(seen, s)

	names := make(map[string]bool, len(s.Fields))
	for _, f := range s.Fields {
		if names[f.Name] {
			return fmt.Errorf("%w: duplicate field %q", ErrUnsupportedShape, f.Name)
		}
		names[f.Name] = true
		if err := validateType(f.Type, seen); err != nil {
			return withPath(err, f.Name)
		}
	}
	return nil
}

func validateType(t Type, seen map[*Shape]bool) error {
	if err := t.validate(); err != nil {
		return err
	}
	switch t.Kind {
	case KindStruct:
		return t.Shape.validateFields(seen)
	case KindSequence, KindArray:
		return validateType(*t.Elem, seen)
	}
	return nil
}

// String renders the shape like a message definition.
func (s *Shape) String() string {
	var b strings.Builder
	for _, f := range s.Fields {
		fmt.Fprintf(&b, "%s %s\n", f.Type, f.Name)
	}
	return b.String()
}
