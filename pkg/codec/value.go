package codec

import (
	"fmt"
	"math"
	"time"
)

// Time is a ROS time stamp.
type Time struct {
	Sec  uint32 `json:"sec"`
	Nsec uint32 `json:"nsec"`
}

// Time converts t to a time.Time in UTC.
func (t Time) Time() time.Time {
	return time.Unix(int64(t.Sec), int64(t.Nsec)).UTC()
}

// Nanoseconds returns t as nanoseconds since the epoch.
func (t Time) Nanoseconds() uint64 {
	return uint64(t.Sec)*uint64(time.Second) + uint64(t.Nsec)
}

// Duration is a ROS duration.
type Duration struct {
	Sec  int32 `json:"sec"`
	Nsec int32 `json:"nsec"`
}

// Duration converts d to a time.Duration.
func (d Duration) Duration() time.Duration {
	return time.Duration(d.Sec)*time.Second + time.Duration(d.Nsec)
}

// Struct is a decoded value of a shape. Values are held in field order.
type Struct struct {
	shape  *Shape
	values []any
}

// NewStruct builds a struct value. It checks arity only; the encoder
// checks value types when the struct is written.
func NewStruct(shape *Shape, values ...any) (*Struct, error) {
	if len(values) != len(shape.Fields) {
		return nil, fmt.Errorf("%w: %s has %d fields, got %d values",
			ErrSchemaMismatch, shape.Name, len(shape.Fields), len(values))
	}
	return &Struct{shape: shape, values: values}, nil
}

// Shape returns the shape the struct was decoded with.
func (s *Struct) Shape() *Shape {
	return s.shape
}

// Len returns the number of fields.
func (s *Struct) Len() int {
	return len(s.values)
}

// Index returns the i-th field value.
func (s *Struct) Index(i int) any {
	return s.values[i]
}

// Value returns the named field value.
func (s *Struct) Value(name string) (any, bool) {
	i, ok := s.shape.FieldIndex(name)
	if !ok {
		return nil, false
	}
	return s.values[i], true
}

// Map returns the struct as a map, recursing into nested structs. Useful
// for generic rendering of records whose schema has no typed binding.
func (s *Struct) Map() map[string]any {
	out := make(map[string]any, len(s.values))
	for i, f := range s.shape.Fields {
		out[f.Name] = plain(s.values[i])
	}
	return out
}

func plain(v any) any {
	switch x := v.(type) {
	case *Struct:
		return x.Map()
	case []*Struct:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = e.Map()
		}
		return out
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = plain(e)
		}
		return out
	default:
		return v
	}
}

func (s *Struct) lookup(name string) (any, error) {
	v, ok := s.Value(name)
	if !ok {
		return nil, &DecodeError{Path: s.shape.Name + "." + name, Err: fmt.Errorf("%w: no such field", ErrSchemaMismatch)}
	}
	return v, nil
}

func (s *Struct) mismatch(name string, v any, want string) error {
	return &DecodeError{
		Path: s.shape.Name + "." + name,
		Err:  fmt.Errorf("%w: %T value does not fit %s", ErrSchemaMismatch, v, want),
	}
}

// asUint64 widens any integer value. Negative values do not convert.
func asUint64(v any) (uint64, bool) {
	switch x := v.(type) {
	case uint8:
		return uint64(x), true
	case uint16:
		return uint64(x), true
	case uint32:
		return uint64(x), true
	case uint64:
		return x, true
	case int8:
		return uint64(x), x >= 0
	case int16:
		return uint64(x), x >= 0
	case int32:
		return uint64(x), x >= 0
	case int64:
		return uint64(x), x >= 0
	default:
		return 0, false
	}
}

// asInt64 widens any integer value. Unsigned values above MaxInt64 do not convert.
func asInt64(v any) (int64, bool) {
	switch x := v.(type) {
	case int8:
		return int64(x), true
	case int16:
		return int64(x), true
	case int32:
		return int64(x), true
	case int64:
		return x, true
	case uint8:
		return int64(x), true
	case uint16:
		return int64(x), true
	case uint32:
		return int64(x), true
	case uint64:
		return int64(x), x <= math.MaxInt64
	default:
		return 0, false
	}
}

func bindUnsigned[T uint8 | uint16 | uint32 | uint64](s *Struct, name, want string) (T, error) {
	v, err := s.lookup(name)
	if err != nil {
		return 0, err
	}
	u, ok := asUint64(v)
	if !ok || uint64(T(u)) != u {
		return 0, s.mismatch(name, v, want)
	}
	return T(u), nil
}

func bindSigned[T int8 | int16 | int32 | int64](s *Struct, name, want string) (T, error) {
	v, err := s.lookup(name)
	if err != nil {
		return 0, err
	}
	i, ok := asInt64(v)
	if !ok || int64(T(i)) != i {
		return 0, s.mismatch(name, v, want)
	}
	return T(i), nil
}

func bindExact[T any](s *Struct, name, want string) (T, error) {
	var zero T
	v, err := s.lookup(name)
	if err != nil {
		return zero, err
	}
	t, ok := v.(T)
	if !ok {
		return zero, s.mismatch(name, v, want)
	}
	return t, nil
}

func (s *Struct) Uint8(name string) (uint8, error) {
	return bindUnsigned[uint8](s, name, "uint8")
}

func (s *Struct) Uint16(name string) (uint16, error) {
	return bindUnsigned[uint16](s, name, "uint16")
}

func (s *Struct) Uint32(name string) (uint32, error) {
	return bindUnsigned[uint32](s, name, "uint32")
}

func (s *Struct) Uint64(name string) (uint64, error) {
	return bindUnsigned[uint64](s, name, "uint64")
}

func (s *Struct) Int8(name string) (int8, error) {
	return bindSigned[int8](s, name, "int8")
}

func (s *Struct) Int16(name string) (int16, error) {
	return bindSigned[int16](s, name, "int16")
}

func (s *Struct) Int32(name string) (int32, error) {
	return bindSigned[int32](s, name, "int32")
}

func (s *Struct) Int64(name string) (int64, error) {
	return bindSigned[int64](s, name, "int64")
}

func (s *Struct) Float32(name string) (float32, error) {
	return bindExact[float32](s, name, "float32")
}

// Float64 accepts float32 and float64 fields.
func (s *Struct) Float64(name string) (float64, error) {
	v, err := s.lookup(name)
	if err != nil {
		return 0, err
	}
	switch x := v.(type) {
	case float64:
		return x, nil
	case float32:
		return float64(x), nil
	default:
		return 0, s.mismatch(name, v, "float64")
	}
}

func (s *Struct) Bool(name string) (bool, error) {
	return bindExact[bool](s, name, "bool")
}

func (s *Struct) String(name string) (string, error) {
	return bindExact[string](s, name, "string")
}

func (s *Struct) Time(name string) (Time, error) {
	return bindExact[Time](s, name, "time")
}

func (s *Struct) Duration(name string) (Duration, error) {
	return bindExact[Duration](s, name, "duration")
}

func (s *Struct) Struct(name string) (*Struct, error) {
	return bindExact[*Struct](s, name, "struct")
}

func (s *Struct) Structs(name string) ([]*Struct, error) {
	return bindExact[[]*Struct](s, name, "struct[]")
}

// Bytes returns a uint8 sequence or array field.
func (s *Struct) Bytes(name string) ([]byte, error) {
	return bindExact[[]byte](s, name, "uint8[]")
}

func (s *Struct) Float64s(name string) ([]float64, error) {
	return bindExact[[]float64](s, name, "float64[]")
}

func (s *Struct) Strings(name string) ([]string, error) {
	return bindExact[[]string](s, name, "string[]")
}
