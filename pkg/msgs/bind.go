package msgs

import "github.com/ssargent/unbag/pkg/codec"

// fields reads struct fields, keeping the first binding error so a typed
// binder can read every field and check once at the end.
type fields struct {
	s   *codec.Struct
	err error
}

func (f *fields) uint8(name string) uint8 {
	if f.err != nil {
		return 0
	}
	v, err := f.s.Uint8(name)
	f.err = err
	return v
}

func (f *fields) uint32(name string) uint32 {
	if f.err != nil {
		return 0
	}
	v, err := f.s.Uint32(name)
	f.err = err
	return v
}

func (f *fields) bool(name string) bool {
	if f.err != nil {
		return false
	}
	v, err := f.s.Bool(name)
	f.err = err
	return v
}

func (f *fields) float64(name string) float64 {
	if f.err != nil {
		return 0
	}
	v, err := f.s.Float64(name)
	f.err = err
	return v
}

func (f *fields) string(name string) string {
	if f.err != nil {
		return ""
	}
	v, err := f.s.String(name)
	f.err = err
	return v
}

func (f *fields) time(name string) codec.Time {
	if f.err != nil {
		return codec.Time{}
	}
	v, err := f.s.Time(name)
	f.err = err
	return v
}

func (f *fields) bytes(name string) []byte {
	if f.err != nil {
		return nil
	}
	v, err := f.s.Bytes(name)
	f.err = err
	return v
}

func (f *fields) child(name string) *codec.Struct {
	if f.err != nil {
		return nil
	}
	v, err := f.s.Struct(name)
	f.err = err
	return v
}

func (f *fields) structs(name string) []*codec.Struct {
	if f.err != nil {
		return nil
	}
	v, err := f.s.Structs(name)
	f.err = err
	return v
}

// covariance reads a float64[9] array.
func (f *fields) covariance(name string) [9]float64 {
	var out [9]float64
	if f.err != nil {
		return out
	}
	v, err := f.s.Float64s(name)
	if err != nil {
		f.err = err
		return out
	}
	copy(out[:], v)
	return out
}

// nested binds a nested struct field with bind.
func nested[T any](f *fields, name string, bind func(*codec.Struct) (T, error)) T {
	var zero T
	s := f.child(name)
	if f.err != nil {
		return zero
	}
	v, err := bind(s)
	if err != nil {
		f.err = err
		return zero
	}
	return v
}
