package msgs

import "github.com/ssargent/unbag/pkg/codec"

var (
	// Vector3Shape is geometry_msgs/Vector3.
	Vector3Shape = codec.NewShape("geometry_msgs/Vector3",
		codec.Field{Name: "x", Type: codec.Float64},
		codec.Field{Name: "y", Type: codec.Float64},
		codec.Field{Name: "z", Type: codec.Float64},
	)

	// QuaternionShape is geometry_msgs/Quaternion.
	QuaternionShape = codec.NewShape("geometry_msgs/Quaternion",
		codec.Field{Name: "x", Type: codec.Float64},
		codec.Field{Name: "y", Type: codec.Float64},
		codec.Field{Name: "z", Type: codec.Float64},
		codec.Field{Name: "w", Type: codec.Float64},
	)
)

type Vector3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

func (v *Vector3) Schema() string {
	return Vector3Shape.Name
}

func (v *Vector3) Struct() *codec.Struct {
	return mustStruct(Vector3Shape, v.X, v.Y, v.Z)
}

func bindVector3(s *codec.Struct) (*Vector3, error) {
	f := fields{s: s}
	v := &Vector3{X: f.float64("x"), Y: f.float64("y"), Z: f.float64("z")}
	if f.err != nil {
		return nil, f.err
	}
	return v, nil
}

type Quaternion struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
	W float64 `json:"w"`
}

func (q *Quaternion) Schema() string {
	return QuaternionShape.Name
}

func (q *Quaternion) Struct() *codec.Struct {
	return mustStruct(QuaternionShape, q.X, q.Y, q.Z, q.W)
}

func bindQuaternion(s *codec.Struct) (*Quaternion, error) {
	f := fields{s: s}
	q := &Quaternion{X: f.float64("x"), Y: f.float64("y"), Z: f.float64("z"), W: f.float64("w")}
	if f.err != nil {
		return nil, f.err
	}
	return q, nil
}
