package msgs

import "github.com/ssargent/unbag/pkg/codec"

// bindAs adapts a typed binder to a Binder.
func bindAs[T Msg](bind func(*codec.Struct) (T, error)) Binder {
	return func(s *codec.Struct) (Msg, error) {
		m, err := bind(s)
		if err != nil {
			return nil, err
		}
		return m, nil
	}
}

func builtins() []Entry {
	return []Entry{
		{Name: HeaderShape.Name, Shape: HeaderShape, Bind: bindAs(bindHeader)},
		{Name: StringShape.Name, Shape: StringShape, Bind: bindAs(bindString)},
		{Name: Vector3Shape.Name, Shape: Vector3Shape, Bind: bindAs(bindVector3)},
		{Name: QuaternionShape.Name, Shape: QuaternionShape, Bind: bindAs(bindQuaternion)},
		{Name: PointFieldShape.Name, Shape: PointFieldShape, Bind: bindAs(bindPointField)},
		{Name: PointCloud2Shape.Name, Shape: PointCloud2Shape, Bind: bindAs(bindPointCloud2)},
		{Name: ImuShape.Name, Shape: ImuShape, Bind: bindAs(bindImu)},
	}
}
