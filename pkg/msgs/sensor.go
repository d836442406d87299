package msgs

import "github.com/ssargent/unbag/pkg/codec"

// PointField datatype values.
const (
	PointFieldInt8    uint8 = 1
	PointFieldUint8   uint8 = 2
	PointFieldInt16   uint8 = 3
	PointFieldUint16  uint8 = 4
	PointFieldInt32   uint8 = 5
	PointFieldUint32  uint8 = 6
	PointFieldFloat32 uint8 = 7
	PointFieldFloat64 uint8 = 8
)

var (
	// PointFieldShape is sensor_msgs/PointField.
	PointFieldShape = codec.NewShape("sensor_msgs/PointField",
		codec.Field{Name: "name", Type: codec.String},
		codec.Field{Name: "offset", Type: codec.Uint32},
		codec.Field{Name: "datatype", Type: codec.Uint8},
		codec.Field{Name: "count", Type: codec.Uint32},
	)

	// PointCloud2Shape is sensor_msgs/PointCloud2.
	PointCloud2Shape = codec.NewShape("sensor_msgs/PointCloud2",
		codec.Field{Name: "header", Type: codec.StructOf(HeaderShape)},
		codec.Field{Name: "height", Type: codec.Uint32},
		codec.Field{Name: "width", Type: codec.Uint32},
		codec.Field{Name: "fields", Type: codec.SequenceOf(codec.StructOf(PointFieldShape))},
		codec.Field{Name: "is_bigendian", Type: codec.Bool},
		codec.Field{Name: "point_step", Type: codec.Uint32},
		codec.Field{Name: "row_step", Type: codec.Uint32},
		codec.Field{Name: "data", Type: codec.SequenceOf(codec.Uint8)},
		codec.Field{Name: "is_dense", Type: codec.Bool},
	)

	// ImuShape is sensor_msgs/Imu.
	ImuShape = codec.NewShape("sensor_msgs/Imu",
		codec.Field{Name: "header", Type: codec.StructOf(HeaderShape)},
		codec.Field{Name: "orientation", Type: codec.StructOf(QuaternionShape)},
		codec.Field{Name: "orientation_covariance", Type: codec.ArrayOf(codec.Float64, 9)},
		codec.Field{Name: "angular_velocity", Type: codec.StructOf(Vector3Shape)},
		codec.Field{Name: "angular_velocity_covariance", Type: codec.ArrayOf(codec.Float64, 9)},
		codec.Field{Name: "linear_acceleration", Type: codec.StructOf(Vector3Shape)},
		codec.Field{Name: "linear_acceleration_covariance", Type: codec.ArrayOf(codec.Float64, 9)},
	)
)

// PointField describes one channel of a point cloud's point layout.
type PointField struct {
	Name     string `json:"name"`
	Offset   uint32 `json:"offset"`
	Datatype uint8  `json:"datatype"`
	Count    uint32 `json:"count"`
}

func (p *PointField) Schema() string {
	return PointFieldShape.Name
}

func (p *PointField) Struct() *codec.Struct {
	return mustStruct(PointFieldShape, p.Name, p.Offset, p.Datatype, p.Count)
}

func bindPointField(s *codec.Struct) (*PointField, error) {
	f := fields{s: s}
	p := &PointField{
		Name:     f.string("name"),
		Offset:   f.uint32("offset"),
		Datatype: f.uint8("datatype"),
		Count:    f.uint32("count"),
	}
	if f.err != nil {
		return nil, f.err
	}
	return p, nil
}

// PointCloud2 is a packed point cloud. Data holds Height*RowStep bytes laid
// out as described by Fields.
//
// is_bigendian and is_dense are uint8 on the wire and bind as bool: any
// nonzero byte reads as true and re-encodes as 1.
type PointCloud2 struct {
	Header      Header       `json:"header"`
	Height      uint32       `json:"height"`
	Width       uint32       `json:"width"`
	Fields      []PointField `json:"fields"`
	IsBigEndian bool         `json:"is_bigendian"`
	PointStep   uint32       `json:"point_step"`
	RowStep     uint32       `json:"row_step"`
	Data        []byte       `json:"data"`
	IsDense     bool         `json:"is_dense"`
}

func (p *PointCloud2) Schema() string {
	return PointCloud2Shape.Name
}

// FieldNames returns the names of the point fields in declared order.
func (p *PointCloud2) FieldNames() []string {
	names := make([]string, len(p.Fields))
	for i, f := range p.Fields {
		names[i] = f.Name
	}
	return names
}

func (p *PointCloud2) Struct() *codec.Struct {
	pf := make([]*codec.Struct, len(p.Fields))
	for i := range p.Fields {
		pf[i] = p.Fields[i].Struct()
	}
	data := p.Data
	if data == nil {
		data = []byte{}
	}
	return mustStruct(PointCloud2Shape,
		p.Header.Struct(), p.Height, p.Width, pf, p.IsBigEndian, p.PointStep, p.RowStep, data, p.IsDense)
}

func bindPointCloud2(s *codec.Struct) (*PointCloud2, error) {
	f := fields{s: s}
	p := &PointCloud2{
		Header:      deref(nested(&f, "header", bindHeader)),
		Height:      f.uint32("height"),
		Width:       f.uint32("width"),
		IsBigEndian: f.bool("is_bigendian"),
		PointStep:   f.uint32("point_step"),
		RowStep:     f.uint32("row_step"),
		Data:        f.bytes("data"),
		IsDense:     f.bool("is_dense"),
	}
	for _, fs := range f.structs("fields") {
		pf, err := bindPointField(fs)
		if err != nil {
			return nil, err
		}
		p.Fields = append(p.Fields, *pf)
	}
	if f.err != nil {
		return nil, f.err
	}
	if p.Fields == nil {
		p.Fields = []PointField{}
	}
	return p, nil
}

// Imu is sensor_msgs/Imu. A covariance of all zeros means unknown; a first
// element of -1 means the estimate is absent.
type Imu struct {
	Header                       Header     `json:"header"`
	Orientation                  Quaternion `json:"orientation"`
	OrientationCovariance        [9]float64 `json:"orientation_covariance"`
	AngularVelocity              Vector3    `json:"angular_velocity"`
	AngularVelocityCovariance    [9]float64 `json:"angular_velocity_covariance"`
	LinearAcceleration           Vector3    `json:"linear_acceleration"`
	LinearAccelerationCovariance [9]float64 `json:"linear_acceleration_covariance"`
}

func (m *Imu) Schema() string {
	return ImuShape.Name
}

func (m *Imu) Struct() *codec.Struct {
	return mustStruct(ImuShape,
		m.Header.Struct(),
		m.Orientation.Struct(),
		m.OrientationCovariance[:],
		m.AngularVelocity.Struct(),
		m.AngularVelocityCovariance[:],
		m.LinearAcceleration.Struct(),
		m.LinearAccelerationCovariance[:],
	)
}

func bindImu(s *codec.Struct) (*Imu, error) {
	f := fields{s: s}
	m := &Imu{
		Header:                       deref(nested(&f, "header", bindHeader)),
		Orientation:                  deref(nested(&f, "orientation", bindQuaternion)),
		OrientationCovariance:        f.covariance("orientation_covariance"),
		AngularVelocity:              deref(nested(&f, "angular_velocity", bindVector3)),
		AngularVelocityCovariance:    f.covariance("angular_velocity_covariance"),
		LinearAcceleration:           deref(nested(&f, "linear_acceleration", bindVector3)),
		LinearAccelerationCovariance: f.covariance("linear_acceleration_covariance"),
	}
	if f.err != nil {
		return nil, f.err
	}
	return m, nil
}

func deref[T any](p *T) T {
	if p == nil {
		var zero T
		return zero
	}
	return *p
}
