package msgs

import "github.com/ssargent/unbag/pkg/codec"

// HeaderShape is std_msgs/Header.
var HeaderShape = codec.NewShape("std_msgs/Header",
	codec.Field{Name: "seq", Type: codec.Uint32},
	codec.Field{Name: "stamp", Type: codec.TimeT},
	codec.Field{Name: "frame_id", Type: codec.String},
)

// Header is the standard metadata block carried by stamped messages.
type Header struct {
	Seq     uint32     `json:"seq"`
	Stamp   codec.Time `json:"stamp"`
	FrameID string     `json:"frame_id"`
}

func (h *Header) Schema() string {
	return HeaderShape.Name
}

func (h *Header) Struct() *codec.Struct {
	return mustStruct(HeaderShape, h.Seq, h.Stamp, h.FrameID)
}

func bindHeader(s *codec.Struct) (*Header, error) {
	f := fields{s: s}
	h := &Header{
		Seq:     f.uint32("seq"),
		Stamp:   f.time("stamp"),
		FrameID: f.string("frame_id"),
	}
	if f.err != nil {
		return nil, f.err
	}
	return h, nil
}

// StringShape is std_msgs/String.
var StringShape = codec.NewShape("std_msgs/String",
	codec.Field{Name: "data", Type: codec.String},
)

// String is std_msgs/String.
type String struct {
	Data string `json:"data"`
}

func (m *String) Schema() string {
	return StringShape.Name
}

func (m *String) Struct() *codec.Struct {
	return mustStruct(StringShape, m.Data)
}

func bindString(s *codec.Struct) (*String, error) {
	data, err := s.String("data")
	if err != nil {
		return nil, err
	}
	return &String{Data: data}, nil
}
