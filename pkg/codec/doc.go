// Package codec decodes length-budgeted, little-endian binary records into
// values described by explicit shapes.
//
// The codec is the foundation of unbag's record pipeline: every message
// payload pulled out of a bag chunk is handed to Decode together with the
// shape its connection declares.
//
// # Wire Format
//
// Records carry no type tags. The layout is fully determined by the shape:
//
//	bool, int8, uint8              1 byte
//	int16, uint16                  2 bytes, little-endian
//	int32, uint32, float32         4 bytes, little-endian
//	int64, uint64, float64         8 bytes, little-endian
//	time, duration                 two 4-byte halves (sec, nsec)
//	string                         [Len(4)][UTF-8 bytes]
//	T[]  (sequence)                [Count(4)][T]...[T]
//	T[N] (array)                   [T]...[T]  (N elements, no prefix)
//	struct                         fields in declared order, no prefix
//
// # Length Budget
//
// A Cursor is created with the record's declared length as its budget.
// Each read reserves its width against the budget before it touches the
// byte source, so a truncated or malformed record fails with
// ErrBudgetExceeded even when the source itself would happily keep
// reading. Counts read from a sequence prefix are not checked up front;
// the element reads they announce are.
//
// After a top-level decode the cursor must be exhausted. Leftover bytes
// mean the shape does not describe the record and fail with
// ErrSchemaMismatch.
//
// # Usage
//
//	header := codec.NewShape("std_msgs/Header",
//	    codec.Field{Name: "seq", Type: codec.Uint32},
//	    codec.Field{Name: "stamp", Type: codec.TimeT},
//	    codec.Field{Name: "frame_id", Type: codec.String},
//	)
//
//	s, err := codec.Decode(payload, header)
//	if err != nil {
//	    return err
//	}
//	frame, err := s.String("frame_id")
//
// # Error Handling
//
// All decode failures are returned as *DecodeError carrying the path of the
// failing field (for example "sensor_msgs/PointCloud2.fields[2].name") and
// wrapping one of ErrBudgetExceeded, ErrIO, ErrEncoding, ErrSchemaMismatch
// or ErrUnsupportedShape. A failed decode never returns a partial value.
//
// Char, byte blob, optional, map and union kinds can be declared but are
// not decodable; they fail with ErrUnsupportedShape instead of panicking.
//
// # Thread Safety
//
// Shapes are immutable after construction and safe to share. A Cursor
// belongs to a single decode call and must not be shared.
package codec
