package bag

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// Magic is the version line every v2.0 bag starts with.
const Magic = "#ROSBAG V2.0\n"

// Record op codes.
const (
	OpMessageData = 0x02
	OpBagHeader   = 0x03
	OpIndexData   = 0x04
	OpChunk       = 0x05
	OpChunkInfo   = 0x06
	OpConnection  = 0x07
)

// Chunk compression names.
const (
	CompressionNone = "none"
	CompressionBZ2  = "bz2"
	CompressionLZ4  = "lz4"
)

// bagHeaderSize is the padded size of the bag header record.
const bagHeaderSize = 4096

// record is one header+data record. Header values and data alias the
// buffer the record was read from.
type record struct {
	op     byte
	header map[string][]byte
	data   []byte
}

// readRecord reads the record at off in b and returns the offset after it.
func readRecord(b []byte, off uint64) (record, uint64, error) {
	headerLen, off, err := readLen(b, off, "header length")
	if err != nil {
		return record{}, 0, err
	}
	header, err := parseHeader(b[off : off+headerLen])
	if err != nil {
		return record{}, 0, fmt.Errorf("record at %d: %w", off-4, err)
	}
	off += headerLen

	dataLen, off, err := readLen(b, off, "data length")
	if err != nil {
		return record{}, 0, err
	}
	rec := record{header: header, data: b[off : off+dataLen]}

	op, ok := header["op"]
	if !ok || len(op) != 1 {
		return record{}, 0, fmt.Errorf("%w: record at %d has no op field", ErrMalformed, off)
	}
	rec.op = op[0]
	return rec, off + dataLen, nil
}

// readLen reads a u32 length at off and checks that many bytes follow it.
func readLen(b []byte, off uint64, what string) (uint64, uint64, error) {
	if off+4 > uint64(len(b)) {
		return 0, 0, fmt.Errorf("%w: truncated %s at %d", ErrMalformed, what, off)
	}
	n := uint64(binary.LittleEndian.Uint32(b[off:]))
	off += 4
	if off+n > uint64(len(b)) {
		return 0, 0, fmt.Errorf("%w: %s %d at %d overruns the buffer", ErrMalformed, what, n, off-4)
	}
	return n, off, nil
}

// parseHeader splits a record header into name=value fields.
func parseHeader(b []byte) (map[string][]byte, error) {
	fields := make(map[string][]byte)
	var off uint64
	for off < uint64(len(b)) {
		n, next, err := readLen(b, off, "header field")
		if err != nil {
			return nil, err
		}
		field := b[next : next+n]
		eq := bytes.IndexByte(field, '=')
		if eq < 0 {
			return nil, fmt.Errorf("%w: header field without '='", ErrMalformed)
		}
		fields[string(field[:eq])] = field[eq+1:]
		off = next + n
	}
	return fields, nil
}

func fieldUint32(h map[string][]byte, name string) (uint32, error) {
	v, ok := h[name]
	if !ok || len(v) != 4 {
		return 0, fmt.Errorf("%w: missing or invalid %q field", ErrMalformed, name)
	}
	return binary.LittleEndian.Uint32(v), nil
}

func fieldUint64(h map[string][]byte, name string) (uint64, error) {
	v, ok := h[name]
	if !ok || len(v) != 8 {
		return 0, fmt.Errorf("%w: missing or invalid %q field", ErrMalformed, name)
	}
	return binary.LittleEndian.Uint64(v), nil
}

// fieldTime reads a sec/nsec pair as nanoseconds since the epoch.
func fieldTime(h map[string][]byte, name string) (uint64, error) {
	v, ok := h[name]
	if !ok || len(v) != 8 {
		return 0, fmt.Errorf("%w: missing or invalid %q field", ErrMalformed, name)
	}
	sec := uint64(binary.LittleEndian.Uint32(v))
	nsec := uint64(binary.LittleEndian.Uint32(v[4:]))
	return sec*1e9 + nsec, nil
}

func fieldString(h map[string][]byte, name string) (string, error) {
	v, ok := h[name]
	if !ok {
		return "", fmt.Errorf("%w: missing %q field", ErrMalformed, name)
	}
	return string(v), nil
}

// appendRecord appends a record with the given header fields and data.
// Fields are written in the order given.
func appendRecord(buf []byte, fields []headerField, data []byte) []byte {
	headerLen := 0
	for _, f := range fields {
		headerLen += 4 + len(f.name) + 1 + len(f.value)
	}
	buf = binary.LittleEndian.AppendUint32(buf, uint32(headerLen))
	buf = appendFields(buf, fields)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(data)))
	return append(buf, data...)
}

func appendFields(buf []byte, fields []headerField) []byte {
	for _, f := range fields {
		buf = binary.LittleEndian.AppendUint32(buf, uint32(len(f.name)+1+len(f.value)))
		buf = append(buf, f.name...)
		buf = append(buf, '=')
		buf = append(buf, f.value...)
	}
	return buf
}

type headerField struct {
	name  string
	value []byte
}

func opField(op byte) headerField {
	return headerField{name: "op", value: []byte{op}}
}

func uint32Field(name string, v uint32) headerField {
	return headerField{name: name, value: binary.LittleEndian.AppendUint32(nil, v)}
}

func uint64Field(name string, v uint64) headerField {
	return headerField{name: name, value: binary.LittleEndian.AppendUint64(nil, v)}
}

func timeField(name string, ns uint64) headerField {
	v := binary.LittleEndian.AppendUint32(nil, uint32(ns/1e9))
	return headerField{name: name, value: binary.LittleEndian.AppendUint32(v, uint32(ns%1e9))}
}

func stringField(name, v string) headerField {
	return headerField{name: name, value: []byte(v)}
}
