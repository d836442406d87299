package codec

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"unicode/utf8"
)

// Cursor reads little-endian primitives from a byte source while charging
// every read against the remaining length budget of the current record.
// The budget is charged before any byte is consumed, so an over-read is
// detected independently of how the source behaves at EOF.
type Cursor struct {
	r         io.Reader
	remaining uint32
	scratch   [8]byte
}

// NewCursor creates a cursor over r that may consume at most budget bytes.
func NewCursor(r io.Reader, budget uint32) *Cursor {
	return &Cursor{r: r, remaining: budget}
}

// Remaining returns the number of bytes the cursor may still consume.
func (c *Cursor) Remaining() uint32 {
	return c.remaining
}

// Exhausted reports whether the whole budget has been consumed.
func (c *Cursor) Exhausted() bool {
	return c.remaining == 0
}

// Reserve charges n bytes against the budget. On failure the budget is left unchanged.
func (c *Cursor) Reserve(n uint32) error {
	if n > c.remaining {
		return fmt.Errorf("%w: need %d bytes, %d remaining", ErrBudgetExceeded, n, c.remaining)
	}
	c.remaining -= n
	return nil
}

// read reserves n (<= 8) bytes and fills the scratch buffer with them.
func (c *Cursor) read(n uint32) ([]byte, error) {
	if err := c.Reserve(n); err != nil {
		return nil, err
	}
	buf := c.scratch[:n]
	if _, err := io.ReadFull(c.r, buf); err != nil {
		return nil, ioError(err)
	}
	return buf, nil
}

func ioError(err error) error {
	if err == io.EOF {
		err = io.ErrUnexpectedEOF
	}
	return fmt.Errorf("%w: %w", ErrIO, err)
}

func (c *Cursor) ReadUint8() (uint8, error) {
	b, err := c.read(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (c *Cursor) ReadInt8() (int8, error) {
	v, err := c.ReadUint8()
	return int8(v), err
}

// ReadBool reads one byte; any non-zero value is true.
func (c *Cursor) ReadBool() (bool, error) {
	v, err := c.ReadUint8()
	return v != 0, err
}

func (c *Cursor) ReadUint16() (uint16, error) {
	b, err := c.read(2)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(b), nil
}

func (c *Cursor) ReadInt16() (int16, error) {
	v, err := c.ReadUint16()
	return int16(v), err
}

func (c *Cursor) ReadUint32() (uint32, error) {
	b, err := c.read(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

func (c *Cursor) ReadInt32() (int32, error) {
	v, err := c.ReadUint32()
	return int32(v), err
}

func (c *Cursor) ReadUint64() (uint64, error) {
	b, err := c.read(8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b), nil
}

func (c *Cursor) ReadInt64() (int64, error) {
	v, err := c.ReadUint64()
	return int64(v), err
}

func (c *Cursor) ReadFloat32() (float32, error) {
	v, err := c.ReadUint32()
	return math.Float32frombits(v), err
}

func (c *Cursor) ReadFloat64() (float64, error) {
	v, err := c.ReadUint64()
	return math.Float64frombits(v), err
}

// ReadTime reads a ROS time: unsigned seconds then unsigned nanoseconds.
func (c *Cursor) ReadTime() (Time, error) {
	sec, err := c.ReadUint32()
	if err != nil {
		return Time{}, err
	}
	nsec, err := c.ReadUint32()
	if err != nil {
		return Time{}, err
	}
	return Time{Sec: sec, Nsec: nsec}, nil
}

// ReadDuration reads a ROS duration: signed seconds then signed nanoseconds.
func (c *Cursor) ReadDuration() (Duration, error) {
	sec, err := c.ReadInt32()
	if err != nil {
		return Duration{}, err
	}
	nsec, err := c.ReadInt32()
	if err != nil {
		return Duration{}, err
	}
	return Duration{Sec: sec, Nsec: nsec}, nil
}

// ReadLength reads the uint32 count that precedes a string or sequence.
// The count is not checked against the budget here; the reads of the
// elements it announces are.
func (c *Cursor) ReadLength() (uint32, error) {
	return c.ReadUint32()
}

// ReadBytes reserves n bytes and reads them into a new slice.
func (c *Cursor) ReadBytes(n uint32) ([]byte, error) {
	if err := c.Reserve(n); err != nil {
		return nil, err
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(c.r, buf); err != nil {
		return nil, ioError(err)
	}
	return buf, nil
}

// ReadString reads a length-prefixed UTF-8 string.
func (c *Cursor) ReadString() (string, error) {
	n, err := c.ReadLength()
	if err != nil {
		return "", err
	}
	buf, err := c.ReadBytes(n)
	if err != nil {
		return "", err
	}
	if !utf8.Valid(buf) {
		return "", ErrEncoding
	}
	return string(buf), nil
}
