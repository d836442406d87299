package codec

import (
	"errors"
	"strings"
)

// Errors returned while decoding a record. Every failure is wrapped in a
// *DecodeError, so callers should match these with errors.Is.
var (
	// ErrBudgetExceeded means a read would consume more bytes than the record declared.
	ErrBudgetExceeded = errors.New("record length budget exceeded")
	// ErrIO means the byte source could not supply bytes the budget had already approved.
	ErrIO = errors.New("byte source read failed")
	// ErrEncoding means a string field is not valid UTF-8.
	ErrEncoding = errors.New("invalid utf-8 in string field")
	// ErrSchemaMismatch means the shape and the bytes disagree: leftover bytes after a
	// decode, or a value that does not fit the width it is bound to.
	ErrSchemaMismatch = errors.New("schema mismatch")
	// ErrUnsupportedShape means the shape declares a field kind the decoder does not implement.
	ErrUnsupportedShape = errors.New("unsupported shape")
)

// DecodeError reports where in a shape a decode failed.
type DecodeError struct {
	Path string // e.g. PointCloud2.fields[1].name
	Err  error
}

func (e *DecodeError) Error() string {
	if e.Path == "" {
		return e.Err.Error()
	}
	return e.Path + ": " + e.Err.Error()
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// withPath prefixes the path of err with segment. Segments starting with '['
// are joined without a dot.
func withPath(err error, segment string) error {
	if err == nil {
		return nil
	}

	de, ok := err.(*DecodeError)
	if !ok {
		return &DecodeError{Path: segment, Err: err}
	}

	switch {
	case de.Path == "":
		de.Path = segment
	case strings.HasPrefix(de.Path, "["):
		de.Path = segment + de.Path
	default:
		de.Path = segment + "." + de.Path
	}
	return de
}
