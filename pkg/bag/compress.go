package bag

import (
	"bytes"
	"compress/bzip2"
	"fmt"
	"io"

	"github.com/pierrec/lz4/v4"
)

// decompress inflates a chunk body and checks it against the declared
// uncompressed size. The result never aliases data.
func decompress(compression string, data []byte, size uint32) ([]byte, error) {
	var r io.Reader
	switch compression {
	case CompressionNone:
		r = bytes.NewReader(data)
	case CompressionBZ2:
		r = bzip2.NewReader(bytes.NewReader(data))
	case CompressionLZ4:
		r = lz4.NewReader(bytes.NewReader(data))
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedCompression, compression)
	}

	// one byte past size is enough to detect an oversized body
	out, err := io.ReadAll(io.LimitReader(r, int64(size)+1))
	if err != nil {
		return nil, fmt.Errorf("%w: %s chunk: %w", ErrMalformed, compression, err)
	}
	if uint64(len(out)) != uint64(size) {
		return nil, fmt.Errorf("%w: %s chunk inflates to %d bytes, header declares %d",
			ErrMalformed, compression, len(out), size)
	}
	return out, nil
}

// compress deflates a chunk body. Only none and lz4 can be written.
func compress(compression string, raw []byte) ([]byte, error) {
	switch compression {
	case CompressionNone:
		return raw, nil
	case CompressionLZ4:
		var buf bytes.Buffer
		zw := lz4.NewWriter(&buf)
		if _, err := zw.Write(raw); err != nil {
			return nil, fmt.Errorf("lz4 compress: %w", err)
		}
		if err := zw.Close(); err != nil {
			return nil, fmt.Errorf("lz4 compress: %w", err)
		}
		return buf.Bytes(), nil
	default:
		return nil, fmt.Errorf("%w: cannot write %q chunks", ErrUnsupportedCompression, compression)
	}
}
