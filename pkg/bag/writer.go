package bag

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"sort"
)

// DefaultChunkThreshold is the uncompressed chunk size at which the writer
// starts a new chunk.
const DefaultChunkThreshold = 768 * 1024

// WriterOptions configures a Writer.
type WriterOptions struct {
	Compression    string // none (default) or lz4
	ChunkThreshold int
}

// Writer produces indexed bags: chunks with per-chunk index data, then an
// index section of connections and chunk infos.
type Writer struct {
	w    io.WriteSeeker
	opts WriterOptions
	pos  uint64

	conns map[uint32]Connection

	chunk      []byte
	chunkConns map[uint32]bool
	chunkIndex map[uint32][]byte
	chunkMsgs  int
	chunkStart uint64
	chunkEnd   uint64
	chunkInfos []ChunkInfo

	closed bool
}

// NewWriter writes the version line and a placeholder bag header to w.
// The header is patched on Close.
func NewWriter(w io.WriteSeeker, opts WriterOptions) (*Writer, error) {
	if opts.Compression == "" {
		opts.Compression = CompressionNone
	}
	if opts.Compression != CompressionNone && opts.Compression != CompressionLZ4 {
		return nil, fmt.Errorf("%w: cannot write %q chunks", ErrUnsupportedCompression, opts.Compression)
	}
	if opts.ChunkThreshold <= 0 {
		opts.ChunkThreshold = DefaultChunkThreshold
	}

	bw := &Writer{w: w, opts: opts, conns: make(map[uint32]Connection)}
	bw.resetChunk()
	if err := bw.write([]byte(Magic)); err != nil {
		return nil, err
	}
	if err := bw.write(bagHeaderRecord(0, 0, 0)); err != nil {
		return nil, err
	}
	return bw, nil
}

// bagHeaderRecord builds the bag header, padded with spaces to its fixed size.
func bagHeaderRecord(indexPos uint64, connCount, chunkCount uint32) []byte {
	fields := []headerField{
		opField(OpBagHeader),
		uint64Field("index_pos", indexPos),
		uint32Field("conn_count", connCount),
		uint32Field("chunk_count", chunkCount),
	}
	header := appendFields(nil, fields)
	pad := bytes.Repeat([]byte(" "), bagHeaderSize-8-len(header))
	return appendRecord(nil, fields, pad)
}

// AddConnection declares a connection. Ids must be unique.
func (w *Writer) AddConnection(c Connection) error {
	if w.closed {
		return errors.New("bag writer is closed")
	}
	if _, ok := w.conns[c.ID]; ok {
		return fmt.Errorf("connection %d already added", c.ID)
	}
	w.conns[c.ID] = c
	return nil
}

// WriteMessage appends one message record on conn at t (nanoseconds).
func (w *Writer) WriteMessage(conn uint32, t uint64, data []byte) error {
	if w.closed {
		return errors.New("bag writer is closed")
	}
	c, ok := w.conns[conn]
	if !ok {
		return fmt.Errorf("write message: unknown connection %d", conn)
	}

	if !w.chunkConns[conn] {
		w.chunk = appendConnection(w.chunk, c)
		w.chunkConns[conn] = true
	}

	offset := uint32(len(w.chunk))
	w.chunk = appendRecord(w.chunk, []headerField{
		opField(OpMessageData),
		uint32Field("conn", conn),
		timeField("time", t),
	}, data)

	entry := timeField("", t).value
	w.chunkIndex[conn] = binary.LittleEndian.AppendUint32(append(w.chunkIndex[conn], entry...), offset)
	if w.chunkMsgs == 0 || t < w.chunkStart {
		w.chunkStart = t
	}
	if t > w.chunkEnd {
		w.chunkEnd = t
	}
	w.chunkMsgs++

	if len(w.chunk) >= w.opts.ChunkThreshold {
		return w.flushChunk()
	}
	return nil
}

// Close flushes the open chunk, writes the index section and patches the
// bag header. It does not close the underlying writer.
func (w *Writer) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true

	if err := w.flushChunk(); err != nil {
		return err
	}

	indexPos := w.pos
	var index []byte
	for _, id := range sortedIDs(w.conns) {
		index = appendConnection(index, w.conns[id])
	}
	for _, ci := range w.chunkInfos {
		index = appendChunkInfo(index, ci)
	}
	if err := w.write(index); err != nil {
		return err
	}

	if _, err := w.w.Seek(int64(len(Magic)), io.SeekStart); err != nil {
		return fmt.Errorf("patch bag header: %w", err)
	}
	if _, err := w.w.Write(bagHeaderRecord(indexPos, uint32(len(w.conns)), uint32(len(w.chunkInfos)))); err != nil {
		return fmt.Errorf("patch bag header: %w", err)
	}
	if _, err := w.w.Seek(int64(w.pos), io.SeekStart); err != nil {
		return fmt.Errorf("patch bag header: %w", err)
	}
	return nil
}

func (w *Writer) flushChunk() error {
	if w.chunkMsgs == 0 {
		return nil
	}

	body, err := compress(w.opts.Compression, w.chunk)
	if err != nil {
		return err
	}

	ci := ChunkInfo{Pos: w.pos, StartTime: w.chunkStart, EndTime: w.chunkEnd, Counts: make(map[uint32]uint32)}
	buf := appendRecord(nil, []headerField{
		opField(OpChunk),
		stringField("compression", w.opts.Compression),
		uint32Field("size", uint32(len(w.chunk))),
	}, body)

	for _, id := range sortedIDs(w.chunkIndex) {
		entries := w.chunkIndex[id]
		count := uint32(len(entries) / 12)
		ci.Counts[id] = count
		buf = appendRecord(buf, []headerField{
			opField(OpIndexData),
			uint32Field("ver", 1),
			uint32Field("conn", id),
			uint32Field("count", count),
		}, entries)
	}

	if err := w.write(buf); err != nil {
		return err
	}
	w.chunkInfos = append(w.chunkInfos, ci)
	w.resetChunk()
	return nil
}

func (w *Writer) resetChunk() {
	w.chunk = w.chunk[:0]
	w.chunkConns = make(map[uint32]bool)
	w.chunkIndex = make(map[uint32][]byte)
	w.chunkMsgs = 0
	w.chunkStart = 0
	w.chunkEnd = 0
}

func (w *Writer) write(b []byte) error {
	n, err := w.w.Write(b)
	w.pos += uint64(n)
	if err != nil {
		return fmt.Errorf("write bag: %w", err)
	}
	return nil
}

func appendConnection(buf []byte, c Connection) []byte {
	fields := []headerField{
		stringField("topic", c.Topic),
		stringField("type", c.Type),
		stringField("md5sum", c.MD5Sum),
		stringField("message_definition", c.MessageDefinition),
	}
	if c.CallerID != "" {
		fields = append(fields, stringField("callerid", c.CallerID))
	}
	if c.Latching {
		fields = append(fields, stringField("latching", "1"))
	}

	return appendRecord(buf, []headerField{
		opField(OpConnection),
		uint32Field("conn", c.ID),
		stringField("topic", c.Topic),
	}, appendFields(nil, fields))
}

func appendChunkInfo(buf []byte, ci ChunkInfo) []byte {
	var data []byte
	for _, id := range sortedIDs(ci.Counts) {
		data = binary.LittleEndian.AppendUint32(data, id)
		data = binary.LittleEndian.AppendUint32(data, ci.Counts[id])
	}
	return appendRecord(buf, []headerField{
		opField(OpChunkInfo),
		uint32Field("ver", 1),
		uint64Field("chunk_pos", ci.Pos),
		timeField("start_time", ci.StartTime),
		timeField("end_time", ci.EndTime),
		uint32Field("count", uint32(len(ci.Counts))),
	}, data)
}

func sortedIDs[V any](m map[uint32]V) []uint32 {
	ids := make([]uint32, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
