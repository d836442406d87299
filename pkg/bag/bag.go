// Package bag reads and writes ROS1 bag files (format 2.0).
//
// A bag is a sequence of records. After the version line and a padded bag
// header come chunks, each followed by index data records, and finally the
// index section: connection records and one chunk info per chunk. Open
// reads the index section to build the routing table; Chunks then walks the
// chunk records lazily in file order.
package bag

import (
	"fmt"
	"io"
	"sort"
)

// Connection is one logical channel of a bag.
type Connection struct {
	ID                uint32 `json:"id"`
	Topic             string `json:"topic"`
	Type              string `json:"type"`
	MD5Sum            string `json:"md5sum"`
	MessageDefinition string `json:"message_definition,omitempty"`
	CallerID          string `json:"callerid,omitempty"`
	Latching          bool   `json:"latching,omitempty"`
}

// RoutingTable maps connection ids to connections. It is built once at open
// and never modified afterwards.
type RoutingTable map[uint32]Connection

// Sorted returns the connections ordered by id.
func (t RoutingTable) Sorted() []Connection {
	out := make([]Connection, 0, len(t))
	for _, c := range t {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// ChunkInfo summarizes one chunk from the index section.
type ChunkInfo struct {
	Pos       uint64            `json:"pos"`
	StartTime uint64            `json:"start_time"`
	EndTime   uint64            `json:"end_time"`
	Counts    map[uint32]uint32 `json:"counts"`
}

// MessageCount returns the number of messages in the chunk.
func (ci ChunkInfo) MessageCount() uint64 {
	var n uint64
	for _, c := range ci.Counts {
		n += uint64(c)
	}
	return n
}

// RawRecord is one undecoded message. Time is nanoseconds since the epoch.
type RawRecord struct {
	Conn uint32
	Time uint64
	Data []byte
}

// Bag is an open bag file.
type Bag struct {
	path       string
	data       []byte
	release    func() error
	indexPos   uint64
	chunkStart uint64
	conns      RoutingTable
	chunkInfos []ChunkInfo
}

// Open maps the bag at path and reads its index section.
func Open(path string) (*Bag, error) {
	data, release, err := mapFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrContainerOpen, path, err)
	}

	b := &Bag{path: path, data: data, release: release}
	if err := b.readIndex(); err != nil {
		release()
		return nil, fmt.Errorf("%w: %s: %w", ErrContainerOpen, path, err)
	}
	return b, nil
}

func (b *Bag) readIndex() error {
	if len(b.data) < len(Magic) || string(b.data[:len(Magic)]) != Magic {
		return fmt.Errorf("%w: missing %q version line", ErrMalformed, Magic[:len(Magic)-1])
	}

	rec, next, err := readRecord(b.data, uint64(len(Magic)))
	if err != nil {
		return fmt.Errorf("bag header: %w", err)
	}
	if rec.op != OpBagHeader {
		return fmt.Errorf("%w: first record has op 0x%02x, want bag header", ErrMalformed, rec.op)
	}
	if b.indexPos, err = fieldUint64(rec.header, "index_pos"); err != nil {
		return fmt.Errorf("bag header: %w", err)
	}
	connCount, err := fieldUint32(rec.header, "conn_count")
	if err != nil {
		return fmt.Errorf("bag header: %w", err)
	}
	chunkCount, err := fieldUint32(rec.header, "chunk_count")
	if err != nil {
		return fmt.Errorf("bag header: %w", err)
	}
	if b.indexPos == 0 {
		return ErrNotIndexed
	}
	if b.indexPos < next || b.indexPos > uint64(len(b.data)) {
		return fmt.Errorf("%w: index_pos %d outside the file", ErrMalformed, b.indexPos)
	}
	b.chunkStart = next

	b.conns = make(RoutingTable, connCount)
	b.chunkInfos = make([]ChunkInfo, 0, chunkCount)
	for off := b.indexPos; off < uint64(len(b.data)); {
		rec, next, err := readRecord(b.data, off)
		if err != nil {
			return fmt.Errorf("index section: %w", err)
		}
		switch rec.op {
		case OpConnection:
			c, err := parseConnection(rec)
			if err != nil {
				return err
			}
			b.conns[c.ID] = c
		case OpChunkInfo:
			ci, err := parseChunkInfo(rec)
			if err != nil {
				return err
			}
			b.chunkInfos = append(b.chunkInfos, ci)
		default:
			return fmt.Errorf("%w: unexpected op 0x%02x in index section", ErrMalformed, rec.op)
		}
		off = next
	}

	if uint32(len(b.conns)) != connCount || uint32(len(b.chunkInfos)) != chunkCount {
		return fmt.Errorf("%w: index holds %d connections and %d chunk infos, header declares %d and %d",
			ErrMalformed, len(b.conns), len(b.chunkInfos), connCount, chunkCount)
	}
	return nil
}

func parseConnection(rec record) (Connection, error) {
	id, err := fieldUint32(rec.header, "conn")
	if err != nil {
		return Connection{}, fmt.Errorf("connection: %w", err)
	}
	topic, err := fieldString(rec.header, "topic")
	if err != nil {
		return Connection{}, fmt.Errorf("connection %d: %w", id, err)
	}
	fields, err := parseHeader(rec.data)
	if err != nil {
		return Connection{}, fmt.Errorf("connection %d: %w", id, err)
	}
	typ, err := fieldString(fields, "type")
	if err != nil {
		return Connection{}, fmt.Errorf("connection %d: %w", id, err)
	}

	return Connection{
		ID:                id,
		Topic:             topic,
		Type:              typ,
		MD5Sum:            string(fields["md5sum"]),
		MessageDefinition: string(fields["message_definition"]),
		CallerID:          string(fields["callerid"]),
		Latching:          string(fields["latching"]) == "1",
	}, nil
}

func parseChunkInfo(rec record) (ChunkInfo, error) {
	var ci ChunkInfo
	var err error
	if ci.Pos, err = fieldUint64(rec.header, "chunk_pos"); err != nil {
		return ci, fmt.Errorf("chunk info: %w", err)
	}
	if ci.StartTime, err = fieldTime(rec.header, "start_time"); err != nil {
		return ci, fmt.Errorf("chunk info: %w", err)
	}
	if ci.EndTime, err = fieldTime(rec.header, "end_time"); err != nil {
		return ci, fmt.Errorf("chunk info: %w", err)
	}
	count, err := fieldUint32(rec.header, "count")
	if err != nil {
		return ci, fmt.Errorf("chunk info: %w", err)
	}
	if uint64(count)*8 != uint64(len(rec.data)) {
		return ci, fmt.Errorf("%w: chunk info at %d declares %d connections in %d bytes",
			ErrMalformed, ci.Pos, count, len(rec.data))
	}

	ci.Counts = make(map[uint32]uint32, count)
	for i := uint32(0); i < count; i++ {
		entry := rec.data[i*8:]
		ci.Counts[le32(entry)] = le32(entry[4:])
	}
	return ci, nil
}

// Path returns the file the bag was opened from.
func (b *Bag) Path() string {
	return b.path
}

// Connections returns the routing table.
func (b *Bag) Connections() RoutingTable {
	return b.conns
}

// ChunkInfos returns the chunk summaries in index order.
func (b *Bag) ChunkInfos() []ChunkInfo {
	return b.chunkInfos
}

// MessageCount returns the number of messages the index declares.
func (b *Bag) MessageCount() uint64 {
	var n uint64
	for _, ci := range b.chunkInfos {
		n += ci.MessageCount()
	}
	return n
}

// Close unmaps the file. Records returned earlier stay valid; chunks must
// be read before the bag is closed.
func (b *Bag) Close() error {
	if b.release == nil {
		return nil
	}
	err := b.release()
	b.release = nil
	b.data = nil
	return err
}

// Chunks returns a cursor over the bag's chunks in file order.
func (b *Bag) Chunks() *ChunkIterator {
	return &ChunkIterator{bag: b, pos: b.chunkStart}
}

// ChunkIterator walks chunk records between the bag header and the index
// section. Index data records are skipped.
type ChunkIterator struct {
	bag *Bag
	pos uint64
	err error
}

// Next returns the next chunk, or io.EOF once the index section is reached.
// After an error every call returns the same error.
func (it *ChunkIterator) Next() (*Chunk, error) {
	if it.err != nil {
		return nil, it.err
	}
	if it.bag.data == nil {
		it.err = fmt.Errorf("%w: bag is closed", ErrMalformed)
		return nil, it.err
	}

	for it.pos < it.bag.indexPos {
		start := it.pos
		rec, next, err := readRecord(it.bag.data[:it.bag.indexPos], it.pos)
		if err != nil {
			it.err = fmt.Errorf("chunk at %d: %w", start, err)
			return nil, it.err
		}
		it.pos = next

		switch rec.op {
		case OpIndexData:
			continue
		case OpChunk:
			compression, err := fieldString(rec.header, "compression")
			if err != nil {
				it.err = fmt.Errorf("chunk at %d: %w", start, err)
				return nil, it.err
			}
			size, err := fieldUint32(rec.header, "size")
			if err != nil {
				it.err = fmt.Errorf("chunk at %d: %w", start, err)
				return nil, it.err
			}
			return &Chunk{Pos: start, Compression: compression, Size: size, data: rec.data}, nil
		default:
			it.err = fmt.Errorf("%w: unexpected op 0x%02x at %d", ErrMalformed, rec.op, start)
			return nil, it.err
		}
	}

	it.err = io.EOF
	return nil, io.EOF
}

// Chunk is one compressed block of records.
type Chunk struct {
	Pos         uint64
	Compression string
	Size        uint32
	data        []byte
}

// Records decompresses the chunk and returns its message records in stored
// order. Connection records inside the chunk are skipped. The returned data
// is owned by the caller.
func (c *Chunk) Records() ([]RawRecord, error) {
	raw, err := decompress(c.Compression, c.data, c.Size)
	if err != nil {
		return nil, fmt.Errorf("chunk at %d: %w", c.Pos, err)
	}

	var out []RawRecord
	for off := uint64(0); off < uint64(len(raw)); {
		rec, next, err := readRecord(raw, off)
		if err != nil {
			return nil, fmt.Errorf("chunk at %d: %w", c.Pos, err)
		}
		off = next

		switch rec.op {
		case OpConnection:
			continue
		case OpMessageData:
			conn, err := fieldUint32(rec.header, "conn")
			if err != nil {
				return nil, fmt.Errorf("chunk at %d: message: %w", c.Pos, err)
			}
			t, err := fieldTime(rec.header, "time")
			if err != nil {
				return nil, fmt.Errorf("chunk at %d: message: %w", c.Pos, err)
			}
			out = append(out, RawRecord{Conn: conn, Time: t, Data: rec.data})
		default:
			return nil, fmt.Errorf("%w: unexpected op 0x%02x inside chunk at %d", ErrMalformed, rec.op, c.Pos)
		}
	}
	return out, nil
}

func le32(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}
