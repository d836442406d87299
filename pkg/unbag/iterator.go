package unbag

import (
	"errors"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"slices"
	"time"

	"github.com/ssargent/unbag/pkg/bag"
	"github.com/ssargent/unbag/pkg/msgs"
)

// Options configures an Iterator.
type Options struct {
	// Topics selects the topics to yield. Empty selects every topic.
	Topics []string
	// Catalog resolves schemas. Defaults to msgs.DefaultCatalog().
	Catalog *msgs.Catalog
	// Logger defaults to slog.Default().
	Logger  *slog.Logger
	Metrics *Metrics
}

type state int

const (
	awaitingChunk state = iota
	drainingBatch
	exhausted
)

// Iterator yields decoded records in container order. It is not safe for
// concurrent use.
type Iterator struct {
	chunks  ChunkCursor
	routes  bag.RoutingTable
	topics  map[string]struct{}
	catalog *msgs.Catalog
	logger  *slog.Logger
	metrics *Metrics

	state  state
	batch  []bag.RawRecord // reversed; the next record is at the end
	peak   int
	err    error
	closer io.Closer
}

// NewIterator returns an iterator over c. The routing table is read once here.
func NewIterator(c Container, opts Options) *Iterator {
	it := &Iterator{
		chunks:  c.Chunks(),
		routes:  c.Routes(),
		catalog: opts.Catalog,
		logger:  opts.Logger,
		metrics: opts.Metrics,
	}
	if it.catalog == nil {
		it.catalog = msgs.DefaultCatalog()
	}
	if it.logger == nil {
		it.logger = slog.Default()
	}
	if len(opts.Topics) > 0 {
		it.topics = make(map[string]struct{}, len(opts.Topics))
		for _, t := range opts.Topics {
			it.topics[t] = struct{}{}
		}
	}
	return it
}

// Open opens the bag at path and returns an iterator over it. Close releases the bag.
func Open(path string, opts Options) (*Iterator, error) {
	b, err := bag.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrContainer, err)
	}
	it := NewIterator(FromBag(b), opts)
	it.closer = b
	return it, nil
}

// DecodeContainer opens the bag at path and yields the records on topics,
// or every record when no topic is given.
func DecodeContainer(path string, topics ...string) (*Iterator, error) {
	return Open(path, Options{Topics: topics})
}

// Next returns the next record. It returns io.EOF once the container is
// exhausted. A *RecordError comes with the failed record's Message and
// leaves the iterator usable; an error wrapping ErrContainer is final.
func (it *Iterator) Next() (*Message, error) {
	for {
		switch it.state {
		case exhausted:
			if it.err != nil {
				return nil, it.err
			}
			return nil, io.EOF

		case awaitingChunk:
			it.loadChunk()

		case drainingBatch:
			if len(it.batch) == 0 {
				it.state = awaitingChunk
				continue
			}
			rec := it.batch[len(it.batch)-1]
			it.batch[len(it.batch)-1] = bag.RawRecord{}
			it.batch = it.batch[:len(it.batch)-1]

			if msg, err := it.process(rec); msg != nil {
				return msg, err
			}
		}
	}
}

// loadChunk pulls the next chunk and moves to drainingBatch, or to
// exhausted at the end of the container or on failure.
func (it *Iterator) loadChunk() {
	chunk, err := it.chunks.Next()
	if err == io.EOF {
		it.state = exhausted
		return
	}
	if err != nil {
		it.fail(err)
		return
	}

	records, err := chunk.Records()
	if err != nil {
		it.fail(err)
		return
	}
	slices.Reverse(records)

	it.batch = records
	it.peak = max(it.peak, len(records))
	it.state = drainingBatch
	it.metrics.recordChunk(len(records))
	it.logger.Debug("chunk loaded", "records", len(records))
}

func (it *Iterator) fail(err error) {
	it.err = fmt.Errorf("%w: %w", ErrContainer, err)
	it.state = exhausted
	it.batch = nil
	it.logger.Error("container failed", "error", err)
}

// process turns one raw record into a message. Filtered records return a
// nil message.
func (it *Iterator) process(rec bag.RawRecord) (*Message, error) {
	conn, known := it.routes[rec.Conn]
	if !known {
		it.metrics.recordResult(resultUnrecognized)
		it.logger.Debug("record on unknown connection", "conn", rec.Conn)
		return &Message{
			Conn: rec.Conn,
			Time: rec.Time,
			Data: msgs.Unrecognized{Conn: rec.Conn, Reason: msgs.ReasonUnknownChannel},
		}, nil
	}

	if it.topics != nil {
		if _, selected := it.topics[conn.Topic]; !selected {
			it.metrics.recordResult(resultFiltered)
			return nil, nil
		}
	}

	msg := &Message{Conn: rec.Conn, Topic: conn.Topic, Schema: conn.Type, Time: rec.Time}

	start := time.Now()
	data, err := it.catalog.Decode(conn.Type, rec.Data)
	switch {
	case errors.Is(err, msgs.ErrUnknownSchema):
		it.metrics.recordResult(resultUnrecognized)
		it.logger.Debug("record with unknown schema", "topic", conn.Topic, "schema", conn.Type)
		msg.Data = msgs.Unrecognized{Conn: rec.Conn, SchemaName: conn.Type, Reason: msgs.ReasonUnknownSchema}
		return msg, nil

	case err != nil:
		it.metrics.recordDecode(resultError, time.Since(start))
		it.logger.Warn("record decode failed", "topic", conn.Topic, "schema", conn.Type, "time", rec.Time, "error", err)
		return msg, &RecordError{Conn: rec.Conn, Topic: conn.Topic, Schema: conn.Type, Time: rec.Time, Err: err}
	}

	it.metrics.recordDecode(resultDecoded, time.Since(start))
	msg.Data = data
	return msg, nil
}

// All returns the remaining records as a sequence. Record errors are
// yielded alongside their message; the sequence ends at io.EOF or after
// yielding a container error.
func (it *Iterator) All() iter.Seq2[*Message, error] {
	return func(yield func(*Message, error) bool) {
		for {
			msg, err := it.Next()
			if err == io.EOF {
				return
			}
			if !yield(msg, err) || errors.Is(err, ErrContainer) {
				return
			}
		}
	}
}

// PeakBatch returns the largest number of records held at once.
func (it *Iterator) PeakBatch() int {
	return it.peak
}

// Close ends the iteration and releases the bag if the iterator opened it.
func (it *Iterator) Close() error {
	it.state = exhausted
	it.batch = nil
	if it.closer == nil {
		return nil
	}
	err := it.closer.Close()
	it.closer = nil
	return err
}
