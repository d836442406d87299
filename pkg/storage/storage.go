// Package storage persists decoded records in a pebble database. Each
// export is a run identified by a KSUID, so runs list in creation order and
// the records of a run scan back per topic in the order they were written.
package storage

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/cockroachdb/pebble"
	"github.com/segmentio/ksuid"
)

var (
	ErrRunNotFound  = errors.New("run not found")
	ErrInvalidTopic = errors.New("topic contains a NUL byte")
	ErrRunClosed    = errors.New("run already committed or discarded")
)

// DefaultFlushBytes is how large a run's batch grows before it is written
// out ahead of Commit.
const DefaultFlushBytes = 16 << 20

// Key layout:
//
//	m/<run>                      run metadata (JSON)
//	r/<run><topic>\x00<seq>      record value, seq big-endian
var (
	runPrefix    = []byte("m/")
	recordPrefix = []byte("r/")
)

// RunInfo describes one export run.
type RunInfo struct {
	ID      ksuid.KSUID `json:"id"`
	Source  string      `json:"source"`
	Created time.Time   `json:"created"`
	Records uint64      `json:"records"`
}

// DefaultStorage is the pebble backed record store.
type DefaultStorage struct {
	db *pebble.DB
}

// NewDefaultStorage opens or creates the store at path.
func NewDefaultStorage(path string) (*DefaultStorage, error) {
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("open storage %s: %w", path, err)
	}
	return &DefaultStorage{db: db}, nil
}

// Close closes the database.
func (s *DefaultStorage) Close() error {
	return s.db.Close()
}

// NewRun starts an export run for source. Records are buffered in a batch
// that is flushed every DefaultFlushBytes. The run only shows up in Runs
// once Commit has written its metadata.
func (s *DefaultStorage) NewRun(source string) *Run {
	return &Run{
		store:      s,
		info:       RunInfo{ID: ksuid.New(), Source: source, Created: time.Now().UTC()},
		batch:      s.db.NewBatch(),
		flushBytes: DefaultFlushBytes,
	}
}

// Runs lists runs oldest first.
func (s *DefaultStorage) Runs() ([]RunInfo, error) {
	var runs []RunInfo
	err := s.scan(runPrefix, func(_, value []byte) error {
		var info RunInfo
		if err := json.Unmarshal(value, &info); err != nil {
			return fmt.Errorf("decode run: %w", err)
		}
		runs = append(runs, info)
		return nil
	})
	return runs, err
}

// Run returns the metadata of run id.
func (s *DefaultStorage) Run(id ksuid.KSUID) (RunInfo, error) {
	var info RunInfo
	value, closer, err := s.db.Get(runKey(id))
	if errors.Is(err, pebble.ErrNotFound) {
		return info, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	if err != nil {
		return info, err
	}
	defer closer.Close()

	if err := json.Unmarshal(value, &info); err != nil {
		return info, fmt.Errorf("decode run %s: %w", id, err)
	}
	return info, nil
}

// Scan calls fn for every record of run on topic in write order. The value
// passed to fn is only valid during the call.
func (s *DefaultStorage) Scan(id ksuid.KSUID, topic string, fn func(seq uint64, value []byte) error) error {
	prefix := topicPrefix(id, topic)
	return s.scan(prefix, func(key, value []byte) error {
		return fn(binary.BigEndian.Uint64(key[len(prefix):]), value)
	})
}

func (s *DefaultStorage) scan(prefix []byte, fn func(key, value []byte) error) error {
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: prefixEnd(prefix),
	})
	if err != nil {
		return err
	}
	defer iter.Close()

	for iter.First(); iter.Valid(); iter.Next() {
		if err := fn(iter.Key(), iter.Value()); err != nil {
			return err
		}
	}
	return iter.Error()
}

// Run is one export in progress.
type Run struct {
	store      *DefaultStorage
	info       RunInfo
	batch      *pebble.Batch
	flushBytes int
	flushed    bool
}

// SetFlushBytes changes the batch size at which buffered records are
// written out. n <= 0 restores DefaultFlushBytes.
func (r *Run) SetFlushBytes(n int) {
	if n <= 0 {
		n = DefaultFlushBytes
	}
	r.flushBytes = n
}

// ID returns the run id.
func (r *Run) ID() ksuid.KSUID {
	return r.info.ID
}

// Put appends value under topic.
func (r *Run) Put(topic string, value []byte) error {
	if r.batch == nil {
		return ErrRunClosed
	}
	if bytes.IndexByte([]byte(topic), 0) >= 0 {
		return fmt.Errorf("%w: %q", ErrInvalidTopic, topic)
	}
	key := binary.BigEndian.AppendUint64(topicPrefix(r.info.ID, topic), r.info.Records)
	if err := r.batch.Set(key, value, nil); err != nil {
		return err
	}
	r.info.Records++

	if r.batch.Len() >= r.flushBytes {
		return r.flush()
	}
	return nil
}

// flush writes the buffered records without the run metadata and starts a
// fresh batch.
func (r *Run) flush() error {
	if err := r.batch.Commit(pebble.NoSync); err != nil {
		return fmt.Errorf("flush run %s: %w", r.info.ID, err)
	}
	r.flushed = true
	if err := r.batch.Close(); err != nil {
		return err
	}
	r.batch = r.store.db.NewBatch()
	return nil
}

// Commit writes the remaining records and then the run metadata.
func (r *Run) Commit() error {
	if r.batch == nil {
		return ErrRunClosed
	}
	meta, err := json.Marshal(r.info)
	if err != nil {
		return err
	}
	if err := r.batch.Set(runKey(r.info.ID), meta, nil); err != nil {
		return err
	}
	if err := r.batch.Commit(pebble.Sync); err != nil {
		return fmt.Errorf("commit run %s: %w", r.info.ID, err)
	}
	batch := r.batch
	r.batch = nil
	return batch.Close()
}

// Discard drops the buffered records and deletes any already flushed.
func (r *Run) Discard() error {
	if r.batch == nil {
		return ErrRunClosed
	}
	batch := r.batch
	r.batch = nil
	err := batch.Close()
	if r.flushed {
		prefix := append(bytes.Clone(recordPrefix), r.info.ID.Bytes()...)
		if derr := r.store.db.DeleteRange(prefix, prefixEnd(prefix), pebble.Sync); derr != nil {
			return errors.Join(err, fmt.Errorf("discard run %s: %w", r.info.ID, derr))
		}
	}
	return err
}

func runKey(id ksuid.KSUID) []byte {
	return append(bytes.Clone(runPrefix), id.Bytes()...)
}

func topicPrefix(id ksuid.KSUID, topic string) []byte {
	key := append(bytes.Clone(recordPrefix), id.Bytes()...)
	key = append(key, topic...)
	return append(key, 0)
}

// prefixEnd returns the smallest key greater than every key with prefix.
func prefixEnd(prefix []byte) []byte {
	end := bytes.Clone(prefix)
	for i := len(end) - 1; i >= 0; i-- {
		end[i]++
		if end[i] != 0 {
			return end[:i+1]
		}
	}
	return nil
}
