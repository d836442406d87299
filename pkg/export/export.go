// Package export copies decoded bag records into a storage run.
package export

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/segmentio/ksuid"

	"github.com/ssargent/unbag/pkg/msgs"
	"github.com/ssargent/unbag/pkg/storage"
	"github.com/ssargent/unbag/pkg/unbag"
)

// Options configures an export.
type Options struct {
	// SkipErrors logs records that fail to decode and carries on. Otherwise
	// the first such record aborts the export.
	SkipErrors bool
	// FlushBytes bounds how much encoded output is buffered before it is
	// written to the store. Zero uses storage.DefaultFlushBytes.
	FlushBytes int
	Logger     *slog.Logger
}

// Summary reports what an export wrote.
type Summary struct {
	RunID        ksuid.KSUID
	Records      uint64
	Unrecognized uint64
	Skipped      uint64
	Topics       map[string]uint64
}

// Export drains it into a new run of store. Unrecognized records are
// counted but not stored. When the export fails the run is discarded,
// including records already flushed.
func Export(it *unbag.Iterator, store *storage.DefaultStorage, source string, opts Options) (Summary, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	run := store.NewRun(source)
	run.SetFlushBytes(opts.FlushBytes)
	discard := func() {
		if err := run.Discard(); err != nil {
			logger.Error("discard run", "run", run.ID().String(), "error", err)
		}
	}
	sum := Summary{RunID: run.ID(), Topics: make(map[string]uint64)}

	for msg, err := range it.All() {
		var rerr *unbag.RecordError
		if errors.As(err, &rerr) && opts.SkipErrors {
			logger.Warn("skipping record", "topic", rerr.Topic, "time", rerr.Time, "error", rerr.Err)
			sum.Skipped++
			continue
		}
		if err != nil {
			discard()
			return sum, err
		}

		if _, ok := msg.Data.(msgs.Unrecognized); ok {
			sum.Unrecognized++
			continue
		}

		value, err := json.Marshal(msg)
		if err != nil {
			discard()
			return sum, fmt.Errorf("encode %s record: %w", msg.Topic, err)
		}
		if err := run.Put(msg.Topic, value); err != nil {
			discard()
			return sum, err
		}
		sum.Records++
		sum.Topics[msg.Topic]++
	}

	if err := run.Commit(); err != nil {
		discard()
		return sum, err
	}
	logger.Info("export committed", "run", sum.RunID.String(), "records", sum.Records, "skipped", sum.Skipped)
	return sum, nil
}
