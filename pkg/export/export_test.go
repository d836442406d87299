package export

import (
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ssargent/unbag/pkg/bag"
	"github.com/ssargent/unbag/pkg/msgs"
	"github.com/ssargent/unbag/pkg/storage"
	"github.com/ssargent/unbag/pkg/unbag"
)

// writeBag writes /chatter strings, a /broken record that does not decode
// and a /odom record with an unknown schema.
func writeBag(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "in.bag")
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	w, err := bag.NewWriter(f, bag.WriterOptions{})
	require.NoError(t, err)
	require.NoError(t, w.AddConnection(bag.Connection{ID: 0, Topic: "/chatter", Type: "std_msgs/String"}))
	require.NoError(t, w.AddConnection(bag.Connection{ID: 1, Topic: "/broken", Type: "std_msgs/String"}))
	require.NoError(t, w.AddConnection(bag.Connection{ID: 2, Topic: "/odom", Type: "nav_msgs/Odometry"}))

	for i, text := range []string{"one", "two", "three"} {
		payload, err := msgs.Marshal(&msgs.String{Data: text})
		require.NoError(t, err)
		require.NoError(t, w.WriteMessage(0, uint64(i+1)*1e9, payload))
	}
	require.NoError(t, w.WriteMessage(1, 5e9, []byte{1}))
	require.NoError(t, w.WriteMessage(2, 6e9, []byte{1, 2, 3}))
	require.NoError(t, w.Close())
	return path
}

func quiet() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestExport_SkipErrors(t *testing.T) {
	store, err := storage.NewDefaultStorage(filepath.Join(t.TempDir(), "db"))
	require.NoError(t, err)
	defer store.Close()

	it, err := unbag.Open(writeBag(t), unbag.Options{Logger: quiet()})
	require.NoError(t, err)
	defer it.Close()

	sum, err := Export(it, store, "in.bag", Options{SkipErrors: true, Logger: quiet()})
	require.NoError(t, err)
	assert.Equal(t, uint64(3), sum.Records)
	assert.Equal(t, uint64(1), sum.Skipped)
	assert.Equal(t, uint64(1), sum.Unrecognized)
	assert.Equal(t, map[string]uint64{"/chatter": 3}, sum.Topics)

	var texts []string
	require.NoError(t, store.Scan(sum.RunID, "/chatter", func(_ uint64, value []byte) error {
		var rec struct {
			Topic string `json:"topic"`
			Data  struct {
				Data string `json:"data"`
			} `json:"data"`
		}
		if err := json.Unmarshal(value, &rec); err != nil {
			return err
		}
		assert.Equal(t, "/chatter", rec.Topic)
		texts = append(texts, rec.Data.Data)
		return nil
	}))
	assert.Equal(t, []string{"one", "two", "three"}, texts)
}

func TestExport_AbortsOnRecordError(t *testing.T) {
	store, err := storage.NewDefaultStorage(filepath.Join(t.TempDir(), "db"))
	require.NoError(t, err)
	defer store.Close()

	it, err := unbag.Open(writeBag(t), unbag.Options{Logger: quiet()})
	require.NoError(t, err)
	defer it.Close()

	sum, err := Export(it, store, "in.bag", Options{Logger: quiet()})
	var rerr *unbag.RecordError
	require.ErrorAs(t, err, &rerr)
	assert.Equal(t, "/broken", rerr.Topic)

	_, err = store.Run(sum.RunID)
	assert.ErrorIs(t, err, storage.ErrRunNotFound, "nothing is committed on failure")
}

func TestExport_FailedExportLeavesNoRecords(t *testing.T) {
	store, err := storage.NewDefaultStorage(filepath.Join(t.TempDir(), "db"))
	require.NoError(t, err)
	defer store.Close()

	it, err := unbag.Open(writeBag(t), unbag.Options{Logger: quiet()})
	require.NoError(t, err)
	defer it.Close()

	// every /chatter record is flushed before /broken aborts the export
	sum, err := Export(it, store, "in.bag", Options{FlushBytes: 1, Logger: quiet()})
	var rerr *unbag.RecordError
	require.ErrorAs(t, err, &rerr)
	assert.Equal(t, uint64(3), sum.Records)

	n := 0
	require.NoError(t, store.Scan(sum.RunID, "/chatter", func(uint64, []byte) error {
		n++
		return nil
	}))
	assert.Zero(t, n)

	runs, err := store.Runs()
	require.NoError(t, err)
	assert.Empty(t, runs)
}

func TestExport_SmallFlushThreshold(t *testing.T) {
	store, err := storage.NewDefaultStorage(filepath.Join(t.TempDir(), "db"))
	require.NoError(t, err)
	defer store.Close()

	it, err := unbag.Open(writeBag(t), unbag.Options{Logger: quiet()})
	require.NoError(t, err)
	defer it.Close()

	sum, err := Export(it, store, "in.bag", Options{SkipErrors: true, FlushBytes: 1, Logger: quiet()})
	require.NoError(t, err)

	info, err := store.Run(sum.RunID)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), info.Records)
}
