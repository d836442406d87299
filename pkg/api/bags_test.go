package api

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ssargent/unbag/pkg/bag"
	"github.com/ssargent/unbag/pkg/msgs"
	"github.com/ssargent/unbag/pkg/unbag"
)

var testConns = []bag.Connection{
	{ID: 0, Topic: "/chatter", Type: "std_msgs/String", CallerID: "/talker"},
	{ID: 1, Topic: "/points", Type: "sensor_msgs/PointCloud2", CallerID: "/velodyne"},
	{ID: 2, Topic: "/custom", Type: "custom_msgs/Thing"},
}

func marshal(t *testing.T, m msgs.Msg) []byte {
	t.Helper()
	payload, err := msgs.Marshal(m)
	require.NoError(t, err)
	return payload
}

// writeDriveBag writes a bag with a string, a point cloud, a record of an
// unknown schema and a malformed string, in that order.
func writeDriveBag(t *testing.T, dir, name string) {
	t.Helper()
	f, err := os.Create(filepath.Join(dir, name))
	require.NoError(t, err)
	defer f.Close()

	w, err := bag.NewWriter(f, bag.WriterOptions{})
	require.NoError(t, err)
	for _, c := range testConns {
		require.NoError(t, w.AddConnection(c))
	}

	cloud := &msgs.PointCloud2{
		Header: msgs.Header{Seq: 7, FrameID: "velodyne"},
		Height: 1,
		Width:  1,
		Fields: []msgs.PointField{
			{Name: "x", Datatype: msgs.PointFieldFloat32, Count: 1},
			{Name: "y", Offset: 4, Datatype: msgs.PointFieldFloat32, Count: 1},
		},
		PointStep: 8,
		RowStep:   8,
		Data:      make([]byte, 8),
	}

	require.NoError(t, w.WriteMessage(0, 1e9, marshal(t, &msgs.String{Data: "hello"})))
	require.NoError(t, w.WriteMessage(1, 2e9, marshal(t, cloud)))
	require.NoError(t, w.WriteMessage(2, 3e9, []byte{1, 2, 3}))
	require.NoError(t, w.WriteMessage(0, 4e9, []byte{0xFF, 0xFF}))
	require.NoError(t, w.Close())
}

func newTestDirectory(t *testing.T) *BagDirectory {
	t.Helper()
	dir := t.TempDir()
	writeDriveBag(t, dir, "drive.bag")
	return NewBagDirectory(dir, nil, nil, nil)
}

func TestBagDirectory_Resolve(t *testing.T) {
	d := newTestDirectory(t)
	require.NoError(t, os.Mkdir(filepath.Join(d.dir, "nested.bag"), 0o755))

	tests := []struct {
		name    string
		bag     string
		wantErr error
	}{
		{name: "plain name", bag: "drive.bag"},
		{name: "empty", bag: "", wantErr: ErrInvalidBagName},
		{name: "parent traversal", bag: "../drive.bag", wantErr: ErrInvalidBagName},
		{name: "parent only", bag: "..", wantErr: ErrInvalidBagName},
		{name: "subdirectory", bag: "a/drive.bag", wantErr: ErrInvalidBagName},
		{name: "backslash", bag: `a\drive.bag`, wantErr: ErrInvalidBagName},
		{name: "hidden file", bag: ".drive.bag", wantErr: ErrInvalidBagName},
		{name: "missing", bag: "missing.bag", wantErr: ErrBagNotFound},
		{name: "directory", bag: "nested.bag", wantErr: ErrBagNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path, err := d.resolve(tt.bag)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Empty(t, path)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, filepath.Join(d.dir, tt.bag), path)
		})
	}
}

func TestBagDirectory_List(t *testing.T) {
	d := newTestDirectory(t)
	writeDriveBag(t, d.dir, "another.bag")
	require.NoError(t, os.WriteFile(filepath.Join(d.dir, "notes.txt"), []byte("not a bag"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(d.dir, "broken.bag"), []byte("#ROSBAG V1.2\n"), 0o644))

	bags, err := d.List()
	require.NoError(t, err)
	require.Len(t, bags, 2)

	assert.Equal(t, "another.bag", bags[0].Name)
	assert.Equal(t, "drive.bag", bags[1].Name)
	for _, b := range bags {
		assert.Equal(t, 3, b.Connections)
		assert.Equal(t, 1, b.Chunks)
		assert.Equal(t, uint64(4), b.Messages)
		assert.Greater(t, b.Size, int64(4096))
	}
}

func TestBagDirectory_ListMissingDir(t *testing.T) {
	d := NewBagDirectory(filepath.Join(t.TempDir(), "nope"), nil, nil, nil)
	_, err := d.List()
	assert.Error(t, err)
}

func TestBagDirectory_Connections(t *testing.T) {
	d := newTestDirectory(t)

	conns, err := d.Connections("drive.bag")
	require.NoError(t, err)
	require.Len(t, conns, 3)
	for i, c := range conns {
		assert.Equal(t, testConns[i].ID, c.ID)
		assert.Equal(t, testConns[i].Topic, c.Topic)
		assert.Equal(t, testConns[i].Type, c.Type)
	}

	require.NoError(t, os.WriteFile(filepath.Join(d.dir, "broken.bag"), []byte("garbage"), 0o644))
	_, err = d.Connections("broken.bag")
	assert.ErrorIs(t, err, unbag.ErrContainer)
	assert.ErrorIs(t, err, bag.ErrContainerOpen)
}

func TestBagDirectory_Messages(t *testing.T) {
	d := newTestDirectory(t)

	t.Run("every record", func(t *testing.T) {
		resp, err := d.Messages(context.Background(), "drive.bag", nil, 10)
		require.NoError(t, err)
		assert.Equal(t, "drive.bag", resp.Bag)
		assert.False(t, resp.Truncated)
		require.Len(t, resp.Messages, 4)

		assert.Equal(t, &msgs.String{Data: "hello"}, resp.Messages[0].Data)
		assert.Equal(t, uint64(1e9), resp.Messages[0].Time)

		cloud, ok := resp.Messages[1].Data.(*msgs.PointCloud2)
		require.True(t, ok)
		assert.Equal(t, []string{"x", "y"}, cloud.FieldNames())

		assert.Equal(t, msgs.Unrecognized{Conn: 2, SchemaName: "custom_msgs/Thing", Reason: msgs.ReasonUnknownSchema},
			resp.Messages[2].Data)

		assert.Equal(t, "/chatter", resp.Messages[3].Topic)
		assert.Nil(t, resp.Messages[3].Data)
		assert.Contains(t, resp.Messages[3].Error, "std_msgs/String")
	})

	t.Run("topic filter", func(t *testing.T) {
		resp, err := d.Messages(context.Background(), "drive.bag", []string{"/points"}, 10)
		require.NoError(t, err)
		require.Len(t, resp.Messages, 1)
		assert.Equal(t, "sensor_msgs/PointCloud2", resp.Messages[0].Schema)
	})

	t.Run("limit truncates", func(t *testing.T) {
		resp, err := d.Messages(context.Background(), "drive.bag", nil, 2)
		require.NoError(t, err)
		assert.Len(t, resp.Messages, 2)
		assert.True(t, resp.Truncated)
	})

	t.Run("limit equal to count is not truncated", func(t *testing.T) {
		resp, err := d.Messages(context.Background(), "drive.bag", nil, 4)
		require.NoError(t, err)
		assert.Len(t, resp.Messages, 4)
		assert.False(t, resp.Truncated)
	})

	t.Run("cancelled context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := d.Messages(ctx, "drive.bag", nil, 10)
		assert.ErrorIs(t, err, context.Canceled)
	})

	t.Run("invalid name", func(t *testing.T) {
		_, err := d.Messages(context.Background(), "../drive.bag", nil, 10)
		assert.ErrorIs(t, err, ErrInvalidBagName)
	})
}

func writeFile(dir, name, content string) error {
	return os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644)
}
