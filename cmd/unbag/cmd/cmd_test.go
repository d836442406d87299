package cmd

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ssargent/unbag/pkg/api"
	"github.com/ssargent/unbag/pkg/bag"
	"github.com/ssargent/unbag/pkg/config"
	"github.com/ssargent/unbag/pkg/di"
	"github.com/ssargent/unbag/pkg/msgs"
	"github.com/ssargent/unbag/pkg/storage"
	"github.com/ssargent/unbag/pkg/unbag"
)

// writeDriveBag writes a bag holding a string, a point cloud, a record of
// an unknown schema and a malformed string, in that order.
func writeDriveBag(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "drive.bag")
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	w, err := bag.NewWriter(f, bag.WriterOptions{Compression: bag.CompressionLZ4})
	require.NoError(t, err)
	require.NoError(t, w.AddConnection(bag.Connection{ID: 0, Topic: "/chatter", Type: "std_msgs/String"}))
	require.NoError(t, w.AddConnection(bag.Connection{ID: 1, Topic: "/points", Type: "sensor_msgs/PointCloud2"}))
	require.NoError(t, w.AddConnection(bag.Connection{ID: 2, Topic: "/custom", Type: "custom_msgs/Thing"}))

	hello, err := msgs.Marshal(&msgs.String{Data: "hello"})
	require.NoError(t, err)
	cloud, err := msgs.Marshal(&msgs.PointCloud2{
		Header: msgs.Header{Seq: 1, FrameID: "velodyne"},
		Height: 1,
		Width:  2,
		Fields: []msgs.PointField{
			{Name: "x", Datatype: msgs.PointFieldFloat32, Count: 1},
			{Name: "y", Offset: 4, Datatype: msgs.PointFieldFloat32, Count: 1},
			{Name: "z", Offset: 8, Datatype: msgs.PointFieldFloat32, Count: 1},
		},
		PointStep: 12,
		RowStep:   24,
		Data:      make([]byte, 24),
	})
	require.NoError(t, err)

	require.NoError(t, w.WriteMessage(0, 1e9, hello))
	require.NoError(t, w.WriteMessage(1, 2e9, cloud))
	require.NoError(t, w.WriteMessage(2, 3e9, []byte{1, 2, 3}))
	require.NoError(t, w.WriteMessage(0, 4e9, []byte{0xFF, 0xFF}))
	require.NoError(t, w.Close())
	return path
}

// resetFlags puts every flag back to its default so commands can run
// more than once in a test binary.
func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		if sv, ok := f.Value.(pflag.SliceValue); ok {
			_ = sv.Replace(nil)
		} else {
			_ = f.Value.Set(f.DefValue)
		}
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, c := range cmd.Commands() {
		resetFlags(c)
	}
}

func executeWith(t *testing.T, c *di.Container, args ...string) (string, error) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	SetContainer(c)
	t.Cleanup(func() { SetContainer(nil) })
	resetFlags(rootCmd)

	var out, errOut bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&errOut)
	rootCmd.SetArgs(args)

	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	return executeWith(t, di.NewContainer(), args...)
}

func TestInfoCommand(t *testing.T) {
	path := writeDriveBag(t)

	out, err := execute(t, "info", path)
	require.NoError(t, err)

	assert.Contains(t, out, "chunks:      1")
	assert.Contains(t, out, "messages:    4")
	assert.Contains(t, out, "connections: 3")
	assert.Regexp(t, `1  /points\s+sensor_msgs/PointCloud2`, out)
	assert.Contains(t, out, "(1.000000000)")
	assert.Contains(t, out, "(4.000000000)")

	_, err = execute(t, "info", filepath.Join(t.TempDir(), "missing.bag"))
	assert.ErrorIs(t, err, bag.ErrContainerOpen)
}

func TestListCommand(t *testing.T) {
	path := writeDriveBag(t)

	tests := []struct {
		name        string
		args        []string
		contains    []string
		notContains []string
		wantErr     string
	}{
		{
			name: "every record, skipping errors",
			args: []string{"list", path, "--skip-errors"},
			contains: []string{
				"1.000000000 /chatter std_msgs/String data=\"hello\"",
				"2.000000000 /points sensor_msgs/PointCloud2 fields=x,y,z width=2 height=1",
				"unrecognized custom_msgs/Thing record on connection 2: unknown schema",
				"4.000000000 /chatter std_msgs/String decode error:",
				"3 records, 1 failed to decode",
			},
		},
		{
			name:        "topic filter",
			args:        []string{"list", path, "-t", "/points"},
			contains:    []string{"fields=x,y,z", "1 records\n"},
			notContains: []string{"hello", "custom_msgs/Thing"},
		},
		{
			name:     "two topics",
			args:     []string{"list", path, "-t", "/points,/custom"},
			contains: []string{"fields=x,y,z", "custom_msgs/Thing", "2 records\n"},
		},
		{
			name:    "decode error aborts",
			args:    []string{"list", path},
			wantErr: "decode std_msgs/String record on /chatter",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := execute(t, tt.args...)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			for _, s := range tt.contains {
				assert.Contains(t, out, s)
			}
			for _, s := range tt.notContains {
				assert.NotContains(t, out, s)
			}
		})
	}

	_, err := execute(t, "list", filepath.Join(t.TempDir(), "missing.bag"))
	assert.ErrorIs(t, err, unbag.ErrContainer)
}

func TestListCommand_InputFromConfig(t *testing.T) {
	path := writeDriveBag(t)

	configPath := filepath.Join(t.TempDir(), "unbag.yaml")
	cfgFile := config.DefaultConfig()
	cfgFile.Input = config.Input{Topics: []string{"/chatter"}, SkipErrors: true}
	require.NoError(t, config.SaveConfig(cfgFile, configPath))

	out, err := execute(t, "list", path, "--config", configPath)
	require.NoError(t, err)
	assert.Contains(t, out, "1 records, 1 failed to decode")
	assert.NotContains(t, out, "fields=")

	// flags win over the file
	out, err = execute(t, "list", path, "--config", configPath, "-t", "/points")
	require.NoError(t, err)
	assert.Contains(t, out, "fields=x,y,z")
	assert.NotContains(t, out, "hello")
}

func TestExtractCommand(t *testing.T) {
	path := writeDriveBag(t)
	outDir := filepath.Join(t.TempDir(), "out")

	out, err := execute(t, "extract", path, "-o", outDir, "--skip-errors")
	require.NoError(t, err)
	assert.Contains(t, out, "2 records written to "+outDir)
	assert.Contains(t, out, "1 unrecognized, 1 skipped")
	assert.Regexp(t, `/chatter\s+1`, out)
	assert.Regexp(t, `/points\s+1`, out)

	// without --skip-errors nothing is committed
	_, err = execute(t, "extract", path, "-o", outDir)
	require.Error(t, err)

	out, err = execute(t, "runs", "-o", outDir)
	require.NoError(t, err)
	assert.Contains(t, out, path)

	store, err := storage.NewDefaultStorage(outDir)
	require.NoError(t, err)
	defer store.Close()

	runs, err := store.Runs()
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, uint64(2), runs[0].Records)

	var values []string
	require.NoError(t, store.Scan(runs[0].ID, "/chatter", func(seq uint64, value []byte) error {
		values = append(values, string(value))
		return nil
	}))
	require.Len(t, values, 1)
	assert.Contains(t, values[0], `"data":{"data":"hello"}`)
}

func TestRunsCommand_NoStore(t *testing.T) {
	_, err := execute(t, "runs", "-o", filepath.Join(t.TempDir(), "nothing"))
	assert.Error(t, err)
}

type stubStarter struct {
	config api.ServerConfig
	deps   api.Dependencies
}

func (s *stubStarter) StartServer(_ context.Context, config api.ServerConfig, deps api.Dependencies) error {
	s.config = config
	s.deps = deps
	return nil
}

type stubFactory struct{ starter *stubStarter }

func (f stubFactory) CreateServerStarter() api.ServerStarter { return f.starter }

func TestServeCommand(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		expected api.ServerConfig
	}{
		{
			name:     "defaults",
			args:     []string{"serve"},
			expected: api.ServerConfig{Port: 9300, Bind: "127.0.0.1", BagDir: "."},
		},
		{
			name:     "flags override",
			args:     []string{"serve", "--bag-dir", "/data/bags", "-p", "9555", "--bind", "0.0.0.0", "--api-key", "k"},
			expected: api.ServerConfig{Port: 9555, Bind: "0.0.0.0", APIKey: "k", BagDir: "/data/bags"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := di.NewContainer()
			starter := &stubStarter{}
			c.SetServerFactory(stubFactory{starter: starter})

			out, err := executeWith(t, c, tt.args...)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, starter.config)
			assert.Same(t, c.GetCatalog(), starter.deps.Catalog)
			assert.Same(t, c.GetRegistry(), starter.deps.Registry)
			assert.Contains(t, out, "Serving bags from "+tt.expected.BagDir)
		})
	}
}

func TestConfigInitCommand(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "nested", "unbag.yaml")

	out, err := execute(t, "config", "init", configPath, "--bag-dir", "/bags", "--print-key")
	require.NoError(t, err)
	assert.Contains(t, out, "Configuration created at "+configPath)
	assert.Contains(t, out, "API key: ")

	loaded, err := config.LoadConfig(configPath)
	require.NoError(t, err)
	assert.Equal(t, "/bags", loaded.Server.BagDir)
	assert.Len(t, loaded.Server.APIKey, 64)

	_, err = execute(t, "config", "init", configPath)
	assert.ErrorContains(t, err, "already exists")

	_, err = execute(t, "config", "init", configPath, "--force")
	require.NoError(t, err)
	reloaded, err := config.LoadConfig(configPath)
	require.NoError(t, err)
	assert.NotEqual(t, loaded.Server.APIKey, reloaded.Server.APIKey)
}

func TestRootCommand_Errors(t *testing.T) {
	path := writeDriveBag(t)

	tests := []struct {
		name    string
		args    []string
		wantErr string
	}{
		{name: "missing config file", args: []string{"info", path, "--config", "/does/not/exist.yaml"}, wantErr: "config file does not exist"},
		{name: "bad log level", args: []string{"info", path, "--log-level", "loud"}, wantErr: "unknown log level"},
		{name: "bad log format", args: []string{"info", path, "--log-format", "xml"}, wantErr: "unknown log format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := execute(t, tt.args...)
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}

	_, err := executeWith(t, nil, "info", path)
	assert.ErrorContains(t, err, "dependency container not initialized")
}
