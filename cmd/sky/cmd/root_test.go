package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ssargent/skydb/pkg/codec"
	"github.com/ssargent/skydb/pkg/config"
	"github.com/ssargent/skydb/pkg/schema"
)

// runSky executes the command tree against a private config and data dir
func runSky(t *testing.T, dir string, args ...string) (string, error) {
	t.Helper()

	base := []string{
		"--config", filepath.Join(dir, "sky.yaml"),
		"--data-dir", filepath.Join(dir, "data"),
		"--log-level", "error",
	}

	var out bytes.Buffer
	root := NewRootCmd()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(append(base, args...))

	err := root.Execute()
	return out.String(), err
}

func TestEncodeCommand(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{
			name: "varint action only",
			args: []string{"encode", "--timestamp", "1325376000000", "--action", "20"},
			want: "0180a0c3b4c926" + "00" + "14",
		},
		{
			name: "fixed action only",
			args: []string{"encode", "--layout", "fixed", "--timestamp", "1325376000000", "--action", "20"},
			want: "0100d090963401000014000000",
		},
		{
			name: "fixed data only",
			args: []string{"encode", "--layout", "fixed", "--timestamp", "1325376000000", "--data", "2=bar", "--data", "1=foo"},
			want: "0200d09096340100000c00010003666f6f020003626172",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := runSky(t, t.TempDir(), tt.args...)
			require.NoError(t, err)
			assert.Equal(t, tt.want, strings.TrimSpace(out))
		})
	}
}

func TestEncodeCommand_InvalidData(t *testing.T) {
	for _, entry := range []string{"nokey", "70000=x", "abc=x"} {
		t.Run(entry, func(t *testing.T) {
			_, err := runSky(t, t.TempDir(), "encode", "--data", entry)
			assert.Error(t, err)
		})
	}
}

func TestDecodeCommand(t *testing.T) {
	dir := t.TempDir()

	// Two varint records back to back
	input := "0180a0c3b4c926001402" + "80a0c3b4c92607" + "02" + "0103666f6f" + "0203626172"
	out, err := runSky(t, dir, "decode", input)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "9 bytes")
	assert.Contains(t, lines[0], "action=20")
	assert.Contains(t, lines[1], "@9")
	assert.Contains(t, lines[1], "object=7")
	assert.Contains(t, lines[1], `1:"foo"`)
}

func TestDecodeCommand_Errors(t *testing.T) {
	dir := t.TempDir()

	_, err := runSky(t, dir, "decode", "zz")
	assert.Error(t, err)

	_, err = runSky(t, dir, "decode", "0180a0")
	assert.ErrorIs(t, err, codec.ErrTruncated)
}

func TestInitCommand(t *testing.T) {
	dir := t.TempDir()

	out, err := runSky(t, dir, "init", "--layout", "fixed")
	require.NoError(t, err)
	assert.Contains(t, out, "Configuration written")

	assert.DirExists(t, filepath.Join(dir, "data", "events"))
	assert.DirExists(t, filepath.Join(dir, "data", "paths"))

	cfg, err := config.LoadConfig(filepath.Join(dir, "sky.yaml"))
	require.NoError(t, err)
	assert.Equal(t, codec.LayoutFixed, cfg.Layout())

	out, err = runSky(t, dir, "init")
	require.NoError(t, err)
	assert.Contains(t, out, "already exists")

	out, err = runSky(t, dir, "init", "--force")
	require.NoError(t, err)
	assert.Contains(t, out, "Configuration written")
}

func TestInitCommand_ConfigDrivesLayout(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "sky.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("codec:\n  layout: fixed\n"), 0600))

	out, err := runSky(t, dir, "encode", "--timestamp", "1325376000000", "--action", "20")
	require.NoError(t, err)
	assert.Equal(t, "0100d090963401000014000000", strings.TrimSpace(out))
}

func TestAppendAndEventsCommands(t *testing.T) {
	dir := t.TempDir()

	_, err := runSky(t, dir, "append", "--object", "42", "--timestamp", "1000", "--action", "1")
	require.NoError(t, err)
	_, err = runSky(t, dir, "append", "--object", "42", "--timestamp", "2000", "--data", "1=foo")
	require.NoError(t, err)
	_, err = runSky(t, dir, "append", "--object", "7", "--timestamp", "3000", "--action", "2")
	require.NoError(t, err)

	out, err := runSky(t, dir, "events", "42")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "ts=1000")
	assert.Contains(t, lines[1], `1:"foo"`)

	out, err = runSky(t, dir, "events")
	require.NoError(t, err)
	assert.Equal(t, "7\n42\n", out)

	out, err = runSky(t, dir, "stats")
	require.NoError(t, err)
	assert.Contains(t, out, "Events:    3")

	_, err = runSky(t, dir, "events", "99")
	assert.Error(t, err)

	_, err = runSky(t, dir, "events", "not-a-number")
	assert.Error(t, err)
}

func TestPathCommands(t *testing.T) {
	dir := t.TempDir()

	_, err := runSky(t, dir, "path", "put", "--object", "5", "--timestamp", "1000", "--action", "3")
	require.NoError(t, err)
	_, err = runSky(t, dir, "path", "put", "--object", "5", "--timestamp", "2000", "--data", "1=home")
	require.NoError(t, err)

	out, err := runSky(t, dir, "path", "get", "5")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "object=5")

	out, err = runSky(t, dir, "path", "list")
	require.NoError(t, err)
	assert.Equal(t, "5\n", out)

	_, err = runSky(t, dir, "path", "delete", "5")
	require.NoError(t, err)

	_, err = runSky(t, dir, "path", "get", "5")
	assert.Error(t, err)
}

func TestRootCommand_InvalidOverrides(t *testing.T) {
	_, err := runSky(t, t.TempDir(), "encode", "--layout", "protobuf")
	assert.Error(t, err)
}

func TestPropertyCommands(t *testing.T) {
	dir := t.TempDir()

	out, err := runSky(t, dir, "property", "add", "page")
	require.NoError(t, err)
	assert.Contains(t, out, "key 1")
	out, err = runSky(t, dir, "property", "add", "price", "--type", "float", "--transient")
	require.NoError(t, err)
	assert.Contains(t, out, "key 2")

	_, err = runSky(t, dir, "property", "add", "page")
	assert.Error(t, err)
	_, err = runSky(t, dir, "property", "add", "size", "--type", "decimal")
	assert.Error(t, err)

	out, err = runSky(t, dir, "property", "list")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[1], "page")
	assert.Contains(t, lines[2], "float")
	assert.Contains(t, lines[2], "true")

	_, err = runSky(t, dir, "property", "delete", "price")
	require.NoError(t, err)
	_, err = runSky(t, dir, "property", "delete", "price")
	assert.Error(t, err)

	out, err = runSky(t, dir, "property", "list")
	require.NoError(t, err)
	assert.NotContains(t, out, "price")
}

func TestAppendCommand_NamedData(t *testing.T) {
	dir := t.TempDir()

	_, err := runSky(t, dir, "property", "add", "page")
	require.NoError(t, err)
	_, err = runSky(t, dir, "property", "add", "price", "--type", "float")
	require.NoError(t, err)

	out, err := runSky(t, dir, "append", "--object", "42", "--timestamp", "1000",
		"--data", "page=home", "--data", "price=9.99", "--data", "40=raw")
	require.NoError(t, err)
	assert.Contains(t, out, "Appended")
	assert.Contains(t, out, `page:"home"`)

	out, err = runSky(t, dir, "events", "42")
	require.NoError(t, err)
	assert.Equal(t, `ts=1000 object=42 action=0 data={page:"home", price:"9.99", 40:"raw"}`, strings.TrimSpace(out))

	out, err = runSky(t, dir, "append", "--object", "42", "--data", "price=cheap")
	assert.ErrorIs(t, err, schema.ErrInvalidValue)
	assert.NotContains(t, out, "Appended")

	_, err = runSky(t, dir, "append", "--object", "42", "--data", "color=red")
	assert.ErrorIs(t, err, schema.ErrPropertyNotFound)

	_, err = runSky(t, dir, "path", "put", "--object", "42", "--timestamp", "2000", "--data", "page=cart")
	require.NoError(t, err)
	out, err = runSky(t, dir, "path", "get", "42")
	require.NoError(t, err)
	assert.Contains(t, out, `page:"cart"`)

	out, err = runSky(t, dir, "stats")
	require.NoError(t, err)
	assert.Contains(t, out, "Events:    1")
}
