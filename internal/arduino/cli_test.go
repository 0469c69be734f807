package arduino

import (
	"bytes"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inotool/inosize/internal/actions"
)

// fakeCLI writes a shell script that stands in for arduino-cli.
func fakeCLI(t *testing.T, script string) *CLI {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell script fake requires a POSIX shell")
	}
	dir := t.TempDir()
	path := filepath.Join(dir, "arduino-cli")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+script), 0o755))
	return &CLI{
		Path:    path,
		DataDir: filepath.Join(dir, "data"),
		UserDir: filepath.Join(dir, "user"),
	}
}

func captureOutput(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	old := actions.Output
	actions.Output = &buf
	t.Cleanup(func() { actions.Output = old })
	return &buf
}

func TestRunCapturesCombinedOutput(t *testing.T) {
	captureOutput(t)
	cli := fakeCLI(t, `echo "to stdout"; echo "to stderr" >&2`)

	out, err := cli.Run([]string{"version"}, OutputNever)
	require.NoError(t, err)
	assert.Contains(t, out, "to stdout")
	assert.Contains(t, out, "to stderr")
}

func TestRunDirectoriesEnv(t *testing.T) {
	captureOutput(t)
	cli := fakeCLI(t, `echo "$ARDUINO_DIRECTORIES_DATA"; echo "$ARDUINO_DIRECTORIES_USER"`)

	out, err := cli.Run([]string{"version"}, OutputNever)
	require.NoError(t, err)
	assert.Contains(t, out, cli.DataDir)
	assert.Contains(t, out, cli.UserDir)
}

func TestRunEchoPolicy(t *testing.T) {
	t.Run("on failure", func(t *testing.T) {
		buf := captureOutput(t)
		cli := fakeCLI(t, `echo "boom"; exit 5`)
		_, err := cli.Run([]string{"core", "install", "nope"}, OutputOnFailure)
		require.Error(t, err)
		assert.Contains(t, buf.String(), "::group::")
		assert.Contains(t, buf.String(), "boom")
	})

	t.Run("never", func(t *testing.T) {
		buf := captureOutput(t)
		cli := fakeCLI(t, `echo "boom"; exit 5`)
		_, err := cli.Run([]string{"core", "install", "nope"}, OutputNever)
		require.Error(t, err)
		assert.NotContains(t, buf.String(), "::group::")
	})

	t.Run("always on success", func(t *testing.T) {
		buf := captureOutput(t)
		cli := fakeCLI(t, `echo "ok"`)
		_, err := cli.Run([]string{"version"}, OutputAlways)
		require.NoError(t, err)
		assert.Contains(t, buf.String(), "ok")
	})
}

func TestRunVerboseFlags(t *testing.T) {
	captureOutput(t)
	cli := fakeCLI(t, `echo "$@"`)
	cli.Verbose = true

	out, err := cli.Run([]string{"version"}, OutputNever)
	require.NoError(t, err)
	assert.Contains(t, out, "--log-level warn --verbose")
}

func TestCompile(t *testing.T) {
	buf := captureOutput(t)
	cli := fakeCLI(t, `echo "Sketch uses 924 bytes (2%) of program storage space."`)

	result := cli.Compile("arduino:avr:uno", "/tmp/Blink", "")
	assert.True(t, result.Success)
	assert.Contains(t, result.Output, "924 bytes")
	assert.Contains(t, buf.String(), "::group::Compiling sketch: /tmp/Blink")
	assert.NotContains(t, buf.String(), "::error::")
}

func TestCompileFailure(t *testing.T) {
	buf := captureOutput(t)
	cli := fakeCLI(t, `echo "Blink.ino:3:1: error: expected initializer"; exit 1`)

	result := cli.Compile("arduino:avr:uno", "/tmp/Blink", "")
	assert.False(t, result.Success)
	assert.Contains(t, buf.String(), "::error::Compilation failed")
}

func TestCompileBuildPath(t *testing.T) {
	captureOutput(t)
	cli := fakeCLI(t, `echo "args: $@"`)
	buildPath := t.TempDir()

	result := cli.Compile("arduino:sam:arduino_due_x", "/tmp/Blink", buildPath)
	assert.Contains(t, result.Output, "--build-path "+buildPath)

	// No artifacts yet.
	assert.Empty(t, result.BinaryPath())

	require.NoError(t, os.WriteFile(filepath.Join(buildPath, "Blink.ino.elf"), []byte("elf"), 0o644))
	assert.Equal(t, filepath.Join(buildPath, "Blink.ino.elf"), result.BinaryPath())
}
