package deps

import (
	"archive/tar"
	"archive/zip"
	"bytes"
	"compress/gzip"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inotool/inosize/internal/actions"
	"github.com/inotool/inosize/internal/arduino"
	"github.com/inotool/inosize/internal/config"
)

// newResolver builds a Resolver over temp directories, with a shell script
// standing in for arduino-cli. The script receives the arguments arduino-cli
// would.
func newResolver(t *testing.T, script string) *Resolver {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell script fake requires a POSIX shell")
	}

	var buf bytes.Buffer
	old := actions.Output
	actions.Output = &buf
	t.Cleanup(func() { actions.Output = old })

	dir := t.TempDir()
	cliPath := filepath.Join(dir, "arduino-cli")
	require.NoError(t, os.WriteFile(cliPath, []byte("#!/bin/sh\n"+script), 0o755))

	paths := Paths{
		CLIInstall: filepath.Join(dir, "bin"),
		Data:       filepath.Join(dir, ".arduino15"),
		User:       filepath.Join(dir, "Arduino"),
	}
	workspace := filepath.Join(dir, "workspace")
	require.NoError(t, os.MkdirAll(workspace, 0o755))

	return &Resolver{
		CLI:           &arduino.CLI{Path: cliPath, DataDir: paths.Data, UserDir: paths.User},
		Paths:         paths,
		WorkspaceRoot: workspace,
		TempDir:       t.TempDir(),
	}
}

// argLog makes a fake CLI script that appends each invocation's arguments to
// a log file, and returns a reader for the log.
func argLog(t *testing.T) (script string, read func() string) {
	t.Helper()
	logPath := filepath.Join(t.TempDir(), "args.log")
	script = `echo "$@" >> ` + logPath
	read = func() string {
		data, err := os.ReadFile(logPath)
		require.NoError(t, err)
		return string(data)
	}
	return script, read
}

func TestRepoName(t *testing.T) {
	assert.Equal(t, "Servo", repoName("https://github.com/arduino-libraries/Servo.git"))
	assert.Equal(t, "Servo", repoName("https://github.com/arduino-libraries/Servo.git/"))
	assert.Equal(t, "foo", repoName("git://example.com/foo"))
}

func TestInstallFromPath(t *testing.T) {
	r := newResolver(t, "")
	source := filepath.Join(t.TempDir(), "MyLib")
	require.NoError(t, os.MkdirAll(source, 0o755))
	dest := filepath.Join(t.TempDir(), "libraries")

	require.NoError(t, r.installFromPath(source, dest, "", false))
	target, err := os.Readlink(filepath.Join(dest, "MyLib"))
	require.NoError(t, err)
	assert.Equal(t, source, target)

	// Existing installation without force is an error.
	assert.Error(t, r.installFromPath(source, dest, "", false))

	// Force replaces it, and destination-name renames it.
	require.NoError(t, r.installFromPath(source, dest, "", true))
	require.NoError(t, r.installFromPath(source, dest, "Renamed", false))
	_, err = os.Readlink(filepath.Join(dest, "Renamed"))
	assert.NoError(t, err)
}

func TestAbsoluteSourcePath(t *testing.T) {
	r := newResolver(t, "")
	assert.Equal(t, filepath.Join(r.WorkspaceRoot, "extras/Lib"), r.absoluteSourcePath("extras/Lib"))
	assert.Equal(t, "/opt/lib", r.absoluteSourcePath("/opt/lib"))
}

func TestArchiveRoot(t *testing.T) {
	t.Run("single folder", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, os.MkdirAll(filepath.Join(dir, "MyLib-1.0.0"), 0o755))
		root, err := archiveRoot(dir)
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(dir, "MyLib-1.0.0"), root)
	})

	t.Run("macos metadata ignored", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, os.MkdirAll(filepath.Join(dir, "MyLib"), 0o755))
		require.NoError(t, os.MkdirAll(filepath.Join(dir, "__MACOSX"), 0o755))
		root, err := archiveRoot(dir)
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(dir, "MyLib"), root)
	})

	t.Run("multiple folders", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, os.MkdirAll(filepath.Join(dir, "src"), 0o755))
		require.NoError(t, os.MkdirAll(filepath.Join(dir, "examples"), 0o755))
		root, err := archiveRoot(dir)
		require.NoError(t, err)
		assert.Equal(t, dir, root)
	})

	t.Run("loose file", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(dir, "library.properties"), nil, 0o644))
		root, err := archiveRoot(dir)
		require.NoError(t, err)
		assert.Equal(t, dir, root)
	})
}

func TestSecurePathRejectsTraversal(t *testing.T) {
	_, err := securePath("/tmp/extract", "../../etc/passwd")
	assert.Error(t, err)

	path, err := securePath("/tmp/extract", "MyLib/src/MyLib.h")
	require.NoError(t, err)
	assert.Equal(t, "/tmp/extract/MyLib/src/MyLib.h", path)
}

// zipFixture builds a zip archive in memory with the given file names.
func zipFixture(t *testing.T, names ...string) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for _, name := range names {
		f, err := w.Create(name)
		require.NoError(t, err)
		_, err = f.Write([]byte("content"))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func TestDownloadDependency(t *testing.T) {
	archive := zipFixture(t, "MyLib-1.0.0/library.properties", "MyLib-1.0.0/src/MyLib.h")
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		w.Write(archive)
	}))
	defer server.Close()

	r := newResolver(t, "")
	root, err := r.downloadDependency(config.DependencySpec{SourceURL: server.URL + "/MyLib.zip"})
	require.NoError(t, err)
	assert.Equal(t, "MyLib-1.0.0", filepath.Base(root))
	assert.FileExists(t, filepath.Join(root, "src", "MyLib.h"))
}

func TestDownloadRejectsNotFound(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	defer server.Close()

	_, err := download(server.URL+"/missing.zip", t.TempDir())
	assert.ErrorContains(t, err, "status 404")
}

// tarGzFixture builds a gzipped tarball in memory from name→content pairs.
func tarGzFixture(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)
	for name, content := range files {
		require.NoError(t, tw.WriteHeader(&tar.Header{
			Name:     name,
			Typeflag: tar.TypeReg,
			Mode:     0o755,
			Size:     int64(len(content)),
		}))
		_, err := tw.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, tw.Close())
	require.NoError(t, gz.Close())
	return buf.Bytes()
}

func TestInstallCLI(t *testing.T) {
	// A release archive carrying the executable at its root.
	archive := tarGzFixture(t, map[string]string{"arduino-cli": "#!/bin/sh\n"})

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		assert.Equal(t, "/arduino-cli_0.35.3_Linux_64bit.tar.gz", req.URL.Path)
		w.Write(archive)
	}))
	defer server.Close()

	r := newResolver(t, "")
	r.DownloadBase = server.URL
	require.NoError(t, r.InstallCLI("0.35.3"))
	assert.FileExists(t, r.Paths.CLIPath())
}

func TestInstallPlatformsFromManager(t *testing.T) {
	script, read := argLog(t)
	r := newResolver(t, script)

	err := r.InstallPlatforms(config.DependencyList{Manager: []config.DependencySpec{
		{Name: "arduino:avr", Version: "1.8.3"},
		{Name: "esp8266:esp8266", SourceURL: "https://arduino.esp8266.com/stable/package_esp8266com_index.json"},
	}})
	require.NoError(t, err)

	log := read()
	assert.Contains(t, log, "core update-index --additional-urls https://arduino.esp8266.com/stable/package_esp8266com_index.json")
	assert.Contains(t, log, "core install arduino:avr@1.8.3")
	assert.Contains(t, log, "core install esp8266:esp8266 --additional-urls https://arduino.esp8266.com")
}

func TestPlatformInstallPath(t *testing.T) {
	t.Run("sketchbook hardware", func(t *testing.T) {
		r := newResolver(t, `echo '[]'`)
		parent, name, force, err := r.platformInstallPath("arduino:avr")
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(r.Paths.UserHardware(), "arduino"), parent)
		assert.Equal(t, "avr", name)
		assert.False(t, force)
	})

	t.Run("replaces boards manager install", func(t *testing.T) {
		r := newResolver(t, `echo '[{"id": "arduino:avr", "installed": "1.8.3"}]'`)
		parent, name, force, err := r.platformInstallPath("arduino:avr")
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(r.Paths.BoardManagerPackages(), "arduino", "hardware", "avr"), parent)
		assert.Equal(t, "1.8.3", name)
		assert.True(t, force)
	})

	t.Run("invalid name", func(t *testing.T) {
		r := newResolver(t, `echo '[]'`)
		_, _, _, err := r.platformInstallPath("notaplatform")
		assert.Error(t, err)
	})
}

func TestPlatformInstallPathUpdatesIndexFirst(t *testing.T) {
	// Overlay-only configurations never install from the Boards Manager,
	// so the index fetch has to happen here or core list fails.
	script, read := argLog(t)
	r := newResolver(t, script+"\necho '[]'")

	_, _, _, err := r.platformInstallPath("foo:bar")
	require.NoError(t, err)

	log := read()
	updateIndex := strings.Index(log, "core update-index")
	list := strings.Index(log, "core list --format json")
	require.GreaterOrEqual(t, updateIndex, 0)
	assert.Greater(t, list, updateIndex)
}

func TestInstallPlatformOverlayRequiresName(t *testing.T) {
	r := newResolver(t, `echo '[]'`)
	err := r.InstallPlatforms(config.DependencyList{Path: []config.DependencySpec{
		{SourcePath: "extras/DevPlatform"},
	}})
	assert.ErrorContains(t, err, "requires a name")
}

func TestInstallPlatformFromPath(t *testing.T) {
	r := newResolver(t, `echo '[]'`)
	source := filepath.Join(r.WorkspaceRoot, "extras", "DevPlatform")
	require.NoError(t, os.MkdirAll(source, 0o755))

	err := r.InstallPlatforms(config.DependencyList{Path: []config.DependencySpec{
		{Name: "foo:bar", SourcePath: "extras/DevPlatform"},
	}})
	require.NoError(t, err)

	target, err := os.Readlink(filepath.Join(r.Paths.UserHardware(), "foo", "bar"))
	require.NoError(t, err)
	assert.Equal(t, source, target)
}

func TestInstallLibraries(t *testing.T) {
	script, read := argLog(t)
	r := newResolver(t, script)

	libSource := filepath.Join(r.WorkspaceRoot, "extras", "TestLib")
	require.NoError(t, os.MkdirAll(libSource, 0o755))

	err := r.InstallLibraries(config.DependencyList{
		Manager: []config.DependencySpec{{Name: "Servo", Version: "1.1.8"}},
		Path:    []config.DependencySpec{{SourcePath: "extras/TestLib", DestinationName: "TestLib"}},
	}, true)
	require.NoError(t, err)

	assert.Contains(t, read(), "lib install Servo@1.1.8")

	// Without a project name the link falls back to the folder name.
	workspaceLink := filepath.Join(r.Paths.Libraries(), filepath.Base(r.WorkspaceRoot))
	target, err := os.Readlink(workspaceLink)
	require.NoError(t, err)
	assert.Equal(t, r.WorkspaceRoot, target)

	target, err = os.Readlink(filepath.Join(r.Paths.Libraries(), "TestLib"))
	require.NoError(t, err)
	assert.Equal(t, libSource, target)
}

func TestInstallLibrariesUsesProjectName(t *testing.T) {
	// Checkout directories are often generically named ("workspace"); the
	// library must carry the repository's name instead.
	r := newResolver(t, "")
	r.ProjectName = "ArduinoCore-avr"

	require.NoError(t, r.InstallLibraries(config.DependencyList{}, true))

	target, err := os.Readlink(filepath.Join(r.Paths.Libraries(), "ArduinoCore-avr"))
	require.NoError(t, err)
	assert.Equal(t, r.WorkspaceRoot, target)
}

func TestInstallLibrariesSkipsWorkspace(t *testing.T) {
	r := newResolver(t, "")
	require.NoError(t, r.InstallLibraries(config.DependencyList{}, false))
	assert.NoFileExists(t, filepath.Join(r.Paths.Libraries(), filepath.Base(r.WorkspaceRoot)))
}

func TestInstallLibraryFromArchive(t *testing.T) {
	archive := zipFixture(t, "Stepper-master/library.properties", "Stepper-master/src/Stepper.h")
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		w.Write(archive)
	}))
	defer server.Close()

	r := newResolver(t, "")
	err := r.InstallLibraries(config.DependencyList{
		Archive: []config.DependencySpec{{SourceURL: server.URL + "/Stepper.zip", DestinationName: "Stepper"}},
	}, false)
	require.NoError(t, err)

	link := filepath.Join(r.Paths.Libraries(), "Stepper")
	target, err := os.Readlink(link)
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(target, "src", "Stepper.h"))
}
