// Package arduino invokes the arduino-cli executable and captures its
// output. One compilation is independent of all others: a failed compile is
// reported to the caller, never fatal to the batch.
package arduino

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/inotool/inosize/internal/actions"
)

// OutputMode controls when a command's combined output is echoed to the log.
// Output is always echoed on failure unless OutputNever is selected.
type OutputMode int

const (
	// OutputNever suppresses echoing; the caller prints what it needs.
	OutputNever OutputMode = iota
	// OutputOnFailure echoes only when the command exits non-zero.
	OutputOnFailure
	// OutputAlways echoes regardless of exit status.
	OutputAlways
)

// CLI runs arduino-cli commands with a fixed data/user directory layout.
type CLI struct {
	// Path is the arduino-cli executable.
	Path string
	// DataDir is the Arduino CLI data directory (package installs).
	DataDir string
	// UserDir is the sketchbook directory (libraries, user platforms).
	UserDir string
	// Verbose enables arduino-cli's own verbose output.
	Verbose bool
}

// Run executes an arduino-cli subcommand, returning combined stdout+stderr.
// A non-zero exit status is returned as an *exec.ExitError wrapped with the
// command line.
func (c *CLI) Run(args []string, mode OutputMode) (string, error) {
	full := args
	if c.Verbose {
		full = append(append([]string{}, args...), "--log-level", "warn", "--verbose")
	}

	cmd := exec.Command(c.Path, full...)
	cmd.Env = append(os.Environ(),
		"ARDUINO_DIRECTORIES_DATA="+c.DataDir,
		"ARDUINO_DIRECTORIES_USER="+c.UserDir,
	)

	out, err := cmd.CombinedOutput()
	output := string(out)

	if mode == OutputAlways || (err != nil && mode == OutputOnFailure) {
		actions.Grouped("Running command: "+c.Path+" "+strings.Join(full, " "), func() {
			fmt.Fprintln(actions.Output, output)
		})
	}

	if err != nil {
		return output, fmt.Errorf("arduino-cli %s: %w", strings.Join(args, " "), err)
	}
	return output, nil
}

// CompileResult captures one sketch compilation.
type CompileResult struct {
	// Sketch is the sketch directory's absolute path.
	Sketch string
	// Success is whether arduino-cli exited zero.
	Success bool
	// Output is the combined console output.
	Output string
	// BuildPath is where artifacts were written, when requested.
	BuildPath string
}

// BinaryPath returns the compiled .elf inside the build path, or empty when
// no build path was requested or no binary exists.
func (r *CompileResult) BinaryPath() string {
	if r.BuildPath == "" {
		return ""
	}
	matches, err := filepath.Glob(filepath.Join(r.BuildPath, "*.elf"))
	if err != nil || len(matches) == 0 {
		return ""
	}
	return matches[0]
}

// Compile builds the sketch for the board, requesting all warning classes.
// buildPath, when non-empty, directs artifacts to a caller-specified
// location (required for the binary size-tool extraction strategy). The
// output is echoed inside a log group; failure is reported in the result,
// not as an error.
func (c *CLI) Compile(fqbn, sketchDir, buildPath string) *CompileResult {
	args := []string{"compile", "--warnings", "all", "--fqbn", fqbn}
	if buildPath != "" {
		args = append(args, "--build-path", buildPath)
	}
	args = append(args, sketchDir)

	output, err := c.Run(args, OutputNever)

	actions.Grouped("Compiling sketch: "+sketchDir, func() {
		fmt.Fprintln(actions.Output, output)
	})

	result := &CompileResult{
		Sketch:    sketchDir,
		Success:   err == nil,
		Output:    output,
		BuildPath: buildPath,
	}
	if !result.Success {
		actions.Errorf("Compilation failed")
	}
	return result
}

// ClearBuildCache removes arduino-cli's compile caches. Clearing between
// compilations keeps per-sketch warning counts accurate; otherwise warnings
// from cached core code only appear in the first sketch's output.
func ClearBuildCache() error {
	matches, err := filepath.Glob(filepath.Join(os.TempDir(), "arduino*"))
	if err != nil {
		return err
	}
	for _, cache := range matches {
		if err := os.RemoveAll(cache); err != nil {
			return fmt.Errorf("clearing build cache %s: %w", cache, err)
		}
	}
	return nil
}
