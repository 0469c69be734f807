package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/inotool/inosize/internal/actions"
	"github.com/inotool/inosize/internal/arduino"
	"github.com/inotool/inosize/internal/config"
	"github.com/inotool/inosize/internal/deps"
	"github.com/inotool/inosize/internal/github"
	"github.com/inotool/inosize/internal/report"
	"github.com/inotool/inosize/internal/size"
	"github.com/inotool/inosize/internal/sketch"
	"github.com/inotool/inosize/internal/ui"
	"github.com/inotool/inosize/internal/workspace"
)

var compileCmd = &cobra.Command{
	Use:   "compile",
	Short: "Install dependencies, compile every sketch, and report memory usage",
	Long: `Install the Arduino CLI and the configured platform and library
dependencies, compile every sketch found under the sketch paths, and write
the board's memory usage report.

Inputs are read from INPUT_* environment variables, the way GitHub Actions
delivers them. A failing sketch never stops the batch: every sketch is
compiled and reported, and the command exits non-zero at the end if any
compilation failed.`,
	Args: cobra.NoArgs,
	RunE: runCompile,
}

func init() {
	rootCmd.AddCommand(compileCmd)
}

func runCompile(cmd *cobra.Command, args []string) error {
	in, err := config.Load()
	if err != nil {
		return err
	}
	ws, err := workspace.FromEnv()
	if err != nil {
		return err
	}
	owner, repo, found := strings.Cut(ws.Repository, "/")
	if !found {
		return fmt.Errorf("invalid repository slug %q", ws.Repository)
	}

	// Clones and downloads are linked into place, so the temporary
	// directory must live until the last compilation finishes.
	tempDir, err := os.MkdirTemp("", "inosize")
	if err != nil {
		return err
	}
	defer os.RemoveAll(tempDir)

	paths := deps.DefaultPaths()
	cli := &arduino.CLI{
		Path:    paths.CLIPath(),
		DataDir: paths.Data,
		UserDir: paths.User,
		Verbose: in.Verbose,
	}
	resolver := &deps.Resolver{
		CLI:           cli,
		Paths:         paths,
		WorkspaceRoot: ws.Root,
		ProjectName:   repo,
		TempDir:       tempDir,
		Verbose:       in.Verbose,
	}
	if err := installDependencies(in, resolver); err != nil {
		return err
	}

	sketches, err := findSketches(in.SketchPaths, ws.Root)
	if err != nil {
		return err
	}

	measure := func(name string) report.Measurement {
		return measureSketch(cli, in, name, filepath.Join(ws.Root, name))
	}

	head := make([]report.Measurement, 0, len(sketches))
	failures := 0
	for _, name := range sketches {
		m := measure(name)
		if !m.Success {
			failures++
		}
		head = append(head, m)
	}

	reporter := &report.Reporter{
		FQBN:      in.FQBN,
		Workspace: ws,
		GitHub:    github.NewClient(in.GithubToken, owner, repo),
	}

	var base map[string]report.Measurement
	if in.EnableDeltasReport {
		base, err = reporter.MeasureBase(cmd.Context(), sketches, measure)
		if err != nil {
			return err
		}
	}

	rep, err := reporter.Assemble(head, base)
	if err != nil {
		return err
	}

	reportDir := in.SketchesReportPath
	if !filepath.IsAbs(reportDir) {
		reportDir = filepath.Join(ws.Root, reportDir)
	}
	path, err := report.Write(rep, reportDir)
	if err != nil {
		return err
	}
	actions.Noticef("Sketches report written to %s", path)
	fmt.Fprintln(actions.Output, ui.RenderSummary(rep))

	if failures > 0 {
		return fmt.Errorf("%d of %d sketches failed to compile", failures, len(sketches))
	}
	return nil
}

// installDependencies installs the CLI, platforms, and libraries, in that
// order. All installation completes before the first compile.
func installDependencies(in *config.Inputs, r *deps.Resolver) error {
	var err error
	actions.Grouped("Installing Arduino CLI "+in.CLIVersion, func() {
		err = r.InstallCLI(in.CLIVersion)
	})
	if err != nil {
		return err
	}

	platforms, err := in.Platforms()
	if err != nil {
		return err
	}
	actions.Grouped("Installing platforms", func() {
		err = r.InstallPlatforms(platforms)
	})
	if err != nil {
		return err
	}

	libraries, installWorkspace, err := in.Libraries()
	if err != nil {
		return err
	}
	actions.Grouped("Installing libraries", func() {
		err = r.InstallLibraries(libraries, installWorkspace)
	})
	return err
}

// findSketches resolves the sketch path inputs against the workspace root
// and returns the discovered sketches as workspace-relative paths, which
// stay valid across base-revision checkouts.
func findSketches(inputs []string, workspaceRoot string) ([]string, error) {
	roots := make([]string, 0, len(inputs))
	for _, p := range inputs {
		if !filepath.IsAbs(p) {
			p = filepath.Join(workspaceRoot, p)
		}
		roots = append(roots, p)
	}

	dirs, err := sketch.Find(roots)
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(dirs))
	for _, dir := range dirs {
		name, err := filepath.Rel(workspaceRoot, dir)
		if err != nil || strings.HasPrefix(name, "..") {
			return nil, fmt.Errorf("sketch %s is outside the workspace", dir)
		}
		names = append(names, name)
	}
	return names, nil
}

// measureSketch compiles one sketch and extracts its memory usage. Failure
// is recorded in the measurement, never returned: the batch goes on.
func measureSketch(cli *arduino.CLI, in *config.Inputs, name, dir string) report.Measurement {
	buildPath := ""
	if size.NeedsBuildPath(in.FQBN) {
		bp, err := os.MkdirTemp("", "inosize-build")
		if err != nil {
			actions.Errorf("Creating build path for %s: %v", name, err)
			return report.Measurement{Sketch: name}
		}
		defer os.RemoveAll(bp)
		buildPath = bp
	}

	result := cli.Compile(in.FQBN, dir, buildPath)

	m := report.Measurement{Sketch: name, Success: result.Success}
	if in.EnableWarningsReport {
		m.Warnings = size.Bytes(int64(size.CountWarnings(result.Output)))
	}
	if result.Success {
		usage, err := size.ForBoard(in.FQBN).Extract(size.Input{
			ConsoleOutput: result.Output,
			BinaryPath:    result.BinaryPath(),
		})
		if err != nil {
			actions.Errorf("Extracting memory usage for %s: %v", name, err)
			m.Success = false
		} else {
			m.Sizes = usage
		}
	}

	// Stale caches bleed core warnings into only the first sketch's
	// output, skewing per-sketch warning counts. Without warning counting
	// the cache is harmless, and keeping it speeds up the batch.
	if in.EnableWarningsReport {
		if err := arduino.ClearBuildCache(); err != nil {
			actions.Warningf("Clearing build cache: %v", err)
		}
	}
	return m
}
