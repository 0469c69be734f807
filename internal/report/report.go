// Package report assembles per-board memory usage reports, including the
// change relative to a base revision when deltas are enabled.
//
// The workspace checkout is the shared resource here: measuring the base
// revision checks it out in place, so restoration of the original commit is
// an unconditional postcondition of the base measurement. A failed restore
// is fatal to the whole run, because every subsequent step would otherwise
// operate on the wrong revision.
package report

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/inotool/inosize/internal/actions"
	"github.com/inotool/inosize/internal/github"
	"github.com/inotool/inosize/internal/gitutil"
	"github.com/inotool/inosize/internal/size"
	"github.com/inotool/inosize/internal/workspace"
)

// Measurement is one sketch's compile outcome at a single revision.
type Measurement struct {
	// Sketch is the sketch path relative to the workspace root.
	Sketch string
	// Success is whether the compilation succeeded.
	Success bool
	// Sizes are the extracted memory figures.
	Sizes size.Usage
	// Warnings is the compiler warning count, when counting is enabled.
	Warnings size.Metric
}

// Entry is one sketch's row in the emitted report. Previous and delta
// fields are N/A when deltas are disabled, the base compile failed, or
// either operand is unavailable.
type Entry struct {
	FQBN             string      `json:"fqbn"`
	Sketch           string      `json:"sketch"`
	CompileSuccess   bool        `json:"compile_success"`
	PreviousFlash    size.Metric `json:"previous_flash"`
	Flash            size.Metric `json:"flash"`
	FlashDelta       size.Metric `json:"flash_delta"`
	PreviousRAM      size.Metric `json:"previous_ram"`
	RAM              size.Metric `json:"ram"`
	RAMDelta         size.Metric `json:"ram_delta"`
	PreviousWarnings size.Metric `json:"previous_warnings"`
	Warnings         size.Metric `json:"warnings"`
	WarningsDelta    size.Metric `json:"warnings_delta"`
}

// Report is the per-board report file's content.
type Report struct {
	FQBN       string  `json:"fqbn"`
	CommitHash string  `json:"commit_hash"`
	CommitURL  string  `json:"commit_url"`
	Sketches   []Entry `json:"sketches"`
}

// Reporter assembles and writes one board's report.
type Reporter struct {
	// FQBN is the board the measurements were taken for.
	FQBN string
	// Workspace is the repository checkout the run operates on.
	Workspace *workspace.Context
	// GitHub resolves pull request base branches.
	GitHub *github.Client
}

// BaseRef resolves the revision deltas are computed against: the pull
// request's base branch for pull_request events, HEAD's immediate parent
// otherwise.
func (r *Reporter) BaseRef(ctx context.Context) (string, error) {
	if r.Workspace.EventName == workspace.EventPullRequest {
		number, err := r.Workspace.PullRequestNumber()
		if err != nil {
			return "", fmt.Errorf("resolving deltas base: %w", err)
		}
		ref, err := r.GitHub.PullRequestBaseRef(ctx, number)
		if err != nil {
			return "", fmt.Errorf("resolving deltas base: %w", err)
		}
		return ref, nil
	}

	sha, err := gitutil.ParentSHA(r.Workspace.Root)
	if err != nil {
		return "", fmt.Errorf("resolving deltas base: %w", err)
	}
	return sha, nil
}

// MeasureBase checks out the deltas base revision, measures every sketch
// there with compile, and puts the original checkout back. The restore runs
// on every exit path, including a panic in compile; if it fails, the whole
// measurement fails regardless of the compile results.
func (r *Reporter) MeasureBase(ctx context.Context, sketches []string, compile func(sketch string) Measurement) (base map[string]Measurement, err error) {
	ref, err := r.BaseRef(ctx)
	if err != nil {
		return nil, err
	}
	actions.Noticef("Comparing against revision %s", ref)

	scope, err := r.Workspace.Checkout(ref)
	if err != nil {
		return nil, fmt.Errorf("checking out deltas base %s: %w", ref, err)
	}
	defer func() {
		if rerr := scope.Restore(); rerr != nil {
			base = nil
			err = fmt.Errorf("restoring workspace after base measurement: %w", rerr)
		}
	}()

	base = make(map[string]Measurement, len(sketches))
	for _, sketch := range sketches {
		base[sketch] = compile(sketch)
	}
	return base, nil
}

// Assemble builds the report from head measurements and, when non-nil, the
// base measurements keyed by sketch path. A sketch missing from base, or
// whose base compile failed, gets N/A previous and delta values.
func (r *Reporter) Assemble(head []Measurement, base map[string]Measurement) (*Report, error) {
	commit, err := r.Workspace.HeadSHA()
	if err != nil {
		return nil, fmt.Errorf("resolving report commit: %w", err)
	}

	report := &Report{
		FQBN:       r.FQBN,
		CommitHash: commit,
		CommitURL:  r.Workspace.CommitURL(commit),
		Sketches:   make([]Entry, 0, len(head)),
	}
	for _, m := range head {
		entry := Entry{
			FQBN:           r.FQBN,
			Sketch:         m.Sketch,
			CompileSuccess: m.Success,
			Flash:          m.Sizes.Flash,
			RAM:            m.Sizes.RAM,
			Warnings:       m.Warnings,
		}
		if prev, ok := base[m.Sketch]; ok && prev.Success {
			entry.PreviousFlash = prev.Sizes.Flash
			entry.FlashDelta = m.Sizes.Flash.Sub(prev.Sizes.Flash)
			entry.PreviousRAM = prev.Sizes.RAM
			entry.RAMDelta = m.Sizes.RAM.Sub(prev.Sizes.RAM)
			entry.PreviousWarnings = prev.Warnings
			entry.WarningsDelta = m.Warnings.Sub(prev.Warnings)
		}
		report.Sketches = append(report.Sketches, entry)
	}
	return report, nil
}

// Filename returns the report file name for a board: the FQBN with the
// field separator replaced so the name is filesystem-safe, plus .json.
func Filename(fqbn string) string {
	return strings.ReplaceAll(fqbn, ":", "-") + ".json"
}

// Write serializes the report into dir, creating the directory as needed
// and overwriting any previous report for the same board. It returns the
// written file's path.
func Write(report *Report, dir string) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating report directory: %w", err)
	}

	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return "", fmt.Errorf("serializing report: %w", err)
	}
	data = append(data, '\n')

	path := filepath.Join(dir, Filename(report.FQBN))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("writing report: %w", err)
	}
	return path, nil
}
