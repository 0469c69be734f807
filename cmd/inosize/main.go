// Command inosize compiles Arduino sketches for a set of boards and reports
// memory usage: per-commit size reports with deltas against a base revision,
// and append-only size trend rows in a spreadsheet.
package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/inotool/inosize/internal/actions"
	"github.com/inotool/inosize/internal/ui"
)

// Version is the current version of inosize (overridden by ldflags at build time)
var Version = "1.0.0"

var rootCmd = &cobra.Command{
	Use:   "inosize",
	Short: "Compile Arduino sketches and track memory usage",
	Long: `inosize compiles Arduino sketches and reports the flash and RAM they use.

The compile command installs the Arduino CLI, platforms, and libraries,
compiles every sketch under the configured paths, and writes a per-board
memory usage report, optionally with deltas against the base revision.
The trend command appends a report's figures to a spreadsheet to track
memory usage over time.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.Version = Version
}

func main() {
	ui.InitColorProfile()
	if err := rootCmd.Execute(); err != nil {
		actions.Errorf("%v", err)
		os.Exit(1)
	}
}
