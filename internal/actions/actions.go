// Package actions emits GitHub Actions workflow commands. These are the
// tool's native log surface when running inside a workflow: annotations
// surface in the run summary and group markers make long compiler output
// collapsible in the log view.
//
// Reference: https://docs.github.com/en/actions/reference/workflow-commands-for-github-actions
package actions

import (
	"fmt"
	"io"
	"os"
	"strings"
)

// Output is where workflow commands are written. Tests may redirect it.
var Output io.Writer = os.Stdout

// escapeData escapes annotation message data per the workflow command spec.
// Order matters: % must be escaped first.
func escapeData(s string) string {
	s = strings.ReplaceAll(s, "%", "%25")
	s = strings.ReplaceAll(s, "\r", "%0D")
	s = strings.ReplaceAll(s, "\n", "%0A")
	return s
}

// Errorf emits an error annotation.
func Errorf(format string, args ...interface{}) {
	fmt.Fprintf(Output, "::error::%s\n", escapeData(fmt.Sprintf(format, args...)))
}

// Warningf emits a warning annotation.
func Warningf(format string, args ...interface{}) {
	fmt.Fprintf(Output, "::warning::%s\n", escapeData(fmt.Sprintf(format, args...)))
}

// Noticef emits a notice annotation.
func Noticef(format string, args ...interface{}) {
	fmt.Fprintf(Output, "::notice::%s\n", escapeData(fmt.Sprintf(format, args...)))
}

// Debugf emits a debug line, visible only when step debug logging is on.
func Debugf(format string, args ...interface{}) {
	fmt.Fprintf(Output, "::debug::%s\n", escapeData(fmt.Sprintf(format, args...)))
}

// Group opens a collapsible log group.
func Group(title string) {
	fmt.Fprintf(Output, "::group::%s\n", escapeData(title))
}

// EndGroup closes the current log group.
func EndGroup() {
	fmt.Fprintln(Output, "::endgroup::")
}

// Grouped runs fn inside a collapsible log group, closing it on all paths.
func Grouped(title string, fn func()) {
	Group(title)
	defer EndGroup()
	fn()
}
