package size

import (
	"bufio"
	"errors"
	"fmt"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
)

// ErrNoSizeData is returned when neither memory figure can be parsed from a
// successful compilation. The toolchain's output format is assumed stable,
// so this indicates a broken invocation rather than a zero-usage sketch.
var ErrNoSizeData = errors.New("no memory usage data found in compiler output")

// Input is what a compilation hands to an extractor.
type Input struct {
	// ConsoleOutput is the combined stdout+stderr of the compile.
	ConsoleOutput string
	// BinaryPath points at the compiled binary inside the build path.
	// Only populated when the invoker was asked for an output location.
	BinaryPath string
}

// Extractor turns compilation output into memory usage figures.
type Extractor interface {
	Extract(in Input) (Usage, error)
}

var (
	// The numbers may carry thousands separators depending on the
	// platform's locale configuration; separators are stripped before
	// parsing. First match wins per category.
	flashPattern = regexp.MustCompile(`Sketch uses ([0-9][0-9,]*) bytes`)
	ramPattern   = regexp.MustCompile(`Global variables use ([0-9][0-9,]*) bytes`)
)

// ConsoleExtractor scrapes arduino-cli's human-readable size summary lines.
type ConsoleExtractor struct{}

// Extract scans the console output line by line for the flash and RAM usage
// summaries. Finding neither is a hard failure; finding only one reports the
// other as NotApplicable (some platforms are not configured to report RAM).
func (ConsoleExtractor) Extract(in Input) (Usage, error) {
	usage := Usage{Flash: NotApplicable, RAM: NotApplicable}

	scanner := bufio.NewScanner(strings.NewReader(in.ConsoleOutput))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if !usage.Flash.Known() {
			if m := flashPattern.FindStringSubmatch(line); m != nil {
				n, err := parseSeparatedInt(m[1])
				if err != nil {
					return Usage{}, fmt.Errorf("parsing flash usage from %q: %w", line, err)
				}
				usage.Flash = Bytes(n)
			}
		}
		if !usage.RAM.Known() {
			if m := ramPattern.FindStringSubmatch(line); m != nil {
				n, err := parseSeparatedInt(m[1])
				if err != nil {
					return Usage{}, fmt.Errorf("parsing RAM usage from %q: %w", line, err)
				}
				usage.RAM = Bytes(n)
			}
		}
		if usage.Flash.Known() && usage.RAM.Known() {
			break
		}
	}

	if !usage.Flash.Known() && !usage.RAM.Known() {
		return Usage{}, ErrNoSizeData
	}
	return usage, nil
}

// parseSeparatedInt parses a decimal that may contain thousands separators.
func parseSeparatedInt(s string) (int64, error) {
	return strconv.ParseInt(strings.ReplaceAll(s, ",", ""), 10, 64)
}

// ToolExtractor sums per-section sizes reported by an architecture-specific
// size tool (e.g. arm-none-eabi-size) run against the compiled binary. Used
// for board families whose console summary is known unreliable.
type ToolExtractor struct {
	// Tool is the size tool executable name.
	Tool string
	// FlashSections matches the names of sections counted as flash
	// (code + initialized data, which is stored in flash and copied out
	// at startup).
	FlashSections *regexp.Regexp
	// RAMSections matches the names of sections counted as RAM
	// (initialized + uninitialized data).
	RAMSections *regexp.Regexp

	// run is a seam for tests. Defaults to executing Tool.
	run func(tool string, args ...string) ([]byte, error)
}

func (t ToolExtractor) Extract(in Input) (Usage, error) {
	if in.BinaryPath == "" {
		return Usage{}, fmt.Errorf("size tool %s requires a compiled binary path", t.Tool)
	}

	run := t.run
	if run == nil {
		run = func(tool string, args ...string) ([]byte, error) {
			return exec.Command(tool, args...).Output()
		}
	}

	out, err := run(t.Tool, "-A", in.BinaryPath)
	if err != nil {
		return Usage{}, fmt.Errorf("running %s on %s: %w", t.Tool, in.BinaryPath, err)
	}

	var flash, ram int64
	var flashSeen, ramSeen bool

	scanner := bufio.NewScanner(strings.NewReader(string(out)))
	for scanner.Scan() {
		// SysV (-A) format: "section   size   addr"
		fields := strings.Fields(scanner.Text())
		if len(fields) < 2 || !strings.HasPrefix(fields[0], ".") {
			continue
		}
		n, err := strconv.ParseInt(fields[1], 10, 64)
		if err != nil {
			continue
		}
		if t.FlashSections != nil && t.FlashSections.MatchString(fields[0]) {
			flash += n
			flashSeen = true
		}
		if t.RAMSections != nil && t.RAMSections.MatchString(fields[0]) {
			ram += n
			ramSeen = true
		}
	}

	usage := Usage{Flash: NotApplicable, RAM: NotApplicable}
	if flashSeen {
		usage.Flash = Bytes(flash)
	}
	if ramSeen {
		usage.RAM = Bytes(ram)
	}
	if !flashSeen && !ramSeen {
		return Usage{}, fmt.Errorf("%s reported no matching sections for %s: %w", t.Tool, in.BinaryPath, ErrNoSizeData)
	}
	return usage, nil
}

// warningPattern matches gcc-style warning locations in compiler output.
var warningPattern = regexp.MustCompile(`:[0-9]+:[0-9]+: warning:`)

// CountWarnings returns the number of compiler warnings in the output.
func CountWarnings(consoleOutput string) int {
	return len(warningPattern.FindAllString(consoleOutput, -1))
}
