// Package config resolves and validates the action's inputs, and parses the
// declarative platform/library dependency lists into typed specs.
//
// Inputs arrive the way GitHub Actions delivers them: INPUT_* environment
// variables. Validation happens once here, before any installation work
// begins; a bad input combination never reaches the resolver.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/inotool/inosize/internal/actions"
)

// Input names, as declared in the action metadata.
const (
	inputCLIVersion           = "cli-version"
	inputFQBN                 = "fqbn"
	inputPlatforms            = "platforms"
	inputLibraries            = "libraries"
	inputSketchPaths          = "sketch-paths"
	inputVerbose              = "verbose"
	inputGithubToken          = "github-token"
	inputEnableDeltasReport   = "enable-deltas-report"
	inputEnableWarningsReport = "enable-warnings-report"
	inputSketchesReportPath   = "sketches-report-path"
)

// Inputs is the validated configuration for one pipeline run.
type Inputs struct {
	CLIVersion string

	// FQBN identifies the compile target. AdditionalURL is the optional
	// Boards Manager index URL that may trail the fqbn input.
	FQBN          string
	AdditionalURL string

	// PlatformsYAML and LibrariesRaw are kept unparsed here; the resolver
	// asks for the typed lists via Platforms() and Libraries().
	PlatformsYAML string
	LibrariesRaw  string

	SketchPaths []string

	Verbose              bool
	GithubToken          string
	EnableDeltasReport   bool
	EnableWarningsReport bool
	SketchesReportPath   string
}

func newViper() *viper.Viper {
	v := viper.New()
	for _, name := range []string{
		inputCLIVersion, inputFQBN, inputPlatforms, inputLibraries,
		inputSketchPaths, inputVerbose, inputGithubToken,
		inputEnableDeltasReport, inputEnableWarningsReport,
		inputSketchesReportPath,
	} {
		// Actions upper-cases the input name and prefixes INPUT_;
		// dashes are preserved, so viper's automatic env handling
		// can't be used here.
		_ = v.BindEnv(name, "INPUT_"+strings.ToUpper(name))
	}

	v.SetDefault(inputCLIVersion, "latest")
	v.SetDefault(inputSketchPaths, "examples")
	v.SetDefault(inputVerbose, "false")
	v.SetDefault(inputEnableDeltasReport, "false")
	v.SetDefault(inputEnableWarningsReport, "false")
	v.SetDefault(inputSketchesReportPath, "sketches-reports")

	return v
}

// Load resolves inputs from the environment and validates them.
func Load() (*Inputs, error) {
	v := newViper()
	applyDeprecatedAliases(v)

	in := &Inputs{
		CLIVersion:         v.GetString(inputCLIVersion),
		PlatformsYAML:      v.GetString(inputPlatforms),
		LibrariesRaw:       v.GetString(inputLibraries),
		GithubToken:        v.GetString(inputGithubToken),
		SketchesReportPath: v.GetString(inputSketchesReportPath),
	}

	fqbnArg := v.GetString(inputFQBN)
	if fqbnArg == "" {
		return nil, errors.New("required input fqbn is not set")
	}
	fqbn, additionalURL, err := ParseFQBNArg(fqbnArg)
	if err != nil {
		return nil, err
	}
	in.FQBN = fqbn
	in.AdditionalURL = additionalURL

	in.SketchPaths = splitList(v.GetString(inputSketchPaths))
	if len(in.SketchPaths) == 0 {
		return nil, errors.New("sketch-paths input is empty")
	}

	for _, b := range []struct {
		name string
		dst  *bool
	}{
		{inputVerbose, &in.Verbose},
		{inputEnableDeltasReport, &in.EnableDeltasReport},
		{inputEnableWarningsReport, &in.EnableWarningsReport},
	} {
		val, err := parseBooleanInput(v.GetString(b.name))
		if err != nil {
			return nil, fmt.Errorf("invalid value for %s input: %w", b.name, err)
		}
		*b.dst = val
	}

	return in, nil
}

// applyDeprecatedAliases maps retired input names onto their replacements,
// warning on each use.
func applyDeprecatedAliases(v *viper.Viper) {
	aliases := []struct {
		old, new string
	}{
		{"size-deltas-report-folder-name", inputSketchesReportPath},
		{"enable-size-deltas-report", inputEnableDeltasReport},
	}
	for _, a := range aliases {
		envName := "INPUT_" + strings.ToUpper(a.old)
		alias := viper.New()
		_ = alias.BindEnv(a.old, envName)
		if val := alias.GetString(a.old); val != "" {
			actions.Warningf("The %s input is deprecated. Use the equivalent input: %s instead.", a.old, a.new)
			v.Set(a.new, val)
		}
	}

	legacy := viper.New()
	_ = legacy.BindEnv("size-report-sketch", "INPUT_SIZE-REPORT-SKETCH")
	if legacy.GetString("size-report-sketch") != "" {
		actions.Warningf("The size-report-sketch input is no longer used")
	}
}

// parseBooleanInput accepts only "true" or "false", case-insensitive.
// Anything else is a configuration error, not a default.
func parseBooleanInput(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "true":
		return true, nil
	case "false":
		return false, nil
	default:
		return false, fmt.Errorf("%q is not a valid boolean (use \"true\" or \"false\")", s)
	}
}

// ParseFQBNArg splits the fqbn input into the board identifier and the
// optional trailing Boards Manager URL. The input is a space separated list
// in the style of a bash array, so items may be quoted.
func ParseFQBNArg(fqbnArg string) (fqbn, additionalURL string, err error) {
	items := splitList(fqbnArg)
	switch len(items) {
	case 1:
		return items[0], "", nil
	case 2:
		return items[0], items[1], nil
	default:
		return "", "", fmt.Errorf("invalid fqbn input %q: expected a board identifier and optional Boards Manager URL", fqbnArg)
	}
}

// splitList splits a whitespace separated list, honoring single and double
// quotes around items and stripping them.
func splitList(s string) []string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}

	var items []string
	var current strings.Builder
	var quote rune

	flush := func() {
		if current.Len() > 0 {
			items = append(items, current.String())
			current.Reset()
		}
	}

	for _, r := range s {
		switch {
		case quote != 0:
			if r == quote {
				quote = 0
			} else {
				current.WriteRune(r)
			}
		case r == '\'' || r == '"':
			quote = r
		case r == ' ' || r == '\t' || r == '\n':
			flush()
		default:
			current.WriteRune(r)
		}
	}
	flush()

	return items
}
