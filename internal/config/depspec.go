package config

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// SourceKind identifies where a dependency is installed from. Exactly one
// kind applies to each spec; classification is derived from which locator
// fields are present.
type SourceKind int

const (
	// SourceManager installs by name from the Boards Manager or Library
	// Manager index.
	SourceManager SourceKind = iota
	// SourceLocalPath installs from a path relative to the workspace.
	SourceLocalPath
	// SourceRepository clones a Git repository.
	SourceRepository
	// SourceArchive downloads and extracts an archive.
	SourceArchive
)

func (k SourceKind) String() string {
	switch k {
	case SourceManager:
		return "manager"
	case SourceLocalPath:
		return "path"
	case SourceRepository:
		return "repository"
	case SourceArchive:
		return "download"
	default:
		return fmt.Sprintf("SourceKind(%d)", int(k))
	}
}

// LatestRelease is the special version/ref value meaning "most recent
// release": no version pin for manager sources, the newest tag for
// repository sources.
const LatestRelease = "latest"

// DependencySpec is one entry of the platforms or libraries input.
type DependencySpec struct {
	Name            string `yaml:"name"`
	Version         string `yaml:"version"`
	SourceURL       string `yaml:"source-url"`
	SourcePath      string `yaml:"source-path"`
	DestinationName string `yaml:"destination-name"`
}

// packageIndexPattern matches URLs that satisfy the package index filename
// specification; such URLs are additional Boards Manager indexes rather
// than direct downloads.
var packageIndexPattern = regexp.MustCompile(`.*/package_.*index\.json`)

// Kind classifies the spec into its single source kind.
//
// A source-url ending in .git or using the git:// scheme is a repository; a
// source-url naming a package index file is a Boards Manager entry with an
// additional index URL; any other source-url is an archive download. A
// source-path without a source-url is a local path. A bare name is a
// manager entry. A source-path alongside a repository or archive source-url
// is not a second kind: it selects a sub-path within the fetched tree.
func (d DependencySpec) Kind() SourceKind {
	if d.SourceURL != "" {
		url := strings.TrimRight(d.SourceURL, "/")
		switch {
		case strings.HasSuffix(url, ".git") || strings.HasPrefix(d.SourceURL, "git://"):
			return SourceRepository
		case packageIndexPattern.MatchString(d.SourceURL):
			return SourceManager
		default:
			return SourceArchive
		}
	}
	if d.SourcePath != "" {
		return SourceLocalPath
	}
	return SourceManager
}

// Validate rejects specs whose locator fields are absent or contradictory.
func (d DependencySpec) Validate() error {
	if d.Name == "" && d.SourceURL == "" && d.SourcePath == "" {
		return errors.New("dependency has no name, source-url, or source-path")
	}

	switch d.Kind() {
	case SourceManager:
		if d.Name == "" {
			return errors.New("manager-sourced dependency requires a name")
		}
		if d.SourceURL != "" && d.SourcePath != "" {
			// A package index URL identifies a manager source; a
			// source-path has no meaning there.
			return fmt.Errorf("dependency %q sets both a package index source-url and a source-path", d.Name)
		}
	case SourceLocalPath, SourceRepository, SourceArchive:
		// Locator presence is implied by the classification.
	}

	return nil
}

// Label names the dependency in error messages.
func (d DependencySpec) Label() string {
	if d.Name != "" {
		return d.Name
	}
	if d.SourceURL != "" {
		return d.SourceURL
	}
	return d.SourcePath
}

// ManagerName returns the NAME or NAME@VERSION argument for a manager
// install. The special "latest" version is omitted, which causes the
// manager to resolve the most recent release.
func (d DependencySpec) ManagerName() string {
	if d.Version != "" && d.Version != LatestRelease {
		return d.Name + "@" + d.Version
	}
	return d.Name
}

// GitRef returns the ref to check out for a repository dependency. Empty
// means the tip of the remote default branch.
func (d DependencySpec) GitRef() string {
	return d.Version
}

// DependencyList holds specs sorted by source kind, preserving input order
// within each kind. Manager entries install first so that overlay sources
// listed later can overwrite them (the platform override system), and so
// Library Manager dependency auto-installation cannot clobber explicitly
// sourced libraries.
type DependencyList struct {
	Manager    []DependencySpec
	Path       []DependencySpec
	Repository []DependencySpec
	Archive    []DependencySpec
}

// SortDependencies validates each spec and groups the list by source kind.
func SortDependencies(specs []DependencySpec) (DependencyList, error) {
	var list DependencyList
	for _, spec := range specs {
		if err := spec.Validate(); err != nil {
			return DependencyList{}, fmt.Errorf("invalid dependency %q: %w", spec.Label(), err)
		}
		switch spec.Kind() {
		case SourceManager:
			list.Manager = append(list.Manager, spec)
		case SourceLocalPath:
			list.Path = append(list.Path, spec)
		case SourceRepository:
			list.Repository = append(list.Repository, spec)
		case SourceArchive:
			list.Archive = append(list.Archive, spec)
		}
	}
	return list, nil
}

// Platforms parses the platforms input. When the input is empty, the
// platform dependency is derived from the FQBN's vendor:architecture pair,
// carrying the additional Boards Manager URL if one was supplied.
func (in *Inputs) Platforms() (DependencyList, error) {
	if strings.TrimSpace(in.PlatformsYAML) == "" {
		dep, err := fqbnPlatformDependency(in.FQBN, in.AdditionalURL)
		if err != nil {
			return DependencyList{}, err
		}
		return DependencyList{Manager: []DependencySpec{dep}}, nil
	}

	var specs []DependencySpec
	if err := yaml.Unmarshal([]byte(in.PlatformsYAML), &specs); err != nil {
		return DependencyList{}, fmt.Errorf("parsing platforms input: %w", err)
	}
	return SortDependencies(specs)
}

func fqbnPlatformDependency(fqbn, additionalURL string) (DependencySpec, error) {
	parts := strings.Split(fqbn, ":")
	if len(parts) < 3 {
		return DependencySpec{}, fmt.Errorf("invalid fqbn %q: expected vendor:architecture:board", fqbn)
	}
	return DependencySpec{
		Name:      parts[0] + ":" + parts[1],
		SourceURL: additionalURL,
	}, nil
}

// Libraries parses the libraries input. The input is either a YAML list of
// dependency specs or, for backwards compatibility, a flat whitespace
// separated list of Library Manager names. The legacy form always installs
// the project under test as a library; InstallWorkspaceAsLibrary reports
// whether that applies.
func (in *Inputs) Libraries() (list DependencyList, installWorkspace bool, err error) {
	raw := in.LibrariesRaw
	if strings.TrimSpace(raw) == "" {
		// An unset input is the legacy empty list: no manager
		// libraries, project under test installed.
		return DependencyList{}, true, nil
	}

	var specs []DependencySpec
	if yaml.Unmarshal([]byte(raw), &specs) == nil {
		list, err = SortDependencies(specs)
		return list, false, err
	}

	// Not a YAML list of specs: treat as the legacy flat name list.
	for _, name := range splitList(raw) {
		list.Manager = append(list.Manager, DependencySpec{Name: name})
	}
	return list, true, nil
}
