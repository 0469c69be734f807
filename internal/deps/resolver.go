package deps

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/inotool/inosize/internal/actions"
	"github.com/inotool/inosize/internal/arduino"
	"github.com/inotool/inosize/internal/config"
	"github.com/inotool/inosize/internal/gitutil"
)

// DefaultDownloadBase is where arduino-cli release archives are published.
const DefaultDownloadBase = "https://downloads.arduino.cc/arduino-cli"

// Resolver installs the Arduino CLI, platforms, and libraries described by
// the run's dependency lists.
type Resolver struct {
	// CLI runs arduino-cli commands once the executable is installed.
	CLI *arduino.CLI
	// Paths is the install layout.
	Paths Paths
	// WorkspaceRoot anchors relative source-path dependencies and is the
	// project installed as a library in legacy mode.
	WorkspaceRoot string
	// ProjectName is the repository's name component. The project under
	// test is installed as a library under this name; the checkout folder
	// is often an unrelated name like "workspace".
	ProjectName string
	// TempDir receives clones and downloads. Installed dependencies are
	// links into it, so it must outlive compilation.
	TempDir string
	// DownloadBase overrides the arduino-cli release download location.
	DownloadBase string
	// Verbose enables debug logging.
	Verbose bool
}

// InstallCLI downloads the arduino-cli release archive for version and
// unpacks the executable into the install path.
func (r *Resolver) InstallCLI(version string) error {
	base := r.DownloadBase
	if base == "" {
		base = DefaultDownloadBase
	}
	url := fmt.Sprintf("%s/arduino-cli_%s_Linux_64bit.tar.gz", base, version)

	r.debugf("Installing arduino-cli %s", version)
	dir, err := os.MkdirTemp(r.TempDir, "cli-download")
	if err != nil {
		return err
	}

	archivePath, err := download(url, dir)
	if err != nil {
		return fmt.Errorf("downloading arduino-cli: %w", err)
	}
	if err := os.MkdirAll(r.Paths.CLIInstall, 0o755); err != nil {
		return err
	}
	if err := extract(archivePath, r.Paths.CLIInstall); err != nil {
		return fmt.Errorf("extracting arduino-cli: %w", err)
	}
	if _, err := os.Stat(r.Paths.CLIPath()); err != nil {
		return fmt.Errorf("arduino-cli executable missing after install: %w", err)
	}
	return nil
}

// InstallPlatforms installs the run's platform dependencies. Boards Manager
// entries install first; path, repository, and archive entries are overlays
// that may replace a Boards Manager installation of the same platform.
func (r *Resolver) InstallPlatforms(list config.DependencyList) error {
	if len(list.Manager) > 0 {
		if err := r.installPlatformsFromManager(list.Manager); err != nil {
			return err
		}
	}
	for _, spec := range list.Path {
		if err := r.installPlatformOverlay(spec, r.absoluteSourcePath(spec.SourcePath)); err != nil {
			return fmt.Errorf("installing platform %q: %w", spec.Label(), err)
		}
	}
	for _, spec := range list.Repository {
		root, err := r.cloneDependency(spec)
		if err != nil {
			return fmt.Errorf("installing platform %q: %w", spec.Label(), err)
		}
		if err := r.installPlatformOverlay(spec, root); err != nil {
			return fmt.Errorf("installing platform %q: %w", spec.Label(), err)
		}
	}
	for _, spec := range list.Archive {
		root, err := r.downloadDependency(spec)
		if err != nil {
			return fmt.Errorf("installing platform %q: %w", spec.Label(), err)
		}
		if err := r.installPlatformOverlay(spec, root); err != nil {
			return fmt.Errorf("installing platform %q: %w", spec.Label(), err)
		}
	}
	return nil
}

func (r *Resolver) installPlatformsFromManager(specs []config.DependencySpec) error {
	updateArgs := []string{"core", "update-index"}
	if urls := additionalURLs(specs); urls != "" {
		updateArgs = append(updateArgs, "--additional-urls", urls)
	}
	if _, err := r.CLI.Run(updateArgs, arduino.OutputOnFailure); err != nil {
		return fmt.Errorf("updating Boards Manager index: %w", err)
	}

	for _, spec := range specs {
		args := []string{"core", "install", spec.ManagerName()}
		if spec.SourceURL != "" {
			args = append(args, "--additional-urls", spec.SourceURL)
		}
		actions.Noticef("Installing platform: %s", spec.ManagerName())
		if _, err := r.CLI.Run(args, arduino.OutputOnFailure); err != nil {
			return fmt.Errorf("installing platform %q: %w", spec.Label(), err)
		}
	}
	return nil
}

// additionalURLs joins the additional Boards Manager index URLs present in
// the manager specs, comma separated as arduino-cli expects.
func additionalURLs(specs []config.DependencySpec) string {
	var urls []string
	for _, spec := range specs {
		if spec.SourceURL != "" {
			urls = append(urls, spec.SourceURL)
		}
	}
	return strings.Join(urls, ",")
}

// installPlatformOverlay links a platform source tree into the sketchbook
// hardware folder, or over a previous Boards Manager installation of the
// same platform when one exists.
func (r *Resolver) installPlatformOverlay(spec config.DependencySpec, sourceRoot string) error {
	if spec.Name == "" {
		return fmt.Errorf("platform dependency from %s requires a name to determine its installation location", spec.Label())
	}

	source := sourceRoot
	if spec.SourcePath != "" && spec.Kind() != config.SourceLocalPath {
		source = filepath.Join(sourceRoot, spec.SourcePath)
	}

	destParent, destName, force, err := r.platformInstallPath(spec.Name)
	if err != nil {
		return err
	}
	return r.installFromPath(source, destParent, destName, force)
}

// installedPlatform is one entry of `arduino-cli core list --format json`.
type installedPlatform struct {
	ID        string `json:"id"`
	Installed string `json:"installed"`
}

// platformInstallPath determines where the vendor:architecture platform must
// be installed. A platform previously installed via Boards Manager must be
// replaced in place inside the packages tree, because a same-named platform
// in the sketchbook hardware folder does not shadow it; anything else goes
// to the sketchbook hardware folder.
func (r *Resolver) platformInstallPath(name string) (destParent, destName string, force bool, err error) {
	parts := strings.SplitN(name, ":", 2)
	if len(parts) != 2 {
		return "", "", false, fmt.Errorf("invalid platform name %q: expected vendor:architecture", name)
	}
	vendor, arch := parts[0], parts[1]

	// core list fails when no Boards Manager index has been fetched yet,
	// which is the case for overlay-only platform configurations.
	if _, err := r.CLI.Run([]string{"core", "update-index"}, arduino.OutputOnFailure); err != nil {
		return "", "", false, fmt.Errorf("updating Boards Manager index: %w", err)
	}

	output, err := r.CLI.Run([]string{"core", "list", "--format", "json"}, arduino.OutputNever)
	if err != nil {
		return "", "", false, fmt.Errorf("listing installed platforms: %w", err)
	}

	var installed []installedPlatform
	if err := json.Unmarshal([]byte(output), &installed); err != nil {
		return "", "", false, fmt.Errorf("parsing core list output: %w", err)
	}
	for _, platform := range installed {
		if platform.ID == name && platform.Installed != "" {
			parent := filepath.Join(r.Paths.BoardManagerPackages(), vendor, "hardware", arch)
			return parent, platform.Installed, true, nil
		}
	}
	return filepath.Join(r.Paths.UserHardware(), vendor), arch, false, nil
}

// InstallLibraries installs the run's library dependencies.
// installWorkspace additionally installs the project under test as a
// library, the legacy behavior of the flat library name syntax.
func (r *Resolver) InstallLibraries(list config.DependencyList, installWorkspace bool) error {
	librariesPath := r.Paths.Libraries()
	if err := os.MkdirAll(librariesPath, 0o755); err != nil {
		return fmt.Errorf("creating libraries directory: %w", err)
	}

	if installWorkspace {
		actions.Noticef("Installing project as a library")
		if err := r.installFromPath(r.WorkspaceRoot, librariesPath, r.ProjectName, true); err != nil {
			return fmt.Errorf("installing project as a library: %w", err)
		}
	}

	for _, spec := range list.Manager {
		actions.Noticef("Installing library: %s", spec.ManagerName())
		if _, err := r.CLI.Run([]string{"lib", "install", spec.ManagerName()}, arduino.OutputOnFailure); err != nil {
			return fmt.Errorf("installing library %q: %w", spec.Label(), err)
		}
	}
	for _, spec := range list.Path {
		source := r.absoluteSourcePath(spec.SourcePath)
		if err := r.installFromPath(source, librariesPath, spec.DestinationName, true); err != nil {
			return fmt.Errorf("installing library %q: %w", spec.Label(), err)
		}
	}
	for _, spec := range list.Repository {
		if err := r.installLibraryFromTree(spec, r.cloneDependency, repoName(spec.SourceURL)); err != nil {
			return fmt.Errorf("installing library %q: %w", spec.Label(), err)
		}
	}
	for _, spec := range list.Archive {
		if err := r.installLibraryFromTree(spec, r.downloadDependency, ""); err != nil {
			return fmt.Errorf("installing library %q: %w", spec.Label(), err)
		}
	}
	return nil
}

// installLibraryFromTree fetches a dependency tree and links the requested
// sub-path into the libraries folder.
func (r *Resolver) installLibraryFromTree(spec config.DependencySpec, fetch func(config.DependencySpec) (string, error), defaultName string) error {
	root, err := fetch(spec)
	if err != nil {
		return err
	}

	source := root
	if spec.SourcePath != "" && spec.SourcePath != "." {
		source = filepath.Join(root, spec.SourcePath)
		if _, err := os.Stat(source); err != nil {
			return fmt.Errorf("source-path %q not found in %s: %w", spec.SourcePath, spec.Label(), err)
		}
	}

	destName := spec.DestinationName
	if destName == "" {
		destName = defaultName
	}
	return r.installFromPath(source, r.Paths.Libraries(), destName, true)
}

// cloneDependency clones the spec's repository into the run's temporary
// directory and returns the checkout root.
func (r *Resolver) cloneDependency(spec config.DependencySpec) (string, error) {
	dir, err := os.MkdirTemp(r.TempDir, "clone")
	if err != nil {
		return "", err
	}
	ref := spec.GitRef()
	r.debugf("Cloning %s (ref %q)", spec.SourceURL, ref)
	if err := gitutil.Clone(spec.SourceURL, ref, dir); err != nil {
		return "", err
	}
	return dir, nil
}

// downloadDependency downloads and extracts the spec's archive, returning
// the extracted tree's root.
func (r *Resolver) downloadDependency(spec config.DependencySpec) (string, error) {
	dir, err := os.MkdirTemp(r.TempDir, "download")
	if err != nil {
		return "", err
	}
	archivePath, err := download(spec.SourceURL, dir)
	if err != nil {
		return "", err
	}

	extractDir := filepath.Join(dir, "extracted")
	if err := os.MkdirAll(extractDir, 0o755); err != nil {
		return "", err
	}
	if err := extract(archivePath, extractDir); err != nil {
		return "", err
	}
	return archiveRoot(extractDir)
}

// repoName derives the repository name from its clone URL.
func repoName(url string) string {
	name := strings.TrimRight(url, "/")
	name = strings.TrimSuffix(name, ".git")
	if i := strings.LastIndex(name, "/"); i >= 0 {
		name = name[i+1:]
	}
	return name
}
