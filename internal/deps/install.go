package deps

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/inotool/inosize/internal/actions"
)

// installFromPath links sourcePath into destParent under destName (the
// source's base name when destName is empty). Linking instead of copying
// means edits to the source are reflected without re-installation. An
// existing destination is replaced only when force is set; otherwise it is
// an error, because silently shadowing an installation hides conflicts.
func (r *Resolver) installFromPath(sourcePath, destParent, destName string, force bool) error {
	if destName == "" {
		destName = filepath.Base(sourcePath)
	}
	destPath := filepath.Join(destParent, destName)

	if _, err := os.Lstat(destPath); err == nil {
		if !force {
			return fmt.Errorf("installation already exists: %s", destPath)
		}
		r.debugf("Overwriting installation at: %s", destPath)
		if err := os.RemoveAll(destPath); err != nil {
			return fmt.Errorf("removing existing installation %s: %w", destPath, err)
		}
	}

	if err := os.MkdirAll(destParent, 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", destParent, err)
	}
	if err := os.Symlink(sourcePath, destPath); err != nil {
		return fmt.Errorf("linking %s into %s: %w", sourcePath, destPath, err)
	}
	return nil
}

// absoluteSourcePath resolves a source-path input against the workspace.
func (r *Resolver) absoluteSourcePath(path string) string {
	if filepath.IsAbs(path) {
		return filepath.Clean(path)
	}
	return filepath.Join(r.WorkspaceRoot, path)
}

func (r *Resolver) debugf(format string, args ...interface{}) {
	if r.Verbose {
		actions.Debugf(format, args...)
	}
}
