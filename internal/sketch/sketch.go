// Package sketch discovers compilable sketches under configured search
// roots. A sketch is a directory containing at least one .ino or .pde file;
// its identity is the directory's absolute path.
package sketch

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
)

var sketchExtensions = map[string]bool{
	".ino": true,
	".pde": true,
}

// IsSketchFile reports whether the path names a sketch entry file.
func IsSketchFile(path string) bool {
	return sketchExtensions[filepath.Ext(path)]
}

// IsSketchDir reports whether the directory contains a sketch entry file.
func IsSketchDir(dir string) bool {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return false
	}
	for _, entry := range entries {
		if !entry.IsDir() && IsSketchFile(entry.Name()) {
			return true
		}
	}
	return false
}

// Find returns the sketch directories under each root, recursively, in
// sorted order and deduplicated. A root that does not exist, a file root
// that is not a sketch, or a root yielding no sketches at all is an error:
// an empty search root indicates a misconfigured input, not a trivially
// passing run.
func Find(roots []string) ([]string, error) {
	seen := make(map[string]bool)
	var sketches []string

	for _, root := range roots {
		absRoot, err := filepath.Abs(root)
		if err != nil {
			return nil, fmt.Errorf("resolving sketch path %s: %w", root, err)
		}

		info, err := os.Stat(absRoot)
		if err != nil {
			return nil, fmt.Errorf("sketch path %s doesn't exist", root)
		}

		if !info.IsDir() {
			// A direct path to a sketch file selects its directory,
			// with no recursive search.
			if !IsSketchFile(absRoot) {
				return nil, fmt.Errorf("sketch path %s is not a sketch", root)
			}
			dir := filepath.Dir(absRoot)
			if !seen[dir] {
				seen[dir] = true
				sketches = append(sketches, dir)
			}
			continue
		}

		var found []string
		err = filepath.WalkDir(absRoot, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() && IsSketchDir(path) {
				found = append(found, path)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("searching sketch path %s: %w", root, err)
		}

		if len(found) == 0 {
			return nil, fmt.Errorf("no sketches were found in %s", root)
		}

		sort.Strings(found)
		for _, dir := range found {
			if !seen[dir] {
				seen[dir] = true
				sketches = append(sketches, dir)
			}
		}
	}

	return sketches, nil
}
