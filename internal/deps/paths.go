// Package deps turns declarative platform and library specifications into
// an installed toolchain and sketchbook layout. Installation is fail-fast:
// the first failing dependency aborts the run, named in the error.
package deps

import (
	"os"
	"path/filepath"
)

// Paths is the on-disk layout the Arduino CLI operates in.
type Paths struct {
	// CLIInstall is where the arduino-cli executable is installed.
	CLIInstall string
	// Data is the Arduino CLI data directory (Boards Manager packages).
	Data string
	// User is the sketchbook directory.
	User string
}

// DefaultPaths returns the conventional home-directory layout.
func DefaultPaths() Paths {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return Paths{
		CLIInstall: filepath.Join(home, "bin"),
		Data:       filepath.Join(home, ".arduino15"),
		User:       filepath.Join(home, "Arduino"),
	}
}

// CLIPath is the arduino-cli executable path.
func (p Paths) CLIPath() string {
	return filepath.Join(p.CLIInstall, "arduino-cli")
}

// Libraries is the sketchbook libraries directory.
func (p Paths) Libraries() string {
	return filepath.Join(p.User, "libraries")
}

// UserHardware is the sketchbook platforms directory.
func (p Paths) UserHardware() string {
	return filepath.Join(p.User, "hardware")
}

// BoardManagerPackages is where Boards Manager installs platforms.
func (p Paths) BoardManagerPackages() string {
	return filepath.Join(p.Data, "packages")
}
