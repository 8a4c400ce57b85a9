// Package workspace provides the scratch directory owned by a single
// installer run. Everything downloaded or extracted lives under it and is
// removed when the run ends.
package workspace

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// DefaultPrefix names workspace directories created by the installer.
const DefaultPrefix = "blob-installer-"

// errReleased is returned when a released workspace is used again.
var errReleased = errors.New("workspace already released")

// Workspace is an ephemeral directory removed by Release.
type Workspace struct {
	dir string
}

// Acquire creates a fresh directory under root (the OS temp dir when empty).
func Acquire(root, prefix string) (*Workspace, error) {
	if prefix == "" {
		prefix = DefaultPrefix
	}

	dir, err := os.MkdirTemp(root, prefix)
	if err != nil {
		return nil, fmt.Errorf("create workspace: %w", err)
	}

	return &Workspace{dir: dir}, nil
}

// Path returns the workspace directory.
func (w *Workspace) Path() string {
	return w.dir
}

// Join returns name resolved inside the workspace.
func (w *Workspace) Join(name string) (string, error) {
	if w.dir == "" {
		return "", errReleased
	}

	return filepath.Join(w.dir, filepath.Base(name)), nil
}

// Release removes the workspace and everything in it. It is safe to call
// more than once.
func (w *Workspace) Release() error {
	if w == nil || w.dir == "" {
		return nil
	}

	dir := w.dir
	w.dir = ""

	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("remove workspace %s: %w", dir, err)
	}

	return nil
}
