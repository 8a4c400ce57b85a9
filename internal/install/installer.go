package install

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/oshokin/blob-installer/internal/logger"
)

// DefaultPayloadPath is where installable files live inside the archive.
const DefaultPayloadPath = "usr/share/blobs"

const defaultDirMode fs.FileMode = 0o755

// Mode selects how the destination is treated.
type Mode int

const (
	// ModeReplace deletes the destination before copying.
	ModeReplace Mode = iota
	// ModeMerge overlays payload files onto the destination.
	ModeMerge
)

func (m Mode) String() string {
	if m == ModeMerge {
		return "merge"
	}

	return "replace"
}

// ModeFor maps the keep flag to a mode.
func ModeFor(keep bool) Mode {
	if keep {
		return ModeMerge
	}

	return ModeReplace
}

var (
	// errDestinationExists is returned when a tree copy would land on an existing path.
	errDestinationExists = errors.New("destination already exists")
	// errEmptyDestination is returned when no destination is given.
	errEmptyDestination = errors.New("destination must not be empty")
)

// Installer moves a payload subtree into place.
type Installer struct {
	payloadPath string
}

// New returns an installer looking for the payload at payloadPath inside the
// extraction root. An empty value selects DefaultPayloadPath.
func New(payloadPath string) *Installer {
	if payloadPath == "" {
		payloadPath = DefaultPayloadPath
	}

	return &Installer{payloadPath: filepath.FromSlash(payloadPath)}
}

// PayloadDir returns the payload location for extractRoot.
func (i *Installer) PayloadDir(extractRoot string) string {
	return filepath.Join(extractRoot, i.payloadPath)
}

// Install copies the payload found under extractRoot to destination.
// A missing extraction root or payload is logged and skipped.
func (i *Installer) Install(ctx context.Context, extractRoot, destination string, mode Mode) error {
	if destination == "" {
		return errEmptyDestination
	}

	if _, err := os.Stat(extractRoot); err != nil {
		logger.WarnKV(ctx, "Nothing to install, extraction directory is missing", "path", extractRoot)
		return nil
	}

	payload := i.PayloadDir(extractRoot)

	info, err := os.Stat(payload)
	if err != nil || !info.IsDir() {
		logger.WarnKV(ctx, "Nothing to install, payload directory is missing", "path", payload)
		return nil
	}

	logger.DebugKV(ctx, "Installing payload", "from", payload, "to", destination, "mode", mode.String())

	switch mode {
	case ModeMerge:
		return mergeTree(ctx, payload, destination)
	default:
		return replaceTree(ctx, payload, destination)
	}
}

func replaceTree(ctx context.Context, src, dest string) error {
	if _, err := os.Lstat(dest); err == nil {
		logger.DebugKV(ctx, "Removing existing installation", "path", dest)

		if err = os.RemoveAll(dest); err != nil {
			return fmt.Errorf("remove %s: %w", dest, err)
		}
	}

	return copyTree(ctx, src, dest)
}

// copyTree copies src to dest, which must not exist yet.
func copyTree(ctx context.Context, src, dest string) error {
	if _, err := os.Lstat(dest); err == nil {
		return fmt.Errorf("%s: %w", dest, errDestinationExists)
	}

	if err := os.MkdirAll(filepath.Dir(dest), defaultDirMode); err != nil {
		return fmt.Errorf("create parent of %s: %w", dest, err)
	}

	return filepath.WalkDir(src, func(path string, entry fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}

		if err := ctx.Err(); err != nil {
			return err
		}

		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}

		target := filepath.Join(dest, rel)

		info, err := entry.Info()
		if err != nil {
			return err
		}

		switch {
		case entry.IsDir():
			return os.MkdirAll(target, info.Mode().Perm()|0o700)
		case info.Mode()&fs.ModeSymlink != 0:
			return copySymlink(path, target)
		default:
			return copyFile(path, target, info.Mode().Perm())
		}
	})
}
