package archive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zip"

	"github.com/oshokin/blob-installer/internal/pathaccess"
)

const (
	defaultDirMode  fs.FileMode = 0o755
	defaultFileMode fs.FileMode = 0o644
	// noExtensionSuffix is appended when the archive name has no extension.
	noExtensionSuffix = ".extracted"
)

var (
	// ErrArchiveNotFound is returned when the archive file is missing.
	ErrArchiveNotFound = errors.New("archive not found")
	// ErrParentNotWritable is returned when the archive directory cannot hold the extraction.
	ErrParentNotWritable = errors.New("archive directory is not writable")
	// ErrIllegalPath is returned for entries resolving outside the extraction directory.
	ErrIllegalPath = errors.New("illegal file path in archive")
)

// Target returns the extraction directory for archivePath.
func Target(archivePath string) string {
	ext := filepath.Ext(archivePath)
	if ext == "" || ext == filepath.Base(archivePath) {
		return archivePath + noExtensionSuffix
	}

	return strings.TrimSuffix(archivePath, ext)
}

// Extract unpacks archivePath into Target(archivePath) and returns that directory.
func Extract(ctx context.Context, archivePath string) (string, error) {
	info, err := os.Stat(archivePath)
	if err != nil || info.IsDir() {
		return "", fmt.Errorf("%s: %w", archivePath, ErrArchiveNotFound)
	}

	if parent := filepath.Dir(archivePath); !pathaccess.Writable(parent) {
		return "", fmt.Errorf("%s: %w", parent, ErrParentNotWritable)
	}

	target := Target(archivePath)

	if _, err = os.Lstat(target); err == nil {
		if err = os.RemoveAll(target); err != nil {
			return "", fmt.Errorf("remove stale extraction %s: %w", target, err)
		}
	}

	if err = os.MkdirAll(target, defaultDirMode); err != nil {
		return "", fmt.Errorf("create extraction directory: %w", err)
	}

	reader, err := zip.OpenReader(archivePath)
	if err != nil {
		return "", fmt.Errorf("open archive %s: %w", archivePath, err)
	}

	defer func() {
		_ = reader.Close()
	}()

	for _, file := range reader.File {
		if err = ctx.Err(); err != nil {
			return "", err
		}

		if err = extractEntry(target, file); err != nil {
			return "", err
		}
	}

	return target, nil
}

func extractEntry(root string, file *zip.File) error {
	dest, err := safeJoin(root, file.Name)
	if err != nil {
		return err
	}

	if err = rejectLinkedParents(root, dest, file.Name); err != nil {
		return err
	}

	mode := file.Mode()

	switch {
	case mode.IsDir():
		if err = os.MkdirAll(dest, dirMode(mode)); err != nil {
			return fmt.Errorf("create directory %s: %w", dest, err)
		}

		return nil
	case mode&fs.ModeSymlink != 0:
		return extractSymlink(root, dest, file)
	default:
		return extractFile(dest, file)
	}
}

func extractFile(dest string, file *zip.File) error {
	if err := os.MkdirAll(filepath.Dir(dest), defaultDirMode); err != nil {
		return fmt.Errorf("create parent dir for %s: %w", dest, err)
	}

	src, err := file.Open()
	if err != nil {
		return fmt.Errorf("open entry %s: %w", file.Name, err)
	}

	defer func() {
		_ = src.Close()
	}()

	if info, statErr := os.Lstat(dest); statErr == nil && info.Mode()&fs.ModeSymlink != 0 {
		if err = os.Remove(dest); err != nil {
			return fmt.Errorf("replace symlink %s: %w", dest, err)
		}
	}

	out, err := os.OpenFile(dest, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, fileMode(file.Mode()))
	if err != nil {
		return fmt.Errorf("create file %s: %w", dest, err)
	}

	if _, err = io.Copy(out, src); err != nil {
		_ = out.Close()

		return fmt.Errorf("write file %s: %w", dest, err)
	}

	if err = out.Close(); err != nil {
		return fmt.Errorf("close file %s: %w", dest, err)
	}

	return nil
}

func extractSymlink(root, dest string, file *zip.File) error {
	src, err := file.Open()
	if err != nil {
		return fmt.Errorf("open entry %s: %w", file.Name, err)
	}

	link, err := io.ReadAll(src)
	_ = src.Close()

	if err != nil {
		return fmt.Errorf("read link %s: %w", file.Name, err)
	}

	target := filepath.Clean(filepath.FromSlash(string(link)))
	if filepath.IsAbs(target) {
		return fmt.Errorf("%s -> %s: %w", file.Name, target, ErrIllegalPath)
	}

	if !within(root, filepath.Join(filepath.Dir(dest), target)) {
		return fmt.Errorf("%s -> %s: %w", file.Name, target, ErrIllegalPath)
	}

	if err = os.MkdirAll(filepath.Dir(dest), defaultDirMode); err != nil {
		return fmt.Errorf("create parent dir for %s: %w", dest, err)
	}

	_ = os.Remove(dest)

	if err = os.Symlink(target, dest); err != nil {
		return fmt.Errorf("create symlink %s: %w", dest, err)
	}

	return nil
}

// safeJoin resolves an entry name under root, refusing anything that escapes it.
func safeJoin(root, name string) (string, error) {
	native := filepath.FromSlash(name)
	if filepath.IsAbs(native) || filepath.VolumeName(native) != "" || strings.HasPrefix(name, "/") {
		return "", fmt.Errorf("%s: %w", name, ErrIllegalPath)
	}

	dest := filepath.Join(root, native)
	if !within(root, dest) {
		return "", fmt.Errorf("%s: %w", name, ErrIllegalPath)
	}

	return dest, nil
}

// rejectLinkedParents refuses dest when any existing directory between root
// and dest is a symlink, since writes below it would land wherever it points.
func rejectLinkedParents(root, dest, name string) error {
	rel, err := filepath.Rel(root, filepath.Dir(dest))
	if err != nil || rel == "." {
		return err
	}

	current := root

	for _, part := range strings.Split(rel, string(filepath.Separator)) {
		current = filepath.Join(current, part)

		info, statErr := os.Lstat(current)
		if statErr != nil {
			// Nothing below a missing component exists yet.
			return nil
		}

		if info.Mode()&fs.ModeSymlink != 0 {
			return fmt.Errorf("%s: %w", name, ErrIllegalPath)
		}
	}

	return nil
}

func within(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}

	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

func dirMode(mode fs.FileMode) fs.FileMode {
	perm := mode.Perm()
	if perm == 0 {
		return defaultDirMode
	}

	return perm | 0o700
}

func fileMode(mode fs.FileMode) fs.FileMode {
	perm := mode.Perm()
	if perm == 0 {
		return defaultFileMode
	}

	return perm | 0o600
}
