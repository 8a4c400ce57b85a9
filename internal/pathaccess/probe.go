package pathaccess

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"syscall"

	"github.com/shirou/gopsutil/v4/disk"
)

// Result describes the segment that was actually checked.
type Result struct {
	// Path is the closest existing ancestor (or the path itself).
	Path string
	// Writable reports whether Path is a directory the process may write into.
	Writable bool
}

// Probe walks from path towards the filesystem root until an existing entry
// is found and reports its writability. A file in the way is never writable.
func Probe(path string) (Result, error) {
	current, err := filepath.Abs(path)
	if err != nil {
		return Result{}, fmt.Errorf("resolve %s: %w", path, err)
	}

	for {
		info, statErr := os.Stat(current)

		switch {
		case statErr == nil:
			if !info.IsDir() {
				return Result{Path: current}, nil
			}

			return Result{Path: current, Writable: writable(current)}, nil
		case errors.Is(statErr, fs.ErrNotExist), errors.Is(statErr, syscall.ENOTDIR):
			// ENOTDIR means a file sits somewhere above; keep walking to report it.
			parent := filepath.Dir(current)
			if parent == current {
				return Result{Path: current, Writable: true}, nil
			}

			current = parent
		default:
			// The entry exists but cannot be inspected; treat it as blocked.
			return Result{Path: current}, nil
		}
	}
}

// Writable is a convenience wrapper reporting only the verdict for path.
func Writable(path string) bool {
	result, err := Probe(path)

	return err == nil && result.Writable
}

// FreeSpace returns the number of bytes available to unprivileged users on
// the volume holding path.
func FreeSpace(ctx context.Context, path string) (uint64, error) {
	usage, err := disk.UsageWithContext(ctx, path)
	if err != nil {
		return 0, fmt.Errorf("disk usage of %s: %w", path, err)
	}

	return usage.Free, nil
}
