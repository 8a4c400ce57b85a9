package installer

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/mitchellh/go-ps"

	"github.com/oshokin/blob-installer/internal/logger"
)

// MarkerFilename marks that the installer is running right now to avoid
// parallel execution. It holds the PID of the owner.
const MarkerFilename = "blob-installer.lock"

// markerAttempts bounds how often a stale marker is replaced.
const markerAttempts = 2

// marker is the run marker owned by the current process.
type marker struct {
	path string
}

// acquireMarker creates the marker in dir (the OS temp dir when empty).
// A marker left by a process that no longer exists is treated as stale and
// replaced.
func acquireMarker(ctx context.Context, dir string) (*marker, error) {
	if dir == "" {
		dir = os.TempDir()
	}

	path := filepath.Join(dir, MarkerFilename)

	logger.DebugKV(ctx, "Checking for the presence of a run marker", "path", path)

	for range markerAttempts {
		file, err := os.OpenFile(filepath.Clean(path), os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
		if err == nil {
			_, err = file.WriteString(strconv.Itoa(os.Getpid()))
			if closeErr := file.Close(); err == nil {
				err = closeErr
			}

			if err != nil {
				_ = os.Remove(path)
				return nil, fmt.Errorf("write run marker: %w", err)
			}

			return &marker{path: path}, nil
		}

		if !errors.Is(err, fs.ErrExist) {
			return nil, fmt.Errorf("create run marker: %w", err)
		}

		if pid, alive := markerOwner(path); alive {
			return nil, fmt.Errorf("pid %d owns %s: %w", pid, path, ErrAlreadyRunning)
		}

		logger.InfoKV(ctx, "The run marker is stale, removing it", "path", path)

		if err = os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("remove stale run marker: %w", err)
		}
	}

	return nil, ErrAlreadyRunning
}

// release removes the marker. Errors are only logged.
func (m *marker) release(ctx context.Context) {
	if m == nil {
		return
	}

	if err := os.Remove(m.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		logger.WarnKV(ctx, "Unable to remove the run marker", "path", m.path, "error", err)
	}
}

// markerOwner reads the PID stored at path and reports whether that process
// still exists. Unreadable markers count as stale.
func markerOwner(path string) (int, bool) {
	contents, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return 0, false
	}

	pid, err := strconv.Atoi(strings.TrimSpace(string(contents)))
	if err != nil || pid <= 0 {
		return 0, false
	}

	process, err := ps.FindProcess(pid)
	if err != nil || process == nil {
		return pid, false
	}

	return pid, true
}
