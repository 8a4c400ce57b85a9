package install

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	goupdate "github.com/doitdistributed/go-update"

	"github.com/oshokin/blob-installer/internal/logger"
)

// mergeTree overlays every payload entry onto dest.
func mergeTree(ctx context.Context, src, dest string) error {
	if err := os.MkdirAll(dest, defaultDirMode); err != nil {
		return fmt.Errorf("create %s: %w", dest, err)
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
			logger.DebugKV(ctx, "Updating file", "file", rel)

			return applyFile(path, target, info.Mode().Perm())
		}
	})
}

// applyFile swaps target for src in one rename, creating target first when
// it does not exist because the swap needs something to replace.
func applyFile(src, target string, mode fs.FileMode) error {
	if _, err := os.Lstat(target); errors.Is(err, fs.ErrNotExist) {
		placeholder, createErr := os.OpenFile(target, os.O_CREATE|os.O_WRONLY, mode)
		if createErr != nil {
			return fmt.Errorf("create %s: %w", target, createErr)
		}

		_ = placeholder.Close()
	}

	file, err := os.Open(filepath.Clean(src))
	if err != nil {
		return fmt.Errorf("open %s: %w", src, err)
	}

	defer func() {
		_ = file.Close()
	}()

	if mode == 0 {
		mode = 0o644
	}

	options := goupdate.Options{
		TargetPath: target,
		TargetMode: mode,
	}

	if err = goupdate.Apply(file, options); err != nil {
		return fmt.Errorf("apply %s: %w", target, err)
	}

	// The swapped-in file is created under the process umask.
	if err = os.Chmod(target, mode); err != nil {
		return fmt.Errorf("chmod %s: %w", target, err)
	}

	return nil
}
