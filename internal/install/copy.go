package install

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

func copyFile(src, dest string, mode fs.FileMode) error {
	in, err := os.Open(filepath.Clean(src))
	if err != nil {
		return fmt.Errorf("open %s: %w", src, err)
	}

	defer func() {
		_ = in.Close()
	}()

	out, err := os.OpenFile(dest, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode)
	if err != nil {
		return fmt.Errorf("create %s: %w", dest, err)
	}

	if _, err = io.Copy(out, in); err != nil {
		_ = out.Close()

		return fmt.Errorf("copy %s: %w", dest, err)
	}

	if err = out.Close(); err != nil {
		return fmt.Errorf("close %s: %w", dest, err)
	}

	// OpenFile honours the umask, the payload mode should win.
	return os.Chmod(dest, mode)
}

func copySymlink(src, dest string) error {
	link, err := os.Readlink(src)
	if err != nil {
		return fmt.Errorf("read link %s: %w", src, err)
	}

	if err = os.RemoveAll(dest); err != nil {
		return fmt.Errorf("remove %s: %w", dest, err)
	}

	if err = os.Symlink(link, dest); err != nil {
		return fmt.Errorf("create symlink %s: %w", dest, err)
	}

	return nil
}
