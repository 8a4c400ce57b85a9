package transfer

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

// LocalSource copies the archive from the local filesystem.
type LocalSource struct {
	Path string
}

// Open opens the file and reports its size.
func (s *LocalSource) Open(_ context.Context) (io.ReadCloser, int64, error) {
	file, err := os.Open(filepath.Clean(s.Path))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, 0, wrapf(ErrSourceNotFound, "%s", s.Path)
		}

		return nil, 0, wrapf(err, "open %s", s.Path)
	}

	info, err := file.Stat()
	if err != nil {
		_ = file.Close()

		return nil, 0, wrapf(err, "stat %s", s.Path)
	}

	if info.IsDir() {
		_ = file.Close()

		return nil, 0, wrapf(ErrSourceNotFound, "%s is a directory", s.Path)
	}

	return file, info.Size(), nil
}

func (s *LocalSource) String() string {
	return s.Path
}
