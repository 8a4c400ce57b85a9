// Package archivetest builds zip fixtures for tests.
package archivetest

import (
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/zip"
	"github.com/stretchr/testify/require"
)

// Entry is a single archive member.
type Entry struct {
	// Name is the slash-separated path inside the archive.
	Name string
	// Body is the file contents, or the link target for symlinks.
	Body string
	// Mode overrides the default 0644 file mode; fs.ModeDir and fs.ModeSymlink are honoured.
	Mode fs.FileMode
}

// Files turns a name → contents map into entries.
func Files(files map[string]string) []Entry {
	entries := make([]Entry, 0, len(files))
	for name, body := range files {
		entries = append(entries, Entry{Name: name, Body: body})
	}

	return entries
}

// Write creates a zip archive at path holding entries.
func Write(t testing.TB, path string, entries []Entry) {
	t.Helper()

	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))

	file, err := os.Create(path)
	require.NoError(t, err)

	writer := zip.NewWriter(file)

	for _, entry := range entries {
		mode := entry.Mode
		if mode == 0 {
			mode = 0o644
		}

		header := &zip.FileHeader{Name: entry.Name, Method: zip.Deflate}
		header.SetMode(mode)

		w, createErr := writer.CreateHeader(header)
		require.NoError(t, createErr)

		if mode.IsDir() {
			continue
		}

		_, err = w.Write([]byte(entry.Body))
		require.NoError(t, err)
	}

	require.NoError(t, writer.Close())
	require.NoError(t, file.Close())
}
