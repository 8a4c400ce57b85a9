package integration

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/blob-installer/internal/archive/archivetest"
)

const archiveName = "images.zip"

// publishArchive writes the standard fixture archive into dir and returns
// its sha256 digest.
func publishArchive(t *testing.T, dir string) string {
	t.Helper()

	path := filepath.Join(dir, archiveName)
	archivetest.Write(t, path, []archivetest.Entry{
		{Name: "usr/", Mode: os.ModeDir | 0o755},
		{Name: "usr/share/blobs/firmware.bin", Body: "firmware-v2"},
		{Name: "usr/share/blobs/calibration/table.dat", Body: "0 1 2 3"},
		{Name: "usr/share/blobs/tools/flash.sh", Body: "#!/bin/sh\n", Mode: 0o755},
		{Name: "README", Body: "not installed"},
	})

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	sum := sha256.Sum256(data)

	return hex.EncodeToString(sum[:])
}

// writeSettings stores a settings file and returns its path.
func writeSettings(t *testing.T, dir, contents string) string {
	t.Helper()

	path := filepath.Join(dir, "blob-installer.yaml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))

	return path
}

// requireEmptyDir asserts that dir holds nothing, i.e. no workspace or marker leaked.
func requireEmptyDir(t *testing.T, dir string) {
	t.Helper()

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Empty(t, entries)
}

func readString(t *testing.T, path string) string {
	t.Helper()

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	return string(data)
}
