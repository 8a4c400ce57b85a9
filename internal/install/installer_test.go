package install

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeTree(t *testing.T, root string, files map[string]string) {
	t.Helper()

	for name, body := range files {
		path := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	}
}

func readTree(t *testing.T, root string) map[string]string {
	t.Helper()

	files := make(map[string]string)

	err := filepath.WalkDir(root, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if entry.IsDir() {
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}

		files[filepath.ToSlash(rel)] = string(data)

		return nil
	})
	require.NoError(t, err)

	return files
}

func names(files map[string]string) []string {
	out := make([]string, 0, len(files))
	for name := range files {
		out = append(out, name)
	}

	sort.Strings(out)

	return out
}

// newExtraction lays out an extraction root with the payload under the default path.
func newExtraction(t *testing.T, payload map[string]string) string {
	t.Helper()

	root := filepath.Join(t.TempDir(), "images")
	writeTree(t, filepath.Join(root, filepath.FromSlash(DefaultPayloadPath)), payload)
	writeTree(t, root, map[string]string{"README": "outside payload"})

	return root
}

// TestInstallReplace leaves the destination identical to the payload.
func TestInstallReplace(t *testing.T) {
	t.Parallel()

	payload := map[string]string{
		"fw/a.bin":      "new-a",
		"fw/sub/b.bin":  "new-b",
		"manifest.json": "{}",
	}
	root := newExtraction(t, payload)

	dest := filepath.Join(t.TempDir(), "blobs")
	writeTree(t, dest, map[string]string{
		"fw/a.bin":    "old-a",
		"obsolete.fw": "gone",
	})

	require.NoError(t, New("").Install(context.Background(), root, dest, ModeReplace))
	require.Equal(t, payload, readTree(t, dest))
}

// TestInstallReplaceFreshDestination creates missing parents.
func TestInstallReplaceFreshDestination(t *testing.T) {
	t.Parallel()

	payload := map[string]string{"x.bin": "x"}
	root := newExtraction(t, payload)

	dest := filepath.Join(t.TempDir(), "deep", "tree", "blobs")

	require.NoError(t, New(DefaultPayloadPath).Install(context.Background(), root, dest, ModeReplace))
	require.Equal(t, payload, readTree(t, dest))
}

// TestInstallMerge keeps unrelated files, overwrites shared ones and adds new ones.
func TestInstallMerge(t *testing.T) {
	t.Parallel()

	root := newExtraction(t, map[string]string{
		"fw/a.bin":         "new-a",
		"fw/new/c.bin":     "new-c",
		"top-level.config": "cfg",
	})

	dest := filepath.Join(t.TempDir(), "blobs")
	writeTree(t, dest, map[string]string{
		"fw/a.bin":      "old-a",
		"fw/keep.bin":   "keep",
		"local/own.txt": "mine",
	})

	require.NoError(t, New("").Install(context.Background(), root, dest, ModeMerge))

	got := readTree(t, dest)
	require.Equal(t, map[string]string{
		"fw/a.bin":         "new-a",
		"fw/new/c.bin":     "new-c",
		"top-level.config": "cfg",
		"fw/keep.bin":      "keep",
		"local/own.txt":    "mine",
	}, got, names(got))
}

// TestInstallMergeIntoMissingDestination behaves like a plain copy.
func TestInstallMergeIntoMissingDestination(t *testing.T) {
	t.Parallel()

	payload := map[string]string{"a": "1", "b/c": "2"}
	root := newExtraction(t, payload)
	dest := filepath.Join(t.TempDir(), "blobs")

	require.NoError(t, New("").Install(context.Background(), root, dest, ModeMerge))
	require.Equal(t, payload, readTree(t, dest))
}

// TestInstallMissingSource is a logged no-op.
func TestInstallMissingSource(t *testing.T) {
	t.Parallel()

	dest := filepath.Join(t.TempDir(), "blobs")
	writeTree(t, dest, map[string]string{"kept": "yes"})

	err := New("").Install(context.Background(), filepath.Join(t.TempDir(), "nope"), dest, ModeReplace)
	require.NoError(t, err)
	require.Equal(t, map[string]string{"kept": "yes"}, readTree(t, dest))

	// Extraction exists but the payload subtree does not.
	root := t.TempDir()
	require.NoError(t, New("opt/vendor").Install(context.Background(), root, dest, ModeReplace))
	require.Equal(t, map[string]string{"kept": "yes"}, readTree(t, dest))
}

// TestInstallCustomPayloadPath finds the payload under a configured path.
func TestInstallCustomPayloadPath(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	writeTree(t, filepath.Join(root, "opt", "vendor", "share"), map[string]string{"f": "v"})

	inst := New("opt/vendor/share")
	require.Equal(t, filepath.Join(root, "opt", "vendor", "share"), inst.PayloadDir(root))

	dest := filepath.Join(t.TempDir(), "out")
	require.NoError(t, inst.Install(context.Background(), root, dest, ModeReplace))
	require.Equal(t, map[string]string{"f": "v"}, readTree(t, dest))
}

// TestInstallPreservesModes keeps executable bits in replace mode.
func TestInstallPreservesModes(t *testing.T) {
	t.Parallel()

	root := newExtraction(t, map[string]string{"tool": "#!/bin/sh"})
	require.NoError(t, os.Chmod(filepath.Join(root, filepath.FromSlash(DefaultPayloadPath), "tool"), 0o750))

	dest := filepath.Join(t.TempDir(), "blobs")
	require.NoError(t, New("").Install(context.Background(), root, dest, ModeReplace))

	info, err := os.Stat(filepath.Join(dest, "tool"))
	require.NoError(t, err)
	require.Equal(t, fs.FileMode(0o750), info.Mode().Perm())
}

// TestInstallMergePreservesModes gives merged files the payload's exact
// permissions, for both replaced and newly created files.
func TestInstallMergePreservesModes(t *testing.T) {
	t.Parallel()

	root := newExtraction(t, map[string]string{"tool": "#!/bin/sh", "fresh": "#!/bin/sh"})
	payload := filepath.Join(root, filepath.FromSlash(DefaultPayloadPath))
	require.NoError(t, os.Chmod(filepath.Join(payload, "tool"), 0o777))
	require.NoError(t, os.Chmod(filepath.Join(payload, "fresh"), 0o775))

	dest := filepath.Join(t.TempDir(), "blobs")
	writeTree(t, dest, map[string]string{"tool": "old"})

	require.NoError(t, New("").Install(context.Background(), root, dest, ModeMerge))

	info, err := os.Stat(filepath.Join(dest, "tool"))
	require.NoError(t, err)
	require.Equal(t, fs.FileMode(0o777), info.Mode().Perm())

	info, err = os.Stat(filepath.Join(dest, "fresh"))
	require.NoError(t, err)
	require.Equal(t, fs.FileMode(0o775), info.Mode().Perm())
}

// TestCopyTreeRefusesExistingDestination guards the replace-mode precondition.
func TestCopyTreeRefusesExistingDestination(t *testing.T) {
	t.Parallel()

	src := t.TempDir()
	dest := t.TempDir()

	err := copyTree(context.Background(), src, dest)
	require.ErrorIs(t, err, errDestinationExists)
}

// TestInstallEmptyDestination rejects an empty destination path.
func TestInstallEmptyDestination(t *testing.T) {
	t.Parallel()

	require.ErrorIs(t, New("").Install(context.Background(), t.TempDir(), "", ModeMerge), errEmptyDestination)
}

// TestModeFor maps the keep flag.
func TestModeFor(t *testing.T) {
	t.Parallel()

	require.Equal(t, ModeMerge, ModeFor(true))
	require.Equal(t, ModeReplace, ModeFor(false))
	require.Equal(t, "merge", ModeMerge.String())
	require.Equal(t, "replace", ModeReplace.String())
}
