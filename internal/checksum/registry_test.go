package checksum

import (
	"context"
	"crypto/md5" //nolint:gosec // Test vector for the default algorithm.
	"crypto/sha256"
	"encoding/hex"
	"hash"
	"hash/crc32"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, contents string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "blob.bin")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))

	return path
}

// TestFileDigest compares streamed digests with one-shot digests for several chunk sizes.
func TestFileDigest(t *testing.T) {
	t.Parallel()

	contents := strings.Repeat("firmware-block-", 4096)
	path := writeFile(t, contents)

	md5Sum := md5.Sum([]byte(contents)) //nolint:gosec // Test vector.
	sha256Sum := sha256.Sum256([]byte(contents))

	for _, bufferSize := range []int{1, 7, 8192, 1 << 20} {
		got, err := Default.FileDigest(context.Background(), "md5", path, bufferSize)
		require.NoError(t, err)
		require.Equal(t, hex.EncodeToString(md5Sum[:]), got)

		got, err = Default.FileDigest(context.Background(), "SHA256", path, bufferSize)
		require.NoError(t, err)
		require.Equal(t, hex.EncodeToString(sha256Sum[:]), got)
	}
}

// TestFileDigestErrors covers bad chunk sizes, unknown algorithms and missing files.
func TestFileDigestErrors(t *testing.T) {
	t.Parallel()

	path := writeFile(t, "x")

	_, err := Default.FileDigest(context.Background(), "md5", path, 0)
	require.Error(t, err)

	_, err = Default.FileDigest(context.Background(), "crc7", path, 16)
	require.ErrorIs(t, err, ErrUnknownAlgorithm)

	_, err = Default.FileDigest(context.Background(), "md5", filepath.Join(t.TempDir(), "missing"), 16)
	require.ErrorIs(t, err, os.ErrNotExist)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = Default.FileDigest(ctx, "md5", path, 16)
	require.ErrorIs(t, err, context.Canceled)
}

// TestRegistry checks case-insensitive lookup and custom registrations.
func TestRegistry(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	require.True(t, r.Supported("MD5"))
	require.True(t, r.Supported(" sha512 "))
	require.False(t, r.Supported("crc32"))
	require.Equal(t, []string{"md5", "sha1", "sha256", "sha512"}, r.Names())

	r.Register("CRC32", func() hash.Hash { return crc32.NewIEEE() })
	require.True(t, r.Supported("crc32"))

	path := writeFile(t, "abc")
	got, err := r.FileDigest(context.Background(), "crc32", path, 2)
	require.NoError(t, err)
	require.Equal(t, "352441c2", got)

	_, err = NewRegistry().Lookup("crc32")
	require.ErrorIs(t, err, ErrUnknownAlgorithm)
}

// TestCompare verifies exact matching and the skip rule for empty expectations.
func TestCompare(t *testing.T) {
	t.Parallel()

	outcome := Compare("", "d41d8cd98f00b204e9800998ecf8427e")
	require.True(t, outcome.Match)
	require.True(t, outcome.Skipped)

	outcome = Compare("abc", "abc")
	require.True(t, outcome.Match)
	require.False(t, outcome.Skipped)

	outcome = Compare("ABC", "abc")
	require.False(t, outcome.Match)
	require.Equal(t, "ABC", outcome.Expected)
	require.Equal(t, "abc", outcome.Calculated)
}

// TestHashReader checks that reading through the wrapper hashes the whole stream.
func TestHashReader(t *testing.T) {
	t.Parallel()

	stuff := strings.Repeat("Hello, World!", 1024)
	expected := sha256.Sum256([]byte(stuff))

	hasher := sha256.New()
	buf := make([]byte, 100)
	reader := NewHashReader(strings.NewReader(stuff), hasher)

	for {
		_, err := reader.Read(buf)
		if err != nil {
			break
		}
	}

	require.Equal(t, expected[:], hasher.Sum(nil))
}
