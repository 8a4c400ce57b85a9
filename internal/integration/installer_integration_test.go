package integration

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/blob-installer/internal/config"
	"github.com/oshokin/blob-installer/internal/metrics"
	"github.com/oshokin/blob-installer/internal/service/installer"
	"github.com/oshokin/blob-installer/internal/version"
)

// TestInstaller_Run_LocalRelativeSource installs from ./pkgs with checksum validation disabled.
func TestInstaller_Run_LocalRelativeSource(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	require.NoError(t, os.MkdirAll("pkgs", 0o755))
	publishArchive(t, "pkgs")

	tempDir := filepath.Join(dir, "tmp")
	require.NoError(t, os.MkdirAll(tempDir, 0o755))

	cfg, err := config.Resolve(config.Sources{
		LookupEnv: func(key string) (string, bool) {
			switch key {
			case config.EnvBaseURL:
				return "./pkgs", true
			case config.EnvInstallLocation:
				return "installed", true
			default:
				return "", false
			}
		},
		Flags: func(cfg *config.Config) {
			cfg.Filename = archiveName
			cfg.TempDir = tempDir
		},
	})
	require.NoError(t, err)
	require.Equal(t, filepath.Join(dir, "installed"), cfg.InstallLocation)

	report, err := installer.Run(context.Background(), &installer.Options{Config: cfg})
	require.NoError(t, err)
	require.Equal(t, installer.ExitOK, installer.ExitCode(err))
	require.True(t, report.Installed)
	require.True(t, report.Checksum.Skipped)

	require.Equal(t, "firmware-v2", readString(t, filepath.Join(dir, "installed", "firmware.bin")))
	require.Equal(t, "0 1 2 3", readString(t, filepath.Join(dir, "installed", "calibration", "table.dat")))
	require.NoFileExists(t, filepath.Join(dir, "installed", "README"))

	requireEmptyDir(t, tempDir)
}

// TestInstaller_Run_RemoteCorrectChecksum downloads over HTTP using a settings file.
func TestInstaller_Run_RemoteCorrectChecksum(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	published := filepath.Join(dir, "published")
	tempDir := filepath.Join(dir, "tmp")
	target := filepath.Join(dir, "target")

	require.NoError(t, os.MkdirAll(tempDir, 0o755))

	digest := publishArchive(t, published)

	var agent atomic.Value

	files := http.FileServer(http.Dir(published))
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		agent.Store(r.UserAgent())
		files.ServeHTTP(w, r)
	}))
	t.Cleanup(server.Close)

	settings := writeSettings(t, dir, strings.Join([]string{
		"install_location: " + target,
		"base_url: " + server.URL,
		"filename: " + archiveName,
		"checksum_type: sha256",
		"checksum: " + digest,
		"temp_dir: " + tempDir,
		"verbose: true",
		"rate_limit: 1048576",
		"metrics_file: " + filepath.Join(dir, "metrics", "blob_installer.prom"),
	}, "\n"))

	cfg, err := config.Resolve(config.Sources{
		File:      settings,
		LookupEnv: func(string) (string, bool) { return "", false },
	})
	require.NoError(t, err)

	var progress bytes.Buffer

	report, err := installer.Run(context.Background(), &installer.Options{
		Config:   cfg,
		Progress: &progress,
	})
	require.NoError(t, err)
	require.True(t, report.Installed)
	require.True(t, report.Checksum.Match)
	require.Equal(t, digest, report.Checksum.Calculated)
	require.Equal(t, report.Transfer.Reported, report.Transfer.Written)

	require.Equal(t, version.UserAgent(), agent.Load())
	require.Contains(t, progress.String(), "Downloaded")

	info, err := os.Stat(filepath.Join(target, "tools", "flash.sh"))
	require.NoError(t, err)
	require.NotZero(t, info.Mode().Perm()&0o100)

	require.Contains(t,
		readString(t, filepath.Join(dir, "metrics", "blob_installer.prom")),
		`blob_installer_last_run_outcome{outcome="installed"} 1`)

	requireEmptyDir(t, tempDir)
}

// TestInstaller_Run_RemoteWrongChecksum leaves the target untouched and exits successfully.
func TestInstaller_Run_RemoteWrongChecksum(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	published := filepath.Join(dir, "published")
	tempDir := filepath.Join(dir, "tmp")
	target := filepath.Join(dir, "target")

	require.NoError(t, os.MkdirAll(tempDir, 0o755))
	require.NoError(t, os.MkdirAll(target, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(target, "firmware.bin"), []byte("firmware-v1"), 0o644))

	publishArchive(t, published)

	server := httptest.NewServer(http.FileServer(http.Dir(published)))
	t.Cleanup(server.Close)

	cfg := config.Default()
	cfg.InstallLocation = target
	cfg.BaseURL = server.URL
	cfg.Filename = archiveName
	cfg.Checksum = "d41d8cd98f00b204e9800998ecf8427e"
	cfg.TempDir = tempDir

	require.NoError(t, config.Normalize(cfg))
	require.NoError(t, config.Validate(cfg))

	report, err := installer.Run(context.Background(), &installer.Options{Config: cfg})
	require.NoError(t, err)
	require.Equal(t, installer.ExitOK, installer.ExitCode(err))
	require.False(t, report.Checksum.Match)
	require.False(t, report.Installed)
	require.Equal(t, metrics.OutcomeChecksumMismatch, report.Outcome)
	require.Equal(t, "d41d8cd98f00b204e9800998ecf8427e", report.Checksum.Expected)
	require.Len(t, report.Checksum.Calculated, 32)

	require.Equal(t, "firmware-v1", readString(t, filepath.Join(target, "firmware.bin")))
	requireEmptyDir(t, tempDir)
}

// TestInstaller_Run_UnknownChecksumType fails before any I/O.
func TestInstaller_Run_UnknownChecksumType(t *testing.T) {
	t.Parallel()

	_, err := config.Resolve(config.Sources{
		LookupEnv: func(string) (string, bool) { return "", false },
		Flags: func(cfg *config.Config) {
			cfg.ChecksumType = "crc32"
		},
	})
	require.ErrorIs(t, err, config.ErrInvalid)
	require.Equal(t, installer.ExitFailure, installer.ExitCode(err))
}
