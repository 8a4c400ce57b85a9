package installer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/oshokin/blob-installer/internal/archive"
	"github.com/oshokin/blob-installer/internal/checksum"
	"github.com/oshokin/blob-installer/internal/config"
	"github.com/oshokin/blob-installer/internal/install"
	"github.com/oshokin/blob-installer/internal/logger"
	"github.com/oshokin/blob-installer/internal/metrics"
	"github.com/oshokin/blob-installer/internal/pathaccess"
	"github.com/oshokin/blob-installer/internal/transfer"
	"github.com/oshokin/blob-installer/internal/version"
	"github.com/oshokin/blob-installer/internal/workspace"
)

// Options are inputs accepted by the installer entry point.
type Options struct {
	// Config is the resolved configuration. Required.
	Config *config.Config
	// Progress receives the transfer progress line in verbose mode.
	Progress io.Writer
	// HTTPClient replaces the default client for remote sources.
	HTTPClient *http.Client
	// S3Client replaces the default client for s3:// sources.
	S3Client transfer.S3API
}

// Report describes what a run did.
type Report struct {
	// RunID tags every log line of the run.
	RunID string
	// Source is the archive origin.
	Source string
	// Archive is the downloaded file inside the workspace.
	Archive string
	// Mode is the install mode that was requested.
	Mode install.Mode
	// Transfer holds the transfer counters.
	Transfer transfer.Result
	// Checksum is the digest comparison.
	Checksum checksum.Outcome
	// Installed is true once the payload is in place.
	Installed bool
	// InstallErr is the extraction or installation failure, if any.
	InstallErr error
	// Outcome summarizes the run for metrics.
	Outcome metrics.Outcome
	// Duration is the wall time of the run.
	Duration time.Duration
}

// runner holds the state of a single installer execution.
type runner struct {
	cfg    *config.Config
	opts   *Options
	report *Report
	probe  pathaccess.Result
}

// Run executes the installer lifecycle and is the public entry point for the CLI.
func Run(ctx context.Context, opts *Options) (*Report, error) {
	if opts == nil || opts.Config == nil {
		return nil, errOptionsNotSet
	}

	started := time.Now()
	report := &Report{
		RunID: uuid.NewString(),
		Mode:  install.ModeFor(opts.Config.Keep),
	}

	ctx = logger.WithName(ctx, version.Name)
	ctx = logger.WithKV(ctx, "run", report.RunID)

	r := &runner{
		cfg:    opts.Config,
		opts:   opts,
		report: report,
	}

	err := r.run(ctx)

	report.Duration = time.Since(started)
	report.Outcome = outcomeOf(report, err)

	r.finish(ctx, err)

	return report, err
}

// run walks the pipeline. The marker and workspace are released on every path.
func (r *runner) run(ctx context.Context) error {
	if err := r.checkTargetWritable(ctx); err != nil {
		return err
	}

	mark, err := acquireMarker(ctx, r.cfg.TempDir)
	if err != nil {
		return err
	}

	defer mark.release(ctx)

	ws, err := workspace.Acquire(r.cfg.TempDir, workspace.DefaultPrefix)
	if err != nil {
		return err
	}

	workspacePath := ws.Path()

	defer func() {
		if releaseErr := ws.Release(); releaseErr != nil {
			logger.WarnKV(ctx, "Unable to remove the workspace", "path", workspacePath, "error", releaseErr)
			return
		}

		logger.DebugKV(ctx, "Workspace removed", "path", workspacePath)
	}()

	logger.DebugKV(ctx, "Workspace created", "path", workspacePath, "log_level", logger.Level().String())

	archivePath, err := ws.Join(r.cfg.Filename)
	if err != nil {
		return err
	}

	r.report.Archive = archivePath

	if err = r.transfer(ctx, archivePath); err != nil {
		return err
	}

	if err = r.validateChecksum(ctx, archivePath); err != nil {
		return err
	}

	if !r.report.Checksum.Match {
		return r.reportMismatch(ctx)
	}

	return r.install(ctx, archivePath)
}

// checkTargetWritable makes sure the install location (or its closest
// existing ancestor) can be written before anything is created.
func (r *runner) checkTargetWritable(ctx context.Context) error {
	logger.InfoKV(ctx, "Checking write permission", "path", r.cfg.InstallLocation)

	probe, err := pathaccess.Probe(r.cfg.InstallLocation)
	if err != nil {
		return err
	}

	r.probe = probe

	if !probe.Writable {
		logger.ErrorKV(ctx, "Insufficient permissions to install",
			"path", r.cfg.InstallLocation,
			"checked", probe.Path,
			"hint", "run the installer as a user allowed to write there",
			"support", r.cfg.SupportContact)

		return fmt.Errorf("%s (checked %s): %w", r.cfg.InstallLocation, probe.Path, ErrPermission)
	}

	return nil
}

// transfer fetches the archive into archivePath.
func (r *runner) transfer(ctx context.Context, archivePath string) error {
	src, err := transfer.NewSource(r.cfg.BaseURL, r.cfg.Filename,
		transfer.WithHTTPClient(r.opts.HTTPClient),
		transfer.WithTimeout(r.cfg.Timeout),
		transfer.WithS3Client(r.opts.S3Client),
	)
	if err != nil {
		return err
	}

	r.report.Source = src.String()

	logger.InfoKV(ctx, "Downloading archive", "source", r.report.Source)
	r.logFreeSpace(ctx, "Free space in the workspace", archivePath)

	fetchOptions := []transfer.Option{
		transfer.WithBufferSize(r.cfg.BufferSize),
		transfer.WithRateLimit(r.cfg.RateLimit),
	}

	if r.cfg.Verbose && r.opts.Progress != nil {
		fetchOptions = append(fetchOptions, transfer.WithProgress(r.opts.Progress))
	}

	result, err := transfer.Fetch(ctx, src, archivePath, fetchOptions...)
	r.report.Transfer = result

	if err != nil {
		return fmt.Errorf("download %s: %w", r.report.Source, err)
	}

	logger.DebugKV(ctx, "Archive downloaded",
		"path", archivePath,
		"reported", result.Reported,
		"written", result.Written)

	return nil
}

// validateChecksum compares the archive digest with the configured one.
func (r *runner) validateChecksum(ctx context.Context, archivePath string) error {
	if r.cfg.Checksum == "" {
		logger.Info(ctx, "No checksum configured, skipping validation")
		r.report.Checksum = checksum.Compare("", "")

		return nil
	}

	logger.InfoKV(ctx, "Validating checksum", "type", r.cfg.ChecksumType)

	calculated, err := checksum.Default.FileDigest(ctx, r.cfg.ChecksumType, archivePath, r.cfg.BufferSize)
	if err != nil {
		return fmt.Errorf("calculate checksum: %w", err)
	}

	r.report.Checksum = checksum.Compare(r.cfg.Checksum, calculated)

	return nil
}

// reportMismatch explains a digest mismatch. Nothing is extracted.
func (r *runner) reportMismatch(ctx context.Context) error {
	outcome := r.report.Checksum

	logger.ErrorKV(ctx, "Checksum mismatch, the archive was not installed",
		"type", r.cfg.ChecksumType,
		"expected", outcome.Expected,
		"calculated", outcome.Calculated,
		"support", r.cfg.SupportContact)
	logger.Info(ctx, "The download may have been corrupted, please run the installer again")

	if r.cfg.Strict {
		return fmt.Errorf("expected %s, calculated %s: %w", outcome.Expected, outcome.Calculated, ErrChecksumMismatch)
	}

	return nil
}

// install extracts the archive and moves the payload into place. The
// extraction directory is removed afterwards.
func (r *runner) install(ctx context.Context, archivePath string) error {
	err := r.extractAndInstall(ctx, archivePath)
	if err == nil {
		r.report.Installed = true
		logger.InfoKV(ctx, "Installation complete", "path", r.cfg.InstallLocation)

		return nil
	}

	if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
		return err
	}

	r.report.InstallErr = err

	logger.ErrorKV(ctx, "Installation failed",
		"path", r.cfg.InstallLocation,
		"error", err,
		"hint", "check the permissions of the install location",
		"support", r.cfg.SupportContact)
	logger.Info(ctx, "Run the installer again with --verbose for more details")

	if r.cfg.Strict {
		return fmt.Errorf("%w: %w", ErrInstallFailed, err)
	}

	return nil
}

func (r *runner) extractAndInstall(ctx context.Context, archivePath string) error {
	logger.InfoKV(ctx, "Extracting archive", "path", archivePath)

	target := archive.Target(archivePath)

	defer func() {
		if removeErr := os.RemoveAll(target); removeErr != nil {
			logger.WarnKV(ctx, "Unable to remove the extraction directory", "path", target, "error", removeErr)
		}
	}()

	extracted, err := archive.Extract(ctx, archivePath)
	if err != nil {
		return err
	}

	r.logFreeSpace(ctx, "Free space at the install location", r.probe.Path)

	logger.InfoKV(ctx, "Installing payload",
		"path", r.cfg.InstallLocation,
		"mode", r.report.Mode.String())

	return install.New(r.cfg.PayloadPath).Install(ctx, extracted, r.cfg.InstallLocation, r.report.Mode)
}

// logFreeSpace reports the free bytes of the volume holding path in verbose mode.
func (r *runner) logFreeSpace(ctx context.Context, message, path string) {
	if !r.cfg.Verbose || path == "" {
		return
	}

	free, err := pathaccess.FreeSpace(ctx, path)
	if err != nil {
		logger.DebugKV(ctx, "Unable to determine free space", "path", path, "error", err)
		return
	}

	logger.DebugKV(ctx, message, "path", path, "bytes", free)
}

// finish logs the final verdict and writes the metrics textfile.
func (r *runner) finish(ctx context.Context, err error) {
	switch r.report.Outcome {
	case metrics.OutcomeCancelled:
		logger.Info(ctx, "The installer was cancelled")
	case metrics.OutcomeFailed:
		logger.ErrorKV(ctx, "Installer run failed", "error", err, "support", r.cfg.SupportContact)
	case metrics.OutcomeInstalled:
		logger.InfoKV(ctx, "Installer completed", "duration", r.report.Duration.Round(time.Millisecond))
	default:
		logger.InfoKV(ctx, "Installer completed without installing", "outcome", string(r.report.Outcome))
	}

	if r.cfg.MetricsFile == "" {
		return
	}

	recorder := metrics.NewRecorder()
	recorder.Observe(metrics.Run{
		Outcome:       r.report.Outcome,
		Finished:      time.Now(),
		Duration:      r.report.Duration,
		BytesReported: r.report.Transfer.Reported,
		BytesWritten:  r.report.Transfer.Written,
	})

	if writeErr := recorder.WriteTextfile(r.cfg.MetricsFile); writeErr != nil {
		logger.WarnKV(ctx, "Unable to write metrics", "path", r.cfg.MetricsFile, "error", writeErr)
	}
}

// outcomeOf classifies a finished run.
func outcomeOf(report *Report, err error) metrics.Outcome {
	switch {
	case errors.Is(err, context.Canceled):
		return metrics.OutcomeCancelled
	case errors.Is(err, ErrChecksumMismatch):
		return metrics.OutcomeChecksumMismatch
	case errors.Is(err, ErrInstallFailed):
		return metrics.OutcomeInstallFailed
	case err != nil:
		return metrics.OutcomeFailed
	case !report.Checksum.Match:
		return metrics.OutcomeChecksumMismatch
	case report.InstallErr != nil:
		return metrics.OutcomeInstallFailed
	default:
		return metrics.OutcomeInstalled
	}
}
