package installer

import (
	"context"
	"errors"
)

var (
	// ErrPermission is returned when the install location cannot be written.
	ErrPermission = errors.New("install location is not writable")
	// ErrAlreadyRunning is returned when another live run holds the marker.
	ErrAlreadyRunning = errors.New("the installer is already running")
	// ErrChecksumMismatch is returned in strict mode when digests differ.
	ErrChecksumMismatch = errors.New("checksum mismatch")
	// ErrInstallFailed is returned in strict mode when extraction or installation fails.
	ErrInstallFailed = errors.New("installation failed")

	// errOptionsNotSet is returned when Run gets no configuration.
	errOptionsNotSet = errors.New("installer options are not set")
)

// Process exit statuses.
const (
	ExitOK               = 0
	ExitFailure          = 1
	ExitChecksumMismatch = 2
	ExitInstallFailed    = 3
)

// ExitCode maps the error returned by Run to a process exit status.
// Cancellation by signal is not a failure.
func ExitCode(err error) int {
	switch {
	case err == nil, errors.Is(err, context.Canceled):
		return ExitOK
	case errors.Is(err, ErrChecksumMismatch):
		return ExitChecksumMismatch
	case errors.Is(err, ErrInstallFailed):
		return ExitInstallFailed
	default:
		return ExitFailure
	}
}
