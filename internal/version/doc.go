// Package version exposes build metadata (set via ldflags) and the cobra
// `version` subcommand.
package version
