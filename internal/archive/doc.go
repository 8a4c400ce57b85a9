// Package archive unpacks a downloaded zip archive next to itself.
//
// The extraction directory is the archive path without its extension. Any
// leftover from a previous run at that location is removed first, and entries
// that would land outside the directory are rejected.
package archive
