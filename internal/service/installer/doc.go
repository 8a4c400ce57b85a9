// Package installer runs the whole pipeline: it checks the target, fetches
// the archive into a scratch workspace, validates its digest, unpacks it and
// installs the payload. Every run leaves no temporary files behind.
package installer
