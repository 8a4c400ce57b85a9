// Package install copies the payload subtree of an extracted archive into
// its final location.
//
// Replace mode wipes the destination and copies the payload in its place.
// Merge mode keeps the destination and atomically overwrites each payload
// file, leaving unrelated files alone.
package install
