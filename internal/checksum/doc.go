// Package checksum maps digest algorithm names to hash constructors and
// computes file digests by streaming the file in bounded chunks.
package checksum
