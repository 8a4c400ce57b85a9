// Package transfer copies an archive from its source into a local file.
//
// Sources are picked from the configured base location: anything starting
// with "http" is fetched with a plain GET, "s3://bucket/prefix" is read with
// the AWS SDK, and everything else is treated as a local directory. Bytes are
// streamed in fixed-size chunks, optionally throttled, and can be reported on
// a single redrawn terminal line.
package transfer
