package transfer

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
)

// DefaultBufferSize is the chunk size used when none is configured.
const DefaultBufferSize = 8192

// errInvalidBufferSize is returned for non-positive chunk sizes.
var errInvalidBufferSize = errors.New("buffer size must be positive")

// Result reports how much data moved. It is meant for diagnostics only.
type Result struct {
	// Reported is the length announced by the source, -1 if unknown.
	Reported int64
	// Written is the number of bytes stored in the destination file.
	Written int64
}

// Option customizes a single Fetch call.
type Option func(*options)

type options struct {
	bufferSize int
	progress   io.Writer
	rateLimit  int64
}

// WithBufferSize sets the chunk size for reads and writes.
func WithBufferSize(size int) Option {
	return func(o *options) {
		o.bufferSize = size
	}
}

// WithProgress draws a single, continuously redrawn status line on w.
func WithProgress(w io.Writer) Option {
	return func(o *options) {
		o.progress = w
	}
}

// WithRateLimit caps throughput at bytesPerSecond. Zero disables the cap.
func WithRateLimit(bytesPerSecond int64) Option {
	return func(o *options) {
		o.rateLimit = bytesPerSecond
	}
}

// Fetch copies src into dest, creating or truncating it. On error the
// partially written file is left in place for the caller to discard.
func Fetch(ctx context.Context, src Source, dest string, opts ...Option) (Result, error) {
	o := options{bufferSize: DefaultBufferSize}
	for _, opt := range opts {
		opt(&o)
	}

	if o.bufferSize <= 0 {
		return Result{}, errInvalidBufferSize
	}

	body, reported, err := src.Open(ctx)
	if err != nil {
		return Result{}, err
	}

	defer func() {
		_ = body.Close()
	}()

	result := Result{Reported: reported}

	file, err := os.Create(filepath.Clean(dest))
	if err != nil {
		return result, wrapf(err, "create %s", dest)
	}

	// Closing twice after the explicit Close below only yields os.ErrClosed.
	defer func() {
		_ = file.Close()
	}()

	var reader io.Reader = &contextReader{ctx: ctx, r: body}
	if o.rateLimit > 0 {
		reader = newRateLimitedReader(ctx, reader, o.rateLimit, o.bufferSize)
	}

	// Hide ReaderFrom so CopyBuffer really moves bufferSize chunks.
	var writer io.Writer = struct{ io.Writer }{file}

	var progress *progressLine
	if o.progress != nil {
		progress = newProgressLine(o.progress, reported)
		writer = io.MultiWriter(writer, progress)
	}

	result.Written, err = io.CopyBuffer(writer, reader, make([]byte, o.bufferSize))

	if progress != nil {
		progress.Finish()
	}

	if err != nil {
		return result, wrapf(err, "copy %s", src)
	}

	if err = file.Close(); err != nil {
		return result, wrapf(err, "close %s", dest)
	}

	return result, nil
}

// contextReader aborts the copy as soon as the context is done.
type contextReader struct {
	ctx context.Context //nolint:containedctx // Read has no context parameter.
	r   io.Reader
}

func (c *contextReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}

	return c.r.Read(p)
}
