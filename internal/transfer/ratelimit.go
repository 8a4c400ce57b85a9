package transfer

import (
	"context"
	"io"

	"golang.org/x/time/rate"
)

// rateLimitedReader spends one limiter token per byte read.
type rateLimitedReader struct {
	ctx     context.Context //nolint:containedctx // Read has no context parameter.
	r       io.Reader
	limiter *rate.Limiter
	burst   int
}

func newRateLimitedReader(ctx context.Context, r io.Reader, bytesPerSecond int64, burst int) *rateLimitedReader {
	return &rateLimitedReader{
		ctx:     ctx,
		r:       r,
		limiter: rate.NewLimiter(rate.Limit(bytesPerSecond), burst),
		burst:   burst,
	}
}

func (l *rateLimitedReader) Read(p []byte) (int, error) {
	if len(p) > l.burst {
		p = p[:l.burst]
	}

	n, err := l.r.Read(p)
	if n > 0 {
		if waitErr := l.limiter.WaitN(l.ctx, n); waitErr != nil {
			return n, waitErr
		}
	}

	return n, err
}
