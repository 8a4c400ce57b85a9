package transfer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/oshokin/blob-installer/internal/version"
)

const s3Scheme = "s3://"

var (
	// ErrSourceNotFound is returned when a local source file does not exist.
	ErrSourceNotFound = errors.New("source file not found")
	// ErrBadHTTPStatus is returned when the remote answers with anything but 200.
	ErrBadHTTPStatus = errors.New("unexpected http status")
	// errEmptyFilename is returned when no archive name is configured.
	errEmptyFilename = errors.New("filename must not be empty")
	// errInvalidS3Location is returned for s3:// locations without a bucket.
	errInvalidS3Location = errors.New("s3 location must name a bucket")
)

// Source is a place an archive can be read from.
type Source interface {
	// Open starts reading the archive. The returned length is advisory and
	// is -1 when the source does not know it.
	Open(ctx context.Context) (io.ReadCloser, int64, error)
	// String describes the source for log lines.
	String() string
}

// SourceOption customizes how sources are built.
type SourceOption func(*sourceOptions)

type sourceOptions struct {
	client    *http.Client
	timeout   time.Duration
	userAgent string
	s3        S3API
}

// WithHTTPClient sets the base client used for remote downloads.
func WithHTTPClient(client *http.Client) SourceOption {
	return func(o *sourceOptions) {
		if client != nil {
			o.client = client
		}
	}
}

// WithTimeout bounds each remote request. Zero keeps requests unbounded.
func WithTimeout(timeout time.Duration) SourceOption {
	return func(o *sourceOptions) {
		if timeout > 0 {
			o.timeout = timeout
		}
	}
}

// WithUserAgent overrides the User-Agent header value.
func WithUserAgent(userAgent string) SourceOption {
	return func(o *sourceOptions) {
		if userAgent != "" {
			o.userAgent = userAgent
		}
	}
}

// WithS3Client sets the client used for s3:// sources.
func WithS3Client(api S3API) SourceOption {
	return func(o *sourceOptions) {
		o.s3 = api
	}
}

// NewSource picks the source kind for base and appends filename to it.
func NewSource(base, filename string, opts ...SourceOption) (Source, error) {
	if strings.TrimSpace(filename) == "" {
		return nil, errEmptyFilename
	}

	options := sourceOptions{userAgent: version.UserAgent()}
	for _, opt := range opts {
		opt(&options)
	}

	switch {
	case strings.HasPrefix(base, "http"):
		return newHTTPSource(base, filename, &options), nil
	case strings.HasPrefix(base, s3Scheme):
		return newS3Source(base, filename, &options)
	default:
		return &LocalSource{Path: filepath.Join(base, filename)}, nil
	}
}

// EnsureTrailingSlash makes base usable as a URL directory.
func EnsureTrailingSlash(base string) string {
	if strings.HasSuffix(base, "/") {
		return base
	}

	return base + "/"
}

func wrapf(err error, format string, args ...any) error {
	return fmt.Errorf(format+": %w", append(args, err)...)
}
