package transfer

import (
	"context"
	"io"
	"net/http"
)

// HTTPSource downloads the archive with a single GET request.
type HTTPSource struct {
	URL    string
	client *http.Client
}

func newHTTPSource(base, filename string, options *sourceOptions) *HTTPSource {
	var client http.Client
	if options.client != nil {
		client = *options.client
	}

	if options.timeout > 0 {
		client.Timeout = options.timeout
	}

	transport := client.Transport
	if transport == nil {
		transport = http.DefaultTransport
	}

	client.Transport = userAgent{value: options.userAgent, base: transport}

	return &HTTPSource{
		URL:    EnsureTrailingSlash(base) + filename,
		client: &client,
	}
}

// Open sends the request and hands back the response body.
func (s *HTTPSource) Open(ctx context.Context) (io.ReadCloser, int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.URL, http.NoBody)
	if err != nil {
		return nil, 0, wrapf(err, "build request for %s", s.URL)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, 0, wrapf(err, "get %s", s.URL)
	}

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()

		return nil, 0, wrapf(ErrBadHTTPStatus, "%s, %s", s.URL, resp.Status)
	}

	return resp.Body, resp.ContentLength, nil
}

func (s *HTTPSource) String() string {
	return s.URL
}

// userAgent stamps every outgoing request with the installer identity.
type userAgent struct {
	value string
	base  http.RoundTripper
}

func (ua userAgent) RoundTrip(r *http.Request) (*http.Response, error) {
	cpy := r.Clone(r.Context())
	cpy.Header.Set("User-Agent", ua.value)

	return ua.base.RoundTrip(cpy)
}
