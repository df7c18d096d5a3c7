// Package fetch provides the single shared HTTP client used for both
// listing fetches and file downloads, gated by one process-wide semaphore.
package fetch

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"time"
	"unicode/utf8"

	"golang.org/x/sync/semaphore"
)

// DefaultUserAgent is required by the pool-selector liveness probe; the
// remote gateway rejects requests from Go's default client User-Agent.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/96.0.4664.110 Safari/537.36"

// operationTimeout is the shared client's timeout: each GET, including
// reading its body, must finish within it; no shorter per-request deadline
// is set.
const operationTimeout = 36000 * time.Second

// ClientError is returned when a GET completes with a non-2xx status.
type ClientError struct {
	URL        string
	StatusCode int
}

func (e *ClientError) Error() string {
	return fmt.Sprintf("fetch: status %d for %s", e.StatusCode, e.URL)
}

// DecodeError is returned when a response body is not valid UTF-8. Callers
// treat this the same as an empty listing: no files, no dirs.
type DecodeError struct {
	URL string
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("fetch: non-UTF-8 body for %s", e.URL)
}

// Fetcher is the shared HTTP client and global concurrency gate. Both
// listing fetches (Fetch) and file downloads (GetStream) acquire the same
// semaphore before issuing a GET and release it once the body has been
// fully consumed (or the error is known).
type Fetcher struct {
	client *http.Client
	sem    *semaphore.Weighted
}

// New builds a Fetcher with the given global GET concurrency and TLS
// configuration. A nil tlsConfig leaves Go's transport defaults in place.
func New(concurrency int64, tlsConfig *tls.Config) *Fetcher {
	tr := http.DefaultTransport.(*http.Transport).Clone()
	tr.TLSClientConfig = tlsConfig
	tr.MaxConnsPerHost = 0 // unlimited per-host connections
	tr.MaxIdleConnsPerHost = 100
	tr.IdleConnTimeout = 90 * time.Second

	return &Fetcher{
		client: &http.Client{
			Transport: tr,
			Timeout:   operationTimeout,
		},
		sem: semaphore.NewWeighted(concurrency),
	}
}

// Acquire takes one token from the global semaphore, blocking until one is
// available or ctx is done.
func (f *Fetcher) Acquire(ctx context.Context) error {
	return f.sem.Acquire(ctx, 1)
}

// Release returns one token to the global semaphore.
func (f *Fetcher) Release() {
	f.sem.Release(1)
}

// Fetch issues a gated GET and returns the decoded body.
//
// On non-2xx status it returns a *ClientError. On a non-UTF-8 body it
// returns a *DecodeError with an empty body. Both are non-fatal to the
// caller's crawl: the parser treats either as an empty listing.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (string, error) {
	if err := f.Acquire(ctx); err != nil {
		return "", err
	}
	defer f.Release()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", DefaultUserAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		io.Copy(io.Discard, resp.Body) //nolint:errcheck
		return "", &ClientError{URL: rawURL, StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	if !utf8.Valid(body) {
		return "", &DecodeError{URL: rawURL}
	}
	return string(body), nil
}

// GetStream issues a gated GET and returns the raw response for the caller
// to stream (used by the downloader, which writes the body straight to
// disk instead of buffering it). The returned release func must be called
// exactly once, after the body has been fully read or on error.
func (f *Fetcher) GetStream(ctx context.Context, rawURL string) (*http.Response, func(), error) {
	if err := f.Acquire(ctx); err != nil {
		return nil, func() {}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		f.Release()
		return nil, func() {}, err
	}
	req.Header.Set("User-Agent", DefaultUserAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		f.Release()
		return nil, func() {}, err
	}

	released := false
	release := func() {
		if !released {
			released = true
			f.Release()
		}
	}
	return resp, release, nil
}
