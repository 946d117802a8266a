package http

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Common errors.
var (
	ErrRangeNotSupported = errors.New("http: server does not support range requests")
	ErrNotFound          = errors.New("http: resource not found")
	ErrForbidden         = errors.New("http: access forbidden")
	ErrUnauthorized      = errors.New("http: unauthorized")
	ErrServerError       = errors.New("http: server error")
)

// Options configures the HTTP client.
type Options struct {
	// MaxIdleConnsPerHost sets the maximum idle connections per host.
	// Default: 4
	MaxIdleConnsPerHost int

	// Timeout for individual requests.
	// Default: 30s
	Timeout time.Duration

	// UserAgent is sent with every request.
	UserAgent string
}

// DefaultOptions returns options with sensible defaults. Transfers are
// strictly sequential, so the connection pool stays small.
func DefaultOptions() Options {
	return Options{
		MaxIdleConnsPerHost: 4,
		Timeout:             30 * time.Second,
		UserAgent:           "fastdlx",
	}
}

// FileInfo contains metadata about a remote file. Size is -1 when the
// server did not report a content length.
type FileInfo struct {
	Size          int64
	AcceptsRanges bool
}

// RangeResponse represents a response to a range request.
type RangeResponse struct {
	Body          io.ReadCloser
	ContentLength int64
}

// Client performs single-attempt HTTP requests against a mirror server.
// Retry policy lives with the caller: the downloader recomputes its resume
// offset between attempts, so blind retries at this layer would corrupt
// partial transfers.
type Client struct {
	client *http.Client
	opts   Options
}

// NewClient creates a new HTTP client with the given options.
func NewClient(opts Options) *Client {
	if opts.MaxIdleConnsPerHost <= 0 {
		opts.MaxIdleConnsPerHost = 4
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}

	transport := &http.Transport{
		MaxIdleConnsPerHost: opts.MaxIdleConnsPerHost,
		MaxIdleConns:        opts.MaxIdleConnsPerHost * 2,
		IdleConnTimeout:     90 * time.Second,
		DisableCompression:  true, // raw bytes; range math depends on identity encoding
	}

	return &Client{
		client: &http.Client{
			Transport: transport,
			Timeout:   opts.Timeout,
		},
		opts: opts,
	}
}

// Head performs a HEAD request to get file metadata. Servers that reject
// HEAD (405/501) yield a FileInfo with unknown size rather than an error;
// resume is simply not possible for that attempt.
func (c *Client) Head(ctx context.Context, url string) (*FileInfo, error) {
	req, err := c.newRequest(ctx, http.MethodHead, url)
	if err != nil {
		return nil, err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	resp.Body.Close()

	if resp.StatusCode == http.StatusMethodNotAllowed || resp.StatusCode == http.StatusNotImplemented {
		return &FileInfo{Size: -1}, nil
	}
	if err := checkStatusCode(resp.StatusCode, resp.Status); err != nil {
		return nil, err
	}

	return &FileInfo{
		Size:          resp.ContentLength,
		AcceptsRanges: resp.Header.Get("Accept-Ranges") == "bytes",
	}, nil
}

// Get performs a GET request and returns the response body.
func (c *Client) Get(ctx context.Context, url string) (io.ReadCloser, error) {
	req, err := c.newRequest(ctx, http.MethodGet, url)
	if err != nil {
		return nil, err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}

	if err := checkStatusCode(resp.StatusCode, resp.Status); err != nil {
		resp.Body.Close()
		return nil, err
	}

	return resp.Body, nil
}

// GetRange requests the bytes from startByte to the end of the resource.
// A plain 200 without a Content-Range header means the server ignored the
// range; ErrRangeNotSupported is returned so the caller can discard its
// partial data and fall back to a full download.
func (c *Client) GetRange(ctx context.Context, url string, startByte int64) (*RangeResponse, error) {
	req, err := c.newRequest(ctx, http.MethodGet, url)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Range", fmt.Sprintf("bytes=%d-", startByte))

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}

	switch resp.StatusCode {
	case http.StatusPartialContent:
		return &RangeResponse{Body: resp.Body, ContentLength: resp.ContentLength}, nil
	case http.StatusOK:
		// Some servers return 200 but honor the range via Content-Range.
		if resp.Header.Get("Content-Range") != "" {
			return &RangeResponse{Body: resp.Body, ContentLength: resp.ContentLength}, nil
		}
		resp.Body.Close()
		return nil, ErrRangeNotSupported
	case http.StatusRequestedRangeNotSatisfiable:
		resp.Body.Close()
		return nil, ErrRangeNotSupported
	default:
		resp.Body.Close()
		if err := checkStatusCode(resp.StatusCode, resp.Status); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("http: unexpected status for range request: %s", resp.Status)
	}
}

func (c *Client) newRequest(ctx context.Context, method, url string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if c.opts.UserAgent != "" {
		req.Header.Set("User-Agent", c.opts.UserAgent)
	}
	return req, nil
}

// checkStatusCode returns an appropriate error for non-success status codes.
func checkStatusCode(code int, status string) error {
	switch {
	case code >= 200 && code < 300:
		return nil
	case code == http.StatusNotFound:
		return ErrNotFound
	case code == http.StatusForbidden:
		return ErrForbidden
	case code == http.StatusUnauthorized:
		return ErrUnauthorized
	case code >= 500:
		return fmt.Errorf("%w: %s", ErrServerError, strings.TrimSpace(status))
	default:
		return fmt.Errorf("http: unexpected status code: %d", code)
	}
}
