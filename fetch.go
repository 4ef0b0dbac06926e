package binmedian

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// DefaultMaxDownload caps a single download. A global 4.6 km daily binned
// file is well under 100 MB.
const DefaultMaxDownload = 512 << 20

// ErrTooLarge is returned when a response body exceeds Client.MaxBytes.
var ErrTooLarge = errors.New("binmedian: download exceeds size limit")

// Client downloads binned files over HTTP(S).
type Client struct {
	HTTPClient *http.Client
	MaxBytes   int64
}

// NewClient returns a client with sensible defaults.
func NewClient() *Client {
	return &Client{
		HTTPClient: &http.Client{Timeout: 10 * time.Minute},
		MaxBytes:   DefaultMaxDownload,
	}
}

// Download copies the body of url to w and returns the number of bytes
// written. Bodies larger than c.MaxBytes fail with ErrTooLarge.
func (c *Client) Download(ctx context.Context, url string, w io.Writer) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, err
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("HTTP %d fetching %s", resp.StatusCode, url)
	}
	limit := c.MaxBytes
	if limit <= 0 {
		limit = DefaultMaxDownload
	}
	if resp.ContentLength > limit {
		return 0, fmt.Errorf("%w: %s is %d bytes", ErrTooLarge, url, resp.ContentLength)
	}

	// Read one byte past the limit to tell a full body from a truncated one.
	n, err := io.Copy(w, io.LimitReader(resp.Body, limit+1))
	if err != nil {
		return n, fmt.Errorf("reading %s: %w", url, err)
	}
	if n > limit {
		return n, fmt.Errorf("%w: %s", ErrTooLarge, url)
	}
	return n, nil
}
